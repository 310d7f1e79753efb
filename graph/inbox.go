// Copyright (C) 2026 Mr5niper
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later


package graph

import (
	"context"
	"fmt"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
)

// PendingFact is a candidate relation awaiting user confirmation.
type PendingFact struct {
	ID         int64
	Subject    string
	Predicate  string
	Object     string
	Confidence float64
}

// Inbox stages candidate relations pulled from conversation before they are
// promoted into the convergent LWW graph — a local-only, pre-CRDT holding
// area, grounded on original_source/src/memory/inbox.py's `MemoryInbox`
// (spec.md leaves extraction/confirmation of facts unspecified; this is the
// SPEC_FULL.md supplement that reproduces it).
type Inbox struct {
	store *postgres.RelationStore
}

// NewInbox constructs an Inbox over the same relation store the graph uses.
func NewInbox(store *postgres.RelationStore) *Inbox {
	return &Inbox{store: store}
}

// Add stages a candidate relation with the given confidence (spec.md
// doesn't define a default; original_source/src/memory/inbox.py uses 0.8).
func (i *Inbox) Add(ctx context.Context, src, rel, dst string, confidence float64) error {
	return i.store.StageInbound(ctx, postgres.PendingRelation{
		Subject:    src,
		Predicate:  rel,
		Object:     dst,
		Confidence: confidence,
	})
}

// ListPending returns every staged fact, oldest first.
func (i *Inbox) ListPending(ctx context.Context) ([]PendingFact, error) {
	rows, err := i.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	out := make([]PendingFact, len(rows))
	for n, r := range rows {
		out[n] = PendingFact{ID: r.ID, Subject: r.Subject, Predicate: r.Predicate, Object: r.Object, Confidence: r.Confidence}
	}
	return out, nil
}

// Pop removes the given staged facts and returns them, promoted out of the
// inbox for the caller to Upsert into the graph.
func (i *Inbox) Pop(ctx context.Context, ids []int64) ([]PendingFact, error) {
	rows, err := i.store.PopByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pop pending: %w", err)
	}
	out := make([]PendingFact, len(rows))
	for n, r := range rows {
		out[n] = PendingFact{ID: r.ID, Subject: r.Subject, Predicate: r.Predicate, Object: r.Object, Confidence: r.Confidence}
	}
	return out, nil
}
