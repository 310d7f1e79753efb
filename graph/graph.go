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


// Package graph implements the LWW relation graph (spec.md C7): a
// last-writer-wins replicated relation store with an in-memory read cache
// backed by storage/postgres for durability and multi-peer convergence.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
)

// Relation is one (subject, predicate, object) edge with its LWW timestamp.
type Relation struct {
	Subject   string
	Predicate string
	Object    string
	Timestamp time.Time
}

type cacheKey struct {
	subject   string
	predicate string
	object    string
}

// relationStore is the durable persistence *postgres.RelationStore provides
// for the two operations Graph itself needs; narrowed to an interface so
// Graph can be exercised against an in-memory fake in tests without a live
// database.
type relationStore interface {
	Upsert(ctx context.Context, rel postgres.Relation) (bool, error)
	All(ctx context.Context) ([]postgres.Relation, error)
}

// Graph is the in-memory + durable LWW relation store. The in-memory cache
// is owned by a single goroutine in the intended deployment (the graph
// owner task per spec.md §4's single-loop model), but the mutex makes
// concurrent use from HTTP/CLI callers safe too.
type Graph struct {
	store relationStore
	self  string

	mu    sync.Mutex
	cache map[cacheKey]Relation
}

// New constructs a Graph backed by store, normally *postgres.RelationStore,
// tagging every write it stores, local or applied from a remote op, with
// originID (the store's LWW tie-breaker at equal timestamps).
func New(store relationStore, originID string) *Graph {
	return &Graph{store: store, self: originID, cache: make(map[cacheKey]Relation)}
}

// Upsert applies (src, rel, dst, ts) with last-writer-wins semantics. ts
// defaults to now if zero. Idempotent: replaying the same call yields the
// same stored state.
func (g *Graph) Upsert(ctx context.Context, src, rel, dst string, ts time.Time) (Relation, error) {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	applied, err := g.store.Upsert(ctx, postgres.Relation{
		Subject:   src,
		Predicate: rel,
		Object:    dst,
		Tombstone: false,
		UpdatedAt: ts,
		Origin:    g.self,
	})
	if err != nil {
		return Relation{}, fmt.Errorf("upsert: %w", err)
	}

	key := cacheKey{src, rel, dst}
	g.mu.Lock()
	if applied || g.cache[key].Timestamp.Before(ts) {
		g.cache[key] = Relation{Subject: src, Predicate: rel, Object: dst, Timestamp: ts}
	}
	result := g.cache[key]
	g.mu.Unlock()

	metrics.CRDTOpsApplied.WithLabelValues("local").Inc()
	return result, nil
}

// Op is a wire-level relation operation as exchanged by crdtsync (spec.md
// §4.7/§4.8's `{op: "upsert_relation", src, rel, dst, ts}` shape). Ts is a
// Unix epoch in seconds; it is stored in the `relations` table's
// `updated_at TIMESTAMPTZ` column.
type Op struct {
	Op  string  `json:"op"`
	Src string  `json:"src"`
	Rel string  `json:"rel"`
	Dst string  `json:"dst"`
	Ts  float64 `json:"ts"`
}

// ApplyOp applies a wire-level op. Returns true if the op was recognized
// (including the no-op stale case), false for unknown op types.
func (g *Graph) ApplyOp(ctx context.Context, op Op) (bool, error) {
	if op.Op != "upsert_relation" {
		return false, nil
	}
	ts := time.Unix(0, int64(op.Ts*float64(time.Second))).UTC()
	if _, err := g.Upsert(ctx, op.Src, op.Rel, op.Dst, ts); err != nil {
		return false, err
	}
	return true, nil
}

// FactsForPrompt returns the n most recently updated relations, rendered
// "{src} {rel} {dst}" one per line, newest first.
func (g *Graph) FactsForPrompt(ctx context.Context, n int) (string, error) {
	rels, err := g.store.All(ctx)
	if err != nil {
		return "", fmt.Errorf("load relations: %w", err)
	}

	live := rels[:0]
	for _, r := range rels {
		if !r.Tombstone {
			live = append(live, r)
		}
	}

	sort.Slice(live, func(i, j int) bool {
		return live[i].UpdatedAt.After(live[j].UpdatedAt)
	})
	if n > 0 && n < len(live) {
		live = live[:n]
	}

	lines := make([]string, 0, len(live))
	for _, r := range live {
		lines = append(lines, fmt.Sprintf("%s %s %s", r.Subject, r.Predicate, r.Object))
	}

	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out, nil
}
