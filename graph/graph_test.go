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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
)

// fakeRelationStore is an in-memory relationStore for tests, avoiding a
// live database for Graph's two call sites (Upsert, All).
type fakeRelationStore struct {
	rels []postgres.Relation
}

func (f *fakeRelationStore) Upsert(ctx context.Context, rel postgres.Relation) (bool, error) {
	f.rels = append(f.rels, rel)
	return true, nil
}

func (f *fakeRelationStore) All(ctx context.Context) ([]postgres.Relation, error) {
	out := make([]postgres.Relation, len(f.rels))
	copy(out, f.rels)
	return out, nil
}

func TestApplyOpRejectsUnknownOpType(t *testing.T) {
	g := New(nil, "node-a")
	applied, err := g.ApplyOp(context.Background(), Op{Op: "delete_relation"})
	assert.NoError(t, err)
	assert.False(t, applied)
}

func TestFactsForPromptRendersEmptyAsEmptyString(t *testing.T) {
	g := New(&fakeRelationStore{}, "node-a")
	out, err := g.FactsForPrompt(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestFactsForPromptOrdersNewestFirstAndFiltersTombstones(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeRelationStore{rels: []postgres.Relation{
		{Subject: "alice", Predicate: "likes", Object: "coffee", UpdatedAt: now.Add(-2 * time.Hour)},
		{Subject: "alice", Predicate: "likes", Object: "tea", UpdatedAt: now.Add(-1 * time.Hour)},
		{Subject: "alice", Predicate: "likes", Object: "soda", Tombstone: true, UpdatedAt: now},
	}}
	g := New(store, "node-a")

	out, err := g.FactsForPrompt(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "alice likes tea\nalice likes coffee", out)
}

func TestFactsForPromptRespectsLimit(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeRelationStore{rels: []postgres.Relation{
		{Subject: "a", Predicate: "r", Object: "1", UpdatedAt: now.Add(-2 * time.Second)},
		{Subject: "a", Predicate: "r", Object: "2", UpdatedAt: now.Add(-1 * time.Second)},
		{Subject: "a", Predicate: "r", Object: "3", UpdatedAt: now},
	}}
	g := New(store, "node-a")

	out, err := g.FactsForPrompt(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "a r 3", out)
}
