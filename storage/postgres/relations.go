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


package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Relation is one edge of the replicated LWW relation graph (spec.md C7).
type Relation struct {
	Subject   string
	Predicate string
	Object    string
	Tombstone bool
	UpdatedAt time.Time
	Origin    string
}

// RelationStore persists the LWW graph and its staging inbox.
type RelationStore struct {
	db *pgxpool.Pool
}

// Upsert applies a relation op using last-writer-wins-by-timestamp semantics:
// the row is written only if it does not yet exist or the incoming op is
// newer than what's stored. Ties are broken by origin id so concurrent
// updates at the same instant still converge deterministically across peers.
func (r *RelationStore) Upsert(ctx context.Context, rel Relation) (bool, error) {
	query := `
		INSERT INTO relations (subject, predicate, object, tombstone, updated_at, origin)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject, predicate, object) DO UPDATE SET
			tombstone = EXCLUDED.tombstone,
			updated_at = EXCLUDED.updated_at,
			origin = EXCLUDED.origin
		WHERE (EXCLUDED.updated_at, EXCLUDED.origin) > (relations.updated_at, relations.origin)
	`
	result, err := r.db.Exec(ctx, query,
		rel.Subject, rel.Predicate, rel.Object, rel.Tombstone, rel.UpdatedAt, rel.Origin,
	)
	if err != nil {
		return false, fmt.Errorf("upsert relation: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Neighbors returns the live (non-tombstoned) relations with the given subject.
func (r *RelationStore) Neighbors(ctx context.Context, subject string) ([]Relation, error) {
	query := `
		SELECT subject, predicate, object, tombstone, updated_at, origin
		FROM relations
		WHERE subject = $1 AND tombstone = FALSE
		ORDER BY predicate, object
	`
	rows, err := r.db.Query(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	var rels []Relation
	for rows.Next() {
		var rel Relation
		if err := rows.Scan(&rel.Subject, &rel.Predicate, &rel.Object, &rel.Tombstone, &rel.UpdatedAt, &rel.Origin); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// All returns every relation in the graph, live or tombstoned; Graph reads
// it to build FactsForPrompt.
func (r *RelationStore) All(ctx context.Context) ([]Relation, error) {
	query := `SELECT subject, predicate, object, tombstone, updated_at, origin FROM relations`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all relations: %w", err)
	}
	defer rows.Close()

	var rels []Relation
	for rows.Next() {
		var rel Relation
		if err := rows.Scan(&rel.Subject, &rel.Predicate, &rel.Object, &rel.Tombstone, &rel.UpdatedAt, &rel.Origin); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// PendingRelation is a candidate relation awaiting user confirmation before
// it is promoted into the convergent graph, mirroring
// original_source/src/memory/inbox.py's `pending` staging table.
type PendingRelation struct {
	ID         int64
	Subject    string
	Predicate  string
	Object     string
	Confidence float64
	CreatedAt  time.Time
}

// StageInbound adds a candidate relation to the pending inbox.
func (r *RelationStore) StageInbound(ctx context.Context, rel PendingRelation) error {
	query := `
		INSERT INTO relation_inbox (subject, predicate, object, confidence, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	_, err := r.db.Exec(ctx, query, rel.Subject, rel.Predicate, rel.Object, rel.Confidence)
	if err != nil {
		return fmt.Errorf("stage inbound relation: %w", err)
	}
	return nil
}

// ListPending returns every staged relation, oldest first.
func (r *RelationStore) ListPending(ctx context.Context) ([]PendingRelation, error) {
	rows, err := r.db.Query(ctx, `SELECT id, subject, predicate, object, confidence, created_at FROM relation_inbox ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query inbox: %w", err)
	}
	defer rows.Close()

	var rels []PendingRelation
	for rows.Next() {
		var rel PendingRelation
		if err := rows.Scan(&rel.ID, &rel.Subject, &rel.Predicate, &rel.Object, &rel.Confidence, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan inbox row: %w", err)
		}
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

// PopByIDs removes the given staged relations and returns them, in one
// transaction. IDs with no matching row are silently skipped.
func (r *RelationStore) PopByIDs(ctx context.Context, ids []int64) ([]PendingRelation, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin pop inbox: %w", err)
	}
	defer tx.Rollback(ctx)

	var out []PendingRelation
	for _, id := range ids {
		var rel PendingRelation
		err := tx.QueryRow(ctx,
			`SELECT id, subject, predicate, object, confidence, created_at FROM relation_inbox WHERE id = $1`,
			id,
		).Scan(&rel.ID, &rel.Subject, &rel.Predicate, &rel.Object, &rel.Confidence, &rel.CreatedAt)
		if err != nil {
			continue
		}
		if _, err := tx.Exec(ctx, `DELETE FROM relation_inbox WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("delete inbox row %d: %w", id, err)
		}
		out = append(out, rel)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit pop inbox: %w", err)
	}
	return out, nil
}
