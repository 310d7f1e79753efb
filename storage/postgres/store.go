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


// Package postgres implements durable storage for the contact book (C2) and
// the relation graph (C7) on top of jackc/pgx, adapted from the teacher's
// pkg/storage/postgres package (store.go, sessions.go).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Store bundles the contact and relation sub-stores over one connection pool.
type Store struct {
	pool      *pgxpool.Pool
	contacts  *ContactStore
	relations *RelationStore
}

// NewStore opens a pool against cfg and verifies connectivity.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{pool: pool}
	store.contacts = &ContactStore{db: pool}
	store.relations = &RelationStore{db: pool}
	return store, nil
}

// Contacts returns the contact book sub-store.
func (s *Store) Contacts() *ContactStore { return s.contacts }

// Relations returns the relation graph sub-store.
func (s *Store) Relations() *RelationStore { return s.relations }

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the schema if it does not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contacts (
			alias          TEXT PRIMARY KEY,
			peer_id        TEXT UNIQUE NOT NULL,
			verify_key_b64 TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'pending'
		)`,
		`CREATE TABLE IF NOT EXISTS relations (
			subject    TEXT NOT NULL,
			predicate  TEXT NOT NULL,
			object     TEXT NOT NULL,
			tombstone  BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL,
			origin     TEXT NOT NULL,
			PRIMARY KEY (subject, predicate, object)
		)`,
		`CREATE TABLE IF NOT EXISTS relation_inbox (
			id         BIGSERIAL PRIMARY KEY,
			subject    TEXT NOT NULL,
			predicate  TEXT NOT NULL,
			object     TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.8,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
