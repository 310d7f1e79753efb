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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// statusPending and statusTrusted are the two values of the contacts
// table's `status` column (spec.md §9: `alias TEXT PK, peer_id TEXT UNIQUE,
// verify_key_b64 TEXT, status TEXT default 'pending'`).
const (
	statusPending = "pending"
	statusTrusted = "trusted"
)

// Contact is a peer known to this agent, per spec.md C2's data model and
// original_source/src/secure/contacts.py's `contacts` table.
type Contact struct {
	Alias        string
	PeerID       string
	VerifyKeyB64 string
	Status       string
}

// ContactStore persists the contact book.
type ContactStore struct {
	db *pgxpool.Pool
}

// AddPending records a newly-seen peer under alias as untrusted, a no-op if
// the alias or peer id is already known (original_source's `add_pending`).
func (c *ContactStore) AddPending(ctx context.Context, alias, peerID, verifyKeyB64 string) error {
	query := `
		INSERT INTO contacts (alias, peer_id, verify_key_b64, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
	`
	_, err := c.db.Exec(ctx, query, alias, peerID, verifyKeyB64, statusPending)
	if err != nil {
		return fmt.Errorf("add pending contact: %w", err)
	}
	return nil
}

// Trust marks a known peer as trusted, looked up by peer id (the contacts
// table's unique key besides alias; original_source's `trust_contact`).
func (c *ContactStore) Trust(ctx context.Context, peerID string) error {
	query := `UPDATE contacts SET status = $1 WHERE peer_id = $2`
	result, err := c.db.Exec(ctx, query, statusTrusted, peerID)
	if err != nil {
		return fmt.Errorf("trust contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("unknown peer: %s", peerID)
	}
	return nil
}

// Get retrieves a contact by peer id.
func (c *ContactStore) Get(ctx context.Context, peerID string) (*Contact, error) {
	query := `SELECT alias, peer_id, verify_key_b64, status FROM contacts WHERE peer_id = $1`
	var contact Contact
	err := c.db.QueryRow(ctx, query, peerID).Scan(
		&contact.Alias, &contact.PeerID, &contact.VerifyKeyB64, &contact.Status,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("unknown peer: %s", peerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &contact, nil
}

// Trusted reports whether a peer id is a known, trusted contact.
func (c *ContactStore) Trusted(ctx context.Context, peerID string) (bool, error) {
	contact, err := c.Get(ctx, peerID)
	if err != nil {
		return false, nil
	}
	return contact.Status == statusTrusted, nil
}

// ListTrusted returns every trusted contact, alias and peer id both
// (original_source's `get_trusted_peers` returns `(alias, peer_id,
// verify_key_b64)` tuples).
func (c *ContactStore) ListTrusted(ctx context.Context) ([]Contact, error) {
	query := `SELECT alias, peer_id, verify_key_b64, status FROM contacts WHERE status = $1 ORDER BY alias`
	rows, err := c.db.Query(ctx, query, statusTrusted)
	if err != nil {
		return nil, fmt.Errorf("list trusted contacts: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var contact Contact
		if err := rows.Scan(&contact.Alias, &contact.PeerID, &contact.VerifyKeyB64, &contact.Status); err != nil {
			return nil, fmt.Errorf("scan trusted contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, rows.Err()
}

// VerifyKey returns the base64 Ed25519 verify key for a trusted peer only,
// per spec.md C2's trust-gated key lookup.
func (c *ContactStore) VerifyKey(ctx context.Context, peerID string) (string, error) {
	contact, err := c.Get(ctx, peerID)
	if err != nil {
		return "", err
	}
	if contact.Status != statusTrusted {
		return "", fmt.Errorf("peer not trusted: %s", peerID)
	}
	return contact.VerifyKeyB64, nil
}
