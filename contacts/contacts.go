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


// Package contacts implements the agent's contact book (spec.md C2): peers
// are first seen as pending and must be explicitly trusted before their
// verify key is usable for consent or session admission.
package contacts

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/logger"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
)

// contactStore is the durable persistence *postgres.ContactStore provides;
// narrowed to an interface so Book can be exercised against an in-memory
// fake in tests without a live database (spec.md C5's handshake tests).
type contactStore interface {
	AddPending(ctx context.Context, alias, peerID, verifyKeyB64 string) error
	Trust(ctx context.Context, peerID string) error
	Trusted(ctx context.Context, peerID string) (bool, error)
	ListTrusted(ctx context.Context) ([]postgres.Contact, error)
	VerifyKey(ctx context.Context, peerID string) (string, error)
}

// Book is the trust-gated view over the durable contact store.
type Book struct {
	store contactStore
}

// New wraps a contact store, normally *postgres.ContactStore.
func New(store contactStore) *Book {
	return &Book{store: store}
}

// Contact is a trusted or pending peer, keyed by its user-facing alias
// (spec.md §9: `alias TEXT PK, peer_id TEXT UNIQUE, verify_key_b64 TEXT,
// status TEXT default 'pending'`).
type Contact struct {
	Alias  string
	PeerID string
}

// AddPending records a newly-seen peer under alias, with its verify key,
// without trusting it (original_source/src/secure/contacts.py's
// `add_pending(alias, peer_id, vk_b64)`).
func (b *Book) AddPending(ctx context.Context, alias, peerID string, verifyKey ed25519.PublicKey) error {
	if len(verifyKey) != ed25519.PublicKeySize {
		return logger.NewMeshError(logger.ErrCodeMalformedMessage, "bad verify key length", nil)
	}
	return b.store.AddPending(ctx, alias, peerID, base64.StdEncoding.EncodeToString(verifyKey))
}

// TrustContact promotes a known peer to trusted, the only state from which
// its verify key becomes usable for consent and session admission.
func (b *Book) TrustContact(ctx context.Context, peerID string) error {
	return b.store.Trust(ctx, peerID)
}

// IsTrusted reports whether peerID is a known, trusted contact.
func (b *Book) IsTrusted(ctx context.Context, peerID string) bool {
	trusted, err := b.store.Trusted(ctx, peerID)
	if err != nil {
		return false
	}
	return trusted
}

// GetTrustedPeers lists every trusted contact's alias and peer id
// (original_source's `get_trusted_peers`).
func (b *Book) GetTrustedPeers(ctx context.Context) ([]Contact, error) {
	rows, err := b.store.ListTrusted(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Contact, len(rows))
	for i, r := range rows {
		out[i] = Contact{Alias: r.Alias, PeerID: r.PeerID}
	}
	return out, nil
}

// GetVerifyKey returns a trusted peer's Ed25519 verify key, failing closed
// for untrusted or unknown peers (spec.md C2 edge case).
func (b *Book) GetVerifyKey(ctx context.Context, peerID string) (ed25519.PublicKey, error) {
	b64, err := b.store.VerifyKey(ctx, peerID)
	if err != nil {
		return nil, logger.NewMeshError(logger.ErrCodeUntrustedPeer, fmt.Sprintf("peer %s is not a trusted contact", peerID), err)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, logger.NewMeshError(logger.ErrCodeMalformedMessage, fmt.Sprintf("peer %s: corrupt verify key", peerID), err)
	}
	return ed25519.PublicKey(raw), nil
}
