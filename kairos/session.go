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


// Package kairos implements the Session Manager (spec.md C5): a 3-message
// handshake establishing an ephemeral, forward-secure session over the
// transport's encrypted envelopes, gated by a verified consent token.
package kairos

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/box"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
)

// Session is an established Kairos session, its box derived from this
// side's ephemeral X25519 secret and the peer's ephemeral X25519 public
// (spec.md §3) — never the parties' long-term identity keys.
type Session struct {
	SessionID string
	PeerID    string

	selfEphPriv [32]byte
	peerEphPub  [32]byte

	Consent   *consent.Token
	CreatedAt time.Time
}

// pendingInvite is held only by the initiator between sending an invite and
// receiving accept/reject (spec.md §3's Pending-Invite).
type pendingInvite struct {
	sessionID string
	ephPriv   [32]byte
	consent   *consent.Token
	result    chan bool
	createdAt time.Time
}

// newSessionID mints a session_id of the form ses-<8 hex chars of a UUID>.
func newSessionID() string {
	id := uuid.New()
	return "ses-" + hex.EncodeToString(id[:4])
}

func newEphemeralKeypair() (pub, priv [32]byte, err error) {
	p, s, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return pub, priv, err
	}
	return *p, *s, nil
}
