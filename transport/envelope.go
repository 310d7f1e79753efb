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


// Package transport maintains the persistent relay connection (spec.md C4):
// a single bidirectional WebSocket stream carrying pubkey announcements,
// peer-roster updates, and per-peer authenticated-encryption envelopes.
// Adapted from the teacher's pkg/agent/transport/websocket client, reworked
// from its request/response RPC shape to the spec's fire-and-forget,
// relay-stamped envelope model.
package transport

import "encoding/base64"

// Wire message type tags (spec.md §7's "Wire envelope types").
const (
	TypePubkey        = "pubkey"
	TypePeerUpdate    = "peer_update"
	TypeKairosInvite  = "kairos_invite"
	TypeKairosAccept  = "kairos_accept"
	TypeKairosReject  = "kairos_reject"
	TypeSessionMsg    = "kairos_session_msg"
	TypeCRDTOps       = "crdt_ops"
)

// pubkeyAnnounce is sent right after connecting and after every reconnect.
type pubkeyAnnounce struct {
	Type   string `json:"type"`
	Pubkey string `json:"pubkey"`
}

// peerUpdate is received whenever the relay's roster changes.
type peerUpdate struct {
	Type  string   `json:"type"`
	Peers []string `json:"peers"`
}

// peerPubkeyAnnounce is received when another peer announces its X25519 key.
type peerPubkeyAnnounce struct {
	Type   string `json:"type"`
	Peer   string `json:"peer"`
	Pubkey string `json:"pubkey"`
}

// Envelope is the outbound shape of an authenticated-encryption message,
// per spec.md §3. The relay stamps `from` before delivering it onward; this
// side never sets it.
type Envelope struct {
	To         string `json:"to,omitempty"`
	From       string `json:"from,omitempty"`
	Type       string `json:"type"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	SenderPub  string `json:"sender_pub"`
}

func encodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeB64(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }
