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


package kairos

import (
	"encoding/json"
	"fmt"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crypto/seal"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

// sessionEnvelope is the plaintext carried inside the outer transport
// envelope for type=kairos_session_msg (spec.md §3): an inner box sealed
// under the session's ephemeral key agreement, never the long-term keys.
type sessionEnvelope struct {
	SessionID  string `json:"session_id"`
	NonceS     string `json:"nonce_s"`
	CiphertextS string `json:"ciphertext_s"`
}

// SendSession encrypts payload under the session's ephemeral box and
// forwards it via the underlying transport as a kairos_session_msg.
func (m *Manager) SendSession(sessionID string, payload interface{}) error {
	m.mu.Lock()
	sess := m.sessions[sessionID]
	m.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("unknown session: %s", sessionID)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal session payload: %w", err)
	}
	sealed, err := seal.Seal(plaintext, &sess.peerEphPub, &sess.selfEphPriv)
	if err != nil {
		return fmt.Errorf("seal session payload: %w", err)
	}

	inner := sessionEnvelope{
		SessionID:   sessionID,
		NonceS:      encodeSlice(sealed.Nonce[:]),
		CiphertextS: encodeSlice(sealed.Ciphertext),
	}
	return m.tr.SendEncrypted(sess.PeerID, transport.TypeSessionMsg, inner)
}

// handleSessionEnvelope decrypts the outer transport layer, then the inner
// session-ephemeral box, and dispatches the plaintext to the registered
// session message handler. An unknown session_id silently drops
// (spec.md §4.5).
func (m *Manager) handleSessionEnvelope(env map[string]interface{}) {
	_, nonce, ciphertext, senderPub := envelopeStrings(env)
	outer, ok := m.tr.DecryptFrom(senderPub, nonce, ciphertext)
	if !ok {
		return
	}

	raw, err := json.Marshal(outer)
	if err != nil {
		return
	}
	var inner sessionEnvelope
	if json.Unmarshal(raw, &inner) != nil {
		return
	}

	m.mu.Lock()
	sess := m.sessions[inner.SessionID]
	m.mu.Unlock()
	if sess == nil {
		return
	}

	nonce24, ok := decode24(inner.NonceS)
	if !ok {
		return
	}
	ct, ok := decodeSlice(inner.CiphertextS)
	if !ok {
		return
	}

	plaintext, err := seal.Open(&seal.Sealed{Nonce: nonce24, Ciphertext: ct}, &sess.peerEphPub, &sess.selfEphPriv)
	if err != nil {
		return
	}

	var obj map[string]interface{}
	if json.Unmarshal(plaintext, &obj) != nil {
		return
	}

	switch obj["type"] {
	case "share_text":
		if m.onTextShare != nil {
			m.onTextShare(sess.PeerID, inner.SessionID, obj)
		}
	default:
		if m.onSessionMessage != nil {
			m.onSessionMessage(inner.SessionID, obj)
		}
	}
}
