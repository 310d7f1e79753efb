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
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/logger"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

func envelopeStrings(env map[string]interface{}) (from, nonce, ciphertext, senderPub string) {
	get := func(k string) string {
		if v, ok := env[k].(string); ok {
			return v
		}
		return ""
	}
	return get("from"), get("nonce"), get("ciphertext"), get("sender_pub")
}

// handleInviteEnvelope runs the responder-side acceptance checks in order,
// short-circuiting on the first failure (spec.md §4.5).
func (m *Manager) handleInviteEnvelope(env map[string]interface{}) {
	from, nonce, ciphertext, senderPub := envelopeStrings(env)
	inner, ok := m.tr.DecryptFrom(senderPub, nonce, ciphertext)
	if !ok {
		return
	}

	var msg handshakeMsg
	if !decodeInner(inner, &msg) {
		return
	}

	peerEphPub, ok := decode32(msg.EphPub)
	if !ok {
		return
	}

	var tok *consent.Token
	if msg.Consent != nil {
		tok = decodeToken(*msg.Consent)
	}

	accepted := m.checkInvite(from, msg.SessionID, tok)
	if !accepted {
		m.sendReject(from, msg.SessionID)
		return
	}

	ephPub, ephPriv, err := newEphemeralKeypair()
	if err != nil {
		logger.ErrorMsg("kairos: generate responder ephemeral key failed", logger.Error(err))
		m.sendReject(from, msg.SessionID)
		return
	}

	sess := &Session{
		SessionID:   msg.SessionID,
		PeerID:      from,
		selfEphPriv: ephPriv,
		peerEphPub:  peerEphPub,
		Consent:     tok,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.sessions[msg.SessionID] = sess
	m.mu.Unlock()
	metrics.SessionsActive.Inc()

	accept := handshakeMsg{SessionID: msg.SessionID, EphPub: encode32(ephPub)}
	if err := m.tr.SendEncrypted(from, transport.TypeKairosAccept, accept); err != nil {
		logger.Warn("kairos: failed to send accept", logger.Error(err))
	}
}

// checkInvite runs the three responder acceptance checks; a callback panic
// counts as rejection rather than crashing the handler (spec.md §4.5).
func (m *Manager) checkInvite(peer, sessionID string, tok *consent.Token) (accepted bool) {
	vk, err := m.book.GetVerifyKey(context.Background(), peer)
	if err != nil {
		metrics.ConsentDecisions.WithLabelValues("untrusted_peer").Inc()
		return false
	}
	now := time.Now()
	if tok != nil && tok.Exp < now.Unix() {
		metrics.ConsentDecisions.WithLabelValues("expired").Inc()
		return false
	}
	if tok == nil || !consent.Verify(vk, tok, now) {
		metrics.ConsentDecisions.WithLabelValues("bad_signature").Inc()
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorMsg("kairos: on_consent_request panicked, treating as rejected")
			accepted = false
		}
	}()

	if m.onConsentRequest == nil {
		metrics.ConsentDecisions.WithLabelValues("allowed").Inc()
		return true
	}
	ok := m.onConsentRequest(peer, sessionID, tok)
	if ok {
		metrics.ConsentDecisions.WithLabelValues("allowed").Inc()
	} else {
		metrics.ConsentDecisions.WithLabelValues("rejected_by_user").Inc()
	}
	return ok
}

func (m *Manager) sendReject(peer, sessionID string) {
	if err := m.tr.SendEncrypted(peer, transport.TypeKairosReject, handshakeMsg{SessionID: sessionID}); err != nil {
		logger.Warn("kairos: failed to send reject", logger.Error(err))
	}
}

// handleAcceptEnvelope completes the initiator side of the handshake.
func (m *Manager) handleAcceptEnvelope(env map[string]interface{}) {
	_, nonce, ciphertext, senderPub := envelopeStrings(env)
	inner, ok := m.tr.DecryptFrom(senderPub, nonce, ciphertext)
	if !ok {
		return
	}
	var msg handshakeMsg
	if !decodeInner(inner, &msg) {
		return
	}
	peerEphPub, ok := decode32(msg.EphPub)
	if !ok {
		return
	}

	m.mu.Lock()
	pending, exists := m.pending[msg.SessionID]
	if !exists {
		m.mu.Unlock()
		return
	}
	delete(m.pending, msg.SessionID)
	m.sessions[msg.SessionID] = &Session{
		SessionID:   msg.SessionID,
		PeerID:      peerFromEnv(env),
		selfEphPriv: pending.ephPriv,
		peerEphPub:  peerEphPub,
		Consent:     pending.consent,
		CreatedAt:   time.Now(),
	}
	m.mu.Unlock()
	metrics.SessionsActive.Inc()

	select {
	case pending.result <- true:
	default:
	}
}

// handleRejectEnvelope drops the pending invite and resolves it to failure.
func (m *Manager) handleRejectEnvelope(env map[string]interface{}) {
	_, nonce, ciphertext, senderPub := envelopeStrings(env)
	inner, ok := m.tr.DecryptFrom(senderPub, nonce, ciphertext)
	if !ok {
		return
	}
	var msg handshakeMsg
	if !decodeInner(inner, &msg) {
		return
	}

	m.mu.Lock()
	pending, exists := m.pending[msg.SessionID]
	if exists {
		delete(m.pending, msg.SessionID)
	}
	m.mu.Unlock()

	if exists {
		select {
		case pending.result <- false:
		default:
		}
	}
}

func peerFromEnv(env map[string]interface{}) string {
	from, _, _, _ := envelopeStrings(env)
	return from
}

func decodeInner(obj map[string]interface{}, out *handshakeMsg) bool {
	raw, err := json.Marshal(obj)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func decodeToken(raw json.RawMessage) *consent.Token {
	var wire struct {
		Version     int    `json:"version"`
		SessionID   string `json:"session_id"`
		InitiatorID string `json:"initiator_id"`
		RecipientID string `json:"recipient_id"`
		Scope       struct {
			Tools []string       `json:"tools"`
			Args  map[string]int `json:"args"`
		} `json:"scope"`
		ContextHash string `json:"context_hash"`
		Exp         int64  `json:"exp"`
		Sig         string `json:"_sig"`
	}
	if json.Unmarshal(raw, &wire) != nil {
		return nil
	}
	sig, err := base64.StdEncoding.DecodeString(wire.Sig)
	if err != nil {
		return nil
	}
	return &consent.Token{
		Version:     wire.Version,
		SessionID:   wire.SessionID,
		InitiatorID: wire.InitiatorID,
		RecipientID: wire.RecipientID,
		Scope:       consent.Scope{Tools: wire.Scope.Tools, Args: wire.Scope.Args},
		ContextHash: wire.ContextHash,
		Exp:         wire.Exp,
		Sig:         sig,
	}
}
