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
	"fmt"
	"sync"
	"time"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/contacts"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/logger"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

const (
	inviteTimeout    = 60 * time.Second
	maintenanceEvery = 60 * time.Second
)

// ConsentRequestFunc is the user-supplied approval callback consulted on the
// responder side before a session is established. Its absence defaults to
// true; implementations SHOULD require one in production (spec.md §4.5).
type ConsentRequestFunc func(peer, sessionID string, tok *consent.Token) bool

// SessionMessageFunc handles a decrypted inner session message.
type SessionMessageFunc func(sessionID string, obj map[string]interface{})

// TextShareHandler handles a decrypted share_text session message, the
// second recognized inner message type spec.md §3 names alongside
// task/result (see SPEC_FULL.md §4).
type TextShareHandler func(peerID, sessionID string, obj map[string]interface{})

// Manager is the Kairos session layer: handshake state machine, session
// table, and per-session encrypted messaging, layered over transport.Client.
type Manager struct {
	peerID string
	book   *contacts.Book
	tr     *transport.Client

	onConsentRequest ConsentRequestFunc
	onSessionMessage SessionMessageFunc
	onTextShare      TextShareHandler

	maxAgeSec time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	pending  map[string]*pendingInvite
}

// NewManager constructs a Kairos session manager. maxAgeSec is the session
// eviction age (spec.md §3 default 1800s). The transport's own long-term
// agreement keypair seals the outer handshake envelopes; Manager only ever
// generates and holds per-session ephemeral keys.
func NewManager(peerID string, book *contacts.Book, tr *transport.Client, maxAgeSec int) *Manager {
	if maxAgeSec <= 0 {
		maxAgeSec = 1800
	}
	m := &Manager{
		peerID:    peerID,
		book:      book,
		tr:        tr,
		maxAgeSec: time.Duration(maxAgeSec) * time.Second,
		sessions:  make(map[string]*Session),
		pending:   make(map[string]*pendingInvite),
	}
	tr.OnMessage(transport.TypeKairosInvite, m.handleInviteEnvelope)
	tr.OnMessage(transport.TypeKairosAccept, m.handleAcceptEnvelope)
	tr.OnMessage(transport.TypeKairosReject, m.handleRejectEnvelope)
	tr.OnMessage(transport.TypeSessionMsg, m.handleSessionEnvelope)
	return m
}

// OnConsentRequest registers the responder-side approval callback.
func (m *Manager) OnConsentRequest(f ConsentRequestFunc) { m.onConsentRequest = f }

// OnSessionMessage registers the handler for decrypted inner session messages.
func (m *Manager) OnSessionMessage(f SessionMessageFunc) { m.onSessionMessage = f }

// OnTextShare registers the handler for decrypted share_text session messages.
func (m *Manager) OnTextShare(f TextShareHandler) { m.onTextShare = f }

// handshakeMsg is the plaintext shape of all three handshake messages; fields
// unused by a given message stay zero.
type handshakeMsg struct {
	SessionID string          `json:"session_id"`
	Consent   *json.RawMessage `json:"consent,omitempty"`
	EphPub    string          `json:"eph_pub,omitempty"`
}

// Initiate begins a handshake with peerID, returning the resulting session
// once the responder accepts, or an error on reject/timeout.
func (m *Manager) Initiate(ctx context.Context, peerID string, tok *consent.Token) (*Session, error) {
	if _, ok := m.tr.PeerPubkey(peerID); !ok {
		return nil, logger.NewMeshError(logger.ErrCodeUnknownPeerKey, "no long-term key cached for peer "+peerID, nil)
	}

	ephPub, ephPriv, err := newEphemeralKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}

	sid := newSessionID()
	resultCh := make(chan bool, 1)

	m.mu.Lock()
	if old, exists := m.pending[sid]; exists {
		select {
		case old.result <- false:
		default:
		}
	}
	m.pending[sid] = &pendingInvite{
		sessionID: sid,
		ephPriv:   ephPriv,
		consent:   tok,
		result:    resultCh,
		createdAt: time.Now(),
	}
	m.mu.Unlock()

	payload := handshakeMsg{SessionID: sid, EphPub: encode32(ephPub)}
	consentJSON, err := json.Marshal(tokenWire(tok))
	if err != nil {
		return nil, fmt.Errorf("marshal consent: %w", err)
	}
	raw := json.RawMessage(consentJSON)
	payload.Consent = &raw

	if err := m.tr.SendEncrypted(peerID, transport.TypeKairosInvite, payload); err != nil {
		m.mu.Lock()
		delete(m.pending, sid)
		m.mu.Unlock()
		return nil, err
	}

	select {
	case ok := <-resultCh:
		if !ok {
			metrics.SessionsCreated.WithLabelValues("rejected").Inc()
			return nil, logger.NewMeshError(logger.ErrCodeUntrustedPeer, "session rejected or superseded", nil)
		}
	case <-time.After(inviteTimeout):
		m.mu.Lock()
		delete(m.pending, sid)
		m.mu.Unlock()
		metrics.SessionsCreated.WithLabelValues("timeout").Inc()
		return nil, logger.NewMeshError(logger.ErrCodeNotConnected, "invite timed out", nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	sess := m.sessions[sid]
	m.mu.Unlock()
	if sess == nil {
		return nil, logger.NewMeshError(logger.ErrCodeInternal, "session missing after accept", nil)
	}
	metrics.SessionsCreated.WithLabelValues("accepted").Inc()
	return sess, nil
}

// Invite is a pre-flight wrapper around Initiate: it rejects unknown peers
// before attempting the handshake at all, rather than relying solely on the
// responder-side trust check (original_source/src/mesh/protocol_kairos.py's
// Kairos.invite; see SPEC_FULL.md §4).
func (m *Manager) Invite(ctx context.Context, peerID string, tok *consent.Token) (*Session, error) {
	if _, err := m.book.GetVerifyKey(ctx, peerID); err != nil {
		return nil, logger.NewMeshError(logger.ErrCodeUntrustedPeer, "refusing to invite unknown or untrusted peer "+peerID, err)
	}
	return m.Initiate(ctx, peerID, tok)
}

// GetSession returns an established session, or nil if unknown/evicted.
func (m *Manager) GetSession(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// RunMaintenance evicts sessions older than maxAgeSec every 60s until ctx
// is cancelled (spec.md §4.5's background maintenance task).
func (m *Manager) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(maintenanceEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *Manager) evictStale() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid, sess := range m.sessions {
		if now.Sub(sess.CreatedAt) > m.maxAgeSec {
			delete(m.sessions, sid)
			metrics.SessionsEvicted.Inc()
		}
	}
	metrics.SessionsActive.Set(float64(len(m.sessions)))
}

func tokenWire(t *consent.Token) map[string]interface{} {
	if t == nil {
		return nil
	}
	fields := map[string]interface{}{
		"version":      t.Version,
		"session_id":   t.SessionID,
		"initiator_id": t.InitiatorID,
		"recipient_id": t.RecipientID,
		"scope":        scopeWire(t.Scope),
		"context_hash": t.ContextHash,
		"exp":          t.Exp,
		"_sig":         t.SigBase64(),
	}
	return fields
}

func scopeWire(s consent.Scope) map[string]interface{} {
	out := map[string]interface{}{}
	if len(s.Tools) > 0 {
		out["tools"] = s.Tools
	}
	if len(s.Args) > 0 {
		out["args"] = s.Args
	}
	return out
}

func encode32(b [32]byte) string  { return base64.StdEncoding.EncodeToString(b[:]) }
func decode32(s string) ([32]byte, bool) {
	var out [32]byte
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return out, false
	}
	copy(out[:], raw)
	return out, true
}
