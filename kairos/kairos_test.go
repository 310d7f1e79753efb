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
	"crypto/ed25519"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
)

func TestNewSessionIDFormat(t *testing.T) {
	sid := newSessionID()
	assert.Regexp(t, `^ses-[0-9a-f]{8}$`, sid)
}

func TestNewSessionIDUnique(t *testing.T) {
	a := newSessionID()
	b := newSessionID()
	assert.NotEqual(t, a, b)
}

func TestTokenWireRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	tok := consent.New("ses-deadbeef", "alice", "bob", consent.Scope{Tools: []string{"kb_query"}}, consent.ContextHash([]byte("ctx")), 600, time.Now())
	require.NoError(t, tok.Sign(func(msg []byte) []byte { return ed25519.Sign(priv, msg) }))

	wire, err := json.Marshal(tokenWire(tok))
	require.NoError(t, err)

	decoded := decodeToken(wire)
	require.NotNil(t, decoded)
	assert.Equal(t, tok.SessionID, decoded.SessionID)
	assert.True(t, consent.Verify(pub, decoded, time.Now()))
}

func TestDecodeTokenRejectsBadSignatureEncoding(t *testing.T) {
	raw := json.RawMessage(`{"version":1,"session_id":"ses-x","_sig":"not-base64!!"}`)
	assert.Nil(t, decodeToken(raw))
}

func TestEvictStaleRemovesOldSessions(t *testing.T) {
	m := &Manager{
		sessions:  map[string]*Session{},
		pending:   map[string]*pendingInvite{},
		maxAgeSec: 1 * time.Second,
	}
	m.sessions["ses-old"] = &Session{SessionID: "ses-old", CreatedAt: time.Now().Add(-10 * time.Second)}
	m.sessions["ses-new"] = &Session{SessionID: "ses-new", CreatedAt: time.Now()}

	m.evictStale()

	assert.Nil(t, m.sessions["ses-old"])
	assert.NotNil(t, m.sessions["ses-new"])
}

func TestEncodeDecode32RoundTrip(t *testing.T) {
	var b [32]byte
	b[0] = 0xAB
	b[31] = 0xCD

	s := encode32(b)
	decoded, ok := decode32(s)
	require.True(t, ok)
	assert.Equal(t, b, decoded)
}

func TestDecode32RejectsBadLength(t *testing.T) {
	_, ok := decode32("dG9vc2hvcnQ=")
	assert.False(t, ok)
}
