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


package kairos_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/contacts"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/kairos"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport/relaytest"
)

// fakeContactStore is an in-memory stand-in for *postgres.ContactStore,
// letting the handshake tests control trust without a live database.
type fakeContactStore struct {
	mu    sync.Mutex
	trust map[string]postgres.Contact
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{trust: make(map[string]postgres.Contact)}
}

func (f *fakeContactStore) trustPeer(alias, peerID string, vk ed25519.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trust[peerID] = postgres.Contact{
		Alias:        alias,
		PeerID:       peerID,
		VerifyKeyB64: base64.StdEncoding.EncodeToString(vk),
		Status:       "trusted",
	}
}

func (f *fakeContactStore) AddPending(ctx context.Context, alias, peerID, verifyKeyB64 string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trust[peerID] = postgres.Contact{Alias: alias, PeerID: peerID, VerifyKeyB64: verifyKeyB64, Status: "pending"}
	return nil
}

func (f *fakeContactStore) Trust(ctx context.Context, peerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.trust[peerID]
	if !ok {
		return fmt.Errorf("unknown peer: %s", peerID)
	}
	c.Status = "trusted"
	f.trust[peerID] = c
	return nil
}

func (f *fakeContactStore) Trusted(ctx context.Context, peerID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.trust[peerID]
	return ok && c.Status == "trusted", nil
}

func (f *fakeContactStore) ListTrusted(ctx context.Context) ([]postgres.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []postgres.Contact
	for _, c := range f.trust {
		if c.Status == "trusted" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContactStore) VerifyKey(ctx context.Context, peerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.trust[peerID]
	if !ok || c.Status != "trusted" {
		return "", fmt.Errorf("peer not trusted: %s", peerID)
	}
	return c.VerifyKeyB64, nil
}

// peerFixture bundles one simulated agent's transport and signing identity.
type peerFixture struct {
	id       string
	signPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey
	store    *fakeContactStore
	book     *contacts.Book
	tr       *transport.Client
	mgr      *kairos.Manager
}

func newPeerFixture(t *testing.T, nexusURL, id string) *peerFixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	curvePub, curvePriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	store := newFakeContactStore()
	book := contacts.New(store)
	tr := transport.New(nexusURL, id, *curvePub, *curvePriv)
	mgr := kairos.NewManager(id, book, tr, 1800)

	return &peerFixture{id: id, signPub: pub, signPriv: priv, store: store, book: book, tr: tr, mgr: mgr}
}

func (p *peerFixture) trust(peer *peerFixture) {
	p.store.trustPeer(peer.id, peer.id, peer.signPub)
}

func signToken(t *testing.T, tok *consent.Token, priv ed25519.PrivateKey) *consent.Token {
	t.Helper()
	require.NoError(t, tok.Sign(func(msg []byte) []byte { return ed25519.Sign(priv, msg) }))
	return tok
}

func setupRelayAndPeers(t *testing.T, ids ...string) (map[string]*peerFixture, func()) {
	t.Helper()
	relay := relaytest.New()
	server := relay.Start()
	nexusURL := "ws" + strings.TrimPrefix(server.URL, "http")

	peers := make(map[string]*peerFixture, len(ids))
	for _, id := range ids {
		peers[id] = newPeerFixture(t, nexusURL, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	for _, p := range peers {
		go p.tr.Run(ctx)
	}

	for _, a := range peers {
		for _, b := range peers {
			if a.id == b.id {
				continue
			}
			require.Eventually(t, func() bool {
				_, ok := a.tr.PeerPubkey(b.id)
				return ok
			}, 3*time.Second, 10*time.Millisecond, "%s never learned %s's pubkey", a.id, b.id)
		}
	}

	return peers, func() {
		cancel()
		server.Close()
	}
}

func TestHandshakeHappyPathDelegatedSessionAndTaskResult(t *testing.T) {
	peers, teardown := setupRelayAndPeers(t, "alice", "bob")
	defer teardown()
	alice, bob := peers["alice"], peers["bob"]

	alice.trust(bob)
	bob.trust(alice)

	bob.mgr.OnSessionMessage(func(sessionID string, obj map[string]interface{}) {
		if obj["type"] == "task" {
			_ = bob.mgr.SendSession(sessionID, map[string]interface{}{"type": "result", "result": "kb text"})
		}
	})
	aliceResult := make(chan map[string]interface{}, 1)
	alice.mgr.OnSessionMessage(func(sessionID string, obj map[string]interface{}) {
		aliceResult <- obj
	})

	tok := consent.New("", "alice", "bob", consent.Scope{Tools: []string{"kb_query"}, Args: map[string]int{"max_k": 5}}, consent.ContextHash([]byte("ctx")), 600, time.Now())
	signToken(t, tok, alice.signPriv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sess, err := alice.mgr.Invite(ctx, "bob", tok)
	require.NoError(t, err)
	require.NotNil(t, sess)

	require.NoError(t, alice.mgr.DelegateInSession(sess.SessionID, "kb_query", map[string]interface{}{"query": "foo", "k": 3}))

	select {
	case obj := <-aliceResult:
		assert.Equal(t, "result", obj["type"])
		assert.Equal(t, "kb text", obj["result"])
	case <-time.After(3 * time.Second):
		t.Fatal("alice never received the task result")
	}
}

func TestHandshakeScopeViolatingDelegationRejectedBeforeSend(t *testing.T) {
	peers, teardown := setupRelayAndPeers(t, "alice", "bob")
	defer teardown()
	alice, bob := peers["alice"], peers["bob"]

	alice.trust(bob)
	bob.trust(alice)

	gotTask := make(chan struct{}, 1)
	bob.mgr.OnSessionMessage(func(sessionID string, obj map[string]interface{}) {
		if obj["type"] == "task" {
			gotTask <- struct{}{}
		}
	})

	tok := consent.New("", "alice", "bob", consent.Scope{Tools: []string{"kb_query"}}, consent.ContextHash([]byte("ctx")), 600, time.Now())
	signToken(t, tok, alice.signPriv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sess, err := alice.mgr.Invite(ctx, "bob", tok)
	require.NoError(t, err)

	err = alice.mgr.DelegateInSession(sess.SessionID, "search_web", map[string]interface{}{"query": "foo"})
	assert.Error(t, err)

	select {
	case <-gotTask:
		t.Fatal("bob must never see a task message for a scope-violating delegation")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestHandshakeUntrustedPeerInviteSilentlyDropped(t *testing.T) {
	peers, teardown := setupRelayAndPeers(t, "bob", "carol")
	defer teardown()
	bob, carol := peers["bob"], peers["carol"]
	// Deliberately no trust calls: Bob's contact book has no entry for Carol.

	tok := consent.New("", "carol", "bob", consent.Scope{Tools: []string{"kb_query"}}, consent.ContextHash([]byte("ctx")), 600, time.Now())
	signToken(t, tok, carol.signPriv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := carol.mgr.Initiate(ctx, "bob", tok)
	assert.Error(t, err, "bob must reject an invite from a peer missing from his contact book")
}
