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


package transport_test

import (
	"context"
	"crypto/rand"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport/relaytest"
)

func TestClientsExchangeEncryptedEnvelopesViaRelay(t *testing.T) {
	relay := relaytest.New()
	server := relay.Start()
	defer server.Close()

	nexusURL := "ws" + strings.TrimPrefix(server.URL, "http")

	alicePub, alicePriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	bobPub, bobPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	alice := transport.New(nexusURL, "alice", *alicePub, *alicePriv)
	bob := transport.New(nexusURL, "bob", *bobPub, *bobPriv)

	received := make(chan map[string]interface{}, 1)
	bob.OnMessage("greeting", func(msg map[string]interface{}) {
		received <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go alice.Run(ctx)
	go bob.Run(ctx)

	require.Eventually(t, func() bool {
		_, ok := alice.PeerPubkey("bob")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	err = alice.SendEncrypted("bob", "greeting", map[string]string{"text": "hi"})
	require.NoError(t, err)

	select {
	case msg := <-received:
		from, _, ciphertext, senderPub := extractEnvelopeFields(msg)
		assert.Equal(t, "alice", from)
		assert.NotEmpty(t, ciphertext)
		assert.NotEmpty(t, senderPub)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for relayed message")
	}
}

func extractEnvelopeFields(env map[string]interface{}) (from, nonce, ciphertext, senderPub string) {
	get := func(k string) string {
		if v, ok := env[k].(string); ok {
			return v
		}
		return ""
	}
	return get("from"), get("nonce"), get("ciphertext"), get("sender_pub")
}
