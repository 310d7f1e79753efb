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


package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crypto/seal"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/logger"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
)

// reconnectDelay is the minimum sleep between reconnect attempts (spec.md
// §4.4: "sleeps ≥ 3 s and reconnects").
const reconnectDelay = 3 * time.Second

// Handler processes one inbound message whose type isn't handled internally.
type Handler func(msg map[string]interface{})

// Client is the persistent relay connection for one local peer identity.
type Client struct {
	nexusURL string
	peerID   string

	agreementPub  [32]byte
	agreementPriv [32]byte

	mu   sync.Mutex
	conn *websocket.Conn

	peersMu       sync.RWMutex
	peers         []string
	peerCurvePubs map[string][32]byte

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	closed chan struct{}
}

// New creates a relay client for peerID, sealing envelopes with the given
// X25519 agreement keypair (spec.md C1's derived agreement key).
func New(nexusURL, peerID string, agreementPub, agreementPriv [32]byte) *Client {
	return &Client{
		nexusURL:      nexusURL,
		peerID:        peerID,
		agreementPub:  agreementPub,
		agreementPriv: agreementPriv,
		peerCurvePubs: make(map[string][32]byte),
		handlers:      make(map[string]Handler),
		closed:        make(chan struct{}),
	}
}

// OnMessage registers the handler invoked for inbound envelopes/messages of
// the given type that aren't one of the internally-dispatched types.
func (c *Client) OnMessage(msgType string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[msgType] = h
}

// Run dials the relay and services the connection until ctx is cancelled,
// reconnecting with a floor of reconnectDelay on any connection loss.
// Reconnection is idempotent: each reconnect simply redials and re-announces.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.connectAndServe(ctx); err != nil {
			logger.Warn("transport: connection lost, reconnecting", logger.Error(err))
			metrics.TransportReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) connectAndServe(ctx context.Context) error {
	url := fmt.Sprintf("%s/ws/%s", c.nexusURL, c.peerID)
	dialer := &websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	if err := c.announce(); err != nil {
		return fmt.Errorf("announce pubkey: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read relay message: %w", err)
		}
		c.dispatch(data)
	}
}

func (c *Client) announce() error {
	return c.writeJSON(pubkeyAnnounce{Type: TypePubkey, Pubkey: encodeB64(c.agreementPub[:])})
}

func (c *Client) writeJSON(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return logger.NewMeshError(logger.ErrCodeNotConnected, "transport not connected", nil)
	}
	return conn.WriteJSON(v)
}

func (c *Client) dispatch(data []byte) {
	var typed struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return
	}

	switch typed.Type {
	case TypePeerUpdate:
		var upd peerUpdate
		if err := json.Unmarshal(data, &upd); err != nil {
			return
		}
		c.applyPeerUpdate(upd.Peers)
	case TypePubkey:
		var ann peerPubkeyAnnounce
		if err := json.Unmarshal(data, &ann); err != nil {
			return
		}
		c.cachePeerPubkey(ann.Peer, ann.Pubkey)
	default:
		var generic map[string]interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return
		}
		c.handlersMu.RLock()
		h, ok := c.handlers[typed.Type]
		c.handlersMu.RUnlock()
		if ok && h != nil {
			h(generic)
		}
	}
}

func (c *Client) applyPeerUpdate(peers []string) {
	filtered := make([]string, 0, len(peers))
	for _, p := range peers {
		if p != c.peerID {
			filtered = append(filtered, p)
		}
	}
	c.peersMu.Lock()
	c.peers = filtered
	c.peersMu.Unlock()
}

func (c *Client) cachePeerPubkey(peer, pubkeyB64 string) {
	raw, err := decodeB64(pubkeyB64)
	if err != nil || len(raw) != 32 {
		return
	}
	var pub [32]byte
	copy(pub[:], raw)

	c.peersMu.Lock()
	c.peerCurvePubs[peer] = pub
	c.peersMu.Unlock()
}

// Peers returns the last known peer roster, self excluded.
func (c *Client) Peers() []string {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	out := make([]string, len(c.peers))
	copy(out, c.peers)
	return out
}

// PeerPubkey returns the cached X25519 agreement key for a peer, if any.
func (c *Client) PeerPubkey(peer string) ([32]byte, bool) {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	pub, ok := c.peerCurvePubs[peer]
	return pub, ok
}

// SendEncrypted seals payload for `to` and forwards it via the relay. It
// fails with ErrCodeNotConnected if there is no live stream, and
// ErrCodeUnknownPeerKey if no X25519 public key is cached for the recipient.
func (c *Client) SendEncrypted(to, msgType string, payload interface{}) error {
	peerPub, ok := c.PeerPubkey(to)
	if !ok {
		return logger.NewMeshError(logger.ErrCodeUnknownPeerKey, fmt.Sprintf("no cached key for peer %s", to), nil)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	sealed, err := seal.Seal(plaintext, &peerPub, &c.agreementPriv)
	if err != nil {
		return fmt.Errorf("seal envelope: %w", err)
	}

	env := Envelope{
		To:         to,
		Type:       msgType,
		Nonce:      encodeB64(sealed.Nonce[:]),
		Ciphertext: encodeB64(sealed.Ciphertext),
		SenderPub:  encodeB64(c.agreementPub[:]),
	}
	return c.writeJSON(env)
}

// DecryptFrom attempts authenticated decryption of an inbound envelope's
// fields, returning the parsed JSON object on success and ok=false on any
// failure — it never returns an error to the caller (spec.md §4.4).
func (c *Client) DecryptFrom(senderPubB64, nonceB64, ciphertextB64 string) (map[string]interface{}, bool) {
	senderRaw, err := decodeB64(senderPubB64)
	if err != nil || len(senderRaw) != 32 {
		return nil, false
	}
	var senderPub [32]byte
	copy(senderPub[:], senderRaw)

	nonceRaw, err := decodeB64(nonceB64)
	if err != nil || len(nonceRaw) != 24 {
		return nil, false
	}
	var nonce [24]byte
	copy(nonce[:], nonceRaw)

	ct, err := decodeB64(ciphertextB64)
	if err != nil {
		return nil, false
	}

	plaintext, err := seal.Open(&seal.Sealed{Nonce: nonce, Ciphertext: ct}, &senderPub, &c.agreementPriv)
	if err != nil {
		return nil, false
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(plaintext, &obj); err != nil {
		return nil, false
	}
	return obj, true
}
