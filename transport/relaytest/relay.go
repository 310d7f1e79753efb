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


// Package relaytest provides a minimal in-process relay server implementing
// spec.md's nexus protocol, for exercising transport.Client end-to-end in
// tests without a real relay deployment. Adapted from the teacher's
// pkg/agent/transport/websocket.WSServer (connection tracking, upgrader
// config, JSON read/write loop) — reworked from its request/response RPC
// shape to the spec's broadcast-and-forward relay shape.
package relaytest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Relay is a bare-bones nexus: it tracks one WebSocket connection per peer
// id, broadcasts peer_update on join/leave, forwards pubkey announcements
// to every other peer (and replays the others' known keys to the announcer),
// and forwards envelopes to their addressed recipient
// after stamping `from`.
type Relay struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   map[string]*websocket.Conn
	pubkeys map[string]interface{}
}

// New constructs an empty Relay.
func New() *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns:   make(map[string]*websocket.Conn),
		pubkeys: make(map[string]interface{}),
	}
}

// Start launches an httptest.Server serving the relay at /ws/{peer_id}.
// The caller must call Close on the returned server.
func (r *Relay) Start() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(r.serveHTTP))
}

func (r *Relay) serveHTTP(w http.ResponseWriter, req *http.Request) {
	peerID := strings.TrimPrefix(req.URL.Path, "/ws/")
	if peerID == "" || peerID == req.URL.Path {
		http.Error(w, "missing peer id", http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	r.addPeer(peerID, conn)
	defer r.removePeer(peerID)

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		r.route(peerID, msg)
	}
}

func (r *Relay) addPeer(peerID string, conn *websocket.Conn) {
	r.mu.Lock()
	r.conns[peerID] = conn
	r.mu.Unlock()
	r.broadcastRoster()
}

func (r *Relay) removePeer(peerID string) {
	r.mu.Lock()
	delete(r.conns, peerID)
	r.mu.Unlock()
	r.broadcastRoster()
}

func (r *Relay) broadcastRoster() {
	r.mu.Lock()
	peers := make([]string, 0, len(r.conns))
	for id := range r.conns {
		peers = append(peers, id)
	}
	snapshot := make(map[string]*websocket.Conn, len(r.conns))
	for id, c := range r.conns {
		snapshot[id] = c
	}
	r.mu.Unlock()

	payload := map[string]interface{}{"type": "peer_update", "peers": peers}
	for _, c := range snapshot {
		_ = c.WriteJSON(payload)
	}
}

func (r *Relay) route(from string, msg map[string]interface{}) {
	msgType, _ := msg["type"].(string)

	if msgType == "pubkey" {
		announce := map[string]interface{}{"type": "pubkey", "peer": from, "pubkey": msg["pubkey"]}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.pubkeys[from] = msg["pubkey"]
		for id, c := range r.conns {
			if id == from {
				continue
			}
			_ = c.WriteJSON(announce)
			if pk, ok := r.pubkeys[id]; ok && r.conns[from] != nil {
				_ = r.conns[from].WriteJSON(map[string]interface{}{"type": "pubkey", "peer": id, "pubkey": pk})
			}
		}
		return
	}

	to, _ := msg["to"].(string)
	if to == "" {
		return
	}
	msg["from"] = from
	delete(msg, "to")

	r.mu.Lock()
	conn, ok := r.conns[to]
	r.mu.Unlock()
	if !ok {
		return
	}
	_ = conn.WriteJSON(msg)
}
