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


// Package crdtsync propagates LWW relation ops between peers over the
// transport (spec.md C8): best-effort fan-out broadcast plus an inbound
// handler that absorbs remote ops into the local graph.
package crdtsync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/graph"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/logger"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

// opsPayload is the wire shape of a crdt_ops envelope (spec.md §4.8:
// `{ops: [{op: upsert_relation, …}, …]}`).
type opsPayload struct {
	Ops []graph.Op `json:"ops"`
}

// Syncer registers the crdt_ops transport handler and exposes the broadcast
// entry point used after every local graph write.
type Syncer struct {
	tr *transport.Client
	g  *graph.Graph
}

// New wires a Syncer's inbound handler onto tr and returns it ready for
// outbound BroadcastRelations calls.
func New(tr *transport.Client, g *graph.Graph) *Syncer {
	s := &Syncer{tr: tr, g: g}
	tr.OnMessage(transport.TypeCRDTOps, s.handleCRDTOps)
	return s
}

// BroadcastRelations packages ops and sends them once to each currently
// known peer. Per-peer send failures are logged but do not fail the batch
// (spec.md §4.7's best-effort semantics).
func (s *Syncer) BroadcastRelations(ctx context.Context, ops []graph.Op) {
	peers := s.tr.Peers()
	if len(peers) == 0 || len(ops) == 0 {
		return
	}

	payload := opsPayload{Ops: ops}

	g, _ := errgroup.WithContext(ctx)
	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			if err := s.tr.SendEncrypted(peer, transport.TypeCRDTOps, payload); err != nil {
				logger.Warn("crdtsync: broadcast to peer failed", logger.String("peer", peer), logger.Error(err))
				metrics.CRDTBroadcastFailures.Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
}

// handleCRDTOps decrypts an inbound crdt_ops envelope and applies each op
// to the graph. Malformed ops are skipped (spec.md §4.8).
func (s *Syncer) handleCRDTOps(env map[string]interface{}) {
	from, _ := env["from"].(string)
	nonce, _ := env["nonce"].(string)
	ciphertext, _ := env["ciphertext"].(string)
	senderPub, _ := env["sender_pub"].(string)

	inner, ok := s.tr.DecryptFrom(senderPub, nonce, ciphertext)
	if !ok {
		return
	}

	rawOps, ok := inner["ops"].([]interface{})
	if !ok {
		return
	}

	ctx := context.Background()
	for _, rawOp := range rawOps {
		op, ok := decodeOp(rawOp)
		if !ok {
			continue
		}
		if applied, err := s.g.ApplyOp(ctx, op); err != nil || !applied {
			continue
		}
		metrics.CRDTOpsApplied.WithLabelValues("remote").Inc()
	}
	_ = from
}

// decodeOp converts one element of a decoded `ops` array (already
// json.Unmarshal'd into interface{} by DecryptFrom) into a graph.Op,
// rejecting anything that doesn't match the expected shape.
func decodeOp(raw interface{}) (graph.Op, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return graph.Op{}, false
	}
	op, _ := m["op"].(string)
	src, _ := m["src"].(string)
	rel, _ := m["rel"].(string)
	dst, _ := m["dst"].(string)
	ts, _ := m["ts"].(float64)
	if op == "" || src == "" || rel == "" || dst == "" {
		return graph.Op{}, false
	}
	return graph.Op{Op: op, Src: src, Rel: rel, Dst: dst, Ts: ts}, true
}
