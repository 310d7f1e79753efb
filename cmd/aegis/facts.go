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


package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/config"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crdtsync"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crypto/identity"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/graph"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

var factsShowN int

var factsCmd = &cobra.Command{
	Use:   "facts",
	Short: "Inspect and confirm relations in the local LWW graph",
}

var factsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the most recent confirmed facts",
	RunE:  runFactsShow,
}

var factsPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List relations staged in the inbox awaiting confirmation",
	RunE:  runFactsPending,
}

var factsConfirmCmd = &cobra.Command{
	Use:   "confirm <id> [id...]",
	Short: "Promote staged inbox facts into the graph and broadcast them to peers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFactsConfirm,
}

func init() {
	rootCmd.AddCommand(factsCmd)
	factsCmd.AddCommand(factsShowCmd)
	factsCmd.AddCommand(factsPendingCmd)
	factsCmd.AddCommand(factsConfirmCmd)

	factsShowCmd.Flags().IntVar(&factsShowN, "n", 20, "Number of most recent facts to print")
}

func openGraph(cmd *cobra.Command) (*postgres.Store, *graph.Graph, *graph.Inbox, *config.Config, error) {
	cfg := config.MustLoad()
	store, err := postgres.NewStore(cmd.Context(), &postgres.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
		Password: cfg.Database.Password, Database: cfg.Database.Database, SSLMode: cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	g := graph.New(store.Relations(), cfg.Mesh.PeerID)
	inbox := graph.NewInbox(store.Relations())
	return store, g, inbox, cfg, nil
}

func runFactsShow(cmd *cobra.Command, args []string) error {
	store, g, _, _, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	out, err := g.FactsForPrompt(cmd.Context(), factsShowN)
	if err != nil {
		return fmt.Errorf("facts_for_prompt: %w", err)
	}
	fmt.Println(out)
	return nil
}

func runFactsPending(cmd *cobra.Command, args []string) error {
	store, _, inbox, _, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	pending, err := inbox.ListPending(cmd.Context())
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	for _, p := range pending {
		fmt.Printf("%d\t%s %s %s\t(confidence %.2f)\n", p.ID, p.Subject, p.Predicate, p.Object, p.Confidence)
	}
	return nil
}

// runFactsConfirm promotes staged inbox facts into the convergent graph and
// broadcasts the resulting upsert ops to every connected peer, exercising
// the full C7 (graph.Inbox.Pop -> graph.Upsert) -> C8 (crdtsync.Syncer)
// path from the CLI without requiring a long-running `serve` node.
func runFactsConfirm(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid fact id %q: %w", a, err)
		}
		ids = append(ids, id)
	}

	store, g, inbox, cfg, err := openGraph(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	promoted, err := inbox.Pop(cmd.Context(), ids)
	if err != nil {
		return fmt.Errorf("pop pending: %w", err)
	}

	keyName := cfg.Mesh.KeyName
	if keyName == "" {
		keyName = "identity"
	}
	id, err := identity.LoadOrCreateKeys(cfg.Paths.KeysDir, keyName)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	ops := make([]graph.Op, 0, len(promoted))
	for _, p := range promoted {
		ts := time.Now().UTC()
		if _, err := g.Upsert(cmd.Context(), p.Subject, p.Predicate, p.Object, ts); err != nil {
			return fmt.Errorf("upsert %s %s %s: %w", p.Subject, p.Predicate, p.Object, err)
		}
		ops = append(ops, graph.Op{
			Op: "upsert_relation", Src: p.Subject, Rel: p.Predicate, Dst: p.Object,
			Ts: float64(ts.UnixNano()) / float64(time.Second),
		})
		fmt.Printf("confirmed: %s %s %s\n", p.Subject, p.Predicate, p.Object)
	}

	if len(ops) == 0 {
		return nil
	}

	tr := transport.New(cfg.Mesh.NexusURL, cfg.Mesh.PeerID, id.AgreementPublic(), id.AgreementPrivate())
	syncer := crdtsync.New(tr, g)

	runCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	go func() { _ = tr.Run(runCtx) }()
	time.Sleep(500 * time.Millisecond) // let the relay handshake settle before broadcasting

	syncer.BroadcastRelations(runCtx, ops)
	return nil
}
