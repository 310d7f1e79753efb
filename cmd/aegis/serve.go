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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/config"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/contacts"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crdtsync"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crypto/identity"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/executor"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/graph"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/logger"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/kairos"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/tools"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run this node: connect to the relay and service sessions",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// unconfiguredKB and unconfiguredWeb are placeholders for the vector-store
// and web-search/fetch collaborators spec.md §1 puts out of scope; a real
// deployment wires concrete implementations in their place.
type unconfiguredKB struct{}

func (unconfiguredKB) Add(ctx context.Context, text, source string) (int, error) {
	return 0, errors.New("knowledge base not configured")
}
func (unconfiguredKB) Query(ctx context.Context, query string, k int) (string, error) {
	return "", errors.New("knowledge base not configured")
}

type unconfiguredWeb struct{}

func (unconfiguredWeb) Search(ctx context.Context, query string, k int) (string, error) {
	return "", errors.New("web search not configured")
}
func (unconfiguredWeb) Fetch(ctx context.Context, url string) (string, error) {
	return "", errors.New("web fetch not configured")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.MustLoad()
	if cfg.Mesh.PeerID == "" {
		return fmt.Errorf("mesh.peer_id is required")
	}
	if cfg.Mesh.NexusURL == "" {
		return fmt.Errorf("mesh.nexus_url is required")
	}

	keyName := cfg.Mesh.KeyName
	if keyName == "" {
		keyName = "identity"
	}
	id, err := identity.LoadOrCreateKeys(cfg.Paths.KeysDir, keyName)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := postgres.NewStore(ctx, &postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	book := contacts.New(store.Contacts())
	g := graph.New(store.Relations(), cfg.Mesh.PeerID)

	tr := transport.New(cfg.Mesh.NexusURL, cfg.Mesh.PeerID, id.AgreementPublic(), id.AgreementPrivate())
	// New registers the inbound crdt_ops handler on tr; outbound broadcasts
	// are issued by the `aegis facts confirm` CLI path after a local upsert.
	crdtsync.New(tr, g)

	mgr := kairos.NewManager(cfg.Mesh.PeerID, book, tr, cfg.Mesh.SessionMaxAgeSec)
	mgr.OnConsentRequest(func(peer, sessionID string, tok *consent.Token) bool {
		return true
	})
	mgr.OnTextShare(func(peer, sessionID string, obj map[string]interface{}) {
		text, _ := obj["text"].(string)
		logger.Info("share_text received", logger.String("peer", peer), logger.String("session", sessionID), logger.String("text", text))
	})

	registryFactory := func() *tools.Registry {
		return tools.NewBuiltinRegistry(&cfg.Assistant, unconfiguredKB{}, unconfiguredWeb{})
	}
	exec := executor.New(registryFactory)
	mgr.OnSessionMessage(exec.HandleSessionMessage(mgr))

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.StartServer(cfg.Metrics.Addr); err != nil {
				logger.Warn("metrics server stopped", logger.Error(err))
			}
		}()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return tr.Run(egCtx) })
	eg.Go(func() error { mgr.RunMaintenance(egCtx); return nil })

	logger.Info("aegis node serving", logger.String("peer_id", cfg.Mesh.PeerID), logger.String("nexus", cfg.Mesh.NexusURL))
	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
