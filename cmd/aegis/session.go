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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/config"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/contacts"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crypto/identity"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/kairos"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

var (
	inviteTools        string
	inviteMaxK         int
	inviteExpSec       int64
	inviteContext      string
	inviteDelegateTool string
	inviteDelegateArgs string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Establish and use a Kairos session with a trusted peer",
}

var sessionInviteCmd = &cobra.Command{
	Use:   "invite <peer-id>",
	Short: "Issue a consent token and invite a trusted peer into a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionInvite,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionInviteCmd)

	sessionInviteCmd.Flags().StringVar(&inviteTools, "tools", "", "Comma-separated allowed tool names (empty = any)")
	sessionInviteCmd.Flags().IntVar(&inviteMaxK, "max-k", 0, "Optional scope.args.max_k cap")
	sessionInviteCmd.Flags().Int64Var(&inviteExpSec, "ttl", 600, "Consent token lifetime in seconds")
	sessionInviteCmd.Flags().StringVar(&inviteContext, "context", "", "Context string hashed into the token")
	sessionInviteCmd.Flags().StringVar(&inviteDelegateTool, "delegate-tool", "", "If set, immediately delegate this tool call in the new session")
	sessionInviteCmd.Flags().StringVar(&inviteDelegateArgs, "delegate-args", "{}", "JSON object of arguments for --delegate-tool")
}

func runSessionInvite(cmd *cobra.Command, args []string) error {
	peerID := args[0]
	cfg := config.MustLoad()
	ctx := cmd.Context()

	keyName := cfg.Mesh.KeyName
	if keyName == "" {
		keyName = "identity"
	}
	id, err := identity.LoadOrCreateKeys(cfg.Paths.KeysDir, keyName)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	store, err := postgres.NewStore(ctx, &postgres.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port, User: cfg.Database.User,
		Password: cfg.Database.Password, Database: cfg.Database.Database, SSLMode: cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	book := contacts.New(store.Contacts())

	tr := transport.New(cfg.Mesh.NexusURL, cfg.Mesh.PeerID, id.AgreementPublic(), id.AgreementPrivate())
	mgr := kairos.NewManager(cfg.Mesh.PeerID, book, tr, cfg.Mesh.SessionMaxAgeSec)

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	go func() { _ = tr.Run(runCtx) }()

	if err := waitForPeerKey(runCtx, tr, peerID); err != nil {
		return err
	}

	scope := consent.Scope{}
	if inviteTools != "" {
		scope.Tools = strings.Split(inviteTools, ",")
	}
	if inviteMaxK > 0 {
		scope.Args = map[string]int{"max_k": inviteMaxK}
	}

	contextHash := consent.ContextHash([]byte(inviteContext))
	tok := consent.New("", cfg.Mesh.PeerID, peerID, scope, contextHash, inviteExpSec, time.Now())
	if err := tok.Sign(id.Sign); err != nil {
		return fmt.Errorf("sign consent token: %w", err)
	}

	sess, err := mgr.Invite(runCtx, peerID, tok)
	if err != nil {
		return fmt.Errorf("invite rejected: %w", err)
	}
	fmt.Printf("Session established: %s\n", sess.SessionID)

	if inviteDelegateTool != "" {
		var delegateArgs map[string]interface{}
		if err := json.Unmarshal([]byte(inviteDelegateArgs), &delegateArgs); err != nil {
			return fmt.Errorf("parse --delegate-args: %w", err)
		}
		if err := mgr.DelegateInSession(sess.SessionID, inviteDelegateTool, delegateArgs); err != nil {
			return fmt.Errorf("delegate in session: %w", err)
		}
		fmt.Printf("Delegated %s to peer.\n", inviteDelegateTool)
	}
	return nil
}

func waitForPeerKey(ctx context.Context, tr *transport.Client, peerID string) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, ok := tr.PeerPubkey(peerID); ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for peer %s's key from the relay", peerID)
		case <-ticker.C:
		}
	}
}
