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
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/config"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/contacts"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/storage/postgres"
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Manage the contact book (spec.md C2)",
}

var contactsAddCmd = &cobra.Command{
	Use:   "add <alias> <peer-id> <verify-key-b64>",
	Short: "Add a peer as pending (untrusted) under a user-facing alias",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, closeFn, err := openBook(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		alias, peerID := args[0], args[1]
		raw, err := base64.StdEncoding.DecodeString(args[2])
		if err != nil {
			return fmt.Errorf("decode verify key: %w", err)
		}
		if err := book.AddPending(cmd.Context(), alias, peerID, ed25519.PublicKey(raw)); err != nil {
			return err
		}
		fmt.Printf("Added %s (%s) as pending.\n", alias, peerID)
		return nil
	},
}

var contactsTrustCmd = &cobra.Command{
	Use:   "trust <peer-id>",
	Short: "Promote a pending contact to trusted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		book, closeFn, err := openBook(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		if err := book.TrustContact(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Trusted %s.\n", args[0])
		return nil
	},
}

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trusted contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		book, closeFn, err := openBook(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		peers, err := book.GetTrustedPeers(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range peers {
			fmt.Printf("%s\t%s\n", c.Alias, c.PeerID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(contactsCmd)
	contactsCmd.AddCommand(contactsAddCmd, contactsTrustCmd, contactsListCmd)
}

func openBook(ctx context.Context) (*contacts.Book, func(), error) {
	cfg := config.MustLoad()
	store, err := postgres.NewStore(ctx, &postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}
	return contacts.New(store.Contacts()), store.Close, nil
}
