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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/config"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/crypto/identity"
)

var (
	keygenKeysDir string
	keygenName    string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate or load this node's Ed25519 identity",
	Long: `Generates a new Ed25519 signing keypair on first run, or loads the
existing one. Also derives the X25519 agreement keypair used for
transport-level sealing (spec.md C1).`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenKeysDir, "keys-dir", "", "Directory for key storage (default: config paths.keys_dir)")
	keygenCmd.Flags().StringVar(&keygenName, "name", "", "Key file name (default: config mesh.key_name)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	cfg := config.MustLoad()

	dir := keygenKeysDir
	if dir == "" {
		dir = cfg.Paths.KeysDir
	}
	name := keygenName
	if name == "" {
		name = cfg.Mesh.KeyName
		if name == "" {
			name = "identity"
		}
	}

	id, err := identity.LoadOrCreateKeys(dir, name)
	if err != nil {
		return fmt.Errorf("load or create keys: %w", err)
	}

	fmt.Printf("Fingerprint: %s\n", id.Fingerprint())
	fmt.Printf("Keys directory: %s\n", dir)
	return nil
}
