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


package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(LoaderOptions{ConfigPath: "/nonexistent/config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Mesh.SessionMaxAgeSec, cfg.Mesh.SessionMaxAgeSec)
}

func TestLoadParsesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	require.NoError(t, os.WriteFile(path, []byte("mesh:\n  peer_id: alice\n  nexus_url: ws://localhost:9000\n"), 0o644))

	cfg, err := Load(LoaderOptions{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Mesh.PeerID)
	assert.Equal(t, "ws://localhost:9000", cfg.Mesh.NexusURL)
}

func TestEnvOverridesTakePriority(t *testing.T) {
	t.Setenv("AEGIS_PEER_ID", "from-env")
	cfg, err := Load(LoaderOptions{ConfigPath: "/nonexistent/config.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Mesh.PeerID)
}
