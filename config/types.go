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


// Package config loads the ambient configuration consumed by the mesh
// components, adapted from the teacher's config package (YAML file +
// environment-variable overrides).
package config

// AssistantConfig holds the tool-dispatch and feature-gate knobs named in
// spec.md §6.
type AssistantConfig struct {
	ToolTimeoutSec  int      `yaml:"tool_timeout_sec" json:"tool_timeout_sec"`
	AllowWebSearch  bool     `yaml:"allow_web_search" json:"allow_web_search"`
	AllowCodeExec   bool     `yaml:"allow_code_exec" json:"allow_code_exec"`
	AllowDomains    []string `yaml:"allow_domains" json:"allow_domains"`
}

// PathsConfig holds the paths spec.md §6 marks "required".
type PathsConfig struct {
	ContactsDB   string `yaml:"contacts_db" json:"contacts_db"`
	RelationsDB  string `yaml:"relations_db" json:"relations_db"`
	KeysDir      string `yaml:"keys_dir" json:"keys_dir"`
}

// MeshConfig holds the mesh-transport-specific settings (relay URL, peer id,
// key name, session lifetime, invite TTL) that sit alongside the core
// AssistantConfig/PathsConfig knobs spec.md names explicitly.
type MeshConfig struct {
	PeerID            string `yaml:"peer_id" json:"peer_id"`
	NexusURL          string `yaml:"nexus_url" json:"nexus_url"`
	KeyName           string `yaml:"key_name" json:"key_name"`
	SessionMaxAgeSec  int    `yaml:"session_max_age_sec" json:"session_max_age_sec"`
	InviteTTLSec      int    `yaml:"invite_ttl_sec" json:"invite_ttl_sec"`
	SandboxTimeoutSec int    `yaml:"sandbox_timeout_sec" json:"sandbox_timeout_sec"`
}

// DatabaseConfig holds the PostgreSQL connection settings backing
// storage/postgres (spec.md's contacts/relations durable tables).
type DatabaseConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	Database string `yaml:"database" json:"database"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// LoggingConfig mirrors the teacher's config.LoggingConfig shape.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig mirrors the teacher's config.MetricsConfig shape.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Config is the top-level configuration object.
type Config struct {
	Environment string          `yaml:"environment" json:"environment"`
	Assistant   AssistantConfig `yaml:"assistant" json:"assistant"`
	Paths       PathsConfig     `yaml:"paths" json:"paths"`
	Mesh        MeshConfig      `yaml:"mesh" json:"mesh"`
	Database    DatabaseConfig  `yaml:"database" json:"database"`
	Logging     LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// DefaultConfig returns the spec.md §6 defaults.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Assistant: AssistantConfig{
			ToolTimeoutSec: 20,
			AllowWebSearch: true,
			AllowCodeExec:  false,
			AllowDomains:   []string{},
		},
		Paths: PathsConfig{
			KeysDir: ".aegis/keys",
		},
		Mesh: MeshConfig{
			SessionMaxAgeSec:  1800,
			InviteTTLSec:      600,
			SandboxTimeoutSec: 10,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "aegis",
			Database: "aegis",
			SSLMode:  "disable",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}
