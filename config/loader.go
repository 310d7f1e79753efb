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
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoaderOptions configures Load, adapted from the teacher's
// config.LoaderOptions (environment-specific file + env var overrides),
// trimmed to this module's single-file shape.
type LoaderOptions struct {
	// ConfigPath is the YAML file to load. Defaults to "config.yaml".
	ConfigPath string
	// EnvFile is an optional dotenv file loaded before reading env vars.
	EnvFile string
}

// DefaultLoaderOptions returns the default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigPath: "config.yaml", EnvFile: ".env"}
}

// Load reads ConfigPath (falling back to DefaultConfig if absent), loads
// EnvFile if present, then applies AEGIS_* environment variable overrides
// (highest priority), mirroring the teacher's env-substitution pass.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.EnvFile != "" {
		_ = godotenv.Load(options.EnvFile) // optional; missing file is not an error
	}

	cfg := DefaultConfig()
	if data, err := os.ReadFile(options.ConfigPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", options.ConfigPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file %s: %w", options.ConfigPath, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// MustLoad loads configuration or panics on error, for CLI init paths
// where a bad config is unrecoverable.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AEGIS_PEER_ID"); v != "" {
		cfg.Mesh.PeerID = v
	}
	if v := os.Getenv("AEGIS_NEXUS_URL"); v != "" {
		cfg.Mesh.NexusURL = v
	}
	if v := os.Getenv("AEGIS_KEY_NAME"); v != "" {
		cfg.Mesh.KeyName = v
	}
	if v := os.Getenv("AEGIS_KEYS_DIR"); v != "" {
		cfg.Paths.KeysDir = v
	}

	if v := os.Getenv("AEGIS_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("AEGIS_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("AEGIS_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("AEGIS_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("AEGIS_DB_NAME"); v != "" {
		cfg.Database.Database = v
	}

	if v := os.Getenv("AEGIS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AEGIS_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("AEGIS_ALLOW_WEB_SEARCH"); v != "" {
		cfg.Assistant.AllowWebSearch = v == "true" || v == "1"
	}
	if v := os.Getenv("AEGIS_ALLOW_CODE_EXEC"); v != "" {
		cfg.Assistant.AllowCodeExec = v == "true" || v == "1"
	}

	if v := os.Getenv("AEGIS_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}
