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


package tools

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/config"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/sandbox"
)

// KBStore is the external vector-store collaborator kb_add/kb_query
// delegate to (explicitly out of scope per spec.md §1).
type KBStore interface {
	Add(ctx context.Context, text, source string) (int, error)
	Query(ctx context.Context, query string, k int) (string, error)
}

// WebClient is the external web-search/fetch collaborator search_web,
// fetch_url, and ingest_url delegate to.
type WebClient interface {
	Search(ctx context.Context, query string, k int) (string, error)
	Fetch(ctx context.Context, url string) (string, error)
}

// NewBuiltinRegistry constructs a registry with every recognized tool
// (spec.md §4.9), gating web/code-exec features once at construction time
// rather than per call.
func NewBuiltinRegistry(cfg *config.AssistantConfig, kb KBStore, web WebClient) *Registry {
	r := New(cfg.ToolTimeoutSec)

	r.Register("now", func(ctx context.Context, args map[string]interface{}) (string, error) {
		return time.Now().Format("2006-01-02 15:04:05"), nil
	})

	r.Register("calc", func(ctx context.Context, args map[string]interface{}) (string, error) {
		expr, _ := args["expr"].(string)
		result, err := EvalArithmetic(expr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%g", result), nil
	})

	r.Register("none", func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "", nil
	})

	if cfg.AllowWebSearch {
		r.Register("search_web", func(ctx context.Context, args map[string]interface{}) (string, error) {
			query, _ := args["query"].(string)
			k := intArg(args, "k", 5)
			return web.Search(ctx, query, k)
		})
		r.Register("fetch_url", func(ctx context.Context, args map[string]interface{}) (string, error) {
			url, _ := args["url"].(string)
			return web.Fetch(ctx, url)
		})
		r.Register("ingest_url", func(ctx context.Context, args map[string]interface{}) (string, error) {
			url, _ := args["url"].(string)
			return web.Fetch(ctx, url)
		})
	} else {
		blocked := func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "Access disabled by configuration.", nil
		}
		r.Register("search_web", blocked)
		r.Register("fetch_url", blocked)
		r.Register("ingest_url", blocked)
	}

	r.Register("kb_add", func(ctx context.Context, args map[string]interface{}) (string, error) {
		text, _ := args["text"].(string)
		source, ok := args["source"].(string)
		if !ok || source == "" {
			source = "tool"
		}
		count, err := kb.Add(ctx, text, source)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d chunks", count), nil
	})
	r.Register("kb_query", func(ctx context.Context, args map[string]interface{}) (string, error) {
		query, _ := args["query"].(string)
		k := intArg(args, "k", 3)
		return kb.Query(ctx, query, k)
	})

	codeExecEnabled := cfg.AllowCodeExec && os.Getenv("AEGIS_ENABLE_CODE_EXEC") == "1"
	if codeExecEnabled {
		r.Register("code_exec", func(ctx context.Context, args map[string]interface{}) (string, error) {
			code, _ := args["code"].(string)
			res := sandbox.Run(ctx, code, sandbox.DefaultLimits())
			if res.ReturnCode == -1 && res.Stderr != "" {
				return "", fmt.Errorf("%s", res.Stderr)
			}
			return res.Stdout, nil
		})
	} else {
		r.Register("code_exec", func(ctx context.Context, args map[string]interface{}) (string, error) {
			return "Code execution disabled. Enable via assistant.allow_code_exec and AEGIS_ENABLE_CODE_EXEC=1.", nil
		})
	}

	return r
}

func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}
