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


// Package executor implements the Session Executor (spec.md C6): a
// defense-in-depth handler for inbound "task" session messages that
// enforces its own hard-coded tool allow-list regardless of what the
// initiator's consent scope already permitted.
package executor

import (
	"context"
	"fmt"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/kairos"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/tools"
)

// AllowedTools is the hard-coded allow-list enforced independently of any
// consent-token scope (spec.md §4.6: "regardless of the initiator's consent
// scope (defense in depth)").
var AllowedTools = map[string]bool{
	"kb_query":   true,
	"fetch_url":  true,
	"search_web": true,
}

// Executor wires a kairos.Manager's session-message handler to dispatch
// allow-listed tool calls and reply with a result message.
type Executor struct {
	registryFactory func() *tools.Registry
}

// New builds an Executor. registryFactory constructs a fresh tool registry
// per invocation with no peer client wired in, preventing transitive remote
// dispatch loops (spec.md §4.6).
func New(registryFactory func() *tools.Registry) *Executor {
	return &Executor{registryFactory: registryFactory}
}

// HandleSessionMessage is registered as the kairos.Manager's
// OnSessionMessage callback. It only handles type="task"; all other types
// are ignored here (share_text has its own handler).
func (e *Executor) HandleSessionMessage(mgr *kairos.Manager) kairos.SessionMessageFunc {
	return func(sessionID string, obj map[string]interface{}) {
		if obj["type"] != "task" {
			return
		}
		tool, _ := obj["tool"].(string)
		args, _ := obj["args"].(map[string]interface{})

		result, err := e.run(tool, args)
		if err != nil {
			_ = mgr.SendSession(sessionID, map[string]interface{}{
				"type":  "result",
				"error": "tool not allowed",
			})
			return
		}
		_ = mgr.SendSession(sessionID, map[string]interface{}{
			"type":   "result",
			"result": result,
		})
	}
}

func (e *Executor) run(tool string, args map[string]interface{}) (string, error) {
	if !AllowedTools[tool] {
		return "", fmt.Errorf("tool not allowed: %s", tool)
	}
	registry := e.registryFactory()
	if !registry.Has(tool) {
		return "", fmt.Errorf("tool not allowed: %s", tool)
	}
	return registry.Call(context.Background(), tool, args)
}
