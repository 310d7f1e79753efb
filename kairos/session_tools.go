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


package kairos

import (
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/consent"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/logger"
)

// DelegateInSession sends a task message asking the session peer to run a
// tool on our behalf, the local-side caller for C6's executor
// (original_source/src/tools/session_tools.py's delegate_in_session; see
// SPEC_FULL.md §4). It refuses to send a delegation its own consent scope
// doesn't permit, rather than relying solely on the remote executor's
// allow-list (spec.md §8 scenario 2: "consent-based callers should refuse
// before send").
func (m *Manager) DelegateInSession(sessionID, tool string, args map[string]interface{}) error {
	m.mu.Lock()
	sess := m.sessions[sessionID]
	m.mu.Unlock()
	if sess == nil {
		return logger.NewMeshError(logger.ErrCodeInternal, "unknown session: "+sessionID, nil)
	}
	if sess.Consent != nil && !consent.Allows(sess.Consent, tool, intArgs(args)) {
		return logger.NewMeshError(logger.ErrCodeScopeViolation, "consent scope does not permit tool "+tool, nil)
	}

	payload := map[string]interface{}{
		"type": "task",
		"tool": tool,
		"args": args,
	}
	return m.SendSession(sessionID, payload)
}

// intArgs extracts the integer-valued arguments consent.Allows inspects
// (currently just "k"), tolerating both Go-native ints and json.Unmarshal's
// float64 representation.
func intArgs(args map[string]interface{}) map[string]int {
	out := make(map[string]int, len(args))
	for k, v := range args {
		switch n := v.(type) {
		case int:
			out[k] = n
		case float64:
			out[k] = int(n)
		}
	}
	return out
}

// ShareTextInSession sends a share_text message carrying free-form text to
// the session peer (original_source/src/tools/session_tools.py's
// kb_share_in_session; see SPEC_FULL.md §4).
func (m *Manager) ShareTextInSession(sessionID, text string, meta map[string]interface{}) error {
	payload := map[string]interface{}{
		"type": "share_text",
		"text": text,
		"meta": meta,
	}
	return m.SendSession(sessionID, payload)
}
