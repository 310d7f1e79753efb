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


package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/kairos"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/tools"
	"github.com/Mr5niper/Aegis-Synthesis-Architecture/transport"
)

func registryWith(name string, h tools.Handler) func() *tools.Registry {
	return func() *tools.Registry {
		r := tools.New(1)
		r.Register(name, h)
		return r
	}
}

func TestRunAllowsRegisteredAllowListedTool(t *testing.T) {
	e := New(registryWith("kb_query", func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "some fact", nil
	}))

	result, err := e.run("kb_query", nil)
	require.NoError(t, err)
	assert.Equal(t, "some fact", result)
}

func TestRunRejectsToolNotOnHardCodedAllowList(t *testing.T) {
	// Registered in the registry, but not one of {kb_query, fetch_url, search_web}:
	// the hard-coded allow-list wins regardless (spec.md §4.6 defense in depth).
	e := New(registryWith("code_exec", func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "should never run", nil
	}))

	_, err := e.run("code_exec", nil)
	assert.Error(t, err)
}

func TestRunRejectsAllowListedToolMissingFromRegistry(t *testing.T) {
	e := New(registryWith("kb_query", func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "fact", nil
	}))

	_, err := e.run("search_web", nil)
	assert.Error(t, err)
}

func TestHandleSessionMessageIgnoresNonTaskTypes(t *testing.T) {
	e := New(registryWith("kb_query", func(ctx context.Context, args map[string]interface{}) (string, error) {
		t.Fatal("tool handler must not run for a non-task message")
		return "", nil
	}))

	handler := e.HandleSessionMessage(nil)
	assert.NotPanics(t, func() {
		handler("ses-any", map[string]interface{}{"type": "share_text", "text": "hi"})
	})
}

func TestHandleSessionMessageOnUnknownSessionDoesNotPanic(t *testing.T) {
	pub, priv, err := box.GenerateKey(nil)
	require.NoError(t, err)
	tr := transport.New("ws://example.invalid", "bob", *pub, *priv)
	mgr := kairos.NewManager("bob", nil, tr, 1800)

	e := New(registryWith("kb_query", func(ctx context.Context, args map[string]interface{}) (string, error) {
		return "fact", nil
	}))

	handler := e.HandleSessionMessage(mgr)
	assert.NotPanics(t, func() {
		handler("ses-unknown", map[string]interface{}{"type": "task", "tool": "kb_query", "args": map[string]interface{}{}})
	})
}
