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


// Package tools implements the Tool Registry (spec.md C9): a static name to
// handler map with per-call timeouts, a safe arithmetic evaluator, and
// feature gates decided once at construction.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/Mr5niper/Aegis-Synthesis-Architecture/internal/metrics"
)

// Handler is a tool implementation. It must never panic past Call;
// Registry.Call recovers any panic and folds it into the in-band error
// string contract.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Registry is the static tool name → handler map.
type Registry struct {
	handlers   map[string]Handler
	timeout    time.Duration
}

// New builds an empty registry with the given per-call timeout.
func New(timeoutSec int) *Registry {
	if timeoutSec <= 0 {
		timeoutSec = 20
	}
	return &Registry{
		handlers: make(map[string]Handler),
		timeout:  time.Duration(timeoutSec) * time.Second,
	}
}

// Register installs a handler under name, overwriting any existing entry.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// ListTools returns every registered tool name.
func (r *Registry) ListTools() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Call invokes the named tool under the registry's timeout. Every failure
// mode is folded into an in-band error string per spec.md §4.9's contract:
// handlers never raise past Call.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (result string, err error) {
	h, ok := r.handlers[name]
	if !ok {
		metrics.ToolCalls.WithLabelValues(name, "unknown").Inc()
		return fmt.Sprintf("Error: unknown tool '%s'", name), nil
	}

	start := time.Now()
	defer func() {
		metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type callResult struct {
		text string
		err  error
	}
	done := make(chan callResult, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- callResult{err: fmt.Errorf("%v", rec)}
			}
		}()
		text, callErr := h(callCtx, args)
		done <- callResult{text: text, err: callErr}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			metrics.ToolCalls.WithLabelValues(name, "error").Inc()
			return fmt.Sprintf("Error executing %s: %s", name, res.err.Error()), nil
		}
		metrics.ToolCalls.WithLabelValues(name, "ok").Inc()
		return res.text, nil
	case <-callCtx.Done():
		metrics.ToolCalls.WithLabelValues(name, "timeout").Inc()
		return fmt.Sprintf("Error: tool '%s' timed out", name), nil
	}
}
