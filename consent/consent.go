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


// Package consent implements the signed, scope-limited capability token
// gating a Kairos session (spec.md C3): a canonical-JSON object signed with
// Ed25519, verified without side effects, and consulted per-tool-call to
// authorize or deny a request.
package consent

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Scope carries the open capability map. Unknown keys are ignored by Allows
// for forward compatibility; callers MUST default-deny any capability not
// represented by a recognized scope key (spec.md §9).
type Scope struct {
	Tools  []string       `json:"tools,omitempty"`
	Args   map[string]int `json:"-"`
	Extra  map[string]any `json:"-"`
}

// Token is the canonical consent object. Sig is carried separately from the
// signed fields so canonicalization never has to special-case its own absence.
type Token struct {
	Version     int    `json:"version"`
	SessionID   string `json:"session_id"`
	InitiatorID string `json:"initiator_id"`
	RecipientID string `json:"recipient_id"`
	Scope       Scope  `json:"scope"`
	ContextHash string `json:"context_hash"`
	Exp         int64  `json:"exp"`

	Sig []byte `json:"-"`
}

// New builds an unsigned token with exp = now + ttlSec.
func New(sessionID, initiatorID, recipientID string, scope Scope, contextHash string, ttlSec int64, now time.Time) *Token {
	return &Token{
		Version:     1,
		SessionID:   sessionID,
		InitiatorID: initiatorID,
		RecipientID: recipientID,
		Scope:       scope,
		ContextHash: contextHash,
		Exp:         now.Unix() + ttlSec,
	}
}

// ContextHash returns the SHA-256 hex digest of redacted context bytes.
func ContextHash(redactedContext []byte) string {
	sum := sha256.Sum256(redactedContext)
	return hex.EncodeToString(sum[:])
}

// canonicalFields returns the map of signed fields, built from a struct
// rather than hand-rolled key sorting: encoding/json already emits
// alphabetically-sorted map keys and no extraneous whitespace, matching the
// canonical-JSON-with-sorted-keys contract.
func (t *Token) canonicalFields() map[string]interface{} {
	scope := map[string]interface{}{}
	if len(t.Scope.Tools) > 0 {
		tools := make([]string, len(t.Scope.Tools))
		copy(tools, t.Scope.Tools)
		sort.Strings(tools)
		scope["tools"] = tools
	}
	if len(t.Scope.Args) > 0 {
		scope["args"] = t.Scope.Args
	}
	for k, v := range t.Scope.Extra {
		scope[k] = v
	}

	return map[string]interface{}{
		"version":      t.Version,
		"session_id":   t.SessionID,
		"initiator_id": t.InitiatorID,
		"recipient_id": t.RecipientID,
		"scope":        scope,
		"context_hash": t.ContextHash,
		"exp":          t.Exp,
	}
}

// canonicalBytes returns the deterministic JSON encoding of the signed
// fields, excluding `_sig`.
func (t *Token) canonicalBytes() ([]byte, error) {
	return json.Marshal(t.canonicalFields())
}

// Sign computes the detached Ed25519 signature over the canonical bytes and
// stores it on the token.
func (t *Token) Sign(signFn func([]byte) []byte) error {
	data, err := t.canonicalBytes()
	if err != nil {
		return err
	}
	t.Sig = signFn(data)
	return nil
}

// SigBase64 returns the detached signature, base64-encoded, for wire transport.
func (t *Token) SigBase64() string {
	return base64.StdEncoding.EncodeToString(t.Sig)
}

// Verify reports whether the token is unexpired and its signature is valid
// for vk, re-deriving the canonical bytes rather than trusting any
// caller-supplied encoding. It is pure: it never mutates the token or any
// external state (spec.md §9's explicit correction).
func Verify(vk ed25519.PublicKey, t *Token, now time.Time) bool {
	if t == nil || len(t.Sig) == 0 {
		return false
	}
	if t.Exp < now.Unix() {
		return false
	}
	data, err := t.canonicalBytes()
	if err != nil {
		return false
	}
	return ed25519.Verify(vk, data, t.Sig)
}

// Allows reports whether the token's scope permits invoking tool with the
// given integer arguments, per spec.md C3's contract.
func Allows(t *Token, tool string, args map[string]int) bool {
	if len(t.Scope.Tools) > 0 {
		allowed := false
		for _, name := range t.Scope.Tools {
			if name == tool {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if maxK, ok := t.Scope.Args["max_k"]; ok {
		if k, hasK := args["k"]; hasK && k > maxK {
			return false
		}
	}
	return true
}
