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


// Package seal provides the NaCl-box authenticated-encryption envelope
// shared by transport relay messages (C4) and Kairos session messages (C5).
// It is grounded on the teacher's Ed25519-to-X25519 conversion machinery in
// crypto/keys but swaps the teacher's AES-GCM construction for
// golang.org/x/crypto/nacl/box, matching the 24-byte-nonce Box shape the
// spec calls for.
package seal

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// ErrOpenFailed is returned when a box fails to authenticate, either because
// it was tampered with or because it was sealed to a different key pair.
var ErrOpenFailed = errors.New("seal: box authentication failed")

// Sealed is a NaCl box: a random 24-byte nonce plus the box.Seal output.
type Sealed struct {
	Nonce      [24]byte
	Ciphertext []byte
}

// Seal encrypts plaintext for recipientPub using senderPriv, authenticating
// both the message and the sender.
func Seal(plaintext []byte, recipientPub, senderPriv *[32]byte) (*Sealed, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("seal: generate nonce: %w", err)
	}
	ct := box.Seal(nil, plaintext, &nonce, recipientPub, senderPriv)
	return &Sealed{Nonce: nonce, Ciphertext: ct}, nil
}

// Open decrypts a box sealed by senderPub for recipientPriv, returning
// ErrOpenFailed if authentication fails.
func Open(s *Sealed, senderPub, recipientPriv *[32]byte) ([]byte, error) {
	plaintext, ok := box.Open(nil, s.Ciphertext, &s.Nonce, senderPub, recipientPriv)
	if !ok {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}
