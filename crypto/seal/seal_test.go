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


package seal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

func genPair(t *testing.T) (*[32]byte, *[32]byte) {
	t.Helper()
	pub, priv, err := box.GenerateKey(nil)
	require.NoError(t, err)
	return pub, priv
}

func TestSealOpenRoundTrip(t *testing.T) {
	alicePub, alicePriv := genPair(t)
	bobPub, bobPriv := genPair(t)

	plaintext := []byte("kairos invite payload")
	sealed, err := Seal(plaintext, bobPub, alicePriv)
	require.NoError(t, err)

	opened, err := Open(sealed, alicePub, bobPriv)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenFailsOnTamperedCiphertext(t *testing.T) {
	alicePub, alicePriv := genPair(t)
	bobPub, bobPriv := genPair(t)

	sealed, err := Seal([]byte("message"), bobPub, alicePriv)
	require.NoError(t, err)

	sealed.Ciphertext[0] ^= 0xFF

	_, err = Open(sealed, alicePub, bobPriv)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestOpenFailsForWrongRecipient(t *testing.T) {
	alicePub, alicePriv := genPair(t)
	_, bobPriv := genPair(t)
	_, evePriv := genPair(t)

	sealed, err := Seal([]byte("message"), alicePub, bobPriv)
	require.NoError(t, err)

	_, err = Open(sealed, alicePub, evePriv)
	assert.ErrorIs(t, err, ErrOpenFailed)
}

func TestNoncesAreUnique(t *testing.T) {
	alicePub, alicePriv := genPair(t)

	first, err := Seal([]byte("a"), alicePub, alicePriv)
	require.NoError(t, err)
	second, err := Seal([]byte("a"), alicePub, alicePriv)
	require.NoError(t, err)

	assert.NotEqual(t, first.Nonce, second.Nonce)
}
