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


package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKeys_CreatesAndPersists(t *testing.T) {
	dir := t.TempDir()

	id1, err := LoadOrCreateKeys(dir, "alice")
	require.NoError(t, err)
	require.NotNil(t, id1)

	skPath := filepath.Join(dir, "alice.ed25519.sk")
	skInfo, err := os.Stat(skPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), skInfo.Mode().Perm())

	pkPath := filepath.Join(dir, "alice.ed25519.pk")
	pkInfo, err := os.Stat(pkPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), pkInfo.Mode().Perm())

	id2, err := LoadOrCreateKeys(dir, "alice")
	require.NoError(t, err)
	assert.Equal(t, id1.SignPub, id2.SignPub)
	assert.Equal(t, id1.Fingerprint(), id2.Fingerprint())
}

func TestLoadOrCreateKeys_DistinctNames(t *testing.T) {
	dir := t.TempDir()

	alice, err := LoadOrCreateKeys(dir, "alice")
	require.NoError(t, err)
	bob, err := LoadOrCreateKeys(dir, "bob")
	require.NoError(t, err)

	assert.NotEqual(t, alice.Fingerprint(), bob.Fingerprint())
}

func TestSignAndVerify(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrCreateKeys(dir, "alice")
	require.NoError(t, err)

	msg := []byte("hello mesh")
	sig := id.Sign(msg)

	assert.True(t, Verify(id.SignPub, msg, sig))
	assert.False(t, Verify(id.SignPub, []byte("tampered"), sig))
}

func TestVerifyIsPure(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrCreateKeys(dir, "alice")
	require.NoError(t, err)

	msg := []byte("same input")
	sig := id.Sign(msg)

	for i := 0; i < 5; i++ {
		assert.True(t, Verify(id.SignPub, msg, sig), "Verify must be deterministic and side-effect free")
	}
}

func TestVerifyRejectsBadKeyLength(t *testing.T) {
	assert.False(t, Verify([]byte("short"), []byte("msg"), []byte("sig")))
}

func TestAgreementKeysAreDeterministic(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrCreateKeys(dir, "alice")
	require.NoError(t, err)

	derived, err := DeriveAgreementPublicFromSigning(id.SignPub)
	require.NoError(t, err)
	assert.Equal(t, id.AgreementPublic(), derived)
}

func TestKeyFilesHoldOneLineOfBase64(t *testing.T) {
	dir := t.TempDir()
	id, err := LoadOrCreateKeys(dir, "alice")
	require.NoError(t, err)

	skData, err := os.ReadFile(filepath.Join(dir, "alice.ed25519.sk"))
	require.NoError(t, err)
	seed, err := base64.StdEncoding.DecodeString(string(skData))
	require.NoError(t, err)
	assert.Len(t, seed, ed25519.SeedSize)

	pkData, err := os.ReadFile(filepath.Join(dir, "alice.ed25519.pk"))
	require.NoError(t, err)
	pub, err := base64.StdEncoding.DecodeString(string(pkData))
	require.NoError(t, err)
	assert.Equal(t, []byte(id.SignPub), pub)
}

func TestFingerprintStableAcrossLoads(t *testing.T) {
	dir := t.TempDir()
	id1, err := LoadOrCreateKeys(dir, "carol")
	require.NoError(t, err)
	fp1 := id1.Fingerprint()

	id2, err := LoadOrCreateKeys(dir, "carol")
	require.NoError(t, err)
	fp2 := id2.Fingerprint()

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 16)
}
