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


// Package identity manages the long-lived Ed25519 signing identity each
// agent holds, and the derivation of its companion X25519 agreement key,
// adapted from the teacher's crypto/keys package (ed25519.go, x25519.go).
package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"filippo.io/edwards25519"
)

// Identity is an agent's long-lived Ed25519 keypair plus its derived
// X25519 agreement keypair, which the transport uses to seal relay
// envelopes. Kairos sessions use separate ephemeral keys.
type Identity struct {
	SignPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey

	agreementPriv [32]byte
	agreementPub  [32]byte
}

// Fingerprint returns a short, stable identifier for the public signing key
// (the first 16 hex characters of its SHA-256), shown to users for
// out-of-band key verification. It is not the transport peer id.
func (id *Identity) Fingerprint() string {
	sum := sha256.Sum256(id.SignPub)
	return hex.EncodeToString(sum[:8])
}

// AgreementPublic returns the 32-byte X25519 public key used for nacl/box sealing.
func (id *Identity) AgreementPublic() [32]byte {
	return id.agreementPub
}

// AgreementPrivate returns the 32-byte X25519 scalar used for nacl/box opening.
func (id *Identity) AgreementPrivate() [32]byte {
	return id.agreementPriv
}

// Sign produces a detached Ed25519 signature over message.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.signPriv, message)
}

// Verify checks a detached Ed25519 signature from the given public key.
// It has no side effects and never mutates caller state (spec.md §9).
func Verify(pub ed25519.PublicKey, message, signature []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, signature)
}

// skSuffix and pkSuffix name the two on-disk files spec.md §4.1/§9 require:
// {name}.ed25519.sk and {name}.ed25519.pk, each one line of base64, written
// with user-only permissions (0600).
const (
	skSuffix = ".ed25519.sk"
	pkSuffix = ".ed25519.pk"
)

// LoadOrCreateKeys loads the identity named keyName from dir, generating and
// persisting a fresh Ed25519 keypair if the sk/pk file pair doesn't exist
// yet (original_source/src/secure/crypto.py's load_or_create_keys).
func LoadOrCreateKeys(dir, keyName string) (*Identity, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keys dir: %w", err)
	}
	skPath := filepath.Join(dir, keyName+skSuffix)
	pkPath := filepath.Join(dir, keyName+pkSuffix)

	seed, pub, err := readKeyPair(skPath, pkPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		var priv ed25519.PrivateKey
		pub, priv, err = ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("generate identity key: %w", err)
		}
		seed = priv.Seed()
		if err := writeKeyPair(skPath, pkPath, seed, pub); err != nil {
			return nil, fmt.Errorf("persist identity key: %w", err)
		}
	}

	return fromSeed(seed, pub)
}

// readKeyPair requires both files to exist; spec.md §4.1 treats a missing
// sk or pk as "doesn't exist yet" and regenerates the pair. The sk file
// holds only the 32-byte seed, matching original_source/src/secure/crypto.py
// ("bytes(sk)" on a PyNaCl SigningKey is its seed, not the expanded key).
func readKeyPair(skPath, pkPath string) ([]byte, ed25519.PublicKey, error) {
	skData, err := os.ReadFile(skPath)
	if err != nil {
		return nil, nil, err
	}
	pkData, err := os.ReadFile(pkPath)
	if err != nil {
		return nil, nil, err
	}

	seed, err := base64.StdEncoding.DecodeString(string(skData))
	if err != nil {
		return nil, nil, fmt.Errorf("decode key file %s: %w", skPath, err)
	}
	pub, err := base64.StdEncoding.DecodeString(string(pkData))
	if err != nil {
		return nil, nil, fmt.Errorf("decode key file %s: %w", pkPath, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, nil, fmt.Errorf("key file %s: bad seed length %d", skPath, len(seed))
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("key file %s: bad public key length %d", pkPath, len(pub))
	}
	return seed, ed25519.PublicKey(pub), nil
}

func writeKeyPair(skPath, pkPath string, seed []byte, pub ed25519.PublicKey) error {
	if err := os.WriteFile(skPath, []byte(base64.StdEncoding.EncodeToString(seed)), 0600); err != nil {
		return err
	}
	return os.WriteFile(pkPath, []byte(base64.StdEncoding.EncodeToString(pub)), 0600)
}

func fromSeed(seed []byte, pub ed25519.PublicKey) (*Identity, error) {
	priv := ed25519.NewKeyFromSeed(seed)
	if !pub.Equal(priv.Public().(ed25519.PublicKey)) {
		return nil, fmt.Errorf("key file mismatch: public key does not match seed")
	}

	agreePriv, err := deriveAgreementPrivate(priv)
	if err != nil {
		return nil, fmt.Errorf("derive agreement key: %w", err)
	}
	agreePub, err := deriveAgreementPublic(pub)
	if err != nil {
		return nil, fmt.Errorf("derive agreement public key: %w", err)
	}

	return &Identity{
		SignPub:       pub,
		signPriv:      priv,
		agreementPriv: agreePriv,
		agreementPub:  agreePub,
	}, nil
}

// deriveAgreementPrivate converts an Ed25519 private key into its X25519
// scalar per RFC 8032 §5.1.5: SHA-512 the 32-byte seed, then clamp.
func deriveAgreementPrivate(priv ed25519.PrivateKey) ([32]byte, error) {
	var out [32]byte
	if len(priv) != ed25519.PrivateKeySize {
		return out, fmt.Errorf("bad ed25519 private key length: %d", len(priv))
	}
	seed := priv.Seed()
	h := sha512.Sum512(seed)
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	copy(out[:], h[:32])
	return out, nil
}

// deriveAgreementPublic decompresses the Ed25519 point and projects it onto
// the birationally-equivalent Montgomery curve to obtain the X25519 public key.
func deriveAgreementPublic(pub ed25519.PublicKey) ([32]byte, error) {
	var out [32]byte
	if len(pub) != ed25519.PublicKeySize {
		return out, fmt.Errorf("bad ed25519 public key length: %d", len(pub))
	}
	p, err := new(edwards25519.Point).SetBytes(pub)
	if err != nil {
		return out, fmt.Errorf("invalid ed25519 point: %w", err)
	}
	copy(out[:], p.BytesMontgomery())
	return out, nil
}

// DeriveAgreementPublicFromSigning converts a peer's advertised Ed25519
// signing public key into its X25519 agreement key, so a session can be
// sealed to a peer before any transport-level exchange of a dedicated
// agreement key.
func DeriveAgreementPublicFromSigning(pub ed25519.PublicKey) ([32]byte, error) {
	return deriveAgreementPublic(pub)
}
