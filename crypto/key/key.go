// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package key defines the fixed-size value types used by the document
// engine: symmetric keys, initialization vectors, salts and HMAC tags.
//
// All types are byte slices with value semantics by convention: Bytes
// returns a copy, Equal compares in constant time and Zero wipes the
// backing array. Key material is never rendered by String.
package key

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/rescenic/xecrets-net/errors"
)

const (
	// IVSize is the size of an AES initialization vector.
	IVSize = 16
	// HmacSize is the size of an HMAC-SHA-512 tag.
	HmacSize = 64
	// LegacySaltSize is the size of the salt used by legacy key wraps.
	LegacySaltSize = 16
	// SaltSize is the size of the salt used by modern key derivation.
	SaltSize = 32
)

var randomSource io.Reader = rand.Reader

// SetRandSource sets the source of random numbers to be used and is
// intended primarily for testing purposes. It returns the previous
// source.
func SetRandSource(rd io.Reader) io.Reader {
	old := randomSource
	randomSource = rd
	return old
}

// Random returns n bytes read from the package random source.
func Random(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randomSource, b); err != nil {
		return nil, errors.E(fmt.Sprintf("failed to read %d bytes of random data", n), err)
	}
	return b, nil
}

// SymmetricKey is an AES key of 16 or 32 bytes.
type SymmetricKey []byte

// NewRandomKey returns a fresh random key of n bytes.
func NewRandomKey(n int) (SymmetricKey, error) {
	if n != 16 && n != 32 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("key size %d", n))
	}
	b, err := Random(n)
	return SymmetricKey(b), err
}

// Bytes returns a copy of the key material.
func (k SymmetricKey) Bytes() []byte { return clone(k) }

// Len returns the key size in bytes.
func (k SymmetricKey) Len() int { return len(k) }

// Equal tells whether k and other hold the same key, in constant time.
func (k SymmetricKey) Equal(other SymmetricKey) bool { return equal(k, other) }

// Zero overwrites the key material.
func (k SymmetricKey) Zero() { zero(k) }

// String implements fmt.Stringer without revealing the key.
func (k SymmetricKey) String() string {
	return fmt.Sprintf("key.SymmetricKey(%d bytes)", len(k))
}

// GoString implements fmt.GoStringer so %#v does not reveal the key either.
func (k SymmetricKey) GoString() string { return k.String() }

// IV is an AES initialization vector.
type IV []byte

// NewRandomIV returns a fresh random IV.
func NewRandomIV() (IV, error) {
	b, err := Random(IVSize)
	return IV(b), err
}

// Bytes returns a copy of the IV.
func (iv IV) Bytes() []byte { return clone(iv) }

// Len returns the IV size in bytes.
func (iv IV) Len() int { return len(iv) }

// Equal tells whether iv and other are equal, in constant time.
func (iv IV) Equal(other IV) bool { return equal(iv, other) }

// String returns the hex encoding of the IV.
func (iv IV) String() string { return hex.EncodeToString(iv) }

// Salt is a key derivation salt.
type Salt []byte

// NewRandomSalt returns a fresh random salt of n bytes.
func NewRandomSalt(n int) (Salt, error) {
	b, err := Random(n)
	return Salt(b), err
}

// Bytes returns a copy of the salt.
func (s Salt) Bytes() []byte { return clone(s) }

// Len returns the salt size in bytes.
func (s Salt) Len() int { return len(s) }

// Equal tells whether s and other are equal, in constant time.
func (s Salt) Equal(other Salt) bool { return equal(s, other) }

// String returns the hex encoding of the salt.
func (s Salt) String() string { return hex.EncodeToString(s) }

// Hmac is an HMAC-SHA-512 authentication tag.
type Hmac []byte

// Bytes returns a copy of the tag.
func (h Hmac) Bytes() []byte { return clone(h) }

// Len returns the tag size in bytes.
func (h Hmac) Len() int { return len(h) }

// Equal tells whether h and other are the same tag, in constant time.
// Tags of different length never compare equal.
func (h Hmac) Equal(other Hmac) bool { return equal(h, other) }

// String returns the hex encoding of the tag.
func (h Hmac) String() string { return hex.EncodeToString(h) }

// Zero wipes b. It is used for transient buffers that held key material.
func Zero(b []byte) { zero(b) }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func equal(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
