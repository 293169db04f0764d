// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package key

import (
	"github.com/google/uuid"
)

// Passphrase is a user secret. It is immutable once constructed.
type Passphrase struct {
	text string
}

// NewPassphrase returns a passphrase holding text.
func NewPassphrase(text string) Passphrase {
	return Passphrase{text: text}
}

// Text returns the passphrase as a string, for use by key derivation.
func (p Passphrase) Text() string { return p.text }

// Empty tells whether the passphrase is the empty string.
func (p Passphrase) Empty() bool { return p.text == "" }

// String implements fmt.Stringer without revealing the passphrase.
func (p Passphrase) String() string { return "key.Passphrase(redacted)" }

// GoString implements fmt.GoStringer without revealing the passphrase.
func (p Passphrase) GoString() string { return p.String() }

// DerivedKey is symmetric key material derived from a passphrase by the
// key derivation of the factory named by CryptoID.
type DerivedKey struct {
	CryptoID   uuid.UUID
	Key        SymmetricKey
	Salt       Salt
	Iterations int64
}

// Zero wipes the derived key material.
func (d *DerivedKey) Zero() {
	if d == nil {
		return
	}
	d.Key.Zero()
}
