// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package asym implements recipient key pairs for modern containers.
//
// A recipient is an ML-KEM-768 public key. The container's master key
// is wrapped for each recipient under a key encryption key derived
// with HKDF-SHA-512 from a freshly encapsulated shared secret; the KEM
// ciphertext is stored beside the wrapped key. ML-KEM decapsulation
// with the wrong private key yields an unrelated secret, so a key
// mismatch surfaces as a failed key unwrap.
package asym

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"golang.org/x/crypto/hkdf"
)

const (
	// PublicKeySize is the size of a marshaled public key.
	PublicKeySize = 1184
	// PrivateKeySize is the size of a marshaled private key.
	PrivateKeySize = 2400
	// EncapsulatedSize is the size of the KEM ciphertext stored per
	// recipient.
	EncapsulatedSize = 1088

	// The public key is embedded in the marshaled private key.
	publicKeyOffset = 1152

	publicPEMType  = "XECRETS PUBLIC KEY"
	privatePEMType = "XECRETS PRIVATE KEY"
)

var recipientInfo = []byte("xecrets:v2:recipient")

// PublicKey is a recipient's public key.
type PublicKey struct {
	pk kem.PublicKey
}

// PrivateKey is a recipient's private key.
type PrivateKey struct {
	sk kem.PrivateKey
}

// KeyPair is a recipient's key pair.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// GenerateKeyPair returns a new key pair. If rand is nil, crypto/rand
// is used.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	pk, sk, err := mlkem768.GenerateKeyPair(rand)
	if err != nil {
		return nil, errors.E("generating key pair", err)
	}
	return &KeyPair{Public: PublicKey{pk}, Private: PrivateKey{sk}}, nil
}

// ParsePublicKey decodes a marshaled public key.
func ParsePublicKey(b []byte) (PublicKey, error) {
	if len(b) != PublicKeySize {
		return PublicKey{}, errors.E(errors.Invalid, fmt.Sprintf("public key is %d bytes, want %d", len(b), PublicKeySize))
	}
	pk, err := mlkem768.Scheme().UnmarshalBinaryPublicKey(b)
	if err != nil {
		return PublicKey{}, errors.E(errors.Invalid, "public key", err)
	}
	return PublicKey{pk}, nil
}

// ParsePrivateKey decodes a marshaled private key.
func ParsePrivateKey(b []byte) (PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return PrivateKey{}, errors.E(errors.Invalid, fmt.Sprintf("private key is %d bytes, want %d", len(b), PrivateKeySize))
	}
	sk, err := mlkem768.Scheme().UnmarshalBinaryPrivateKey(b)
	if err != nil {
		return PrivateKey{}, errors.E(errors.Invalid, "private key", err)
	}
	return PrivateKey{sk}, nil
}

// Bytes returns the marshaled public key.
func (p PublicKey) Bytes() []byte {
	b, err := p.pk.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// Fingerprint returns a short hex identifier of the public key.
func (p PublicKey) Fingerprint() string {
	sum := sha256.Sum256(p.Bytes())
	return hex.EncodeToString(sum[:8])
}

// IsZero tells whether p holds no key.
func (p PublicKey) IsZero() bool { return p.pk == nil }

// Bytes returns the marshaled private key.
func (p PrivateKey) Bytes() []byte {
	b, err := p.sk.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// Public returns the public half of p.
func (p PrivateKey) Public() PublicKey {
	b := p.Bytes()
	pub, err := ParsePublicKey(b[publicKeyOffset : publicKeyOffset+PublicKeySize])
	key.Zero(b)
	if err != nil {
		panic(err)
	}
	return pub
}

// IsZero tells whether p holds no key.
func (p PrivateKey) IsZero() bool { return p.sk == nil }

// String implements fmt.Stringer without revealing the key.
func (p PrivateKey) String() string { return "asym.PrivateKey(redacted)" }

// MarshalPEM encodes the public key as a PEM block.
func (p PublicKey) MarshalPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: p.Bytes()})
}

// MarshalPEM encodes the private key as a PEM block.
func (p PrivateKey) MarshalPEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: p.Bytes()})
}

// ParsePublicPEM decodes a public key written by PublicKey.MarshalPEM.
func ParsePublicPEM(data []byte) (PublicKey, error) {
	b, err := decodePEM(data, publicPEMType)
	if err != nil {
		return PublicKey{}, err
	}
	return ParsePublicKey(b)
}

// ParsePrivatePEM decodes a private key written by
// PrivateKey.MarshalPEM.
func ParsePrivatePEM(data []byte) (PrivateKey, error) {
	b, err := decodePEM(data, privatePEMType)
	if err != nil {
		return PrivateKey{}, err
	}
	return ParsePrivateKey(b)
}

func decodePEM(data []byte, typ string) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.E(errors.Invalid, "no PEM data found")
	}
	if block.Type != typ {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("PEM type %q, want %q", block.Type, typ))
	}
	return block.Bytes, nil
}

// KeyWrapper wraps master keys under key encryption keys of its key
// size. The crypto factories of package encryption implement it.
type KeyWrapper interface {
	KeySize() int
	Wrap(kek key.DerivedKey, dataKey key.SymmetricKey) ([]byte, error)
	Unwrap(kek key.DerivedKey, wrapped []byte) (key.SymmetricKey, bool)
}

func deriveKEK(secret, encapsulated []byte, size int) (key.DerivedKey, error) {
	kek := make(key.SymmetricKey, size)
	if _, err := io.ReadFull(hkdf.New(sha512.New, secret, encapsulated, recipientInfo), kek); err != nil {
		return key.DerivedKey{}, errors.E(errors.Internal, "hkdf", err)
	}
	return key.DerivedKey{Key: kek}, nil
}

// WrapKey wraps dataKey for the holder of pub.
func WrapKey(pub PublicKey, w KeyWrapper, dataKey key.SymmetricKey) (header.AsymmetricKeyWrap, error) {
	if pub.IsZero() {
		return header.AsymmetricKeyWrap{}, errors.E(errors.Invalid, "empty public key")
	}
	encapsulated, secret, err := mlkem768.Scheme().Encapsulate(pub.pk)
	if err != nil {
		return header.AsymmetricKeyWrap{}, errors.E("encapsulating", err)
	}
	defer key.Zero(secret)
	kek, err := deriveKEK(secret, encapsulated, w.KeySize())
	if err != nil {
		return header.AsymmetricKeyWrap{}, err
	}
	defer kek.Zero()
	wrapped, err := w.Wrap(kek, dataKey)
	if err != nil {
		return header.AsymmetricKeyWrap{}, err
	}
	return header.AsymmetricKeyWrap{Encapsulated: encapsulated, Wrapped: wrapped}, nil
}

// UnwrapKey recovers the master key from b with priv. It returns false
// if b was not wrapped for priv.
func UnwrapKey(priv PrivateKey, w KeyWrapper, b header.AsymmetricKeyWrap) (key.SymmetricKey, bool) {
	if priv.IsZero() || len(b.Encapsulated) != EncapsulatedSize {
		return nil, false
	}
	secret, err := mlkem768.Scheme().Decapsulate(priv.sk, b.Encapsulated)
	if err != nil {
		return nil, false
	}
	defer key.Zero(secret)
	kek, err := deriveKEK(secret, b.Encapsulated, w.KeySize())
	if err != nil {
		return nil, false
	}
	defer kek.Zero()
	return w.Unwrap(kek, b.Wrapped)
}
