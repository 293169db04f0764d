// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha512"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/crypto/keywrap"
	"github.com/rescenic/xecrets-net/errors"
	"golang.org/x/crypto/pbkdf2"
)

// Format ids of the built-in factories.
var (
	V1AES128 = uuid.MustParse("1673be6b-8a4b-4b8b-9d24-8e1f0c6a2a10")
	V2AES128 = uuid.MustParse("2b0cbb1e-56f1-4c31-9a49-3a4f8d2c7e21")
	V2AES256 = uuid.MustParse("e20a0b8d-5c0a-4f43-8a1e-0b5a3f7a9c32")
)

// Factory is a format generation's cryptography: its block cipher,
// passphrase key derivation and master key wrap.
type Factory interface {
	// ID returns the format id of the factory.
	ID() uuid.UUID
	// Name returns a short human readable name.
	Name() string
	// Priority orders factories; the highest priority non-legacy
	// factory is the default for new containers.
	Priority() int
	// KeySize returns the size, in bytes, of master and key
	// encryption keys.
	KeySize() int
	// Legacy tells whether the factory belongs to the legacy format.
	Legacy() bool
	// NewDerivedKey derives a key encryption key from a passphrase
	// using a fresh random salt and the given work factor.
	NewDerivedKey(p key.Passphrase, iterations int64) (key.DerivedKey, error)
	// RestoreDerivedKey re-derives a key encryption key from a
	// passphrase and the salt and work factor stored in a container.
	RestoreDerivedKey(p key.Passphrase, salt key.Salt, iterations int64) (key.DerivedKey, error)
	// Wrap wraps the master key dataKey under kek.
	Wrap(kek key.DerivedKey, dataKey key.SymmetricKey) ([]byte, error)
	// Unwrap recovers a master key wrapped under kek. It returns
	// false if kek is not the key the master key was wrapped under.
	Unwrap(kek key.DerivedKey, wrapped []byte) (key.SymmetricKey, bool)
	// NewBlock returns the block cipher keyed by k.
	NewBlock(k key.SymmetricKey) (cipher.Block, error)
}

var (
	v1AES128 = &v1Factory{}
	v2AES128 = &v2Factory{id: V2AES128, name: "AES-128", keySize: 16, priority: 100}
	v2AES256 = &v2Factory{id: V2AES256, name: "AES-256", keySize: 32, priority: 200}
)

func newBlock(k key.SymmetricKey, size int) (cipher.Block, error) {
	if k.Len() != size {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("key is %d bytes, want %d", k.Len(), size))
	}
	return aes.NewCipher(k)
}

func checkIterations(iterations int64) error {
	if iterations < 1 || iterations > math.MaxUint32 {
		return errors.E(errors.Invalid, fmt.Sprintf("iteration count %d out of range", iterations))
	}
	return nil
}

// v1Factory derives the legacy key encryption key from the SHA-1
// hash of the passphrase XORed with the salt. The work factor is the
// number of key wrap rounds.
type v1Factory struct{}

func (*v1Factory) ID() uuid.UUID { return V1AES128 }
func (*v1Factory) Name() string  { return "AES-128-V1" }
func (*v1Factory) Priority() int { return 0 }
func (*v1Factory) KeySize() int  { return 16 }
func (*v1Factory) Legacy() bool  { return true }

func (f *v1Factory) NewDerivedKey(p key.Passphrase, iterations int64) (key.DerivedKey, error) {
	salt, err := key.NewRandomSalt(key.LegacySaltSize)
	if err != nil {
		return key.DerivedKey{}, err
	}
	return f.RestoreDerivedKey(p, salt, iterations)
}

func (f *v1Factory) RestoreDerivedKey(p key.Passphrase, salt key.Salt, iterations int64) (key.DerivedKey, error) {
	if salt.Len() != key.LegacySaltSize {
		return key.DerivedKey{}, errors.E(errors.Invalid, fmt.Sprintf("legacy salt is %d bytes", salt.Len()))
	}
	if err := checkIterations(iterations); err != nil {
		return key.DerivedKey{}, err
	}
	sum := sha1.Sum([]byte(p.Text()))
	kek := make(key.SymmetricKey, 16)
	for i := range kek {
		kek[i] = sum[i] ^ salt[i]
	}
	key.Zero(sum[:])
	return key.DerivedKey{CryptoID: V1AES128, Key: kek, Salt: key.Salt(salt.Bytes()), Iterations: iterations}, nil
}

func (f *v1Factory) Wrap(kek key.DerivedKey, dataKey key.SymmetricKey) ([]byte, error) {
	block, err := newBlock(kek.Key, 16)
	if err != nil {
		return nil, err
	}
	if dataKey.Len() != 16 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("legacy master key is %d bytes", dataKey.Len()))
	}
	return keywrap.Wrap(block, dataKey, int(kek.Iterations))
}

func (f *v1Factory) Unwrap(kek key.DerivedKey, wrapped []byte) (key.SymmetricKey, bool) {
	return unwrap(kek, wrapped, 16, int(kek.Iterations))
}

func (f *v1Factory) NewBlock(k key.SymmetricKey) (cipher.Block, error) { return newBlock(k, 16) }

// v2Factory derives key encryption keys with PBKDF2-HMAC-SHA512 and
// wraps with the standard RFC 3394 round count.
type v2Factory struct {
	id       uuid.UUID
	name     string
	keySize  int
	priority int
}

func (f *v2Factory) ID() uuid.UUID { return f.id }
func (f *v2Factory) Name() string  { return f.name }
func (f *v2Factory) Priority() int { return f.priority }
func (f *v2Factory) KeySize() int  { return f.keySize }
func (f *v2Factory) Legacy() bool  { return false }

func (f *v2Factory) NewDerivedKey(p key.Passphrase, iterations int64) (key.DerivedKey, error) {
	salt, err := key.NewRandomSalt(key.SaltSize)
	if err != nil {
		return key.DerivedKey{}, err
	}
	return f.RestoreDerivedKey(p, salt, iterations)
}

func (f *v2Factory) RestoreDerivedKey(p key.Passphrase, salt key.Salt, iterations int64) (key.DerivedKey, error) {
	if salt.Len() == 0 {
		return key.DerivedKey{}, errors.E(errors.Invalid, "empty salt")
	}
	if err := checkIterations(iterations); err != nil {
		return key.DerivedKey{}, err
	}
	kek := pbkdf2.Key([]byte(p.Text()), salt, int(iterations), f.keySize, sha512.New)
	return key.DerivedKey{CryptoID: f.id, Key: kek, Salt: key.Salt(salt.Bytes()), Iterations: iterations}, nil
}

func (f *v2Factory) Wrap(kek key.DerivedKey, dataKey key.SymmetricKey) ([]byte, error) {
	block, err := newBlock(kek.Key, f.keySize)
	if err != nil {
		return nil, err
	}
	if dataKey.Len() != f.keySize {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("master key is %d bytes, want %d", dataKey.Len(), f.keySize))
	}
	return keywrap.Wrap(block, dataKey, keywrap.StandardRounds)
}

func (f *v2Factory) Unwrap(kek key.DerivedKey, wrapped []byte) (key.SymmetricKey, bool) {
	return unwrap(kek, wrapped, f.keySize, keywrap.StandardRounds)
}

func (f *v2Factory) NewBlock(k key.SymmetricKey) (cipher.Block, error) { return newBlock(k, f.keySize) }

// unwrap treats every failure as a key mismatch: the wrapped length
// has been validated by the header parser, so the only way to fail
// is to hold the wrong key.
func unwrap(kek key.DerivedKey, wrapped []byte, size, rounds int) (key.SymmetricKey, bool) {
	if kek.Key.Len() != size || len(wrapped) != size+8 || rounds < 1 {
		return nil, false
	}
	block, err := aes.NewCipher(kek.Key)
	if err != nil {
		return nil, false
	}
	plain, ok, err := keywrap.Unwrap(block, wrapped, rounds)
	if err != nil || !ok {
		return nil, false
	}
	return key.SymmetricKey(plain), true
}
