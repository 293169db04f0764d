// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rescenic/xecrets-net/compress"
	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/crypto/encryption"
	"github.com/rescenic/xecrets-net/crypto/iteration"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
)

// WriteChunkSize is the default plaintext chunk size, and the largest
// EncryptedChunk payload written to modern containers.
const WriteChunkSize = 64 << 10

// FileMetadata is the original name and times of the plaintext.
type FileMetadata = header.FileMetadata

// Policy holds the tunables of encryption.
type Policy struct {
	// Registry resolves format ids. Nil means encryption.Standard.
	Registry *encryption.Registry
	// ChunkSize is the plaintext chunk size. Each chunk is compressed
	// and flushed on its own, and ciphertext is framed in blocks of
	// at most ChunkSize bytes.
	ChunkSize int
	// CompressionLevel is the deflate level used WithCompression.
	CompressionLevel int
	// Clock is used to calibrate key derivation work factors.
	Clock func() time.Time
	// LegacyIterations and ModernIterations, when positive, override
	// the calibrated key wrap rounds and PBKDF2 iterations.
	LegacyIterations int64
	ModernIterations int64
}

// DefaultPolicy returns the policy used for new containers.
func DefaultPolicy() Policy {
	return Policy{
		Registry:         encryption.Standard,
		ChunkSize:        WriteChunkSize,
		CompressionLevel: compress.DefaultLevel,
		Clock:            time.Now,
	}
}

func (p Policy) registry() *encryption.Registry {
	if p.Registry == nil {
		return encryption.Standard
	}
	return p.Registry
}

func (p Policy) clock() func() time.Time {
	if p.Clock == nil {
		return time.Now
	}
	return p.Clock
}

var calibrated struct {
	sync.Mutex
	legacy, modern int64
}

// iterations returns the work factor for new key wraps of f.
// Calibration runs at most once per process and format generation.
func (p Policy) iterations(f encryption.Factory) int64 {
	if f.Legacy() && p.LegacyIterations > 0 {
		return p.LegacyIterations
	}
	if !f.Legacy() && p.ModernIterations > 0 {
		return p.ModernIterations
	}
	calibrated.Lock()
	defer calibrated.Unlock()
	if f.Legacy() {
		if calibrated.legacy == 0 {
			calibrated.legacy = iteration.V1KeyWrapIterations(p.clock())
		}
		return calibrated.legacy
	}
	if calibrated.modern == 0 {
		calibrated.modern = iteration.V2KeyDerivationIterations(p.clock())
	}
	return calibrated.modern
}

// Option selects how the plaintext is encoded.
type Option uint

const (
	// WithCompression deflates the plaintext before encryption.
	WithCompression Option = 1 << iota
	// WithoutCompression encrypts the plaintext as is.
	WithoutCompression
)

// Options control a single encryption. Flags must hold exactly one of
// WithCompression and WithoutCompression.
type Options struct {
	Flags Option
	// Progress, if not nil, is called after each chunk with the
	// number of plaintext bytes processed so far.
	Progress func(int64)
}

func (o Options) compressed() (bool, error) {
	switch o.Flags {
	case WithCompression:
		return true, nil
	case WithoutCompression:
		return false, nil
	default:
		return false, errors.E(errors.Invalid, "invalid options")
	}
}

// EncryptionParameters names the format and the keys of a new
// container. The zero CryptoID selects the registry's default format.
// Legacy formats accept a passphrase only.
type EncryptionParameters struct {
	CryptoID   uuid.UUID
	Passphrase *key.Passphrase
	Recipients []asym.PublicKey
	Metadata   FileMetadata
}

func (p Policy) factory(params EncryptionParameters) (encryption.Factory, error) {
	reg := p.registry()
	var (
		f   encryption.Factory
		err error
	)
	if params.CryptoID == uuid.Nil {
		f, err = reg.Default()
	} else {
		f, err = reg.Create(params.CryptoID)
	}
	if err != nil {
		return nil, err
	}
	switch {
	case params.Passphrase == nil && len(params.Recipients) == 0:
		return nil, errors.E(errors.Invalid, "no passphrase or recipients")
	case params.Passphrase != nil && params.Passphrase.Empty():
		return nil, errors.E(errors.Invalid, "empty passphrase")
	case f.Legacy() && len(params.Recipients) > 0:
		return nil, errors.E(errors.Invalid, "legacy format does not support recipients")
	case f.Legacy() && params.Passphrase == nil:
		return nil, errors.E(errors.Invalid, "legacy format requires a passphrase")
	}
	return f, nil
}
