// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"crypto/aes"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/crypto/encryption"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"golang.org/x/crypto/hkdf"
)

// Candidate is a key to try against a container: a passphrase or a
// private key, and the format id to interpret it with.
type Candidate struct {
	CryptoID   uuid.UUID
	Passphrase *key.Passphrase
	PrivateKey *asym.PrivateKey
}

// PassphraseCandidate returns a candidate for passphrase p in format id.
func PassphraseCandidate(p key.Passphrase, id uuid.UUID) Candidate {
	return Candidate{CryptoID: id, Passphrase: &p}
}

// KeyCandidate returns a candidate for private key k in format id.
func KeyCandidate(k asym.PrivateKey, id uuid.UUID) Candidate {
	return Candidate{CryptoID: id, PrivateKey: &k}
}

// fields are the parsed header blocks of a container.
type fields struct {
	engine       header.Engine
	version      header.Version
	passphrase   *header.PassphraseKeyWrap
	recipients   []header.AsymmetricKeyWrap
	compressed   bool
	metadata     FileMetadata
	iv           key.IV
	lengths      header.Lengths
	unrecognized int
}

func parseFields(engine header.Engine, blocks []header.Block) (fields, error) {
	f := fields{engine: engine}
	seen := make(map[header.Type]bool)
	for _, b := range blocks {
		t := b.Type()
		if _, ok := b.(header.Unrecognized); ok {
			f.unrecognized++
			continue
		}
		if t != header.TypeAsymmetricKeyWrap && seen[t] {
			return fields{}, errors.E(errors.Format, fmt.Sprintf("duplicate %v block", t))
		}
		seen[t] = true
		switch b := b.(type) {
		case header.Version:
			f.version = b
		case header.PassphraseKeyWrap:
			if b.Iterations == 0 {
				return fields{}, errors.E(errors.Format, "zero key derivation iterations")
			}
			f.passphrase = &b
		case header.AsymmetricKeyWrap:
			f.recipients = append(f.recipients, b)
		case header.Compression:
			f.compressed = b.Compressed
		case header.FileMetadata:
			f.metadata = b
		case header.IV:
			f.iv = b.IV
		case header.Lengths:
			f.lengths = b
		default:
			return fields{}, errors.E(errors.Format, fmt.Sprintf("unexpected %v block", t))
		}
	}
	switch {
	case !seen[header.TypeVersion]:
		return fields{}, errors.E(errors.Format, "missing version block")
	case f.iv == nil:
		return fields{}, errors.E(errors.Format, "missing iv block")
	case !seen[header.TypeLengths]:
		return fields{}, errors.E(errors.Format, "missing lengths block")
	case f.passphrase == nil && len(f.recipients) == 0:
		return fields{}, errors.E(errors.Format, "no key wrap block")
	}
	if engine == header.EngineLegacy {
		switch {
		case len(f.recipients) > 0:
			return fields{}, errors.E(errors.Format, "recipient key wrap in legacy container")
		case f.passphrase == nil:
			return fields{}, errors.E(errors.Format, "legacy container without passphrase key wrap")
		case f.passphrase.Salt.Len() != key.LegacySaltSize || len(f.passphrase.Wrapped) != 16+8:
			return fields{}, errors.E(errors.Format, "malformed legacy key wrap")
		}
	}
	return f, nil
}

// headers is the keyed view of a container's header blocks. load
// unwraps the master key with a candidate and derives the subkeys.
// Each call resets previous state, and a failed load leaves no key
// material behind.
type headers interface {
	load(f encryption.Factory, k Candidate) (bool, error)
	hmacSubkey() key.SymmetricKey
	dataSubkey() key.SymmetricKey
	parsed() *fields
	zero()
}

func newHeaders(f fields) headers {
	if f.engine == header.EngineLegacy {
		return &headersV1{keyed: keyed{f: f}}
	}
	return &headersV2{keyed: keyed{f: f}}
}

type keyed struct {
	f                fields
	hmacKey, dataKey key.SymmetricKey
}

func (h *keyed) parsed() *fields { return &h.f }

// hmacSubkey returns nil unless the headers are loaded.
func (h *keyed) hmacSubkey() key.SymmetricKey { return h.hmacKey }

// dataSubkey returns nil unless the headers are loaded.
func (h *keyed) dataSubkey() key.SymmetricKey { return h.dataKey }

func (h *keyed) zero() {
	h.hmacKey.Zero()
	h.dataKey.Zero()
	h.hmacKey, h.dataKey = nil, nil
}

func (h *keyed) unwrapPassphrase(f encryption.Factory, p key.Passphrase) (key.SymmetricKey, bool, error) {
	w := h.f.passphrase
	if w == nil {
		return nil, false, nil
	}
	kek, err := f.RestoreDerivedKey(p, w.Salt, int64(w.Iterations))
	if err != nil {
		return nil, false, err
	}
	defer kek.Zero()
	master, ok := f.Unwrap(kek, w.Wrapped)
	return master, ok, nil
}

// headersV1 are the headers of a legacy container. Only passphrases
// can open them.
type headersV1 struct{ keyed }

func (h *headersV1) load(f encryption.Factory, k Candidate) (bool, error) {
	h.zero()
	if !f.Legacy() || k.Passphrase == nil {
		return false, nil
	}
	master, ok, err := h.unwrapPassphrase(f, *k.Passphrase)
	if !ok || err != nil {
		return false, err
	}
	defer master.Zero()
	if h.hmacKey, h.dataKey, err = legacySubkeys(master); err != nil {
		h.zero()
		return false, err
	}
	return true, nil
}

// headersV2 are the headers of a modern container, which may be
// opened with a passphrase or with the private key of any recipient.
type headersV2 struct{ keyed }

func (h *headersV2) load(f encryption.Factory, k Candidate) (bool, error) {
	h.zero()
	if f.Legacy() {
		return false, nil
	}
	var (
		master key.SymmetricKey
		ok     bool
		err    error
	)
	if k.Passphrase != nil {
		if master, ok, err = h.unwrapPassphrase(f, *k.Passphrase); err != nil {
			return false, err
		}
	}
	if !ok && k.PrivateKey != nil {
		for _, b := range h.f.recipients {
			if master, ok = asym.UnwrapKey(*k.PrivateKey, f, b); ok {
				break
			}
		}
	}
	if !ok {
		return false, nil
	}
	defer master.Zero()
	if h.hmacKey, h.dataKey, err = modernSubkeys(master, f.KeySize()); err != nil {
		h.zero()
		return false, err
	}
	return true, nil
}

var (
	legacyHmacLabel = [aes.BlockSize]byte{'x', 'e', 'c', 'r', 'e', 't', 's', ' ', 'h', 'm', 'a', 'c', ' ', 'k', 'e', 'y'}
	legacyDataLabel = [aes.BlockSize]byte{'x', 'e', 'c', 'r', 'e', 't', 's', ' ', 'd', 'a', 't', 'a', ' ', 'k', 'e', 'y'}

	modernHmacInfo = []byte("xecrets:v2:hmac")
	modernDataInfo = []byte("xecrets:v2:data")
)

// modernHmacKeySize matches the block size of SHA-512.
const modernHmacKeySize = 64

// legacySubkeys encrypts the two label blocks under the master key.
func legacySubkeys(master key.SymmetricKey) (hmacKey, dataKey key.SymmetricKey, err error) {
	block, err := aes.NewCipher(master)
	if err != nil {
		return nil, nil, errors.E(errors.Invalid, "legacy master key", err)
	}
	hmacKey = make(key.SymmetricKey, aes.BlockSize)
	dataKey = make(key.SymmetricKey, aes.BlockSize)
	block.Encrypt(hmacKey, legacyHmacLabel[:])
	block.Encrypt(dataKey, legacyDataLabel[:])
	return hmacKey, dataKey, nil
}

// modernSubkeys expands the master key with HKDF-SHA-512.
func modernSubkeys(master key.SymmetricKey, size int) (hmacKey, dataKey key.SymmetricKey, err error) {
	hmacKey = make(key.SymmetricKey, modernHmacKeySize)
	if _, err := io.ReadFull(hkdf.New(sha512.New, master, nil, modernHmacInfo), hmacKey); err != nil {
		return nil, nil, errors.E(errors.Internal, "hkdf", err)
	}
	dataKey = make(key.SymmetricKey, size)
	if _, err := io.ReadFull(hkdf.New(sha512.New, master, nil, modernDataInfo), dataKey); err != nil {
		hmacKey.Zero()
		return nil, nil, errors.E(errors.Internal, "hkdf", err)
	}
	return hmacKey, dataKey, nil
}
