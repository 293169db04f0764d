// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package header

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
)

// Engine is the format generation a container belongs to.
type Engine int

const (
	// EngineLegacy denotes containers with major versions 1 to 3.
	EngineLegacy Engine = iota + 1
	// EngineModern denotes containers with major version 4.
	EngineModern
)

// String implements fmt.Stringer.
func (e Engine) String() string {
	switch e {
	case EngineLegacy:
		return "legacy"
	case EngineModern:
		return "modern"
	default:
		return fmt.Sprintf("Engine(%d)", int(e))
	}
}

// Version numbers written by this package.
const (
	LegacyMajor = 3
	LegacyMinor = 2
	ModernMajor = 4
	ModernMinor = 0
)

// TooNew is the message of errors for containers written by a newer
// format version.
const TooNew = "file format too new, upgrade required"

// Version carries the format version of a container.
type Version struct {
	Major, Minor byte
	Flags        byte
}

func (Version) Type() Type        { return TypeVersion }
func (v Version) Payload() []byte { return []byte{v.Major, v.Minor, v.Flags} }

// Engine returns the format generation selected by the major version.
// Versions newer than this package understands are Format errors
// asking for an upgrade.
func (v Version) Engine() (Engine, error) {
	switch {
	case v.Major == 0:
		return 0, errors.E(errors.Format, "version 0")
	case v.Major <= LegacyMajor:
		return EngineLegacy, nil
	case v.Major == ModernMajor:
		return EngineModern, nil
	default:
		return 0, errors.E(errors.Format, fmt.Sprintf("%s: version %d.%d", TooNew, v.Major, v.Minor))
	}
}

// PassphraseKeyWrap holds the master key wrapped under a key derived
// from a passphrase, with the derivation parameters.
type PassphraseKeyWrap struct {
	Salt       key.Salt
	Iterations uint32
	Wrapped    []byte
}

func (PassphraseKeyWrap) Type() Type { return TypePassphraseKeyWrap }

func (p PassphraseKeyWrap) Payload() []byte {
	buf := make([]byte, 1+len(p.Salt)+4+len(p.Wrapped))
	buf[0] = byte(len(p.Salt))
	n := 1 + copy(buf[1:], p.Salt)
	binary.LittleEndian.PutUint32(buf[n:], p.Iterations)
	copy(buf[n+4:], p.Wrapped)
	return buf
}

// AsymmetricKeyWrap holds the master key wrapped for one recipient:
// a KEM ciphertext and the master key wrapped under the key derived
// from the encapsulated secret.
type AsymmetricKeyWrap struct {
	Encapsulated []byte
	Wrapped      []byte
}

func (AsymmetricKeyWrap) Type() Type { return TypeAsymmetricKeyWrap }

func (a AsymmetricKeyWrap) Payload() []byte {
	buf := make([]byte, 2+len(a.Encapsulated)+len(a.Wrapped))
	binary.LittleEndian.PutUint16(buf, uint16(len(a.Encapsulated)))
	n := 2 + copy(buf[2:], a.Encapsulated)
	copy(buf[n:], a.Wrapped)
	return buf
}

// Compression tells whether the plaintext was deflated before
// encryption.
type Compression struct {
	Compressed bool
}

func (Compression) Type() Type { return TypeCompression }

func (c Compression) Payload() []byte {
	if c.Compressed {
		return []byte{1}
	}
	return []byte{0}
}

// FileMetadata carries the original name and times of the plaintext.
type FileMetadata struct {
	Name                        string
	Created, Accessed, Modified time.Time
}

func (FileMetadata) Type() Type { return TypeFileMetadata }

func (m FileMetadata) Payload() []byte {
	buf := make([]byte, 24+len(m.Name))
	putTime(buf[0:], m.Created)
	putTime(buf[8:], m.Accessed)
	putTime(buf[16:], m.Modified)
	copy(buf[24:], m.Name)
	return buf
}

func putTime(b []byte, t time.Time) {
	var v int64
	if !t.IsZero() {
		v = t.UnixNano()
	}
	binary.LittleEndian.PutUint64(b, uint64(v))
}

func getTime(b []byte) time.Time {
	v := int64(binary.LittleEndian.Uint64(b))
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}

// IV is the initialization vector of the data cipher.
type IV struct {
	IV key.IV
}

func (IV) Type() Type        { return TypeIV }
func (b IV) Payload() []byte { return b.IV.Bytes() }

// Lengths records the plaintext length and the length after
// compression. It is patched once the data region is written.
type Lengths struct {
	Plaintext, Compressed int64
}

func (Lengths) Type() Type { return TypeLengths }

func (l Lengths) Payload() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, uint64(l.Plaintext))
	binary.LittleEndian.PutUint64(buf[8:], uint64(l.Compressed))
	return buf
}

// Data marks the end of the header blocks. In legacy containers it
// carries the length of the raw ciphertext that follows, and is
// patched; in modern containers it is an empty marker followed by
// EncryptedChunk blocks.
type Data struct {
	Sized            bool
	CiphertextLength int64
}

func (Data) Type() Type { return TypeData }

func (d Data) Payload() []byte {
	if !d.Sized {
		return nil
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(d.CiphertextLength))
	return buf
}

// EncryptedChunk frames a piece of ciphertext in modern containers.
type EncryptedChunk struct {
	Ciphertext []byte
}

func (EncryptedChunk) Type() Type        { return TypeEncryptedChunk }
func (c EncryptedChunk) Payload() []byte { return c.Ciphertext }

// Hmac is the authentication tag trailer.
type Hmac struct {
	Hmac key.Hmac
}

func (Hmac) Type() Type        { return TypeHmac }
func (h Hmac) Payload() []byte { return h.Hmac.Bytes() }

// Unrecognized is an optional block of a type this package does not
// understand. It is preserved verbatim.
type Unrecognized struct {
	T    Type
	Data []byte
}

func (u Unrecognized) Type() Type      { return u.T }
func (u Unrecognized) Payload() []byte { return u.Data }

func badLength(t Type, n int) error {
	return errors.E(errors.Format, fmt.Sprintf("%v block with %d byte payload", t, n))
}

// Parse decodes the payload of a block of type t.
func Parse(t Type, p []byte) (Block, error) {
	switch t {
	case TypeVersion:
		if len(p) != 3 {
			return nil, badLength(t, len(p))
		}
		return Version{Major: p[0], Minor: p[1], Flags: p[2]}, nil
	case TypePassphraseKeyWrap:
		if len(p) < 1 {
			return nil, badLength(t, len(p))
		}
		saltLen := int(p[0])
		if saltLen == 0 || len(p) < 1+saltLen+4+24 || (len(p)-1-saltLen-4)%8 != 0 {
			return nil, badLength(t, len(p))
		}
		return PassphraseKeyWrap{
			Salt:       key.Salt(clone(p[1 : 1+saltLen])),
			Iterations: binary.LittleEndian.Uint32(p[1+saltLen:]),
			Wrapped:    clone(p[1+saltLen+4:]),
		}, nil
	case TypeAsymmetricKeyWrap:
		if len(p) < 2 {
			return nil, badLength(t, len(p))
		}
		encLen := int(binary.LittleEndian.Uint16(p))
		if encLen == 0 || len(p) < 2+encLen+24 || (len(p)-2-encLen)%8 != 0 {
			return nil, badLength(t, len(p))
		}
		return AsymmetricKeyWrap{
			Encapsulated: clone(p[2 : 2+encLen]),
			Wrapped:      clone(p[2+encLen:]),
		}, nil
	case TypeCompression:
		if len(p) != 1 || p[0] > 1 {
			return nil, errors.E(errors.Format, "bad compression block")
		}
		return Compression{Compressed: p[0] == 1}, nil
	case TypeFileMetadata:
		if len(p) < 24 {
			return nil, badLength(t, len(p))
		}
		return FileMetadata{
			Created:  getTime(p[0:]),
			Accessed: getTime(p[8:]),
			Modified: getTime(p[16:]),
			Name:     string(p[24:]),
		}, nil
	case TypeIV:
		if len(p) != key.IVSize {
			return nil, badLength(t, len(p))
		}
		return IV{IV: key.IV(clone(p))}, nil
	case TypeLengths:
		if len(p) != 16 {
			return nil, badLength(t, len(p))
		}
		l := Lengths{
			Plaintext:  int64(binary.LittleEndian.Uint64(p)),
			Compressed: int64(binary.LittleEndian.Uint64(p[8:])),
		}
		if l.Plaintext < 0 || l.Compressed < 0 {
			return nil, errors.E(errors.Format, "negative length")
		}
		return l, nil
	case TypeData:
		switch len(p) {
		case 0:
			return Data{}, nil
		case 8:
			n := int64(binary.LittleEndian.Uint64(p))
			if n < 0 {
				return nil, errors.E(errors.Format, "negative ciphertext length")
			}
			return Data{Sized: true, CiphertextLength: n}, nil
		default:
			return nil, badLength(t, len(p))
		}
	case TypeEncryptedChunk:
		return EncryptedChunk{Ciphertext: clone(p)}, nil
	case TypeHmac:
		if len(p) != key.HmacSize {
			return nil, badLength(t, len(p))
		}
		return Hmac{Hmac: key.Hmac(clone(p))}, nil
	}
	if t.IsOptional() {
		return Unrecognized{T: t, Data: clone(p)}, nil
	}
	return nil, errors.E(errors.Format, fmt.Sprintf("unrecognized block type %v", t))
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
