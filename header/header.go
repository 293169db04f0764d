// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package header defines the self-describing binary blocks that make up
// an xecrets container.
//
// A container starts with an 8-byte magic preamble, stored verbatim.
// Every other structural element is a block:
//
//	type    1 byte
//	length  4 bytes, little endian, the length of payload
//	payload length bytes
//
// Types with the Optional bit set may be ignored by readers that do not
// understand them; they are parsed as Unrecognized and written back
// verbatim. An unknown type without the Optional bit is a format
// error.
package header

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rescenic/xecrets-net/errors"
)

// NumMagicBytes is the size of the preamble.
const NumMagicBytes = 8

// Magic is stored in the first 8 bytes of every container.
var Magic = [NumMagicBytes]byte{0xc0, 0xb9, 0x07, 0x2e, 0x4f, 0x93, 0xf1, 0x46}

// FramingSize is the size of the type and length prefix of a block.
const FramingSize = 5

// MaxPayloadSize bounds the payload of a single block to avoid
// unreasonable allocations on malformed input.
const MaxPayloadSize = 1 << 26

// Type identifies a block.
type Type byte

// Optional marks block types that readers may skip.
const Optional Type = 0x80

const (
	TypeVersion           Type = 0x01
	TypePassphraseKeyWrap Type = 0x02
	TypeAsymmetricKeyWrap Type = 0x03
	TypeCompression       Type = 0x04
	TypeFileMetadata      Type = 0x05
	TypeIV                Type = 0x06
	TypeLengths           Type = 0x07
	TypeData              Type = 0x3e
	TypeEncryptedChunk    Type = 0x3f
	TypeHmac              Type = 0x40
)

var typeNames = map[Type]string{
	TypeVersion:           "Version",
	TypePassphraseKeyWrap: "PassphraseKeyWrap",
	TypeAsymmetricKeyWrap: "AsymmetricKeyWrap",
	TypeCompression:       "Compression",
	TypeFileMetadata:      "FileMetadata",
	TypeIV:                "IV",
	TypeLengths:           "Lengths",
	TypeData:              "Data",
	TypeEncryptedChunk:    "EncryptedChunk",
	TypeHmac:              "Hmac",
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%#02x)", byte(t))
}

// IsOptional tells whether readers may skip blocks of type t.
func (t Type) IsOptional() bool { return t&Optional != 0 }

// Block is a parsed header block.
type Block interface {
	// Type returns the block's type tag.
	Type() Type
	// Payload returns the serialized payload.
	Payload() []byte
}

// IsPatchable tells whether b is written as a placeholder whose
// payload is only known after the data region has been written. Such
// payloads are patched in place and authenticated after the data.
func IsPatchable(b Block) bool {
	switch b := b.(type) {
	case Lengths:
		return true
	case Data:
		return b.Sized
	}
	return false
}

// Marshal returns the framed encoding of b.
func Marshal(b Block) []byte {
	payload := b.Payload()
	buf := make([]byte, FramingSize+len(payload))
	buf[0] = byte(b.Type())
	binary.LittleEndian.PutUint32(buf[1:FramingSize], uint32(len(payload)))
	copy(buf[FramingSize:], payload)
	return buf
}

// WriteMagic writes the preamble to w.
func WriteMagic(w io.Writer) error {
	_, err := w.Write(Magic[:])
	return err
}

// ReadMagic reads and checks the preamble. A mismatch, or a stream too
// short to hold the preamble, is a format error.
func ReadMagic(r io.Reader) ([]byte, error) {
	var buf [NumMagicBytes]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.E(errors.Format, "missing preamble")
		}
		return nil, errors.E("reading preamble", err)
	}
	if buf != Magic {
		return nil, errors.E(errors.Format, "bad magic")
	}
	return buf[:], nil
}

// ReadFraming reads the type and length prefix of the next block. It
// returns io.EOF, unwrapped, if r is at end of stream.
func ReadFraming(r io.Reader) (Type, int, []byte, error) {
	framing := make([]byte, FramingSize)
	n, err := io.ReadFull(r, framing)
	switch {
	case err == io.EOF:
		return 0, 0, nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return 0, 0, nil, errors.E(errors.Format, fmt.Sprintf("truncated block framing (%d bytes)", n))
	case err != nil:
		return 0, 0, nil, errors.E("reading block", err)
	}
	length := binary.LittleEndian.Uint32(framing[1:])
	if length > MaxPayloadSize {
		return 0, 0, nil, errors.E(errors.Format, fmt.Sprintf("block length %d exceeds maximum", length))
	}
	return Type(framing[0]), int(length), framing, nil
}

// ReadBlock reads and parses the next block. It returns the parsed
// block and its raw framed bytes. io.EOF is returned, unwrapped, only
// if r is at end of stream.
func ReadBlock(r io.Reader) (Block, []byte, error) {
	t, length, framing, err := ReadFraming(r)
	if err != nil {
		return nil, nil, err
	}
	raw := make([]byte, FramingSize+length)
	copy(raw, framing)
	if _, err := io.ReadFull(r, raw[FramingSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil, errors.E(errors.Format, fmt.Sprintf("truncated %v block", t))
		}
		return nil, nil, errors.E("reading block", err)
	}
	b, err := Parse(t, raw[FramingSize:])
	if err != nil {
		return nil, nil, err
	}
	return b, raw, nil
}
