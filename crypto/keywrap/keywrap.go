// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package keywrap implements the AES key wrap algorithm of RFC 3394
// with a configurable number of wrap rounds. Six rounds yield the
// standard algorithm; legacy containers store a larger round count
// that doubles as the key-wrap work factor.
package keywrap

import (
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/rescenic/xecrets-net/errors"
)

// StandardRounds is the round count defined by RFC 3394.
const StandardRounds = 6

// DefaultIV is the RFC 3394 integrity check value.
var DefaultIV = [8]byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

// Wrap wraps plain, a multiple of 8 bytes and at least 16, with the
// key encryption cipher kek. The result is 8 bytes longer than plain.
func Wrap(kek cipher.Block, plain []byte, rounds int) ([]byte, error) {
	if kek.BlockSize() != 16 {
		return nil, errors.E(errors.Invalid, "keywrap: cipher block size must be 16")
	}
	if len(plain) < 16 || len(plain)%8 != 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("keywrap: cannot wrap %d bytes", len(plain)))
	}
	if rounds < 1 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("keywrap: %d rounds", rounds))
	}
	n := len(plain) / 8
	out := make([]byte, 8+len(plain))
	copy(out, DefaultIV[:])
	copy(out[8:], plain)
	var b [16]byte
	for j := 0; j < rounds; j++ {
		for i := 1; i <= n; i++ {
			copy(b[:8], out[:8])
			copy(b[8:], out[8*i:8*i+8])
			kek.Encrypt(b[:], b[:])
			xorCounter(b[:8], uint64(n*j+i))
			copy(out[:8], b[:8])
			copy(out[8*i:], b[8:])
		}
	}
	return out, nil
}

// Unwrap reverses Wrap. It reports ok=false, and never an error, when
// the integrity check value does not match, which is how a wrong key
// encryption key is detected.
func Unwrap(kek cipher.Block, wrapped []byte, rounds int) (plain []byte, ok bool, err error) {
	if kek.BlockSize() != 16 {
		return nil, false, errors.E(errors.Invalid, "keywrap: cipher block size must be 16")
	}
	if len(wrapped) < 24 || len(wrapped)%8 != 0 {
		return nil, false, errors.E(errors.Format, fmt.Sprintf("keywrap: cannot unwrap %d bytes", len(wrapped)))
	}
	if rounds < 1 {
		return nil, false, errors.E(errors.Invalid, fmt.Sprintf("keywrap: %d rounds", rounds))
	}
	n := len(wrapped)/8 - 1
	buf := make([]byte, len(wrapped))
	copy(buf, wrapped)
	var b [16]byte
	for j := rounds - 1; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			copy(b[:8], buf[:8])
			xorCounter(b[:8], uint64(n*j+i))
			copy(b[8:], buf[8*i:8*i+8])
			kek.Decrypt(b[:], b[:])
			copy(buf[:8], b[:8])
			copy(buf[8*i:], b[8:])
		}
	}
	for i := range b {
		b[i] = 0
	}
	if subtle.ConstantTimeCompare(buf[:8], DefaultIV[:]) != 1 {
		for i := range buf {
			buf[i] = 0
		}
		return nil, false, nil
	}
	return buf[8:], true, nil
}

func xorCounter(a []byte, t uint64) {
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], t)
	for k := range tb {
		a[k] ^= tb[k]
	}
}
