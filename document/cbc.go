// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"crypto/cipher"
	"crypto/subtle"
	"io"

	"github.com/rescenic/xecrets-net/errors"
)

const readBufferSize = 32 << 10

// cbcSealer encrypts whole blocks as they become available and pads
// the final block on Close.
type cbcSealer struct {
	mode    cipher.BlockMode
	w       io.Writer
	pending []byte
}

func newCBCSealer(mode cipher.BlockMode, w io.Writer) *cbcSealer {
	return &cbcSealer{mode: mode, w: w}
}

func (s *cbcSealer) Write(p []byte) (int, error) {
	s.pending = append(s.pending, p...)
	bs := s.mode.BlockSize()
	n := len(s.pending) - len(s.pending)%bs
	if n == 0 {
		return len(p), nil
	}
	out := make([]byte, n)
	s.mode.CryptBlocks(out, s.pending[:n])
	s.pending = append(s.pending[:0], s.pending[n:]...)
	if _, err := s.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *cbcSealer) Close() error {
	padded := pad(s.pending, s.mode.BlockSize())
	s.mode.CryptBlocks(padded, padded)
	s.pending = nil
	_, err := s.w.Write(padded)
	return err
}

// cbcOpener decrypts a CBC stream, holding back the last block until
// the end of the ciphertext so that the padding can be removed.
type cbcOpener struct {
	mode cipher.BlockMode
	r    io.Reader
	buf  []byte
	in   []byte
	out  []byte
	err  error
}

func newCBCOpener(mode cipher.BlockMode, r io.Reader) *cbcOpener {
	return &cbcOpener{mode: mode, r: r, buf: make([]byte, readBufferSize)}
}

func (o *cbcOpener) Read(p []byte) (int, error) {
	for len(o.out) == 0 && o.err == nil {
		o.fill()
	}
	if len(o.out) > 0 {
		n := copy(p, o.out)
		o.out = o.out[n:]
		return n, nil
	}
	return 0, o.err
}

func (o *cbcOpener) fill() {
	n, err := o.r.Read(o.buf)
	o.in = append(o.in, o.buf[:n]...)
	bs := o.mode.BlockSize()
	switch {
	case err == io.EOF:
		if len(o.in) == 0 || len(o.in)%bs != 0 {
			o.err = errors.E(errors.Integrity, "ciphertext is not a whole number of blocks")
			return
		}
		plain := make([]byte, len(o.in))
		o.mode.CryptBlocks(plain, o.in)
		o.in = nil
		if o.out, o.err = unpad(plain, bs); o.err == nil {
			o.err = io.EOF
		}
	case err != nil:
		o.err = err
	default:
		keep := len(o.in) % bs
		if keep == 0 {
			keep = bs
		}
		ready := len(o.in) - keep
		if ready <= 0 {
			return
		}
		plain := make([]byte, ready)
		o.mode.CryptBlocks(plain, o.in[:ready])
		o.in = append(o.in[:0], o.in[ready:]...)
		o.out = plain
	}
}

// pad returns a copy of b with PKCS#7 padding to a multiple of bs.
func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte, bs int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > bs {
		return nil, errors.E(errors.Integrity, "bad padding")
	}
	want := make([]byte, n)
	for i := range want {
		want[i] = byte(n)
	}
	if subtle.ConstantTimeCompare(b[len(b)-n:], want) != 1 {
		return nil, errors.E(errors.Integrity, "bad padding")
	}
	return b[:len(b)-n], nil
}
