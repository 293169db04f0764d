// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package writehash accumulates an HMAC-SHA-512 over the bytes of a
// container as they pass through readers and writers.
//
// A Hash is finalized exactly once. Its Scope records which part of
// the container it authenticates, so that the two format generations
// bind the MAC explicitly rather than by where the wrapper happens to
// be installed.
package writehash

import (
	"crypto/hmac"
	"crypto/sha512"
	"hash"
	"io"

	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
)

// Scope is the part of a container covered by a MAC.
type Scope int

const (
	// ScopeAfterPreamble covers every byte after the magic preamble.
	// It is used by legacy containers.
	ScopeAfterPreamble Scope = iota
	// ScopeFromPreamble covers every byte including the magic
	// preamble. It is used by modern containers.
	ScopeFromPreamble
)

// String implements fmt.Stringer.
func (s Scope) String() string {
	switch s {
	case ScopeAfterPreamble:
		return "after-preamble"
	case ScopeFromPreamble:
		return "from-preamble"
	default:
		return "unknown"
	}
}

// Hash is a streaming HMAC-SHA-512.
type Hash struct {
	mac   hash.Hash
	scope Scope
	n     int64
	sum   key.Hmac
}

// New returns a Hash keyed by subkey.
func New(subkey key.SymmetricKey, scope Scope) *Hash {
	return &Hash{mac: hmac.New(sha512.New, subkey), scope: scope}
}

// Scope returns the part of the container that h covers.
func (h *Hash) Scope() Scope { return h.scope }

// Len returns the number of bytes written to h.
func (h *Hash) Len() int64 { return h.n }

// Write implements io.Writer. Writing to a finalized Hash is a
// Precondition error.
func (h *Hash) Write(p []byte) (int, error) {
	if h.sum != nil {
		return 0, errors.E(errors.Precondition, "write to finalized hmac")
	}
	h.n += int64(len(p))
	return h.mac.Write(p)
}

// Sum finalizes h and returns the tag. It may be called only once.
func (h *Hash) Sum() (key.Hmac, error) {
	if h.sum != nil {
		return nil, errors.E(errors.Precondition, "hmac already finalized")
	}
	h.sum = key.Hmac(h.mac.Sum(nil))
	return key.Hmac(h.sum.Bytes()), nil
}

// Verify finalizes h and compares the result with want in constant
// time.
func (h *Hash) Verify(want key.Hmac) (bool, error) {
	got, err := h.Sum()
	if err != nil {
		return false, err
	}
	return hmac.Equal(got, want), nil
}

type writer struct {
	w io.Writer
	h *Hash
}

// NewWriter returns a writer that writes to w and feeds every byte
// successfully written into h.
func NewWriter(w io.Writer, h *Hash) io.Writer {
	return &writer{w, h}
}

func (w *writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if n > 0 {
		if _, herr := w.h.Write(p[:n]); herr != nil && err == nil {
			err = herr
		}
	}
	return n, err
}

type reader struct {
	r io.Reader
	h *Hash
}

// NewReader returns a reader that reads from r and feeds every byte
// read into h.
func NewReader(r io.Reader, h *Hash) io.Reader {
	return &reader{r, h}
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if _, herr := r.h.Write(p[:n]); herr != nil {
			return n, herr
		}
	}
	return n, err
}
