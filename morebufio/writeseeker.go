// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package morebufio provides buffering helpers for outputs that are
// written in two phases.
package morebufio

import (
	"fmt"
	"io"

	"github.com/rescenic/xecrets-net/errors"
)

// WriteSeekBuffer is an in-memory io.WriteSeeker. Writing past the
// end grows the buffer; seeking past the end and writing leaves a gap
// of zeros.
type WriteSeekBuffer struct {
	buf []byte
	pos int64
}

var _ io.WriteSeeker = (*WriteSeekBuffer)(nil)

// Write implements io.Writer.
func (b *WriteSeekBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		if end > int64(cap(b.buf)) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

// Seek implements io.Seeker.
func (b *WriteSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.pos + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, errors.E(errors.Invalid, fmt.Sprintf("morebufio: invalid whence %d", whence))
	}
	if abs < 0 {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("morebufio: negative position %d", abs))
	}
	b.pos = abs
	return abs, nil
}

// Bytes returns the buffer contents. The slice aliases the buffer
// until the next Write.
func (b *WriteSeekBuffer) Bytes() []byte { return b.buf }

// Len returns the size of the buffer contents.
func (b *WriteSeekBuffer) Len() int { return len(b.buf) }

// WriteTo implements io.WriterTo, copying the whole contents of the
// buffer regardless of the current position.
func (b *WriteSeekBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.buf)
	return int64(n), err
}
