// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reader

import (
	"fmt"
	"io"

	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"github.com/rescenic/xecrets-net/writehash"
)

type patch struct {
	offset  int64
	typ     header.Type
	size    int
	payload []byte
}

// Writer writes a container in two phases. Blocks and data are written
// through the MAC in order; patchable blocks are written as
// placeholders and their final payloads are written by Finish, which
// seeks back, authenticates them after the data region and appends the
// Hmac trailer.
type Writer struct {
	ws       io.WriteSeeker
	mac      *writehash.Hash
	authed   io.Writer
	start    int64
	pos      int64
	patches  []patch
	finished bool
}

// NewWriter returns a writer that writes to ws starting at its current
// offset. ws must support seeking; otherwise NewWriter returns an
// Invalid error.
func NewWriter(ws io.WriteSeeker, mac *writehash.Hash) (*Writer, error) {
	start, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.E(errors.Invalid, "output must be seekable", err)
	}
	return &Writer{ws: ws, mac: mac, authed: writehash.NewWriter(ws, mac), start: start}, nil
}

func (w *Writer) write(p []byte, authenticate bool) error {
	if w.finished {
		return errors.E(errors.Precondition, "write to finished container")
	}
	dst := io.Writer(w.ws)
	if authenticate {
		dst = w.authed
	}
	n, err := dst.Write(p)
	w.pos += int64(n)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// WriteMagic writes the preamble. It is authenticated only when the
// MAC's scope includes the preamble.
func (w *Writer) WriteMagic() error {
	return w.write(header.Magic[:], w.mac.Scope() == writehash.ScopeFromPreamble)
}

// WriteBlock writes a framed block. The payload of a patchable block
// is written as a placeholder; Patch supplies the final value.
func (w *Writer) WriteBlock(b header.Block) error {
	raw := header.Marshal(b)
	if !header.IsPatchable(b) {
		return w.write(raw, true)
	}
	if err := w.write(raw[:header.FramingSize], true); err != nil {
		return err
	}
	w.patches = append(w.patches, patch{offset: w.pos, typ: b.Type(), size: len(raw) - header.FramingSize})
	return w.write(raw[header.FramingSize:], false)
}

// Write writes raw data-region bytes through the MAC.
func (w *Writer) Write(p []byte) (int, error) {
	if err := w.write(p, true); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Patch records the final value of the next unpatched placeholder of
// b's type. The payload size must not change.
func (w *Writer) Patch(b header.Block) error {
	payload := b.Payload()
	for i := range w.patches {
		p := &w.patches[i]
		if p.typ != b.Type() || p.payload != nil {
			continue
		}
		if len(payload) != p.size {
			return errors.E(errors.Internal, fmt.Sprintf("patch of %v changes size from %d to %d", p.typ, p.size, len(payload)))
		}
		p.payload = payload
		return nil
	}
	return errors.E(errors.Internal, fmt.Sprintf("no placeholder for %v", b.Type()))
}

// Finish writes the patched payloads in place, folds them into the MAC
// in header order, and appends the Hmac trailer at the end of the
// container. The writer is left positioned after the trailer.
func (w *Writer) Finish() error {
	if w.finished {
		return errors.E(errors.Precondition, "container already finished")
	}
	end := w.pos
	for _, p := range w.patches {
		if p.payload == nil {
			return errors.E(errors.Internal, fmt.Sprintf("%v placeholder was never patched", p.typ))
		}
		if _, err := w.ws.Seek(w.start+p.offset, io.SeekStart); err != nil {
			return errors.E("seeking to placeholder", err)
		}
		if _, err := w.authed.Write(p.payload); err != nil {
			return err
		}
	}
	if _, err := w.ws.Seek(w.start+end, io.SeekStart); err != nil {
		return errors.E("seeking to end", err)
	}
	w.pos = end
	sum, err := w.mac.Sum()
	if err != nil {
		return err
	}
	if err := w.write(header.Marshal(header.Hmac{Hmac: sum}), false); err != nil {
		return err
	}
	w.finished = true
	return nil
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int64 { return w.pos }
