// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package compress provides the raw DEFLATE stages of the document
// pipelines. Both stages count the compressed bytes that flow through
// them so that the engine can record and check compressed lengths.
package compress

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/rescenic/xecrets-net/errors"
)

const (
	// DefaultLevel is the compression level used for new containers.
	DefaultLevel = flate.DefaultCompression
	// BestSpeed and BestCompression bound the accepted levels.
	BestSpeed       = flate.BestSpeed
	BestCompression = flate.BestCompression
)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ChunkWriter deflates everything written to it. SyncFlush emits all
// pending output on a byte boundary, so that a chunked consumer sees
// the compressed stream incrementally.
type ChunkWriter struct {
	zw  *flate.Writer
	out countingWriter
}

// NewChunkWriter returns a writer that deflates into w at the given
// level.
func NewChunkWriter(w io.Writer, level int) (*ChunkWriter, error) {
	if level < flate.HuffmanOnly || level > BestCompression {
		return nil, errors.E(errors.Invalid, "compression level out of range")
	}
	c := &ChunkWriter{out: countingWriter{w: w}}
	zw, err := flate.NewWriter(&c.out, level)
	if err != nil {
		return nil, errors.E(errors.Invalid, "deflate", err)
	}
	c.zw = zw
	return c, nil
}

// Write implements io.Writer.
func (c *ChunkWriter) Write(p []byte) (int, error) {
	return c.zw.Write(p)
}

// SyncFlush flushes all pending compressed output.
func (c *ChunkWriter) SyncFlush() error {
	return c.zw.Flush()
}

// Close terminates the deflate stream. It does not close the
// underlying writer.
func (c *ChunkWriter) Close() error {
	return c.zw.Close()
}

// Out returns the number of compressed bytes emitted so far.
func (c *ChunkWriter) Out() int64 { return c.out.n }

// countingReader counts the bytes the inflater consumes. It
// implements io.ByteReader so that flate does not read ahead of the
// end of the deflate stream.
type countingReader struct {
	br *bufio.Reader
	n  int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.br.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.br.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// Reader inflates a raw DEFLATE stream.
type Reader struct {
	zr io.ReadCloser
	in countingReader
}

// NewReader returns a reader that inflates r.
func NewReader(r io.Reader) *Reader {
	z := &Reader{in: countingReader{br: bufio.NewReader(r)}}
	z.zr = flate.NewReader(&z.in)
	return z
}

// Read implements io.Reader. Corrupt input is reported as an
// Integrity error since inflation only happens inside the
// authenticated region.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.zr.Read(p)
	if err != nil && err != io.EOF {
		err = errors.E(errors.Integrity, "inflate", err)
	}
	return n, err
}

// Close releases the inflater. It does not close the underlying
// reader.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// In returns the number of compressed bytes consumed so far. Once Read
// has returned io.EOF it is the length of the deflate stream, not
// counting any bytes that follow it.
func (r *Reader) In() int64 { return r.in.n }
