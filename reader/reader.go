// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package reader implements the sequential cursor over a container and
// its write-side counterpart.
//
// A Reader classifies each structural element as it is consumed: the
// preamble, header blocks, the data region and the HMAC trailer.
// Header bytes are recorded so that they can be authenticated once a
// key has been validated; data-region bytes are fed to the MAC as they
// are read.
package reader

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"github.com/rescenic/xecrets-net/writehash"
)

// ItemType classifies the element the reader is positioned on.
type ItemType int

const (
	// BeforeMagic is the initial state.
	BeforeMagic ItemType = iota
	// HeaderBlock means a header block has been read.
	HeaderBlock
	// Data means the Data block has been read; the data region follows.
	Data
	// Hmac means the trailing HMAC block has been read.
	Hmac
	// EndOfStream means the container was consumed exactly.
	EndOfStream
	// Invalid means an error occurred; see Err.
	Invalid
)

var itemNames = [...]string{"BeforeMagic", "HeaderBlock", "Data", "Hmac", "EndOfStream", "Invalid"}

// String implements fmt.Stringer.
func (t ItemType) String() string {
	if t < 0 || int(t) >= len(itemNames) {
		return fmt.Sprintf("ItemType(%d)", int(t))
	}
	return itemNames[t]
}

// Recorded holds the raw bytes consumed before the data region. Headers
// holds every header byte except the payloads of patchable blocks,
// which are in Deferred in header order.
type Recorded struct {
	Magic    []byte
	Headers  []byte
	Deferred [][]byte
}

// Reader is a forward-only cursor over a container.
type Reader struct {
	r      io.Reader
	item   ItemType
	block  header.Block
	err    error
	engine header.Engine
	blocks []header.Block

	magic    []byte
	headers  bytes.Buffer
	deferred [][]byte

	started bool
	mac     *writehash.Hash
	authed  io.Reader
	data    dataStream
}

type dataStream interface {
	io.Reader
	// trailer returns the Hmac block that ended the data region,
	// reading it if necessary.
	trailer() (header.Block, error)
}

// New returns a reader positioned before the preamble of r.
func New(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Type returns the element the reader is positioned on.
func (r *Reader) Type() ItemType { return r.item }

// Block returns the most recently read block.
func (r *Reader) Block() header.Block { return r.block }

// Err returns the error that moved the reader to Invalid.
func (r *Reader) Err() error { return r.err }

// Engine returns the format generation determined by the Version
// block. It is valid once the reader has passed the first header.
func (r *Reader) Engine() header.Engine { return r.engine }

// Blocks returns the header blocks read so far, in order, excluding
// the Data block.
func (r *Reader) Blocks() []header.Block { return r.blocks }

// Recorded returns the raw header bytes read so far.
func (r *Reader) Recorded() Recorded {
	return Recorded{Magic: r.magic, Headers: r.headers.Bytes(), Deferred: r.deferred}
}

func (r *Reader) fail(err error) bool {
	r.item, r.err, r.block = Invalid, err, nil
	return false
}

// Read advances the cursor to the next element. It returns false at
// end of stream or on error, in which case Type is EndOfStream or
// Invalid respectively.
func (r *Reader) Read() bool {
	switch r.item {
	case BeforeMagic:
		magic, err := header.ReadMagic(r.r)
		if err != nil {
			return r.fail(err)
		}
		r.magic = magic
		return r.readHeader()
	case HeaderBlock:
		return r.readHeader()
	case Data:
		if !r.started {
			return r.fail(errors.E(errors.Invalid, "invalid operation: data region not started"))
		}
		// Drain whatever the consumer left unread, so that the MAC
		// covers the whole data region.
		if _, err := io.Copy(io.Discard, r.data); err != nil {
			return r.fail(err)
		}
		b, err := r.data.trailer()
		if err != nil {
			return r.fail(err)
		}
		r.item, r.block = Hmac, b
		return true
	case Hmac:
		var buf [1]byte
		n, err := io.ReadFull(r.r, buf[:])
		switch {
		case n > 0:
			return r.fail(errors.E(errors.Format, "trailing bytes after hmac"))
		case err == io.EOF:
			r.item, r.block = EndOfStream, nil
			return false
		default:
			return r.fail(errors.E("reading trailer", err))
		}
	default:
		return false
	}
}

func (r *Reader) readHeader() bool {
	b, raw, err := header.ReadBlock(r.r)
	if err == io.EOF {
		return r.fail(errors.E(errors.Format, "missing data block"))
	}
	if err != nil {
		return r.fail(err)
	}
	if len(r.blocks) == 0 && r.engine == 0 {
		v, ok := b.(header.Version)
		if !ok {
			return r.fail(errors.E(errors.Format, fmt.Sprintf("first block is %v, want Version", b.Type())))
		}
		engine, err := v.Engine()
		if err != nil {
			return r.fail(err)
		}
		r.engine = engine
	}
	switch b.Type() {
	case header.TypeVersion:
		if len(r.blocks) > 0 {
			return r.fail(errors.E(errors.Format, "duplicate version block"))
		}
	case header.TypeEncryptedChunk, header.TypeHmac:
		return r.fail(errors.E(errors.Format, fmt.Sprintf("%v block before data", b.Type())))
	}
	if header.IsPatchable(b) {
		r.headers.Write(raw[:header.FramingSize])
		r.deferred = append(r.deferred, raw[header.FramingSize:])
	} else {
		r.headers.Write(raw)
	}
	r.block = b
	if d, ok := b.(header.Data); ok {
		if d.Sized != (r.engine == header.EngineLegacy) {
			return r.fail(errors.E(errors.Format, fmt.Sprintf("data block does not match %v format", r.engine)))
		}
		r.item = Data
		return true
	}
	r.blocks = append(r.blocks, b)
	r.item = HeaderBlock
	return true
}

// SetHmac routes all data-region bytes read from now on into h.
func (r *Reader) SetHmac(h *writehash.Hash) {
	r.mac, r.authed = h, writehash.NewReader(r.r, h)
}

// source returns the container stream, feeding the MAC if one is set.
func (r *Reader) source() io.Reader {
	if r.authed == nil {
		return r.r
	}
	return r.authed
}

// SetStartOfData transitions the reader into the data region. It may be
// called only once, and only when the reader is positioned on the Data
// block.
func (r *Reader) SetStartOfData() error {
	if r.item != Data || r.started {
		return errors.E(errors.Invalid, fmt.Sprintf("invalid operation: start of data at %v", r.item))
	}
	r.started = true
	d := r.block.(header.Data)
	if d.Sized {
		r.data = &legacyStream{r: r, remaining: d.CiphertextLength}
	} else {
		r.data = &chunkStream{r: r}
	}
	return nil
}

// EncryptedDataStream returns the ciphertext of the data region. It is
// valid only after SetStartOfData. The stream ends at the end of the
// data region; reading it feeds the MAC set by SetHmac.
func (r *Reader) EncryptedDataStream() (io.Reader, error) {
	if !r.started || r.item != Data {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid operation: data stream at %v", r.item))
	}
	return r.data, nil
}

func (r *Reader) authenticate(p []byte) error {
	if r.mac == nil || len(p) == 0 {
		return nil
	}
	_, err := r.mac.Write(p)
	return err
}

func readTrailer(rd io.Reader) (header.Block, error) {
	b, _, err := header.ReadBlock(rd)
	if err == io.EOF {
		return nil, errors.E(errors.Format, "missing hmac block")
	}
	if err != nil {
		return nil, err
	}
	if b.Type() != header.TypeHmac {
		return nil, errors.E(errors.Format, fmt.Sprintf("%v block after data, want Hmac", b.Type()))
	}
	return b, nil
}

// legacyStream is the raw ciphertext of a legacy container, whose
// length is recorded in the Data block.
type legacyStream struct {
	r         *Reader
	remaining int64
}

func (s *legacyStream) Read(p []byte) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.r.source().Read(p)
	s.remaining -= int64(n)
	if err == io.EOF && s.remaining > 0 {
		return n, errors.E(errors.Format, "truncated ciphertext")
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (s *legacyStream) trailer() (header.Block, error) {
	if s.remaining > 0 {
		return nil, errors.E(errors.Format, "truncated ciphertext")
	}
	return readTrailer(s.r.r)
}

// chunkStream is the concatenated payload of the EncryptedChunk
// blocks of a modern container. Chunk framing is authenticated; the
// framing of the Hmac block that ends the region is not.
type chunkStream struct {
	r     *Reader
	chunk []byte
	hmac  header.Block
	err   error
}

func (s *chunkStream) Read(p []byte) (int, error) {
	for len(s.chunk) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.next()
	}
	n := copy(p, s.chunk)
	s.chunk = s.chunk[n:]
	return n, nil
}

func (s *chunkStream) next() {
	t, length, framing, err := header.ReadFraming(s.r.r)
	if err == io.EOF {
		s.err = errors.E(errors.Format, "missing hmac block")
		return
	}
	if err != nil {
		s.err = err
		return
	}
	src := s.r.r
	if t == header.TypeEncryptedChunk {
		if err := s.r.authenticate(framing); err != nil {
			s.err = err
			return
		}
		src = s.r.source()
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(src, payload); err != nil {
		s.err = errors.E(errors.Format, fmt.Sprintf("truncated %v block", t), err)
		return
	}
	switch t {
	case header.TypeEncryptedChunk:
		s.chunk = payload
	case header.TypeHmac:
		b, err := header.Parse(t, payload)
		if err != nil {
			s.err = err
			return
		}
		s.hmac, s.err = b, io.EOF
	default:
		s.err = errors.E(errors.Format, fmt.Sprintf("%v block in data region", t))
	}
}

func (s *chunkStream) trailer() (header.Block, error) {
	if s.hmac == nil {
		if s.err != nil && s.err != io.EOF {
			return nil, s.err
		}
		return nil, errors.E(errors.Format, "missing hmac block")
	}
	return s.hmac, nil
}
