// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/rescenic/xecrets-net/compress"
	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/crypto/encryption"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"github.com/rescenic/xecrets-net/reader"
	"github.com/rescenic/xecrets-net/writehash"
)

// Document is a container together with the key that opens it. The
// zero value is an unloaded document that resolves format ids with
// encryption.Standard.
type Document struct {
	// Registry resolves candidate format ids. Nil means
	// encryption.Standard.
	Registry *encryption.Registry

	c       *Container
	factory encryption.Factory
	headers headers
}

// Load tries k against c. It returns false if k does not open c; an
// error is returned only if k names an unknown format or the
// derivation itself fails. A previously loaded key is discarded
// first.
func (d *Document) Load(c *Container, k Candidate) (bool, error) {
	d.Close()
	reg := d.Registry
	if reg == nil {
		reg = encryption.Standard
	}
	f, err := reg.Create(k.CryptoID)
	if err != nil {
		return false, err
	}
	h := newHeaders(c.fields)
	ok, err := h.load(f, k)
	if !ok || err != nil {
		h.zero()
		return false, err
	}
	d.c, d.factory, d.headers = c, f, h
	return true, nil
}

// Loaded tells whether a key has been loaded.
func (d *Document) Loaded() bool { return d.headers != nil }

// Close wipes the subkeys. The document must be loaded again before
// it can be used.
func (d *Document) Close() {
	if d.headers != nil {
		d.headers.zero()
	}
	d.c, d.factory, d.headers = nil, nil, nil
}

// FileMetadata returns the original name and times of the plaintext.
func (d *Document) FileMetadata() FileMetadata { return d.parsed().metadata }

// IsCompressed tells whether the plaintext was deflated.
func (d *Document) IsCompressed() bool { return d.parsed().compressed }

// PlaintextLength returns the recorded length of the plaintext.
func (d *Document) PlaintextLength() int64 { return d.parsed().lengths.Plaintext }

// CompressedLength returns the recorded length of the plaintext after
// compression.
func (d *Document) CompressedLength() int64 { return d.parsed().lengths.Compressed }

// CryptoID returns the format the document was loaded with.
func (d *Document) CryptoID() uuid.UUID {
	if d.factory == nil {
		return uuid.Nil
	}
	return d.factory.ID()
}

func (d *Document) parsed() *fields {
	if d.headers == nil {
		return &fields{}
	}
	return d.headers.parsed()
}

// DecryptTo decrypts the data region of the loaded container into w
// and verifies its HMAC. A container whose data has been tampered with
// yields an Integrity error; w may by then have received unauthenticated
// plaintext. Cancellation of ctx is checked between reads.
func (d *Document) DecryptTo(ctx context.Context, w io.Writer) error {
	if d.headers == nil {
		return errors.E(errors.Precondition, "document not loaded")
	}
	var (
		rd  = d.c.r
		f   = d.headers.parsed()
		pl  = pipelineFor(f.engine)
		mac = writehash.New(d.headers.hmacSubkey(), pl.scope())
		rec = rd.Recorded()
	)
	if mac.Scope() == writehash.ScopeFromPreamble {
		if _, err := mac.Write(rec.Magic); err != nil {
			return err
		}
	}
	if _, err := mac.Write(rec.Headers); err != nil {
		return err
	}
	rd.SetHmac(mac)
	if err := rd.SetStartOfData(); err != nil {
		return err
	}
	ciphertext, err := rd.EncryptedDataStream()
	if err != nil {
		return err
	}
	block, err := d.factory.NewBlock(d.headers.dataSubkey())
	if err != nil {
		return err
	}
	var (
		src = pl.newOpener(block, f.iv, ciphertext)
		zr  *compress.Reader
	)
	if f.compressed {
		zr = compress.NewReader(src)
		defer zr.Close() // nolint: errcheck
		src = zr
	}
	n, decodeErr, err := copyContext(ctx, w, src)
	if err != nil {
		return err
	}
	// Drain the rest of the data region into the MAC and read the
	// trailer.
	if !rd.Read() {
		return rd.Err()
	}
	for _, p := range rec.Deferred {
		if _, err := mac.Write(p); err != nil {
			return err
		}
	}
	ok, err := mac.Verify(rd.Block().(header.Hmac).Hmac)
	if err != nil {
		return err
	}
	if !ok {
		return errors.E(errors.Integrity, "hmac mismatch")
	}
	if decodeErr != nil {
		return errors.E(errors.Integrity, "decrypting data", decodeErr)
	}
	if n != f.lengths.Plaintext {
		return errors.E(errors.Integrity, "plaintext length does not match header")
	}
	compressed := n
	if zr != nil {
		compressed = zr.In()
	}
	if compressed != f.lengths.Compressed {
		return errors.E(errors.Integrity, "compressed length does not match header")
	}
	if rd.Read() || rd.Type() != reader.EndOfStream {
		return rd.Err()
	}
	return nil
}

// copyContext copies src to w until EOF, a read error or a write
// error. Read errors are returned as decodeErr, since they are
// reported only once the MAC has been checked.
func copyContext(ctx context.Context, w io.Writer, src io.Reader) (n int64, decodeErr, err error) {
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return n, nil, errors.E(errors.Canceled, err)
		}
		m, rerr := src.Read(buf)
		if m > 0 {
			if _, err := w.Write(buf[:m]); err != nil {
				return n, nil, errors.E("writing plaintext", err)
			}
			n += int64(m)
		}
		if rerr == io.EOF {
			return n, nil, nil
		}
		if rerr != nil {
			return n, rerr, nil
		}
	}
}

// Probe tries every passphrase and then every private key against c,
// each with every format of reg in reg.OrderedIDs order. It returns
// the first document that loads, or false if none does.
func Probe(c *Container, passphrases []key.Passphrase, keys []asym.PrivateKey, reg *encryption.Registry) (*Document, bool, error) {
	if reg == nil {
		reg = encryption.Standard
	}
	ids := reg.OrderedIDs()
	try := func(k Candidate) (*Document, bool, error) {
		d := &Document{Registry: reg}
		ok, err := d.Load(c, k)
		if !ok || err != nil {
			return nil, false, err
		}
		return d, true, nil
	}
	for _, p := range passphrases {
		for _, id := range ids {
			if d, ok, err := try(PassphraseCandidate(p, id)); ok || err != nil {
				return d, ok, err
			}
		}
	}
	for _, k := range keys {
		for _, id := range ids {
			if d, ok, err := try(KeyCandidate(k, id)); ok || err != nil {
				return d, ok, err
			}
		}
	}
	return nil, false, nil
}
