// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"crypto/cipher"
	"io"

	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/header"
	"github.com/rescenic/xecrets-net/reader"
	"github.com/rescenic/xecrets-net/writehash"
)

// sealer encrypts the bytes written to it into the data region.
// Close flushes the final block or chunk.
type sealer interface {
	io.Writer
	Close() error
}

// pipeline is what differs between the format generations when data
// is encrypted or decrypted.
type pipeline interface {
	version() header.Version
	scope() writehash.Scope
	subkeys(master key.SymmetricKey, size int) (hmacKey, dataKey key.SymmetricKey, err error)
	// dataBlock returns the Data block to write for a data region of
	// n bytes.
	dataBlock(n int64) header.Data
	newSealer(block cipher.Block, iv key.IV, w *reader.Writer, chunkSize int) sealer
	newOpener(block cipher.Block, iv key.IV, r io.Reader) io.Reader
}

func pipelineFor(e header.Engine) pipeline {
	if e == header.EngineLegacy {
		return legacyPipeline{}
	}
	return modernPipeline{}
}

func engineOf(legacy bool) header.Engine {
	if legacy {
		return header.EngineLegacy
	}
	return header.EngineModern
}

// legacyPipeline is AES-CBC with PKCS#7 padding. The ciphertext is
// written raw after a Data block that records its length.
type legacyPipeline struct{}

func (legacyPipeline) version() header.Version {
	return header.Version{Major: header.LegacyMajor, Minor: header.LegacyMinor}
}

func (legacyPipeline) scope() writehash.Scope { return writehash.ScopeAfterPreamble }

func (legacyPipeline) subkeys(master key.SymmetricKey, _ int) (key.SymmetricKey, key.SymmetricKey, error) {
	return legacySubkeys(master)
}

func (legacyPipeline) dataBlock(n int64) header.Data {
	return header.Data{Sized: true, CiphertextLength: n}
}

func (legacyPipeline) newSealer(block cipher.Block, iv key.IV, w *reader.Writer, _ int) sealer {
	return newCBCSealer(cipher.NewCBCEncrypter(block, iv), w)
}

func (legacyPipeline) newOpener(block cipher.Block, iv key.IV, r io.Reader) io.Reader {
	return newCBCOpener(cipher.NewCBCDecrypter(block, iv), r)
}

// modernPipeline is AES-CTR. The ciphertext is framed in
// EncryptedChunk blocks.
type modernPipeline struct{}

func (modernPipeline) version() header.Version {
	return header.Version{Major: header.ModernMajor, Minor: header.ModernMinor}
}

func (modernPipeline) scope() writehash.Scope { return writehash.ScopeFromPreamble }

func (modernPipeline) subkeys(master key.SymmetricKey, size int) (key.SymmetricKey, key.SymmetricKey, error) {
	return modernSubkeys(master, size)
}

func (modernPipeline) dataBlock(int64) header.Data { return header.Data{} }

func (modernPipeline) newSealer(block cipher.Block, iv key.IV, w *reader.Writer, chunkSize int) sealer {
	return &chunkSealer{
		stream: cipher.NewCTR(block, iv),
		w:      w,
		buf:    make([]byte, 0, chunkSize),
	}
}

func (modernPipeline) newOpener(block cipher.Block, iv key.IV, r io.Reader) io.Reader {
	return cipher.StreamReader{S: cipher.NewCTR(block, iv), R: r}
}

// chunkSealer encrypts with a stream cipher and emits an
// EncryptedChunk block whenever cap(buf) bytes are pending.
type chunkSealer struct {
	stream cipher.Stream
	w      *reader.Writer
	buf    []byte
}

func (s *chunkSealer) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		start := len(s.buf)
		take := cap(s.buf) - start
		if take > len(p) {
			take = len(p)
		}
		s.buf = append(s.buf, p[:take]...)
		s.stream.XORKeyStream(s.buf[start:], s.buf[start:])
		p = p[take:]
		if len(s.buf) == cap(s.buf) {
			if err := s.flush(); err != nil {
				return 0, err
			}
		}
	}
	return n, nil
}

func (s *chunkSealer) flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	err := s.w.WriteBlock(header.EncryptedChunk{Ciphertext: s.buf})
	s.buf = s.buf[:0]
	return err
}

func (s *chunkSealer) Close() error { return s.flush() }
