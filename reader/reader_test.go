// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package reader_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"github.com/rescenic/xecrets-net/morebufio"
	"github.com/rescenic/xecrets-net/reader"
	"github.com/rescenic/xecrets-net/writehash"
)

var subkey = key.SymmetricKey(bytes.Repeat([]byte{0x42}, 32))

// writeModern writes a modern container whose data region holds the
// given chunks.
func writeModern(t *testing.T, chunks ...string) []byte {
	var out morebufio.WriteSeekBuffer
	w, err := reader.NewWriter(&out, writehash.New(subkey, writehash.ScopeFromPreamble))
	assert.NoError(t, err)
	assert.NoError(t, w.WriteMagic())
	assert.NoError(t, w.WriteBlock(header.Version{Major: header.ModernMajor}))
	assert.NoError(t, w.WriteBlock(header.Lengths{}))
	assert.NoError(t, w.WriteBlock(header.Unrecognized{T: header.Optional | 1, Data: []byte("x")}))
	assert.NoError(t, w.WriteBlock(header.Data{}))
	var total int64
	for _, c := range chunks {
		assert.NoError(t, w.WriteBlock(header.EncryptedChunk{Ciphertext: []byte(c)}))
		total += int64(len(c))
	}
	assert.NoError(t, w.Patch(header.Lengths{Plaintext: total, Compressed: total}))
	assert.NoError(t, w.Finish())
	return out.Bytes()
}

// writeLegacy writes a legacy container with raw ciphertext.
func writeLegacy(t *testing.T, data string) []byte {
	var out morebufio.WriteSeekBuffer
	w, err := reader.NewWriter(&out, writehash.New(subkey, writehash.ScopeAfterPreamble))
	assert.NoError(t, err)
	assert.NoError(t, w.WriteMagic())
	assert.NoError(t, w.WriteBlock(header.Version{Major: header.LegacyMajor}))
	assert.NoError(t, w.WriteBlock(header.Lengths{}))
	assert.NoError(t, w.WriteBlock(header.Data{Sized: true}))
	_, err = io.WriteString(w, data)
	assert.NoError(t, err)
	assert.NoError(t, w.Patch(header.Lengths{Plaintext: 1, Compressed: 2}))
	assert.NoError(t, w.Patch(header.Data{Sized: true, CiphertextLength: int64(len(data))}))
	assert.NoError(t, w.Finish())
	return out.Bytes()
}

// readAll reads a container, verifying its MAC the way the document
// engine does.
func readAll(t *testing.T, container []byte, scope writehash.Scope) (string, bool, *reader.Reader) {
	r := reader.New(bytes.NewReader(container))
	for r.Read() && r.Type() == reader.HeaderBlock {
	}
	assert.EQ(t, r.Type(), reader.Data)
	mac := writehash.New(subkey, scope)
	rec := r.Recorded()
	if scope == writehash.ScopeFromPreamble {
		mac.Write(rec.Magic)
	}
	mac.Write(rec.Headers)
	r.SetHmac(mac)
	assert.NoError(t, r.SetStartOfData())
	stream, err := r.EncryptedDataStream()
	assert.NoError(t, err)
	data, err := io.ReadAll(stream)
	assert.NoError(t, err)
	assert.True(t, r.Read())
	assert.EQ(t, r.Type(), reader.Hmac)
	for _, p := range rec.Deferred {
		mac.Write(p)
	}
	ok, err := mac.Verify(r.Block().(header.Hmac).Hmac)
	assert.NoError(t, err)
	return string(data), ok, r
}

func TestModernRoundTrip(t *testing.T) {
	c := writeModern(t, "first", "", "second")
	data, ok, r := readAll(t, c, writehash.ScopeFromPreamble)
	expect.EQ(t, data, "firstsecond")
	expect.True(t, ok)
	expect.EQ(t, r.Engine(), header.EngineModern)
	expect.EQ(t, len(r.Blocks()), 3)
	expect.EQ(t, r.Blocks()[1], header.Block(header.Lengths{Plaintext: 11, Compressed: 11}))
	expect.False(t, r.Read())
	expect.EQ(t, r.Type(), reader.EndOfStream)
	assert.NoError(t, r.Err())
}

func TestLegacyRoundTrip(t *testing.T) {
	c := writeLegacy(t, "raw ciphertext")
	data, ok, r := readAll(t, c, writehash.ScopeAfterPreamble)
	expect.EQ(t, data, "raw ciphertext")
	expect.True(t, ok)
	expect.EQ(t, r.Engine(), header.EngineLegacy)
	expect.False(t, r.Read())
	expect.EQ(t, r.Type(), reader.EndOfStream)
}

func TestTamper(t *testing.T) {
	c := writeModern(t, "some data")
	for _, off := range []int{0, 9, 25, len(c) - 70} {
		bad := append([]byte{}, c...)
		bad[off] ^= 0x01
		r := reader.New(bytes.NewReader(bad))
		for r.Read() && r.Type() == reader.HeaderBlock {
		}
		if r.Type() == reader.Invalid {
			// Structural damage is detected without the MAC.
			continue
		}
		_, ok, _ := readAll(t, bad, writehash.ScopeFromPreamble)
		expect.False(t, ok)
	}

	// Damage to the preamble of a legacy container is outside the MAC,
	// but it is still a format error.
	legacy := writeLegacy(t, "x")
	legacy[0] ^= 0x01
	r := reader.New(bytes.NewReader(legacy))
	expect.False(t, r.Read())
	expect.True(t, errors.Is(errors.Format, r.Err()))
}

func TestTrailingBytes(t *testing.T) {
	c := append(writeModern(t, "abc"), 0)
	r := reader.New(bytes.NewReader(c))
	for r.Read() && r.Type() == reader.HeaderBlock {
	}
	assert.NoError(t, r.SetStartOfData())
	assert.True(t, r.Read())
	expect.EQ(t, r.Type(), reader.Hmac)
	expect.False(t, r.Read())
	expect.EQ(t, r.Type(), reader.Invalid)
	expect.True(t, errors.Is(errors.Format, r.Err()))
}

func TestStartOfData(t *testing.T) {
	c := writeModern(t, "abc")
	r := reader.New(bytes.NewReader(c))
	expect.True(t, errors.Is(errors.Invalid, r.SetStartOfData()))
	_, err := r.EncryptedDataStream()
	expect.True(t, errors.Is(errors.Invalid, err))

	assert.True(t, r.Read())
	expect.EQ(t, r.Type(), reader.HeaderBlock)
	expect.HasSubstr(t, r.SetStartOfData(), "invalid operation")

	for r.Read() && r.Type() == reader.HeaderBlock {
	}
	assert.NoError(t, r.SetStartOfData())
	expect.HasSubstr(t, r.SetStartOfData(), "invalid operation")
}

func TestReadDataWithoutStart(t *testing.T) {
	r := reader.New(bytes.NewReader(writeModern(t, "abc")))
	for r.Read() && r.Type() == reader.HeaderBlock {
	}
	expect.False(t, r.Read())
	expect.True(t, errors.Is(errors.Invalid, r.Err()))
}

func TestDrainOnRead(t *testing.T) {
	// Moving past the data region without consuming it still feeds
	// the whole region to the MAC.
	c := writeModern(t, "one", "two")
	r := reader.New(bytes.NewReader(c))
	for r.Read() && r.Type() == reader.HeaderBlock {
	}
	mac := writehash.New(subkey, writehash.ScopeFromPreamble)
	rec := r.Recorded()
	mac.Write(rec.Magic)
	mac.Write(rec.Headers)
	r.SetHmac(mac)
	assert.NoError(t, r.SetStartOfData())
	assert.True(t, r.Read())
	for _, p := range rec.Deferred {
		mac.Write(p)
	}
	ok, err := mac.Verify(r.Block().(header.Hmac).Hmac)
	assert.NoError(t, err)
	expect.True(t, ok)
}

func TestMalformedContainers(t *testing.T) {
	modern := writeModern(t, "abc")
	version := header.Marshal(header.Version{Major: 9})
	for _, tc := range []struct {
		name      string
		container []byte
		kind      errors.Kind
	}{
		{"empty", nil, errors.Format},
		{"magic only", header.Magic[:], errors.Format},
		{"no version", append(header.Magic[:], header.Marshal(header.Lengths{})...), errors.Format},
		{"too new", append(header.Magic[:], version...), errors.Format},
		{"truncated", modern[:len(modern)-10], errors.Format},
		{"legacy data in modern", append(append(header.Magic[:], header.Marshal(header.Version{Major: 4})...),
			header.Marshal(header.Data{Sized: true})...), errors.Format},
	} {
		r := reader.New(bytes.NewReader(tc.container))
		for r.Read() {
			if r.Type() == reader.Data {
				if err := r.SetStartOfData(); err != nil {
					t.Fatal(err)
				}
			}
		}
		if !errors.Is(tc.kind, r.Err()) {
			t.Errorf("%s: got %v, want %v", tc.name, r.Err(), tc.kind)
		}
	}
}

func TestFinalizedHmac(t *testing.T) {
	// Both directions authenticate through the MAC, so a finalized
	// MAC stops the container from being written or read.
	mac := writehash.New(subkey, writehash.ScopeFromPreamble)
	_, err := mac.Sum()
	assert.NoError(t, err)
	var out morebufio.WriteSeekBuffer
	w, err := reader.NewWriter(&out, mac)
	assert.NoError(t, err)
	expect.True(t, errors.Is(errors.Precondition, w.WriteMagic()))

	r := reader.New(bytes.NewReader(writeLegacy(t, "plaintext")))
	for r.Read() && r.Type() == reader.HeaderBlock {
	}
	assert.EQ(t, r.Type(), reader.Data)
	mac = writehash.New(subkey, writehash.ScopeAfterPreamble)
	_, err = mac.Sum()
	assert.NoError(t, err)
	r.SetHmac(mac)
	assert.NoError(t, r.SetStartOfData())
	stream, err := r.EncryptedDataStream()
	assert.NoError(t, err)
	_, err = io.ReadAll(stream)
	expect.True(t, errors.Is(errors.Precondition, err))
}
