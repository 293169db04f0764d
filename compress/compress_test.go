// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package compress_test

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/compress"
	"github.com/rescenic/xecrets-net/errors"
)

// Generate a random ASCII text.
func randomText(buf *strings.Builder, r *rand.Rand, n int) {
	for i := 0; i < n; i++ {
		buf.WriteByte(byte(r.Intn(96) + 32))
	}
}

func roundTrip(t *testing.T, plaintext string, chunk int) {
	var compressed bytes.Buffer
	w, err := compress.NewChunkWriter(&compressed, compress.DefaultLevel)
	assert.NoError(t, err)
	for off := 0; off < len(plaintext); off += chunk {
		end := off + chunk
		if end > len(plaintext) {
			end = len(plaintext)
		}
		before := w.Out()
		_, err := io.WriteString(w, plaintext[off:end])
		assert.NoError(t, err)
		assert.NoError(t, w.SyncFlush())
		// A sync flush always emits at least the empty stored block marker.
		assert.True(t, w.Out() > before)
	}
	assert.NoError(t, w.Close())
	assert.EQ(t, w.Out(), int64(compressed.Len()))

	n := compressed.Len()
	r := compress.NewReader(&compressed)
	got, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, r.Close())
	assert.EQ(t, string(got), plaintext)
	assert.EQ(t, r.In(), int64(n))
}

func TestTrailingInput(t *testing.T) {
	var compressed bytes.Buffer
	w, err := compress.NewChunkWriter(&compressed, compress.BestCompression)
	assert.NoError(t, err)
	_, err = io.WriteString(w, strings.Repeat("xecrets ", 100))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	n := compressed.Len()
	compressed.WriteString("trailing garbage")

	r := compress.NewReader(&compressed)
	got, err := io.ReadAll(r)
	assert.NoError(t, err)
	expect.EQ(t, string(got), strings.Repeat("xecrets ", 100))
	// Bytes after the end of the deflate stream are not consumed.
	expect.EQ(t, r.In(), int64(n))
}

func TestRoundTrip(t *testing.T) {
	roundTrip(t, "", 16)
	roundTrip(t, "hello", 16)
	n := 1
	for i := 1; i < 25; i++ {
		t.Run(fmt.Sprint("n=", n), func(t *testing.T) {
			r := rand.New(rand.NewSource(int64(i)))
			n = (n + 1) * 3 / 2
			buf := strings.Builder{}
			randomText(&buf, r, n)
			roundTrip(t, buf.String(), 1+n/7)
		})
	}
}

func TestCorrupt(t *testing.T) {
	r := compress.NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))
	_, err := io.ReadAll(r)
	expect.True(t, errors.Is(errors.Integrity, err))
}

func TestLevel(t *testing.T) {
	_, err := compress.NewChunkWriter(io.Discard, 42)
	expect.True(t, errors.Is(errors.Invalid, err))
}
