// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package morebufio

import (
	"bytes"
	"io"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/errors"
)

func TestWriteSeekBuffer(t *testing.T) {
	var b WriteSeekBuffer
	_, err := b.Write([]byte("hello, world"))
	assert.NoError(t, err)
	pos, err := b.Seek(7, io.SeekStart)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(7))
	_, err = b.Write([]byte("there"))
	assert.NoError(t, err)
	expect.EQ(t, string(b.Bytes()), "hello, there")

	_, err = b.Seek(2, io.SeekEnd)
	assert.NoError(t, err)
	_, err = b.Write([]byte("!"))
	assert.NoError(t, err)
	expect.EQ(t, b.Bytes(), []byte("hello, there\x00\x00!"))

	pos, err = b.Seek(-3, io.SeekCurrent)
	assert.NoError(t, err)
	expect.EQ(t, pos, int64(12))
	_, err = b.Seek(-1, io.SeekStart)
	expect.HasSubstr(t, err, "negative position")
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = b.Seek(0, 42)
	expect.True(t, errors.Is(errors.Invalid, err))

	var out bytes.Buffer
	n, err := b.WriteTo(&out)
	assert.NoError(t, err)
	expect.EQ(t, n, int64(b.Len()))
	expect.EQ(t, out.Bytes(), b.Bytes())
}
