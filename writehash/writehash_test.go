// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package writehash_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/writehash"
)

func reference(subkey, data []byte) []byte {
	m := hmac.New(sha512.New, subkey)
	m.Write(data)
	return m.Sum(nil)
}

// RFC 4231 test case 2.
func TestVector(t *testing.T) {
	h := writehash.New(key.SymmetricKey("Jefe"), writehash.ScopeFromPreamble)
	_, err := io.WriteString(h, "what do ya want for nothing?")
	assert.NoError(t, err)
	sum, err := h.Sum()
	assert.NoError(t, err)
	expect.EQ(t, hex.EncodeToString(sum),
		"164b7a7bfcf819e2e395fbe73b56e0a387bd64222e831fd610270cd7ea250554"+
			"9758bf75c05a994a6d034f65f8f0e6fdcaeab1a34d4a6b4b636e070a38bce737")
}

func TestReaderWriter(t *testing.T) {
	subkey := key.SymmetricKey(bytes.Repeat([]byte{3}, 32))
	data := bytes.Repeat([]byte("xecrets"), 1000)

	var out bytes.Buffer
	wh := writehash.New(subkey, writehash.ScopeAfterPreamble)
	w := writehash.NewWriter(&out, wh)
	_, err := w.Write(data[:10])
	assert.NoError(t, err)
	_, err = w.Write(data[10:])
	assert.NoError(t, err)
	expect.EQ(t, out.Bytes(), data)
	expect.EQ(t, wh.Len(), int64(len(data)))

	rh := writehash.New(subkey, writehash.ScopeAfterPreamble)
	got, err := io.ReadAll(writehash.NewReader(bytes.NewReader(out.Bytes()), rh))
	assert.NoError(t, err)
	expect.EQ(t, got, data)

	wsum, err := wh.Sum()
	assert.NoError(t, err)
	expect.EQ(t, []byte(wsum), reference(subkey, data))
	ok, err := rh.Verify(wsum)
	assert.NoError(t, err)
	expect.True(t, ok)
}

func TestFinalizeOnce(t *testing.T) {
	h := writehash.New(key.SymmetricKey("k"), writehash.ScopeFromPreamble)
	expect.EQ(t, h.Scope().String(), "from-preamble")
	_, err := h.Write([]byte{42})
	assert.NoError(t, err)
	_, err = h.Sum()
	assert.NoError(t, err)

	_, err = h.Sum()
	expect.True(t, errors.Is(errors.Precondition, err))
	_, err = h.Write([]byte("late"))
	expect.True(t, errors.Is(errors.Precondition, err))
	ok, err := h.Verify(nil)
	expect.False(t, ok)
	expect.True(t, errors.Is(errors.Precondition, err))
}

func TestVerifyMismatch(t *testing.T) {
	h := writehash.New(key.SymmetricKey("k"), writehash.ScopeFromPreamble)
	h.Write([]byte("data"))
	ok, err := h.Verify(key.Hmac(make([]byte, key.HmacSize)))
	assert.NoError(t, err)
	expect.False(t, ok)
}
