// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"io"
	"testing"
	"testing/iotest"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/errors"
)

var (
	testKey = bytes.Repeat([]byte{0x11}, 16)
	testIV  = bytes.Repeat([]byte{0x22}, 16)
)

func sealCBC(t *testing.T, plain []byte, writes int) []byte {
	block, err := aes.NewCipher(testKey)
	assert.NoError(t, err)
	var out bytes.Buffer
	s := newCBCSealer(cipher.NewCBCEncrypter(block, testIV), &out)
	step := len(plain)/writes + 1
	for len(plain) > 0 {
		n := step
		if n > len(plain) {
			n = len(plain)
		}
		_, err := s.Write(plain[:n])
		assert.NoError(t, err)
		plain = plain[n:]
	}
	assert.NoError(t, s.Close())
	return out.Bytes()
}

func openCBC(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(testKey)
	if err != nil {
		return nil, err
	}
	r := newCBCOpener(cipher.NewCBCDecrypter(block, testIV), iotest.OneByteReader(bytes.NewReader(ciphertext)))
	return io.ReadAll(r)
}

func TestCBCRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 31, 32, 1000, 3 * readBufferSize} {
		plain := bytes.Repeat([]byte("0123456789"), n/10+1)[:n]
		for _, writes := range []int{1, 3, 7} {
			ciphertext := sealCBC(t, plain, writes)
			expect.EQ(t, len(ciphertext), (n/aes.BlockSize+1)*aes.BlockSize)
			got, err := openCBC(ciphertext)
			assert.NoError(t, err)
			expect.True(t, bytes.Equal(got, plain), "%d bytes in %d writes", n, writes)
		}
	}

	// Whole-stream encryption must match the streaming sealer.
	plain := []byte("exactly thirty-two bytes of text")
	block, _ := aes.NewCipher(testKey)
	want := pad(plain, aes.BlockSize)
	cipher.NewCBCEncrypter(block, testIV).CryptBlocks(want, want)
	expect.EQ(t, sealCBC(t, plain, 5), want)
}

func TestCBCErrors(t *testing.T) {
	ciphertext := sealCBC(t, []byte("some plaintext"), 1)

	_, err := openCBC(ciphertext[:len(ciphertext)-1])
	expect.True(t, errors.Is(errors.Integrity, err))
	_, err = openCBC(nil)
	expect.True(t, errors.Is(errors.Integrity, err))

	// Corrupting the second to last block garbles the padding.
	long := sealCBC(t, bytes.Repeat([]byte{'a'}, 48), 1)
	long[len(long)-aes.BlockSize-1] ^= 0xff
	_, err = openCBC(long)
	expect.True(t, errors.Is(errors.Integrity, err))
	expect.HasSubstr(t, err, "bad padding")
}

func TestPadding(t *testing.T) {
	for n := 0; n < 3*aes.BlockSize; n++ {
		b := bytes.Repeat([]byte{0xaa}, n)
		padded := pad(b, aes.BlockSize)
		expect.EQ(t, len(padded)%aes.BlockSize, 0)
		got, err := unpad(padded, aes.BlockSize)
		assert.NoError(t, err)
		expect.EQ(t, got, b)
	}
	for _, bad := range [][]byte{
		append(bytes.Repeat([]byte{1}, 15), 0),
		append(bytes.Repeat([]byte{1}, 15), 17),
		append(bytes.Repeat([]byte{1}, 14), 3, 2),
	} {
		_, err := unpad(bad, aes.BlockSize)
		expect.HasSubstr(t, err, "bad padding")
	}
}
