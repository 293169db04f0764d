// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package encryption_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/crypto/encryption"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
)

func TestRegistry(t *testing.T) {
	r := encryption.NewRegistry()
	def, err := r.Default()
	assert.NoError(t, err)
	expect.EQ(t, def.ID(), encryption.V2AES256)
	legacy, err := r.Legacy()
	assert.NoError(t, err)
	expect.EQ(t, legacy.ID(), encryption.V1AES128)
	minimum, err := r.Minimum()
	assert.NoError(t, err)
	expect.EQ(t, minimum.ID(), encryption.V2AES128)

	expect.EQ(t, r.OrderedIDs(), []uuid.UUID{encryption.V2AES256, encryption.V2AES128, encryption.V1AES128})

	f, err := r.Create(uuid.Nil)
	assert.NoError(t, err)
	expect.True(t, f.Legacy())

	_, err = r.Create(uuid.New())
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.HasSubstr(t, err, "unknown format id")

	err = r.Register(func() encryption.Factory { return def })
	expect.HasSubstr(t, err, "already registered")
}

func TestEmptyRegistry(t *testing.T) {
	r := encryption.NewEmptyRegistry()
	_, err := r.Default()
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = r.Create(uuid.Nil)
	expect.True(t, errors.Is(errors.Invalid, err))
	expect.EQ(t, len(r.OrderedIDs()), 0)
}

func TestWrapUnwrap(t *testing.T) {
	pass := key.NewPassphrase("a")
	for _, id := range encryption.Standard.OrderedIDs() {
		f, err := encryption.Standard.Create(id)
		assert.NoError(t, err)
		iterations := int64(1000)
		if f.Legacy() {
			iterations = 20000
		}
		kek, err := f.NewDerivedKey(pass, iterations)
		assert.NoError(t, err)
		expect.EQ(t, kek.Key.Len(), f.KeySize())
		master, err := key.NewRandomKey(f.KeySize())
		assert.NoError(t, err)
		wrapped, err := f.Wrap(kek, master)
		assert.NoError(t, err)
		expect.EQ(t, len(wrapped), f.KeySize()+8)

		restored, err := f.RestoreDerivedKey(pass, kek.Salt, kek.Iterations)
		assert.NoError(t, err)
		got, ok := f.Unwrap(restored, wrapped)
		expect.True(t, ok)
		expect.True(t, got.Equal(master))

		wrong, err := f.RestoreDerivedKey(key.NewPassphrase("b"), kek.Salt, kek.Iterations)
		assert.NoError(t, err)
		_, ok = f.Unwrap(wrong, wrapped)
		expect.False(t, ok)

		block, err := f.NewBlock(master)
		assert.NoError(t, err)
		expect.EQ(t, block.BlockSize(), 16)
		_, err = f.NewBlock(make(key.SymmetricKey, 24))
		expect.True(t, errors.Is(errors.Invalid, err))
	}
}

func TestKeySizeMismatch(t *testing.T) {
	f128, _ := encryption.Standard.Create(encryption.V2AES128)
	f256, _ := encryption.Standard.Create(encryption.V2AES256)
	pass := key.NewPassphrase("a")
	kek, err := f256.NewDerivedKey(pass, 1000)
	assert.NoError(t, err)
	master, _ := key.NewRandomKey(32)
	wrapped, err := f256.Wrap(kek, master)
	assert.NoError(t, err)

	kek128, err := f128.RestoreDerivedKey(pass, kek.Salt, kek.Iterations)
	assert.NoError(t, err)
	_, ok := f128.Unwrap(kek128, wrapped)
	expect.False(t, ok)
}

func TestIterationRange(t *testing.T) {
	f, _ := encryption.Standard.Default()
	_, err := f.NewDerivedKey(key.NewPassphrase("a"), 0)
	expect.True(t, errors.Is(errors.Invalid, err))
	legacy, _ := encryption.Standard.Legacy()
	_, err = legacy.RestoreDerivedKey(key.NewPassphrase("a"), make(key.Salt, 32), 20000)
	expect.True(t, errors.Is(errors.Invalid, err))
}
