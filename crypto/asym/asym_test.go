// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package asym_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/crypto/encryption"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
)

func TestWrapUnwrap(t *testing.T) {
	alice, err := asym.GenerateKeyPair(nil)
	assert.NoError(t, err)
	bob, err := asym.GenerateKeyPair(nil)
	assert.NoError(t, err)

	for _, id := range []uuid.UUID{encryption.V2AES256, encryption.V2AES128} {
		f, err := encryption.Standard.Create(id)
		assert.NoError(t, err)
		master, err := key.NewRandomKey(f.KeySize())
		assert.NoError(t, err)

		b, err := asym.WrapKey(alice.Public, f, master)
		assert.NoError(t, err)
		expect.EQ(t, len(b.Encapsulated), asym.EncapsulatedSize)
		expect.EQ(t, len(b.Wrapped), f.KeySize()+8)

		got, ok := asym.UnwrapKey(alice.Private, f, b)
		expect.True(t, ok)
		expect.True(t, got.Equal(master))

		_, ok = asym.UnwrapKey(bob.Private, f, b)
		expect.False(t, ok)

		b.Encapsulated = b.Encapsulated[1:]
		_, ok = asym.UnwrapKey(alice.Private, f, b)
		expect.False(t, ok)
	}
	f, err := encryption.Standard.Default()
	assert.NoError(t, err)
	_, err = asym.WrapKey(asym.PublicKey{}, f, nil)
	expect.True(t, errors.Is(errors.Invalid, err))
}

func TestEncoding(t *testing.T) {
	kp, err := asym.GenerateKeyPair(nil)
	assert.NoError(t, err)
	expect.EQ(t, len(kp.Public.Bytes()), asym.PublicKeySize)
	expect.EQ(t, len(kp.Private.Bytes()), asym.PrivateKeySize)
	expect.EQ(t, kp.Private.Public().Bytes(), kp.Public.Bytes())
	expect.EQ(t, len(kp.Public.Fingerprint()), 16)

	pub, err := asym.ParsePublicPEM(kp.Public.MarshalPEM())
	assert.NoError(t, err)
	expect.EQ(t, pub.Bytes(), kp.Public.Bytes())
	priv, err := asym.ParsePrivatePEM(kp.Private.MarshalPEM())
	assert.NoError(t, err)
	expect.EQ(t, priv.Bytes(), kp.Private.Bytes())

	_, err = asym.ParsePrivatePEM(kp.Public.MarshalPEM())
	expect.HasSubstr(t, err, "PEM type")
	_, err = asym.ParsePublicPEM([]byte("not pem"))
	expect.HasSubstr(t, err, "no PEM data")
	_, err = asym.ParsePublicKey(make([]byte, 10))
	expect.True(t, errors.Is(errors.Invalid, err))

	if s := fmt.Sprint(kp.Private); strings.Contains(s, "\x00") || !strings.Contains(s, "redacted") {
		t.Errorf("private key formatted as %q", s)
	}
}
