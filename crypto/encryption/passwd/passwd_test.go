// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package passwd

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/errors"
)

func fakeTerminal(t *testing.T, entries ...string) (*bytes.Buffer, func()) {
	oldRead, oldPrompts := readPassword, prompts
	var out bytes.Buffer
	prompts = &out
	readPassword = func(int) ([]byte, error) {
		if len(entries) == 0 {
			return nil, fmt.Errorf("no more input")
		}
		e := entries[0]
		entries = entries[1:]
		return []byte(e), nil
	}
	return &out, func() { readPassword, prompts = oldRead, oldPrompts }
}

func TestRead(t *testing.T) {
	out, restore := fakeTerminal(t, "any old pw")
	defer restore()
	p, err := Read("Passphrase: ")
	assert.NoError(t, err)
	expect.EQ(t, p.Text(), "any old pw")
	expect.EQ(t, out.String(), "Passphrase: \n")

	_, err = Read("Passphrase: ")
	expect.HasSubstr(t, err, "failed to read passphrase")
}

func TestReadNew(t *testing.T) {
	for _, tc := range []struct {
		entries []string
		want    string
		err     string
	}{
		{[]string{"pw", "pw"}, "pw", ""},
		{[]string{"pw", "oops"}, "", "mismatched passphrases"},
		{[]string{""}, "", "empty passphrase"},
		{[]string{"pw"}, "", "failed to read passphrase"},
	} {
		_, restore := fakeTerminal(t, tc.entries...)
		p, err := ReadNew("New: ", "Again: ")
		restore()
		if tc.err != "" {
			expect.HasSubstr(t, err, tc.err)
			continue
		}
		assert.NoError(t, err)
		expect.EQ(t, p.Text(), tc.want)
	}

	_, restore := fakeTerminal(t, "a", "b")
	defer restore()
	_, err := ReadNew("New: ", "Again: ")
	expect.True(t, errors.Is(errors.Invalid, err))
}
