// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package passwd

import (
	"crypto/subtle"
	"fmt"
	"io"
	"os"

	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"golang.org/x/term"
)

var (
	// readPassword and prompts are replaced by tests.
	readPassword           = term.ReadPassword
	prompts      io.Writer = os.Stderr
	stdinFd                = int(os.Stdin.Fd())
)

// Read prompts for a passphrase on the terminal attached to stdin.
func Read(prompt string) (key.Passphrase, error) {
	pw, err := readOnce(prompt)
	defer zero(pw)
	if err != nil {
		return key.Passphrase{}, err
	}
	return key.NewPassphrase(string(pw)), nil
}

// ReadNew prompts for a new passphrase twice and returns it if both
// entries match. Empty passphrases are rejected.
func ReadNew(prompt, confirm string) (key.Passphrase, error) {
	pw, err := readOnce(prompt)
	defer zero(pw)
	if err != nil {
		return key.Passphrase{}, err
	}
	if len(pw) == 0 {
		return key.Passphrase{}, errors.E(errors.Invalid, "empty passphrase")
	}
	again, err := readOnce(confirm)
	defer zero(again)
	if err != nil {
		return key.Passphrase{}, err
	}
	if subtle.ConstantTimeCompare(pw, again) != 1 {
		return key.Passphrase{}, errors.E(errors.Invalid, "mismatched passphrases")
	}
	return key.NewPassphrase(string(pw)), nil
}

func readOnce(prompt string) ([]byte, error) {
	fmt.Fprint(prompts, prompt)
	pw, err := readPassword(stdinFd)
	fmt.Fprintln(prompts, "")
	if err != nil {
		return nil, errors.E("failed to read passphrase", err)
	}
	return pw, nil
}

// Zero out the passphrase as soon as it's converted.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
