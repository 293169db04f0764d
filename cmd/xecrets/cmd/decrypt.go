// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/document"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/log"
	"github.com/spf13/cobra"
)

func (e *env) decryptCmd() *cobra.Command {
	var (
		out         string
		passphrases []string
		keys        []string
	)
	c := &cobra.Command{
		Use:   "decrypt [flags] file...",
		Short: "Decrypt a container",
		Long: `Decrypt tries every given passphrase and private key against each
container and writes the plaintext of the first that opens it. Without
--passphrase or --key the passphrase is read from the terminal.

The output defaults to the original file name recorded in the
container, in the current directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				pps []key.Passphrase
				ks  []asym.PrivateKey
			)
			for _, p := range passphrases {
				pps = append(pps, key.NewPassphrase(p))
			}
			for _, path := range keys {
				k, err := readPrivateKey(path)
				if err != nil {
					return err
				}
				ks = append(ks, k)
			}
			if len(pps) == 0 && len(ks) == 0 {
				p, err := e.readPassphrase("Passphrase: ")
				if err != nil {
					return err
				}
				pps = append(pps, p)
			}

			return forEachFile(cmd.Context(), args, out, func(ctx context.Context, name string) error {
				return e.decryptFile(ctx, name, out, pps, ks)
			})
		},
	}
	flags := c.Flags()
	flags.StringVarP(&out, "output", "o", "", `output path, "-" for stdout`)
	flags.StringArrayVarP(&passphrases, "passphrase", "p", nil, "passphrase to try; may be repeated")
	flags.StringArrayVarP(&keys, "key", "k", nil, "private key file to try; may be repeated")
	return c
}

func (e *env) decryptFile(ctx context.Context, name, out string, pps []key.Passphrase, ks []asym.PrivateKey) (err error) {
	in, _, err := e.openInput(name)
	if err != nil {
		return err
	}
	defer errors.CleanUp(in.Close, &err)
	container, err := document.Open(in)
	if err != nil {
		return errors.E(name, err)
	}
	d, ok, err := document.Probe(container, pps, ks, e.policy().Registry)
	if err != nil {
		return err
	}
	if !ok {
		return errors.E(errors.Invalid, "no passphrase or key opens", name)
	}
	defer d.Close()
	log.Debug.Printf("%s opened with format %v", name, d.CryptoID())

	if out == "" {
		out = outputName(name, d.FileMetadata().Name)
	}
	o, err := e.createOutput(out)
	if err != nil {
		return err
	}
	if err := o.Finish(d.DecryptTo(ctx, o.Writer())); err != nil {
		return errors.E(name, err)
	}
	if m := d.FileMetadata(); out != stdio && !m.Modified.IsZero() {
		atime := m.Accessed
		if atime.IsZero() {
			atime = m.Modified
		}
		if err := os.Chtimes(out, atime, m.Modified); err != nil {
			log.Error.Printf("setting times of %s: %v", out, err)
		}
	}
	return nil
}

// outputName picks the name of a decrypted file: the recorded name
// without its directory, or the container name without its extension.
func outputName(container, recorded string) string {
	if base := filepath.Base(recorded); recorded != "" && base != "." && base != ".." && base != string(filepath.Separator) {
		return base
	}
	if container == stdio {
		return stdio
	}
	if trimmed := strings.TrimSuffix(container, Extension); trimmed != container {
		return trimmed
	}
	return container + ".plain"
}
