// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/crypto/encryption"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/document"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/log"
	"github.com/spf13/cobra"
)

// Extension is appended to the names of encrypted files.
const Extension = ".axx"

var formats = map[string]uuid.UUID{
	"aes256": encryption.V2AES256,
	"aes128": encryption.V2AES128,
	"legacy": encryption.V1AES128,
}

func (e *env) encryptCmd() *cobra.Command {
	var (
		out        string
		passphrase string
		format     string
		legacy     bool
		compress   bool
		recipients []string
	)
	c := &cobra.Command{
		Use:   "encrypt [flags] file...",
		Short: "Encrypt a file",
		Long: `Encrypt writes each file, or stdin if file is "-", to a new container.

The container is protected by a passphrase, by the public keys given
with --recipient, or both. Without --passphrase or --recipient the
passphrase is read from the terminal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if legacy {
				format = "legacy"
			}
			id, ok := formats[format]
			if !ok {
				return errors.E(errors.Invalid, fmt.Sprintf("unknown format %q", format))
			}
			params := document.EncryptionParameters{CryptoID: id}
			for _, path := range recipients {
				pub, err := readPublicKey(path)
				if err != nil {
					return err
				}
				params.Recipients = append(params.Recipients, pub)
			}
			switch {
			case cmd.Flags().Changed("passphrase"):
				p := key.NewPassphrase(passphrase)
				params.Passphrase = &p
			case len(params.Recipients) == 0:
				p, err := e.readNewPassphrase("Passphrase: ", "Confirm passphrase: ")
				if err != nil {
					return err
				}
				params.Passphrase = &p
			}

			opts := document.Options{Flags: document.WithoutCompression}
			if compress {
				opts.Flags = document.WithCompression
			}
			return forEachFile(cmd.Context(), args, out, func(ctx context.Context, name string) error {
				return e.encryptFile(ctx, name, out, params, opts)
			})
		},
	}
	flags := c.Flags()
	flags.StringVarP(&out, "output", "o", "", `output path; defaults to file`+Extension+`, "-" for stdout`)
	flags.StringVarP(&passphrase, "passphrase", "p", "", "passphrase; read from the terminal if not given")
	flags.StringVar(&format, "format", "aes256", "container format: aes256, aes128 or legacy")
	flags.BoolVar(&legacy, "legacy", false, "write a legacy container; same as --format=legacy")
	flags.BoolVar(&compress, "compress", true, "deflate the plaintext before encryption")
	flags.StringArrayVarP(&recipients, "recipient", "r", nil, "public key file of a recipient; may be repeated")
	return c
}

func (e *env) encryptFile(ctx context.Context, name, out string, params document.EncryptionParameters, opts document.Options) (err error) {
	in, info, err := e.openInput(name)
	if err != nil {
		return err
	}
	defer errors.CleanUp(in.Close, &err)
	if info != nil {
		params.Metadata = document.FileMetadata{
			Name:     filepath.Base(name),
			Modified: info.ModTime().UTC(),
		}
	}
	if out == "" {
		out = stdio
		if name != stdio {
			out = name + Extension
		}
	}
	o, err := e.createOutput(out)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := o.Finish(e.policy().EncryptTo(ctx, in, o.Writer(), params, opts)); err != nil {
		return errors.E(name, err)
	}
	log.Debug.Printf("encrypted %s to %s in %v", name, o, time.Since(start))
	return nil
}

func readPublicKey(path string) (asym.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return asym.PublicKey{}, errors.E("read public key", path, err)
	}
	pub, err := asym.ParsePublicPEM(b)
	if err != nil {
		return asym.PublicKey{}, errors.E("public key", path, err)
	}
	return pub, nil
}

func readPrivateKey(path string) (asym.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return asym.PrivateKey{}, errors.E("read private key", path, err)
	}
	defer key.Zero(b)
	priv, err := asym.ParsePrivatePEM(b)
	if err != nil {
		return asym.PrivateKey{}, errors.E("private key", path, err)
	}
	return priv, nil
}
