// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/log"
	"github.com/spf13/cobra"
)

// Suffixes of key files written by keygen.
const (
	PublicSuffix  = ".pub"
	PrivateSuffix = ".key"
)

func (e *env) keygenCmd() *cobra.Command {
	var (
		out   string
		count int
	)
	c := &cobra.Command{
		Use:   "keygen -o name",
		Short: "Generate recipient key pairs",
		Long: `Keygen writes a new key pair to name` + PublicSuffix + ` and name` + PrivateSuffix + `.
With --count, key pairs are written to name-1, name-2 and so on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.E(errors.Invalid, "keygen requires --output")
			}
			if count < 1 {
				return errors.E(errors.Invalid, fmt.Sprintf("count %d", count))
			}
			pool, err := asym.NewPool(count-1, 0, nil)
			if err != nil {
				return err
			}
			defer pool.Wait()
			for i := 1; i <= count; i++ {
				if err := cmd.Context().Err(); err != nil {
					return errors.E(errors.Canceled, err)
				}
				kp, err := pool.New()
				if err != nil {
					return err
				}
				base := out
				if count > 1 {
					base = fmt.Sprintf("%s-%d", out, i)
				}
				if err := e.writeKeyPair(base, kp); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s %s\n", base, PublicSuffix, kp.Public.Fingerprint())
			}
			return nil
		},
	}
	c.Flags().StringVarP(&out, "output", "o", "", "base name of the key files")
	c.Flags().IntVarP(&count, "count", "n", 1, "number of key pairs to generate")
	return c
}

func (e *env) writeKeyPair(base string, kp *asym.KeyPair) error {
	for _, f := range []struct {
		path string
		data []byte
	}{
		{base + PrivateSuffix, kp.Private.MarshalPEM()},
		{base + PublicSuffix, kp.Public.MarshalPEM()},
	} {
		o, err := e.createOutput(f.path)
		if err != nil {
			return err
		}
		_, err = o.Writer().Write(f.data)
		if err = o.Finish(err); err != nil {
			return err
		}
	}
	log.Debug.Printf("wrote key pair %s", base)
	return nil
}
