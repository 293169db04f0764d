// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cmd implements the xecrets subcommands.
package cmd

import (
	"context"
	"io"

	"github.com/rescenic/xecrets-net/crypto/encryption/passwd"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/document"
	"github.com/rescenic/xecrets-net/log"
	"github.com/spf13/cobra"
)

// env is the state shared by the subcommands of one invocation.
type env struct {
	stdin  io.Reader
	stdout io.Writer

	iterations int64
	force      bool

	readPassphrase    func(prompt string) (key.Passphrase, error)
	readNewPassphrase func(prompt, confirm string) (key.Passphrase, error)
}

// Run parses args and runs the selected subcommand. "-" names stdin
// or stdout.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	e := &env{
		stdin:             stdin,
		stdout:            stdout,
		readPassphrase:    passwd.Read,
		readNewPassphrase: passwd.ReadNew,
	}
	root := e.root()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (e *env) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "xecrets",
		Short:         "Encrypt and decrypt xecrets containers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(e.stdout)
	flags := root.PersistentFlags()
	flags.Var(log.LevelFlag{}, "log", "log level: off, error, info or debug")
	flags.Int64Var(&e.iterations, "iterations", 0, "key derivation work factor for new containers; 0 calibrates")
	flags.BoolVarP(&e.force, "force", "f", false, "overwrite existing output files")
	root.AddCommand(e.encryptCmd(), e.decryptCmd(), e.infoCmd(), e.keygenCmd())
	return root
}

func (e *env) policy() document.Policy {
	p := document.DefaultPolicy()
	if e.iterations > 0 {
		p.LegacyIterations = e.iterations
		p.ModernIterations = e.iterations
	}
	return p
}
