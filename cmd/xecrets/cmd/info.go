// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rescenic/xecrets-net/document"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/spf13/cobra"
)

func (e *env) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info file...",
		Short: "Print the unencrypted headers of containers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				in, _, err := e.openInput(name)
				if err != nil {
					return err
				}
				c, err := document.Open(in)
				in.Close() // nolint: errcheck
				if err != nil {
					return errors.E(name, err)
				}
				printInfo(cmd.OutOrStdout(), name, c.Info())
			}
			return nil
		},
	}
}

func printInfo(w io.Writer, name string, info document.Info) {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "%s:\n", name)
	fmt.Fprintf(tw, "\tversion:\t%d.%d (%v)\n", info.Version.Major, info.Version.Minor, info.Engine)
	if info.Metadata.Name != "" {
		fmt.Fprintf(tw, "\tname:\t%s\n", info.Metadata.Name)
	}
	for _, t := range []struct {
		label string
		t     time.Time
	}{
		{"created", info.Metadata.Created},
		{"accessed", info.Metadata.Accessed},
		{"modified", info.Metadata.Modified},
	} {
		if !t.t.IsZero() {
			fmt.Fprintf(tw, "\t%s:\t%s\n", t.label, t.t.Format(time.RFC3339))
		}
	}
	fmt.Fprintf(tw, "\tcompressed:\t%v\n", info.Compressed)
	fmt.Fprintf(tw, "\tplaintext:\t%d bytes\n", info.Lengths.Plaintext)
	fmt.Fprintf(tw, "\tpassphrase:\t%v\n", info.Passphrase)
	fmt.Fprintf(tw, "\trecipients:\t%d\n", info.Recipients)
	if info.Unrecognized > 0 {
		fmt.Fprintf(tw, "\tunrecognized blocks:\t%d\n", info.Unrecognized)
	}
	tw.Flush() // nolint: errcheck
}
