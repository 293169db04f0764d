// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command xecrets encrypts and decrypts files.
//
//	xecrets encrypt [-o out.axx] [--recipient key.pub]... file
//	xecrets decrypt [-o out] [--key key.key]... file.axx
//	xecrets info file.axx
//	xecrets keygen -o name
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rescenic/xecrets-net/cmd/xecrets/cmd"
	"github.com/rescenic/xecrets-net/log"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("xecrets: ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		log.Fatal(err)
	}
}
