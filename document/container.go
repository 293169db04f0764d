// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"io"

	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"github.com/rescenic/xecrets-net/reader"
)

// Container is an opened container positioned at its data region.
// Its data can be decrypted once.
type Container struct {
	r      *reader.Reader
	fields fields
}

// Open reads the preamble and the header blocks of a container.
// Malformed headers and versions newer than this package understands
// are Format errors, reported before any key is tried.
func Open(r io.Reader) (*Container, error) {
	rd := reader.New(r)
	for rd.Read() {
		if rd.Type() == reader.Data {
			break
		}
	}
	if rd.Type() != reader.Data {
		if err := rd.Err(); err != nil {
			return nil, err
		}
		return nil, errors.E(errors.Format, "missing data block")
	}
	f, err := parseFields(rd.Engine(), rd.Blocks())
	if err != nil {
		return nil, err
	}
	return &Container{r: rd, fields: f}, nil
}

// Info describes a container without decrypting it.
type Info struct {
	Version    header.Version
	Engine     header.Engine
	Compressed bool
	Metadata   FileMetadata
	Lengths    header.Lengths
	// Passphrase tells whether the container can be opened with a
	// passphrase.
	Passphrase bool
	// Recipients is the number of public key recipients.
	Recipients int
	// Unrecognized is the number of optional blocks that were
	// skipped.
	Unrecognized int
}

// Info returns the unencrypted header information of c.
func (c *Container) Info() Info {
	f := &c.fields
	return Info{
		Version:      f.version,
		Engine:       f.engine,
		Compressed:   f.compressed,
		Metadata:     f.metadata,
		Lengths:      f.lengths,
		Passphrase:   f.passphrase != nil,
		Recipients:   len(f.recipients),
		Unrecognized: f.unrecognized,
	}
}

// Engine returns the format generation of c.
func (c *Container) Engine() header.Engine { return c.fields.engine }
