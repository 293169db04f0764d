// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package document

import (
	"context"
	"io"

	"github.com/rescenic/xecrets-net/compress"
	"github.com/rescenic/xecrets-net/crypto/asym"
	"github.com/rescenic/xecrets-net/crypto/key"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/header"
	"github.com/rescenic/xecrets-net/reader"
	"github.com/rescenic/xecrets-net/writehash"
)

// EncryptTo encrypts plain into out with the default policy.
func EncryptTo(ctx context.Context, plain io.Reader, out io.Writer, params EncryptionParameters, opts Options) error {
	return DefaultPolicy().EncryptTo(ctx, plain, out, params, opts)
}

// EncryptTo encrypts plain into a new container written to out, which
// must implement io.WriteSeeker. On error, including cancellation of
// ctx, out holds a partial container and it is up to the caller to
// discard it.
func (p Policy) EncryptTo(ctx context.Context, plain io.Reader, out io.Writer, params EncryptionParameters, opts Options) error {
	compressed, err := opts.compressed()
	if err != nil {
		return err
	}
	ws, ok := out.(io.WriteSeeker)
	if !ok {
		return errors.E(errors.Invalid, "output must be seekable")
	}
	if p.ChunkSize <= 0 || p.ChunkSize > header.MaxPayloadSize {
		return errors.E(errors.Invalid, "chunk size out of range")
	}
	f, err := p.factory(params)
	if err != nil {
		return err
	}
	pl := pipelineFor(engineOf(f.Legacy()))

	master, err := key.NewRandomKey(f.KeySize())
	if err != nil {
		return err
	}
	defer master.Zero()
	iv, err := key.NewRandomIV()
	if err != nil {
		return err
	}
	hmacKey, dataKey, err := pl.subkeys(master, f.KeySize())
	if err != nil {
		return err
	}
	defer hmacKey.Zero()
	defer dataKey.Zero()

	blocks := []header.Block{pl.version()}
	if params.Passphrase != nil {
		kek, err := f.NewDerivedKey(*params.Passphrase, p.iterations(f))
		if err != nil {
			return err
		}
		wrapped, err := f.Wrap(kek, master)
		kek.Zero()
		if err != nil {
			return err
		}
		blocks = append(blocks, header.PassphraseKeyWrap{
			Salt:       kek.Salt,
			Iterations: uint32(kek.Iterations),
			Wrapped:    wrapped,
		})
	}
	for _, pub := range params.Recipients {
		b, err := asym.WrapKey(pub, f, master)
		if err != nil {
			return err
		}
		blocks = append(blocks, b)
	}
	blocks = append(blocks,
		header.Compression{Compressed: compressed},
		params.Metadata,
		header.IV{IV: iv},
		header.Lengths{},
		pl.dataBlock(0),
	)

	w, err := reader.NewWriter(ws, writehash.New(hmacKey, pl.scope()))
	if err != nil {
		return err
	}
	if err := w.WriteMagic(); err != nil {
		return err
	}
	for _, b := range blocks {
		if err := w.WriteBlock(b); err != nil {
			return err
		}
	}

	block, err := f.NewBlock(dataKey)
	if err != nil {
		return err
	}
	start := w.Len()
	sealer := pl.newSealer(block, iv, w, p.ChunkSize)
	var (
		sink io.Writer = sealer
		zw   *compress.ChunkWriter
	)
	if compressed {
		if zw, err = compress.NewChunkWriter(sealer, p.CompressionLevel); err != nil {
			return err
		}
		sink = zw
	}
	var (
		buf   = make([]byte, p.ChunkSize)
		total int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return errors.E(errors.Canceled, err)
		}
		n, rerr := io.ReadFull(plain, buf)
		if n > 0 {
			if _, err := sink.Write(buf[:n]); err != nil {
				return err
			}
			if zw != nil {
				if err := zw.SyncFlush(); err != nil {
					return err
				}
			}
			total += int64(n)
			if opts.Progress != nil {
				opts.Progress(total)
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return errors.E("reading plaintext", rerr)
		}
	}
	lengths := header.Lengths{Plaintext: total, Compressed: total}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
		lengths.Compressed = zw.Out()
	}
	if err := sealer.Close(); err != nil {
		return err
	}
	if err := w.Patch(lengths); err != nil {
		return err
	}
	if d := pl.dataBlock(w.Len() - start); header.IsPatchable(d) {
		if err := w.Patch(d); err != nil {
			return err
		}
	}
	return w.Finish()
}
