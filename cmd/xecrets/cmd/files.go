// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/log"
	"github.com/rescenic/xecrets-net/morebufio"
	"golang.org/x/sync/errgroup"
)

const stdio = "-"

// parallelism bounds the number of files processed at once.
var parallelism = runtime.GOMAXPROCS(0)

// forEachFile calls fn for each of names in parallel. It returns the
// first error; the context passed to the remaining calls is then
// canceled. An explicit output path or stdio is allowed only with a
// single file.
func forEachFile(ctx context.Context, names []string, out string, fn func(ctx context.Context, name string) error) error {
	if len(names) > 1 {
		if out != "" {
			return errors.E(errors.Invalid, "--output requires a single file")
		}
		for _, name := range names {
			if name == stdio {
				return errors.E(errors.Invalid, "stdin cannot be combined with other files")
			}
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, name := range names {
		name := name
		g.Go(func() error { return fn(ctx, name) })
	}
	return g.Wait()
}

// openInput opens path for reading, or returns stdin for "-".
func (e *env) openInput(path string) (io.ReadCloser, os.FileInfo, error) {
	if path == stdio {
		return io.NopCloser(e.stdin), nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.E("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() // nolint: errcheck
		return nil, nil, errors.E("stat", path, err)
	}
	return f, info, nil
}

// output is a file being written, or a buffer that is copied to
// stdout once complete. Output written to stdout is buffered so that
// nothing is emitted for a container that fails to authenticate.
type output struct {
	path   string
	f      *os.File
	buf    *morebufio.WriteSeekBuffer
	stdout io.Writer
}

func (e *env) createOutput(path string) (*output, error) {
	if path == stdio {
		return &output{path: path, buf: new(morebufio.WriteSeekBuffer), stdout: e.stdout}, nil
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if e.force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0600)
	if err != nil {
		return nil, errors.E("create", path, err)
	}
	return &output{path: path, f: f}, nil
}

// Writer returns the destination, which implements io.WriteSeeker.
func (o *output) Writer() io.WriteSeeker {
	if o.f != nil {
		return o.f
	}
	return o.buf
}

// Finish completes the output if err is nil. Otherwise it removes the
// partially written file and returns err.
func (o *output) Finish(err error) error {
	if o.f == nil {
		if err != nil {
			return err
		}
		_, err = o.buf.WriteTo(o.stdout)
		return err
	}
	if err == nil {
		if err = o.f.Close(); err == nil {
			return nil
		}
	} else {
		o.f.Close() // nolint: errcheck
	}
	if rerr := os.Remove(o.path); rerr != nil {
		log.Error.Printf("removing partial output %s: %v", o.path, rerr)
	} else {
		log.Debug.Printf("removed partial output %s", o.path)
	}
	return err
}

func (o *output) String() string {
	if o.f == nil {
		return "stdout"
	}
	return fmt.Sprintf("%q", o.path)
}
