// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	"io"
	golog "log"
	"sync/atomic"
)

var golevel int32 = int32(Info)

const (
	Ldate         = golog.Ldate
	Ltime         = golog.Ltime
	Lmicroseconds = golog.Lmicroseconds
	Lshortfile    = golog.Lshortfile
	LstdFlags     = Ldate | Ltime
)

// SetFlags sets the output flags for the Go standard logger.
func SetFlags(flag int) {
	golog.SetFlags(flag)
}

// SetOutput sets the output destination for the Go standard logger.
func SetOutput(w io.Writer) {
	golog.SetOutput(w)
}

// SetPrefix sets the output prefix for the Go standard logger.
func SetPrefix(prefix string) {
	golog.SetPrefix(prefix)
}

// SetLevel sets the log level for the Go standard logger.
// It should be called once at the beginning of a program's main.
func SetLevel(level Level) {
	atomic.StoreInt32(&golevel, int32(level))
}

// LevelFlag is a command line flag value that sets the level of the Go
// standard logger. It implements both flag.Value and pflag.Value.
type LevelFlag struct{}

// String implements flag.Value.
func (LevelFlag) String() string {
	return Level(atomic.LoadInt32(&golevel)).String()
}

// Set implements flag.Value.
func (LevelFlag) Set(s string) error {
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	SetLevel(l)
	return nil
}

// Type implements pflag.Value.
func (LevelFlag) Type() string { return "level" }

type gologOutputter struct{}

func (gologOutputter) Level() Level { return Level(atomic.LoadInt32(&golevel)) }

func (o gologOutputter) Output(calldepth int, level Level, s string) error {
	if o.Level() < level {
		return nil
	}
	return golog.Output(calldepth+1, s)
}
