// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package iteration picks key derivation work factors by timing the
// host. A Calculator runs the work function in batches for a short
// calibration period and extrapolates to the number of iterations
// that would take a target duration, never going below a fixed
// minimum guarantee.
package iteration

import (
	"crypto/aes"
	"crypto/sha512"
	"time"

	"github.com/rescenic/xecrets-net/crypto/keywrap"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Calibration is how long the work function is timed.
	Calibration = 500 * time.Millisecond
	// Batch is the number of iterations run between clock readings.
	Batch = 1000
	// MaxCalibrationIterations bounds calibration when the clock does
	// not advance.
	MaxCalibrationIterations = 100 * 1000 * 1000
	// MaxIterations bounds the result of Compute. Container headers
	// store work factors as 32-bit values.
	MaxIterations = 10 * 1000 * 1000

	// V1KeyWrapMinimum is the least number of key wrap rounds written
	// to legacy containers.
	V1KeyWrapMinimum = 20000
	// V1KeyWrapTarget is the time one legacy key wrap should take.
	V1KeyWrapTarget = 100 * time.Millisecond
	// V2KeyDerivationMinimum is the least number of PBKDF2 iterations
	// written to modern containers.
	V2KeyDerivationMinimum = 10000
	// V2KeyDerivationTarget is the time one modern key derivation
	// should take.
	V2KeyDerivationTarget = 50 * time.Millisecond
)

// Calculator times Work against Now. Both must be set.
type Calculator struct {
	// Now reads the clock. It is called once before calibration and
	// once after every batch.
	Now func() time.Time
	// Work performs n iterations of the operation being tuned.
	Work func(n int)
}

// Compute returns the number of iterations of c.Work that take about
// target, at least minimum and at most MaxIterations.
func (c Calculator) Compute(target time.Duration, minimum int64) int64 {
	var (
		start      = c.Now()
		iterations int64
		elapsed    time.Duration
	)
	for iterations < MaxCalibrationIterations {
		c.Work(Batch)
		iterations += Batch
		elapsed = c.Now().Sub(start)
		if elapsed >= Calibration || elapsed < 0 {
			break
		}
	}
	if elapsed <= 0 {
		return minimum
	}
	n := int64(float64(iterations) * float64(target) / float64(elapsed))
	switch {
	case n < minimum:
		return minimum
	case n > MaxIterations:
		return MaxIterations
	}
	return n
}

// V1KeyWrapIterations returns the number of key wrap rounds to use for
// a new legacy container on this host.
func V1KeyWrapIterations(now func() time.Time) int64 {
	return Calculator{Now: now, Work: keyWrapWork()}.Compute(V1KeyWrapTarget, V1KeyWrapMinimum)
}

// V2KeyDerivationIterations returns the number of PBKDF2 iterations to
// use for a new modern container on this host.
func V2KeyDerivationIterations(now func() time.Time) int64 {
	return Calculator{Now: now, Work: pbkdf2Work}.Compute(V2KeyDerivationTarget, V2KeyDerivationMinimum)
}

func keyWrapWork() func(int) {
	block, err := aes.NewCipher(make([]byte, 16))
	if err != nil {
		panic(err)
	}
	plain := make([]byte, 16)
	return func(n int) {
		_, _ = keywrap.Wrap(block, plain, n)
	}
}

var calibrationSalt = make([]byte, 32)

func pbkdf2Work(n int) {
	_ = pbkdf2.Key([]byte("calibration"), calibrationSalt, n, 32, sha512.New)
}
