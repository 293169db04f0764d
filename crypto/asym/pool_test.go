// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package asym

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/rescenic/xecrets-net/log"
	"golang.org/x/sync/errgroup"
)

type countingGenerator struct {
	n   int64
	err error
}

func (g *countingGenerator) generate() (*KeyPair, error) {
	atomic.AddInt64(&g.n, 1)
	if g.err != nil {
		return nil, g.err
	}
	// Key material is irrelevant to the pool.
	return &KeyPair{}, nil
}

func (g *countingGenerator) count() int64 { return atomic.LoadInt64(&g.n) }

func TestPoolFirstBatch(t *testing.T) {
	g := new(countingGenerator)
	p, err := NewPool(3, 2, g.generate)
	assert.NoError(t, err)
	expect.EQ(t, p.Available(), 0)
	p.Start()
	p.Wait()
	// The first batch is generated even beyond the buffer count.
	expect.EQ(t, p.Available(), 3)
	expect.EQ(t, g.count(), int64(3))

	_, err = p.New()
	assert.NoError(t, err)
	p.Wait()
	expect.EQ(t, p.Available(), 2)
	expect.EQ(t, g.count(), int64(3))

	for i := 0; i < 2; i++ {
		_, err = p.New()
		assert.NoError(t, err)
		p.Wait()
	}
	expect.EQ(t, p.Available(), 2)
	expect.EQ(t, g.count(), int64(5))
}

func TestPoolInline(t *testing.T) {
	g := new(countingGenerator)
	p, err := NewPool(0, 0, g.generate)
	assert.NoError(t, err)
	kp, err := p.New()
	assert.NoError(t, err)
	expect.True(t, kp != nil)
	p.Wait()
	expect.EQ(t, p.Available(), 0)
	expect.EQ(t, g.count(), int64(1))
}

type captureOutputter struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *captureOutputter) Level() log.Level { return log.Error }

func (c *captureOutputter) Output(calldepth int, level log.Level, s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteString(s)
	return nil
}

func (c *captureOutputter) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func TestPoolErrors(t *testing.T) {
	capture := new(captureOutputter)
	old := log.SetOutputter(capture)
	defer log.SetOutputter(old)

	g := &countingGenerator{err: fmt.Errorf("entropy exhausted")}
	p, err := NewPool(1, 1, g.generate)
	assert.NoError(t, err)
	_, err = p.New()
	expect.HasSubstr(t, err, "entropy exhausted")
	p.Wait()
	expect.HasSubstr(t, capture.String(), "background key pair generation failed: entropy exhausted")

	_, err = NewPool(-1, 0, nil)
	expect.HasSubstr(t, err, "invalid argument")
}

func TestPoolConcurrent(t *testing.T) {
	g := new(countingGenerator)
	p, err := NewPool(4, 8, g.generate)
	assert.NoError(t, err)
	p.Start()
	const n = 64
	var grp errgroup.Group
	for i := 0; i < n; i++ {
		grp.Go(func() error {
			kp, err := p.New()
			if err == nil && kp == nil {
				err = fmt.Errorf("nil key pair")
			}
			return err
		})
	}
	assert.NoError(t, grp.Wait())
	p.Wait()
	expect.EQ(t, g.count(), int64(n+p.Available()))
}

func TestPoolWaitDuringNew(t *testing.T) {
	g := new(countingGenerator)
	p, err := NewPool(2, 2, g.generate)
	assert.NoError(t, err)
	var grp errgroup.Group
	for i := 0; i < 32; i++ {
		grp.Go(func() error {
			_, err := p.New()
			return err
		})
		grp.Go(func() error {
			p.Wait()
			return nil
		})
	}
	assert.NoError(t, grp.Wait())
	p.Wait()
	p.mu.Lock()
	refilling := p.refilling
	p.mu.Unlock()
	expect.False(t, refilling)
	expect.EQ(t, g.count(), int64(32+p.Available()))
}

func TestPoolRealKeys(t *testing.T) {
	p, err := NewPool(1, 1, nil)
	assert.NoError(t, err)
	kp, err := p.New()
	assert.NoError(t, err)
	expect.EQ(t, len(kp.Public.Bytes()), PublicKeySize)
	p.Wait()
}
