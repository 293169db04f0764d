// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package asym

import (
	"fmt"
	"sync"

	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/log"
)

// Pool pre-generates key pairs in the background so that New rarely
// has to wait for key generation. A single goroutine refills the pool
// up to its buffer count; the first firstBatch refill steps are taken
// regardless of how full the pool is.
type Pool struct {
	generate func() (*KeyPair, error)
	buffer   int

	mu         sync.Mutex
	idle       *sync.Cond
	queue      []*KeyPair
	firstBatch int
	refilling  bool
}

// NewPool returns a pool that keeps bufferCount key pairs ready and
// generates firstBatch key pairs on its first refill. If generate is
// nil, GenerateKeyPair with crypto/rand is used. The pool does not
// start refilling until Start or New is called.
func NewPool(firstBatch, bufferCount int, generate func() (*KeyPair, error)) (*Pool, error) {
	if firstBatch < 0 || bufferCount < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("pool sizes %d, %d", firstBatch, bufferCount))
	}
	if generate == nil {
		generate = func() (*KeyPair, error) { return GenerateKeyPair(nil) }
	}
	p := &Pool{generate: generate, buffer: bufferCount, firstBatch: firstBatch}
	p.idle = sync.NewCond(&p.mu)
	return p, nil
}

// New returns a key pair from the pool, or generates one inline if the
// pool is empty. It then makes sure a refill is under way.
func (p *Pool) New() (*KeyPair, error) {
	p.mu.Lock()
	var kp *KeyPair
	if len(p.queue) > 0 {
		kp = p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
	}
	p.mu.Unlock()
	var err error
	if kp == nil {
		kp, err = p.generate()
	}
	p.Start()
	return kp, err
}

// Start begins a background refill unless one is already running.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refilling {
		return
	}
	p.refilling = true
	go p.refill()
}

// full reports whether the refill should stop. The first firstBatch
// calls report false.
func (p *Pool) full() bool {
	if p.firstBatch > 0 {
		p.firstBatch--
		return false
	}
	return len(p.queue) >= p.buffer
}

// done ends a refill. It is called with p.mu held.
func (p *Pool) done() {
	p.refilling = false
	p.idle.Broadcast()
}

func (p *Pool) refill() {
	for {
		p.mu.Lock()
		if p.full() {
			p.done()
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()
		kp, err := p.generate()
		p.mu.Lock()
		if err != nil {
			p.done()
			p.mu.Unlock()
			log.Error.Printf("asym: background key pair generation failed: %v", err)
			return
		}
		p.queue = append(p.queue, kp)
		p.mu.Unlock()
	}
}

// Available returns the number of key pairs ready in the pool.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Wait blocks until no refill is running. It may be called
// concurrently with New and Start.
func (p *Pool) Wait() {
	p.mu.Lock()
	for p.refilling {
		p.idle.Wait()
	}
	p.mu.Unlock()
}
