// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package encryption

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rescenic/xecrets-net/errors"
	"github.com/rescenic/xecrets-net/must"
)

// Constructor returns a new instance of a factory. Factories are
// stateless, so a constructor may return a shared value.
type Constructor func() Factory

// Registry maps format ids to factory constructors.
type Registry struct {
	mu    sync.Mutex
	order []uuid.UUID
	ctors map[uuid.UUID]Constructor
}

// Standard is the registry of built-in factories.
var Standard = NewRegistry()

// NewRegistry returns a registry populated with the built-in
// factories, registered in a fixed order.
func NewRegistry() *Registry {
	r := &Registry{ctors: map[uuid.UUID]Constructor{}}
	for _, ctor := range []Constructor{
		func() Factory { return v1AES128 },
		func() Factory { return v2AES128 },
		func() Factory { return v2AES256 },
	} {
		must.Nil(r.Register(ctor), "registering built-in factory")
	}
	return r
}

// NewEmptyRegistry returns a registry with no factories.
func NewEmptyRegistry() *Registry {
	return &Registry{ctors: map[uuid.UUID]Constructor{}}
}

// Register adds a factory constructor. Registering the same id twice
// is an error.
func (r *Registry) Register(ctor Constructor) error {
	if ctor == nil {
		return errors.E(errors.Invalid, "nil factory constructor")
	}
	id := ctor().ID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, present := r.ctors[id]; present {
		return errors.E(errors.Invalid, fmt.Sprintf("already registered: %v", id))
	}
	r.ctors[id] = ctor
	r.order = append(r.order, id)
	return nil
}

// Create returns the factory with the given id. The zero UUID denotes
// the legacy factory, since legacy containers carry no format id.
func (r *Registry) Create(id uuid.UUID) (Factory, error) {
	if id == uuid.Nil {
		return r.Legacy()
	}
	r.mu.Lock()
	ctor := r.ctors[id]
	r.mu.Unlock()
	if ctor == nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("unknown format id %v", id))
	}
	return ctor(), nil
}

// Default returns the non-legacy factory with the highest priority.
func (r *Registry) Default() (Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best Factory
	for _, id := range r.order {
		f := r.ctors[id]()
		if f.Legacy() {
			continue
		}
		if best == nil || f.Priority() > best.Priority() {
			best = f
		}
	}
	if best == nil {
		return nil, errors.E(errors.Invalid, "no default format registered")
	}
	return best, nil
}

// Legacy returns the legacy factory.
func (r *Registry) Legacy() (Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		if f := r.ctors[id](); f.Legacy() {
			return f, nil
		}
	}
	return nil, errors.E(errors.Invalid, "no legacy format registered")
}

// Minimum returns the non-legacy factory with the lowest priority,
// the weakest format still acceptable for new containers.
func (r *Registry) Minimum() (Factory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var least Factory
	for _, id := range r.order {
		f := r.ctors[id]()
		if f.Legacy() {
			continue
		}
		if least == nil || f.Priority() < least.Priority() {
			least = f
		}
	}
	if least == nil {
		return nil, errors.E(errors.Invalid, "no modern format registered")
	}
	return least, nil
}

// OrderedIDs returns the registered ids in the order in which they
// should be tried when matching a key against a container: the
// default first, then the others in registration order, then the
// legacy id last.
func (r *Registry) OrderedIDs() []uuid.UUID {
	var def, legacy uuid.UUID
	if f, err := r.Default(); err == nil {
		def = f.ID()
	}
	if f, err := r.Legacy(); err == nil {
		legacy = f.ID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.order))
	if def != uuid.Nil {
		ids = append(ids, def)
	}
	for _, id := range r.order {
		if id != def && id != legacy {
			ids = append(ids, id)
		}
	}
	if legacy != uuid.Nil {
		ids = append(ids, legacy)
	}
	return ids
}
