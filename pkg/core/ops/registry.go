// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"iter"
	"sync"

	"github.com/gomlx/declops/pkg/core/typeconstraints"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry of operations, indexed by their names and synonyms.
// Operations are listed in registration order.
//
// It is safe for concurrent use, but operations are expected to be registered during initialization.
type Registry struct {
	mu       sync.RWMutex
	ops      *orderedmap.OrderedMap[string, Operation]
	synonyms map[string]string
	types    *typeconstraints.Registry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		ops:      orderedmap.New[string, Operation](),
		synonyms: make(map[string]string),
		types:    typeconstraints.NewRegistry(),
	}
}

// Types returns the registry of type declarations, filled as operations are registered.
func (r *Registry) Types() *typeconstraints.Registry { return r.types }

func validateDescriptor(d Descriptor) error {
	if d.Name == "" {
		return errors.Errorf("ops: operation with empty name")
	}
	if d.MinInputs < 0 || (d.MaxInputs != Unbounded && d.MaxInputs < d.MinInputs) {
		return errors.Errorf("ops: operation %q has invalid inputs range [%d, %d]", d.Name, d.MinInputs, d.MaxInputs)
	}
	if d.NumOutputs < 1 {
		return errors.Errorf("ops: operation %q must have at least one output, got %d", d.Name, d.NumOutputs)
	}
	if d.MinIArgs < 0 || d.MinTArgs < 0 {
		return errors.Errorf("ops: operation %q has negative number of required arguments", d.Name)
	}
	return nil
}

func (r *Registry) nameTakenLocked(name string) bool {
	if _, found := r.ops.Get(name); found {
		return true
	}
	_, found := r.synonyms[name]
	return found
}

// Register adds the operation and declares its types.
//
// It returns an error if the descriptor is invalid, or if its name or any of its synonyms is already in use.
func (r *Registry) Register(op Operation) error {
	d := op.Descriptor()
	if err := validateDescriptor(d); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range append([]string{d.Name}, d.Synonyms...) {
		if r.nameTakenLocked(name) {
			return errors.Errorf("ops: operation name %q (registering %q) already registered", name, d.Name)
		}
	}
	if err := r.types.Declare(d.Name, op.DeclareTypes()); err != nil {
		return err
	}
	r.ops.Set(d.Name, op)
	for _, synonym := range d.Synonyms {
		r.synonyms[synonym] = d.Name
	}
	return nil
}

// MustRegister registers the operation, and panics on error.
func (r *Registry) MustRegister(op Operation) {
	if err := r.Register(op); err != nil {
		exceptions.Panicf("ops.MustRegister(): %+v", err)
	}
}

// Lookup returns the operation registered under the name or synonym.
func (r *Registry) Lookup(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, found := r.synonyms[name]; found {
		name = canonical
	}
	return r.ops.Get(name)
}

// Len returns the number of registered operations, not counting synonyms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ops.Len()
}

// Names returns the canonical names of the operations in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, r.ops.Len())
	for pair := r.ops.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// All iterates over the operations in registration order.
func (r *Registry) All() iter.Seq[Operation] {
	return func(yield func(Operation) bool) {
		r.mu.RLock()
		operations := make([]Operation, 0, r.ops.Len())
		for pair := r.ops.Oldest(); pair != nil; pair = pair.Next() {
			operations = append(operations, pair.Value)
		}
		r.mu.RUnlock()
		for _, op := range operations {
			if !yield(op) {
				return
			}
		}
	}
}
