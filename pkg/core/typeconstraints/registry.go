// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package typeconstraints

import (
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Registry maps operator names to their Declaration. It is safe for concurrent use,
// but declarations are expected to be registered once, before the first validation.
type Registry struct {
	mu           sync.RWMutex
	declarations map[string]*Declaration
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{declarations: make(map[string]*Declaration)}
}

// Declare registers the declaration for the operator. A nil declaration accepts any dtype.
//
// It returns an error if the operator already has a declaration.
func (r *Registry) Declare(op string, declaration *Declaration) error {
	if declaration == nil {
		declaration = Declare()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.declarations[op]; found {
		return errors.Errorf("typeconstraints: operator %q already declared", op)
	}
	r.declarations[op] = declaration
	return nil
}

// Lookup returns the declaration of the operator.
func (r *Registry) Lookup(op string) (*Declaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, found := r.declarations[op]
	return d, found
}

func (r *Registry) mustLookup(op string) (*Declaration, error) {
	d, found := r.Lookup(op)
	if !found {
		return nil, errors.Errorf("typeconstraints: no declaration for operator %q", op)
	}
	return d, nil
}

// ValidateInputs checks the input dtypes of a call to op. See Declaration.ValidateInputs.
func (r *Registry) ValidateInputs(op string, inputs []dtypes.DType) error {
	d, err := r.mustLookup(op)
	if err != nil {
		return err
	}
	return d.ValidateInputs(op, inputs)
}

// ValidateOutputs checks the output dtypes of a call to op. See Declaration.ValidateOutputs.
func (r *Registry) ValidateOutputs(op string, inputs, outputs []dtypes.DType) error {
	d, err := r.mustLookup(op)
	if err != nil {
		return err
	}
	return d.ValidateOutputs(op, inputs, outputs)
}

// Validate checks both inputs and outputs dtypes of a call to op.
// It returns nil or a *TypeViolationError (wrapped with a stack trace).
func (r *Registry) Validate(op string, inputs, outputs []dtypes.DType) error {
	d, err := r.mustLookup(op)
	if err != nil {
		return err
	}
	if err = d.ValidateInputs(op, inputs); err != nil {
		return err
	}
	return d.ValidateOutputs(op, inputs, outputs)
}
