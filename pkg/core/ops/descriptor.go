// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops defines declarable operations and the Dispatcher that runs them.
//
// An Operation is declared by three pieces, bound together by New:
//
//   - its type constraints (DeclareTypes), checked against the input and output dtypes;
//   - its shape inference (InferShape), which computes the output shapes from the input shapes
//     and arguments, without access to the tensors' data;
//   - its execution (Execute), which fills the outputs allocated by the Dispatcher.
//
// Operations are registered once in a Registry, usually during initialization, and are
// read-only afterward. The Dispatcher takes each call through the states described in State:
// arity and input types are validated, output shapes are inferred and interned in a
// shapecache.Cache, outputs are allocated, and finally the operation is executed.
package ops

import (
	"fmt"

	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/typeconstraints"
)

// Unbounded is used as Descriptor.MaxInputs for operations taking any number of inputs.
const Unbounded = -1

// Descriptor is the static metadata of an operation.
type Descriptor struct {
	// Name is the canonical name of the operation.
	Name string

	// Synonyms are alternative names resolving to the same operation.
	Synonyms []string

	// MinInputs and MaxInputs bound the number of inputs. MaxInputs can be Unbounded.
	MinInputs, MaxInputs int

	// NumOutputs is the exact number of outputs: shape inference must return this many shapes.
	NumOutputs int

	// MinIArgs and MinTArgs are the required number of integer and float arguments.
	MinIArgs, MinTArgs int
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s(inputs=%s, outputs=%d)", d.Name, d.InputsRange(), d.NumOutputs)
}

// InputsRange returns the accepted number of inputs in a human-readable form, e.g. "1", "2..3" or "1+".
func (d Descriptor) InputsRange() string {
	switch {
	case d.MaxInputs == Unbounded:
		return fmt.Sprintf("%d+", d.MinInputs)
	case d.MinInputs == d.MaxInputs:
		return fmt.Sprintf("%d", d.MinInputs)
	default:
		return fmt.Sprintf("%d..%d", d.MinInputs, d.MaxInputs)
	}
}

// Operation is the interface implemented by every declarable operation.
type Operation interface {
	// Descriptor returns the static metadata of the operation.
	Descriptor() Descriptor

	// DeclareTypes returns the dtype constraints of the operation. It is called once, at registration.
	// A nil Declaration accepts any dtype.
	DeclareTypes() *typeconstraints.Declaration

	// InferShape returns the output shapes given the input shapes and arguments.
	// It must return exactly Descriptor().NumOutputs shapes, or an error.
	InferShape(ctx *ShapeContext) ([]shapes.Shape, error)

	// Execute computes the outputs, already allocated with the inferred shapes.
	Execute(ctx *CallContext) error
}

// ExecuteFn implements Operation.Execute.
type ExecuteFn func(ctx *CallContext) error

// InferShapeFn implements Operation.InferShape.
type InferShapeFn func(ctx *ShapeContext) ([]shapes.Shape, error)

// DeclareTypesFn implements Operation.DeclareTypes.
type DeclareTypesFn func() *typeconstraints.Declaration

// funcOperation implements Operation with a function per method.
type funcOperation struct {
	descriptor   Descriptor
	execute      ExecuteFn
	inferShape   InferShapeFn
	declareTypes DeclareTypesFn
}

// New creates an Operation from its descriptor and the functions implementing it.
// declareTypes can be nil, in which case any dtype is accepted.
func New(descriptor Descriptor, execute ExecuteFn, inferShape InferShapeFn, declareTypes DeclareTypesFn) Operation {
	return &funcOperation{
		descriptor:   descriptor,
		execute:      execute,
		inferShape:   inferShape,
		declareTypes: declareTypes,
	}
}

func (op *funcOperation) Descriptor() Descriptor { return op.descriptor }

func (op *funcOperation) DeclareTypes() *typeconstraints.Declaration {
	if op.declareTypes == nil {
		return nil
	}
	return op.declareTypes()
}

func (op *funcOperation) InferShape(ctx *ShapeContext) ([]shapes.Shape, error) {
	return op.inferShape(ctx)
}

func (op *funcOperation) Execute(ctx *CallContext) error {
	return op.execute(ctx)
}
