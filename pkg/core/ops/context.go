// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/declops/internal/workspace"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/google/uuid"
)

// Call is a request to run an operation.
type Call struct {
	// Op is the name, or a synonym, of the operation.
	Op string

	Inputs []*tensors.Tensor

	// IArgs, TArgs and BArgs are the integer, float and boolean arguments.
	IArgs []int64
	TArgs []float64
	BArgs []bool
}

// args shared by ShapeContext and CallContext.
type args struct {
	op    string
	iArgs []int64
	tArgs []float64
	bArgs []bool
}

// OpName returns the canonical name of the operation being called.
func (a *args) OpName() string { return a.op }

// IArgs returns the integer arguments of the call.
func (a *args) IArgs() []int64 { return a.iArgs }

// TArgs returns the float arguments of the call.
func (a *args) TArgs() []float64 { return a.tArgs }

// BArgs returns the boolean arguments of the call.
func (a *args) BArgs() []bool { return a.bArgs }

// IArg returns the i-th integer argument, or defaultValue if there are not enough arguments.
func (a *args) IArg(i int, defaultValue int64) int64 {
	if i < len(a.iArgs) {
		return a.iArgs[i]
	}
	return defaultValue
}

// TArg returns the i-th float argument, or defaultValue if there are not enough arguments.
func (a *args) TArg(i int, defaultValue float64) float64 {
	if i < len(a.tArgs) {
		return a.tArgs[i]
	}
	return defaultValue
}

// BArg returns the i-th boolean argument, or defaultValue if there are not enough arguments.
func (a *args) BArg(i int, defaultValue bool) bool {
	if i < len(a.bArgs) {
		return a.bArgs[i]
	}
	return defaultValue
}

// ShapeContext is what shape inference sees of a call: the input shapes and the arguments,
// but not the input data.
type ShapeContext struct {
	args
	inputs            []shapes.Shape
	defaultIndexDType dtypes.DType
	scope             *workspace.Scope
}

// NumInputs returns the number of inputs of the call.
func (c *ShapeContext) NumInputs() int { return len(c.inputs) }

// InputShape returns the shape of the i-th input.
func (c *ShapeContext) InputShape(i int) shapes.Shape { return c.inputs[i] }

// InputShapes returns the shapes of all inputs. The slice must not be modified.
func (c *ShapeContext) InputShapes() []shapes.Shape { return c.inputs }

// DefaultIndexDType is the dtype of index outputs when the call doesn't override it.
func (c *ShapeContext) DefaultIndexDType() dtypes.DType { return c.defaultIndexDType }

// Scratch returns a zeroed buffer of n words, valid until shape inference returns.
// Shapes returned by shape inference must not reference it.
func (c *ShapeContext) Scratch(n int) []int64 { return c.scope.Alloc(n) }

// CallContext is what execution sees of a call: the inputs, the allocated outputs and the arguments.
type CallContext struct {
	args

	// ID identifies the call in the logs.
	ID uuid.UUID

	inputs, outputs []*tensors.Tensor
	state           State
}

// NumInputs returns the number of inputs of the call.
func (c *CallContext) NumInputs() int { return len(c.inputs) }

// Input returns the i-th input.
func (c *CallContext) Input(i int) *tensors.Tensor { return c.inputs[i] }

// Inputs returns all inputs. The slice must not be modified.
func (c *CallContext) Inputs() []*tensors.Tensor { return c.inputs }

// Output returns the i-th output.
func (c *CallContext) Output(i int) *tensors.Tensor { return c.outputs[i] }

// Outputs returns all outputs. The slice must not be modified.
func (c *CallContext) Outputs() []*tensors.Tensor { return c.outputs }

// State returns the current state of the call.
func (c *CallContext) State() State { return c.state }
