// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/declops/internal/workspace"
	"github.com/gomlx/declops/pkg/core/shapecache"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultIndexDType is the dtype of index outputs, unless configured otherwise.
const DefaultIndexDType = dtypes.Int32

// Dispatcher runs calls to the operations of a Registry, interning the output shapes in a Cache.
// It is safe for concurrent use.
type Dispatcher struct {
	ops               *Registry
	cache             *shapecache.Cache
	workspace         *workspace.Workspace
	defaultIndexDType dtypes.DType
}

// NewDispatcher creates a Dispatcher for the operations in registry, interning shapes in cache.
func NewDispatcher(registry *Registry, cache *shapecache.Cache) *Dispatcher {
	return &Dispatcher{
		ops:               registry,
		cache:             cache,
		workspace:         workspace.New(),
		defaultIndexDType: DefaultIndexDType,
	}
}

// WithDefaultIndexDType sets the dtype of index outputs used when the call doesn't override it.
// It returns the Dispatcher itself, and must be called before the Dispatcher is used.
func (d *Dispatcher) WithDefaultIndexDType(dtype dtypes.DType) *Dispatcher {
	d.defaultIndexDType = dtype
	return d
}

// DefaultIndexDType returns the configured dtype of index outputs.
func (d *Dispatcher) DefaultIndexDType() dtypes.DType { return d.defaultIndexDType }

// Registry returns the operations registry.
func (d *Dispatcher) Registry() *Registry { return d.ops }

// Cache returns the cache where output shapes are interned.
func (d *Dispatcher) Cache() *shapecache.Cache { return d.cache }

// Workspace returns the scratch memory used by shape inference.
func (d *Dispatcher) Workspace() *workspace.Workspace { return d.workspace }

// Execute runs the call and returns its outputs, owned by the caller (see tensors.Tensor.Finalize).
//
// Errors are one of (possibly wrapped): ErrUnknownOperation, *ArityError,
// *typeconstraints.TypeViolationError, an error returned by shape inference
// (typically *shapes.ShapeMismatchError), or an error returned by the operation's execution.
// On error, no output is returned and no handle is left referenced.
//
// It panics with a *ShapeContractViolation if the operation's shape inference breaks its contract.
func (d *Dispatcher) Execute(call *Call) ([]*tensors.Tensor, error) {
	ctx, op, err := d.validate(call)
	if err != nil {
		return nil, err
	}
	handles, err := d.inferShapes(ctx, op, call)
	if err != nil {
		return nil, d.reject(ctx, err)
	}
	ctx.transition(ShapeInferred)

	ctx.outputs = make([]*tensors.Tensor, len(handles))
	for ii, handle := range handles {
		ctx.outputs[ii] = tensors.FromHandle(d.cache, handle)
	}
	ctx.transition(OutputAllocated)
	klog.V(2).Infof("ops: call %s to %q: outputs allocated %v", ctx.ID, ctx.op, handles)

	completed := false
	defer func() {
		if !completed {
			// Execution failed or panicked: the outputs are not handed to the caller.
			tensors.FinalizeAll(ctx.outputs)
		}
	}()
	if err = op.Execute(ctx); err != nil {
		ctx.transition(Failed)
		klog.V(1).Infof("ops: call %s to %q failed: %v", ctx.ID, ctx.op, err)
		return nil, errors.WithMessagef(err, "operator %q execution failed", ctx.op)
	}
	ctx.transition(Executed)
	ctx.transition(Completed)
	completed = true
	klog.V(2).Infof("ops: call %s to %q completed", ctx.ID, ctx.op)
	return ctx.outputs, nil
}

// InferShapes runs the call up to shape inference, and returns the interned output shapes.
// Each returned handle holds one reference, owned by the caller (see shapecache.Cache.Release).
//
// Errors and panics are the same as for Execute, except no execution error is possible.
func (d *Dispatcher) InferShapes(call *Call) ([]*shapecache.Handle, error) {
	ctx, op, err := d.validate(call)
	if err != nil {
		return nil, err
	}
	handles, err := d.inferShapes(ctx, op, call)
	if err != nil {
		return nil, d.reject(ctx, err)
	}
	ctx.transition(ShapeInferred)
	return handles, nil
}

// validate looks up the operation and checks the arity and input dtypes of the call.
// On success, the returned context is in the TypeValidated state.
func (d *Dispatcher) validate(call *Call) (*CallContext, Operation, error) {
	ctx := &CallContext{
		args: args{
			op:    call.Op,
			iArgs: call.IArgs,
			tArgs: call.TArgs,
			bArgs: call.BArgs,
		},
		ID:     uuid.New(),
		inputs: call.Inputs,
		state:  Received,
	}
	klog.V(2).Infof("ops: call %s to %q received: %d inputs, iargs=%v, targs=%v, bargs=%v",
		ctx.ID, call.Op, len(call.Inputs), call.IArgs, call.TArgs, call.BArgs)

	op, found := d.ops.Lookup(call.Op)
	if !found {
		return nil, nil, d.reject(ctx, errors.Wrapf(ErrUnknownOperation, "operator %q", call.Op))
	}
	desc := op.Descriptor()
	ctx.op = desc.Name
	if err := checkArity(desc, call); err != nil {
		return nil, nil, d.reject(ctx, err)
	}
	inputDTypes := make([]dtypes.DType, len(call.Inputs))
	for ii, input := range call.Inputs {
		if !input.Ok() {
			return nil, nil, d.reject(ctx, errors.Errorf("operator %q: input #%d is nil or finalized", desc.Name, ii))
		}
		inputDTypes[ii] = input.DType()
	}
	if err := d.ops.Types().ValidateInputs(desc.Name, inputDTypes); err != nil {
		return nil, nil, d.reject(ctx, err)
	}
	ctx.transition(TypeValidated)
	klog.V(2).Infof("ops: call %s to %q: input types %v validated", ctx.ID, ctx.op, inputDTypes)
	return ctx, op, nil
}

func checkArity(desc Descriptor, call *Call) error {
	numInputs := len(call.Inputs)
	if numInputs < desc.MinInputs || (desc.MaxInputs != Unbounded && numInputs > desc.MaxInputs) {
		return errors.WithStack(&ArityError{Op: desc.Name, Kind: "inputs",
			Provided: numInputs, Min: desc.MinInputs, Max: desc.MaxInputs})
	}
	if len(call.IArgs) < desc.MinIArgs {
		return errors.WithStack(&ArityError{Op: desc.Name, Kind: "integer arguments",
			Provided: len(call.IArgs), Min: desc.MinIArgs, Max: Unbounded})
	}
	if len(call.TArgs) < desc.MinTArgs {
		return errors.WithStack(&ArityError{Op: desc.Name, Kind: "float arguments",
			Provided: len(call.TArgs), Min: desc.MinTArgs, Max: Unbounded})
	}
	return nil
}

// reject moves the call to the Rejected state and returns err.
func (d *Dispatcher) reject(ctx *CallContext, err error) error {
	ctx.transition(Rejected)
	klog.V(1).Infof("ops: call %s to %q rejected: %v", ctx.ID, ctx.op, err)
	return err
}

// inferShapes calls the operation's shape inference exactly once, validates the output dtypes and
// interns the output shapes. Nothing is interned if it fails.
func (d *Dispatcher) inferShapes(ctx *CallContext, op Operation, call *Call) ([]*shapecache.Handle, error) {
	desc := op.Descriptor()
	inputShapes := make([]shapes.Shape, len(call.Inputs))
	inputDTypes := make([]dtypes.DType, len(call.Inputs))
	for ii, input := range call.Inputs {
		inputShapes[ii] = input.Shape()
		inputDTypes[ii] = input.DType()
	}

	scope := d.workspace.Begin()
	defer scope.Release()
	shapeCtx := &ShapeContext{
		args:              ctx.args,
		inputs:            inputShapes,
		defaultIndexDType: d.defaultIndexDType,
		scope:             scope,
	}
	outputShapes, err := op.InferShape(shapeCtx)
	if err != nil {
		return nil, errors.WithMessagef(err, "operator %q shape inference", desc.Name)
	}
	if len(outputShapes) != desc.NumOutputs {
		panic(errors.WithStack(&ShapeContractViolation{Op: desc.Name,
			Reason: fmt.Sprintf("returned %d shapes, but the operation declares %d outputs", len(outputShapes), desc.NumOutputs)}))
	}
	outputDTypes := make([]dtypes.DType, len(outputShapes))
	for ii, shape := range outputShapes {
		if !shape.Ok() || !shapes.IsSupportedDType(shape.DType) {
			panic(errors.WithStack(&ShapeContractViolation{Op: desc.Name,
				Reason: fmt.Sprintf("output #%d has invalid shape %s", ii, shape)}))
		}
		outputDTypes[ii] = shape.DType
	}
	if err := d.ops.Types().ValidateOutputs(desc.Name, inputDTypes, outputDTypes); err != nil {
		return nil, err
	}

	handles := make([]*shapecache.Handle, len(outputShapes))
	for ii, shape := range outputShapes {
		handles[ii] = d.cache.Intern(shape)
	}
	klog.V(2).Infof("ops: call %s to %q: output shapes %v inferred", ctx.ID, ctx.op, outputShapes)
	return handles, nil
}
