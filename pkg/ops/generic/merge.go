// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generic

import (
	"math"

	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/core/typeconstraints"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// MergeMaxIndex returns the mergemaxindex operator (synonym MergeMaxIndex).
//
// It takes one or more inputs of the same dimensions, and returns, for each position, the index
// of the input holding the largest value. Ties resolve to the lowest index.
//
// The output dtype is the index dtype configured in the dispatcher (Int32 by default), or the
// dtype given by the first integer argument, using the dtypes.DType enum values.
func MergeMaxIndex() ops.Operation {
	return ops.New(
		ops.Descriptor{Name: MergeMaxIndexName, Synonyms: []string{"MergeMaxIndex"},
			MinInputs: 1, MaxInputs: ops.Unbounded, NumOutputs: 1},
		execMergeMaxIndex, inferMergeMaxIndex,
		func() *typeconstraints.Declaration {
			return typeconstraints.Declare().
				AllowInputs(typeconstraints.AllInts, typeconstraints.AllFloats).
				AllowOutputs(typeconstraints.AllIndices)
		})
}

func inferMergeMaxIndex(ctx *ops.ShapeContext) ([]shapes.Shape, error) {
	dtype := ctx.DefaultIndexDType()
	if len(ctx.IArgs()) > 0 {
		dtype = dtypes.DType(ctx.IArgs()[0])
		if !shapes.IsSupportedDType(dtype) {
			return nil, errors.Errorf("%s: integer argument #0 (%d) is not a valid dtype", MergeMaxIndexName, ctx.IArgs()[0])
		}
	}
	merged, err := shapes.MergeCompatible(ctx.InputShapes(), dtype)
	if err != nil {
		return nil, err
	}
	return []shapes.Shape{merged}, nil
}

func execMergeMaxIndex(ctx *ops.CallContext) error {
	inputs := ctx.Inputs()
	dtype := inputs[0].DType()
	for _, input := range inputs[1:] {
		if input.DType() != dtype {
			return mergeMaxIndexFloat64(ctx)
		}
	}
	switch dtype {
	case dtypes.Int8:
		return mergeMaxIndexTyped[int8](ctx)
	case dtypes.Int16:
		return mergeMaxIndexTyped[int16](ctx)
	case dtypes.Int32:
		return mergeMaxIndexTyped[int32](ctx)
	case dtypes.Int64:
		return mergeMaxIndexTyped[int64](ctx)
	case dtypes.Uint8:
		return mergeMaxIndexTyped[uint8](ctx)
	case dtypes.Uint16:
		return mergeMaxIndexTyped[uint16](ctx)
	case dtypes.Uint32:
		return mergeMaxIndexTyped[uint32](ctx)
	case dtypes.Uint64:
		return mergeMaxIndexTyped[uint64](ctx)
	case dtypes.Float32:
		return mergeMaxIndexTyped[float32](ctx)
	case dtypes.Float64:
		return mergeMaxIndexTyped[float64](ctx)
	}
	return mergeMaxIndexFloat64(ctx)
}

// mergeMaxIndexTyped compares inputs of the same dtype on their native Go type.
// NaN values are skipped: a position where all inputs are NaN gets index 0.
func mergeMaxIndexTyped[T number](ctx *ops.CallContext) error {
	output := ctx.Output(0)
	inputs := ctx.Inputs()
	inFlats := make([][]T, len(inputs))
	for ii, input := range inputs {
		inFlats[ii] = tensors.FlatData[T](input)
	}
	for outOffset, indices := range output.Shape().Iter() {
		var best T
		bestIdx, found := 0, false
		for ii, flat := range inFlats {
			value := flat[inputs[ii].Shape().Offset(indices)]
			if math.IsNaN(float64(value)) {
				continue
			}
			if !found || value > best {
				best, bestIdx, found = value, ii, true
			}
		}
		output.SetAt(outOffset, float64(bestIdx))
	}
	return nil
}

// mergeMaxIndexFloat64 is the fallback for half-precision floats and inputs of mixed dtypes.
func mergeMaxIndexFloat64(ctx *ops.CallContext) error {
	output := ctx.Output(0)
	inputs := ctx.Inputs()
	for outOffset, indices := range output.Shape().Iter() {
		var best float64
		bestIdx, found := 0, false
		for ii, input := range inputs {
			value := input.At(input.Shape().Offset(indices))
			if math.IsNaN(value) {
				continue
			}
			if !found || value > best {
				best, bestIdx, found = value, ii, true
			}
		}
		output.SetAt(outOffset, float64(bestIdx))
	}
	return nil
}

// MergeMax returns the mergemax operator: position-wise maximum of one or more inputs of the same shape and dtype.
func MergeMax() ops.Operation {
	return newMergeOp(ops.Descriptor{Name: MergeMaxName}, mergeMax, typeconstraints.Numeric)
}

// MergeAdd returns the mergeadd operator (synonym accumulate_n): position-wise sum of one or more
// inputs of the same shape and dtype.
func MergeAdd() ops.Operation {
	return newMergeOp(ops.Descriptor{Name: MergeAddName, Synonyms: []string{"accumulate_n"}},
		mergeAdd, typeconstraints.Numeric)
}

// MergeAvg returns the mergeavg operator: position-wise mean of one or more float inputs of the same shape and dtype.
func MergeAvg() ops.Operation {
	return newMergeOp(ops.Descriptor{Name: MergeAvgName}, mergeAvg, typeconstraints.AllFloats)
}

func newMergeOp(desc ops.Descriptor, kind mergeKind, inputs typeconstraints.Class) ops.Operation {
	desc.MinInputs, desc.MaxInputs, desc.NumOutputs = 1, ops.Unbounded, 1
	return ops.New(desc,
		func(ctx *ops.CallContext) error {
			return execMerge(ctx, kind)
		},
		inferMerge,
		func() *typeconstraints.Declaration {
			return typeconstraints.Declare().AllowInputs(inputs).SameInputTypes().SameMode()
		})
}

func inferMerge(ctx *ops.ShapeContext) ([]shapes.Shape, error) {
	merged, err := shapes.MergeCompatible(ctx.InputShapes(), ctx.InputShape(0).DType)
	if err != nil {
		return nil, err
	}
	return []shapes.Shape{merged}, nil
}

type mergeKind int

const (
	mergeMax mergeKind = iota
	mergeAdd
	mergeAvg
)

func execMerge(ctx *ops.CallContext, kind mergeKind) error {
	switch ctx.Output(0).DType() {
	case dtypes.Int8:
		return mergeTyped[int8](ctx, kind)
	case dtypes.Int16:
		return mergeTyped[int16](ctx, kind)
	case dtypes.Int32:
		return mergeTyped[int32](ctx, kind)
	case dtypes.Int64:
		return mergeTyped[int64](ctx, kind)
	case dtypes.Uint8:
		return mergeTyped[uint8](ctx, kind)
	case dtypes.Uint16:
		return mergeTyped[uint16](ctx, kind)
	case dtypes.Uint32:
		return mergeTyped[uint32](ctx, kind)
	case dtypes.Uint64:
		return mergeTyped[uint64](ctx, kind)
	case dtypes.Float32:
		return mergeTyped[float32](ctx, kind)
	case dtypes.Float64:
		return mergeTyped[float64](ctx, kind)
	}
	return mergeFloat64(ctx, kind)
}

// mergeTyped merges the inputs position by position, on their native Go type.
func mergeTyped[T number](ctx *ops.CallContext, kind mergeKind) error {
	output := ctx.Output(0)
	outFlat := tensors.FlatData[T](output)
	inputs := ctx.Inputs()
	inFlats := make([][]T, len(inputs))
	for ii, input := range inputs {
		inFlats[ii] = tensors.FlatData[T](input)
	}
	for outOffset, indices := range output.Shape().Iter() {
		acc := inFlats[0][inputs[0].Shape().Offset(indices)]
		for ii := 1; ii < len(inputs); ii++ {
			value := inFlats[ii][inputs[ii].Shape().Offset(indices)]
			switch kind {
			case mergeMax:
				acc = max(acc, value)
			default:
				acc += value
			}
		}
		if kind == mergeAvg {
			acc /= T(len(inputs))
		}
		outFlat[outOffset] = acc
	}
	return nil
}

// mergeFloat64 is the fallback for dtypes without native Go arithmetic (Float16 and BFloat16).
func mergeFloat64(ctx *ops.CallContext, kind mergeKind) error {
	output := ctx.Output(0)
	inputs := ctx.Inputs()
	for outOffset, indices := range output.Shape().Iter() {
		acc := inputs[0].At(inputs[0].Shape().Offset(indices))
		for ii := 1; ii < len(inputs); ii++ {
			value := inputs[ii].At(inputs[ii].Shape().Offset(indices))
			switch kind {
			case mergeMax:
				acc = max(acc, value)
			default:
				acc += value
			}
		}
		if kind == mergeAvg {
			acc /= float64(len(inputs))
		}
		output.SetAt(outOffset, acc)
	}
	return nil
}
