// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generic

import (
	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/core/typeconstraints"
	"github.com/gomlx/gopjrt/dtypes"
)

// ReduceSum returns the reduce_sum operator: it sums its single input over the axes given as
// integer arguments (negative axes count from the end; no axes reduce over all axes).
// If the first boolean argument is true, reduced axes are kept with dimension 1.
func ReduceSum() ops.Operation {
	return ops.New(
		ops.Descriptor{Name: ReduceSumName, MinInputs: 1, MaxInputs: 1, NumOutputs: 1},
		execReduceSum, inferReduceSum,
		func() *typeconstraints.Declaration {
			return typeconstraints.Declare().AllowInputs(typeconstraints.Numeric).SameMode()
		})
}

func reduceAxes(iArgs []int64) []int {
	axes := make([]int, len(iArgs))
	for ii, axis := range iArgs {
		axes[ii] = int(axis)
	}
	return axes
}

func inferReduceSum(ctx *ops.ShapeContext) ([]shapes.Shape, error) {
	reduced, err := shapes.Reduce(ctx.InputShape(0), reduceAxes(ctx.IArgs()), ctx.BArg(0, false))
	if err != nil {
		return nil, err
	}
	return []shapes.Shape{reduced}, nil
}

// reducedMask returns which axes of a shape of the given rank are reduced. Axes were validated
// by shape inference.
func reducedMask(rank int, axes []int) []bool {
	mask := make([]bool, rank)
	if len(axes) == 0 {
		for axis := range mask {
			mask[axis] = true
		}
		return mask
	}
	for _, axis := range axes {
		if axis < 0 {
			axis += rank
		}
		mask[axis] = true
	}
	return mask
}

// outputOffsetFn maps the indices of an input element to the offset of the output element it is summed into.
func outputOffsetFn(inputShape, outputShape shapes.Shape, axes []int, keepDims bool) func(indices []int) int {
	mask := reducedMask(inputShape.Rank(), axes)
	return func(indices []int) int {
		offset, outAxis := 0, 0
		for axis, idx := range indices {
			if mask[axis] {
				if keepDims {
					outAxis++
				}
				continue
			}
			offset += idx * outputShape.Strides[outAxis]
			outAxis++
		}
		return offset
	}
}

func execReduceSum(ctx *ops.CallContext) error {
	switch ctx.Output(0).DType() {
	case dtypes.Int8:
		return reduceSumTyped[int8](ctx)
	case dtypes.Int16:
		return reduceSumTyped[int16](ctx)
	case dtypes.Int32:
		return reduceSumTyped[int32](ctx)
	case dtypes.Int64:
		return reduceSumTyped[int64](ctx)
	case dtypes.Uint8:
		return reduceSumTyped[uint8](ctx)
	case dtypes.Uint16:
		return reduceSumTyped[uint16](ctx)
	case dtypes.Uint32:
		return reduceSumTyped[uint32](ctx)
	case dtypes.Uint64:
		return reduceSumTyped[uint64](ctx)
	case dtypes.Float32:
		return reduceSumTyped[float32](ctx)
	case dtypes.Float64:
		return reduceSumTyped[float64](ctx)
	}
	return reduceSumFloat64(ctx)
}

func reduceSumTyped[T number](ctx *ops.CallContext) error {
	input, output := ctx.Input(0), ctx.Output(0)
	outOffset := outputOffsetFn(input.Shape(), output.Shape(), reduceAxes(ctx.IArgs()), ctx.BArg(0, false))
	inFlat, outFlat := tensors.FlatData[T](input), tensors.FlatData[T](output)
	for inOffset, indices := range input.Shape().Iter() {
		outFlat[outOffset(indices)] += inFlat[inOffset]
	}
	return nil
}

// reduceSumFloat64 accumulates Float16 and BFloat16 in float64, and converts only the final sums.
func reduceSumFloat64(ctx *ops.CallContext) error {
	input, output := ctx.Input(0), ctx.Output(0)
	outOffset := outputOffsetFn(input.Shape(), output.Shape(), reduceAxes(ctx.IArgs()), ctx.BArg(0, false))
	sums := make([]float64, tensors.StorageLen(output.Shape()))
	for inOffset, indices := range input.Shape().Iter() {
		sums[outOffset(indices)] += input.At(inOffset)
	}
	for offset := range output.Shape().Iter() {
		output.SetAt(offset, sums[offset])
	}
	return nil
}
