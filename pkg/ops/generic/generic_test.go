// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generic

import (
	"math"
	"testing"

	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/shapecache"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/core/typeconstraints"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func newDispatcher(t *testing.T) *ops.Dispatcher {
	registry := ops.NewRegistry()
	require.NoError(t, RegisterAll(registry))
	return ops.NewDispatcher(registry, shapecache.New(shapecache.RetainShapeInfo))
}

func execute(t *testing.T, d *ops.Dispatcher, op string, inputs ...*tensors.Tensor) *tensors.Tensor {
	outputs, err := d.Execute(&ops.Call{Op: op, Inputs: inputs})
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	return outputs[0]
}

func TestRegisterAll(t *testing.T) {
	registry := ops.NewRegistry()
	require.NoError(t, RegisterAll(registry))
	require.Equal(t, []string{TestScalarName, MergeMaxIndexName, MergeMaxName, MergeAddName, MergeAvgName, ReduceSumName},
		registry.Names())
	for _, synonym := range []string{"MergeMaxIndex", "accumulate_n"} {
		_, found := registry.Lookup(synonym)
		assert.Truef(t, found, "synonym %q", synonym)
	}
	require.Error(t, RegisterAll(registry))
}

func TestTestScalar(t *testing.T) {
	d := newDispatcher(t)
	output := execute(t, d, TestScalarName, tensors.FromScalar(3.0))
	require.True(t, output.IsScalar())
	require.Equal(t, 5.0, tensors.ToScalar[float64](output))

	// Output is always a scalar of the input dtype.
	for _, dtype := range shapes.SupportedDTypes {
		input := tensors.FromShape(shapes.Make(dtype, 2, 2))
		input.SetAt(0, 1)
		handles, err := d.InferShapes(&ops.Call{Op: TestScalarName, Inputs: []*tensors.Tensor{input}})
		require.NoError(t, err)
		assert.Truef(t, handles[0].Shape().Equal(shapes.Scalar(dtype)), "dtype=%s, got %s", dtype, handles[0].Shape())
		d.Cache().Release(handles[0])
	}
	output = execute(t, d, TestScalarName, tensors.FromFlatDataAndDimensions([]int16{7, 1, 1}, 3))
	require.Equal(t, int16(9), tensors.ToScalar[int16](output))
	output = execute(t, d, TestScalarName, tensors.FromScalar(float16.Fromfloat32(0.5)))
	require.Equal(t, float16.Fromfloat32(2.5), tensors.ToScalar[float16.Float16](output))
	output = execute(t, d, TestScalarName, tensors.FromScalar(uint8(255)))
	require.Equal(t, uint8(255), tensors.ToScalar[uint8](output))
	require.Zero(t, d.Workspace().InUse())

	var arityErr *ops.ArityError
	_, err := d.Execute(&ops.Call{Op: TestScalarName})
	require.ErrorAs(t, err, &arityErr)
	_, err = d.Execute(&ops.Call{Op: TestScalarName, Inputs: []*tensors.Tensor{tensors.FromScalar(1.0), tensors.FromScalar(2.0)}})
	require.ErrorAs(t, err, &arityErr)
	require.Equal(t, 2, arityErr.Provided)

	_, err = d.Execute(&ops.Call{Op: TestScalarName, Inputs: []*tensors.Tensor{tensors.FromShape(shapes.Make(dtypes.Float32, 0))}})
	require.ErrorContains(t, err, "no elements")
}

func TestMergeMaxIndex(t *testing.T) {
	d := newDispatcher(t)
	a := tensors.FromFlatDataAndDimensions([]float32{1, 5, 2}, 3)
	b := tensors.FromFlatDataAndDimensions([]float32{4, 0, 9}, 3)
	output := execute(t, d, MergeMaxIndexName, a, b)
	require.NoError(t, output.Shape().Check(dtypes.Int32, 3))
	require.Equal(t, []int32{1, 0, 1}, tensors.CopyFlatData[int32](output))

	// Synonym, ties and mixed dtypes.
	c := tensors.FromFlatDataAndDimensions([]int8{4, 5, 1}, 3)
	output = execute(t, d, "MergeMaxIndex", a, b, c)
	require.Equal(t, []int32{1, 0, 1}, tensors.CopyFlatData[int32](output))

	// Index dtype override.
	outputs, err := d.Execute(&ops.Call{Op: MergeMaxIndexName, Inputs: []*tensors.Tensor{a, b}, IArgs: []int64{int64(dtypes.Int64)}})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 0, 1}, tensors.CopyFlatData[int64](outputs[0]))

	// Override with a non-index dtype is a type violation, and nothing is interned.
	numEntries := d.Cache().Len()
	var violation *typeconstraints.TypeViolationError
	_, err = d.Execute(&ops.Call{Op: MergeMaxIndexName, Inputs: []*tensors.Tensor{a, b}, IArgs: []int64{int64(dtypes.Float32)}})
	require.ErrorAs(t, err, &violation)
	require.True(t, violation.Output)
	_, err = d.Execute(&ops.Call{Op: MergeMaxIndexName, Inputs: []*tensors.Tensor{a, b}, IArgs: []int64{1000}})
	require.ErrorContains(t, err, "not a valid dtype")

	// Incompatible shapes.
	var mismatch *shapes.ShapeMismatchError
	_, err = d.Execute(&ops.Call{Op: MergeMaxIndexName, Inputs: []*tensors.Tensor{a, tensors.FromShape(shapes.Make(dtypes.Float32, 4))}})
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 1, mismatch.Index)
	require.Equal(t, numEntries, d.Cache().Len())

	// Input types not allowed.
	_, err = d.Execute(&ops.Call{Op: MergeMaxIndexName, Inputs: []*tensors.Tensor{tensors.FromScalar(true)}})
	require.ErrorAs(t, err, &violation)
	require.False(t, violation.Output)

	_, err = d.Execute(&ops.Call{Op: MergeMaxIndexName})
	var arityErr *ops.ArityError
	require.ErrorAs(t, err, &arityErr)
}

func TestMergeMaxIndexPrecision(t *testing.T) {
	d := newDispatcher(t)
	// Values above 2^53 are not representable as float64.
	a := tensors.FromFlatDataAndDimensions([]int64{1 << 53, 1<<53 + 1}, 2)
	b := tensors.FromFlatDataAndDimensions([]int64{1<<53 + 1, 1 << 53}, 2)
	require.Equal(t, []int32{1, 0}, tensors.CopyFlatData[int32](execute(t, d, MergeMaxIndexName, a, b)))

	u0 := tensors.FromFlatDataAndDimensions([]uint64{math.MaxUint64 - 1}, 1)
	u1 := tensors.FromFlatDataAndDimensions([]uint64{math.MaxUint64}, 1)
	require.Equal(t, []int32{1}, tensors.CopyFlatData[int32](execute(t, d, MergeMaxIndexName, u0, u1)))
}

func TestMergeMaxIndexNaN(t *testing.T) {
	d := newDispatcher(t)
	nan := math.NaN()
	a := tensors.FromFlatDataAndDimensions([]float64{nan, 1, nan}, 3)
	b := tensors.FromFlatDataAndDimensions([]float64{7, nan, nan}, 3)
	require.Equal(t, []int32{1, 0, 0}, tensors.CopyFlatData[int32](execute(t, d, MergeMaxIndexName, a, b)))

	// Half-precision and mixed dtypes take the float64 path.
	h := tensors.FromFlatDataAndDimensions([]float16.Float16{float16.Fromfloat32(float32(nan)), float16.Fromfloat32(1)}, 2)
	i := tensors.FromFlatDataAndDimensions([]int8{-3, 0}, 2)
	require.Equal(t, []int32{1, 0}, tensors.CopyFlatData[int32](execute(t, d, MergeMaxIndexName, h, i)))
}

func TestMergeMaxIndex2D(t *testing.T) {
	d := newDispatcher(t).WithDefaultIndexDType(dtypes.Int64)
	// Row 0 and row 1 of [[1,5,2],[4,0,9]] given as separate inputs in column-major layout.
	a := tensors.FromShape(shapes.MakeWithOrder(dtypes.Float64, shapes.ColumnMajor, 1, 3))
	b := tensors.FromFlatDataAndDimensions([]float64{4, 0, 9}, 1, 3)
	for ii, v := range []float64{1, 5, 2} {
		a.SetAt(ii, v)
	}
	output := execute(t, d, MergeMaxIndexName, a, b)
	require.Equal(t, dtypes.Int64, output.DType())
	require.Equal(t, shapes.ColumnMajor, output.Shape().Order)
	require.Equal(t, []int64{1, 0, 1}, tensors.CopyFlatData[int64](output))
}

func TestMergeOps(t *testing.T) {
	d := newDispatcher(t)
	a := tensors.FromFlatDataAndDimensions([]int32{1, 5, 2, 4}, 2, 2)
	b := tensors.FromFlatDataAndDimensions([]int32{4, 0, 9, 4}, 2, 2)
	require.Equal(t, []int32{4, 5, 9, 4}, tensors.CopyFlatData[int32](execute(t, d, MergeMaxName, a, b)))
	require.Equal(t, []int32{5, 5, 11, 8}, tensors.CopyFlatData[int32](execute(t, d, MergeAddName, a, b)))
	require.Equal(t, []int32{5, 5, 11, 8}, tensors.CopyFlatData[int32](execute(t, d, "accumulate_n", a, b)))
	require.Equal(t, []int32{1, 5, 2, 4}, tensors.CopyFlatData[int32](execute(t, d, MergeMaxName, a)))

	x := tensors.FromFlatDataAndDimensions([]float32{1, 2}, 2)
	y := tensors.FromFlatDataAndDimensions([]float32{2, 4}, 2)
	require.Equal(t, []float32{1.5, 3}, tensors.CopyFlatData[float32](execute(t, d, MergeAvgName, x, y)))

	h0 := tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{bfloat16.FromFloat32(1), bfloat16.FromFloat32(-3)}, 2)
	h1 := tensors.FromFlatDataAndDimensions([]bfloat16.BFloat16{bfloat16.FromFloat32(3), bfloat16.FromFloat32(-1)}, 2)
	require.Equal(t, []bfloat16.BFloat16{bfloat16.FromFloat32(3), bfloat16.FromFloat32(-1)},
		tensors.CopyFlatData[bfloat16.BFloat16](execute(t, d, MergeMaxName, h0, h1)))
	require.Equal(t, []bfloat16.BFloat16{bfloat16.FromFloat32(2), bfloat16.FromFloat32(-2)},
		tensors.CopyFlatData[bfloat16.BFloat16](execute(t, d, MergeAvgName, h0, h1)))

	// Inputs must have the same dtype, and mergeavg only takes floats.
	var violation *typeconstraints.TypeViolationError
	_, err := d.Execute(&ops.Call{Op: MergeAddName, Inputs: []*tensors.Tensor{a, x}})
	require.ErrorAs(t, err, &violation)
	require.Equal(t, 1, violation.Index)
	_, err = d.Execute(&ops.Call{Op: MergeAvgName, Inputs: []*tensors.Tensor{a, b}})
	require.ErrorAs(t, err, &violation)
	require.Equal(t, 0, violation.Index)
}

func TestReduceSum(t *testing.T) {
	d := newDispatcher(t)
	input := tensors.FromFlatDataAndDimensions([]int64{1, 5, 2, 4, 0, 9}, 2, 3)
	reduce := func(keepDims bool, axes ...int64) *tensors.Tensor {
		outputs, err := d.Execute(&ops.Call{Op: ReduceSumName, Inputs: []*tensors.Tensor{input},
			IArgs: axes, BArgs: []bool{keepDims}})
		require.NoError(t, err)
		return outputs[0]
	}

	output := reduce(false, 0)
	require.NoError(t, output.Shape().Check(dtypes.Int64, 3))
	require.Equal(t, []int64{5, 5, 11}, tensors.CopyFlatData[int64](output))

	output = reduce(true, -1)
	require.NoError(t, output.Shape().Check(dtypes.Int64, 2, 1))
	require.Equal(t, []int64{8, 13}, tensors.CopyFlatData[int64](output))

	output = reduce(false)
	require.True(t, output.IsScalar())
	require.Equal(t, int64(21), tensors.ToScalar[int64](output))

	f16 := tensors.FromFlatDataAndDimensions([]float16.Float16{
		float16.Fromfloat32(1), float16.Fromfloat32(2), float16.Fromfloat32(3), float16.Fromfloat32(4)}, 2, 2)
	outputs, err := d.Execute(&ops.Call{Op: ReduceSumName, Inputs: []*tensors.Tensor{f16}, IArgs: []int64{0}})
	require.NoError(t, err)
	require.Equal(t, []float16.Float16{float16.Fromfloat32(4), float16.Fromfloat32(6)},
		tensors.CopyFlatData[float16.Float16](outputs[0]))

	var mismatch *shapes.ShapeMismatchError
	_, err = d.Execute(&ops.Call{Op: ReduceSumName, Inputs: []*tensors.Tensor{input}, IArgs: []int64{2}})
	require.ErrorAs(t, err, &mismatch)
	_, err = d.Execute(&ops.Call{Op: ReduceSumName, Inputs: []*tensors.Tensor{input}, IArgs: []int64{1, -1}})
	require.ErrorAs(t, err, &mismatch)
}
