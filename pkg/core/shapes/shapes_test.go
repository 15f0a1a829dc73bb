// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestShape(t *testing.T) {
	invalidShape := Invalid()
	require.False(t, invalidShape.Ok())

	shape0 := Make(dtypes.Float64)
	require.True(t, shape0.Ok())
	require.True(t, shape0.IsScalar())
	require.True(t, shape0.Flags.Has(FlagScalar))
	require.Equal(t, 0, shape0.Rank())
	require.Len(t, shape0.Dimensions, 0)
	require.Len(t, shape0.Strides, 0)
	require.Equal(t, 1, shape0.Size())
	require.Equal(t, 8, int(shape0.Memory()))
	require.True(t, shape0.Equal(Scalar(dtypes.Float64)))

	shape1 := Make(dtypes.Float32, 4, 3, 2)
	require.True(t, shape1.Ok())
	require.False(t, shape1.IsScalar())
	require.False(t, shape1.IsEmpty())
	require.Equal(t, 3, shape1.Rank())
	require.Equal(t, []int{6, 2, 1}, shape1.Strides)
	require.Equal(t, RowMajor, shape1.Order)
	require.Equal(t, 4*3*2, shape1.Size())
	require.Equal(t, 4*4*3*2, int(shape1.Memory()))
	require.Equal(t, "(Float32)[4 3 2]", shape1.String())

	shapeF := MakeWithOrder(dtypes.Float32, ColumnMajor, 4, 3, 2)
	require.Equal(t, []int{1, 4, 12}, shapeF.Strides)
	require.True(t, shapeF.EqualDimensions(shape1))
	require.False(t, shapeF.Equal(shape1))
	require.Equal(t, "(Float32)[4 3 2]{f}", shapeF.String())

	require.Panics(t, func() { _ = Make(dtypes.Float32, 2, -1) })
}

func TestEmptyShape(t *testing.T) {
	empty := Make(dtypes.Int32, 3, 0, 2)
	require.True(t, empty.IsEmpty())
	require.False(t, empty.IsScalar())
	require.Equal(t, 0, empty.Size())
	require.Equal(t, []int{0, 0, 0}, empty.Strides)

	// Explicit strides are ignored for empty shapes.
	empty2, err := New(dtypes.Int32, RowMajor, []int{3, 0, 2}, []int{7, 7, 7})
	require.NoError(t, err)
	require.True(t, empty.Equal(empty2))

	count := 0
	for range empty.Iter() {
		count++
	}
	require.Zero(t, count)
}

func TestDim(t *testing.T) {
	shape := Make(dtypes.Float32, 4, 3, 2)
	require.Equal(t, 4, shape.Dim(0))
	require.Equal(t, 3, shape.Dim(1))
	require.Equal(t, 2, shape.Dim(2))
	require.Equal(t, 4, shape.Dim(-3))
	require.Equal(t, 3, shape.Dim(-2))
	require.Equal(t, 2, shape.Dim(-1))
	require.Panics(t, func() { _ = shape.Dim(3) })
	require.Panics(t, func() { _ = shape.Dim(-4) })
}

func TestNewMalformed(t *testing.T) {
	var malformed *MalformedShapeError
	_, err := New(dtypes.Float32, RowMajor, []int{2, 3}, []int{1})
	require.ErrorAs(t, err, &malformed)
	_, err = New(dtypes.Float32, RowMajor, []int{2, 3}, []int{3, -1})
	require.ErrorAs(t, err, &malformed)
	_, err = New(dtypes.Float32, Order('x'), []int{2, 3}, nil)
	require.ErrorAs(t, err, &malformed)
	_, err = New(dtypes.Complex64, RowMajor, []int{2}, nil)
	require.ErrorAs(t, err, &malformed)
	_, err = New(dtypes.Float32, RowMajor, make([]int, MaxRank+1), nil)
	require.ErrorAs(t, err, &malformed)

	// Non-contiguous strides are fine.
	s, err := New(dtypes.Float32, RowMajor, []int{2, 3}, []int{1, 2})
	require.NoError(t, err)
	require.False(t, s.IsContiguous())
	require.Equal(t, "(Float32)[2 3]{strides=[1 2]}", s.String())
}

func TestEncodeDecode(t *testing.T) {
	nonContiguous, err := New(dtypes.Int64, ColumnMajor, []int{5, 7}, []int{7, 1})
	require.NoError(t, err)
	for _, s := range []Shape{
		Scalar(dtypes.Float32),
		Make(dtypes.Bool, 3),
		Make(dtypes.Float16, 2, 3, 4),
		MakeWithOrder(dtypes.BFloat16, ColumnMajor, 2, 3),
		Make(dtypes.Uint8, 0, 5),
		nonContiguous,
	} {
		buf := s.Encode()
		require.Len(t, buf, EncodedLength(s.Rank()))
		decoded, err := Decode(buf)
		require.NoError(t, err, "decoding %s", s)
		if diff := cmp.Diff(s, decoded); diff != "" {
			t.Errorf("Decode(Encode(%s)) mismatch (-want +got):\n%s", s, diff)
		}
		require.Equal(t, s.Key(), decoded.Key())
	}

	// Layout of a simple matrix.
	require.Equal(t,
		[]int64{2, 2, 3, 3, 1, int64(dtypes.Float32) << 32, 1, 'c'},
		Make(dtypes.Float32, 2, 3).Encode())
}

func TestDecodeMalformed(t *testing.T) {
	valid := Make(dtypes.Float32, 2, 3).Encode()
	mutate := func(fn func(buf []int64) []int64) []int64 {
		return fn(slices.Clone(valid))
	}
	for name, buf := range map[string][]int64{
		"empty":           {},
		"short header":    {0, 0},
		"negative rank":   {-1, 0, 0, 0},
		"huge rank":       {MaxRank + 1, 0, 0, 0},
		"missing stride":  mutate(func(b []int64) []int64 { return slices.Delete(b, 4, 5) }),
		"extra word":      mutate(func(b []int64) []int64 { return append(b, 0) }),
		"negative dim":    mutate(func(b []int64) []int64 { b[1] = -2; return b }),
		"negative stride": mutate(func(b []int64) []int64 { b[3] = -3; return b }),
		"unknown dtype":   mutate(func(b []int64) []int64 { b[5] = 200 << 32; return b }),
		"invalid dtype":   mutate(func(b []int64) []int64 { b[5] = 0; return b }),
		"unknown flags":   mutate(func(b []int64) []int64 { b[5] |= 1 << 20; return b }),
		"wrong flags":     mutate(func(b []int64) []int64 { b[5] |= int64(FlagEmpty); return b }),
		"wrong ews":       mutate(func(b []int64) []int64 { b[6] = 0; return b }),
		"bad order":       mutate(func(b []int64) []int64 { b[7] = 'x'; return b }),
	} {
		_, err := Decode(buf)
		var malformed *MalformedShapeError
		require.Truef(t, errors.As(err, &malformed), "case %q: expected MalformedShapeError, got %v", name, err)
	}
}

func TestLegacyScalar(t *testing.T) {
	legacy := []int64{2, 1, 1, 1, 1, int64(dtypes.Float32) << 32, 1, 99}
	require.True(t, IsLegacyScalar(legacy))

	// Plain decoding keeps the rank-2 shape.
	s, err := Decode(legacy)
	require.NoError(t, err)
	require.NoError(t, s.CheckDims(1, 1))

	s, err = DecodeLegacy(legacy)
	require.NoError(t, err)
	require.True(t, s.Equal(Scalar(dtypes.Float32)))

	// A genuine 1x1 column-major matrix is not a legacy scalar.
	matrix := MakeWithOrder(dtypes.Float32, ColumnMajor, 1, 1).Encode()
	require.False(t, IsLegacyScalar(matrix))
}

func TestCopyWithType(t *testing.T) {
	src := MakeWithOrder(dtypes.Float32, ColumnMajor, 2, 3)
	dst := CopyWithType(src, dtypes.Int32)
	require.Equal(t, dtypes.Int32, dst.DType)
	require.Equal(t, src.Dimensions, dst.Dimensions)
	require.Equal(t, src.Strides, dst.Strides)
	require.Equal(t, src.Order, dst.Order)
	require.Equal(t, src.Flags, dst.Flags)

	// The source is not affected.
	dst.Dimensions[0] = 10
	require.Equal(t, 2, src.Dimensions[0])
	require.Equal(t, dtypes.Float32, src.DType)
}

func TestMergeCompatible(t *testing.T) {
	merged, err := MergeCompatible([]Shape{
		Make(dtypes.Float32, 3),
		Make(dtypes.Float64, 3),
		Make(dtypes.Int32, 3),
	}, dtypes.Int64)
	require.NoError(t, err)
	require.NoError(t, merged.Check(dtypes.Int64, 3))

	merged, err = MergeCompatible([]Shape{Scalar(dtypes.Float32), Scalar(dtypes.Float32)}, dtypes.Int32)
	require.NoError(t, err)
	require.True(t, merged.Equal(Scalar(dtypes.Int32)))

	var mismatch *ShapeMismatchError
	_, err = MergeCompatible([]Shape{
		Make(dtypes.Float32, 2, 3),
		Make(dtypes.Float32, 2, 3),
		Make(dtypes.Float32, 3, 2),
		Make(dtypes.Float32, 4),
	}, dtypes.Int32)
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 2, mismatch.Index)
	require.NoError(t, mismatch.Other.CheckDims(3, 2))
	require.Contains(t, err.Error(), "shape #2")

	_, err = MergeCompatible([]Shape{Make(dtypes.Float32, 3), Scalar(dtypes.Float32)}, dtypes.Int32)
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 1, mismatch.Index)

	_, err = MergeCompatible(nil, dtypes.Int32)
	require.ErrorAs(t, err, &mismatch)
}

func TestReduce(t *testing.T) {
	src := Make(dtypes.Float32, 2, 3, 4)
	s, err := Reduce(src, []int{1}, false)
	require.NoError(t, err)
	require.NoError(t, s.Check(dtypes.Float32, 2, 4))

	s, err = Reduce(src, []int{-1, 0}, true)
	require.NoError(t, err)
	require.NoError(t, s.Check(dtypes.Float32, 1, 3, 1))

	s, err = Reduce(src, nil, false)
	require.NoError(t, err)
	require.True(t, s.Equal(Scalar(dtypes.Float32)))

	var mismatch *ShapeMismatchError
	_, err = Reduce(src, []int{3}, false)
	require.ErrorAs(t, err, &mismatch)
	_, err = Reduce(src, []int{1, -2}, false)
	require.ErrorAs(t, err, &mismatch)
}

func TestIter(t *testing.T) {
	shape := Make(dtypes.Float32, 3, 2)
	var offsets []int
	var collect [][]int
	for offset, indices := range shape.Iter() {
		offsets = append(offsets, offset)
		collect = append(collect, slices.Clone(indices))
	}
	require.Equal(t, [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}, collect)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5}, offsets)

	// Column-major: same logical order, different storage offsets.
	shape = MakeWithOrder(dtypes.Float32, ColumnMajor, 3, 2)
	offsets = offsets[:0]
	for offset, indices := range shape.Iter() {
		offsets = append(offsets, offset)
		require.Equal(t, shape.Offset(indices), offset)
	}
	require.Equal(t, []int{0, 3, 1, 4, 2, 5}, offsets)

	// Scalar yields once.
	count := 0
	for offset, indices := range Scalar(dtypes.Int32).Iter() {
		require.Zero(t, offset)
		require.Empty(t, indices)
		count++
	}
	require.Equal(t, 1, count)
}

func TestChecks(t *testing.T) {
	s := Make(dtypes.Float32, 4, 3)
	require.NoError(t, s.CheckDims(4, UncheckedAxis))
	require.Error(t, s.CheckDims(4))
	require.Error(t, s.Check(dtypes.Int32, 4, 3))
	require.NoError(t, s.CheckRank(2))
	require.Error(t, s.CheckScalar())
	require.NoError(t, CheckScalar(Scalar(dtypes.Bool)))
	require.NoError(t, CheckDims(s, 4, 3))
}
