// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package typeconstraints

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestClasses(t *testing.T) {
	require.True(t, AllIndices.Set.Has(dtypes.Int32))
	require.True(t, AllIndices.Set.Has(dtypes.Int64))
	require.False(t, AllIndices.Set.Has(dtypes.Float32))
	require.True(t, AllFloats.Set.Has(dtypes.BFloat16))
	require.True(t, AllInts.Set.Has(dtypes.Uint8))
	require.False(t, AllInts.Set.Has(dtypes.Bool))
	require.True(t, Any.Set.Has(dtypes.Bool))
	require.False(t, Any.Set.Has(dtypes.InvalidDType))
	require.False(t, Any.Set.Has(dtypes.Complex64))
	require.Equal(t, []dtypes.DType{dtypes.Int32, dtypes.Int64}, AllIndices.Set.DTypes())
	require.Equal(t, "{Float32,Int8}", Of(dtypes.Float32, dtypes.Int8).Name)
}

func TestValidate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Declare("mergemaxindex",
		Declare().AllowInputs(AllInts, AllFloats).AllowOutputs(AllIndices)))
	require.NoError(t, r.Declare("test_scalar", Declare().AllowInputs(Any).SameMode()))
	require.Error(t, r.Declare("test_scalar", nil))

	require.NoError(t, r.Validate("mergemaxindex",
		[]dtypes.DType{dtypes.Float32, dtypes.Int8}, []dtypes.DType{dtypes.Int32}))

	var violation *TypeViolationError
	err := r.Validate("mergemaxindex",
		[]dtypes.DType{dtypes.Float32, dtypes.Bool}, []dtypes.DType{dtypes.Int32})
	require.ErrorAs(t, err, &violation)
	require.Equal(t, "mergemaxindex", violation.Op)
	require.Equal(t, 1, violation.Index)
	require.False(t, violation.Output)
	require.Equal(t, dtypes.Bool, violation.Actual)
	require.Equal(t, "ALL_INTS|ALL_FLOATS", violation.Expected)

	err = r.ValidateOutputs("mergemaxindex", []dtypes.DType{dtypes.Float32}, []dtypes.DType{dtypes.Float32})
	require.ErrorAs(t, err, &violation)
	require.True(t, violation.Output)
	require.Equal(t, 0, violation.Index)
	require.Contains(t, err.Error(), "output #0")

	// Same mode: output follows the input.
	require.NoError(t, r.Validate("test_scalar", []dtypes.DType{dtypes.Float64}, []dtypes.DType{dtypes.Float64}))
	err = r.Validate("test_scalar", []dtypes.DType{dtypes.Float64}, []dtypes.DType{dtypes.Float32})
	require.ErrorAs(t, err, &violation)
	require.True(t, violation.Output)

	require.Error(t, r.Validate("unknown", nil, nil))
}

func TestPerIndexAndSameInputs(t *testing.T) {
	d := Declare().
		AllowInputs(AllFloats).
		AllowInput(1, AllIndices).
		AllowOutput(1, Bools)
	require.NoError(t, d.ValidateInputs("op", []dtypes.DType{dtypes.Float32, dtypes.Int64, dtypes.Float16}))
	var violation *TypeViolationError
	require.ErrorAs(t, d.ValidateInputs("op", []dtypes.DType{dtypes.Float32, dtypes.Float32}), &violation)
	require.Equal(t, 1, violation.Index)

	// Output #0 has no declaration: anything goes. Output #1 must be a boolean.
	require.NoError(t, d.ValidateOutputs("op", nil, []dtypes.DType{dtypes.Uint16, dtypes.Bool}))
	require.ErrorAs(t, d.ValidateOutputs("op", nil, []dtypes.DType{dtypes.Uint16, dtypes.Int8}), &violation)
	require.Equal(t, 1, violation.Index)

	same := Declare().AllowInputs(Numeric).SameInputTypes()
	require.NoError(t, same.ValidateInputs("op", []dtypes.DType{dtypes.Int32, dtypes.Int32}))
	require.ErrorAs(t, same.ValidateInputs("op", []dtypes.DType{dtypes.Int32, dtypes.Int64}), &violation)
	require.Equal(t, 1, violation.Index)

	require.Equal(t, "in: ALL_FLOATS #1=ALL_INDICES, out: #1=BOOL", d.String())
	require.Equal(t, "in: NUMERIC (same), out: any", same.String())
}
