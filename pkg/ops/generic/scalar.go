// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generic

import (
	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/typeconstraints"
	"github.com/pkg/errors"
)

// ScalarIncrement is the constant added by test_scalar.
const ScalarIncrement = 2.0

// TestScalar returns the test_scalar operator: it takes one input of any dtype and returns a
// scalar of the same dtype holding the input's first element plus ScalarIncrement.
func TestScalar() ops.Operation {
	return ops.New(
		ops.Descriptor{Name: TestScalarName, MinInputs: 1, MaxInputs: 1, NumOutputs: 1},
		execTestScalar, inferTestScalar,
		func() *typeconstraints.Declaration {
			return typeconstraints.Declare().AllowInputs(typeconstraints.Any).SameMode()
		})
}

// inferTestScalar builds the scalar shape through its encoded form, in scratch memory.
func inferTestScalar(ctx *ops.ShapeContext) ([]shapes.Shape, error) {
	dtype := ctx.InputShape(0).DType
	buf := ctx.Scratch(shapes.EncodedLength(0))
	shapes.Scalar(dtype).EncodeTo(buf)
	scalar, err := shapes.Decode(buf)
	if err != nil {
		return nil, errors.WithMessagef(err, "building scalar of dtype %s", dtype)
	}
	return []shapes.Shape{scalar}, nil
}

func execTestScalar(ctx *ops.CallContext) error {
	input := ctx.Input(0)
	if input.Shape().IsEmpty() {
		return errors.Errorf("%s: input %s has no elements", TestScalarName, input.Shape())
	}
	ctx.Output(0).SetAt(0, input.At(0)+ScalarIncrement)
	return nil
}
