// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package generic implements the generic (dtype-agnostic) operators:
//
//   - test_scalar: adds a constant to the first element of its input, returning a scalar.
//   - mergemaxindex (MergeMaxIndex): position-wise index of the input holding the largest value.
//   - mergemax: position-wise maximum of the inputs.
//   - mergeadd (accumulate_n): position-wise sum of the inputs.
//   - mergeavg: position-wise mean of the inputs.
//   - reduce_sum: sum over the axes given as integer arguments.
//
// Use RegisterAll to register them in an ops.Registry.
package generic

import (
	"github.com/gomlx/declops/pkg/core/ops"
)

// Operation names.
const (
	TestScalarName    = "test_scalar"
	MergeMaxIndexName = "mergemaxindex"
	MergeMaxName      = "mergemax"
	MergeAddName      = "mergeadd"
	MergeAvgName      = "mergeavg"
	ReduceSumName     = "reduce_sum"
)

// Operations returns a new instance of every operator of the package, in registration order.
func Operations() []ops.Operation {
	return []ops.Operation{
		TestScalar(),
		MergeMaxIndex(),
		MergeMax(),
		MergeAdd(),
		MergeAvg(),
		ReduceSum(),
	}
}

// RegisterAll registers all operators of the package.
func RegisterAll(registry *ops.Registry) error {
	for _, op := range Operations() {
		if err := registry.Register(op); err != nil {
			return err
		}
	}
	return nil
}
