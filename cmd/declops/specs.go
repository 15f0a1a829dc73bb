// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strconv"
	"strings"

	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/engine"
	"github.com/pkg/errors"
)

// parseShape parses a shape given as "<dtype>:<dim>,<dim>,...", e.g. "f32:2,3".
// Scalars are given with no dimensions, e.g. "f32:" or "f32".
func parseShape(spec string) (shapes.Shape, error) {
	dtypeName, dimsSpec, _ := strings.Cut(spec, ":")
	dtype, err := engine.ParseDType(strings.TrimSpace(dtypeName))
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "shape %q", spec)
	}
	var dimensions []int
	for _, dimSpec := range strings.Split(dimsSpec, ",") {
		dimSpec = strings.TrimSpace(dimSpec)
		if dimSpec == "" {
			continue
		}
		dim, err := strconv.Atoi(dimSpec)
		if err != nil {
			return shapes.Invalid(), errors.Wrapf(err, "shape %q: invalid dimension %q", spec, dimSpec)
		}
		dimensions = append(dimensions, dim)
	}
	shape, err := shapes.New(dtype, shapes.RowMajor, dimensions, nil)
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "shape %q", spec)
	}
	return shape, nil
}

// parseTensor parses a tensor given as "<shape>=<value>,<value>,...", e.g. "f32:2,2=1,2,3,4",
// with values in row-major order. If no values are given, the tensor is filled with zeros.
func parseTensor(spec string) (*tensors.Tensor, error) {
	shapeSpec, valuesSpec, hasValues := strings.Cut(spec, "=")
	shape, err := parseShape(shapeSpec)
	if err != nil {
		return nil, err
	}
	t := tensors.FromShape(shape)
	if !hasValues {
		return t, nil
	}
	values := strings.Split(valuesSpec, ",")
	if len(values) != shape.Size() {
		return nil, errors.Errorf("tensor %q: %d values given for shape %s of size %d", spec, len(values), shape, shape.Size())
	}
	ii := 0
	for offset := range shape.Iter() {
		value, err := strconv.ParseFloat(strings.TrimSpace(values[ii]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %q: invalid value %q", spec, values[ii])
		}
		t.SetAt(offset, value)
		ii++
	}
	return t, nil
}
