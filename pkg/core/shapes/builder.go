// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// CopyWithType returns a copy of source with the DType replaced by dtype. Dimensions,
// strides, order and flags are unchanged.
//
// Used by operators that pass the shape through but recast the element type, e.g. an
// index producing merge that outputs integer indices from floating point inputs.
func CopyWithType(source Shape, dtype dtypes.DType) Shape {
	s := source.Clone()
	s.DType = dtype
	return s
}

// MergeCompatible checks that all sources describe tensors of the same shape (equal rank
// and dimensions, or all scalars) and returns the common shape with the given dtype.
// Strides and order are taken from the first source.
//
// It returns a *ShapeMismatchError naming the first shape that disagrees with sources[0].
// DTypes of the sources are not compared, that is the job of the type constraints.
func MergeCompatible(sources []Shape, dtype dtypes.DType) (Shape, error) {
	if len(sources) == 0 {
		return Shape{}, errors.WithStack(&ShapeMismatchError{Reason: "no shapes to merge"})
	}
	first := sources[0]
	if !first.Ok() {
		return Shape{}, errors.WithStack(&ShapeMismatchError{First: first, Reason: "invalid shape #0"})
	}
	for ii, other := range sources[1:] {
		idx := ii + 1
		if !other.Ok() {
			return Shape{}, errors.WithStack(&ShapeMismatchError{Index: idx, First: first, Other: other, Reason: "invalid shape"})
		}
		if other.Rank() != first.Rank() {
			return Shape{}, errors.WithStack(&ShapeMismatchError{Index: idx, First: first, Other: other, Reason: "ranks differ"})
		}
		if !first.EqualDimensions(other) {
			return Shape{}, errors.WithStack(&ShapeMismatchError{Index: idx, First: first, Other: other, Reason: "dimensions differ"})
		}
	}
	return CopyWithType(first, dtype), nil
}

// Reduce returns the shape resulting from reducing source over the given axes.
// Negative axes count from the end. If axes is empty, all axes are reduced.
//
// If keepDims is true the reduced axes are kept with dimension 1, otherwise they are removed.
// The result has contiguous strides in the source's order.
func Reduce(source Shape, axes []int, keepDims bool) (Shape, error) {
	rank := source.Rank()
	reduced := make([]bool, rank)
	if len(axes) == 0 {
		for axis := range reduced {
			reduced[axis] = true
		}
	}
	for _, axis := range axes {
		adjusted := axis
		if adjusted < 0 {
			adjusted += rank
		}
		if adjusted < 0 || adjusted >= rank {
			return Shape{}, errors.WithStack(&ShapeMismatchError{First: source,
				Reason: fmt.Sprintf("reduce axis %d out of range for rank %d", axis, rank)})
		}
		if reduced[adjusted] {
			return Shape{}, errors.WithStack(&ShapeMismatchError{First: source,
				Reason: fmt.Sprintf("reduce axis %d given more than once (axes=%v)", axis, axes)})
		}
		reduced[adjusted] = true
	}
	dimensions := make([]int, 0, rank)
	for axis, dim := range source.Dimensions {
		if !reduced[axis] {
			dimensions = append(dimensions, dim)
		} else if keepDims {
			dimensions = append(dimensions, 1)
		}
	}
	return New(source.DType, source.Order, slices.Clip(dimensions), nil)
}
