// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the immutable shape descriptor of a tensor, and the
// derivations used by operators to infer output shapes before execution.
//
// A Shape holds the DType of the unit element, the dimensions of each axis, the strides
// (in elements, not bytes) used to address the storage, the memory Order and a small set of
// Flags derived from the dimensions.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension. We try to refer to a dimension index as "axis"
//     (plural axes), and its size as its dimension.
//   - Dimension: the size of a tensor in one of its axes.
//   - Stride: number of elements to skip in storage to move one step along an axis.
//   - Scalar: a shape with no axes, only a single value of the associated DType.
//     Scalars are always true rank-0 shapes, see DecodeLegacy for the legacy encoding.
//   - Empty: a shape where some axis has dimension 0. It holds no elements, but it is a
//     valid shape, flagged with FlagEmpty.
//
// Example: the multi-dimensional array `[][]int32{{0, 1, 2}, {3, 4, 5}}` has shape
// `(Int32)[2 3]`: rank 2, axis 0 has dimension 2 and axis 1 has dimension 3, and the
// row-major strides are [3 1]. It can be created with `shapes.Make(dtypes.Int32, 2, 3)`.
//
// Shapes are values: all derivations (see CopyWithType, MergeCompatible, Reduce) return
// new instances, and the slices of a Shape must never be modified after construction.
package shapes

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// MaxRank is the largest rank accepted by New and Decode.
const MaxRank = 32

// Order of the elements in storage.
type Order byte

const (
	// RowMajor (C order): the last axis changes fastest.
	RowMajor Order = 'c'

	// ColumnMajor (Fortran order): the first axis changes fastest.
	ColumnMajor Order = 'f'
)

// IsValid returns whether the order is one of RowMajor or ColumnMajor.
func (o Order) IsValid() bool { return o == RowMajor || o == ColumnMajor }

// String implements fmt.Stringer.
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "c"
	case ColumnMajor:
		return "f"
	}
	return fmt.Sprintf("Order(%d)", byte(o))
}

// Flags are extra properties of a shape, derived from its dimensions.
type Flags uint32

const (
	// FlagEmpty is set when some axis has dimension 0.
	FlagEmpty Flags = 1 << iota

	// FlagScalar is set for rank-0 shapes.
	FlagScalar
)

// knownFlags is the union of all flags a valid shape may carry.
const knownFlags = FlagEmpty | FlagScalar

// Has returns whether all bits of flag are set.
func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// String implements fmt.Stringer.
func (f Flags) String() string {
	var parts []string
	if f.Has(FlagEmpty) {
		parts = append(parts, "empty")
	}
	if f.Has(FlagScalar) {
		parts = append(parts, "scalar")
	}
	if unknown := f &^ knownFlags; unknown != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(unknown)))
	}
	return strings.Join(parts, "|")
}

// Shape describes the metadata of one tensor: element type, dimensions, strides,
// order and flags.
//
// Use Make, MakeWithOrder, Scalar or New to create a Shape. See example in the package
// documentation.
type Shape struct {
	DType      dtypes.DType
	Dimensions []int
	Strides    []int
	Order      Order
	Flags      Flags
}

// HasShape is implemented by objects that have an associated Shape, like tensors.Tensor,
// shapecache.Handle and Shape itself.
type HasShape interface {
	Shape() Shape
}

// Make returns a row-major Shape with contiguous strides for the given dimensions.
//
// It panics if a dimension is negative. A dimension of 0 is valid and creates an
// empty shape.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	return MakeWithOrder(dtype, RowMajor, dimensions...)
}

// MakeWithOrder returns a Shape with contiguous strides for the given order.
//
// It panics if a dimension is negative or the order is invalid.
func MakeWithOrder(dtype dtypes.DType, order Order, dimensions ...int) Shape {
	s, err := New(dtype, order, dimensions, nil)
	if err != nil {
		exceptions.Panicf("shapes.MakeWithOrder(%s, %s, %v): %+v", dtype, order, dimensions, err)
	}
	return s
}

// Scalar returns the canonical scalar (rank-0) Shape for the given dtype.
func Scalar(dtype dtypes.DType) Shape {
	return Shape{DType: dtype, Order: RowMajor, Flags: FlagScalar}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// New validates and creates a Shape. If strides is nil, the contiguous strides for the
// given order are used.
//
// It returns a *MalformedShapeError if the number of strides doesn't match the rank, or if
// any dimension or stride is negative.
func New(dtype dtypes.DType, order Order, dimensions, strides []int) (Shape, error) {
	rank := len(dimensions)
	if rank > MaxRank {
		return Shape{}, malformedf("rank %d is larger than the maximum rank %d", rank, MaxRank)
	}
	if !order.IsValid() {
		return Shape{}, malformedf("invalid order %s", order)
	}
	if !IsSupportedDType(dtype) {
		return Shape{}, malformedf("unsupported dtype %s", dtype)
	}
	for axis, dim := range dimensions {
		if dim < 0 {
			return Shape{}, malformedf("axis %d has negative dimension %d (dimensions=%v)", axis, dim, dimensions)
		}
	}
	s := Shape{
		DType:      dtype,
		Dimensions: slices.Clone(dimensions),
		Order:      order,
		Flags:      derivedFlags(dimensions),
	}
	if rank == 0 {
		s.Dimensions = nil
		s.Order = RowMajor
		return s, nil
	}
	if strides == nil || s.Flags.Has(FlagEmpty) {
		s.Strides = ContiguousStrides(order, dimensions)
		return s, nil
	}
	if len(strides) != rank {
		return Shape{}, malformedf("%d strides given for rank %d (dimensions=%v, strides=%v)", len(strides), rank, dimensions, strides)
	}
	for axis, stride := range strides {
		if stride < 0 {
			return Shape{}, malformedf("axis %d has negative stride %d (strides=%v)", axis, stride, strides)
		}
	}
	s.Strides = slices.Clone(strides)
	return s, nil
}

// ContiguousStrides returns the strides (in elements) of a dense layout of the given
// dimensions in the given order. Empty shapes (some dimension 0) have all strides 0.
func ContiguousStrides(order Order, dimensions []int) []int {
	rank := len(dimensions)
	if rank == 0 {
		return nil
	}
	strides := make([]int, rank)
	if slices.Contains(dimensions, 0) {
		return strides
	}
	current := 1
	if order == ColumnMajor {
		for axis := 0; axis < rank; axis++ {
			strides[axis] = current
			current *= dimensions[axis]
		}
		return strides
	}
	for axis := rank - 1; axis >= 0; axis-- {
		strides[axis] = current
		current *= dimensions[axis]
	}
	return strides
}

func derivedFlags(dimensions []int) (flags Flags) {
	if len(dimensions) == 0 {
		flags |= FlagScalar
	}
	if slices.Contains(dimensions, 0) {
		flags |= FlagEmpty
	}
	return
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating it with Shape{} will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar, that is there are no dimensions (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsEmpty returns whether some axis has dimension 0.
func (s Shape) IsEmpty() bool { return s.Flags.Has(FlagEmpty) }

// IsContiguous returns whether the strides are the dense strides for the shape's order.
func (s Shape) IsContiguous() bool {
	return slices.Equal(s.Strides, ContiguousStrides(s.Order, s.Dimensions))
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts as starting from the end -- so axis=-1 refers to the last axis.
// Like with a slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements stringer, pretty-prints the shape.
//
// Strides and order are only printed when they are not the default (row-major, contiguous).
func (s Shape) String() string {
	if !s.Ok() {
		return "(Invalid)"
	}
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "(%s)%v", s.DType, s.Dimensions)
	if s.Order != RowMajor {
		fmt.Fprintf(&sb, "{%s}", s.Order)
	}
	if !s.IsContiguous() {
		fmt.Fprintf(&sb, "{strides=%v}", s.Strides)
	}
	return sb.String()
}

// Size returns the number of elements of DType needed for this shape. It's the product of all dimensions.
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory used to store an array of the given shape, the same as the size in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// Equal compares two shapes for full structural equality: dtype, dimensions, strides,
// order and flags.
func (s Shape) Equal(s2 Shape) bool {
	return s.DType == s2.DType &&
		s.Order == s2.Order &&
		s.Flags == s2.Flags &&
		slices.Equal(s.Dimensions, s2.Dimensions) &&
		slices.Equal(s.Strides, s2.Strides)
}

// EqualDimensions compares two shapes for equality of dimensions. DTypes, strides and order can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2 = s
	s2.Dimensions = slices.Clone(s.Dimensions)
	s2.Strides = slices.Clone(s.Strides)
	return
}

// Offset returns the storage offset (in elements) of the element at the given indices.
func (s Shape) Offset(indices []int) (offset int) {
	if len(indices) != s.Rank() {
		exceptions.Panicf("Shape.Offset(%v) given %d indices for shape %s", indices, len(indices), s)
	}
	for axis, idx := range indices {
		offset += idx * s.Strides[axis]
	}
	return
}
