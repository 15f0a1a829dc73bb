// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements the Tensor used as input and output of operators: a shape
// and a flat Go slice of the shape's dtype holding the values.
//
// Tensors created by the dispatcher own one reference to the interned shapecache.Handle of
// their shape, returned by Tensor.Finalize. Tensors created by users (FromShape,
// FromFlatDataAndDimensions, FromScalar) hold a plain shapes.Shape.
//
// Values are addressed by their offset in the flat storage (see shapes.Shape.Offset and
// shapes.Shape.Iter), which for contiguous row-major shapes is the usual flat index.
//
// There are various ways to construct a Tensor:
//
//   - FromShape(shape shapes.Shape): a tensor with the given shape and zero values.
//   - FromHandle(cache, handle): same as FromShape, but owning a reference to an interned handle.
//   - FromFlatDataAndDimensions[T Element](data []T, dimensions ...int). Example:
//
//     t := FromFlatDataAndDimensions([]int8{1, 2, 3, 4}, 2, 2) // Tensor with [[1,2], [3,4]]
//
//   - FromScalar[T Element](value T): a rank-0 tensor.
package tensors

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/gomlx/declops/pkg/core/shapecache"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Element is the set of Go types that can be stored in a Tensor. Each maps to exactly one dtype.
type Element interface {
	bool | float16.Float16 | bfloat16.BFloat16 | float32 | float64 |
		int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64
}

// Tensor is a multidimensional array: a shape (dtype and axes dimensions) and its flat storage.
//
// Reading and writing values concurrently is up to the caller to synchronize: operators
// only read their inputs and only write their own outputs.
type Tensor struct {
	shape shapes.Shape

	// mu protects the ownership fields below, not the values in flat.
	mu        sync.Mutex
	cache     *shapecache.Cache
	handle    *shapecache.Handle
	flat      any // []T, where T is the Go type of shape.DType.
	finalized bool
}

// StorageLen returns the number of elements of the flat storage needed by the shape.
// For contiguous shapes it is the same as shape.Size().
func StorageLen(shape shapes.Shape) int {
	if shape.IsEmpty() {
		return 0
	}
	n := 1
	for axis, dim := range shape.Dimensions {
		n += (dim - 1) * shape.Strides[axis]
	}
	return n
}

// FromShape returns a tensor with the given shape and zero values.
//
// It panics if the shape is invalid or its dtype is not supported.
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() || !shapes.IsSupportedDType(shape.DType) {
		exceptions.Panicf("tensors.FromShape(%s): invalid shape or unsupported dtype", shape)
	}
	goType := shape.DType.GoType()
	n := StorageLen(shape)
	return &Tensor{
		shape: shape,
		flat:  reflect.MakeSlice(reflect.SliceOf(goType), n, n).Interface(),
	}
}

// FromHandle returns a zero-valued tensor for the interned shape. The tensor takes ownership of one
// reference to the handle, released with Finalize.
func FromHandle(cache *shapecache.Cache, handle *shapecache.Handle) *Tensor {
	t := FromShape(handle.Shape())
	t.cache = cache
	t.handle = handle
	return t
}

// FromFlatDataAndDimensions creates a row-major tensor with the given dimensions, filled with a copy of data.
//
// It panics if the size of data doesn't match the dimensions.
func FromFlatDataAndDimensions[T Element](data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if shape.Size() != len(data) {
		exceptions.Panicf("tensors.FromFlatDataAndDimensions(): data has %d elements, but dimensions %v require %d",
			len(data), dimensions, shape.Size())
	}
	t := FromShape(shape)
	copy(t.flat.([]T), data)
	return t
}

// FromScalar creates a rank-0 tensor holding value.
func FromScalar[T Element](value T) *Tensor {
	return FromFlatDataAndDimensions([]T{value})
}

// Shape of the tensor, includes DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType {
	if t == nil {
		return dtypes.InvalidDType
	}
	return t.shape.DType
}

// Rank returns the rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// IsScalar returns whether the tensor holds a rank-0 value.
func (t *Tensor) IsScalar() bool { return t.shape.IsScalar() }

// Size returns the number of elements of the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Len returns the length of the flat storage.
func (t *Tensor) Len() int { return reflect.ValueOf(t.storage()).Len() }

// Handle returns the interned handle of the tensor's shape, or nil if it doesn't own one.
func (t *Tensor) Handle() *shapecache.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle
}

// Ok returns whether the tensor is not nil and not finalized.
func (t *Tensor) Ok() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.finalized
}

func (t *Tensor) storage() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		exceptions.Panicf("tensors: tensor %s used after Finalize", t.shape)
	}
	return t.flat
}

// Finalize releases the storage and the reference to the interned handle, if any.
// It is idempotent, and the tensor can't be used afterward.
func (t *Tensor) Finalize() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finalized {
		return
	}
	t.finalized = true
	t.flat = nil
	if t.handle != nil {
		t.cache.Release(t.handle)
		t.handle = nil
		t.cache = nil
	}
}

// FinalizeAll finalizes all the given tensors, skipping nil entries.
func FinalizeAll(tensors []*Tensor) {
	for _, t := range tensors {
		t.Finalize()
	}
}

// ConstFlatData calls accessFn with the flat storage of the tensor.
// The slice must not be modified or kept after accessFn returns.
//
// It panics if T doesn't match the tensor's dtype.
func ConstFlatData[T Element](t *Tensor, accessFn func(flat []T)) {
	accessFn(flatAs[T](t))
}

// MutableFlatData calls accessFn with the flat storage of the tensor, which it may modify.
// The slice must not be kept after accessFn returns.
//
// It panics if T doesn't match the tensor's dtype.
func MutableFlatData[T Element](t *Tensor, accessFn func(flat []T)) {
	accessFn(flatAs[T](t))
}

// FlatData returns the flat storage of the tensor, valid until the tensor is finalized.
// Operators use it to access their inputs and outputs without copies.
//
// It panics if T doesn't match the tensor's dtype.
func FlatData[T Element](t *Tensor) []T {
	return flatAs[T](t)
}

func flatAs[T Element](t *Tensor) []T {
	flat, ok := t.storage().([]T)
	if !ok {
		var zero T
		exceptions.Panicf("tensors: tensor of dtype %s accessed as %T", t.shape.DType, zero)
	}
	return flat
}

// CopyFlatData returns a copy of the values of the tensor in logical row-major order,
// regardless of the layout of its storage.
//
// It panics if T doesn't match the tensor's dtype.
func CopyFlatData[T Element](t *Tensor) []T {
	flat := flatAs[T](t)
	values := make([]T, 0, t.Size())
	for offset := range t.shape.Iter() {
		values = append(values, flat[offset])
	}
	return values
}

// ToScalar returns the value of a rank-0 tensor.
//
// It panics if the tensor is not a scalar or T doesn't match the tensor's dtype.
func ToScalar[T Element](t *Tensor) T {
	if !t.IsScalar() {
		exceptions.Panicf("tensors.ToScalar(): tensor has shape %s, not a scalar", t.shape)
	}
	return flatAs[T](t)[0]
}

// At returns the value at the given storage offset, converted to float64.
// Booleans are returned as 0 or 1.
func (t *Tensor) At(offset int) float64 {
	switch flat := t.storage().(type) {
	case []bool:
		if flat[offset] {
			return 1
		}
		return 0
	case []int8:
		return float64(flat[offset])
	case []int16:
		return float64(flat[offset])
	case []int32:
		return float64(flat[offset])
	case []int64:
		return float64(flat[offset])
	case []uint8:
		return float64(flat[offset])
	case []uint16:
		return float64(flat[offset])
	case []uint32:
		return float64(flat[offset])
	case []uint64:
		return float64(flat[offset])
	case []float16.Float16:
		return float64(flat[offset].Float32())
	case []bfloat16.BFloat16:
		return float64(flat[offset].Float32())
	case []float32:
		return float64(flat[offset])
	case []float64:
		return flat[offset]
	}
	exceptions.Panicf("tensors.At(): dtype %s not supported", t.shape.DType)
	return 0
}

// SetAt sets the value at the given storage offset, converting it from float64 to the tensor's dtype.
//
// For integer dtypes the value is truncated toward zero and saturated to the dtype's range,
// and NaN becomes 0. For booleans any non-zero value is true.
func (t *Tensor) SetAt(offset int, value float64) {
	switch flat := t.storage().(type) {
	case []bool:
		flat[offset] = value != 0
	case []int8:
		flat[offset] = int8(saturate(value, math.MinInt8, math.MaxInt8))
	case []int16:
		flat[offset] = int16(saturate(value, math.MinInt16, math.MaxInt16))
	case []int32:
		flat[offset] = int32(saturate(value, math.MinInt32, math.MaxInt32))
	case []int64:
		flat[offset] = saturateInt64(value)
	case []uint8:
		flat[offset] = uint8(saturate(value, 0, math.MaxUint8))
	case []uint16:
		flat[offset] = uint16(saturate(value, 0, math.MaxUint16))
	case []uint32:
		flat[offset] = uint32(saturate(value, 0, math.MaxUint32))
	case []uint64:
		flat[offset] = saturateUint64(value)
	case []float16.Float16:
		flat[offset] = float16.Fromfloat32(float32(value))
	case []bfloat16.BFloat16:
		flat[offset] = bfloat16.FromFloat32(float32(value))
	case []float32:
		flat[offset] = float32(value)
	case []float64:
		flat[offset] = value
	default:
		exceptions.Panicf("tensors.SetAt(): dtype %s not supported", t.shape.DType)
	}
}

// saturate truncates value toward zero and clamps it to [lo, hi]. NaN becomes 0.
// lo and hi must be exactly representable as float64.
func saturate(value, lo, hi float64) float64 {
	switch {
	case math.IsNaN(value):
		return 0
	case value <= lo:
		return lo
	case value >= hi:
		return hi
	}
	return math.Trunc(value)
}

// saturateInt64 is like saturate for the int64 range, whose upper bound has no float64 representation.
func saturateInt64(value float64) int64 {
	switch {
	case math.IsNaN(value):
		return 0
	case value >= math.MaxInt64:
		return math.MaxInt64
	case value <= math.MinInt64:
		return math.MinInt64
	}
	return int64(value)
}

// saturateUint64 is like saturate for the uint64 range.
func saturateUint64(value float64) uint64 {
	switch {
	case math.IsNaN(value) || value <= 0:
		return 0
	case value >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(value)
}

// Equal returns whether both tensors have equal shapes and values.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) {
		return false
	}
	v0 := reflect.ValueOf(t.storage())
	v1 := reflect.ValueOf(other.storage())
	for offset := range t.shape.Iter() {
		if !v0.Index(offset).Equal(v1.Index(offset)) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer. Values are listed in logical row-major order.
func (t *Tensor) String() string {
	if !t.Ok() {
		return "Tensor(finalized)"
	}
	flatV := reflect.ValueOf(t.storage())
	var sb strings.Builder
	sb.WriteString(t.shape.String())
	sb.WriteString(": [")
	first := true
	for offset := range t.shape.Iter() {
		if !first {
			sb.WriteString(" ")
		}
		first = false
		fmt.Fprintf(&sb, "%v", flatV.Index(offset).Interface())
	}
	sb.WriteString("]")
	return sb.String()
}
