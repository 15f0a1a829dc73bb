// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"encoding/binary"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// Encoded form of a shape, a flat []int64:
//
//	[rank, dimensions (rank), strides (rank), extra, ews, order]
//
// where extra = flags | dtype<<32, ews is the element-wise stride (1 if the strides are
// the contiguous ones for the order, 0 otherwise) and order is 'c' or 'f'.
const (
	encodedHeaderLength = 4
	extraDTypeShift     = 32
	extraFlagsMask      = 1<<extraDTypeShift - 1
)

// EncodedLength returns the number of int64 words used by the encoded form of a shape of the given rank.
func EncodedLength(rank int) int {
	return 2*rank + encodedHeaderLength
}

// Encode returns the encoded form of the shape.
func (s Shape) Encode() []int64 {
	buf := make([]int64, EncodedLength(s.Rank()))
	s.EncodeTo(buf)
	return buf
}

// EncodeTo writes the encoded form of the shape into buf, which must have at least
// EncodedLength(s.Rank()) words. It returns the number of words written.
func (s Shape) EncodeTo(buf []int64) int {
	rank := s.Rank()
	length := EncodedLength(rank)
	if len(buf) < length {
		exceptions.Panicf("Shape.EncodeTo(): buffer has %d words, shape %s requires %d", len(buf), s, length)
	}
	buf[0] = int64(rank)
	for axis := range rank {
		buf[1+axis] = int64(s.Dimensions[axis])
		buf[1+rank+axis] = int64(s.Strides[axis])
	}
	buf[1+2*rank] = int64(s.Flags) | int64(s.DType)<<extraDTypeShift
	buf[2+2*rank] = s.elementWiseStride()
	buf[3+2*rank] = int64(s.Order)
	return length
}

func (s Shape) elementWiseStride() int64 {
	if s.IsContiguous() {
		return 1
	}
	return 0
}

// Decode parses the encoded form of a shape (see Encode).
//
// It is total: any input either decodes to a valid Shape or returns a *MalformedShapeError.
// Buffers whose length disagree with the rank (including a wrong number of strides), with
// negative dimensions or strides, with unknown dtypes, orders or flags, or whose flags or
// element-wise stride contradict the dimensions and strides are rejected.
func Decode(buf []int64) (Shape, error) {
	if len(buf) < encodedHeaderLength {
		return Shape{}, malformedf("encoded shape has %d words, at least %d required", len(buf), encodedHeaderLength)
	}
	rank64 := buf[0]
	if rank64 < 0 || rank64 > MaxRank {
		return Shape{}, malformedf("encoded rank %d out of range [0, %d]", rank64, MaxRank)
	}
	rank := int(rank64)
	if len(buf) != EncodedLength(rank) {
		return Shape{}, malformedf("encoded shape has %d words, rank %d requires %d (dimensions and strides must have rank entries)",
			len(buf), rank, EncodedLength(rank))
	}
	dimensions := make([]int, rank)
	strides := make([]int, rank)
	for axis := range rank {
		dim, stride := buf[1+axis], buf[1+rank+axis]
		if dim < 0 {
			return Shape{}, malformedf("encoded axis %d has negative dimension %d", axis, dim)
		}
		if stride < 0 {
			return Shape{}, malformedf("encoded axis %d has negative stride %d", axis, stride)
		}
		dimensions[axis] = int(dim)
		strides[axis] = int(stride)
	}
	extra := buf[1+2*rank]
	if extra < 0 {
		return Shape{}, malformedf("encoded extra word %d is negative", extra)
	}
	flags := Flags(extra & extraFlagsMask)
	if flags&^knownFlags != 0 {
		return Shape{}, malformedf("encoded shape has unknown flags %s", flags)
	}
	dtype := dtypes.DType(extra >> extraDTypeShift)
	orderWord := buf[3+2*rank]
	if orderWord < 0 || orderWord > math.MaxUint8 {
		return Shape{}, malformedf("encoded order %d is invalid", orderWord)
	}
	s, err := New(dtype, Order(orderWord), dimensions, strides)
	if err != nil {
		return Shape{}, err
	}
	if s.Flags != flags {
		return Shape{}, malformedf("encoded flags [%s] don't match dimensions %v (expected [%s])", flags, dimensions, s.Flags)
	}
	if s.IsEmpty() {
		for axis, stride := range strides {
			if stride != 0 {
				return Shape{}, malformedf("empty shape %v has non-zero stride %d at axis %d", dimensions, stride, axis)
			}
		}
	}
	if ews := buf[2+2*rank]; ews != s.elementWiseStride() {
		return Shape{}, malformedf("encoded element-wise stride %d contradicts strides %v for order %s", ews, strides, s.Order)
	}
	return s, nil
}

// Key returns a canonical binary key of the shape: two shapes have the same key
// if and only if they are Equal.
func (s Shape) Key() string {
	encoded := s.Encode()
	key := make([]byte, 0, len(encoded)*2)
	for _, word := range encoded {
		key = binary.AppendVarint(key, word)
	}
	return string(key)
}

// legacyScalarLength is the length of the historical scalar encoding: a rank-2 shape
// with unit dimensions.
const legacyScalarLength = 8

// IsLegacyScalar returns whether buf holds the historical encoding of a scalar, a rank-2
// row-major shape with dimensions [1 1] and strides [1 1].
//
// This module always represents scalars as true rank-0 shapes; DecodeLegacy converts
// the historical form.
func IsLegacyScalar(buf []int64) bool {
	return len(buf) == legacyScalarLength &&
		buf[0] == 2 &&
		buf[1] == 1 && buf[2] == 1 &&
		buf[3] == 1 && buf[4] == 1 &&
		buf[7] == int64(RowMajor)
}

// DecodeLegacy works like Decode, but converts the historical scalar encoding (see
// IsLegacyScalar) into the canonical rank-0 scalar of the same dtype.
func DecodeLegacy(buf []int64) (Shape, error) {
	s, err := Decode(buf)
	if err != nil {
		return s, err
	}
	if IsLegacyScalar(buf) {
		return Scalar(s.DType), nil
	}
	return s, nil
}
