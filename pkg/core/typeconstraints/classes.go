// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package typeconstraints holds, per operator, the element types (dtypes) each input and
// output accepts, and validates concrete dtypes against them.
//
// Allowed types are expressed as Class values (AllInts, AllFloats, AllIndices, Any, ...),
// combined in a Declaration built by the operator, and registered by operator name in a
// Registry.
package typeconstraints

import (
	"fmt"
	"strings"

	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/gopjrt/dtypes"
)

// maxDTypes bounds the dtype enum values that fit in a DTypeSet.
const maxDTypes = 64

// DTypeSet is a set of dtypes, represented as a bitmask indexed by the dtype value.
type DTypeSet uint64

// SetOf returns the set with the given dtypes.
func SetOf(dtypesList ...dtypes.DType) (set DTypeSet) {
	for _, dtype := range dtypesList {
		if dtype > dtypes.InvalidDType && dtype < maxDTypes {
			set |= 1 << uint(dtype)
		}
	}
	return
}

// Has returns whether dtype is in the set.
func (s DTypeSet) Has(dtype dtypes.DType) bool {
	if dtype <= dtypes.InvalidDType || dtype >= maxDTypes {
		return false
	}
	return s&(1<<uint(dtype)) != 0
}

// DTypes returns the elements of the set in increasing order of their enum value.
func (s DTypeSet) DTypes() []dtypes.DType {
	var list []dtypes.DType
	for dtype := dtypes.DType(1); dtype < maxDTypes; dtype++ {
		if s.Has(dtype) {
			list = append(list, dtype)
		}
	}
	return list
}

// Class is a named set of dtypes, used to declare the allowed types of an operator.
type Class struct {
	Name string
	Set  DTypeSet
}

// String implements fmt.Stringer.
func (c Class) String() string { return c.Name }

// Predefined classes.
var (
	// Any accepts all dtypes supported by shapes.
	Any = Class{"ANY", SetOf(shapes.SupportedDTypes...)}

	// AllInts accepts signed and unsigned integers.
	AllInts = Class{"ALL_INTS", SetOf(
		dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
		dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64)}

	// AllUnsigned accepts unsigned integers.
	AllUnsigned = Class{"ALL_UNSIGNED", SetOf(dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64)}

	// AllFloats accepts all floating point types, including half-precision ones.
	AllFloats = Class{"ALL_FLOATS", SetOf(dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64)}

	// AllIndices accepts the types used to hold indices.
	AllIndices = Class{"ALL_INDICES", SetOf(dtypes.Int32, dtypes.Int64)}

	// Bools accepts only booleans.
	Bools = Class{"BOOL", SetOf(dtypes.Bool)}

	// Numeric accepts integers and floats.
	Numeric = Class{"NUMERIC", AllInts.Set | AllFloats.Set}
)

// Of returns an anonymous class with exactly the given dtypes.
func Of(dtypesList ...dtypes.DType) Class {
	names := make([]string, 0, len(dtypesList))
	for _, dtype := range dtypesList {
		names = append(names, dtype.String())
	}
	return Class{Name: fmt.Sprintf("{%s}", strings.Join(names, ",")), Set: SetOf(dtypesList...)}
}

// classList is a union of classes.
type classList []Class

func (l classList) set() (set DTypeSet) {
	for _, c := range l {
		set |= c.Set
	}
	return
}

func (l classList) String() string {
	names := make([]string, 0, len(l))
	for _, c := range l {
		names = append(names, c.Name)
	}
	return strings.Join(names, "|")
}
