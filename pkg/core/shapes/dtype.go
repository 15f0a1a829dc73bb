// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/gopjrt/dtypes"
)

// SupportedDTypes enumerates the dtypes a Shape can describe.
//
// Complex numbers are not included: the operators in this module address elements as float64.
var SupportedDTypes = []dtypes.DType{
	dtypes.Bool,
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
}

// maxDTypes bounds the dtype enum values, so a bitmask can be used for sets of dtypes.
const maxDTypes = 64

var supportedMask uint64

func init() {
	for _, dtype := range SupportedDTypes {
		supportedMask |= 1 << uint(dtype)
	}
}

// IsSupportedDType returns whether dtype is in SupportedDTypes.
func IsSupportedDType(dtype dtypes.DType) bool {
	if dtype <= dtypes.InvalidDType || dtype >= maxDTypes {
		return false
	}
	return supportedMask&(1<<uint(dtype)) != 0
}
