// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generic

import (
	"github.com/gomlx/declops/pkg/core/tensors"
	"golang.org/x/exp/constraints"
)

// number is the set of tensor element types with native Go arithmetic.
// Float16 and BFloat16 are handled through float64.
type number interface {
	tensors.Element
	constraints.Integer | constraints.Float
}
