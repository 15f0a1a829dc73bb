// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"fmt"

	"github.com/pkg/errors"
)

// MalformedShapeError is returned when a shape, or its encoded form, is structurally
// inconsistent: rank and number of dimensions or strides disagree, negative dimensions,
// unknown dtype or order.
//
// It is never retried: the same input will always fail.
type MalformedShapeError struct {
	Reason string
}

// Error implements error.
func (e *MalformedShapeError) Error() string {
	return "malformed shape: " + e.Reason
}

func malformedf(format string, args ...any) error {
	return errors.WithStack(&MalformedShapeError{Reason: fmt.Sprintf(format, args...)})
}

// ShapeMismatchError is returned when shapes that should be compatible are not.
// Index is the position of the first shape that disagrees with First (the shape at index 0).
type ShapeMismatchError struct {
	Index        int
	First, Other Shape
	Reason       string
}

// Error implements error.
func (e *ShapeMismatchError) Error() string {
	if e.Index <= 0 {
		return "shape mismatch: " + e.Reason
	}
	return fmt.Sprintf("shape mismatch: shape #0 %s and shape #%d %s: %s", e.First, e.Index, e.Other, e.Reason)
}
