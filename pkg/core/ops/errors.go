// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnknownOperation is returned (wrapped with the name) when no operation is registered under a name.
var ErrUnknownOperation = errors.New("unknown operation")

// ArityError is returned when a call has a wrong number of inputs or arguments.
type ArityError struct {
	Op string

	// Kind of what is counted: "inputs", "integer arguments" or "float arguments".
	Kind string

	Provided, Min int

	// Max is Unbounded if there is no upper limit.
	Max int
}

// Error implements error.
func (e *ArityError) Error() string {
	var expected string
	switch {
	case e.Max == Unbounded:
		expected = fmt.Sprintf("at least %d", e.Min)
	case e.Min == e.Max:
		expected = fmt.Sprintf("%d", e.Min)
	default:
		expected = fmt.Sprintf("between %d and %d", e.Min, e.Max)
	}
	return fmt.Sprintf("operator %q: expected %s %s, got %d", e.Op, expected, e.Kind, e.Provided)
}

// ShapeContractViolation is the value panicked by the Dispatcher when an operation's shape
// inference breaks its contract (wrong number of outputs or invalid shapes).
// It is a programming error in the operation, not a user error.
type ShapeContractViolation struct {
	Op     string
	Reason string
}

// Error implements error.
func (e *ShapeContractViolation) Error() string {
	return fmt.Sprintf("operator %q violated its shape inference contract: %s", e.Op, e.Reason)
}
