// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package typeconstraints

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// TypeViolationError is returned when an input or output dtype is not allowed by the
// operator's Declaration.
type TypeViolationError struct {
	Op       string
	Index    int
	Output   bool
	Expected string
	Actual   dtypes.DType
}

// Error implements error.
func (e *TypeViolationError) Error() string {
	kind := "input"
	if e.Output {
		kind = "output"
	}
	return fmt.Sprintf("operator %q: %s #%d has dtype %s, expected %s", e.Op, kind, e.Index, e.Actual, e.Expected)
}

// Declaration of the allowed dtypes of an operator. Create it with Declare and the
// chained Allow* methods. Once registered it must not be changed.
//
// Inputs or outputs without any declared class accept any dtype.
type Declaration struct {
	inputs, outputs      classList
	perInput, perOutput  map[int]classList
	sameMode, sameInputs bool
}

// Declare starts a new Declaration.
func Declare() *Declaration {
	return &Declaration{
		perInput:  make(map[int]classList),
		perOutput: make(map[int]classList),
	}
}

// AllowInputs adds the classes accepted by all inputs (except those with a per-index declaration).
func (d *Declaration) AllowInputs(classes ...Class) *Declaration {
	d.inputs = append(d.inputs, classes...)
	return d
}

// AllowInput adds the classes accepted by the input at the given index. It overrides AllowInputs for that index.
func (d *Declaration) AllowInput(index int, classes ...Class) *Declaration {
	d.perInput[index] = append(d.perInput[index], classes...)
	return d
}

// AllowOutputs adds the classes accepted by all outputs (except those with a per-index declaration).
func (d *Declaration) AllowOutputs(classes ...Class) *Declaration {
	d.outputs = append(d.outputs, classes...)
	return d
}

// AllowOutput adds the classes accepted by the output at the given index. It overrides AllowOutputs for that index.
func (d *Declaration) AllowOutput(index int, classes ...Class) *Declaration {
	d.perOutput[index] = append(d.perOutput[index], classes...)
	return d
}

// SameMode requires every output to have the same dtype as the input at the same
// index, or as input #0 if there are fewer inputs than outputs.
func (d *Declaration) SameMode() *Declaration {
	d.sameMode = true
	return d
}

// SameInputTypes requires all inputs to have the same dtype.
func (d *Declaration) SameInputTypes() *Declaration {
	d.sameInputs = true
	return d
}

// IsSameMode returns whether SameMode was declared.
func (d *Declaration) IsSameMode() bool { return d.sameMode }

func (d *Declaration) inputClasses(index int) classList {
	if classes, found := d.perInput[index]; found {
		return classes
	}
	return d.inputs
}

func (d *Declaration) outputClasses(index int) classList {
	if classes, found := d.perOutput[index]; found {
		return classes
	}
	return d.outputs
}

// ValidateInputs checks the input dtypes of a call to operator op.
// It returns a *TypeViolationError for the first input not allowed.
func (d *Declaration) ValidateInputs(op string, inputs []dtypes.DType) error {
	for ii, dtype := range inputs {
		classes := d.inputClasses(ii)
		if len(classes) > 0 && !classes.set().Has(dtype) {
			return errors.WithStack(&TypeViolationError{Op: op, Index: ii, Expected: classes.String(), Actual: dtype})
		}
		if d.sameInputs && ii > 0 && dtype != inputs[0] {
			return errors.WithStack(&TypeViolationError{Op: op, Index: ii,
				Expected: fmt.Sprintf("same as input #0 (%s)", inputs[0]), Actual: dtype})
		}
	}
	return nil
}

// ValidateOutputs checks the output dtypes resolved by the shape inference of operator op,
// given the input dtypes. It returns a *TypeViolationError for the first output not allowed.
func (d *Declaration) ValidateOutputs(op string, inputs, outputs []dtypes.DType) error {
	for ii, dtype := range outputs {
		if d.sameMode && len(inputs) > 0 {
			want := inputs[0]
			if ii < len(inputs) {
				want = inputs[ii]
			}
			if dtype != want {
				return errors.WithStack(&TypeViolationError{Op: op, Index: ii, Output: true,
					Expected: fmt.Sprintf("same as input (%s)", want), Actual: dtype})
			}
			continue
		}
		classes := d.outputClasses(ii)
		if len(classes) > 0 && !classes.set().Has(dtype) {
			return errors.WithStack(&TypeViolationError{Op: op, Index: ii, Output: true, Expected: classes.String(), Actual: dtype})
		}
	}
	return nil
}

// String returns a compact description, e.g. "in: ALL_INTS|ALL_FLOATS, out: ALL_INDICES".
func (d *Declaration) String() string {
	describe := func(all classList, perIndex map[int]classList) string {
		var parts []string
		if len(all) > 0 {
			parts = append(parts, all.String())
		}
		for _, idx := range slices.Sorted(maps.Keys(perIndex)) {
			parts = append(parts, fmt.Sprintf("#%d=%s", idx, perIndex[idx]))
		}
		if len(parts) == 0 {
			return "any"
		}
		return strings.Join(parts, " ")
	}
	in := describe(d.inputs, d.perInput)
	if d.sameInputs {
		in += " (same)"
	}
	out := describe(d.outputs, d.perOutput)
	if d.sameMode {
		out = "same as input"
	}
	return fmt.Sprintf("in: %s, out: %s", in, out)
}
