// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"slices"

	"github.com/gomlx/exceptions"
)

// State of a call going through the Dispatcher.
type State int

const (
	// Received is the initial state of every call.
	Received State = iota

	// TypeValidated means the arity and the input dtypes were accepted.
	TypeValidated

	// ShapeInferred means the output shapes were inferred, their dtypes validated and the shapes interned.
	ShapeInferred

	// OutputAllocated means the output tensors were allocated.
	OutputAllocated

	// Executed means the operation returned successfully.
	Executed

	// Completed is the final state of a successful call: outputs were handed to the caller.
	Completed

	// Rejected is the final state of a call that failed validation or shape inference.
	// No output is created.
	Rejected

	// Failed is the final state of a call whose execution returned an error.
	// The allocated outputs are finalized.
	Failed
)

var stateNames = []string{"Received", "TypeValidated", "ShapeInferred", "OutputAllocated",
	"Executed", "Completed", "Rejected", "Failed"}

// String implements fmt.Stringer.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// IsFinal returns whether no transition leaves the state.
func (s State) IsFinal() bool {
	return s == Completed || s == Rejected || s == Failed
}

var stateTransitions = map[State][]State{
	Received:        {TypeValidated, Rejected},
	TypeValidated:   {ShapeInferred, Rejected},
	ShapeInferred:   {OutputAllocated, Rejected},
	OutputAllocated: {Executed, Failed},
	Executed:        {Completed},
}

// CanTransition returns whether the Dispatcher may move a call from state s to next.
func (s State) CanTransition(next State) bool {
	return slices.Contains(stateTransitions[s], next)
}

// transition moves the call to the next state. An invalid transition is a bug in the Dispatcher.
func (c *CallContext) transition(next State) {
	if !c.state.CanTransition(next) {
		exceptions.Panicf("ops: call %s to %q: invalid state transition %s -> %s", c.ID, c.op, c.state, next)
	}
	c.state = next
}
