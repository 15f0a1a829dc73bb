// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package engine bundles everything needed to run declarable operations: the shape cache,
// the operations registry (with the type declarations) and the dispatcher.
//
// Usually one creates a single Engine per process:
//
//	e := engine.MustNewFromEnv()
//	defer e.Finalize()
//	outputs, err := e.Execute("mergemaxindex", a, b)
//
// The configuration is taken from the DECLOPS_ENGINE environment variable, or DefaultConfig.
// See ParseConfig for the options.
package engine

import (
	"fmt"
	"os"

	"github.com/gomlx/declops/internal/workerspool"
	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/shapecache"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/core/typeconstraints"
	"github.com/gomlx/declops/pkg/ops/generic"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

// Engine owns a shape cache, an operations registry with all the generic operators, and a dispatcher.
// It is safe for concurrent use.
type Engine struct {
	config     Config
	cache      *shapecache.Cache
	ops        *ops.Registry
	dispatcher *ops.Dispatcher
	pool       *workerspool.Pool
}

// New creates an Engine with the given configuration. See ParseConfig for its format.
func New(config string) (*Engine, error) {
	c, err := ParseConfig(config)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(c)
}

// NewWithConfig creates an Engine with a parsed configuration.
func NewWithConfig(c Config) (*Engine, error) {
	e := &Engine{
		config: c,
		cache:  shapecache.New(c.Policy),
		ops:    ops.NewRegistry(),
		pool:   workerspool.New(c.Workers),
	}
	if err := generic.RegisterAll(e.ops); err != nil {
		return nil, err
	}
	e.dispatcher = ops.NewDispatcher(e.ops, e.cache).WithDefaultIndexDType(c.IndexDType)
	klog.V(1).Infof("engine: created with configuration %q, %d operations", c, e.ops.Len())
	return e, nil
}

// NewFromEnv creates an Engine configured by the DECLOPS_ENGINE environment variable if set,
// or DefaultConfig otherwise.
func NewFromEnv() (*Engine, error) {
	if config, found := os.LookupEnv(DECLOPS_ENGINE); found {
		return New(config)
	}
	return New(DefaultConfig)
}

// MustNew creates an Engine with the given configuration, and panics on error.
func MustNew(config string) *Engine {
	return must.M1(New(config))
}

// MustNewFromEnv is like NewFromEnv, but panics on error.
func MustNewFromEnv() *Engine {
	return must.M1(NewFromEnv())
}

// Config returns the configuration of the engine.
func (e *Engine) Config() Config { return e.config }

// Cache returns the shape cache.
func (e *Engine) Cache() *shapecache.Cache { return e.cache }

// Ops returns the operations registry. More operations can be registered before the engine is used.
func (e *Engine) Ops() *ops.Registry { return e.ops }

// Types returns the type declarations of the registered operations.
func (e *Engine) Types() *typeconstraints.Registry { return e.ops.Types() }

// Dispatcher returns the dispatcher.
func (e *Engine) Dispatcher() *ops.Dispatcher { return e.dispatcher }

// String implements fmt.Stringer.
func (e *Engine) String() string {
	return fmt.Sprintf("Engine(%s; %d operations; cache: %s)", e.config, e.ops.Len(), e.cache.Stats())
}

// Execute runs the operation with the given inputs and no arguments. See ops.Dispatcher.Execute.
func (e *Engine) Execute(op string, inputs ...*tensors.Tensor) ([]*tensors.Tensor, error) {
	return e.dispatcher.Execute(&ops.Call{Op: op, Inputs: inputs})
}

// Call runs the call. See ops.Dispatcher.Execute.
func (e *Engine) Call(call *ops.Call) ([]*tensors.Tensor, error) {
	return e.dispatcher.Execute(call)
}

// InferShapes runs the call up to shape inference. See ops.Dispatcher.InferShapes.
func (e *Engine) InferShapes(call *ops.Call) ([]*shapecache.Handle, error) {
	return e.dispatcher.InferShapes(call)
}

// Result of one call of a batch.
type Result struct {
	Outputs []*tensors.Tensor
	Err     error
}

// ExecuteBatch runs independent calls in parallel (see Config.Workers), and returns their
// results in the same order. Errors of one call don't affect the others.
//
// If any call panics (e.g. *ops.ShapeContractViolation), ExecuteBatch waits for the remaining
// calls, finalizes all outputs and re-panics with the first panic in the caller's goroutine.
func (e *Engine) ExecuteBatch(calls []*ops.Call) []Result {
	results := make([]Result, len(calls))
	panics := make([]error, len(calls))
	e.pool.Map(len(calls), func(i int) {
		panics[i] = exceptions.TryCatch[error](func() {
			results[i].Outputs, results[i].Err = e.dispatcher.Execute(calls[i])
		})
	})
	for _, err := range panics {
		if err != nil {
			for _, result := range results {
				tensors.FinalizeAll(result.Outputs)
			}
			panic(err)
		}
	}
	return results
}

// Finalize drops all entries of the shape cache. Tensors still referencing handles remain usable.
func (e *Engine) Finalize() {
	klog.V(1).Infof("engine: finalizing, cache: %s", e.cache.Stats())
	e.cache.Finalize()
}
