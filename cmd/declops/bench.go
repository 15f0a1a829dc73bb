// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/engine"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type benchFlags struct {
	goroutines, shapes, calls, batch int
	op                        string
	noProgress                bool
}

func newBenchCmd(newEngine func() (*engine.Engine, error)) *cobra.Command {
	var flags benchFlags
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run many concurrent calls over a set of shapes and report the shape cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.goroutines < 1 || flags.shapes < 1 || flags.batch < 1 || flags.calls < 0 {
				return errors.Errorf("--goroutines, --shapes and --batch must be positive, and --calls non-negative")
			}
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Finalize()
			return runBench(cmd, e, flags)
		},
	}
	cmd.Flags().IntVar(&flags.goroutines, "goroutines", 4, "Number of goroutines issuing calls.")
	cmd.Flags().IntVar(&flags.shapes, "shapes", 8, "Number of distinct input shapes.")
	cmd.Flags().IntVar(&flags.calls, "calls", 1000, "Number of calls per goroutine.")
	cmd.Flags().IntVar(&flags.batch, "batch", 16,
		"Number of calls each goroutine submits at once, run by the engine workers (see the workers= config option).")
	cmd.Flags().StringVar(&flags.op, "op", "mergemaxindex", "Operation to call with two inputs of the same shape.")
	cmd.Flags().BoolVar(&flags.noProgress, "no_progress", false, "Disable the progress bar.")
	return cmd
}

// benchInputs creates pairs of inputs of numShapes distinct shapes: Float32 vectors of increasing length.
func benchInputs(numShapes int) [][]*tensors.Tensor {
	inputs := make([][]*tensors.Tensor, numShapes)
	for ii := range inputs {
		shape := shapes.Make(dtypes.Float32, ii+1)
		a, b := tensors.FromShape(shape), tensors.FromShape(shape)
		for offset := range shape.Iter() {
			a.SetAt(offset, float64(offset))
			b.SetAt(offset, float64(ii-offset))
		}
		inputs[ii] = []*tensors.Tensor{a, b}
	}
	return inputs
}

func runBench(cmd *cobra.Command, e *engine.Engine, flags benchFlags) error {
	inputs := benchInputs(flags.shapes)
	total := flags.goroutines * flags.calls
	w := cmd.OutOrStdout()
	var bar *progressbar.ProgressBar
	if !flags.noProgress {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("calls"),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("calls"),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetTheme(progressbar.ThemeASCII))
	}

	start := time.Now()
	var g errgroup.Group
	for gIdx := range flags.goroutines {
		g.Go(func() error {
			calls := make([]*ops.Call, 0, flags.batch)
			for callIdx := 0; callIdx < flags.calls; callIdx += flags.batch {
				calls = calls[:0]
				for ii := callIdx; ii < min(callIdx+flags.batch, flags.calls); ii++ {
					calls = append(calls, &ops.Call{Op: flags.op, Inputs: inputs[(gIdx+ii)%len(inputs)]})
				}
				var firstErr error
				for _, result := range e.ExecuteBatch(calls) {
					tensors.FinalizeAll(result.Outputs)
					if firstErr == nil {
						firstErr = result.Err
					}
				}
				if firstErr != nil {
					return firstErr
				}
				if bar != nil {
					_ = bar.Add(len(calls))
				}
			}
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	stats := e.Cache().Stats()
	evicted := e.Cache().Trim()
	callsPerSec := float64(total) / max(elapsed.Seconds(), 1e-9)
	fmt.Fprintln(w, titleStyle.Render("Benchmark"))
	renderKeyValues(w, [][]string{
		{"operation", flags.op},
		{"calls", humanize.Comma(int64(total))},
		{"elapsed", elapsed.String()},
		{"calls/s", humanize.Commaf(float64(int64(callsPerSec)))},
		{"cache", stats.String()},
		{"trimmed", humanize.Comma(int64(evicted))},
		{"workspace peak", humanize.Bytes(uint64(e.Dispatcher().Workspace().Peak() * 8))},
	})
	return nil
}
