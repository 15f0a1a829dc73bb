// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/engine"
	"github.com/spf13/cobra"
)

// callFlags are the arguments of a call given on the command line.
type callFlags struct {
	iArgs []int64
	tArgs []float64
	bArgs []bool
}

func (f *callFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64SliceVar(&f.iArgs, "iarg", nil, "Integer arguments of the call, repeat or comma-separate for more.")
	cmd.Flags().Float64SliceVar(&f.tArgs, "targ", nil, "Float arguments of the call, repeat or comma-separate for more.")
	cmd.Flags().BoolSliceVar(&f.bArgs, "barg", nil, "Boolean arguments of the call, repeat or comma-separate for more.")
}

func (f *callFlags) call(op string, inputs []*tensors.Tensor) *ops.Call {
	return &ops.Call{Op: op, Inputs: inputs, IArgs: f.iArgs, TArgs: f.tArgs, BArgs: f.bArgs}
}

func newInferCmd(newEngine func() (*engine.Engine, error)) *cobra.Command {
	var shapeSpecs []string
	var flags callFlags
	cmd := &cobra.Command{
		Use:   "infer <operation>",
		Short: "Infer the output shapes of an operation for the given input shapes",
		Example: "  declops infer mergemaxindex --shape f32:2,3 --shape f32:2,3\n" +
			"  declops infer reduce_sum --shape i64:4,5 --iarg 1 --barg true",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]*tensors.Tensor, 0, len(shapeSpecs))
			for _, spec := range shapeSpecs {
				shape, err := parseShape(spec)
				if err != nil {
					return err
				}
				inputs = append(inputs, tensors.FromShape(shape))
			}
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Finalize()
			handles, err := e.InferShapes(flags.call(args[0], inputs))
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(handles))
			for ii, handle := range handles {
				shape := handle.Shape()
				rows = append(rows, []string{fmt.Sprintf("output #%d", ii), shape.String(),
					humanize.Bytes(uint64(shape.Memory())), fmt.Sprintf("%v", handle.Encoded())})
				e.Cache().Release(handle)
			}
			renderKeyValues(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&shapeSpecs, "shape", nil,
		"Shape of an input, as \"<dtype>:<dim>,<dim>,...\" (e.g. \"f32:2,3\"). Repeat for each input.")
	flags.register(cmd)
	return cmd
}
