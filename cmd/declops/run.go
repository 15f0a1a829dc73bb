// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/declops/pkg/engine"
	"github.com/spf13/cobra"
)

func newRunCmd(newEngine func() (*engine.Engine, error)) *cobra.Command {
	var inputSpecs []string
	var flags callFlags
	cmd := &cobra.Command{
		Use:   "run <operation>",
		Short: "Run an operation on the given inputs and print its outputs",
		Example: "  declops run test_scalar --input f64:=3\n" +
			"  declops run mergemaxindex --input f32:3=1,5,2 --input f32:3=4,0,9",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]*tensors.Tensor, 0, len(inputSpecs))
			for _, spec := range inputSpecs {
				t, err := parseTensor(spec)
				if err != nil {
					return err
				}
				inputs = append(inputs, t)
			}
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Finalize()
			outputs, err := e.Call(flags.call(args[0], inputs))
			if err != nil {
				return err
			}
			defer tensors.FinalizeAll(outputs)
			rows := make([][]string, 0, len(outputs))
			for ii, output := range outputs {
				rows = append(rows, []string{fmt.Sprintf("output #%d", ii), output.String()})
			}
			renderKeyValues(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&inputSpecs, "input", nil,
		"Input tensor, as \"<dtype>:<dim>,...=<value>,...\" (e.g. \"f32:2,2=1,2,3,4\"). Repeat for each input.")
	flags.register(cmd)
	return cmd
}
