// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/declops/pkg/engine"
	"github.com/spf13/cobra"
)

func newListCmd(newEngine func() (*engine.Engine, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered operations with their arity and type constraints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Finalize()
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render("Operations"))
			table := newStyledTable([]string{"Name", "Synonyms", "Inputs", "Outputs", "Types"},
				lipgloss.Left, lipgloss.Left, lipgloss.Right, lipgloss.Right, lipgloss.Left)
			for op := range e.Ops().All() {
				desc := op.Descriptor()
				types := "any"
				if decl, found := e.Types().Lookup(desc.Name); found {
					types = decl.String()
				}
				table.Row(desc.Name, strings.Join(desc.Synonyms, ", "), desc.InputsRange(),
					fmt.Sprintf("%d", desc.NumOutputs), types)
			}
			fmt.Fprintln(w, table.Render())
			return nil
		},
	}
}
