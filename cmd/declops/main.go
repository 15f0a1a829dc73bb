// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// declops lists, inspects, runs and benchmarks the declarable operations of the engine.
//
// Examples:
//
//	declops list
//	declops infer mergemaxindex --shape f32:2,3 --shape f32:2,3 --iarg 9
//	declops run test_scalar --input f64:=3
//	declops run mergemaxindex --input f32:2,3=1,5,2,4,0,9 --input f32:2,3=0,0,0,9,9,0
//	declops bench --goroutines 8 --shapes 16
//
// The engine is configured with --config, or with the DECLOPS_ENGINE environment variable.
package main

import (
	"flag"
	"os"

	"github.com/gomlx/declops/pkg/engine"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// newRootCmd creates the root command and all its subcommands.
func newRootCmd() *cobra.Command {
	var config string
	rootCmd := &cobra.Command{
		Use:           "declops",
		Short:         "Inspect and run declarable operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&config, "config", "",
		"Engine configuration, e.g. \"delete_shape_info,index=Int64,workers=4\". "+
			"If empty, the "+engine.DECLOPS_ENGINE+" environment variable is used.")

	newEngine := func() (*engine.Engine, error) {
		if config != "" {
			return engine.New(config)
		}
		return engine.NewFromEnv()
	}
	rootCmd.AddCommand(
		newListCmd(newEngine),
		newInferCmd(newEngine),
		newRunCmd(newEngine),
		newBenchCmd(newEngine),
	)
	return rootCmd
}

func main() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd := newRootCmd()
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
}
