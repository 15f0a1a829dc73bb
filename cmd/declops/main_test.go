// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"testing"

	"github.com/gomlx/declops/pkg/core/shapes"
	"github.com/gomlx/declops/pkg/core/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseSpecs(t *testing.T) {
	shape, err := parseShape("float32:2,3")
	require.NoError(t, err)
	require.NoError(t, shape.Check(dtypes.Float32, 2, 3))

	shape, err = parseShape("Int8")
	require.NoError(t, err)
	require.True(t, shape.Equal(shapes.Scalar(dtypes.Int8)))

	for _, spec := range []string{"foo:2", "float32:2,x", "float32:-1"} {
		_, err = parseShape(spec)
		require.Errorf(t, err, "spec %q", spec)
	}

	tensor, err := parseTensor("int32:2,2=1, 2,3,4")
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3, 4}, tensors.CopyFlatData[int32](tensor))
	tensor, err = parseTensor("float64:2")
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0}, tensors.CopyFlatData[float64](tensor))

	_, err = parseTensor("int32:2=1")
	require.Error(t, err)
	_, err = parseTensor("int32:2=1,a")
	require.Error(t, err)
}

func TestCommands(t *testing.T) {
	out, err := runCmd(t, "list")
	require.NoError(t, err)
	require.Contains(t, out, "mergemaxindex")
	require.Contains(t, out, "MergeMaxIndex")
	require.Contains(t, out, "ALL_INDICES")

	out, err = runCmd(t, "infer", "mergemaxindex", "--shape", "float32:2,3", "--shape", "float32:2,3")
	require.NoError(t, err)
	require.Contains(t, out, "(Int32)[2 3]")

	out, err = runCmd(t, "--config", "index=Int64", "infer", "mergemaxindex", "--shape", "float32:2,3")
	require.NoError(t, err)
	require.Contains(t, out, "(Int64)[2 3]")

	_, err = runCmd(t, "infer", "mergemaxindex", "--shape", "float32:2,3", "--shape", "float32:3,2")
	require.Error(t, err)
	_, err = runCmd(t, "--config", "bogus", "list")
	require.Error(t, err)

	out, err = runCmd(t, "run", "test_scalar", "--input", "float64:=3")
	require.NoError(t, err)
	require.Contains(t, out, "(Float64): [5]")

	out, err = runCmd(t, "run", "mergemaxindex", "--input", "float32:3=1,5,2", "--input", "float32:3=4,0,9")
	require.NoError(t, err)
	require.Contains(t, out, "(Int32)[3]: [1 0 1]")

	out, err = runCmd(t, "run", "reduce_sum", "--input", "int64:2,3=1,5,2,4,0,9", "--iarg", "0")
	require.NoError(t, err)
	require.Contains(t, out, "[5 5 11]")

	out, err = runCmd(t, "bench", "--goroutines", "3", "--shapes", "4", "--calls", "20", "--batch", "7", "--no_progress")
	require.NoError(t, err)
	require.Contains(t, out, "Benchmark")
	require.Contains(t, out, "4 entries")

	out, err = runCmd(t, "--config", "workers=2", "bench", "--goroutines", "2", "--shapes", "3", "--calls", "10", "--no_progress")
	require.NoError(t, err)
	require.Contains(t, out, "3 entries")
	_, err = runCmd(t, "bench", "--batch", "0", "--no_progress")
	require.Error(t, err)
}
