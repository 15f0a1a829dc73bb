// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package engine

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/gomlx/declops/pkg/core/ops"
	"github.com/gomlx/declops/pkg/core/shapecache"
	"github.com/gomlx/declops/pkg/core/typeconstraints"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// DECLOPS_ENGINE is the environment variable with the default engine configuration, used by NewFromEnv.
//
// See ParseConfig for the format of the configuration.
const DECLOPS_ENGINE = "DECLOPS_ENGINE"

// DefaultConfig is the configuration used by NewFromEnv if DECLOPS_ENGINE is not set.
var DefaultConfig string

// Config of an Engine.
type Config struct {
	// Policy of the shape cache.
	Policy shapecache.Policy

	// IndexDType is the default dtype of index outputs. It must be Int32 or Int64.
	IndexDType dtypes.DType

	// Workers is the number of calls of a batch run in parallel: 0 runs them sequentially and -1
	// doesn't limit parallelism.
	Workers int
}

// String implements fmt.Stringer, in the format accepted by ParseConfig.
func (c Config) String() string {
	policy := "retain_shape_info"
	if c.Policy == shapecache.DeleteShapeInfo {
		policy = "delete_shape_info"
	}
	return fmt.Sprintf("%s,index=%s,workers=%d", policy, c.IndexDType, c.Workers)
}

// ParseConfig parses a comma-separated list of options:
//
//   - "retain_shape_info" (default): the shape cache keeps decoded shapes of unreferenced handles.
//   - "delete_shape_info": the shape cache drops decoded shapes of unreferenced handles.
//   - "index=<dtype>": default dtype of index outputs, "Int32" (default) or "Int64". Lower-case
//     names and aliases like "S64" are accepted.
//   - "workers=<n>": parallelism of ExecuteBatch, by default runtime.NumCPU(). 0 disables
//     parallelism and -1 makes it unlimited.
//
// Empty options are ignored, and unknown options are an error.
func ParseConfig(config string) (Config, error) {
	c := Config{
		Policy:     shapecache.RetainShapeInfo,
		IndexDType: ops.DefaultIndexDType,
		Workers:    runtime.NumCPU(),
	}
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		switch {
		case key == "retain_shape_info" && !hasValue:
			c.Policy = shapecache.RetainShapeInfo
		case key == "delete_shape_info" && !hasValue:
			c.Policy = shapecache.DeleteShapeInfo
		case key == "index" && hasValue:
			dtype, err := ParseDType(value)
			if err != nil {
				return c, errors.WithMessagef(err, "engine configuration %q", config)
			}
			if !typeconstraints.AllIndices.Set.Has(dtype) {
				return c, errors.Errorf("engine configuration %q: index dtype must be one of %s, got %s",
					config, typeconstraints.AllIndices.Set.DTypes(), dtype)
			}
			c.IndexDType = dtype
		case key == "workers" && hasValue:
			workers, err := strconv.Atoi(value)
			if err != nil || workers < -1 {
				return c, errors.Errorf("engine configuration %q: invalid number of workers %q", config, value)
			}
			c.Workers = workers
		default:
			return c, errors.Errorf("unknown configuration option %q for engine", part)
		}
	}
	return c, nil
}

// ParseDType parses a dtype name, as in dtypes.MapOfNames. Names are case-insensitive.
func ParseDType(name string) (dtypes.DType, error) {
	if dtype, found := dtypes.MapOfNames[name]; found && dtype != dtypes.InvalidDType {
		return dtype, nil
	}
	for key, dtype := range dtypes.MapOfNames {
		if strings.EqualFold(key, name) && dtype != dtypes.InvalidDType {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
}
