// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"os"
	"strconv"
	"sync"

	"github.com/gomlx/gradix/internal/workerspool"
	"k8s.io/klog/v2"
)

// ParallelismEnvVar overrides the kernels' parallelism when set to an
// integer: 0 disables parallelism, negative values remove the cap.
const ParallelismEnvVar = "GRADIX_PARALLELISM"

var (
	poolOnce sync.Once
	pool     *workerspool.Pool
)

// kernelsPool returns the worker pool shared by the kernels, created on
// first use with runtime.NumCPU() workers or the ParallelismEnvVar override.
func kernelsPool() *workerspool.Pool {
	poolOnce.Do(func() {
		pool = workerspool.New()
		if value := os.Getenv(ParallelismEnvVar); value != "" {
			n, err := strconv.Atoi(value)
			if err != nil {
				klog.Warningf("tensors: ignoring invalid %s=%q: %v", ParallelismEnvVar, value, err)
				return
			}
			pool.SetMaxParallelism(n)
		}
	})
	return pool
}

// SetMaxParallelism caps the number of goroutines the kernels use. 0
// disables parallelism, negative values remove the cap. Call it before
// computing, changing it mid-kernel is undefined.
func SetMaxParallelism(n int) {
	kernelsPool().SetMaxParallelism(n)
}

// MaxParallelism returns the kernels' current parallelism cap.
func MaxParallelism() int {
	return kernelsPool().MaxParallelism()
}
