// Copyright 2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolCapsParallelism(t *testing.T) {
	const limit = 3
	pool := New()
	pool.SetMaxParallelism(limit)
	assert.True(t, pool.IsEnabled())
	assert.Equal(t, limit, pool.MaxParallelism())

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for ii := 0; ii < 50; ii++ {
		wg.Add(1)
		pool.WaitToStart(func() {
			defer wg.Done()
			now := running.Add(1)
			for {
				prev := peak.Load()
				if now <= prev || peak.CompareAndSwap(prev, now) {
					break
				}
			}
			running.Add(-1)
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestPoolDisabledRunsInline(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(0)
	assert.False(t, pool.IsEnabled())

	var count int
	pool.WaitToStart(func() { count++ })
	pool.WaitToStart(func() { count++ })
	assert.Equal(t, 2, count)
}

func TestPoolUnlimited(t *testing.T) {
	pool := New()
	pool.SetMaxParallelism(-1)

	var count atomic.Int32
	var wg sync.WaitGroup
	for ii := 0; ii < 20; ii++ {
		wg.Add(1)
		pool.WaitToStart(func() {
			defer wg.Done()
			count.Add(1)
		})
	}
	wg.Wait()
	assert.Equal(t, int32(20), count.Load())
}
