// Copyright (c) 2025 The Muxio Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cleaner

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanerRunsOnce(t *testing.T) {
	var runs int32
	c := Create(nil, func() { atomic.AddInt32(&runs, 1) })
	c.Clean()
	c.Clean()
	c.Clean()
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestCleanerConcurrentClean(t *testing.T) {
	var runs int32
	c := Create(nil, func() { atomic.AddInt32(&runs, 1) })
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Clean()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestCleanerCollectorBackstop(t *testing.T) {
	var runs int32
	func() {
		owner := new(int64)
		Create(owner, func() { atomic.AddInt32(&runs, 1) })
	}()
	require.Eventually(t, func() bool {
		runtime.GC()
		return atomic.LoadInt32(&runs) == 1
	}, 2*time.Second, 20*time.Millisecond, "the backstop never ran the thunk")
}

func TestCleanerExplicitCleanDisarmsBackstop(t *testing.T) {
	var runs int32
	func() {
		owner := new(int64)
		c := Create(owner, func() { atomic.AddInt32(&runs, 1) })
		c.Clean()
	}()
	runtime.GC()
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
}

func TestCleanerContainsPanickingThunk(t *testing.T) {
	c := Create(nil, func() { panic("broken thunk") })
	assert.NotPanics(t, func() { c.Clean() })
}

func TestCleanerNilThunk(t *testing.T) {
	c := Create(nil, nil)
	assert.NotPanics(t, func() { c.Clean() })
}
