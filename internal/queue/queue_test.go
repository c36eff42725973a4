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

package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewLockFreeQueue()
	require.True(t, q.IsEmpty(), "fresh queue must be empty")
	assert.Nil(t, q.Dequeue(), "dequeue on empty queue must return nil")

	for i := 0; i < 100; i++ {
		q.Enqueue(i)
	}
	assert.EqualValues(t, 100, q.Length())
	for i := 0; i < 100; i++ {
		v := q.Dequeue()
		require.NotNil(t, v)
		assert.Equal(t, i, v.(int), "values must come out in enqueue order")
	}
	assert.True(t, q.IsEmpty())
}

func TestQueueConcurrent(t *testing.T) {
	const valNum = 10000
	q := NewLockFreeQueue()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		for i := 0; i < valNum; i++ {
			q.Enqueue(i)
		}
		wg.Done()
	}()
	go func() {
		for i := 0; i < valNum; i++ {
			q.Enqueue(i)
		}
		wg.Done()
	}()

	var counter int32
	for g := 0; g < 2; g++ {
		go func() {
			for {
				v := q.Dequeue()
				if v != nil {
					atomic.AddInt32(&counter, 1)
				}
				if v == nil && atomic.LoadInt32(&counter) == 2*valNum {
					break
				}
			}
			wg.Done()
		}()
	}
	wg.Wait()

	assert.True(t, q.IsEmpty())
	assert.EqualValues(t, 0, q.Length())
	t.Logf("sent and received all %d values", 2*valNum)
}
