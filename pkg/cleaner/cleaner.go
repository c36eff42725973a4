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

// Package cleaner ties a cleanup thunk to the lifetime of an owner object.
//
// The thunk runs at most once, no matter how often Clean is called and
// whether the garbage collector got there first. Explicit Clean calls run
// the thunk synchronously. The collector backstop hands it to a shared
// worker pool instead, the runtime serves every finalizer in the process
// from a single goroutine and a slow thunk must not stall it.
package cleaner

import (
	"runtime"
	"sync/atomic"

	"github.com/gnet-io/muxio/pkg/logging"
	"github.com/gnet-io/muxio/pkg/pool/goroutine"
)

var workers = goroutine.Default()

// Cleaner runs a cleanup thunk at most once.
type Cleaner struct {
	cleaned int32
	thunk   func()
}

// Create registers thunk to run when owner becomes unreachable. owner must
// be a pointer, a nil owner skips the collector backstop and leaves only the
// explicit Clean path. The thunk must not capture owner, a thunk that does
// keeps its owner reachable forever.
func Create(owner any, thunk func()) *Cleaner {
	c := &Cleaner{thunk: thunk}
	if owner != nil {
		runtime.SetFinalizer(owner, func(any) { c.clean(true) })
	}
	return c
}

// Clean runs the thunk now, unless another caller or the collector backstop
// already did.
func (c *Cleaner) Clean() {
	c.clean(false)
}

func (c *Cleaner) clean(deferred bool) {
	if !atomic.CompareAndSwapInt32(&c.cleaned, 0, 1) || c.thunk == nil {
		return
	}
	if !deferred {
		c.run()
		return
	}
	if workers.Submit(c.run) != nil {
		c.run()
	}
}

// run shields callers from a panicking thunk, a cleanup failure is logged
// and swallowed.
func (c *Cleaner) run() {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("cleaner thunk panicked: %v", r)
		}
	}()
	c.thunk()
}
