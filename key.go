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

package muxio

import (
	"sync/atomic"

	"github.com/gnet-io/muxio/pkg/errors"
)

// SelectionKey ties one channel to one selector for the lifetime of a
// registration. Keys are handed out by Register and are never reused, once
// a key is cancelled it stays dead.
type SelectionKey struct {
	ch  Channel
	sel *Selector

	valid    int32  // dropped to 0 exactly once, by Cancel or by the selector
	interest uint32 // Ops bits, the cached copy of what was pushed natively
	ready    uint32 // Ops bits, written by the select cycle

	// index pins the descriptor the registration was made with, the channel
	// may be closed (and FD go stale) long before the key leaves the poller
	// table. Guarded by the selector's registration lock, -1 once the
	// registration is unwound.
	index int

	attachment any // set at registration time, immutable afterwards
}

func newKey(sel *Selector, ch Channel, att any) *SelectionKey {
	return &SelectionKey{
		ch:         ch,
		sel:        sel,
		valid:      1,
		index:      ch.FD(),
		attachment: att,
	}
}

// Channel returns the channel this key stands for, whether or not the key
// is still valid.
func (k *SelectionKey) Channel() Channel {
	return k.ch
}

// Selector returns the selector this key is registered with, whether or not
// the key is still valid.
func (k *SelectionKey) Selector() *Selector {
	return k.sel
}

// IsValid reports whether the key still represents a live registration.
func (k *SelectionKey) IsValid() bool {
	return atomic.LoadInt32(&k.valid) == 1
}

// InterestOps returns the operations the selector currently watches this
// key's channel for.
func (k *SelectionKey) InterestOps() (Ops, error) {
	if !k.IsValid() {
		return 0, errors.ErrKeyCancelled
	}
	return Ops(atomic.LoadUint32(&k.interest)), nil
}

// SetInterestOps replaces the interest set. The native table is updated
// first, if that fails the stored interest keeps its previous value.
func (k *SelectionKey) SetInterestOps(ops Ops) error {
	return k.sel.setInterestOps(k, ops)
}

// ReadyOps returns the operations the select cycles have found ready so
// far, always a subset of the channel's ValidOps.
func (k *SelectionKey) ReadyOps() (Ops, error) {
	if !k.IsValid() {
		return 0, errors.ErrKeyCancelled
	}
	return Ops(atomic.LoadUint32(&k.ready)), nil
}

// Attachment returns the object attached at registration time.
func (k *SelectionKey) Attachment() (any, error) {
	if !k.IsValid() {
		return nil, errors.ErrKeyCancelled
	}
	return k.attachment, nil
}

// Cancel invalidates the key and parks it in its selector's cancelled
// queue. The registration itself is unwound by the next select cycle or by
// Selector.Close, never synchronously. Repeated calls are no-ops, Cancel
// never blocks on selector locks.
func (k *SelectionKey) Cancel() {
	if !atomic.CompareAndSwapInt32(&k.valid, 1, 0) {
		return
	}
	k.sel.enqueueCancelled(k)
}

// invalidate kills the key without queueing it, for the selector teardown
// paths that unwind registrations directly. Reports whether this call was
// the one that flipped validity.
func (k *SelectionKey) invalidate() bool {
	return atomic.CompareAndSwapInt32(&k.valid, 1, 0)
}
