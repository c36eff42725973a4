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
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/gnet-io/muxio/internal/netpoll"
	"github.com/gnet-io/muxio/internal/queue"
	"github.com/gnet-io/muxio/pkg/cleaner"
	"github.com/gnet-io/muxio/pkg/errors"
	"github.com/gnet-io/muxio/pkg/logging"
)

// Selector multiplexes I/O readiness over a set of registered channels. One
// goroutine runs the select cycle while any number of others register
// channels, adjust interest, cancel keys, consume the selected-key set and
// deliver wakeups.
//
// Lock order is mu, then regMu, then the selected set's lock. mu serializes
// whole select cycles (and Close) so at most one selection is in flight,
// regMu guards the key set, the descriptor index and every poller-table
// mutation, and it is deliberately not held across the kernel wait, so
// registration-side calls only ever block for short critical sections.
type Selector struct {
	mu    sync.Mutex // serializes select cycles and teardown
	regMu sync.Mutex // guards registered, fdToKey and poller-table changes

	closed int32

	poller *netpoll.Poller

	registered map[*SelectionKey]struct{}
	fdToKey    map[int]*SelectionKey

	selected *SelectedKeySet

	cancelled queue.Queue // *SelectionKey handoff from Cancel to the cycle

	backstop *cleaner.Cleaner

	logger   logging.Logger
	logFlush func() error
}

// Open creates a selector with an empty key set.
func Open(opts ...Option) (*Selector, error) {
	options := loadOptions(opts...)

	logger, logFlush := options.Logger, (func() error)(nil)
	if logger == nil {
		if options.LogPath != "" {
			var err error
			if logger, logFlush, err = logging.CreateLoggerAsLocalFile(options.LogPath, options.LogLevel); err != nil {
				return nil, err
			}
		} else {
			logger = logging.GetDefaultLogger()
		}
	}

	p, err := netpoll.OpenPoller()
	if err != nil {
		return nil, err
	}

	s := &Selector{
		poller:     p,
		registered: make(map[*SelectionKey]struct{}),
		fdToKey:    make(map[int]*SelectionKey),
		selected:   &SelectedKeySet{set: make(map[*SelectionKey]struct{})},
		cancelled:  queue.NewLockFreeQueue(),
		logger:     logger,
		logFlush:   logFlush,
	}

	// Close is the proper release path for the native descriptors, the
	// collector backstop only catches selectors nobody closed. The thunk
	// must not capture s, that would keep the selector reachable forever.
	var owner any
	if !options.DisableCleaner {
		owner = s
	}
	s.backstop = cleaner.Create(owner, func() {
		if cerr := p.Close(); cerr != nil {
			logger.Errorf("failed to release the poller descriptors: %v", cerr)
		}
	})

	s.logger.Debugf("selector opened")
	return s, nil
}

// Register adds ch to the selector's key set, watching it for ops, and
// returns the key that now ties the two together. att rides along on the
// key and can be recovered with Attachment. Registration is rejected before
// anything is mutated if ch is nil or closed, if ops strays outside
// ch.ValidOps, if the descriptor is already registered here, or if the
// selector is closed.
func (s *Selector) Register(ch Channel, ops Ops, att any) (*SelectionKey, error) {
	if ch == nil {
		return nil, errors.ErrNilChannel
	}
	if !ch.IsOpen() {
		return nil, errors.ErrChannelClosed
	}
	if ops&^ch.ValidOps() != 0 {
		return nil, errors.ErrIllegalOps
	}

	k := newKey(s, ch, att)

	s.regMu.Lock()
	defer s.regMu.Unlock()
	if s.isClosed() {
		return nil, errors.ErrSelectorClosed
	}
	fd := k.index
	if _, dup := s.fdToKey[fd]; dup {
		return nil, errors.ErrFDAlreadyRegistered
	}
	if err := s.poller.Add(fd); err != nil {
		return nil, err
	}
	s.fdToKey[fd] = k
	s.registered[k] = struct{}{}
	if ops != 0 {
		// The descriptor sits muted in the poller table until the interest
		// push, a half-made registration never produces readiness.
		if err := s.poller.SetInterest(fd, ch.TranslateInterest(ops)); err != nil {
			delete(s.fdToKey, fd)
			delete(s.registered, k)
			_ = s.poller.Remove(fd)
			k.invalidate()
			return nil, err
		}
		atomic.StoreUint32(&k.interest, uint32(ops))
	}
	return k, nil
}

// setInterestOps backs SelectionKey.SetInterestOps. The native push comes
// first, the cached interest only moves once the kernel accepted the new
// set.
func (s *Selector) setInterestOps(k *SelectionKey, ops Ops) error {
	if ops&^k.ch.ValidOps() != 0 {
		return errors.ErrIllegalOps
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()
	if s.isClosed() {
		return errors.ErrSelectorClosed
	}
	if !k.IsValid() || k.index < 0 {
		return errors.ErrKeyCancelled
	}
	if err := s.poller.SetInterest(k.index, k.ch.TranslateInterest(ops)); err != nil {
		return err
	}
	atomic.StoreUint32(&k.interest, uint32(ops))
	return nil
}

// enqueueCancelled parks an invalidated key for the next cycle. It takes
// none of the selector locks, Cancel must stay safe to call from anywhere,
// including while a select is parked in the kernel.
func (s *Selector) enqueueCancelled(k *SelectionKey) {
	s.cancelled.Enqueue(k)
}

// Select blocks until at least one channel is selected, the selector is
// woken up, or the select cycle has cancelled keys to unwind. It returns
// the number of keys whose ready state changed this cycle, zero for a pure
// wakeup.
func (s *Selector) Select() (int, error) {
	return s.doSelect(-1)
}

// SelectTimeout is Select with an advisory upper bound on the blocking
// time. A negative timeout is an argument error and a zero timeout blocks
// indefinitely exactly like Select. Positive bounds below one millisecond
// round up to one.
func (s *Selector) SelectTimeout(timeout time.Duration) (int, error) {
	if timeout < 0 {
		return 0, errors.ErrNegativeTimeout
	}
	if timeout == 0 {
		return s.doSelect(-1)
	}
	return s.doSelect(int((timeout + time.Millisecond - 1) / time.Millisecond))
}

// SelectNow runs one non-blocking selection pass.
func (s *Selector) SelectNow() (int, error) {
	return s.doSelect(0)
}

// doSelect runs one full cycle: unwind cancellations, wait on the poller,
// unwind the cancellations that arrived during the wait, merge the poll
// round into the selected-key set, and finally consume the wakeup if one
// fired.
func (s *Selector) doSelect(msec int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed() {
		return 0, errors.ErrSelectorClosed
	}

	if err := s.drainCancelledKeys(); err != nil {
		s.logger.Warnf("cancelled-key drain failed before the poll phase: %v", err)
		return 0, err
	}

	events, wakenUp, err := s.poller.Wait(msec)
	if err != nil {
		return 0, err
	}

	// A failed post-wait drain skips the merge, the kernel reports level
	// readiness again next cycle, so nothing is lost by not merging now.
	drainErr := s.drainCancelledKeys()
	updated := 0
	if drainErr == nil {
		updated = s.updateSelectedKeys(events)
	}

	if wakenUp {
		if cerr := s.poller.ClearWakeup(); cerr != nil {
			s.logger.Warnf("failed to clear the wakeup signal: %v", cerr)
		}
	}

	if drainErr != nil {
		s.logger.Warnf("cancelled-key drain failed after the poll phase: %v", drainErr)
		return 0, drainErr
	}
	return updated, nil
}

// drainCancelledKeys unwinds every registration parked in the cancelled
// queue. The whole batch drains even when removals fail, the failures come
// back aggregated once the queue is empty.
func (s *Selector) drainCancelledKeys() (err error) {
	if s.cancelled.IsEmpty() {
		return nil
	}
	s.regMu.Lock()
	s.selected.mu.Lock()
	for {
		v := s.cancelled.Dequeue()
		if v == nil {
			break
		}
		err = multierr.Append(err, s.deregister(v.(*SelectionKey)))
	}
	s.selected.mu.Unlock()
	s.regMu.Unlock()
	return
}

// deregister unwinds one registration: both key sets, the descriptor index,
// the native table, and finally the orphan signal if the channel is already
// closed. Callers hold regMu and the selected set's lock.
func (s *Selector) deregister(k *SelectionKey) error {
	delete(s.registered, k)
	delete(s.selected.set, k)
	fd := k.index
	if fd < 0 {
		return nil
	}
	k.index = -1
	delete(s.fdToKey, fd)
	err := s.poller.Remove(fd)
	if !k.ch.IsOpen() {
		k.ch.Orphaned()
	}
	return err
}

// updateSelectedKeys merges one poll round into the selected-key set and
// returns the number of keys whose ready set changed. Keys already selected
// accumulate new ready bits, freshly ready keys join the set only when
// their readiness overlaps their interest.
func (s *Selector) updateSelectedKeys(events []netpoll.Event) int {
	if len(events) == 0 {
		return 0
	}
	updated := 0
	s.regMu.Lock()
	s.selected.mu.Lock()
	for i := range events {
		ev := &events[i]
		k := s.fdToKey[ev.FD]
		if k == nil || !k.IsValid() {
			// Cancelled after the poll round, it must never resurface.
			continue
		}
		// Translation always runs, the channel folds kernel state into its
		// own no matter what the merge decides below.
		ready := k.ch.TranslateReady(ev.Events) & k.ch.ValidOps()
		if _, already := s.selected.set[k]; already {
			old := Ops(atomic.LoadUint32(&k.ready))
			if merged := old | ready; merged != old {
				atomic.StoreUint32(&k.ready, uint32(merged))
				updated++
			}
		} else {
			atomic.StoreUint32(&k.ready, uint32(ready))
			if ready&Ops(atomic.LoadUint32(&k.interest)) != 0 {
				s.selected.add(k)
				updated++
			}
		}
	}
	s.selected.mu.Unlock()
	s.regMu.Unlock()
	return updated
}

// Wakeup makes the selection in flight return immediately, or the next one
// if none is in flight. Repeated wakeups coalesce until a cycle consumes
// them. Safe from any goroutine at any time, after Close it is a no-op.
func (s *Selector) Wakeup() error {
	if err := s.poller.Wakeup(); err != nil {
		s.logger.Errorf("failed to deliver the wakeup signal: %v", err)
		return err
	}
	return nil
}

// Close tears the selector down. Every remaining key is invalidated, closed
// channels get their orphan signal, the native descriptors are released and
// all later calls fail with ErrSelectorClosed. Close is idempotent.
func (s *Selector) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	// Kick a parked select out of the kernel, it cannot start a new cycle,
	// the closed flag is already up.
	if err := s.poller.Wakeup(); err != nil {
		s.logger.Errorf("failed to wake the selector for teardown: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.regMu.Lock()
	s.selected.mu.Lock()

	dropped := len(s.registered)
	for k := range s.registered {
		k.invalidate()
		k.index = -1
		if !k.ch.IsOpen() {
			k.ch.Orphaned()
		}
	}
	s.registered = make(map[*SelectionKey]struct{})
	s.fdToKey = make(map[int]*SelectionKey)
	s.selected.set = make(map[*SelectionKey]struct{})
	for s.cancelled.Dequeue() != nil {
	}

	s.selected.mu.Unlock()
	s.regMu.Unlock()

	// The backstop thunk is the single owner of the native release, running
	// it here disarms the collector path at the same time.
	s.backstop.Clean()

	s.logger.Debugf("selector closed, %d registrations dropped", dropped)
	if s.logFlush != nil {
		_ = s.logFlush()
	}
	return nil
}

// Keys returns a point-in-time snapshot of the registered keys. Like every
// other operation it fails with ErrSelectorClosed once the selector is
// closed.
func (s *Selector) Keys() ([]*SelectionKey, error) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	if s.isClosed() {
		return nil, errors.ErrSelectorClosed
	}
	keys := make([]*SelectionKey, 0, len(s.registered))
	for k := range s.registered {
		keys = append(keys, k)
	}
	return keys, nil
}

// SelectedKeys returns the live selected-key set, shared with the select
// cycles for the selector's whole lifetime. It fails with ErrSelectorClosed
// once the selector is closed.
func (s *Selector) SelectedKeys() (*SelectedKeySet, error) {
	if s.isClosed() {
		return nil, errors.ErrSelectorClosed
	}
	return s.selected, nil
}

func (s *Selector) isClosed() bool {
	return atomic.LoadInt32(&s.closed) == 1
}
