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

//go:build freebsd || dragonfly || darwin

package netpoll

import (
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Poller monitors file descriptors for I/O readiness on top of kqueue.
//
// Registration methods and the wakeup methods are safe for concurrent use,
// Wait must only ever be called from one goroutine at a time.
type Poller struct {
	fd   int    // kqueue fd
	rfd  int    // wakeup pipe, read end
	wfd  int    // wakeup pipe, write end
	wbuf []byte // scratch buffer to drain the wakeup pipe

	wakeupLock  sync.Mutex
	wakeupArmed bool // a wakeup byte is in flight and not yet consumed

	tableLock sync.RWMutex
	table     map[int]IOEvent // shadow of the kernel interest table

	el  *eventList // reused between Wait calls
	out []Event    // reused readiness buffer handed to the caller
}

// OpenPoller instantiates a poller.
func OpenPoller() (poller *Poller, err error) {
	poller = new(Poller)
	if poller.fd, err = unix.Kqueue(); err != nil {
		poller = nil
		err = os.NewSyscallError("kqueue", err)
		return
	}
	if poller.rfd, poller.wfd, err = makeWakeupPipe(); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		return
	}
	if _, err = unix.Kevent(poller.fd, []unix.Kevent_t{{
		Ident:  uint64(poller.rfd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}}, nil, nil); err != nil {
		_ = poller.Close()
		poller = nil
		err = os.NewSyscallError("kevent add", err)
		return
	}
	poller.wbuf = make([]byte, 64)
	poller.table = make(map[int]IOEvent)
	poller.el = newEventList(InitPollEventsCap)
	return
}

// Close releases the poller's descriptors. Wakeup calls issued after Close
// are silently discarded.
func (p *Poller) Close() error {
	p.wakeupLock.Lock()
	p.wakeupArmed = true // latch, so late wakeups never touch dead descriptors
	p.wakeupLock.Unlock()
	err := os.NewSyscallError("close", unix.Close(p.fd))
	if e := os.NewSyscallError("close", unix.Close(p.rfd)); err == nil {
		err = e
	}
	if e := os.NewSyscallError("close", unix.Close(p.wfd)); err == nil {
		err = e
	}
	return err
}

// Add registers fd with the poller with an empty interest set. kqueue has no
// notion of a muted registration, so the kernel is not involved until
// SetInterest grants the descriptor some event bits.
func (p *Poller) Add(fd int) error {
	p.tableLock.Lock()
	defer p.tableLock.Unlock()
	if _, dup := p.table[fd]; dup {
		return os.NewSyscallError("kevent add", unix.EEXIST)
	}
	p.table[fd] = 0
	return nil
}

// Remove deletes fd from the poller. Descriptors the kernel has already
// forgotten, typically because they were closed elsewhere, count as removed.
func (p *Poller) Remove(fd int) error {
	p.tableLock.Lock()
	old, ok := p.table[fd]
	delete(p.table, fd)
	p.tableLock.Unlock()
	if !ok {
		return nil
	}
	return p.applyFilters(fd, old, 0)
}

// SetInterest replaces the interest set of a registered fd.
func (p *Poller) SetInterest(fd int, events IOEvent) error {
	p.tableLock.RLock()
	old, ok := p.table[fd]
	p.tableLock.RUnlock()
	if !ok {
		return os.NewSyscallError("kevent", unix.ENOENT)
	}
	if err := p.applyFilters(fd, old, events); err != nil {
		return err
	}
	p.tableLock.Lock()
	p.table[fd] = events
	p.tableLock.Unlock()
	return nil
}

// applyFilters reconciles the kernel filters of fd from the old interest
// bits to the next ones. Deleting a filter the kernel no longer tracks is
// not an error.
func (p *Poller) applyFilters(fd int, old, next IOEvent) error {
	changes := make([]unix.Kevent_t, 0, 2)
	if wantRead, hadRead := next&(EventIn|EventPri) != 0, old&(EventIn|EventPri) != 0; wantRead != hadRead {
		flags := uint16(unix.EV_ADD)
		if !wantRead {
			flags = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if wantWrite, hadWrite := next&EventOut != 0, old&EventOut != 0; wantWrite != hadWrite {
		flags := uint16(unix.EV_ADD)
		if !wantWrite {
			flags = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	for i := range changes {
		_, err := unix.Kevent(p.fd, changes[i:i+1], nil, nil)
		if err != nil && !(changes[i].Flags == unix.EV_DELETE && (err == unix.ENOENT || err == unix.EBADF)) {
			return os.NewSyscallError("kevent", err)
		}
	}
	return nil
}

// Interest reports the interest set last pushed for fd.
func (p *Poller) Interest(fd int) (IOEvent, bool) {
	p.tableLock.RLock()
	events, ok := p.table[fd]
	p.tableLock.RUnlock()
	return events, ok
}

// Len reports the number of registered descriptors, the wakeup pipe excluded.
func (p *Poller) Len() int {
	p.tableLock.RLock()
	n := len(p.table)
	p.tableLock.RUnlock()
	return n
}

// Wait blocks until at least one registered descriptor is ready, the wakeup
// pipe is written to, or the timeout elapses. msec mirrors the epoll backend:
// negative blocks indefinitely, zero polls without blocking. The returned
// slice is only valid until the next Wait call.
func (p *Poller) Wait(msec int) (events []Event, wakenUp bool, err error) {
	var (
		ts       unix.Timespec
		tsp      *unix.Timespec
		deadline time.Time
	)
	if msec >= 0 {
		ts = unix.NsecToTimespec(int64(msec) * int64(time.Millisecond))
		tsp = &ts
	}
	if msec > 0 {
		deadline = time.Now().Add(time.Duration(msec) * time.Millisecond)
	}
	var n int
	for {
		n, err = unix.Kevent(p.fd, nil, p.el.events, tsp)
		if err == unix.EINTR {
			if msec > 0 {
				remaining := time.Until(deadline)
				if remaining <= 0 {
					return nil, false, nil
				}
				ts = unix.NsecToTimespec(int64(remaining))
			}
			runtime.Gosched()
			continue
		}
		if err != nil {
			return nil, false, os.NewSyscallError("kevent wait", err)
		}
		break
	}

	p.out = p.out[:0]
	for i := 0; i < n; i++ {
		ev := &p.el.events[i]
		fd := int(ev.Ident)
		if fd == p.rfd && ev.Filter == unix.EVFILT_READ {
			wakenUp = true
			continue
		}
		bits := filterToEvents(ev)
		// The read and write filters of one descriptor fire as separate
		// kevents, merge them into a single poll-style report.
		merged := false
		for j := range p.out {
			if p.out[j].FD == fd {
				p.out[j].Events |= bits
				merged = true
				break
			}
		}
		if !merged {
			p.out = append(p.out, Event{FD: fd, Events: bits})
		}
	}

	if n == p.el.size {
		p.el.expand()
	} else if n < p.el.size>>1 {
		p.el.shrink()
	}

	return p.out, wakenUp, nil
}

func filterToEvents(ev *unix.Kevent_t) (bits IOEvent) {
	switch ev.Filter {
	case unix.EVFILT_READ:
		bits = EventIn
	case unix.EVFILT_WRITE:
		bits = EventOut
	}
	if ev.Flags&unix.EV_EOF != 0 {
		bits |= EventHup
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		bits |= EventErr
	}
	return
}
