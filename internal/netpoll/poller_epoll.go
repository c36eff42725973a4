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

//go:build linux

package netpoll

import (
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Poller monitors file descriptors for I/O readiness on top of epoll.
//
// Registration methods and the wakeup methods are safe for concurrent use,
// Wait must only ever be called from one goroutine at a time.
type Poller struct {
	fd   int    // epoll fd
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
	if poller.fd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		poller = nil
		err = os.NewSyscallError("epoll_create1", err)
		return
	}
	if poller.rfd, poller.wfd, err = makeWakeupPipe(); err != nil {
		_ = unix.Close(poller.fd)
		poller = nil
		return
	}
	if err = unix.EpollCtl(poller.fd, unix.EPOLL_CTL_ADD, poller.rfd,
		&unix.EpollEvent{Fd: int32(poller.rfd), Events: EventIn}); err != nil {
		_ = poller.Close()
		poller = nil
		err = os.NewSyscallError("epoll_ctl add", err)
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

// Add registers fd with the poller with an empty interest set. The descriptor
// stays muted until SetInterest grants it some event bits.
func (p *Poller) Add(fd int) error {
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd,
		&unix.EpollEvent{Fd: int32(fd)}); err != nil {
		return os.NewSyscallError("epoll_ctl add", err)
	}
	p.tableLock.Lock()
	p.table[fd] = 0
	p.tableLock.Unlock()
	return nil
}

// Remove deletes fd from the poller. Descriptors the kernel has already
// forgotten, typically because they were closed elsewhere, count as removed.
func (p *Poller) Remove(fd int) error {
	p.tableLock.Lock()
	delete(p.table, fd)
	p.tableLock.Unlock()
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil && err != unix.ENOENT && err != unix.EBADF {
		return os.NewSyscallError("epoll_ctl del", err)
	}
	return nil
}

// SetInterest replaces the interest set of a registered fd.
func (p *Poller) SetInterest(fd int, events IOEvent) error {
	if err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd,
		&unix.EpollEvent{Fd: int32(fd), Events: events}); err != nil {
		return os.NewSyscallError("epoll_ctl mod", err)
	}
	p.tableLock.Lock()
	p.table[fd] = events
	p.tableLock.Unlock()
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
// pipe is written to, or the timeout elapses. msec follows epoll_wait
// semantics: negative blocks indefinitely, zero polls without blocking.
// The returned slice is only valid until the next Wait call.
func (p *Poller) Wait(msec int) (events []Event, wakenUp bool, err error) {
	var deadline time.Time
	if msec > 0 {
		deadline = time.Now().Add(time.Duration(msec) * time.Millisecond)
	}
	var n int
	for {
		n, err = unix.EpollWait(p.fd, p.el.events, msec)
		if err == unix.EINTR {
			if msec > 0 {
				if msec = int(time.Until(deadline).Milliseconds()); msec <= 0 {
					return nil, false, nil
				}
			}
			runtime.Gosched()
			continue
		}
		if err != nil {
			return nil, false, os.NewSyscallError("epoll_wait", err)
		}
		break
	}

	p.out = p.out[:0]
	for i := 0; i < n; i++ {
		ev := &p.el.events[i]
		if fd := int(ev.Fd); fd == p.rfd {
			wakenUp = true
		} else {
			p.out = append(p.out, Event{FD: fd, Events: ev.Events & eventsAll})
		}
	}

	if n == p.el.size {
		p.el.expand()
	} else if n < p.el.size>>1 {
		p.el.shrink()
	}

	return p.out, wakenUp, nil
}
