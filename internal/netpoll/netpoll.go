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

//go:build linux || freebsd || dragonfly || darwin

// Package netpoll wraps the OS readiness facility (epoll on Linux, kqueue on
// *BSD/macOS) behind one Poller type that the selector core drives.
//
// Readiness is reported in poll(2) bits regardless of the backend, so the
// layers above never see epoll or kqueue specifics. A Poller also carries a
// built-in wakeup channel, a non-blocking pipe whose read end is watched
// alongside the registered descriptors, which lets another goroutine force a
// pending Wait to return early.
package netpoll

import "golang.org/x/sys/unix"

// IOEvent is the integer type of the portable I/O event bits.
type IOEvent = uint32

const (
	// EventIn indicates there is data to read.
	EventIn IOEvent = unix.POLLIN
	// EventPri indicates there is urgent data to read.
	EventPri IOEvent = unix.POLLPRI
	// EventOut indicates writing is now possible.
	EventOut IOEvent = unix.POLLOUT
	// EventErr indicates an error condition on the descriptor.
	EventErr IOEvent = unix.POLLERR
	// EventHup indicates the peer hung up.
	EventHup IOEvent = unix.POLLHUP

	// eventsAll masks the bits a Poller is allowed to report upwards.
	eventsAll = EventIn | EventPri | EventOut | EventErr | EventHup
)

// Event is one readiness report for a registered file descriptor.
type Event struct {
	FD     int
	Events IOEvent
}
