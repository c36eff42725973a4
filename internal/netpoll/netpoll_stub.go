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

//go:build !linux && !freebsd && !dragonfly && !darwin

// Package netpoll only supports the epoll and kqueue platforms. On every
// other OS it compiles to this stub so that the packages above it still
// build, with OpenPoller reporting the platform as unsupported.
package netpoll

import "github.com/gnet-io/muxio/pkg/errors"

// IOEvent is the integer type of the portable I/O event bits.
type IOEvent = uint32

// The portable poll(2) bit values, kept in sync with the unix backends.
const (
	EventIn  IOEvent = 0x1
	EventPri IOEvent = 0x2
	EventOut IOEvent = 0x4
	EventErr IOEvent = 0x8
	EventHup IOEvent = 0x10
)

// Event is one readiness report for a registered file descriptor.
type Event struct {
	FD     int
	Events IOEvent
}

// Poller is a placeholder for unsupported platforms.
type Poller struct{}

// OpenPoller instantiates a poller.
func OpenPoller() (*Poller, error) {
	return nil, errors.ErrUnsupportedPlatform
}

// Close releases the poller's descriptors.
func (p *Poller) Close() error {
	return errors.ErrUnsupportedPlatform
}

// Add registers fd with the poller with an empty interest set.
func (p *Poller) Add(_ int) error {
	return errors.ErrUnsupportedPlatform
}

// Remove deletes fd from the poller.
func (p *Poller) Remove(_ int) error {
	return errors.ErrUnsupportedPlatform
}

// SetInterest replaces the interest set of a registered fd.
func (p *Poller) SetInterest(_ int, _ IOEvent) error {
	return errors.ErrUnsupportedPlatform
}

// Interest reports the interest set last pushed for fd.
func (p *Poller) Interest(_ int) (IOEvent, bool) {
	return 0, false
}

// Len reports the number of registered descriptors.
func (p *Poller) Len() int {
	return 0
}

// Wait blocks until a registered descriptor is ready.
func (p *Poller) Wait(_ int) ([]Event, bool, error) {
	return nil, false, errors.ErrUnsupportedPlatform
}

// Wakeup makes the next (or a currently pending) Wait return immediately.
func (p *Poller) Wakeup() error {
	return errors.ErrUnsupportedPlatform
}

// ClearWakeup drains the wakeup pipe and re-arms it for the next Wakeup.
func (p *Poller) ClearWakeup() error {
	return errors.ErrUnsupportedPlatform
}
