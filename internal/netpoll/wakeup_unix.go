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

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

var wakeupMsg = []byte{0}

// Wakeup makes the next (or a currently pending) Wait return immediately.
// Back-to-back calls collapse into a single wakeup until ClearWakeup
// consumes it.
func (p *Poller) Wakeup() error {
	p.wakeupLock.Lock()
	defer p.wakeupLock.Unlock()
	if p.wakeupArmed {
		return nil
	}
	var err error
	for _, err = unix.Write(p.wfd, wakeupMsg); err == unix.EINTR; _, err = unix.Write(p.wfd, wakeupMsg) {
	}
	if err == unix.EAGAIN { // pipe full, the signal is already in flight
		err = nil
	}
	if err == nil {
		p.wakeupArmed = true
	}
	return os.NewSyscallError("write", err)
}

// ClearWakeup drains the wakeup pipe and re-arms it for the next Wakeup.
func (p *Poller) ClearWakeup() error {
	p.wakeupLock.Lock()
	defer p.wakeupLock.Unlock()
	for {
		n, err := unix.Read(p.rfd, p.wbuf)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || n == 0 {
			break
		}
		if err != nil {
			return os.NewSyscallError("read", err)
		}
		if n < len(p.wbuf) {
			break
		}
	}
	p.wakeupArmed = false
	return nil
}
