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

//go:build darwin

package netpoll

import (
	"os"

	"golang.org/x/sys/unix"
)

// makeWakeupPipe creates the non-blocking close-on-exec descriptor pair
// backing a poller's wakeup channel. macOS has no pipe2(2), so the flags
// are set with separate fcntl calls.
func makeWakeupPipe() (rfd, wfd int, err error) {
	var fds [2]int
	if err = unix.Pipe(fds[:]); err != nil {
		return -1, -1, os.NewSyscallError("pipe", err)
	}
	for _, fd := range fds {
		if err = unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return -1, -1, os.NewSyscallError("fcntl", err)
		}
		unix.CloseOnExec(fd)
	}
	return fds[0], fds[1], nil
}
