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
	"strconv"
	"strings"

	"github.com/gnet-io/muxio/internal/netpoll"
)

// Ops is a bit set of the operation kinds a channel can be selected for.
type Ops uint32

const (
	// OpRead marks interest in readability.
	OpRead Ops = 1 << iota
	// OpWrite marks interest in writability.
	OpWrite
	// OpConnect marks interest in the completion of an in-flight connect.
	OpConnect
	// OpAccept marks interest in pending inbound connections.
	OpAccept
)

// String renders the set in "Read|Write" form, the empty set as "0".
func (ops Ops) String() string {
	if ops == 0 {
		return "0"
	}
	names := make([]string, 0, 4)
	if ops&OpRead != 0 {
		names = append(names, "Read")
	}
	if ops&OpWrite != 0 {
		names = append(names, "Write")
	}
	if ops&OpConnect != 0 {
		names = append(names, "Connect")
	}
	if ops&OpAccept != 0 {
		names = append(names, "Accept")
	}
	if rest := ops &^ (OpRead | OpWrite | OpConnect | OpAccept); rest != 0 {
		names = append(names, "0x"+strconv.FormatUint(uint64(rest), 16))
	}
	return strings.Join(names, "|")
}

// IOEvent is the portable poll(2)-style bit set that readiness crosses the
// channel contract with. Both poller backends report readiness in these bits.
type IOEvent = netpoll.IOEvent

// The IOEvent bits channels translate Ops against.
const (
	EventIn  = netpoll.EventIn
	EventPri = netpoll.EventPri
	EventOut = netpoll.EventOut
	EventErr = netpoll.EventErr
	EventHup = netpoll.EventHup
)

// Channel is the capability contract a selectable resource implements to
// take part in selection. A selector never performs I/O on a channel, it
// only multiplexes readiness, so the contract is limited to identity,
// capability and translation between the Ops space and the native event
// bits.
type Channel interface {
	// FD returns the descriptor this channel is selected by. The value must
	// not change for the lifetime of a registration, even after the
	// underlying descriptor is closed.
	FD() int

	// ValidOps returns the operations this channel supports. Ready ops
	// reported through its keys never leave this set.
	ValidOps() Ops

	// TranslateInterest maps interest ops onto the native event bits pushed
	// down to the poller.
	TranslateInterest(ops Ops) IOEvent

	// TranslateReady maps a native readiness report back into ready ops.
	// It is also the channel's chance to fold kernel state into its own,
	// for instance latching a finished connect, and runs on every report
	// whether or not the report ends up changing a key. Error and hang-up
	// conditions are expected to map to every op the channel supports,
	// matching how the OS promotes them. It runs inside the select cycle's
	// merge phase with the selector's locks held, implementations must not
	// call back into the selector or its key sets from it.
	TranslateReady(events IOEvent) Ops

	// IsOpen reports whether the channel is still open.
	IsOpen() bool

	// Orphaned tells a closed channel that this selector dropped its
	// registration, so no select cycle will ever report it again. It runs
	// inside the selector's teardown path, implementations must not call
	// back into the selector from it.
	Orphaned()
}
