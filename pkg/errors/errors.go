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

// Package errors defines common errors for muxio.
package errors

import "errors"

var (
	// ErrSelectorClosed occurs when calling any method on a selector that has been closed.
	ErrSelectorClosed = errors.New("muxio: selector is closed")
	// ErrKeyCancelled occurs when accessing interest ops, ready ops or the attachment
	// of a selection key that has been cancelled.
	ErrKeyCancelled = errors.New("muxio: selection key has been cancelled")
	// ErrIllegalOps occurs when an interest mask requests an operation outside
	// the channel's valid operation set.
	ErrIllegalOps = errors.New("muxio: interest ops not supported by channel")
	// ErrNegativeTimeout occurs when a negative timeout is passed to a selection operation.
	ErrNegativeTimeout = errors.New("muxio: negative timeout")
	// ErrNilChannel occurs when attempting to register a nil channel.
	ErrNilChannel = errors.New("muxio: nil channel")
	// ErrChannelClosed occurs when attempting to register a channel that is already closed.
	ErrChannelClosed = errors.New("muxio: channel is closed")
	// ErrFDAlreadyRegistered occurs when registering a channel whose file descriptor
	// is already registered with the selector.
	ErrFDAlreadyRegistered = errors.New("muxio: file descriptor already registered")
	// ErrUnsupportedPlatform occurs when running muxio on a platform without a poller backend.
	ErrUnsupportedPlatform = errors.New("muxio: unsupported platform")
)
