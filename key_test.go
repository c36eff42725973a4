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

package muxio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnet-io/muxio/pkg/errors"
)

func TestOpsString(t *testing.T) {
	assert.Equal(t, "0", Ops(0).String())
	assert.Equal(t, "Read", OpRead.String())
	assert.Equal(t, "Read|Write", (OpRead | OpWrite).String())
	assert.Equal(t, "Read|Write|Connect|Accept", (OpRead | OpWrite | OpConnect | OpAccept).String())
	assert.Equal(t, "Write|0x100", (OpWrite | Ops(1<<8)).String())
}

func TestKeyAccessors(t *testing.T) {
	sel := testSelector(t)
	ch, _ := testChannelPair(t)

	type marker struct{ name string }
	att := &marker{name: "conn-42"}
	key, err := sel.Register(ch, OpRead, att)
	require.NoError(t, err)

	assert.True(t, key.IsValid())
	assert.Equal(t, ch, key.Channel())
	assert.Equal(t, sel, key.Selector())

	interest, err := key.InterestOps()
	require.NoError(t, err)
	assert.Equal(t, OpRead, interest)

	ready, err := key.ReadyOps()
	require.NoError(t, err)
	assert.Zero(t, ready, "a fresh key must not be ready for anything")

	got, err := key.Attachment()
	require.NoError(t, err)
	assert.Same(t, att, got)
}

func TestKeyAccessorsAfterCancel(t *testing.T) {
	sel := testSelector(t)
	ch, _ := testChannelPair(t)
	key, err := sel.Register(ch, OpRead, "att")
	require.NoError(t, err)

	key.Cancel()
	assert.False(t, key.IsValid())

	_, err = key.InterestOps()
	assert.ErrorIs(t, err, errors.ErrKeyCancelled)
	_, err = key.ReadyOps()
	assert.ErrorIs(t, err, errors.ErrKeyCancelled)
	_, err = key.Attachment()
	assert.ErrorIs(t, err, errors.ErrKeyCancelled)
	assert.ErrorIs(t, key.SetInterestOps(OpWrite), errors.ErrKeyCancelled)

	// Channel and Selector stay reachable from a dead key.
	assert.Equal(t, ch, key.Channel())
	assert.Equal(t, sel, key.Selector())
}

func TestKeyCancelIdempotent(t *testing.T) {
	sel := testSelector(t)
	ch, _ := testChannelPair(t)
	key, err := sel.Register(ch, OpRead, nil)
	require.NoError(t, err)

	key.Cancel()
	key.Cancel()
	key.Cancel()

	// One drain later the registration is gone exactly once and for all.
	n, err := sel.SelectNow()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, mustKeys(t, sel))
	assert.Zero(t, mustSelected(t, sel).Len())
}
