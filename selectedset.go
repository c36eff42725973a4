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

import "sync"

// SelectedKeySet is the live view over the keys the select cycles have
// picked up. Only the selector inserts into it, consumers inspect and
// remove, typically removing every key they have finished handling so the
// next cycle can report it afresh.
type SelectedKeySet struct {
	mu  sync.Mutex
	set map[*SelectionKey]struct{}
}

// add is reserved for the select cycle, callers have no way to insert.
func (s *SelectedKeySet) add(k *SelectionKey) {
	s.set[k] = struct{}{}
}

// Len returns the number of keys currently selected.
func (s *SelectedKeySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

// Contains reports whether k is currently selected.
func (s *SelectedKeySet) Contains(k *SelectionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[k]
	return ok
}

// Remove takes k out of the set, reporting whether it was there.
func (s *SelectedKeySet) Remove(k *SelectionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[k]; !ok {
		return false
	}
	delete(s.set, k)
	return true
}

// Clear empties the set.
func (s *SelectedKeySet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.set {
		delete(s.set, k)
	}
}

// Keys returns a point-in-time snapshot of the selected keys.
func (s *SelectedKeySet) Keys() []*SelectionKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]*SelectionKey, 0, len(s.set))
	for k := range s.set {
		keys = append(keys, k)
	}
	return keys
}

// ForEach calls fn over a snapshot of the set, stopping early when fn
// returns false. fn runs without the set's lock held, so it is free to
// remove keys as it goes.
func (s *SelectedKeySet) ForEach(fn func(*SelectionKey) bool) {
	for _, k := range s.Keys() {
		if !fn(k) {
			return
		}
	}
}
