// Copyright The NRI Plugins Authors. All Rights Reserved.
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

package store

import (
	"sync"
)

// Locked serializes access to a Store.
type Locked struct {
	sync.Mutex
	s *Store
}

// OpenLocked opens a Store for concurrent use.
func OpenLocked(path string, kernel Kernel) (*Locked, error) {
	s, err := Open(path, kernel)
	if err != nil {
		return nil, err
	}
	return &Locked{s: s}, nil
}

// Close closes the store.
func (l *Locked) Close() error {
	l.Lock()
	defer l.Unlock()
	return l.s.Close()
}

// Len returns the number of live entries.
func (l *Locked) Len() int {
	l.Lock()
	defer l.Unlock()
	return l.s.Len()
}

// SetProcessState tracks a process in the given state.
func (l *Locked) SetProcessState(pid uint32, state ProcessState) error {
	l.Lock()
	defer l.Unlock()
	return l.s.SetProcessState(pid, state)
}

// SetThreadState tracks a thread in the given state.
func (l *Locked) SetThreadState(pid, tid uint32, state ThreadState) error {
	l.Lock()
	defer l.Unlock()
	return l.s.SetThreadState(pid, tid, state)
}

// RemoveProcess stops tracking a process and its threads.
func (l *Locked) RemoveProcess(pid uint32) error {
	l.Lock()
	defer l.Unlock()
	return l.s.RemoveProcess(pid)
}

// RemoveThread stops tracking a thread.
func (l *Locked) RemoveThread(pid, tid uint32) error {
	l.Lock()
	defer l.Unlock()
	return l.s.RemoveThread(pid, tid)
}

// Process returns the state of a tracked process.
func (l *Locked) Process(pid uint32) (ProcessState, bool) {
	l.Lock()
	defer l.Unlock()
	return l.s.Process(pid)
}

// Thread returns the state of a tracked thread.
func (l *Locked) Thread(pid, tid uint32) (ThreadState, bool) {
	l.Lock()
	defer l.Unlock()
	return l.s.Thread(pid, tid)
}

// Compact compacts the store.
func (l *Locked) Compact() {
	l.Lock()
	defer l.Unlock()
	l.s.Compact()
}

// ForEach calls fn for every tracked entry while holding the lock.
func (l *Locked) ForEach(fn func(Entry) bool) {
	l.Lock()
	defer l.Unlock()
	l.s.ForEach(fn)
}
