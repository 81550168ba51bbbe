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
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

var (
	// ErrNotFound is returned for operations on untracked processes or
	// threads.
	ErrNotFound = errors.New("qos store: not found")
	// ErrExists is returned when inserting a process or thread twice.
	ErrExists = errors.New("qos store: already exists")
	// ErrCorrupt is returned when a state file cannot be loaded.
	ErrCorrupt = errors.New("qos store: corrupt state file")

	log = logger.NewLogger("qos-store")
)

// Kernel tells the start time and owning process of live processes and
// threads. *procfs.FS implements it.
type Kernel interface {
	ProcessStarttime(pid int) (uint64, error)
	ThreadStarttime(pid, tid int) (uint64, error)
	TGID(tid int) (int, error)
}

type processEntry struct {
	offset  int
	threads map[uint32]int
}

// Store keeps the QoS state of processes and threads in a memory-mapped
// file, so that it survives restarts of the daemon. Entries whose process
// or thread has since exited, or whose id has been recycled, are dropped
// when the file is loaded again.
//
// Store is not safe for concurrent use, see Locked.
type Store struct {
	path      string
	file      *os.File
	data      []byte
	kernel    Kernel
	processes map[uint32]*processEntry
	// processIDs[i] is the process owning cell i+1.
	processIDs []uint32
	freed      []int
}

// Open opens the state file at path, creating it if necessary, and
// restores the entries which still refer to the same processes and
// threads.
func Open(path string, kernel Kernel) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, storeError("failed to open %s: %w", path, err)
	}

	s, err := open(path, f, kernel)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func open(path string, f *os.File, kernel Kernel) (*Store, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, storeError("failed to stat %s: %w", path, err)
	}

	size := st.Size()
	switch {
	case size == 0:
		if err := f.Truncate(PageSize); err != nil {
			return nil, storeError("failed to size %s: %w", path, err)
		}
		size = PageSize
	case size%PageSize != 0:
		return nil, storeError("%s: size %d is not a multiple of the page size: %w",
			path, size, ErrCorrupt)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, storeError("failed to map %s: %w", path, err)
	}

	s := &Store{
		path:      path,
		file:      f,
		data:      data,
		kernel:    kernel,
		processes: map[uint32]*processEntry{},
	}

	if err := s.restore(); err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}

	return s, nil
}

// Close unmaps and closes the state file.
func (s *Store) Close() error {
	if s.data == nil {
		return nil
	}
	err := unix.Munmap(s.data)
	s.data = nil
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return storeError("failed to close %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) nCells() int {
	return int(binary.NativeEndian.Uint64(s.data[0:8]))
}

func (s *Store) setNCells(n int) {
	binary.NativeEndian.PutUint64(s.data[0:8], uint64(n))
}

func (s *Store) cellAt(offset int) []byte {
	return s.data[offset : offset+cellSize]
}

// Cells returns the number of allocated cells, including freed ones not
// yet compacted away.
func (s *Store) Cells() int {
	return s.nCells()
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return s.nCells() - len(s.freed)
}

// Size returns the size of the state file.
func (s *Store) Size() int {
	return len(s.data)
}

func (s *Store) restore() error {
	n := s.nCells()
	if (n+1)*cellSize > len(s.data) {
		return storeError("%s: %d cells do not fit in %d bytes: %w", s.path, n, len(s.data), ErrCorrupt)
	}

	cells := make([]cell, n)
	for i := range cells {
		c, err := decodeCell(s.cellAt((i + 1) * cellSize))
		if err != nil {
			return storeError("%s: cell %d: %v: %w", s.path, i+1, err, ErrCorrupt)
		}
		cells[i] = c
	}

	s.processIDs = make([]uint32, n)
	live := 0

	// Threads may precede their process after compaction, so processes
	// are restored first.
	for i, c := range cells {
		offset := (i + 1) * cellSize
		if !c.isProcess {
			continue
		}
		if _, ok := s.processes[c.id]; ok {
			log.Warn("dropping duplicate entry for process %d", c.id)
			s.freed = append(s.freed, offset)
			continue
		}
		starttime, err := s.kernel.ProcessStarttime(int(c.id))
		if err != nil || starttime != c.starttime {
			log.Debug("dropping process %d (starttime %d, stored %d, err %v)", c.id, starttime, c.starttime, err)
			s.freed = append(s.freed, offset)
			continue
		}
		s.processes[c.id] = &processEntry{offset: offset, threads: map[uint32]int{}}
		s.processIDs[i] = c.id
		live++
	}

	for i, c := range cells {
		offset := (i + 1) * cellSize
		if c.isProcess {
			continue
		}
		pid, err := s.kernel.TGID(int(c.id))
		if err != nil {
			log.Debug("dropping thread %d: %v", c.id, err)
			s.freed = append(s.freed, offset)
			continue
		}
		p, ok := s.processes[uint32(pid)]
		if !ok {
			log.Debug("dropping thread %d of untracked process %d", c.id, pid)
			s.freed = append(s.freed, offset)
			continue
		}
		if _, ok := p.threads[c.id]; ok {
			log.Warn("dropping duplicate entry for thread %d/%d", pid, c.id)
			s.freed = append(s.freed, offset)
			continue
		}
		starttime, err := s.kernel.ThreadStarttime(pid, int(c.id))
		if err != nil || starttime != c.starttime {
			log.Debug("dropping thread %d/%d (starttime %d, stored %d, err %v)", pid, c.id, starttime, c.starttime, err)
			s.freed = append(s.freed, offset)
			continue
		}
		p.threads[c.id] = offset
		s.processIDs[i] = uint32(pid)
		live++
	}

	log.Info("restored %d of %d entries from %s", live, n, s.path)

	s.Compact()

	return nil
}

// resize remaps the state file to size bytes.
func (s *Store) resize(size int) {
	if size == len(s.data) {
		return
	}

	grow := size > len(s.data)
	if grow {
		if err := s.file.Truncate(int64(size)); err != nil {
			panic(storeError("failed to grow %s to %d bytes: %v", s.path, size, err))
		}
	}

	data, err := unix.Mremap(s.data, size, unix.MREMAP_MAYMOVE)
	if err != nil {
		panic(storeError("failed to remap %s to %d bytes: %v", s.path, size, err))
	}
	s.data = data

	if !grow {
		if err := s.file.Truncate(int64(size)); err != nil {
			panic(storeError("failed to shrink %s to %d bytes: %v", s.path, size, err))
		}
	}

	log.Debug("resized %s to %d bytes", s.path, size)
}

// alloc returns the offset of a free cell for a cell of process pid.
func (s *Store) alloc(pid uint32) int {
	if n := len(s.freed); n > 0 {
		offset := s.freed[n-1]
		s.freed = s.freed[:n-1]
		s.processIDs[offset/cellSize-1] = pid
		return offset
	}

	n := s.nCells() + 1
	offset := n * cellSize
	if offset+cellSize > len(s.data) {
		s.resize(len(s.data) + PageSize)
	}
	s.setNCells(n)
	s.processIDs = append(s.processIDs, pid)

	return offset
}

func (s *Store) free(offset int) {
	s.freed = append(s.freed, offset)
}

// InsertProcess starts tracking a process.
func (s *Store) InsertProcess(pid uint32, state ProcessState, starttime uint64) error {
	if state >= processStateMax {
		return storeError("process %d: invalid state %d", pid, state)
	}
	if _, ok := s.processes[pid]; ok {
		return storeError("process %d: %w", pid, ErrExists)
	}

	offset := s.alloc(pid)
	cell{id: pid, state: uint8(state), isProcess: true, starttime: starttime}.encode(s.cellAt(offset))
	s.processes[pid] = &processEntry{offset: offset, threads: map[uint32]int{}}

	return nil
}

// UpdateProcess updates the state and start time of a tracked process.
func (s *Store) UpdateProcess(pid uint32, state ProcessState, starttime uint64) error {
	if state >= processStateMax {
		return storeError("process %d: invalid state %d", pid, state)
	}
	p, ok := s.processes[pid]
	if !ok {
		return storeError("process %d: %w", pid, ErrNotFound)
	}

	cell{state: uint8(state), starttime: starttime}.update(s.cellAt(p.offset))

	return nil
}

// InsertThread starts tracking a thread of a tracked process.
func (s *Store) InsertThread(pid, tid uint32, state ThreadState, starttime uint64) error {
	if state >= threadStateMax {
		return storeError("thread %d/%d: invalid state %d", pid, tid, state)
	}
	p, ok := s.processes[pid]
	if !ok {
		return storeError("thread %d/%d: process %w", pid, tid, ErrNotFound)
	}
	if _, ok := p.threads[tid]; ok {
		return storeError("thread %d/%d: %w", pid, tid, ErrExists)
	}

	offset := s.alloc(pid)
	cell{id: tid, state: uint8(state), starttime: starttime}.encode(s.cellAt(offset))
	p.threads[tid] = offset

	return nil
}

// UpdateThread updates the state and start time of a tracked thread.
func (s *Store) UpdateThread(pid, tid uint32, state ThreadState, starttime uint64) error {
	if state >= threadStateMax {
		return storeError("thread %d/%d: invalid state %d", pid, tid, state)
	}
	offset, ok := s.threadOffset(pid, tid)
	if !ok {
		return storeError("thread %d/%d: %w", pid, tid, ErrNotFound)
	}

	cell{state: uint8(state), starttime: starttime}.update(s.cellAt(offset))

	return nil
}

// SetProcessState tracks a process in the given state, looking up its
// start time from the kernel.
func (s *Store) SetProcessState(pid uint32, state ProcessState) error {
	starttime, err := s.kernel.ProcessStarttime(int(pid))
	if err != nil {
		return storeError("process %d: %w", pid, err)
	}
	if _, ok := s.processes[pid]; ok {
		return s.UpdateProcess(pid, state, starttime)
	}
	return s.InsertProcess(pid, state, starttime)
}

// SetThreadState tracks a thread in the given state, looking up its start
// time from the kernel. The process of the thread must be tracked.
func (s *Store) SetThreadState(pid, tid uint32, state ThreadState) error {
	starttime, err := s.kernel.ThreadStarttime(int(pid), int(tid))
	if err != nil {
		return storeError("thread %d/%d: %w", pid, tid, err)
	}
	if _, ok := s.threadOffset(pid, tid); ok {
		return s.UpdateThread(pid, tid, state, starttime)
	}
	return s.InsertThread(pid, tid, state, starttime)
}

// RemoveProcess stops tracking a process and all of its threads.
func (s *Store) RemoveProcess(pid uint32) error {
	p, ok := s.processes[pid]
	if !ok {
		return storeError("process %d: %w", pid, ErrNotFound)
	}

	for tid, offset := range p.threads {
		s.free(offset)
		delete(p.threads, tid)
	}
	s.free(p.offset)
	delete(s.processes, pid)

	return nil
}

// RemoveThread stops tracking a thread.
func (s *Store) RemoveThread(pid, tid uint32) error {
	offset, ok := s.threadOffset(pid, tid)
	if !ok {
		return storeError("thread %d/%d: %w", pid, tid, ErrNotFound)
	}

	s.free(offset)
	delete(s.processes[pid].threads, tid)

	return nil
}

func (s *Store) threadOffset(pid, tid uint32) (int, bool) {
	p, ok := s.processes[pid]
	if !ok {
		return 0, false
	}
	offset, ok := p.threads[tid]
	return offset, ok
}

// Process returns the state of a tracked process.
func (s *Store) Process(pid uint32) (ProcessState, bool) {
	p, ok := s.processes[pid]
	if !ok {
		return 0, false
	}
	return ProcessState(s.cellAt(p.offset)[4]), true
}

// Thread returns the state of a tracked thread.
func (s *Store) Thread(pid, tid uint32) (ThreadState, bool) {
	offset, ok := s.threadOffset(pid, tid)
	if !ok {
		return 0, false
	}
	return ThreadState(s.cellAt(offset)[4]), true
}

// Entry is a tracked process or thread. TID is 0 for processes.
type Entry struct {
	PID       uint32
	TID       uint32
	State     uint8
	Starttime uint64
}

// IsProcess returns true if the entry is a process.
func (e Entry) IsProcess() bool {
	return e.TID == 0
}

// ForEach calls fn for every tracked process and thread, in file order,
// until fn returns false.
func (s *Store) ForEach(fn func(Entry) bool) {
	dead := make(map[int]struct{}, len(s.freed))
	for _, offset := range s.freed {
		dead[offset] = struct{}{}
	}

	for i := 1; i <= s.nCells(); i++ {
		offset := i * cellSize
		if _, ok := dead[offset]; ok {
			continue
		}
		c, err := decodeCell(s.cellAt(offset))
		if err != nil {
			log.Error("%s: cell %d: %v", s.path, i, err)
			continue
		}
		e := Entry{PID: c.id, State: c.state, Starttime: c.starttime}
		if !c.isProcess {
			e.PID, e.TID = s.processIDs[i-1], c.id
		}
		if !fn(e) {
			return
		}
	}
}

// Compact moves the live cells at the end of the file into the freed
// cells, so that the cells in use are contiguous, and releases trailing
// pages which are no longer needed.
func (s *Store) Compact() {
	sort.Ints(s.freed)

	n := s.nCells()
	for len(s.freed) > 0 && n > 0 {
		tail := n * cellSize
		last := len(s.freed) - 1

		// the tail cell itself is free
		if s.freed[last] == tail {
			s.freed = s.freed[:last]
			n--
			continue
		}

		s.move(tail, s.freed[0])
		s.freed = s.freed[1:]
		n--
	}

	s.freed = nil
	s.processIDs = s.processIDs[:n]
	s.setNCells(n)

	pages := ((n+1)*cellSize + PageSize - 1) / PageSize
	if size := pages * PageSize; len(s.data)-size > PageSize {
		s.resize(size)
	}
}

// move copies the cell at from into to and repoints its index entry.
func (s *Store) move(from, to int) {
	copy(s.cellAt(to), s.cellAt(from))

	pid := s.processIDs[from/cellSize-1]
	s.processIDs[to/cellSize-1] = pid

	p := s.processes[pid]
	id := binary.NativeEndian.Uint32(s.cellAt(to)[0:4])
	if s.cellAt(to)[5] == 1 {
		p.offset = to
	} else {
		p.threads[id] = to
	}
}

func storeError(format string, args ...interface{}) error {
	return fmt.Errorf("qos store: "+format, args...)
}
