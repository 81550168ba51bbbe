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

package procfs

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	promfs "github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/utils"
)

const (
	// DefaultMountPoint is where procfs is normally mounted.
	DefaultMountPoint = "/proc"
)

var (
	// ErrNotFound is returned for processes or threads which do not exist.
	ErrNotFound = errors.New("procfs: no such process or thread")

	log = logger.Get("procfs")
)

// FS provides the kernel statistics and process details we use.
type FS struct {
	proc     promfs.FS
	root     string
	pageSize uint64
}

// NewDefaultFS returns an FS for procfs at its default mount point.
func NewDefaultFS() (*FS, error) {
	return NewFS(DefaultMountPoint)
}

// NewFS returns an FS for procfs mounted at root.
func NewFS(root string) (*FS, error) {
	proc, err := promfs.NewFS(root)
	if err != nil {
		return nil, procfsError("failed to open %s: %w", root, err)
	}
	return &FS{
		proc:     proc,
		root:     root,
		pageSize: uint64(unix.Getpagesize()),
	}, nil
}

// PageSize returns the page size used to convert page counts to bytes.
func (fs *FS) PageSize() uint64 {
	return fs.pageSize
}

// MemInfo is the subset of /proc/meminfo we use, in KiB.
type MemInfo struct {
	TotalKB        uint64
	FreeKB         uint64
	AvailableKB    uint64
	ActiveAnonKB   uint64
	InactiveAnonKB uint64
	ActiveFileKB   uint64
	InactiveFileKB uint64
	DirtyKB        uint64
	SwapTotalKB    uint64
	SwapFreeKB     uint64
}

// AnonKB returns the amount of anonymous memory on the LRU lists.
func (m MemInfo) AnonKB() uint64 {
	return m.ActiveAnonKB + m.InactiveAnonKB
}

// FileKB returns the amount of page cache on the LRU lists.
func (m MemInfo) FileKB() uint64 {
	return m.ActiveFileKB + m.InactiveFileKB
}

// SwapUsedKB returns the amount of swap in use.
func (m MemInfo) SwapUsedKB() uint64 {
	if m.SwapFreeKB > m.SwapTotalKB {
		return 0
	}
	return m.SwapTotalKB - m.SwapFreeKB
}

// MemInfo reads /proc/meminfo.
func (fs *FS) MemInfo() (MemInfo, error) {
	mi, err := fs.proc.Meminfo()
	if err != nil {
		return MemInfo{}, procfsError("failed to read meminfo: %w", err)
	}
	if mi.MemTotal == nil || mi.MemFree == nil {
		return MemInfo{}, procfsError("meminfo lacks MemTotal or MemFree")
	}

	return MemInfo{
		TotalKB:        value(mi.MemTotal),
		FreeKB:         value(mi.MemFree),
		AvailableKB:    value(mi.MemAvailable),
		ActiveAnonKB:   value(mi.ActiveAnon),
		InactiveAnonKB: value(mi.InactiveAnon),
		ActiveFileKB:   value(mi.ActiveFile),
		InactiveFileKB: value(mi.InactiveFile),
		DirtyKB:        value(mi.Dirty),
		SwapTotalKB:    value(mi.SwapTotal),
		SwapFreeKB:     value(mi.SwapFree),
	}, nil
}

// Vmstat is the subset of /proc/vmstat we use, in pages.
type Vmstat struct {
	WorkingsetRefaultAnon uint64
	WorkingsetRefaultFile uint64
	PgstealDirect         uint64
}

// Vmstat reads /proc/vmstat. Kernels without separate anon and file
// refault counters report all refaults as file refaults.
func (fs *FS) Vmstat() (Vmstat, error) {
	var (
		vs       Vmstat
		refaults uint64
	)

	err := utils.ParseFileEntries(filepath.Join(fs.root, "vmstat"),
		map[string]interface{}{
			"workingset_refault_anon": &vs.WorkingsetRefaultAnon,
			"workingset_refault_file": &vs.WorkingsetRefaultFile,
			"workingset_refault":      &refaults,
			"pgsteal_direct":          &vs.PgstealDirect,
		},
		utils.SplitFields,
	)
	if err != nil {
		return Vmstat{}, procfsError("failed to read vmstat: %w", err)
	}

	if vs.WorkingsetRefaultFile == 0 && refaults != 0 {
		vs.WorkingsetRefaultFile = refaults
	}

	return vs, nil
}

// ReservedFreeKB returns the memory the kernel keeps free: the sum of the
// high watermark and the largest lowmem reserve of every zone.
func (fs *FS) ReservedFreeKB() (uint64, error) {
	zones, err := fs.proc.Zoneinfo()
	if err != nil {
		return 0, procfsError("failed to read zoneinfo: %w", err)
	}

	pages := uint64(0)
	for _, z := range zones {
		if z.High == nil {
			continue
		}
		pages += uint64(max(*z.High, 0))
		if n := len(z.Protection); n > 0 && z.Protection[n-1] != nil {
			pages += uint64(max(*z.Protection[n-1], 0))
		}
	}

	return pages * fs.pageSize / 1024, nil
}

// ProcessStarttime returns the start time of a process in clock ticks
// since boot.
func (fs *FS) ProcessStarttime(pid int) (uint64, error) {
	p, err := fs.proc.Proc(pid)
	if err != nil {
		return 0, notFound(err, "process %d", pid)
	}
	stat, err := p.Stat()
	if err != nil {
		return 0, notFound(err, "process %d", pid)
	}
	return stat.Starttime, nil
}

// ThreadStarttime returns the start time of a thread of a process in clock
// ticks since boot.
func (fs *FS) ThreadStarttime(pid, tid int) (uint64, error) {
	t, err := fs.proc.Thread(pid, tid)
	if err != nil {
		return 0, notFound(err, "thread %d/%d", pid, tid)
	}
	stat, err := t.Stat()
	if err != nil {
		return 0, notFound(err, "thread %d/%d", pid, tid)
	}
	return stat.Starttime, nil
}

// TGID returns the id of the process a thread belongs to.
func (fs *FS) TGID(tid int) (int, error) {
	p, err := fs.proc.Proc(tid)
	if err != nil {
		return 0, notFound(err, "thread %d", tid)
	}
	status, err := p.NewStatus()
	if err != nil {
		return 0, notFound(err, "thread %d", tid)
	}
	if status.TGID == 0 {
		return 0, procfsError("thread %d: status lacks Tgid", tid)
	}
	return status.TGID, nil
}

// Pressure is the memory pressure stall information.
type Pressure struct {
	SomeAvg10  float64
	SomeAvg60  float64
	SomeAvg300 float64
	SomeTotal  uint64
	FullAvg10  float64
	FullAvg60  float64
	FullAvg300 float64
	FullTotal  uint64
}

// MemoryPressure reads /proc/pressure/memory.
func (fs *FS) MemoryPressure() (Pressure, error) {
	stats, err := fs.proc.PSIStatsForResource("memory")
	if err != nil {
		return Pressure{}, procfsError("failed to read memory pressure: %w", err)
	}

	var p Pressure
	if s := stats.Some; s != nil {
		p.SomeAvg10, p.SomeAvg60, p.SomeAvg300, p.SomeTotal = s.Avg10, s.Avg60, s.Avg300, s.Total
	}
	if f := stats.Full; f != nil {
		p.FullAvg10, p.FullAvg60, p.FullAvg300, p.FullTotal = f.Avg10, f.Avg60, f.Avg300, f.Total
	} else {
		log.Debug("memory pressure has no full line")
	}

	return p, nil
}

func value(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}

func notFound(err error, format string, args ...interface{}) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return procfsError("%s: %w", what, err)
}

func procfsError(format string, args ...interface{}) error {
	return fmt.Errorf("procfs: "+format, args...)
}
