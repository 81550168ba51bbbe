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

package procfs_test

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/procfs"
)

const (
	sampleMeminfo = `MemTotal:        8000000 kB
MemFree:         1000000 kB
MemAvailable:    3000000 kB
Buffers:           10000 kB
Cached:          2000000 kB
Active(anon):     900000 kB
Inactive(anon):   100000 kB
Active(file):    1200000 kB
Inactive(file):   800000 kB
Dirty:              5000 kB
SwapTotal:       4000000 kB
SwapFree:        3000000 kB
`
	sampleVmstat = `nr_free_pages 250000
workingset_refault_anon 1234
workingset_refault_file 5678
pgsteal_kswapd 100
pgsteal_direct 42
`
	sampleZoneinfo = `Node 0, zone      DMA
  per-node stats
      nr_inactive_anon 100
      nr_active_anon 200
  pages free     3968
        min      33
        low      41
        high     49
        spanned  4095
        present  3997
        managed  3976
        protection: (0, 2871, 7842, 7842)
Node 0, zone    DMA32
  pages free     500000
        min      6102
        low      7627
        high     9152
        spanned  1044480
        present  782288
        managed  765904
        protection: (0, 0, 4971, 4971)
Node 0, zone   Normal
  pages free     1000
        min      10000
        low      12500
        high     15000
        spanned  1310720
        present  1310720
        managed  1272684
        protection: (0, 0, 0, 0)
`
	samplePressure = `some avg10=1.50 avg60=0.75 avg300=0.20 total=123456
full avg10=0.50 avg60=0.25 avg300=0.10 total=65432
`
)

func statLine(pid int, starttime uint64) string {
	fields := make([]string, 41)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = "1"
	fields[18] = strconv.FormatUint(starttime, 10)
	return fmt.Sprintf("%d (test proc) S %s\n", pid, strings.Join(fields, " "))
}

func statusFile(name string, tgid, pid int) string {
	return fmt.Sprintf("Name:\t%s\nState:\tS (sleeping)\nTgid:\t%d\nPid:\t%d\nPPid:\t1\n", name, tgid, pid)
}

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// sampleProc creates a procfs tree with process 100, its threads 100 and
// 101, and the global statistics files.
func sampleProc(t *testing.T) string {
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "meminfo"), sampleMeminfo)
	writeFile(t, filepath.Join(root, "vmstat"), sampleVmstat)
	writeFile(t, filepath.Join(root, "zoneinfo"), sampleZoneinfo)
	writeFile(t, filepath.Join(root, "pressure", "memory"), samplePressure)

	writeFile(t, filepath.Join(root, "100", "stat"), statLine(100, 5000))
	writeFile(t, filepath.Join(root, "100", "status"), statusFile("memd", 100, 100))
	writeFile(t, filepath.Join(root, "100", "task", "100", "stat"), statLine(100, 5000))
	writeFile(t, filepath.Join(root, "100", "task", "101", "stat"), statLine(101, 5100))
	writeFile(t, filepath.Join(root, "101", "stat"), statLine(101, 5100))
	writeFile(t, filepath.Join(root, "101", "status"), statusFile("worker", 100, 101))

	return root
}

func TestMemInfo(t *testing.T) {
	fs, err := procfs.NewFS(sampleProc(t))
	require.NoError(t, err)

	mi, err := fs.MemInfo()
	require.NoError(t, err)
	require.Equal(t, procfs.MemInfo{
		TotalKB:        8000000,
		FreeKB:         1000000,
		AvailableKB:    3000000,
		ActiveAnonKB:   900000,
		InactiveAnonKB: 100000,
		ActiveFileKB:   1200000,
		InactiveFileKB: 800000,
		DirtyKB:        5000,
		SwapTotalKB:    4000000,
		SwapFreeKB:     3000000,
	}, mi)
	require.Equal(t, uint64(1000000), mi.SwapUsedKB())
	require.Equal(t, uint64(1000000), mi.AnonKB())
	require.Equal(t, uint64(2000000), mi.FileKB())

	require.Equal(t, uint64(0), procfs.MemInfo{SwapTotalKB: 1, SwapFreeKB: 2}.SwapUsedKB())
}

func TestVmstat(t *testing.T) {
	root := sampleProc(t)
	fs, err := procfs.NewFS(root)
	require.NoError(t, err)

	vs, err := fs.Vmstat()
	require.NoError(t, err)
	require.Equal(t, procfs.Vmstat{
		WorkingsetRefaultAnon: 1234,
		WorkingsetRefaultFile: 5678,
		PgstealDirect:         42,
	}, vs)

	writeFile(t, filepath.Join(root, "vmstat"), "workingset_refault 77\npgsteal_direct 1\n")
	vs, err = fs.Vmstat()
	require.NoError(t, err)
	require.Equal(t, procfs.Vmstat{WorkingsetRefaultFile: 77, PgstealDirect: 1}, vs)
}

func TestReservedFree(t *testing.T) {
	fs, err := procfs.NewFS(sampleProc(t))
	require.NoError(t, err)

	kb, err := fs.ReservedFreeKB()
	require.NoError(t, err)

	pages := uint64(49+9152+15000) + uint64(7842+4971+0)
	require.Equal(t, pages*uint64(os.Getpagesize())/1024, kb)
	require.Equal(t, uint64(os.Getpagesize()), fs.PageSize())
}

func TestStarttime(t *testing.T) {
	fs, err := procfs.NewFS(sampleProc(t))
	require.NoError(t, err)

	start, err := fs.ProcessStarttime(100)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), start)

	start, err = fs.ThreadStarttime(100, 101)
	require.NoError(t, err)
	require.Equal(t, uint64(5100), start)

	_, err = fs.ProcessStarttime(200)
	require.ErrorIs(t, err, procfs.ErrNotFound)

	_, err = fs.ThreadStarttime(100, 102)
	require.ErrorIs(t, err, procfs.ErrNotFound)

	_, err = fs.ThreadStarttime(200, 201)
	require.ErrorIs(t, err, procfs.ErrNotFound)
}

func TestTGID(t *testing.T) {
	fs, err := procfs.NewFS(sampleProc(t))
	require.NoError(t, err)

	tgid, err := fs.TGID(101)
	require.NoError(t, err)
	require.Equal(t, 100, tgid)

	tgid, err = fs.TGID(100)
	require.NoError(t, err)
	require.Equal(t, 100, tgid)

	_, err = fs.TGID(300)
	require.ErrorIs(t, err, procfs.ErrNotFound)
}

func TestMemoryPressure(t *testing.T) {
	fs, err := procfs.NewFS(sampleProc(t))
	require.NoError(t, err)

	p, err := fs.MemoryPressure()
	require.NoError(t, err)
	require.Equal(t, 1.5, p.SomeAvg10)
	require.Equal(t, 0.75, p.SomeAvg60)
	require.Equal(t, uint64(123456), p.SomeTotal)
	require.Equal(t, 0.5, p.FullAvg10)
	require.Equal(t, uint64(65432), p.FullTotal)
}
