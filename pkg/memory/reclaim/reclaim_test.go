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

package reclaim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/memory"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/memory/reclaim"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/procfs"
)

const (
	MiB = uint64(1024)
	GiB = 1024 * MiB
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time {
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

// plenty is memory info with ample free memory and swapUsedKB of swap in use.
func plenty(swapUsedKB uint64) procfs.MemInfo {
	return procfs.MemInfo{
		TotalKB:     16 * GiB,
		FreeKB:      8 * GiB,
		SwapTotalKB: 16 * GiB,
		SwapFreeKB:  16*GiB - swapUsedKB,
	}
}

var noMargins = reclaim.Margins{CriticalKB: 1, ModerateKB: 1}

func newPolicy(cfg cfgapi.Reclaim) (*reclaim.Policy, *clock) {
	c := &clock{t: time.Unix(1000, 0)}
	return reclaim.NewPolicy(cfg, 4, 4096, reclaim.WithClock(c.now)), c
}

func TestDirectiveOrder(t *testing.T) {
	ordered := []reclaim.Directive{
		reclaim.None(),
		reclaim.Moderate(0),
		reclaim.Moderate(10),
		reclaim.Moderate(20),
		reclaim.Critical(0),
		reclaim.Critical(5),
	}
	for i := range ordered {
		for j := range ordered {
			var want int
			switch {
			case i < j:
				want = -1
			case i > j:
				want = 1
			}
			require.Equal(t, want, ordered[i].Compare(ordered[j]), "%s vs %s", ordered[i], ordered[j])
		}
	}
	require.Equal(t, reclaim.Critical(5), reclaim.Max(reclaim.Moderate(100), reclaim.Critical(5)))
	require.Equal(t, "Moderate(10 KiB)", reclaim.Moderate(10).String())
}

func TestCriticalEscalation(t *testing.T) {
	cfg := cfgapi.DefaultReclaim()
	cfg.UnresponsiveTargetKB = 100 * MiB

	p, c := newPolicy(cfg)
	mi := plenty(8 * GiB)

	evaluate := func(level reclaim.Level) reclaim.Directive {
		c.advance(time.Second)
		d, _ := p.Evaluate(level, mi, procfs.Vmstat{}, false, noMargins)
		return d
	}

	for i, want := range []uint64{100, 100, 100, 200, 400, 800} {
		require.Equal(t, reclaim.Critical(want*MiB), evaluate(reclaim.LevelCritical), "observation %d", i+1)
	}
	require.True(t, p.IsLowMemory())

	evaluate(reclaim.LevelBackground)
	require.Equal(t, reclaim.Critical(100*MiB), evaluate(reclaim.LevelCritical))
	require.Equal(t, reclaim.Critical(100*MiB), evaluate(reclaim.LevelCritical))
	require.Equal(t, reclaim.Critical(100*MiB), evaluate(reclaim.LevelCritical))
	require.Equal(t, reclaim.Critical(200*MiB), evaluate(reclaim.LevelCritical))
}

func TestSwapCap(t *testing.T) {
	cfg := cfgapi.DefaultReclaim()
	cfg.UnresponsiveTargetKB = 100 * MiB

	p, c := newPolicy(cfg)
	mi := plenty(10 * MiB)

	for i := 0; i < 3; i++ {
		c.advance(time.Second)
		d, reason := p.Evaluate(reclaim.LevelCritical, mi, procfs.Vmstat{}, false, noMargins)
		require.Equal(t, reclaim.Critical(5*MiB), d)
		require.Equal(t, reclaim.ReasonPsi, reason)
	}
}

func TestNoPressure(t *testing.T) {
	p, c := newPolicy(cfgapi.DefaultReclaim())

	c.advance(time.Second)
	d, reason := p.Evaluate(reclaim.LevelNone, plenty(GiB), procfs.Vmstat{}, false, noMargins)
	require.Equal(t, reclaim.None(), d)
	require.Equal(t, reclaim.ReasonNone, reason)
	require.False(t, p.IsLowMemory())
}

func TestThrashing(t *testing.T) {
	cfg := cfgapi.DefaultReclaim()
	cfg.ModerateTargetKB = 10 * MiB
	cfg.CriticalTargetKB = 50 * MiB
	cfg.RefaultAnonThresholdKB = 1000
	cfg.RefaultFileThresholdKB = 1000
	cfg.DirectReclaimThresholdKB = 1000

	p, c := newPolicy(cfg)
	mi := plenty(8 * GiB)
	vs := procfs.Vmstat{WorkingsetRefaultAnon: 1000, WorkingsetRefaultFile: 1000, PgstealDirect: 1000}

	// no earlier snapshot
	d, reason := p.Evaluate(reclaim.LevelBackground, mi, vs, false, noMargins)
	require.Equal(t, reclaim.Moderate(10*MiB), d)
	require.Equal(t, reclaim.ReasonStartup, reason)

	// too short a window, the snapshot is kept
	c.advance(50 * time.Millisecond)
	vs.WorkingsetRefaultAnon += 25600
	d, reason = p.Evaluate(reclaim.LevelForeground, mi, vs, false, noMargins)
	require.Equal(t, reclaim.Moderate(10*MiB), d)
	require.Equal(t, reclaim.ReasonPsi, reason)

	// 25600 pages of 4 KiB over a second, threshold 4 CPUs x 1000 KiB
	c.advance(950 * time.Millisecond)
	d, reason = p.Evaluate(reclaim.LevelBackground, mi, vs, false, noMargins)
	require.Equal(t, reclaim.Critical(102400), d)
	require.Equal(t, reclaim.ReasonRefaultAnon, reason)

	c.advance(time.Second)
	vs.WorkingsetRefaultFile += 2000
	d, reason = p.Evaluate(reclaim.LevelBackground, mi, vs, false, noMargins)
	require.Equal(t, reclaim.Critical(8000), d)
	require.Equal(t, reclaim.ReasonRefaultFile, reason)

	c.advance(2 * time.Second)
	vs.PgstealDirect += 4000
	d, reason = p.Evaluate(reclaim.LevelBackground, mi, vs, false, noMargins)
	require.Equal(t, reclaim.Critical(8000), d)
	require.Equal(t, reclaim.ReasonDirectReclaim, reason)

	// below the thresholds
	c.advance(time.Second)
	vs.WorkingsetRefaultAnon += 100
	d, reason = p.Evaluate(reclaim.LevelBackground, mi, vs, false, noMargins)
	require.Equal(t, reclaim.Moderate(10*MiB), d)
	require.Equal(t, reclaim.ReasonPsi, reason)

	c.advance(time.Second)
	d, reason = p.Evaluate(reclaim.LevelForeground, mi, vs, false, noMargins)
	require.Equal(t, reclaim.Critical(50*MiB), d)
	require.Equal(t, reclaim.ReasonPsi, reason)
}

func TestMargins(t *testing.T) {
	type testCase struct {
		name     string
		gameMode bool
		free     uint64
		want     reclaim.Directive
		reason   reclaim.Reason
	}

	// 4 GB of memory: critical margin 208000 KiB, moderate 1600000 KiB.
	margins := reclaim.DefaultMargins(4000000)
	require.Equal(t, uint64(208000), margins.CriticalKB)
	require.Equal(t, uint64(1600000), margins.ModerateKB)
	margins.ReservedFreeKB = 50000

	for _, tc := range []*testCase{
		{
			name:   "below moderate",
			free:   150000,
			want:   reclaim.Moderate(1375000),
			reason: reclaim.ReasonMargin,
		},
		{
			name:     "game mode",
			gameMode: true,
			free:     150000,
			want:     reclaim.None(),
			reason:   reclaim.ReasonNone,
		},
		{
			name:   "below critical",
			free:   60000,
			want:   reclaim.Critical(73000),
			reason: reclaim.ReasonMargin,
		},
		{
			name:   "above margins",
			free:   1800000,
			want:   reclaim.None(),
			reason: reclaim.ReasonNone,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newPolicy(cfgapi.DefaultReclaim())
			mi := procfs.MemInfo{
				TotalKB:      4000000,
				FreeKB:       tc.free,
				ActiveAnonKB: 500000,
				SwapTotalKB:  4000000,
				SwapFreeKB:   1000000,
			}
			// available: free - reserved + min(anon, swap free) / 4
			d, reason := p.Evaluate(reclaim.LevelNone, mi, procfs.Vmstat{}, tc.gameMode, margins)
			require.Equal(t, tc.want, d)
			require.Equal(t, tc.reason, reason)
		})
	}
}

func TestMarginsCappedBySwap(t *testing.T) {
	p, _ := newPolicy(cfgapi.DefaultReclaim())
	margins := reclaim.Margins{CriticalKB: 100000, ModerateKB: 500000}
	mi := procfs.MemInfo{
		TotalKB:     1000000,
		FreeKB:      10000,
		SwapTotalKB: 100000,
		SwapFreeKB:  80000,
	}

	d, reason := p.Evaluate(reclaim.LevelNone, mi, procfs.Vmstat{}, false, margins)
	require.Equal(t, reclaim.Critical(10000), d)
	require.Equal(t, reclaim.ReasonMargin, reason)
}

func TestBackgroundAvailable(t *testing.T) {
	mi := procfs.MemInfo{
		FreeKB:         100000,
		ActiveFileKB:   60000,
		InactiveFileKB: 40000,
		DirtyKB:        20000,
		ActiveAnonKB:   300000,
		InactiveAnonKB: 100000,
		SwapFreeKB:     200000,
	}

	// 100000 - 30000 + (100000 - 20000) + 200000 / 4
	require.Equal(t, uint64(200000), reclaim.BackgroundAvailableKB(mi, 30000, 4))
	require.Equal(t, uint64(150000), reclaim.BackgroundAvailableKB(mi, 30000, 0))
	require.Equal(t, uint64(80000), reclaim.BackgroundAvailableKB(mi, 200000, 0))
}

func TestParseLevel(t *testing.T) {
	l, err := reclaim.ParseLevel("Foreground")
	require.NoError(t, err)
	require.Equal(t, reclaim.LevelForeground, l)

	_, err = reclaim.ParseLevel("urgent")
	require.Error(t, err)
}
