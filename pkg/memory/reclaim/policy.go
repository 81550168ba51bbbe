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

package reclaim

import (
	"math"
	"math/bits"
	"time"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/memory"
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/procfs"
)

const (
	// MinVmstatWindow is the shortest interval over which vmstat deltas are
	// trusted.
	MinVmstatWindow = 100 * time.Millisecond

	historySize = 3
)

var log = logger.Get("reclaim")

// Margins are the free memory margins, in KiB, below which memory is
// reclaimed regardless of pressure.
type Margins struct {
	CriticalKB uint64
	ModerateKB uint64
	// ReservedFreeKB is the memory the kernel keeps free for itself.
	ReservedFreeKB uint64
	// RamSwapWeight discounts swappable anonymous memory when estimating
	// available memory. Zero ignores anonymous memory.
	RamSwapWeight uint64
}

// MarginsFromConfig computes the margins for a system with totalKB of
// memory.
func MarginsFromConfig(cfg *cfgapi.Margins, totalKB uint64) Margins {
	m := Margins{
		CriticalKB:    totalKB * uint64(cfg.CriticalBps) / 10000,
		ModerateKB:    totalKB * uint64(cfg.ModerateBps) / 10000,
		RamSwapWeight: cfg.RamSwapWeight,
	}
	if cfg.CriticalKB != 0 {
		m.CriticalKB = cfg.CriticalKB
	}
	if cfg.ModerateKB != 0 {
		m.ModerateKB = cfg.ModerateKB
	}
	return m
}

// DefaultMargins returns the default margins for a system with totalKB of
// memory.
func DefaultMargins(totalKB uint64) Margins {
	return MarginsFromConfig(&cfgapi.Default().Margins, totalKB)
}

// BackgroundAvailableKB estimates how much memory could be made available
// without hurting the foreground: free memory above the kernel reserve,
// clean page cache, and a discounted share of swappable anonymous memory.
func BackgroundAvailableKB(mi procfs.MemInfo, reservedFreeKB, ramSwapWeight uint64) uint64 {
	var (
		file  = mi.FileKB()
		dirty = min(mi.DirtyKB, file)
		avail = file - dirty
	)

	if mi.FreeKB > reservedFreeKB {
		avail += mi.FreeKB - reservedFreeKB
	}
	if ramSwapWeight > 0 {
		avail += min(mi.AnonKB(), mi.SwapFreeKB) / ramSwapWeight
	}

	return avail
}

// Policy turns memory pressure observations into reclaim directives.
type Policy struct {
	cfg      cfgapi.Reclaim
	cpus     uint64
	pageSize uint64
	now      func() time.Time

	last       Directive
	lastVmstat *procfs.Vmstat
	lastTime   time.Time
	history    [historySize]Level
	next       int
	multiplier uint64
}

// Option is an option for a Policy.
type Option func(*Policy)

// WithClock sets the clock used to time vmstat deltas.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		p.now = now
	}
}

// NewPolicy creates a policy for a system with the given number of online
// CPUs and page size.
func NewPolicy(cfg cfgapi.Reclaim, cpus int, pageSize uint64, options ...Option) *Policy {
	p := &Policy{
		cfg:        cfg,
		cpus:       uint64(max(cpus, 1)),
		pageSize:   pageSize,
		now:        time.Now,
		multiplier: 1,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// SetConfig updates the reclaim targets and thresholds.
func (p *Policy) SetConfig(cfg cfgapi.Reclaim) {
	p.cfg = cfg
}

// Last returns the last directive issued.
func (p *Policy) Last() Directive {
	return p.last
}

// IsLowMemory returns true if the last directive asked for reclaim.
func (p *Policy) IsLowMemory() bool {
	return !p.last.IsNone()
}

// Evaluate returns the reclaim directive for the current pressure level
// and memory statistics, with the reason it was issued.
func (p *Policy) Evaluate(level Level, mi procfs.MemInfo, vs procfs.Vmstat, gameMode bool, margins Margins) (Directive, Reason) {
	var (
		now     = p.now()
		elapsed = now.Sub(p.lastTime)
		trusted = p.lastVmstat != nil && elapsed >= MinVmstatWindow
	)

	d, reason := p.pressureReclaim(level, vs, elapsed, trusted)
	if m := marginReclaim(mi, gameMode, margins); m.Compare(d) > 0 {
		d, reason = m, ReasonMargin
	}
	d = d.capped(mi.SwapUsedKB() / 2)

	if p.lastVmstat == nil || elapsed >= MinVmstatWindow {
		snapshot := vs
		p.lastVmstat = &snapshot
		p.lastTime = now
	}
	p.history[p.next] = level
	p.next = (p.next + 1) % historySize
	p.last = d

	if !d.IsNone() {
		log.Debug("%s pressure: %s (%s)", level, d, reason)
	}

	return d, reason
}

func (p *Policy) pressureReclaim(level Level, vs procfs.Vmstat, elapsed time.Duration, trusted bool) (Directive, Reason) {
	if level != LevelCritical {
		p.multiplier = 1
	}

	switch level {
	case LevelNone:
		return None(), ReasonNone

	case LevelCritical:
		if p.sustainedCritical() {
			p.multiplier = saturatingMul(p.multiplier, 2)
		} else {
			p.multiplier = 1
		}
		return Critical(saturatingMul(p.cfg.UnresponsiveTargetKB, p.multiplier)), ReasonPsi
	}

	if !trusted {
		if p.lastVmstat == nil {
			return Moderate(p.cfg.ModerateTargetKB), ReasonStartup
		}
		return Moderate(p.cfg.ModerateTargetKB), ReasonPsi
	}

	last := p.lastVmstat
	for _, t := range []struct {
		cur, prev, threshold uint64
		reason               Reason
	}{
		{vs.WorkingsetRefaultAnon, last.WorkingsetRefaultAnon, p.cfg.RefaultAnonThresholdKB, ReasonRefaultAnon},
		{vs.WorkingsetRefaultFile, last.WorkingsetRefaultFile, p.cfg.RefaultFileThresholdKB, ReasonRefaultFile},
		{vs.PgstealDirect, last.PgstealDirect, p.cfg.DirectReclaimThresholdKB, ReasonDirectReclaim},
	} {
		rate := p.ratePerSecondKB(t.cur, t.prev, elapsed)
		if rate > saturatingMul(t.threshold, p.cpus) {
			return Critical(rate), t.reason
		}
	}

	if level == LevelForeground {
		return Critical(p.cfg.CriticalTargetKB), ReasonPsi
	}
	return Moderate(p.cfg.ModerateTargetKB), ReasonPsi
}

// sustainedCritical returns true if the last observed levels were all
// critical.
func (p *Policy) sustainedCritical() bool {
	for _, l := range p.history {
		if l != LevelCritical {
			return false
		}
	}
	return true
}

// ratePerSecondKB converts a page counter delta to KiB per second.
func (p *Policy) ratePerSecondKB(cur, prev uint64, elapsed time.Duration) uint64 {
	if cur <= prev || elapsed <= 0 {
		return 0
	}
	kb := (cur - prev) * p.pageSize / 1024
	return uint64(float64(kb) / elapsed.Seconds())
}

func marginReclaim(mi procfs.MemInfo, gameMode bool, m Margins) Directive {
	var (
		avail    = BackgroundAvailableKB(mi, m.ReservedFreeKB, m.RamSwapWeight)
		moderate = m.ModerateKB
	)

	if gameMode {
		moderate = m.CriticalKB
	}

	switch {
	case avail < m.CriticalKB:
		return Critical(m.CriticalKB - avail)
	case avail < moderate:
		return Moderate(moderate - avail)
	}
	return None()
}

func saturatingMul(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}
