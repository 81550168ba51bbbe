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

package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/memory"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/instrumentation/tracing"
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/memory/reclaim"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/procfs"
)

const (
	// DefaultPollInterval is the interval between evaluations if none is
	// configured.
	DefaultPollInterval = time.Second
	// warnInterval rate-limits repeated pressure warnings.
	warnInterval = 30 * time.Second
)

var log = logger.NewLogger("memory-monitor")

// Source provides the kernel memory statistics the monitor samples.
// *procfs.FS implements it.
type Source interface {
	MemInfo() (procfs.MemInfo, error)
	Vmstat() (procfs.Vmstat, error)
	MemoryPressure() (procfs.Pressure, error)
	ReservedFreeKB() (uint64, error)
}

// Handler is called with every directive issued by the monitor.
type Handler func(reclaim.Directive, reclaim.Reason)

// Monitor periodically samples memory statistics, evaluates the reclaim
// policy and hands the resulting directives to a handler.
type Monitor struct {
	sync.Mutex
	cfg        *cfgapi.Config
	src        Source
	policy     *reclaim.Policy
	margins    reclaim.Margins
	totalKB    uint64
	handler    Handler
	stats      *Collector
	warn       logger.Logger
	policyOpts []reclaim.Option
}

// Option is an option for a Monitor.
type Option func(*Monitor)

// WithHandler sets the handler for issued directives.
func WithHandler(h Handler) Option {
	return func(m *Monitor) {
		m.handler = h
	}
}

// WithPolicyOptions passes options to the reclaim policy.
func WithPolicyOptions(opts ...reclaim.Option) Option {
	return func(m *Monitor) {
		m.policyOpts = append(m.policyOpts, opts...)
	}
}

// New creates a monitor sampling src on a system with the given number
// of online CPUs and page size.
func New(cfg *cfgapi.Config, src Source, cpus int, pageSize uint64, opts ...Option) (*Monitor, error) {
	if cfg == nil {
		cfg = cfgapi.Default()
	}
	c := *cfg
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, monitorError("invalid configuration: %w", err)
	}

	mi, err := src.MemInfo()
	if err != nil {
		return nil, monitorError("failed to get total memory: %w", err)
	}

	m := &Monitor{
		cfg:     &c,
		src:     src,
		totalKB: mi.TotalKB,
		stats:   NewCollector(),
		warn:    logger.RateLimit(log, logger.Interval(warnInterval)),
	}
	for _, o := range opts {
		o(m)
	}

	m.policy = reclaim.NewPolicy(c.Reclaim, cpus, pageSize, m.policyOpts...)
	m.margins = reclaim.MarginsFromConfig(&c.Margins, m.totalKB)
	m.margins.ReservedFreeKB = m.reservedFreeKB()

	log.Info("memory margins: critical %d KiB, moderate %d KiB, reserved %d KiB",
		m.margins.CriticalKB, m.margins.ModerateKB, m.margins.ReservedFreeKB)

	return m, nil
}

func (m *Monitor) reservedFreeKB() uint64 {
	kb, err := m.src.ReservedFreeKB()
	if err != nil {
		log.Warn("failed to get reserved free memory, assuming none: %v", err)
		return 0
	}
	return kb
}

// SetConfig updates the configuration of a running monitor. The poll
// interval takes effect on the next Run.
func (m *Monitor) SetConfig(cfg *cfgapi.Config) error {
	c := *cfg
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return monitorError("invalid configuration: %w", err)
	}

	m.Lock()
	defer m.Unlock()

	reserved := m.margins.ReservedFreeKB
	m.cfg = &c
	m.policy.SetConfig(c.Reclaim)
	m.margins = reclaim.MarginsFromConfig(&c.Margins, m.totalKB)
	m.margins.ReservedFreeKB = reserved

	log.Info("configuration updated")

	return nil
}

// Margins returns the memory margins in use.
func (m *Monitor) Margins() reclaim.Margins {
	m.Lock()
	defer m.Unlock()
	return m.margins
}

// Collector returns the prometheus collector of the monitor.
func (m *Monitor) Collector() *Collector {
	return m.stats
}

// IsLowMemory returns true if the last evaluation asked for reclaim.
func (m *Monitor) IsLowMemory() bool {
	m.Lock()
	defer m.Unlock()
	return m.policy.IsLowMemory()
}

// PressureLevel classifies a memory pressure sample.
func PressureLevel(thresholds cfgapi.Pressure, p procfs.Pressure) reclaim.Level {
	switch avg := p.SomeAvg10; {
	case avg >= thresholds.Critical:
		return reclaim.LevelCritical
	case avg >= thresholds.Foreground:
		return reclaim.LevelForeground
	case avg >= thresholds.Background:
		return reclaim.LevelBackground
	}
	return reclaim.LevelNone
}

// Poll samples the memory statistics once and evaluates the policy.
func (m *Monitor) Poll() (reclaim.Directive, reclaim.Reason, error) {
	m.Lock()
	defer m.Unlock()

	psi, err := m.src.MemoryPressure()
	if err != nil {
		return reclaim.None(), reclaim.ReasonNone, monitorError("failed to sample: %w", err)
	}
	mi, err := m.src.MemInfo()
	if err != nil {
		return reclaim.None(), reclaim.ReasonNone, monitorError("failed to sample: %w", err)
	}
	vs, err := m.src.Vmstat()
	if err != nil {
		return reclaim.None(), reclaim.ReasonNone, monitorError("failed to sample: %w", err)
	}

	level := PressureLevel(m.cfg.Pressure, psi)
	d, reason := m.policy.Evaluate(level, mi, vs, m.cfg.GameMode, m.margins)

	m.stats.update(level, psi, d, reason)

	if d.Tag == reclaim.TagCritical {
		m.warn.Warn("critical memory pressure (%s, some avg10 %.2f%%): %s", reason, psi.SomeAvg10, d)
	}
	if m.handler != nil {
		m.handler(d, reason)
	}

	return d, reason, nil
}

// Run polls until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.Lock()
	interval := m.cfg.PollInterval.Get(DefaultPollInterval)
	m.Unlock()

	log.Info("polling memory pressure every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return nil
		case <-ticker.C:
			_, span := tracing.StartSpan(ctx, "memory.poll")
			d, reason, err := m.Poll()
			if err != nil {
				m.warn.Error("%v", err)
			}
			span.SetAttributes(
				tracing.Attribute("directive", d),
				tracing.Attribute("reason", reason),
			)
			span.End(err)
		}
	}
}

func monitorError(format string, args ...interface{}) error {
	return fmt.Errorf("memory monitor: "+format, args...)
}
