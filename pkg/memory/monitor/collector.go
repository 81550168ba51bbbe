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
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/memory/reclaim"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/procfs"
)

// Collector exports the state of the monitor as prometheus metrics.
type Collector struct {
	sync.Mutex
	target  *prometheus.GaugeVec
	level   prometheus.Gauge
	psi     *prometheus.GaugeVec
	events  *prometheus.CounterVec
	current reclaim.Directive
}

// NewCollector creates a collector for the monitor.
func NewCollector() *Collector {
	return &Collector{
		target: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reclaim_target_kb",
				Help: "Memory to reclaim in KiB, by urgency of the last directive.",
			},
			[]string{"level"},
		),
		level: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "psi_level",
				Help: "Memory pressure level: 0 none, 1 background, 2 foreground, 3 critical.",
			},
		),
		psi: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "psi_avg10_percent",
				Help: "Memory pressure stall average over 10 seconds.",
			},
			[]string{"kind"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reclaim_events_total",
				Help: "Number of directives asking for reclaim, by reason.",
			},
			[]string{"reason"},
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.target.Describe(ch)
	c.level.Describe(ch)
	c.psi.Describe(ch)
	c.events.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.Lock()
	defer c.Unlock()

	c.target.Collect(ch)
	c.level.Collect(ch)
	c.psi.Collect(ch)
	c.events.Collect(ch)
}

// Last returns the last directive recorded.
func (c *Collector) Last() reclaim.Directive {
	c.Lock()
	defer c.Unlock()
	return c.current
}

func (c *Collector) update(level reclaim.Level, psi procfs.Pressure, d reclaim.Directive, reason reclaim.Reason) {
	c.Lock()
	defer c.Unlock()

	c.current = d
	c.level.Set(float64(level))
	c.psi.WithLabelValues("some").Set(psi.SomeAvg10)
	c.psi.WithLabelValues("full").Set(psi.FullAvg10)

	moderate, critical := 0.0, 0.0
	switch d.Tag {
	case reclaim.TagModerate:
		moderate = float64(d.TargetKB)
	case reclaim.TagCritical:
		critical = float64(d.TargetKB)
	}
	c.target.WithLabelValues("moderate").Set(moderate)
	c.target.WithLabelValues("critical").Set(critical)

	if !d.IsNone() {
		c.events.WithLabelValues(reason.String()).Inc()
	}
}
