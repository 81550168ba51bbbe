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

package monitor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	model "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/common"
	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/memory"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/memory/monitor"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/memory/reclaim"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/procfs"
)

type fakeSource struct {
	mi       procfs.MemInfo
	vs       procfs.Vmstat
	psi      procfs.Pressure
	reserved uint64
	err      error
}

func (f *fakeSource) MemInfo() (procfs.MemInfo, error) { return f.mi, nil }
func (f *fakeSource) Vmstat() (procfs.Vmstat, error) { return f.vs, nil }
func (f *fakeSource) MemoryPressure() (procfs.Pressure, error) { return f.psi, f.err }
func (f *fakeSource) ReservedFreeKB() (uint64, error) { return f.reserved, nil }

func newSource() *fakeSource {
	return &fakeSource{
		mi: procfs.MemInfo{
			TotalKB:     8 * 1024 * 1024,
			FreeKB:      6 * 1024 * 1024,
			SwapTotalKB: 8 * 1024 * 1024,
			SwapFreeKB:  4 * 1024 * 1024,
		},
		reserved: 65536,
	}
}

func TestPressureLevel(t *testing.T) {
	type testCase struct {
		avg10    float64
		expected reclaim.Level
	}

	thresholds := cfgapi.DefaultPressure()
	for _, tc := range []*testCase{
		{avg10: 0, expected: reclaim.LevelNone},
		{avg10: 4.99, expected: reclaim.LevelNone},
		{avg10: 5, expected: reclaim.LevelBackground},
		{avg10: 19.5, expected: reclaim.LevelBackground},
		{avg10: 20, expected: reclaim.LevelForeground},
		{avg10: 50, expected: reclaim.LevelCritical},
		{avg10: 100, expected: reclaim.LevelCritical},
	} {
		level := monitor.PressureLevel(thresholds, procfs.Pressure{SomeAvg10: tc.avg10})
		require.Equal(t, tc.expected, level, "avg10 %v", tc.avg10)
	}
}

func TestPoll(t *testing.T) {
	var (
		src      = newSource()
		received []reclaim.Directive
	)

	m, err := monitor.New(nil, src, 4, 4096,
		monitor.WithHandler(func(d reclaim.Directive, _ reclaim.Reason) {
			received = append(received, d)
		}),
	)
	require.NoError(t, err)

	margins := m.Margins()
	require.Equal(t, uint64(65536), margins.ReservedFreeKB)
	require.Equal(t, uint64(8*1024*1024*520/10000), margins.CriticalKB)

	d, reason, err := m.Poll()
	require.NoError(t, err)
	require.Equal(t, reclaim.None(), d)
	require.Equal(t, reclaim.ReasonNone, reason)
	require.False(t, m.IsLowMemory())

	src.psi.SomeAvg10 = 75
	d, reason, err = m.Poll()
	require.NoError(t, err)
	require.Equal(t, reclaim.Critical(100*1024), d)
	require.Equal(t, reclaim.ReasonPsi, reason)
	require.True(t, m.IsLowMemory())

	require.Equal(t, []reclaim.Directive{reclaim.None(), reclaim.Critical(100 * 1024)}, received)

	src.err = errors.New("no psi")
	_, _, err = m.Poll()
	require.Error(t, err)
}

func TestCollector(t *testing.T) {
	src := newSource()
	m, err := monitor.New(nil, src, 4, 4096)
	require.NoError(t, err)

	src.psi.SomeAvg10 = 60
	_, _, err = m.Poll()
	require.NoError(t, err)
	_, _, err = m.Poll()
	require.NoError(t, err)

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(m.Collector()))

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*model.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}

	require.Equal(t, 3.0, byName["psi_level"].GetMetric()[0].GetGauge().GetValue())

	targets := map[string]float64{}
	for _, metric := range byName["reclaim_target_kb"].GetMetric() {
		targets[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
	}
	require.Equal(t, map[string]float64{"moderate": 0, "critical": 100 * 1024}, targets)

	events := byName["reclaim_events_total"].GetMetric()
	require.Len(t, events, 1)
	require.Equal(t, "psi", events[0].GetLabel()[0].GetValue())
	require.Equal(t, 2.0, events[0].GetCounter().GetValue())

	require.Equal(t, reclaim.Critical(100*1024), m.Collector().Last())
}

func TestSetConfig(t *testing.T) {
	src := newSource()
	m, err := monitor.New(nil, src, 4, 4096)
	require.NoError(t, err)

	cfg := cfgapi.Default()
	cfg.Reclaim.UnresponsiveTargetKB = 1024
	cfg.Margins.CriticalKB = 4096
	require.NoError(t, m.SetConfig(cfg))

	margins := m.Margins()
	require.Equal(t, uint64(4096), margins.CriticalKB)
	require.Equal(t, uint64(65536), margins.ReservedFreeKB)

	src.psi.SomeAvg10 = 90
	d, _, err := m.Poll()
	require.NoError(t, err)
	require.Equal(t, reclaim.Critical(1024), d)

	cfg.Pressure = cfgapi.Pressure{Background: 50, Foreground: 10, Critical: 60}
	require.Error(t, m.SetConfig(cfg))
}

func TestInvalidConfig(t *testing.T) {
	cfg := cfgapi.Default()
	cfg.Margins.CriticalBps = 5000
	cfg.Margins.ModerateBps = 1000

	_, err := monitor.New(cfg, newSource(), 4, 4096)
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	var (
		src  = newSource()
		seen = make(chan reclaim.Directive, 1)
	)

	src.psi.SomeAvg10 = 25

	cfg := cfgapi.Default()
	cfg.PollInterval = common.NewDuration(10 * time.Millisecond)

	m, err := monitor.New(cfg, src, 4, 4096,
		monitor.WithHandler(func(d reclaim.Directive, _ reclaim.Reason) {
			select {
			case seen <- d:
			default:
			}
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- m.Run(ctx)
	}()

	select {
	case d := <-seen:
		require.Equal(t, reclaim.TagModerate, d.Tag)
	case <-time.After(5 * time.Second):
		t.Fatal("no directive issued")
	}

	cancel()
	require.NoError(t, <-done)
}
