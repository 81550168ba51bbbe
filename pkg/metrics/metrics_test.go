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

package metrics_test

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/metrics"
)

func TestPrefixes(t *testing.T) {
	r := metrics.NewRegistry()

	newTestGauge(t, r, "plain", 1, metrics.WithCollectorOptions(metrics.WithoutPrefix()))
	newTestGauge(t, r, "grouped", 2)
	newTestGauge(t, r, "reclaim_kb", 3, metrics.WithGroup("memory"))

	types, values := collect(t, r, metrics.WithNamespace("memd"), metrics.WithMetrics([]string{"*"}))
	require.True(t, types.has("plain gauge"))
	require.Equal(t, "1", values.get("plain"))
	require.Equal(t, "2", values.get("memd_default_grouped"))
	require.Equal(t, "3", values.get("memd_memory_reclaim_kb"))
}

func TestConfiguration(t *testing.T) {
	r := metrics.NewRegistry()

	newTestGauge(t, r, "a", 1, metrics.WithGroup("memory"))
	newTestGauge(t, r, "b", 2, metrics.WithGroup("memory"))
	newTestGauge(t, r, "c", 3, metrics.WithGroup("qos"))

	require.Equal(t, []string{"memory/a", "memory/b", "qos/c"}, r.Collectors())

	type testCase struct {
		name     string
		enabled  []string
		expected []string
		missing  []string
	}

	for _, tc := range []*testCase{
		{
			name:     "all",
			enabled:  []string{"*"},
			expected: []string{"memory_a", "memory_b", "qos_c"},
		},
		{
			name:     "by group",
			enabled:  []string{"memory"},
			expected: []string{"memory_a", "memory_b"},
			missing:  []string{"qos_c"},
		},
		{
			name:     "by full name",
			enabled:  []string{"memory/b", "qos/*"},
			expected: []string{"memory_b", "qos_c"},
			missing:  []string{"memory_a"},
		},
		{
			name:    "none",
			missing: []string{"memory_a", "memory_b", "qos_c"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, values := collect(t, r, metrics.WithMetrics(tc.enabled))
			for _, name := range tc.expected {
				require.NotEmpty(t, values.get(name), name)
			}
			for _, name := range tc.missing {
				require.Empty(t, values.get(name), name)
			}
		})
	}

	_, err := r.NewGatherer(metrics.WithMetrics([]string{"cpu"}))
	require.Error(t, err)
}

func TestDuplicateRegistration(t *testing.T) {
	r := metrics.NewRegistry()
	newTestGauge(t, r, "a", 1)
	require.Error(t, r.Register("a", prometheus.NewGauge(prometheus.GaugeOpts{Name: "a", Help: "a"})))
}

func newTestGauge(t *testing.T, r *metrics.Registry, name string, value float64, options ...metrics.RegisterOption) prometheus.Gauge {
	g := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: name,
			Help: "Test gauge " + name,
		},
	)
	g.Set(value)
	require.NoError(t, r.Register(name, g, options...))
	return g
}

type described []string

func (d described) has(entry string) bool {
	for _, e := range d {
		if e == entry {
			return true
		}
	}
	return false
}

type collected []string

func (c collected) get(name string) string {
	for _, e := range c {
		split := strings.SplitN(e, " ", 2)
		if len(split) == 2 && split[0] == name {
			return split[1]
		}
	}
	return ""
}

func collect(t *testing.T, r *metrics.Registry, opts ...metrics.GathererOption) (described, collected) {
	g, err := r.NewGatherer(opts...)
	require.NoError(t, err)

	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var (
		types   described
		values  collected
		scanner = bufio.NewScanner(resp.Body)
	)

	for scanner.Scan() {
		e := scanner.Text()
		switch {
		case strings.HasPrefix(e, "# TYPE "):
			types = append(types, strings.TrimPrefix(e, "# TYPE "))
		case strings.HasPrefix(e, "#"):
		default:
			values = append(values, e)
		}
	}

	return types, values
}
