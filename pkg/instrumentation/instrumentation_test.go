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

package instrumentation_test

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/require"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/instrumentation"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/instrumentation"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/metrics"
)

func TestPrometheusConfiguration(t *testing.T) {
	metrics.MustRegister("instrumentation_test", prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "instrumentation_test",
		Help: "Gauge for instrumentation tests.",
	}), metrics.WithGroup("test"))

	cfg := &cfgapi.Config{
		HTTPEndpoint: "127.0.0.1:0",
	}
	require.NoError(t, instrumentation.Start(cfg))
	defer instrumentation.Stop()

	address := instrumentation.HTTPServer().GetAddress()
	checkPrometheus(t, address, false)
	checkHealthz(t, address)

	cfg = &cfgapi.Config{
		HTTPEndpoint:     address,
		PrometheusExport: true,
	}
	require.NoError(t, instrumentation.Reconfigure(cfg))
	checkPrometheus(t, address, true)
	checkHealthz(t, address)

	cfg = &cfgapi.Config{
		HTTPEndpoint:     address,
		PrometheusExport: false,
	}
	require.NoError(t, instrumentation.Reconfigure(cfg))
	checkPrometheus(t, address, false)
}

func checkPrometheus(t *testing.T, server string, enabled bool) {
	rpl, err := http.Get("http://" + server + "/metrics")
	require.NoError(t, err)
	defer rpl.Body.Close()

	if !enabled {
		require.Equal(t, http.StatusNotFound, rpl.StatusCode)
		return
	}

	require.Equal(t, http.StatusOK, rpl.StatusCode)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(rpl.Body)
	require.NoError(t, err)
	require.Contains(t, families, "memd_test_instrumentation_test")
	require.Equal(t, dto.MetricType_GAUGE, families["memd_test_instrumentation_test"].GetType())
}

func checkHealthz(t *testing.T, server string) {
	rpl, err := http.Get("http://" + server + "/healthz")
	require.NoError(t, err)
	defer rpl.Body.Close()
	require.Equal(t, http.StatusOK, rpl.StatusCode)
}
