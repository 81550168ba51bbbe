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

package v1alpha1_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/memory"
)

func TestParseMemdConfig(t *testing.T) {
	cfg, err := cfgapi.ParseMemdConfig([]byte(`
log:
  debug:
    - monitor
instrumentation:
  httpEndpoint: ":8891"
  prometheusExport: true
memory:
  pollInterval: 500ms
  reclaim:
    unresponsiveTargetKB: 204800
  gameMode: true
qos:
  statePath: /tmp/qos
`))
	require.NoError(t, err)
	require.Equal(t, []string{"monitor"}, cfg.Log.Debug)
	require.True(t, cfg.Instrumentation.PrometheusExport)
	require.Equal(t, 500*time.Millisecond, cfg.Memory.PollInterval.Duration)
	require.Equal(t, uint64(204800), cfg.Memory.Reclaim.UnresponsiveTargetKB)
	require.Equal(t, memory.DefaultReclaim().ModerateTargetKB, cfg.Memory.Reclaim.ModerateTargetKB)
	require.Equal(t, memory.DefaultPressure(), cfg.Memory.Pressure)
	require.True(t, cfg.Memory.GameMode)
	require.Equal(t, "/tmp/qos", cfg.QoS.GetStatePath())

	_, err = cfgapi.ParseMemdConfig([]byte("memory:\n  unknownField: 1\n"))
	require.Error(t, err, "unknown fields rejected")

	_, err = cfgapi.ParseMemdConfig([]byte("memory:\n  pressure:\n    background: 50\n    foreground: 20\n    critical: 10\n"))
	require.Error(t, err, "descending thresholds rejected")
}

func TestLoadVmcConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 10s\nexportTimeout: 1h\ndevMode: true\n"), 0644))

	cfg, err := cfgapi.LoadVmcConfig(path)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, cfg.GetTimeout())
	require.Equal(t, time.Hour, cfg.GetExportTimeout())
	require.Equal(t, 80*time.Second, cfg.GetTremplinTimeout())
	require.True(t, cfg.DevMode)

	_, err = cfgapi.LoadVmcConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
