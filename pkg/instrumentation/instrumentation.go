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

package instrumentation

import (
	"fmt"
	"sync"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/instrumentation"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/healthz"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/http"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/instrumentation/tracing"
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/metrics"
)

const (
	// Namespace prefixes the names of exported metrics.
	Namespace = "memd"
	// ServiceName is the service name reported in traces.
	ServiceName = "memd"
)

var (
	// Our runtime configuration.
	cfg = &cfgapi.Config{}
	// Lock to protect against reconfiguration.
	lock sync.RWMutex
	// Our HTTP server instance.
	srv = http.NewServer()
	// Our logger instance.
	log = logger.NewLogger("instrumentation")
	// healthz is set up once, its handler survives restarts.
	healthzOnce sync.Once
)

// HTTPServer returns our HTTP server.
func HTTPServer() *http.Server {
	return srv
}

// Start our instrumentation services.
func Start(c *cfgapi.Config) error {
	log.Info("starting instrumentation services...")

	lock.Lock()
	defer lock.Unlock()

	if c != nil {
		cfg = c
	}
	return start()
}

// Stop our instrumentation services.
func Stop() {
	lock.Lock()
	defer lock.Unlock()

	stop()
}

// Reconfigure our instrumentation services.
func Reconfigure(newCfg *cfgapi.Config) error {
	lock.Lock()
	defer lock.Unlock()

	cfg = newCfg
	stop()

	err := start()
	if err != nil {
		log.Error("failed to restart instrumentation: %v", err)
	}
	return err
}

func start() error {
	healthzOnce.Do(func() { healthz.Setup(srv.GetMux()) })

	if err := srv.Start(cfg.HTTPEndpoint); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	err := tracing.Start(
		tracing.WithServiceName(ServiceName),
		tracing.WithCollectorEndpoint(cfg.TracingCollector),
		tracing.WithSamplingRatio(cfg.SamplingRatePerMillion.Ratio()),
	)
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}

	if !cfg.PrometheusExport {
		log.Info("Prometheus /metrics export is disabled")
		return nil
	}

	enabled := cfg.Metrics
	if len(enabled) == 0 {
		enabled = []string{"*"}
	}

	g, err := metrics.NewGatherer(
		metrics.WithNamespace(Namespace),
		metrics.WithMetrics(enabled),
	)
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}

	srv.GetMux().Handle("/metrics", g.Handler())

	return nil
}

func stop() {
	tracing.Stop()
	srv.GetMux().Unregister("/metrics")
	srv.Stop()
}
