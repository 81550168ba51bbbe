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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/config/watch"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/healthz"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/instrumentation"
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/memory/monitor"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/memory/reclaim"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/metrics"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/metrics/collectors"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/procfs"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/qos/store"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/sysfs"
)

var (
	log *logrus.Logger

	errLowMemory = errors.New("free memory below the critical margin")

	// Set at build time.
	version = "unknown"
	build   = "unknown"
)

type service struct {
	cfg     *cfgapi.MemdConfig
	monitor *monitor.Monitor
	qos     *store.Locked
}

func (d *service) onDirective(dir reclaim.Directive, reason reclaim.Reason) {
	if dir.IsNone() {
		return
	}
	log.WithFields(logrus.Fields{
		"directive": dir,
		"reason":    reason,
	}).Debug("reclaim directive")
}

func (d *service) healthCheck() (healthz.Status, error) {
	if d.monitor.IsLowMemory() {
		return healthz.Degraded, errLowMemory
	}
	return healthz.Healthy, nil
}

// serveQoS dumps the stored QoS state.
func (d *service) serveQoS(w http.ResponseWriter, _ *http.Request) {
	type entry struct {
		PID       uint32 `json:"pid"`
		TID       uint32 `json:"tid,omitempty"`
		State     string `json:"state"`
		Starttime uint64 `json:"starttime"`
	}
	entries := []entry{}
	d.qos.ForEach(func(e store.Entry) bool {
		state := store.ThreadState(e.State).String()
		if e.IsProcess() {
			state = store.ProcessState(e.State).String()
		}
		entries = append(entries, entry{PID: e.PID, TID: e.TID, State: state, Starttime: e.Starttime})
		return true
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		log.Errorf("failed to write QoS state: %v", err)
	}
}

// reconfigure applies an updated configuration.
func (d *service) reconfigure(cfg *cfgapi.MemdConfig) {
	log.Infof("applying updated configuration")
	notify(sdReloading)
	defer notify(sdReady)

	if err := logger.Configure(&cfg.Log); err != nil {
		log.Errorf("failed to update logging configuration: %v", err)
	}
	if err := d.monitor.SetConfig(&cfg.Memory); err != nil {
		log.Errorf("failed to update memory configuration: %v", err)
	}
	if err := instrumentation.Reconfigure(&cfg.Instrumentation); err != nil {
		log.Errorf("failed to update instrumentation: %v", err)
	}
	if cfg.QoS.GetStatePath() != d.cfg.QoS.GetStatePath() {
		log.Warnf("QoS state path change to %s takes effect after a restart", cfg.QoS.GetStatePath())
	}
	d.cfg = cfg
}

func (d *service) watchConfig(ctx context.Context, path string) error {
	w, err := watch.File(path, cfgapi.ParseMemdConfig)
	if err != nil {
		return err
	}
	go func() {
		defer w.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.ResultChan():
				if !ok {
					return
				}
				switch e.Type {
				case watch.Added:
					d.reconfigure(e.Object)
				case watch.Deleted:
					log.Warnf("configuration file %s removed, keeping current configuration", path)
				case watch.Error:
					log.Errorf("configuration watch failed: %v", e.Err)
					return
				}
			}
		}
	}()
	return nil
}

func main() {
	var (
		configFile  string
		verbose     bool
		veryVerbose bool
	)

	log = logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{
		PadLevelText: true,
	})

	flag.StringVar(&configFile, "config", "", "configuration file name")
	flag.BoolVar(&verbose, "v", false, "verbose output")
	flag.BoolVar(&veryVerbose, "vv", false, "very verbose output")
	flag.Parse()

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if veryVerbose {
		log.SetLevel(logrus.TraceLevel)
	}

	cfg := cfgapi.DefaultMemdConfig()
	if configFile != "" {
		c, err := cfgapi.LoadMemdConfig(configFile)
		if err != nil {
			log.Fatalf("error loading configuration: %v", err)
		}
		cfg = c
	}
	if err := logger.Configure(&cfg.Log); err != nil {
		log.Fatalf("error configuring logging: %v", err)
	}
	if veryVerbose {
		logger.EnableDebug("memory-monitor")
		logger.EnableDebug("reclaim")
		logger.EnableDebug("qos-store")
	}
	logger.SetupDebugToggleSignal(syscall.SIGUSR1)

	if err := run(cfg, configFile); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(cfg *cfgapi.MemdConfig, configFile string) error {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return fmt.Errorf("failed to access procfs: %w", err)
	}

	d := &service{cfg: cfg}

	d.monitor, err = monitor.New(&cfg.Memory, fs, sysfs.OnlineCPUCount(), fs.PageSize(),
		monitor.WithHandler(d.onDirective))
	if err != nil {
		return fmt.Errorf("failed to create memory monitor: %w", err)
	}

	d.qos, err = store.OpenLocked(cfg.QoS.GetStatePath(), fs)
	if err != nil {
		return fmt.Errorf("failed to open QoS state: %w", err)
	}
	defer d.qos.Close()
	log.Infof("restored QoS state of %d processes and threads", d.qos.Len())

	collectors.Register(version, build)
	metrics.MustRegister("reclaim", d.monitor.Collector(), metrics.WithGroup("memory"))
	healthz.RegisterHealthChecker("memory", d.healthCheck)
	instrumentation.HTTPServer().GetMux().HandleFunc("/qos", d.serveQoS)

	if err := instrumentation.Start(&cfg.Instrumentation); err != nil {
		return fmt.Errorf("failed to start instrumentation: %w", err)
	}
	defer instrumentation.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if configFile != "" {
		if err := d.watchConfig(ctx, configFile); err != nil {
			log.Errorf("failed to watch configuration file: %v", err)
		}
	}

	log.Infof("memd %s (build %s) running", version, build)
	notify(sdReady)
	defer notify(sdStopping)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runWatchdog(gctx)
		return nil
	})
	g.Go(func() error {
		return d.monitor.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("memory monitor exited: %w", err)
	}
	return nil
}
