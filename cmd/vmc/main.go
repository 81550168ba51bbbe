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
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/instrumentation/tracing"
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/frontend"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/methods"
)

const vshPath = "/usr/bin/vsh"

var (
	log = logrus.StandardLogger()

	// Set at build time.
	version = "unknown"
)

// vsh opens an interactive shell using the vsh client.
func vsh(vm, container, owner string) error {
	args := []string{"--vm_name=" + vm, "--owner_id=" + owner}
	if container != "" {
		args = append(args, "--target_container="+container)
	}
	cmd := exec.Command(vshPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func main() {
	log.SetFormatter(&logrus.TextFormatter{
		PadLevelText: true,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := &cfgapi.VmcConfig{}
	var conn bus.Conn

	f := frontend.New(ctx, func() (*methods.Methods, error) {
		c, err := bus.ConnectSystemBus()
		if err != nil {
			return nil, err
		}
		conn = c
		return frontend.Connect(ctx, conn, cfg.Config, os.Getenv)
	}, frontend.Options{Shell: vsh})

	app := cli.NewApp()
	app.Name = "vmc"
	app.Usage = "manage virtual machines and their containers"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "configuration file name",
		},
		cli.BoolFlag{
			Name:  "v",
			Usage: "verbose output",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "very verbose output",
		},
	}
	app.Before = func(c *cli.Context) error {
		if path := c.GlobalString("config"); path != "" {
			loaded, err := cfgapi.LoadVmcConfig(path)
			if err != nil {
				return err
			}
			*cfg = *loaded
			if err := logger.Configure(&cfg.Log); err != nil {
				return err
			}
			err = tracing.Start(
				tracing.WithServiceName("vmc"),
				tracing.WithCollectorEndpoint(cfg.TracingCollector),
				tracing.WithSamplingRatio(cfg.SamplingRatePerMillion.Ratio()),
				tracing.WithIdentity(tracing.Attribute("version", version)),
			)
			if err != nil {
				return err
			}
		}
		switch {
		case c.GlobalBool("vv"):
			log.SetLevel(logrus.TraceLevel)
			cfg.Log.Debug = []string{"*"}
			if err := logger.Configure(&cfg.Log); err != nil {
				return err
			}
		case c.GlobalBool("v"):
			log.SetLevel(logrus.DebugLevel)
		}
		return nil
	}
	app.Commands = f.Commands()

	err := app.Run(os.Args)
	tracing.Stop()
	if conn != nil {
		conn.Close()
	}
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
