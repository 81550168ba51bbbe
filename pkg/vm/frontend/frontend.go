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

// Package frontend implements the vmc subcommands on top of the VM
// lifecycle methods.
package frontend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/urfave/cli"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/vmc"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/methods"
)

const (
	// EnvNonInteractive disables prompts when set.
	EnvNonInteractive = "VMC_NONINTERACTIVE"
	// EnvUserIDHash names the owner id hash to act for.
	EnvUserIDHash = "CROS_USER_ID_HASH"

	DefaultVmName        = "termina"
	DefaultContainerName = "penguin"
)

// ErrUserCancelled is returned when the user declines a prompt.
var ErrUserCancelled = errors.New("cancelled by user")

// ShellFunc opens an interactive shell in a VM or one of its containers.
type ShellFunc func(vm, container, owner string) error

// Options configure a Frontend.
type Options struct {
	Out    io.Writer
	In     io.Reader
	Getenv func(string) string
	Shell  ShellFunc
}

// Frontend runs vmc subcommands.
type Frontend struct {
	ctx     context.Context
	connect func() (*methods.Methods, error)
	m       *methods.Methods
	out     io.Writer
	in      *bufio.Reader
	getenv  func(string) string
	shell   ShellFunc
}

// New creates a frontend. connect is called once, by the first command
// needing the methods.
func New(ctx context.Context, connect func() (*methods.Methods, error), o Options) *Frontend {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Getenv == nil {
		o.Getenv = os.Getenv
	}
	return &Frontend{
		ctx:     ctx,
		connect: connect,
		out:     o.Out,
		in:      bufio.NewReader(o.In),
		getenv:  o.Getenv,
		shell:   o.Shell,
	}
}

// Connect resolves the owner to act for and creates the methods for it.
func Connect(ctx context.Context, conn bus.Conn, cfg cfgapi.Config, getenv func(string) string) (*methods.Methods, error) {
	owner, err := methods.ResolveOwner(ctx, conn, getenv(EnvUserIDHash), cfg.GetTimeout())
	if err != nil {
		return nil, err
	}
	return methods.New(conn, owner, methods.WithConfig(cfg)), nil
}

func (f *Frontend) getMethods() (*methods.Methods, error) {
	if f.m == nil {
		m, err := f.connect()
		if err != nil {
			return nil, err
		}
		f.m = m
	}
	return f.m, nil
}

func (f *Frontend) printf(format string, args ...interface{}) {
	fmt.Fprintf(f.out, format, args...)
}

func (f *Frontend) progress(percent uint32) {
	f.printf("\rOperation in progress: %d%% done", percent)
}

// confirm asks the user a yes/no question, unless prompts are disabled.
func (f *Frontend) confirm(question string) error {
	if f.getenv(EnvNonInteractive) != "" {
		return nil
	}
	f.printf("%s [y/N] ", question)
	answer, err := f.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return ErrUserCancelled
}

// usageError is returned for malformed command lines.
func usageError(c *cli.Context, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s (usage: %s %s)", c.Command.Name, fmt.Sprintf(format, args...),
		c.Command.Name, c.Command.ArgsUsage)
}

func needArgs(c *cli.Context, lo, hi int) error {
	n := len(c.Args())
	if n < lo || (hi >= 0 && n > hi) {
		return usageError(c, "wrong number of arguments")
	}
	return nil
}

func parseSize(s string) (uint64, error) {
	size, err := units.RAMInBytes(s)
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, fmt.Errorf("negative size %s", s)
	}
	return uint64(size), nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func timeoutFlag(c *cli.Context) time.Duration {
	return time.Duration(c.Int("timeout")) * time.Second
}

// parseDeviceUpdates parses <device>:{enable,disable} arguments.
func parseDeviceUpdates(args []string) (map[string]bool, error) {
	updates := map[string]bool{}
	for _, arg := range args {
		dev, action, ok := strings.Cut(arg, ":")
		if !ok || dev == "" {
			return nil, fmt.Errorf("invalid device update %q", arg)
		}
		switch action {
		case "enable":
			updates[dev] = true
		case "disable":
			updates[dev] = false
		default:
			return nil, fmt.Errorf("invalid device action %q in %q", action, arg)
		}
	}
	return updates, nil
}

// parseUsbDevice parses a <bus>:<device> argument.
func parseUsbDevice(s string) (uint32, uint32, error) {
	b, d, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid USB device %q, expected <bus>:<device>", s)
	}
	busNum, err := parseUint32(b)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid USB bus %q: %w", b, err)
	}
	devNum, err := parseUint32(d)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid USB device %q: %w", d, err)
	}
	return busNum, devNum, nil
}
