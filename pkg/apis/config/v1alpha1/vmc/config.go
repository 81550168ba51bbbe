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

package vmc

import (
	"time"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/common"
)

const (
	DefaultTimeout         = 80 * time.Second
	DefaultExportTimeout   = 15 * time.Minute
	DefaultTremplinTimeout = 80 * time.Second
	DefaultPollInterval    = time.Second
)

// Config tunes the VM lifecycle operations.
type Config struct {
	// Timeout bounds every bus request and signal wait.
	// +optional
	Timeout common.Duration `json:"timeout,omitempty"`
	// ExportTimeout bounds waiting for a disk image export to finish.
	// +optional
	ExportTimeout common.Duration `json:"exportTimeout,omitempty"`
	// TremplinTimeout bounds waiting for the container agent of a
	// starting VM.
	// +optional
	TremplinTimeout common.Duration `json:"tremplinTimeout,omitempty"`
	// PollInterval is the interval of disk operation and DLC polling.
	// +optional
	PollInterval common.Duration `json:"pollInterval,omitempty"`
	// DevMode allows files from the test data tree.
	// +optional
	DevMode bool `json:"devMode,omitempty"`
}

func (c *Config) GetTimeout() time.Duration {
	return c.Timeout.Get(DefaultTimeout)
}

func (c *Config) GetExportTimeout() time.Duration {
	return c.ExportTimeout.Get(DefaultExportTimeout)
}

func (c *Config) GetTremplinTimeout() time.Duration {
	return c.TremplinTimeout.Get(DefaultTremplinTimeout)
}

func (c *Config) GetPollInterval() time.Duration {
	return c.PollInterval.Get(DefaultPollInterval)
}
