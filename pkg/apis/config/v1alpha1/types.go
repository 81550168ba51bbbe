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

package v1alpha1

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"sigs.k8s.io/yaml"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/instrumentation"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/memory"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/qos"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/vmc"
)

// MemdConfig is the configuration of the memory daemon.
type MemdConfig struct {
	// +optional
	Log log.Config `json:"log,omitempty"`
	// +optional
	Instrumentation instrumentation.Config `json:"instrumentation,omitempty"`
	// +optional
	Memory memory.Config `json:"memory,omitempty"`
	// +optional
	QoS qos.Config `json:"qos,omitempty"`
}

// VmcConfig is the configuration of the VM command line client.
type VmcConfig struct {
	// +optional
	Log log.Config `json:"log,omitempty"`
	// TracingCollector is the endpoint traces of the operations are sent to.
	// +optional
	TracingCollector string `json:"tracingCollector,omitempty"`
	// SamplingRatePerMillion is the number of traces sampled per million.
	// +optional
	SamplingRatePerMillion instrumentation.Sampling `json:"samplingRatePerMillion,omitempty"`
	vmc.Config `json:",inline"`
}

// DefaultMemdConfig returns the configuration used without a file.
func DefaultMemdConfig() *MemdConfig {
	return &MemdConfig{
		Memory: *memory.Default(),
	}
}

// Validate checks the configuration for errors.
func (c *MemdConfig) Validate() error {
	var errs *multierror.Error
	if err := c.Log.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.Memory.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// ParseMemdConfig parses a YAML or JSON memory daemon configuration,
// filling in defaults for unset fields.
func ParseMemdConfig(data []byte) (*MemdConfig, error) {
	cfg := &MemdConfig{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, configError("failed to parse memd configuration: %w", err)
	}
	cfg.Memory.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, configError("invalid memd configuration: %w", err)
	}
	return cfg, nil
}

// LoadMemdConfig reads the memory daemon configuration from a file.
func LoadMemdConfig(path string) (*MemdConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("failed to read %s: %w", path, err)
	}
	return ParseMemdConfig(data)
}

// LoadVmcConfig reads the VM client configuration from a file.
func LoadVmcConfig(path string) (*VmcConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("failed to read %s: %w", path, err)
	}
	cfg := &VmcConfig{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, configError("failed to parse vmc configuration %s: %w", path, err)
	}
	if err := cfg.Log.Validate(); err != nil {
		return nil, configError("invalid vmc configuration %s: %w", path, err)
	}
	return cfg, nil
}

func configError(format string, args ...interface{}) error {
	return fmt.Errorf("config: "+format, args...)
}
