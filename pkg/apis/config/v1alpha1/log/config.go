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

package log

import (
	"fmt"
	"strings"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/log/klogcontrol"
)

// Config is the logging configuration shared by all binaries.
type Config struct {
	// Debug turns on debug messages matching listed logger sources.
	// Entries are of the form "[on|off:]source[,source...]", "*" or "all"
	// matches every source.
	// +optional
	Debug []string `json:"debug,omitempty"`
	// Source controls whether messages are prefixed with their logger source.
	// +optional
	LogSource bool `json:"source,omitempty"`
	// Klog configures the klog backend.
	// +optional
	Klog klogcontrol.Config `json:"klog,omitempty"`
}

// Validate checks the debug source specifications for syntax errors.
func (c *Config) Validate() error {
	for _, spec := range c.Debug {
		for _, entry := range strings.Split(spec, ",") {
			if strings.Count(entry, ":") > 1 {
				return fmt.Errorf("log: invalid debug entry %q in %q", entry, spec)
			}
		}
	}
	return nil
}
