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

package qos

// DefaultStatePath is the default location of the persistent QoS state.
const DefaultStatePath = "/run/memd/qos-state"

// Config is the QoS state storage configuration.
type Config struct {
	// StatePath is the file holding the QoS state of processes and threads.
	// It is expected to live on tmpfs.
	// +optional
	StatePath string `json:"statePath,omitempty"`
}

// GetStatePath returns the configured state path or the default one.
func (c *Config) GetStatePath() string {
	if c == nil || c.StatePath == "" {
		return DefaultStatePath
	}
	return c.StatePath
}
