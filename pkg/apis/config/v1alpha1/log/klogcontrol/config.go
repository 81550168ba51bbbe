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

package klogcontrol

import (
	"strconv"
)

// Config represents the runtime configuration of klog.
type Config struct {
	// If non-empty, write log files in this directory (no effect when -logtostderr=true)
	// +optional
	LogDir *string `json:"log_dir,omitempty"`
	// If non-empty, use this log file (no effect when -logtostderr=true)
	// +optional
	LogFile *string `json:"log_file,omitempty"`
	// Defines the maximum size a log file can grow to in megabytes.
	// +optional
	LogFileMaxSize *uint64 `json:"log_file_max_size,omitempty"`
	// Log to standard error instead of files.
	// +optional
	Logtostderr *bool `json:"logtostderr,omitempty"`
	// Log to standard error as well as files (no effect when -logtostderr=true)
	// +optional
	Alsologtostderr *bool `json:"alsologtostderr,omitempty"`
	// Number for the log level verbosity.
	// +optional
	Verbosity *int `json:"v,omitempty"`
	// If true, adds the file directory to the header of the log messages
	// +optional
	AddDirHeader *bool `json:"add_dir_header,omitempty"`
	// If true, avoid header prefixes in the log messages
	// +optional
	SkipHeaders *bool `json:"skip_headers,omitempty"`
	// If true, only write logs to their native severity level.
	// +optional
	OneOutput *bool `json:"one_output,omitempty"`
	// If true, avoid headers when opening log files.
	// +optional
	SkipLogHeaders *bool `json:"skip_log_headers,omitempty"`
	// Logs at or above this threshold go to stderr.
	// +optional
	Stderrthreshold *int `json:"stderrthreshold,omitempty"`
	// Comma-separated list of pattern=N settings for file-filtered logging.
	// +optional
	Vmodule *string `json:"vmodule,omitempty"`
}

// GetByFlag returns the value for the given klog flag as a string.
func (c *Config) GetByFlag(name string) (string, bool) {
	if c == nil {
		return "", false
	}

	switch name {
	case "log_dir":
		return strp(c.LogDir)
	case "log_file":
		return strp(c.LogFile)
	case "log_file_max_size":
		if c.LogFileMaxSize == nil {
			return "", false
		}
		return strconv.FormatUint(*c.LogFileMaxSize, 10), true
	case "logtostderr":
		return boolp(c.Logtostderr)
	case "alsologtostderr":
		return boolp(c.Alsologtostderr)
	case "v":
		return intp(c.Verbosity)
	case "add_dir_header":
		return boolp(c.AddDirHeader)
	case "skip_headers":
		return boolp(c.SkipHeaders)
	case "one_output":
		return boolp(c.OneOutput)
	case "skip_log_headers":
		return boolp(c.SkipLogHeaders)
	case "stderrthreshold":
		return intp(c.Stderrthreshold)
	case "vmodule":
		return strp(c.Vmodule)
	}

	return "", false
}

func strp(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	return *p, true
}

func boolp(p *bool) (string, bool) {
	if p == nil {
		return "", false
	}
	return strconv.FormatBool(*p), true
}

func intp(p *int) (string, bool) {
	if p == nil {
		return "", false
	}
	return strconv.Itoa(*p), true
}
