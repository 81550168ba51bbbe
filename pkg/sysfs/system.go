// Copyright 2019 Intel Corporation. All Rights Reserved.
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

package sysfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/utils/cpuset"
)

var (
	// Parent directory under which host sysfs, etc. is mounted (if non-standard location).
	sysRoot = ""
	// Our logger instance.
	log = logger.NewLogger("sysfs")
)

const (
	// sysfs devices/cpu subdirectory path
	sysfsCPUPath = "devices/system/cpu"
)

// CPUs describes the sets of CPUs known to the kernel.
type CPUs struct {
	Possible cpuset.CPUSet
	Present  cpuset.CPUSet
	Online   cpuset.CPUSet
	Isolated cpuset.CPUSet
}

// Offline returns the set of present CPUs which are not online.
func (c *CPUs) Offline() cpuset.CPUSet {
	return c.Present.Difference(c.Online)
}

// SetSysRoot sets the sys root directory.
func SetSysRoot(path string) {
	sysRoot = path
}

// DiscoverCPUs discovers the CPUs of the running system.
func DiscoverCPUs() (*CPUs, error) {
	return DiscoverCPUsAt(filepath.Join("/", sysRoot, "sys"))
}

// DiscoverCPUsAt discovers CPUs from sysfs mounted at path. The online set
// is mandatory, the others are best effort.
func DiscoverCPUsAt(path string) (*CPUs, error) {
	var (
		cpus = &CPUs{}
		base = filepath.Join(path, sysfsCPUPath)
	)

	if _, err := readSysfsEntry(base, "online", &cpus.Online, ","); err != nil {
		return nil, fmt.Errorf("failed to get set of online cpus: %w", err)
	}

	for entry, ptr := range map[string]*cpuset.CPUSet{
		"possible": &cpus.Possible,
		"present":  &cpus.Present,
		"isolated": &cpus.Isolated,
	} {
		if _, err := readSysfsEntry(base, entry, ptr, ","); err != nil {
			log.Debug("failed to get set of %s cpus: %v", entry, err)
		}
	}

	if cpus.Present.IsEmpty() {
		cpus.Present = cpus.Online
	}

	return cpus, nil
}

// OnlineCPUCount returns the number of online CPUs, never less than 1.
func OnlineCPUCount() int {
	cpus, err := DiscoverCPUs()
	if err != nil {
		log.Warn("%v, assuming a single CPU", err)
		return 1
	}
	return max(cpus.Online.Size(), 1)
}

// readSysfsEntry reads a single sysfs entry into ptr, which can be a
// *string, *int, *uint64 or *cpuset.CPUSet. For sets, sep is the separator
// of the list, an empty set is accepted.
func readSysfsEntry(base, entry string, ptr interface{}, args ...interface{}) (string, error) {
	path := filepath.Join(base, entry)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("sysfs entry %s: %w", path, fs.ErrNotExist)
		}
		return "", fmt.Errorf("failed to read sysfs entry %s: %w", path, err)
	}

	value := strings.TrimSpace(string(data))
	if ptr == nil {
		return value, nil
	}

	switch p := ptr.(type) {
	case *string:
		*p = value
	case *int:
		*p, err = strconv.Atoi(value)
	case *uint64:
		*p, err = strconv.ParseUint(value, 10, 64)
	case *cpuset.CPUSet:
		if len(args) > 0 {
			if sep, ok := args[0].(string); ok && sep != "," {
				value = strings.ReplaceAll(value, sep, ",")
			}
		}
		*p, err = cpuset.Parse(value)
	default:
		err = fmt.Errorf("unsupported sysfs entry type %T", ptr)
	}

	if err != nil {
		return "", fmt.Errorf("invalid sysfs entry %s (%q): %w", path, value, err)
	}

	return value, nil
}
