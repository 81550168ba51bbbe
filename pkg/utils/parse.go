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

package utils

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseEnabled parses a string as an enabled/disabled boolean state.
func ParseEnabled(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "enable", "enabled", "true", "yes", "1":
		return true, nil
	case "off", "disable", "disabled", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid enabled/disabled state %q", value)
}

// SplitFn splits a single line of a file into a key and a value.
type SplitFn func(line string) (string, string, error)

// SplitFields is a SplitFn for "key value [unit]" formatted lines, with the
// key optionally terminated by a colon.
func SplitFields(line string) (string, string, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", fmt.Errorf("malformed entry %q", line)
	}
	return strings.TrimSuffix(fields[0], ":"), fields[1], nil
}

// ParseFileEntries parses the given file line by line, storing the value of
// every key present in entries into the pointer associated with the key. The
// supported pointer types are *string, *int, *int64, *uint64 and *bool. Keys
// not present in entries are ignored.
func ParseFileEntries(path string, entries map[string]interface{}, split SplitFn) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if split == nil {
		split = SplitFields
	}

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, err := split(line)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		ptr, ok := entries[key]
		if !ok {
			continue
		}
		if err := setEntry(ptr, value); err != nil {
			return fmt.Errorf("%s: entry %s: %w", path, key, err)
		}
	}

	return s.Err()
}

func setEntry(ptr interface{}, value string) error {
	var err error
	switch p := ptr.(type) {
	case *string:
		*p = value
	case *int:
		*p, err = strconv.Atoi(value)
	case *int64:
		*p, err = strconv.ParseInt(value, 10, 64)
	case *uint64:
		*p, err = strconv.ParseUint(value, 10, 64)
	case *bool:
		*p, err = ParseEnabled(value)
	default:
		err = fmt.Errorf("unsupported entry type %T", ptr)
	}
	return err
}
