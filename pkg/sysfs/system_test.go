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

package sysfs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/sysfs"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/utils/cpuset"
)

func writeSysfs(t *testing.T, entries map[string]string) string {
	root := t.TempDir()
	dir := filepath.Join(root, "sys", "devices", "system", "cpu")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, value := range entries {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644))
	}
	return root
}

func TestDiscoverCPUs(t *testing.T) {
	type testCase struct {
		name    string
		entries map[string]string
		online  string
		offline string
		count   int
		fail    bool
	}

	for _, tc := range []*testCase{
		{
			name: "all online",
			entries: map[string]string{
				"possible": "0-7",
				"present":  "0-7",
				"online":   "0-7",
				"isolated": "",
			},
			online:  "0-7",
			offline: "",
			count:   8,
		},
		{
			name: "partially offline",
			entries: map[string]string{
				"possible": "0-7",
				"present":  "0-7",
				"online":   "0-1,4-5",
			},
			online:  "0-1,4-5",
			offline: "2-3,6-7",
			count:   4,
		},
		{
			name: "only online known",
			entries: map[string]string{
				"online": "0-3",
			},
			online:  "0-3",
			offline: "",
			count:   4,
		},
		{
			name: "online missing",
			entries: map[string]string{
				"possible": "0-3",
			},
			count: 1,
			fail:  true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			root := writeSysfs(t, tc.entries)

			cpus, err := sysfs.DiscoverCPUsAt(filepath.Join(root, "sys"))
			if tc.fail {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.True(t, cpuset.MustParse(tc.online).Equals(cpus.Online))
				require.True(t, cpuset.MustParse(tc.offline).Equals(cpus.Offline()))
			}

			sysfs.SetSysRoot(root)
			defer sysfs.SetSysRoot("")
			require.Equal(t, tc.count, sysfs.OnlineCPUCount())
		})
	}
}
