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

package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/utils"
)

func TestParseEnabled(t *testing.T) {
	for value, expected := range map[string]bool{
		"on": true, "Enabled": true, "1": true, " yes ": true,
		"off": false, "DISABLE": false, "0": false, "no": false,
	} {
		enabled, err := utils.ParseEnabled(value)
		require.NoError(t, err, value)
		require.Equal(t, expected, enabled, value)
	}

	_, err := utils.ParseEnabled("perhaps")
	require.Error(t, err)
}

func TestParseFileEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmstat")
	require.NoError(t, os.WriteFile(path, []byte(
		"nr_free_pages 1234\n"+
			"workingset_refault_anon 17\n"+
			"\n"+
			"pgsteal_direct 99\n"+
			"name first\n"), 0o644))

	var (
		anon   uint64
		direct int64
		free   int
		name   string
	)
	err := utils.ParseFileEntries(path, map[string]interface{}{
		"workingset_refault_anon": &anon,
		"pgsteal_direct":          &direct,
		"nr_free_pages":           &free,
		"name":                    &name,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(17), anon)
	require.Equal(t, int64(99), direct)
	require.Equal(t, 1234, free)
	require.Equal(t, "first", name)

	var bad uint64
	require.NoError(t, os.WriteFile(path, []byte("pgsteal_direct -1\n"), 0o644))
	require.Error(t, utils.ParseFileEntries(path, map[string]interface{}{"pgsteal_direct": &bad}, nil))

	require.Error(t, utils.ParseFileEntries(filepath.Join(t.TempDir(), "missing"), nil, nil))
}
