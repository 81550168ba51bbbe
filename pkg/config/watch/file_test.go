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

package watch_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/config/watch"
)

func parse(data []byte) (string, error) {
	return strings.TrimSpace(string(data)), nil
}

func next(t *testing.T, w *watch.FileWatch[string], accept func(watch.Event[string]) bool) watch.Event[string] {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-w.ResultChan():
			require.True(t, ok, "result channel closed")
			if accept(e) {
				return e
			}
		case <-timeout:
			require.FailNow(t, "timeout waiting for watch event")
		}
	}
}

func TestFileWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("first\n"), 0644))

	w, err := watch.File(file, parse)
	require.NoError(t, err)
	defer w.Stop()

	e := next(t, w, func(watch.Event[string]) bool { return true })
	require.Equal(t, watch.Added, e.Type)
	require.Equal(t, "first", e.Object)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(file, []byte("second\n"), 0644))
	e = next(t, w, func(e watch.Event[string]) bool { return e.Type == watch.Added && e.Object == "second" })
	require.Equal(t, "second", e.Object)

	require.NoError(t, os.Remove(file))
	e = next(t, w, func(e watch.Event[string]) bool { return e.Type == watch.Deleted })
	require.Equal(t, watch.Deleted, e.Type)
}

func TestMissingFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")

	w, err := watch.File(file, parse)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(file, []byte("created"), 0644))
	e := next(t, w, func(e watch.Event[string]) bool { return e.Type == watch.Added && e.Object == "created" })
	require.Equal(t, "created", e.Object)

	w.Stop()
	_, ok := <-w.ResultChan()
	for ok {
		_, ok = <-w.ResultChan()
	}
}
