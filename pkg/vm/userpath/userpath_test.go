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

package userpath_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/userpath"
)

func TestResolve(t *testing.T) {
	type testCase struct {
		name    string
		path    string
		media   string
		devMode bool
		result  string
		fail    bool
	}
	for _, tc := range []*testCase{
		{
			name:   "relative path goes to downloads",
			path:   "vm.img",
			result: "/home/user/abc/MyFiles/Downloads/vm.img",
		},
		{
			name:   "removable media",
			path:   "images/vm.img",
			media:  "USB",
			result: "/media/removable/USB/images/vm.img",
		},
		{
			name:   "user files",
			path:   "/home/user/abc/MyFiles/a/b",
			result: "/home/user/abc/MyFiles/a/b",
		},
		{
			name:   "chronos files",
			path:   "/home/chronos/user/MyFiles/x",
			result: "/home/chronos/user/MyFiles/x",
		},
		{
			name: "other user's files",
			path: "/home/user/def/MyFiles/x",
			fail: true,
		},
		{
			name: "prefix of an allowed root",
			path: "/media/removableX/y",
			fail: true,
		},
		{
			name: "parent component",
			path: "/media/removable/../../etc/passwd",
			fail: true,
		},
		{
			name: "relative parent component",
			path: "a/../../b",
			fail: true,
		},
		{
			name:  "media with a slash",
			path:  "x",
			media: "../etc",
			fail:  true,
		},
		{
			name: "test data outside dev mode",
			path: "/usr/local/share/tast/data",
			fail: true,
		},
		{
			name:    "test data in dev mode",
			path:    "/usr/local/share/tast/data",
			devMode: true,
			result:  "/usr/local/share/tast/data",
		},
		{
			name: "empty path",
			fail: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := &userpath.Resolver{Owner: "abc", DevMode: tc.devMode}
			result, err := r.Resolve(tc.path, tc.media)
			if tc.fail {
				require.Error(t, err)
				require.True(t, errors.Is(err, userpath.ErrNotAllowed))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.result, result)
		})
	}
}

func setup(t *testing.T) (*userpath.Resolver, string) {
	root := t.TempDir()
	downloads := filepath.Join(root, "home/user/abc/MyFiles/Downloads")
	require.NoError(t, os.MkdirAll(downloads, 0755))
	return &userpath.Resolver{Owner: "abc", Root: root}, downloads
}

func TestOpenInput(t *testing.T) {
	r, downloads := setup(t)

	require.NoError(t, os.WriteFile(filepath.Join(downloads, "kernel"), []byte("vmlinux"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(downloads, "kernel"), filepath.Join(downloads, "link")))

	f, err := r.OpenInput("kernel", "", false)
	require.NoError(t, err)
	data := make([]byte, 16)
	n, err := f.Read(data)
	require.NoError(t, err)
	require.Equal(t, "vmlinux", string(data[:n]))
	_, err = f.Write([]byte("x"))
	require.Error(t, err, "read-only open")
	require.NoError(t, f.Close())

	f, err = r.OpenInput("kernel", "", true)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = r.OpenInput("link", "", false)
	require.Error(t, err, "symlink as last component")

	_, err = r.OpenInput("missing", "", false)
	require.Error(t, err)

	_, err = r.OpenInput("/etc/passwd", "", false)
	require.ErrorIs(t, err, userpath.ErrNotAllowed)
}

func TestOutputFile(t *testing.T) {
	r, downloads := setup(t)

	out, err := r.CreateOutput("export.zip", "")
	require.NoError(t, err)
	info, err := out.Stat()
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = r.CreateOutput("export.zip", "")
	require.Error(t, err, "output must not exist")

	require.NoError(t, out.Close())
	_, err = os.Stat(filepath.Join(downloads, "export.zip"))
	require.True(t, os.IsNotExist(err), "uncommitted output removed")

	out, err = r.CreateOutput("export.zip", "")
	require.NoError(t, err)
	out.Commit()
	require.True(t, out.Committed())
	require.NoError(t, out.Close())
	_, err = os.Stat(filepath.Join(downloads, "export.zip"))
	require.NoError(t, err, "committed output kept")
}

func TestCloseAll(t *testing.T) {
	_, downloads := setup(t)

	a, err := os.Create(filepath.Join(downloads, "a"))
	require.NoError(t, err)
	b, err := os.Create(filepath.Join(downloads, "b"))
	require.NoError(t, err)

	require.NoError(t, userpath.CloseAll(a, nil, b))
	require.Error(t, userpath.CloseAll(a, b), "closing twice fails")
}

func TestRelative(t *testing.T) {
	r := &userpath.Resolver{Owner: "abc"}

	tree, rel, err := r.Relative("/home/user/abc/MyFiles/Downloads/x")
	require.NoError(t, err)
	require.Equal(t, userpath.TreeMyFiles, tree)
	require.Equal(t, "Downloads/x", rel)

	tree, rel, err = r.Relative("/media/removable/USB/y")
	require.NoError(t, err)
	require.Equal(t, userpath.TreeRemovable, tree)
	require.Equal(t, "USB/y", rel)

	tree, rel, err = r.Relative("/home/user/abc/MyFiles/..backup/vm.img")
	require.NoError(t, err)
	require.Equal(t, userpath.TreeMyFiles, tree)
	require.Equal(t, "..backup/vm.img", rel)

	tree, rel, err = r.Relative("/home/user/abc/MyFiles")
	require.NoError(t, err)
	require.Equal(t, userpath.TreeMyFiles, tree)
	require.Empty(t, rel)

	_, _, err = r.Relative("/home/user/abc/x")
	require.ErrorIs(t, err, userpath.ErrNotAllowed)

	_, _, err = r.Relative("/usr/local/share/tast/z")
	require.ErrorIs(t, err, userpath.ErrNotAllowed)

	_, _, err = r.Relative("/etc")
	require.ErrorIs(t, err, userpath.ErrNotAllowed)
}
