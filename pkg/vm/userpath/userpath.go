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

// Package userpath resolves and opens user supplied host paths, keeping
// them inside the trees a user is allowed to hand to a VM.
package userpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

var log = logger.NewLogger("userpath")

// ErrNotAllowed is returned for paths outside the allowed trees.
var ErrNotAllowed = errors.New("path not allowed")

const (
	removableRoot = "/media/removable"
	chronosFiles  = "/home/chronos/user/MyFiles"
	tastRoot      = "/usr/local/share/tast"
)

// Resolver resolves paths on behalf of a user.
type Resolver struct {
	// Owner is the owner id hash of the user.
	Owner string
	// DevMode also allows the test data tree.
	DevMode bool
	// Root is prepended to every resolved path when opening files.
	Root string
}

func (r *Resolver) userFiles() string {
	return filepath.Join("/home/user", r.Owner, "MyFiles")
}

func (r *Resolver) allowedRoots() []string {
	roots := []string{removableRoot, r.userFiles(), chronosFiles}
	if r.DevMode {
		roots = append(roots, tastRoot)
	}
	return roots
}

// Resolve returns the host path for a user supplied path. A non-empty
// media names the removable media the path is relative to.
func (r *Resolver) Resolve(path, media string) (string, error) {
	if path == "" {
		return "", pathError("%w: empty path", ErrNotAllowed)
	}
	for _, c := range strings.Split(path, "/") {
		if c == ".." {
			return "", pathError("%w: %q has a parent component", ErrNotAllowed, path)
		}
	}
	if media != "" {
		if strings.Contains(media, "/") || media == ".." || media == "." {
			return "", pathError("%w: invalid media name %q", ErrNotAllowed, media)
		}
		return filepath.Join(removableRoot, media, path), nil
	}

	if !filepath.IsAbs(path) {
		return filepath.Join(r.userFiles(), "Downloads", path), nil
	}

	clean := filepath.Clean(path)
	for _, root := range r.allowedRoots() {
		if clean == root || strings.HasPrefix(clean, root+"/") {
			return clean, nil
		}
	}
	return "", pathError("%w: %q is outside the user accessible trees", ErrNotAllowed, path)
}

// Tree is an allowed tree of user files.
type Tree string

const (
	TreeMyFiles   Tree = "MyFiles"
	TreeRemovable Tree = "removable"
	TreeTestData  Tree = "tast"
)

// Relative splits a resolved path into its tree and the path inside it.
func (r *Resolver) Relative(path string) (Tree, string, error) {
	for _, t := range []struct {
		tree Tree
		root string
	}{
		{TreeMyFiles, r.userFiles()},
		{TreeMyFiles, chronosFiles},
		{TreeRemovable, removableRoot},
		{TreeTestData, tastRoot},
	} {
		if t.tree == TreeTestData && !r.DevMode {
			continue
		}
		if rel, err := filepath.Rel(t.root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, "../") {
			if rel == "." {
				rel = ""
			}
			return t.tree, rel, nil
		}
	}
	return "", "", pathError("%w: %q is outside the user accessible trees", ErrNotAllowed, path)
}

func (r *Resolver) hostPath(path string) string {
	if r.Root == "" {
		return path
	}
	return filepath.Join(r.Root, path)
}

// OpenInput opens a user supplied file for reading, or for reading and
// writing if writable is set. A symlink as the last component is refused.
func (r *Resolver) OpenInput(path, media string, writable bool) (*os.File, error) {
	p, err := r.Resolve(path, media)
	if err != nil {
		return nil, err
	}
	flags := unix.O_RDONLY
	if writable {
		flags = unix.O_RDWR
	}
	f, err := os.OpenFile(r.hostPath(p), flags|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, pathError("failed to open %s: %w", p, err)
	}
	log.Debug("opened %s (writable: %v)", p, writable)
	return f, nil
}

// CreateOutput creates a new user file. The file must not exist.
func (r *Resolver) CreateOutput(path, media string) (*OutputFile, error) {
	p, err := r.Resolve(path, media)
	if err != nil {
		return nil, err
	}
	host := r.hostPath(p)
	f, err := os.OpenFile(host, os.O_RDWR|os.O_CREATE|os.O_EXCL|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, pathError("failed to create %s: %w", p, err)
	}
	log.Debug("created %s", p)
	return &OutputFile{File: f, path: host}, nil
}

// OutputFile is a newly created file which is removed on Close unless it
// was committed.
type OutputFile struct {
	*os.File
	path      string
	committed bool
}

// Commit keeps the file when it is closed.
func (o *OutputFile) Commit() {
	o.committed = true
}

// Committed returns true if the file was committed.
func (o *OutputFile) Committed() bool {
	return o.committed
}

// Close closes the file, removing it unless it was committed.
func (o *OutputFile) Close() error {
	var result *multierror.Error
	if err := o.File.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		result = multierror.Append(result, err)
	}
	if !o.committed {
		if err := os.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, err)
		} else {
			log.Debug("removed uncommitted %s", o.path)
		}
	}
	return result.ErrorOrNil()
}

// CloseAll closes every non-nil file, collecting the errors.
func CloseAll(files ...*os.File) error {
	var result *multierror.Error
	for _, f := range files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func pathError(format string, args ...interface{}) error {
	return fmt.Errorf("userpath: "+format, args...)
}
