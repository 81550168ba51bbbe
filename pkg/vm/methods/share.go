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

package methods

import (
	"context"
	"path"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
)

// SharedRoot is where shared paths appear in the guest.
const SharedRoot = "/mnt/shared"

// sharedPath resolves a user path into the path seneschal shares it by.
func (m *Methods) sharedPath(p string) (string, error) {
	host, err := m.resolver.Resolve(p, "")
	if err != nil {
		return "", wrapError(KindPath, "share", err)
	}
	tree, rel, err := m.resolver.Relative(host)
	if err != nil {
		return "", wrapError(KindPath, "share", err)
	}
	return path.Join(string(tree), rel), nil
}

// SharePath shares a path from the user's files with a VM. It returns the
// path of the share in the guest.
func (m *Methods) SharePath(ctx context.Context, vm, p string) (string, error) {
	shared, err := m.sharedPath(p)
	if err != nil {
		return "", err
	}
	info, err := m.GetVmInfo(ctx, vm)
	if err != nil {
		return "", err
	}

	req := &SharePathRequest{
		Handle:   info.SeneschalHandle,
		Path:     shared,
		Location: "user-files",
		OwnerID:  m.owner,
	}
	resp := &SharePathResponse{}
	if err := m.call(ctx, bus.Seneschal, "SharePath", req, resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", newError(KindService, "share", "", resp.FailureReason)
	}
	return path.Join(SharedRoot, resp.Path), nil
}

// UnsharePath stops sharing a path with a VM.
func (m *Methods) UnsharePath(ctx context.Context, vm, p string) error {
	shared, err := m.sharedPath(p)
	if err != nil {
		return err
	}
	info, err := m.GetVmInfo(ctx, vm)
	if err != nil {
		return err
	}

	resp := &SuccessResponse{}
	req := &UnsharePathRequest{Handle: info.SeneschalHandle, Path: shared}
	if err := m.call(ctx, bus.Seneschal, "UnsharePath", req, resp); err != nil {
		return err
	}
	if !resp.Success {
		return newError(KindService, "unshare", "", resp.FailureReason)
	}
	return nil
}
