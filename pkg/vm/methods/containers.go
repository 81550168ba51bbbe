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
	"time"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
)

// ContainerOptions are the options of ContainerCreate.
type ContainerOptions struct {
	VmName      string
	Name        string
	ImageServer string
	ImageAlias  string
	// RootfsPath and MetadataPath are tarballs to create the container
	// from instead of an image server.
	RootfsPath   string
	MetadataPath string
	Timeout      time.Duration
}

func (o *ContainerOptions) validate() error {
	if (o.RootfsPath == "") != (o.MetadataPath == "") {
		return newError(KindInvalid, "container-create", "", "rootfs and metadata tarballs must be given together")
	}
	if o.RootfsPath != "" && (o.ImageServer != "" || o.ImageAlias != "") {
		return newError(KindInvalid, "container-create", "", "image server and tarballs are mutually exclusive")
	}
	return nil
}

func (m *Methods) containerTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return m.cfg.GetTimeout()
}

// containerEvents returns a filter for container signals of a single
// container.
func (m *Methods) containerEvents(vm, container string, accept func(*ContainerEvent) (bool, error)) func(*bus.Signal) (bool, error) {
	return func(sig *bus.Signal) (bool, error) {
		ev := &ContainerEvent{}
		if err := sig.Decode(ev); err != nil {
			return false, nil
		}
		if ev.VmName != vm || ev.OwnerID != m.owner || ev.ContainerName != container {
			return false, nil
		}
		return accept(ev)
	}
}

// ContainerCreate creates a container, waiting for the creation to finish.
func (m *Methods) ContainerCreate(ctx context.Context, o *ContainerOptions) error {
	if err := o.validate(); err != nil {
		return err
	}

	sub, err := m.subscribe(bus.Cicerone, SignalLxdContainerCreated)
	if err != nil {
		return err
	}
	defer sub.Close()

	req := &CreateLxdContainerRequest{
		VmName:        o.VmName,
		OwnerID:       m.owner,
		ContainerName: o.Name,
		ImageServer:   o.ImageServer,
		ImageAlias:    o.ImageAlias,
		RootfsPath:    o.RootfsPath,
		MetadataPath:  o.MetadataPath,
	}
	resp := &ContainerResponse{}
	if err := m.call(ctx, bus.Cicerone, "CreateLxdContainer", req, resp); err != nil {
		return err
	}
	switch resp.Status {
	case ContainerCreated, ContainerExists:
		return nil
	case ContainerCreating:
	default:
		return newError(KindService, "container-create", string(resp.Status), resp.FailureReason)
	}

	log.Info("creating container %s in %s", o.Name, o.VmName)
	return wait(ctx, "container-create", sub, m.containerTimeout(o.Timeout),
		m.containerEvents(o.VmName, o.Name, func(ev *ContainerEvent) (bool, error) {
			switch ev.Status {
			case ContainerCreated:
				return true, nil
			case ContainerCreating:
				return false, nil
			case ContainerCancelled:
				return false, newError(KindCancelled, "container-create", string(ev.Status), ev.FailureReason)
			}
			return false, newError(KindService, "container-create", string(ev.Status), ev.FailureReason)
		}))
}

// ContainerStart starts a container, waiting for it to start.
func (m *Methods) ContainerStart(ctx context.Context, vm, name string, privilege ContainerPrivilege, timeout time.Duration) error {
	if privilege == "" {
		privilege = PrivilegeUnchanged
	}

	sub, err := m.subscribe(bus.Cicerone, SignalLxdContainerStarting)
	if err != nil {
		return err
	}
	defer sub.Close()

	req := &StartLxdContainerRequest{
		VmName:        vm,
		OwnerID:       m.owner,
		ContainerName: name,
		Privilege:     privilege,
	}
	resp := &ContainerResponse{}
	if err := m.call(ctx, bus.Cicerone, "StartLxdContainer", req, resp); err != nil {
		return err
	}
	switch resp.Status {
	case ContainerRunning:
		return nil
	case ContainerStarting, ContainerRemapping:
	default:
		return newError(KindService, "container-start", string(resp.Status), resp.FailureReason)
	}

	log.Info("starting container %s in %s", name, vm)
	return wait(ctx, "container-start", sub, m.containerTimeout(timeout),
		m.containerEvents(vm, name, func(ev *ContainerEvent) (bool, error) {
			switch ev.Status {
			case ContainerStarted:
				return true, nil
			case ContainerStarting, ContainerRemapping:
				return false, nil
			case ContainerCancelled:
				return false, newError(KindCancelled, "container-start", string(ev.Status), ev.FailureReason)
			}
			return false, newError(KindService, "container-start", string(ev.Status), ev.FailureReason)
		}))
}

// ContainerSetupUser creates the user of a container.
func (m *Methods) ContainerSetupUser(ctx context.Context, vm, name, user string) error {
	req := &SetUpLxdContainerUserRequest{
		VmName:        vm,
		OwnerID:       m.owner,
		ContainerName: name,
		Username:      user,
	}
	resp := &ContainerResponse{}
	if err := m.call(ctx, bus.Cicerone, "SetUpLxdContainerUser", req, resp); err != nil {
		return err
	}
	switch resp.Status {
	case ContainerSuccess, ContainerExists:
		return nil
	}
	return newError(KindService, "container-setup-user", string(resp.Status), resp.FailureReason)
}

// ContainerUpdateDevices enables or disables devices of a container. It
// returns the per-device results.
func (m *Methods) ContainerUpdateDevices(ctx context.Context, vm, name string, updates map[string]bool) (map[string]ContainerStatus, error) {
	req := &UpdateContainerDevicesRequest{
		VmName:        vm,
		OwnerID:       m.owner,
		ContainerName: name,
		Updates:       updates,
	}
	resp := &UpdateContainerDevicesResponse{}
	if err := m.call(ctx, bus.Cicerone, "UpdateContainerDevices", req, resp); err != nil {
		return nil, err
	}
	if resp.Status != ContainerSuccess {
		return resp.Results, newError(KindService, "update-container-devices", string(resp.Status), "")
	}
	return resp.Results, nil
}
