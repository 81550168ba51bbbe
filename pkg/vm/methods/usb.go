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
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
)

// UsbDevicePath returns the device node of a USB device.
func UsbDevicePath(busNum, devNum uint32) string {
	return fmt.Sprintf("/dev/bus/usb/%03d/%03d", busNum, devNum)
}

// openPath asks the permission broker to open a device node.
func (m *Methods) openPath(ctx context.Context, path string) (*os.File, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.GetTimeout())
	defer cancel()

	body, err := m.conn.Call(ctx, bus.PermissionBroker, "OpenPath", path)
	if err != nil {
		return nil, busError("open-path", err)
	}
	if len(body) == 0 {
		return nil, newError(KindService, "open-path", "", "no file descriptor for "+path)
	}
	fd, ok := body[0].(dbus.UnixFD)
	if !ok {
		return nil, newError(KindService, "open-path", "", fmt.Sprintf("unexpected reply %T", body[0]))
	}
	return os.NewFile(uintptr(fd), path), nil
}

// AttachUsb attaches a USB device to a VM, and to a container of the VM
// if one is named. It returns the port of the device in the guest.
func (m *Methods) AttachUsb(ctx context.Context, vm string, busNum, devNum uint32, container string) (uint32, error) {
	f, err := m.openPath(ctx, UsbDevicePath(busNum, devNum))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	req := &AttachUsbDeviceRequest{VmName: vm, OwnerID: m.owner, BusNum: busNum, PortNum: devNum}
	resp := &AttachUsbDeviceResponse{}
	if err := m.call(ctx, bus.Concierge, "AttachUsbDevice", req, resp, f); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, newError(KindService, "usb-attach", "", resp.Reason)
	}

	if container != "" {
		creq := &AttachUsbToContainerRequest{
			VmName:        vm,
			OwnerID:       m.owner,
			ContainerName: container,
			PortNum:       resp.GuestPort,
		}
		cresp := &ContainerResponse{}
		if err := m.call(ctx, bus.Cicerone, "AttachUsbToContainer", creq, cresp); err != nil {
			return resp.GuestPort, err
		}
		if cresp.Status != ContainerSuccess {
			return resp.GuestPort, newError(KindService, "usb-attach", string(cresp.Status), cresp.FailureReason)
		}
	}
	return resp.GuestPort, nil
}

// AttachKey attaches a security key hidraw node to a VM. It returns the
// port of the key in the guest.
func (m *Methods) AttachKey(ctx context.Context, vm, hidraw string) (uint32, error) {
	f, err := m.openPath(ctx, hidraw)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	resp := &AttachUsbDeviceResponse{}
	if err := m.call(ctx, bus.Concierge, "AttachKey", &AttachKeyRequest{VmName: vm, OwnerID: m.owner}, resp, f); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, newError(KindService, "key-attach", "", resp.Reason)
	}
	return resp.GuestPort, nil
}

// DetachUsb detaches the USB device at a guest port.
func (m *Methods) DetachUsb(ctx context.Context, vm string, port uint32) error {
	resp := &SuccessResponse{}
	req := &DetachUsbDeviceRequest{VmName: vm, OwnerID: m.owner, GuestPort: port}
	if err := m.call(ctx, bus.Concierge, "DetachUsbDevice", req, resp); err != nil {
		return err
	}
	if !resp.Success {
		return newError(KindService, "usb-detach", "", resp.FailureReason)
	}
	return nil
}

// ListUsb lists the USB devices attached to a VM.
func (m *Methods) ListUsb(ctx context.Context, vm string) ([]UsbDevice, error) {
	resp := &ListUsbDeviceResponse{}
	if err := m.call(ctx, bus.Concierge, "ListUsbDevices", &VmRequest{Name: vm, OwnerID: m.owner}, resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, newError(KindService, "usb-list", "", "")
	}
	return resp.Devices, nil
}
