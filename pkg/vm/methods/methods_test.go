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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/common"
	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/vmc"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus/bustest"
)

const owner = "0123abcd"

type fixture struct {
	conn      *bustest.Conn
	m         *Methods
	downloads string
}

func setup(t *testing.T, poll time.Duration) *fixture {
	root := t.TempDir()
	downloads := filepath.Join(root, "home/user", owner, "MyFiles/Downloads")
	require.NoError(t, os.MkdirAll(downloads, 0755))

	conn := bustest.New()
	for _, method := range []string{"IsCrostiniEnabled", "IsBorealisEnabled", "IsBruschettaEnabled", "IsPluginVmEnabled"} {
		conn.Reply(bus.FeatureFlags, method, &FeatureResponse{Enabled: true})
	}
	conn.Handle(bus.LockService, "NotifyVmStarting", func([]interface{}) ([]interface{}, error) {
		return nil, nil
	})

	cfg := cfgapi.Config{
		Timeout:      common.NewDuration(5 * time.Second),
		PollInterval: common.NewDuration(poll),
	}
	return &fixture{
		conn:      conn,
		m:         New(conn, owner, WithConfig(cfg), WithFileRoot(root)),
		downloads: downloads,
	}
}

func TestVmcStartTermina(t *testing.T) {
	f := setup(t, time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(f.downloads, "vmlinux"), []byte("kernel"), 0644))

	bustest.HandleMessage(f.conn, bus.Concierge, "StartVm", func(req *StartVmRequest, fds []int) (interface{}, error) {
		require.Equal(t, "termina", req.Name)
		require.Equal(t, owner, req.OwnerID)
		require.True(t, req.Features.GPU)
		require.Equal(t, []FdKind{FdKernel}, req.FdKinds)
		require.Len(t, fds, 1)

		f.conn.Emit(bus.Cicerone, SignalTremplinStarted, &TremplinStartedEvent{VmName: "other", OwnerID: owner})
		f.conn.Emit(bus.Cicerone, SignalTremplinStarted, &TremplinStartedEvent{VmName: "termina", OwnerID: owner})
		return &StartVmResponse{Success: true, Status: VmStatusStarting, VmInfo: VmInfo{Cid: 33}}, nil
	})
	bustest.HandleMessage(f.conn, bus.Cicerone, "StartLxd", func(req *StartLxdRequest, _ []int) (interface{}, error) {
		f.conn.Emit(bus.Cicerone, SignalStartLxdProgress, &ContainerEvent{VmName: "termina", OwnerID: owner, Status: ContainerRecovering})
		f.conn.Emit(bus.Cicerone, SignalStartLxdProgress, &ContainerEvent{VmName: "termina", OwnerID: owner, Status: ContainerStarted})
		return &ContainerResponse{Status: ContainerStarting}, nil
	})

	info, err := f.m.VmcStart(context.Background(), &StartOptions{
		Name:     "termina",
		Features: VmFeatures{GPU: true},
		Kernel:   "vmlinux",
	})
	require.NoError(t, err)
	require.Equal(t, int64(33), info.Cid)

	require.Equal(t, []string{
		bus.FeatureFlags.Interface + ".IsCrostiniEnabled",
		bus.LockService.Interface + ".NotifyVmStarting",
		bus.Concierge.Interface + ".StartVm",
		bus.Cicerone.Interface + ".StartLxd",
	}, f.conn.Calls())
	require.Zero(t, f.conn.Subscribers(bus.Cicerone, SignalTremplinStarted), "subscription closed")
}

func TestVmcStartRunning(t *testing.T) {
	f := setup(t, time.Hour)
	f.conn.Reply(bus.Concierge, "StartVm", &StartVmResponse{Success: true, Status: VmStatusRunning})
	f.conn.Reply(bus.Concierge, "SetUpVmUser", &SuccessResponse{Success: true})

	uid := uint32(1000)
	_, err := f.m.VmcStart(context.Background(), &StartOptions{
		Name:       "borealis",
		Type:       VmBorealis,
		User:       "chronos",
		UserUID:    &uid,
		UserGroups: []string{"audio"},
	})
	require.NoError(t, err)

	call, ok := f.conn.LastCall(bus.Concierge, "SetUpVmUser")
	require.True(t, ok)
	req := &SetUpVmUserRequest{}
	require.NoError(t, call.Decode(req))
	require.Equal(t, "chronos", req.Username)
	require.Equal(t, uint32(1000), *req.UID)
	require.Equal(t, []string{"audio"}, req.Groups)
}

func TestVmcStartFailures(t *testing.T) {
	f := setup(t, time.Hour)
	f.conn.Reply(bus.FeatureFlags, "IsBruschettaEnabled", &FeatureResponse{Enabled: false, Reason: "policy"})
	f.conn.Reply(bus.Concierge, "StartVm", &StartVmResponse{Status: VmStatusFailure, FailureReason: "no memory"})

	_, err := f.m.VmcStart(context.Background(), &StartOptions{Name: "bru", Type: VmBruschetta})
	require.ErrorIs(t, err, ErrDisabled)
	require.Contains(t, err.Error(), "policy")

	_, err = f.m.VmcStart(context.Background(), &StartOptions{Name: "termina", NoStartLxd: true})
	require.ErrorIs(t, err, ErrService)
	require.Equal(t, KindService, KindOf(err))
	require.Contains(t, err.Error(), "no memory")

	_, err = f.m.VmcStart(context.Background(), &StartOptions{Name: "termina", Kernel: "/etc/passwd"})
	require.ErrorIs(t, err, ErrPath)

	_, err = f.m.VmcStart(context.Background(), &StartOptions{Name: "termina", Type: "unknown"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestVmcStartDlc(t *testing.T) {
	f := setup(t, time.Millisecond)

	polls := 0
	bustest.HandleMessage(f.conn, bus.DlcService, "GetDlcState", func(req *DlcRequest, _ []int) (interface{}, error) {
		require.Equal(t, "borealis-dlc", req.ID)
		polls++
		switch polls {
		case 1:
			return &DlcStateResponse{State: DlcNotInstalled}, nil
		case 2, 3:
			return &DlcStateResponse{State: DlcInstalling}, nil
		}
		return &DlcStateResponse{State: DlcInstalled, RootPath: "/run/imageloader/borealis-dlc"}, nil
	})
	f.conn.Reply(bus.DlcService, "Install", struct{}{})
	f.conn.Reply(bus.Concierge, "StartVm", &StartVmResponse{Success: true, Status: VmStatusRunning})

	_, err := f.m.VmcStart(context.Background(), &StartOptions{Name: "borealis", Type: VmBorealis, DlcID: "borealis-dlc"})
	require.NoError(t, err)
	require.Equal(t, 4, polls)

	bustest.HandleMessage(f.conn, bus.DlcService, "GetDlcState", func(req *DlcRequest, _ []int) (interface{}, error) {
		return &DlcStateResponse{State: DlcNotInstalled, LastError: "ALLOCATION"}, nil
	})
	_, err = f.m.InstallDlc(context.Background(), "borealis-dlc")
	require.ErrorIs(t, err, ErrDlc)
}

func TestPluginVm(t *testing.T) {
	f := setup(t, time.Hour)
	f.conn.Reply(bus.PluginDispatcher, "StartVm", &PluginResponse{Result: 0x80011074})
	f.conn.Reply(bus.PluginDispatcher, "StopVm", &PluginResponse{Error: "disk-full"})

	_, err := f.m.VmcStart(context.Background(), &StartOptions{Name: "PvmDefault", Type: VmPlugin})
	require.ErrorIs(t, err, ErrExpiredLicense)
	require.Contains(t, err.Error(), "0x80011074")

	err = f.m.VmStop(context.Background(), "PvmDefault", VmPlugin)
	require.ErrorIs(t, err, ErrDiskFull)

	f.conn.Reply(bus.PluginDispatcher, "StopVm", &PluginResponse{})
	require.NoError(t, f.m.VmStop(context.Background(), "PvmDefault", VmPlugin))
}

func TestPluginResultKind(t *testing.T) {
	type testCase struct {
		code uint32
		kind Kind
	}
	for _, tc := range []*testCase{
		{0, ""},
		{0x80000404, KindPluginGeneric},
		{0x80000456, KindDiskFull},
		{0x80011000, KindInvalidLicense},
		{0x80011002, KindInvalidLicense},
		{0x80011004, KindInvalidLicense},
		{0x80011011, KindInvalidLicense},
		{0x80011013, KindInvalidLicense},
		{0x80057005, KindInvalidLicense},
		{0x80057010, KindInvalidLicense},
		{0x80011001, KindExpiredLicense},
		{0x80011074, KindExpiredLicense},
		{0x80057012, KindNoPortalAccess},
		{0x12345678, KindPluginGeneric},
	} {
		require.Equal(t, tc.kind, PluginResultKind(tc.code), "code 0x%08x", tc.code)
	}
}

func TestVmStop(t *testing.T) {
	f := setup(t, time.Hour)
	f.conn.Reply(bus.Concierge, "StopVm", &SuccessResponse{Success: true})
	require.NoError(t, f.m.VmStop(context.Background(), "termina", VmTermina))

	f.conn.Reply(bus.Concierge, "StopVm", &SuccessResponse{FailureReason: "not running"})
	err := f.m.VmStop(context.Background(), "termina", VmTermina)
	require.ErrorIs(t, err, ErrService)
	require.Contains(t, err.Error(), "not running")
}

func TestCreateWithSignals(t *testing.T) {
	f := setup(t, time.Hour)
	id := uuid.NewString()

	bustest.HandleMessage(f.conn, bus.Concierge, "CreateDiskImage", func(req *CreateDiskImageRequest, _ []int) (interface{}, error) {
		require.Equal(t, DiskAuto, req.ImageType)
		require.Equal(t, LocationCryptohome, req.Location)
		require.Equal(t, uint64(1<<30), req.DiskSize)

		f.conn.Emit(bus.Concierge, SignalDiskImageProgress, &DiskImageStatusResponse{CommandUUID: uuid.NewString(), Status: DiskStatusFailed})
		f.conn.Emit(bus.Concierge, SignalDiskImageProgress, &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusInProgress, Progress: 50})
		f.conn.Emit(bus.Concierge, SignalDiskImageProgress, &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusCreated, Progress: 100})
		return &CreateDiskImageResponse{Status: DiskStatusInProgress, CommandUUID: id, DiskPath: "/home/root/x/termina.img"}, nil
	})

	var progress []uint32
	path, err := f.m.Create(context.Background(), &CreateOptions{Name: "termina", Size: 1 << 30}, func(p uint32) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	require.Equal(t, "/home/root/x/termina.img", path)
	require.Equal(t, []uint32{50}, progress)
}

func TestCreateInProgressPath(t *testing.T) {
	f := setup(t, time.Hour)
	id := uuid.NewString()

	bustest.HandleMessage(f.conn, bus.Concierge, "CreateDiskImage", func(req *CreateDiskImageRequest, _ []int) (interface{}, error) {
		f.conn.Emit(bus.Concierge, SignalDiskImageProgress, &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusCreated, Progress: 100})
		return &CreateDiskImageResponse{Status: DiskStatusInProgress, CommandUUID: id}, nil
	})
	bustest.HandleMessage(f.conn, bus.Concierge, "ListVmDisks", func(req *ListVmDisksRequest, _ []int) (interface{}, error) {
		require.Equal(t, "termina", req.VmName)
		return &ListVmDisksResponse{
			Success: true,
			Images: []DiskImage{
				{Name: "termina", Path: "/home/root/x/termina.img"},
			},
		}, nil
	})

	path, err := f.m.Create(context.Background(), &CreateOptions{Name: "termina"}, nil)
	require.NoError(t, err)
	require.Equal(t, "/home/root/x/termina.img", path)

	f.conn.Reply(bus.Concierge, "ListVmDisks", &ListVmDisksResponse{FailureReason: "busy"})
	bustest.HandleMessage(f.conn, bus.Concierge, "CreateDiskImage", func(req *CreateDiskImageRequest, _ []int) (interface{}, error) {
		f.conn.Emit(bus.Concierge, SignalDiskImageProgress, &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusCreated, Progress: 100})
		return &CreateDiskImageResponse{Status: DiskStatusInProgress, CommandUUID: id}, nil
	})

	path, err = f.m.Create(context.Background(), &CreateOptions{Name: "termina"}, nil)
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestCreateWithPolling(t *testing.T) {
	f := setup(t, time.Millisecond)
	id := uuid.NewString()

	f.conn.Reply(bus.Concierge, "CreateDiskImage", &CreateDiskImageResponse{Status: DiskStatusInProgress, CommandUUID: id})
	polls := 0
	bustest.HandleMessage(f.conn, bus.Concierge, "DiskImageStatus", func(req *DiskImageStatusRequest, _ []int) (interface{}, error) {
		require.Equal(t, id, req.CommandUUID)
		polls++
		if polls < 3 {
			return &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusInProgress}, nil
		}
		return &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusNotEnoughSpace}, nil
	})

	_, err := f.m.Create(context.Background(), &CreateOptions{Name: "termina"}, nil)
	require.ErrorIs(t, err, ErrOutOfSpace)
	require.Equal(t, 3, polls)
}

func TestCreateStatus(t *testing.T) {
	type testCase struct {
		name   string
		status DiskStatus
		err    error
	}
	for _, tc := range []*testCase{
		{name: "created", status: DiskStatusCreated},
		{name: "exists", status: DiskStatusExists},
		{name: "out of space", status: DiskStatusNotEnoughSpace, err: ErrOutOfSpace},
		{name: "failed", status: DiskStatusFailed, err: ErrService},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, time.Hour)
			f.conn.Reply(bus.Concierge, "CreateDiskImage", &CreateDiskImageResponse{Status: tc.status})
			_, err := f.m.Create(context.Background(), &CreateOptions{Name: "termina"}, nil)
			if tc.err == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestCreatePluginFromSource(t *testing.T) {
	f := setup(t, time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(f.downloads, "pvm.zip"), make([]byte, 1234), 0644))

	bustest.HandleMessage(f.conn, bus.Concierge, "CreateDiskImage", func(req *CreateDiskImageRequest, fds []int) (interface{}, error) {
		require.Equal(t, DiskPlugin, req.ImageType)
		require.Equal(t, LocationPlugin, req.Location)
		require.Equal(t, uint64(1234), req.SourceSize)
		require.Len(t, fds, 1)
		return &CreateDiskImageResponse{Status: DiskStatusCreated}, nil
	})

	_, err := f.m.Create(context.Background(), &CreateOptions{Name: "PvmDefault", Type: VmPlugin, Source: "pvm.zip"}, nil)
	require.NoError(t, err)
}

func TestExport(t *testing.T) {
	f := setup(t, time.Hour)
	id := uuid.NewString()

	f.conn.Reply(bus.Concierge, "ExportDiskImage", &DiskOpResponse{Status: DiskStatusInProgress, CommandUUID: id})
	got, err := f.m.Export(context.Background(), &ExportOptions{Name: "termina", Path: "backup.tini", DigestPath: "backup.sha256"}, nil)
	require.NoError(t, err)
	require.Equal(t, id, got)
	for _, name := range []string{"backup.tini", "backup.sha256"} {
		_, err = os.Stat(filepath.Join(f.downloads, name))
		require.NoError(t, err, "committed %s kept", name)
	}

	call, _ := f.conn.LastCall(bus.Concierge, "ExportDiskImage")
	require.Len(t, call.FDs(), 2)
	req := &ExportDiskImageRequest{}
	require.NoError(t, call.Decode(req))
	require.True(t, req.GenerateSha256)

	f.conn.Reply(bus.Concierge, "ExportDiskImage", &DiskOpResponse{Status: DiskStatusFailed, FailureReason: "busy"})
	_, err = f.m.Export(context.Background(), &ExportOptions{Name: "termina", Path: "failed.tini"}, nil)
	require.ErrorIs(t, err, ErrService)
	_, err = os.Stat(filepath.Join(f.downloads, "failed.tini"))
	require.True(t, os.IsNotExist(err), "uncommitted output removed")

	_, err = f.m.Export(context.Background(), &ExportOptions{Name: "termina", Path: "backup.tini"}, nil)
	require.ErrorIs(t, err, ErrPath, "output must not exist")
}

func TestImportAndResize(t *testing.T) {
	f := setup(t, time.Hour)
	id := uuid.NewString()
	require.NoError(t, os.WriteFile(filepath.Join(f.downloads, "backup.tini"), make([]byte, 100), 0644))

	bustest.HandleMessage(f.conn, bus.Concierge, "ImportDiskImage", func(req *ImportDiskImageRequest, fds []int) (interface{}, error) {
		require.Equal(t, uint64(100), req.SourceSize)
		require.Len(t, fds, 1)
		f.conn.Emit(bus.Concierge, SignalDiskImageProgress, &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusCreated})
		return &DiskOpResponse{Status: DiskStatusInProgress, CommandUUID: id}, nil
	})
	got, err := f.m.Import(context.Background(), &ImportOptions{Name: "termina", Path: "backup.tini", Wait: true}, nil)
	require.NoError(t, err)
	require.Equal(t, id, got)

	f.conn.Reply(bus.Concierge, "ResizeDiskImage", &DiskOpResponse{Status: DiskStatusResized})
	got, err = f.m.Resize(context.Background(), "termina", 10<<30, false, nil)
	require.NoError(t, err)
	require.Empty(t, got)

	f.conn.Reply(bus.Concierge, "ResizeDiskImage", &DiskOpResponse{Status: DiskStatusInProgress, CommandUUID: id})
	got, err = f.m.Resize(context.Background(), "termina", 10<<30, false, nil)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestDiskOpStatus(t *testing.T) {
	f := setup(t, time.Hour)
	id := uuid.NewString()

	_, err := f.m.DiskOpStatus(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrInvalid)
	require.Empty(t, f.conn.Calls())

	f.conn.Reply(bus.Concierge, "DiskImageStatus", &DiskImageStatusResponse{CommandUUID: id, Status: DiskStatusInProgress, Progress: 42})
	st, err := f.m.DiskOpStatus(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, uint32(42), st.Progress)
}

func TestDestroyDisk(t *testing.T) {
	f := setup(t, time.Hour)
	for _, status := range []DiskStatus{DiskStatusDestroyed, DiskStatusDoesNotExist} {
		f.conn.Reply(bus.Concierge, "DestroyDiskImage", &DiskOpResponse{Status: status})
		require.NoError(t, f.m.DestroyDisk(context.Background(), "termina"))
	}
	f.conn.Reply(bus.Concierge, "DestroyDiskImage", &DiskOpResponse{Status: DiskStatusFailed})
	require.ErrorIs(t, f.m.DestroyDisk(context.Background(), "termina"), ErrService)
}

func TestContainerStart(t *testing.T) {
	type testCase struct {
		name    string
		status  ContainerStatus
		signals []ContainerStatus
		err     error
	}
	for _, tc := range []*testCase{
		{
			name:   "already running",
			status: ContainerRunning,
		},
		{
			name:    "started",
			status:  ContainerStarting,
			signals: []ContainerStatus{ContainerRemapping, ContainerStarting, ContainerStarted},
		},
		{
			name:    "failed",
			status:  ContainerStarting,
			signals: []ContainerStatus{ContainerStarting, ContainerFailed},
			err:     ErrService,
		},
		{
			name:   "rejected",
			status: ContainerFailed,
			err:    ErrService,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t, time.Hour)
			bustest.HandleMessage(f.conn, bus.Cicerone, "StartLxdContainer", func(req *StartLxdContainerRequest, _ []int) (interface{}, error) {
				require.Equal(t, PrivilegePrivileged, req.Privilege)
				f.conn.Emit(bus.Cicerone, SignalLxdContainerStarting, &ContainerEvent{
					VmName: "termina", OwnerID: owner, ContainerName: "other", Status: ContainerFailed,
				})
				for _, s := range tc.signals {
					f.conn.Emit(bus.Cicerone, SignalLxdContainerStarting, &ContainerEvent{
						VmName: "termina", OwnerID: owner, ContainerName: "penguin", Status: s,
					})
				}
				return &ContainerResponse{Status: tc.status}, nil
			})

			err := f.m.ContainerStart(context.Background(), "termina", "penguin", PrivilegePrivileged, time.Second)
			if tc.err == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestContainerStartTimeout(t *testing.T) {
	f := setup(t, time.Hour)
	f.conn.Reply(bus.Cicerone, "StartLxdContainer", &ContainerResponse{Status: ContainerStarting})

	err := f.m.ContainerStart(context.Background(), "termina", "penguin", "", 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestContainerCreate(t *testing.T) {
	f := setup(t, time.Hour)

	err := f.m.ContainerCreate(context.Background(), &ContainerOptions{VmName: "termina", Name: "penguin", RootfsPath: "rootfs.tar"})
	require.ErrorIs(t, err, ErrInvalid)

	bustest.HandleMessage(f.conn, bus.Cicerone, "CreateLxdContainer", func(req *CreateLxdContainerRequest, _ []int) (interface{}, error) {
		require.Equal(t, "https://storage.googleapis.com/cros-containers", req.ImageServer)
		f.conn.Emit(bus.Cicerone, SignalLxdContainerCreated, &ContainerEvent{
			VmName: "termina", OwnerID: owner, ContainerName: "penguin", Status: ContainerCreated,
		})
		return &ContainerResponse{Status: ContainerCreating}, nil
	})
	err = f.m.ContainerCreate(context.Background(), &ContainerOptions{
		VmName:      "termina",
		Name:        "penguin",
		ImageServer: "https://storage.googleapis.com/cros-containers",
		ImageAlias:  "debian/bookworm",
	})
	require.NoError(t, err)
}

func TestContainerUpdateDevices(t *testing.T) {
	f := setup(t, time.Hour)
	bustest.HandleMessage(f.conn, bus.Cicerone, "UpdateContainerDevices", func(req *UpdateContainerDevicesRequest, _ []int) (interface{}, error) {
		require.Equal(t, map[string]bool{"microphone": true, "camera": false}, req.Updates)
		return &UpdateContainerDevicesResponse{
			Status:  ContainerSuccess,
			Results: map[string]ContainerStatus{"microphone": ContainerSuccess, "camera": ContainerSuccess},
		}, nil
	})
	results, err := f.m.ContainerUpdateDevices(context.Background(), "termina", "penguin", map[string]bool{"microphone": true, "camera": false})
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestAttachUsb(t *testing.T) {
	f := setup(t, time.Hour)
	dev, err := os.Create(filepath.Join(t.TempDir(), "usb"))
	require.NoError(t, err)
	defer dev.Close()

	f.conn.Handle(bus.PermissionBroker, "OpenPath", func(args []interface{}) ([]interface{}, error) {
		require.Equal(t, "/dev/bus/usb/001/012", args[0])
		fd, err := unix.Dup(int(dev.Fd()))
		require.NoError(t, err)
		return []interface{}{dbus.UnixFD(fd)}, nil
	})
	bustest.HandleMessage(f.conn, bus.Concierge, "AttachUsbDevice", func(req *AttachUsbDeviceRequest, fds []int) (interface{}, error) {
		require.Equal(t, uint32(1), req.BusNum)
		require.Equal(t, uint32(12), req.PortNum)
		require.Len(t, fds, 1)
		return &AttachUsbDeviceResponse{Success: true, GuestPort: 3}, nil
	})
	bustest.HandleMessage(f.conn, bus.Cicerone, "AttachUsbToContainer", func(req *AttachUsbToContainerRequest, _ []int) (interface{}, error) {
		require.Equal(t, uint32(3), req.PortNum)
		return &ContainerResponse{Status: ContainerSuccess}, nil
	})

	port, err := f.m.AttachUsb(context.Background(), "termina", 1, 12, "penguin")
	require.NoError(t, err)
	require.Equal(t, uint32(3), port)

	f.conn.Reply(bus.Concierge, "AttachUsbDevice", &AttachUsbDeviceResponse{Reason: "no free port"})
	_, err = f.m.AttachUsb(context.Background(), "termina", 1, 12, "")
	require.ErrorIs(t, err, ErrService)
	require.Contains(t, err.Error(), "no free port")
}

func TestSharePath(t *testing.T) {
	f := setup(t, time.Hour)
	f.conn.Reply(bus.Concierge, "GetVmInfo", &GetVmInfoResponse{Success: true, VmInfo: VmInfo{SeneschalHandle: 7}})
	bustest.HandleMessage(f.conn, bus.Seneschal, "SharePath", func(req *SharePathRequest, _ []int) (interface{}, error) {
		require.Equal(t, uint64(7), req.Handle)
		require.Equal(t, "MyFiles/Downloads/photos", req.Path)
		return &SharePathResponse{Success: true, Path: req.Path}, nil
	})
	f.conn.Reply(bus.Seneschal, "UnsharePath", &SuccessResponse{Success: true})

	guest, err := f.m.SharePath(context.Background(), "termina", "photos")
	require.NoError(t, err)
	require.Equal(t, "/mnt/shared/MyFiles/Downloads/photos", guest)

	require.NoError(t, f.m.UnsharePath(context.Background(), "termina", "photos"))

	_, err = f.m.SharePath(context.Background(), "termina", "/etc")
	require.ErrorIs(t, err, ErrPath)
}

func TestResolveOwner(t *testing.T) {
	conn := bustest.New()
	ctx := context.Background()

	conn.Reply(bus.SessionManager, "RetrieveActiveSessions", &ActiveSessionsResponse{Sessions: map[string]string{}})
	_, err := ResolveOwner(ctx, conn, "", time.Second)
	require.ErrorIs(t, err, ErrNoSession)

	conn.Reply(bus.SessionManager, "RetrieveActiveSessions", &ActiveSessionsResponse{Sessions: map[string]string{"user@example.com": owner}})
	got, err := ResolveOwner(ctx, conn, "", time.Second)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	got, err = ResolveOwner(ctx, conn, owner, time.Second)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	_, err = ResolveOwner(ctx, conn, "deadbeef", time.Second)
	require.ErrorIs(t, err, ErrNoSession)

	conn.Reply(bus.SessionManager, "RetrieveActiveSessions", &ActiveSessionsResponse{Sessions: map[string]string{"a@example.com": "1", "b@example.com": "2"}})
	_, err = ResolveOwner(ctx, conn, "", time.Second)
	require.ErrorIs(t, err, ErrNoSession)
}

func TestPrimaryIo(t *testing.T) {
	f := setup(t, time.Hour)
	f.conn.Reply(bus.PrimaryIO, "GetIoDevices", &GetIoDevicesResponse{Devices: []IoDevice{{Name: "kbd", Kind: "keyboard", Primary: true}}})
	f.conn.Reply(bus.PrimaryIO, "UnsetPrimaryKeyboard", struct{}{})

	devices, err := f.m.ListIoDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.NoError(t, f.m.UnsetPrimaryKeyboard(context.Background()))
	require.ErrorIs(t, f.m.UnsetPrimaryMouse(context.Background()), ErrBus)
}
