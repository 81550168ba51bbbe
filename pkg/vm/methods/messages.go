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

// Messages exchanged with the VM services.

// VmType is the kind of a VM.
type VmType string

const (
	VmTermina    VmType = "termina"
	VmBorealis   VmType = "borealis"
	VmBruschetta VmType = "bruschetta"
	VmBaguette   VmType = "baguette"
	VmPlugin     VmType = "pluginvm"
)

// ParseVmType parses the name of a VM type.
func ParseVmType(s string) (VmType, error) {
	switch t := VmType(s); t {
	case VmTermina, VmBorealis, VmBruschetta, VmBaguette, VmPlugin:
		return t, nil
	case "":
		return VmTermina, nil
	}
	return "", newError(KindInvalid, "parse-vm-type", "", "unknown VM type "+s)
}

// DiskImageType is the format of a disk image.
type DiskImageType string

const (
	DiskRaw    DiskImageType = "raw"
	DiskQcow2  DiskImageType = "qcow2"
	DiskAuto   DiskImageType = "auto"
	DiskPlugin DiskImageType = "plugin"
)

// StorageLocation is where a disk image is stored.
type StorageLocation string

const (
	LocationCryptohome StorageLocation = "cryptohome"
	LocationPlugin     StorageLocation = "plugin"
)

// DiskStatus is the status of a disk image operation.
type DiskStatus string

const (
	DiskStatusUnknown        DiskStatus = "unknown"
	DiskStatusCreated        DiskStatus = "created"
	DiskStatusExists         DiskStatus = "exists"
	DiskStatusFailed         DiskStatus = "failed"
	DiskStatusDoesNotExist   DiskStatus = "does-not-exist"
	DiskStatusDestroyed      DiskStatus = "destroyed"
	DiskStatusInProgress     DiskStatus = "in-progress"
	DiskStatusResized        DiskStatus = "resized"
	DiskStatusNotEnoughSpace DiskStatus = "not-enough-space"
	DiskStatusCancelled      DiskStatus = "cancelled"
)

// VmStatus is the status of a VM being started.
type VmStatus string

const (
	VmStatusUnknown  VmStatus = "unknown"
	VmStatusStarting VmStatus = "starting"
	VmStatusRunning  VmStatus = "running"
	VmStatusFailure  VmStatus = "failure"
)

// DiskImage describes a disk image.
type DiskImage struct {
	Name           string          `pb:"1"`
	Path           string          `pb:"2"`
	Size           uint64          `pb:"3"`
	MinSize        uint64          `pb:"4"`
	Type           DiskImageType   `pb:"5"`
	Location       StorageLocation `pb:"6"`
	UserChosenSize bool            `pb:"7"`
}

// DiskImageParam is an extra parameter for image creation.
type DiskImageParam struct {
	Key   string `pb:"1"`
	Value string `pb:"2"`
}

type CreateDiskImageRequest struct {
	VmName     string           `pb:"1"`
	OwnerID    string           `pb:"2"`
	DiskSize   uint64           `pb:"3"`
	ImageType  DiskImageType    `pb:"4"`
	Location   StorageLocation  `pb:"5"`
	SourceSize uint64           `pb:"6"`
	Params     []DiskImageParam `pb:"7"`
}

type CreateDiskImageResponse struct {
	Status        DiskStatus `pb:"1"`
	DiskPath      string     `pb:"2"`
	FailureReason string     `pb:"3"`
	CommandUUID   string     `pb:"4"`
}

type DestroyDiskImageRequest struct {
	VmName  string `pb:"1"`
	OwnerID string `pb:"2"`
}

type ExportDiskImageRequest struct {
	VmName         string `pb:"1"`
	OwnerID        string `pb:"2"`
	GenerateSha256 bool   `pb:"3"`
	Force          bool   `pb:"4"`
}

type ImportDiskImageRequest struct {
	VmName     string          `pb:"1"`
	OwnerID    string          `pb:"2"`
	Location   StorageLocation `pb:"3"`
	SourceSize uint64          `pb:"4"`
}

type ResizeDiskImageRequest struct {
	VmName   string `pb:"1"`
	OwnerID  string `pb:"2"`
	DiskSize uint64 `pb:"3"`
}

// DiskOpResponse is the reply to destroy, export, import and resize.
type DiskOpResponse struct {
	Status        DiskStatus `pb:"1"`
	CommandUUID   string     `pb:"2"`
	FailureReason string     `pb:"3"`
}

type DiskImageStatusRequest struct {
	CommandUUID string `pb:"1"`
}

// DiskImageStatusResponse is both the reply to DiskImageStatus and the
// payload of DiskImageProgress signals.
type DiskImageStatusResponse struct {
	CommandUUID   string     `pb:"1"`
	Status        DiskStatus `pb:"2"`
	Progress      uint32     `pb:"3"`
	FailureReason string     `pb:"4"`
}

type ListVmDisksRequest struct {
	OwnerID      string          `pb:"1"`
	Location     StorageLocation `pb:"2"`
	AllLocations bool            `pb:"3"`
	VmName       string          `pb:"4"`
}

type ListVmDisksResponse struct {
	Success       bool        `pb:"1"`
	Images        []DiskImage `pb:"2"`
	TotalSize     uint64      `pb:"3"`
	FailureReason string      `pb:"4"`
}

// FdKind tells what a file descriptor passed with StartVm holds.
type FdKind string

const (
	FdKernel  FdKind = "kernel"
	FdRootfs  FdKind = "rootfs"
	FdInitrd  FdKind = "initrd"
	FdStorage FdKind = "storage"
	FdBios    FdKind = "bios"
	FdPflash  FdKind = "pflash"
)

// Disk is an extra disk attached to a VM.
type Disk struct {
	Path     string `pb:"1"`
	Writable bool   `pb:"2"`
	DoMount  bool   `pb:"3"`
}

// VmFeatures are optional features of a started VM.
type VmFeatures struct {
	GPU                  bool     `pb:"1"`
	BigGL                bool     `pb:"2"`
	VirtgpuNativeContext bool     `pb:"3"`
	VtpmProxy            bool     `pb:"4"`
	AudioCapture         bool     `pb:"5"`
	KernelParams         []string `pb:"6"`
	OemStrings           []string `pb:"7"`
}

type StartVmRequest struct {
	Name           string     `pb:"1"`
	OwnerID        string     `pb:"2"`
	VmType         VmType     `pb:"3"`
	Features       VmFeatures `pb:"4"`
	Disks          []Disk     `pb:"5"`
	FdKinds        []FdKind   `pb:"6"`
	DlcID          string     `pb:"7"`
	ToolsDlcID     string     `pb:"8"`
	BiosDlcID      string     `pb:"9"`
	WritableRootfs bool       `pb:"10"`
	StartTermina   bool       `pb:"11"`
	Timeout        uint32     `pb:"12"`
}

// VmInfo describes a running VM.
type VmInfo struct {
	IPv4Address     uint32 `pb:"1"`
	Pid             int64  `pb:"2"`
	Cid             int64  `pb:"3"`
	SeneschalHandle uint64 `pb:"4"`
	Permission      string `pb:"5"`
}

type StartVmResponse struct {
	Success       bool     `pb:"1"`
	Status        VmStatus `pb:"2"`
	FailureReason string   `pb:"3"`
	VmInfo        VmInfo   `pb:"4"`
}

// ActiveSessionsResponse maps the users of the active sessions to their
// owner ids.
type ActiveSessionsResponse struct {
	Sessions map[string]string `pb:"1"`
}

// VmRequest is the request of the calls naming only a VM.
type VmRequest struct {
	Name    string `pb:"1"`
	OwnerID string `pb:"2"`
}

// SuccessResponse is the reply of calls which only report success.
type SuccessResponse struct {
	Success       bool   `pb:"1"`
	FailureReason string `pb:"2"`
}

type GetVmInfoResponse struct {
	Success bool   `pb:"1"`
	VmInfo  VmInfo `pb:"2"`
}

type AdjustVmRequest struct {
	Name      string   `pb:"1"`
	OwnerID   string   `pb:"2"`
	Operation string   `pb:"3"`
	Params    []string `pb:"4"`
}

type GetVmLogsResponse struct {
	Log string `pb:"1"`
}

type AttachUsbDeviceRequest struct {
	VmName  string `pb:"1"`
	OwnerID string `pb:"2"`
	BusNum  uint32 `pb:"3"`
	PortNum uint32 `pb:"4"`
}

type AttachUsbDeviceResponse struct {
	Success   bool   `pb:"1"`
	GuestPort uint32 `pb:"2"`
	Reason    string `pb:"3"`
}

type AttachKeyRequest struct {
	VmName  string `pb:"1"`
	OwnerID string `pb:"2"`
}

type DetachUsbDeviceRequest struct {
	VmName    string `pb:"1"`
	OwnerID   string `pb:"2"`
	GuestPort uint32 `pb:"3"`
}

// UsbDevice is a USB device attached to a VM.
type UsbDevice struct {
	GuestPort uint32 `pb:"1"`
	VendorID  uint32 `pb:"2"`
	ProductID uint32 `pb:"3"`
	Name      string `pb:"4"`
}

type ListUsbDeviceResponse struct {
	Success bool        `pb:"1"`
	Devices []UsbDevice `pb:"2"`
}

type SetUpVmUserRequest struct {
	VmName   string   `pb:"1"`
	OwnerID  string   `pb:"2"`
	Username string   `pb:"3"`
	UID      *uint32  `pb:"4"`
	Groups   []string `pb:"5"`
}

// ContainerStatus is the status reported by the container manager.
type ContainerStatus string

const (
	ContainerUnknown          ContainerStatus = "unknown"
	ContainerCreating         ContainerStatus = "creating"
	ContainerCreated          ContainerStatus = "created"
	ContainerExists           ContainerStatus = "exists"
	ContainerStarting         ContainerStatus = "starting"
	ContainerStarted          ContainerStatus = "started"
	ContainerRunning          ContainerStatus = "running"
	ContainerRemapping        ContainerStatus = "remapping"
	ContainerRecovering       ContainerStatus = "recovering"
	ContainerAlreadyRunning   ContainerStatus = "already-running"
	ContainerDownloadTimedOut ContainerStatus = "download-timed-out"
	ContainerStartTimedOut    ContainerStatus = "start-timed-out"
	ContainerCancelled        ContainerStatus = "cancelled"
	ContainerSuccess          ContainerStatus = "success"
	ContainerFailed           ContainerStatus = "failed"
)

// ContainerPrivilege is the privilege level a container is started with.
type ContainerPrivilege string

const (
	PrivilegeUnchanged    ContainerPrivilege = "unchanged"
	PrivilegeUnprivileged ContainerPrivilege = "unprivileged"
	PrivilegePrivileged   ContainerPrivilege = "privileged"
)

type CreateLxdContainerRequest struct {
	VmName        string `pb:"1"`
	OwnerID       string `pb:"2"`
	ContainerName string `pb:"3"`
	ImageServer   string `pb:"4"`
	ImageAlias    string `pb:"5"`
	RootfsPath    string `pb:"6"`
	MetadataPath  string `pb:"7"`
}

type StartLxdContainerRequest struct {
	VmName        string             `pb:"1"`
	OwnerID       string             `pb:"2"`
	ContainerName string             `pb:"3"`
	Privilege     ContainerPrivilege `pb:"4"`
}

type SetUpLxdContainerUserRequest struct {
	VmName        string `pb:"1"`
	OwnerID       string `pb:"2"`
	ContainerName string `pb:"3"`
	Username      string `pb:"4"`
}

type AttachUsbToContainerRequest struct {
	VmName        string `pb:"1"`
	OwnerID       string `pb:"2"`
	ContainerName string `pb:"3"`
	PortNum       uint32 `pb:"4"`
}

type UpdateContainerDevicesRequest struct {
	VmName        string          `pb:"1"`
	OwnerID       string          `pb:"2"`
	ContainerName string          `pb:"3"`
	Updates       map[string]bool `pb:"4"`
}

type UpdateContainerDevicesResponse struct {
	Status  ContainerStatus            `pb:"1"`
	Results map[string]ContainerStatus `pb:"2"`
}

type StartLxdRequest struct {
	VmName  string `pb:"1"`
	OwnerID string `pb:"2"`
}

// ContainerResponse is the reply of the container manager calls.
type ContainerResponse struct {
	Status        ContainerStatus `pb:"1"`
	FailureReason string          `pb:"2"`
}

// ContainerEvent is the payload of the container manager signals.
type ContainerEvent struct {
	VmName        string          `pb:"1"`
	OwnerID       string          `pb:"2"`
	ContainerName string          `pb:"3"`
	Status        ContainerStatus `pb:"4"`
	FailureReason string          `pb:"5"`
}

// TremplinStartedEvent tells that the container agent of a VM is up.
type TremplinStartedEvent struct {
	VmName  string `pb:"1"`
	OwnerID string `pb:"2"`
}

type SharePathRequest struct {
	Handle   uint64 `pb:"1"`
	Path     string `pb:"2"`
	Location string `pb:"3"`
	OwnerID  string `pb:"4"`
}

type SharePathResponse struct {
	Success       bool   `pb:"1"`
	Path          string `pb:"2"`
	FailureReason string `pb:"3"`
}

type UnsharePathRequest struct {
	Handle uint64 `pb:"1"`
	Path   string `pb:"2"`
}

// FeatureResponse is the reply of the feature flag queries.
type FeatureResponse struct {
	Enabled bool   `pb:"1"`
	Reason  string `pb:"2"`
}

// DlcState is the install state of a DLC.
type DlcState string

const (
	DlcNotInstalled DlcState = "not-installed"
	DlcInstalling   DlcState = "installing"
	DlcInstalled    DlcState = "installed"
)

type DlcRequest struct {
	ID string `pb:"1"`
}

type DlcStateResponse struct {
	State     DlcState `pb:"1"`
	LastError string   `pb:"2"`
	RootPath  string   `pb:"3"`
}

// PluginRequest is the request of the plugin dispatcher calls.
type PluginRequest struct {
	OwnerID string `pb:"1"`
	VmName  string `pb:"2"`
}

// PluginResponse carries the typed error or the native result code of
// the plugin dispatcher.
type PluginResponse struct {
	Error  string `pb:"1"`
	Result uint32 `pb:"2"`
}

type SendProblemReportRequest struct {
	OwnerID     string `pb:"1"`
	VmName      string `pb:"2"`
	Name        string `pb:"3"`
	Email       string `pb:"4"`
	Description string `pb:"5"`
}

type SendProblemReportResponse struct {
	Success       bool   `pb:"1"`
	ReportID      string `pb:"2"`
	FailureReason string `pb:"3"`
}

type InspectBackupResponse struct {
	Success       bool   `pb:"1"`
	Info          string `pb:"2"`
	FailureReason string `pb:"3"`
}

// IoDevice is a device managed by the primary IO manager.
type IoDevice struct {
	Name    string `pb:"1"`
	Primary bool   `pb:"2"`
	Kind    string `pb:"3"`
}

type GetIoDevicesResponse struct {
	Devices []IoDevice `pb:"1"`
}
