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

import "strconv"

// enum maps the values of a string enum to their wire numbers, the index
// of a value in the table. Empty entries are unused numbers.
type enum[T ~string] []T

func (e enum[T]) number(v T) int32 {
	if v == "" {
		return 0
	}
	for i, s := range e {
		if s == v {
			return int32(i)
		}
	}
	// Values received with a number missing from the table.
	if n, err := strconv.Atoi(string(v)); err == nil {
		return int32(n)
	}
	return 0
}

func (e enum[T]) value(n int32) T {
	if n >= 0 && int(n) < len(e) && e[n] != "" {
		return e[n]
	}
	return T(strconv.Itoa(int(n)))
}

var (
	vmTypes = enum[VmType]{
		VmTermina, "", VmPlugin, VmBorealis, VmBruschetta, VmBaguette,
	}
	diskImageTypes = enum[DiskImageType]{
		DiskRaw, DiskQcow2, DiskAuto, DiskPlugin,
	}
	storageLocations = enum[StorageLocation]{
		LocationCryptohome, LocationPlugin,
	}
	diskStatuses = enum[DiskStatus]{
		DiskStatusUnknown, DiskStatusCreated, DiskStatusExists, DiskStatusFailed,
		DiskStatusDoesNotExist, DiskStatusDestroyed, DiskStatusInProgress,
		DiskStatusResized, DiskStatusNotEnoughSpace, DiskStatusCancelled,
	}
	vmStatuses = enum[VmStatus]{
		VmStatusUnknown, VmStatusRunning, VmStatusStarting, VmStatusFailure,
	}
	fdKinds = enum[FdKind]{
		FdKernel, FdRootfs, FdInitrd, FdStorage, FdBios, FdPflash,
	}
	containerStatuses = enum[ContainerStatus]{
		ContainerUnknown, ContainerCreating, ContainerCreated, ContainerExists,
		ContainerStarting, ContainerStarted, ContainerRunning, ContainerRemapping,
		ContainerRecovering, ContainerAlreadyRunning, ContainerDownloadTimedOut,
		ContainerStartTimedOut, ContainerCancelled, ContainerSuccess, ContainerFailed,
	}
	containerPrivileges = enum[ContainerPrivilege]{
		PrivilegeUnchanged, PrivilegeUnprivileged, PrivilegePrivileged,
	}
	dlcStates = enum[DlcState]{
		DlcNotInstalled, DlcInstalling, DlcInstalled,
	}
)

// Wire numbers of the message enums, for the bus encoding.

func (v VmType) EnumNumber() int32 {
	return vmTypes.number(v)
}

func (v *VmType) SetEnumNumber(n int32) {
	*v = vmTypes.value(n)
}

func (v DiskImageType) EnumNumber() int32 {
	return diskImageTypes.number(v)
}

func (v *DiskImageType) SetEnumNumber(n int32) {
	*v = diskImageTypes.value(n)
}

func (v StorageLocation) EnumNumber() int32 {
	return storageLocations.number(v)
}

func (v *StorageLocation) SetEnumNumber(n int32) {
	*v = storageLocations.value(n)
}

func (v DiskStatus) EnumNumber() int32 {
	return diskStatuses.number(v)
}

func (v *DiskStatus) SetEnumNumber(n int32) {
	*v = diskStatuses.value(n)
}

func (v VmStatus) EnumNumber() int32 {
	return vmStatuses.number(v)
}

func (v *VmStatus) SetEnumNumber(n int32) {
	*v = vmStatuses.value(n)
}

func (v FdKind) EnumNumber() int32 {
	return fdKinds.number(v)
}

func (v *FdKind) SetEnumNumber(n int32) {
	*v = fdKinds.value(n)
}

func (v ContainerStatus) EnumNumber() int32 {
	return containerStatuses.number(v)
}

func (v *ContainerStatus) SetEnumNumber(n int32) {
	*v = containerStatuses.value(n)
}

func (v ContainerPrivilege) EnumNumber() int32 {
	return containerPrivileges.number(v)
}

func (v *ContainerPrivilege) SetEnumNumber(n int32) {
	*v = containerPrivileges.value(n)
}

func (v DlcState) EnumNumber() int32 {
	return dlcStates.number(v)
}

func (v *DlcState) SetEnumNumber(n int32) {
	*v = dlcStates.value(n)
}
