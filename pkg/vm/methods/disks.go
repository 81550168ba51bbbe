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
	"time"

	"github.com/google/uuid"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/userpath"
)

// ProgressFunc is called with the percentage of a disk operation done.
type ProgressFunc func(percent uint32)

// CreateOptions are the options of Create.
type CreateOptions struct {
	Name      string
	Type      VmType
	Size      uint64
	ImageType DiskImageType
	Params    []DiskImageParam
	// Source is an optional image to create the disk from.
	Source string
	Media  string
}

func imageDefaults(t VmType, imageType DiskImageType) (DiskImageType, StorageLocation) {
	if t == VmPlugin {
		return DiskPlugin, LocationPlugin
	}
	if imageType == "" {
		imageType = DiskAuto
	}
	return imageType, LocationCryptohome
}

// Create creates the disk image of a VM, waiting for the creation to
// finish. It returns the path of the image. The reply to a creation left
// in progress carries no path, which is then looked up once the creation
// is done. The path is empty if that lookup fails.
func (m *Methods) Create(ctx context.Context, o *CreateOptions, progress ProgressFunc) (string, error) {
	if o.Type == "" {
		o.Type = VmTermina
	}
	if err := m.ensureEnabled(ctx, o.Type); err != nil {
		return "", err
	}

	imageType, location := imageDefaults(o.Type, o.ImageType)
	req := &CreateDiskImageRequest{
		VmName:    o.Name,
		OwnerID:   m.owner,
		DiskSize:  o.Size,
		ImageType: imageType,
		Location:  location,
		Params:    o.Params,
	}

	var fds []*os.File
	if o.Source != "" {
		f, err := m.resolver.OpenInput(o.Source, o.Media, false)
		if err != nil {
			return "", wrapError(KindPath, "create", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return "", wrapError(KindPath, "create", err)
		}
		req.SourceSize = uint64(info.Size())
		fds = append(fds, f)
	}

	sub, err := m.subscribe(bus.Concierge, SignalDiskImageProgress)
	if err != nil {
		return "", err
	}
	defer sub.Close()

	resp := &CreateDiskImageResponse{}
	if err := m.call(ctx, bus.Concierge, "CreateDiskImage", req, resp, fds...); err != nil {
		return "", err
	}

	switch resp.Status {
	case DiskStatusCreated, DiskStatusExists:
		return resp.DiskPath, nil
	case DiskStatusInProgress:
		log.Info("creating disk of %s (%s)", o.Name, resp.CommandUUID)
		if err := m.waitDiskOp(ctx, "create", sub, resp.CommandUUID, m.cfg.GetTimeout(), progress); err != nil {
			return "", err
		}
		if resp.DiskPath != "" {
			return resp.DiskPath, nil
		}
		return m.imagePath(ctx, o.Name), nil
	}
	return "", diskStatusError("create", resp.Status, resp.FailureReason)
}

func (m *Methods) imagePath(ctx context.Context, name string) string {
	resp, err := m.ListDiskImages(ctx, name)
	if err != nil {
		log.Warn("failed to look up disk of %s: %v", name, err)
		return ""
	}
	for _, img := range resp.Images {
		if img.Name == name {
			return img.Path
		}
	}
	log.Warn("no disk found for %s", name)
	return ""
}

// CreateExtraDisk creates a raw disk image of size bytes in the user's
// files.
func (m *Methods) CreateExtraDisk(ctx context.Context, path, media string, size uint64) (string, error) {
	out, err := m.resolver.CreateOutput(path, media)
	if err != nil {
		return "", wrapError(KindPath, "create-extra-disk", err)
	}
	defer out.Close()

	req := &CreateDiskImageRequest{
		VmName:    filepath.Base(path),
		OwnerID:   m.owner,
		DiskSize:  size,
		ImageType: DiskRaw,
		Location:  LocationCryptohome,
	}
	resp := &CreateDiskImageResponse{}
	if err := m.call(ctx, bus.Concierge, "CreateDiskImage", req, resp, out.File); err != nil {
		return "", err
	}
	if resp.Status != DiskStatusCreated {
		return "", diskStatusError("create-extra-disk", resp.Status, resp.FailureReason)
	}
	out.Commit()
	return out.Name(), nil
}

func diskStatusError(op string, status DiskStatus, reason string) error {
	switch status {
	case DiskStatusNotEnoughSpace:
		return newError(KindOutOfSpace, op, string(status), reason)
	case DiskStatusCancelled:
		return newError(KindCancelled, op, string(status), reason)
	}
	return newError(KindService, op, string(status), reason)
}

// diskOpDone returns true once a disk operation reached a terminal state.
func diskOpDone(op string, st *DiskImageStatusResponse) (bool, error) {
	switch st.Status {
	case DiskStatusInProgress:
		return false, nil
	case DiskStatusCreated, DiskStatusExists, DiskStatusResized, DiskStatusDestroyed:
		return true, nil
	}
	return true, diskStatusError(op, st.Status, st.FailureReason)
}

// waitDiskOp waits for a disk operation to finish, taking its state from
// progress signals and polling whichever comes first.
func (m *Methods) waitDiskOp(ctx context.Context, op string, sub *bus.Subscription, id string, timeout time.Duration, progress ProgressFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(m.cfg.GetPollInterval())
	defer ticker.Stop()

	for {
		st := &DiskImageStatusResponse{}
		select {
		case <-ctx.Done():
			return busError(op, ctx.Err())
		case sig := <-sub.C:
			if err := sig.Decode(st); err != nil || st.CommandUUID != id {
				continue
			}
		case <-ticker.C:
			if err := m.call(ctx, bus.Concierge, "DiskImageStatus", &DiskImageStatusRequest{CommandUUID: id}, st); err != nil {
				return err
			}
		}

		done, err := diskOpDone(op, st)
		if done {
			return err
		}
		if progress != nil {
			progress(st.Progress)
		}
	}
}

// WaitDiskOp waits for a disk operation started earlier to finish.
func (m *Methods) WaitDiskOp(ctx context.Context, id string, timeout time.Duration, progress ProgressFunc) error {
	if err := validateUUID(id); err != nil {
		return err
	}
	sub, err := m.subscribe(bus.Concierge, SignalDiskImageProgress)
	if err != nil {
		return err
	}
	defer sub.Close()
	if timeout <= 0 {
		timeout = m.cfg.GetTimeout()
	}
	return m.waitDiskOp(ctx, "wait-disk-op", sub, id, timeout, progress)
}

func validateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return newError(KindInvalid, "disk-op", "", "invalid operation id "+id)
	}
	return nil
}

// DiskOpStatus returns the state of a disk operation.
func (m *Methods) DiskOpStatus(ctx context.Context, id string) (*DiskImageStatusResponse, error) {
	if err := validateUUID(id); err != nil {
		return nil, err
	}
	st := &DiskImageStatusResponse{}
	if err := m.call(ctx, bus.Concierge, "DiskImageStatus", &DiskImageStatusRequest{CommandUUID: id}, st); err != nil {
		return nil, err
	}
	if _, err := diskOpDone("disk-op-status", st); err != nil {
		return st, err
	}
	return st, nil
}

// DestroyDisk destroys the disk image of a VM.
func (m *Methods) DestroyDisk(ctx context.Context, name string) error {
	resp := &DiskOpResponse{}
	req := &DestroyDiskImageRequest{VmName: name, OwnerID: m.owner}
	if err := m.call(ctx, bus.Concierge, "DestroyDiskImage", req, resp); err != nil {
		return err
	}
	switch resp.Status {
	case DiskStatusDestroyed, DiskStatusDoesNotExist:
		return nil
	}
	return diskStatusError("destroy", resp.Status, resp.FailureReason)
}

// ExportOptions are the options of Export.
type ExportOptions struct {
	Name       string
	Path       string
	Media      string
	DigestPath string
	Force      bool
	// Wait waits for the export to finish.
	Wait bool
}

// Export exports the disk image of a VM into the user's files. It returns
// the id of the operation if the export continues in the background.
func (m *Methods) Export(ctx context.Context, o *ExportOptions, progress ProgressFunc) (string, error) {
	out, err := m.resolver.CreateOutput(o.Path, o.Media)
	if err != nil {
		return "", wrapError(KindPath, "export", err)
	}
	defer out.Close()

	fds := []*os.File{out.File}
	var digest *userpath.OutputFile
	if o.DigestPath != "" {
		if digest, err = m.resolver.CreateOutput(o.DigestPath, o.Media); err != nil {
			return "", wrapError(KindPath, "export", err)
		}
		defer digest.Close()
		fds = append(fds, digest.File)
	}

	sub, err := m.subscribe(bus.Concierge, SignalDiskImageProgress)
	if err != nil {
		return "", err
	}
	defer sub.Close()

	req := &ExportDiskImageRequest{
		VmName:         o.Name,
		OwnerID:        m.owner,
		GenerateSha256: digest != nil,
		Force:          o.Force,
	}
	resp := &DiskOpResponse{}
	if err := m.call(ctx, bus.Concierge, "ExportDiskImage", req, resp, fds...); err != nil {
		return "", err
	}

	commit := func() {
		out.Commit()
		if digest != nil {
			digest.Commit()
		}
	}

	switch resp.Status {
	case DiskStatusCreated:
		commit()
		return "", nil
	case DiskStatusInProgress:
		commit()
		if !o.Wait {
			return resp.CommandUUID, nil
		}
		return resp.CommandUUID, m.waitDiskOp(ctx, "export", sub, resp.CommandUUID, m.cfg.GetExportTimeout(), progress)
	}
	return "", diskStatusError("export", resp.Status, resp.FailureReason)
}

// ImportOptions are the options of Import.
type ImportOptions struct {
	Name  string
	Type  VmType
	Path  string
	Media string
	Wait  bool
}

// Import imports a disk image from the user's files. It returns the id of
// the operation if the import continues in the background.
func (m *Methods) Import(ctx context.Context, o *ImportOptions, progress ProgressFunc) (string, error) {
	if o.Type == "" {
		o.Type = VmTermina
	}
	if err := m.ensureEnabled(ctx, o.Type); err != nil {
		return "", err
	}

	f, err := m.resolver.OpenInput(o.Path, o.Media, false)
	if err != nil {
		return "", wrapError(KindPath, "import", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", wrapError(KindPath, "import", err)
	}

	sub, err := m.subscribe(bus.Concierge, SignalDiskImageProgress)
	if err != nil {
		return "", err
	}
	defer sub.Close()

	_, location := imageDefaults(o.Type, "")
	req := &ImportDiskImageRequest{
		VmName:     o.Name,
		OwnerID:    m.owner,
		Location:   location,
		SourceSize: uint64(info.Size()),
	}
	resp := &DiskOpResponse{}
	if err := m.call(ctx, bus.Concierge, "ImportDiskImage", req, resp, f); err != nil {
		return "", err
	}

	switch resp.Status {
	case DiskStatusCreated:
		return "", nil
	case DiskStatusInProgress:
		if !o.Wait {
			return resp.CommandUUID, nil
		}
		return resp.CommandUUID, m.waitDiskOp(ctx, "import", sub, resp.CommandUUID, m.cfg.GetExportTimeout(), progress)
	}
	return "", diskStatusError("import", resp.Status, resp.FailureReason)
}

// Resize resizes the disk image of a VM to size bytes. It returns the id
// of the operation if the resize continues in the background.
func (m *Methods) Resize(ctx context.Context, name string, size uint64, wait bool, progress ProgressFunc) (string, error) {
	sub, err := m.subscribe(bus.Concierge, SignalDiskImageProgress)
	if err != nil {
		return "", err
	}
	defer sub.Close()

	resp := &DiskOpResponse{}
	req := &ResizeDiskImageRequest{VmName: name, OwnerID: m.owner, DiskSize: size}
	if err := m.call(ctx, bus.Concierge, "ResizeDiskImage", req, resp); err != nil {
		return "", err
	}

	switch resp.Status {
	case DiskStatusResized:
		return "", nil
	case DiskStatusInProgress:
		if !wait {
			return resp.CommandUUID, nil
		}
		return resp.CommandUUID, m.waitDiskOp(ctx, "resize", sub, resp.CommandUUID, m.cfg.GetTimeout(), progress)
	}
	return "", diskStatusError("resize", resp.Status, resp.FailureReason)
}

// ListDiskImages lists the disk images of the user in every location. A
// non-empty name restricts the list to that VM.
func (m *Methods) ListDiskImages(ctx context.Context, name string) (*ListVmDisksResponse, error) {
	resp := &ListVmDisksResponse{}
	req := &ListVmDisksRequest{OwnerID: m.owner, AllLocations: true, VmName: name}
	if err := m.call(ctx, bus.Concierge, "ListVmDisks", req, resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, newError(KindService, "list", "", resp.FailureReason)
	}
	return resp, nil
}

// InspectBackup describes a VM backup in the user's files.
func (m *Methods) InspectBackup(ctx context.Context, path, media string) (string, error) {
	f, err := m.resolver.OpenInput(path, media, false)
	if err != nil {
		return "", wrapError(KindPath, "inspect-backup", err)
	}
	defer f.Close()

	resp := &InspectBackupResponse{}
	if err := m.call(ctx, bus.Concierge, "InspectBackup", &VmRequest{OwnerID: m.owner}, resp, f); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", newError(KindService, "inspect-backup", "", resp.FailureReason)
	}
	return resp.Info, nil
}
