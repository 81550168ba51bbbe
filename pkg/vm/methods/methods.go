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

// Package methods sequences the VM lifecycle operations over the bus.
package methods

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/vmc"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/instrumentation/tracing"
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/userpath"
)

var log = logger.NewLogger("methods")

// Signals waited for by the operations.
const (
	SignalDiskImageProgress    = "DiskImageProgress"
	SignalTremplinStarted      = "TremplinStarted"
	SignalLxdContainerCreated  = "LxdContainerCreated"
	SignalLxdContainerStarting = "LxdContainerStarting"
	SignalStartLxdProgress     = "StartLxdProgress"
)

// Methods runs VM lifecycle operations on behalf of a single user.
type Methods struct {
	conn     bus.Conn
	owner    string
	resolver *userpath.Resolver
	cfg      cfgapi.Config
}

// Option is an option for Methods.
type Option func(*Methods)

// WithConfig sets the timeouts and polling interval.
func WithConfig(cfg cfgapi.Config) Option {
	return func(m *Methods) {
		m.cfg = cfg
		m.resolver.DevMode = cfg.DevMode
	}
}

// WithFileRoot sets the directory user paths are opened relative to.
func WithFileRoot(root string) Option {
	return func(m *Methods) {
		m.resolver.Root = root
	}
}

// New creates Methods acting for the user with the given owner id hash.
func New(conn bus.Conn, owner string, opts ...Option) *Methods {
	m := &Methods{
		conn:     conn,
		owner:    owner,
		resolver: &userpath.Resolver{Owner: owner},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Owner returns the owner id hash the operations act for.
func (m *Methods) Owner() string {
	return m.owner
}

// Resolver returns the resolver used for user supplied paths.
func (m *Methods) Resolver() *userpath.Resolver {
	return m.resolver
}

// ResolveOwner returns the owner id hash to act for. A non-empty hint must
// belong to an active session. Without a hint there must be exactly one
// active session.
func ResolveOwner(ctx context.Context, conn bus.Conn, hint string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp := &ActiveSessionsResponse{}
	if err := bus.CallMessage(ctx, conn, bus.SessionManager, "RetrieveActiveSessions", struct{}{}, resp); err != nil {
		return "", busError("retrieve-active-sessions", err)
	}
	sessions := resp.Sessions

	if hint != "" {
		for _, owner := range sessions {
			if owner == hint {
				return hint, nil
			}
		}
		return "", newError(KindNoSession, "resolve-owner", "", "no active session for owner "+hint)
	}

	switch len(sessions) {
	case 0:
		return "", newError(KindNoSession, "resolve-owner", "", "no active session")
	case 1:
		for _, owner := range sessions {
			return owner, nil
		}
	}
	users := make([]string, 0, len(sessions))
	for user := range sessions {
		users = append(users, user)
	}
	sort.Strings(users)
	return "", newError(KindNoSession, "resolve-owner", "", fmt.Sprintf("multiple active sessions %v", users))
}

func busError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return wrapError(KindTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return wrapError(KindCancelled, op, err)
	}
	return wrapError(KindBus, op, err)
}

// call sends a request with the default timeout.
func (m *Methods) call(ctx context.Context, svc bus.Service, method string, req, resp interface{}, fds ...*os.File) error {
	ctx, span := tracing.StartSpan(ctx, "bus."+method, tracing.WithAttributes(
		tracing.Attribute("service", svc.Interface),
		tracing.Attribute("fds", len(fds)),
	))
	ctx, cancel := context.WithTimeout(ctx, m.cfg.GetTimeout())
	defer cancel()
	err := bus.CallMessage(ctx, m.conn, svc, method, req, resp, fds...)
	if err != nil {
		err = busError(method, err)
	}
	span.End(err)
	return err
}

func (m *Methods) subscribe(svc bus.Service, signal string) (*bus.Subscription, error) {
	sub, err := m.conn.Subscribe(svc, signal)
	if err != nil {
		return nil, busError("subscribe "+signal, err)
	}
	return sub, nil
}

// wait waits for a signal accepted by accept within timeout.
func wait(ctx context.Context, op string, sub *bus.Subscription, timeout time.Duration, accept func(*bus.Signal) (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := sub.Wait(ctx, accept); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return err
		}
		return busError(op, err)
	}
	return nil
}

var featureMethods = map[VmType]string{
	VmTermina:    "IsCrostiniEnabled",
	VmBaguette:   "IsCrostiniEnabled",
	VmBorealis:   "IsBorealisEnabled",
	VmBruschetta: "IsBruschettaEnabled",
	VmPlugin:     "IsPluginVmEnabled",
}

func (m *Methods) ensureEnabled(ctx context.Context, t VmType) error {
	method, ok := featureMethods[t]
	if !ok {
		return newError(KindInvalid, "check-feature", "", "unknown VM type "+string(t))
	}
	var resp FeatureResponse
	if err := m.call(ctx, bus.FeatureFlags, method, &VmRequest{OwnerID: m.owner}, &resp); err != nil {
		return err
	}
	if !resp.Enabled {
		reason := resp.Reason
		if reason == "" {
			reason = string(t) + " is not enabled"
		}
		return newError(KindDisabled, "check-feature", "", reason)
	}
	return nil
}

// InstallDlc installs a DLC and polls its state until it is installed.
func (m *Methods) InstallDlc(ctx context.Context, id string) (string, error) {
	var state DlcStateResponse
	if err := m.call(ctx, bus.DlcService, "GetDlcState", &DlcRequest{ID: id}, &state); err != nil {
		return "", err
	}
	if state.State == DlcInstalled {
		return state.RootPath, nil
	}

	log.Info("installing DLC %s", id)
	if err := m.call(ctx, bus.DlcService, "Install", &DlcRequest{ID: id}, nil); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.GetTimeout())
	defer cancel()
	ticker := time.NewTicker(m.cfg.GetPollInterval())
	defer ticker.Stop()

	for {
		if err := m.call(ctx, bus.DlcService, "GetDlcState", &DlcRequest{ID: id}, &state); err != nil {
			return "", err
		}
		switch state.State {
		case DlcInstalled:
			return state.RootPath, nil
		case DlcNotInstalled:
			if state.LastError != "" {
				return "", newError(KindDlc, "install-dlc", string(state.State), id+": "+state.LastError)
			}
		}
		select {
		case <-ctx.Done():
			return "", busError("install-dlc", ctx.Err())
		case <-ticker.C:
		}
	}
}

// NotifyVmStarting tells the lock service a VM is about to start.
func (m *Methods) NotifyVmStarting(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.GetTimeout())
	defer cancel()
	if _, err := m.conn.Call(ctx, bus.LockService, "NotifyVmStarting"); err != nil {
		return busError("notify-vm-starting", err)
	}
	return nil
}

// StartOptions are the options of VmcStart.
type StartOptions struct {
	Name           string
	Type           VmType
	Features       VmFeatures
	ExtraDisk      string
	DlcID          string
	ToolsDlcID     string
	BiosDlcID      string
	Kernel         string
	Initrd         string
	Rootfs         string
	WritableRootfs bool
	Bios           string
	Pflash         string
	NoStartLxd     bool
	Timeout        time.Duration
	User           string
	UserUID        *uint32
	UserGroups     []string
}

type startFile struct {
	path     string
	kind     FdKind
	writable bool
}

// openStartFiles opens the user supplied files of a VM start, returning
// them along with their kinds.
func (m *Methods) openStartFiles(o *StartOptions) ([]*os.File, []FdKind, error) {
	var (
		files []*os.File
		kinds []FdKind
	)
	for _, sf := range []startFile{
		{o.Kernel, FdKernel, false},
		{o.Rootfs, FdRootfs, o.WritableRootfs},
		{o.Initrd, FdInitrd, false},
		{o.ExtraDisk, FdStorage, true},
		{o.Bios, FdBios, false},
		{o.Pflash, FdPflash, true},
	} {
		if sf.path == "" {
			continue
		}
		f, err := m.resolver.OpenInput(sf.path, "", sf.writable)
		if err != nil {
			userpath.CloseAll(files...)
			return nil, nil, wrapError(KindPath, "start", err)
		}
		files = append(files, f)
		kinds = append(kinds, sf.kind)
	}
	return files, kinds, nil
}

// VmcStart starts a VM of any type.
func (m *Methods) VmcStart(ctx context.Context, o *StartOptions) (*VmInfo, error) {
	if o.Type == "" {
		o.Type = VmTermina
	}
	ctx, span := tracing.StartSpan(ctx, "vm.start", tracing.WithAttributes(
		tracing.Attribute("vm", o.Name),
		tracing.Attribute("type", string(o.Type)),
	))
	info, err := m.vmcStart(ctx, o)
	span.End(err)
	return info, err
}

func (m *Methods) vmcStart(ctx context.Context, o *StartOptions) (*VmInfo, error) {
	if err := m.ensureEnabled(ctx, o.Type); err != nil {
		return nil, err
	}
	if o.Type == VmPlugin {
		return nil, m.startPluginVm(ctx, o.Name)
	}

	for _, id := range []string{o.DlcID, o.ToolsDlcID, o.BiosDlcID} {
		if id == "" {
			continue
		}
		if _, err := m.InstallDlc(ctx, id); err != nil {
			return nil, err
		}
	}

	if err := m.NotifyVmStarting(ctx); err != nil {
		return nil, err
	}

	files, kinds, err := m.openStartFiles(o)
	if err != nil {
		return nil, err
	}
	defer userpath.CloseAll(files...)

	var tremplin *bus.Subscription
	if o.Type == VmTermina {
		if tremplin, err = m.subscribe(bus.Cicerone, SignalTremplinStarted); err != nil {
			return nil, err
		}
		defer tremplin.Close()
	}

	req := &StartVmRequest{
		Name:           o.Name,
		OwnerID:        m.owner,
		VmType:         o.Type,
		Features:       o.Features,
		FdKinds:        kinds,
		DlcID:          o.DlcID,
		ToolsDlcID:     o.ToolsDlcID,
		BiosDlcID:      o.BiosDlcID,
		WritableRootfs: o.WritableRootfs,
		StartTermina:   o.Type == VmTermina,
	}
	if o.Timeout > 0 {
		req.Timeout = uint32(o.Timeout / time.Second)
	}
	resp := &StartVmResponse{}
	if err := m.call(ctx, bus.Concierge, "StartVm", req, resp, files...); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Status == VmStatusFailure {
		return nil, newError(KindService, "start", string(resp.Status), resp.FailureReason)
	}

	if resp.Status == VmStatusStarting && tremplin != nil {
		log.Info("waiting for %s to start its container agent", o.Name)
		timeout := m.cfg.GetTremplinTimeout()
		if o.Timeout > 0 {
			timeout = o.Timeout
		}
		err := wait(ctx, "start", tremplin, timeout, func(sig *bus.Signal) (bool, error) {
			ev := &TremplinStartedEvent{}
			if err := sig.Decode(ev); err != nil {
				return false, nil
			}
			return ev.VmName == o.Name && ev.OwnerID == m.owner, nil
		})
		if err != nil {
			return nil, err
		}
	}

	if o.Type == VmTermina && !o.NoStartLxd {
		if err := m.startLxd(ctx, o.Name); err != nil {
			return nil, err
		}
	}

	if o.User != "" {
		if err := m.SetUpVmUser(ctx, o.Name, o.User, o.UserUID, o.UserGroups); err != nil {
			return nil, err
		}
	}

	log.Info("started %s VM %s", o.Type, o.Name)
	return &resp.VmInfo, nil
}

func (m *Methods) startPluginVm(ctx context.Context, name string) error {
	resp := &PluginResponse{}
	if err := m.call(ctx, bus.PluginDispatcher, "StartVm", &PluginRequest{OwnerID: m.owner, VmName: name}, resp); err != nil {
		return err
	}
	return pluginError("start", resp)
}

func (m *Methods) startLxd(ctx context.Context, vm string) error {
	sub, err := m.subscribe(bus.Cicerone, SignalStartLxdProgress)
	if err != nil {
		return err
	}
	defer sub.Close()

	resp := &ContainerResponse{}
	if err := m.call(ctx, bus.Cicerone, "StartLxd", &StartLxdRequest{VmName: vm, OwnerID: m.owner}, resp); err != nil {
		return err
	}
	switch resp.Status {
	case ContainerAlreadyRunning, ContainerStarted:
		return nil
	case ContainerStarting, ContainerRecovering:
	default:
		return newError(KindService, "start-lxd", string(resp.Status), resp.FailureReason)
	}

	return wait(ctx, "start-lxd", sub, m.cfg.GetTimeout(), func(sig *bus.Signal) (bool, error) {
		ev := &ContainerEvent{}
		if err := sig.Decode(ev); err != nil || ev.VmName != vm || ev.OwnerID != m.owner {
			return false, nil
		}
		switch ev.Status {
		case ContainerStarted:
			return true, nil
		case ContainerStarting, ContainerRecovering:
			log.Debug("LXD in %s: %s", vm, ev.Status)
			return false, nil
		}
		return false, newError(KindService, "start-lxd", string(ev.Status), ev.FailureReason)
	})
}

// VmStop stops a VM.
func (m *Methods) VmStop(ctx context.Context, name string, t VmType) error {
	if t == VmPlugin {
		resp := &PluginResponse{}
		if err := m.call(ctx, bus.PluginDispatcher, "StopVm", &PluginRequest{OwnerID: m.owner, VmName: name}, resp); err != nil {
			return err
		}
		return pluginError("stop", resp)
	}
	resp := &SuccessResponse{}
	if err := m.call(ctx, bus.Concierge, "StopVm", &VmRequest{Name: name, OwnerID: m.owner}, resp); err != nil {
		return err
	}
	if !resp.Success {
		return newError(KindService, "stop", "", resp.FailureReason)
	}
	return nil
}

// GetVmInfo returns information about a running VM.
func (m *Methods) GetVmInfo(ctx context.Context, name string) (*VmInfo, error) {
	resp := &GetVmInfoResponse{}
	if err := m.call(ctx, bus.Concierge, "GetVmInfo", &VmRequest{Name: name, OwnerID: m.owner}, resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, newError(KindService, "get-vm-info", "", name+" is not running")
	}
	return &resp.VmInfo, nil
}

// AdjustVm applies an adjustment operation to a VM.
func (m *Methods) AdjustVm(ctx context.Context, name, op string, params []string) error {
	resp := &SuccessResponse{}
	req := &AdjustVmRequest{Name: name, OwnerID: m.owner, Operation: op, Params: params}
	if err := m.call(ctx, bus.Concierge, "AdjustVm", req, resp); err != nil {
		return err
	}
	if !resp.Success {
		return newError(KindService, "adjust", "", resp.FailureReason)
	}
	return nil
}

// GetVmLogs returns the logs of a VM.
func (m *Methods) GetVmLogs(ctx context.Context, name string) (string, error) {
	resp := &GetVmLogsResponse{}
	if err := m.call(ctx, bus.Concierge, "GetVmLogs", &VmRequest{Name: name, OwnerID: m.owner}, resp); err != nil {
		return "", err
	}
	return resp.Log, nil
}

// SetUpVmUser creates a user in a VM.
func (m *Methods) SetUpVmUser(ctx context.Context, vm, user string, uid *uint32, groups []string) error {
	resp := &SuccessResponse{}
	req := &SetUpVmUserRequest{VmName: vm, OwnerID: m.owner, Username: user, UID: uid, Groups: groups}
	if err := m.call(ctx, bus.Concierge, "SetUpVmUser", req, resp); err != nil {
		return err
	}
	if !resp.Success {
		return newError(KindService, "set-up-vm-user", "", resp.FailureReason)
	}
	return nil
}
