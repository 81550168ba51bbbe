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

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
)

// PluginSendProblemReport sends a problem report of a plugin VM. It
// returns the id of the report.
func (m *Methods) PluginSendProblemReport(ctx context.Context, vm, name, email, text string) (string, error) {
	req := &SendProblemReportRequest{
		Name:        name,
		Email:       email,
		Description: text,
	}
	if vm != "" {
		req.VmName = vm
		req.OwnerID = m.owner
	}
	resp := &SendProblemReportResponse{}
	if err := m.call(ctx, bus.PluginDispatcher, "SendProblemReport", req, resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", newError(KindService, "send-problem-report", "", resp.FailureReason)
	}
	return resp.ReportID, nil
}

// ListIoDevices lists the devices of the primary IO manager.
func (m *Methods) ListIoDevices(ctx context.Context) ([]IoDevice, error) {
	resp := &GetIoDevicesResponse{}
	if err := m.call(ctx, bus.PrimaryIO, "GetIoDevices", struct{}{}, resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// UnsetPrimaryKeyboard stops treating any keyboard as primary.
func (m *Methods) UnsetPrimaryKeyboard(ctx context.Context) error {
	return m.call(ctx, bus.PrimaryIO, "UnsetPrimaryKeyboard", struct{}{}, nil)
}

// UnsetPrimaryMouse stops treating any mouse as primary.
func (m *Methods) UnsetPrimaryMouse(ctx context.Context) error {
	return m.call(ctx, bus.PrimaryIO, "UnsetPrimaryMouse", struct{}{}, nil)
}
