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
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an orchestration failure.
type Kind string

const (
	// KindBus is a failure to reach a service over the bus.
	KindBus Kind = "bus"
	// KindService is a reply with a status outside the accepted set.
	KindService        Kind = "service"
	KindDisabled       Kind = "disabled"
	KindPath           Kind = "path"
	KindDlc            Kind = "dlc"
	KindInvalid        Kind = "invalid"
	KindTimeout        Kind = "timeout"
	KindCancelled      Kind = "cancelled"
	KindOutOfSpace     Kind = "out-of-space"
	KindDiskFull       Kind = "disk-full"
	KindInvalidLicense Kind = "invalid-license"
	KindExpiredLicense Kind = "expired-license"
	KindNoPortalAccess Kind = "no-portal-access"
	KindPluginGeneric  Kind = "plugin-generic"
	KindNoSession      Kind = "no-session"
)

// Sentinels for errors.Is.
var (
	ErrBus            = &Error{Kind: KindBus}
	ErrService        = &Error{Kind: KindService}
	ErrDisabled       = &Error{Kind: KindDisabled}
	ErrPath           = &Error{Kind: KindPath}
	ErrDlc            = &Error{Kind: KindDlc}
	ErrInvalid        = &Error{Kind: KindInvalid}
	ErrTimeout        = &Error{Kind: KindTimeout}
	ErrCancelled      = &Error{Kind: KindCancelled}
	ErrOutOfSpace     = &Error{Kind: KindOutOfSpace}
	ErrDiskFull       = &Error{Kind: KindDiskFull}
	ErrInvalidLicense = &Error{Kind: KindInvalidLicense}
	ErrExpiredLicense = &Error{Kind: KindExpiredLicense}
	ErrNoPortalAccess = &Error{Kind: KindNoPortalAccess}
	ErrPluginGeneric  = &Error{Kind: KindPluginGeneric}
	ErrNoSession      = &Error{Kind: KindNoSession}
)

// Error is an orchestration failure. Status and Reason preserve what the
// downstream service reported, if anything.
type Error struct {
	Kind   Kind
	Op     string
	Status string
	Reason string
	Err    error
}

func newError(kind Kind, op, status, reason string) *Error {
	return &Error{Kind: kind, Op: op, Status: status, Reason: reason}
}

func wrapError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Status != "" {
		fmt.Fprintf(&b, " (status %s)", e.Status)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is matches errors of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an orchestration error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Native result codes of the plugin dispatcher.
const (
	pluginShuttingDown   = 0x80000404
	pluginDiskFull       = 0x80000456
	pluginNoPortalAccess = 0x80057012
)

var (
	invalidLicenseCodes = map[uint32]struct{}{
		0x80011000: {},
		0x80011002: {},
		0x80011004: {},
		0x80011011: {},
		0x80011013: {},
		0x80057005: {},
		0x80057010: {},
	}
	expiredLicenseCodes = map[uint32]struct{}{
		0x80011001: {},
		0x80011074: {},
	}
)

// PluginResultKind maps a plugin dispatcher result code to an error kind.
// It returns "" for success.
func PluginResultKind(code uint32) Kind {
	if code == 0 {
		return ""
	}
	if _, ok := invalidLicenseCodes[code]; ok {
		return KindInvalidLicense
	}
	if _, ok := expiredLicenseCodes[code]; ok {
		return KindExpiredLicense
	}
	switch code {
	case pluginDiskFull:
		return KindDiskFull
	case pluginNoPortalAccess:
		return KindNoPortalAccess
	case pluginShuttingDown:
		return KindPluginGeneric
	}
	return KindPluginGeneric
}

// Typed errors reported by the plugin dispatcher instead of a result code.
var pluginErrorKinds = map[string]Kind{
	"disk-full":        KindDiskFull,
	"invalid-license":  KindInvalidLicense,
	"expired-license":  KindExpiredLicense,
	"no-portal-access": KindNoPortalAccess,
}

func pluginError(op string, resp *PluginResponse) error {
	if resp.Error != "" {
		kind, ok := pluginErrorKinds[resp.Error]
		if !ok {
			kind = KindPluginGeneric
		}
		return newError(kind, op, resp.Error, "")
	}
	kind := PluginResultKind(resp.Result)
	if kind == "" {
		return nil
	}
	return newError(kind, op, fmt.Sprintf("0x%08x", resp.Result), "")
}
