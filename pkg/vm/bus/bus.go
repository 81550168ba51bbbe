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

package bus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

var log = logger.NewLogger("bus")

// Service identifies a bus service: its well-known name, object path and
// interface.
type Service struct {
	Name      string
	Path      dbus.ObjectPath
	Interface string
}

func newService(name string) Service {
	return Service{
		Name:      "org.chromium." + name,
		Path:      dbus.ObjectPath("/org/chromium/" + name),
		Interface: "org.chromium." + name,
	}
}

// The services the orchestrator talks to.
var (
	// Concierge is both the image manager and the VM manager.
	Concierge        = newService("VmConcierge")
	Cicerone         = newService("VmCicerone")
	Seneschal        = newService("SeneschalInterface")
	PluginDispatcher = newService("VmPluginDispatcher")
	PermissionBroker = newService("PermissionBroker")
	FeatureFlags     = newService("ChromeFeaturesServiceInterface")
	LockService      = newService("VmLockService")
	PrimaryIO        = newService("PrimaryIoManager")
	DlcService       = Service{
		Name:      "org.chromium.DlcService",
		Path:      "/org/chromium/DlcService",
		Interface: "org.chromium.DlcServiceInterface",
	}
	SessionManager = Service{
		Name:      "org.chromium.SessionManager",
		Path:      "/org/chromium/SessionManager",
		Interface: "org.chromium.SessionManagerInterface",
	}
)

// Signal is a broadcast received from a service.
type Signal struct {
	Name string
	Body []interface{}
}

// Decode decodes the serialized message carried by the signal into v.
func (s *Signal) Decode(v interface{}) error {
	return decodeBody(s.Body, v)
}

// Conn is a connection to the message bus.
type Conn interface {
	// Call invokes method of svc with the given arguments and returns the
	// reply arguments.
	Call(ctx context.Context, svc Service, method string, args ...interface{}) ([]interface{}, error)
	// Subscribe starts delivering the named signal of svc. Signals are
	// queued from the moment Subscribe returns.
	Subscribe(svc Service, signal string) (*Subscription, error)
	// Close closes the connection.
	Close() error
}

// Subscription delivers signals until closed.
type Subscription struct {
	C      <-chan *Signal
	ch     chan *Signal
	once   sync.Once
	cancel func()
}

// NewSubscription creates a subscription with the given queue length.
// cancel is called once when the subscription is closed.
func NewSubscription(queue int, cancel func()) *Subscription {
	ch := make(chan *Signal, queue)
	return &Subscription{C: ch, ch: ch, cancel: cancel}
}

// Deliver queues a signal, dropping it if the queue is full.
func (s *Subscription) Deliver(sig *Signal) bool {
	select {
	case s.ch <- sig:
		return true
	default:
		log.Warn("dropping signal %s, subscriber queue full", sig.Name)
		return false
	}
}

// Close stops the subscription.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Wait returns the first signal for which accept returns true. Signals
// rejected by accept are dropped.
func (s *Subscription) Wait(ctx context.Context, accept func(*Signal) (bool, error)) (*Signal, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sig := <-s.C:
			ok, err := accept(sig)
			if err != nil {
				return nil, err
			}
			if ok {
				return sig, nil
			}
		}
	}
}

// CallMessage invokes a method taking a serialized request, and the given
// file descriptors, and decodes its serialized reply into resp. A nil
// resp ignores the reply.
func CallMessage(ctx context.Context, c Conn, svc Service, method string, req, resp interface{}, fds ...*os.File) error {
	data, err := Marshal(req)
	if err != nil {
		return fmt.Errorf("%s.%s: failed to encode request: %w", svc.Interface, method, err)
	}

	args := []interface{}{data}
	for _, f := range fds {
		args = append(args, dbus.UnixFD(f.Fd()))
	}

	body, err := c.Call(ctx, svc, method, args...)
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	if err := decodeBody(body, resp); err != nil {
		return fmt.Errorf("%s.%s: %w", svc.Interface, method, err)
	}
	return nil
}

func decodeBody(body []interface{}, v interface{}) error {
	if len(body) == 0 {
		return errors.New("empty reply")
	}
	data, ok := body[0].([]byte)
	if !ok {
		return fmt.Errorf("unexpected reply of type %T", body[0])
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}

// Encode serializes a message the way CallMessage does, for servers and
// fakes producing replies and signals.
func Encode(v interface{}) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("bus: can't encode %T: %v", v, err))
	}
	return data
}
