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
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	// signalQueue is the number of signals buffered per subscription.
	signalQueue = 64
)

type dbusConn struct {
	sync.Mutex
	conn    *dbus.Conn
	signals chan *dbus.Signal
	subs    map[string]map[*Subscription]struct{}
}

// ConnectSystemBus connects to the system message bus.
func ConnectSystemBus() (Conn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	if !conn.SupportsUnixFDs() {
		conn.Close()
		return nil, fmt.Errorf("system bus connection does not support file descriptor passing")
	}

	c := &dbusConn{
		conn:    conn,
		signals: make(chan *dbus.Signal, signalQueue),
		subs:    map[string]map[*Subscription]struct{}{},
	}
	conn.Signal(c.signals)
	go c.dispatch()

	return c, nil
}

func (c *dbusConn) Call(ctx context.Context, svc Service, method string, args ...interface{}) ([]interface{}, error) {
	log.Debug("calling %s.%s", svc.Interface, method)

	obj := c.conn.Object(svc.Name, svc.Path)
	call := obj.CallWithContext(ctx, svc.Interface+"."+method, 0, args...)
	if call.Err != nil {
		return nil, fmt.Errorf("%s.%s failed: %w", svc.Interface, method, call.Err)
	}
	return call.Body, nil
}

func matchOptions(svc Service, signal string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchSender(svc.Name),
		dbus.WithMatchInterface(svc.Interface),
		dbus.WithMatchMember(signal),
	}
}

func (c *dbusConn) Subscribe(svc Service, signal string) (*Subscription, error) {
	key := svc.Interface + "." + signal

	c.Lock()
	defer c.Unlock()

	if len(c.subs[key]) == 0 {
		if err := c.conn.AddMatchSignal(matchOptions(svc, signal)...); err != nil {
			return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
		}
		c.subs[key] = map[*Subscription]struct{}{}
	}

	var sub *Subscription
	sub = NewSubscription(signalQueue, func() {
		c.Lock()
		defer c.Unlock()
		delete(c.subs[key], sub)
		if len(c.subs[key]) == 0 {
			delete(c.subs, key)
			if err := c.conn.RemoveMatchSignal(matchOptions(svc, signal)...); err != nil {
				log.Warn("failed to unsubscribe from %s: %v", key, err)
			}
		}
	})
	c.subs[key][sub] = struct{}{}

	return sub, nil
}

func (c *dbusConn) dispatch() {
	for s := range c.signals {
		idx := strings.LastIndex(s.Name, ".")
		if idx < 0 {
			continue
		}
		sig := &Signal{Name: s.Name[idx+1:], Body: s.Body}

		c.Lock()
		for sub := range c.subs[s.Name] {
			sub.Deliver(sig)
		}
		c.Unlock()
	}
}

func (c *dbusConn) Close() error {
	return c.conn.Close()
}
