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

// Package bustest provides an in-process fake of the message bus.
package bustest

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/vm/bus"
)

// Handler serves a method call, returning the reply arguments.
type Handler func(args []interface{}) ([]interface{}, error)

// Call is a recorded method call.
type Call struct {
	Method string
	Args   []interface{}
}

// Decode decodes the serialized request of the call into v.
func (c Call) Decode(v interface{}) error {
	return Decode(c.Args, v)
}

// FDs returns the file descriptors passed with the call.
func (c Call) FDs() []int {
	var fds []int
	for _, a := range c.Args {
		if fd, ok := a.(dbus.UnixFD); ok {
			fds = append(fds, int(fd))
		}
	}
	return fds
}

// Conn is a fake bus.Conn dispatching calls to registered handlers.
type Conn struct {
	sync.Mutex
	handlers map[string]Handler
	calls    []Call
	subs     map[string]map[*bus.Subscription]struct{}
}

var _ bus.Conn = &Conn{}

// New creates a fake connection.
func New() *Conn {
	return &Conn{
		handlers: map[string]Handler{},
		subs:     map[string]map[*bus.Subscription]struct{}{},
	}
}

func key(svc bus.Service, member string) string {
	return svc.Interface + "." + member
}

// Handle registers a handler for a method.
func (c *Conn) Handle(svc bus.Service, method string, h Handler) {
	c.Lock()
	defer c.Unlock()
	c.handlers[key(svc, method)] = h
}

// HandleMessage registers a handler for a method taking and returning
// serialized messages. The request is decoded into a new value of the type
// req points to.
func HandleMessage[Req any](c *Conn, svc bus.Service, method string, fn func(req *Req, fds []int) (interface{}, error)) {
	c.Handle(svc, method, func(args []interface{}) ([]interface{}, error) {
		req := new(Req)
		if err := Decode(args, req); err != nil {
			return nil, err
		}
		resp, err := fn(req, Call{Args: args}.FDs())
		if err != nil {
			return nil, err
		}
		return []interface{}{bus.Encode(resp)}, nil
	})
}

// Reply registers a handler always replying with msg.
func (c *Conn) Reply(svc bus.Service, method string, msg interface{}) {
	c.Handle(svc, method, func([]interface{}) ([]interface{}, error) {
		return []interface{}{bus.Encode(msg)}, nil
	})
}

// Call implements bus.Conn.
func (c *Conn) Call(ctx context.Context, svc bus.Service, method string, args ...interface{}) ([]interface{}, error) {
	k := key(svc, method)

	c.Lock()
	c.calls = append(c.calls, Call{Method: k, Args: args})
	h, ok := c.handlers[k]
	c.Unlock()

	if !ok {
		return nil, fmt.Errorf("%s: no such method", k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h(args)
}

// Subscribe implements bus.Conn.
func (c *Conn) Subscribe(svc bus.Service, signal string) (*bus.Subscription, error) {
	k := key(svc, signal)

	c.Lock()
	defer c.Unlock()

	var sub *bus.Subscription
	sub = bus.NewSubscription(64, func() {
		c.Lock()
		defer c.Unlock()
		delete(c.subs[k], sub)
	})
	if c.subs[k] == nil {
		c.subs[k] = map[*bus.Subscription]struct{}{}
	}
	c.subs[k][sub] = struct{}{}

	return sub, nil
}

// Emit broadcasts a signal carrying msg to the current subscribers.
func (c *Conn) Emit(svc bus.Service, signal string, msg interface{}) {
	sig := &bus.Signal{Name: signal, Body: []interface{}{bus.Encode(msg)}}

	c.Lock()
	defer c.Unlock()
	for sub := range c.subs[key(svc, signal)] {
		sub.Deliver(sig)
	}
}

// Subscribers returns the number of subscribers of a signal.
func (c *Conn) Subscribers(svc bus.Service, signal string) int {
	c.Lock()
	defer c.Unlock()
	return len(c.subs[key(svc, signal)])
}

// Calls returns the names of the methods called so far, in order.
func (c *Conn) Calls() []string {
	c.Lock()
	defer c.Unlock()
	names := make([]string, 0, len(c.calls))
	for _, call := range c.calls {
		names = append(names, call.Method)
	}
	return names
}

// LastCall returns the last call of a method.
func (c *Conn) LastCall(svc bus.Service, method string) (Call, bool) {
	c.Lock()
	defer c.Unlock()
	k := key(svc, method)
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i].Method == k {
			return c.calls[i], true
		}
	}
	return Call{}, false
}

// Close implements bus.Conn.
func (c *Conn) Close() error {
	return nil
}

// Decode decodes the serialized message in args into v.
func Decode(args []interface{}, v interface{}) error {
	if len(args) == 0 {
		return fmt.Errorf("no arguments")
	}
	data, ok := args[0].([]byte)
	if !ok {
		return fmt.Errorf("unexpected argument of type %T", args[0])
	}
	return bus.Unmarshal(data, v)
}
