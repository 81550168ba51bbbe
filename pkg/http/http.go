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

package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

const (
	// shutdownTimeout bounds how long Shutdown waits for active requests.
	shutdownTimeout = 5 * time.Second
)

var log = logger.NewLogger("http")

// ServeMux is an HTTP request multiplexer which allows handlers to be
// unregistered, for instance when metrics exporting is turned off.
type ServeMux struct {
	sync.RWMutex
	handlers map[string]http.Handler
}

// NewServeMux creates a new multiplexer.
func NewServeMux() *ServeMux {
	return &ServeMux{handlers: map[string]http.Handler{}}
}

// Handle registers the handler for the given pattern.
func (mux *ServeMux) Handle(pattern string, handler http.Handler) {
	mux.Lock()
	defer mux.Unlock()
	mux.handlers[pattern] = handler
	log.Debug("registered handler for %q", pattern)
}

// HandleFunc registers the handler function for the given pattern.
func (mux *ServeMux) HandleFunc(pattern string, fn func(http.ResponseWriter, *http.Request)) {
	mux.Handle(pattern, http.HandlerFunc(fn))
}

// Unregister removes the handler for the given pattern.
func (mux *ServeMux) Unregister(pattern string) {
	mux.Lock()
	defer mux.Unlock()
	delete(mux.handlers, pattern)
	log.Debug("unregistered handler for %q", pattern)
}

// ServeHTTP dispatches a request to the handler registered for its path.
func (mux *ServeMux) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	mux.RLock()
	h, ok := mux.handlers[req.URL.Path]
	mux.RUnlock()
	if !ok {
		http.NotFound(w, req)
		return
	}
	h.ServeHTTP(w, req)
}

// Server is an HTTP server which can be restarted on a new address
// while keeping its registered handlers.
type Server struct {
	sync.Mutex
	mux    *ServeMux
	server *http.Server
	listen net.Listener
	done   chan struct{}
}

// NewServer creates a new, stopped HTTP server.
func NewServer() *Server {
	return &Server{mux: NewServeMux()}
}

// GetMux returns the multiplexer of the server.
func (s *Server) GetMux() *ServeMux {
	return s.mux
}

// GetAddress returns the address the server is listening on, or "" if
// the server is not running.
func (s *Server) GetAddress() string {
	s.Lock()
	defer s.Unlock()
	if s.listen == nil {
		return ""
	}
	return s.listen.Addr().String()
}

// Start starts serving on the given address. An empty address leaves the
// server stopped.
func (s *Server) Start(address string) error {
	s.Lock()
	defer s.Unlock()

	if s.server != nil {
		return httpError("server already running on %s", s.listen.Addr())
	}
	if address == "" {
		log.Info("HTTP server is disabled")
		return nil
	}

	l, err := net.Listen("tcp", address)
	if err != nil {
		return httpError("failed to listen on %s: %w", address, err)
	}

	s.listen = l
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.done = make(chan struct{})

	go func(srv *http.Server, l net.Listener, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server on %s failed: %v", l.Addr(), err)
		}
	}(s.server, l, s.done)

	log.Info("HTTP server listening on %s", l.Addr())

	return nil
}

// Stop stops the server without waiting for active requests.
func (s *Server) Stop() {
	s.Shutdown(false)
}

// Shutdown stops the server, optionally waiting for active requests to
// finish.
func (s *Server) Shutdown(wait bool) {
	s.Lock()
	defer s.Unlock()

	if s.server == nil {
		return
	}

	if wait {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			log.Warn("HTTP server shutdown: %v", err)
		}
	} else {
		_ = s.server.Close()
	}
	<-s.done

	log.Info("HTTP server on %s stopped", s.listen.Addr())

	s.server = nil
	s.listen = nil
	s.done = nil
}

// Reconfigure restarts the server if its address has changed.
func (s *Server) Reconfigure(address string) error {
	if current := s.GetAddress(); current != "" && current == address {
		return nil
	}
	s.Stop()
	return s.Start(address)
}

func httpError(format string, args ...interface{}) error {
	return fmt.Errorf("http: "+format, args...)
}
