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

package http_test

import (
	"io"
	nethttp "net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/http"
)

func get(t *testing.T, address, path string) (int, string) {
	rpl, err := nethttp.Get("http://" + address + path)
	require.NoError(t, err)
	defer rpl.Body.Close()
	body, err := io.ReadAll(rpl.Body)
	require.NoError(t, err)
	return rpl.StatusCode, string(body)
}

func TestServer(t *testing.T) {
	srv := http.NewServer()
	srv.GetMux().HandleFunc("/ping", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		_, _ = w.Write([]byte("pong"))
	})

	require.NoError(t, srv.Start("127.0.0.1:0"))
	defer srv.Shutdown(true)

	address := srv.GetAddress()
	require.NotEmpty(t, address)

	status, body := get(t, address, "/ping")
	require.Equal(t, nethttp.StatusOK, status)
	require.Equal(t, "pong", body)

	status, _ = get(t, address, "/missing")
	require.Equal(t, nethttp.StatusNotFound, status)

	srv.GetMux().Unregister("/ping")
	status, _ = get(t, address, "/ping")
	require.Equal(t, nethttp.StatusNotFound, status)

	require.Error(t, srv.Start("127.0.0.1:0"), "already running")
	require.NoError(t, srv.Reconfigure(address))
	require.Equal(t, address, srv.GetAddress())
}

func TestDisabledServer(t *testing.T) {
	srv := http.NewServer()
	require.NoError(t, srv.Start(""))
	require.Empty(t, srv.GetAddress())
	srv.Stop()
}
