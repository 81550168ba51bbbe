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

package log

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgapi "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/log"
)

func TestSrcmapParse(t *testing.T) {
	type testCase struct {
		name    string
		value   string
		result  srcmap
		invalid bool
	}

	for _, tc := range []*testCase{
		{
			name:   "empty",
			value:  "",
			result: srcmap{},
		},
		{
			name:   "implicitly enabled sources",
			value:  "h265,vp9",
			result: srcmap{"h265": true, "vp9": true},
		},
		{
			name:   "state carries over",
			value:  "off:reclaim,qos,on:vm",
			result: srcmap{"reclaim": false, "qos": false, "vm": true},
		},
		{
			name:   "all is a wildcard",
			value:  "all",
			result: srcmap{"*": true},
		},
		{
			name:    "invalid state",
			value:   "maybe:vm",
			invalid: true,
		},
		{
			name:    "too many colons",
			value:   "on:vm:bus",
			invalid: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			m := make(srcmap)
			err := m.parse(tc.value)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.result, m)
		})
	}
}

func TestSrcmapEnabled(t *testing.T) {
	m := srcmap{"*": true, "bus": false}
	require.True(t, m.enabled("h265"))
	require.False(t, m.enabled("bus"))
	require.False(t, srcmap{}.enabled("h265"))
}

func TestConfigureDebug(t *testing.T) {
	l := Get("log-test")
	require.False(t, l.DebugEnabled())

	require.NoError(t, Configure(&cfgapi.Config{Debug: []string{"log-test"}}))
	require.True(t, l.DebugEnabled())

	require.NoError(t, Configure(&cfgapi.Config{}))
	require.False(t, l.DebugEnabled())

	require.Error(t, Configure(&cfgapi.Config{Debug: []string{"bogus:log-test"}}))
}

func TestRateLimit(t *testing.T) {
	rl := RateLimit(Get("rate-test"), Interval(time.Hour)).(*ratelimited)
	require.True(t, rl.limiter.Allow())
	require.False(t, rl.limiter.Allow())
}
