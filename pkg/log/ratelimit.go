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
	"time"

	"golang.org/x/time/rate"
)

// Rate specifies the maximum rate of messages let through by a rate-limited Logger.
type Rate struct {
	Limit rate.Limit
	Burst int
}

const (
	// DefaultBurst is the burst size used if a Rate omits it.
	DefaultBurst = 1
)

// Every is a convenience wrapper around rate.Every.
func Every(interval time.Duration) rate.Limit {
	return rate.Every(interval)
}

// Interval returns a Rate letting through one message per the given interval.
func Interval(interval time.Duration) Rate {
	return Rate{Limit: Every(interval), Burst: DefaultBurst}
}

type ratelimited struct {
	Logger
	limiter *rate.Limiter
}

// RateLimit returns a Logger which drops messages exceeding the given rate.
// Debug messages are not rate-limited.
func RateLimit(l Logger, r Rate) Logger {
	if r.Burst < 1 {
		r.Burst = DefaultBurst
	}
	return &ratelimited{
		Logger:  l,
		limiter: rate.NewLimiter(r.Limit, r.Burst),
	}
}

func (rl *ratelimited) Info(format string, args ...interface{}) {
	if rl.limiter.Allow() {
		rl.Logger.Info(format, args...)
	}
}

func (rl *ratelimited) Warn(format string, args ...interface{}) {
	if rl.limiter.Allow() {
		rl.Logger.Warn(format, args...)
	}
}

func (rl *ratelimited) Error(format string, args ...interface{}) {
	if rl.limiter.Allow() {
		rl.Logger.Error(format, args...)
	}
}

func (rl *ratelimited) Infof(format string, args ...interface{}) {
	rl.Info(format, args...)
}

func (rl *ratelimited) Warnf(format string, args ...interface{}) {
	rl.Warn(format, args...)
}

func (rl *ratelimited) Errorf(format string, args ...interface{}) {
	rl.Error(format, args...)
}
