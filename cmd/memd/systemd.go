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

package main

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

const (
	sdReady     = daemon.SdNotifyReady
	sdReloading = daemon.SdNotifyReloading
	sdStopping  = daemon.SdNotifyStopping
)

// notify reports a state change to the service manager. It is a no-op
// when not running under systemd.
func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	switch {
	case err != nil:
		log.Warnf("failed to notify service manager of %q: %v", state, err)
	case sent:
		log.Debugf("notified service manager of %q", state)
	}
}

// runWatchdog pings the service manager watchdog at half its interval
// until ctx is done.
func runWatchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warnf("failed to query systemd watchdog: %v", err)
		return
	}
	if interval == 0 {
		return
	}

	log.Infof("pinging systemd watchdog every %s", interval/2)

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notify(daemon.SdNotifyWatchdog)
		}
	}
}
