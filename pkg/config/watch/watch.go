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

// Package watch watches configuration files for changes.
package watch

import (
	logger "github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/log"
)

var log = logger.Get("watch")

// EventType is the type of a watch event.
type EventType string

const (
	// Added is sent for the initial contents and for every update.
	Added EventType = "ADDED"
	// Deleted is sent when the file is removed or renamed.
	Deleted EventType = "DELETED"
	// Error is sent when watching fails. No further events follow.
	Error EventType = "ERROR"
)

// Event is a change in a watched file, with its parsed contents.
type Event[T any] struct {
	Type   EventType
	Object T
	Err    error
}

const eventQueueSize = 16
