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

package store

import (
	"encoding/binary"
	"fmt"
)

const (
	// PageSize is the granularity of the state file.
	PageSize = 4096
	// cellSize is the size of the header and of every cell.
	cellSize = 16
)

// ProcessState is the QoS state of a process.
type ProcessState uint8

const (
	ProcessNormal ProcessState = iota
	ProcessBackground
	processStateMax
)

var processStateNames = map[ProcessState]string{
	ProcessNormal:     "normal",
	ProcessBackground: "background",
}

func (s ProcessState) String() string {
	if name, ok := processStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("<invalid process state %d>", uint8(s))
}

// ThreadState is the QoS state of a thread.
type ThreadState uint8

const (
	ThreadUrgentBursty ThreadState = iota
	ThreadUrgent
	ThreadBalanced
	ThreadEco
	ThreadUtility
	ThreadBackground
	ThreadUrgentBurstyServer
	ThreadUrgentBurstyClient
	threadStateMax
)

var threadStateNames = map[ThreadState]string{
	ThreadUrgentBursty:       "urgent-bursty",
	ThreadUrgent:             "urgent",
	ThreadBalanced:           "balanced",
	ThreadEco:                "eco",
	ThreadUtility:            "utility",
	ThreadBackground:         "background",
	ThreadUrgentBurstyServer: "urgent-bursty-server",
	ThreadUrgentBurstyClient: "urgent-bursty-client",
}

func (s ThreadState) String() string {
	if name, ok := threadStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("<invalid thread state %d>", uint8(s))
}

// cell is the decoded content of a 16 byte cell:
//
//	0-3   process or thread id
//	4     state
//	5     1 for a process, 0 for a thread
//	6-7   reserved
//	8-15  start time of the process or thread
type cell struct {
	id        uint32
	state     uint8
	isProcess bool
	starttime uint64
}

func decodeCell(b []byte) (cell, error) {
	c := cell{
		id:        binary.NativeEndian.Uint32(b[0:4]),
		state:     b[4],
		starttime: binary.NativeEndian.Uint64(b[8:16]),
	}

	switch b[5] {
	case 0:
		if c.state >= uint8(threadStateMax) {
			return c, fmt.Errorf("thread %d has invalid state %d", c.id, c.state)
		}
	case 1:
		c.isProcess = true
		if c.state >= uint8(processStateMax) {
			return c, fmt.Errorf("process %d has invalid state %d", c.id, c.state)
		}
	default:
		return c, fmt.Errorf("cell for %d has invalid kind %d", c.id, b[5])
	}

	return c, nil
}

func (c cell) encode(b []byte) {
	binary.NativeEndian.PutUint32(b[0:4], c.id)
	c.update(b)
	if c.isProcess {
		b[5] = 1
	} else {
		b[5] = 0
	}
	b[6], b[7] = 0, 0
}

// update rewrites the state and start time of an encoded cell.
func (c cell) update(b []byte) {
	b[4] = c.state
	binary.NativeEndian.PutUint64(b[8:16], c.starttime)
}
