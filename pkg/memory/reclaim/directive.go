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

package reclaim

import (
	"fmt"
	"strings"
)

// Tag is the kind of a reclaim directive.
type Tag int

const (
	TagNone Tag = iota
	TagModerate
	TagCritical
)

// Directive tells how much memory should be reclaimed and how urgently.
// Directives are totally ordered: None < Moderate(k) < Critical(k), and by
// size within a tag.
type Directive struct {
	Tag      Tag
	TargetKB uint64
}

// None returns a directive not to reclaim anything.
func None() Directive {
	return Directive{}
}

// Moderate returns a directive to reclaim kb KiB in the background.
func Moderate(kb uint64) Directive {
	return Directive{Tag: TagModerate, TargetKB: kb}
}

// Critical returns a directive to reclaim kb KiB urgently.
func Critical(kb uint64) Directive {
	return Directive{Tag: TagCritical, TargetKB: kb}
}

// IsNone returns true if nothing needs to be reclaimed.
func (d Directive) IsNone() bool {
	return d.Tag == TagNone
}

// Compare returns -1, 0 or 1 if d orders before, equal to or after o.
func (d Directive) Compare(o Directive) int {
	switch {
	case d.Tag < o.Tag:
		return -1
	case d.Tag > o.Tag:
		return 1
	case d.Tag == TagNone:
		return 0
	case d.TargetKB < o.TargetKB:
		return -1
	case d.TargetKB > o.TargetKB:
		return 1
	}
	return 0
}

// Max returns the larger of two directives.
func Max(a, b Directive) Directive {
	if b.Compare(a) > 0 {
		return b
	}
	return a
}

// capped limits the target of a directive to kb.
func (d Directive) capped(kb uint64) Directive {
	if d.Tag != TagNone && d.TargetKB > kb {
		d.TargetKB = kb
	}
	return d
}

func (d Directive) String() string {
	switch d.Tag {
	case TagModerate:
		return fmt.Sprintf("Moderate(%d KiB)", d.TargetKB)
	case TagCritical:
		return fmt.Sprintf("Critical(%d KiB)", d.TargetKB)
	}
	return "None"
}

// Level is a memory pressure level.
type Level int

const (
	LevelNone Level = iota
	LevelBackground
	LevelForeground
	LevelCritical
)

var levelNames = map[Level]string{
	LevelNone:       "none",
	LevelBackground: "background",
	LevelForeground: "foreground",
	LevelCritical:   "critical",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("<unknown level %d>", int(l))
}

// ParseLevel parses the name of a pressure level.
func ParseLevel(name string) (Level, error) {
	for l, n := range levelNames {
		if strings.EqualFold(n, name) {
			return l, nil
		}
	}
	return LevelNone, fmt.Errorf("reclaim: unknown pressure level %q", name)
}

// Reason tells why a directive was issued.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonPsi
	ReasonRefaultAnon
	ReasonRefaultFile
	ReasonDirectReclaim
	ReasonMargin
	ReasonStartup
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonPsi:
		return "psi"
	case ReasonRefaultAnon:
		return "refault-anon"
	case ReasonRefaultFile:
		return "refault-file"
	case ReasonDirectReclaim:
		return "direct-reclaim"
	case ReasonMargin:
		return "margin"
	case ReasonStartup:
		return "startup"
	}
	return fmt.Sprintf("<unknown reason %d>", int(r))
}
