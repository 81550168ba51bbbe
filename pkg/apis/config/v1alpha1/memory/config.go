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

package memory

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ArthurSonzogni/chromiumos-platform2-sub000/pkg/apis/config/v1alpha1/common"
)

const (
	// DefaultCriticalMarginBps is the default critical margin, in basis
	// points of total memory.
	DefaultCriticalMarginBps = 520
	// DefaultModerateMarginBps is the default moderate margin, in basis
	// points of total memory.
	DefaultModerateMarginBps = 4000
	// DefaultRamSwapWeight is the default cost of swapping out anonymous
	// memory relative to dropping page cache.
	DefaultRamSwapWeight = 4
)

// Config is the memory pressure and reclaim configuration.
type Config struct {
	// Reclaim configures reclaim targets and thrashing thresholds.
	// +optional
	Reclaim Reclaim `json:"reclaim,omitempty"`
	// Margins configures the free memory margins.
	// +optional
	Margins Margins `json:"margins,omitempty"`
	// Pressure maps memory pressure stall averages to pressure levels.
	// +optional
	Pressure Pressure `json:"pressure,omitempty"`
	// PollInterval is the interval between reclaim evaluations.
	// +optional
	// +kubebuilder:default="1s"
	PollInterval common.Duration `json:"pollInterval,omitempty"`
	// GameMode replaces the moderate margin with the critical one.
	// +optional
	GameMode bool `json:"gameMode,omitempty"`
}

// Reclaim holds the reclaim targets and thrashing thresholds, in KiB. The
// thresholds are per second and per online CPU.
type Reclaim struct {
	ModerateTargetKB         uint64 `json:"moderateTargetKB,omitempty"`
	CriticalTargetKB         uint64 `json:"criticalTargetKB,omitempty"`
	UnresponsiveTargetKB     uint64 `json:"unresponsiveTargetKB,omitempty"`
	RefaultAnonThresholdKB   uint64 `json:"refaultAnonThresholdKB,omitempty"`
	RefaultFileThresholdKB   uint64 `json:"refaultFileThresholdKB,omitempty"`
	DirectReclaimThresholdKB uint64 `json:"directReclaimThresholdKB,omitempty"`
}

// Margins configures the free memory margins. Explicit sizes take
// precedence over the percentages of total memory.
type Margins struct {
	CriticalBps   uint32 `json:"criticalBps,omitempty"`
	ModerateBps   uint32 `json:"moderateBps,omitempty"`
	CriticalKB    uint64 `json:"criticalKB,omitempty"`
	ModerateKB    uint64 `json:"moderateKB,omitempty"`
	RamSwapWeight uint64 `json:"ramSwapWeight,omitempty"`
}

// Pressure holds the some-avg10 percentages at which each pressure level
// starts.
type Pressure struct {
	Background float64 `json:"background,omitempty"`
	Foreground float64 `json:"foreground,omitempty"`
	Critical   float64 `json:"critical,omitempty"`
}

// DefaultReclaim returns the default reclaim configuration.
func DefaultReclaim() Reclaim {
	return Reclaim{
		ModerateTargetKB:         10 * 1024,
		CriticalTargetKB:         50 * 1024,
		UnresponsiveTargetKB:     100 * 1024,
		RefaultAnonThresholdKB:   4 * 1024,
		RefaultFileThresholdKB:   8 * 1024,
		DirectReclaimThresholdKB: 4 * 1024,
	}
}

// DefaultPressure returns the default pressure level thresholds.
func DefaultPressure() Pressure {
	return Pressure{
		Background: 5,
		Foreground: 20,
		Critical:   50,
	}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Reclaim: DefaultReclaim(),
		Margins: Margins{
			CriticalBps:   DefaultCriticalMarginBps,
			ModerateBps:   DefaultModerateMarginBps,
			RamSwapWeight: DefaultRamSwapWeight,
		},
		Pressure: DefaultPressure(),
	}
}

// SetDefaults fills in unset fields with their defaults.
func (c *Config) SetDefaults() {
	def := Default()

	r, d := &c.Reclaim, def.Reclaim
	for _, f := range []struct{ v *uint64; def uint64 }{
		{&r.ModerateTargetKB, d.ModerateTargetKB},
		{&r.CriticalTargetKB, d.CriticalTargetKB},
		{&r.UnresponsiveTargetKB, d.UnresponsiveTargetKB},
		{&r.RefaultAnonThresholdKB, d.RefaultAnonThresholdKB},
		{&r.RefaultFileThresholdKB, d.RefaultFileThresholdKB},
		{&r.DirectReclaimThresholdKB, d.DirectReclaimThresholdKB},
	} {
		if *f.v == 0 {
			*f.v = f.def
		}
	}

	if c.Margins.CriticalBps == 0 {
		c.Margins.CriticalBps = def.Margins.CriticalBps
	}
	if c.Margins.ModerateBps == 0 {
		c.Margins.ModerateBps = def.Margins.ModerateBps
	}
	if c.Margins.RamSwapWeight == 0 {
		c.Margins.RamSwapWeight = def.Margins.RamSwapWeight
	}

	if c.Pressure == (Pressure{}) {
		c.Pressure = def.Pressure
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.Margins.CriticalBps > 10000 || c.Margins.ModerateBps > 10000 {
		errs = multierror.Append(errs, fmt.Errorf("memory: margins exceed total memory (%d, %d bps)",
			c.Margins.CriticalBps, c.Margins.ModerateBps))
	}
	if c.Margins.CriticalBps > c.Margins.ModerateBps {
		errs = multierror.Append(errs, fmt.Errorf("memory: critical margin %d bps above moderate %d bps",
			c.Margins.CriticalBps, c.Margins.ModerateBps))
	}
	if c.Margins.CriticalKB != 0 && c.Margins.ModerateKB != 0 && c.Margins.CriticalKB > c.Margins.ModerateKB {
		errs = multierror.Append(errs, fmt.Errorf("memory: critical margin %d KiB above moderate %d KiB",
			c.Margins.CriticalKB, c.Margins.ModerateKB))
	}

	p := c.Pressure
	if !(p.Background <= p.Foreground && p.Foreground <= p.Critical) {
		errs = multierror.Append(errs, fmt.Errorf("memory: pressure thresholds %v/%v/%v are not ascending",
			p.Background, p.Foreground, p.Critical))
	}
	if c.PollInterval.Duration < 0 {
		errs = multierror.Append(errs, fmt.Errorf("memory: negative poll interval %s", c.PollInterval))
	}

	return errs.ErrorOrNil()
}
