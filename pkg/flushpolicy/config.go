// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package flushpolicy

import (
	"fmt"
	"math"
	"time"
)

// minDiskFloor is the minimum disk-size floor used in bloat ratios so that
// tiny disks don't produce spuriously huge ratios. 100 x 10^6 bytes.
const minDiskFloor uint64 = 100_000_000

// PolicyConfig holds the tunable thresholds for a FlushStrategy. All fields
// except Start are required, and all are immutable for the lifetime of a
// constructed strategy.
type PolicyConfig struct {
	// MaxMemoryGain is the per-target memory trigger threshold, in bytes.
	MaxMemoryGain uint64
	// GlobalMaxMemory is the aggregate memory trigger threshold, in bytes.
	GlobalMaxMemory uint64
	// TotalDiskBloatFactor is the ratio threshold for aggregate disk bloat.
	TotalDiskBloatFactor float64
	// MaxGlobalTLSSize is the aggregate per-handler TLS byte threshold.
	MaxGlobalTLSSize uint64
	// DiskBloatFactor is the ratio threshold for per-target disk bloat.
	DiskBloatFactor float64
	// MaxTimeGain is the age threshold after which a target is considered
	// due for an age-driven flush.
	MaxTimeGain time.Duration
	// Start optionally pins "now" for age evaluation. Tests should set this
	// rather than relying on the injected Clock.
	Start *time.Time
}

// validate rejects out-of-range configuration at construction time, per
// spec: configuration errors are rejected at construction, never surfaced
// as a decision from Select.
func (c PolicyConfig) validate() error {
	if c.MaxMemoryGain == 0 {
		return fmt.Errorf("flushpolicy: MaxMemoryGain must be positive")
	}
	if c.GlobalMaxMemory == 0 {
		return fmt.Errorf("flushpolicy: GlobalMaxMemory must be positive")
	}
	if c.MaxGlobalTLSSize == 0 {
		return fmt.Errorf("flushpolicy: MaxGlobalTLSSize must be positive")
	}
	if c.MaxTimeGain <= 0 {
		return fmt.Errorf("flushpolicy: MaxTimeGain must be positive")
	}
	if err := validateFactor("DiskBloatFactor", c.DiskBloatFactor); err != nil {
		return err
	}
	if err := validateFactor("TotalDiskBloatFactor", c.TotalDiskBloatFactor); err != nil {
		return err
	}
	return nil
}

func validateFactor(name string, v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("flushpolicy: %s must not be NaN", name)
	}
	if math.IsInf(v, 0) {
		return fmt.Errorf("flushpolicy: %s must not be infinite", name)
	}
	if v <= 0 {
		return fmt.Errorf("flushpolicy: %s must be positive", name)
	}
	return nil
}

// FlushStrategy is the pure policy engine. Once constructed it holds only
// immutable configuration and a clock, so it is safely shareable by
// multiple concurrent callers: Select performs no locking and retains no
// state between calls.
type FlushStrategy struct {
	cfg   PolicyConfig
	clock Clock
}

// NewFlushStrategy validates cfg and constructs a FlushStrategy. Invalid
// configuration (zero required fields, NaN/infinite/non-positive factors)
// is rejected here rather than producing a surprising decision later.
func NewFlushStrategy(cfg PolicyConfig) (*FlushStrategy, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &FlushStrategy{cfg: cfg, clock: SystemClock{}}, nil
}

// WithClock returns a copy of the strategy using the given Clock instead of
// the system clock. Intended for tests that want to pin time without using
// PolicyConfig.Start.
func (s *FlushStrategy) WithClock(c Clock) *FlushStrategy {
	clone := *s
	clone.clock = c
	return &clone
}
