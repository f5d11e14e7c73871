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
	"math"
	"testing"
	"time"
)

func TestNewFlushStrategy_RejectsZeroFields(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxMemoryGain = 0
	if _, err := NewFlushStrategy(cfg); err == nil {
		t.Fatal("expected error for zero MaxMemoryGain")
	}
}

func TestNewFlushStrategy_RejectsNaNFactor(t *testing.T) {
	cfg := baseConfig()
	cfg.DiskBloatFactor = math.NaN()
	if _, err := NewFlushStrategy(cfg); err == nil {
		t.Fatal("expected error for NaN DiskBloatFactor")
	}
}

func TestNewFlushStrategy_RejectsInfiniteFactor(t *testing.T) {
	cfg := baseConfig()
	cfg.TotalDiskBloatFactor = math.Inf(1)
	if _, err := NewFlushStrategy(cfg); err == nil {
		t.Fatal("expected error for infinite TotalDiskBloatFactor")
	}
}

func TestNewFlushStrategy_RejectsNonPositiveMaxTimeGain(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxTimeGain = 0
	if _, err := NewFlushStrategy(cfg); err == nil {
		t.Fatal("expected error for zero MaxTimeGain")
	}
}

func TestNewFlushStrategy_AcceptsValidConfig(t *testing.T) {
	if _, err := NewFlushStrategy(baseConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func TestWithClock_UsedWhenStartUnset(t *testing.T) {
	strat, err := NewFlushStrategy(baseConfig())
	if err != nil {
		t.Fatalf("NewFlushStrategy: %v", err)
	}
	pinned := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	strat = strat.WithClock(fixedClock{t: pinned})
	got := strat.resolveNow(time.Time{})
	if !got.Equal(pinned) {
		t.Fatalf("resolveNow = %v, want %v", got, pinned)
	}
}

func TestConfigStart_OverridesClockAndArgument(t *testing.T) {
	strat, err := NewFlushStrategy(baseConfig())
	if err != nil {
		t.Fatalf("NewFlushStrategy: %v", err)
	}
	pinned := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := baseConfig()
	cfg.Start = &pinned
	strat, err = NewFlushStrategy(cfg)
	if err != nil {
		t.Fatalf("NewFlushStrategy: %v", err)
	}
	argNow := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	got := strat.resolveNow(argNow)
	if !got.Equal(pinned) {
		t.Fatalf("resolveNow = %v, want config.Start %v", got, pinned)
	}
}
