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

import "time"

// Clock supplies the current time to Select when the caller does not pin
// one via PolicyConfig.Start. Tests should use a fixed-time implementation
// rather than depending on the wall clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the default Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// resolveNow picks the instant to use for age computations: an explicit
// PolicyConfig.Start always wins (used to pin the clock in tests), then an
// explicit now argument, falling back to the configured Clock.
func (s *FlushStrategy) resolveNow(now time.Time) time.Time {
	if s.cfg.Start != nil {
		return *s.cfg.Start
	}
	if !now.IsZero() {
		return now
	}
	return s.clock.Now()
}
