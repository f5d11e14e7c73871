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

package persistence

import (
	"context"

	"flushnode/internal/flush/core"

	"github.com/google/uuid"
)

// IdemShim adapts an IdempotentPersister to the core.Persister interface
// the worker depends on. It generates a fresh idempotency FlushID for each
// record using a UUIDv4, so a retried FlushBatch call after a transient
// error produces a distinct FlushID and is not itself idempotent across
// worker retries — callers that need retry-safe idempotency should supply
// stable ids derived from (handler, target, serial) instead.
type IdemShim struct {
	impl IdempotentPersister
}

func NewIdemShim(impl IdempotentPersister) *IdemShim { return &IdemShim{impl: impl} }

// FlushBatch maps core.FlushRecord -> FlushEntry and forwards to the
// idempotent persister.
func (s *IdemShim) FlushBatch(records []core.FlushRecord) error {
	if len(records) == 0 {
		return nil
	}
	entries := make([]FlushEntry, len(records))
	for i, r := range records {
		entries[i] = FlushEntry{
			Handler: r.Handler,
			Target:  r.Target,
			Serial:  r.Serial,
			FlushID: uuid.NewString(),
		}
	}
	return s.impl.FlushBatch(context.Background(), entries)
}

// PrintFinalMetrics is a no-op; real adapters can hook their own summaries.
func (s *IdemShim) PrintFinalMetrics() {}
