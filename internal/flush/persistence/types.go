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

// Package persistence provides idempotent persistence adapters for Postgres,
// Redis, and Kafka backends for the flush worker.
//
// These adapters share a common FlushEntry shape that carries an idempotency
// key (FlushID) and an optional fencing token, so that a retried flush
// (crash, timeout, duplicate delivery) applies at most once.
package persistence

import "context"

// FlushEntry is the adapter-facing shape for a single target's retired flush.
//
//   - Handler/Target: identify the flush target being retired.
//   - Serial: the transaction-log serial this flush retires up to.
//   - FlushID: globally unique idempotency key for this flush. Reusing the
//     same id for a retried flush makes the operation a no-op.
//   - FencingToken: optional monotonic token guarding against an
//     out-of-order apply when multiple writers exist. Nil disables it.
type FlushEntry struct {
	Handler      string
	Target       string
	Serial       uint64
	FlushID      string
	FencingToken *int64
}

// IdempotentPersister is the minimal API supported by every concrete
// backend adapter. Implementations must apply each entry atomically with
// respect to its FlushID and must be safe to retry: a duplicate FlushID for
// the same (Handler, Target) pair is a no-op.
type IdempotentPersister interface {
	FlushBatch(ctx context.Context, entries []FlushEntry) error
}
