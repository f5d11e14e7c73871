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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// KafkaProducer is a minimal abstraction over a Kafka client.
// Implementations should enable idempotent production and, ideally,
// transactions if the topology requires atomic multi-message writes.
//
//   - Idempotent producer ON (enable.idempotence=true)
//   - Use FlushID as the Kafka message key so broker dedup and per-key
//     ordering are preserved
//   - Acks=all is recommended
//
// A specific Kafka library is intentionally not imported here.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

// KafkaPersister publishes retired flushes as Kafka messages. Idempotency
// comes from the broker deduplicating idempotent-producer retries;
// consumers must still track the last-applied serial per (handler, target)
// and ignore duplicates, or enforce a monotonic FencingToken when provided.
//
// This persister performs no local state change; materialization is
// delegated to downstream consumers.
type KafkaPersister struct {
	producer       KafkaProducer
	topic          string
	defaultTimeout time.Duration
}

func NewKafkaPersister(p KafkaProducer, topic string) *KafkaPersister {
	return &KafkaPersister{producer: p, topic: topic, defaultTimeout: 10 * time.Second}
}

// FlushMessage is the serialized payload sent to Kafka.
type FlushMessage struct {
	Handler      string `json:"handler"`
	Target       string `json:"target"`
	Serial       uint64 `json:"serial"`
	FlushID      string `json:"flush_id"`
	FencingToken *int64 `json:"fencing_token,omitempty"`
	TsUnixMs     int64  `json:"ts_unix_ms"`
}

func (k *KafkaPersister) FlushBatch(ctx context.Context, entries []FlushEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && k.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.defaultTimeout)
		defer cancel()
	}
	nowMs := time.Now().UnixMilli()
	for _, e := range entries {
		if e.FlushID == "" {
			return errors.New("FlushEntry.FlushID must be set")
		}
		msg := FlushMessage{
			Handler:      e.Handler,
			Target:       e.Target,
			Serial:       e.Serial,
			FlushID:      e.FlushID,
			FencingToken: e.FencingToken,
			TsUnixMs:     nowMs,
		}
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal kafka message: %w", err)
		}
		headers := map[string]string{"content-type": "application/json"}
		if err := k.producer.Produce(ctx, k.topic, []byte(e.FlushID), b, headers); err != nil {
			return fmt.Errorf("kafka produce handler=%s target=%s flush=%s: %w", e.Handler, e.Target, e.FlushID, err)
		}
	}
	return nil
}
