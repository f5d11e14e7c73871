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
	"errors"
	"fmt"
	"time"

	"flushnode/internal/flush/core"
)

// BuildPersister constructs a core.Persister from a string selector.
// Supported adapters:
//   - "mock": in-process logger (default)
//   - "redis": idempotent Redis adapter; uses a real client when RedisAddr
//     is set, otherwise a logging client
//   - "kafka": idempotent Kafka adapter using a logging producer (no real
//     broker wiring is bundled; callers with a broker should build a
//     KafkaPersister directly with their own KafkaProducer)
//   - "postgres": not buildable from this factory (returns an error) since
//     it requires a live *sql.DB; callers should construct
//     NewPostgresPersister directly and wrap it with NewIdemShim
func BuildPersister(adapter string, opts AdapterOptions) (core.Persister, error) {
	switch adapter {
	case "", "mock":
		return core.NewMockPersister(), nil
	case "redis":
		ttl := opts.RedisMarkerTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		var evaler RedisEvaler
		if opts.RedisAddr != "" {
			evaler = NewGoRedisEvaler(opts.RedisAddr)
		} else {
			evaler = LoggingRedisEvaler{}
		}
		return NewIdemShim(NewRedisPersister(evaler, ttl)), nil
	case "kafka":
		topic := opts.KafkaTopic
		if topic == "" {
			topic = "flush-retired"
		}
		return NewIdemShim(NewKafkaPersister(LoggingKafkaProducer{}, topic)), nil
	case "postgres":
		return nil, errors.New("postgres adapter requires a live *sql.DB; construct NewPostgresPersister directly")
	default:
		return nil, fmt.Errorf("unknown persistence adapter: %s", adapter)
	}
}
