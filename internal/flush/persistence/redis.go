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
	"errors"
	"fmt"
	"time"
)

// RedisEvaler abstracts the minimal surface needed from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 (Cmdable.Eval) or
// any equivalent scripting client.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisPersister applies flushes idempotently using a Lua script:
//  1. SETNX flush:<handler>:<target>:<flush_id> 1
//  2. If set -> HSET serial:<handler>:<target> flushed_serial <serial>
//  3. EXPIRE the marker for leak protection
//
// If SETNX fails (already applied), the script is a no-op and FlushBatch
// still returns success.
type RedisPersister struct {
	client    RedisEvaler
	markerTTL time.Duration
}

// NewRedisPersister returns a persister with the given client and marker
// TTL. markerTTL guards against unbounded growth of flush markers; pick a
// duration comfortably larger than the worst-case retry window.
func NewRedisPersister(client RedisEvaler, markerTTL time.Duration) *RedisPersister {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisPersister{client: client, markerTTL: markerTTL}
}

const redisFlushScript = `
local serialKey = KEYS[1]
local markerKey = KEYS[2]
local serial = tonumber(ARGV[1])
local ttlSeconds = tonumber(ARGV[2])
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  redis.call('HSET', serialKey, 'flushed_serial', serial)
  if ttlSeconds and ttlSeconds > 0 then
    redis.call('EXPIRE', markerKey, ttlSeconds)
  end
  return 1
else
  return 0
end
`

// RedisSerialKey returns the hash key storing a target's flushed serial.
func RedisSerialKey(handler, target string) string {
	return fmt.Sprintf("serial:%s:%s", handler, target)
}

// RedisFlushMarkerKey returns the idempotency marker key for a flush.
func RedisFlushMarkerKey(handler, target, flushID string) string {
	return fmt.Sprintf("flush:%s:%s:%s", handler, target, flushID)
}

// FlushBatch applies entries one EVAL at a time. Callers that need fewer
// round trips can pipeline externally.
func (r *RedisPersister) FlushBatch(ctx context.Context, entries []FlushEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if e.FlushID == "" {
			return errors.New("FlushEntry.FlushID must be set")
		}
		keys := []string{RedisSerialKey(e.Handler, e.Target), RedisFlushMarkerKey(e.Handler, e.Target, e.FlushID)}
		args := []interface{}{e.Serial, int(r.markerTTL.Seconds())}
		if _, err := r.client.Eval(ctx, redisFlushScript, keys, args...); err != nil {
			return fmt.Errorf("redis eval handler=%s target=%s flush=%s: %w", e.Handler, e.Target, e.FlushID, err)
		}
	}
	return nil
}
