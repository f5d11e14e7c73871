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
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS flush_targets (
//   handler TEXT NOT NULL,
//   target TEXT NOT NULL,
//   flushed_serial BIGINT NOT NULL DEFAULT 0,
//   last_token BIGINT,
//   PRIMARY KEY (handler, target)
// );
//
// CREATE TABLE IF NOT EXISTS applied_flushes (
//   flush_id TEXT PRIMARY KEY,
//   handler TEXT NOT NULL,
//   target TEXT NOT NULL,
//   serial BIGINT NOT NULL,
//   ts TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX IF NOT EXISTS idx_applied_flushes_target ON applied_flushes(handler, target);
//
// Idempotent transaction per flush entry:
//   UPDATE flush_targets
//     SET flushed_serial = $4
//     WHERE handler = $2 AND target = $3 AND NOT EXISTS (
//       SELECT 1 FROM applied_flushes WHERE flush_id = $1
//     );
//   INSERT INTO applied_flushes(flush_id, handler, target, serial) VALUES ($1,$2,$3,$4)
//     ON CONFLICT DO NOTHING;

// PostgresPersister applies flushes idempotently using the pattern above.
// It can optionally auto-create missing flush_targets rows.
type PostgresPersister struct {
	db                *sql.DB
	createMissingRows bool
	defaultTimeout    time.Duration
}

// NewPostgresPersister creates a persister. If createMissingRows is true,
// the persister inserts flush_targets rows with flushed_serial=0 on first sight.
func NewPostgresPersister(db *sql.DB, createMissingRows bool) *PostgresPersister {
	return &PostgresPersister{db: db, createMissingRows: createMissingRows, defaultTimeout: 10 * time.Second}
}

// FlushBatch applies the provided entries within a single transaction.
// Each entry remains idempotent: if its flush_id already exists, the
// flushed_serial update is skipped.
func (p *PostgresPersister) FlushBatch(ctx context.Context, entries []FlushEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && p.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.defaultTimeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if p.createMissingRows {
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO flush_targets(handler, target, flushed_serial) VALUES ($1, $2, 0) ON CONFLICT DO NOTHING`,
				e.Handler, e.Target); err != nil {
				return fmt.Errorf("insert flush_targets(%s/%s): %w", e.Handler, e.Target, err)
			}
		}
	}

	for _, e := range entries {
		if e.FlushID == "" {
			return errors.New("FlushEntry.FlushID must be set")
		}
		if e.FencingToken != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE flush_targets SET last_token = GREATEST(COALESCE(last_token, $4), $4)
                  WHERE handler = $1 AND target = $2 AND NOT EXISTS (SELECT 1 FROM applied_flushes WHERE flush_id = $3) AND (last_token IS NULL OR $4 >= last_token)`,
				e.Handler, e.Target, e.FlushID, *e.FencingToken); err != nil {
				return fmt.Errorf("update last_token(%s/%s): %w", e.Handler, e.Target, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE flush_targets SET flushed_serial = $4
               WHERE handler = $2 AND target = $3 AND NOT EXISTS (SELECT 1 FROM applied_flushes WHERE flush_id = $1)`,
			e.FlushID, e.Handler, e.Target, e.Serial); err != nil {
			return fmt.Errorf("update flush_targets(%s/%s): %w", e.Handler, e.Target, err)
		}
		// The marker goes in after the guarded updates, so their NOT EXISTS
		// check sees only earlier applies of this flush_id.
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO applied_flushes(flush_id, handler, target, serial) VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING`,
			e.FlushID, e.Handler, e.Target, e.Serial); err != nil {
			return fmt.Errorf("insert applied_flushes(%s): %w", e.FlushID, err)
		}
	}

	return tx.Commit()
}
