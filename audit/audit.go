/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package audit provides durable SQLite storage for order/position lifecycle
// events and session connect/logon records, kept independent of the
// day-partitioned market-data storage engine: this is the compliance trail,
// not the replay dataset. Prepared statements are initialized once at open
// and reused for every write, matching the batch-insert style the FIX
// client's own database layer uses for market data.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/zerolog/log"

	"marketgw/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plant TEXT NOT NULL,
	event TEXT NOT NULL,
	detail TEXT,
	occurred_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS order_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id TEXT NOT NULL,
	account TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	state TEXT NOT NULL,
	reject_reason TEXT,
	occurred_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS position_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	position_id TEXT NOT NULL,
	account TEXT NOT NULL,
	symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	quantity_open TEXT NOT NULL,
	average_fill_price TEXT NOT NULL,
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_events_order_id ON order_events(order_id);
CREATE INDEX IF NOT EXISTS idx_position_events_position_id ON position_events(position_id);
`

const (
	insertSessionQuery  = `INSERT INTO sessions (plant, event, detail, occurred_at) VALUES (?, ?, ?, ?)`
	insertOrderQuery    = `INSERT INTO order_events (order_id, account, symbol, side, state, reject_reason, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertPositionQuery = `INSERT INTO position_events (position_id, account, symbol, kind, quantity_open, average_fill_price, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
)

// Log is the durable audit trail: one row per session lifecycle event and
// per order/position state transition.
type Log struct {
	db *sql.DB

	stmtSession  *sql.Stmt
	stmtOrder    *sql.Stmt
	stmtPosition *sql.Stmt
}

// Open creates (or attaches to) a SQLite audit database at dbPath, under
// WAL journaling so writes never block concurrent readers (admin tooling,
// reconciliation reports).
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize audit schema: %w", err)
	}

	l := &Log{db: db}
	if l.stmtSession, err = db.Prepare(insertSessionQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare session statement: %w", err)
	}
	if l.stmtOrder, err = db.Prepare(insertOrderQuery); err != nil {
		_ = l.stmtSession.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare order statement: %w", err)
	}
	if l.stmtPosition, err = db.Prepare(insertPositionQuery); err != nil {
		_ = l.stmtSession.Close()
		_ = l.stmtOrder.Close()
		_ = db.Close()
		return nil, fmt.Errorf("prepare position statement: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("audit database opened")
	return l, nil
}

func (l *Log) Close() error {
	_ = l.stmtSession.Close()
	_ = l.stmtOrder.Close()
	_ = l.stmtPosition.Close()
	return l.db.Close()
}

// SessionEvent records a plant lifecycle transition (connect, logon,
// logout, reconnect) for after-the-fact diagnosis of connectivity issues.
func (l *Log) SessionEvent(plant, event, detail string) {
	if _, err := l.stmtSession.Exec(plant, event, detail, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		log.Error().Err(err).Str("plant", plant).Msg("failed to record session audit event")
	}
}

// OrderEvent records an order state transition.
func (l *Log) OrderEvent(ev types.OrderUpdateEvent) {
	o := ev.Order
	if _, err := l.stmtOrder.Exec(string(o.OrderID), o.Account.Key(), o.Symbol.Key(), o.Side.String(), o.State.String(),
		o.RejectReason, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		log.Error().Err(err).Str("orderId", string(o.OrderID)).Msg("failed to record order audit event")
	}
}

// PositionEvent records a position open/increase/reduce/close.
func (l *Log) PositionEvent(ev types.PositionUpdateEvent) {
	p := ev.Position
	if _, err := l.stmtPosition.Exec(string(p.ID), p.Account.Key(), p.Symbol.Key(), ev.Kind.String(),
		p.QuantityOpen.String(), p.AverageFillPrice.String(), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		log.Error().Err(err).Str("positionId", string(p.ID)).Msg("failed to record position audit event")
	}
}

// Record dispatches a single ledger event to the appropriate audit table;
// the gateway calls this for every event it reads off the ledger's shared
// channel, alongside forwarding the same event to connected strategies.
func (l *Log) Record(ev types.StrategyEvent) {
	switch ev.Kind {
	case types.EventOrderUpdate:
		if ev.OrderUpdate != nil {
			l.OrderEvent(*ev.OrderUpdate)
		}
	case types.EventPositionUpdate:
		if ev.PositionUpdate != nil {
			l.PositionEvent(*ev.PositionUpdate)
		}
	}
}
