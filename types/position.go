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

package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PositionID is minted as "{symbol}-{counter}-{unix_nanos}-{side}", matching
// the format used by the system this gateway's ledger design is grounded on.
type PositionID string

func NewPositionID(symbol string, counter uint64, unixNanos int64, side Side) PositionID {
	return PositionID(fmt.Sprintf("%s-%d-%d-%s", symbol, counter, unixNanos, side))
}

// Position is the aggregated open (or closed) exposure for one
// (symbol, account) pair.
type Position struct {
	ID                PositionID
	Symbol            Symbol
	Account           Account
	Side              Side
	QuantityOpen      decimal.Decimal
	QuantityFilled    decimal.Decimal
	AverageFillPrice  decimal.Decimal
	Brackets          []Bracket
	OpenPnL           decimal.Decimal
	BookedPnL         decimal.Decimal
	OrderIDs          []OrderID
}

// IsFlat reports whether the position has no open quantity remaining.
func (p Position) IsFlat() bool {
	return p.QuantityOpen.IsZero()
}

func (p Position) IsLong() bool  { return p.Side == SideLong }
func (p Position) IsShort() bool { return p.Side == SideShort }

// PositionEventKind discriminates the PositionUpdate events emitted by
// the ledger as fills are applied.
type PositionEventKind int

const (
	PositionOpened PositionEventKind = iota
	PositionIncreased
	PositionReduced
	PositionClosed
)

func (k PositionEventKind) String() string {
	switch k {
	case PositionOpened:
		return "Opened"
	case PositionIncreased:
		return "Increased"
	case PositionReduced:
		return "Reduced"
	case PositionClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// PositionUpdateEvent is the canonical event surfaced to strategies when a
// fill changes a position's state.
type PositionUpdateEvent struct {
	Kind     PositionEventKind
	Position Position
}
