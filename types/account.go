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

// Account identifies the (broker, account_id) pair that keys ledger state.
type Account struct {
	Broker    string
	AccountID string
}

func (a Account) Key() string {
	return fmt.Sprintf("%s|%s", a.Broker, a.AccountID)
}

// Side is the directional sign of a position or order.
type Side int

const (
	SideUnspecified Side = iota
	SideLong
	SideShort
)

func (s Side) String() string {
	if s == SideLong {
		return "Long"
	}
	if s == SideShort {
		return "Short"
	}
	return "Unspecified"
}

// Opposite returns the flattening side.
func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideUnspecified
	}
}

// SignFactor returns +1 for Long and -1 for Short, used in PnL arithmetic.
func (s Side) SignFactor() int64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// OrderSide is Buy/Sell as used on the wire and by brokers; distinct from
// Side (Long/Short) because a Sell can either open a short or reduce/close
// a long, which only the ledger's fill-handling logic resolves.
type OrderSide int

const (
	OrderSideUnspecified OrderSide = iota
	OrderBuy
	OrderSell
)

func (s OrderSide) String() string {
	if s == OrderBuy {
		return "Buy"
	}
	if s == OrderSell {
		return "Sell"
	}
	return "Unspecified"
}

// ToPositionSide maps an order side to the position side it would open.
func (s OrderSide) ToPositionSide() Side {
	if s == OrderBuy {
		return SideLong
	}
	return SideShort
}

// BracketKind enumerates the protective child order types a Position or
// Order may carry.
type BracketKind int

const (
	BracketStopLoss BracketKind = iota
	BracketTakeProfit
	BracketTrailingStop
	BracketGuaranteedStopLoss
)

// Bracket is a protective order attached to a parent order or position.
type Bracket struct {
	Kind        BracketKind
	TriggerPrice decimal.Decimal
	TrailAmount  decimal.Decimal
}
