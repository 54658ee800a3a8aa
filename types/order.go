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

import "github.com/shopspring/decimal"

type OrderID string

// OrderKind enumerates the order types the ledger and venues understand.
type OrderKind int

const (
	OrderMarket OrderKind = iota
	OrderLimit
	OrderStop
	OrderMarketIfTouched
	OrderTrailingStop
)

// OrderState is the order lifecycle state machine. Transitions are
// monotonic: Created -> Accepted -> (PartiallyFilled)* -> {Filled, Cancelled};
// Rejected is terminal and reachable only from Created.
type OrderState int

const (
	OrderCreated OrderState = iota
	OrderAccepted
	OrderPartiallyFilled
	OrderFilled
	OrderCancelled
	OrderRejected
)

func (s OrderState) String() string {
	switch s {
	case OrderCreated:
		return "Created"
	case OrderAccepted:
		return "Accepted"
	case OrderPartiallyFilled:
		return "PartiallyFilled"
	case OrderFilled:
		return "Filled"
	case OrderCancelled:
		return "Cancelled"
	case OrderRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether no further transitions are valid.
func (s OrderState) IsTerminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderRejected
}

// CanTransitionTo enforces the monotonic order-state machine.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case OrderCreated:
		return next == OrderAccepted || next == OrderRejected
	case OrderAccepted, OrderPartiallyFilled:
		return next == OrderPartiallyFilled || next == OrderFilled || next == OrderCancelled
	default:
		return false
	}
}

type TimeInForce int

const (
	TIFGoodTilCancel TimeInForce = iota
	TIFImmediateOrCancel
	TIFFillOrKill
	TIFGoodTilDate
)

// Order is a single working or historical order tracked by the ledger.
type Order struct {
	OrderID        OrderID
	Account        Account
	Symbol         Symbol
	Side           OrderSide
	Kind           OrderKind
	Price          decimal.Decimal
	QuantityOpen   decimal.Decimal
	QuantityFilled decimal.Decimal
	State          OrderState
	Tag            string
	TimeInForce    TimeInForce
	Brackets       []Bracket
	RejectReason   string
}

// OrderUpdateEvent is the canonical event surfaced to strategies on any
// order state transition.
type OrderUpdateEvent struct {
	Order Order
}

// Fill represents one execution report applied against an order.
type Fill struct {
	OrderID  OrderID
	Account  Account
	Symbol   Symbol
	Side     OrderSide
	Price    decimal.Decimal
	Quantity decimal.Decimal
}
