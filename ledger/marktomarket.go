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

package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"marketgw/types"
)

// ApplyQuote updates a held position's open PnL using a quote's mid price,
// called on every inbound quote for a symbol the ledger holds a position
// in.
func (l *Ledger) ApplyQuote(account types.Account, sym types.Symbol, quote types.Quote) {
	mid := quote.Bid.Add(quote.Ask).Div(decimal.NewFromInt(2))
	l.markToMarket(account, sym, mid)
}

// ApplyTick updates open PnL using a trade print's last price.
func (l *Ledger) ApplyTick(account types.Account, sym types.Symbol, tick types.Tick) {
	l.markToMarket(account, sym, tick.Price)
}

// ApplyTimeSlice marks every position touched by a batch of simultaneous
// market updates in one pass, grounded on the original implementation's
// timeslice-driven mark-to-market (rather than one call per symbol).
func (l *Ledger) ApplyTimeSlice(account types.Account, ts types.TimeSlice) {
	for _, d := range ts {
		switch d.Type {
		case types.DataQuote:
			if d.Quote != nil {
				l.ApplyQuote(account, d.Symbol, *d.Quote)
			}
		case types.DataTick:
			if d.Tick != nil {
				l.ApplyTick(account, d.Symbol, *d.Tick)
			}
		}
	}
}

func (l *Ledger) markToMarket(account types.Account, sym types.Symbol, price decimal.Decimal) {
	key := positionKey(account, sym)

	l.mu.Lock()
	pos, ok := l.openPositions[key]
	if !ok {
		l.mu.Unlock()
		return
	}
	direction := decimal.NewFromInt(pos.Side.SignFactor())
	multiplier := l.specFor(pos.Symbol).Multiplier()
	pos.OpenPnL = price.Sub(pos.AverageFillPrice).Mul(pos.QuantityOpen).Mul(direction).Mul(multiplier)
	l.mu.Unlock()
}

// FlattenAllFor issues market orders on every open position for account in
// the opposite side with matching quantity. It returns the fill requests
// the caller (session manager / gateway) must route to the venue; the
// ledger itself does not fire them - orders are this caller's
// responsibility, per the bracket-forwarding rule.
func (l *Ledger) FlattenAllFor(account types.Account) []types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	var orders []types.Order
	for _, pos := range l.openPositions {
		if pos.Account != account || pos.IsFlat() {
			continue
		}
		side := types.OrderSell
		if pos.Side == types.SideShort {
			side = types.OrderBuy
		}
		orders = append(orders, types.Order{
			OrderID:      types.OrderID(fmt.Sprintf("flatten-%s", pos.ID)),
			Account:      account,
			Symbol:       pos.Symbol,
			Side:         side,
			Kind:         types.OrderMarket,
			QuantityOpen: pos.QuantityOpen,
			State:        types.OrderCreated,
			Tag:          "flatten",
		})
	}
	return orders
}

// ReconcileOrder handles a venue order report for an order_id the ledger
// has no record of (typical after a reconnect). It matches best-effort by
// (account, symbol, side, remaining_quantity); the match is accepted only
// if it is unique. On ambiguity or no
// match, it returns false and the caller drops the report with a
// diagnostic.
func (l *Ledger) ReconcileOrder(account types.Account, sym types.Symbol, side types.OrderSide, remainingQty decimal.Decimal) (types.OrderID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var match types.OrderID
	matches := 0
	for id, order := range l.openOrders {
		if order.Account == account && order.Symbol == sym && order.Side == side && order.QuantityOpen.Equal(remainingQty) {
			match = id
			matches++
		}
	}
	if matches != 1 {
		return "", false
	}
	return match, true
}

// Position returns the currently open position for (account, symbol), if
// any.
func (l *Ledger) Position(account types.Account, sym types.Symbol) (types.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.openPositions[positionKey(account, sym)]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// OpenOrders returns a snapshot of all currently tracked open orders.
func (l *Ledger) OpenOrders() []types.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.Order, 0, len(l.openOrders))
	for _, o := range l.openOrders {
		out = append(out, *o)
	}
	return out
}
