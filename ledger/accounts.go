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
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"marketgw/gatewayerr"
	"marketgw/types"
)

// defaultAccountPollInterval is the cadence account snapshots are checked
// for changes and pushed to strategies.
const defaultAccountPollInterval = 750 * time.Millisecond

// SetStartingCash records the cash balance an account began the session
// with; CashAvailable in LiveAccountUpdate snapshots is this figure plus
// all PnL booked since.
func (l *Ledger) SetStartingCash(account types.Account, cash decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startingCash[account.Key()] = cash
}

// MarkSymbol updates open PnL on every position held in sym, across all
// accounts, using the latest observed price. The fan-out layer calls this
// on every inbound tick/quote for a held symbol.
func (l *Ledger) MarkSymbol(sym types.Symbol, price decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, pos := range l.openPositions {
		if pos.Symbol != sym {
			continue
		}
		direction := decimal.NewFromInt(pos.Side.SignFactor())
		multiplier := l.specFor(pos.Symbol).Multiplier()
		pos.OpenPnL = price.Sub(pos.AverageFillPrice).Mul(pos.QuantityOpen).Mul(direction).Mul(multiplier)
	}
}

// UpdateBrackets replaces a working order's protective bracket set and
// emits an OrderUpdateEvent carrying the new parameters. The ledger never
// fires brackets itself - the caller forwards them to the venue and the
// ledger reacts to the resulting fills.
func (l *Ledger) UpdateBrackets(orderID types.OrderID, brackets []types.Bracket) error {
	l.mu.Lock()
	order, ok := l.openOrders[orderID]
	if !ok {
		l.mu.Unlock()
		return gatewayerr.ClientError(fmt.Sprintf("unknown order %s", orderID))
	}
	order.Brackets = append([]types.Bracket(nil), brackets...)
	snapshot := *order
	l.mu.Unlock()

	l.emit(types.StrategyEvent{Kind: types.EventOrderUpdate, OrderUpdate: &types.OrderUpdateEvent{Order: snapshot}})
	return nil
}

// AccountSnapshots aggregates every account with current or historical
// positions into LiveAccountUpdate values, sorted by account key for a
// stable emission order.
func (l *Ledger) AccountSnapshots() []types.LiveAccountUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()

	byAccount := make(map[string]*types.LiveAccountUpdate)
	ensure := func(account types.Account) *types.LiveAccountUpdate {
		key := account.Key()
		if snap, ok := byAccount[key]; ok {
			return snap
		}
		snap := &types.LiveAccountUpdate{Account: account}
		if cash, ok := l.startingCash[key]; ok {
			snap.CashAvailable = cash
		}
		byAccount[key] = snap
		return snap
	}

	for _, pos := range l.openPositions {
		snap := ensure(pos.Account)
		snap.OpenPnL = snap.OpenPnL.Add(pos.OpenPnL)
		snap.CashAvailable = snap.CashAvailable.Add(pos.BookedPnL)
	}
	for _, history := range l.closedPositions {
		for _, pos := range history {
			snap := ensure(pos.Account)
			snap.CashAvailable = snap.CashAvailable.Add(pos.BookedPnL)
		}
	}

	keys := make([]string, 0, len(byAccount))
	for k := range byAccount {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.LiveAccountUpdate, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byAccount[k])
	}
	return out
}

// PollAccounts emits a LiveAccountUpdate event whenever an account's
// snapshot changes, checked at interval (750ms by default), until ctx is
// cancelled. Run as one goroutine per ledger.
func (l *Ledger) PollAccounts(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultAccountPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := make(map[string]types.LiveAccountUpdate)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, snap := range l.AccountSnapshots() {
				key := snap.Account.Key()
				prev, seen := last[key]
				if seen && prev.CashAvailable.Equal(snap.CashAvailable) && prev.OpenPnL.Equal(snap.OpenPnL) {
					continue
				}
				last[key] = snap
				update := snap
				l.emit(types.StrategyEvent{Kind: types.EventLiveAccountUpdate, LiveAccount: &update})
			}
		}
	}
}
