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

// Package ledger maintains per-account positions and working orders,
// translating venue fills into the canonical position/order update events
// a strategy observes. The flatten-and-reverse fill handling is grounded on
// the position handler this gateway's ledger design descends from; the
// CRUD/locking shape follows the FIX client's order store. Positions and
// orders live in flat maps keyed by composite (broker, account, symbol)
// strings, all guarded by one mutex, so mutations of different accounts
// are serialized on that mutex rather than proceeding in parallel.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketgw/gatewayerr"
	"marketgw/types"
)

// Ledger is the order & position ledger of the component design.
type Ledger struct {
	mu sync.Mutex

	openPositions   map[string]*types.Position   // (broker,account,symbol) -> position
	closedPositions map[string][]types.Position   // (broker,account,symbol) -> history
	openOrders      map[types.OrderID]*types.Order
	positionCounter map[string]uint64
	specs           map[string]types.ContractSpec   // symbol.Key() -> contract spec
	startingCash    map[string]decimal.Decimal      // account.Key() -> session-start cash

	events chan types.StrategyEvent
}

func New() *Ledger {
	return &Ledger{
		openPositions:   make(map[string]*types.Position),
		closedPositions: make(map[string][]types.Position),
		openOrders:      make(map[types.OrderID]*types.Order),
		positionCounter: make(map[string]uint64),
		specs:           make(map[string]types.ContractSpec),
		startingCash:    make(map[string]decimal.Decimal),
		events:          make(chan types.StrategyEvent, 1024),
	}
}

// SetContractSpec registers the tick size/value a symbol's PnL is scaled
// by. Symbols with no registered spec use types.DefaultContractSpec.
func (l *Ledger) SetContractSpec(sym types.Symbol, spec types.ContractSpec) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.specs[sym.Key()] = spec
}

func (l *Ledger) specFor(sym types.Symbol) types.ContractSpec {
	if spec, ok := l.specs[sym.Key()]; ok {
		return spec
	}
	return types.DefaultContractSpec
}

// Events returns the channel of events emitted by the ledger; the Strategy
// Gateway drains it with a single consumer (Server.BroadcastLedgerEvents)
// that fans each event out to every connection.
func (l *Ledger) Events() <-chan types.StrategyEvent {
	return l.events
}

func positionKey(account types.Account, sym types.Symbol) string {
	return fmt.Sprintf("%s|%s", account.Key(), sym.Key())
}

func (l *Ledger) emit(ev types.StrategyEvent) {
	select {
	case l.events <- ev:
	default:
		// Strategy is not draining fast enough; dropping a diagnostic event
		// is preferable to blocking the ledger's fill-handling goroutine.
	}
}

// CreateOrder registers a new order in the Created state.
func (l *Ledger) CreateOrder(order types.Order) {
	order.State = types.OrderCreated
	l.mu.Lock()
	l.openOrders[order.OrderID] = &order
	l.mu.Unlock()
}

// TransitionOrder applies a state transition, enforcing the monotonic
// order state machine, and emits an OrderUpdateEvent on success.
func (l *Ledger) TransitionOrder(orderID types.OrderID, next types.OrderState, rejectReason string) error {
	l.mu.Lock()
	order, ok := l.openOrders[orderID]
	if !ok {
		l.mu.Unlock()
		return gatewayerr.ClientError(fmt.Sprintf("unknown order %s", orderID))
	}
	if !order.State.CanTransitionTo(next) {
		l.mu.Unlock()
		return gatewayerr.ClientError(fmt.Sprintf("invalid transition %s -> %s for order %s", order.State, next, orderID))
	}
	order.State = next
	if next == types.OrderRejected {
		order.RejectReason = rejectReason
	}
	terminal := order.State.IsTerminal()
	snapshot := *order
	if terminal {
		delete(l.openOrders, orderID)
	}
	l.mu.Unlock()

	l.emit(types.StrategyEvent{Kind: types.EventOrderUpdate, OrderUpdate: &types.OrderUpdateEvent{Order: snapshot}})
	return nil
}

// OrderRejected is a convenience wrapper for the Rejected terminal
// transition, reachable only from Created.
func (l *Ledger) OrderRejected(orderID types.OrderID, reason string) error {
	return l.TransitionOrder(orderID, types.OrderRejected, reason)
}

// ApplyFill applies one execution report to the ledger, implementing the
// flatten-and-reverse fill handling from the component design:
//   - no open position -> mint new position, side = fill side
//   - same side -> increase: recompute weighted average, accumulate qty
//   - opposite side -> reduce; excess beyond the residual opens a new
//     position on the fill's side
func (l *Ledger) ApplyFill(fill types.Fill, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := positionKey(fill.Account, fill.Symbol)
	fillSide := fill.Side.ToPositionSide()

	existing, hasPosition := l.openPositions[key]

	if !hasPosition {
		l.openNewPosition(key, fill, fillSide, now)
		return nil
	}

	if existing.Side == fillSide {
		l.increasePosition(existing, fill)
		return nil
	}

	return l.reducePosition(key, existing, fill, now)
}

func (l *Ledger) nextCounter(key string) uint64 {
	l.positionCounter[key]++
	return l.positionCounter[key]
}

func (l *Ledger) openNewPosition(key string, fill types.Fill, side types.Side, now time.Time) {
	counter := l.nextCounter(key)
	pos := &types.Position{
		ID:               types.NewPositionID(fill.Symbol.Name, counter, now.UnixNano(), side),
		Symbol:           fill.Symbol,
		Account:          fill.Account,
		Side:             side,
		QuantityOpen:     fill.Quantity,
		QuantityFilled:   fill.Quantity,
		AverageFillPrice: fill.Price,
		OrderIDs:         []types.OrderID{fill.OrderID},
	}
	// The opening order's protective brackets travel with the position.
	if ord, ok := l.openOrders[fill.OrderID]; ok && len(ord.Brackets) > 0 {
		pos.Brackets = append([]types.Bracket(nil), ord.Brackets...)
	}
	l.openPositions[key] = pos
	l.emit(types.StrategyEvent{Kind: types.EventPositionUpdate, PositionUpdate: &types.PositionUpdateEvent{Kind: types.PositionOpened, Position: *pos}})
}

func (l *Ledger) increasePosition(pos *types.Position, fill types.Fill) {
	totalQty := pos.QuantityOpen.Add(fill.Quantity)
	// Weighted average: (avg*oldQty + price*fillQty) / totalQty.
	weighted := pos.AverageFillPrice.Mul(pos.QuantityOpen).Add(fill.Price.Mul(fill.Quantity))
	if !totalQty.IsZero() {
		pos.AverageFillPrice = weighted.Div(totalQty)
	}
	pos.QuantityOpen = totalQty
	pos.QuantityFilled = pos.QuantityFilled.Add(fill.Quantity)
	pos.OrderIDs = append(pos.OrderIDs, fill.OrderID)
	l.emit(types.StrategyEvent{Kind: types.EventPositionUpdate, PositionUpdate: &types.PositionUpdateEvent{Kind: types.PositionIncreased, Position: *pos}})
}

func (l *Ledger) reducePosition(key string, pos *types.Position, fill types.Fill, now time.Time) error {
	direction := decimal.NewFromInt(pos.Side.SignFactor())
	reduceQty := fill.Quantity
	excess := decimal.Zero
	if reduceQty.GreaterThan(pos.QuantityOpen) {
		excess = reduceQty.Sub(pos.QuantityOpen)
		reduceQty = pos.QuantityOpen
	}

	spec := l.specFor(pos.Symbol)
	realized := fill.Price.Sub(pos.AverageFillPrice).Mul(reduceQty).Mul(direction).Mul(spec.Multiplier())
	pos.BookedPnL = pos.BookedPnL.Add(realized)
	pos.QuantityOpen = pos.QuantityOpen.Sub(reduceQty)
	pos.OrderIDs = append(pos.OrderIDs, fill.OrderID)

	if pos.QuantityOpen.IsZero() {
		closed := *pos
		l.closedPositions[key] = append(l.closedPositions[key], closed)
		delete(l.openPositions, key)
		l.emit(types.StrategyEvent{Kind: types.EventPositionUpdate, PositionUpdate: &types.PositionUpdateEvent{Kind: types.PositionClosed, Position: closed}})
	} else {
		l.emit(types.StrategyEvent{Kind: types.EventPositionUpdate, PositionUpdate: &types.PositionUpdateEvent{Kind: types.PositionReduced, Position: *pos}})
	}

	if excess.GreaterThan(decimal.Zero) {
		newSide := fill.Side.ToPositionSide()
		openFill := fill
		openFill.Quantity = excess
		l.openNewPosition(key, openFill, newSide, now)
	}
	return nil
}
