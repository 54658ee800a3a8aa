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

// StrategyEventKind discriminates the StrategyEvent union ultimately
// surfaced to a connected strategy over the wire.
type StrategyEventKind int

const (
	EventTimeSlice StrategyEventKind = iota
	EventOrderUpdate
	EventPositionUpdate
	EventSubscriptionEvent
	EventWarmUpComplete
	EventShutdown
	EventIndicatorEvent
	EventTimedEvent
	EventLiveAccountUpdate
)

// StrategyEvent is the tagged union of everything the gateway can push to
// a strategy connection outside of direct request/response correlation.
type StrategyEvent struct {
	Kind StrategyEventKind

	TimeSlice       TimeSlice
	OrderUpdate     *OrderUpdateEvent
	PositionUpdate  *PositionUpdateEvent
	Subscription    *SubscriptionEvent
	LiveAccount     *LiveAccountUpdate
	Reason          string
}

// SubscriptionEvent reports the outcome of a subscribe/unsubscribe request.
type SubscriptionEvent struct {
	Subscription DataSubscription
	Success      bool
	Reason       string
	Unsubscribed bool
}

// LiveAccountUpdate carries the cash-available / open-PnL fields derived
// from mark-to-market, driven by the ledger's ApplyTimeSlice/quote updates.
type LiveAccountUpdate struct {
	Account       Account
	CashAvailable decimal.Decimal
	OpenPnL       decimal.Decimal
}
