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

// Package fixplant implements a session.Plant against the Coinbase Prime FIX
// market-data and order-entry sessions via quickfixgo/quickfix.
//
// TradeStore holds the most recent raw FIX market-data entries in a
// pre-allocated ring buffer: fixed memory footprint, O(1) insertion, zero
// allocations on eviction.
package fixplant

import (
	"sync"
	"time"
)

// Trade is a single FIX MDEntry, still tag-shaped (string fields) - the
// venue-side view before toBaseData normalizes it into
// types.BaseData for the storage engine and subscription registry.
type Trade struct {
	Timestamp  time.Time
	Symbol     string
	Price      string
	Size       string
	Time       string
	Aggressor  string
	MdReqId    string
	EntryType  string // MdEntryType: 0=Bid 1=Offer 2=Trade 4=Open 5=Close 7=High 8=Low B=Volume
	Position   string
	SeqNum     string
	IsSnapshot bool
	IsUpdate   bool
}

// Subscription tracks an active upstream market-data request.
type Subscription struct {
	LastUpdate       time.Time
	TotalUpdates     int64
	Symbol           string
	SubscriptionType string
	MdReqId          string
	Active           bool
	SnapshotReceived bool
}

// TradeStore is the ring-buffer venue-side cache of recent MDEntries, kept
// per plant instance for diagnostics and for seeding snapshot replies.
type TradeStore struct {
	mu            sync.RWMutex
	trades        []Trade
	head          int
	count         int
	subscriptions map[string]*Subscription
	updateCount   int64
	maxSize       int
}

func NewTradeStore(maxSize int) *TradeStore {
	return &TradeStore{
		trades:        make([]Trade, maxSize),
		subscriptions: make(map[string]*Subscription),
		maxSize:       maxSize,
	}
}

func (ts *TradeStore) AddTrades(symbol string, trades []Trade, isSnapshot bool, mdReqId string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if sub, exists := ts.subscriptions[mdReqId]; exists {
		sub.LastUpdate = time.Now()
		sub.TotalUpdates += int64(len(trades))
		if isSnapshot {
			sub.SnapshotReceived = true
		}
	}

	now := time.Now()
	for _, trade := range trades {
		trade.Timestamp = now
		trade.Symbol = symbol
		trade.MdReqId = mdReqId
		trade.IsSnapshot = isSnapshot
		trade.IsUpdate = !isSnapshot

		writeIdx := (ts.head + ts.count) % ts.maxSize
		ts.trades[writeIdx] = trade
		if ts.count < ts.maxSize {
			ts.count++
		} else {
			ts.head = (ts.head + 1) % ts.maxSize
		}
		ts.updateCount++
	}
}

// GetRecentTrades returns the most recent matching trades, oldest first.
// Two-pass: count matches, then fill a single pre-sized slice, to avoid the
// O(n^2) cost of repeated prepend.
func (ts *TradeStore) GetRecentTrades(symbol string, limit int) []Trade {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	if ts.count == 0 {
		return nil
	}

	matchCount := 0
	for i := 0; i < ts.count && matchCount < limit; i++ {
		idx := (ts.head + ts.count - 1 - i) % ts.maxSize
		if ts.trades[idx].Symbol == symbol {
			matchCount++
		}
	}
	if matchCount == 0 {
		return nil
	}

	recent := make([]Trade, matchCount)
	resultIdx := matchCount - 1
	for i := 0; i < ts.count && resultIdx >= 0; i++ {
		idx := (ts.head + ts.count - 1 - i) % ts.maxSize
		if ts.trades[idx].Symbol == symbol {
			recent[resultIdx] = ts.trades[idx]
			resultIdx--
		}
	}
	return recent
}

func (ts *TradeStore) AddSubscription(symbol, subscriptionType, mdReqId string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.subscriptions[mdReqId] = &Subscription{
		Symbol:           symbol,
		SubscriptionType: subscriptionType,
		MdReqId:          mdReqId,
		Active:           true,
		LastUpdate:       time.Now(),
	}
}

func (ts *TradeStore) RemoveSubscriptionByReqId(reqId string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	delete(ts.subscriptions, reqId)
}

// RecentTradesForRequest returns the most recent cached trades for the
// symbol a given market-data request id was issued for, oldest first. Used
// to attach recent-activity context to a market data reject, since the
// reject itself carries no trade data.
func (ts *TradeStore) RecentTradesForRequest(mdReqId string, limit int) []Trade {
	ts.mu.RLock()
	sub, ok := ts.subscriptions[mdReqId]
	ts.mu.RUnlock()
	if !ok {
		return nil
	}
	return ts.GetRecentTrades(sub.Symbol, limit)
}

func (ts *TradeStore) GetSubscriptionStatus() map[string]*Subscription {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	result := make(map[string]*Subscription, len(ts.subscriptions))
	for reqId, v := range ts.subscriptions {
		sub := *v
		result[reqId] = &sub
	}
	return result
}
