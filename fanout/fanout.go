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

// Package fanout is the market-data fan-out layer between the vendor
// plants and the subscription registry. Plants hand it decoded, normalized
// BaseData; it maintains the per-symbol order books, substitutes the
// book's best level (or closeout fallback) into outbound quotes, drives
// ledger mark-to-market for held symbols, and dispatches to the registry's
// broadcasters. It also fronts the registry's upstream controller so quote
// book state is dropped the moment the last quote subscriber goes away.
package fanout

import (
	"sync"

	"github.com/shopspring/decimal"

	"marketgw/ledger"
	"marketgw/subscription"
	"marketgw/types"
)

// Dispatcher routes normalized vendor events. It implements
// subscription.UpstreamController by wrapping the real vendor-facing
// controller, so unsubscribes can clear cached book state on the way
// through.
type Dispatcher struct {
	upstream subscription.UpstreamController
	ledger   *ledger.Ledger

	registry *subscription.Registry

	mu    sync.Mutex
	books map[string]*Book // symbol.Key() -> book
}

func NewDispatcher(upstream subscription.UpstreamController, led *ledger.Ledger) *Dispatcher {
	return &Dispatcher{
		upstream: upstream,
		ledger:   led,
		books:    make(map[string]*Book),
	}
}

// AttachRegistry completes the wiring loop: the registry is constructed
// with this Dispatcher as its upstream controller, then handed back here
// as the dispatch target.
func (d *Dispatcher) AttachRegistry(r *subscription.Registry) {
	d.registry = r
}

// Subscribe forwards to the vendor-facing controller unchanged.
func (d *Dispatcher) Subscribe(sub types.DataSubscription) error {
	return d.upstream.Subscribe(sub)
}

// Unsubscribe forwards to the vendor-facing controller; for quote
// subscriptions it first drops the symbol's cached bid/ask book.
func (d *Dispatcher) Unsubscribe(sub types.DataSubscription) error {
	if sub.BaseDataType == types.DataQuote {
		d.dropBook(sub.Symbol)
	}
	return d.upstream.Unsubscribe(sub)
}

// BookFor returns the live order book for a symbol, creating it on first
// use. Plants feeding per-level depth updates write into this directly.
func (d *Dispatcher) BookFor(sym types.Symbol) *Book {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.books[sym.Key()]
	if !ok {
		b = NewBook()
		d.books[sym.Key()] = b
	}
	return b
}

func (d *Dispatcher) dropBook(sym types.Symbol) {
	d.mu.Lock()
	delete(d.books, sym.Key())
	d.mu.Unlock()
}

// Dispatch takes one normalized record, folds quotes into the symbol's
// book (re-reading the best level so every consumer sees top-of-book even
// when the vendor sent a deeper level), marks held positions to market,
// and forwards to the subscription registry's broadcaster, if one exists.
func (d *Dispatcher) Dispatch(sub types.DataSubscription, data types.BaseData) {
	switch data.Type {
	case types.DataQuote:
		if q := data.Quote; q != nil {
			book := d.BookFor(data.Symbol)
			book.UpdateBid(q.Bid, q.BidSize)
			book.UpdateAsk(q.Ask, q.AskSize)
			if best, ok := book.Best(); ok {
				best.Exchange = q.Exchange
				data.Quote = &best
				if d.ledger != nil {
					mid := best.Bid.Add(best.Ask).Div(decimal.NewFromInt(2))
					d.ledger.MarkSymbol(data.Symbol, mid)
				}
			}
		}
	case types.DataTick:
		if t := data.Tick; t != nil && d.ledger != nil {
			d.ledger.MarkSymbol(data.Symbol, t.Price)
		}
	}

	if d.registry != nil {
		d.registry.Dispatch(sub, data)
	}
}
