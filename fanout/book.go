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

package fanout

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"marketgw/types"
)

// Level is one entry on the bid or ask side of a Book, ordered by price
// aggressiveness.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Book is the per-symbol bid/ask order book maintained from inbound quote
// updates. A zero-size update deletes its price level. When the book is
// empty, Best falls back to the closeout prices, if set.
type Book struct {
	mu   sync.Mutex
	bids []Level // descending by price
	asks []Level // ascending by price

	closeoutBid decimal.Decimal
	closeoutAsk decimal.Decimal
	hasCloseout bool
}

func NewBook() *Book {
	return &Book{}
}

// UpdateBid inserts, replaces, or (for zero size) deletes the bid level at
// price.
func (b *Book) UpdateBid(price, size decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bids = updateLevel(b.bids, price, size)
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price.GreaterThan(b.bids[j].Price) })
}

// UpdateAsk inserts, replaces, or (for zero size) deletes the ask level at
// price.
func (b *Book) UpdateAsk(price, size decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.asks = updateLevel(b.asks, price, size)
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price.LessThan(b.asks[j].Price) })
}

func updateLevel(levels []Level, price, size decimal.Decimal) []Level {
	for i := range levels {
		if levels[i].Price.Equal(price) {
			if size.IsZero() {
				return append(levels[:i], levels[i+1:]...)
			}
			levels[i].Size = size
			return levels
		}
	}
	if size.IsZero() {
		return levels
	}
	return append(levels, Level{Price: price, Size: size})
}

// SetCloseout records the prices used as a fallback quote when the book
// has no levels (venues publish these as settlement/closeout marks).
func (b *Book) SetCloseout(bid, ask decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeoutBid = bid
	b.closeoutAsk = ask
	b.hasCloseout = true
}

// Best extracts the top of the book as a Quote. With no bid or ask levels
// it falls back to the closeout prices; with neither, it reports false.
func (b *Book) Best() (types.Quote, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.bids) > 0 && len(b.asks) > 0 {
		return types.Quote{
			Bid:     b.bids[0].Price,
			BidSize: b.bids[0].Size,
			Ask:     b.asks[0].Price,
			AskSize: b.asks[0].Size,
		}, true
	}
	if b.hasCloseout {
		return types.Quote{Bid: b.closeoutBid, Ask: b.closeoutAsk}, true
	}
	return types.Quote{}, false
}

// Depth reports the number of levels on each side, used by diagnostics.
func (b *Book) Depth() (bids, asks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.bids), len(b.asks)
}
