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
	"time"

	"github.com/shopspring/decimal"
)

// BaseData is a tagged union of the five market data shapes the gateway
// moves around. Exactly one of the Tick/Quote/Candle/QuoteBar/Fundamental
// fields is meaningful, selected by Type.
type BaseData struct {
	Type   BaseDataType
	Symbol Symbol
	Time   time.Time

	Tick        *Tick
	Quote       *Quote
	Candle      *Candle
	QuoteBar    *QuoteBar
	Fundamental *Fundamental
}

// Tick is a single trade print.
type Tick struct {
	Price    decimal.Decimal
	Volume   decimal.Decimal
	Exchange string
	Side     string
}

// Quote is a top-of-book bid/ask snapshot.
type Quote struct {
	Bid      decimal.Decimal
	BidSize  decimal.Decimal
	Ask      decimal.Decimal
	AskSize  decimal.Decimal
	Exchange string
}

// Candle is an OHLCV bar. Only bars with IsClosed == true are persisted.
type Candle struct {
	Open, High, Low, Close decimal.Decimal
	Volume                 decimal.Decimal
	AskVolume, BidVolume   decimal.Decimal
	Range                  decimal.Decimal
	IsClosed               bool
}

// QuoteBar is an OHLC bar computed over bid/ask instead of trade prices.
type QuoteBar struct {
	BidOpen, BidHigh, BidLow, BidClose decimal.Decimal
	AskOpen, AskHigh, AskLow, AskClose decimal.Decimal
	Volume                             decimal.Decimal
	IsClosed                           bool
}

// Fundamental is a single named fundamental data point (e.g. open interest).
type Fundamental struct {
	Name  string
	Value decimal.Decimal
}

// IsClosed reports whether this record represents data whose time window
// has fully elapsed and is therefore eligible for persistence. Ticks,
// quotes and fundamentals are always "closed" (they are point-in-time);
// candles and quote bars carry their own flag.
func (b BaseData) IsClosed() bool {
	switch b.Type {
	case DataCandle:
		return b.Candle != nil && b.Candle.IsClosed
	case DataQuoteBar:
		return b.QuoteBar != nil && b.QuoteBar.IsClosed
	default:
		return true
	}
}

// TimeClosedUTC is the key used for storage-engine deduplication and
// ordering: the record's timestamp, normalized to UTC.
func (b BaseData) TimeClosedUTC() time.Time {
	return b.Time.UTC()
}

// TimeSlice groups BaseData records that arrived in the same upstream
// batch, keyed by nanosecond timestamp by the caller (see storage.RangeBulk
// and ledger.ApplyTimeSlice).
type TimeSlice []BaseData
