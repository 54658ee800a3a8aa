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
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange is the closed set of exchange codes the gateway recognizes.
// Vendor events carrying a code outside this set are dropped rather than
// forwarded with an unvetted string.
type Exchange int

const (
	ExchangeUnspecified Exchange = iota
	ExchangeCME
	ExchangeCBOT
	ExchangeNYMEX
	ExchangeCOMEX
	ExchangeICE
	ExchangeEUREX
	ExchangeNASDAQ
	ExchangeNYSE
)

func (e Exchange) String() string {
	switch e {
	case ExchangeCME:
		return "CME"
	case ExchangeCBOT:
		return "CBOT"
	case ExchangeNYMEX:
		return "NYMEX"
	case ExchangeCOMEX:
		return "COMEX"
	case ExchangeICE:
		return "ICE"
	case ExchangeEUREX:
		return "EUREX"
	case ExchangeNASDAQ:
		return "NASDAQ"
	case ExchangeNYSE:
		return "NYSE"
	default:
		return ""
	}
}

// ParseExchange maps a vendor exchange code onto the closed enum. An empty
// code is accepted as ExchangeUnspecified (spot venues have no exchange
// concept); an unknown non-empty code returns false and the caller drops
// the event.
func ParseExchange(code string) (Exchange, bool) {
	switch code {
	case "":
		return ExchangeUnspecified, true
	case "CME", "XCME", "GLBX":
		return ExchangeCME, true
	case "CBOT", "XCBT":
		return ExchangeCBOT, true
	case "NYMEX", "XNYM":
		return ExchangeNYMEX, true
	case "COMEX", "XCEC":
		return ExchangeCOMEX, true
	case "ICE", "IFUS", "IFEU":
		return ExchangeICE, true
	case "EUREX", "XEUR":
		return ExchangeEUREX, true
	case "NASDAQ", "XNAS":
		return ExchangeNASDAQ, true
	case "NYSE", "XNYS":
		return ExchangeNYSE, true
	default:
		return ExchangeUnspecified, false
	}
}

// ParseTimestamp accepts either an RFC3339 timestamp or Unix seconds with
// an optional fractional part ("1727740800.123456"), normalized to UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// ParsePrice converts a vendor price string to fixed-precision decimal.
// Inputs not representable as decimal return false and the caller drops
// the event.
func ParsePrice(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
