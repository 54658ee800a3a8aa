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
	"fmt"
	"strconv"
	"strings"
)

// ResolutionKind is the unit a Resolution counts in.
type ResolutionKind int

const (
	ResInstant ResolutionKind = iota
	ResTick
	ResSecond
	ResMinute
	ResHour
	ResDay
	ResWeek
	ResMonth
	ResQuarter
	ResYear
)

func (k ResolutionKind) String() string {
	switch k {
	case ResInstant:
		return "Instant"
	case ResTick:
		return "Tick"
	case ResSecond:
		return "Second"
	case ResMinute:
		return "Minute"
	case ResHour:
		return "Hour"
	case ResDay:
		return "Day"
	case ResWeek:
		return "Week"
	case ResMonth:
		return "Month"
	case ResQuarter:
		return "Quarter"
	case ResYear:
		return "Year"
	default:
		return "Unknown"
	}
}

// Resolution pairs a kind with a count, e.g. Minute(5) or Tick(100).
type Resolution struct {
	Kind  ResolutionKind
	Count int
}

func (r Resolution) String() string {
	if r.Kind == ResInstant {
		return "Instant"
	}
	return fmt.Sprintf("%s%d", r.Kind, r.Count)
}

// ParseResolution parses the String() form back into a Resolution, used
// when walking the on-disk directory layout during catalog/export.
func ParseResolution(s string) (Resolution, error) {
	if s == "Instant" {
		return Resolution{Kind: ResInstant, Count: 1}, nil
	}
	kinds := []ResolutionKind{ResTick, ResSecond, ResMinute, ResHour, ResDay, ResWeek, ResMonth, ResQuarter, ResYear}
	for _, k := range kinds {
		if strings.HasPrefix(s, k.String()) {
			rest := strings.TrimPrefix(s, k.String())
			if rest == "" {
				return Resolution{Kind: k, Count: 1}, nil
			}
			n, err := strconv.Atoi(rest)
			if err != nil {
				return Resolution{}, fmt.Errorf("parse resolution count %q: %w", s, err)
			}
			return Resolution{Kind: k, Count: n}, nil
		}
	}
	return Resolution{}, fmt.Errorf("unrecognized resolution %q", s)
}

// BaseDataType is the tagged-union discriminant of BaseData.
type BaseDataType int

const (
	DataTick BaseDataType = iota
	DataQuote
	DataCandle
	DataQuoteBar
	DataFundamental
)

func (t BaseDataType) String() string {
	switch t {
	case DataTick:
		return "Ticks"
	case DataQuote:
		return "Quotes"
	case DataCandle:
		return "Candles"
	case DataQuoteBar:
		return "QuoteBars"
	case DataFundamental:
		return "Fundamentals"
	default:
		return "Unknown"
	}
}

func ParseBaseDataType(s string) (BaseDataType, error) {
	switch s {
	case "Ticks":
		return DataTick, nil
	case "Quotes":
		return DataQuote, nil
	case "Candles":
		return DataCandle, nil
	case "QuoteBars":
		return DataQuoteBar, nil
	case "Fundamentals":
		return DataFundamental, nil
	default:
		return 0, fmt.Errorf("unrecognized base data type %q", s)
	}
}

// DataSubscription is the (symbol, resolution, base_data_type) key that
// identifies one live or historical data stream.
type DataSubscription struct {
	Symbol       Symbol
	Resolution   Resolution
	BaseDataType BaseDataType
}

func (d DataSubscription) Key() string {
	return fmt.Sprintf("%s|%s|%s", d.Symbol.Key(), d.Resolution, d.BaseDataType)
}
