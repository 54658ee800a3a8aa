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

// Parsing strategy: raw string scanning of the FIX MDEntries repeating group
// instead of quickfix.Message.GetGroup(), which allocates a field map per
// entry. The message is converted to its wire string once; entry boundaries
// are found by scanning for "269=" (MdEntryType); each segment is then
// walked in a single pass extracting the six tags this gateway cares about.
package fixplant

import (
	"strconv"
	"strings"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"

	"marketgw/constants"
	"marketgw/types"
	"marketgw/utils"
)

// extractTrades parses every MDEntry out of a Market Data Snapshot/Incremental
// message into the venue-side Trade shape.
func extractTrades(msg *quickfix.Message, symbol, mdReqId string, isSnapshot bool, seqNum string) []Trade {
	rawMsg := msg.String()

	noMdEntriesStr := utils.GetString(msg, constants.TagNoMdEntries)
	if noMdEntriesStr == "" || noMdEntriesStr == "0" {
		return nil
	}

	entryStarts := findEntryBoundaries(rawMsg)
	if len(entryStarts) == 0 {
		return nil
	}

	trades := make([]Trade, 0, len(entryStarts))
	now := time.Now()
	msgLen := len(rawMsg)

	for i, startPos := range entryStarts {
		endPos := msgLen
		if i < len(entryStarts)-1 {
			endPos = entryStarts[i+1]
		}
		segment := rawMsg[startPos:endPos]
		trades = append(trades, parseTradeFromSegment(segment, symbol, mdReqId, isSnapshot, seqNum, i, now))
	}
	return trades
}

func findEntryBoundaries(rawMsg string) []int {
	count := strings.Count(rawMsg, "269=")
	if count == 0 {
		return nil
	}
	entryStarts := make([]int, 0, count)
	searchFrom := 0
	for {
		pos := strings.Index(rawMsg[searchFrom:], "269=")
		if pos == -1 {
			break
		}
		entryStarts = append(entryStarts, searchFrom+pos)
		searchFrom += pos + 4
	}
	return entryStarts
}

// parseTradeFromSegment extracts all six fields of interest in one pass over
// the segment instead of calling a single-tag extractor six times.
func parseTradeFromSegment(segment, symbol, mdReqId string, isSnapshot bool, seqNum string, entryIndex int, timestamp time.Time) Trade {
	trade := Trade{
		Timestamp:  timestamp,
		Symbol:     symbol,
		MdReqId:    mdReqId,
		IsSnapshot: isSnapshot,
		IsUpdate:   !isSnapshot,
		SeqNum:     seqNum,
	}

	pos := 0
	segLen := len(segment)
	for pos < segLen {
		eqPos := strings.IndexByte(segment[pos:], '=')
		if eqPos == -1 {
			break
		}
		eqPos += pos
		tag := segment[pos:eqPos]

		valueStart := eqPos + 1
		sohPos := strings.IndexByte(segment[valueStart:], '\x01')
		var value string
		var nextPos int
		if sohPos == -1 {
			value = segment[valueStart:]
			nextPos = segLen
		} else {
			value = segment[valueStart : valueStart+sohPos]
			nextPos = valueStart + sohPos + 1
		}

		switch tag {
		case "269":
			trade.EntryType = value
		case "270":
			trade.Price = value
		case "271":
			trade.Size = value
		case "273":
			trade.Time = value
		case "290":
			trade.Position = value
		case "2446":
			trade.Aggressor = aggressorSideDesc(value)
		}
		pos = nextPos
	}

	if trade.Position == "" && (trade.EntryType == "0" || trade.EntryType == "1") {
		trade.Position = strconv.Itoa(entryIndex + 1)
	}
	return trade
}

func aggressorSideDesc(side string) string {
	switch side {
	case "1":
		return "buy"
	case "2":
		return "sell"
	default:
		return ""
	}
}

// toBaseData bridges the raw FIX MDEntry shape into the canonical
// types.BaseData union the storage engine and subscription registry
// operate on. Unparseable numeric fields drop the entry rather than
// panicking - a single malformed tag must not take down the feed.
func toBaseData(t Trade, sym types.Symbol) (types.BaseData, bool) {
	ts, err := time.Parse("20060102-15:04:05.000", t.Time)
	if err != nil {
		ts = t.Timestamp
	}

	switch t.EntryType {
	case "2": // Trade
		price, err1 := decimal.NewFromString(t.Price)
		size, err2 := decimal.NewFromString(t.Size)
		if err1 != nil || err2 != nil {
			return types.BaseData{}, false
		}
		return types.BaseData{
			Type:   types.DataTick,
			Symbol: sym,
			Time:   ts,
			Tick:   &types.Tick{Price: price, Volume: size, Side: t.Aggressor},
		}, true
	case "0", "1": // Bid/Offer - folded into a Quote by the caller, which
		// pairs consecutive Bid/Offer entries sharing a position.
		return types.BaseData{}, false
	default:
		return types.BaseData{}, false
	}
}

// tradesToBaseData normalizes a batch of raw MDEntries into BaseData
// records: Trade entries become Ticks directly; Bid/Offer entries sharing a
// book position are paired into a single Quote.
func tradesToBaseData(trades []Trade, sym types.Symbol) []types.BaseData {
	var out []types.BaseData
	bids := make(map[string]Trade)
	offers := make(map[string]Trade)

	for _, t := range trades {
		switch t.EntryType {
		case "2":
			if bd, ok := toBaseData(t, sym); ok {
				out = append(out, bd)
			}
		case "0":
			bids[t.Position] = t
		case "1":
			offers[t.Position] = t
		}
	}

	for pos, bid := range bids {
		offer, ok := offers[pos]
		if !ok {
			continue
		}
		bidPx, err1 := decimal.NewFromString(bid.Price)
		bidSz, err2 := decimal.NewFromString(bid.Size)
		askPx, err3 := decimal.NewFromString(offer.Price)
		askSz, err4 := decimal.NewFromString(offer.Size)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			continue
		}
		ts, err := time.Parse("20060102-15:04:05.000", bid.Time)
		if err != nil {
			ts = bid.Timestamp
		}
		out = append(out, types.BaseData{
			Type:   types.DataQuote,
			Symbol: sym,
			Time:   ts,
			Quote:  &types.Quote{Bid: bidPx, BidSize: bidSz, Ask: askPx, AskSize: askSz},
		})
	}
	return out
}
