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

package wsplant

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"marketgw/fanout"
	"marketgw/types"
)

// envelope is peeked at first to route the full payload to its typed
// decoder, the same two-pass approach the FIX plant's parser uses for
// raw-string MDEntry scanning.
type envelope struct {
	EventType string `json:"event_type"`
}

type tradeEvent struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Exchange  string `json:"exchange"`
	Timestamp string `json:"timestamp"`
}

type quoteEvent struct {
	Symbol    string `json:"symbol"`
	BidPrice  string `json:"bid_price"`
	BidSize   string `json:"bid_size"`
	AskPrice  string `json:"ask_price"`
	AskSize   string `json:"ask_size"`
	Exchange  string `json:"exchange"`
	Timestamp string `json:"timestamp"`
}

type orderAckEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"` // accepted | rejected | cancelled | filled | partially_filled
	Reason  string `json:"reason"`
}

type fillEvent struct {
	OrderID  string `json:"order_id"`
	Account  string `json:"account"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// dispatch routes one inbound frame by its event_type discriminant,
// normalizes it to types.BaseData or a ledger call, and persists/forwards
// it exactly like plants/fixplant's handleMarketDataMessage and
// handleExecutionReport do for FIX traffic.
func (p *Plant) dispatch(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Debug().Str("vendor", p.Name()).Msg("ignoring non-json wsplant frame")
		return
	}

	switch env.EventType {
	case "trade":
		p.handleTrade(data)
	case "quote":
		p.handleQuote(data)
	case "order_ack":
		p.handleOrderAck(data)
	case "fill":
		p.handleFill(data)
	case "info_response":
		p.handleInfoResponse(data)
	default:
		log.Debug().Str("eventType", env.EventType).Msg("unhandled wsplant event")
	}
}

func (p *Plant) handleTrade(data []byte) {
	var ev tradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Msg("unmarshal wsplant trade event")
		return
	}
	price, ok1 := fanout.ParsePrice(ev.Price)
	size, ok2 := fanout.ParsePrice(ev.Size)
	exchange, ok3 := fanout.ParseExchange(ev.Exchange)
	if !ok1 || !ok2 || !ok3 {
		log.Warn().Str("symbol", ev.Symbol).Msg("dropping unrepresentable wsplant trade event")
		return
	}
	ts := parseTimestamp(ev.Timestamp)

	sym := types.Symbol{Name: ev.Symbol, Vendor: p.config.Vendor, MarketType: p.config.MarketType}
	record := types.BaseData{
		Type:   types.DataTick,
		Symbol: sym,
		Time:   ts,
		Tick:   &types.Tick{Price: price, Volume: size, Exchange: exchange.String()},
	}
	p.persistAndDispatch(sym, types.DataTick, record)
}

func (p *Plant) handleQuote(data []byte) {
	var ev quoteEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Msg("unmarshal wsplant quote event")
		return
	}
	bidPrice, ok1 := fanout.ParsePrice(ev.BidPrice)
	bidSize, ok2 := fanout.ParsePrice(ev.BidSize)
	askPrice, ok3 := fanout.ParsePrice(ev.AskPrice)
	askSize, ok4 := fanout.ParsePrice(ev.AskSize)
	exchange, ok5 := fanout.ParseExchange(ev.Exchange)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		log.Warn().Str("symbol", ev.Symbol).Msg("dropping unrepresentable wsplant quote event")
		return
	}
	ts := parseTimestamp(ev.Timestamp)

	sym := types.Symbol{Name: ev.Symbol, Vendor: p.config.Vendor, MarketType: p.config.MarketType}
	record := types.BaseData{
		Type:   types.DataQuote,
		Symbol: sym,
		Time:   ts,
		Quote:  &types.Quote{Bid: bidPrice, BidSize: bidSize, Ask: askPrice, AskSize: askSize, Exchange: exchange.String()},
	}
	p.persistAndDispatch(sym, types.DataQuote, record)
}

func (p *Plant) persistAndDispatch(sym types.Symbol, dt types.BaseDataType, record types.BaseData) {
	sub := types.DataSubscription{Symbol: sym, Resolution: types.Resolution{Kind: types.ResInstant}, BaseDataType: dt}
	if err := p.store.Save(sub, record); err != nil {
		log.Error().Err(err).Str("symbol", sym.Name).Msg("failed to persist wsplant market data")
	}
	if p.dispatcher != nil {
		p.dispatcher.Dispatch(sub, record)
	}
}

func (p *Plant) handleOrderAck(data []byte) {
	var ev orderAckEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Msg("unmarshal wsplant order ack")
		return
	}
	orderID := types.OrderID(ev.OrderID)
	switch ev.Status {
	case "accepted":
		_ = p.ledger.TransitionOrder(orderID, types.OrderAccepted, "")
	case "rejected":
		_ = p.ledger.OrderRejected(orderID, ev.Reason)
	case "cancelled":
		_ = p.ledger.TransitionOrder(orderID, types.OrderCancelled, "")
	case "filled":
		_ = p.ledger.TransitionOrder(orderID, types.OrderFilled, "")
	case "partially_filled":
		_ = p.ledger.TransitionOrder(orderID, types.OrderPartiallyFilled, "")
	default:
		log.Debug().Str("status", ev.Status).Str("orderId", ev.OrderID).Msg("unhandled wsplant order ack status")
	}
}

func (p *Plant) handleFill(data []byte) {
	var ev fillEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Msg("unmarshal wsplant fill")
		return
	}
	price, err1 := decimal.NewFromString(ev.Price)
	qty, err2 := decimal.NewFromString(ev.Quantity)
	if err1 != nil || err2 != nil || !qty.IsPositive() {
		log.Warn().Str("orderId", ev.OrderID).Msg("malformed wsplant fill event")
		return
	}

	side := types.OrderBuy
	if ev.Side == "sell" {
		side = types.OrderSell
	}
	fill := types.Fill{
		OrderID:  types.OrderID(ev.OrderID),
		Account:  types.Account{Broker: p.config.Broker, AccountID: ev.Account},
		Symbol:   types.Symbol{Name: ev.Symbol, Vendor: p.config.Vendor, MarketType: p.config.MarketType},
		Side:     side,
		Price:    price,
		Quantity: qty,
	}
	if err := p.ledger.ApplyFill(fill, time.Now()); err != nil {
		log.Error().Err(err).Str("orderId", ev.OrderID).Msg("failed to apply wsplant fill")
	}
}

// handleInfoResponse routes a correlated metadata response back to the
// caller blocked in queryInfo via the session manager's callback slot.
// Responses whose slot has already been garbage-collected (query timed
// out) are dropped.
func (p *Plant) handleInfoResponse(data []byte) {
	var ev infoResponse
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Error().Err(err).Msg("unmarshal wsplant info response")
		return
	}
	if p.session == nil {
		return
	}
	if !p.session.Deliver(ev.RequestID, ev.Fields) {
		log.Debug().Uint64("requestId", ev.RequestID).Msg("info response with no pending slot")
	}
}

func parseTimestamp(s string) time.Time {
	if t, ok := fanout.ParseTimestamp(s); ok {
		return t
	}
	return time.Now().UTC()
}
