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

package gateway

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"marketgw/gatewayerr"
	"marketgw/types"
	"marketgw/wire"
)

// dispatch handles one decoded request on its own goroutine and writes
// exactly one correlated response (plus, for OrderRequest, whatever async
// order/position events the ledger later emits on its own channel).
func (c *connection) dispatch(ctx context.Context, req wire.Request) {
	switch req.Kind {
	case wire.ReqRegister:
		// Side-effect only: no per-connection mode to record beyond
		// accepting the strategy's presence, so there is nothing further
		// to do. No response is defined for Register.

	case wire.ReqHistoricalBaseData:
		c.handleHistorical(req)
	case wire.ReqHistoricalBulk:
		c.handleHistoricalBulk(req)

	case wire.ReqStreamSubscribe:
		c.handleSubscribe(ctx, req)
	case wire.ReqStreamUnsubscribe:
		c.handleUnsubscribe(req)

	case wire.ReqOrderCreate:
		c.handleOrderCreate(ctx, req)
	case wire.ReqOrderCancel:
		c.handleOrderCancel(ctx, req)
	case wire.ReqOrderUpdate:
		c.handleOrderUpdate(ctx, req)
	case wire.ReqOrderCancelAll:
		c.handleOrderCancelAll(ctx, req)

	case wire.ReqSymbolsVendor, wire.ReqSymbolsBroker, wire.ReqResolutions, wire.ReqMarkets, wire.ReqBaseDataTypes:
		c.handleCatalogQuery(req)

	case wire.ReqDecimalAccuracy, wire.ReqTickSize, wire.ReqSymbolInfo, wire.ReqAccountInfo, wire.ReqMarginRequired:
		c.handleVendorInfo(req)

	default:
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest(fmt.Sprintf("unrecognized request kind %d", req.Kind)))
	}
}

// dayWindow returns the inclusive bounds of the UTC day containing t: a
// historical request addresses one day partition at a time.
func dayWindow(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24*time.Hour - time.Nanosecond)
}

func (c *connection) handleHistorical(req wire.Request) {
	at, err := time.Parse(time.RFC3339Nano, req.Time)
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("malformed time: "+err.Error()))
		return
	}
	from, to := dayWindow(at)
	records, err := c.server.Storage.Range(req.Subscription, from, to)
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("historical range query failed", err))
		return
	}
	payload, err := wire.Encode(types.TimeSlice(records))
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("encode historical payload", err))
		return
	}
	c.send(wire.Response{Kind: wire.RespHistoricalBaseData, CallbackID: req.CallbackID, Success: true, Payload: payload, Subscription: req.Subscription})
}

func (c *connection) handleHistoricalBulk(req wire.Request) {
	at, err := time.Parse(time.RFC3339Nano, req.Time)
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("malformed time: "+err.Error()))
		return
	}
	from, to := dayWindow(at)
	slices, err := c.server.Storage.RangeBulk(req.Subscriptions, from, to)
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("historical bulk query failed", err))
		return
	}
	payload, err := wire.Encode(slices)
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("encode historical bulk payload", err))
		return
	}
	c.send(wire.Response{Kind: wire.RespHistoricalBulk, CallbackID: req.CallbackID, Success: true, Payload: payload})
}

// handleSubscribe registers this connection as a receiver for the
// requested subscription and starts a forwarding goroutine that turns
// every inbound BaseData into a pushed EventTimeSlice, until the
// subscription is explicitly dropped or the connection closes.
func (c *connection) handleSubscribe(ctx context.Context, req wire.Request) {
	sub := req.Subscription
	ch, err := c.server.Registry.Subscribe(c.streamID, sub)
	if err != nil {
		c.send(wire.Response{Kind: wire.RespSubscribe, CallbackID: req.CallbackID, Subscription: sub, Success: false, Reason: err.Error()})
		return
	}

	forwardCtx, cancel := context.WithCancel(ctx)
	c.subsMu.Lock()
	if existing, ok := c.subs[sub.Key()]; ok {
		existing.cancel()
	}
	c.subs[sub.Key()] = activeSub{sub: sub, cancel: cancel}
	c.subsMu.Unlock()

	go c.forward(forwardCtx, sub, ch)

	c.send(wire.Response{Kind: wire.RespSubscribe, CallbackID: req.CallbackID, Subscription: sub, Success: true})
}

func (c *connection) forward(ctx context.Context, sub types.DataSubscription, ch <-chan types.BaseData) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				// Upstream dropped this receiver for lagging; surface it
				// as an unsolicited unsubscribe event rather than silence.
				c.send(wire.Response{
					Kind: wire.RespStrategyEvent,
					StrategyEvent: &types.StrategyEvent{
						Kind:         types.EventSubscriptionEvent,
						Subscription: &types.SubscriptionEvent{Subscription: sub, Success: false, Unsubscribed: true, Reason: "receiver lagged, dropped by broadcaster"},
					},
				})
				c.subsMu.Lock()
				if entry, ok := c.subs[sub.Key()]; ok {
					entry.cancel()
					delete(c.subs, sub.Key())
				}
				c.subsMu.Unlock()
				return
			}
			c.send(wire.Response{
				Kind: wire.RespStrategyEvent,
				StrategyEvent: &types.StrategyEvent{
					Kind:      types.EventTimeSlice,
					TimeSlice: types.TimeSlice{data},
				},
			})
		}
	}
}

func (c *connection) handleUnsubscribe(req wire.Request) {
	sub := req.Subscription
	err := c.server.Registry.Unsubscribe(c.streamID, sub)

	c.subsMu.Lock()
	if entry, ok := c.subs[sub.Key()]; ok {
		entry.cancel()
		delete(c.subs, sub.Key())
	}
	c.subsMu.Unlock()

	if err != nil {
		c.send(wire.Response{Kind: wire.RespUnsubscribe, CallbackID: req.CallbackID, Subscription: sub, Success: false, Reason: err.Error()})
		return
	}
	c.send(wire.Response{Kind: wire.RespUnsubscribe, CallbackID: req.CallbackID, Subscription: sub, Success: true})
}

func (c *connection) handleOrderCreate(ctx context.Context, req wire.Request) {
	body := req.Order
	if body == nil {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("order create request missing order body"))
		return
	}
	if c.server.Orders == nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("no order router configured", nil))
		return
	}

	price, err := decimal.NewFromString(body.Price)
	if err != nil && body.Price != "" {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("malformed price: "+err.Error()))
		return
	}
	qty, err := decimal.NewFromString(body.Quantity)
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("malformed quantity: "+err.Error()))
		return
	}

	order := types.Order{
		OrderID:      body.OrderID,
		Account:      body.Account,
		Symbol:       body.Symbol,
		Side:         body.Side,
		Kind:         body.Kind,
		Price:        price,
		QuantityOpen: qty,
		State:        types.OrderCreated,
		Tag:          body.Tag,
		Brackets:     body.Brackets,
	}

	if err := c.server.Orders.SubmitOrder(ctx, order); err != nil {
		_ = c.server.Ledger.OrderRejected(order.OrderID, err.Error())
		c.sendError(req.CallbackID, gatewayerr.ClientError("order submission failed: "+err.Error()))
		return
	}
	c.send(wire.Response{Kind: wire.RespOrderUpdates, CallbackID: req.CallbackID, Success: true})
}

func (c *connection) handleOrderCancel(ctx context.Context, req wire.Request) {
	body := req.Order
	if body == nil {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("order cancel request missing order body"))
		return
	}
	if c.server.Orders == nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("no order router configured", nil))
		return
	}
	if err := c.server.Orders.CancelOrder(ctx, body.OrderID, body.Symbol, body.Side); err != nil {
		c.sendError(req.CallbackID, gatewayerr.ClientError("order cancel failed: "+err.Error()))
		return
	}
	c.send(wire.Response{Kind: wire.RespOrderUpdates, CallbackID: req.CallbackID, Success: true})
}

func (c *connection) handleOrderUpdate(ctx context.Context, req wire.Request) {
	body := req.Order
	if body == nil {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("order update request missing order body"))
		return
	}
	if c.server.Orders == nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("no order router configured", nil))
		return
	}
	if len(body.Brackets) > 0 {
		if err := c.server.Ledger.UpdateBrackets(body.OrderID, body.Brackets); err != nil {
			c.sendError(req.CallbackID, gatewayerr.ClientError("bracket update failed: "+err.Error()))
			return
		}
	}
	if body.Price != "" || body.Quantity != "" {
		if err := c.server.Orders.ReplaceOrder(ctx, body.OrderID, body.Symbol, body.Side, body.Price, body.Quantity); err != nil {
			c.sendError(req.CallbackID, gatewayerr.ClientError("order replace failed: "+err.Error()))
			return
		}
	}
	c.send(wire.Response{Kind: wire.RespOrderUpdates, CallbackID: req.CallbackID, Success: true})
}

func (c *connection) handleOrderCancelAll(ctx context.Context, req wire.Request) {
	if req.Order == nil {
		c.sendError(req.CallbackID, gatewayerr.InvalidRequest("cancel-all request missing account"))
		return
	}
	if c.server.Orders == nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("no order router configured", nil))
		return
	}
	account := req.Order.Account
	for _, order := range c.server.Ledger.FlattenAllFor(account) {
		if err := c.server.Orders.SubmitOrder(ctx, order); err != nil {
			_ = c.server.Ledger.OrderRejected(order.OrderID, err.Error())
		}
	}
	c.send(wire.Response{Kind: wire.RespOrderUpdates, CallbackID: req.CallbackID, Success: true})
}

// handleCatalogQuery answers Symbols/Resolutions/Markets/BaseDataTypes
// requests from the storage engine's on-disk catalog: what the gateway has
// actually recorded is its notion of "available" for these queries, since
// the FIX market-data sessions it fronts carry no security-directory
// message to forward them to.
func (c *connection) handleCatalogQuery(req wire.Request) {
	entries, err := c.server.Storage.Entries()
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("walk storage catalog", err))
		return
	}

	seen := make(map[string]struct{})
	values := make([]string, 0)
	add := func(v string) {
		if _, dup := seen[v]; dup || v == "" {
			return
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}

	for _, entry := range entries {
		switch req.Kind {
		case wire.ReqSymbolsVendor:
			if entry.Vendor == req.Vendor && marketMatches(req.MarketType, entry.MarketType) {
				add(entry.Symbol)
			}
		case wire.ReqSymbolsBroker:
			// The storage tree is keyed by vendor; a broker's tradable set
			// is whatever the gateway has recorded in its market type.
			if marketMatches(req.MarketType, entry.MarketType) {
				add(entry.Symbol)
			}
		case wire.ReqResolutions:
			if entry.Vendor == req.Vendor && marketMatches(req.MarketType, entry.MarketType) {
				add(entry.Resolution.String())
			}
		case wire.ReqMarkets:
			if entry.Vendor == req.Vendor {
				add(entry.MarketType)
			}
		case wire.ReqBaseDataTypes:
			if entry.Vendor == req.Vendor {
				add(entry.DataType.String())
			}
		}
	}
	kind := respCatalogKindFor(req.Kind)
	sort.Strings(values)

	payload, err := wire.Encode(values)
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("encode catalog payload", err))
		return
	}
	c.send(wire.Response{Kind: kind, CallbackID: req.CallbackID, Success: true, Payload: payload})
}

func marketMatches(requested types.MarketType, entryMarket string) bool {
	if requested == types.MarketUnspecified {
		return true
	}
	return requested.String() == entryMarket
}

func respCatalogKindFor(k wire.RequestKind) wire.ResponseKind {
	switch k {
	case wire.ReqSymbolsVendor, wire.ReqSymbolsBroker:
		return wire.RespSymbols
	case wire.ReqResolutions:
		return wire.RespResolutions
	case wire.ReqMarkets:
		return wire.RespMarkets
	default:
		return wire.RespBaseDataTypes
	}
}

// handleVendorInfo answers the static per-symbol/account metadata
// requests via the optionally-configured VendorInfo plant hook.
func (c *connection) handleVendorInfo(req wire.Request) {
	if c.server.VendorInfo == nil {
		c.sendError(req.CallbackID, gatewayerr.ClientError("no vendor metadata source configured for this plant"))
		return
	}

	var (
		payload []byte
		err     error
		kind    = respKindFor(req.Kind)
	)
	switch req.Kind {
	case wire.ReqDecimalAccuracy:
		var accuracy int32
		accuracy, err = c.server.VendorInfo.DecimalAccuracy(req.Vendor, req.SymbolName)
		if err == nil {
			payload, err = wire.Encode(accuracy)
		}
	case wire.ReqTickSize:
		var tick string
		tick, err = c.server.VendorInfo.TickSize(req.Vendor, req.SymbolName)
		if err == nil {
			payload, err = wire.Encode(tick)
		}
	case wire.ReqSymbolInfo:
		var info map[string]string
		info, err = c.server.VendorInfo.SymbolInfo(req.Broker, req.SymbolName)
		if err == nil {
			payload, err = wire.Encode(info)
		}
	case wire.ReqAccountInfo:
		var info map[string]string
		info, err = c.server.VendorInfo.AccountInfo(req.Broker, req.AccountID)
		if err == nil {
			payload, err = wire.Encode(info)
		}
	case wire.ReqMarginRequired:
		var margin string
		margin, err = c.server.VendorInfo.MarginRequired(req.Broker, req.SymbolName, req.Quantity)
		if err == nil {
			payload, err = wire.Encode(margin)
		}
	}
	if err != nil {
		c.sendError(req.CallbackID, gatewayerr.ServerError("vendor info query failed", err))
		return
	}
	c.send(wire.Response{Kind: kind, CallbackID: req.CallbackID, Success: true, Payload: payload})
}

func respKindFor(k wire.RequestKind) wire.ResponseKind {
	switch k {
	case wire.ReqDecimalAccuracy:
		return wire.RespDecimalAccuracy
	case wire.ReqTickSize:
		return wire.RespTickSize
	case wire.ReqSymbolInfo:
		return wire.RespSymbolInfo
	case wire.ReqAccountInfo:
		return wire.RespAccountInfo
	case wire.ReqMarginRequired:
		return wire.RespMarginRequired
	default:
		return wire.RespError
	}
}
