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
	"context"
	"fmt"

	"marketgw/types"
)

const (
	subscribeOp   = "subscribe"
	unsubscribeOp = "unsubscribe"
)

type subscribeMsg struct {
	Op      string `json:"op"`
	Channel string `json:"channel"`
	Symbol  string `json:"symbol"`
}

func channelFor(dt types.BaseDataType) string {
	if dt == types.DataQuote {
		return "quotes"
	}
	return "trades"
}

func (p *Plant) sendSubscribe(sub types.DataSubscription, op string) error {
	return p.writeJSON(subscribeMsg{Op: op, Channel: channelFor(sub.BaseDataType), Symbol: sub.Symbol.Name})
}

// Subscribe implements session.Plant / subscription.UpstreamController: it
// sends a channel-scoped subscribe frame and remembers it so Logon can
// replay every live subscription after a reconnect.
func (p *Plant) Subscribe(sub types.DataSubscription) error {
	key := sub.Key()
	p.subscribedMu.Lock()
	p.subscribed[key] = sub
	p.subscribedMu.Unlock()

	if err := p.sendSubscribe(sub, subscribeOp); err != nil {
		p.subscribedMu.Lock()
		delete(p.subscribed, key)
		p.subscribedMu.Unlock()
		return fmt.Errorf("wsplant subscribe %s: %w", sub.Symbol.Name, err)
	}
	return nil
}

func (p *Plant) Unsubscribe(sub types.DataSubscription) error {
	key := sub.Key()
	p.subscribedMu.Lock()
	delete(p.subscribed, key)
	p.subscribedMu.Unlock()

	if err := p.sendSubscribe(sub, unsubscribeOp); err != nil {
		return fmt.Errorf("wsplant unsubscribe %s: %w", sub.Symbol.Name, err)
	}
	return nil
}

// ActiveSubscriptionCount implements session.SubscriptionAware so the
// session Manager's reconnect loop knows when to stop retrying: once the
// last strategy has unsubscribed from everything this plant carries, a
// dropped stream is not re-established.
func (p *Plant) ActiveSubscriptionCount() int {
	p.subscribedMu.Lock()
	defer p.subscribedMu.Unlock()
	return len(p.subscribed)
}

type orderMsg struct {
	Op       string `json:"op"`
	OrderID  string `json:"order_id"`
	Account  string `json:"account"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Kind     string `json:"kind"`
	Price    string `json:"price,omitempty"`
	Quantity string `json:"quantity,omitempty"`
}

func wsSide(side types.OrderSide) string {
	if side == types.OrderSell {
		return "sell"
	}
	return "buy"
}

func wsKind(kind types.OrderKind) string {
	switch kind {
	case types.OrderLimit:
		return "limit"
	case types.OrderStop:
		return "stop"
	case types.OrderMarketIfTouched:
		return "market_if_touched"
	case types.OrderTrailingStop:
		return "trailing_stop"
	default:
		return "market"
	}
}

// SubmitOrder sends a create-order frame and registers the order with the
// ledger in Created state, same as plants/fixplant.
func (p *Plant) SubmitOrder(ctx context.Context, order types.Order) error {
	msg := orderMsg{
		Op:       "order_create",
		OrderID:  string(order.OrderID),
		Account:  order.Account.AccountID,
		Symbol:   order.Symbol.Name,
		Side:     wsSide(order.Side),
		Kind:     wsKind(order.Kind),
		Price:    order.Price.String(),
		Quantity: order.QuantityOpen.String(),
	}
	if err := p.writeJSON(msg); err != nil {
		return fmt.Errorf("wsplant submit order %s: %w", order.OrderID, err)
	}
	p.ledger.CreateOrder(order)
	return nil
}

// CancelOrder sends a cancel-order frame for a previously submitted order.
func (p *Plant) CancelOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide) error {
	msg := orderMsg{Op: "order_cancel", OrderID: string(orderID), Symbol: symbol.Name, Side: wsSide(side)}
	if err := p.writeJSON(msg); err != nil {
		return fmt.Errorf("wsplant cancel order %s: %w", orderID, err)
	}
	return nil
}

// ReplaceOrder sends a replace-order frame carrying the new price and/or
// quantity for a working order.
func (p *Plant) ReplaceOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide, price, quantity string) error {
	msg := orderMsg{Op: "order_replace", OrderID: string(orderID), Symbol: symbol.Name, Side: wsSide(side), Price: price, Quantity: quantity}
	if err := p.writeJSON(msg); err != nil {
		return fmt.Errorf("wsplant replace order %s: %w", orderID, err)
	}
	return nil
}
