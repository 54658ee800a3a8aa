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

package fixplant

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quickfixgo/quickfix"

	"marketgw/builder"
	"marketgw/constants"
	"marketgw/types"
)

// Subscribe implements session.Plant / subscription.UpstreamController: it
// issues a FIX Market Data Request for the given subscription. The request
// asks for Bid/Offer (269=0,1) entries when the subscription's base data
// type is Quotes and for Trade (269=2) entries otherwise; the registry
// above this plant never issues more than one live request per
// (symbol, resolution, base_data_type) key.
func (p *Plant) Subscribe(sub types.DataSubscription) error {
	reqId := "md_" + strconv.FormatInt(time.Now().UnixNano(), 10)

	p.trades.AddSubscription(sub.Symbol.Name, constants.SubscriptionRequestTypeSubscribe, reqId)
	p.mu.Lock()
	p.reqIDBySub[sub.Key()] = reqId
	p.activeSubs[sub.Key()] = sub
	p.mu.Unlock()

	msg := builder.BuildMarketDataRequest(reqId, sub, constants.SubscriptionRequestTypeSubscribe, "0", p.config.SenderCompId, p.config.TargetCompId)
	if err := quickfix.Send(msg); err != nil {
		p.trades.RemoveSubscriptionByReqId(reqId)
		return fmt.Errorf("send market data request for %s: %w", sub.Symbol.Name, err)
	}
	return nil
}

// Unsubscribe cancels the upstream Market Data Request previously issued for
// sub, if this plant instance still has its reqId on file.
func (p *Plant) Unsubscribe(sub types.DataSubscription) error {
	p.mu.Lock()
	reqId, ok := p.reqIDBySub[sub.Key()]
	delete(p.reqIDBySub, sub.Key())
	delete(p.activeSubs, sub.Key())
	p.mu.Unlock()
	if !ok {
		return nil
	}

	msg := builder.BuildMarketDataRequest(reqId, sub, constants.SubscriptionRequestTypeUnsubscribe, "0", p.config.SenderCompId, p.config.TargetCompId)
	if err := quickfix.Send(msg); err != nil {
		return fmt.Errorf("send unsubscribe for %s: %w", sub.Symbol.Name, err)
	}
	p.trades.RemoveSubscriptionByReqId(reqId)
	return nil
}

// ActiveSubscriptionCount implements session.SubscriptionAware: the
// quickfix.Initiator already retries the TCP/FIX session on its own, but
// the session.Manager's reconnect loop still consults this to decide
// whether a dropped session is worth re-establishing at all.
func (p *Plant) ActiveSubscriptionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reqIDBySub)
}

// SubmitOrder translates an order request into a FIX New Order Single and
// registers the order in Created state with the ledger.
func (p *Plant) SubmitOrder(ctx context.Context, order types.Order) error {
	msg := builder.BuildNewOrderSingle(order, p.config.SenderCompId, p.config.TargetCompId)
	if err := quickfix.Send(msg); err != nil {
		return fmt.Errorf("send new order single for %s: %w", order.OrderID, err)
	}
	p.ledger.CreateOrder(order)
	return nil
}

// CancelOrder sends a FIX Order Cancel Request for a previously submitted
// order.
func (p *Plant) CancelOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide) error {
	clOrdID := fmt.Sprintf("cxl-%s-%d", orderID, time.Now().UnixNano())
	msg := builder.BuildOrderCancelRequest(orderID, symbol, side, clOrdID, p.config.SenderCompId, p.config.TargetCompId)
	if err := quickfix.Send(msg); err != nil {
		return fmt.Errorf("send order cancel request for %s: %w", orderID, err)
	}
	return nil
}

// ReplaceOrder sends a FIX Order Cancel/Replace Request, changing price
// and/or quantity on a working order without losing its place via a
// separate cancel-then-resubmit.
func (p *Plant) ReplaceOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide, price, quantity string) error {
	clOrdID := fmt.Sprintf("rpl-%s-%d", orderID, time.Now().UnixNano())
	msg := builder.BuildOrderCancelReplaceRequest(orderID, symbol, side, clOrdID, price, quantity, p.config.SenderCompId, p.config.TargetCompId)
	if err := quickfix.Send(msg); err != nil {
		return fmt.Errorf("send order cancel/replace for %s: %w", orderID, err)
	}
	return nil
}
