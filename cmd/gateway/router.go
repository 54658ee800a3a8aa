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

package main

import (
	"context"
	"fmt"

	"marketgw/types"
)

// vendorPlant is the subset of a constructed fixplant/wsplant Plant the
// router needs: upstream subscribe/unsubscribe plus order routing. Both
// vendor packages' *Plant types satisfy it.
type vendorPlant interface {
	Subscribe(sub types.DataSubscription) error
	Unsubscribe(sub types.DataSubscription) error
	SubmitOrder(ctx context.Context, order types.Order) error
	CancelOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide) error
	ReplaceOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide, price, quantity string) error
}

// vendorRouter dispatches subscription and order-routing calls to the
// plant registered for a symbol's vendor, letting one Strategy Gateway
// process multiplex several upstream plants behind a single subscription
// registry, per the session manager's "plant/endpoint multiplexing"
// responsibility.
type vendorRouter struct {
	plants  map[types.Vendor]vendorPlant
	brokers map[string]vendorPlant
}

func newVendorRouter() *vendorRouter {
	return &vendorRouter{
		plants:  make(map[types.Vendor]vendorPlant),
		brokers: make(map[string]vendorPlant),
	}
}

func (r *vendorRouter) register(vendor types.Vendor, plant vendorPlant) {
	r.plants[vendor] = plant
}

// registerBroker indexes the same plant under its broker tag, for the
// account/symbol metadata queries that are keyed by broker rather than
// vendor.
func (r *vendorRouter) registerBroker(broker string, plant vendorPlant) {
	if broker != "" {
		r.brokers[broker] = plant
	}
}

func (r *vendorRouter) lookup(vendor types.Vendor) (vendorPlant, error) {
	p, ok := r.plants[vendor]
	if !ok {
		return nil, fmt.Errorf("no plant registered for vendor %q", vendor)
	}
	return p, nil
}

func (r *vendorRouter) Subscribe(sub types.DataSubscription) error {
	p, err := r.lookup(sub.Symbol.Vendor)
	if err != nil {
		return err
	}
	return p.Subscribe(sub)
}

func (r *vendorRouter) Unsubscribe(sub types.DataSubscription) error {
	p, err := r.lookup(sub.Symbol.Vendor)
	if err != nil {
		return err
	}
	return p.Unsubscribe(sub)
}

func (r *vendorRouter) SubmitOrder(ctx context.Context, order types.Order) error {
	p, err := r.lookup(order.Symbol.Vendor)
	if err != nil {
		return err
	}
	return p.SubmitOrder(ctx, order)
}

func (r *vendorRouter) CancelOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide) error {
	p, err := r.lookup(symbol.Vendor)
	if err != nil {
		return err
	}
	return p.CancelOrder(ctx, orderID, symbol, side)
}

func (r *vendorRouter) ReplaceOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide, price, quantity string) error {
	p, err := r.lookup(symbol.Vendor)
	if err != nil {
		return err
	}
	return p.ReplaceOrder(ctx, orderID, symbol, side, price, quantity)
}

// metadataPlant is optionally implemented by a plant that can answer the
// static symbol/account metadata queries (wsplant does, over its info
// request/response channel; the FIX sessions this gateway was built
// against carry no equivalent message).
type metadataPlant interface {
	DecimalAccuracy(symbolName string) (int32, error)
	TickSize(symbolName string) (string, error)
	SymbolInfo(symbolName string) (map[string]string, error)
	AccountInfo(accountID string) (map[string]string, error)
	MarginRequired(symbolName, quantity string) (string, error)
}

func (r *vendorRouter) vendorMetadata(vendor types.Vendor) (metadataPlant, error) {
	p, err := r.lookup(vendor)
	if err != nil {
		return nil, err
	}
	mp, ok := p.(metadataPlant)
	if !ok {
		return nil, fmt.Errorf("vendor %q exposes no symbol metadata", vendor)
	}
	return mp, nil
}

func (r *vendorRouter) brokerMetadata(broker string) (metadataPlant, error) {
	p, ok := r.brokers[broker]
	if !ok {
		return nil, fmt.Errorf("no plant registered for broker %q", broker)
	}
	mp, ok := p.(metadataPlant)
	if !ok {
		return nil, fmt.Errorf("broker %q exposes no account metadata", broker)
	}
	return mp, nil
}

func (r *vendorRouter) DecimalAccuracy(vendor types.Vendor, symbolName string) (int32, error) {
	mp, err := r.vendorMetadata(vendor)
	if err != nil {
		return 0, err
	}
	return mp.DecimalAccuracy(symbolName)
}

func (r *vendorRouter) TickSize(vendor types.Vendor, symbolName string) (string, error) {
	mp, err := r.vendorMetadata(vendor)
	if err != nil {
		return "", err
	}
	return mp.TickSize(symbolName)
}

func (r *vendorRouter) SymbolInfo(broker, symbolName string) (map[string]string, error) {
	mp, err := r.brokerMetadata(broker)
	if err != nil {
		return nil, err
	}
	return mp.SymbolInfo(symbolName)
}

func (r *vendorRouter) AccountInfo(broker, accountID string) (map[string]string, error) {
	mp, err := r.brokerMetadata(broker)
	if err != nil {
		return nil, err
	}
	return mp.AccountInfo(accountID)
}

func (r *vendorRouter) MarginRequired(broker, symbolName, quantity string) (string, error) {
	mp, err := r.brokerMetadata(broker)
	if err != nil {
		return "", err
	}
	return mp.MarginRequired(symbolName, quantity)
}
