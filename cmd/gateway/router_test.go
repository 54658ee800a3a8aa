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
	"testing"

	"marketgw/types"
)

type fakeVendorPlant struct {
	subscribeCalls int
	submitCalls    int
}

func (p *fakeVendorPlant) Subscribe(sub types.DataSubscription) error {
	p.subscribeCalls++
	return nil
}
func (p *fakeVendorPlant) Unsubscribe(sub types.DataSubscription) error { return nil }
func (p *fakeVendorPlant) SubmitOrder(ctx context.Context, order types.Order) error {
	p.submitCalls++
	return nil
}
func (p *fakeVendorPlant) CancelOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide) error {
	return nil
}
func (p *fakeVendorPlant) ReplaceOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide, price, quantity string) error {
	return nil
}

// TestVendorRouter_DispatchesToTheRegisteredPlant verifies Subscribe and
// SubmitOrder route to the plant registered for the symbol's vendor.
func TestVendorRouter_DispatchesToTheRegisteredPlant(t *testing.T) {
	r := newVendorRouter()
	coinbase := &fakeVendorPlant{}
	r.register("COINBASE", coinbase)

	sub := types.DataSubscription{Symbol: types.Symbol{Name: "BTC-USD", Vendor: "COINBASE"}}
	if err := r.Subscribe(sub); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if coinbase.subscribeCalls != 1 {
		t.Errorf("expected 1 subscribe call on the registered plant, got %d", coinbase.subscribeCalls)
	}

	order := types.Order{Symbol: types.Symbol{Name: "BTC-USD", Vendor: "COINBASE"}}
	if err := r.SubmitOrder(context.Background(), order); err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if coinbase.submitCalls != 1 {
		t.Errorf("expected 1 submit call on the registered plant, got %d", coinbase.submitCalls)
	}
}

// TestVendorRouter_UnknownVendorReturnsError verifies a vendor with no
// registered plant surfaces an error instead of a nil-pointer dereference.
func TestVendorRouter_UnknownVendorReturnsError(t *testing.T) {
	r := newVendorRouter()
	sub := types.DataSubscription{Symbol: types.Symbol{Name: "BTC-USD", Vendor: "NOBODY"}}
	if err := r.Subscribe(sub); err == nil {
		t.Fatal("expected an error for an unregistered vendor")
	}
}

// TestVendorRouter_MultiplePlantsAreDispatchedIndependently verifies two
// vendors registered on the same router never cross-call each other's
// plant.
func TestVendorRouter_MultiplePlantsAreDispatchedIndependently(t *testing.T) {
	r := newVendorRouter()
	coinbase := &fakeVendorPlant{}
	kraken := &fakeVendorPlant{}
	r.register("COINBASE", coinbase)
	r.register("KRAKEN", kraken)

	_ = r.Subscribe(types.DataSubscription{Symbol: types.Symbol{Name: "ETH-USD", Vendor: "KRAKEN"}})
	if kraken.subscribeCalls != 1 || coinbase.subscribeCalls != 0 {
		t.Fatalf("expected only the KRAKEN plant to see the call, got coinbase=%d kraken=%d",
			coinbase.subscribeCalls, kraken.subscribeCalls)
	}
}

func TestParseMarketType_MapsAllKnownNames(t *testing.T) {
	cases := map[string]types.MarketType{
		"Futures":      types.MarketFutures,
		"Forex":        types.MarketForex,
		"CFD":          types.MarketCFD,
		"Crypto":       types.MarketCrypto,
		"Fundamentals": types.MarketFundamentals,
		"nonsense":     types.MarketUnspecified,
	}
	for name, want := range cases {
		if got := parseMarketType(name); got != want {
			t.Errorf("parseMarketType(%q): got %v, want %v", name, got, want)
		}
	}
}
