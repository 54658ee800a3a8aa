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
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketgw/ledger"
	"marketgw/storage"
	"marketgw/subscription"
	"marketgw/types"
	"marketgw/wire"
)

// noopUpstream satisfies subscription.UpstreamController without issuing
// any real vendor calls - the dispatch tests below exercise the historical
// and order paths, not live streaming.
type noopUpstream struct{}

func (noopUpstream) Subscribe(sub types.DataSubscription) error   { return nil }
func (noopUpstream) Unsubscribe(sub types.DataSubscription) error { return nil }

func startTestServer(t *testing.T) (*Server, net.Addr) {
	t.Helper()
	store := storage.New(t.TempDir())
	registry := subscription.New(noopUpstream{})
	book := ledger.New()
	srv := NewServer(store, registry, book)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	var addr net.Addr
	for i := 0; i < 100; i++ {
		if addr = srv.Addr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NotNil(t, addr, "expected the server to bind within 1s")
	return srv, addr
}

func dialAndRoundTrip(t *testing.T, addr net.Addr, req wire.Request) wire.Response {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	payload, err := wire.Encode(req)
	require.NoError(t, err)
	require.NoError(t, wire.WriteFrame(conn, payload))

	reader := bufio.NewReader(conn)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	respPayload, err := wire.ReadFrame(reader)
	require.NoError(t, err)

	var resp wire.Response
	require.NoError(t, wire.Decode(respPayload, &resp))
	return resp
}

// TestListenAndServe_HistoricalRequestRoundTrips verifies a strategy can
// dial the gateway, send a historical data request, and receive a
// correlated response carrying the previously-stored record.
func TestListenAndServe_HistoricalRequestRoundTrips(t *testing.T) {
	srv, addr := startTestServer(t)

	sub := types.DataSubscription{
		Symbol:       types.Symbol{Name: "BTC-USD", Vendor: "COINBASE", MarketType: types.MarketCrypto},
		Resolution:   types.Resolution{Kind: types.ResMinute, Count: 1},
		BaseDataType: types.DataCandle,
	}
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	require.NoError(t, srv.Storage.Save(sub, types.BaseData{
		Type:   types.DataCandle,
		Symbol: sub.Symbol,
		Time:   at,
		Candle: &types.Candle{Close: decimal.RequireFromString("100"), IsClosed: true},
	}))

	resp := dialAndRoundTrip(t, addr, wire.Request{
		Kind:         wire.ReqHistoricalBaseData,
		CallbackID:   42,
		Subscription: sub,
		Time:         at.Format(time.RFC3339Nano),
	})

	require.Equal(t, wire.RespHistoricalBaseData, resp.Kind)
	assert.Equal(t, uint64(42), resp.CallbackID)
	assert.True(t, resp.Success)

	var records types.TimeSlice
	require.NoError(t, wire.Decode(resp.Payload, &records))
	require.Len(t, records, 1)
	assert.True(t, records[0].Candle.Close.Equal(decimal.RequireFromString("100")))
}

// TestListenAndServe_MalformedTimeReturnsInvalidRequestError verifies a
// request with an unparseable time field surfaces an InvalidRequest error
// response rather than crashing the connection.
func TestListenAndServe_MalformedTimeReturnsInvalidRequestError(t *testing.T) {
	_, addr := startTestServer(t)

	resp := dialAndRoundTrip(t, addr, wire.Request{
		Kind:       wire.ReqHistoricalBaseData,
		CallbackID: 7,
		Time:       "not-a-time",
	})

	require.Equal(t, wire.RespError, resp.Kind)
	assert.Equal(t, uint64(7), resp.CallbackID)
	assert.NotEmpty(t, resp.ErrorKind)
}

// TestListenAndServe_OrderCreateReachesOrderRouter verifies a create-order
// request dispatched through the gateway reaches the configured
// OrderRouter exactly once and is acknowledged as successful.
func TestListenAndServe_OrderCreateReachesOrderRouter(t *testing.T) {
	srv, addr := startTestServer(t)
	router := &fakeOrderRouter{}
	srv.Orders = router

	account := types.Account{Broker: "prime", AccountID: "acct-1"}
	symbol := types.Symbol{Name: "BTC-USD", Vendor: "COINBASE", MarketType: types.MarketCrypto}

	resp := dialAndRoundTrip(t, addr, wire.Request{
		Kind:       wire.ReqOrderCreate,
		CallbackID: 9,
		Order: &wire.OrderRequestBody{
			OrderID:  "ord-1",
			Account:  account,
			Symbol:   symbol,
			Side:     types.OrderBuy,
			Kind:     types.OrderMarket,
			Quantity: "1",
		},
	})

	assert.True(t, resp.Success)
	assert.Equal(t, 1, router.submitCalls)
}

// TestListenAndServe_CatalogQueriesServedFromStorage verifies the
// Symbols/Markets/Resolutions family of requests answers from what the
// storage engine has actually recorded on disk.
func TestListenAndServe_CatalogQueriesServedFromStorage(t *testing.T) {
	srv, addr := startTestServer(t)

	sub := types.DataSubscription{
		Symbol:       types.Symbol{Name: "BTC-USD", Vendor: "COINBASE", MarketType: types.MarketCrypto},
		Resolution:   types.Resolution{Kind: types.ResMinute, Count: 1},
		BaseDataType: types.DataCandle,
	}
	require.NoError(t, srv.Storage.Save(sub, types.BaseData{
		Type:   types.DataCandle,
		Symbol: sub.Symbol,
		Time:   time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
		Candle: &types.Candle{Close: decimal.RequireFromString("100"), IsClosed: true},
	}))

	resp := dialAndRoundTrip(t, addr, wire.Request{
		Kind:       wire.ReqSymbolsVendor,
		CallbackID: 11,
		Vendor:     "COINBASE",
		MarketType: types.MarketCrypto,
	})
	require.Equal(t, wire.RespSymbols, resp.Kind)
	require.True(t, resp.Success)
	var symbols []string
	require.NoError(t, wire.Decode(resp.Payload, &symbols))
	assert.Equal(t, []string{"BTC-USD"}, symbols)

	resp = dialAndRoundTrip(t, addr, wire.Request{
		Kind:       wire.ReqMarkets,
		CallbackID: 12,
		Vendor:     "COINBASE",
	})
	require.Equal(t, wire.RespMarkets, resp.Kind)
	var markets []string
	require.NoError(t, wire.Decode(resp.Payload, &markets))
	assert.Equal(t, []string{"Crypto"}, markets)

	resp = dialAndRoundTrip(t, addr, wire.Request{
		Kind:       wire.ReqResolutions,
		CallbackID: 13,
		Vendor:     "COINBASE",
		MarketType: types.MarketCrypto,
	})
	require.Equal(t, wire.RespResolutions, resp.Kind)
	var resolutions []string
	require.NoError(t, wire.Decode(resp.Payload, &resolutions))
	assert.Equal(t, []string{"Minute1"}, resolutions)
}

type fakeOrderRouter struct {
	submitCalls int
}

func (r *fakeOrderRouter) SubmitOrder(ctx context.Context, order types.Order) error {
	r.submitCalls++
	return nil
}
func (r *fakeOrderRouter) CancelOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide) error {
	return nil
}
func (r *fakeOrderRouter) ReplaceOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide, price, quantity string) error {
	return nil
}
