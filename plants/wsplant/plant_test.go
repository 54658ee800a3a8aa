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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"marketgw/ledger"
	"marketgw/session"
	"marketgw/storage"
	"marketgw/types"
)

// testVenue runs a minimal WebSocket echo-less server that records every
// text frame it receives, standing in for a real venue's streaming API.
type testVenue struct {
	srv      *httptest.Server
	received chan string
}

func newTestVenue(t *testing.T) *testVenue {
	t.Helper()
	tv := &testVenue{received: make(chan string, 16)}
	upgrader := websocket.Upgrader{}
	tv.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case tv.received <- string(data):
			default:
			}
		}
	}))
	t.Cleanup(tv.srv.Close)
	return tv
}

func (tv *testVenue) wsURL() string {
	return "ws" + strings.TrimPrefix(tv.srv.URL, "http")
}

func newTestPlant(t *testing.T, url string) *Plant {
	t.Helper()
	store := storage.New(t.TempDir())
	book := ledger.New()
	return NewPlant(&Config{URL: url, Vendor: "TESTVENUE"}, store, book)
}

// TestConnectLogon_SucceedsAgainstARealWebSocketServer verifies the full
// Connect->Logon sequence against a real (test) WebSocket endpoint.
func TestConnectLogon_SucceedsAgainstARealWebSocketServer(t *testing.T) {
	venue := newTestVenue(t)
	p := newTestPlant(t, venue.wsURL())

	ctx := context.Background()
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := p.Logon(ctx); err != nil {
		t.Fatalf("Logon: %v", err)
	}
	if err := p.SendHeartbeat(ctx); err != nil {
		t.Fatalf("SendHeartbeat after logon should succeed: %v", err)
	}
	_ = p.Logout(ctx)
}

// TestSubscribeUnsubscribe_TracksActiveSubscriptionCount verifies
// Subscribe/Unsubscribe send the expected frames and that
// ActiveSubscriptionCount reflects the live set, satisfying
// session.SubscriptionAware.
func TestSubscribeUnsubscribe_TracksActiveSubscriptionCount(t *testing.T) {
	venue := newTestVenue(t)
	p := newTestPlant(t, venue.wsURL())

	ctx := context.Background()
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer p.Logout(ctx)

	sub := types.DataSubscription{
		Symbol:       types.Symbol{Name: "BTC-USD", Vendor: "TESTVENUE", MarketType: types.MarketCrypto},
		Resolution:   types.Resolution{Kind: types.ResMinute, Count: 1},
		BaseDataType: types.DataTick,
	}

	if err := p.Subscribe(sub); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	select {
	case msg := <-venue.received:
		if !strings.Contains(msg, "\"subscribe\"") || !strings.Contains(msg, "BTC-USD") {
			t.Fatalf("expected a subscribe frame for BTC-USD, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the venue to receive a subscribe frame")
	}
	if got := p.ActiveSubscriptionCount(); got != 1 {
		t.Fatalf("expected 1 active subscription, got %d", got)
	}

	if err := p.Unsubscribe(sub); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if got := p.ActiveSubscriptionCount(); got != 0 {
		t.Fatalf("expected 0 active subscriptions after unsubscribe, got %d", got)
	}
}

// TestLogon_ReplaysSubscriptionsAfterReconnect verifies that subscriptions
// already on file are resent on a second Logon call (simulating the
// session manager's reconnect loop), without the caller having to
// resubscribe explicitly.
func TestLogon_ReplaysSubscriptionsAfterReconnect(t *testing.T) {
	venue := newTestVenue(t)
	p := newTestPlant(t, venue.wsURL())

	ctx := context.Background()
	require := func(err error, msg string) {
		if err != nil {
			t.Fatalf("%s: %v", msg, err)
		}
	}
	require(p.Connect(ctx), "Connect")
	require(p.Logon(ctx), "initial Logon")

	sub := types.DataSubscription{
		Symbol:       types.Symbol{Name: "ETH-USD", Vendor: "TESTVENUE", MarketType: types.MarketCrypto},
		Resolution:   types.Resolution{Kind: types.ResMinute, Count: 1},
		BaseDataType: types.DataTick,
	}
	require(p.Subscribe(sub), "Subscribe")

	select {
	case <-venue.received:
	case <-time.After(time.Second):
		t.Fatal("expected the initial subscribe frame")
	}

	// Reconnect: a fresh Logon call should replay the subscription without
	// the caller calling Subscribe again.
	require(p.Logon(ctx), "reconnect Logon")

	select {
	case msg := <-venue.received:
		if !strings.Contains(msg, "ETH-USD") {
			t.Fatalf("expected the replayed subscribe frame to reference ETH-USD, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Logon to replay the existing subscription")
	}
}

// TestTickSize_CorrelatesInfoResponseThroughSession verifies a metadata
// query registers a callback slot on the session manager, the venue's
// correlated info_response frame is delivered back through it, and the
// caller receives the decoded field.
func TestTickSize_CorrelatesInfoResponseThroughSession(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req map[string]interface{}
			if json.Unmarshal(data, &req) != nil || req["op"] != "info" {
				continue
			}
			_ = conn.WriteJSON(map[string]interface{}{
				"event_type": "info_response",
				"request_id": req["request_id"],
				"fields":     map[string]string{"tick_size": "0.25"},
			})
		}
	}))
	t.Cleanup(srv.Close)

	p := newTestPlant(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	mgr := session.NewManager(p, time.Minute)
	p.AttachSession(mgr)

	ctx := context.Background()
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer p.Logout(ctx)

	tick, err := p.TickSize("MNQ")
	if err != nil {
		t.Fatalf("TickSize: %v", err)
	}
	if tick != "0.25" {
		t.Fatalf("expected tick size 0.25, got %s", tick)
	}
}
