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

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketgw/gatewayerr"
	"marketgw/types"
)

// fakePlant is a minimal Plant (and optionally SubscriptionAware) test
// double recording call counts and allowing individual calls to be made to
// fail on demand.
type fakePlant struct {
	mu sync.Mutex

	connectErr error
	logonErr   error

	connectCalls int
	logonCalls   int
	logoutCalls  int
	heartbeats   int

	subs int
}

func (p *fakePlant) Name() string { return "fake" }

func (p *fakePlant) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectCalls++
	return p.connectErr
}

func (p *fakePlant) Logon(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logonCalls++
	return p.logonErr
}

func (p *fakePlant) Logout(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logoutCalls++
	return nil
}

func (p *fakePlant) SendHeartbeat(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeats++
	return nil
}

func (p *fakePlant) Subscribe(sub types.DataSubscription) error   { return nil }
func (p *fakePlant) Unsubscribe(sub types.DataSubscription) error { return nil }

func (p *fakePlant) ActiveSubscriptionCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subs
}

// TestStart_SucceedsTransitionsToLoggedIn verifies a clean Connect+Logon
// moves the manager to StateLoggedIn.
func TestStart_SucceedsTransitionsToLoggedIn(t *testing.T) {
	plant := &fakePlant{}
	m := NewManager(plant, time.Hour)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.State() != StateLoggedIn {
		t.Fatalf("expected StateLoggedIn, got %s", m.State())
	}
	_ = m.Shutdown(context.Background())
}

// TestStart_ConnectFailureReturnsConnectionLost verifies a Connect error
// surfaces as a ConnectionLost gatewayerr and leaves the manager
// Disconnected.
func TestStart_ConnectFailureReturnsConnectionLost(t *testing.T) {
	plant := &fakePlant{connectErr: errors.New("refused")}
	m := NewManager(plant, time.Hour)

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if gatewayerr.KindOf(err) != gatewayerr.KindConnectionLost {
		t.Fatalf("expected a ConnectionLost error, got %v", err)
	}
	if m.State() != StateDisconnected {
		t.Fatalf("expected StateDisconnected, got %s", m.State())
	}
}

// TestStart_LogonFailureReturnsInvalidApiKey verifies a Logon error (e.g.
// bad credentials) is distinguished from a connect failure.
func TestStart_LogonFailureReturnsInvalidApiKey(t *testing.T) {
	plant := &fakePlant{logonErr: errors.New("bad creds")}
	m := NewManager(plant, time.Hour)

	err := m.Start(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if gatewayerr.KindOf(err) != gatewayerr.KindInvalidApiKey {
		t.Fatalf("expected an InvalidApiKey error, got %v", err)
	}
	if plant.connectCalls != 1 {
		t.Fatalf("expected exactly 1 connect attempt, got %d", plant.connectCalls)
	}
}

// TestRegisterCallback_DeliverRoutesToTheRightSlot verifies a response
// delivered by callback_id is received exactly once on the channel
// returned by RegisterCallback, and that a second Deliver for the same id
// is a no-op (slot already consumed).
func TestRegisterCallback_DeliverRoutesToTheRightSlot(t *testing.T) {
	plant := &fakePlant{}
	m := NewManager(plant, time.Hour)

	ch, id := m.RegisterCallback(0)
	if id == 0 {
		t.Fatal("expected a minted non-zero callback id")
	}

	if !m.Deliver(id, "hello") {
		t.Fatal("expected Deliver to find the registered slot")
	}
	select {
	case got := <-ch:
		if got != "hello" {
			t.Fatalf("expected %q, got %v", "hello", got)
		}
	default:
		t.Fatal("expected a value to be ready on the callback channel")
	}

	if m.Deliver(id, "again") {
		t.Fatal("expected the slot to be consumed after the first Deliver")
	}
}

// TestGCCallback_RemovesOrphanedSlot verifies GCCallback prevents a later
// Deliver on a disconnected strategy's callback id from succeeding.
func TestGCCallback_RemovesOrphanedSlot(t *testing.T) {
	plant := &fakePlant{}
	m := NewManager(plant, time.Hour)

	_, id := m.RegisterCallback(0)
	m.GCCallback(id)

	if m.Deliver(id, "late") {
		t.Fatal("expected Deliver to fail after GCCallback")
	}
}

// TestShutdown_ClosesPendingCallbacksAndLogsOut verifies Shutdown logs the
// plant out, transitions to Disconnected, and unblocks any goroutine still
// waiting on a pending callback channel (closed, not leaked).
func TestShutdown_ClosesPendingCallbacksAndLogsOut(t *testing.T) {
	plant := &fakePlant{}
	m := NewManager(plant, time.Hour)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ch, _ := m.RegisterCallback(0)

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if plant.logoutCalls != 1 {
		t.Fatalf("expected exactly 1 logout call, got %d", plant.logoutCalls)
	}
	if m.State() != StateDisconnected {
		t.Fatalf("expected StateDisconnected after shutdown, got %s", m.State())
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected the orphaned callback channel to be closed, not carry a value")
		}
	default:
		t.Fatal("expected the orphaned callback channel to be closed by Shutdown")
	}
}

// TestReconnectLoop_AbandonsWithNoActiveSubscriptions verifies that a
// manager already in Reconnecting abandons the reconnect loop on its first
// tick, and ends Disconnected, when the plant reports zero active
// subscriptions.
func TestReconnectLoop_AbandonsWithNoActiveSubscriptions(t *testing.T) {
	plant := &fakePlant{connectErr: errors.New("still down"), subs: 0}
	// The reconnect loop is driven directly; the heartbeat loop is never
	// started, and Connect would fail if the loop ever reached it.
	m := NewManager(plant, 40*time.Millisecond)
	m.setState(StateReconnecting)

	done := make(chan struct{})
	m.wg.Add(1)
	go func() {
		m.reconnectLoop(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("expected reconnectLoop to abandon once ActiveSubscriptionCount is 0")
	}
	if m.State() != StateDisconnected {
		t.Fatalf("expected StateDisconnected after abandoning reconnect, got %s", m.State())
	}
}
