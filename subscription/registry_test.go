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

package subscription

import (
	"sync"
	"testing"

	"marketgw/types"
)

// fakeUpstream records every Subscribe/Unsubscribe call the registry issues
// against it, so tests can assert the debounced 0<->1 refcount behavior.
type fakeUpstream struct {
	mu           sync.Mutex
	subscribes   []types.DataSubscription
	unsubscribes []types.DataSubscription
	subscribeErr error
}

func (f *fakeUpstream) Subscribe(sub types.DataSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscribes = append(f.subscribes, sub)
	return nil
}

func (f *fakeUpstream) Unsubscribe(sub types.DataSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, sub)
	return nil
}

func (f *fakeUpstream) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribes)
}

func (f *fakeUpstream) unsubscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unsubscribes)
}

func testSub() types.DataSubscription {
	return types.DataSubscription{
		Symbol:       types.Symbol{Name: "BTC-USD", Vendor: "COINBASE", MarketType: types.MarketCrypto},
		Resolution:   types.Resolution{Kind: types.ResInstant},
		BaseDataType: types.DataTick,
	}
}

// TestSubscribe_FirstSubscriberIssuesUpstreamSubscribeOnlyOnce verifies the
// registry's refcount debouncing: N strategies subscribing to the same
// (symbol, type) result in exactly one upstream Subscribe call.
func TestSubscribe_FirstSubscriberIssuesUpstreamSubscribeOnlyOnce(t *testing.T) {
	up := &fakeUpstream{}
	r := New(up)
	sub := testSub()

	if _, err := r.Subscribe("stream-1", sub); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := r.Subscribe("stream-2", sub); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := r.Subscribe("stream-3", sub); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if up.subscribeCount() != 1 {
		t.Errorf("expected exactly 1 upstream subscribe, got %d", up.subscribeCount())
	}
	if r.SubscriberCount(sub) != 3 {
		t.Errorf("expected 3 live subscribers, got %d", r.SubscriberCount(sub))
	}
}

// TestUnsubscribe_UpstreamUnsubscribeOnlyOnLastReceiver verifies the
// registry issues the upstream unsubscribe only once the receiver count
// reaches zero, not on every individual Unsubscribe call.
func TestUnsubscribe_UpstreamUnsubscribeOnlyOnLastReceiver(t *testing.T) {
	up := &fakeUpstream{}
	r := New(up)
	sub := testSub()

	_, _ = r.Subscribe("stream-1", sub)
	_, _ = r.Subscribe("stream-2", sub)

	if err := r.Unsubscribe("stream-1", sub); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if up.unsubscribeCount() != 0 {
		t.Fatalf("expected no upstream unsubscribe yet, got %d", up.unsubscribeCount())
	}

	if err := r.Unsubscribe("stream-2", sub); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if up.unsubscribeCount() != 1 {
		t.Errorf("expected exactly 1 upstream unsubscribe, got %d", up.unsubscribeCount())
	}
	if r.SubscriberCount(sub) != 0 {
		t.Errorf("expected 0 live subscribers, got %d", r.SubscriberCount(sub))
	}
}

// TestSubscribe_UpstreamErrorLeavesNoBroadcaster verifies that when the
// upstream Subscribe call fails, the registry does not retain a phantom
// broadcaster for a subscription that never actually went live upstream.
func TestSubscribe_UpstreamErrorLeavesNoBroadcaster(t *testing.T) {
	up := &fakeUpstream{subscribeErr: errBoom}
	r := New(up)
	sub := testSub()

	if _, err := r.Subscribe("stream-1", sub); err == nil {
		t.Fatal("expected the upstream error to propagate")
	}
	if r.SubscriberCount(sub) != 0 {
		t.Errorf("expected no live subscribers after a failed subscribe, got %d", r.SubscriberCount(sub))
	}
}

// TestDispatch_DeliversToEveryLiveReceiver verifies Dispatch fans one
// inbound record out to every receiver currently registered for its key.
func TestDispatch_DeliversToEveryLiveReceiver(t *testing.T) {
	up := &fakeUpstream{}
	r := New(up)
	sub := testSub()

	ch1, _ := r.Subscribe("stream-1", sub)
	ch2, _ := r.Subscribe("stream-2", sub)

	data := types.BaseData{Type: types.DataTick, Symbol: sub.Symbol}
	r.Dispatch(sub, data)

	select {
	case got := <-ch1:
		if got.Symbol != sub.Symbol {
			t.Errorf("stream-1 received unexpected data: %+v", got)
		}
	default:
		t.Error("stream-1 did not receive the dispatched record")
	}
	select {
	case got := <-ch2:
		if got.Symbol != sub.Symbol {
			t.Errorf("stream-2 received unexpected data: %+v", got)
		}
	default:
		t.Error("stream-2 did not receive the dispatched record")
	}
}

// TestDispatch_LaggingReceiverIsDroppedAndChannelClosed verifies a receiver
// whose channel is full is dropped rather than blocking the whole
// broadcaster, and observes its channel close as the disconnect signal.
func TestDispatch_LaggingReceiverIsDroppedAndChannelClosed(t *testing.T) {
	up := &fakeUpstream{}
	r := New(up)
	sub := testSub()

	ch, _ := r.Subscribe("lagging-stream", sub)

	// Fill the receiver's buffer past capacity so the next dispatch finds it
	// full and drops it.
	for i := 0; i < defaultChannelCapacity+1; i++ {
		r.Dispatch(sub, types.BaseData{Type: types.DataTick, Symbol: sub.Symbol})
	}

	drained := 0
	for range ch {
		drained++
		if drained > defaultChannelCapacity+10 {
			t.Fatal("channel never closed for the dropped receiver")
		}
	}
	if drained == 0 {
		t.Error("expected the lagging receiver to have buffered at least one record before being dropped")
	}
}

var errBoom = upstreamTestError("boom")

type upstreamTestError string

func (e upstreamTestError) Error() string { return string(e) }
