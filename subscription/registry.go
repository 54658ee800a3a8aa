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

// Package subscription implements the reference-counted subscription
// registry: at most one upstream subscription per (symbol, resolution,
// base_data_type) key,
// multiplexed to N strategy receivers. The bookkeeping style (subscription
// metadata per stream, update counters) follows the ring-buffer trade
// store's subscription tracking this registry generalizes from a single
// FIX market-data plant to any vendor.
package subscription

import (
	"sync"

	"marketgw/types"
)

// UpstreamController issues the actual vendor subscribe/unsubscribe calls
// when the registry's refcount crosses 0<->1. Implemented by the session
// manager's per-vendor plant.
type UpstreamController interface {
	Subscribe(sub types.DataSubscription) error
	Unsubscribe(sub types.DataSubscription) error
}

const defaultChannelCapacity = 256

// broadcaster fans one upstream subscription's events out to N receivers.
type broadcaster struct {
	mu        sync.Mutex
	receivers map[string]chan types.BaseData // streamID -> receiver
}

func newBroadcaster() *broadcaster {
	return &broadcaster{receivers: make(map[string]chan types.BaseData)}
}

func (b *broadcaster) addReceiver(streamID string) chan types.BaseData {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.receivers[streamID]; ok {
		return ch
	}
	ch := make(chan types.BaseData, defaultChannelCapacity)
	b.receivers[streamID] = ch
	return ch
}

func (b *broadcaster) removeReceiver(streamID string) (remaining int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.receivers[streamID]; ok {
		close(ch)
		delete(b.receivers, streamID)
	}
	return len(b.receivers)
}

// send delivers data to every receiver. Delivery order across receivers is
// not guaranteed, but a single receiver always observes the source order
// because sends for one broadcaster are serialized by the broadcaster's
// own mutex. A receiver whose channel is full is treated
// as lagging and is dropped (surfaced to its owner as ConnectionLost by
// the caller reading from the dropped channel observing it closed).
func (b *broadcaster) send(data types.BaseData) (droppedStreamIDs []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for streamID, ch := range b.receivers {
		select {
		case ch <- data:
		default:
			close(ch)
			delete(b.receivers, streamID)
			droppedStreamIDs = append(droppedStreamIDs, streamID)
		}
	}
	return droppedStreamIDs
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.receivers)
}

// Registry is the subscription registry of the component design: a
// concurrent map from subscription key to broadcaster, upstream
// subscribe/unsubscribe debounced by the broadcaster's receiver count.
type Registry struct {
	mu           sync.Mutex
	broadcasters map[string]*broadcaster
	upstream     UpstreamController
}

func New(upstream UpstreamController) *Registry {
	return &Registry{
		broadcasters: make(map[string]*broadcaster),
		upstream:     upstream,
	}
}

// Subscribe implements the subscribe protocol: clone a receiver if a
// broadcaster already exists (no upstream message, duplicate-subscribe
// from the same stream is idempotent), otherwise create one and issue an
// upstream subscribe.
func (r *Registry) Subscribe(streamID string, sub types.DataSubscription) (<-chan types.BaseData, error) {
	key := sub.Key()

	r.mu.Lock()
	b, exists := r.broadcasters[key]
	if !exists {
		b = newBroadcaster()
		r.broadcasters[key] = b
	}
	r.mu.Unlock()

	ch := b.addReceiver(streamID)

	if !exists {
		if err := r.upstream.Subscribe(sub); err != nil {
			r.mu.Lock()
			delete(r.broadcasters, key)
			r.mu.Unlock()
			b.removeReceiver(streamID)
			return nil, err
		}
	}
	return ch, nil
}

// Unsubscribe implements the unsubscribe protocol: remove the caller's
// receiver, and if the broadcaster's receiver count reaches 0, remove the
// broadcaster and issue an upstream unsubscribe.
func (r *Registry) Unsubscribe(streamID string, sub types.DataSubscription) error {
	key := sub.Key()

	r.mu.Lock()
	b, exists := r.broadcasters[key]
	r.mu.Unlock()
	if !exists {
		return nil
	}

	remaining := b.removeReceiver(streamID)
	if remaining > 0 {
		return nil
	}

	r.mu.Lock()
	// Re-check under lock: another subscribe may have raced in between.
	if current, ok := r.broadcasters[key]; ok && current == b && current.count() == 0 {
		delete(r.broadcasters, key)
		r.mu.Unlock()
		return r.upstream.Unsubscribe(sub)
	}
	r.mu.Unlock()
	return nil
}

// Dispatch delivers an inbound, normalized BaseData value to the
// broadcaster for its subscription key, if any. If the broadcaster's
// receiver count drops to zero as a result of a lagging-receiver drop, the
// broadcaster is removed and an upstream unsubscribe is issued.
func (r *Registry) Dispatch(sub types.DataSubscription, data types.BaseData) {
	key := sub.Key()

	r.mu.Lock()
	b, exists := r.broadcasters[key]
	r.mu.Unlock()
	if !exists {
		return
	}

	b.send(data)

	if b.count() == 0 {
		r.mu.Lock()
		if current, ok := r.broadcasters[key]; ok && current == b {
			delete(r.broadcasters, key)
		}
		r.mu.Unlock()
		_ = r.upstream.Unsubscribe(sub)
	}
}

// SubscriberCount reports the current number of live receivers for a
// subscription, used by tests and diagnostics.
func (r *Registry) SubscriberCount(sub types.DataSubscription) int {
	r.mu.Lock()
	b, exists := r.broadcasters[sub.Key()]
	r.mu.Unlock()
	if !exists {
		return 0
	}
	return b.count()
}
