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

// Package session manages the lifecycle of each upstream connection (one
// "plant" per vendor/broker endpoint): connect/login/heartbeat/reconnect,
// and request/response correlation keyed by an opaque callback_id. The
// per-plant Config/state shape generalizes the FIX client's single-plant
// connection handling to any vendor implementing the Plant interface.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"marketgw/gatewayerr"
	"marketgw/types"
)

// State is the per-plant connection state machine.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateLoggingIn
	StateLoggedIn
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "Handshaking"
	case StateLoggingIn:
		return "LoggingIn"
	case StateLoggedIn:
		return "LoggedIn"
	case StateReconnecting:
		return "Reconnecting"
	default:
		return "Disconnected"
	}
}

// Plant is the capability set a vendor/broker connection must implement;
// a dispatch table keyed by the vendor/broker tag selects the handler, per
// the "dynamic dispatch over vendor APIs" design note - no inheritance.
type Plant interface {
	Name() string
	Connect(ctx context.Context) error
	Logon(ctx context.Context) error
	Logout(ctx context.Context) error
	SendHeartbeat(ctx context.Context) error
	Subscribe(sub types.DataSubscription) error
	Unsubscribe(sub types.DataSubscription) error
}

// SubscriptionAware is optionally implemented by a Plant to report how
// many live subscriptions it is carrying. The reconnect loop uses this to
// decide whether a dropped stream should be re-established: a reconnect
// is retried only while the subscription set is non-empty. A
// Plant that does not implement this (no subscription concept) is always
// retried.
type SubscriptionAware interface {
	ActiveSubscriptionCount() int
}

// pendingCallback is a one-shot delivery slot for a request awaiting a
// correlated response.
type pendingCallback struct {
	done chan interface{}
}

// Manager runs one Plant's state machine: heartbeat loop, reconnect loop,
// and callback-id correlation.
type Manager struct {
	plant            Plant
	heartbeatInterval time.Duration

	mu         sync.Mutex
	state      State
	lastSendAt time.Time

	callbacksMu sync.Mutex
	callbacks   map[uint64]*pendingCallback

	shutdown chan struct{}
	wg       sync.WaitGroup
}

func NewManager(plant Plant, heartbeatInterval time.Duration) *Manager {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 60 * time.Second
	}
	return &Manager{
		plant:             plant,
		heartbeatInterval: heartbeatInterval,
		state:             StateDisconnected,
		callbacks:         make(map[uint64]*pendingCallback),
		shutdown:          make(chan struct{}),
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	log.Info().Str("plant", m.plant.Name()).Str("state", s.String()).Msg("plant state transition")
}

// Start drives Disconnected -> Handshaking -> LoggingIn -> LoggedIn, then
// starts the heartbeat loop. It blocks until login completes or ctx is
// cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.setState(StateHandshaking)
	if err := m.plant.Connect(ctx); err != nil {
		m.setState(StateDisconnected)
		return gatewayerr.ConnectionLost(fmt.Sprintf("plant %s connect: %v", m.plant.Name(), err))
	}

	m.setState(StateLoggingIn)
	if err := m.plant.Logon(ctx); err != nil {
		m.setState(StateDisconnected)
		return gatewayerr.InvalidApiKey(fmt.Sprintf("plant %s logon: %v", m.plant.Name(), err))
	}

	m.setState(StateLoggedIn)
	m.touchSend()

	m.wg.Add(1)
	go m.heartbeatLoop(ctx)
	return nil
}

// Shutdown observes the process-wide shutdown broadcast: logs out of the
// plant and stops the heartbeat loop, within the caller's context
// deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	close(m.shutdown)
	m.wg.Wait()
	err := m.plant.Logout(ctx)
	m.setState(StateDisconnected)
	m.gcAllCallbacks()
	return err
}

func (m *Manager) touchSend() {
	m.mu.Lock()
	m.lastSendAt = time.Now()
	m.mu.Unlock()
}

// heartbeatLoop fires only if no traffic has been sent within the
// negotiated interval; after three consecutive failed heartbeats it moves
// the plant to Reconnecting and starts reconnectLoop itself.
func (m *Manager) heartbeatLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.heartbeatInterval / 4)
	defer ticker.Stop()

	missed := 0
	const maxMissed = 3

	for {
		select {
		case <-m.shutdown:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			sinceLastSend := time.Since(m.lastSendAt)
			m.mu.Unlock()
			if sinceLastSend < m.heartbeatInterval {
				continue
			}
			if err := m.plant.SendHeartbeat(ctx); err != nil {
				missed++
				if missed >= maxMissed {
					m.setState(StateReconnecting)
					m.wg.Add(1)
					go m.reconnectLoop(ctx)
					return
				}
				continue
			}
			missed = 0
			m.touchSend()
		}
	}
}

// reconnectRetryInterval is the minimum spacing between reconnect
// attempts while subscriptions are outstanding.
const reconnectRetryInterval = 2 * time.Second

// reconnectLoop retries Connect+Logon on a periodic interval while the
// plant still carries live subscriptions (or reports no opinion on the
// matter via SubscriptionAware). Subscriptions are never explicitly
// resubmitted here: each Plant's own Logon implementation replays what it
// already has on file, so strategies never observe an unsubscribe event
// across a reconnect. When the subscription set is empty, the stream is
// not re-established.
func (m *Manager) reconnectLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(reconnectRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.shutdown:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sa, ok := m.plant.(SubscriptionAware); ok && sa.ActiveSubscriptionCount() == 0 {
				log.Info().Str("plant", m.plant.Name()).Msg("no active subscriptions, abandoning reconnect")
				m.setState(StateDisconnected)
				return
			}

			if err := m.plant.Connect(ctx); err != nil {
				log.Warn().Err(err).Str("plant", m.plant.Name()).Msg("reconnect attempt failed")
				continue
			}
			if err := m.plant.Logon(ctx); err != nil {
				log.Warn().Err(err).Str("plant", m.plant.Name()).Msg("reconnect logon failed")
				continue
			}

			m.setState(StateLoggedIn)
			m.touchSend()
			m.wg.Add(1)
			go m.heartbeatLoop(ctx)
			return
		}
	}
}

// RegisterCallback mints (or accepts) an opaque callback_id and returns a
// channel the caller receives exactly one delivery on.
func (m *Manager) RegisterCallback(callbackID uint64) (<-chan interface{}, uint64) {
	if callbackID == 0 {
		callbackID = uint64(uuid.New().ID())
	}
	pc := &pendingCallback{done: make(chan interface{}, 1)}
	m.callbacksMu.Lock()
	m.callbacks[callbackID] = pc
	m.callbacksMu.Unlock()
	return pc.done, callbackID
}

// Deliver routes a decoded response carrying callback_id to its registered
// slot, removing the slot. Responses with no matching slot (already
// GC'd, or a push-stream message) are silently ignored by the caller.
func (m *Manager) Deliver(callbackID uint64, response interface{}) bool {
	m.callbacksMu.Lock()
	pc, ok := m.callbacks[callbackID]
	if ok {
		delete(m.callbacks, callbackID)
	}
	m.callbacksMu.Unlock()
	if !ok {
		return false
	}
	pc.done <- response
	return true
}

// GCCallback removes an orphaned callback slot. It is called by the
// wsplant vendor-info queries when a request's write fails or its reply
// times out; nothing calls it when a strategy disconnects (Shutdown clears
// every slot at once).
func (m *Manager) GCCallback(callbackID uint64) {
	m.callbacksMu.Lock()
	delete(m.callbacks, callbackID)
	m.callbacksMu.Unlock()
}

func (m *Manager) gcAllCallbacks() {
	m.callbacksMu.Lock()
	for id, pc := range m.callbacks {
		close(pc.done)
		delete(m.callbacks, id)
	}
	m.callbacksMu.Unlock()
}
