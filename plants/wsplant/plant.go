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

// Package wsplant is a second, non-FIX vendor Plant: venues that stream
// ticks and quotes as JSON over a single WebSocket connection rather than
// FIX. It implements the same session.Plant and subscription.
// UpstreamController contracts as plants/fixplant, proving those contracts
// are vendor-agnostic rather than incidentally shaped around FIX.
package wsplant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"marketgw/fanout"
	"marketgw/gatewayerr"
	"marketgw/ledger"
	"marketgw/session"
	"marketgw/storage"
	"marketgw/types"
)

const (
	pingInterval = 20 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
)

// Config carries the per-venue connection and identity details a Plant
// authenticates with on logon.
type Config struct {
	URL        string
	ApiKey     string
	ApiSecret  string
	Vendor     types.Vendor
	Broker     string
	MarketType types.MarketType
}

// Plant implements session.Plant, subscription.UpstreamController, and
// gateway.OrderRouter against a single WebSocket session.
type Plant struct {
	config *Config
	ledger *ledger.Ledger
	store  *storage.Engine

	dispatcher *fanout.Dispatcher
	session    *session.Manager

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.Mutex
	subscribed   map[string]types.DataSubscription // DataSubscription.Key() -> subscription, replayed on reconnect

	loggedIn bool
	cancel   context.CancelFunc
}

// NewPlant wires a Plant to the shared storage engine and order ledger; the
// caller registers the returned Plant's Subscribe/Unsubscribe as the
// subscription registry's UpstreamController, mirroring plants/fixplant.
func NewPlant(config *Config, store *storage.Engine, led *ledger.Ledger) *Plant {
	return &Plant{
		config:     config,
		ledger:     led,
		store:      store,
		subscribed: make(map[string]types.DataSubscription),
	}
}

// AttachDispatcher lets the plant feed normalized market data into the
// fan-out layer once the gateway has constructed it with this plant behind
// its UpstreamController.
func (p *Plant) AttachDispatcher(d *fanout.Dispatcher) {
	p.dispatcher = d
}

func (p *Plant) Name() string {
	return string(p.config.Vendor)
}

// Connect dials the venue's WebSocket endpoint and starts the read and
// ping loops. Unlike quickfixgo, nothing else owns this connection's
// lifecycle, so Connect itself must establish it.
func (p *Plant) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.config.URL, err)
	}

	p.connMu.Lock()
	p.conn = conn
	p.connMu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go p.readLoop(runCtx)
	go p.pingLoop(runCtx)
	return nil
}

// Logon sends the venue's auth frame, if one is configured, and resumes
// any subscriptions already on file (a reconnect after Reconnecting).
func (p *Plant) Logon(ctx context.Context) error {
	if p.config.ApiKey != "" {
		if err := p.writeJSON(authMessage{Op: "auth", ApiKey: p.config.ApiKey, ApiSecret: p.config.ApiSecret}); err != nil {
			return gatewayerr.InvalidApiKey(fmt.Sprintf("wsplant auth: %v", err))
		}
	}

	p.subscribedMu.Lock()
	subs := make([]types.DataSubscription, 0, len(p.subscribed))
	for _, sub := range p.subscribed {
		subs = append(subs, sub)
	}
	p.subscribedMu.Unlock()
	for _, sub := range subs {
		if err := p.sendSubscribe(sub, subscribeOp); err != nil {
			log.Warn().Err(err).Str("symbol", sub.Symbol.Name).Msg("failed to resubscribe after reconnect")
		}
	}

	p.loggedIn = true
	return nil
}

func (p *Plant) Logout(ctx context.Context) error {
	p.loggedIn = false
	if p.cancel != nil {
		p.cancel()
	}
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// SendHeartbeat reports connection liveness to the session.Manager;
// pingLoop owns the actual wire-level ping cadence.
func (p *Plant) SendHeartbeat(ctx context.Context) error {
	if !p.loggedIn {
		return gatewayerr.ConnectionLost("wsplant session not logged on")
	}
	return nil
}

func (p *Plant) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.connMu.Lock()
			conn := p.conn
			p.connMu.Unlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Msg("wsplant ping failed")
				return
			}
		}
	}
}

func (p *Plant) readLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.connMu.Lock()
		conn := p.conn
		p.connMu.Unlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("vendor", p.Name()).Msg("wsplant read failed")
			p.loggedIn = false
			return
		}
		p.dispatch(data)
	}
}

func (p *Plant) writeJSON(v interface{}) error {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	if p.conn == nil {
		return fmt.Errorf("wsplant: not connected")
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return p.conn.WriteJSON(v)
}

type authMessage struct {
	Op        string `json:"op"`
	ApiKey    string `json:"api_key"`
	ApiSecret string `json:"api_secret"`
}
