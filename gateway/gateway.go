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

// Package gateway implements the Strategy Gateway: a length-framed TCP
// listener that demultiplexes inbound requests by kind, dispatches each on
// its own goroutine (so a slow historical-data query never head-of-line
// blocks a concurrent order-cancel on the same connection), and correlates
// responses back to the caller via an opaque callback_id. Market-data
// subscriptions and ledger events are pushed out-of-band on the same
// connection's writer loop.
package gateway

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"marketgw/ledger"
	"marketgw/storage"
	"marketgw/subscription"
	"marketgw/types"
)

// OrderRouter is implemented by a vendor plant and lets the gateway submit
// and cancel orders without depending on any concrete vendor package.
type OrderRouter interface {
	SubmitOrder(ctx context.Context, order types.Order) error
	CancelOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide) error
	ReplaceOrder(ctx context.Context, orderID types.OrderID, symbol types.Symbol, side types.OrderSide, price, quantity string) error
}

// VendorInfo is optionally implemented by a vendor plant to answer the
// static catalog requests (decimal accuracy, tick size, symbol/account
// info, margin) that have no bearing on stored history or ledger state.
// With Server.VendorInfo nil, those requests fail with a ClientError
// rather than return fabricated numbers. cmd/gateway always sets it to its
// vendor router, which returns an error for a plant that exposes no such
// metadata (the FIX market-data/execution sessions have no generic
// symbol-info message); the gateway reports that error as a ServerError.
type VendorInfo interface {
	DecimalAccuracy(vendor types.Vendor, symbolName string) (int32, error)
	TickSize(vendor types.Vendor, symbolName string) (string, error)
	SymbolInfo(broker, symbolName string) (map[string]string, error)
	AccountInfo(broker, accountID string) (map[string]string, error)
	MarginRequired(broker, symbolName, quantity string) (string, error)
}

// Server is the Strategy Gateway's TCP listener.
type Server struct {
	Storage     *storage.Engine
	Registry    *subscription.Registry
	Ledger      *ledger.Ledger
	Orders      OrderRouter
	VendorInfo  VendorInfo
	Connections *connectionSet

	AuditRecorder func(types.StrategyEvent)

	listener net.Listener
}

// NewServer wires a Server ready for ListenAndServe; Orders and VendorInfo
// may be filled in afterward by the caller once the vendor plants are
// constructed.
func NewServer(store *storage.Engine, registry *subscription.Registry, book *ledger.Ledger) *Server {
	return &Server{
		Storage:     store,
		Registry:    registry,
		Ledger:      book,
		Connections: newConnectionSet(),
	}
}

// Addr returns the bound listener address, or nil before ListenAndServe has
// started listening. Exposed mainly so tests can bind an ephemeral port
// (":0") and discover what it resolved to.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds addr and accepts connections until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = ln
	log.Info().Str("addr", addr).Msg("strategy gateway listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		streamID := uuid.NewString()
		c := newConnection(streamID, conn, s)
		go c.run(ctx)
	}
}

// BroadcastLedgerEvents drains the ledger's shared event channel and fans
// each event out to every connection subscribed to strategy events, plus
// the configured audit recorder. The gateway owns the ledger's single
// consumer; delivery below is best-effort: an event waits up to one second
// for room on the connection set's fan-out queue and is dropped after
// that, in the spirit of the lagging-receiver-drop policy used for market
// data.
func (s *Server) BroadcastLedgerEvents(ctx context.Context) {
	events := s.Ledger.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if s.AuditRecorder != nil {
				s.AuditRecorder(ev)
			}
			s.Connections.broadcast(ev)
		}
	}
}

// connectionSet tracks live connections so ledger events can be broadcast
// to every strategy currently connected, independent of market-data
// subscriptions.
type connectionSet struct {
	register   chan *connection
	unregister chan *connection
	fanout     chan types.StrategyEvent
}

func newConnectionSet() *connectionSet {
	cs := &connectionSet{
		register:   make(chan *connection),
		unregister: make(chan *connection),
		fanout:     make(chan types.StrategyEvent, 256),
	}
	go cs.run()
	return cs
}

func (cs *connectionSet) run() {
	members := make(map[*connection]struct{})
	for {
		select {
		case c := <-cs.register:
			members[c] = struct{}{}
		case c := <-cs.unregister:
			delete(members, c)
		case ev := <-cs.fanout:
			for c := range members {
				c.pushEvent(ev)
			}
		}
	}
}

func (cs *connectionSet) broadcast(ev types.StrategyEvent) {
	select {
	case cs.fanout <- ev:
	case <-time.After(time.Second):
		log.Warn().Msg("ledger event fanout stalled, dropping event")
	}
}
