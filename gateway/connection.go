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
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"marketgw/gatewayerr"
	"marketgw/types"
	"marketgw/wire"
)

// connection is one strategy's TCP session. Reads happen on a single
// connection goroutine; every decoded request is handed to its own
// dispatch goroutine so a slow historical-data query never head-of-line
// blocks a concurrent order-cancel on the same socket. A single writer
// goroutine owns the underlying net.Conn so concurrent dispatch goroutines
// never interleave partial frames.
type connection struct {
	streamID string
	conn     net.Conn
	server   *Server

	writeCh   chan wire.Response
	done      chan struct{}
	closeOnce sync.Once

	subsMu sync.Mutex
	subs   map[string]activeSub // subscription key -> live receiver state
}

// activeSub pairs a live subscription with the cancel func of its
// forwarding goroutine, so disconnect can both stop the forwarder and
// release the registry receiver.
type activeSub struct {
	sub    types.DataSubscription
	cancel context.CancelFunc
}

func newConnection(streamID string, conn net.Conn, s *Server) *connection {
	return &connection{
		streamID: streamID,
		conn:     conn,
		server:   s,
		writeCh:  make(chan wire.Response, 64),
		done:     make(chan struct{}),
		subs:     make(map[string]activeSub),
	}
}

// run drives the connection's lifetime: it registers with the server's
// connectionSet so ledger events reach this strategy, starts the writer
// loop, then reads frames until the peer disconnects or ctx is cancelled.
func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.server.Connections != nil {
		c.server.Connections.register <- c
		defer func() { c.server.Connections.unregister <- c }()
	}

	go c.writeLoop()
	defer c.close()

	reader := bufio.NewReader(c.conn)
	for {
		payload, err := wire.ReadFrame(reader)
		if err != nil {
			log.Debug().Str("stream", c.streamID).Err(err).Msg("strategy connection closed")
			return
		}

		var req wire.Request
		if err := wire.Decode(payload, &req); err != nil {
			c.sendError(0, gatewayerr.InvalidRequest("malformed request frame"))
			continue
		}

		go c.dispatch(ctx, req)
	}
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()

		c.subsMu.Lock()
		entries := make([]activeSub, 0, len(c.subs))
		for key, entry := range c.subs {
			entries = append(entries, entry)
			delete(c.subs, key)
		}
		c.subsMu.Unlock()

		// Release this strategy's receivers so the registry can issue the
		// upstream unsubscribe once the last consumer is gone.
		for _, entry := range entries {
			entry.cancel()
			if c.server.Registry != nil {
				_ = c.server.Registry.Unsubscribe(c.streamID, entry.sub)
			}
		}
	})
}

// writeLoop serializes every response and pushed event onto the wire.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case resp := <-c.writeCh:
			payload, err := wire.Encode(resp)
			if err != nil {
				log.Error().Err(err).Str("stream", c.streamID).Msg("encode response")
				continue
			}
			if err := wire.WriteFrame(c.conn, payload); err != nil {
				log.Debug().Str("stream", c.streamID).Err(err).Msg("write frame failed")
				c.close()
				return
			}
		}
	}
}

// send queues resp for the writer loop without blocking the caller's
// dispatch goroutine indefinitely; a connection that stops draining its
// write queue is treated the same as a lagging market-data receiver.
func (c *connection) send(resp wire.Response) {
	select {
	case c.writeCh <- resp:
	case <-c.done:
	case <-time.After(5 * time.Second):
		log.Warn().Str("stream", c.streamID).Msg("response write stalled, dropping")
	}
}

// pushEvent delivers a ledger-originated event out of band from any
// request/response correlation, per the gateway's same-connection push
// model for order, position and time-slice updates.
func (c *connection) pushEvent(ev types.StrategyEvent) {
	c.send(wire.Response{Kind: wire.RespStrategyEvent, StrategyEvent: &ev})
}

func (c *connection) sendError(callbackID uint64, err *gatewayerr.Error) {
	c.send(wire.Response{
		Kind:         wire.RespError,
		CallbackID:   callbackID,
		ErrorKind:    err.Kind.String(),
		ErrorMessage: err.Error(),
	})
}
