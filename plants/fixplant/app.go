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

package fixplant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quickfixgo/quickfix"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"marketgw/builder"
	"marketgw/constants"
	"marketgw/fanout"
	"marketgw/gatewayerr"
	"marketgw/ledger"
	"marketgw/storage"
	"marketgw/types"
	"marketgw/utils"
)

// Config carries the per-venue credentials and session identifiers a Plant
// authenticates with on logon.
type Config struct {
	ApiKey       string
	ApiSecret    string
	Passphrase   string
	SenderCompId string
	TargetCompId string
	PortfolioId  string
	Vendor       types.Vendor
	Broker       string
	MarketType   types.MarketType
}

// Plant implements session.Plant and quickfix.Application against a single
// FIX market-data/order-entry session. It bridges inbound FIX traffic into
// the vendor-agnostic types used by the storage engine, subscription
// registry, and order ledger.
type Plant struct {
	config *Config
	ledger *ledger.Ledger
	store  *storage.Engine
	trades *TradeStore

	dispatcher *fanout.Dispatcher

	mu         sync.Mutex
	reqIDBySub map[string]string
	activeSubs map[string]types.DataSubscription
	sessionID  quickfix.SessionID

	shouldExit    bool
	everLoggedIn  bool
	lastLogonTime time.Time
}

// NewPlant wires a Plant to the shared storage engine and order ledger; the
// caller registers the returned Plant's Subscribe/Unsubscribe as the
// subscription registry's UpstreamController.
func NewPlant(config *Config, store *storage.Engine, led *ledger.Ledger) *Plant {
	return &Plant{
		config:     config,
		ledger:     led,
		store:      store,
		trades:     NewTradeStore(10000),
		reqIDBySub: make(map[string]string),
		activeSubs: make(map[string]types.DataSubscription),
	}
}

// AttachDispatcher lets the plant feed normalized market data into the
// fan-out layer once the gateway has constructed it with this plant behind
// its UpstreamController (avoids a construction cycle).
func (p *Plant) AttachDispatcher(d *fanout.Dispatcher) {
	p.dispatcher = d
}

func (p *Plant) Name() string {
	return string(p.config.Vendor)
}

// Connect is a no-op for quickfixgo: the quickfix.Initiator owns the TCP
// connection lifecycle and drives OnCreate/OnLogon through callbacks.
func (p *Plant) Connect(ctx context.Context) error {
	return nil
}

// Logon blocks until OnLogon fires or the context deadline expires.
func (p *Plant) Logon(ctx context.Context) error {
	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	for time.Now().Before(deadline) {
		if !p.lastLogonTime.IsZero() {
			return nil
		}
		if p.shouldExit {
			return gatewayerr.InvalidApiKey("fix logon rejected")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return gatewayerr.ConnectionLost("fix logon timed out")
}

func (p *Plant) Logout(ctx context.Context) error {
	return quickfix.UnregisterSession(p.sessionID)
}

// SendHeartbeat issues no explicit action: quickfixgo's session owns
// heartbeat framing once logged in. The session.Manager's heartbeat loop
// still calls this to observe liveness; a non-logged-in session reports an
// error so the manager can transition to Reconnecting.
func (p *Plant) SendHeartbeat(ctx context.Context) error {
	if p.lastLogonTime.IsZero() {
		return gatewayerr.ConnectionLost("fix session not logged on")
	}
	return nil
}

func (p *Plant) OnCreate(sid quickfix.SessionID) {
	p.sessionID = sid
}

func (p *Plant) OnLogout(sid quickfix.SessionID) {
	log.Info().Str("session", sid.String()).Msg("fix logout")
	sinceLogon := time.Since(p.lastLogonTime)
	if p.lastLogonTime.IsZero() || sinceLogon < 5*time.Second {
		log.Warn().Msg("fix authentication failed shortly after logon, suppressing reconnect loop")
		p.shouldExit = true
	}
	// Clear so a subsequent Logon() call (session.Manager's reconnect loop)
	// waits for a fresh OnLogon instead of observing the prior session's
	// timestamp and returning immediately.
	p.lastLogonTime = time.Time{}
}

func (p *Plant) FromAdmin(_ *quickfix.Message, _ quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

func (p *Plant) ToApp(_ *quickfix.Message, _ quickfix.SessionID) error {
	return nil
}

func (p *Plant) OnLogon(sid quickfix.SessionID) {
	p.sessionID = sid
	p.lastLogonTime = time.Now()
	log.Info().Str("session", sid.String()).Msg("fix logon")

	if p.everLoggedIn {
		p.resubscribeAll()
	}
	p.everLoggedIn = true
}

// resubscribeAll replays every subscription still on file after a
// reconnect, so a strategy never observes an unsubscribe event across a
// dropped and re-established FIX session.
func (p *Plant) resubscribeAll() {
	p.mu.Lock()
	subs := make([]types.DataSubscription, 0, len(p.activeSubs))
	for _, sub := range p.activeSubs {
		subs = append(subs, sub)
	}
	p.mu.Unlock()

	for _, sub := range subs {
		if err := p.Subscribe(sub); err != nil {
			log.Warn().Err(err).Str("symbol", sub.Symbol.Name).Msg("failed to resubscribe after fix reconnect")
		}
	}
}

func (p *Plant) ToAdmin(msg *quickfix.Message, _ quickfix.SessionID) {
	if t, _ := msg.Header.GetString(constants.TagMsgType); t == constants.MsgTypeLogon {
		ts := time.Now().UTC().Format(constants.FixTimeFormat)
		builder.BuildLogon(&msg.Body, ts, p.config.ApiKey, p.config.ApiSecret, p.config.Passphrase,
			p.config.TargetCompId, p.config.PortfolioId)
	}
}

// FromApp is the quickfix application-message entry point: every inbound
// market-data, execution, and rejection message is routed here by MsgType.
func (p *Plant) FromApp(msg *quickfix.Message, _ quickfix.SessionID) quickfix.MessageRejectError {
	msgType, _ := msg.Header.GetString(constants.TagMsgType)
	switch msgType {
	case constants.MsgTypeMarketDataSnapshot, constants.MsgTypeMarketDataIncremental:
		p.handleMarketDataMessage(msg, msgType)
	case constants.MsgTypeMarketDataReject:
		p.handleMarketDataReject(msg)
	case constants.MsgTypeExecutionReport:
		p.handleExecutionReport(msg)
	case constants.MsgTypeOrderCancelReject:
		p.handleOrderCancelReject(msg)
	case constants.MsgTypeReject:
		p.handleSessionReject(msg)
	case constants.MsgTypeBusinessReject:
		p.handleBusinessReject(msg)
	case constants.MsgTypeQuoteAcknowledgement:
		p.handleQuoteAck(msg)
	default:
		log.Debug().Str("msgType", msgType).Msg("unhandled fix application message")
	}
	return nil
}

func (p *Plant) ShouldExit() bool {
	return p.shouldExit
}

func (p *Plant) handleMarketDataMessage(msg *quickfix.Message, msgType string) {
	mdReqId := utils.GetString(msg, constants.TagMdReqId)
	symbolName := utils.GetString(msg, constants.TagSymbol)
	seqNum, _ := msg.Header.GetString(constants.TagMsgSeqNum)
	isSnapshot := msgType == constants.MsgTypeMarketDataSnapshot

	trades := extractTrades(msg, symbolName, mdReqId, isSnapshot, seqNum)
	if len(trades) == 0 {
		return
	}
	p.trades.AddTrades(symbolName, trades, isSnapshot, mdReqId)

	sym := types.Symbol{Name: symbolName, Vendor: p.config.Vendor, MarketType: p.config.MarketType}
	records := tradesToBaseData(trades, sym)
	for _, r := range records {
		sub := types.DataSubscription{Symbol: sym, Resolution: types.Resolution{Kind: types.ResInstant}, BaseDataType: r.Type}
		if err := p.store.Save(sub, r); err != nil {
			log.Error().Err(err).Str("symbol", symbolName).Msg("failed to persist market data")
		}
		if p.dispatcher != nil {
			p.dispatcher.Dispatch(sub, r)
		}
	}
}

func (p *Plant) handleMarketDataReject(msg *quickfix.Message) {
	mdReqId := utils.GetString(msg, constants.TagMdReqId)
	rejReason := utils.GetString(msg, constants.TagMdReqRejReason)
	text := utils.GetString(msg, constants.TagText)

	recent := p.trades.RecentTradesForRequest(mdReqId, 1)
	lastSeen := "none cached"
	if len(recent) > 0 {
		lastSeen = recent[len(recent)-1].Timestamp.Format(time.RFC3339)
	}

	log.Warn().Str("mdReqId", mdReqId).Str("reason", mdReqRejReasonDesc(rejReason)).Str("text", text).
		Str("lastTradeSeen", lastSeen).
		Msg("market data request rejected")
	p.trades.RemoveSubscriptionByReqId(mdReqId)
}

func mdReqRejReasonDesc(reason string) string {
	switch reason {
	case constants.MdReqRejReasonUnknownSymbol:
		return "unknown symbol"
	case constants.MdReqRejReasonDuplicateMdReqId:
		return "duplicate MdReqId"
	case constants.MdReqRejReasonInsufficientBandwidth:
		return "insufficient bandwidth"
	case constants.MdReqRejReasonInsufficientPermission:
		return "insufficient permission"
	case constants.MdReqRejReasonInvalidSubscriptionReqType:
		return "invalid SubscriptionRequestType"
	case constants.MdReqRejReasonInvalidMarketDepth:
		return "invalid MarketDepth"
	case constants.MdReqRejReasonUnsupportedMdUpdateType:
		return "unsupported MdUpdateType"
	case constants.MdReqRejReasonUnsupportedMdEntryType:
		return "unsupported MdEntryType"
	default:
		return "other"
	}
}

// handleExecutionReport parses an Execution Report (8) and applies it to
// the order ledger: new/replaced orders transition state, fills apply
// against the position via ledger.ApplyFill.
func (p *Plant) handleExecutionReport(msg *quickfix.Message) {
	clOrdID := utils.GetString(msg, constants.TagClOrdID)
	orderID := utils.GetString(msg, constants.TagOrderID)
	execID := utils.GetString(msg, constants.TagExecID)
	account := utils.GetString(msg, constants.TagAccount)
	symbolName := utils.GetString(msg, constants.TagSymbol)
	ordStatus := utils.GetString(msg, constants.TagOrdStatus)
	execType := utils.GetString(msg, constants.TagExecType)
	sideTag := utils.GetString(msg, constants.TagSide)
	ordRejReason := utils.GetString(msg, constants.TagOrdRejReason)
	text := utils.GetString(msg, constants.TagText)

	if clOrdID == "" {
		log.Warn().Str("execId", execID).Msg("execution report missing ClOrdID")
		return
	}

	acct := types.Account{Broker: p.config.Broker, AccountID: account}
	sym := types.Symbol{Name: symbolName, Vendor: p.config.Vendor, MarketType: p.config.MarketType}
	side := orderSideFromFix(sideTag)

	switch ordStatus {
	case constants.OrdStatusNew:
		_ = p.ledger.TransitionOrder(types.OrderID(clOrdID), types.OrderAccepted, "")
	case constants.OrdStatusRejected:
		_ = p.ledger.OrderRejected(types.OrderID(clOrdID), combineRejectText(ordRejReason, text))
	case constants.OrdStatusCanceled:
		_ = p.ledger.TransitionOrder(types.OrderID(clOrdID), types.OrderCancelled, "")
	case constants.OrdStatusPartiallyFilled, constants.OrdStatusFilled:
		lastPx := utils.GetString(msg, constants.TagLastPx)
		lastShares := utils.GetString(msg, constants.TagLastShares)
		if execType == constants.ExecTypeTrade && lastPx != "" && lastShares != "" {
			price, err1 := decimal.NewFromString(lastPx)
			qty, err2 := decimal.NewFromString(lastShares)
			if err1 == nil && err2 == nil && qty.IsPositive() {
				fill := types.Fill{OrderID: types.OrderID(orderID), Account: acct, Symbol: sym, Side: side, Price: price, Quantity: qty}
				if err := p.ledger.ApplyFill(fill, time.Now()); err != nil {
					log.Error().Err(err).Str("orderId", orderID).Msg("failed to apply fill")
				}
			}
		}
		next := types.OrderPartiallyFilled
		if ordStatus == constants.OrdStatusFilled {
			next = types.OrderFilled
		}
		_ = p.ledger.TransitionOrder(types.OrderID(clOrdID), next, "")
	default:
		log.Debug().Str("ordStatus", ordStatus).Str("clOrdId", clOrdID).Msg("unhandled OrdStatus")
	}
}

func combineRejectText(reason, text string) string {
	if text != "" {
		return fmt.Sprintf("%s: %s", reason, text)
	}
	return reason
}

func orderSideFromFix(tag string) types.OrderSide {
	if tag == constants.SideSell {
		return types.OrderSell
	}
	return types.OrderBuy
}

func (p *Plant) handleOrderCancelReject(msg *quickfix.Message) {
	origClOrdID := utils.GetString(msg, constants.TagOrigClOrdID)
	reason := utils.GetString(msg, constants.TagCxlRejReason)
	responseTo := utils.GetString(msg, constants.TagCxlRejResponseTo)
	text := utils.GetString(msg, constants.TagText)
	log.Warn().Str("origClOrdId", origClOrdID).Str("reason", reason).Str("responseTo", responseTo).Str("text", text).
		Msg("order cancel rejected")
}

func (p *Plant) handleSessionReject(msg *quickfix.Message) {
	refSeqNum := utils.GetString(msg, constants.TagRefSeqNum)
	refMsgType := utils.GetString(msg, constants.TagRefMsgType)
	reason := utils.GetString(msg, constants.TagSessionRejectReason)
	text := utils.GetString(msg, constants.TagText)
	log.Warn().Str("refSeqNum", refSeqNum).Str("refMsgType", refMsgType).Str("reason", reason).Str("text", text).
		Msg("session level reject")
}

func (p *Plant) handleBusinessReject(msg *quickfix.Message) {
	refSeqNum := utils.GetString(msg, constants.TagRefSeqNum)
	refMsgType := utils.GetString(msg, constants.TagRefMsgType)
	reason := utils.GetString(msg, constants.TagBusinessRejectReason)
	text := utils.GetString(msg, constants.TagText)
	log.Warn().Str("refSeqNum", refSeqNum).Str("refMsgType", refMsgType).Str("reason", reason).Str("text", text).
		Msg("business message reject")
}

func (p *Plant) handleQuoteAck(msg *quickfix.Message) {
	quoteReqID := utils.GetString(msg, constants.TagQuoteReqID)
	status := utils.GetString(msg, constants.TagQuoteAckStatus)
	reason := utils.GetString(msg, constants.TagQuoteRejectReason)
	text := utils.GetString(msg, constants.TagText)
	log.Warn().Str("quoteReqId", quoteReqID).Str("status", status).Str("reason", reason).Str("text", text).
		Msg("quote acknowledgement")
}
