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

// Package builder constructs outbound FIX messages from the gateway's own
// domain types (types.Order, types.DataSubscription, ...), rather than from
// vendor-shaped parameter structs - the FIX tag mapping lives here, once,
// instead of being duplicated at every plant call site.
package builder

import (
	"time"

	"marketgw/constants"
	"marketgw/types"
	"marketgw/utils"

	"github.com/quickfixgo/quickfix"
)

// FieldSetter abstracts setting fields on FIX message components.
type FieldSetter interface {
	SetField(tag quickfix.Tag, field quickfix.FieldValueWriter) *quickfix.FieldMap
}

func setString(fs FieldSetter, tag quickfix.Tag, value string) {
	fs.SetField(tag, quickfix.FIXString(value))
}

// setStringIfNotEmpty sets a field only if the value is non-empty.
func setStringIfNotEmpty(fs FieldSetter, tag quickfix.Tag, value string) {
	if value != "" {
		fs.SetField(tag, quickfix.FIXString(value))
	}
}

// buildHeader sets common header fields for outgoing messages.
func buildHeader(header *quickfix.Header, msgType, senderCompId, targetCompId string) {
	setString(header, constants.TagBeginString, constants.FixBeginString)
	setString(header, constants.TagMsgType, msgType)
	setString(header, constants.TagSenderCompId, senderCompId)
	setString(header, constants.TagTargetCompId, targetCompId)
	setString(header, constants.TagSendingTime, time.Now().UTC().Format(constants.FixTimeFormat))
}

// fixSide maps the gateway's order side to the FIX Side (54) enum.
func fixSide(side types.OrderSide) string {
	if side == types.OrderSell {
		return constants.SideSell
	}
	return constants.SideBuy
}

// fixOrdType maps the gateway's order kind to the FIX OrdType (40) enum.
func fixOrdType(kind types.OrderKind) string {
	switch kind {
	case types.OrderLimit:
		return constants.OrdTypeLimit
	case types.OrderStop:
		return constants.OrdTypeStop
	case types.OrderMarketIfTouched:
		return constants.OrdTypeMarketIfTouched
	case types.OrderTrailingStop:
		return constants.OrdTypeTrailingStop
	default:
		return constants.OrdTypeMarket
	}
}

// fixTimeInForce maps the gateway's time-in-force to the FIX TimeInForce
// (59) enum.
func fixTimeInForce(tif types.TimeInForce) string {
	switch tif {
	case types.TIFImmediateOrCancel:
		return constants.TimeInForceIOC
	case types.TIFFillOrKill:
		return constants.TimeInForceFOK
	case types.TIFGoodTilDate:
		return constants.TimeInForceGTD
	default:
		return constants.TimeInForceGTC
	}
}

// entryTypesFor returns the FIX MDEntryType codes a given base data type
// subscribes to. Quote subscriptions track the top-of-book bid/offer;
// everything else tracks the trade tape.
func entryTypesFor(dt types.BaseDataType) []string {
	switch dt {
	case types.DataQuote:
		return []string{constants.MdEntryTypeBid, constants.MdEntryTypeOffer}
	default:
		return []string{constants.MdEntryTypeTrade}
	}
}

// --- Logon Message ---

func BuildLogon(
	body *quickfix.Body,
	ts, apiKey, apiSecret, passphrase, targetCompId, portfolioId string,
) {
	sig := utils.Sign(ts, constants.MsgTypeLogon, constants.MsgSeqNumInit, apiKey, targetCompId, passphrase, apiSecret)

	setString(body, constants.TagEncryptMethod, constants.EncryptMethodNone)
	setString(body, constants.TagHeartBtInt, constants.HeartBtInterval)

	setString(body, constants.TagPassword, passphrase)
	setString(body, constants.TagAccount, portfolioId)
	setString(body, constants.TagHmac, sig)
	// Per Coinbase Prime FIX API: use Tag 9407 (AccessKey) for API key
	// https://docs.cdp.coinbase.com/prime/fix-api/admin-messages
	setString(body, constants.TagAccessKey, apiKey)
	setString(body, constants.TagDropCopyFlag, constants.DropCopyFlagYes)
}

// --- Market Data Request ---

// BuildMarketDataRequest builds a Market Data Request (V) for sub, subscribing
// or unsubscribing depending on subscriptionRequestType. The MDEntryType
// group is derived from sub.BaseDataType so callers never hand-pick FIX
// entry codes.
func BuildMarketDataRequest(
	mdReqId string,
	sub types.DataSubscription,
	subscriptionRequestType string,
	marketDepth string,
	senderCompId string,
	targetCompId string,
) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeMarketDataRequest, senderCompId, targetCompId)

	setString(&m.Body, constants.TagMdReqId, mdReqId)
	setString(&m.Body, constants.TagSubscriptionRequestType, subscriptionRequestType)
	setString(&m.Body, constants.TagMarketDepth, marketDepth)

	if subscriptionRequestType == constants.SubscriptionRequestTypeSubscribe {
		setString(&m.Body, constants.TagMdUpdateType, constants.MdUpdateTypeIncremental)
	}

	mdEntryGroup := quickfix.NewRepeatingGroup(
		constants.TagNoMdEntryTypes,
		quickfix.GroupTemplate{quickfix.GroupElement(constants.TagMdEntryType)},
	)
	for _, entryType := range entryTypesFor(sub.BaseDataType) {
		setString(mdEntryGroup.Add(), constants.TagMdEntryType, entryType)
	}
	m.Body.SetGroup(mdEntryGroup)

	relatedSymGroup := quickfix.NewRepeatingGroup(
		constants.TagNoRelatedSym,
		quickfix.GroupTemplate{quickfix.GroupElement(constants.TagSymbol)},
	)
	setString(relatedSymGroup.Add(), constants.TagSymbol, sub.Symbol.Name)
	m.Body.SetGroup(relatedSymGroup)

	return m
}

// --- New Order Single (D) ---

// BuildNewOrderSingle creates a New Order Single (D) message for order,
// targeting the market execution strategy (M) for every order kind - the
// gateway books brackets and flattening itself rather than relying on an
// upstream execution strategy.
func BuildNewOrderSingle(order types.Order, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeNewOrderSingle, senderCompId, targetCompId)

	setString(&m.Body, constants.TagAccount, order.Account.AccountID)
	setString(&m.Body, constants.TagClOrdID, string(order.OrderID))
	setString(&m.Body, constants.TagSymbol, order.Symbol.Name)
	setString(&m.Body, constants.TagSide, fixSide(order.Side))
	setString(&m.Body, constants.TagOrdType, fixOrdType(order.Kind))
	setString(&m.Body, constants.TagTargetStrategy, constants.TargetStrategyMarket)
	setString(&m.Body, constants.TagTimeInForce, fixTimeInForce(order.TimeInForce))
	setString(&m.Body, constants.TagTransactTime, time.Now().UTC().Format(constants.FixTimeFormat))

	setStringIfNotEmpty(&m.Body, constants.TagOrderQty, order.QuantityOpen.String())
	if order.Kind != types.OrderMarket {
		setStringIfNotEmpty(&m.Body, constants.TagPrice, order.Price.String())
	}

	return m
}

// --- Order Cancel Request (F) ---

// BuildOrderCancelRequest creates an Order Cancel Request (F) message
// canceling the working order identified by orderID.
func BuildOrderCancelRequest(orderID types.OrderID, symbol types.Symbol, side types.OrderSide, clOrdID, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeOrderCancelRequest, senderCompId, targetCompId)

	setString(&m.Body, constants.TagClOrdID, clOrdID)
	setString(&m.Body, constants.TagOrigClOrdID, string(orderID))
	setString(&m.Body, constants.TagOrderID, string(orderID))
	setString(&m.Body, constants.TagSymbol, symbol.Name)
	setString(&m.Body, constants.TagSide, fixSide(side))
	setString(&m.Body, constants.TagTransactTime, time.Now().UTC().Format(constants.FixTimeFormat))

	return m
}

// --- Order Cancel/Replace Request (G) ---

// BuildOrderCancelReplaceRequest creates an Order Cancel/Replace Request (G)
// message changing price and/or quantity on a working order without losing
// its place via a separate cancel-then-resubmit. The replacement always
// carries a limit OrdType, whatever the kind of the working order.
func BuildOrderCancelReplaceRequest(orderID types.OrderID, symbol types.Symbol, side types.OrderSide, clOrdID, price, quantity, senderCompId, targetCompId string) *quickfix.Message {
	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeOrderCancelReplace, senderCompId, targetCompId)

	setString(&m.Body, constants.TagClOrdID, clOrdID)
	setString(&m.Body, constants.TagOrigClOrdID, string(orderID))
	setString(&m.Body, constants.TagOrderID, string(orderID))
	setString(&m.Body, constants.TagSymbol, symbol.Name)
	setString(&m.Body, constants.TagSide, fixSide(side))
	setString(&m.Body, constants.TagOrdType, constants.OrdTypeLimit)
	setString(&m.Body, constants.TagHandlInst, constants.HandlInstAutomatedNoIntervention)
	setString(&m.Body, constants.TagTransactTime, time.Now().UTC().Format(constants.FixTimeFormat))
	setString(&m.Body, constants.TagPrice, price)
	setStringIfNotEmpty(&m.Body, constants.TagOrderQty, quantity)

	return m
}
