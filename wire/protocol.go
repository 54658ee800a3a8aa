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

package wire

import "marketgw/types"

// RequestKind is the exhaustive list of DataServerRequest kinds the core
// must handle, per the external-interfaces table.
type RequestKind int

const (
	ReqRegister RequestKind = iota
	ReqHistoricalBaseData
	ReqHistoricalBulk
	ReqSymbolsVendor
	ReqSymbolsBroker
	ReqResolutions
	ReqMarkets
	ReqBaseDataTypes
	ReqDecimalAccuracy
	ReqTickSize
	ReqSymbolInfo
	ReqAccountInfo
	ReqMarginRequired
	ReqStreamSubscribe
	ReqStreamUnsubscribe
	ReqOrderCreate
	ReqOrderCancel
	ReqOrderUpdate
	ReqOrderCancelAll
)

// Request is the single envelope type carried over the wire for every
// inbound message. Only the fields relevant to Kind are populated; this
// mirrors the tagged-union request shape from the external interfaces
// table without requiring one Go type per kind.
type Request struct {
	Kind          RequestKind
	CallbackID    uint64
	Vendor        types.Vendor
	Broker        string
	MarketType    types.MarketType
	SymbolName    string
	Subscription  types.DataSubscription
	Subscriptions []types.DataSubscription
	Time          string
	AccountID     string
	Quantity      string

	Order *OrderRequestBody
}

// OrderRequestBody carries the fields needed for Create/Cancel/Update/
// CancelAll order requests.
type OrderRequestBody struct {
	OrderID  types.OrderID
	Account  types.Account
	Symbol   types.Symbol
	Side     types.OrderSide
	Kind     types.OrderKind
	Price    string
	Quantity string
	Tag      string
	Brackets []types.Bracket
}

// ResponseKind mirrors RequestKind for the matching response, plus the
// error and stream-push kinds that have no direct request counterpart.
type ResponseKind int

const (
	RespHistoricalBaseData ResponseKind = iota
	RespHistoricalBulk
	RespSymbols
	RespResolutions
	RespMarkets
	RespBaseDataTypes
	RespDecimalAccuracy
	RespTickSize
	RespSymbolInfo
	RespAccountInfo
	RespMarginRequired
	RespSubscribe
	RespUnsubscribe
	RespOrderUpdates
	RespError
	RespStrategyEvent
)

// Response is the single envelope type carried over the wire for every
// outbound message.
type Response struct {
	Kind       ResponseKind
	CallbackID uint64

	Payload       []byte
	Subscription  types.DataSubscription
	Success       bool
	Reason        string
	ErrorKind     string
	ErrorMessage  string
	StrategyEvent *types.StrategyEvent
}
