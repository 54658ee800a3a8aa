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

package constants

import "github.com/quickfixgo/quickfix"

// --- Message Types ---
const (
	// Admin Messages
	MsgTypeLogon            = "A" // Logon
	MsgTypeReject           = "3" // Session-level Reject
	MsgTypeBusinessReject   = "j" // Business Message Reject
	MsgTypeMarketDataReject = "Y" // Market Data Request Reject

	// Market Data Messages
	MsgTypeMarketDataRequest     = "V" // Market Data Request
	MsgTypeMarketDataSnapshot    = "W" // Market Data Snapshot/Full Refresh
	MsgTypeMarketDataIncremental = "X" // Market Data Incremental Refresh

	// Order Entry Messages
	MsgTypeNewOrderSingle       = "D" // New Order Single
	MsgTypeOrderCancelRequest   = "F" // Order Cancel Request
	MsgTypeOrderCancelReplace   = "G" // Order Cancel/Replace Request
	MsgTypeExecutionReport      = "8" // Execution Report
	MsgTypeOrderCancelReject    = "9" // Order Cancel Reject
	MsgTypeQuoteAcknowledgement = "b" // Quote Acknowledgement
)

// --- Protocol Constants ---
const (
	FixTimeFormat     = "20060102-15:04:05.000"
	FixBeginString    = "FIXT.1.1"
	EncryptMethodNone = "0"
	HeartBtInterval   = "30"
	DropCopyFlagYes   = "Y"
	MsgSeqNumInit     = "1"
)

// --- Subscription Request Types ---
const (
	SubscriptionRequestTypeSubscribe   = "1" // Subscribe
	SubscriptionRequestTypeUnsubscribe = "2" // Unsubscribe
)

// --- MD Entry Types ---
const (
	MdEntryTypeBid   = "0" // Bid
	MdEntryTypeOffer = "1" // Offer/Ask
	MdEntryTypeTrade = "2" // Trade
)

// --- MD Update Types ---
const (
	MdUpdateTypeIncremental = "1" // Incremental refresh
)

// --- Order Types (Tag 40) ---
const (
	OrdTypeMarket          = "1" // Market
	OrdTypeLimit           = "2" // Limit
	OrdTypeStop            = "3" // Stop
	OrdTypeMarketIfTouched = "J" // Market If Touched
	OrdTypeTrailingStop    = "P" // Pegged, used here for trailing-stop orders
)

// --- Side (Tag 54) ---
const (
	SideBuy  = "1" // Buy
	SideSell = "2" // Sell
)

// --- Time In Force (Tag 59) ---
const (
	TimeInForceGTC = "1" // Good Till Cancel
	TimeInForceIOC = "3" // Immediate or Cancel
	TimeInForceFOK = "4" // Fill or Kill
	TimeInForceGTD = "6" // Good Till Date
)

// --- Target Strategy (Tag 847) ---
const (
	TargetStrategyMarket = "M" // Market order
)

// --- Order Status (Tag 39) ---
const (
	OrdStatusNew             = "0" // New
	OrdStatusPartiallyFilled = "1" // Partially Filled
	OrdStatusFilled          = "2" // Filled
	OrdStatusCanceled        = "4" // Canceled
	OrdStatusRejected        = "8" // Rejected
)

// --- Execution Type (Tag 150) ---
const (
	ExecTypeTrade = "F" // Trade
)

// --- Handling Instruction (Tag 21) ---
const (
	HandlInstAutomatedNoIntervention = "1"
)

// --- Standard FIX Tags ---
var (
	TagAccount      = quickfix.Tag(1)
	TagBeginString  = quickfix.Tag(8)
	TagClOrdID      = quickfix.Tag(11)
	TagExecID       = quickfix.Tag(17)
	TagHandlInst    = quickfix.Tag(21)
	TagLastPx       = quickfix.Tag(31)
	TagLastShares   = quickfix.Tag(32)
	TagMsgSeqNum    = quickfix.Tag(34)
	TagMsgType      = quickfix.Tag(35)
	TagOrderID      = quickfix.Tag(37)
	TagOrderQty     = quickfix.Tag(38)
	TagOrdStatus    = quickfix.Tag(39)
	TagOrdType      = quickfix.Tag(40)
	TagOrigClOrdID  = quickfix.Tag(41)
	TagPrice        = quickfix.Tag(44)
	TagRefSeqNum    = quickfix.Tag(45)
	TagSenderCompId = quickfix.Tag(49)
	TagSendingTime  = quickfix.Tag(52)
	TagSide         = quickfix.Tag(54)
	TagSymbol       = quickfix.Tag(55)
	TagText         = quickfix.Tag(58)
	TagTimeInForce  = quickfix.Tag(59)
	TagTransactTime = quickfix.Tag(60)
	TagTargetCompId = quickfix.Tag(56)
	TagHmac         = quickfix.Tag(96)
	TagEncryptMethod = quickfix.Tag(98)
	TagOrdRejReason  = quickfix.Tag(103)
	TagCxlRejReason  = quickfix.Tag(102)
	TagHeartBtInt    = quickfix.Tag(108)
	TagQuoteReqID    = quickfix.Tag(131)
	TagNoRelatedSym  = quickfix.Tag(146)
	TagExecType      = quickfix.Tag(150)

	// Market Data Tags
	TagMdReqId                 = quickfix.Tag(262)
	TagSubscriptionRequestType = quickfix.Tag(263)
	TagMarketDepth             = quickfix.Tag(264)
	TagMdUpdateType            = quickfix.Tag(265)
	TagNoMdEntryTypes          = quickfix.Tag(267)
	TagNoMdEntries             = quickfix.Tag(268)
	TagMdEntryType             = quickfix.Tag(269)
	TagMdReqRejReason          = quickfix.Tag(281)

	// Quote Tags
	TagQuoteAckStatus    = quickfix.Tag(297)
	TagQuoteRejectReason = quickfix.Tag(300)

	// Reject Tags
	TagRefMsgType           = quickfix.Tag(372)
	TagSessionRejectReason  = quickfix.Tag(373)
	TagBusinessRejectReason = quickfix.Tag(380)

	// Order Tags
	TagCxlRejResponseTo = quickfix.Tag(434)
	TagPassword         = quickfix.Tag(554)
	TagTargetStrategy   = quickfix.Tag(847)

	// Coinbase Custom Tags
	TagDropCopyFlag = quickfix.Tag(9406)
	TagAccessKey    = quickfix.Tag(9407)
)

// --- MD Rejection Reasons ---
const (
	MdReqRejReasonUnknownSymbol              = "0"
	MdReqRejReasonDuplicateMdReqId           = "1"
	MdReqRejReasonInsufficientBandwidth      = "2"
	MdReqRejReasonInsufficientPermission     = "3"
	MdReqRejReasonInvalidSubscriptionReqType = "4"
	MdReqRejReasonInvalidMarketDepth         = "5"
	MdReqRejReasonUnsupportedMdUpdateType    = "6"
	MdReqRejReasonUnsupportedMdEntryType     = "8"
)
