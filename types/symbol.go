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

// Package types defines the core entities shared across the gateway:
// symbols, subscriptions, base data, accounts, positions, orders and the
// strategy-facing event union. None of these types carry behavior beyond
// simple constructors and key derivation - the packages that own state
// (storage, ledger, subscription) live elsewhere.
package types

import "fmt"

// MarketType identifies the kind of venue a Symbol trades on.
type MarketType int

const (
	MarketUnspecified MarketType = iota
	MarketFutures
	MarketForex
	MarketCFD
	MarketCrypto
	MarketFundamentals
)

func (m MarketType) String() string {
	switch m {
	case MarketFutures:
		return "Futures"
	case MarketForex:
		return "Forex"
	case MarketCFD:
		return "CFD"
	case MarketCrypto:
		return "Crypto"
	case MarketFundamentals:
		return "Fundamentals"
	default:
		return "Unspecified"
	}
}

// Vendor identifies the upstream data/broker source of a Symbol.
type Vendor string

// Symbol is an immutable (name, vendor, market_type) tuple. Two Symbols
// with identical fields are interchangeable keys.
type Symbol struct {
	Name       string
	Vendor     Vendor
	MarketType MarketType
	// Exchange carries the venue-specific exchange code for Futures
	// symbols (e.g. "CME"); empty for market types that do not need it.
	Exchange string
}

// Key returns a stable string usable as a map key or path component.
func (s Symbol) Key() string {
	if s.Exchange != "" {
		return fmt.Sprintf("%s|%s|%s|%s", s.Vendor, s.MarketType, s.Exchange, s.Name)
	}
	return fmt.Sprintf("%s|%s|%s", s.Vendor, s.MarketType, s.Name)
}

func (s Symbol) String() string {
	return s.Name
}
