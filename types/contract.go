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

package types

import "github.com/shopspring/decimal"

// ContractSpec carries the per-symbol tick economics needed to translate a
// raw price difference into booked PnL: a one-tick move in price is worth
// ValuePerTick, and a tick is TickSize wide. For a 1:1 instrument (most
// crypto/forex spot symbols) both are 1 and Multiplier is a no-op.
type ContractSpec struct {
	TickSize     decimal.Decimal
	ValuePerTick decimal.Decimal
}

// DefaultContractSpec is assumed for any symbol without an explicit spec:
// a one unit price move books one unit of PnL per unit of quantity.
var DefaultContractSpec = ContractSpec{TickSize: decimal.NewFromInt(1), ValuePerTick: decimal.NewFromInt(1)}

// Multiplier returns ValuePerTick / TickSize, the factor a raw
// (fill_price - average_fill_price) * quantity figure must be scaled by to
// arrive at booked PnL in account currency. A zero or unset TickSize falls
// back to 1 to avoid dividing by zero.
func (c ContractSpec) Multiplier() decimal.Decimal {
	if c.TickSize.IsZero() {
		return decimal.NewFromInt(1)
	}
	return c.ValuePerTick.Div(c.TickSize)
}
