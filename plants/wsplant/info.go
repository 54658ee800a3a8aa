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

package wsplant

import (
	"fmt"
	"strconv"
	"time"

	"marketgw/gatewayerr"
	"marketgw/session"
)

// infoRequest asks the venue for static symbol/account metadata; the
// response is correlated back through the session manager's callback
// slots by request_id.
type infoRequest struct {
	Op        string `json:"op"`
	RequestID uint64 `json:"request_id"`
	Kind      string `json:"kind"`
	Symbol    string `json:"symbol,omitempty"`
	Account   string `json:"account,omitempty"`
	Quantity  string `json:"quantity,omitempty"`
}

type infoResponse struct {
	RequestID uint64            `json:"request_id"`
	Fields    map[string]string `json:"fields"`
}

const infoTimeout = 5 * time.Second

// AttachSession hands the plant its session manager so info queries can
// register one-shot callback slots on it (the manager is constructed
// around the plant, so this closes the loop after both exist).
func (p *Plant) AttachSession(m *session.Manager) {
	p.session = m
}

func (p *Plant) queryInfo(kind, symbol, account, quantity string) (map[string]string, error) {
	if p.session == nil {
		return nil, gatewayerr.ServerError("wsplant info query before session attach", nil)
	}
	ch, id := p.session.RegisterCallback(0)
	req := infoRequest{Op: "info", RequestID: id, Kind: kind, Symbol: symbol, Account: account, Quantity: quantity}
	if err := p.writeJSON(req); err != nil {
		p.session.GCCallback(id)
		return nil, fmt.Errorf("wsplant info request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, gatewayerr.ConnectionLost("session shut down awaiting info response")
		}
		fields, ok := resp.(map[string]string)
		if !ok {
			return nil, gatewayerr.ServerError(fmt.Sprintf("unexpected info response shape for %s", kind), nil)
		}
		return fields, nil
	case <-time.After(infoTimeout):
		p.session.GCCallback(id)
		return nil, gatewayerr.ConnectionLost(fmt.Sprintf("info query %s timed out", kind))
	}
}

// DecimalAccuracy reports the number of decimal places the venue quotes a
// symbol's prices in.
func (p *Plant) DecimalAccuracy(symbolName string) (int32, error) {
	fields, err := p.queryInfo("decimal_accuracy", symbolName, "", "")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(fields["decimal_accuracy"])
	if err != nil {
		return 0, gatewayerr.ServerError(fmt.Sprintf("malformed decimal_accuracy for %s", symbolName), err)
	}
	return int32(n), nil
}

// TickSize reports the venue's minimum price increment for a symbol.
func (p *Plant) TickSize(symbolName string) (string, error) {
	fields, err := p.queryInfo("tick_size", symbolName, "", "")
	if err != nil {
		return "", err
	}
	return fields["tick_size"], nil
}

// SymbolInfo returns the venue's full metadata record for a symbol.
func (p *Plant) SymbolInfo(symbolName string) (map[string]string, error) {
	return p.queryInfo("symbol_info", symbolName, "", "")
}

// AccountInfo returns the venue's metadata record for an account.
func (p *Plant) AccountInfo(accountID string) (map[string]string, error) {
	return p.queryInfo("account_info", "", accountID, "")
}

// MarginRequired reports the margin the venue requires to carry quantity
// of a symbol.
func (p *Plant) MarginRequired(symbolName, quantity string) (string, error) {
	fields, err := p.queryInfo("margin_required", symbolName, "", quantity)
	if err != nil {
		return "", err
	}
	return fields["margin_required"], nil
}
