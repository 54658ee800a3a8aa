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

package fanout

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketgw/ledger"
	"marketgw/subscription"
	"marketgw/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quoteSub() types.DataSubscription {
	return types.DataSubscription{
		Symbol:       types.Symbol{Name: "MNQ", Vendor: "RITHMIC", MarketType: types.MarketFutures},
		Resolution:   types.Resolution{Kind: types.ResInstant},
		BaseDataType: types.DataQuote,
	}
}

func TestParseTimestamp_AcceptsRFC3339AndUnixFractional(t *testing.T) {
	rfc, ok := ParseTimestamp("2024-10-01T12:30:00.25Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 1, 12, 30, 0, 250000000, time.UTC), rfc)

	unix, ok := ParseTimestamp("1727740800.5")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 500000000, time.UTC), unix)

	_, ok = ParseTimestamp("yesterday")
	assert.False(t, ok)
	_, ok = ParseTimestamp("")
	assert.False(t, ok)
}

func TestParseExchange_ClosedEnum(t *testing.T) {
	ex, ok := ParseExchange("CME")
	require.True(t, ok)
	assert.Equal(t, ExchangeCME, ex)

	ex, ok = ParseExchange("XCME")
	require.True(t, ok)
	assert.Equal(t, ExchangeCME, ex)

	ex, ok = ParseExchange("")
	require.True(t, ok)
	assert.Equal(t, ExchangeUnspecified, ex)

	_, ok = ParseExchange("MOONBASE")
	assert.False(t, ok)
}

func TestBook_BestReadsTopOfBook(t *testing.T) {
	b := NewBook()
	b.UpdateBid(dec("99"), dec("1"))
	b.UpdateBid(dec("98"), dec("5"))
	b.UpdateAsk(dec("101"), dec("2"))
	b.UpdateAsk(dec("102"), dec("4"))

	best, ok := b.Best()
	require.True(t, ok)
	assert.True(t, best.Bid.Equal(dec("99")))
	assert.True(t, best.BidSize.Equal(dec("1")))
	assert.True(t, best.Ask.Equal(dec("101")))
	assert.True(t, best.AskSize.Equal(dec("2")))
}

func TestBook_ZeroSizeDeletesLevel(t *testing.T) {
	b := NewBook()
	b.UpdateBid(dec("99"), dec("1"))
	b.UpdateBid(dec("98"), dec("5"))
	b.UpdateAsk(dec("101"), dec("2"))

	b.UpdateBid(dec("99"), dec("0"))
	best, ok := b.Best()
	require.True(t, ok)
	assert.True(t, best.Bid.Equal(dec("98")))

	bids, asks := b.Depth()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 1, asks)
}

func TestBook_EmptyFallsBackToCloseout(t *testing.T) {
	b := NewBook()
	_, ok := b.Best()
	require.False(t, ok)

	b.SetCloseout(dec("97.5"), dec("98.5"))
	best, ok := b.Best()
	require.True(t, ok)
	assert.True(t, best.Bid.Equal(dec("97.5")))
	assert.True(t, best.Ask.Equal(dec("98.5")))

	// A real level on both sides takes precedence over closeout marks.
	b.UpdateBid(dec("99"), dec("1"))
	b.UpdateAsk(dec("100"), dec("1"))
	best, ok = b.Best()
	require.True(t, ok)
	assert.True(t, best.Bid.Equal(dec("99")))
}

type recordingUpstream struct {
	subscribes   int
	unsubscribes int
}

func (u *recordingUpstream) Subscribe(sub types.DataSubscription) error {
	u.subscribes++
	return nil
}

func (u *recordingUpstream) Unsubscribe(sub types.DataSubscription) error {
	u.unsubscribes++
	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *subscription.Registry, *recordingUpstream, *ledger.Ledger) {
	t.Helper()
	upstream := &recordingUpstream{}
	book := ledger.New()
	d := NewDispatcher(upstream, book)
	registry := subscription.New(d)
	d.AttachRegistry(registry)
	return d, registry, upstream, book
}

func TestDispatcher_QuoteCarriesTopOfBook(t *testing.T) {
	d, registry, _, _ := newTestDispatcher(t)
	sub := quoteSub()

	ch, err := registry.Subscribe("strat-1", sub)
	require.NoError(t, err)

	d.Dispatch(sub, types.BaseData{
		Type:   types.DataQuote,
		Symbol: sub.Symbol,
		Time:   time.Now().UTC(),
		Quote:  &types.Quote{Bid: dec("99"), BidSize: dec("1"), Ask: dec("101"), AskSize: dec("1")},
	})
	// A deeper level arrives: the broadcast quote must still show the best.
	d.Dispatch(sub, types.BaseData{
		Type:   types.DataQuote,
		Symbol: sub.Symbol,
		Time:   time.Now().UTC(),
		Quote:  &types.Quote{Bid: dec("98"), BidSize: dec("3"), Ask: dec("102"), AskSize: dec("3")},
	})

	first := <-ch
	second := <-ch
	assert.True(t, first.Quote.Bid.Equal(dec("99")))
	assert.True(t, second.Quote.Bid.Equal(dec("99")), "deeper level must not displace top-of-book")
	assert.True(t, second.Quote.Ask.Equal(dec("101")))
}

func TestDispatcher_UnsubscribeDropsQuoteBook(t *testing.T) {
	d, registry, upstream, _ := newTestDispatcher(t)
	sub := quoteSub()

	_, err := registry.Subscribe("strat-1", sub)
	require.NoError(t, err)
	d.Dispatch(sub, types.BaseData{
		Type:   types.DataQuote,
		Symbol: sub.Symbol,
		Time:   time.Now().UTC(),
		Quote:  &types.Quote{Bid: dec("99"), BidSize: dec("1"), Ask: dec("101"), AskSize: dec("1")},
	})
	bids, asks := d.BookFor(sub.Symbol).Depth()
	require.Equal(t, 1, bids)
	require.Equal(t, 1, asks)

	require.NoError(t, registry.Unsubscribe("strat-1", sub))
	assert.Equal(t, 1, upstream.unsubscribes)

	bids, asks = d.BookFor(sub.Symbol).Depth()
	assert.Zero(t, bids, "quote book state must be dropped with the last subscriber")
	assert.Zero(t, asks)
}

func TestDispatcher_TickMarksHeldPositionsToMarket(t *testing.T) {
	d, _, _, book := newTestDispatcher(t)
	sub := quoteSub()
	account := types.Account{Broker: "prime", AccountID: "acct-1"}

	require.NoError(t, book.ApplyFill(types.Fill{
		OrderID:  "ord-1",
		Account:  account,
		Symbol:   sub.Symbol,
		Side:     types.OrderBuy,
		Price:    dec("100"),
		Quantity: dec("2"),
	}, time.Now()))

	d.Dispatch(sub, types.BaseData{
		Type:   types.DataTick,
		Symbol: sub.Symbol,
		Time:   time.Now().UTC(),
		Tick:   &types.Tick{Price: dec("103"), Volume: dec("1")},
	})

	pos, ok := book.Position(account, sub.Symbol)
	require.True(t, ok)
	assert.True(t, pos.OpenPnL.Equal(dec("6")), "long 2 marked from 100 to 103 opens 6")
}
