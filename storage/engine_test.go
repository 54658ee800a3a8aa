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

package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketgw/types"
)

func testSub() types.DataSubscription {
	return types.DataSubscription{
		Symbol:       types.Symbol{Name: "BTC-USD", Vendor: "COINBASE", MarketType: types.MarketCrypto},
		Resolution:   types.Resolution{Kind: types.ResMinute, Count: 1},
		BaseDataType: types.DataCandle,
	}
}

func closedCandle(at time.Time, close string) types.BaseData {
	return types.BaseData{
		Type:   types.DataCandle,
		Symbol: testSub().Symbol,
		Time:   at,
		Candle: &types.Candle{Close: decimal.RequireFromString(close), IsClosed: true},
	}
}

// TestSave_RoundTripsThroughRange verifies a saved record can be read back
// by Range over a window containing it.
func TestSave_RoundTripsThroughRange(t *testing.T) {
	e := New(t.TempDir())
	sub := testSub()
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	require.NoError(t, e.Save(sub, closedCandle(at, "100")))

	records, err := e.Range(sub, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Candle.Close.Equal(decimal.RequireFromString("100")))
}

// TestSave_UnclosedCandleIsDropped verifies the persistence invariant: only
// closed bars are ever written to disk.
func TestSave_UnclosedCandleIsDropped(t *testing.T) {
	e := New(t.TempDir())
	sub := testSub()
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	unclosed := closedCandle(at, "100")
	unclosed.Candle.IsClosed = false

	require.NoError(t, e.Save(sub, unclosed))

	records, err := e.Range(sub, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records, "expected unclosed candle to be dropped")
}

// TestSaveBulk_SameTimestampDedupsLastWriteWins verifies that re-saving a
// record for a timestamp already on disk overwrites rather than
// duplicates it, per the day file's merge-by-close-time dedup rule.
func TestSaveBulk_SameTimestampDedupsLastWriteWins(t *testing.T) {
	e := New(t.TempDir())
	sub := testSub()
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	require.NoError(t, e.Save(sub, closedCandle(at, "100")))
	require.NoError(t, e.Save(sub, closedCandle(at, "200")))

	records, err := e.Range(sub, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1, "expected dedup to leave exactly 1 record")
	assert.True(t, records[0].Candle.Close.Equal(decimal.RequireFromString("200")), "expected the later write (200) to win")
}

// TestRange_OrdersRecordsAscendingByCloseTime verifies Range returns
// records in ascending close-time order regardless of insertion order or
// which day file they came from.
func TestRange_OrdersRecordsAscendingByCloseTime(t *testing.T) {
	e := New(t.TempDir())
	sub := testSub()
	day1 := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC)

	require.NoError(t, e.Save(sub, closedCandle(day2, "200")))
	require.NoError(t, e.Save(sub, closedCandle(day1, "100")))

	records, err := e.Range(sub, day1.Add(-time.Hour), day2.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].TimeClosedUTC().Before(records[1].TimeClosedUTC()), "expected ascending order")
}

// TestAsOf_ReturnsLatestRecordAtOrBeforeT verifies AsOf walks backward to
// the most recent record whose close time does not exceed t.
func TestAsOf_ReturnsLatestRecordAtOrBeforeT(t *testing.T) {
	e := New(t.TempDir())
	sub := testSub()
	early := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)

	require.NoError(t, e.Save(sub, closedCandle(early, "100")))
	require.NoError(t, e.Save(sub, closedCandle(late, "200")))

	got, err := e.AsOf(sub, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, got, "expected a record at or before noon")
	assert.True(t, got.Candle.Close.Equal(decimal.RequireFromString("100")), "expected the earlier record (100)")
}

// TestAsOf_NoRecordBeforeTReturnsNil verifies AsOf reports no match (not an
// error) when every stored record postdates t.
func TestAsOf_NoRecordBeforeTReturnsNil(t *testing.T) {
	e := New(t.TempDir())
	sub := testSub()
	late := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	require.NoError(t, e.Save(sub, closedCandle(late, "200")))

	got, err := e.AsOf(sub, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, got, "expected no match")
}

// TestEarliestAndLatest_SpanStoredDays verifies Earliest/Latest report the
// true boundary timestamps across multiple day files.
func TestEarliestAndLatest_SpanStoredDays(t *testing.T) {
	e := New(t.TempDir())
	sub := testSub()
	early := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	late := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)

	require.NoError(t, e.Save(sub, closedCandle(early, "100")))
	require.NoError(t, e.Save(sub, closedCandle(late, "200")))

	earliest, err := e.Earliest(sub)
	require.NoError(t, err)
	require.NotNil(t, earliest)
	assert.True(t, earliest.Equal(early))

	latest, err := e.Latest(sub)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(late))
}

// TestRangeBulk_MergesSubscriptionsByTimestamp verifies RangeBulk merges
// records from multiple subscriptions into nanosecond-keyed buckets so a
// caller can replay several symbols/resolutions in lockstep.
func TestRangeBulk_MergesSubscriptionsByTimestamp(t *testing.T) {
	e := New(t.TempDir())
	subA := testSub()
	subB := testSub()
	subB.Symbol.Name = "ETH-USD"
	at := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	require.NoError(t, e.Save(subA, closedCandle(at, "100")))
	require.NoError(t, e.Save(subB, closedCandle(at, "10")))

	slices, err := e.RangeBulk([]types.DataSubscription{subA, subB}, at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	slice, ok := slices[at.UnixNano()]
	require.True(t, ok, "expected a merged slice keyed by the shared timestamp")
	assert.Len(t, slice, 2)
}
