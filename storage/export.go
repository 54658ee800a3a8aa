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
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"marketgw/types"
)

type ExportFormat int

const (
	ExportCSV ExportFormat = iota
	ExportJSON
)

func (f ExportFormat) extension() string {
	if f == ExportJSON {
		return "json"
	}
	return "csv"
}

// Export writes one file per source day covering [from, to] into dir.
// Export is idempotent: a day whose output file already exists is left
// untouched rather than re-exported.
func (e *Engine) Export(sub types.DataSubscription, from, to time.Time, dir string, format ExportFormat) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	for day := dayOf(from); !day.After(to); day = day.AddDate(0, 0, 1) {
		outPath := filepath.Join(dir, fmt.Sprintf("%04d%02d%02d.%s", day.Year(), int(day.Month()), day.Day(), format.extension()))
		if _, err := os.Stat(outPath); err == nil {
			continue // already exported for this day
		}

		dayEnd := day.Add(24*time.Hour - time.Nanosecond)
		records, err := e.Range(sub, day, dayEnd)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}

		var writeErr error
		switch format {
		case ExportCSV:
			writeErr = exportCSV(outPath, sub.BaseDataType, records)
		case ExportJSON:
			writeErr = exportJSON(outPath, records)
		}
		if writeErr != nil {
			return writeErr
		}
	}
	return nil
}

func exportCSV(path string, dt types.BaseDataType, records []types.BaseData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := columnsFor(dt)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row, ok := rowFor(r)
		if !ok {
			continue
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func columnsFor(dt types.BaseDataType) []string {
	switch dt {
	case types.DataCandle:
		return []string{"symbol", "time", "open", "high", "low", "close", "volume", "ask_volume", "bid_volume", "range"}
	case types.DataQuote:
		return []string{"symbol", "time", "bid", "bid_size", "ask", "ask_size"}
	case types.DataTick:
		return []string{"symbol", "time", "price", "volume", "exchange", "side"}
	case types.DataFundamental:
		return []string{"symbol", "time", "name", "value"}
	default:
		return []string{"symbol", "time"}
	}
}

func rowFor(r types.BaseData) ([]string, bool) {
	sym := r.Symbol.Name
	t := r.Time.UTC().Format(time.RFC3339)
	switch r.Type {
	case types.DataCandle:
		if r.Candle == nil {
			return nil, false
		}
		c := r.Candle
		return []string{sym, t, c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(),
			c.Volume.String(), c.AskVolume.String(), c.BidVolume.String(), c.Range.String()}, true
	case types.DataQuote:
		if r.Quote == nil {
			return nil, false
		}
		q := r.Quote
		return []string{sym, t, q.Bid.String(), q.BidSize.String(), q.Ask.String(), q.AskSize.String()}, true
	case types.DataTick:
		if r.Tick == nil {
			return nil, false
		}
		tk := r.Tick
		return []string{sym, t, tk.Price.String(), tk.Volume.String(), tk.Exchange, tk.Side}, true
	case types.DataFundamental:
		if r.Fundamental == nil {
			return nil, false
		}
		fd := r.Fundamental
		return []string{sym, t, fd.Name, fd.Value.String()}, true
	default:
		return []string{sym, t}, true
	}
}

func exportJSON(path string, records []types.BaseData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
