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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"marketgw/types"
)

// CatalogEntry describes one recorded (vendor, symbol, resolution, data
// type) leaf of the storage tree and its time coverage.
type CatalogEntry struct {
	Vendor     types.Vendor
	Symbol     string
	MarketType string
	Resolution types.Resolution
	DataType   types.BaseDataType
	Earliest   time.Time
	Latest     time.Time
	Days       int64
}

// Entries walks the full storage tree and returns one entry per recorded
// leaf, sorted by (symbol, earliest). Unrecognized symbols/resolutions/
// data types are skipped with a diagnostic rather than aborting the walk.
func (e *Engine) Entries() ([]CatalogEntry, error) {
	var rows []CatalogEntry

	vendorEntries, err := os.ReadDir(e.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return rows, nil
		}
		return nil, fmt.Errorf("read vendor directory: %w", err)
	}

	for _, vendorEntry := range vendorEntries {
		if !vendorEntry.IsDir() {
			continue
		}
		vendorPath := filepath.Join(e.basePath, vendorEntry.Name())
		marketEntries, err := os.ReadDir(vendorPath)
		if err != nil {
			continue
		}
		for _, marketEntry := range marketEntries {
			if !marketEntry.IsDir() {
				continue
			}
			symbolsPath := filepath.Join(vendorPath, marketEntry.Name())
			symbolEntries, err := os.ReadDir(symbolsPath)
			if err != nil {
				continue
			}
			for _, symbolEntry := range symbolEntries {
				if !symbolEntry.IsDir() {
					continue
				}
				e.catalogSymbol(vendorEntry.Name(), marketEntry.Name(), symbolEntry.Name(),
					filepath.Join(symbolsPath, symbolEntry.Name()), &rows)
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Symbol != rows[j].Symbol {
			return rows[i].Symbol < rows[j].Symbol
		}
		return rows[i].Earliest.Before(rows[j].Earliest)
	})
	return rows, nil
}

// Catalog walks the full storage tree and writes a CSV manifest of
// (symbol, market_type, resolution, data_type, earliest, latest, days).
func (e *Engine) Catalog(exportPath string) error {
	rows, err := e.Entries()
	if err != nil {
		return err
	}
	return writeCatalogCSV(exportPath, rows)
}

func (e *Engine) catalogSymbol(vendorName, marketName, symbolName, symbolPath string, rows *[]CatalogEntry) {
	resEntries, err := os.ReadDir(symbolPath)
	if err != nil {
		return
	}
	for _, resEntry := range resEntries {
		if !resEntry.IsDir() {
			continue
		}
		resolution, err := types.ParseResolution(resEntry.Name())
		if err != nil {
			fmt.Fprintf(os.Stderr, "catalog: skipping symbol %s: %v\n", symbolName, err)
			continue
		}
		dtPath := filepath.Join(symbolPath, resEntry.Name())
		dtEntries, err := os.ReadDir(dtPath)
		if err != nil {
			continue
		}
		for _, dtEntry := range dtEntries {
			if !dtEntry.IsDir() {
				continue
			}
			dataType, err := types.ParseBaseDataType(dtEntry.Name())
			if err != nil {
				fmt.Fprintf(os.Stderr, "catalog: skipping symbol %s: %v\n", symbolName, err)
				continue
			}

			var marketType types.MarketType
			for m := types.MarketUnspecified; m <= types.MarketFundamentals; m++ {
				if m.String() == marketName {
					marketType = m
				}
			}
			sym := types.Symbol{Name: symbolName, Vendor: types.Vendor(vendorName), MarketType: marketType}
			sub := types.DataSubscription{Symbol: sym, Resolution: resolution, BaseDataType: dataType}

			earliest, _ := e.Earliest(sub)
			latest, _ := e.Latest(sub)
			if earliest == nil || latest == nil {
				continue
			}
			days := int64(latest.Sub(*earliest).Hours() / 24)
			*rows = append(*rows, CatalogEntry{
				Vendor:     types.Vendor(vendorName),
				Symbol:     symbolName,
				MarketType: marketName,
				Resolution: resolution,
				DataType:   dataType,
				Earliest:   *earliest,
				Latest:     *latest,
				Days:       days,
			})
		}
	}
}

func writeCatalogCSV(path string, rows []CatalogEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create catalog file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"Symbol", "MarketType", "Resolution", "DataType", "EarliestDate", "LatestDate", "DaysOfHistory"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{
			r.Symbol, r.MarketType, r.Resolution.String(), r.DataType.String(),
			r.Earliest.Format("2006-01-02T15:04:05Z07:00"), r.Latest.Format("2006-01-02T15:04:05Z07:00"),
			strconv.FormatInt(r.Days, 10),
		}); err != nil {
			return err
		}
	}
	return nil
}
