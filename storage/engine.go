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

// Package storage is the day-partitioned, memory-mapped binary store for
// closed bars, ticks and fundamentals. Layout and merge algorithm are
// grounded on the hybrid storage engine this gateway's historical store
// design descends from: group by (symbol, resolution, type, day), merge
// into a close-time-ordered map, rewrite the day file, refresh the mmap
// cache entry.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"

	"marketgw/gatewayerr"
	"marketgw/types"
)

// Engine is the storage engine described in the component design: it owns
// the base directory and the memory-map cache.
type Engine struct {
	basePath string

	mu        sync.Mutex
	mmapCache map[string]*cacheEntry
}

type cacheEntry struct {
	data []byte
	mm   mmap.MMap // non-nil only when backed by a real mmap (len > 0)
	file *os.File
}

func New(basePath string) *Engine {
	return &Engine{
		basePath:  basePath,
		mmapCache: make(map[string]*cacheEntry),
	}
}

func (e *Engine) basePathFor(sym types.Symbol, res types.Resolution, dt types.BaseDataType) string {
	return filepath.Join(e.basePath, string(sym.Vendor), sym.MarketType.String(), sym.Name, res.String(), dt.String())
}

func (e *Engine) filePathFor(sym types.Symbol, res types.Resolution, dt types.BaseDataType, day time.Time) string {
	base := e.basePathFor(sym, res, dt)
	return filepath.Join(base,
		fmt.Sprintf("%04d", day.Year()),
		fmt.Sprintf("%02d", int(day.Month())),
		fmt.Sprintf("%04d%02d%02d.bin", day.Year(), int(day.Month()), day.Day()),
	)
}

func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Save persists a single record, merged into its day file. Unclosed
// records (open candles/quote bars) are silently dropped per the
// persistence invariant. The subscription carries the (symbol, resolution,
// type) key that addresses the record's day file.
func (e *Engine) Save(sub types.DataSubscription, data types.BaseData) error {
	if !data.IsClosed() {
		return nil
	}
	return e.saveGroup(sub.Symbol, sub.Resolution, sub.BaseDataType, dayOf(data.TimeClosedUTC()), []types.BaseData{data})
}

// SaveBulk groups many records by (symbol, resolution, type, day) and
// performs one merge per group.
func (e *Engine) SaveBulk(sub types.DataSubscription, data []types.BaseData) error {
	if len(data) == 0 {
		return nil
	}
	groups := make(map[time.Time][]types.BaseData)
	for _, d := range data {
		if !d.IsClosed() {
			continue
		}
		day := dayOf(d.TimeClosedUTC())
		groups[day] = append(groups[day], d)
	}
	for day, group := range groups {
		if err := e.saveGroup(sub.Symbol, sub.Resolution, sub.BaseDataType, day, group); err != nil {
			return err
		}
	}
	return nil
}

// saveGroup implements the merge-on-write algorithm: read existing file,
// fold into a close-time-keyed map for dedup (last write wins), rewrite
// the file, refresh the mmap cache entry.
func (e *Engine) saveGroup(sym types.Symbol, res types.Resolution, dt types.BaseDataType, day time.Time, newRecords []types.BaseData) error {
	path := e.filePathFor(sym, res, dt, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return gatewayerr.ServerError("create storage directory", err)
	}

	existing, err := readRecordsIfExists(path)
	if err != nil {
		return gatewayerr.ServerError(fmt.Sprintf("read existing day file %s", path), err)
	}

	merged := make(map[int64]types.BaseData, len(existing)+len(newRecords))
	for _, d := range existing {
		merged[d.TimeClosedUTC().UnixNano()] = d
	}
	for _, d := range newRecords {
		merged[d.TimeClosedUTC().UnixNano()] = d
	}

	keys := make([]int64, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	all := make([]types.BaseData, 0, len(keys))
	for _, k := range keys {
		all = append(all, merged[k])
	}

	bytes, err := encodeRecords(all)
	if err != nil {
		return gatewayerr.ServerError("encode day file", err)
	}

	if err := writeFileAtomically(path, bytes); err != nil {
		return gatewayerr.ServerError(fmt.Sprintf("write day file %s", path), err)
	}

	e.refreshCache(path, bytes)
	return nil
}

// writeFileAtomically truncates and rewrites path's contents, matching the
// merge algorithm's "rewrite file atomically (truncate + write)" step via
// a temp-file-and-rename so a crash mid-write cannot corrupt the existing
// file.
func writeFileAtomically(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (e *Engine) refreshCache(path string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old, ok := e.mmapCache[path]; ok {
		old.close()
	}
	e.mmapCache[path] = &cacheEntry{data: data}
}

// getOrCreateMmap returns the cached bytes for path, mmap-ing the file if
// not already cached. Old mappings already handed to readers remain valid
// until they are replaced by refreshCache on the next write - the Engine
// never mutates a cache entry in place.
func (e *Engine) getOrCreateMmap(path string) ([]byte, error) {
	e.mu.Lock()
	if entry, ok := e.mmapCache[path]; ok {
		e.mu.Unlock()
		return entry.data, nil
	}
	e.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		f.Close()
		e.mu.Lock()
		e.mmapCache[path] = &cacheEntry{data: nil}
		e.mu.Unlock()
		return nil, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if entry, ok := e.mmapCache[path]; ok {
		// Lost the race - another goroutine populated it first.
		m.Unmap()
		f.Close()
		return entry.data, nil
	}
	entry := &cacheEntry{data: []byte(m), mm: m, file: f}
	e.mmapCache[path] = entry
	return entry.data, nil
}

func (c *cacheEntry) close() {
	if c.mm != nil {
		c.mm.Unmap()
	}
	if c.file != nil {
		c.file.Close()
	}
}

func readRecordsIfExists(path string) ([]types.BaseData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decodeRecords(data)
}

// Range returns every record in [start, end] inclusive, ascending by close
// time, walking one day file at a time. A malformed day file is skipped
// silently rather than aborting the scan.
func (e *Engine) Range(sub types.DataSubscription, start, end time.Time) ([]types.BaseData, error) {
	var all []types.BaseData
	for day := dayOf(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		path := e.filePathFor(sub.Symbol, sub.Resolution, sub.BaseDataType, day)
		data, err := e.getOrCreateMmap(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, gatewayerr.ServerError(fmt.Sprintf("read day file %s", path), err)
		}
		if data == nil {
			continue
		}
		records, err := decodeRecords(data)
		if err != nil {
			// Malformed day file: skip, continue the scan.
			continue
		}
		for _, r := range records {
			t := r.TimeClosedUTC()
			if !t.Before(start) && !t.After(end) {
				all = append(all, r)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].TimeClosedUTC().Before(all[j].TimeClosedUTC())
	})
	return all, nil
}

// RangeBulk fetches several subscriptions over the same window and merges
// them into a single slice keyed by nanosecond close time, mirroring the
// bulk-fetch behavior recovered from the original implementation.
func (e *Engine) RangeBulk(subs []types.DataSubscription, start, end time.Time) (map[int64]types.TimeSlice, error) {
	combined := make(map[int64]types.TimeSlice)
	for _, sub := range subs {
		records, err := e.Range(sub, start, end)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			key := r.TimeClosedUTC().UnixNano()
			combined[key] = append(combined[key], r)
		}
	}
	return combined, nil
}

// AsOf returns the latest record with time <= t, walking backward up to 30
// days before giving up, to tolerate non-contiguous days (holidays,
// weekends).
func (e *Engine) AsOf(sub types.DataSubscription, t time.Time) (*types.BaseData, error) {
	const maxLookback = 30
	day := dayOf(t)
	for i := 0; i < maxLookback; i++ {
		path := e.filePathFor(sub.Symbol, sub.Resolution, sub.BaseDataType, day)
		data, err := e.getOrCreateMmap(path)
		if err == nil && data != nil {
			records, decErr := decodeRecords(data)
			if decErr == nil {
				var best *types.BaseData
				for i := range records {
					r := records[i]
					if !r.TimeClosedUTC().After(t) {
						if best == nil || r.TimeClosedUTC().After(best.TimeClosedUTC()) {
							rc := r
							best = &rc
						}
					}
				}
				if best != nil {
					return best, nil
				}
			}
		}
		day = day.AddDate(0, 0, -1)
	}
	return nil, nil
}

// Earliest returns the earliest stored timestamp for the subscription.
func (e *Engine) Earliest(sub types.DataSubscription) (*time.Time, error) {
	return e.boundary(sub, true)
}

// Latest returns the latest stored timestamp for the subscription.
func (e *Engine) Latest(sub types.DataSubscription) (*time.Time, error) {
	return e.boundary(sub, false)
}

func (e *Engine) boundary(sub types.DataSubscription, earliest bool) (*time.Time, error) {
	base := e.basePathFor(sub.Symbol, sub.Resolution, sub.BaseDataType)
	days, err := listDayFiles(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, gatewayerr.ServerError("list day files", err)
	}
	if len(days) == 0 {
		return nil, nil
	}
	sort.Strings(days)
	var target string
	if earliest {
		target = days[0]
	} else {
		target = days[len(days)-1]
	}
	data, err := e.getOrCreateMmap(target)
	if err != nil || data == nil {
		return nil, nil
	}
	records, err := decodeRecords(data)
	if err != nil || len(records) == 0 {
		return nil, nil
	}
	best := records[0].TimeClosedUTC()
	for _, r := range records[1:] {
		t := r.TimeClosedUTC()
		if (earliest && t.Before(best)) || (!earliest && t.After(best)) {
			best = t
		}
	}
	return &best, nil
}

// listDayFiles walks <base>/YYYY/MM/*.bin and returns their full paths.
func listDayFiles(base string) ([]string, error) {
	var out []string
	years, err := os.ReadDir(base)
	if err != nil {
		return nil, err
	}
	for _, y := range years {
		if !y.IsDir() {
			continue
		}
		months, err := os.ReadDir(filepath.Join(base, y.Name()))
		if err != nil {
			continue
		}
		for _, m := range months {
			if !m.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(base, y.Name(), m.Name()))
			if err != nil {
				continue
			}
			for _, f := range files {
				if filepath.Ext(f.Name()) == ".bin" {
					out = append(out, filepath.Join(base, y.Name(), m.Name(), f.Name()))
				}
			}
		}
	}
	return out, nil
}
