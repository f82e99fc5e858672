// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package history

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"heatdoors/internal/events"
	"heatdoors/pkg/eventbus"
	"heatdoors/pkg/logger"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const SnapshotFilename = "heatdoors_history.json.gz"

var ErrNoSamples = errors.New("no samples in interval")

// Entry is one downsampled tick.
type Entry struct {
	Time         time.Time `json:"time"`
	TemperatureC float64   `json:"temperature_c"`
	Fresh        bool      `json:"fresh"`
	SetpointC    float64   `json:"setpoint_c"`
	Duty         float64   `json:"duty"`
	State        string    `json:"state"`
}

// Field selects the value to aggregate.
type Field func(Entry) (float64, bool)

var (
	Temperature Field = func(e Entry) (float64, bool) { return e.TemperatureC, e.Fresh }
	Duty        Field = func(e Entry) (float64, bool) { return e.Duty, true }
	Error       Field = func(e Entry) (float64, bool) { return e.SetpointC - e.TemperatureC, e.Fresh }
)

type History struct {
	mu         sync.RWMutex
	entries    []Entry
	resolution time.Duration
	retain     time.Duration
	file       string
	saveEvery  time.Duration
	now        func() time.Time
	log        *logger.Logger
}

type Option func(*History)

func WithClock(now func() time.Time) Option { return func(h *History) { h.now = now } }

func WithSaveEvery(d time.Duration) Option { return func(h *History) { h.saveEvery = d } }

// New returns a history keeping one entry per resolution for retain.
// An existing snapshot in dataDir is restored; an empty dataDir disables persistence.
func New(dataDir string, resolution, retain time.Duration, opts ...Option) *History {
	h := &History{
		resolution: resolution,
		retain:     retain,
		saveEvery:  15 * time.Minute,
		now:        time.Now,
		log:        logger.New("History"),
	}
	if dataDir != "" {
		h.file = filepath.Join(dataDir, SnapshotFilename)
	}
	for _, o := range opts {
		o(h)
	}
	h.loadFromDisk()
	return h
}

// Add records d if at least one resolution has passed since the last entry.
func (h *History) Add(d events.TickDiagnostics) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.entries); n > 0 && d.Time.Sub(h.entries[n-1].Time) < h.resolution {
		return false
	}
	h.entries = append(h.entries, Entry{
		Time:         d.Time,
		TemperatureC: d.TemperatureC,
		Fresh:        d.Fresh,
		SetpointC:    d.SetpointC,
		Duty:         d.Duty,
		State:        d.State.String(),
	})
	h.trimLocked(d.Time)
	return true
}

func (h *History) trimLocked(now time.Time) {
	cutoff := now.Add(-h.retain)
	i := sort.Search(len(h.entries), func(i int) bool { return !h.entries[i].Time.Before(cutoff) })
	if i > 0 {
		h.entries = append(h.entries[:0], h.entries[i:]...)
	}
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Since returns a copy of the entries newer than interval.
func (h *History) Since(interval time.Duration) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cutoff := h.now().Add(-interval)
	i := sort.Search(len(h.entries), func(i int) bool { return !h.entries[i].Time.Before(cutoff) })
	return append([]Entry(nil), h.entries[i:]...)
}

func (h *History) values(f Field, interval time.Duration) []float64 {
	var nums []float64
	for _, e := range h.Since(interval) {
		if v, ok := f(e); ok {
			nums = append(nums, v)
		}
	}
	return nums
}

func (h *History) Mean(f Field, interval time.Duration) (float64, error) {
	nums := h.values(f, interval)
	if len(nums) == 0 {
		return 0, fmt.Errorf("mean over %s: %w", interval, ErrNoSamples)
	}
	sum := 0.0
	for _, v := range nums {
		sum += v
	}
	return sum / float64(len(nums)), nil
}

func (h *History) Median(f Field, interval time.Duration) (float64, error) {
	nums := h.values(f, interval)
	if len(nums) == 0 {
		return 0, fmt.Errorf("median over %s: %w", interval, ErrNoSamples)
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 0 {
		return (nums[mid-1] + nums[mid]) / 2, nil
	}
	return nums[mid], nil
}

// PercentOn returns the share of entries with a non-zero duty, in percent.
func (h *History) PercentOn(interval time.Duration) (float64, error) {
	entries := h.Since(interval)
	if len(entries) == 0 {
		return 0, fmt.Errorf("percent on over %s: %w", interval, ErrNoSamples)
	}
	on := 0
	for _, e := range entries {
		if e.Duty > 0 {
			on++
		}
	}
	return float64(on) / float64(len(entries)) * 100, nil
}

// Run records diagnostics from the bus and saves a snapshot periodically and on exit.
func (h *History) Run(ctx context.Context, bus *eventbus.Bus) {
	h.log.Info("Running... (resolution %v, retain %v)", h.resolution, h.retain)
	diag, unsub := bus.Subscribe(ctx, events.TopicDiagnostics, false)
	defer unsub()

	ticker := time.NewTicker(h.saveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.Save()
			h.log.Info("Stopped")
			return
		case <-ticker.C:
			h.Save()
		case ev, ok := <-diag:
			if !ok {
				h.Save()
				return
			}
			if d, ok := ev.(events.TickDiagnostics); ok {
				h.Add(d)
			}
		}
	}
}

// Save writes the snapshot atomically through a temp file.
func (h *History) Save() {
	if h.file == "" {
		return
	}
	h.mu.RLock()
	snapshot := append([]Entry(nil), h.entries...)
	h.mu.RUnlock()

	tmpPath := h.file + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		h.log.Error("failed to create temp snapshot file: %v", err)
		return
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	if err := json.NewEncoder(gz).Encode(snapshot); err != nil {
		h.log.Error("failed to encode snapshot: %v", err)
		gz.Close()
		return
	}
	if err := gz.Close(); err != nil {
		h.log.Error("failed to close gzip: %v", err)
		return
	}
	if err := file.Sync(); err != nil {
		h.log.Error("failed to fsync snapshot: %v", err)
	}
	file.Close()
	if err := os.Rename(tmpPath, h.file); err != nil {
		h.log.Error("failed to rename snapshot file: %v", err)
		return
	}
	h.log.Debug("snapshot saved: %d entries", len(snapshot))
}

func (h *History) loadFromDisk() {
	if h.file == "" {
		return
	}
	file, err := os.Open(filepath.Clean(h.file))
	if err != nil {
		if !os.IsNotExist(err) {
			h.log.Error("failed to open history snapshot: %v", err)
		}
		return
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		h.log.Error("failed to open gzip: %v", err)
		return
	}
	defer gz.Close()

	var data []Entry
	if err := json.NewDecoder(gz).Decode(&data); err != nil {
		h.log.Error("failed to decode snapshot: %v", err)
		return
	}

	h.mu.Lock()
	h.entries = data
	h.trimLocked(h.now())
	n := len(h.entries)
	h.mu.Unlock()
	h.log.Info("history restored from snapshot (%d entries)", n)
}
