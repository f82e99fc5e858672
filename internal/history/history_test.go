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
	"encoding/json"
	"heatdoors/internal/events"
	"heatdoors/internal/safety"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)

func diag(at time.Time, temp, duty float64) events.TickDiagnostics {
	return events.TickDiagnostics{
		Time:         at,
		State:        safety.Nominal,
		TemperatureC: temp,
		Fresh:        true,
		SetpointC:    45,
		Duty:         duty,
	}
}

func TestAddDownsamples(t *testing.T) {
	h := New("", time.Minute, time.Hour)
	assert.True(t, h.Add(diag(t0, 40, 0.5)))
	assert.False(t, h.Add(diag(t0.Add(30*time.Second), 41, 0.5)))
	assert.True(t, h.Add(diag(t0.Add(time.Minute), 42, 0.5)))
	assert.Equal(t, 2, h.Len())
}

func TestRetention(t *testing.T) {
	h := New("", time.Minute, 10*time.Minute)
	for i := range 30 {
		h.Add(diag(t0.Add(time.Duration(i)*time.Minute), 40, 0))
	}
	// entries at minutes 19..29
	assert.Equal(t, 11, h.Len())
}

func TestAggregates(t *testing.T) {
	now := t0.Add(10 * time.Minute)
	h := New("", time.Minute, time.Hour, WithClock(func() time.Time { return now }))
	temps := []float64{40, 42, 44, 50}
	for i, c := range temps {
		duty := 0.0
		if i%2 == 0 {
			duty = 1
		}
		h.Add(diag(t0.Add(time.Duration(i)*time.Minute), c, duty))
	}
	stale := diag(t0.Add(5*time.Minute), 0, 0)
	stale.Fresh = false
	h.Add(stale)

	mean, err := h.Mean(Temperature, time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 44.0, mean, 1e-9)

	median, err := h.Median(Temperature, time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 43.0, median, 1e-9)

	pct, err := h.PercentOn(time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, pct, 1e-9)

	_, err = h.Mean(Temperature, time.Minute)
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := t0.Add(5 * time.Minute)
	clock := WithClock(func() time.Time { return now })

	h := New(dir, time.Minute, time.Hour, clock)
	for i := range 3 {
		h.Add(diag(t0.Add(time.Duration(i)*time.Minute), 40+float64(i), 0.25))
	}
	h.Save()

	restored := New(dir, time.Minute, time.Hour, clock)
	require.Equal(t, 3, restored.Len())
	got := restored.Since(time.Hour)
	assert.Equal(t, 42.0, got[2].TemperatureC)
	assert.Equal(t, "Nominal", got[2].State)
}

func TestServeHTTP(t *testing.T) {
	now := t0.Add(3 * time.Minute)
	h := New("", time.Minute, time.Hour, WithClock(func() time.Time { return now }))
	h.Add(diag(t0, 44, 0.5))
	h.Add(diag(t0.Add(time.Minute), 46, 0))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?since=30m", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Summary Summary `json:"summary"`
		Entries []Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)
	assert.Equal(t, 2, resp.Summary.Samples)
	require.NotNil(t, resp.Summary.MeanC)
	assert.InDelta(t, 45.0, *resp.Summary.MeanC, 1e-9)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history?since=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
