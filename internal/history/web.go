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
	"net/http"
	"time"
)

// Summary aggregates an interval of history.
type Summary struct {
	Interval    string   `json:"interval"`
	Samples     int      `json:"samples"`
	MeanC       *float64 `json:"mean_c,omitempty"`
	MedianC     *float64 `json:"median_c,omitempty"`
	MeanErrorC  *float64 `json:"mean_error_c,omitempty"`
	PercentOn   *float64 `json:"percent_on,omitempty"`
	MeanDutyPct *float64 `json:"mean_duty_pct,omitempty"`
}

func (h *History) Summarize(interval time.Duration) Summary {
	s := Summary{Interval: interval.String(), Samples: len(h.Since(interval))}
	opt := func(v float64, err error) *float64 {
		if err != nil {
			return nil
		}
		return &v
	}
	s.MeanC = opt(h.Mean(Temperature, interval))
	s.MedianC = opt(h.Median(Temperature, interval))
	s.MeanErrorC = opt(h.Mean(Error, interval))
	s.PercentOn = opt(h.PercentOn(interval))
	if d, err := h.Mean(Duty, interval); err == nil {
		d *= 100
		s.MeanDutyPct = &d
	}
	return s
}

// ServeHTTP returns entries and a summary for ?since=<duration> (default 1h).
func (h *History) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	interval := time.Hour
	if q := r.URL.Query().Get("since"); q != "" {
		d, err := time.ParseDuration(q)
		if err != nil || d <= 0 {
			http.Error(w, "invalid 'since' parameter", http.StatusBadRequest)
			return
		}
		interval = min(d, h.retain)
	}

	resp := struct {
		Summary Summary `json:"summary"`
		Entries []Entry `json:"entries"`
	}{
		Summary: h.Summarize(interval),
		Entries: h.Since(interval),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("failed to encode history: %v", err)
	}
}
