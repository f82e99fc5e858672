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

package scheduler

import "time"

// Timer is the periodic trigger source. Its period is the tick rate.
type Timer interface {
	C() <-chan time.Time
	Stop()
}

type ticker struct {
	t *time.Ticker
}

// NewTicker returns a Timer backed by time.Ticker.
func NewTicker(period time.Duration) Timer {
	return &ticker{t: time.NewTicker(period)}
}

func (t *ticker) C() <-chan time.Time { return t.t.C }
func (t *ticker) Stop()               { t.t.Stop() }

// ManualTimer fires only when Fire is called.
type ManualTimer struct {
	ch chan time.Time
}

func NewManualTimer() *ManualTimer {
	return &ManualTimer{ch: make(chan time.Time)}
}

func (m *ManualTimer) C() <-chan time.Time { return m.ch }
func (m *ManualTimer) Stop()               {}

// Fire blocks until the trigger is taken.
func (m *ManualTimer) Fire() {
	m.ch <- time.Now()
}
