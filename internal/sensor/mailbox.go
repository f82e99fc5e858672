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

package sensor

import (
	"errors"
	"sync/atomic"
	"time"
)

type slot struct {
	celsius float64
	err     error
	at      time.Time
}

// Mailbox is a single-slot, lock-free hand-off between an asynchronous
// sampler (the sensor-ready side) and the tick body. A newer sample
// replaces an unread one; Read empties the slot.
type Mailbox struct {
	box      atomic.Pointer[slot]
	rng      Range
	posted   atomic.Uint64
	replaced atomic.Uint64
}

// NewMailbox returns a mailbox that validates posted values against rng.
func NewMailbox(rng Range) *Mailbox {
	return &Mailbox{rng: rng}
}

// Post publishes a completed conversion. err is either nil or an
// ErrOutOfRange chain; anything else should not be posted.
func (m *Mailbox) Post(celsius float64, err error, at time.Time) {
	if err == nil {
		err = m.rng.Check(celsius)
	}
	m.posted.Add(1)
	if old := m.box.Swap(&slot{celsius: celsius, err: err, at: at}); old != nil {
		m.replaced.Add(1)
	}
}

// Read implements Sensor.
func (m *Mailbox) Read(tick uint64) (Reading, error) {
	s := m.box.Swap(nil)
	if s == nil {
		return Reading{Tick: tick}, ErrNotReady
	}
	r := Reading{Tick: tick, Celsius: s.celsius, At: s.at}
	if s.err != nil {
		if errors.Is(s.err, ErrOutOfRange) {
			return r, s.err
		}
		return Reading{Tick: tick}, ErrNotReady
	}
	r.Valid = true
	return r, nil
}

// Counters returns how many samples were posted and how many were replaced
// before the tick body consumed them.
func (m *Mailbox) Counters() (posted, replaced uint64) {
	return m.posted.Load(), m.replaced.Load()
}
