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

// Package safety owns the safety state. The supervisor is evaluated once per
// tick and its result gates the actuator.
package safety

import (
	"errors"
	"fmt"
	"heatdoors/internal/sensor"
	"math"
)

type State uint8

const (
	Nominal State = iota
	SensorFault
	Overtemperature
	Stale
	Shutdown
)

var stateNames = [...]string{
	Nominal:         "Nominal",
	SensorFault:     "SensorFault",
	Overtemperature: "Overtemperature",
	Stale:           "Stale",
	Shutdown:        "Shutdown",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Latching states persist until an explicit reset.
func (s State) Latching() bool {
	return s == SensorFault || s == Overtemperature
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown safety state %q", b)
}

// Limits are the safety thresholds taken from the tick's parameter snapshot.
type Limits struct {
	MaxCelsius  float64 // absolute overtemperature threshold
	MaxRate     float64 // °C per second between consecutive valid readings, 0 disables
	StaleTicks  uint32  // consecutive ticks without a valid reading before Stale
	TickSeconds float64
}

// Input is everything one evaluation looks at.
type Input struct {
	Tick       uint64
	Reading    sensor.Reading
	Present    bool // a valid reading was consumed this tick
	OutOfRange bool
	Reset      bool
	Shutdown   bool
}

// InputFrom classifies a sensor result.
func InputFrom(tick uint64, r sensor.Reading, err error) Input {
	in := Input{Tick: tick, Reading: r}
	switch {
	case err == nil && r.Valid:
		in.Present = true
	case errors.Is(err, sensor.ErrOutOfRange):
		in.OutOfRange = true
	}
	return in
}

// Memory is the supervisor's history between evaluations.
type Memory struct {
	Last     sensor.Reading // last valid reading, for the rate check
	HaveLast bool
	Missing  uint32 // consecutive ticks without a valid reading
}

// transition computes the next state. Priority: Shutdown, a latched fault,
// Stale, Overtemperature, SensorFault (rate or out-of-range), Nominal. An
// out-of-range value above MaxCelsius counts as Overtemperature.
func transition(prev State, in Input, lim Limits, mem Memory) (State, Memory) {
	if prev == Shutdown || in.Shutdown {
		return Shutdown, mem
	}

	if in.Reset && prev.Latching() {
		prev = Nominal
		mem.HaveLast = false
	}

	if !in.Present {
		if mem.Missing < math.MaxUint32 {
			mem.Missing++
		}
		switch {
		case prev.Latching():
			return prev, mem
		case mem.Missing >= lim.StaleTicks:
			return Stale, mem
		case in.OutOfRange && in.Reading.Celsius > lim.MaxCelsius:
			// above the calibrated ceiling and the threshold: still an overheat
			return Overtemperature, mem
		case in.OutOfRange:
			return SensorFault, mem
		case prev == Stale:
			return Stale, mem
		}
		return Nominal, mem
	}

	mem.Missing = 0
	last, haveLast := mem.Last, mem.HaveLast
	mem.Last, mem.HaveLast = in.Reading, true

	if prev.Latching() {
		return prev, mem
	}
	if in.Reading.Celsius > lim.MaxCelsius {
		return Overtemperature, mem
	}
	if haveLast && exceedsRate(last, in.Reading, lim) {
		return SensorFault, mem
	}
	return Nominal, mem
}

func exceedsRate(prev, cur sensor.Reading, lim Limits) bool {
	if lim.MaxRate <= 0 || cur.Tick <= prev.Tick || lim.TickSeconds <= 0 {
		return false
	}
	elapsed := float64(cur.Tick-prev.Tick) * lim.TickSeconds
	return math.Abs(cur.Celsius-prev.Celsius)/elapsed > lim.MaxRate
}
