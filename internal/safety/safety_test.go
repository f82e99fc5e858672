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

package safety

import (
	"encoding/json"
	"errors"
	"heatdoors/internal/sensor"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var limits = Limits{MaxCelsius: 150, MaxRate: 20, StaleTicks: 5, TickSeconds: 0.1}

func valid(tick uint64, c float64) (sensor.Reading, error) {
	return sensor.Reading{Tick: tick, Celsius: c, Valid: true}, nil
}

func TestOvertemperatureLatches(t *testing.T) {
	s := NewSupervisor()
	lim := limits
	lim.MaxRate = 0

	for i, c := range []float64{58, 59} {
		r, err := valid(uint64(i+1), c)
		assert.Equal(t, Nominal, s.Evaluate(uint64(i+1), r, err, lim))
	}
	r, err := valid(3, 200)
	assert.Equal(t, Overtemperature, s.Evaluate(3, r, err, lim))

	r, err = valid(4, 55)
	assert.Equal(t, Overtemperature, s.Evaluate(4, r, err, lim), "latched")

	s.RequestReset()
	r, err = valid(5, 55)
	assert.Equal(t, Nominal, s.Evaluate(5, r, err, lim))
}

func TestResetWhileFaultPresentRelatches(t *testing.T) {
	s := NewSupervisor()
	r, err := valid(1, 200)
	require.Equal(t, Overtemperature, s.Evaluate(1, r, err, limits))

	s.RequestReset()
	r, err = valid(2, 190)
	assert.Equal(t, Overtemperature, s.Evaluate(2, r, err, limits))
}

func TestStaleExactlyAtN(t *testing.T) {
	s := NewSupervisor()
	r, err := valid(1, 40)
	require.Equal(t, Nominal, s.Evaluate(1, r, err, limits))

	for tick := uint64(2); tick < 2+uint64(limits.StaleTicks)-1; tick++ {
		assert.Equal(t, Nominal, s.Evaluate(tick, sensor.Reading{Tick: tick}, sensor.ErrNotReady, limits), "tick %d", tick)
	}
	n := 2 + uint64(limits.StaleTicks) - 1
	assert.Equal(t, Stale, s.Evaluate(n, sensor.Reading{Tick: n}, sensor.ErrNotReady, limits))
	assert.Equal(t, limits.StaleTicks, s.Memory().Missing)

	assert.Equal(t, Stale, s.Evaluate(n+1, sensor.Reading{Tick: n + 1}, sensor.ErrNotReady, limits))

	// a valid reading clears Stale without a reset
	r, err = valid(n+2, 40)
	assert.Equal(t, Nominal, s.Evaluate(n+2, r, err, limits))
}

func TestStaleFromStartup(t *testing.T) {
	s := NewSupervisor()
	var st State
	for tick := uint64(1); tick <= uint64(limits.StaleTicks); tick++ {
		st = s.Evaluate(tick, sensor.Reading{Tick: tick}, sensor.ErrNotReady, limits)
		if tick < uint64(limits.StaleTicks) {
			assert.Equal(t, Nominal, st)
		}
	}
	assert.Equal(t, Stale, st)
}

func TestRateOfChange(t *testing.T) {
	s := NewSupervisor()
	r, err := valid(1, 40)
	require.Equal(t, Nominal, s.Evaluate(1, r, err, limits))

	// 1.5°C in one 0.1 s tick is 15°C/s
	r, err = valid(2, 41.5)
	require.Equal(t, Nominal, s.Evaluate(2, r, err, limits))

	// 3°C in one tick is 30°C/s
	r, err = valid(3, 44.5)
	assert.Equal(t, SensorFault, s.Evaluate(3, r, err, limits))

	r, err = valid(4, 44.6)
	assert.Equal(t, SensorFault, s.Evaluate(4, r, err, limits), "latched")
}

func TestRateUsesElapsedTicks(t *testing.T) {
	s := NewSupervisor()
	r, err := valid(1, 40)
	s.Evaluate(1, r, err, limits)
	s.Evaluate(2, sensor.Reading{Tick: 2}, sensor.ErrNotReady, limits)
	s.Evaluate(3, sensor.Reading{Tick: 3}, sensor.ErrNotReady, limits)

	// 5°C over 3 ticks (0.3 s) is 16.7°C/s
	r, err = valid(4, 45)
	assert.Equal(t, Nominal, s.Evaluate(4, r, err, limits))
}

func TestOutOfRangeIsSensorFault(t *testing.T) {
	s := NewSupervisor()
	st := s.Evaluate(1, sensor.Reading{Tick: 1, Celsius: -60}, sensor.ErrOutOfRange, limits)
	assert.Equal(t, SensorFault, st)
	assert.Contains(t, s.Cause(), sensor.ErrOutOfRange.Error())
}

func TestOutOfRangeAboveThresholdIsOvertemperature(t *testing.T) {
	s := NewSupervisor()
	st := s.Evaluate(1, sensor.Reading{Tick: 1, Celsius: 300}, sensor.ErrOutOfRange, limits)
	assert.Equal(t, Overtemperature, st)

	// out of range but below the threshold stays a sensor fault
	s = NewSupervisor()
	st = s.Evaluate(1, sensor.Reading{Tick: 1, Celsius: 140}, sensor.ErrOutOfRange, limits)
	assert.Equal(t, SensorFault, st)
}

func TestOvertemperatureThroughMailbox(t *testing.T) {
	box := sensor.NewMailbox(sensor.Range{MinC: -40, MaxC: 125})
	s := NewSupervisor()
	lim := Limits{MaxCelsius: 150, MaxRate: 10, StaleTicks: 20, TickSeconds: 1}

	want := []State{Nominal, Nominal, Overtemperature, Overtemperature}
	for i, c := range []float64{58, 59, 200, 55} {
		tick := uint64(i + 1)
		box.Post(c, nil, time.Time{})
		r, err := box.Read(tick)
		assert.Equal(t, want[i], s.Evaluate(tick, r, err, lim), "reading %.0f", c)
	}
}

func TestShutdownIsTerminal(t *testing.T) {
	s := NewSupervisor()
	s.Shutdown("watchdog")
	s.Shutdown("second reason")

	r, err := valid(1, 40)
	assert.Equal(t, Shutdown, s.Evaluate(1, r, err, limits))
	assert.Equal(t, "watchdog", s.Cause())

	s.RequestReset()
	r, err = valid(2, 40)
	assert.Equal(t, Shutdown, s.Evaluate(2, r, err, limits))
	assert.Equal(t, Shutdown, s.Current())
}

func TestTransitionIgnoresOtherErrors(t *testing.T) {
	in := InputFrom(3, sensor.Reading{Tick: 3}, errors.New("crc mismatch"))
	assert.False(t, in.Present)
	assert.False(t, in.OutOfRange)

	st, mem := transition(Nominal, in, limits, Memory{})
	assert.Equal(t, Nominal, st)
	assert.Equal(t, uint32(1), mem.Missing)
}

func TestLatchedWinsOverStale(t *testing.T) {
	st, _ := transition(Overtemperature, Input{Tick: 9}, limits, Memory{Missing: 10})
	assert.Equal(t, Overtemperature, st)
}

func TestStateText(t *testing.T) {
	b, err := json.Marshal(map[string]State{"s": Overtemperature})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"Overtemperature"}`, string(b))

	var st State
	require.NoError(t, st.UnmarshalText([]byte("Stale")))
	assert.Equal(t, Stale, st)
	assert.Error(t, st.UnmarshalText([]byte("bogus")))
	assert.Equal(t, "State(9)", State(9).String())
}
