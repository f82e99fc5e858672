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

package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gains = Gains{Kp: 2, Ki: 0.1, Kd: 0, IMax: 50, Max: 100}

func TestFirstOutputScenario(t *testing.T) {
	out, s := Step(gains, State{}, 60, 50, 0.1)
	assert.InDelta(t, 20.1, out, 1e-9)
	assert.InDelta(t, 0.1, s.Integral, 1e-9)
	assert.Equal(t, 10.0, s.PrevError)
	assert.True(t, s.Primed)
}

func TestOutputClamped(t *testing.T) {
	out, _ := Step(gains, State{}, 60, -100, 0.1)
	assert.Equal(t, 100.0, out)

	out, _ = Step(gains, State{}, 20, 80, 0.1)
	assert.Equal(t, 0.0, out)
}

func TestAntiWindupHoldsIntegralWhileSaturated(t *testing.T) {
	c := NewPID(gains)
	for range 30 {
		out := c.Update(60, 0, 0.1)
		assert.Equal(t, 100.0, out)
		assert.Zero(t, c.State().Integral)
	}
}

func TestIntegralClamp(t *testing.T) {
	g := Gains{Kp: 0, Ki: 10, IMax: 5, Max: 100}
	c := NewPID(g)
	for range 50 {
		c.Update(60, 50, 0.1)
		i := c.State().Integral
		require.LessOrEqual(t, i, g.IMax)
		require.GreaterOrEqual(t, i, -g.IMax)
	}
	assert.Equal(t, 5.0, c.State().Integral)
}

func TestDerivativeZeroAfterReset(t *testing.T) {
	g := Gains{Kp: 0, Ki: 0, Kd: 1, IMax: 10, Max: 100}
	c := NewPID(g)

	assert.Zero(t, c.Update(60, 50, 0.1))
	// error drops from 10 to 5: negative derivative, clamped to 0
	assert.Zero(t, c.Update(60, 55, 0.1))
	// rising error gives a positive derivative
	assert.InDelta(t, 50.0, c.Update(60, 50, 0.1), 1e-9)

	c.Reset()
	assert.Equal(t, State{}, c.State())
	assert.Zero(t, c.Update(60, 40, 0.1))
}

func TestDeadband(t *testing.T) {
	g := gains
	g.Deadband = 0.5
	out, s := Step(g, State{}, 60, 59.8, 0.1)
	assert.Zero(t, out)
	assert.Zero(t, s.PrevError)
}

func TestDecayShrinksIntegral(t *testing.T) {
	g := Gains{Kp: 0, Ki: 1, IMax: 100, Max: 100, Decay: 0.5}
	_, s := Step(g, State{Integral: 10, Primed: true}, 60, 60, 1)
	assert.InDelta(t, 5.0, s.Integral, 1e-9)
}

func TestZeroDtSkipsIntegralAndDerivative(t *testing.T) {
	g := Gains{Kp: 1, Ki: 1, Kd: 1, IMax: 100, Max: 100}
	out, s := Step(g, State{Integral: 2, PrevError: 1, Primed: true}, 60, 50, 0)
	assert.Equal(t, 12.0, out)
	assert.Equal(t, 2.0, s.Integral)
}

func TestHysteresis(t *testing.T) {
	h := NewHysteresis(2, 100)
	assert.Equal(t, 100.0, h.Update(60, 50, 0.1))
	assert.Equal(t, 100.0, h.Update(60, 59, 0.1), "holds inside the band")
	assert.Equal(t, 0.0, h.Update(60, 60, 0.1))
	assert.Equal(t, 0.0, h.Update(60, 58.5, 0.1), "holds inside the band")
	assert.Equal(t, 100.0, h.Update(60, 57.9, 0.1))

	h.Reset()
	assert.Equal(t, 0.0, h.Update(60, 59, 0.1))
}
