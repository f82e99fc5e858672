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

// Package control computes the heater duty from the setpoint and the latest
// reading. Controllers hold state between ticks and are reset whenever the
// safety supervisor leaves Nominal.
package control

import (
	"heatdoors/pkg/logger"
	"heatdoors/pkg/mathx"
	"math"
)

// Gains of the PID law. Max is the top of the duty range, the bottom is 0.
type Gains struct {
	Kp, Ki, Kd float64
	IMax       float64 // clamp on the Ki-weighted integral, in duty units
	Max        float64
	Deadband   float64 // |error| below this counts as zero
	Decay      float64 // fraction of the integral kept after 1 s, 0 disables
}

// State carried between ticks.
type State struct {
	Integral   float64 `json:"integral"`
	PrevError  float64 `json:"prev_error"`
	PrevOutput float64 `json:"prev_output"`
	Primed     bool    `json:"primed"`
}

// Controller is implemented by every control mode.
type Controller interface {
	Update(setpoint, measurement, dt float64) float64
	Reset()
}

// Step is the PID law as a pure function of gains and state.
//
// The integral is accumulated as Ki*e*dt and clamped to [-IMax, IMax]. When
// the unclamped output using this tick's integral candidate falls outside
// [0, Max] the candidate is dropped and the previous integral is kept. The
// derivative is zero until one error has been seen since the last reset.
func Step(g Gains, s State, setpoint, measurement, dt float64) (float64, State) {
	e := setpoint - measurement
	if math.Abs(e) < g.Deadband {
		e = 0
	}

	p := g.Kp * e

	candidate := s.Integral
	d := 0.0
	if dt > 0 {
		candidate = mathx.Clamp(s.Integral+g.Ki*e*dt, -g.IMax, g.IMax)
		if g.Decay > 0 && g.Decay < 1 {
			candidate *= math.Pow(g.Decay, dt)
		}
		if s.Primed {
			d = g.Kd * (e - s.PrevError) / dt
		}
	}

	raw := p + candidate + d
	var out float64
	if raw < 0 || raw > g.Max {
		out = mathx.Clamp(p+s.Integral+d, 0, g.Max)
	} else {
		s.Integral = candidate
		out = raw
	}

	s.PrevError = e
	s.PrevOutput = out
	s.Primed = true
	return out, s
}

// PID wraps Step with its own state.
type PID struct {
	gains Gains
	state State
	log   *logger.Logger
}

func NewPID(g Gains) *PID {
	return &PID{
		gains: g,
		log:   logger.New("PID Control"),
	}
}

// SetGains replaces the gains; state is kept.
func (c *PID) SetGains(g Gains) *PID {
	c.gains = g
	return c
}

func (c *PID) Update(setpoint, measurement, dt float64) float64 {
	out, next := Step(c.gains, c.state, setpoint, measurement, dt)
	c.state = next
	c.log.Debug("dt=%.2fs, err=%.2f°C, integral=%.3f, output=%.3f", dt, next.PrevError, next.Integral, out)
	return out
}

// Reset clears the integral and the error memory.
func (c *PID) Reset() {
	c.state = State{}
}

func (c *PID) State() State { return c.state }
