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

// Package actuator drives the heater. Writes never fail from the caller's
// point of view: hardware errors are logged and show up later through the
// temperature feedback.
package actuator

import (
	"heatdoors/pkg/logger"
	"heatdoors/pkg/mathx"
	"math"
)

// Actuator takes a normalized duty in [0, 1].
type Actuator interface {
	Write(duty float64)
	Off()
}

// Output is a proportional hardware output with level in [0, 1].
type Output interface {
	Set(level float64) error
}

// Switch is a binary hardware output.
type Switch interface {
	Set(on bool) error
}

// OutputFunc adapts a function to Output.
type OutputFunc func(level float64) error

func (f OutputFunc) Set(level float64) error { return f(level) }

// Heater drives a proportional Output. It starts off and only writes when
// the level changes.
type Heater struct {
	out       Output
	activeLow bool

	level  float64
	failed bool
	writes uint64
	log    *logger.Logger
}

func NewHeater(name string, out Output, activeLow bool) *Heater {
	h := &Heater{
		out:       out,
		activeLow: activeLow,
		log:       logger.New("Heater " + name),
	}
	h.apply(0)
	return h
}

func (h *Heater) Write(duty float64) {
	if math.IsNaN(duty) {
		duty = 0
	}
	duty = mathx.Clamp(duty, 0, 1)
	if !h.failed && math.Abs(duty-h.level) < 1e-6 {
		return
	}
	h.apply(duty)
}

func (h *Heater) Off() {
	h.Write(0)
}

// Duty returns the last commanded level.
func (h *Heater) Duty() float64 { return h.level }

// Writes counts hardware writes.
func (h *Heater) Writes() uint64 { return h.writes }

func (h *Heater) apply(duty float64) {
	h.level = duty
	h.writes++
	raw := duty
	if h.activeLow {
		raw = 1 - duty
	}
	if err := h.out.Set(raw); err != nil {
		if !h.failed {
			h.log.Error("output write failed: %v", err)
		}
		h.failed = true
		return
	}
	if h.failed {
		h.log.Info("output recovered")
	}
	h.failed = false
}
