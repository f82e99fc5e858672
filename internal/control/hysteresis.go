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

// Hysteresis is a bang-bang controller: full output below setpoint-Band,
// off at or above the setpoint, and the previous output held in between.
type Hysteresis struct {
	Band float64
	Max  float64
	on   bool
}

func NewHysteresis(band, max float64) *Hysteresis {
	return &Hysteresis{Band: band, Max: max}
}

func (h *Hysteresis) Update(setpoint, measurement, _ float64) float64 {
	switch {
	case measurement >= setpoint:
		h.on = false
	case measurement < setpoint-h.Band:
		h.on = true
	}
	if h.on {
		return h.Max
	}
	return 0
}

func (h *Hysteresis) Reset() { h.on = false }
