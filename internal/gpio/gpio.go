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

// Package gpio wraps Linux GPIO lines for the heater switch, valve lines,
// status LED, reset button and door switch. The real implementation uses
// the GPIO character device; fakes stand in for tests and other platforms.
package gpio

import "io"

// Output is a binary output line.
type Output interface {
	Set(on bool) error
	io.Closer
}

// Input is a binary input line.
type Input interface {
	Value() (bool, error)
	io.Closer
}

// EdgeFunc receives the debounced logical level after each edge.
type EdgeFunc func(active bool)

// LineConfig names one line on a chip.
type LineConfig struct {
	Chip      string `json:"chip"`
	Offset    int    `json:"offset"`
	ActiveLow bool   `json:"active_low"`
}

// Enabled reports whether the line was configured.
func (c LineConfig) Enabled() bool {
	return c.Chip != "" && c.Offset >= 0
}
