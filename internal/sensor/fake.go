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

import "time"

// Step is one scripted Fake result.
type Step struct {
	Celsius float64
	Err     error
}

// Value is a shorthand for a successful Step.
func Value(c float64) Step { return Step{Celsius: c} }

// Missing is a shorthand for a tick without a completed conversion.
func Missing() Step { return Step{Err: ErrNotReady} }

// Fake is a test double that returns scripted readings. When the script is
// exhausted it keeps returning ErrNotReady.
type Fake struct {
	Steps []Step
	index int
	Reads int
}

func NewFake(steps ...Step) *Fake {
	return &Fake{Steps: steps}
}

// Push appends steps to the script.
func (f *Fake) Push(steps ...Step) {
	f.Steps = append(f.Steps, steps...)
}

func (f *Fake) Read(tick uint64) (Reading, error) {
	f.Reads++
	if f.index >= len(f.Steps) {
		return Reading{Tick: tick}, ErrNotReady
	}
	s := f.Steps[f.index]
	f.index++
	if s.Err != nil {
		return Reading{Tick: tick, Celsius: s.Celsius}, s.Err
	}
	return Reading{Tick: tick, Celsius: s.Celsius, Valid: true, At: time.Unix(int64(tick), 0)}, nil
}
