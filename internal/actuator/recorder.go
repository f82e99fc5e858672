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

package actuator

import "sync"

// Recorder is an Actuator that remembers every command.
type Recorder struct {
	mu       sync.Mutex
	commands []float64
	offs     int
}

func (r *Recorder) Write(duty float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, duty)
}

// Off is recorded as a zero command.
func (r *Recorder) Off() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, 0)
	r.offs++
}

func (r *Recorder) Commands() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.commands...)
}

// Last returns the latest command, 0 if none.
func (r *Recorder) Last() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return 0
	}
	return r.commands[len(r.commands)-1]
}

func (r *Recorder) Offs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offs
}

// FakeSwitch records switch states.
type FakeSwitch struct {
	mu      sync.Mutex
	On      bool
	Changes int
	Err     error
}

func (s *FakeSwitch) Set(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if on != s.On {
		s.Changes++
	}
	s.On = on
	return nil
}

func (s *FakeSwitch) State() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.On
}
