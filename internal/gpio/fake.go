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

package gpio

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("gpio: line closed")

// FakeLine is an in-memory line usable as Output or Input. Edge callbacks
// registered with Watch run synchronously from Drive.
type FakeLine struct {
	mu      sync.Mutex
	value   bool
	closed  bool
	history []bool
	watch   EdgeFunc

	// SetError, if set, is returned by Set.
	SetError error
}

func NewFakeLine() *FakeLine {
	return &FakeLine{}
}

func (f *FakeLine) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.SetError != nil {
		return f.SetError
	}
	f.value = on
	f.history = append(f.history, on)
	return nil
}

func (f *FakeLine) Value() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, ErrClosed
	}
	return f.value, nil
}

func (f *FakeLine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Watch registers fn for edges produced by Drive.
func (f *FakeLine) Watch(fn EdgeFunc) *FakeLine {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watch = fn
	return f
}

// Drive simulates an external level change. Unchanged levels produce no edge.
func (f *FakeLine) Drive(active bool) {
	f.mu.Lock()
	changed := f.value != active
	f.value = active
	fn := f.watch
	f.mu.Unlock()
	if changed && fn != nil {
		fn(active)
	}
}

// History returns every value passed to Set.
func (f *FakeLine) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.history...)
}

func (f *FakeLine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
