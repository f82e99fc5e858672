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

// Guarded serializes calls to an Actuator that is not safe for concurrent
// use, so an emergency Off from another goroutine cannot interleave with a
// tick's Write.
type Guarded struct {
	mu sync.Mutex
	a  Actuator
}

func NewGuarded(a Actuator) *Guarded {
	return &Guarded{a: a}
}

func (g *Guarded) Write(duty float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.a.Write(duty)
}

func (g *Guarded) Off() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.a.Off()
}
