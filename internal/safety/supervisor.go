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
	"fmt"
	"heatdoors/internal/sensor"
	"heatdoors/pkg/logger"
	"sync/atomic"
)

// Supervisor evaluates the safety state once per tick. Evaluate belongs to
// the tick body; RequestReset, Shutdown and Current are safe from any
// goroutine and only touch atomics.
type Supervisor struct {
	state State
	mem   Memory
	cause string

	current     atomic.Uint32
	resetReq    atomic.Bool
	shutdownReq atomic.Pointer[string]

	log *logger.Logger
}

func NewSupervisor() *Supervisor {
	return &Supervisor{log: logger.New("Safety")}
}

// RequestReset asks the next evaluation to clear a latched fault. It
// has no effect on Shutdown.
func (s *Supervisor) RequestReset() {
	s.resetReq.Store(true)
}

// Shutdown requests the terminal state. The first reason wins.
func (s *Supervisor) Shutdown(reason string) {
	s.shutdownReq.CompareAndSwap(nil, &reason)
}

// Current returns the state of the last evaluation.
func (s *Supervisor) Current() State {
	return State(s.current.Load())
}

// Cause describes why the supervisor left Nominal.
func (s *Supervisor) Cause() string { return s.cause }

func (s *Supervisor) Memory() Memory { return s.mem }

// Evaluate runs one transition with the tick's sensor result.
func (s *Supervisor) Evaluate(tick uint64, r sensor.Reading, err error, lim Limits) State {
	in := InputFrom(tick, r, err)
	in.Reset = s.resetReq.Swap(false)
	reason := s.shutdownReq.Load()
	in.Shutdown = reason != nil

	prev := s.state
	next, mem := transition(prev, in, lim, s.mem)
	s.mem = mem

	if in.Reset && prev.Latching() {
		s.log.Info("tick %d: latched %v cleared by reset", tick, prev)
	}
	if in.Reset && prev == Shutdown {
		s.log.Warn("tick %d: reset ignored in Shutdown", tick)
	}

	if next != prev {
		s.cause = describe(next, in, lim, mem, err, reason)
		if next == Nominal {
			s.log.Info("tick %d: %v -> %v", tick, prev, next)
		} else {
			s.log.Warn("tick %d: %v -> %v (%s)", tick, prev, next, s.cause)
		}
	}
	if next == Nominal {
		s.cause = ""
	}

	s.state = next
	s.current.Store(uint32(next))
	return next
}

func describe(st State, in Input, lim Limits, mem Memory, err error, reason *string) string {
	switch st {
	case Shutdown:
		if reason != nil {
			return *reason
		}
		return "shutdown"
	case Stale:
		return fmt.Sprintf("no valid reading for %d ticks", mem.Missing)
	case Overtemperature:
		return fmt.Sprintf("%.1f°C above %.1f°C", in.Reading.Celsius, lim.MaxCelsius)
	case SensorFault:
		if in.OutOfRange && err != nil {
			return err.Error()
		}
		return fmt.Sprintf("rate of change above %.1f°C/s", lim.MaxRate)
	}
	return ""
}
