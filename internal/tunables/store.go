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

package tunables

import (
	"heatdoors/pkg/logger"
	"sync"
	"sync/atomic"
)

// Store publishes the active Params. Load is lock-free and is called once
// per tick; writers are serialized.
type Store struct {
	cur atomic.Pointer[Params]

	mu      sync.Mutex
	version atomic.Uint64
	hooks   []func(Params)
	log     *logger.Logger
}

func NewStore(p Params) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	s := &Store{log: logger.New("Tunables")}
	s.cur.Store(&p)
	return s, nil
}

// Load returns a snapshot of the active block.
func (s *Store) Load() Params {
	return *s.cur.Load()
}

// Version increments on every accepted update.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Update validates p and replaces the whole block. A rejected block
// leaves the active one untouched.
func (s *Store) Update(p Params) error {
	if err := p.Validate(); err != nil {
		s.log.Warn("update rejected: %v", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := p
	s.cur.Store(&next)
	v := s.version.Add(1)
	s.log.Info("update %d applied: setpoint=%.1f mode=%v kp=%g ki=%g kd=%g", v, p.Setpoint, p.Mode, p.Kp, p.Ki, p.Kd)

	for _, fn := range s.hooks {
		fn(p)
	}
	return nil
}

// OnUpdate registers a callback run after each accepted update, in the
// updater's goroutine.
func (s *Store) OnUpdate(fn func(Params)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}
