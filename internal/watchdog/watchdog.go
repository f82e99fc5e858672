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

// Package watchdog detects a hung tick loop. The loop kicks once per tick;
// a missed deadline fires the expiry hooks once.
package watchdog

import (
	"context"
	"heatdoors/pkg/logger"
	"sync"
	"sync/atomic"
	"time"
)

// Device is a hardware watchdog that resets the board unless fed.
type Device interface {
	Keepalive() error
	Close() error
}

type Watchdog struct {
	timeout time.Duration
	now     func() time.Time
	dev     Device

	last  atomic.Int64
	kicks atomic.Uint64
	fired atomic.Bool

	mu    sync.Mutex
	hooks []func()

	log *logger.Logger
}

func New(timeout time.Duration) *Watchdog {
	w := &Watchdog{
		timeout: timeout,
		now:     time.Now,
		log:     logger.New("Watchdog"),
	}
	w.last.Store(w.now().UnixNano())
	return w
}

// WithDevice feeds dev while the software deadline holds.
func (w *Watchdog) WithDevice(dev Device) *Watchdog {
	w.dev = dev
	return w
}

func (w *Watchdog) WithClock(now func() time.Time) *Watchdog {
	w.now = now
	w.last.Store(now().UnixNano())
	return w
}

// OnExpire registers a hook run once when the deadline is missed.
func (w *Watchdog) OnExpire(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks = append(w.hooks, fn)
}

// Kick restarts the deadline. Safe from the tick body.
func (w *Watchdog) Kick() {
	w.last.Store(w.now().UnixNano())
	w.kicks.Add(1)
}

func (w *Watchdog) Kicks() uint64 { return w.kicks.Load() }

func (w *Watchdog) Expired() bool { return w.fired.Load() }

func (w *Watchdog) Run(ctx context.Context) {
	w.log.Info("Running... (timeout %v)", w.timeout)
	defer func() {
		if w.dev != nil {
			if err := w.dev.Close(); err != nil {
				w.log.Error("device close: %v", err)
			}
		}
		w.log.Info("Stopped")
	}()

	w.Kick()
	ticker := time.NewTicker(max(w.timeout/4, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.Check() && w.dev != nil {
				if err := w.dev.Keepalive(); err != nil {
					w.log.Error("device keepalive: %v", err)
				}
			}
		}
	}
}

// Check compares the last kick against the deadline and reports whether
// the loop is healthy. Expiry hooks run on the first failed check.
func (w *Watchdog) Check() bool {
	if w.fired.Load() {
		return false
	}
	since := w.now().Sub(time.Unix(0, w.last.Load()))
	if since <= w.timeout {
		return true
	}
	if !w.fired.CompareAndSwap(false, true) {
		return false
	}
	w.log.Error("tick loop missed its deadline: no kick for %v (timeout %v)", since, w.timeout)

	w.mu.Lock()
	hooks := append([]func(){}, w.hooks...)
	w.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return false
}
