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

import (
	"context"
	"errors"
	"heatdoors/pkg/logger"
	"time"
)

// Poller drives a blocking Source and posts results into a Mailbox.
// It plays the part of the sensor-ready interrupt: the tick body never
// waits on it.
type Poller struct {
	src      Source
	box      *Mailbox
	interval time.Duration
	retry    time.Duration
	now      func() time.Time
	log      *logger.Logger

	lastErr string
}

func NewPoller(name string, src Source, box *Mailbox, interval time.Duration) *Poller {
	return &Poller{
		src:      src,
		box:      box,
		interval: interval,
		retry:    min(100*time.Millisecond, interval),
		now:      time.Now,
		log:      logger.New("Sensor " + name),
	}
}

// WithRetry sets how soon a NotReady source is asked again.
func (p *Poller) WithRetry(d time.Duration) *Poller {
	p.retry = d
	return p
}

func (p *Poller) Run(ctx context.Context) {
	p.log.Info("Running... (every %v)", p.interval)
	defer p.log.Info("Stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			start := p.now()
			next := p.interval
			if !p.poll(ctx) {
				next = p.retry
			} else {
				next -= p.now().Sub(start)
			}
			timer.Reset(max(next, 0))
		}
	}
}

// poll samples once; false means the conversion is still pending.
func (p *Poller) poll(ctx context.Context) bool {
	v, err := p.src.Sample(ctx)
	switch {
	case err == nil:
		p.clearErr()
		p.box.Post(v, nil, p.now())
	case errors.Is(err, ErrNotReady):
		return false
	case errors.Is(err, ErrOutOfRange):
		p.noteErr(err)
		p.box.Post(v, err, p.now())
	case ctx.Err() != nil:
	default:
		// nothing posted; the supervisor notices through staleness
		p.noteErr(err)
	}
	return true
}

// noteErr logs an error once until it changes or clears.
func (p *Poller) noteErr(err error) {
	if msg := err.Error(); msg != p.lastErr {
		p.log.Error("sample failed: %v", err)
		p.lastErr = msg
	}
}

func (p *Poller) clearErr() {
	if p.lastErr != "" {
		p.log.Info("sampling recovered")
		p.lastErr = ""
	}
}
