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

import (
	"heatdoors/pkg/logger"
	"heatdoors/pkg/mathx"
	"time"
)

// SlowPWM time-proportions a relay or SSR: within each window the switch
// is on for duty*window. Minimum on and off times stretch the cycle rather
// than chatter the contacts. It is advanced by Write from the tick and has
// no goroutine of its own.
type SlowPWM struct {
	sw     Switch
	window time.Duration
	minOn  time.Duration
	minOff time.Duration
	now    func() time.Time

	duty       float64
	on         bool
	started    bool
	cycleStart time.Time
	lastChange time.Time

	log *logger.Logger
}

func NewSlowPWM(name string, sw Switch, window time.Duration) *SlowPWM {
	p := &SlowPWM{
		sw:     sw,
		window: window,
		now:    time.Now,
		log:    logger.New("SlowPWM " + name),
	}
	if err := sw.Set(false); err != nil {
		p.log.Error("switch error: %v", err)
	}
	return p
}

func (p *SlowPWM) WithMinTimes(minOn, minOff time.Duration) *SlowPWM {
	p.minOn = minOn
	p.minOff = minOff
	return p
}

func (p *SlowPWM) WithClock(now func() time.Time) *SlowPWM {
	p.now = now
	return p
}

func (p *SlowPWM) Write(duty float64) {
	p.duty = mathx.Clamp(duty, 0, 1)
	p.step(p.now())
}

// Off opens the switch at once, ignoring the minimum on time.
func (p *SlowPWM) Off() {
	p.duty = 0
	p.drive(false, true)
}

// On reports the switch state.
func (p *SlowPWM) On() bool { return p.on }

func (p *SlowPWM) step(now time.Time) {
	if !p.started {
		p.started = true
		p.cycleStart = now
	}
	switch {
	case p.duty <= 0:
		p.drive(false, false)
		return
	case p.duty >= 1:
		p.drive(true, false)
		return
	}

	cycle := p.window
	onLen := time.Duration(p.duty * float64(p.window))
	if onLen < p.minOn {
		onLen = p.minOn
		cycle = time.Duration(float64(onLen) / p.duty)
	}
	if offLen := cycle - onLen; offLen < p.minOff {
		cycle = onLen + p.minOff
	}

	pos := now.Sub(p.cycleStart) % cycle
	p.log.Debug("duty=%.2f cycle=%v on=%v pos=%v", p.duty, cycle, onLen, pos)
	p.drive(pos < onLen, false)
}

// drive changes the switch, honoring the minimum on/off times unless forced.
func (p *SlowPWM) drive(on, force bool) {
	now := p.now()
	if p.on == on {
		return
	}
	if !force && !p.lastChange.IsZero() {
		elapsed := now.Sub(p.lastChange)
		if p.on && elapsed < p.minOn {
			return
		}
		if !p.on && elapsed < p.minOff {
			return
		}
	}
	p.on = on
	p.lastChange = now
	if err := p.sw.Set(on); err != nil {
		p.log.Error("switch error: %v", err)
	}
}
