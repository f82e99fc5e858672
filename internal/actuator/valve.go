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

// Direction of valve travel.
type Direction uint8

const (
	Stopped Direction = iota
	Opening
	Closing
)

func (d Direction) String() string {
	switch d {
	case Opening:
		return "opening"
	case Closing:
		return "closing"
	}
	return "stopped"
}

// Valve is a motorized valve or flap driven by an enable and a direction
// line. Position is estimated by integrating motor run time over the full
// travel time. Continuous run time in one direction is capped at the full
// travel time, and the cap resets when the direction changes.
type Valve struct {
	enable    Switch
	direction Switch
	travel    time.Duration
	deadband  float64
	now       func() time.Time

	pos      float64 // estimated, 0 closed to 1 open
	status   Direction
	last     Direction // last direction that ran
	budget   time.Duration
	runStart time.Time

	log *logger.Logger
}

func NewValve(name string, enable, direction Switch, travel time.Duration) *Valve {
	v := &Valve{
		enable:    enable,
		direction: direction,
		travel:    travel,
		deadband:  0.05,
		now:       time.Now,
		log:       logger.New("Valve " + name),
	}
	v.stop()
	return v
}

func (v *Valve) WithClock(now func() time.Time) *Valve {
	v.now = now
	return v
}

// WithDeadband sets how close the estimate must be to the target before
// the motor stops.
func (v *Valve) WithDeadband(db float64) *Valve {
	v.deadband = db
	return v
}

// Position returns the estimated opening in [0, 1].
func (v *Valve) Position() float64 { return v.pos }

func (v *Valve) Status() Direction { return v.status }

// Write steers towards duty as a target opening. A target of 0 keeps
// closing until the travel cap is used up so the valve seats.
func (v *Valve) Write(duty float64) {
	now := v.now()
	v.integrate(now)
	target := mathx.Clamp(duty, 0, 1)

	var want Direction
	switch {
	case target <= 0:
		want = Closing
	case target >= 1:
		want = Opening
	case target > v.pos+v.deadband:
		want = Opening
	case target < v.pos-v.deadband:
		want = Closing
	}
	if want == Stopped || !v.canMove(want) {
		v.stop()
		return
	}
	v.run(want, now)
}

// Off drives the valve closed.
func (v *Valve) Off() {
	v.Write(0)
}

// canMove reports whether the travel cap still allows running in d.
func (v *Valve) canMove(d Direction) bool {
	spent := v.budget
	if d != v.last {
		spent = 0
	}
	return spent < v.travel
}

func (v *Valve) integrate(now time.Time) {
	if v.status == Stopped {
		return
	}
	elapsed := now.Sub(v.runStart)
	v.runStart = now
	v.budget += elapsed
	delta := float64(elapsed) / float64(v.travel)
	if v.status == Closing {
		delta = -delta
	}
	v.pos = mathx.Clamp(v.pos+delta, 0, 1)
}

func (v *Valve) run(d Direction, now time.Time) {
	if v.status == d {
		return
	}
	if d != v.last {
		v.budget = 0
	}
	v.status = d
	v.last = d
	v.runStart = now
	v.log.Debug("%v from %.2f", d, v.pos)
	v.set(v.direction, d == Opening)
	v.set(v.enable, true)
}

func (v *Valve) stop() {
	if v.status != Stopped {
		v.log.Debug("stopped at %.2f", v.pos)
	}
	v.status = Stopped
	v.set(v.enable, false)
	v.set(v.direction, false)
}

func (v *Valve) set(sw Switch, on bool) {
	if err := sw.Set(on); err != nil {
		v.log.Error("line error: %v", err)
	}
}
