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

// Package indicator blinks the status LED according to the safety state.
package indicator

import (
	"context"
	"heatdoors/internal/actuator"
	"heatdoors/internal/events"
	"heatdoors/internal/safety"
	"heatdoors/pkg/eventbus"
	"heatdoors/pkg/logger"
	"time"
)

const step = 50 * time.Millisecond

// Lit reports whether the LED is on for state at phase into the pattern.
//
//	Nominal          toggles every second
//	Stale            fast blink, 200 ms
//	latched faults   solid on
//	Shutdown         double blink every 1.5 s
func Lit(state safety.State, phase time.Duration) bool {
	switch state {
	case safety.Nominal:
		return (phase/time.Second)%2 == 0
	case safety.Stale:
		return (phase/(200*time.Millisecond))%2 == 0
	case safety.SensorFault, safety.Overtemperature:
		return true
	case safety.Shutdown:
		p := phase % (1500 * time.Millisecond)
		return p < 150*time.Millisecond || (p >= 300*time.Millisecond && p < 450*time.Millisecond)
	}
	return false
}

type Indicator struct {
	led   actuator.Switch
	bus   *eventbus.Bus
	start time.Time
	state safety.State
	lit   bool
	log   *logger.Logger
}

func New(led actuator.Switch, bus *eventbus.Bus) *Indicator {
	i := &Indicator{
		led: led,
		bus: bus,
		log: logger.New("Indicator"),
	}
	if err := led.Set(false); err != nil {
		i.log.Error("led: %v", err)
	}
	return i
}

func (i *Indicator) Run(ctx context.Context) {
	i.log.Info("Running...")
	defer func() {
		i.drive(false)
		i.log.Info("Stopped")
	}()

	diag, unsub := i.bus.Subscribe(ctx, events.TopicDiagnostics, true)
	defer unsub()

	ticker := time.NewTicker(step)
	defer ticker.Stop()
	i.start = time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-diag:
			if !ok {
				return
			}
			if d, ok := ev.(events.TickDiagnostics); ok {
				i.Update(d.State, time.Now())
			}
		case now := <-ticker.C:
			i.drive(Lit(i.state, now.Sub(i.start)))
		}
	}
}

// Update switches pattern; a new pattern restarts its phase.
func (i *Indicator) Update(state safety.State, now time.Time) {
	if state == i.state {
		return
	}
	i.state = state
	i.start = now
	i.drive(Lit(state, 0))
}

func (i *Indicator) drive(on bool) {
	if on == i.lit {
		return
	}
	i.lit = on
	if err := i.led.Set(on); err != nil {
		i.log.Error("led: %v", err)
	}
}
