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

// Package scheduler runs the fixed-tick loop: sample, evaluate safety,
// compute, actuate, publish. Ticks never overlap.
package scheduler

import (
	"context"
	"errors"
	"heatdoors/internal/actuator"
	"heatdoors/internal/control"
	"heatdoors/internal/events"
	"heatdoors/internal/safety"
	"heatdoors/internal/sensor"
	"heatdoors/internal/tunables"
	"heatdoors/pkg/eventbus"
	"heatdoors/pkg/logger"
	"sync/atomic"
	"time"
)

// Kicker is fed at the end of every tick.
type Kicker interface {
	Kick()
}

type Scheduler struct {
	period   time.Duration
	newTimer func(time.Duration) Timer
	now      func() time.Time

	sensor     sensor.Sensor
	supervisor *safety.Supervisor
	store      *tunables.Store
	act        actuator.Actuator
	bus        *eventbus.Bus
	dog        Kicker

	pid  *control.PID
	hyst *control.Hysteresis
	mode tunables.Mode

	// tick body only
	tick        uint64
	state       safety.State
	output      float64
	readingTick uint64
	haveReading bool
	lastC       float64

	// shared with the trigger goroutine
	pending  atomic.Bool
	wake     chan struct{}
	overruns atomic.Uint64
	ticks    atomic.Uint64
	maxTick  atomic.Int64
	lastTick atomic.Int64

	log *logger.Logger
}

func New(period time.Duration, s sensor.Sensor, sup *safety.Supervisor, store *tunables.Store, act actuator.Actuator, bus *eventbus.Bus) *Scheduler {
	p := store.Load()
	return &Scheduler{
		period:     period,
		newTimer:   NewTicker,
		now:        time.Now,
		sensor:     s,
		supervisor: sup,
		store:      store,
		act:        act,
		bus:        bus,
		pid:        control.NewPID(p.Gains()),
		hyst:       control.NewHysteresis(p.Band, p.MaxDuty),
		mode:       p.Mode,
		wake:       make(chan struct{}, 1),
		log:        logger.New("Scheduler"),
	}
}

func (s *Scheduler) WithWatchdog(k Kicker) *Scheduler {
	s.dog = k
	return s
}

func (s *Scheduler) WithTimer(fn func(time.Duration) Timer) *Scheduler {
	s.newTimer = fn
	return s
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Run drives ticks from the timer until ctx is done, then leaves the
// actuator off.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("Running... (tick %v)", s.period)
	s.act.Off()
	defer func() {
		s.act.Off()
		s.log.Info("Stopped after %d ticks, %d overruns", s.ticks.Load(), s.overruns.Load())
	}()

	timer := s.newTimer(s.period)
	defer timer.Stop()

	go s.interrupt(ctx, timer)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			for s.pending.Swap(false) {
				s.Step()
			}
		}
	}
}

// interrupt turns timer fires into the pending flag. It never blocks on the
// tick body.
func (s *Scheduler) interrupt(ctx context.Context, timer Timer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C():
			s.Trigger()
		}
	}
}

// Trigger requests a tick. A trigger that finds one already pending is
// coalesced and counted as an overrun.
func (s *Scheduler) Trigger() {
	if s.pending.Swap(true) {
		s.overruns.Add(1)
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Step runs one full tick. It is called from Run, or directly by tests.
func (s *Scheduler) Step() events.TickDiagnostics {
	start := s.now()
	s.tick++
	tick := s.tick
	p := s.store.Load()

	// (1) sample
	r, rerr := s.sensor.Read(tick)
	fresh := rerr == nil && r.Valid

	// (2) safety
	prev := s.state
	state := s.supervisor.Evaluate(tick, r, rerr, p.Limits(s.period.Seconds()))
	s.state = state

	// (3) control and (4) actuation
	var duty float64
	if state != safety.Nominal {
		s.resetControl()
		s.output = 0
		s.act.Off()
	} else {
		ctrl := s.controller(p)
		if fresh {
			dt := s.period.Seconds()
			if s.haveReading {
				dt = float64(tick-s.readingTick) * s.period.Seconds()
			}
			s.output = ctrl.Update(p.Setpoint, r.Celsius, dt)
		}
		duty = s.output / p.MaxDuty
		s.act.Write(duty)
	}
	if fresh {
		s.readingTick, s.haveReading, s.lastC = tick, true, r.Celsius
	}

	// (5) diagnostics
	d := events.TickDiagnostics{
		Tick:         tick,
		Time:         start,
		State:        state,
		Cause:        s.supervisor.Cause(),
		Mode:         p.Mode.String(),
		TemperatureC: s.lastC,
		Fresh:        fresh,
		ReadingTick:  s.readingTick,
		SetpointC:    p.Setpoint,
		Output:       s.output,
		Duty:         duty,
		Integral:     s.pid.State().Integral,
		Overruns:     s.overruns.Load(),
		ParamsV:      s.store.Version(),
	}
	if rerr != nil && !errors.Is(rerr, sensor.ErrNotReady) {
		d.SensorError = rerr.Error()
	}
	if state != prev {
		s.publish(events.TopicSafety, events.SafetyChange{
			Tick: tick, Time: start, From: prev, To: state, Cause: d.Cause,
		})
	}

	elapsed := s.now().Sub(start)
	d.Duration = elapsed
	s.recordDuration(elapsed)
	s.publish(events.TopicDiagnostics, d)

	s.ticks.Store(tick)
	if s.dog != nil {
		s.dog.Kick()
	}
	return d
}

// controller returns the active mode's controller with this tick's
// parameters. Switching modes starts the new one from a clean state.
func (s *Scheduler) controller(p tunables.Params) control.Controller {
	if p.Mode != s.mode {
		s.log.Info("control mode %v -> %v", s.mode, p.Mode)
		s.resetControl()
		s.mode = p.Mode
	}
	if p.Mode == tunables.ModeHysteresis {
		s.hyst.Band, s.hyst.Max = p.Band, p.MaxDuty
		return s.hyst
	}
	s.pid.SetGains(p.Gains())
	return s.pid
}

func (s *Scheduler) resetControl() {
	s.pid.Reset()
	s.hyst.Reset()
	s.haveReading = false
}

func (s *Scheduler) publish(topic eventbus.Topic, ev eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, ev)
	}
}

func (s *Scheduler) recordDuration(d time.Duration) {
	s.lastTick.Store(int64(d))
	for {
		cur := s.maxTick.Load()
		if int64(d) <= cur || s.maxTick.CompareAndSwap(cur, int64(d)) {
			return
		}
	}
}

// Stats is a snapshot of the loop counters, safe from any goroutine.
type Stats struct {
	Period      time.Duration `json:"period"`
	Ticks       uint64        `json:"ticks"`
	Overruns    uint64        `json:"overruns"`
	LastTick    time.Duration `json:"last_tick"`
	MaxTick     time.Duration `json:"max_tick"`
	SafetyState safety.State  `json:"safety_state"`
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Period:      s.period,
		Ticks:       s.ticks.Load(),
		Overruns:    s.overruns.Load(),
		LastTick:    time.Duration(s.lastTick.Load()),
		MaxTick:     time.Duration(s.maxTick.Load()),
		SafetyState: s.supervisor.Current(),
	}
}
