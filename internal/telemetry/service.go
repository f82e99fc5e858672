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

package telemetry

import (
	"context"
	"heatdoors/internal/events"
	"heatdoors/pkg/eventbus"
	"heatdoors/pkg/logger"
)

// Service publishes every Nth tick's diagnostics and every safety change.
type Service struct {
	pub    Publisher
	bus    *eventbus.Bus
	topics Topics
	every  uint64
	log    *logger.Logger
}

func NewService(pub Publisher, bus *eventbus.Bus, topics Topics, every uint64) *Service {
	return &Service{
		pub:    pub,
		bus:    bus,
		topics: topics,
		every:  max(every, 1),
		log:    logger.New("Telemetry"),
	}
}

func (s *Service) Run(ctx context.Context) {
	s.log.Info("Running... (every %d ticks to %s)", s.every, s.topics.Telemetry)
	defer func() {
		if err := s.pub.Close(); err != nil {
			s.log.Error("close: %v", err)
		}
		s.log.Info("Stopped")
	}()

	diag, unsubDiag := s.bus.Subscribe(ctx, events.TopicDiagnostics, false)
	defer unsubDiag()
	safety, unsubSafety := s.bus.Subscribe(ctx, events.TopicSafety, true)
	defer unsubSafety()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-diag:
			if !ok {
				return
			}
			if d, ok := ev.(events.TickDiagnostics); ok && d.Tick%s.every == 0 {
				s.publishTelemetry(d)
			}
		case ev, ok := <-safety:
			if !ok {
				return
			}
			if c, ok := ev.(events.SafetyChange); ok {
				s.publishSafety(c)
			}
		}
	}
}

func (s *Service) publishTelemetry(d events.TickDiagnostics) {
	payload, err := FormatTelemetry(d)
	if err != nil {
		s.log.Error("format telemetry: %v", err)
		return
	}
	if err := s.pub.Publish(Message{Topic: s.topics.Telemetry, QoS: 0, Payload: payload}); err != nil {
		s.log.Warn("%v", err)
	}
}

func (s *Service) publishSafety(c events.SafetyChange) {
	payload, err := FormatSafety(c)
	if err != nil {
		s.log.Error("format safety: %v", err)
		return
	}
	if err := s.pub.Publish(Message{Topic: s.topics.Safety, QoS: 1, Retained: true, Payload: payload}); err != nil {
		s.log.Error("%v", err)
	}
}
