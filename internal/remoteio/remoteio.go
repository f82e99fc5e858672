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

// Package remoteio uses a Modbus TCP I/O module as the temperature input and
// the heater output. Register names come from the modbus register map.
package remoteio

import (
	"context"
	"fmt"
	"heatdoors/pkg/logger"
	"heatdoors/pkg/mathx"
	"time"
)

const (
	maxRetries = 3
	retryDelay = 500 * time.Millisecond
)

// Client is the named-register API of pkg/modbus.
type Client interface {
	ReadValue(ctx context.Context, name string) (float64, error)
	WriteValue(ctx context.Context, name string, value float64) error
}

// Module is a sensor.Source over the temperature register and an
// actuator.Output over the duty register. Set never blocks: the latest
// level is handed to Run, which does the write.
type Module struct {
	client   Client
	tempReg  string
	dutyReg  string
	updateCh chan float64
	delay    time.Duration

	log *logger.Logger
}

func New(client Client, tempReg, dutyReg string) *Module {
	return &Module{
		client:   client,
		tempReg:  tempReg,
		dutyReg:  dutyReg,
		updateCh: make(chan float64, 1),
		delay:    retryDelay,
		log:      logger.New("RemoteIO"),
	}
}

func (m *Module) Sample(ctx context.Context) (float64, error) {
	v, err := m.client.ReadValue(ctx, m.tempReg)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", m.tempReg, err)
	}
	return v, nil
}

// Set queues level in [0, 1], replacing any level not yet written.
func (m *Module) Set(level float64) error {
	level = mathx.Clamp(level, 0, 1)
	select {
	case m.updateCh <- level:
	default:
		select {
		case <-m.updateCh:
		default:
		}
		m.updateCh <- level
	}
	return nil
}

// Run writes queued levels until ctx is done, then writes 0.
func (m *Module) Run(ctx context.Context) {
	m.log.Info("Running... (temperature %q, duty %q)", m.tempReg, m.dutyReg)
	defer m.log.Info("Stopped")

	for {
		select {
		case <-ctx.Done():
			off, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			m.write(off, 0)
			cancel()
			return
		case level := <-m.updateCh:
			m.write(ctx, level)
		}
	}
}

// write retries a few times, then gives up until the next level arrives.
func (m *Module) write(ctx context.Context, level float64) {
	percent := level * 100
	for i := range maxRetries {
		err := m.client.WriteValue(ctx, m.dutyReg, percent)
		if err == nil {
			m.log.Debug("duty %.1f%% written", percent)
			return
		}
		m.log.Error("attempt %d/%d: %v", i+1, maxRetries, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.delay):
		}
	}
	m.log.Error("write failed after %d attempts", maxRetries)
}
