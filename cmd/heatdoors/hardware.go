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

package main

import (
	"context"
	"fmt"
	"heatdoors/internal/actuator"
	"heatdoors/internal/config"
	"heatdoors/internal/gpio"
	"heatdoors/internal/onewire"
	"heatdoors/internal/remoteio"
	"heatdoors/internal/sensor"
	"heatdoors/internal/sensor/ds18b20"
	"heatdoors/internal/sensor/ntc"
	"heatdoors/internal/sim"
	"heatdoors/pkg/modbus"
	"heatdoors/pkg/service"
	"io"
	"time"
)

const (
	simStep      = 50 * time.Millisecond
	ds18b20Retry = 100 * time.Millisecond
)

type hardware struct {
	sensor   sensor.Sensor
	actuator actuator.Actuator
	mailbox  *sensor.Mailbox
	services []service.Runnable
	closers  []io.Closer
}

func (h *hardware) Close() {
	for i := len(h.closers) - 1; i >= 0; i-- {
		h.closers[i].Close()
	}
}

type closerFunc func()

func (f closerFunc) Close() error { f(); return nil }

// buildHardware opens the configured sensor and actuator. The actuator is
// off when this returns.
func buildHardware(ctx context.Context, cfg *config.Config) (*hardware, error) {
	h := &hardware{}
	rng := sensor.Range{MinC: cfg.Sensor.MinC, MaxC: cfg.Sensor.MaxC}

	var remote *remoteio.Module
	if cfg.Sensor.Kind == config.SensorRemoteIO || cfg.Actuator.Kind == config.ActuatorRemoteIO {
		mcfg, err := modbus.LoadConfig(cfg.RemoteIO.ModbusFile)
		if err != nil {
			return nil, err
		}
		client, err := modbus.NewClient(ctx, mcfg)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, closerFunc(client.Close))
		remote = remoteio.New(client, cfg.RemoteIO.TempRegister, cfg.RemoteIO.DutyRegister)
		h.services = append(h.services, remote)
	}

	var plant *sim.Plant
	if cfg.Sensor.Kind == config.SensorSim {
		plant = sim.NewPlant(cfg.Sim)
		h.services = append(h.services, service.Func(func(ctx context.Context) { plant.Run(ctx, simStep) }))
	}

	if err := h.openSensor(cfg, rng, plant, remote); err != nil {
		h.Close()
		return nil, err
	}
	if err := h.openActuator(cfg, plant, remote); err != nil {
		h.Close()
		return nil, err
	}
	// the watchdog hook calls Off from its own goroutine
	h.actuator = actuator.NewGuarded(h.actuator)
	return h, nil
}

func (h *hardware) poll(name string, src sensor.Source, rng sensor.Range, interval time.Duration) *sensor.Poller {
	h.mailbox = sensor.NewMailbox(rng)
	h.sensor = h.mailbox
	p := sensor.NewPoller(name, src, h.mailbox, interval)
	h.services = append(h.services, p)
	return p
}

func (h *hardware) openSensor(cfg *config.Config, rng sensor.Range, plant *sim.Plant, remote *remoteio.Module) error {
	switch cfg.Sensor.Kind {
	case config.SensorSim:
		h.poll("sim", plant, rng, cfg.PollInterval())
	case config.SensorNTC:
		th := ntc.New(ntc.SysfsADC{Path: cfg.Sensor.ADCPath}, cfg.Sensor.NTC, rng)
		h.sensor = sensor.Direct{Src: th, Range: rng}
	case config.SensorDS18B20:
		bus, err := onewire.Open(cfg.Sensor.SerialPort)
		if err != nil {
			return err
		}
		h.closers = append(h.closers, bus)
		h.poll("ds18b20", ds18b20.New(bus), rng, cfg.PollInterval()).WithRetry(ds18b20Retry)
	case config.SensorRemoteIO:
		h.poll("remoteio", remote, rng, cfg.PollInterval())
	default:
		return fmt.Errorf("unknown sensor kind %q", cfg.Sensor.Kind)
	}
	return nil
}

func (h *hardware) openOutput(line gpio.LineConfig) (gpio.Output, error) {
	out, err := gpio.OpenOutput(line)
	if err != nil {
		return nil, err
	}
	h.closers = append(h.closers, out)
	return out, nil
}

func (h *hardware) openActuator(cfg *config.Config, plant *sim.Plant, remote *remoteio.Module) error {
	a := cfg.Actuator
	switch a.Kind {
	case config.ActuatorSim:
		h.actuator = actuator.NewHeater("sim", plant, false)
	case config.ActuatorRemoteIO:
		h.actuator = actuator.NewHeater("remoteio", remote, false)
	case config.ActuatorHeater:
		// relay on any non-zero duty; pairs with hysteresis mode
		sw, err := h.openOutput(a.Heater)
		if err != nil {
			return err
		}
		h.actuator = actuator.NewHeater("relay", actuator.OutputFunc(func(level float64) error {
			return sw.Set(level > 0)
		}), false)
	case config.ActuatorSlowPWM:
		sw, err := h.openOutput(a.Heater)
		if err != nil {
			return err
		}
		h.actuator = actuator.NewSlowPWM("heater", sw, cfg.Window()).WithMinTimes(cfg.MinOn(), cfg.MinOff())
	case config.ActuatorValve:
		enable, err := h.openOutput(a.ValveEnable)
		if err != nil {
			return err
		}
		dir, err := h.openOutput(a.ValveDir)
		if err != nil {
			return err
		}
		h.actuator = actuator.NewValve("mixing", enable, dir, cfg.Travel())
	default:
		return fmt.Errorf("unknown actuator kind %q", a.Kind)
	}
	return nil
}
