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

// Package sim is a first-order thermal model of the heated enclosure, used
// when no hardware is attached and by the closed-loop tests.
package sim

import (
	"context"
	"fmt"
	"heatdoors/pkg/logger"
	"heatdoors/pkg/mathx"
	"math"
	"sync"
	"time"
)

type Config struct {
	AmbientC    float64 `json:"ambient_c"`
	InitialC    float64 `json:"initial_c"`
	HeaterWatts float64 `json:"heater_watts"`
	LossWPerK   float64 `json:"loss_w_per_k"`
	CapacityJK  float64 `json:"capacity_j_per_k"`
}

func DefaultConfig() Config {
	return Config{
		AmbientC:    20,
		InitialC:    20,
		HeaterWatts: 200,
		LossWPerK:   2,
		CapacityJK:  500,
	}
}

// Plant integrates dT/dt = (P*level - k*(T-Tamb)) / C. It is both the
// temperature Source and the heater Output.
type Plant struct {
	mu    sync.Mutex
	cfg   Config
	temp  float64
	level float64
	fault error

	log *logger.Logger
}

func NewPlant(cfg Config) *Plant {
	return &Plant{
		cfg:  cfg,
		temp: cfg.InitialC,
		log:  logger.New("Sim"),
	}
}

// Sample implements sensor.Source.
func (p *Plant) Sample(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fault != nil {
		return 0, p.fault
	}
	return p.temp, nil
}

// Set implements actuator.Output.
func (p *Plant) Set(level float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if math.IsNaN(level) {
		return fmt.Errorf("sim: bad level %v", level)
	}
	p.level = mathx.Clamp(level, 0, 1)
	return nil
}

// Advance integrates the model over dt.
func (p *Plant) Advance(dt time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := dt.Seconds()
	dT := (p.cfg.HeaterWatts*p.level - p.cfg.LossWPerK*(p.temp-p.cfg.AmbientC)) / p.cfg.CapacityJK
	p.temp += dT * s
}

// Temperature returns the model temperature.
func (p *Plant) Temperature() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.temp
}

// Level returns the last heater level.
func (p *Plant) Level() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Inject makes Sample fail with err until cleared with nil.
func (p *Plant) Inject(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fault = err
}

// SetTemperature forces the model temperature.
func (p *Plant) SetTemperature(c float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.temp = c
}

// Run advances the model in real time with the given step.
func (p *Plant) Run(ctx context.Context, step time.Duration) {
	p.log.Info("Running... (ambient %.1f°C, %gW heater)", p.cfg.AmbientC, p.cfg.HeaterWatts)
	defer p.log.Info("Stopped")

	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Advance(step)
		}
	}
}
