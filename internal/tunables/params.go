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

// Package tunables holds the setpoint, controller gains and safety
// thresholds. The whole block is replaced at once; readers never see a
// partial update.
package tunables

import (
	"fmt"
	"heatdoors/internal/control"
	"heatdoors/internal/safety"
	"heatdoors/pkg/errcode"
	"math"
)

type Mode uint8

const (
	ModePID Mode = iota
	ModeHysteresis
)

func (m Mode) String() string {
	switch m {
	case ModePID:
		return "pid"
	case ModeHysteresis:
		return "hysteresis"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "pid", "":
		*m = ModePID
	case "hysteresis":
		*m = ModeHysteresis
	default:
		return fmt.Errorf("unknown control mode %q", b)
	}
	return nil
}

// Params is a fixed-size block of scalars.
type Params struct {
	Setpoint float64 `yaml:"setpoint" json:"setpoint"`
	Mode     Mode    `yaml:"mode" json:"mode"`

	Kp       float64 `yaml:"kp" json:"kp"`
	Ki       float64 `yaml:"ki" json:"ki"`
	Kd       float64 `yaml:"kd" json:"kd"`
	IMax     float64 `yaml:"integral_max" json:"integral_max"`
	MaxDuty  float64 `yaml:"max_duty" json:"max_duty"`
	Deadband float64 `yaml:"deadband" json:"deadband"`
	Decay    float64 `yaml:"integral_decay" json:"integral_decay"`
	Band     float64 `yaml:"hysteresis_band" json:"hysteresis_band"`

	MaxCelsius float64 `yaml:"overtemp_celsius" json:"overtemp_celsius"`
	MaxRate    float64 `yaml:"max_rate" json:"max_rate"` // °C/s
	StaleTicks uint32  `yaml:"stale_ticks" json:"stale_ticks"`
}

func Default() Params {
	return Params{
		Setpoint:   45,
		Mode:       ModePID,
		Kp:         8,
		Ki:         0.05,
		Kd:         0,
		IMax:       40,
		MaxDuty:    100,
		Deadband:   0,
		Decay:      0,
		Band:       1,
		MaxCelsius: 80,
		MaxRate:    10,
		StaleTicks: 20,
	}
}

// ConfigurationError names the first rejected field.
type ConfigurationError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s=%g: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return errcode.InvalidConfig }

type bound struct {
	field  string
	value  float64
	lo, hi float64
}

// Validate checks every field against its allowed range.
func (p Params) Validate() error {
	bounds := [...]bound{
		{"setpoint", p.Setpoint, -40, 125},
		{"kp", p.Kp, 0, 1000},
		{"ki", p.Ki, 0, 1000},
		{"kd", p.Kd, 0, 1000},
		{"max_duty", p.MaxDuty, 1e-6, 1e6},
		{"integral_max", p.IMax, 0, p.MaxDuty},
		{"deadband", p.Deadband, 0, 10},
		{"integral_decay", p.Decay, 0, 1},
		{"hysteresis_band", p.Band, 0, 50},
		{"overtemp_celsius", p.MaxCelsius, -40, 200},
		{"max_rate", p.MaxRate, 0, 1000},
		{"stale_ticks", float64(p.StaleTicks), 1, 100000},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return &ConfigurationError{Field: b.field, Value: b.value, Reason: "not a finite number"}
		}
		if b.value < b.lo || b.value > b.hi {
			return &ConfigurationError{Field: b.field, Value: b.value,
				Reason: fmt.Sprintf("outside [%g, %g]", b.lo, b.hi)}
		}
	}
	if p.Setpoint >= p.MaxCelsius {
		return &ConfigurationError{Field: "setpoint", Value: p.Setpoint,
			Reason: fmt.Sprintf("must be below overtemp_celsius %g", p.MaxCelsius)}
	}
	if p.Mode > ModeHysteresis {
		return &ConfigurationError{Field: "mode", Value: float64(p.Mode), Reason: "unknown mode"}
	}
	return nil
}

// Gains returns the PID gains of the block.
func (p Params) Gains() control.Gains {
	return control.Gains{
		Kp:       p.Kp,
		Ki:       p.Ki,
		Kd:       p.Kd,
		IMax:     p.IMax,
		Max:      p.MaxDuty,
		Deadband: p.Deadband,
		Decay:    p.Decay,
	}
}

// Limits returns the safety thresholds for a given tick period.
func (p Params) Limits(tickSeconds float64) safety.Limits {
	return safety.Limits{
		MaxCelsius:  p.MaxCelsius,
		MaxRate:     p.MaxRate,
		StaleTicks:  p.StaleTicks,
		TickSeconds: tickSeconds,
	}
}
