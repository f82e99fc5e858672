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

// Package ntc converts a 12-bit ADC reading of an NTC thermistor divider
// into degrees Celsius with the beta equation. The thermistor sits between
// VCC and the ADC input with a pull-down resistor to ground.
package ntc

import (
	"context"
	"fmt"
	"heatdoors/internal/sensor"
	"os"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// ADC returns one raw conversion.
type ADC interface {
	Read() (uint16, error)
}

type Params struct {
	ADCMax float32 `json:"adc_max"`
	RPull  float32 `json:"r_pull"`
	R25    float32 `json:"r25"`
	Beta   float32 `json:"beta"`
	T0     float32 `json:"t0_kelvin"`
}

func DefaultParams() Params {
	return Params{
		ADCMax: 4095,
		RPull:  10_000,
		R25:    10_000,
		Beta:   5800,
		T0:     298.15,
	}
}

// Celsius converts a raw ADC value. Readings on either rail and non-finite
// results are out of range.
func Celsius(p Params, adc uint16) (float32, error) {
	raw := float32(adc)
	if adc == 0 || raw >= p.ADCMax {
		return 0, fmt.Errorf("adc %d at rail: %w", adc, sensor.ErrOutOfRange)
	}

	r := p.RPull * (p.ADCMax - raw) / raw
	invT := 1/p.T0 + math32.Log(r/p.R25)/p.Beta
	c := 1/invT - 273.15

	if math32.IsNaN(c) || math32.IsInf(c, 0) {
		return 0, fmt.Errorf("adc %d: %w", adc, sensor.ErrOutOfRange)
	}
	return c, nil
}

// Thermistor is a sensor.Source over an ADC channel.
type Thermistor struct {
	adc ADC
	p   Params
	rng sensor.Range
}

func New(adc ADC, p Params, rng sensor.Range) *Thermistor {
	return &Thermistor{adc: adc, p: p, rng: rng}
}

func (t *Thermistor) Sample(context.Context) (float64, error) {
	raw, err := t.adc.Read()
	if err != nil {
		return 0, fmt.Errorf("adc read: %w", err)
	}
	c, err := Celsius(t.p, raw)
	if err != nil {
		return 0, err
	}
	v := float64(c)
	if err := t.rng.Check(v); err != nil {
		return v, err
	}
	return v, nil
}

// SysfsADC reads an IIO channel such as
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type SysfsADC struct {
	Path string
}

func (a SysfsADC) Read() (uint16, error) {
	b, err := os.ReadFile(a.Path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", a.Path, err)
	}
	return uint16(v), nil
}
