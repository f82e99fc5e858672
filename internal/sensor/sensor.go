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

// Package sensor defines the temperature reading produced every tick and
// the two sides of a sensor: the non-blocking Sensor the tick body reads,
// and the blocking Source a driver implements.
package sensor

import (
	"context"
	"fmt"
	"heatdoors/pkg/errcode"
	"math"
	"time"
)

var (
	// ErrNotReady: no conversion completed since the last read. Transient.
	ErrNotReady error = errcode.NotReady
	// ErrOutOfRange: raw value outside the calibrated domain. Safety signal.
	ErrOutOfRange error = errcode.OutOfRange
)

// Reading is one temperature sample tagged with the logical tick it was
// consumed on. Readings are values and never mutated after creation.
type Reading struct {
	Tick    uint64    `json:"tick"`
	Celsius float64   `json:"celsius"`
	Valid   bool      `json:"valid"`
	At      time.Time `json:"at"`
}

// Sensor is read once per tick. Read must not block.
type Sensor interface {
	Read(tick uint64) (Reading, error)
}

// Source is the transducer side: Sample may block on a bus transaction.
type Source interface {
	Sample(ctx context.Context) (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (float64, error)

func (f SourceFunc) Sample(ctx context.Context) (float64, error) { return f(ctx) }

// Range is a calibrated domain in degrees Celsius.
type Range struct {
	MinC float64
	MaxC float64
}

// Check returns ErrOutOfRange for values outside r or not finite.
func (r Range) Check(c float64) error {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return fmt.Errorf("non-finite value: %w", ErrOutOfRange)
	}
	if c < r.MinC || c > r.MaxC {
		return fmt.Errorf("%.2f C outside [%.1f, %.1f]: %w", c, r.MinC, r.MaxC, ErrOutOfRange)
	}
	return nil
}

// Direct reads a fast, synchronous Source straight from the tick body
// (a register read such as an ADC conversion result).
type Direct struct {
	Src   Source
	Range Range
	Now   func() time.Time
}

func (d Direct) Read(tick uint64) (Reading, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	c, err := d.Src.Sample(context.Background())
	if err == nil {
		err = d.Range.Check(c)
	}
	if err != nil {
		return Reading{Tick: tick, Celsius: c, At: now()}, err
	}
	return Reading{Tick: tick, Celsius: c, Valid: true, At: now()}, nil
}
