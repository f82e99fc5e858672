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

// Package ds18b20 reads a single DS18B20 on a 1-Wire bus without blocking
// the caller for the 750 ms conversion: the first call starts a conversion,
// later calls poll it and read the scratchpad once it is done.
package ds18b20

import (
	"context"
	"errors"
	"fmt"
	"heatdoors/internal/onewire"
	"heatdoors/internal/sensor"
	"heatdoors/pkg/errcode"
	"heatdoors/pkg/logger"
	"time"
)

const (
	cmdConvertT       byte = 0x44
	cmdReadScratchpad byte = 0xBE

	// 12-bit conversion worst case is 750 ms
	convertTimeout = 1500 * time.Millisecond

	// power-on register value, reported before any conversion completed
	powerOnRaw int16 = 0x0550
)

var ErrCRC = fmt.Errorf("ds18b20: scratchpad crc mismatch: %w", errcode.BusFault)

// Bus is what the driver needs from the 1-Wire bus.
type Bus interface {
	Reset() error
	WriteByte(v byte) error
	ReadByte() (byte, error)
	ReadBit() (bool, error)
}

type Sensor struct {
	bus        Bus
	converting bool
	started    time.Time
	now        func() time.Time
	log        *logger.Logger
}

func New(bus Bus) *Sensor {
	return &Sensor{
		bus: bus,
		now: time.Now,
		log: logger.New("DS18B20"),
	}
}

// Sample implements sensor.Source. It returns sensor.ErrNotReady while a
// conversion is pending.
func (s *Sensor) Sample(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !s.converting {
		if err := s.command(cmdConvertT); err != nil {
			return 0, err
		}
		s.converting = true
		s.started = s.now()
		return 0, sensor.ErrNotReady
	}

	done, err := s.bus.ReadBit()
	if err != nil {
		s.converting = false
		return 0, fmt.Errorf("poll conversion: %w", err)
	}
	if !done {
		if s.now().Sub(s.started) > convertTimeout {
			s.converting = false
			return 0, fmt.Errorf("ds18b20: conversion did not finish in %v: %w", convertTimeout, errcode.BusFault)
		}
		return 0, sensor.ErrNotReady
	}
	s.converting = false

	sp, err := s.scratchpad()
	if err != nil {
		return 0, err
	}
	return Decode(sp)
}

func (s *Sensor) command(cmd byte) error {
	if err := s.bus.Reset(); err != nil {
		return err
	}
	if err := s.bus.WriteByte(onewire.SkipROM); err != nil {
		return err
	}
	return s.bus.WriteByte(cmd)
}

func (s *Sensor) scratchpad() ([9]byte, error) {
	var sp [9]byte
	if err := s.command(cmdReadScratchpad); err != nil {
		return sp, err
	}
	for i := range sp {
		b, err := s.bus.ReadByte()
		if err != nil {
			return sp, fmt.Errorf("read scratchpad byte %d: %w", i, err)
		}
		sp[i] = b
	}
	return sp, nil
}

// Decode checks the scratchpad CRC and converts the temperature register.
func Decode(sp [9]byte) (float64, error) {
	if onewire.CRC8(sp[:8]) != sp[8] {
		return 0, ErrCRC
	}
	raw := int16(uint16(sp[1])<<8 | uint16(sp[0]))
	if raw == powerOnRaw {
		// conversion never ran; the caller retries with a fresh one
		return 0, fmt.Errorf("ds18b20: power-on value: %w", sensor.ErrNotReady)
	}
	return float64(raw) / 16, nil
}

// IsBusFault reports errors that leave no usable reading.
func IsBusFault(err error) bool {
	return errors.Is(err, errcode.BusFault) || errors.Is(err, onewire.ErrNoPresence) || errors.Is(err, onewire.ErrTimeout)
}
