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

package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// ReadValue reads a named register and returns it as a float64 in
// engineering units (scale and offset applied; bools read as 0 or 1).
func (c *Client) ReadValue(ctx context.Context, name string) (float64, error) {
	regDef, ok := c.config.Registers[name]
	if !ok {
		return 0, fmt.Errorf("register %q not configured", name)
	}

	n := registerCount(regDef.DataType)
	raw, err := c.ReadRegisters(ctx, regDef.Address, n)
	if err != nil {
		return 0, fmt.Errorf("register read failed for %s: %w", name, err)
	}
	v, err := Decode(regDef, raw)
	if err != nil {
		return 0, fmt.Errorf("register %q: %w", name, err)
	}
	return v, nil
}

// WriteValue writes an engineering-unit value into a named register.
func (c *Client) WriteValue(ctx context.Context, name string, value float64) error {
	regDef, ok := c.config.Registers[name]
	if !ok {
		return fmt.Errorf("register %q not configured", name)
	}
	if !regDef.Writable {
		return fmt.Errorf("register %q is read-only", name)
	}

	raw, err := Encode(regDef, value)
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}
	c.log.Debug("WriteRegister '%s' <- %v", name, value)
	if err := c.WriteRegisters(ctx, regDef.Address, registerCount(regDef.DataType), raw); err != nil {
		return fmt.Errorf("failed to write register %q: %w", name, err)
	}
	return nil
}

// Decode converts raw big-endian register bytes into engineering units.
func Decode(regDef RegisterDef, raw []byte) (float64, error) {
	n := registerCount(regDef.DataType)
	if n == 0 {
		return 0, fmt.Errorf("unsupported data type %q", regDef.DataType)
	}
	if len(raw) < int(n)*2 {
		return 0, fmt.Errorf("insufficient data: got %d bytes, want %d", len(raw), n*2)
	}

	var v float64
	switch regDef.DataType {
	case "float32":
		v = float64(math.Float32frombits(binary.BigEndian.Uint32(raw)))
	case "int16":
		v = float64(int16(binary.BigEndian.Uint16(raw)))
	case "uint16":
		v = float64(binary.BigEndian.Uint16(raw))
	case "bool":
		if binary.BigEndian.Uint16(raw) != 0 {
			return 1, nil
		}
		return 0, nil
	}

	if regDef.Scale != 0 {
		v = v*regDef.Scale + regDef.Offset
	}
	return v, nil
}

// Encode converts an engineering-unit value into raw register bytes.
func Encode(regDef RegisterDef, value float64) ([]byte, error) {
	if regDef.Scale != 0 {
		value = (value - regDef.Offset) / regDef.Scale
	}

	switch regDef.DataType {
	case "float32":
		if value > math.MaxFloat32 || value < -math.MaxFloat32 {
			return nil, fmt.Errorf("value %v out of float32 range", value)
		}
		return binary.BigEndian.AppendUint32(nil, math.Float32bits(float32(value))), nil

	case "int16":
		ival := int64(math.Round(value))
		if ival < math.MinInt16 || ival > math.MaxInt16 {
			return nil, fmt.Errorf("value %v out of int16 range", value)
		}
		return binary.BigEndian.AppendUint16(nil, uint16(int16(ival))), nil

	case "uint16":
		ival := math.Round(value)
		if ival < 0 || ival > math.MaxUint16 {
			return nil, fmt.Errorf("value %v out of uint16 range", value)
		}
		return binary.BigEndian.AppendUint16(nil, uint16(ival)), nil

	case "bool":
		if value != 0 {
			return binary.BigEndian.AppendUint16(nil, math.MaxUint16), nil
		}
		return binary.BigEndian.AppendUint16(nil, 0), nil

	default:
		return nil, fmt.Errorf("unsupported data type %q", regDef.DataType)
	}
}

func registerCount(dt string) uint16 {
	switch dt {
	case "uint16", "int16", "bool":
		return 1
	case "float32":
		return 2
	default:
		return 0
	}
}
