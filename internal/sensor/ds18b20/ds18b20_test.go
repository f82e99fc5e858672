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

package ds18b20

import (
	"context"
	"heatdoors/internal/onewire"
	"heatdoors/internal/sensor"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus emulates one DS18B20.
type fakeBus struct {
	cmds      []byte
	busyPolls int
	pad       [9]byte
	idx       int
	present   bool
}

func (b *fakeBus) Reset() error {
	if !b.present {
		return onewire.ErrNoPresence
	}
	b.idx = 0
	return nil
}

func (b *fakeBus) WriteByte(v byte) error {
	b.cmds = append(b.cmds, v)
	return nil
}

func (b *fakeBus) ReadByte() (byte, error) {
	v := b.pad[b.idx]
	b.idx++
	return v, nil
}

func (b *fakeBus) ReadBit() (bool, error) {
	if b.busyPolls > 0 {
		b.busyPolls--
		return false, nil
	}
	return true, nil
}

func pad(raw int16) [9]byte {
	sp := [9]byte{byte(raw), byte(uint16(raw) >> 8), 0x4B, 0x46, 0x7F, 0xFF, 0x0F, 0x10}
	sp[8] = onewire.CRC8(sp[:8])
	return sp
}

func TestTwoPhaseConversion(t *testing.T) {
	bus := &fakeBus{present: true, busyPolls: 2, pad: pad(0x0191)}
	s := New(bus)
	ctx := context.Background()

	_, err := s.Sample(ctx)
	assert.ErrorIs(t, err, sensor.ErrNotReady, "conversion started")
	assert.Equal(t, []byte{onewire.SkipROM, cmdConvertT}, bus.cmds)

	for range 2 {
		_, err = s.Sample(ctx)
		assert.ErrorIs(t, err, sensor.ErrNotReady)
	}

	c, err := s.Sample(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0625, c)
	assert.Equal(t, []byte{onewire.SkipROM, cmdConvertT, onewire.SkipROM, cmdReadScratchpad}, bus.cmds)

	// next call starts a new conversion
	_, err = s.Sample(ctx)
	assert.ErrorIs(t, err, sensor.ErrNotReady)
}

func TestDecode(t *testing.T) {
	c, err := Decode(pad(-162))
	require.NoError(t, err)
	assert.Equal(t, -10.125, c)

	_, err = Decode(pad(0x0550))
	assert.ErrorIs(t, err, sensor.ErrNotReady)
	assert.NotErrorIs(t, err, sensor.ErrOutOfRange)
	assert.False(t, IsBusFault(err))

	bad := pad(0x0191)
	bad[0] ^= 0x10
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrCRC)
	assert.True(t, IsBusFault(err))
}

func TestPowerOnValueRestartsConversion(t *testing.T) {
	bus := &fakeBus{present: true, pad: pad(0x0550)}
	s := New(bus)
	ctx := context.Background()

	_, err := s.Sample(ctx)
	require.ErrorIs(t, err, sensor.ErrNotReady)
	_, err = s.Sample(ctx)
	require.ErrorIs(t, err, sensor.ErrNotReady)
	assert.False(t, s.converting)

	bus.pad = pad(0x0191)
	bus.cmds = nil
	_, err = s.Sample(ctx)
	require.ErrorIs(t, err, sensor.ErrNotReady)
	assert.Equal(t, []byte{onewire.SkipROM, cmdConvertT}, bus.cmds)

	c, err := s.Sample(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25.0625, c)
}

func TestNoDevice(t *testing.T) {
	s := New(&fakeBus{})
	_, err := s.Sample(context.Background())
	assert.ErrorIs(t, err, onewire.ErrNoPresence)
	assert.True(t, IsBusFault(err))
}

func TestConversionTimeout(t *testing.T) {
	now := time.Unix(0, 0)
	bus := &fakeBus{present: true, busyPolls: 100, pad: pad(0x0191)}
	s := New(bus)
	s.now = func() time.Time { return now }

	_, err := s.Sample(context.Background())
	require.ErrorIs(t, err, sensor.ErrNotReady)

	now = now.Add(2 * time.Second)
	_, err = s.Sample(context.Background())
	assert.True(t, IsBusFault(err))
	assert.False(t, s.converting)
}
