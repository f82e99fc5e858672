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

package onewire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort answers each write with respond(tx). A nil respond echoes.
type fakePort struct {
	bauds   []int
	written []byte
	rx      []byte
	flushes int
	respond func(tx []byte) []byte
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	if p.respond == nil {
		p.rx = append(p.rx, b...)
	} else {
		p.rx = append(p.rx, p.respond(b)...)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.rx)
	p.rx = p.rx[n:]
	return n, nil
}

func (p *fakePort) Close() error                       { return nil }
func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (p *fakePort) ResetInputBuffer() error {
	p.flushes++
	p.rx = nil
	return nil
}
func (p *fakePort) SetMode(m *serial.Mode) error {
	p.bauds = append(p.bauds, m.BaudRate)
	return nil
}

// device answers read slots with the bits of out, one byte per 8 slots.
func device(out ...byte) func(tx []byte) []byte {
	bit := 0
	return func(tx []byte) []byte {
		if len(tx) == 1 && tx[0] == resetPulse {
			return []byte{0xE0}
		}
		rx := make([]byte, len(tx))
		for i, c := range tx {
			rx[i] = c
			if c == logic1 && bit/8 < len(out) {
				if (out[bit/8]>>(bit%8))&1 == 0 {
					rx[i] = 0xFE
				}
				bit++
			}
		}
		return rx
	}
}

func TestResetPresence(t *testing.T) {
	p := &fakePort{respond: device()}
	b := New(p)
	require.NoError(t, b.Reset())
	assert.Equal(t, []int{ResetBaudRate, BaudRate}, p.bauds)
	assert.Equal(t, []byte{resetPulse}, p.written)
	assert.Equal(t, 1, p.flushes)
}

func TestResetNoDevice(t *testing.T) {
	// plain echo, nobody stretched the pulse
	b := New(&fakePort{})
	assert.ErrorIs(t, b.Reset(), ErrNoPresence)

	// nothing read back at all
	silent := &fakePort{respond: func([]byte) []byte { return nil }}
	b = New(silent)
	assert.ErrorIs(t, b.Reset(), ErrNoPresence)
	assert.Equal(t, []int{ResetBaudRate, BaudRate}, silent.bauds)
}

func TestWriteByteEncoding(t *testing.T) {
	p := &fakePort{}
	b := New(p)
	got, err := b.WriteReadByte(0xA5)
	require.NoError(t, err)
	assert.Equal(t, byte(0xA5), got)
	assert.Equal(t, []byte{0xFF, 0x00, 0xFF, 0x00, 0x00, 0xFF, 0x00, 0xFF}, p.written)
}

func TestReadByteFromDevice(t *testing.T) {
	b := New(&fakePort{respond: device(0x3C, 0x81)})
	v, err := b.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x3C), v)

	v, err = b.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x81), v)
}

func TestReadBit(t *testing.T) {
	b := New(&fakePort{respond: device(0x01)})
	bit, err := b.ReadBit()
	require.NoError(t, err)
	assert.True(t, bit)

	bit, err = b.ReadBit()
	require.NoError(t, err)
	assert.False(t, bit)
}

func TestReadTimeout(t *testing.T) {
	b := New(&fakePort{respond: func(tx []byte) []byte { return tx[:3] }})
	_, err := b.ReadByte()
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCRC8(t *testing.T) {
	rom := []byte{0x02, 0x1C, 0xB8, 0x01, 0x00, 0x00, 0x00}
	assert.Equal(t, byte(0xA2), CRC8(rom))
	assert.Zero(t, CRC8(append(rom, 0xA2)))
}
