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

// Package onewire drives a 1-Wire bus through a UART wired half duplex
// (TX and RX joined through a diode or open drain buffer). Each bus slot is
// one UART character: 0xFF writes a 1, 0x00 writes a 0, and a read-back of
// 0xFF means nobody pulled the line low.
package onewire

import (
	"errors"
	"fmt"
	"heatdoors/pkg/logger"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// one bit takes about 104 us
	ResetBaudRate = 9600
	// one bit takes about 8.7 us
	BaudRate = 115200

	// start bit plus 8 low data bits, a 78 us low pulse
	logic1 byte = 0xFF
	// start bit only, an 8.7 us low pulse
	logic0 byte = 0x00

	// start bit plus 4 low bits, a 520 us reset pulse
	resetPulse byte = 0xF0

	// SkipROM addresses every device on the bus.
	SkipROM byte = 0xCC
)

var (
	ErrNoPresence = errors.New("onewire: no device present")
	ErrTimeout    = errors.New("onewire: read timeout")
)

// Port is the subset of serial.Port the bus uses.
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

type Bus struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
	log     *logger.Logger
}

// Open opens a serial device as a 1-Wire bus.
func Open(name string) (*Bus, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: BaudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return New(port), nil
}

// Ports lists serial devices that could carry a bus.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

func New(port Port) *Bus {
	return &Bus{
		port:    port,
		timeout: 10 * time.Millisecond,
		log:     logger.New("OneWire"),
	}
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}

// Reset sends the reset pulse and checks for a presence pulse.
func (b *Bus) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.port.SetMode(&serial.Mode{BaudRate: ResetBaudRate}); err != nil {
		return fmt.Errorf("set reset baud rate: %w", err)
	}
	if err := b.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	resp := []byte{logic1}
	if _, err := b.port.Write([]byte{resetPulse}); err != nil {
		return fmt.Errorf("write reset pulse: %w", err)
	}
	if err := b.readFull(resp); err != nil {
		b.log.Debug("reset read: %v", err)
		resp[0] = logic1
	}

	if err := b.port.SetMode(&serial.Mode{BaudRate: BaudRate}); err != nil {
		return fmt.Errorf("set data baud rate: %w", err)
	}

	// a device stretches the low pulse into the upper nibble
	if resp[0]&0x0F != 0 || resp[0]&0xF0 == 0xF0 {
		return fmt.Errorf("%w (response %#02x)", ErrNoPresence, resp[0])
	}
	return nil
}

// WriteReadByte sends v LSB first and returns what the bus carried. Devices
// can pull 1 slots low, which is how a read works.
func (b *Bus) WriteReadByte(v byte) (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var tx [8]byte
	for pos := range tx {
		if (v>>pos)&1 == 1 {
			tx[pos] = logic1
		} else {
			tx[pos] = logic0
		}
	}
	if _, err := b.port.Write(tx[:]); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}

	var rx [8]byte
	if err := b.readFull(rx[:]); err != nil {
		return 0, err
	}
	var out byte
	for pos, c := range rx {
		if c == logic1 {
			out |= 1 << pos
		}
	}
	return out, nil
}

func (b *Bus) WriteByte(v byte) error {
	_, err := b.WriteReadByte(v)
	return err
}

func (b *Bus) ReadByte() (byte, error) {
	return b.WriteReadByte(0xFF)
}

// ReadBit issues one read slot.
func (b *Bus) ReadBit() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.port.Write([]byte{logic1}); err != nil {
		return false, fmt.Errorf("write: %w", err)
	}
	rx := []byte{0}
	if err := b.readFull(rx); err != nil {
		return false, err
	}
	return rx[0] == logic1, nil
}

// readFull reads len(p) bytes; a zero-length read means the port timed out.
func (b *Bus) readFull(p []byte) error {
	if err := b.port.SetReadTimeout(b.timeout); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	for n := 0; n < len(p); {
		m, err := b.port.Read(p[n:])
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if m == 0 {
			return fmt.Errorf("%w after %d of %d bytes", ErrTimeout, n, len(p))
		}
		n += m
	}
	return nil
}

// CRC8 is the Dallas/Maxim 1-Wire CRC (x^8 + x^5 + x^4 + 1, LSB first).
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		for range 8 {
			mix := (crc ^ b) & 1
			crc >>= 1
			if mix != 0 {
				crc ^= 0x8C
			}
			b >>= 1
		}
	}
	return crc
}
