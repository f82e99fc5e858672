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

package tunables

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"heatdoors/pkg/logger"
	"os"
	"path/filepath"
)

// NVM block layout, little endian:
//
//	0  magic "HDRS"
//	4  version uint16
//	6  payload length uint16
//	8  payload (float32 and uint32 fields)
//	60 CRC-32 IEEE over bytes 0..59
const (
	BlockSize    = 64
	blockVersion = 1
)

var blockMagic = [4]byte{'H', 'D', 'R', 'S'}

var (
	ErrBlockErased  = errors.New("nvm block erased")
	ErrBlockMagic   = errors.New("nvm block magic mismatch")
	ErrBlockVersion = errors.New("nvm block version unsupported")
	ErrBlockCRC     = errors.New("nvm block crc mismatch")
)

type record struct {
	Magic      [4]byte
	Version    uint16
	Length     uint16
	Setpoint   float32
	Mode       uint32
	Kp         float32
	Ki         float32
	Kd         float32
	IMax       float32
	MaxDuty    float32
	Deadband   float32
	Decay      float32
	Band       float32
	MaxCelsius float32
	MaxRate    float32
	StaleTicks uint32
}

const payloadLen = BlockSize - 4 - 8

// EncodeBlock serializes p into a fixed-size block.
func EncodeBlock(p Params) []byte {
	rec := record{
		Magic:      blockMagic,
		Version:    blockVersion,
		Length:     payloadLen,
		Setpoint:   float32(p.Setpoint),
		Mode:       uint32(p.Mode),
		Kp:         float32(p.Kp),
		Ki:         float32(p.Ki),
		Kd:         float32(p.Kd),
		IMax:       float32(p.IMax),
		MaxDuty:    float32(p.MaxDuty),
		Deadband:   float32(p.Deadband),
		Decay:      float32(p.Decay),
		Band:       float32(p.Band),
		MaxCelsius: float32(p.MaxCelsius),
		MaxRate:    float32(p.MaxRate),
		StaleTicks: p.StaleTicks,
	}
	var buf bytes.Buffer
	buf.Grow(BlockSize)
	// writes to a bytes.Buffer cannot fail
	_ = binary.Write(&buf, binary.LittleEndian, &rec)
	sum := crc32.ChecksumIEEE(buf.Bytes())
	_ = binary.Write(&buf, binary.LittleEndian, sum)
	return buf.Bytes()
}

// DecodeBlock parses and validates a block.
func DecodeBlock(b []byte) (Params, error) {
	if len(b) < BlockSize {
		return Params{}, fmt.Errorf("nvm block short: %d bytes", len(b))
	}
	b = b[:BlockSize]
	if bytes.Count(b, []byte{0xFF}) == BlockSize || bytes.Count(b, []byte{0x00}) == BlockSize {
		return Params{}, ErrBlockErased
	}

	var rec record
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &rec); err != nil {
		return Params{}, err
	}
	if rec.Magic != blockMagic {
		return Params{}, ErrBlockMagic
	}
	if rec.Version != blockVersion || rec.Length != payloadLen {
		return Params{}, fmt.Errorf("%w: v%d len %d", ErrBlockVersion, rec.Version, rec.Length)
	}
	want := binary.LittleEndian.Uint32(b[BlockSize-4:])
	if got := crc32.ChecksumIEEE(b[:BlockSize-4]); got != want {
		return Params{}, fmt.Errorf("%w: %08x != %08x", ErrBlockCRC, got, want)
	}

	if rec.Mode > uint32(ModeHysteresis) {
		return Params{}, &ConfigurationError{Field: "mode", Value: float64(rec.Mode), Reason: "unknown mode"}
	}
	p := Params{
		Setpoint:   float64(rec.Setpoint),
		Mode:       Mode(rec.Mode),
		Kp:         float64(rec.Kp),
		Ki:         float64(rec.Ki),
		Kd:         float64(rec.Kd),
		IMax:       float64(rec.IMax),
		MaxDuty:    float64(rec.MaxDuty),
		Deadband:   float64(rec.Deadband),
		Decay:      float64(rec.Decay),
		Band:       float64(rec.Band),
		MaxCelsius: float64(rec.MaxCelsius),
		MaxRate:    float64(rec.MaxRate),
		StaleTicks: rec.StaleTicks,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// NVM keeps one block in a file standing in for on-chip flash.
type NVM struct {
	path string
	log  *logger.Logger
}

func NewNVM(path string) *NVM {
	return &NVM{path: path, log: logger.New("NVM")}
}

// Load returns the stored block. ok is false when no usable block exists;
// err is set only for corrupt or unreadable storage.
func (n *NVM) Load() (p Params, ok bool, err error) {
	data, err := os.ReadFile(n.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Params{}, false, nil
		}
		return Params{}, false, err
	}
	p, err = DecodeBlock(data)
	if errors.Is(err, ErrBlockErased) {
		return Params{}, false, nil
	}
	if err != nil {
		return Params{}, false, err
	}
	return p, true, nil
}

// Save rewrites the block through a temporary file.
func (n *NVM) Save(p Params) error {
	if err := os.MkdirAll(filepath.Dir(n.path), 0755); err != nil {
		return err
	}
	tmp := n.path + ".tmp"
	if err := os.WriteFile(tmp, EncodeBlock(p), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, n.path); err != nil {
		return err
	}
	n.log.Debug("block written to %s", n.path)
	return nil
}

// Persist is an OnUpdate hook that logs write failures.
func (n *NVM) Persist(p Params) {
	if err := n.Save(p); err != nil {
		n.log.Error("failed to write block: %v", err)
	}
}
