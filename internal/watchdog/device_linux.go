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

//go:build linux

package watchdog

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

type linuxDevice struct {
	f *os.File
}

// OpenDevice opens a Linux watchdog device such as /dev/watchdog and sets
// its timeout in whole seconds.
func OpenDevice(path string, timeout time.Duration) (Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	secs := max(int(timeout/time.Second), 1)
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		f.Close()
		return nil, fmt.Errorf("set timeout on %s: %w", path, err)
	}
	return &linuxDevice{f: f}, nil
}

func (d *linuxDevice) Keepalive() error {
	return unix.IoctlWatchdogKeepalive(int(d.f.Fd()))
}

// Close writes the magic character so the driver disarms on release.
func (d *linuxDevice) Close() error {
	if _, err := d.f.Write([]byte("V")); err != nil {
		d.f.Close()
		return err
	}
	return d.f.Close()
}
