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

//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// OpenOutput is not available on non-Linux platforms.
func OpenOutput(LineConfig) (Output, error) { return nil, errUnsupported }

// OpenInput is not available on non-Linux platforms.
func OpenInput(LineConfig) (Input, error) { return nil, errUnsupported }

// WatchEdges is not available on non-Linux platforms.
func WatchEdges(LineConfig, time.Duration, EdgeFunc) (Input, error) {
	return nil, errUnsupported
}
