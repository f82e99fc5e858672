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

package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlantSteadyState(t *testing.T) {
	p := NewPlant(DefaultConfig())
	require.NoError(t, p.Set(0.25))
	for range 20000 {
		p.Advance(100 * time.Millisecond)
	}
	// 0.25 * 200 W / 2 W/K above ambient
	assert.InDelta(t, 45, p.Temperature(), 0.1)
}

func TestPlantCoolsToAmbient(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialC = 60
	p := NewPlant(cfg)
	for range 30000 {
		p.Advance(100 * time.Millisecond)
	}
	assert.InDelta(t, cfg.AmbientC, p.Temperature(), 0.1)
}

func TestPlantFault(t *testing.T) {
	p := NewPlant(DefaultConfig())
	boom := errors.New("disconnected")
	p.Inject(boom)
	_, err := p.Sample(context.Background())
	assert.ErrorIs(t, err, boom)

	p.Inject(nil)
	c, err := p.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, c)
}

func TestPlantClampsLevel(t *testing.T) {
	p := NewPlant(DefaultConfig())
	require.NoError(t, p.Set(3))
	assert.Equal(t, 1.0, p.Level())
}
