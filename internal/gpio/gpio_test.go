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

package gpio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeLineOutput(t *testing.T) {
	f := NewFakeLine()
	require.NoError(t, f.Set(true))
	require.NoError(t, f.Set(false))
	assert.Equal(t, []bool{true, false}, f.History())

	f.SetError = errors.New("busy")
	assert.Error(t, f.Set(true))

	require.NoError(t, f.Close())
	assert.True(t, f.Closed())
	_, err := f.Value()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFakeLineEdges(t *testing.T) {
	var edges []bool
	f := NewFakeLine().Watch(func(active bool) { edges = append(edges, active) })

	f.Drive(true)
	f.Drive(true)
	f.Drive(false)
	assert.Equal(t, []bool{true, false}, edges)

	v, err := f.Value()
	require.NoError(t, err)
	assert.False(t, v)
}

func TestLineConfigEnabled(t *testing.T) {
	assert.False(t, LineConfig{}.Enabled())
	assert.True(t, LineConfig{Chip: "gpiochip0", Offset: 17}.Enabled())
	assert.False(t, LineConfig{Chip: "gpiochip0", Offset: -1}.Enabled())
}
