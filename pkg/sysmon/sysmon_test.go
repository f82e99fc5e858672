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

package sysmon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopStats struct {
	Ticks    uint64 `json:"ticks"`
	Overruns uint64 `json:"overruns"`
}

func TestJSONIncludesSections(t *testing.T) {
	s := New().Add("loop", func() any { return loopStats{Ticks: 42, Overruns: 1} })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var m struct {
		GoVersion string                     `json:"go_version"`
		Sections  map[string]json.RawMessage `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.NotEmpty(t, m.GoVersion)
	assert.JSONEq(t, `{"ticks": 42, "overruns": 1}`, string(m.Sections["loop"]))
}

func TestHTMLRendersSections(t *testing.T) {
	s := New().Add("loop", func() any { return loopStats{Ticks: 7} })
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<h2>loop</h2>")
	assert.Contains(t, body, "<th>ticks</th><td>7</td>")
}

func TestFlattenNonObject(t *testing.T) {
	rows := flatten(3)
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0].Value)
}
