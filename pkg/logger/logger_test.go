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

package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	EnableDebug(false)

	log := New("Scheduler")
	log.Info("tick %d", 7)
	log.Warn("overrun")
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[Scheduler] INFO: tick 7")
	assert.Contains(t, out, "[Scheduler] WARN: overrun")
	assert.NotContains(t, out, "hidden")

	EnableDebug(true)
	defer EnableDebug(false)
	log.Debug("visible")
	assert.Contains(t, buf.String(), "[Scheduler] DEBUG: visible")
}

func TestErrorIncludesCaller(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	New("Safety").Error("boom")
	assert.Contains(t, buf.String(), "logger_test.go:")
	assert.Contains(t, buf.String(), "[Safety] ERROR:")
}

func TestFatalPanics(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	assert.PanicsWithValue(t, "dead 1", func() { New("X").Fatal("dead %d", 1) })
}

func TestWebServiceTailAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "heatdoors.log")
	require.NoError(t, Init(path))
	defer func() {
		Close()
		SetOutput(os.Stdout)
	}()

	New("Web").Info("first line")

	svc := WebService("/logger")
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "first line")

	rec = httptest.NewRecorder()
	svc.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/clear", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	svc.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/clear", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "first line"))
}
