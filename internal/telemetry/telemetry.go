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

// Package telemetry forwards diagnostics to an MQTT broker: periodic tick
// telemetry, retained safety-state changes and an online/offline status.
package telemetry

import (
	"encoding/json"
	"fmt"
	"heatdoors/internal/events"
	"time"
)

// Message is one publish request.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Publisher sends messages to a broker.
type Publisher interface {
	Publish(m Message) error
	Close() error
}

// Topics under heatdoors/<id>/.
type Topics struct {
	Telemetry string
	Safety    string
	Status    string
}

func TopicsFor(id string) Topics {
	base := fmt.Sprintf("heatdoors/%s/", id)
	return Topics{
		Telemetry: base + "telemetry",
		Safety:    base + "safety",
		Status:    base + "status",
	}
}

type telemetryPayload struct {
	Timestamp    string  `json:"timestamp"`
	Tick         uint64  `json:"tick"`
	State        string  `json:"state"`
	Cause        string  `json:"cause,omitempty"`
	TemperatureC float64 `json:"temperature_c"`
	SetpointC    float64 `json:"setpoint_c"`
	Duty         float64 `json:"duty"`
	Integral     float64 `json:"integral"`
	Overruns     uint64  `json:"overruns"`
	SensorError  string  `json:"sensor_error,omitempty"`
}

// FormatTelemetry creates the JSON payload for a tick.
func FormatTelemetry(d events.TickDiagnostics) ([]byte, error) {
	return json.Marshal(telemetryPayload{
		Timestamp:    d.Time.UTC().Format(time.RFC3339Nano),
		Tick:         d.Tick,
		State:        d.State.String(),
		Cause:        d.Cause,
		TemperatureC: d.TemperatureC,
		SetpointC:    d.SetpointC,
		Duty:         d.Duty,
		Integral:     d.Integral,
		Overruns:     d.Overruns,
		SensorError:  d.SensorError,
	})
}

type safetyPayload struct {
	Timestamp string `json:"timestamp"`
	Tick      uint64 `json:"tick"`
	From      string `json:"from"`
	State     string `json:"state"`
	Cause     string `json:"cause,omitempty"`
}

// FormatSafety creates the JSON payload for a state change.
func FormatSafety(c events.SafetyChange) ([]byte, error) {
	return json.Marshal(safetyPayload{
		Timestamp: c.Time.UTC().Format(time.RFC3339Nano),
		Tick:      c.Tick,
		From:      c.From.String(),
		State:     c.To.String(),
		Cause:     c.Cause,
	})
}
