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

package events

import (
	"heatdoors/internal/safety"
	"heatdoors/pkg/eventbus"
	"time"
)

var (
	TopicDiagnostics eventbus.Topic = "diagnostics"
	TopicSafety      eventbus.Topic = "safety"
	TopicDoor        eventbus.Topic = "door"
)

// TickDiagnostics is published at the end of every tick.
type TickDiagnostics struct {
	Tick     uint64        `json:"tick"`
	Time     time.Time     `json:"time"`
	State    safety.State  `json:"state"`
	Cause    string        `json:"cause,omitempty"`
	Mode     string        `json:"mode"`
	Duration time.Duration `json:"duration_ns"`

	TemperatureC float64 `json:"temperature_c"`
	Fresh        bool    `json:"fresh"`        // a valid reading was consumed this tick
	ReadingTick  uint64  `json:"reading_tick"` // tick of the last valid reading
	SensorError  string  `json:"sensor_error,omitempty"`

	SetpointC float64 `json:"setpoint_c"`
	Output    float64 `json:"output"` // controller units, [0, max_duty]
	Duty      float64 `json:"duty"`   // normalized command sent to the actuator
	Integral  float64 `json:"integral"`

	Overruns uint64 `json:"overruns"`
	ParamsV  uint64 `json:"params_version"`
}

// SafetyChange is published when the supervisor changes state.
type SafetyChange struct {
	Tick  uint64       `json:"tick"`
	Time  time.Time    `json:"time"`
	From  safety.State `json:"from"`
	To    safety.State `json:"to"`
	Cause string       `json:"cause,omitempty"`
}

// DoorUpdate is published on every debounced door switch edge.
type DoorUpdate struct {
	Open bool      `json:"open"`
	Time time.Time `json:"time"`
}
