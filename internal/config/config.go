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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"heatdoors/internal/gpio"
	"heatdoors/internal/sensor/ntc"
	"heatdoors/internal/sim"
	"heatdoors/internal/telemetry"
	"heatdoors/pkg/errcode"
	"os"
	"path/filepath"
	"time"
)

// Sensor kinds.
const (
	SensorSim      = "sim"
	SensorNTC      = "ntc"
	SensorDS18B20  = "ds18b20"
	SensorRemoteIO = "remoteio"
)

// Actuator kinds.
const (
	ActuatorSim      = "sim"
	ActuatorHeater   = "heater"
	ActuatorSlowPWM  = "slowpwm"
	ActuatorValve    = "valve"
	ActuatorRemoteIO = "remoteio"
)

type SensorConfig struct {
	Kind       string     `json:"kind"`
	PollMillis int        `json:"poll_ms"`
	MinC       float64    `json:"min_c"`
	MaxC       float64    `json:"max_c"`
	ADCPath    string     `json:"adc_path"`
	NTC        ntc.Params `json:"ntc"`
	SerialPort string     `json:"serial_port"`
}

type ActuatorConfig struct {
	Kind          string          `json:"kind"`
	Heater        gpio.LineConfig `json:"heater"`
	WindowSeconds float64         `json:"window_seconds"`
	MinOnSeconds  float64         `json:"min_on_seconds"`
	MinOffSeconds float64         `json:"min_off_seconds"`
	ValveEnable   gpio.LineConfig `json:"valve_enable"`
	ValveDir      gpio.LineConfig `json:"valve_direction"`
	TravelSeconds float64         `json:"travel_seconds"`
}

type RemoteIOConfig struct {
	ModbusFile   string `json:"modbus_file"`
	TempRegister string `json:"temperature_register"`
	DutyRegister string `json:"duty_register"`
}

type PanelConfig struct {
	LED            gpio.LineConfig `json:"led"`
	ResetButton    gpio.LineConfig `json:"reset_button"`
	Door           gpio.LineConfig `json:"door"`
	DebounceMillis int             `json:"debounce_ms"`
	DoorInterlock  bool            `json:"door_interlock"`
}

type WatchdogConfig struct {
	TimeoutMillis int    `json:"timeout_ms"`
	Device        string `json:"device"`
}

type HistoryConfig struct {
	ResolutionSeconds int `json:"resolution_seconds"`
	RetainHours       int `json:"retain_hours"`
}

type Config struct {
	TickMillis int    `json:"tick_ms"`
	HTTPAddr   string `json:"http_addr"`
	DeviceID   string `json:"device_id"`

	TunablesFile string `json:"tunables_file"`
	NVMFile      string `json:"nvm_file"`

	Sensor   SensorConfig     `json:"sensor"`
	Actuator ActuatorConfig   `json:"actuator"`
	RemoteIO RemoteIOConfig   `json:"remoteio"`
	Panel    PanelConfig      `json:"panel"`
	Watchdog WatchdogConfig   `json:"watchdog"`
	MQTT     telemetry.Config `json:"mqtt"`
	History  HistoryConfig    `json:"history"`
	Sim      sim.Config       `json:"sim"`

	// not loaded from file
	RootDir string `json:"-"`
	DataDir string `json:"-"`
	Debug   bool   `json:"-"`
}

func disabledLine() gpio.LineConfig { return gpio.LineConfig{Offset: -1} }

// Default returns a simulated door with no hardware attached.
func Default() Config {
	return Config{
		TickMillis:   100,
		HTTPAddr:     ":8080",
		DeviceID:     "door-1",
		TunablesFile: "var/config/tunables.yml",
		NVMFile:      "var/nvm/tunables.bin",
		Sensor: SensorConfig{
			Kind:       SensorSim,
			PollMillis: 250,
			MinC:       -40,
			MaxC:       125,
			NTC:        ntc.DefaultParams(),
		},
		Actuator: ActuatorConfig{
			Kind:          ActuatorSim,
			Heater:        disabledLine(),
			WindowSeconds: 10,
			ValveEnable:   disabledLine(),
			ValveDir:      disabledLine(),
			TravelSeconds: 13,
		},
		RemoteIO: RemoteIOConfig{
			ModbusFile:   "var/config/remoteio.modbus.yml",
			TempRegister: "temperature",
			DutyRegister: "heater_duty",
		},
		Panel: PanelConfig{
			LED:            disabledLine(),
			ResetButton:    disabledLine(),
			Door:           disabledLine(),
			DebounceMillis: 20,
			DoorInterlock:  true,
		},
		Watchdog: WatchdogConfig{TimeoutMillis: 1000},
		MQTT:     telemetry.Config{ClientID: "heatdoors", Every: 10},
		History:  HistoryConfig{ResolutionSeconds: 10, RetainHours: 24},
		Sim:      sim.DefaultConfig(),
	}
}

// LoadFile decodes a JSON config on top of the defaults.
func LoadFile(path string) (*Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads .env and the app config under root, then applies HEATDOORS_*
// overrides. A missing config file yields the defaults.
func Load(root string) (*Config, error) {
	loadDotEnv(filepath.Join(root, ".env"))

	path := filepath.Join(root, "var/config/heatdoors.json")
	c, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		d := Default()
		c, err = &d, nil
	}
	if err != nil {
		return nil, err
	}
	applyEnv(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	c.RootDir = root
	c.DataDir = filepath.Join(root, "var/cache")
	c.TunablesFile = c.Path(c.TunablesFile)
	c.NVMFile = c.Path(c.NVMFile)
	c.RemoteIO.ModbusFile = c.Path(c.RemoteIO.ModbusFile)
	return c, nil
}

// Path resolves p against the root directory. Empty stays empty.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.RootDir, p)
}

func (c *Config) Tick() time.Duration { return time.Duration(c.TickMillis) * time.Millisecond }

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Sensor.PollMillis) * time.Millisecond
}

func (c *Config) WatchdogTimeout() time.Duration {
	return time.Duration(c.Watchdog.TimeoutMillis) * time.Millisecond
}

func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Panel.DebounceMillis) * time.Millisecond
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func (c *Config) Window() time.Duration { return seconds(c.Actuator.WindowSeconds) }
func (c *Config) MinOn() time.Duration { return seconds(c.Actuator.MinOnSeconds) }
func (c *Config) MinOff() time.Duration { return seconds(c.Actuator.MinOffSeconds) }
func (c *Config) Travel() time.Duration { return seconds(c.Actuator.TravelSeconds) }

func (c *Config) HistoryResolution() time.Duration {
	return time.Duration(c.History.ResolutionSeconds) * time.Second
}

func (c *Config) HistoryRetain() time.Duration {
	return time.Duration(c.History.RetainHours) * time.Hour
}

func invalid(format string, v ...any) error {
	return fmt.Errorf("%w: %s", errcode.InvalidConfig, fmt.Sprintf(format, v...))
}

func (c *Config) Validate() error {
	if c.TickMillis <= 0 {
		return invalid("tick_ms must be positive, got %d", c.TickMillis)
	}
	if c.Sensor.PollMillis <= 0 {
		return invalid("sensor.poll_ms must be positive, got %d", c.Sensor.PollMillis)
	}
	if c.Sensor.MinC >= c.Sensor.MaxC {
		return invalid("sensor range [%g, %g] is empty", c.Sensor.MinC, c.Sensor.MaxC)
	}
	switch c.Sensor.Kind {
	case SensorSim, SensorNTC, SensorDS18B20, SensorRemoteIO:
	default:
		return invalid("unknown sensor.kind %q", c.Sensor.Kind)
	}
	switch c.Actuator.Kind {
	case ActuatorSim, ActuatorRemoteIO:
	case ActuatorHeater, ActuatorSlowPWM:
		if !c.Actuator.Heater.Enabled() {
			return invalid("actuator.kind %q needs actuator.heater", c.Actuator.Kind)
		}
	case ActuatorValve:
		if !c.Actuator.ValveEnable.Enabled() || !c.Actuator.ValveDir.Enabled() {
			return invalid("actuator.kind valve needs valve_enable and valve_direction")
		}
	default:
		return invalid("unknown actuator.kind %q", c.Actuator.Kind)
	}
	if (c.Sensor.Kind == SensorSim) != (c.Actuator.Kind == ActuatorSim) {
		return invalid("sim sensor and sim actuator must be used together")
	}
	if c.Actuator.Kind == ActuatorSlowPWM && c.Actuator.WindowSeconds <= 0 {
		return invalid("actuator.window_seconds must be positive")
	}
	if c.Actuator.Kind == ActuatorValve && c.Actuator.TravelSeconds <= 0 {
		return invalid("actuator.travel_seconds must be positive")
	}
	if c.Watchdog.TimeoutMillis <= c.TickMillis {
		return invalid("watchdog.timeout_ms %d must exceed tick_ms %d", c.Watchdog.TimeoutMillis, c.TickMillis)
	}
	if c.History.ResolutionSeconds <= 0 || c.History.RetainHours <= 0 {
		return invalid("history resolution and retention must be positive")
	}
	return nil
}
