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
	"heatdoors/pkg/logger"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const envPrefix = "HEATDOORS_"

func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		logger.New("Config").Warn("failed to load %s: %v", path, err)
	}
}

func applyEnv(c *Config) {
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.TickMillis = getEnvInt(envPrefix+"TICK_MS", c.TickMillis)
	c.HTTPAddr = getEnv(envPrefix+"HTTP_ADDR", c.HTTPAddr)
	c.DeviceID = getEnv(envPrefix+"DEVICE_ID", c.DeviceID)
	c.TunablesFile = getEnv(envPrefix+"TUNABLES_FILE", c.TunablesFile)
	c.NVMFile = getEnv(envPrefix+"NVM_FILE", c.NVMFile)
	c.Sensor.Kind = getEnv(envPrefix+"SENSOR", c.Sensor.Kind)
	c.Actuator.Kind = getEnv(envPrefix+"ACTUATOR", c.Actuator.Kind)
	c.Watchdog.Device = getEnv(envPrefix+"WATCHDOG_DEVICE", c.Watchdog.Device)
	c.MQTT.Broker = getEnv(envPrefix+"MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Username = getEnv(envPrefix+"MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv(envPrefix+"MQTT_PASSWORD", c.MQTT.Password)
	c.Panel.DoorInterlock = getEnvBool(envPrefix+"DOOR_INTERLOCK", c.Panel.DoorInterlock)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logger.New("Config").Warn("failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logger.New("Config").Warn("failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return b
}
