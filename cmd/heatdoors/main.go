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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"heatdoors/internal/config"
	"heatdoors/internal/events"
	"heatdoors/internal/gpio"
	"heatdoors/internal/history"
	"heatdoors/internal/indicator"
	"heatdoors/internal/onewire"
	"heatdoors/internal/safety"
	"heatdoors/internal/scheduler"
	"heatdoors/internal/telemetry"
	"heatdoors/internal/tunables"
	"heatdoors/internal/watchdog"
	"heatdoors/internal/web"
	"heatdoors/pkg/appctx"
	"heatdoors/pkg/eventbus"
	"heatdoors/pkg/logger"
	"heatdoors/pkg/rootserv"
	"heatdoors/pkg/service"
	"heatdoors/pkg/sysmon"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

func main() {
	listPorts := flag.Bool("list-ports", false, "list serial ports usable as a 1-Wire bus and exit")
	flag.Parse()

	if *listPorts {
		ports, err := onewire.Ports()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	rootdir := os.Getenv("PROJECT_ROOT")
	if rootdir == "" {
		rootdir = "."
	}

	logPath := filepath.Join(rootdir, "var/logs/heatdoors.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "log file %s: %v\n", logPath, err)
	}
	defer logger.Close()
	log := logger.New("Main")

	cfg, err := config.Load(rootdir)
	if err != nil {
		log.Error("config: %v", err)
		os.Exit(1)
	}
	logger.EnableDebug(cfg.Debug)
	log.Info("tick %v, sensor %s, actuator %s", cfg.Tick(), cfg.Sensor.Kind, cfg.Actuator.Kind)

	ctx, ctxCancel, reload := appctx.New()
	exit := &service.ExitCode{}
	bus := eventbus.New()

	// tunables: nvm > yaml > defaults
	var nvm *tunables.NVM
	if cfg.NVMFile != "" {
		nvm = tunables.NewNVM(cfg.NVMFile)
	}
	params, source, err := tunables.Bootstrap(cfg.TunablesFile, nvm)
	if err != nil {
		log.Warn("tunables: %v", err)
	}
	log.Info("tunables loaded from %s", source)
	store, err := tunables.NewStore(params)
	if err != nil {
		log.Error("tunables: %v", err)
		os.Exit(1)
	}
	if nvm != nil {
		store.OnUpdate(nvm.Persist)
	}

	hw, err := buildHardware(ctx, cfg)
	if err != nil {
		log.Error("hardware: %v", err)
		os.Exit(1)
	}
	defer hw.Close()

	sup := safety.NewSupervisor()

	dog := watchdog.New(cfg.WatchdogTimeout())
	if cfg.Watchdog.Device != "" {
		dev, err := watchdog.OpenDevice(cfg.Watchdog.Device, cfg.WatchdogTimeout())
		if err != nil {
			log.Error("watchdog device: %v", err)
			os.Exit(1)
		}
		dog.WithDevice(dev)
	}
	dog.OnExpire(func() {
		sup.Shutdown("watchdog expired")
		exit.Set(2)
		ctxCancel()
		// serialized with the tick loop's writes; last, since a tick stuck
		// inside Write holds the lock
		hw.actuator.Off()
	})

	sched := scheduler.New(cfg.Tick(), hw.sensor, sup, store, hw.actuator, bus).WithWatchdog(dog)

	services := []service.Runnable{sched, dog, tunables.NewReloader(store, cfg.TunablesFile, reload)}
	services = append(services, hw.services...)

	// operator panel
	panel, err := openPanel(cfg, sup, bus)
	if err != nil {
		log.Error("panel: %v", err)
		os.Exit(1)
	}
	defer panel.Close()
	services = append(services, panel.services...)

	// telemetry
	if cfg.MQTT.Broker != "" {
		topics := telemetry.TopicsFor(cfg.DeviceID)
		pub, err := telemetry.NewMQTTPublisher(cfg.MQTT, topics)
		if err != nil {
			log.Warn("mqtt disabled: %v", err)
		} else {
			services = append(services, telemetry.NewService(pub, bus, topics, cfg.MQTT.Every))
		}
	}

	// history and web
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Warn("data dir: %v", err)
	}
	hist := history.New(cfg.DataDir, cfg.HistoryResolution(), cfg.HistoryRetain())
	services = append(services, service.Func(func(ctx context.Context) { hist.Run(ctx, bus) }))

	panelWeb := web.New(bus, sup, store,
		web.WithHistory(hist),
		web.WithStats(func() any { return sched.Stats() }),
	)
	services = append(services, panelWeb)

	monitor := sysmon.New().
		Add("tick loop", func() any { return sched.Stats() }).
		Add("event bus", func() any { return bus.Stats() }).
		Add("watchdog", func() any {
			return struct {
				Kicks   uint64 `json:"kicks"`
				Expired bool   `json:"expired"`
			}{dog.Kicks(), dog.Expired()}
		})
	if hw.mailbox != nil {
		monitor.Add("sensor mailbox", func() any {
			posted, replaced := hw.mailbox.Counters()
			return struct {
				Posted   uint64 `json:"posted"`
				Replaced uint64 `json:"replaced"`
			}{posted, replaced}
		})
	}

	server := rootserv.New(cfg.HTTPAddr).WithHealth(func() error {
		if dog.Expired() {
			return errors.New("watchdog expired")
		}
		if st := sup.Current(); st != safety.Nominal {
			return fmt.Errorf("safety state %v", st)
		}
		return nil
	})
	server.Attach("/", "Control Panel", http.RedirectHandler("/panel/", http.StatusTemporaryRedirect))
	server.Attach("/panel", "Door Heater Control Panel", panelWeb)
	server.Attach("/logger", "Logger", logger.WebService("/logger"))
	server.Attach("/monitor", "System Monitor", monitor)
	services = append(services, server)

	// start runnable services
	exitCh := service.Start(ctx, ctxCancel, exit, services)

	// waits for all services to stop
	code := <-exitCh
	bus.Close()
	log.Info("exit %d", code)
	os.Exit(code)
}

type operatorPanel struct {
	closers  []io.Closer
	services []service.Runnable
}

func (p *operatorPanel) Close() {
	for _, c := range p.closers {
		c.Close()
	}
}

// openPanel wires the status LED, the fault reset button and the door switch.
func openPanel(cfg *config.Config, sup *safety.Supervisor, bus *eventbus.Bus) (*operatorPanel, error) {
	log := logger.New("Panel")
	p := &operatorPanel{}

	if cfg.Panel.LED.Enabled() {
		led, err := gpio.OpenOutput(cfg.Panel.LED)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, led)
		p.services = append(p.services, indicator.New(led, bus))
	}

	if cfg.Panel.ResetButton.Enabled() {
		btn, err := gpio.WatchEdges(cfg.Panel.ResetButton, cfg.Debounce(), func(pressed bool) {
			if pressed {
				log.Info("reset button pressed")
				sup.RequestReset()
			}
		})
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, btn)
	}

	if cfg.Panel.Door.Enabled() {
		interlock := cfg.Panel.DoorInterlock
		door, err := gpio.WatchEdges(cfg.Panel.Door, cfg.Debounce(), func(open bool) {
			bus.Publish(events.TopicDoor, events.DoorUpdate{Open: open, Time: time.Now()})
			if open && interlock {
				sup.Shutdown("door opened")
			}
		})
		if err != nil {
			p.Close()
			return nil, err
		}
		p.closers = append(p.closers, door)
		if open, err := door.Value(); err == nil {
			bus.Publish(events.TopicDoor, events.DoorUpdate{Open: open, Time: time.Now()})
			if open && interlock {
				sup.Shutdown("door open at start")
			}
		}
	}
	return p, nil
}
