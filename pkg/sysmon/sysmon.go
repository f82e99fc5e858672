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
	"html/template"
	"net/http"
	"os"
	"runtime"
	"sort"
	"time"

	"heatdoors/pkg/logger"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// StatsFunc reports a named subsystem's counters. The value must marshal
// to a JSON object.
type StatsFunc func() any

type Service struct {
	started time.Time
	disk    string
	extra   map[string]StatsFunc
	log     *logger.Logger
}

func New() *Service {
	return &Service{
		started: time.Now(),
		disk:    "/",
		extra:   make(map[string]StatsFunc),
		log:     logger.New("System Monitor"),
	}
}

// Add shows fn's counters in their own section. Not safe after serving starts.
func (s *Service) Add(name string, fn StatsFunc) *Service {
	s.extra[name] = fn
	return s
}

type CPU struct {
	SystemPercent  float64 `json:"system_percent"`
	ProcessPercent float64 `json:"process_percent"`
	Load1          float64 `json:"load1"`
}

type Memory struct {
	SystemTotal uint64 `json:"system_total"`
	SystemUsed  uint64 `json:"system_used"`
	SystemFree  uint64 `json:"system_free"`
	ProcessRSS  uint64 `json:"process_rss"`
}

type Disk struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
}

type Metrics struct {
	GoVersion  string         `json:"go_version"`
	Goroutines int            `json:"goroutines"`
	Uptime     string         `json:"uptime"`
	HostUptime string         `json:"host_uptime"`
	CPU        CPU            `json:"cpu"`
	Memory     Memory         `json:"memory"`
	Disk       Disk           `json:"disk"`
	Sections   map[string]any `json:"sections,omitempty"`
}

// Collect samples the host, the process and every added section.
func (s *Service) Collect() Metrics {
	m := Metrics{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(s.started).Round(time.Second).String(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPU.SystemPercent = pct[0]
	}
	if avg, err := load.Avg(); err == nil {
		m.CPU.Load1 = avg.Load1
	}
	if up, err := host.Uptime(); err == nil {
		m.HostUptime = (time.Duration(up) * time.Second).String()
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		m.Memory.SystemTotal = vmem.Total
		m.Memory.SystemUsed = vmem.Used
		m.Memory.SystemFree = vmem.Available
	}
	if d, err := diskUsage(s.disk); err == nil {
		m.Disk = d
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if memInfo, err := p.MemoryInfo(); err == nil {
			m.Memory.ProcessRSS = memInfo.RSS
		}
		if pct, err := p.CPUPercent(); err == nil {
			m.CPU.ProcessPercent = pct
		}
	}

	if len(s.extra) > 0 {
		m.Sections = make(map[string]any, len(s.extra))
		for name, fn := range s.extra {
			m.Sections[name] = fn()
		}
	}
	return m
}

type row struct{ Key, Value string }

type section struct {
	Name string
	Rows []row
}

// flatten turns a section value into sorted key/value rows through its JSON form.
func flatten(v any) []row {
	b, err := json.Marshal(v)
	if err != nil {
		return []row{{"error", err.Error()}}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return []row{{"value", string(b)}}
	}
	rows := make([]row, 0, len(fields))
	for k, raw := range fields {
		rows = append(rows, row{k, string(raw)})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows
}

func gb(b uint64) float64 { return float64(b) / (1024 * 1024 * 1024) }
func mb(b uint64) float64 { return float64(b) / (1024 * 1024) }

var page = template.Must(template.New("sysmon").Funcs(template.FuncMap{"gb": gb, "mb": mb}).Parse(`
<!DOCTYPE html>
<html>
<head>
	<title>System Monitor</title>
	<style>
		body { font-family: sans-serif; margin: 2em; background: #f9f9f9; }
		h1 { color: #333; }
		table { border-collapse: collapse; width: 60%; margin-top: 1em; }
		th, td { border: 1px solid #ccc; padding: 0.6em 1em; text-align: left; }
		th { background: #eee; }
	</style>
</head>
<body>
	<h1>System Monitor</h1>
	<h2>Go</h2>
	<p>Version: {{.M.GoVersion}}, goroutines: {{.M.Goroutines}}, up {{.M.Uptime}} (host {{.M.HostUptime}})</p>
	<h2>CPU</h2>
	<table>
		<tr><th>System %</th><th>Process %</th><th>Load (1m)</th></tr>
		<tr><td>{{printf "%.2f" .M.CPU.SystemPercent}}%</td><td>{{printf "%.2f" .M.CPU.ProcessPercent}}%</td><td>{{printf "%.2f" .M.CPU.Load1}}</td></tr>
	</table>
	<h2>Memory</h2>
	<table>
		<tr><th>System Total</th><th>System Used</th><th>System Free</th><th>Process RSS</th></tr>
		<tr>
			<td>{{printf "%.2f" (gb .M.Memory.SystemTotal)}} GB</td>
			<td>{{printf "%.2f" (gb .M.Memory.SystemUsed)}} GB</td>
			<td>{{printf "%.2f" (gb .M.Memory.SystemFree)}} GB</td>
			<td>{{printf "%.2f" (mb .M.Memory.ProcessRSS)}} MB</td>
		</tr>
	</table>
	<h2>Disk (/)</h2>
	<table>
		<tr><th>Total</th><th>Used</th><th>Free</th></tr>
		<tr>
			<td>{{printf "%.2f" (gb .M.Disk.Total)}} GB</td>
			<td>{{printf "%.2f" (gb .M.Disk.Used)}} GB</td>
			<td>{{printf "%.2f" (gb .M.Disk.Free)}} GB</td>
		</tr>
	</table>
	{{range .Sections}}
	<h2>{{.Name}}</h2>
	<table>
		{{range .Rows}}<tr><th>{{.Key}}</th><td>{{.Value}}</td></tr>{{end}}
	</table>
	{{end}}
</body>
</html>
`))

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m := s.Collect()

	// JSON API
	if r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m); err != nil {
			s.log.Error("failed to encode metrics: %v", err)
		}
		return
	}

	names := make([]string, 0, len(m.Sections))
	for name := range m.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	sections := make([]section, 0, len(names))
	for _, name := range names {
		sections = append(sections, section{Name: name, Rows: flatten(m.Sections[name])})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, struct {
		M        Metrics
		Sections []section
	}{m, sections}); err != nil {
		s.log.Error("failed to render page: %v", err)
	}
}
