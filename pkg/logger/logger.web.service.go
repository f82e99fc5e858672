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
	"bufio"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
)

const tailLines = 250

var pageTpl = template.Must(template.New("page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Logger</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 2em; background: #f9f9f9; color: #333; }
    .btn { padding:0.5em 1em; margin:0.2em; background:#007bff; color:white; border:none; border-radius:4px; cursor:pointer; }
    .btn-danger { background:#dc3545; }
    pre.log { background:#222; color:#eee; padding:1em; border-radius:6px; max-height:500px; overflow:auto; }
  </style>
</head>
<body>
  <h1>Logger</h1>
  <p><b>Debug:</b> {{if .Debug}}<span style="color:green;">ON</span>{{else}}<span style="color:red;">OFF</span>{{end}}</p>
  <form method="POST" action="{{.Base}}/toggle" style="display:inline;">
    <button class="btn" type="submit">Toggle Debug</button>
  </form>
  <form method="POST" action="{{.Base}}/clear" style="display:inline;">
    <button class="btn btn-danger" type="submit">Clear Log</button>
  </form>
  <h2>Last {{.Lines}} log lines</h2>
  <pre class="log">{{.Log}}</pre>
</body>
</html>
`))

// Service implements http.Handler for debug/log control
type Service struct {
	mu   sync.Mutex
	base string
}

// WebService returns the handler; base is the mount path used in form actions.
func WebService(base string) *Service {
	return &Service{base: strings.TrimRight(base, "/")}
}

// ServeHTTP implements http.Handler
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/toggle":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		EnableDebug(!IsDebug())
		http.Redirect(w, r, s.base, http.StatusSeeOther)

	case "/clear":
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := s.clearLog(); err != nil {
			http.Error(w, "failed to clear log: "+err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, s.base, http.StatusSeeOther)

	default:
		logs, _ := s.tail(tailLines)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = pageTpl.Execute(w, map[string]any{
			"Base":  s.base,
			"Debug": IsDebug(),
			"Lines": tailLines,
			"Log":   logs,
		})
	}
}

// clearLog truncates the log file and rebuilds the base logger on it
func (s *Service) clearLog() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := currentFile()
	if f == nil {
		return nil
	}
	name := f.Name()

	if err := os.Truncate(name, 0); err != nil {
		return err
	}
	newf, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	mu.Lock()
	logFile.Close()
	logFile = newf
	baseLogger = log.New(io.MultiWriter(os.Stdout, newf), "", log.LstdFlags)
	mu.Unlock()
	return nil
}

// tail reads last n lines of the log file
func (s *Service) tail(n int) (string, error) {
	f := currentFile()
	if f == nil {
		return "", nil
	}
	rf, err := os.Open(f.Name())
	if err != nil {
		return "", err
	}
	defer rf.Close()

	lines := make([]string, 0, n)
	sc := bufio.NewScanner(rf)
	for sc.Scan() {
		if len(lines) == n {
			lines = lines[1:]
		}
		lines = append(lines, sc.Text())
	}
	return strings.Join(lines, "\n"), sc.Err()
}
