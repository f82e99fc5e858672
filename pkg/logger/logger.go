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
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
)

// Logger writes prefixed, levelled lines to the shared base writer.
type Logger struct {
	prefix string
}

var (
	mu           sync.RWMutex
	baseLogger   = log.New(os.Stdout, "", log.LstdFlags)
	logFile      *os.File
	debugEnabled atomic.Bool
)

// Init tees the base logger to stdout and logPath.
// Debug output is enabled at startup if the DEBUG env var is set.
func Init(logPath string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	mu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	baseLogger = log.New(io.MultiWriter(os.Stdout, f), "", log.LstdFlags)
	mu.Unlock()

	if os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
	return nil
}

// SetOutput replaces the base writer, detaching any log file. Used by tests
// and by tools that don't want a file.
func SetOutput(w io.Writer) {
	mu.Lock()
	baseLogger = log.New(w, "", log.LstdFlags)
	mu.Unlock()
}

// Close cleans up the log file (call on shutdown)
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// EnableDebug dynamically turns debug logging on/off
func EnableDebug(on bool) {
	debugEnabled.Store(on)
}

// IsDebug returns current debug state
func IsDebug() bool {
	return debugEnabled.Load()
}

func New(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

// Prefix returns the component name the logger was created with.
func (l *Logger) Prefix() string {
	return l.prefix
}

func (l *Logger) output(level, formatted string) {
	mu.RLock()
	out := baseLogger
	mu.RUnlock()
	out.Printf("[%s] %s: %s", l.prefix, level, formatted)
}

func (l *Logger) outputCaller(level, formatted string) {
	_, file, line, ok := runtime.Caller(2)
	if ok {
		l.output(level, fmt.Sprintf("(%s:%d) %s", filepath.Base(file), line, formatted))
		return
	}
	l.output(level, formatted)
}

func (l *Logger) Info(fmtstr string, v ...any) {
	l.output("INFO", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Warn(fmtstr string, v ...any) {
	l.output("WARN", fmt.Sprintf(fmtstr, v...))
}

func (l *Logger) Error(fmtstr string, v ...any) {
	l.outputCaller("ERROR", fmt.Sprintf(fmtstr, v...))
}

// Fatal logs and panics; pkg/service recovers the panic and stops the app.
func (l *Logger) Fatal(fmtstr string, v ...any) {
	formatted := fmt.Sprintf(fmtstr, v...)
	l.outputCaller("FATAL", formatted)
	panic(formatted)
}

func (l *Logger) Debug(fmtstr string, v ...any) {
	if !debugEnabled.Load() {
		return
	}
	l.output("DEBUG", fmt.Sprintf(fmtstr, v...))
}

// currentFile returns the open log file, if any.
func currentFile() *os.File {
	mu.RLock()
	defer mu.RUnlock()
	return logFile
}
