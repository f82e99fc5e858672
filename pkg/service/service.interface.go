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

package service

import (
	"context"
	"heatdoors/pkg/logger"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Runnable is the common interface for all services.
type Runnable interface {
	Run(ctx context.Context)
}

// Func adapts a plain function to Runnable.
type Func func(ctx context.Context)

func (f Func) Run(ctx context.Context) { f(ctx) }

// ExitCode lets a service (the watchdog, for one) force a non-zero process
// exit without panicking.
type ExitCode struct {
	code atomic.Int32
}

func (e *ExitCode) Set(code int) {
	e.code.CompareAndSwap(0, int32(code))
}

func (e *ExitCode) Get() int {
	return int(e.code.Load())
}

// Start runs every service in its own goroutine. A panic in any service is
// logged, sets the exit code to -1 and cancels the shared context so the
// others wind down. The returned channel yields the exit code once all
// services have returned.
func Start(ctx context.Context, ctxCancel context.CancelFunc, exit *ExitCode, services []Runnable) <-chan int {
	if exit == nil {
		exit = &ExitCode{}
	}
	wg := &sync.WaitGroup{}
	exitCh := make(chan int, 1)

	log := logger.New("Panic")

	for _, s := range services {
		service := s
		wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("%v\n%s", r, debug.Stack())
					exit.Set(-1)
					ctxCancel()
				}
			}()
			service.Run(ctx)
		})
	}

	go func() {
		wg.Wait()
		exitCh <- exit.Get()
	}()

	return exitCh
}
