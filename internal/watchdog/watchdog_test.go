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

package watchdog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeDevice struct {
	feeds  atomic.Int32
	closed atomic.Bool
}

func (d *fakeDevice) Keepalive() error { d.feeds.Add(1); return nil }
func (d *fakeDevice) Close() error     { d.closed.Store(true); return nil }

func TestKickKeepsHealthy(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	w := New(time.Second).WithClock(clk.now)

	for range 10 {
		clk.advance(500 * time.Millisecond)
		w.Kick()
		assert.True(t, w.Check())
	}
	assert.False(t, w.Expired())
	assert.Equal(t, uint64(10), w.Kicks())
}

func TestMissedDeadlineFiresOnce(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	w := New(time.Second).WithClock(clk.now)
	var fired int
	w.OnExpire(func() { fired++ })

	clk.advance(1500 * time.Millisecond)
	assert.False(t, w.Check())
	assert.False(t, w.Check())
	assert.Equal(t, 1, fired)
	assert.True(t, w.Expired())

	// a late kick does not revive it
	w.Kick()
	assert.False(t, w.Check())
}

func TestRunFeedsDeviceWhileHealthy(t *testing.T) {
	dev := &fakeDevice{}
	w := New(40 * time.Millisecond).WithDevice(dev)
	expired := make(chan struct{})
	w.OnExpire(func() { close(expired) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return dev.feeds.Load() > 0 }, time.Second, time.Millisecond)

	// stop kicking, the deadline passes
	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("watchdog did not expire")
	}
	feeds := dev.feeds.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, feeds, dev.feeds.Load(), "device starves after expiry")

	cancel()
	<-done
	assert.True(t, dev.closed.Load())
}
