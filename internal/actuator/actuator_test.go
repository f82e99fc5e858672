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

package actuator

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type levels struct {
	sets []float64
	err  error
}

func (l *levels) Set(level float64) error {
	l.sets = append(l.sets, level)
	return l.err
}

func TestHeaterStartsOffAndWritesOnChange(t *testing.T) {
	out := &levels{}
	h := NewHeater("test", out, false)
	require.Equal(t, []float64{0}, out.sets)

	h.Write(0.5)
	h.Write(0.5)
	h.Write(2)
	h.Off()
	assert.Equal(t, []float64{0, 0.5, 1, 0}, out.sets)
	assert.Equal(t, 0.0, h.Duty())
	assert.Equal(t, uint64(4), h.Writes())
}

func TestHeaterActiveLow(t *testing.T) {
	out := &levels{}
	h := NewHeater("test", out, true)
	h.Write(0.8)
	require.Len(t, out.sets, 2)
	assert.Equal(t, 1.0, out.sets[0])
	assert.InDelta(t, 0.2, out.sets[1], 1e-9)
}

func TestHeaterRetriesAfterError(t *testing.T) {
	out := &levels{err: errors.New("i2c nack")}
	h := NewHeater("test", out, false)
	h.Write(0.3)
	h.Write(0.3)
	assert.Len(t, out.sets, 3, "failed writes are repeated")

	out.err = nil
	h.Write(0.3)
	h.Write(0.3)
	assert.Len(t, out.sets, 4)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time               { return c.t }
func (c *clock) at(d time.Duration) time.Time { return time.Unix(1000, 0).Add(d) }
func (c *clock) set(d time.Duration)          { c.t = c.at(d) }

func newClock() *clock {
	c := &clock{}
	c.set(0)
	return c
}

func TestSlowPWMWindow(t *testing.T) {
	clk := newClock()
	sw := &FakeSwitch{}
	p := NewSlowPWM("test", sw, 10*time.Second).WithClock(clk.now)

	p.Write(0.3)
	assert.True(t, sw.State())

	clk.set(2900 * time.Millisecond)
	p.Write(0.3)
	assert.True(t, sw.State())

	clk.set(3100 * time.Millisecond)
	p.Write(0.3)
	assert.False(t, sw.State())

	clk.set(10500 * time.Millisecond)
	p.Write(0.3)
	assert.True(t, sw.State())
}

func TestSlowPWMMinimumOnStretchesCycle(t *testing.T) {
	clk := newClock()
	sw := &FakeSwitch{}
	p := NewSlowPWM("test", sw, 10*time.Second).
		WithMinTimes(5*time.Second, 0).
		WithClock(clk.now)

	for _, c := range []struct {
		at time.Duration
		on bool
	}{
		{0, true},
		{4 * time.Second, true},
		{6 * time.Second, false},
		{24 * time.Second, false},
		{26 * time.Second, true},
	} {
		clk.set(c.at)
		p.Write(0.2)
		assert.Equal(t, c.on, sw.State(), "at %v", c.at)
	}
}

func TestSlowPWMOffIgnoresMinimumOn(t *testing.T) {
	clk := newClock()
	sw := &FakeSwitch{}
	p := NewSlowPWM("test", sw, 10*time.Second).
		WithMinTimes(5*time.Second, 2*time.Second).
		WithClock(clk.now)

	p.Write(1)
	require.True(t, sw.State())

	clk.set(time.Second)
	p.Write(0)
	assert.True(t, sw.State(), "minimum on time holds")

	p.Off()
	assert.False(t, sw.State())
	assert.False(t, p.On())
}

func TestValveTravel(t *testing.T) {
	clk := newClock()
	en, dir := &FakeSwitch{}, &FakeSwitch{}
	v := NewValve("test", en, dir, 10*time.Second).WithClock(clk.now)
	require.Equal(t, Stopped, v.Status())

	v.Write(1)
	assert.Equal(t, Opening, v.Status())
	assert.True(t, en.State())
	assert.True(t, dir.State())

	clk.set(5 * time.Second)
	v.Write(1)
	assert.InDelta(t, 0.5, v.Position(), 1e-9)

	clk.set(10 * time.Second)
	v.Write(1)
	assert.Equal(t, Stopped, v.Status(), "travel cap used up")
	assert.InDelta(t, 1.0, v.Position(), 1e-9)
	assert.False(t, en.State())

	clk.set(11 * time.Second)
	v.Write(0.5)
	assert.Equal(t, Closing, v.Status())
	assert.False(t, dir.State())

	clk.set(16 * time.Second)
	v.Write(0.5)
	assert.Equal(t, Stopped, v.Status())
	assert.InDelta(t, 0.5, v.Position(), 1e-9)
}

func TestValveOffSeatsClosed(t *testing.T) {
	clk := newClock()
	en, dir := &FakeSwitch{}, &FakeSwitch{}
	v := NewValve("test", en, dir, 10*time.Second).WithClock(clk.now)

	v.Off()
	assert.Equal(t, Closing, v.Status(), "keeps closing to seat")

	clk.set(10 * time.Second)
	v.Off()
	assert.Equal(t, Stopped, v.Status())
	assert.Zero(t, v.Position())

	clk.set(20 * time.Second)
	v.Off()
	assert.Equal(t, Stopped, v.Status(), "no budget left in the closing direction")
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	r.Write(0.4)
	r.Off()
	assert.Equal(t, []float64{0.4, 0}, r.Commands())
	assert.Equal(t, 1, r.Offs())
	assert.Zero(t, r.Last())
}

// overlapDetector fails if two calls are ever inside it at once.
type overlapDetector struct {
	inside  atomic.Int32
	overlap atomic.Bool
	offs    atomic.Int32
}

func (o *overlapDetector) enter() {
	if o.inside.Add(1) > 1 {
		o.overlap.Store(true)
	}
	time.Sleep(50 * time.Microsecond)
	o.inside.Add(-1)
}

func (o *overlapDetector) Write(float64) { o.enter() }

func (o *overlapDetector) Off() {
	o.enter()
	o.offs.Add(1)
}

func TestGuardedSerializesOffAgainstWrite(t *testing.T) {
	inner := &overlapDetector{}
	g := NewGuarded(inner)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 200 {
			g.Write(float64(i%10) / 10)
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			g.Off()
		}
	}()
	wg.Wait()

	assert.False(t, inner.overlap.Load(), "Write and Off overlapped")
	assert.EqualValues(t, 50, inner.offs.Load())
}

func TestGuardedForwards(t *testing.T) {
	r := &Recorder{}
	g := NewGuarded(r)
	g.Write(0.3)
	g.Off()
	assert.Equal(t, []float64{0.3, 0}, r.Commands())
	assert.Equal(t, 1, r.Offs())
}
