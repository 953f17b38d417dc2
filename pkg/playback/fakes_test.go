package playback

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// manualClock fires timers only when Advance is called.
type manualClock struct {
	now    time.Time
	timers []*manualTimer
	mu     sync.Mutex
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward and runs every timer that became due, in due order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type playCall struct {
	sample Sample
	opts   PlayOptions
	at     time.Time
	voice  Voice
}

// recordingOutput records every call made by the scheduler.
type recordingOutput struct {
	clock   Clock
	keys    map[string]Sample
	plays   []playCall
	stopped []Voice
	failOn  map[Sample]error
	next    int
	mu      sync.Mutex
}

func newRecordingOutput(clock Clock) *recordingOutput {
	return &recordingOutput{
		clock:  clock,
		keys:   make(map[string]Sample),
		failOn: make(map[Sample]error),
	}
}

func (o *recordingOutput) Load(key string, data []byte) (Sample, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(data) == 0 {
		return 0, errors.New("empty data")
	}
	if s, ok := o.keys[key]; ok {
		return s, nil
	}
	s := Sample(len(o.keys) + 1)
	o.keys[key] = s
	return s, nil
}

func (o *recordingOutput) Play(s Sample, opts PlayOptions) (Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.failOn[s]; err != nil {
		return 0, err
	}
	o.next++
	v := Voice(o.next)
	var at time.Time
	if o.clock != nil {
		at = o.clock.Now()
	}
	o.plays = append(o.plays, playCall{sample: s, opts: opts, at: at, voice: v})
	return v, nil
}

func (o *recordingOutput) Stop(v Voice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = append(o.stopped, v)
}

func (o *recordingOutput) playCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.plays)
}

func (o *recordingOutput) snapshot() ([]playCall, []Voice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]playCall(nil), o.plays...), append([]Voice(nil), o.stopped...)
}
