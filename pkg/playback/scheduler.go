// Package playback schedules the audio of a chart from a chosen start measure.
// It turns a chart and its timeline into delayed or seek-resumed sample starts
// and owns every pending timer and playing voice until the session is stopped.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zurustar/dtxview/pkg/chart"
)

// State is the scheduler state visible to the renderer.
type State int

const (
	// Idle means no session is active; the renderer may accept edit input.
	Idle State = iota
	// Scheduled means a session has been issued and the chart is scrolling.
	Scheduled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionInfo describes the active session.
type SessionInfo struct {
	ID                    uuid.UUID
	BPM                   float64
	StartMeasure          int
	SecondsPerMeasureUnit float64
	StartPosition         float64
	EndPosition           float64
	StartedAt             time.Time
	Duration              time.Duration
	Entries               int
}

type session struct {
	info    SessionInfo
	timers  []Timer
	voices  []Voice
	stopped bool
}

// Scheduler drives an Output from a planned schedule.
//
// Design: one session at a time. StartSession replaces an active session;
// StopSession is the single teardown point and may be called from any goroutine.
type Scheduler struct {
	out   Output
	bank  *Bank
	clock Clock
	log   *slog.Logger

	current *session
	mu      sync.Mutex
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// New creates an idle scheduler.
//
// Parameters:
//   - out: The audio capability samples are played through
//   - bank: Chip-to-sample bindings consulted when an event fires
//   - opts: Logger and clock options
//
// Returns:
//   - *Scheduler: The scheduler in the Idle state
func New(out Output, bank *Bank, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:   out,
		bank:  bank,
		clock: SystemClock{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bank == nil {
		s.bank = NewBank()
	}
	return s
}

// StartSession plans and issues a session from startMeasure at bpm.
//
// Validation happens before anything changes: on ErrInvalidTempo,
// ErrInvalidStartMeasure or chart.ErrStaleTimeline the scheduler keeps
// whatever state it had. Otherwise an active session is stopped first.
//
// Backing-track entries are passed to the Output at once (with their delay or
// seek); one-shot entries are armed on the clock and played when they fire.
func (s *Scheduler) StartSession(c *chart.Chart, tl *chart.Timeline, bpm float64, startMeasure int) error {
	plan, err := Plan(c, tl, bpm, startMeasure)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	sess := &session{
		info: SessionInfo{
			ID:                    uuid.New(),
			BPM:                   plan.BPM,
			StartMeasure:          plan.StartMeasure,
			SecondsPerMeasureUnit: plan.SecondsPerMeasureUnit,
			StartPosition:         plan.StartPosition,
			EndPosition:           plan.EndPosition,
			StartedAt:             s.clock.Now(),
			Duration:              plan.Duration(),
			Entries:               len(plan.Entries),
		},
	}
	s.current = sess

	for _, problem := range plan.Problems {
		s.log.Warn("Note skipped", "session", sess.info.ID, "error", problem)
	}

	for _, e := range plan.Entries {
		if e.Lane == chart.LaneBGM {
			s.playLocked(sess, e)
			continue
		}
		entry := e
		timer := s.clock.AfterFunc(seconds(entry.DelaySeconds), func() {
			s.fire(sess, entry)
		})
		sess.timers = append(sess.timers, timer)
	}

	s.log.Info("Session started",
		"session", sess.info.ID,
		"bpm", plan.BPM,
		"start_measure", plan.StartMeasure,
		"entries", len(plan.Entries),
		"duration", sess.info.Duration)
	return nil
}

// fire runs on the clock's goroutine.
func (s *Scheduler) fire(sess *session, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.stopped || s.current != sess {
		return
	}
	s.playLocked(sess, e)
}

// playLocked must be called with s.mu held.
func (s *Scheduler) playLocked(sess *session, e Entry) {
	sample, ok := s.bank.Lookup(e.Chip)
	if !ok {
		s.log.Warn("Sample skipped",
			"session", sess.info.ID,
			"error", fmt.Errorf("%w: event %s (lane %s, measure %d)", ErrMissingSample, e.EventID, e.Lane, e.Measure))
		return
	}

	opts := PlayOptions{}
	if e.Lane == chart.LaneBGM {
		opts = e.Options()
	}
	voice, err := s.out.Play(sample, opts)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, ErrMissingSample) {
			level = slog.LevelWarn
		}
		s.log.Log(context.Background(), level, "Play failed",
			"session", sess.info.ID, "event", e.EventID, "lane", e.Lane, "measure", e.Measure, "error", err)
		return
	}
	sess.voices = append(sess.voices, voice)
}

// StopSession cancels every pending timer, stops every voice and returns to Idle.
// Calling it without an active session does nothing. Once it returns no
// event of the stopped session can reach the Output.
func (s *Scheduler) StopSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	sess := s.current
	if sess == nil {
		return
	}
	sess.stopped = true
	for _, t := range sess.timers {
		t.Stop()
	}
	for _, v := range sess.voices {
		s.out.Stop(v)
	}
	s.log.Info("Session stopped", "session", sess.info.ID, "voices", len(sess.voices))
	sess.timers = nil
	sess.voices = nil
	s.current = nil
}

// State returns Idle or Scheduled.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Idle
	}
	return Scheduled
}

// Session returns the active session.
func (s *Scheduler) Session() (SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return SessionInfo{}, false
	}
	return s.current.info, true
}

// Playhead returns the absolute position (in measure units) the session has
// reached, using the same timeline and tempo the audio was planned with.
func (s *Scheduler) Playhead() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, false
	}
	info := s.current.info
	elapsed := s.clock.Now().Sub(info.StartedAt).Seconds()
	return info.StartPosition + elapsed/info.SecondsPerMeasureUnit, true
}

// Finished reports whether the active session has run past the end of its timeline.
func (s *Scheduler) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	return s.clock.Now().Sub(s.current.info.StartedAt) >= s.current.info.Duration
}

// Pending returns the number of retained timer and voice handles.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return len(s.current.timers) + len(s.current.voices)
}
