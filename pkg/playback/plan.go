package playback

import (
	"fmt"
	"math"
	"time"

	"github.com/zurustar/dtxview/pkg/chart"
)

// Mode tells how an entry is started.
type Mode int

const (
	// ModeDelay starts the sample from its beginning after DelaySeconds.
	ModeDelay Mode = iota
	// ModeSeek starts the sample immediately, SeekSeconds into its data.
	ModeSeek
)

func (m Mode) String() string {
	switch m {
	case ModeDelay:
		return "delay"
	case ModeSeek:
		return "seek"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Entry is one scheduled event.
type Entry struct {
	Lane         chart.LaneID
	Measure      int
	EventID      string
	Chip         int
	Position     float64 // absolute, in measure units
	Mode         Mode
	DelaySeconds float64
	SeekSeconds  float64
}

// Options converts the entry to audio play options.
func (e Entry) Options() PlayOptions {
	switch e.Mode {
	case ModeSeek:
		return PlayOptions{Seek: seconds(e.SeekSeconds)}
	default:
		return PlayOptions{Delay: seconds(e.DelaySeconds)}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Schedule is the complete result of planning one session.
type Schedule struct {
	BPM                   float64
	StartMeasure          int
	SecondsPerMeasureUnit float64
	StartPosition         float64 // L(StartMeasure)
	EndPosition           float64 // L(measureCount)
	Entries               []Entry
	// Problems lists notes that could not be decoded. They are left out of Entries.
	Problems []error
}

// Duration is the playing time from the start measure to the end of the timeline.
func (s *Schedule) Duration() time.Duration {
	remaining := s.EndPosition - s.StartPosition
	if remaining <= 0 {
		return 0
	}
	return seconds(remaining * s.SecondsPerMeasureUnit)
}

// SecondsPerMeasureUnit returns the length of a 4-beat measure at bpm.
func SecondsPerMeasureUnit(bpm float64) float64 {
	return 60 * 4 / bpm
}

// ValidateTempo rejects tempos that would desynchronise playback.
func ValidateTempo(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTempo, bpm)
	}
	return nil
}

// StartMeasure converts a caller-supplied position (for example a scroll
// position) to a start measure. Negative and fractional values are rejected.
func StartMeasure(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidStartMeasure, v)
	}
	return int(v), nil
}

// Plan computes every entry of a session started at startMeasure.
//
// The backing track lane comes first: each of its events is either delayed
// (it lies at or after the start point) or resumed by seeking (it started
// before). Then every playable lane, in lane order, contributes its events from
// startMeasure on as delayed starts; earlier one-shots are skipped.
//
// The chart and timeline are only read. The timeline must have been built
// from the chart's current notes.
func Plan(c *chart.Chart, tl *chart.Timeline, bpm float64, startMeasure int) (*Schedule, error) {
	if err := ValidateTempo(bpm); err != nil {
		return nil, err
	}
	if startMeasure < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStartMeasure, startMeasure)
	}
	if err := c.CheckTimeline(tl); err != nil {
		return nil, err
	}

	spmu := SecondsPerMeasureUnit(bpm)
	startAbs := tl.Cumulative(startMeasure)
	s := &Schedule{
		BPM:                   bpm,
		StartMeasure:          startMeasure,
		SecondsPerMeasureUnit: spmu,
		StartPosition:         startAbs,
		EndPosition:           tl.Cumulative(tl.MeasureCount()),
	}

	for _, note := range c.NotesInLane(chart.LaneBGM) {
		events, err := note.Decode(tl)
		if err != nil {
			s.Problems = append(s.Problems, noteError(note, err))
			continue
		}
		for _, ev := range events {
			e, err := newEntry(note, ev, tl)
			if err != nil {
				s.Problems = append(s.Problems, err)
				continue
			}
			if e.Position >= startAbs {
				e.Mode = ModeDelay
				e.DelaySeconds = (e.Position - startAbs) * spmu
			} else {
				e.Mode = ModeSeek
				e.SeekSeconds = (startAbs - e.Position) * spmu
			}
			s.Entries = append(s.Entries, e)
		}
	}

	for _, lane := range chart.PlayableLanes() {
		for note := range c.NotesFrom(lane.ID, startMeasure) {
			events, err := note.Decode(tl)
			if err != nil {
				s.Problems = append(s.Problems, noteError(note, err))
				continue
			}
			for _, ev := range events {
				e, err := newEntry(note, ev, tl)
				if err != nil {
					s.Problems = append(s.Problems, err)
					continue
				}
				e.Mode = ModeDelay
				e.DelaySeconds = (e.Position - startAbs) * spmu
				s.Entries = append(s.Entries, e)
			}
		}
	}

	return s, nil
}

func newEntry(note chart.Note, ev chart.Event, tl *chart.Timeline) (Entry, error) {
	chip, err := chart.ParseEventID(ev.ID)
	if err != nil {
		return Entry{}, noteError(note, err)
	}
	return Entry{
		Lane:     note.Lane,
		Measure:  note.Measure,
		EventID:  ev.ID,
		Chip:     chip,
		Position: tl.Position(note.Measure, ev),
	}, nil
}

func noteError(note chart.Note, err error) error {
	return fmt.Errorf("lane %s measure %d: %w", note.Lane, note.Measure, err)
}
