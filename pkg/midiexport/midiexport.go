// Package midiexport writes a chart as a Standard MIDI File.
//
// Every playable-lane event becomes a General MIDI percussion hit. The
// backing track cannot be expressed as MIDI notes, so its starts are written
// as marker meta events instead.
package midiexport

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/zurustar/dtxview/pkg/chart"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// TicksPerQuarter is the resolution of the exported file.
	TicksPerQuarter = 480

	// TicksPerMeasureUnit is one measure of multiplier 1.0 (four quarters).
	TicksPerMeasureUnit = 4 * TicksPerQuarter

	// GateTicks is the length of every exported hit (1/16 measure).
	GateTicks = TicksPerMeasureUnit / 16

	// PercussionChannel is General MIDI channel 10.
	PercussionChannel = 9

	// DefaultVelocity is used unless WithVelocity is given.
	DefaultVelocity = 100
)

type options struct {
	title    string
	velocity uint8
	tempos   map[int]float64
	log      *slog.Logger
}

// Option configures Export.
type Option func(*options)

// WithTitle sets the track name.
func WithTitle(title string) Option {
	return func(o *options) {
		o.title = title
	}
}

// WithVelocity sets the note-on velocity of every hit.
func WithVelocity(v uint8) Option {
	return func(o *options) {
		o.velocity = v
	}
}

// WithTempos supplies the #BPMzz table. Events on the tempo lane whose id is
// in the table are written as tempo changes.
func WithTempos(tempos map[int]float64) Option {
	return func(o *options) {
		o.tempos = tempos
	}
}

// WithLogger sets the logger used for skipped notes.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// event is one message at an absolute tick.
type event struct {
	tick uint32
	msg  []byte
	rank int // orders messages on the same tick
}

const (
	rankMeta = iota
	rankNoteOff
	rankNoteOn
)

// Export writes c to w as a single-track SMF.
//
// Parameters:
//   - w: Destination of the file bytes
//   - c: The chart to export
//   - bpm: Initial tempo, must be positive
//   - opts: Export options
//
// Returns:
//   - error: An error for a non-positive tempo or a failed write
//
// A note at measure m whose event sits at position p is placed at tick
// round((L(m)+p) * TicksPerMeasureUnit), so measure length changes shift
// the ticks exactly as they shift playback.
func Export(w io.Writer, c *chart.Chart, bpm float64, opts ...Option) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("invalid tempo: %v", bpm)
	}
	o := &options{velocity: DefaultVelocity, log: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	events := collect(c, o)

	var tr smf.Track
	if o.title != "" {
		tr.Add(0, smf.MetaTrackSequenceName(o.title))
	}
	tr.Add(0, smf.MetaMeter(4, 4))
	tr.Add(0, smf.MetaTempo(bpm))

	var last uint32
	for _, ev := range events {
		tr.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}

	// end of track at the end of the last measure
	end := ticks(c.Timeline().Cumulative(c.MeasureCount()))
	if end < last {
		end = last
	}
	tr.Close(end - last)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write midi: %w", err)
	}
	return nil
}

// collect turns every decodable event into absolute-tick messages, sorted.
func collect(c *chart.Chart, o *options) []event {
	tl := c.Timeline()
	var events []event

	each := func(lane chart.LaneID, fn func(tick uint32, ev chart.Event)) {
		for _, note := range c.NotesInLane(lane) {
			decoded, err := note.Decode(tl)
			if err != nil {
				o.log.Warn("Note skipped", "lane", note.Lane, "measure", note.Measure, "error", err)
				continue
			}
			for _, ev := range decoded {
				fn(ticks(tl.Position(note.Measure, ev)), ev)
			}
		}
	}

	for _, lane := range chart.PlayableLanes() {
		key := lane.GMNote
		each(lane.ID, func(tick uint32, _ chart.Event) {
			events = append(events,
				event{tick: tick, msg: midi.NoteOn(PercussionChannel, key, o.velocity), rank: rankNoteOn},
				event{tick: tick + GateTicks, msg: midi.NoteOff(PercussionChannel, key), rank: rankNoteOff},
			)
		})
	}

	each(chart.LaneBGM, func(tick uint32, ev chart.Event) {
		events = append(events, event{tick: tick, msg: smf.MetaMarker("BGM " + ev.ID), rank: rankMeta})
	})

	if len(o.tempos) > 0 {
		each(chart.LaneBPM, func(tick uint32, ev chart.Event) {
			id, err := chart.ParseEventID(ev.ID)
			if err != nil {
				return
			}
			if bpm, ok := o.tempos[id]; ok && bpm > 0 {
				events = append(events, event{tick: tick, msg: smf.MetaTempo(bpm), rank: rankMeta})
			}
		})
	}

	slices.SortStableFunc(events, func(a, b event) int {
		if d := cmp.Compare(a.tick, b.tick); d != 0 {
			return d
		}
		return cmp.Compare(a.rank, b.rank)
	})
	return events
}

func ticks(units float64) uint32 {
	return uint32(math.Round(units * TicksPerMeasureUnit))
}
