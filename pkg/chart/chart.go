// Package chart holds the note model of a DTX chart and the timing derived from it:
// pattern decoding, per-measure length multipliers and the cumulative
// position function shared by the renderer and the audio scheduler.
package chart

import (
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
)

// Note is one object line of a chart: the pattern of a lane in one measure.
type Note struct {
	Measure int
	Lane    LaneID
	Pattern string
}

// Decode decodes the note's pattern with the multiplier of its measure.
func (n Note) Decode(t *Timeline) ([]Event, error) {
	return DecodePattern(n.Pattern, t.MeasureLength(n.Measure))
}

// Chart groups notes by lane, keeping insertion order within each lane.
// Every change bumps the revision; timelines built from an older revision are stale.
type Chart struct {
	lanes    map[LaneID][]Note
	order    []LaneID
	total    int
	revision uint64
	timeline *Timeline
	log      *slog.Logger
	mu       sync.RWMutex
}

// Option configures a Chart.
type Option func(*Chart)

// WithLogger sets the logger used for timeline warnings.
func WithLogger(log *slog.Logger) Option {
	return func(c *Chart) {
		c.log = log
	}
}

// New creates an empty chart.
func New(opts ...Option) *Chart {
	c := &Chart{
		lanes:    make(map[LaneID][]Note),
		revision: 1,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReplaceAll swaps the whole note set. Any timeline derived earlier becomes stale.
func (c *Chart) ReplaceAll(notes []Note) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lanes = make(map[LaneID][]Note)
	c.order = c.order[:0]
	c.total = 0
	for _, n := range notes {
		if n.Measure < 0 {
			c.log.Warn("Note with negative measure dropped", "lane", n.Lane, "measure", n.Measure)
			continue
		}
		c.addLocked(n)
	}
	c.invalidateLocked()
}

// Add appends a note to its lane.
func (c *Chart) Add(n Note) error {
	if n.Measure < 0 {
		return fmt.Errorf("negative measure %d in lane %s", n.Measure, n.Lane)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(n)
	c.invalidateLocked()
	return nil
}

func (c *Chart) addLocked(n Note) {
	if _, ok := c.lanes[n.Lane]; !ok {
		c.order = append(c.order, n.Lane)
	}
	c.lanes[n.Lane] = append(c.lanes[n.Lane], n)
	c.total++
}

func (c *Chart) invalidateLocked() {
	c.revision++
	c.timeline = nil
}

// NotesInLane returns the lane's notes in insertion order.
func (c *Chart) NotesInLane(lane LaneID) []Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.lanes[lane])
}

// NotesFrom yields the lane's notes with Measure >= start, ordered by measure.
// Notes on the same measure keep their insertion order.
func (c *Chart) NotesFrom(lane LaneID, start int) iter.Seq[Note] {
	c.mu.RLock()
	var notes []Note
	for _, n := range c.lanes[lane] {
		if n.Measure >= start {
			notes = append(notes, n)
		}
	}
	c.mu.RUnlock()

	slices.SortStableFunc(notes, func(a, b Note) int {
		return a.Measure - b.Measure
	})
	return slices.Values(notes)
}

// MaxMeasure returns the greatest measure across all notes, or 0 for an empty chart.
func (c *Chart) MaxMeasure() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.maxMeasureLocked()
}

func (c *Chart) maxMeasureLocked() int {
	highest := 0
	for _, notes := range c.lanes {
		for _, n := range notes {
			highest = max(highest, n.Measure)
		}
	}
	return highest
}

// MeasureCount is the number of measures a timeline must cover.
func (c *Chart) MeasureCount() int {
	return c.MaxMeasure() + 1
}

// Lanes returns the ids of lanes holding notes, in first-seen order.
func (c *Chart) Lanes() []LaneID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Len returns the number of notes.
func (c *Chart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total
}

// Revision identifies the current note set.
func (c *Chart) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// BuildTimeline builds a timeline over measureCount measures from the length lane.
func (c *Chart) BuildTimeline(measureCount int) *Timeline {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildLocked(measureCount)
}

func (c *Chart) buildLocked(measureCount int) *Timeline {
	t := BuildTimeline(c.lanes[LaneLength], LaneLength, measureCount, c.log)
	t.revision = c.revision
	return t
}

// Timeline returns the timeline for the current notes, rebuilding it when the
// notes changed since the last call.
func (c *Chart) Timeline() *Timeline {
	c.mu.RLock()
	t := c.timeline
	c.mu.RUnlock()
	if t != nil {
		return t
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeline == nil {
		c.timeline = c.buildLocked(c.maxMeasureLocked() + 1)
	}
	return c.timeline
}

// CheckTimeline reports ErrStaleTimeline when t was not built from the current notes.
func (c *Chart) CheckTimeline(t *Timeline) error {
	if t == nil {
		return fmt.Errorf("%w: no timeline", ErrStaleTimeline)
	}
	rev := c.Revision()
	if t.revision != rev {
		return fmt.Errorf("%w: built at revision %d, chart is at %d", ErrStaleTimeline, t.revision, rev)
	}
	return nil
}
