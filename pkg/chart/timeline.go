package chart

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// DefaultMeasureLength is the multiplier of a measure without a length directive.
const DefaultMeasureLength = 1.0

// Timeline holds per-measure length multipliers and their prefix sums.
// It is immutable once built.
type Timeline struct {
	lengths  []float64
	prefix   []float64 // prefix[m] == L(m), len(prefix) == len(lengths)+1
	revision uint64
}

// ParseMeasureLength reads a length-lane pattern as a decimal number.
func ParseMeasureLength(pattern string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(pattern), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMeasureLength, pattern)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidMeasureLength, pattern)
	}
	return v, nil
}

// BuildTimeline scans measures 0..measureCount-1 of the length lane.
// A directive applies from its measure until the next one. When several notes
// sit on the same measure the first one in insertion order wins.
//
// A bad directive is logged and that single measure falls back to
// DefaultMeasureLength; the previously carried multiplier stays in effect
// for the measures after it.
func BuildTimeline(notes []Note, lengthLane LaneID, measureCount int, log *slog.Logger) *Timeline {
	if log == nil {
		log = slog.Default()
	}
	if measureCount < 0 {
		measureCount = 0
	}

	directives := make(map[int]string)
	for _, n := range notes {
		if n.Lane != lengthLane {
			continue
		}
		if _, seen := directives[n.Measure]; !seen {
			directives[n.Measure] = n.Pattern
		}
	}

	t := &Timeline{
		lengths: make([]float64, measureCount),
		prefix:  make([]float64, measureCount+1),
	}
	current := DefaultMeasureLength
	for m := 0; m < measureCount; m++ {
		length := current
		if pattern, ok := directives[m]; ok {
			v, err := ParseMeasureLength(pattern)
			if err != nil {
				log.Warn("Measure length ignored", "measure", m, "pattern", pattern, "error", err)
				length = DefaultMeasureLength
			} else {
				current = v
				length = v
			}
		}
		t.lengths[m] = length
		t.prefix[m+1] = t.prefix[m] + length
	}
	return t
}

// MeasureCount returns the number of measures the timeline was built for.
func (t *Timeline) MeasureCount() int {
	return len(t.lengths)
}

// MeasureLength returns the multiplier of measure m.
// Measures outside the built range use DefaultMeasureLength.
func (t *Timeline) MeasureLength(m int) float64 {
	if m < 0 || m >= len(t.lengths) {
		return DefaultMeasureLength
	}
	return t.lengths[m]
}

// Lengths returns a copy of the multipliers.
func (t *Timeline) Lengths() []float64 {
	out := make([]float64, len(t.lengths))
	copy(out, t.lengths)
	return out
}

// Cumulative returns L(m), the measure units elapsed before measure m.
// L(m) is 0 for m <= 0 and extends past the built range at 1.0 per measure.
func (t *Timeline) Cumulative(m int) float64 {
	if m <= 0 {
		return 0
	}
	count := len(t.lengths)
	if m <= count {
		return t.prefix[m]
	}
	return t.prefix[count] + float64(m-count)*DefaultMeasureLength
}

// Offset scales L(m) by unit (pixels or seconds per measure unit).
func (t *Timeline) Offset(m int, unit float64) float64 {
	return t.Cumulative(m) * unit
}

// Position returns the absolute position of a decoded event in measure units.
func (t *Timeline) Position(m int, ev Event) float64 {
	return t.Cumulative(m) + ev.Position
}

// locateEpsilon is the relative distance within which a position counts as
// lying on a measure boundary. Scaling L(m) to pixels and back loses a few ulps.
const locateEpsilon = 1e-9

// onBoundary reports whether abs lies on boundary within locateEpsilon.
func onBoundary(abs, boundary float64) bool {
	return math.Abs(abs-boundary) <= locateEpsilon*math.Max(1, math.Abs(boundary))
}

// Locate maps an absolute position back to a measure and the fraction of
// that measure already passed (0 <= fraction < 1).
// A position within rounding distance of a measure start belongs to that measure,
// so Locate(Offset(m, u)/u) returns (m, 0) for any unit u.
func (t *Timeline) Locate(abs float64) (measure int, fraction float64) {
	if abs <= 0 {
		return 0, 0
	}
	count := len(t.lengths)
	end := t.prefix[count]
	if abs >= end || onBoundary(abs, end) {
		extra := math.Max(0, abs-end)
		whole := math.Floor(extra / DefaultMeasureLength)
		if onBoundary(extra, (whole+1)*DefaultMeasureLength) {
			whole++
		}
		fraction = (extra - whole*DefaultMeasureLength) / DefaultMeasureLength
		return count + int(whole), math.Max(0, fraction)
	}
	// first m with prefix[m+1] > abs
	lo, hi := 0, count-1
	for lo < hi {
		mid := (lo + hi) / 2
		if t.prefix[mid+1] > abs {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	// just below the next boundary: move on to the next measure
	for lo+1 < count && onBoundary(abs, t.prefix[lo+1]) {
		lo++
	}
	return lo, math.Max(0, (abs-t.prefix[lo])/t.lengths[lo])
}

// Revision returns the chart revision the timeline was built from.
func (t *Timeline) Revision() uint64 {
	return t.revision
}
