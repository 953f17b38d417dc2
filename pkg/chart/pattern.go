package chart

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// EmptyToken marks a slot without an event.
const EmptyToken = "00"

// Event is one decoded token of a pattern.
// Position is measured in measure-length units from the start of the owning measure.
type Event struct {
	ID       string
	Slot     int // token index, counting empty slots
	Position float64
}

// DecodePattern splits a pattern into two-character tokens and places each
// non-empty token evenly across the measure.
//
// Slot i of n gets position i*measureLength/n, so a measure with multiplier 2
// spans twice the distance. An empty pattern yields no events.
func DecodePattern(pattern string, measureLength float64) ([]Event, error) {
	seq, err := Events(pattern, measureLength)
	if err != nil {
		return nil, err
	}
	var out []Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out, nil
}

// Events is the lazy form of DecodePattern. The returned sequence holds no
// state and can be ranged over any number of times.
func Events(pattern string, measureLength float64) (iter.Seq[Event], error) {
	if len(pattern)%2 != 0 {
		return nil, fmt.Errorf("%w: %q has %d characters", ErrInvalidPatternLength, pattern, len(pattern))
	}
	n := len(pattern) / 2
	return func(yield func(Event) bool) {
		for i := 0; i < n; i++ {
			tok := pattern[i*2 : i*2+2]
			if tok == EmptyToken {
				continue
			}
			ev := Event{
				ID:       tok,
				Slot:     i,
				Position: float64(i) * measureLength / float64(n),
			}
			if !yield(ev) {
				return
			}
		}
	}, nil
}

// CellPattern builds a pattern of slots tokens with id in slot index and
// every other slot empty. It is the pattern of a single note placed in an editor cell.
func CellPattern(id string, index, slots int) (string, error) {
	if _, err := ParseEventID(id); err != nil || id == EmptyToken {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventID, id)
	}
	if index < 0 || index >= slots {
		return "", fmt.Errorf("slot %d out of range [0, %d)", index, slots)
	}
	var b strings.Builder
	b.Grow(slots * 2)
	for i := 0; i < slots; i++ {
		if i == index {
			b.WriteString(id)
		} else {
			b.WriteString(EmptyToken)
		}
	}
	return b.String(), nil
}

// ParseEventID converts a base-36 token ("0A", "zz") to its numeric chip id.
func ParseEventID(id string) (int, error) {
	if len(id) != 2 || id[0] == '-' || id[0] == '+' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidEventID, id)
	}
	v, err := strconv.ParseInt(id, 36, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidEventID, id)
	}
	return int(v), nil
}
