package chart

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDecodePattern(t *testing.T) {
	tests := []struct {
		name          string
		pattern       string
		measureLength float64
		want          []Event
	}{
		{
			name:          "two tokens",
			pattern:       "0102",
			measureLength: 1,
			want:          []Event{{ID: "01", Slot: 0, Position: 0}, {ID: "02", Slot: 1, Position: 0.5}},
		},
		{
			name:          "empty slots keep their timing",
			pattern:       "00000A00",
			measureLength: 1,
			want:          []Event{{ID: "0A", Slot: 2, Position: 0.5}},
		},
		{
			name:          "all empty",
			pattern:       "000000",
			measureLength: 1,
			want:          nil,
		},
		{
			name:          "empty pattern",
			pattern:       "",
			measureLength: 1,
			want:          nil,
		},
		{
			name:          "stretched measure",
			pattern:       "0101",
			measureLength: 2,
			want:          []Event{{ID: "01", Slot: 0, Position: 0}, {ID: "01", Slot: 1, Position: 1}},
		},
		{
			name:          "shortened measure",
			pattern:       "11111111",
			measureLength: 0.5,
			want: []Event{
				{ID: "11", Slot: 0, Position: 0},
				{ID: "11", Slot: 1, Position: 0.125},
				{ID: "11", Slot: 2, Position: 0.25},
				{ID: "11", Slot: 3, Position: 0.375},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePattern(tt.pattern, tt.measureLength)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d events, got %d (%v)", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestDecodePattern_OddLength(t *testing.T) {
	for _, pattern := range []string{"0", "010", "01020"} {
		_, err := DecodePattern(pattern, 1)
		if !errors.Is(err, ErrInvalidPatternLength) {
			t.Errorf("pattern %q: expected ErrInvalidPatternLength, got %v", pattern, err)
		}
	}
}

func TestEvents_Restartable(t *testing.T) {
	seq, err := Events("0A000B0C", 1.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var first, second []Event
	for ev := range seq {
		first = append(first, ev)
	}
	for ev := range seq {
		second = append(second, ev)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 events on each pass, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("pass mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEvents_EarlyBreak(t *testing.T) {
	seq, err := Events("01020304", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("expected to stop after 2 events, got %d", count)
	}
}

func TestParseEventID(t *testing.T) {
	tests := []struct {
		id      string
		want    int
		wantErr bool
	}{
		{"01", 1, false},
		{"0A", 10, false},
		{"0a", 10, false},
		{"10", 36, false},
		{"ZZ", 1295, false},
		{"zz", 1295, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"!!", 0, true},
		{"001", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseEventID(tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEventID) {
					t.Errorf("expected ErrInvalidEventID, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func tokenPattern(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		tok := strings.ToUpper(strconv.FormatInt(int64(id), 36))
		if len(tok) == 1 {
			b.WriteByte('0')
		}
		b.WriteString(tok)
	}
	return b.String()
}

// TestDecodePatternProperties checks decode invariants over random patterns.
func TestCellPattern(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		index   int
		slots   int
		want    string
		wantErr bool
	}{
		{"first slot", "01", 0, 4, "01000000", false},
		{"middle slot", "0A", 2, 4, "00000A00", false},
		{"single slot", "zz", 0, 1, "zz", false},
		{"empty token", "00", 0, 4, "", true},
		{"bad id", "!x", 0, 4, "", true},
		{"index past the end", "01", 4, 4, "", true},
		{"negative index", "01", -1, 4, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CellPattern(tt.id, tt.index, tt.slots)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	// a single event lands on the cell it was placed in
	pattern, err := CellPattern("01", 3, 12)
	if err != nil {
		t.Fatal(err)
	}
	events, err := DecodePattern(pattern, 0.75)
	if err != nil || len(events) != 1 {
		t.Fatalf("unexpected decode %v, %v", events, err)
	}
	if events[0].Slot != 3 || events[0].Position != 3.0/16 {
		t.Errorf("expected slot 3 at 3/16, got %+v", events[0])
	}
}

func TestDecodePatternProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("decoding twice yields identical events", prop.ForAll(
		func(ids []int, measureLength float64) bool {
			pattern := tokenPattern(ids)
			a, errA := DecodePattern(pattern, measureLength)
			b, errB := DecodePattern(pattern, measureLength)
			if errA != nil || errB != nil || len(a) != len(b) {
				return false
			}
			for i := range a {
				if a[i] != b[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1295)),
		gen.Float64Range(0.0625, 8),
	))

	properties.Property("positions ascend and stay inside the measure", prop.ForAll(
		func(ids []int, measureLength float64) bool {
			events, err := DecodePattern(tokenPattern(ids), measureLength)
			if err != nil {
				return false
			}
			prev := -1.0
			for _, ev := range events {
				if ev.Position <= prev || ev.Position < 0 || ev.Position >= measureLength {
					return false
				}
				prev = ev.Position
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1295)),
		gen.Float64Range(0.0625, 8),
	))

	properties.Property("only empty tokens are dropped", prop.ForAll(
		func(ids []int) bool {
			events, err := DecodePattern(tokenPattern(ids), 1)
			if err != nil {
				return false
			}
			nonEmpty := 0
			for _, id := range ids {
				if id != 0 {
					nonEmpty++
				}
			}
			return len(events) == nonEmpty
		},
		gen.SliceOf(gen.IntRange(0, 1295)),
	))

	properties.TestingRun(t)
}
