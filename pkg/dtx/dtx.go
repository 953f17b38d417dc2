// Package dtx reads DTX chart text and .def set definitions.
//
// A chart file is a list of '#' directives. Header directives carry metadata
// and sample tables; object lines ("#mmmLL: pattern") become chart notes.
// Unknown directives are ignored.
package dtx

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/zurustar/dtxview/pkg/chart"
)

// DefaultVolume is the chip volume when no #VOLUME directive is given.
const DefaultVolume = 100

// Chip is one entry of the #WAV table.
type Chip struct {
	ID     int // base-36 value of the two-character id
	File   string
	Volume int
}

// File is a parsed chart file.
type File struct {
	Title        string
	Artist       string
	Genre        string
	Level        int     // #DLEVEL
	BPM          float64 // #BPM
	Preview      string  // #PREIMAGE
	PreviewSound string  // #PREVIEW
	Chips        map[int]Chip
	Tempos       map[int]float64 // #BPMzz
	Notes        []chart.Note
}

// Option configures parsing.
type Option func(*parser)

// WithLogger sets the logger used for warnings about malformed directives.
func WithLogger(log *slog.Logger) Option {
	return func(p *parser) {
		p.log = log
	}
}

type parser struct {
	log *slog.Logger
}

func newParser(opts []Option) *parser {
	p := &parser{log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads a chart file from r.
//
// Parameters:
//   - r: Raw chart bytes in Shift_JIS, UTF-8 or UTF-16 (with BOM)
//   - opts: Parse options
//
// Returns:
//   - *File: The parsed headers, chip table and notes in file order
//   - error: ErrEmptyFile when nothing was recognised, or a read/decode error
func Parse(r io.Reader, opts ...Option) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart: %w", err)
	}
	return ParseBytes(data, opts...)
}

// ParseBytes is Parse over an in-memory buffer.
func ParseBytes(data []byte, opts ...Option) (*File, error) {
	p := newParser(opts)
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	f := &File{
		Chips:  make(map[int]Chip),
		Tempos: make(map[int]float64),
	}
	seen := 0
	for d := range directives(text) {
		if p.apply(f, d) {
			seen++
		}
	}
	if seen == 0 {
		return nil, ErrEmptyFile
	}
	return f, nil
}

// apply stores one directive and reports whether it was recognised.
func (p *parser) apply(f *File, d directive) bool {
	if n, ok := objectLine(d); ok {
		f.Notes = append(f.Notes, n)
		return true
	}

	switch {
	case d.key == "TITLE":
		f.Title = d.value
	case d.key == "ARTIST":
		f.Artist = d.value
	case d.key == "GENRE":
		f.Genre = d.value
	case d.key == "DLEVEL":
		v, err := strconv.Atoi(d.value)
		if err != nil {
			p.warn(d, err)
			return false
		}
		f.Level = v
	case d.key == "BPM":
		v, err := strconv.ParseFloat(d.value, 64)
		if err != nil {
			p.warn(d, err)
			return false
		}
		f.BPM = v
	case d.key == "PREIMAGE":
		f.Preview = d.value
	case d.key == "PREVIEW":
		f.PreviewSound = d.value
	case len(d.key) == 5 && strings.HasPrefix(d.key, "WAV"):
		id, err := chart.ParseEventID(d.key[3:])
		if err != nil {
			p.warn(d, err)
			return false
		}
		c := f.chip(id)
		c.File = d.value
		f.Chips[id] = c
	case len(d.key) == 8 && strings.HasPrefix(d.key, "VOLUME"):
		id, err := chart.ParseEventID(d.key[6:])
		if err != nil {
			p.warn(d, err)
			return false
		}
		v, err := strconv.Atoi(d.value)
		if err != nil {
			p.warn(d, err)
			return false
		}
		c := f.chip(id)
		c.Volume = v
		f.Chips[id] = c
	case len(d.key) == 5 && strings.HasPrefix(d.key, "BPM"):
		id, err := chart.ParseEventID(d.key[3:])
		if err != nil {
			p.warn(d, err)
			return false
		}
		v, err := strconv.ParseFloat(d.value, 64)
		if err != nil {
			p.warn(d, err)
			return false
		}
		f.Tempos[id] = v
	default:
		p.log.Debug("Directive ignored", "line", d.line, "key", d.key)
		return false
	}
	return true
}

func (p *parser) warn(d directive, err error) {
	p.log.Warn("Directive ignored", "line", d.line, "key", d.key, "value", d.value, "error", err)
}

func (f *File) chip(id int) Chip {
	if c, ok := f.Chips[id]; ok {
		return c
	}
	return Chip{ID: id, Volume: DefaultVolume}
}

// objectLine recognises "#mmmLL: pattern".
func objectLine(d directive) (chart.Note, bool) {
	if len(d.key) != 5 {
		return chart.Note{}, false
	}
	for i := 0; i < 3; i++ {
		if d.key[i] < '0' || d.key[i] > '9' {
			return chart.Note{}, false
		}
	}
	measure, err := strconv.Atoi(d.key[:3])
	if err != nil {
		return chart.Note{}, false
	}
	return chart.Note{
		Measure: measure,
		Lane:    chart.NormalizeLaneID(d.key[3:]),
		Pattern: cleanPattern(d.value),
	}, true
}

// Chart builds a chart model from the object lines.
func (f *File) Chart(opts ...chart.Option) *chart.Chart {
	c := chart.New(opts...)
	c.ReplaceAll(f.Notes)
	return c
}

// Chip returns the #WAV entry for a two-character event id.
func (f *File) Chip(eventID string) (Chip, bool) {
	id, err := chart.ParseEventID(eventID)
	if err != nil {
		return Chip{}, false
	}
	c, ok := f.Chips[id]
	if !ok || c.File == "" {
		return Chip{}, false
	}
	return c, true
}

// ChipIDs returns the ids of every chip with a file, in ascending order.
func (f *File) ChipIDs() []int {
	ids := slices.Sorted(maps.Keys(f.Chips))
	return slices.DeleteFunc(ids, func(id int) bool {
		return f.Chips[id].File == ""
	})
}

// Summary is a one-line description for listings and logs.
func (f *File) Summary() string {
	var b bytes.Buffer
	b.WriteString(f.Title)
	if f.Artist != "" {
		fmt.Fprintf(&b, " / %s", f.Artist)
	}
	if f.Level > 0 {
		fmt.Fprintf(&b, " (Lv.%d)", f.Level)
	}
	if f.BPM > 0 {
		fmt.Fprintf(&b, " %g BPM", f.BPM)
	}
	return b.String()
}
