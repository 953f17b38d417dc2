package dtx

import (
	"fmt"
	"io"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"
)

// MaxLevels is the number of level slots a .def file can declare.
const MaxLevels = 5

// Level is one difficulty of a chart set.
type Level struct {
	Number int
	Label  string
	File   string
}

// Def is a parsed .def set definition.
type Def struct {
	Title  string
	Levels map[int]Level
}

// ParseDef reads a set definition. Only levels with both #L{n}LABEL and
// #L{n}FILE are kept.
func ParseDef(r io.Reader) (*Def, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read set definition: %w", err)
	}
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}

	def := &Def{Levels: make(map[int]Level)}
	labels := make(map[int]string)
	files := make(map[int]string)
	for d := range directives(text) {
		if d.key == "TITLE" {
			if def.Title == "" {
				def.Title = d.value
			}
			continue
		}
		n, field, ok := levelKey(d.key)
		if !ok || d.value == "" {
			continue
		}
		switch field {
		case "LABEL":
			if _, dup := labels[n]; !dup {
				labels[n] = d.value
			}
		case "FILE":
			if _, dup := files[n]; !dup {
				files[n] = d.value
			}
		}
	}
	for n, label := range labels {
		if file, ok := files[n]; ok {
			def.Levels[n] = Level{Number: n, Label: label, File: file}
		}
	}
	return def, nil
}

// levelKey splits "L3LABEL" into (3, "LABEL").
func levelKey(key string) (int, string, bool) {
	if len(key) < 3 || key[0] != 'L' {
		return 0, "", false
	}
	n, err := strconv.Atoi(key[1:2])
	if err != nil || n < 1 || n > MaxLevels {
		return 0, "", false
	}
	field := key[2:]
	if field != "LABEL" && field != "FILE" {
		return 0, "", false
	}
	return n, field, true
}

// Numbers returns the declared level numbers in ascending order.
func (d *Def) Numbers() []int {
	return slices.Sorted(maps.Keys(d.Levels))
}

// IsDefFile reports whether name looks like a set definition.
func IsDefFile(name string) bool {
	return strings.EqualFold(path.Ext(name), ".def")
}

// IsChartFile reports whether name looks like a chart file.
func IsChartFile(name string) bool {
	return strings.EqualFold(path.Ext(name), ".dtx")
}
