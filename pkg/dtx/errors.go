package dtx

import "errors"

// Parse errors
var (
	// ErrNoDef is returned when a chart set has no .def file.
	ErrNoDef = errors.New("no .def file found")

	// ErrEmptyFile is returned when the input has no directives at all.
	ErrEmptyFile = errors.New("empty chart file")
)
