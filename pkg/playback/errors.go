package playback

import "errors"

// Session errors
var (
	// ErrInvalidTempo is returned when a session is started with a tempo that is not a positive finite number.
	ErrInvalidTempo = errors.New("invalid tempo")

	// ErrInvalidStartMeasure is returned when the start measure is negative or not a whole number.
	ErrInvalidStartMeasure = errors.New("invalid start measure")

	// ErrMissingSample is reported when an event id has no loaded sample at play time.
	// The event is skipped and the rest of the schedule keeps playing.
	ErrMissingSample = errors.New("missing sample")
)
