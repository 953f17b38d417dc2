package chart

import "errors"

// Chart-level errors
var (
	// ErrInvalidPatternLength is returned when a pattern has an odd number of characters.
	// Every event token is exactly two characters wide.
	ErrInvalidPatternLength = errors.New("invalid pattern length")

	// ErrInvalidMeasureLength is returned when a length-lane directive is not a positive finite number.
	ErrInvalidMeasureLength = errors.New("invalid measure length")

	// ErrInvalidEventID is returned when an event token is not a base-36 pair.
	ErrInvalidEventID = errors.New("invalid event id")

	// ErrStaleTimeline is returned when a timeline was built from an older note set
	// than the chart currently holds.
	ErrStaleTimeline = errors.New("timeline is stale")
)
