package audio

import "errors"

// Audio errors
var (
	// ErrUnsupportedFormat is returned when a sample is in a format that cannot be decoded
	// (for example PlayStation .xa audio).
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidFormat is returned when sample data is corrupt for its detected format.
	ErrInvalidFormat = errors.New("invalid audio data")

	// ErrSoundFontNotFound is returned when the SoundFont file cannot be found.
	ErrSoundFontNotFound = errors.New("SoundFont file not found")

	// ErrUnknownSample is returned when Play is given a handle that was never loaded.
	ErrUnknownSample = errors.New("unknown sample")
)
