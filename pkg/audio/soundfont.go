// Package audio is the host audio capability used by the playback scheduler.
// This file implements SoundFont loading and the offline percussion placeholder renderer.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/dtxview/pkg/chart"
	"github.com/zurustar/dtxview/pkg/fileutil"
)

const (
	// percussionChannel is General MIDI channel 10.
	percussionChannel = 9

	// DefaultHitLength is the rendered length of one placeholder hit.
	DefaultHitLength = 750 * time.Millisecond

	defaultVelocity = 100
)

// ReadSoundFontFS reads a SoundFont file using the FileSystem interface.
// This supports the real file system, embedded files and zip archives.
//
// Parameters:
//   - fsys: The FileSystem to read from (nil reads from the OS file system)
//   - path: Path to the SoundFont (.sf2) file
//
// Returns:
//   - []byte: The SoundFont file contents
//   - error: ErrSoundFontNotFound if the file cannot be read
func ReadSoundFontFS(fsys fileutil.FileSystem, path string) ([]byte, error) {
	if fsys == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
			}
			return nil, fmt.Errorf("failed to read SoundFont file: %w", err)
		}
		return data, nil
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSoundFontNotFound, path)
	}
	return data, nil
}

// Placeholder renders General MIDI percussion hits from a SoundFont.
//
// Chips whose sample file is missing or cannot be decoded get the hit of
// their lane instead, so a chart stays audible. Rendering happens once, at
// load time; nothing here runs while a session is playing.
type Placeholder struct {
	soundFont *meltysynth.SoundFont
	length    time.Duration
	velocity  int32
}

// PlaceholderOption configures a Placeholder.
type PlaceholderOption func(*Placeholder)

// WithHitLength sets the rendered length of each hit.
func WithHitLength(d time.Duration) PlaceholderOption {
	return func(p *Placeholder) {
		if d > 0 {
			p.length = d
		}
	}
}

// NewPlaceholder parses SoundFont data.
//
// Parameters:
//   - sf2: The SoundFont (.sf2) file contents
//   - opts: Rendering options
//
// Returns:
//   - *Placeholder: The renderer
//   - error: Error if the SoundFont cannot be parsed
func NewPlaceholder(sf2 []byte, opts ...PlaceholderOption) (*Placeholder, error) {
	soundFont, err := meltysynth.NewSoundFont(bytes.NewReader(sf2))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SoundFont: %w", err)
	}
	p := &Placeholder{
		soundFont: soundFont,
		length:    DefaultHitLength,
		velocity:  defaultVelocity,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// LoadPlaceholderFS reads and parses a SoundFont through the FileSystem interface.
func LoadPlaceholderFS(fsys fileutil.FileSystem, path string, opts ...PlaceholderOption) (*Placeholder, error) {
	data, err := ReadSoundFontFS(fsys, path)
	if err != nil {
		return nil, err
	}
	return NewPlaceholder(data, opts...)
}

// Render renders one hit of a percussion key as 16-bit stereo PCM.
// A fresh synthesizer is used per hit so no voice bleeds into the next render.
func (p *Placeholder) Render(key uint8) ([]byte, error) {
	settings := meltysynth.NewSynthesizerSettings(SampleRate)
	synth, err := meltysynth.NewSynthesizer(p.soundFont, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	frames := int(p.length.Seconds() * SampleRate)
	left := make([]float32, frames)
	right := make([]float32, frames)

	synth.NoteOn(percussionChannel, int32(key), p.velocity)
	synth.Render(left, right)
	synth.NoteOff(percussionChannel, int32(key))

	return toPCM16(left, right), nil
}

// RenderLane renders the hit of a playable lane.
func (p *Placeholder) RenderLane(lane chart.Lane) ([]byte, error) {
	if !lane.Playable || lane.GMNote == 0 {
		return nil, fmt.Errorf("lane %s has no percussion sound", lane.ID)
	}
	return p.Render(lane.GMNote)
}

// PlaceholderKey is the load key of a lane's placeholder sample within a chart set.
func PlaceholderKey(set string, lane chart.LaneID) string {
	return "placeholder_" + set + "/" + string(lane)
}

// toPCM16 converts float32 channels to int16 interleaved stereo.
func toPCM16(left, right []float32) []byte {
	out := make([]byte, len(left)*BytesPerFrame)
	for i := range left {
		l := int16(clamp(float64(left[i]), -1, 1) * 32767)
		r := int16(clamp(float64(right[i]), -1, 1) * 32767)
		binary.LittleEndian.PutUint16(out[i*4:], uint16(l))
		binary.LittleEndian.PutUint16(out[i*4+2:], uint16(r))
	}
	return out
}
