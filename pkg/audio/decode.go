// Package audio is the host audio capability used by the playback scheduler.
// This file implements sample decoding to 16-bit stereo PCM using Ebitengine/audio decoders.
package audio

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"
)

// SampleRate is the output sample rate. Every sample is resampled to it on load.
const SampleRate = 44100

// BytesPerFrame is the size of one 16-bit stereo frame.
const BytesPerFrame = 4

// Format identifies a sample container.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatVorbis
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatVorbis:
		return "ogg"
	default:
		return "unknown"
	}
}

// DetectFormat picks the decoder for a sample.
// The file extension in name wins; without a known extension the leading
// bytes are sniffed.
//
// Parameters:
//   - name: The sample file name or load key (only the extension is used)
//   - data: The raw file contents
//
// Returns:
//   - Format: The detected format
//   - error: ErrUnsupportedFormat if neither extension nor content is recognised
func DetectFormat(name string, data []byte) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".wav":
		return FormatWAV, nil
	case ".mp3":
		return FormatMP3, nil
	case ".ogg", ".oga":
		return FormatVorbis, nil
	case ".xa":
		return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV, nil
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return FormatVorbis, nil
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return FormatMP3, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// Decode converts a sample to 16-bit little-endian stereo PCM at SampleRate.
//
// Parameters:
//   - format: The container format, usually from DetectFormat
//   - data: The raw file contents
//
// Returns:
//   - []byte: Interleaved PCM frames
//   - error: ErrInvalidFormat if the decoder rejects the data
func Decode(format Format, data []byte) ([]byte, error) {
	var (
		stream io.Reader
		err    error
	)
	r := bytes.NewReader(data)
	switch format {
	case FormatWAV:
		stream, err = wav.DecodeWithSampleRate(SampleRate, r)
	case FormatMP3:
		stream, err = mp3.DecodeWithSampleRate(SampleRate, r)
	case FormatVorbis:
		stream, err = vorbis.DecodeWithSampleRate(SampleRate, r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, format, err)
	}

	pcm, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, format, err)
	}
	// drop a trailing partial frame
	return pcm[:len(pcm)-len(pcm)%BytesPerFrame], nil
}

// DecodeFile is DetectFormat followed by Decode.
func DecodeFile(name string, data []byte) ([]byte, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}
	return Decode(format, data)
}

// SampleKey is the load key of a chip file within a chart set.
// Chips of one set sharing a file share one sample; sets never share samples.
func SampleKey(set, file string) string {
	return "soundchip_" + set + "/" + file
}
