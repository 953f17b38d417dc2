package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// createTestWAV builds a 16-bit PCM WAV file with the given number of frames of silence.
func createTestWAV(channels, sampleRate, frames int) []byte {
	blockAlign := channels * 2
	dataSize := frames * blockAlign

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	wavData := createTestWAV(2, SampleRate, 10)

	tests := []struct {
		name    string
		key     string
		data    []byte
		want    Format
		wantErr error
	}{
		{"wav by extension", "snare.WAV", nil, FormatWAV, nil},
		{"mp3 by extension", "soundchip_bgm.mp3", nil, FormatMP3, nil},
		{"ogg by extension", "bgm.ogg", nil, FormatVorbis, nil},
		{"xa is unsupported", "bgm.xa", wavData, FormatUnknown, ErrUnsupportedFormat},
		{"sniff riff", "chip", wavData, FormatWAV, nil},
		{"sniff ogg", "chip", []byte("OggS\x00\x02"), FormatVorbis, nil},
		{"sniff id3", "chip", []byte("ID3\x04"), FormatMP3, nil},
		{"sniff mpeg frame", "chip", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3, nil},
		{"unknown", "chip.bin", []byte("hello"), FormatUnknown, ErrUnsupportedFormat},
		{"empty", "", nil, FormatUnknown, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.key, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDecodeWAV(t *testing.T) {
	pcm, err := DecodeFile("kick.wav", createTestWAV(2, SampleRate, 441))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pcm) != 441*BytesPerFrame {
		t.Errorf("expected %d bytes, got %d", 441*BytesPerFrame, len(pcm))
	}
	if d := pcmDuration(pcm); d != 10_000_000 {
		t.Errorf("expected 10ms, got %v", d)
	}
}

func TestDecodeInvalid(t *testing.T) {
	_, err := DecodeFile("kick.wav", []byte("RIFF but not really a wave file"))
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}

	_, err = Decode(FormatUnknown, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSampleKey(t *testing.T) {
	if got := SampleKey("demo", "bgm.ogg"); got != "soundchip_demo/bgm.ogg" {
		t.Errorf("unexpected key %q", got)
	}
	if SampleKey("alpha", "bd.wav") == SampleKey("beta", "bd.wav") {
		t.Error("expected different sets to get different keys for the same file")
	}

	// the file extension still selects the decoder
	format, err := DetectFormat(SampleKey("song.v2", "bgm.ogg"), nil)
	if err != nil || format != FormatVorbis {
		t.Errorf("expected ogg, got %v (%v)", format, err)
	}
}

func TestFormatString(t *testing.T) {
	for f, want := range map[Format]string{FormatWAV: "wav", FormatMP3: "mp3", FormatVorbis: "ogg", FormatUnknown: "unknown"} {
		if f.String() != want {
			t.Errorf("expected %q, got %q", want, f.String())
		}
	}
}
