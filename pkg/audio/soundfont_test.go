package audio

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/zurustar/dtxview/pkg/chart"
	"github.com/zurustar/dtxview/pkg/fileutil"
)

func TestReadSoundFontFS(t *testing.T) {
	t.Run("os file system", func(t *testing.T) {
		_, err := ReadSoundFontFS(nil, filepath.Join(t.TempDir(), "missing.sf2"))
		if !errors.Is(err, ErrSoundFontNotFound) {
			t.Errorf("expected ErrSoundFontNotFound, got %v", err)
		}
	})

	t.Run("pack file system", func(t *testing.T) {
		fsys := fileutil.NewPackFS(fstest.MapFS{"soundfonts/GM.SF2": {Data: []byte("RIFF")}}, "soundfonts")
		data, err := ReadSoundFontFS(fsys, "gm.sf2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != "RIFF" {
			t.Errorf("unexpected data %q", data)
		}
		if _, err := ReadSoundFontFS(fsys, "other.sf2"); !errors.Is(err, ErrSoundFontNotFound) {
			t.Errorf("expected ErrSoundFontNotFound, got %v", err)
		}
	})
}

func TestNewPlaceholderInvalid(t *testing.T) {
	if _, err := NewPlaceholder([]byte("not a soundfont")); err == nil {
		t.Error("expected an error for invalid SoundFont data")
	}
}

func TestRenderLaneRejectsNonDrumLanes(t *testing.T) {
	p := &Placeholder{length: DefaultHitLength, velocity: defaultVelocity}
	bgm, _ := chart.LaneByID(chart.LaneBGM)
	if _, err := p.RenderLane(bgm); err == nil {
		t.Error("expected an error for the BGM lane")
	}
}

func TestPlaceholderKey(t *testing.T) {
	if got := PlaceholderKey("demo", "13"); got != "placeholder_demo/13" {
		t.Errorf("unexpected key %q", got)
	}
	if PlaceholderKey("alpha", "13") == PlaceholderKey("beta", "13") {
		t.Error("expected different sets to get different placeholder keys")
	}
}

func TestToPCM16(t *testing.T) {
	pcm := toPCM16([]float32{0, 1, -2}, []float32{0.5, -1, 2})
	if len(pcm) != 3*BytesPerFrame {
		t.Fatalf("expected %d bytes, got %d", 3*BytesPerFrame, len(pcm))
	}
	want := []int16{0, 16383, 32767, -32767, -32767, 32767}
	for i, w := range want {
		got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		if got != w {
			t.Errorf("sample %d: expected %d, got %d", i, w, got)
		}
	}
}
