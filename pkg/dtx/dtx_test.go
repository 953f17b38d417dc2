package dtx

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zurustar/dtxview/pkg/chart"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
)

const sample = "; demo chart\r\n" +
	"#TITLE: Demo Song\r\n" +
	"#ARTIST: someone\r\n" +
	"#DLEVEL: 45\r\n" +
	"#BPM: 150.5\r\n" +
	"#PREIMAGE: pre.bmp\r\n" +
	"#PREVIEW: preview.mp3\r\n" +
	"#WAV01: bgm.ogg\r\n" +
	"#WAV0A: snare.wav\r\n" +
	"#VOLUME0A: 80\r\n" +
	"#BPM01: 180\r\n" +
	"#00001: 01\r\n" +
	"#00112: 0A00_0A00 ; backbeat\r\n" +
	"#00202: 0.75\r\n" +
	"#002fc: 01\r\n" +
	"#XYZZY: unknown\r\n"

func TestParse_Headers(t *testing.T) {
	f, err := ParseBytes([]byte(sample))
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal("Demo Song", f.Title)
	assert.Equal("someone", f.Artist)
	assert.Equal(45, f.Level)
	assert.Equal(150.5, f.BPM)
	assert.Equal("pre.bmp", f.Preview)
	assert.Equal("preview.mp3", f.PreviewSound)
	assert.Equal(180.0, f.Tempos[1])
}

func TestParse_Chips(t *testing.T) {
	f, err := ParseBytes([]byte(sample))
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal([]int{1, 10}, f.ChipIDs())
	assert.Equal(Chip{ID: 1, File: "bgm.ogg", Volume: DefaultVolume}, f.Chips[1])
	assert.Equal(Chip{ID: 10, File: "snare.wav", Volume: 80}, f.Chips[10])

	c, ok := f.Chip("0a")
	assert.True(ok)
	assert.Equal("snare.wav", c.File)

	_, ok = f.Chip("ZZ")
	assert.False(ok)
	_, ok = f.Chip("!")
	assert.False(ok)
}

func TestParse_ObjectLines(t *testing.T) {
	f, err := ParseBytes([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, []chart.Note{
		{Measure: 0, Lane: chart.LaneBGM, Pattern: "01"},
		{Measure: 1, Lane: "12", Pattern: "0A000A00"},
		{Measure: 2, Lane: chart.LaneLength, Pattern: "0.75"},
		{Measure: 2, Lane: "FC", Pattern: "01"},
	}, f.Notes)
}

func TestParse_ChartAndTimeline(t *testing.T) {
	f, err := ParseBytes([]byte(sample))
	require.NoError(t, err)

	c := f.Chart()
	assert := assert.New(t)
	assert.Equal(4, c.Len())
	assert.Equal(3, c.MeasureCount())

	tl := c.Timeline()
	assert.Equal(0.75, tl.MeasureLength(2))
	assert.Equal(2.75, tl.Cumulative(3))
}

func TestParse_Encodings(t *testing.T) {
	text := "#TITLE: 夜明けのドラム\r\n#00113: 01\r\n"

	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"utf-8", []byte(text)},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, text...)},
		{"shift_jis", sjis},
		{"utf-16le bom", utf16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseBytes(tt.data)
			require.NoError(t, err)
			assert.Equal(t, "夜明けのドラム", f.Title)
			require.Len(t, f.Notes, 1)
			assert.Equal(t, chart.LaneID("13"), f.Notes[0].Lane)
		})
	}
}

func TestParse_LFOnly(t *testing.T) {
	f, err := Parse(strings.NewReader("#TITLE x\n#BPM 90\n#00013: 0101\n"))
	require.NoError(t, err)
	assert.Equal(t, "x", f.Title)
	assert.Equal(t, 90.0, f.BPM)
	assert.Len(t, f.Notes, 1)
}

func TestParse_MalformedValues(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))

	f, err := ParseBytes([]byte("#TITLE: t\n#DLEVEL: hard\n#BPM: fast\n#WAV!!: a.wav\n#VOLUME01: loud\n"), WithLogger(log))
	require.NoError(t, err)

	assert := assert.New(t)
	assert.Equal(0, f.Level)
	assert.Equal(0.0, f.BPM)
	assert.Empty(f.Chips)
	assert.Equal(4, strings.Count(logs.String(), "Directive ignored"))
}

func TestParse_Empty(t *testing.T) {
	_, err := ParseBytes([]byte("no directives here\n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = ParseBytes(nil)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestSummary(t *testing.T) {
	f := &File{Title: "Song", Artist: "Band", Level: 30, BPM: 128}
	assert.Equal(t, "Song / Band (Lv.30) 128 BPM", f.Summary())
	assert.Equal(t, "Song", (&File{Title: "Song"}).Summary())
}
