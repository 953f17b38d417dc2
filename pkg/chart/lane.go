package chart

import (
	"image/color"
	"strings"
)

// LaneID identifies a lane (DTX channel), e.g. "13" for the bass drum.
// IDs are stored upper-cased.
type LaneID string

// Reserved lanes
const (
	LaneBGM    LaneID = "01" // continuous backing track
	LaneLength LaneID = "02" // measure length multiplier
	LaneBPM    LaneID = "08" // extended tempo change
)

// Lane describes one column of the chart grid.
type Lane struct {
	ID       LaneID
	Name     string
	Color    color.RGBA
	Playable bool  // one-shot sample lane
	GMNote   uint8 // General MIDI percussion key, 0 for non-drum lanes
}

func rgb(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
}

// lanes is the display and scheduling order.
var lanes = []Lane{
	{ID: LaneBPM, Name: "BPM", Color: rgb(0x000000)},
	{ID: "1A", Name: "LC", Color: rgb(0xa20814), Playable: true, GMNote: 49},
	{ID: "18", Name: "HH", Color: rgb(0x0d1cde), Playable: true, GMNote: 46},
	{ID: "11", Name: "HHC", Color: rgb(0x0d1cde), Playable: true, GMNote: 42},
	{ID: "1B", Name: "LP", Color: rgb(0xde0db8), Playable: true, GMNote: 44},
	{ID: "1C", Name: "LB", Color: rgb(0x567dcb), Playable: true, GMNote: 35},
	{ID: "12", Name: "SN", Color: rgb(0xefec1b), Playable: true, GMNote: 38},
	{ID: "14", Name: "HT", Color: rgb(0x45ef1b), Playable: true, GMNote: 50},
	{ID: "13", Name: "BD", Color: rgb(0x567dcb), Playable: true, GMNote: 36},
	{ID: "15", Name: "LT", Color: rgb(0xef1b2b), Playable: true, GMNote: 47},
	{ID: "17", Name: "FT", Color: rgb(0xfa7e0a), Playable: true, GMNote: 43},
	{ID: "16", Name: "CY", Color: rgb(0x1424c4), Playable: true, GMNote: 57},
	{ID: "19", Name: "RD", Color: rgb(0x14bfc4), Playable: true, GMNote: 51},
	{ID: LaneBGM, Name: "BGM", Color: rgb(0x222222)},
}

// Lanes returns the drawn lanes in display order.
func Lanes() []Lane {
	out := make([]Lane, len(lanes))
	copy(out, lanes)
	return out
}

// PlayableLanes returns the one-shot lanes in scheduling order.
func PlayableLanes() []Lane {
	var out []Lane
	for _, l := range lanes {
		if l.Playable {
			out = append(out, l)
		}
	}
	return out
}

// LaneByID looks up a drawn lane.
func LaneByID(id LaneID) (Lane, bool) {
	for _, l := range lanes {
		if l.ID == id {
			return l, true
		}
	}
	return Lane{}, false
}

// LaneIndex returns the display column of a lane, or -1.
func LaneIndex(id LaneID) int {
	for i, l := range lanes {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// NormalizeLaneID upper-cases and trims a raw channel token.
func NormalizeLaneID(s string) LaneID {
	return LaneID(strings.ToUpper(strings.TrimSpace(s)))
}
