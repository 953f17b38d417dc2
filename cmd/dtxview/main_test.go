package main

import (
	"testing"

	"github.com/zurustar/dtxview/pkg/chart"
	"github.com/zurustar/dtxview/pkg/library"
	"github.com/zurustar/dtxview/pkg/playback"
)

// TestEmbeddedCharts は埋め込みのデモセットが読み込めて再生計画を作れることを確認する
func TestEmbeddedCharts(t *testing.T) {
	reg := library.NewRegistry(embeddedCharts)
	defer reg.Close()

	sets := reg.Available()
	if len(sets) == 0 {
		t.Fatal("Expected at least one embedded chart set")
	}

	for _, set := range sets {
		if !set.IsEmbedded {
			t.Errorf("%s: expected embedded set", set.Name)
		}
		for _, n := range set.Numbers() {
			f, level, err := set.LoadChart(n)
			if err != nil {
				t.Fatalf("%s level %d: %v", set.Name, n, err)
			}
			if f.BPM <= 0 {
				t.Errorf("%s %s: expected a BPM, got %v", set.Name, level.Label, f.BPM)
			}

			c := f.Chart()
			if c.Len() == 0 {
				t.Errorf("%s %s: expected notes", set.Name, level.Label)
			}
			tl := c.Timeline()
			if _, err := playback.Plan(c, tl, f.BPM, 0); err != nil {
				t.Errorf("%s %s: failed to plan: %v", set.Name, level.Label, err)
			}

			if f.PreviewSound != "" {
				if _, err := set.ReadFile(f.PreviewSound); err != nil {
					t.Errorf("%s %s: preview %s: %v", set.Name, level.Label, f.PreviewSound, err)
				}
			}

			// すべてのチップの音源がセット内にある
			for _, id := range f.ChipIDs() {
				chip := f.Chips[id]
				if _, err := set.ReadFile(chip.File); err != nil {
					t.Errorf("%s %s: chip %s: %v", set.Name, level.Label, chip.File, err)
				}
			}
		}
	}
}

func TestEmbeddedDemo(t *testing.T) {
	reg := library.NewRegistry(embeddedCharts)
	defer reg.Close()

	set, err := reg.Find("demo")
	if err != nil {
		t.Fatalf("Failed to find demo set: %v", err)
	}
	if set.DisplayName() != "Demo Beat" {
		t.Errorf("Expected title Demo Beat, got %q", set.DisplayName())
	}
	if got := set.Numbers(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Expected levels [1 2], got %v", got)
	}

	f, _, err := set.LoadChart(1)
	if err != nil {
		t.Fatalf("Failed to load chart: %v", err)
	}
	tl := f.Chart().Timeline()
	if tl.MeasureCount() != 7 {
		t.Errorf("Expected 7 measures, got %d", tl.MeasureCount())
	}
	if got := tl.MeasureLength(3); got != 0.75 {
		t.Errorf("Expected measure 3 length 0.75, got %v", got)
	}
	if got := tl.Cumulative(4); got != 3.75 {
		t.Errorf("Expected measure 4 to start at 3.75, got %v", got)
	}
	if len(f.Chips) != 3 {
		t.Errorf("Expected 3 chips, got %d", len(f.Chips))
	}
	if f.Chips[3].Volume != 70 {
		t.Errorf("Expected hi-hat volume 70, got %d", f.Chips[3].Volume)
	}
	if len(chart.PlayableLanes()) == 0 {
		t.Error("Expected playable lanes")
	}
}
