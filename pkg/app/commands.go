package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/zurustar/dtxview/pkg/chart"
	"github.com/zurustar/dtxview/pkg/dtx"
	"github.com/zurustar/dtxview/pkg/midiexport"
	"github.com/zurustar/dtxview/pkg/playback"
	"github.com/zurustar/dtxview/pkg/server"
)

// loadSelected はセットとレベルを選び、譜面を読み込む
func (app *Application) loadSelected() (*dtx.File, *chart.Chart, dtx.Level, error) {
	entry, err := app.chooseEntry()
	if err != nil {
		return nil, nil, dtx.Level{}, fmt.Errorf("failed to select chart: %w", err)
	}
	f, level, err := entry.Set.LoadChart(entry.Level.Number, dtx.WithLogger(app.log))
	if err != nil {
		return nil, nil, dtx.Level{}, fmt.Errorf("failed to load chart: %w", err)
	}
	return f, f.Chart(chart.WithLogger(app.log)), level, nil
}

// runLevels はセットとレベルの一覧を表示する
func (app *Application) runLevels() error {
	sets := app.reg.Available()
	w := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SET\tTITLE\tLEVEL\tLABEL\tFILE")
	for _, set := range sets {
		source := ""
		if set.IsEmbedded {
			source = " (embedded)"
		}
		for _, n := range set.Numbers() {
			l := set.Levels[n]
			fmt.Fprintf(w, "%s%s\t%s\t%d\t%s\t%s\n", set.Name, source, set.DisplayName(), l.Number, l.Label, l.File)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write levels: %w", err)
	}
	app.log.Debug("Levels listed", "sets", len(sets))
	return nil
}

// runInfo は譜面のヘッダとタイムラインを表示する
func (app *Application) runInfo() error {
	f, c, level, err := app.loadSelected()
	if err != nil {
		return err
	}
	tl := c.Timeline()
	bpm := app.chartBPM(f.BPM)

	fmt.Fprintf(app.stdout, "Title:    %s\n", f.Title)
	fmt.Fprintf(app.stdout, "Artist:   %s\n", f.Artist)
	fmt.Fprintf(app.stdout, "Level:    %s (%s, Lv.%d)\n", level.Label, level.File, f.Level)
	fmt.Fprintf(app.stdout, "BPM:      %g\n", bpm)
	fmt.Fprintf(app.stdout, "Chips:    %d\n", len(f.ChipIDs()))
	fmt.Fprintf(app.stdout, "Notes:    %d\n", c.Len())
	fmt.Fprintf(app.stdout, "Measures: %d\n", tl.MeasureCount())
	if plan, err := playback.Plan(c, tl, bpm, 0); err == nil {
		fmt.Fprintf(app.stdout, "Length:   %s (%d events)\n", plan.Duration(), len(plan.Entries))
	}
	fmt.Fprintln(app.stdout)

	// 小節長が1.0でない小節だけを表示する
	w := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MEASURE\tLENGTH\tSTART")
	for m, length := range tl.Lengths() {
		if length == chart.DefaultMeasureLength {
			continue
		}
		fmt.Fprintf(w, "%03d\t%g\t%g\n", m, length, tl.Cumulative(m))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write info: %w", err)
	}
	return nil
}

// runExport は譜面をStandard MIDI Fileに書き出す
func (app *Application) runExport() error {
	f, c, level, err := app.loadSelected()
	if err != nil {
		return err
	}

	out := app.config.Output
	if out == "" {
		base := path.Base(strings.ReplaceAll(level.File, `\`, "/"))
		out = strings.TrimSuffix(base, path.Ext(base)) + ".mid"
	}

	file, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	defer file.Close()

	title := f.Title
	if title == "" {
		title = level.Label
	}
	err = midiexport.Export(file, c, app.chartBPM(f.BPM),
		midiexport.WithTitle(title),
		midiexport.WithTempos(f.Tempos),
		midiexport.WithLogger(app.log),
	)
	if err != nil {
		return fmt.Errorf("failed to export %s: %w", out, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	app.log.Info("MIDI exported", "file", out, "measures", c.MeasureCount())
	fmt.Fprintf(app.stdout, "Exported: %s\n", out)
	return nil
}

// runServe はHTTPでセット一覧とタイムラインを提供する
func (app *Application) runServe(ctx context.Context) error {
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}
	s := server.New(app.reg, server.WithLogger(app.log))
	if err := s.ListenAndServe(ctx, app.config.Listen); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
