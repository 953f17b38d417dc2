package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/zurustar/dtxview/pkg/audio"
	"github.com/zurustar/dtxview/pkg/chart"
	"github.com/zurustar/dtxview/pkg/dtx"
	"github.com/zurustar/dtxview/pkg/library"
	"github.com/zurustar/dtxview/pkg/playback"
	"github.com/zurustar/dtxview/pkg/window"
)

// cleanupInterval は再生の終わったボイスを解放する間隔
const cleanupInterval = 500 * time.Millisecond

// sampleLoader はチップの音声を登録する（audio.Mixerが実装する）
type sampleLoader interface {
	Load(key string, data []byte) (playback.Sample, error)
	LoadPCM(key string, pcm []byte) (playback.Sample, error)
	SetSampleVolume(s playback.Sample, volume float64) error
}

// hitRenderer はレーンのプレースホルダ音を作る（audio.Placeholderが実装する）
type hitRenderer interface {
	RenderLane(lane chart.Lane) ([]byte, error)
}

// deck は再生に使う音声まわりをまとめる
type deck struct {
	app       *Application
	mixer     *audio.Mixer
	bank      *playback.Bank
	scheduler *playback.Scheduler
	hits      map[string]hitRenderer // セット名 -> プレースホルダ音源

	// 選択画面で鳴らしている#PREVIEW
	previewMu    sync.Mutex
	previewVoice playback.Voice
	previewing   bool
}

func (app *Application) newDeck() *deck {
	mixer := audio.NewMixer(nil,
		audio.WithLogger(app.log),
		audio.WithVolume(app.settings.Volume),
		audio.WithMuted(app.settings.Muted),
	)
	bank := playback.NewBank()
	return &deck{
		app:       app,
		mixer:     mixer,
		bank:      bank,
		scheduler: playback.New(mixer, bank, playback.WithLogger(app.log)),
		hits:      make(map[string]hitRenderer),
	}
}

// open は譜面と音声を読み込み、プレビューするSongを返す
// 再生中のセッションは止め、チップの割り当てを作り直す
func (d *deck) open(entry window.Entry) (*window.Song, error) {
	log := d.app.log
	f, level, err := entry.Set.LoadChart(entry.Level.Number, dtx.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}
	c := f.Chart(chart.WithLogger(log))

	d.stopPreview()
	d.scheduler.StopSession()
	d.bank.Reset()
	loaded, substituted, missing := loadSamples(log, entry.Set, f, c, d.mixer, d.bank, d.placeholder(entry.Set))
	log.Info("Chart loaded",
		"set", entry.Set.Name,
		"level", level.Label,
		"measures", c.MeasureCount(),
		"samples", loaded,
		"placeholders", substituted,
		"missing", missing)

	var preview image.Image
	if f.Preview != "" {
		img, err := window.LoadPreview(entry.Set.FS, f.Preview)
		if err != nil {
			log.Warn("Preview image skipped", "file", f.Preview, "error", err)
		} else {
			preview = img
		}
	}

	d.app.remember(entry.Set.Name, level.Number)

	title := f.Title
	if title == "" {
		title = entry.Set.DisplayName()
	}
	return &window.Song{
		Title:   title,
		Level:   level,
		BPM:     d.app.chartBPM(f.BPM),
		Start:   d.app.config.Start,
		Chart:   c,
		Preview: preview,
	}, nil
}

// close はプレビューの終了時に音を止めてチップの割り当てを外す
func (d *deck) close() error {
	d.stopPreview()
	d.scheduler.StopSession()
	d.mixer.StopAll()
	d.bank.Reset()
	return nil
}

// previewSound は選択画面でカーソルのある譜面の#PREVIEWを鳴らす
// 前に鳴らしていた音は止める
func (d *deck) previewSound(entry window.Entry) {
	d.previewMu.Lock()
	defer d.previewMu.Unlock()
	d.stopPreviewLocked()
	v, ok, err := playPreviewSound(d.app.log, d.mixer, entry)
	if err != nil {
		d.app.log.Warn("Preview sound skipped", "set", entry.Set.Name, "level", entry.Level.Label, "error", err)
		return
	}
	d.previewVoice, d.previewing = v, ok
}

func (d *deck) stopPreview() {
	d.previewMu.Lock()
	defer d.previewMu.Unlock()
	d.stopPreviewLocked()
}

func (d *deck) stopPreviewLocked() {
	if d.previewing {
		d.mixer.Stop(d.previewVoice)
		d.previewing = false
	}
}

// playPreviewSound は譜面の#PREVIEWを読み込んで鳴らす
// #PREVIEWがない譜面ではokがfalseになる
func playPreviewSound(log *slog.Logger, out playback.Output, entry window.Entry) (v playback.Voice, ok bool, err error) {
	f, _, err := entry.Set.LoadChart(entry.Level.Number, dtx.WithLogger(log))
	if err != nil {
		return 0, false, fmt.Errorf("failed to load chart: %w", err)
	}
	if f.PreviewSound == "" {
		return 0, false, nil
	}
	data, err := entry.Set.ReadFile(f.PreviewSound)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s: %w", f.PreviewSound, err)
	}
	s, err := out.Load(audio.SampleKey(entry.Set.Name, f.PreviewSound), data)
	if err != nil {
		return 0, false, err
	}
	v, err = out.Play(s, playback.PlayOptions{})
	if err != nil {
		return 0, false, err
	}
	log.Debug("Preview sound started", "set", entry.Set.Name, "file", f.PreviewSound)
	return v, true, nil
}

// placeholder はセットで使うプレースホルダ音源を返す（見つからなければnil）
func (d *deck) placeholder(set *library.Set) hitRenderer {
	if h, ok := d.hits[set.Name]; ok {
		return h
	}
	var h hitRenderer
	if loc := findSoundFont(d.app.embedFS, d.app.config.SoundFont, set); loc != nil {
		ph, err := audio.LoadPlaceholderFS(loc.FileSystem, loc.Path)
		if err != nil {
			d.app.log.Warn("SoundFont skipped", "path", loc.Path, "error", err)
		} else {
			d.app.log.Info("SoundFont loaded", "path", loc.Path, "embedded", loc.IsEmbedded)
			h = ph
		}
	}
	d.hits[set.Name] = h
	return h
}

// cleanup はctxが終わるまで再生の終わったボイスを定期的に解放する
func (d *deck) cleanup(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mixer.Update()
		}
	}
}

// loadSamples は#WAVのチップを読み込んでbankに割り当てる
//
// キーはセットごとに分けるので、別のセットの同名ファイルとは共有しない。
// 読めないチップは、プレースホルダ音源があれば最初に使われたレーンの音で代用する。
// どちらもない場合は割り当てず、再生時にMissingSampleとして記録される。
func loadSamples(log *slog.Logger, set *library.Set, f *dtx.File, c *chart.Chart, loader sampleLoader, bank *playback.Bank, hits hitRenderer) (loaded, substituted, missing int) {
	lanes := chipLanes(c)
	fallback := make(map[chart.LaneID]playback.Sample)

	for _, id := range f.ChipIDs() {
		chip := f.Chips[id]
		s, err := loadChip(set, chip, loader)
		if err == nil {
			if err := loader.SetSampleVolume(s, float64(chip.Volume)/dtx.DefaultVolume); err != nil {
				log.Warn("Chip volume ignored", "chip", id, "error", err)
			}
			bank.Bind(id, s)
			loaded++
			continue
		}

		lane, ok := lanes[id]
		if hits == nil || !ok {
			log.Warn("Sample unavailable", "chip", id, "file", chip.File, "error", err)
			missing++
			continue
		}
		s, ok = fallback[lane.ID]
		if !ok {
			pcm, rerr := hits.RenderLane(lane)
			if rerr == nil {
				s, rerr = loader.LoadPCM(audio.PlaceholderKey(set.Name, lane.ID), pcm)
			}
			if rerr != nil {
				log.Warn("Placeholder unavailable", "chip", id, "lane", lane.ID, "error", rerr)
				missing++
				continue
			}
			fallback[lane.ID] = s
		}
		log.Debug("Placeholder bound", "chip", id, "file", chip.File, "lane", lane.Name, "reason", err)
		bank.Bind(id, s)
		substituted++
	}
	return loaded, substituted, missing
}

func loadChip(set *library.Set, chip dtx.Chip, loader sampleLoader) (playback.Sample, error) {
	data, err := set.ReadFile(chip.File)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", chip.File, err)
	}
	return loader.Load(audio.SampleKey(set.Name, chip.File), data)
}

// chipLanes は各チップが最初に使われた打楽器レーンを返す
func chipLanes(c *chart.Chart) map[int]chart.Lane {
	tl := c.Timeline()
	out := make(map[int]chart.Lane)
	for _, lane := range chart.PlayableLanes() {
		for _, note := range c.NotesInLane(lane.ID) {
			events, err := note.Decode(tl)
			if err != nil {
				continue
			}
			for _, ev := range events {
				id, err := chart.ParseEventID(ev.ID)
				if err != nil {
					continue
				}
				if _, seen := out[id]; !seen {
					out[id] = lane
				}
			}
		}
	}
	return out
}

// runPlay はセットを選んでプレビューと再生を行う
func (app *Application) runPlay(ctx context.Context) error {
	if app.config.Headless {
		return app.runHeadlessPlay(ctx)
	}
	return app.runWindow(ctx)
}

// runWindow はGUIで選択画面またはプレビューを表示する
func (app *Application) runWindow(ctx context.Context) error {
	set, needsSelection, err := app.reg.Select()
	if err != nil {
		return fmt.Errorf("failed to select chart set: %w", err)
	}

	d := app.newDeck()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.cleanup(ctx)

	entries := window.Entries(app.reg.Available())
	game := window.NewGame(window.ModeSelection, entries, app.config.Timeout)
	game.SetPlayer(d.scheduler)
	game.SetMuter(d.mixer)
	game.SetSpeed(app.config.Speed)
	game.SetOnSelected(d.open)
	game.SetOnExit(d.close)
	game.SetOnHighlight(d.previewSound)

	if needsSelection {
		app.log.Info("Multiple chart sets available, showing selection screen", "count", len(entries))
		game.SetHasSelection(true)
		if len(entries) > 0 {
			d.previewSound(entries[0])
		}
	} else {
		level, err := set.Level(app.levelFor(set))
		if err != nil {
			return fmt.Errorf("failed to select level: %w", err)
		}
		song, err := d.open(window.Entry{Set: set, Level: level})
		if err != nil {
			return err
		}
		game.Open(song)
		game.SetHasSelection(len(entries) > 1)
	}

	return window.Run(game)
}

// runHeadlessPlay は画面を出さずに再生し、終わるかタイムアウトまで待つ
func (app *Application) runHeadlessPlay(ctx context.Context) error {
	entry, err := app.chooseEntry()
	if err != nil {
		if isCancelled(err) {
			app.log.Info("Selection cancelled")
			return nil
		}
		return fmt.Errorf("failed to select chart: %w", err)
	}

	d := app.newDeck()
	song, err := d.open(*entry)
	if err != nil {
		return err
	}
	defer d.close()

	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}
	go d.cleanup(ctx)

	return app.play(ctx, d.scheduler, song)
}

// player はヘッドレス再生で使う（playback.Schedulerが実装する）
type player interface {
	window.Player
	Session() (playback.SessionInfo, bool)
}

// play はセッションを開始し、最後のイベントが鳴り終わるかctxが終わるまで待つ
func (app *Application) play(ctx context.Context, p player, song *window.Song) error {
	if err := p.StartSession(song.Chart, song.Chart.Timeline(), song.BPM, song.Start); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}
	defer p.StopSession()

	if info, ok := p.Session(); ok {
		fmt.Fprintf(app.stdout, "Playing: %s [%s] from measure %d (%.1f BPM, %s)\n",
			song.Title, song.Level.Label, song.Start, song.BPM, info.Duration.Round(time.Millisecond))
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			app.log.Info("Playback interrupted", "reason", context.Cause(ctx))
			return nil
		case <-ticker.C:
			if p.Finished() {
				app.log.Info("Playback finished")
				return nil
			}
		}
	}
}
