package window

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/zurustar/dtxview/pkg/chart"
	"github.com/zurustar/dtxview/pkg/dtx"
	"github.com/zurustar/dtxview/pkg/library"
	"github.com/zurustar/dtxview/pkg/logger"
	"golang.org/x/image/font/basicfont"
)

var (
	// 背景色 #0087C8
	backgroundColor = color.RGBA{0x00, 0x87, 0xC8, 0xFF}
	// プレビュー画面の背景色
	gridBackgroundColor = color.RGBA{0x10, 0x10, 0x18, 0xFF}
	// テキスト色（白）
	textColor = color.White
	// 選択中のテキスト色（黄色）
	selectedTextColor = color.RGBA{0xFF, 0xFF, 0x00, 0xFF}
	// グリッドの線
	measureLineColor = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	beatLineColor    = color.RGBA{0x88, 0x88, 0x88, 0x80}
	cellLineColor    = color.RGBA{0x88, 0x88, 0x88, 0x40}
	judgeLineColor   = color.RGBA{0xFF, 0x40, 0x40, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

const (
	// RestartDelay はスクロール操作が止んでから再生をやり直すまでの時間
	RestartDelay = 250 * time.Millisecond
	// WheelStep はホイール1段あたりのスクロール量（ピクセル）
	WheelStep = 40
	// KeyStep は矢印キーを押している間の1フレームあたりのスクロール量（ピクセル）
	KeyStep = 8
)

// Mode はウィンドウの表示モードを表す
type Mode int

const (
	ModeSelection Mode = iota // セットとレベルの選択画面
	ModePreview               // 譜面のプレビュー
)

// Entry は選択画面の1行（セットとそのレベル）
type Entry struct {
	Set   *library.Set
	Level dtx.Level
}

// Name は選択画面に表示する名前を返す
func (e Entry) Name() string {
	return fmt.Sprintf("%s [%s]", e.Set.DisplayName(), e.Level.Label)
}

// Entries はセット一覧をレベルごとの行に展開する
func Entries(sets []*library.Set) []Entry {
	var entries []Entry
	for _, set := range sets {
		for _, n := range set.Numbers() {
			entries = append(entries, Entry{Set: set, Level: set.Levels[n]})
		}
	}
	return entries
}

// Song はプレビューする譜面
type Song struct {
	Title   string
	Level   dtx.Level
	BPM     float64
	Start   int // 最初に表示する小節
	Chart   *chart.Chart
	Preview image.Image // #PREIMAGE（なければnil）
}

// Player は再生を制御する（playback.Schedulerが実装する）
type Player interface {
	StartSession(c *chart.Chart, tl *chart.Timeline, bpm float64, startMeasure int) error
	StopSession()
	Playhead() (float64, bool)
	Finished() bool
}

// Muter はミュートを切り替える（audio.Mixerが実装する）
type Muter interface {
	SetMuted(muted bool)
	IsMuted() bool
}

// input は1フレーム分の入力
type input struct {
	up, down    bool // 選択画面のカーソル移動
	enter       bool
	escape      bool
	space       bool
	mute        bool
	scroll      float64 // スクロール量（ピクセル、正で先に進む）
	measureStep int     // PageUp/PageDownによる小節移動
	cursorX     int
	cursorY     int
	edit        bool // Qで編集モードを切り替える
	click       bool // 左クリック（編集モードでノートを置く）
}

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	mode          Mode          // 現在のモード
	entries       []Entry       // 選択可能なセットとレベル
	selectedIndex int           // 選択中の行
	selected      *Entry        // 選択された行
	timeout       time.Duration // タイムアウト時間
	startTime     time.Time     // 開始時刻
	speed         float64       // スクロール速度

	player Player
	muter  Muter

	// プレビュー
	song    *Song
	layout  *Layout
	scroll  float64
	playing bool
	seeking bool // 再生中にスクロールされ、再開待ちの状態
	pointer Cell
	hasCell bool
	editing bool // 編集モード（停止中だけ入れる）
	preview *ebiten.Image

	debounced func(func())

	// 選択画面 -> プレビュー遷移時のコールバック
	onSelected      func(entry Entry) (*Song, error)
	onHighlight     func(entry Entry) // カーソルが止まった行（#PREVIEWの試聴に使う）
	transitionError error             // モード遷移時のエラー

	hasSelection bool         // 選択画面があるかどうか（複数行のときtrue）
	onExit       func() error // プレビュー終了時のコールバック

	mu sync.RWMutex
}

// NewGame Gameを作成
func NewGame(mode Mode, entries []Entry, timeout time.Duration) *Game {
	return &Game{
		mode:          mode,
		entries:       entries,
		selectedIndex: 0,
		timeout:       timeout,
		startTime:     time.Now(),
		speed:         1,
		debounced:     debounce.New(RestartDelay),
	}
}

// SetPlayer は再生を制御するPlayerを設定する
func (g *Game) SetPlayer(p Player) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.player = p
}

// SetMuter はMキーで切り替えるミュート対象を設定する
func (g *Game) SetMuter(m Muter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.muter = m
}

// SetSpeed はスクロール速度の倍率を設定する
func (g *Game) SetSpeed(speed float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if speed > 0 {
		g.speed = speed
	}
}

// SetOnSelected は行が選択されたときのコールバックを設定する
// コールバックは譜面と音声を読み込み、プレビューするSongを返す
func (g *Game) SetOnSelected(callback func(entry Entry) (*Song, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onSelected = callback
}

// SetOnHighlight は選択画面でカーソルが止まったときのコールバックを設定する
// 操作が止んでからRestartDelay後、選択画面にいる場合だけ呼ばれる
func (g *Game) SetOnHighlight(callback func(entry Entry)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onHighlight = callback
}

// SetHasSelection は選択画面があるかどうかを設定する
// trueの場合、プレビューでEscを押すと選択画面に戻る
// falseの場合、プレビューでEscを押すとプログラムを終了する
func (g *Game) SetHasSelection(has bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasSelection = has
}

// SetOnExit はプレビューを終了するときのコールバックを設定する
// サンプルの解放などに使う
func (g *Game) SetOnExit(callback func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExit = callback
}

// GetTransitionError returns any error that occurred during mode transition
func (g *Game) GetTransitionError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.transitionError
}

// Open はSongをプレビューモードで開く
func (g *Game) Open(song *Song) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.song = song
	g.layout = NewLayout(song.Chart.Timeline(), g.speed)
	g.scroll = g.layout.ScrollForMeasure(song.Start)
	g.playing = false
	g.seeking = false
	g.editing = false
	g.preview = nil
	g.mode = ModePreview
	g.startTime = time.Now()
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	// タイムアウトチェック
	if g.timeout > 0 && time.Since(g.startTime) >= g.timeout {
		g.stopPlayback()
		return ebiten.Termination
	}

	in := readInput()
	switch g.mode {
	case ModeSelection:
		return g.updateSelection(in)
	case ModePreview:
		return g.updatePreview(in)
	}

	return nil
}

// readInput はEbitengineから入力を読み取る
func readInput() input {
	in := input{
		up:     inpututil.IsKeyJustPressed(ebiten.KeyUp),
		down:   inpututil.IsKeyJustPressed(ebiten.KeyDown),
		enter:  inpututil.IsKeyJustPressed(ebiten.KeyEnter),
		escape: inpututil.IsKeyJustPressed(ebiten.KeyEscape),
		space:  inpututil.IsKeyJustPressed(ebiten.KeySpace),
		mute:   inpututil.IsKeyJustPressed(ebiten.KeyM),
		edit:   inpututil.IsKeyJustPressed(ebiten.KeyQ),
		click:  inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
	}
	_, wheel := ebiten.Wheel()
	in.scroll = wheel * WheelStep
	if ebiten.IsKeyPressed(ebiten.KeyUp) {
		in.scroll += KeyStep
	}
	if ebiten.IsKeyPressed(ebiten.KeyDown) {
		in.scroll -= KeyStep
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyPageUp) {
		in.measureStep++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyPageDown) {
		in.measureStep--
	}
	in.cursorX, in.cursorY = ebiten.CursorPosition()
	return in
}

// updateSelection 選択画面の更新
func (g *Game) updateSelection(in input) error {
	prev := g.selectedIndex
	if in.up && g.selectedIndex > 0 {
		g.selectedIndex--
	}
	if in.down && g.selectedIndex < len(g.entries)-1 {
		g.selectedIndex++
	}
	if g.selectedIndex != prev {
		g.highlight()
	}

	if in.enter && len(g.entries) > 0 {
		g.selected = &g.entries[g.selectedIndex]

		g.mu.RLock()
		callback := g.onSelected
		g.mu.RUnlock()

		// コールバックがない場合は終了（選択だけを行う）
		if callback == nil {
			return ebiten.Termination
		}

		song, err := callback(*g.selected)
		if err != nil {
			g.mu.Lock()
			g.transitionError = err
			g.mu.Unlock()
			return ebiten.Termination
		}
		g.Open(song)
		return nil
	}

	if in.escape {
		return ebiten.Termination
	}
	return nil
}

// highlight はカーソルのある行をonHighlightに知らせる
func (g *Game) highlight() {
	g.mu.RLock()
	callback := g.onHighlight
	g.mu.RUnlock()
	if callback == nil || len(g.entries) == 0 {
		return
	}
	entry := g.entries[g.selectedIndex]
	g.debounced(func() {
		g.mu.RLock()
		mode := g.mode
		g.mu.RUnlock()
		if mode == ModeSelection {
			callback(entry)
		}
	})
}

// updatePreview プレビューの更新
func (g *Game) updatePreview(in input) error {
	if in.escape {
		// 1回目のEscで再生を止め、2回目で抜ける
		if g.isPlaying() {
			g.stopPlayback()
			return nil
		}
		g.mu.RLock()
		hasSelection := g.hasSelection
		g.mu.RUnlock()
		if hasSelection {
			return g.returnToSelection()
		}
		g.runExit()
		return ebiten.Termination
	}

	if in.mute {
		g.mu.RLock()
		muter := g.muter
		g.mu.RUnlock()
		if muter != nil {
			muter.SetMuted(!muter.IsMuted())
		}
	}

	if in.edit {
		g.toggleEdit()
	}

	if in.space {
		if g.isPlaying() {
			g.stopPlayback()
		} else {
			g.startAtScroll()
		}
	}

	if in.measureStep != 0 {
		g.jumpMeasures(in.measureStep)
	}

	if in.scroll != 0 {
		g.scrollBy(in.scroll)
	}

	g.followPlayhead()
	g.updatePointer(in.cursorX, in.cursorY)
	if in.click {
		g.placeNote()
	}
	return nil
}

// toggleEdit は編集モードを切り替える
// 再生中は入れない（スクロールが再生位置に追従しているため）
func (g *Game) toggleEdit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.playing && !g.editing {
		return
	}
	g.editing = !g.editing
}

// placeNote は編集モードでポインタが指すセルにノートを置く
// 置いたあとはタイムラインとレイアウトを作り直す
func (g *Game) placeNote() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.editing || !g.hasCell || g.song == nil || g.layout == nil {
		return
	}
	cell := g.pointer
	c := g.song.Chart
	slots := CellSlots(g.layout.Timeline().MeasureLength(cell.Measure))
	pattern, err := chart.CellPattern(editChip(c, cell.Lane.ID), min(cell.Index, slots-1), slots)
	if err == nil {
		err = c.Add(chart.Note{Measure: cell.Measure, Lane: cell.Lane.ID, Pattern: pattern})
	}
	if err != nil {
		logger.GetLogger().Warn("Failed to place note", "lane", cell.Lane.ID, "measure", cell.Measure, "cell", cell.Index, "error", err)
		return
	}
	g.layout = NewLayout(c.Timeline(), g.speed)
	logger.GetLogger().Debug("Note placed", "lane", cell.Lane.ID, "measure", cell.Measure, "pattern", pattern)
}

// editChip は編集で置くチップ番号を返す（レーンで最初に使われているもの、なければ01）
func editChip(c *chart.Chart, lane chart.LaneID) string {
	for _, note := range c.NotesInLane(lane) {
		for i := 0; i+2 <= len(note.Pattern); i += 2 {
			if id := note.Pattern[i : i+2]; id != chart.EmptyToken {
				return id
			}
		}
	}
	return "01"
}

func (g *Game) isPlaying() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.playing
}

// startAtScroll は判定ラインが乗っている小節から再生を始める
func (g *Game) startAtScroll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.layout == nil {
		return
	}
	g.startLocked(g.layout.MeasureAt(g.scroll))
}

// startLocked はg.muを保持した状態で呼び出す
func (g *Game) startLocked(measure int) {
	if g.player == nil || g.song == nil {
		return
	}
	tl := g.layout.Timeline()
	if err := g.player.StartSession(g.song.Chart, tl, g.song.BPM, measure); err != nil {
		// 拒否された場合、前のセッションはそのまま続くので再生状態も変えない
		logger.GetLogger().Warn("Failed to start session", "measure", measure, "error", err)
		g.seeking = false
		return
	}
	g.scroll = g.layout.ScrollForMeasure(measure)
	g.playing = true
	g.seeking = false
	g.editing = false
}

// stopPlayback は再生を止める（スクロール位置はそのまま）
func (g *Game) stopPlayback() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
}

func (g *Game) stopLocked() {
	if g.player != nil {
		g.player.StopSession()
	}
	g.playing = false
	g.seeking = false
}

// jumpMeasures はsteps小節分移動する。再生中はその小節から再生し直す
func (g *Game) jumpMeasures(steps int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.layout == nil {
		return
	}
	m := g.layout.MeasureAt(g.scroll) + steps
	m = max(0, min(m, g.layout.Timeline().MeasureCount()-1))
	if g.playing {
		g.startLocked(m)
		return
	}
	g.scroll = g.layout.ScrollForMeasure(m)
}

// scrollBy はスクロール位置を動かす
// 再生中の場合、操作が止んでからRestartDelay後にその位置から再生し直す
func (g *Game) scrollBy(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.layout == nil {
		return
	}
	g.scroll = math.Max(0, math.Min(g.scroll+delta, g.layout.MaxScroll()))
	if !g.playing {
		return
	}
	g.seeking = true
	g.debounced(g.restart)
}

// restart はデバウンス後に呼ばれる（別のゴルーチンから呼ばれることがある）
func (g *Game) restart() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.playing || !g.seeking || g.layout == nil {
		return
	}
	g.startLocked(g.layout.MeasureAt(g.scroll))
}

// followPlayhead は再生中のスクロール位置を再生位置に合わせる
func (g *Game) followPlayhead() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.playing || g.seeking || g.player == nil {
		return
	}
	if g.player.Finished() {
		g.stopLocked()
		return
	}
	if pos, ok := g.player.Playhead(); ok {
		g.scroll = pos * g.layout.PixelsPerUnit()
	}
}

// updatePointer はポインタが指すセルを更新する
func (g *Game) updatePointer(x, y int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.layout == nil {
		g.hasCell = false
		return
	}
	g.pointer, g.hasCell = g.layout.HitTest(float64(x), float64(y), g.scroll)
}

// runExit は終了コールバックを呼び出す
func (g *Game) runExit() {
	g.mu.RLock()
	onExit := g.onExit
	g.mu.RUnlock()
	if onExit != nil {
		if err := onExit(); err != nil {
			logger.GetLogger().Error("onExit callback failed", "error", err)
		}
	}
}

// returnToSelection はプレビューから選択画面に戻る
func (g *Game) returnToSelection() error {
	g.stopPlayback()
	g.runExit()

	g.mu.Lock()
	g.mode = ModeSelection
	g.song = nil
	g.layout = nil
	g.scroll = 0
	g.hasCell = false
	g.preview = nil
	g.mu.Unlock()

	g.highlight()
	return nil
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	switch g.mode {
	case ModeSelection:
		screen.Fill(backgroundColor)
		g.drawSelection(screen)
	case ModePreview:
		screen.Fill(gridBackgroundColor)
		g.drawPreview(screen)
	}
}

// drawSelection 選択画面の描画
func (g *Game) drawSelection(screen *ebiten.Image) {
	drawText(screen, "Select a chart", 50, 50, textColor)

	for i, e := range g.entries {
		y := 120 + float64(i*40)

		// 選択中の行は色を変える
		prefix := "  "
		clr := color.Color(textColor)
		if i == g.selectedIndex {
			prefix = "> "
			clr = selectedTextColor
		}
		drawText(screen, prefix+e.Name(), 70, y, clr)
	}

	drawText(screen, "Use UP/DOWN to select, ENTER to confirm, ESC to exit", 50, 650, textColor)
}

// drawPreview 譜面グリッドとノートの描画
func (g *Game) drawPreview(screen *ebiten.Image) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.layout == nil || g.song == nil {
		return
	}
	l := g.layout
	tl := l.Timeline()
	left := float32(l.OffsetX())
	right := float32(l.OffsetX() + l.TotalWidth())

	// 小節線とセル線
	for m := 0; m <= tl.MeasureCount(); m++ {
		y := l.MeasureY(m, g.scroll)
		if y < -l.PixelsPerUnit()*4 {
			break
		}
		vector.StrokeLine(screen, left, float32(y), right, float32(y), 3, measureLineColor, false)
		if m == tl.MeasureCount() {
			break
		}
		cells := CellSlots(tl.MeasureLength(m))
		for i := 1; i < cells; i++ {
			cy := float32(y - float64(i)*l.CellHeight())
			clr := cellLineColor
			if i%4 == 0 {
				clr = beatLineColor
			}
			vector.StrokeLine(screen, left, cy, right, cy, 1, clr, false)
		}
		drawText(screen, strconv.Itoa(m), float64(right)+8, y-14, textColor)
	}

	// レーンの縦線と名前
	for i, lane := range l.Lanes() {
		x := float32(l.LaneX(i))
		vector.StrokeLine(screen, x, 0, x, float32(l.JudgeY()), 1, beatLineColor, false)
		drawText(screen, lane.Name, float64(x)+4, l.JudgeY()+14, textColor)
	}
	vector.StrokeLine(screen, right, 0, right, float32(l.JudgeY()), 1, beatLineColor, false)

	// ノート
	for i, lane := range l.Lanes() {
		for _, note := range g.song.Chart.NotesInLane(lane.ID) {
			events, err := note.Decode(tl)
			if err != nil {
				continue
			}
			for _, ev := range events {
				r := l.NoteRect(i, tl.Position(note.Measure, ev), g.scroll)
				if r.Y > ScreenHeight || r.Y+r.H < 0 {
					continue
				}
				vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), lane.Color, false)
				drawText(screen, ev.ID, r.X+r.W/2-7, r.Y+r.H/2-6, textColor)
			}
		}
	}

	// 編集モードでポインタが指すセル
	if g.editing && g.hasCell {
		for i, lane := range l.Lanes() {
			if lane.ID != g.pointer.Lane.ID {
				continue
			}
			abs := tl.Cumulative(g.pointer.Measure) + float64(g.pointer.Index)/CellsPerMeasure
			r := l.NoteRect(i, abs, g.scroll)
			vector.StrokeRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), 2, selectedTextColor, false)
		}
	}

	// 判定ライン
	jy := float32(l.JudgeY())
	vector.StrokeLine(screen, left, jy, right, jy, 2, judgeLineColor, false)

	g.drawPreviewImage(screen)
	g.drawStatus(screen)
}

// drawPreviewImage は#PREIMAGEを右上に描画する
func (g *Game) drawPreviewImage(screen *ebiten.Image) {
	if g.song.Preview == nil {
		return
	}
	if g.preview == nil {
		g.preview = ebiten.NewImageFromImage(g.song.Preview)
	}
	b := g.preview.Bounds()
	scale := math.Min(1, 160/float64(max(b.Dx(), b.Dy())))
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(ScreenWidth-10-float64(b.Dx())*scale, 10)
	screen.DrawImage(g.preview, op)
}

// drawStatus はタイトル、小節、ポインタの位置を表示する
func (g *Game) drawStatus(screen *ebiten.Image) {
	state := "STOP"
	switch {
	case g.playing:
		state = "PLAY"
	case g.editing:
		state = "EDIT"
	}
	m := g.layout.MeasureAt(g.scroll)
	drawText(screen, fmt.Sprintf("%s [%s]  %.1f BPM", g.song.Title, g.song.Level.Label, g.song.BPM), 10, 10, textColor)
	drawText(screen, fmt.Sprintf("%s  measure %03d", state, m), 10, 28, textColor)
	if g.hasCell {
		drawText(screen, fmt.Sprintf("%s  measure %03d  cell %d", g.pointer.Lane.Name, g.pointer.Measure, g.pointer.Index), 10, 46, selectedTextColor)
	}
	drawText(screen, "SPACE play/stop, WHEEL scroll, PGUP/PGDN measure, Q edit, CLICK place, M mute, ESC back", 10, ScreenHeight-14, textColor)
}

func drawText(screen *ebiten.Image, s string, x, y float64, clr color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, s, defaultFace, op)
}

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

// GetSelected 選択された行を取得
func (g *Game) GetSelected() *Entry {
	return g.selected
}

// ErrCancelled はヘッドレス選択がユーザーにより中断された場合のエラー
var ErrCancelled = errors.New("user cancelled")

// ErrTimeout はヘッドレス選択がタイムアウトした場合のエラー
var ErrTimeout = errors.New("timeout")

// RunHeadless ヘッドレスモードでセットとレベルの選択を実行
func RunHeadless(entries []Entry, timeout time.Duration, reader io.Reader, writer io.Writer) (*Entry, error) {
	if len(entries) == 0 {
		return nil, library.ErrNoSets
	}

	// 1行だけの場合は自動選択
	if len(entries) == 1 {
		fmt.Fprintf(writer, "Auto-selecting chart: %s\n", entries[0].Name())
		return &entries[0], nil
	}

	// タイムアウト処理用のコンテキスト
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 一覧を表示
	fmt.Fprintln(writer, "Available charts:")
	for i, e := range entries {
		fmt.Fprintf(writer, "  %d: %s\n", i+1, e.Name())
	}
	fmt.Fprintln(writer)

	// 選択を受け付ける
	scanner := bufio.NewScanner(reader)
	resultCh := make(chan *Entry, 1)
	errCh := make(chan error, 1)

	go func() {
		for {
			fmt.Fprint(writer, "Select a chart (1-", len(entries), ") or 'q' to quit: ")
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					errCh <- fmt.Errorf("failed to read input: %w", err)
				} else {
					errCh <- fmt.Errorf("input closed")
				}
				return
			}

			input := strings.TrimSpace(scanner.Text())

			// 終了コマンド
			if input == "q" || input == "Q" {
				errCh <- ErrCancelled
				return
			}

			num, err := strconv.Atoi(input)
			if err != nil {
				fmt.Fprintln(writer, "Invalid input. Please enter a number.")
				continue
			}

			// 範囲チェック
			if num < 1 || num > len(entries) {
				fmt.Fprintf(writer, "Invalid selection. Please enter a number between 1 and %d.\n", len(entries))
				continue
			}

			selected := &entries[num-1]
			fmt.Fprintf(writer, "Selected: %s\n", selected.Name())
			resultCh <- selected
			return
		}
	}()

	// タイムアウトまたは選択完了を待つ
	select {
	case <-ctx.Done():
		return nil, ErrTimeout
	case err := <-errCh:
		return nil, err
	case selected := <-resultCh:
		return selected, nil
	}
}

// Run GUIモードでウィンドウを実行
func Run(game *Game) error {
	ebiten.SetWindowSize(ScreenWidth, ScreenHeight)
	ebiten.SetWindowTitle("dtxview")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	err := ebiten.RunGame(game)
	game.stopPlayback()
	if err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return game.GetTransitionError()
}
