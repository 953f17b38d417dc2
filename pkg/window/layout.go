package window

import (
	"math"

	"github.com/zurustar/dtxview/pkg/chart"
)

// グリッドの寸法（ピクセル）
const (
	CellsPerMeasure = 16 // 長さ1.0の小節のセル数
	BaseCellHeight  = 25 // スクロール速度1のセルの高さ
	CellWidth       = 50
	BottomMargin    = 40 // 判定ラインから画面下端まで
	CellMargin      = 2
	NoteSize        = 25

	ScreenWidth  = 1024
	ScreenHeight = 768
)

// Rect は画面上の矩形
type Rect struct {
	X, Y, W, H float64
}

// Layout はタイムライン上の位置と画面座標を相互に変換する
//
// scrollは判定ラインが譜面の先頭から何ピクセル進んだかを表す。
// 位置の計算はすべてTimeline.Cumulativeを経由し、独自の小節長の計算は持たない。
type Layout struct {
	timeline *chart.Timeline
	lanes    []chart.Lane
	speed    float64
	width    float64
	height   float64
}

// NewLayout はLayoutを作成する
// speedはセルの高さの倍率（0以下は1として扱う）
func NewLayout(tl *chart.Timeline, speed float64) *Layout {
	if speed <= 0 {
		speed = 1
	}
	return &Layout{
		timeline: tl,
		lanes:    chart.Lanes(),
		speed:    speed,
		width:    ScreenWidth,
		height:   ScreenHeight,
	}
}

// Lanes は描画するレーンを表示順で返す
func (l *Layout) Lanes() []chart.Lane {
	return l.lanes
}

// Timeline はレイアウトの元になっているタイムラインを返す
func (l *Layout) Timeline() *chart.Timeline {
	return l.timeline
}

// CellHeight はセル1つの高さを返す
func (l *Layout) CellHeight() float64 {
	return BaseCellHeight * l.speed
}

// PixelsPerUnit は長さ1.0の小節の高さを返す
func (l *Layout) PixelsPerUnit() float64 {
	return CellsPerMeasure * l.CellHeight()
}

// TotalWidth はグリッド全体の幅を返す
func (l *Layout) TotalWidth() float64 {
	return float64(len(l.lanes) * CellWidth)
}

// OffsetX はグリッドの左端（中央寄せ）を返す
func (l *Layout) OffsetX() float64 {
	return (l.width - l.TotalWidth()) / 2
}

// JudgeY は判定ラインのy座標を返す
func (l *Layout) JudgeY() float64 {
	return l.height - BottomMargin
}

// PositionY は絶対位置abs（小節単位）の画面上のy座標を返す
func (l *Layout) PositionY(abs, scroll float64) float64 {
	return l.JudgeY() - (abs*l.PixelsPerUnit() - scroll)
}

// MeasureY は小節mの開始線のy座標を返す
func (l *Layout) MeasureY(m int, scroll float64) float64 {
	return l.PositionY(l.timeline.Cumulative(m), scroll)
}

// LaneX はレーンindexの左端を返す
func (l *Layout) LaneX(index int) float64 {
	return l.OffsetX() + float64(index*CellWidth)
}

// NoteRect はレーンindexの絶対位置absにあるノートの矩形を返す
func (l *Layout) NoteRect(index int, abs, scroll float64) Rect {
	return Rect{
		X: l.LaneX(index) + CellMargin,
		Y: l.PositionY(abs, scroll) + CellMargin - NoteSize,
		W: CellWidth - CellMargin*2,
		H: NoteSize - CellMargin*2,
	}
}

// ScrollForMeasure は小節mの開始線を判定ラインに合わせるscrollを返す
func (l *Layout) ScrollForMeasure(m int) float64 {
	return l.timeline.Offset(m, l.PixelsPerUnit())
}

// MaxScroll は最後の小節の終わりが判定ラインに来るscrollを返す
func (l *Layout) MaxScroll() float64 {
	return l.ScrollForMeasure(l.timeline.MeasureCount())
}

// MeasureAt はscrollの位置で判定ラインが乗っている小節を返す
func (l *Layout) MeasureAt(scroll float64) int {
	m, _ := l.timeline.Locate(scroll / l.PixelsPerUnit())
	return m
}

// CellSlots は長さlengthの小節のセル数を返す（端数は1セルに切り上げる）
func CellSlots(length float64) int {
	return max(1, int(math.Ceil(length*CellsPerMeasure-1e-9)))
}

// Cell はポインタが指すグリッド上の位置
type Cell struct {
	Lane    chart.Lane
	Measure int
	Index   int // 小節内のセル番号（下から0始まり）
}

// HitTest は画面座標をレーン、小節、セルに変換する
// グリッドの外、または譜面の先頭より手前の場合はokがfalseになる
func (l *Layout) HitTest(x, y, scroll float64) (Cell, bool) {
	dx := x - l.OffsetX()
	if dx < 0 || dx >= l.TotalWidth() {
		return Cell{}, false
	}
	abs := (l.JudgeY() - y + scroll) / l.PixelsPerUnit()
	if abs < 0 {
		return Cell{}, false
	}
	m, fraction := l.timeline.Locate(abs)
	if m >= l.timeline.MeasureCount() {
		return Cell{}, false
	}
	cells := l.timeline.MeasureLength(m) * CellsPerMeasure
	index := int(math.Floor(fraction * cells))
	return Cell{
		Lane:    l.lanes[int(dx)/CellWidth],
		Measure: m,
		Index:   index,
	}, true
}
