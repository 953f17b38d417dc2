// Package library は譜面セット（.def + .dtx + 音源）の一覧と選択を管理する
package library

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zurustar/dtxview/pkg/dtx"
	"github.com/zurustar/dtxview/pkg/fileutil"
)

// EmbeddedRoot は埋め込みFS内の譜面セットのディレクトリ
const EmbeddedRoot = "charts"

var (
	// ErrNoSets は利用可能な譜面セットがない場合のエラー
	ErrNoSets = errors.New("no chart sets available")
	// ErrSetNotFound は指定した譜面セットが見つからない場合のエラー
	ErrSetNotFound = errors.New("chart set not found")
	// ErrLevelNotFound は指定したレベルがセットにない場合のエラー
	ErrLevelNotFound = errors.New("level not found")
	// ErrUnsupportedPath はディレクトリ、.zip、.dtx以外のパスが指定された場合のエラー
	ErrUnsupportedPath = errors.New("unsupported chart path")
)

// Set は譜面セットを表す
type Set struct {
	Name       string              // セット名（ディレクトリ名またはアーカイブ名）
	Title      string              // .defの#TITLE
	Levels     map[int]dtx.Level   // レベル番号 -> レベル
	FS         fileutil.FileSystem // セット内のファイルへのアクセス
	IsEmbedded bool                // embedされたセットかどうか
}

// DisplayName はセットの表示名を返す
// #TITLEがあればそれを、なければディレクトリ名を返す
func (s *Set) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// Numbers はレベル番号を昇順で返す
func (s *Set) Numbers() []int {
	return slices.Sorted(maps.Keys(s.Levels))
}

// Level はレベルを返す。n == 0 の場合は最も低いレベルを返す
func (s *Set) Level(n int) (dtx.Level, error) {
	if n == 0 {
		numbers := s.Numbers()
		if len(numbers) == 0 {
			return dtx.Level{}, fmt.Errorf("%w: set %s has no levels", ErrLevelNotFound, s.Name)
		}
		n = numbers[0]
	}
	level, ok := s.Levels[n]
	if !ok {
		return dtx.Level{}, fmt.Errorf("%w: level %d in set %s", ErrLevelNotFound, n, s.Name)
	}
	return level, nil
}

// LoadChart はレベルnの譜面ファイルを読み込んでパースする
func (s *Set) LoadChart(n int, opts ...dtx.Option) (*dtx.File, dtx.Level, error) {
	level, err := s.Level(n)
	if err != nil {
		return nil, dtx.Level{}, err
	}
	data, err := s.FS.ReadFile(level.File)
	if err != nil {
		return nil, level, fmt.Errorf("failed to read chart %s: %w", level.File, err)
	}
	f, err := dtx.ParseBytes(data, opts...)
	if err != nil {
		return nil, level, fmt.Errorf("failed to parse chart %s: %w", level.File, err)
	}
	return f, level, nil
}

// ReadFile はセット内のファイルを大文字小文字を無視して読み込む
func (s *Set) ReadFile(name string) ([]byte, error) {
	return s.FS.ReadFile(name)
}

// Registry は譜面セットの管理を行う
type Registry struct {
	embedded []*Set      // embedされたセット一覧
	external []*Set      // 外部から指定されたセット一覧
	closers  []io.Closer // 開いたzipアーカイブ
	log      *slog.Logger
}

// Option はRegistryの設定
type Option func(*Registry)

// WithLogger はロガーを設定する
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry はRegistryを作成し、embedFSのcharts/以下のセットを検出する
func NewRegistry(embedFS fs.FS, opts ...Option) *Registry {
	r := &Registry{log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	if embedFS != nil {
		root := fileutil.NewPackFS(embedFS, EmbeddedRoot)
		r.embedded = r.scan(root, true)
	}
	return r
}

// LoadExternal は外部のパスから譜面セットを読み込む
//
// 受け付けるパス:
//  1. .defまたは.dtxを含むディレクトリ（単一のセット）
//  2. セットのディレクトリや.zipを並べたディレクトリ
//  3. .zipアーカイブ
//  4. 単独の.dtxファイル（1レベルのセット）
func (r *Registry) LoadExternal(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("chart path does not exist: %s", path)
		}
		return fmt.Errorf("failed to access chart path: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	var sets []*Set
	switch {
	case info.IsDir():
		dir := fileutil.NewRealFS(absPath)
		if isSetDir(dir) {
			set, err := loadSet(dir, filepath.Base(absPath), false)
			if err != nil {
				return err
			}
			sets = append(sets, set)
		} else {
			sets = r.scan(dir, false)
		}
	case strings.EqualFold(filepath.Ext(absPath), ".zip"):
		sets, err = r.loadZip(absPath)
		if err != nil {
			return err
		}
	case dtx.IsChartFile(absPath):
		set, err := loadSingleChart(absPath)
		if err != nil {
			return err
		}
		sets = append(sets, set)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPath, path)
	}

	if len(sets) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSets, path)
	}
	r.external = sets
	r.log.Info("Chart sets loaded", "path", absPath, "sets", len(sets))
	return nil
}

// scan はルート直下のディレクトリと.zipをそれぞれセットとして読み込む
// 読み込めないものは警告を出してスキップする
func (r *Registry) scan(root fileutil.FileSystem, embedded bool) []*Set {
	entries, err := root.ReadDir(".")
	if err != nil {
		// ディレクトリが存在しない、または読み込めない場合は何もしない
		return nil
	}

	var sets []*Set
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			set, err := loadSet(root.Sub(name), name, embedded)
			if err != nil {
				r.log.Warn("Chart set skipped", "set", name, "error", err)
				continue
			}
			sets = append(sets, set)
			continue
		}
		if !root.IsPacked() && strings.EqualFold(filepath.Ext(name), ".zip") {
			zipped, err := r.loadZip(filepath.Join(root.BasePath(), name))
			if err != nil {
				r.log.Warn("Chart archive skipped", "archive", name, "error", err)
				continue
			}
			sets = append(sets, zipped...)
		}
	}
	return sets
}

// loadZip はzipアーカイブ内のセットを読み込む
// アーカイブ直下に.defがあればアーカイブ全体を1セットとする
func (r *Registry) loadZip(path string) ([]*Set, error) {
	archive, closer, err := fileutil.OpenZip(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var sets []*Set
	if isSetDir(archive) {
		set, err := loadSet(archive, name, false)
		if err != nil {
			closer.Close()
			return nil, err
		}
		sets = append(sets, set)
	} else {
		sets = r.scan(archive, false)
	}
	if len(sets) == 0 {
		closer.Close()
		return nil, fmt.Errorf("%w: %s", dtx.ErrNoDef, path)
	}
	r.closers = append(r.closers, closer)
	return sets, nil
}

// isSetDir はディレクトリ直下に.defまたは.dtxがあるかを返す
func isSetDir(dir fileutil.FileSystem) bool {
	for _, ext := range []string{".def", ".dtx"} {
		if names, err := fileutil.FindByExt(dir, ".", ext); err == nil && len(names) > 0 {
			return true
		}
	}
	return false
}

// loadSet はディレクトリからセットを読み込む
// .defがあればそのレベル定義を使い、なければ.dtxファイルを順にレベル1から割り当てる
func loadSet(dir fileutil.FileSystem, name string, embedded bool) (*Set, error) {
	set := &Set{
		Name:       name,
		Levels:     make(map[int]dtx.Level),
		FS:         dir,
		IsEmbedded: embedded,
	}

	defs, err := fileutil.FindByExt(dir, ".", ".def")
	if err != nil {
		return nil, fmt.Errorf("failed to read set directory %s: %w", name, err)
	}
	if len(defs) > 0 {
		slices.Sort(defs)
		data, err := dir.ReadFile(defs[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", defs[0], err)
		}
		def, err := dtx.ParseDef(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		set.Title = def.Title
		set.Levels = def.Levels
		if len(set.Levels) == 0 {
			return nil, fmt.Errorf("%w: %s declares no levels", ErrLevelNotFound, defs[0])
		}
		return set, nil
	}

	charts, err := fileutil.FindByExt(dir, ".", ".dtx")
	if err != nil {
		return nil, fmt.Errorf("failed to read set directory %s: %w", name, err)
	}
	if len(charts) == 0 {
		return nil, fmt.Errorf("%w in %s", dtx.ErrNoDef, name)
	}
	slices.Sort(charts)
	for i, file := range charts {
		if i >= dtx.MaxLevels {
			break
		}
		label := strings.ToUpper(strings.TrimSuffix(file, filepath.Ext(file)))
		set.Levels[i+1] = dtx.Level{Number: i + 1, Label: label, File: file}
	}
	if data, err := dir.ReadFile(charts[0]); err == nil {
		if f, err := dtx.ParseBytes(data); err == nil {
			set.Title = f.Title
		}
	}
	return set, nil
}

// loadSingleChart は単独の.dtxファイルを1レベルのセットとして読み込む
func loadSingleChart(path string) (*Set, error) {
	dir := fileutil.NewRealFS(filepath.Dir(path))
	file := filepath.Base(path)
	data, err := dir.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart: %w", err)
	}
	f, err := dtx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart %s: %w", file, err)
	}
	label := "LEVEL"
	if f.Level > 0 {
		label = fmt.Sprintf("LV%d", f.Level)
	}
	return &Set{
		Name:   strings.TrimSuffix(file, filepath.Ext(file)),
		Title:  f.Title,
		Levels: map[int]dtx.Level{1: {Number: 1, Label: label, File: file}},
		FS:     dir,
	}, nil
}

// Available は利用可能なセット一覧を返す
// 外部セットが指定されている場合はそれのみを返す
func (r *Registry) Available() []*Set {
	if len(r.external) > 0 {
		return slices.Clone(r.external)
	}
	return slices.Clone(r.embedded)
}

// Select はセットを選択する（単一の場合は自動選択）
// 戻り値: (選択されたセット, 選択画面が必要か, エラー)
func (r *Registry) Select() (*Set, bool, error) {
	sets := r.Available()
	switch len(sets) {
	case 0:
		return nil, false, ErrNoSets
	case 1:
		return sets[0], false, nil
	default:
		return nil, true, nil
	}
}

// Find は名前でセットを探す（大文字小文字を無視）
func (r *Registry) Find(name string) (*Set, error) {
	for _, set := range r.Available() {
		if strings.EqualFold(set.Name, name) {
			return set, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSetNotFound, name)
}

// Close は開いたアーカイブをすべて閉じる
func (r *Registry) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

// 一覧APIのデフォルト値
const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// Page はセット一覧の1ページ分を返す
// pageは1始まり。0以下の値はデフォルト値になる
func Page(sets []*Set, page, pageSize int) (items []*Set, total int, next bool) {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total = len(sets)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)
	return sets[start:end], total, end < total
}
