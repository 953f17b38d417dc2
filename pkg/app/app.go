package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/zurustar/dtxview/pkg/cli"
	"github.com/zurustar/dtxview/pkg/config"
	"github.com/zurustar/dtxview/pkg/library"
	"github.com/zurustar/dtxview/pkg/logger"
	"github.com/zurustar/dtxview/pkg/window"
)

// DefaultBPM は譜面に#BPMがない場合のテンポ
const DefaultBPM = 120.0

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config       *cli.Config
	settings     *config.Config
	settingsPath string
	log          *slog.Logger
	reg          *library.Registry
	embedFS      fs.FS

	stdin  io.Reader
	stdout io.Writer
}

// New Applicationを作成
func New(embedFS fs.FS) *Application {
	return &Application{
		embedFS: embedFS,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
	}
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	if err := app.parseArgs(args); err != nil {
		return fmt.Errorf("failed to parse args: %w", err)
	}

	if app.config.ShowHelp {
		cli.PrintHelp(app.stdout, app.config.Command)
		return nil
	}

	// 2. ユーザー設定の読み込み（フラグと環境変数が優先）
	if err := app.loadSettings(); err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	// 3. ロガーの初期化
	if err := app.initLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.log.Info("Application started", "command", app.config.Command)

	// 4. 譜面セットの読み込み
	if err := app.loadLibrary(); err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	defer func() {
		if err := app.reg.Close(); err != nil {
			app.log.Warn("Failed to close archives", "error", err)
		}
	}()

	// 5. コマンドの実行
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch app.config.Command {
	case cli.CommandInfo:
		err = app.runInfo()
	case cli.CommandLevels:
		err = app.runLevels()
	case cli.CommandExport:
		err = app.runExport()
	case cli.CommandServe:
		err = app.runServe(ctx)
	default:
		err = app.runPlay(ctx)
	}
	if err != nil {
		return err
	}

	app.log.Info("Application terminated normally")
	return nil
}

// parseArgs コマンドライン引数を解析
func (app *Application) parseArgs(args []string) error {
	config, err := cli.ParseArgs(args)
	if err != nil {
		return err
	}
	app.config = config
	return nil
}

// loadSettings はユーザー設定ファイルを読み込み、指定されていない項目を補う
func (app *Application) loadSettings() error {
	path := app.config.ConfigPath
	if path == "" {
		p, err := config.Path()
		if err != nil {
			// 設定ディレクトリがない環境ではデフォルト値で動かす
			app.settings = config.DefaultConfig()
			applySettings(app.config, app.settings)
			return nil
		}
		path = p
	}
	settings, err := config.Load(path)
	if err != nil {
		return err
	}
	app.settings = settings
	app.settingsPath = path
	applySettings(app.config, settings)
	return nil
}

// applySettings はフラグでも環境変数でも指定されなかった項目に設定ファイルの値を使う
func applySettings(c *cli.Config, s *config.Config) {
	if !c.IsSet("log-level") {
		c.LogLevel = s.LogLevel
	}
	if !c.IsSet("log-format") {
		c.LogFormat = s.LogFormat
	}
	if !c.IsSet("speed") {
		c.Speed = s.ScrollSpeed
	}
	if !c.IsSet("soundfont") && s.SoundFont != "" {
		c.SoundFont = s.SoundFont
	}
	if !c.IsSet("listen") && s.Listen != "" {
		c.Listen = s.Listen
	}
}

// initLogger ロガーを初期化
func (app *Application) initLogger() error {
	if err := logger.InitLogger(app.config.LogLevel, logger.WithFormat(app.config.LogFormat), logger.WithOutput(app.stdout)); err != nil {
		return err
	}
	app.log = logger.GetLogger()
	return nil
}

// loadLibrary は埋め込みセットと指定されたパスのセットを読み込む
func (app *Application) loadLibrary() error {
	app.reg = library.NewRegistry(app.embedFS, library.WithLogger(app.log))
	if app.config.Path != "" {
		if err := app.reg.LoadExternal(app.config.Path); err != nil {
			return fmt.Errorf("failed to load external charts: %w", err)
		}
	}
	app.log.Info("Chart sets loaded", "count", len(app.reg.Available()))
	return nil
}

// levelFor はセットで開くレベル番号を決める
// --levelの指定、前回開いたレベル、最小のレベルの順に使う
func (app *Application) levelFor(set *library.Set) int {
	if app.config.IsSet("level") || app.config.Level > 0 {
		return app.config.Level
	}
	if app.settings != nil && strings.EqualFold(app.settings.LastSet, set.Name) {
		if _, ok := set.Levels[app.settings.LastLevel]; ok {
			return app.settings.LastLevel
		}
	}
	return 0
}

// chooseEntry はセットとレベルを決める
// セットが1つならそのまま、複数なら標準入出力で選択する
func (app *Application) chooseEntry() (*window.Entry, error) {
	set, needsSelection, err := app.reg.Select()
	if err != nil {
		return nil, err
	}
	if !needsSelection {
		level, err := set.Level(app.levelFor(set))
		if err != nil {
			return nil, err
		}
		return &window.Entry{Set: set, Level: level}, nil
	}
	return window.RunHeadless(window.Entries(app.reg.Available()), app.config.Timeout, app.stdin, app.stdout)
}

// remember は最後に開いたセットとレベルを設定ファイルに保存する
func (app *Application) remember(set string, level int) {
	if app.settings == nil || app.settingsPath == "" {
		return
	}
	if app.settings.LastSet == set && app.settings.LastLevel == level {
		return
	}
	app.settings.LastSet = set
	app.settings.LastLevel = level
	if err := config.Save(app.settingsPath, app.settings); err != nil {
		app.log.Warn("Failed to save settings", "path", app.settingsPath, "error", err)
	}
}

// chartBPM は再生に使うテンポを返す（--bpm、#BPM、DefaultBPMの順）
func (app *Application) chartBPM(bpm float64) float64 {
	if app.config.BPM > 0 {
		return app.config.BPM
	}
	if bpm > 0 {
		return bpm
	}
	app.log.Warn("Chart has no tempo, using default", "bpm", DefaultBPM)
	return DefaultBPM
}

// isCancelled はユーザーによる中断かどうかを返す
func isCancelled(err error) bool {
	return errors.Is(err, window.ErrCancelled) || errors.Is(err, context.Canceled)
}
