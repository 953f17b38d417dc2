package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// サブコマンド名
const (
	CommandPlay   = "play"
	CommandInfo   = "info"
	CommandExport = "export"
	CommandLevels = "levels"
	CommandServe  = "serve"
)

// 環境変数名
const (
	EnvHeadless  = "HEADLESS"
	EnvTimeout   = "TIMEOUT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvSoundFont = "DTXVIEW_SOUNDFONT"
	EnvListen    = "DTXVIEW_LISTEN"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	Command    string        // 実行するサブコマンド（ルートはplay）
	Path       string        // セットのディレクトリ、zip、またはdtxファイルのパス
	Timeout    time.Duration // タイムアウト時間（0は無制限）
	LogLevel   string        // ログレベル（debug, info, warn, error）
	LogFormat  string        // ログ形式（text, json）
	Headless   bool          // ヘッドレスモード
	ConfigPath string        // ユーザー設定ファイルのパス（空はデフォルト）
	Level      int           // レベル番号（0は最小のレベル）
	Start      int           // 再生開始小節
	BPM        float64       // テンポの上書き（0は譜面の値）
	SoundFont  string        // プレースホルダ音源用のSF2ファイル
	Speed      float64       // スクロール速度の倍率
	Output     string        // exportの出力先（空は譜面名.mid）
	Listen     string        // serveの待ち受けアドレス
	ShowHelp   bool          // ヘルプ表示フラグ

	set map[string]bool // フラグまたは環境変数で明示的に指定された項目
}

// IsSet はフラグまたは環境変数で値が指定されたかを返す
// 指定されていない項目はユーザー設定ファイルの値で上書きしてよい
func (c *Config) IsSet(name string) bool {
	return c.set[name]
}

func (c *Config) markSet(name string) {
	if c.set == nil {
		c.set = make(map[string]bool)
	}
	c.set[name] = true
}

// ParseArgs コマンドライン引数を解析してConfigを返す
// --help またはhelpサブコマンドの場合はShowHelpだけを立てて返す
func ParseArgs(args []string) (*Config, error) {
	// nilを渡すとcobraはos.Argsを読むため空スライスにする
	if args == nil {
		args = []string{}
	}

	config := &Config{}
	var timeoutSec int
	root := newRootCommand(config, &timeoutSec)
	root.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		config.ShowHelp = true
		config.Command = commandName(cmd)
	})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	cmd, err := root.ExecuteC()
	if err != nil {
		return nil, err
	}
	if config.ShowHelp {
		return &Config{Command: config.Command, ShowHelp: true}, nil
	}

	recordChanged(cmd, config)

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !config.IsSet("headless") {
		if headlessEnv := os.Getenv(EnvHeadless); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
			config.markSet("headless")
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if !config.IsSet("timeout") {
		if timeoutEnv := os.Getenv(EnvTimeout); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
				config.markSet("timeout")
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if !config.IsSet("log-level") {
		if logLevelEnv := os.Getenv(EnvLogLevel); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
			config.markSet("log-level")
		}
	}

	if !config.IsSet("soundfont") {
		if sf := os.Getenv(EnvSoundFont); sf != "" {
			config.SoundFont = sf
			config.markSet("soundfont")
		}
	}

	if !config.IsSet("listen") {
		if listen := os.Getenv(EnvListen); listen != "" {
			config.Listen = listen
			config.markSet("listen")
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate は値の範囲を検証する
func (c *Config) Validate() error {
	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}
	if c.Level < 0 || c.Level > 5 {
		return fmt.Errorf("level must be between 0 and 5, got %d", c.Level)
	}
	if c.Start < 0 {
		return fmt.Errorf("start measure must be non-negative, got %d", c.Start)
	}
	if c.BPM < 0 {
		return fmt.Errorf("bpm must be positive, got %g", c.BPM)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %g", c.Speed)
	}
	return nil
}

// newRootCommand はコマンドツリーを組み立てる
// 各コマンドは実行されると自分の名前と位置引数をconfigに書き込むだけで、実際の処理はappが行う
func newRootCommand(config *Config, timeoutSec *int) *cobra.Command {
	capture := func(name string) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			config.Command = name
			if len(args) > 0 {
				config.Path = args[0]
			}
			return nil
		}
	}

	root := &cobra.Command{
		Use:           "dtxview [path]",
		Short:         "DTX chart viewer and player",
		Long:          `dtxview はDTX譜面のレーングリッドを表示し、BGMとドラム音を同期して再生する。`,
		Args:          cobra.MaximumNArgs(1),
		RunE:          capture(CommandPlay),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.IntVarP(timeoutSec, "timeout", "t", 0, "タイムアウト時間（秒）")
	pf.StringVarP(&config.LogLevel, "log-level", "l", "info", "ログレベル（debug, info, warn, error）")
	pf.StringVar(&config.LogFormat, "log-format", "text", "ログ形式（text, json）")
	pf.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	pf.StringVar(&config.ConfigPath, "config", "", "設定ファイルのパス")
	addPlayFlags(root, config)

	play := &cobra.Command{
		Use:   "play [path]",
		Short: "チャートを表示して再生する",
		Args:  cobra.MaximumNArgs(1),
		RunE:  capture(CommandPlay),
	}
	addPlayFlags(play, config)

	info := &cobra.Command{
		Use:   "info [path]",
		Short: "チャートのヘッダとタイムラインを表示する",
		Args:  cobra.MaximumNArgs(1),
		RunE:  capture(CommandInfo),
	}
	info.Flags().IntVar(&config.Level, "level", 0, "レベル番号（0は最小のレベル）")

	export := &cobra.Command{
		Use:   "export [path]",
		Short: "チャートをStandard MIDI Fileに書き出す",
		Args:  cobra.MaximumNArgs(1),
		RunE:  capture(CommandExport),
	}
	addPlayFlags(export, config)
	export.Flags().StringVarP(&config.Output, "output", "o", "", "出力ファイル（省略時は譜面名.mid）")

	levels := &cobra.Command{
		Use:   "levels [path]",
		Short: "セットとレベルの一覧を表示する",
		Args:  cobra.MaximumNArgs(1),
		RunE:  capture(CommandLevels),
	}

	serve := &cobra.Command{
		Use:   "serve [path]",
		Short: "セット一覧とタイムラインをHTTPで提供する",
		Args:  cobra.MaximumNArgs(1),
		RunE:  capture(CommandServe),
	}
	serve.Flags().StringVar(&config.Listen, "listen", ":8080", "待ち受けアドレス")

	root.AddCommand(play, info, export, levels, serve)
	return root
}

// addPlayFlags は再生系コマンド共通のフラグを登録する
func addPlayFlags(cmd *cobra.Command, config *Config) {
	f := cmd.Flags()
	f.IntVar(&config.Level, "level", 0, "レベル番号（0は最小のレベル）")
	f.IntVar(&config.Start, "start", 0, "再生開始小節")
	f.Float64Var(&config.BPM, "bpm", 0, "テンポの上書き（0は譜面の値）")
	f.StringVar(&config.SoundFont, "soundfont", "", "プレースホルダ音源用のSF2ファイル")
	f.Float64Var(&config.Speed, "speed", 1, "スクロール速度の倍率")
}

// recordChanged は明示的に指定されたフラグを記録する
func recordChanged(cmd *cobra.Command, config *Config) {
	for _, name := range []string{
		"timeout", "log-level", "log-format", "headless", "config",
		"level", "start", "bpm", "soundfont", "speed", "output", "listen",
	} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			config.markSet(name)
		}
	}
}

func commandName(cmd *cobra.Command) string {
	if cmd == nil || !cmd.HasParent() {
		return ""
	}
	return cmd.Name()
}

// PrintHelp ヘルプメッセージを表示
// commandが空の場合はルートコマンドのヘルプを表示する
func PrintHelp(w io.Writer, command string) {
	config := &Config{}
	var timeoutSec int
	root := newRootCommand(config, &timeoutSec)
	root.SetOut(w)

	target := root
	if command != "" {
		if sub, _, err := root.Find([]string{command}); err == nil {
			target = sub
		}
	}
	_ = target.Help()

	fmt.Fprintf(w, `
Environment Variables:
  %s=1                  ヘッドレスモードを有効化
  %s=<seconds>           タイムアウト時間（秒）
  %s=<level>           ログレベル
  %s=<file.sf2>  プレースホルダ音源
  %s=<addr>       serveの待ち受けアドレス

Examples:
  dtxview /path/to/set              セットを選択して再生
  dtxview play song.dtx --start 8   8小節目から再生
  dtxview export set.zip -o out.mid MIDIファイルに書き出し
  HEADLESS=1 dtxview /path/to/set   ヘッドレスモードで実行
`, EnvHeadless, EnvTimeout, EnvLogLevel, EnvSoundFont, EnvListen)
}
