package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseArgs_ValidArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
	}{
		{
			name: "デフォルト設定",
			args: []string{},
			expected: Config{
				Command:  CommandPlay,
				LogLevel: "info",
			},
		},
		{
			name: "パス指定",
			args: []string{"/path/to/set"},
			expected: Config{
				Command:  CommandPlay,
				Path:     "/path/to/set",
				LogLevel: "info",
			},
		},
		{
			name: "タイムアウト指定",
			args: []string{"--timeout", "10"},
			expected: Config{
				Command:  CommandPlay,
				Timeout:  10 * time.Second,
				LogLevel: "info",
			},
		},
		{
			name: "タイムアウト指定（短縮形）",
			args: []string{"-t", "5"},
			expected: Config{
				Command:  CommandPlay,
				Timeout:  5 * time.Second,
				LogLevel: "info",
			},
		},
		{
			name: "ログレベル指定",
			args: []string{"--log-level", "debug"},
			expected: Config{
				Command:  CommandPlay,
				LogLevel: "debug",
			},
		},
		{
			name: "ログレベル指定（短縮形）",
			args: []string{"-l", "error"},
			expected: Config{
				Command:  CommandPlay,
				LogLevel: "error",
			},
		},
		{
			name: "ヘッドレスモード",
			args: []string{"--headless"},
			expected: Config{
				Command:  CommandPlay,
				LogLevel: "info",
				Headless: true,
			},
		},
		{
			name: "ヘルプ表示",
			args: []string{"--help"},
			expected: Config{
				ShowHelp: true,
			},
		},
		{
			name: "ヘルプ表示（短縮形）",
			args: []string{"-h"},
			expected: Config{
				ShowHelp: true,
			},
		},
		{
			name: "サブコマンドのヘルプ",
			args: []string{"export", "--help"},
			expected: Config{
				Command:  CommandExport,
				ShowHelp: true,
			},
		},
		{
			name: "複数オプション",
			args: []string{"--timeout", "30", "--log-level", "warn", "--headless", "/path/to/set"},
			expected: Config{
				Command:  CommandPlay,
				Path:     "/path/to/set",
				Timeout:  30 * time.Second,
				LogLevel: "warn",
				Headless: true,
			},
		},
		{
			name: "位置引数が最初（順序に関係なく動作）",
			args: []string{"/path/to/set", "--timeout", "10", "--headless"},
			expected: Config{
				Command:  CommandPlay,
				Path:     "/path/to/set",
				Timeout:  10 * time.Second,
				LogLevel: "info",
				Headless: true,
			},
		},
		{
			name: "playサブコマンド",
			args: []string{"play", "songs/kick.dtx", "--level", "3", "--start", "8", "--bpm", "150", "--speed", "2"},
			expected: Config{
				Command:  CommandPlay,
				Path:     "songs/kick.dtx",
				LogLevel: "info",
				Level:    3,
				Start:    8,
				BPM:      150,
				Speed:    2,
			},
		},
		{
			name: "exportサブコマンド",
			args: []string{"export", "set.zip", "-o", "out.mid", "--level", "2"},
			expected: Config{
				Command:  CommandExport,
				Path:     "set.zip",
				LogLevel: "info",
				Level:    2,
				Output:   "out.mid",
			},
		},
		{
			name: "serveサブコマンド",
			args: []string{"serve", "--listen", "127.0.0.1:9000", "--log-format", "json"},
			expected: Config{
				Command:  CommandServe,
				LogLevel: "info",
				Listen:   "127.0.0.1:9000",
			},
		},
		{
			name: "levelsサブコマンド",
			args: []string{"levels", "/path/to/set"},
			expected: Config{
				Command:  CommandLevels,
				Path:     "/path/to/set",
				LogLevel: "info",
			},
		},
		{
			name: "infoサブコマンド",
			args: []string{"info", "song.dtx", "--level", "1"},
			expected: Config{
				Command:  CommandInfo,
				Path:     "song.dtx",
				LogLevel: "info",
				Level:    1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if config.Command != tt.expected.Command {
				t.Errorf("Command = %q, want %q", config.Command, tt.expected.Command)
			}
			if config.Path != tt.expected.Path {
				t.Errorf("Path = %q, want %q", config.Path, tt.expected.Path)
			}
			if config.Timeout != tt.expected.Timeout {
				t.Errorf("Timeout = %v, want %v", config.Timeout, tt.expected.Timeout)
			}
			if config.LogLevel != tt.expected.LogLevel {
				t.Errorf("LogLevel = %q, want %q", config.LogLevel, tt.expected.LogLevel)
			}
			if config.Headless != tt.expected.Headless {
				t.Errorf("Headless = %v, want %v", config.Headless, tt.expected.Headless)
			}
			if config.ShowHelp != tt.expected.ShowHelp {
				t.Errorf("ShowHelp = %v, want %v", config.ShowHelp, tt.expected.ShowHelp)
			}
			if config.Level != tt.expected.Level {
				t.Errorf("Level = %d, want %d", config.Level, tt.expected.Level)
			}
			if config.Start != tt.expected.Start {
				t.Errorf("Start = %d, want %d", config.Start, tt.expected.Start)
			}
			if config.BPM != tt.expected.BPM {
				t.Errorf("BPM = %g, want %g", config.BPM, tt.expected.BPM)
			}
			if tt.expected.Speed != 0 && config.Speed != tt.expected.Speed {
				t.Errorf("Speed = %g, want %g", config.Speed, tt.expected.Speed)
			}
			if config.Output != tt.expected.Output {
				t.Errorf("Output = %q, want %q", config.Output, tt.expected.Output)
			}
			if tt.expected.Listen != "" && config.Listen != tt.expected.Listen {
				t.Errorf("Listen = %q, want %q", config.Listen, tt.expected.Listen)
			}
		})
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	config, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Speed != 1 {
		t.Errorf("Speed = %g, want 1", config.Speed)
	}
	if config.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", config.Listen)
	}
	if config.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want text", config.LogFormat)
	}
	if config.IsSet("log-level") {
		t.Error("log-level should not be marked as set")
	}
}

func TestParseArgs_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "負のタイムアウト",
			args: []string{"--timeout", "-10"},
		},
		{
			name: "無効なログレベル",
			args: []string{"--log-level", "invalid"},
		},
		{
			name: "無効なログレベル（短縮形）",
			args: []string{"-l", "trace"},
		},
		{
			name: "無効なログ形式",
			args: []string{"--log-format", "xml"},
		},
		{
			name: "負の開始小節",
			args: []string{"play", "--start", "-1"},
		},
		{
			name: "負のBPM",
			args: []string{"--bpm", "-120"},
		},
		{
			name: "速度ゼロ",
			args: []string{"--speed", "0"},
		},
		{
			name: "範囲外のレベル",
			args: []string{"--level", "6"},
		},
		{
			name: "未知のフラグ",
			args: []string{"--volume", "3"},
		},
		{
			name: "位置引数が多すぎる",
			args: []string{"info", "a.dtx", "b.dtx"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArgs(tt.args)
			if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseArgs_Environment(t *testing.T) {
	t.Run("環境変数で設定", func(t *testing.T) {
		t.Setenv(EnvHeadless, "true")
		t.Setenv(EnvTimeout, "7")
		t.Setenv(EnvLogLevel, "DEBUG")
		t.Setenv(EnvSoundFont, "/tmp/drums.sf2")
		t.Setenv(EnvListen, ":9090")

		config, err := ParseArgs([]string{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !config.Headless {
			t.Error("Headless should be enabled by environment")
		}
		if config.Timeout != 7*time.Second {
			t.Errorf("Timeout = %v, want 7s", config.Timeout)
		}
		if config.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", config.LogLevel)
		}
		if config.SoundFont != "/tmp/drums.sf2" {
			t.Errorf("SoundFont = %q", config.SoundFont)
		}
		if config.Listen != ":9090" {
			t.Errorf("Listen = %q", config.Listen)
		}
		for _, name := range []string{"headless", "timeout", "log-level", "soundfont", "listen"} {
			if !config.IsSet(name) {
				t.Errorf("%s should be marked as set", name)
			}
		}
	})

	t.Run("フラグが環境変数より優先", func(t *testing.T) {
		t.Setenv(EnvTimeout, "7")
		t.Setenv(EnvLogLevel, "debug")

		config, err := ParseArgs([]string{"-t", "3", "-l", "warn"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Timeout != 3*time.Second {
			t.Errorf("Timeout = %v, want 3s", config.Timeout)
		}
		if config.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want warn", config.LogLevel)
		}
	})

	t.Run("無効な環境変数のタイムアウトは無視", func(t *testing.T) {
		t.Setenv(EnvTimeout, "abc")

		config, err := ParseArgs([]string{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Timeout != 0 {
			t.Errorf("Timeout = %v, want 0", config.Timeout)
		}
	})
}

func TestPrintHelp(t *testing.T) {
	var buf bytes.Buffer
	PrintHelp(&buf, "")
	out := buf.String()
	for _, want := range []string{"dtxview", "export", "serve", "--log-level", EnvSoundFont} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}

	buf.Reset()
	PrintHelp(&buf, CommandExport)
	if !strings.Contains(buf.String(), "--output") {
		t.Error("export help should list --output")
	}
}
