// Package config はユーザー設定ファイル（YAML）を読み書きする
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName は設定ファイル名
const FileName = "config.yaml"

// Config はユーザー設定
// コマンドラインフラグと環境変数はこの値を上書きする
type Config struct {
	LogLevel    string  `yaml:"log_level"`
	LogFormat   string  `yaml:"log_format"`
	SoundFont   string  `yaml:"soundfont,omitempty"`  // プレースホルダ音源用のSF2ファイル
	ScrollSpeed float64 `yaml:"scroll_speed"`         // セルの高さの倍率
	Volume      float64 `yaml:"volume"`               // マスター音量（0〜1）
	Muted       bool    `yaml:"muted"`                // 起動時にミュート
	Listen      string  `yaml:"listen"`               // serveの待ち受けアドレス
	LastSet     string  `yaml:"last_set,omitempty"`   // 最後に開いたセット
	LastLevel   int     `yaml:"last_level,omitempty"` // 最後に開いたレベル
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		ScrollSpeed: 1,
		Volume:      1,
		Listen:      ":8080",
	}
}

// Path は設定ファイルのパスを返す（$XDG_CONFIG_HOME/dtxview/config.yaml）
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "dtxview", FileName), nil
}

// Load は設定ファイルを読み込む
// ファイルが存在しない場合はデフォルト設定を返す
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// 書かれていない項目はデフォルト値のまま
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save は設定ファイルを書き込む
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate は値の範囲を検証する
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}
	if c.ScrollSpeed <= 0 {
		return fmt.Errorf("scroll speed must be positive, got %v", c.ScrollSpeed)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0 and 1, got %v", c.Volume)
	}
	if c.LastLevel < 0 {
		return fmt.Errorf("last level must be non-negative, got %d", c.LastLevel)
	}
	return nil
}
