package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile はデフォルトの設定ファイル名
const DefaultFile = "dengon.yaml"

// FileEnv は設定ファイルのパスを指定する環境変数
const FileEnv = "DENGON_CONFIG"

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Site    SiteConfig    `yaml:"site"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"` // リッスンするホスト
	Port int    `yaml:"port" env:"PORT"`        // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`         // 読み込みタイムアウト
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`       // 書き込みタイムアウト
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"` // シャットダウンの待ち時間

	Mode string `yaml:"mode" env:"GIN_MODE"` // ginの動作モード (debug/release/test)
}

// StorageConfig はメッセージ保存先の設定
type StorageConfig struct {
	Path string `yaml:"path" env:"STORAGE_PATH"` // JSONファイルのパス
}

// SiteConfig はHTMLページと静的ファイルの設定
type SiteConfig struct {
	Root     string `yaml:"root" env:"SITE_ROOT"`         // ページと静的ファイルのルート
	Template string `yaml:"template" env:"TEMPLATE_NAME"` // 一覧ページのテンプレート
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			Mode:            "release",
		},
		Storage: StorageConfig{
			Path: "storage/data.json",
		},
		Site: SiteConfig{
			Root:     ".",
			Template: "data.html",
		},
	}
}

// Load は設定を読み込む
// .env → 設定ファイル（DENGON_CONFIG または dengon.yaml）→ 環境変数の順に上書きする
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	path := os.Getenv(FileEnv)
	if path == "" {
		path = DefaultFile
	}

	return load(path)
}

// LoadFile は指定された設定ファイルを使って設定を読み込む
// ファイルが存在しない場合はエラーになる
func LoadFile(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("設定ファイル %s が見つかりません: %w", path, err)
	}

	return load(path)
}

func load(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}

	// 環境変数で上書き（未設定の項目はそのまま）
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("環境変数の解析に失敗: %w", err)
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// mergeFile はYAMLファイルの内容を cfg に上書きする
// ファイルが存在しない場合は何もしない
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("設定ファイル %s の読み込みに失敗: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイル %s の解析に失敗: %w", path, err)
	}
	return nil
}

// loadDotEnv はカレントディレクトリの .env を環境変数に読み込む
// 既に設定されている環境変数は上書きしない
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf(".env の読み込みに失敗: %w", err)
	}
	return nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("タイムアウトに負の値は指定できません")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("無効なモード: %q", c.Server.Mode)
	}

	if c.Storage.Path == "" {
		return fmt.Errorf("保存先のパスが設定されていません")
	}
	if c.Site.Root == "" {
		return fmt.Errorf("サイトルートが設定されていません")
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
