// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultChannelTag はすべてのJSONレスポンスに付与されるチャンネル表記です。
const DefaultChannelTag = "@UNKNOWN_X_1337_BOT"

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string `yaml:"port"`     // APIサーバーのポート番号
	GinMode string `yaml:"gin_mode"` // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"` // CORS許可オリジン（カンマ区切り）

	// ディレクトリ設定
	UploadDir string `yaml:"upload_dir"` // アップロードPDFの一時保存先
	ImagesDir string `yaml:"images_dir"` // 抽出画像の保存先

	// ファイル制限
	MaxFileSize int64 `yaml:"max_file_size"` // アップロードの最大サイズ（バイト、境界値を含む）

	// レスポンス設定
	ChannelTag    string `yaml:"tg_channel"`      // TG_Channel フィールドの値
	PublicBaseURL string `yaml:"public_base_url"` // ダウンロードURLのベース（空ならリクエストから組み立て）

	// 抽出履歴（任意）
	RedisURL          string `yaml:"redis_url"`           // 空なら履歴は無効
	HistoryTTLMinutes int    `yaml:"history_ttl_minutes"` // 履歴レコードの有効期限（分）

	// ログ設定
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or console
}

// Default は既定値のみを持つ Config を返します。
func Default() *Config {
	return &Config{
		Port:               "5000",
		GinMode:            "debug",
		CORSAllowedOrigins: "*",
		UploadDir:          filepath.Join(".", "uploads"),
		ImagesDir:          filepath.Join(".", "images"),
		MaxFileSize:        2 * 1024 * 1024, // 2MB
		ChannelTag:         DefaultChannelTag,
		HistoryTTLMinutes:  60,
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load は設定を読み込みます。
// 優先順位は 環境変数 > CONFIG_FILE で指定したYAML > 既定値 です。
// .env.local ファイルが存在する場合は先に環境変数へ読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.mergeFile(path); err != nil {
			return nil, err
		}
	}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.GinMode = getEnv("GIN_MODE", c.GinMode)
	c.CORSAllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.ImagesDir = getEnv("IMAGES_DIR", c.ImagesDir)
	c.MaxFileSize = getEnvAsInt64("MAX_FILE_SIZE", c.MaxFileSize)
	c.ChannelTag = getEnv("TG_CHANNEL", c.ChannelTag)
	c.PublicBaseURL = getEnv("PUBLIC_BASE_URL", c.PublicBaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)
	c.HistoryTTLMinutes = getEnvAsInt("HISTORY_TTL_MINUTES", c.HistoryTTLMinutes)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive (got %d)", c.MaxFileSize)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.ImagesDir == "" {
		return fmt.Errorf("IMAGES_DIR is required")
	}
	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			return fmt.Errorf("REDIS_URL is invalid: %w", err)
		}
	}
	return nil
}

// HistoryEnabled は抽出履歴を保存するかどうかを返します。
func (c *Config) HistoryEnabled() bool {
	return c.RedisURL != ""
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
