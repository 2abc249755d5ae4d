package model

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete runtime configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram" mapstructure:"telegram"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Limits   LimitsConfig   `yaml:"limits" mapstructure:"limits"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Cookies  CookiesConfig  `yaml:"cookies" mapstructure:"cookies"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// TelegramConfig configures the transport.
type TelegramConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	AdminID int64  `yaml:"admin_id" mapstructure:"admin_id"`
}

// DataConfig configures persistent state locations.
type DataConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// CacheConfig configures the media cache.
type CacheConfig struct {
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// LimitsConfig bounds acquisition work.
type LimitsConfig struct {
	Concurrency int64         `yaml:"concurrency" mapstructure:"concurrency"`
	MaxDuration time.Duration `yaml:"max_duration" mapstructure:"max_duration"`
	MaxSizeMB   int           `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxItems    int           `yaml:"max_items" mapstructure:"max_items"`
}

// DownloadConfig tunes the extraction collaborator.
type DownloadConfig struct {
	TryNoCookiesFirst bool    `yaml:"try_no_cookies_first" mapstructure:"try_no_cookies_first"`
	VideoFormat       string  `yaml:"video_format" mapstructure:"video_format"`
	MergeOutputFormat string  `yaml:"merge_output_format" mapstructure:"merge_output_format"`
	Proxy             string  `yaml:"proxy" mapstructure:"proxy"`
	Rate              float64 `yaml:"rate" mapstructure:"rate"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CookiesConfig lists credential bundles (Netscape cookie files) per site.
// Each element may itself be a comma/semicolon/newline separated list, which
// keeps single-string environment overrides working.
type CookiesConfig struct {
	Global    []string `yaml:"global" mapstructure:"global"`
	Instagram []string `yaml:"instagram" mapstructure:"instagram"`
	YouTube   []string `yaml:"youtube" mapstructure:"youtube"`
	TikTok    []string `yaml:"tiktok" mapstructure:"tiktok"`
	VK        []string `yaml:"vk" mapstructure:"vk"`
	Yandex    []string `yaml:"yandex" mapstructure:"yandex"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{Dir: "data"},
		Cache: CacheConfig{
			TTL:           5 * time.Minute,
			SweepInterval: time.Minute,
		},
		Limits: LimitsConfig{
			Concurrency: 5,
			MaxDuration: 10 * time.Minute,
			MaxSizeMB:   48,
			MaxItems:    10,
		},
		Download: DownloadConfig{
			TryNoCookiesFirst: true,
			VideoFormat:       "bv*+ba/best",
			MergeOutputFormat: "mp4",
			Rate:              1,
			Burst:             5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig merges viper state (config file, env, bound flags) over the
// defaults and resolves derived paths.
func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = filepath.Join(cfg.Data.Dir, "cache")
	}
	return cfg, nil
}

// Validate checks the options without which the process cannot start.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	return nil
}

// UsersFile returns the path of the flat user registry.
func (c *Config) UsersFile() string {
	return filepath.Join(c.Data.Dir, "users.txt")
}
