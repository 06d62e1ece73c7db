// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// StoreConfig holds the bitable record store connection parameters. All four
// credentials must be present before any call is made; env vars override the
// file values because production deployments configure through env only.
type StoreConfig struct {
	BaseURL   string `yaml:"base_url"`
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
	AppToken  string `yaml:"app_token"`
	TableID   string `yaml:"table_id"`
}

// RequestShape describes one upstream request form the invoker may try.
// Kind is "chat" (chat-completions body) or "simple" ({prompt, image_url?,
// model?}). Shapes are attempted in order; the list is configuration because
// the provider's API surface is not stable across deployments.
type RequestShape struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// ClassifyRule maps a URL pattern onto a result slot. Host and Ext are
// substring / suffix matches; Slot is primary|watermark_free|mirror.
type ClassifyRule struct {
	Host string `yaml:"host"`
	Ext  string `yaml:"ext"`
	Slot string `yaml:"slot"`
}

type GenerateConfig struct {
	BaseURL      string         `yaml:"base_url"`
	APIKey       string         `yaml:"api_key"`
	DefaultModel string         `yaml:"default_model"`
	Timeout      time.Duration  `yaml:"timeout"`
	Shapes       []RequestShape `yaml:"shapes"`
	Classify     []ClassifyRule `yaml:"classify"`
}

type BatchConfig struct {
	Delay time.Duration `yaml:"delay"` // pause between tasks in a batch
	Limit int           `yaml:"limit"` // default pending-list page size
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Generate GenerateConfig `yaml:"generate"`
	Batch    BatchConfig    `yaml:"batch"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	// A missing file is fine: everything important can arrive via env.

	applyEnv(&cfg)
	applyDefaults(&cfg)

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overlay(&cfg.Store.AppID, "FEISHU_APP_ID")
	overlay(&cfg.Store.AppSecret, "FEISHU_APP_SECRET")
	overlay(&cfg.Store.AppToken, "FEISHU_APP_TOKEN")
	overlay(&cfg.Store.TableID, "FEISHU_TABLE_ID")
	overlay(&cfg.Generate.APIKey, "GENERATE_API_KEY")
	overlay(&cfg.Generate.BaseURL, "GENERATE_BASE_URL")
}

func overlay(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.StaticDir == "" {
		cfg.Server.StaticDir = "static"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Store.BaseURL == "" {
		cfg.Store.BaseURL = "https://open.feishu.cn"
	}
	if cfg.Generate.DefaultModel == "" {
		cfg.Generate.DefaultModel = "sora-video-portrait-10s"
	}
	if cfg.Generate.Timeout <= 0 {
		cfg.Generate.Timeout = 10 * time.Minute
	}
	if len(cfg.Generate.Shapes) == 0 {
		cfg.Generate.Shapes = []RequestShape{
			{Kind: "chat", Path: "/v1/chat/completions"},
			{Kind: "simple", Path: "/v1/video/generations"},
		}
	}
	if len(cfg.Generate.Classify) == 0 {
		cfg.Generate.Classify = []ClassifyRule{
			{Host: "drive.google.com", Slot: "mirror"},
			{Host: "watermark-free", Ext: "video", Slot: "watermark_free"},
			{Host: "nowatermark", Ext: "video", Slot: "watermark_free"},
			{Slot: "primary"},
		}
	}
	if cfg.Batch.Delay <= 0 {
		cfg.Batch.Delay = 2 * time.Second
	}
	if cfg.Batch.Limit <= 0 {
		cfg.Batch.Limit = 100
	}
}
