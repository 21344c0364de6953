// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	HMACSecret string        `yaml:"hmac_secret"`
	Secure     bool          `yaml:"secure"` // true behind TLS
	TTL        time.Duration `yaml:"ttl"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"` // redis | postgres
	PerKeyLock bool   `yaml:"per_key_lock"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type AIConfig struct {
	GeminiKey       string   `yaml:"gemini_key"`
	GeminiURL       string   `yaml:"gemini_url"`
	DefaultModel    string   `yaml:"default_model"`
	VisionModel     string   `yaml:"vision_model"`
	AllowedModels   []string `yaml:"allowed_models"`
	MaxOutputTokens int      `yaml:"max_output_tokens"`
}

type QuotaConfig struct {
	TrialCount int64            `yaml:"trial_count"`
	Codes      map[string]int64 `yaml:"codes"` // -1 => unlimited
}

type RateLimitConfig struct {
	ChatPerMinute int `yaml:"chat_per_minute"` // 0 disables
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Session   SessionConfig   `yaml:"session"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
	Quota     QuotaConfig     `yaml:"quota"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Core is the immutable view injected into the usecases: the model
// allow-list, the trial quota and the redeem code table. Tests construct it
// directly with their own tables.
type Core struct {
	DefaultModel    string
	VisionModel     string
	AllowedModels   []string
	TrialQuota      int64
	Codes           map[string]int64
	MaxOutputTokens int
}

func (c Core) ModelAllowed(name string) bool {
	for _, m := range c.AllowedModels {
		if m == name {
			return true
		}
	}
	return false
}

func (c *Config) Core() Core {
	codes := make(map[string]int64, len(c.Quota.Codes))
	for k, v := range c.Quota.Codes {
		codes[k] = v
	}
	return Core{
		DefaultModel:    c.AI.DefaultModel,
		VisionModel:     c.AI.VisionModel,
		AllowedModels:   append([]string(nil), c.AI.AllowedModels...),
		TrialQuota:      c.Quota.TrialCount,
		Codes:           codes,
		MaxOutputTokens: c.AI.MaxOutputTokens,
	}
}

// DefaultCodes is the shipped redeem table; quota.codes in the YAML replaces
// it wholesale when present.
func DefaultCodes() map[string]int64 {
	return map[string]int64{
		"GEMINI-FOR-ALL": -1,
		"BLUE-GEM-A8C5":  5, "BLUE-GEM-F2B9": 5, "BLUE-GEM-7D4E": 5, "BLUE-GEM-9C1A": 5, "BLUE-GEM-3E8F": 5,
		"CYAN-ROCK-B6D2": 5, "CYAN-ROCK-5A9E": 5, "CYAN-ROCK-E3C7": 5, "CYAN-ROCK-4F8B": 5, "CYAN-ROCK-1D6A": 5,
	}
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "chat_session"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 365 * 24 * time.Hour
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "redis"
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gemini-1.5-flash-latest"
	}
	if cfg.AI.VisionModel == "" {
		cfg.AI.VisionModel = cfg.AI.DefaultModel
	}
	if len(cfg.AI.AllowedModels) == 0 {
		cfg.AI.AllowedModels = []string{"gemini-1.5-flash-latest", "gemini-1.5-pro-latest", "gemini-2.0-flash"}
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = 8192
	}
	if cfg.Quota.TrialCount <= 0 {
		cfg.Quota.TrialCount = 3
	}
	if len(cfg.Quota.Codes) == 0 {
		cfg.Quota.Codes = DefaultCodes()
	}

	// Minimal validation
	if cfg.Session.HMACSecret == "" {
		return nil, errors.New("session.hmac_secret is required")
	}
	if cfg.AI.GeminiKey == "" && !dev {
		return nil, errors.New("ai.gemini_key is required")
	}
	switch cfg.Storage.Driver {
	case "redis":
		if cfg.Redis.URL == "" {
			return nil, errors.New("redis.url is required")
		}
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required")
		}
	default:
		return nil, fmt.Errorf("storage.driver %q not supported", cfg.Storage.Driver)
	}
	if cfg.Storage.PerKeyLock && cfg.Redis.URL == "" {
		return nil, errors.New("storage.per_key_lock requires redis.url")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
