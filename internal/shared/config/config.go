package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	ruleDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

type Config struct {
	TelegramBotToken string  `koanf:"telegram_bot_token"`
	TelegramAPIURL   string  `koanf:"telegram_api_url"`
	StoragePath      string  `koanf:"storage_path"`
	HTTPPort         string  `koanf:"http_port"`
	UpdateInterval   int     `koanf:"update_interval"`
	AllowedUsers     []int64 `koanf:"allowed_users"`
	AppEnv           AppEnv  `koanf:"app_env"`

	IntakeWorkers          int `koanf:"intake_workers"`
	IntakeQueueSize        int `koanf:"intake_queue_size"`
	DispatchWorkers        int `koanf:"dispatch_workers"`
	DispatchQueueSize      int `koanf:"dispatch_queue_size"`
	DispatchMaxAttempts    int `koanf:"dispatch_max_attempts"`
	SendTimeoutSeconds     int `koanf:"send_timeout_seconds"`
	ShutdownTimeoutSeconds int `koanf:"shutdown_timeout_seconds"`

	RegexCacheSize   int `koanf:"regex_cache_size"`
	RegexTimeoutMs   int `koanf:"regex_timeout_ms"`
	MaxTextLength    int `koanf:"max_text_length"`
	MaxCaptionLength int `koanf:"max_caption_length"`

	// Rules are seeded into the rule store when it does not know them yet.
	Rules []ruleDomain.ForwardingRule `koanf:"rules"`
}

var defaultConfigFiles = []string{
	"config.yaml",
	"config.yml",
	"config.json",
	"config.toml",
}

var defaults = map[string]any{
	"telegram_api_url":         "https://api.telegram.org",
	"storage_path":             "./data",
	"http_port":                "8080",
	"update_interval":          60,
	"app_env":                  "production",
	"intake_workers":           4,
	"intake_queue_size":        1000,
	"dispatch_workers":         4,
	"dispatch_queue_size":      1000,
	"dispatch_max_attempts":    3,
	"send_timeout_seconds":     10,
	"shutdown_timeout_seconds": 30,
	"regex_cache_size":         256,
	"regex_timeout_ms":         100,
	"max_text_length":          4096,
	"max_caption_length":       1024,
}

// Load reads the first config file found in the working directory, then the environment.
func Load() (*Config, error) {
	return LoadFiles(defaultConfigFiles...)
}

// LoadFiles is Load with an explicit list of candidate config files
func LoadFiles(configFiles ...string) (*Config, error) {
	k := koanf.New(".")

	// Use lo.Find to find the first existing config file
	configFile, found := lo.Find(configFiles, func(file string) bool {
		_, err := os.Stat(file)
		return err == nil
	})

	if found {
		var parser koanf.Parser
		ext := filepath.Ext(configFile)

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, oops.Errorf("unsupported config file extension: %s", ext)
		}

		if err := k.Load(file.Provider(configFile), parser); err != nil {
			return nil, oops.With("config_file", configFile).Wrap(err)
		}
	}

	// Load environment variables (they override config file values)
	if err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(s)
	}), nil); err != nil {
		return nil, oops.With("context", "loading environment variables").Wrap(err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.With("context", "unmarshaling config").Wrap(err)
	}

	// Parse AllowedUsers from comma-separated string if it's a string
	if allowedUsers := k.Get("allowed_users"); allowedUsers != nil {
		switch v := allowedUsers.(type) {
		case string:
			cfg.AllowedUsers = ParseAllowedUsers(v)
		case []interface{}:
			cfg.AllowedUsers = lo.FilterMap(v, func(item interface{}, _ int) (int64, bool) {
				switch val := item.(type) {
				case int64:
					return val, true
				case int:
					return int64(val), true
				case float64:
					return int64(val), true
				default:
					return 0, false
				}
			})
		}
	}

	if appEnv, err := ParseAppEnv(k.String("app_env")); err == nil {
		cfg.AppEnv = appEnv
	} else {
		cfg.AppEnv = AppEnvProduction
	}

	if cfg.TelegramBotToken == "" {
		return nil, errors.ErrMissingBotToken
	}

	return &cfg, nil
}

// ParseAllowedUsers parses comma-separated user IDs string into []int64
func ParseAllowedUsers(s string) []int64 {
	if s == "" {
		return []int64{}
	}
	parts := strings.Split(s, ",")
	return lo.FilterMap(parts, func(part string, _ int) (int64, bool) {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, false
		}
		var id int64
		if _, err := fmt.Sscanf(part, "%d", &id); err == nil {
			return id, true
		}
		return 0, false
	})
}

// IsUserAllowed reports whether userID may run operator commands. An empty list allows everyone.
func (c *Config) IsUserAllowed(userID int64) bool {
	return len(c.AllowedUsers) == 0 || lo.Contains(c.AllowedUsers, userID)
}

// IsDebug reports whether verbose logging should be enabled
func (c *Config) IsDebug() bool {
	return c.AppEnv == AppEnvLocal || c.AppEnv == AppEnvDevelopment
}

func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Second
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) RegexTimeout() time.Duration {
	return time.Duration(c.RegexTimeoutMs) * time.Millisecond
}
