// Package config loads the service configuration from an optional YAML file,
// RESUME_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. RESUME_SERVER_PORT.
const EnvPrefix = "RESUME"

// Config is the complete service configuration.
type Config struct {
	Debug     bool            `mapstructure:"debug"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Compiler  CompilerConfig  `mapstructure:"compiler"`
	Preview   PreviewConfig   `mapstructure:"preview"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Share     ShareConfig     `mapstructure:"share"`
	Thumbnail ThumbnailConfig `mapstructure:"thumbnail"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// BaseURL is where the live renderer fetches sources from. Empty means
	// the server's own loopback address.
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig configures the Postgres store. An empty URL disables the
// profile and resume endpoints.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// SourcesConfig locates the typst templates and libraries.
type SourcesConfig struct {
	TemplatesDir string `mapstructure:"templates_dir"`
	LibrariesDir string `mapstructure:"libraries_dir"`
	RegistryFile string `mapstructure:"registry_file"`
	CacheSize    int    `mapstructure:"cache_size"`
	Watch        bool   `mapstructure:"watch"`
}

// CompilerConfig configures the typst CLI.
type CompilerConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PreviewConfig configures the live preview renderer and coordinators.
type PreviewConfig struct {
	Debounce    time.Duration `mapstructure:"debounce"`
	InitTimeout time.Duration `mapstructure:"init_timeout"`
	CacheSize   int           `mapstructure:"cache_size"`
}

// CacheConfig configures the compiled PDF cache. A RedisURL switches from
// the in-process LRU to Redis.
type CacheConfig struct {
	Capacity int           `mapstructure:"capacity"`
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ThumbnailConfig configures headless Chrome rasterization.
type ThumbnailConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	Width   int64         `mapstructure:"width"`
	Height  int64         `mapstructure:"height"`
}

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	Whitelist string        `mapstructure:"whitelist"`
	Blacklist string        `mapstructure:"blacklist"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.base_url", "")

	v.SetDefault("database.url", "")

	v.SetDefault("sources.templates_dir", "sources/templates")
	v.SetDefault("sources.libraries_dir", "sources/libraries")
	v.SetDefault("sources.registry_file", "")
	v.SetDefault("sources.cache_size", 64)
	v.SetDefault("sources.watch", false)

	v.SetDefault("compiler.binary", "typst")
	v.SetDefault("compiler.timeout", 30*time.Second)

	v.SetDefault("preview.debounce", time.Second)
	v.SetDefault("preview.init_timeout", 30*time.Second)
	v.SetDefault("preview.cache_size", 32)

	v.SetDefault("cache.capacity", 128)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("share.secret", "")
	v.SetDefault("share.expiration_hours", 24*7)

	v.SetDefault("thumbnail.enabled", false)
	v.SetDefault("thumbnail.timeout", 15*time.Second)
	v.SetDefault("thumbnail.width", 595)
	v.SetDefault("thumbnail.height", 842)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.limit", 100)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.whitelist", "")
	v.SetDefault("ratelimit.blacklist", "")
}

// Load reads configuration. path may be empty, in which case only
// environment variables and defaults apply. DATABASE_URL and REDIS_URL are
// honoured without the prefix.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}
	if err := v.BindEnv("cache.redis_url", EnvPrefix+"_CACHE_REDIS_URL", "REDIS_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind redis url: %w", err)
	}
	if err := v.BindEnv("share.secret", EnvPrefix+"_SHARE_SECRET", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind share secret: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and that the source directories exist.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Compiler.Binary == "" {
		errs = append(errs, errors.New("compiler.binary is required"))
	}
	if c.Compiler.Timeout <= 0 {
		errs = append(errs, errors.New("compiler.timeout must be positive"))
	}
	if c.Preview.Debounce < 0 {
		errs = append(errs, errors.New("preview.debounce must be non-negative"))
	}
	if c.Preview.InitTimeout <= 0 {
		errs = append(errs, errors.New("preview.init_timeout must be positive"))
	}
	if c.Sources.CacheSize < 1 || c.Preview.CacheSize < 1 || c.Cache.Capacity < 1 {
		errs = append(errs, errors.New("cache sizes must be at least 1"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Limit < 1 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("ratelimit.limit and ratelimit.window must be positive"))
	}
	if c.Thumbnail.Enabled && (c.Thumbnail.Width < 1 || c.Thumbnail.Height < 1) {
		errs = append(errs, errors.New("thumbnail dimensions must be positive"))
	}
	if c.Share.Secret != "" {
		if err := c.Share.normalize(); err != nil {
			errs = append(errs, err)
		}
	}

	for name, dir := range map[string]string{
		"sources.templates_dir": c.Sources.TemplatesDir,
		"sources.libraries_dir": c.Sources.LibrariesDir,
	} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			errs = append(errs, fmt.Errorf("%s is not a directory: %s", name, dir))
		}
	}
	if c.Sources.RegistryFile != "" {
		if _, err := os.Stat(c.Sources.RegistryFile); err != nil {
			errs = append(errs, fmt.Errorf("sources.registry_file not found: %s", c.Sources.RegistryFile))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config error: %w", errors.Join(errs...))
	}
	return nil
}

// SharingEnabled reports whether share links can be signed.
func (c *Config) SharingEnabled() bool {
	return c.Share.Secret != ""
}
