package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"geoprobe/internal/support"
)

const (
	ProviderHTTP    = "http"
	ProviderGeoLite = "geolite"

	SourceFile     = "file"
	SourceHTTP     = "http"
	SourceRedis    = "redis"
	SourceDatabase = "database"
)

type Config struct {
	Generator GeneratorConfig `json:"generator"`
	Lookup    LookupConfig    `json:"lookup"`
	Source    SourceConfig    `json:"source"`
}

type GeneratorConfig struct {
	DefaultCount int `json:"default_count"`
	MaxCount     int `json:"max_count"`
	MaxAttempts  int `json:"max_attempts"` // 0 derives the cap from the requested count
}

type LookupConfig struct {
	Provider    string `json:"provider"`
	Endpoint    string `json:"endpoint"`
	UserAgent   string `json:"user_agent"`
	TimeoutMs   uint32 `json:"timeout_ms"` // 0 keeps the transport default
	Proxy       string `json:"proxy"`
	Concurrency int    `json:"concurrency"` // 0 resolves the whole batch at once

	GeoLiteCountryPath  string `json:"geolite_country_path"`
	GeoLiteASNPath      string `json:"geolite_asn_path"`
	GeoLiteLicenseKey   string `json:"geolite_license_key"`   // MaxMind key for downloading missing databases
	GeoLiteRefreshHours int    `json:"geolite_refresh_hours"` // 0 disables scheduled refreshes while serving
}

type SourceConfig struct {
	Kind     string `json:"kind"`
	Path     string `json:"path"`
	URL      string `json:"url"`
	RedisKey string `json:"redis_key"`
}

// RefreshInterval converts GeoLiteRefreshHours into a duration.
func (c LookupConfig) RefreshInterval() time.Duration {
	return time.Duration(c.GeoLiteRefreshHours) * time.Hour
}

// Timeout converts TimeoutMs into a duration.
func (c LookupConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue      atomic.Value
	configMu         sync.Mutex
	settingsFilePath = "data/settings.json"

	InProductionMode bool
)

func init() {
	cfg, err := DefaultConfig()
	if err != nil {
		cfg = Config{}
	}
	configValue.Store(cfg)
}

// DefaultConfig returns the embedded default settings.
func DefaultConfig() (Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse embedded defaults: %w", err)
	}
	return cfg, nil
}

func SetSettingsPath(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	configMu.Lock()
	settingsFilePath = path
	configMu.Unlock()
}

func settingsPath() string {
	configMu.Lock()
	defer configMu.Unlock()
	return settingsFilePath
}

// ReadSettings loads the settings file, creating it from the embedded defaults
// when missing, then applies environment overrides.
func ReadSettings() error {
	path := settingsPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("config: read %s: %w", path, err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("config: create settings dir: %w", err)
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return fmt.Errorf("config: write default settings: %w", err)
		}
		data = defaultConfig
	}

	newConfig, err := DefaultConfig()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &newConfig); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyEnvOverrides(&newConfig)

	if err := newConfig.Validate(); err != nil {
		return err
	}

	configValue.Store(newConfig)
	log.Debug("Settings file loaded successfully", "path", path)
	return nil
}

// SetConfig validates, stores and persists a new configuration.
func SetConfig(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)

	data, err := json.MarshalIndent(newConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal settings: %w", err)
	}
	if err := os.WriteFile(settingsFilePath, data, 0o644); err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}

	log.Debug("Configuration updated and written to file", "path", settingsFilePath)
	return nil
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

func SetProductionMode(productionMode bool) {
	InProductionMode = productionMode
}

func applyEnvOverrides(cfg *Config) {
	cfg.Lookup.Provider = support.GetEnv("GEOPROBE_LOOKUP_PROVIDER", cfg.Lookup.Provider)
	cfg.Lookup.Endpoint = support.GetEnv("GEOPROBE_LOOKUP_URL", cfg.Lookup.Endpoint)
	cfg.Lookup.Proxy = support.GetEnv("GEOPROBE_LOOKUP_PROXY", cfg.Lookup.Proxy)
	cfg.Lookup.Concurrency = support.GetEnvInt("GEOPROBE_LOOKUP_CONCURRENCY", cfg.Lookup.Concurrency)
	cfg.Lookup.GeoLiteLicenseKey = support.GetEnv("GEOPROBE_MAXMIND_LICENSE_KEY", cfg.Lookup.GeoLiteLicenseKey)
	cfg.Source.Kind = support.GetEnv("GEOPROBE_SOURCE_KIND", cfg.Source.Kind)
	cfg.Source.Path = support.GetEnv("GEOPROBE_SOURCE_PATH", cfg.Source.Path)
	cfg.Source.URL = support.GetEnv("GEOPROBE_SOURCE_URL", cfg.Source.URL)
	cfg.Source.RedisKey = support.GetEnv("GEOPROBE_REDIS_KEY", cfg.Source.RedisKey)
}

func (c Config) Validate() error {
	var errs []error

	if c.Generator.DefaultCount <= 0 {
		errs = append(errs, errors.New("generator.default_count must be positive"))
	}
	if c.Generator.MaxCount < c.Generator.DefaultCount {
		errs = append(errs, errors.New("generator.max_count must be at least generator.default_count"))
	}
	if c.Generator.MaxAttempts < 0 {
		errs = append(errs, errors.New("generator.max_attempts must not be negative"))
	}
	if c.Lookup.Concurrency < 0 {
		errs = append(errs, errors.New("lookup.concurrency must not be negative"))
	}
	if c.Lookup.GeoLiteRefreshHours < 0 {
		errs = append(errs, errors.New("lookup.geolite_refresh_hours must not be negative"))
	}

	switch c.Lookup.Provider {
	case ProviderHTTP:
		if _, err := url.ParseRequestURI(c.Lookup.Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("lookup.endpoint: %w", err))
		}
	case ProviderGeoLite:
		if c.Lookup.GeoLiteCountryPath == "" || c.Lookup.GeoLiteASNPath == "" {
			errs = append(errs, errors.New("lookup: geolite provider needs both database paths"))
		}
	default:
		errs = append(errs, fmt.Errorf("lookup.provider %q is not supported", c.Lookup.Provider))
	}

	if c.Lookup.Proxy != "" {
		if _, err := url.Parse(c.Lookup.Proxy); err != nil {
			errs = append(errs, fmt.Errorf("lookup.proxy: %w", err))
		}
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			errs = append(errs, errors.New("source.path is required for file sources"))
		}
	case SourceHTTP:
		if _, err := url.ParseRequestURI(c.Source.URL); err != nil {
			errs = append(errs, fmt.Errorf("source.url: %w", err))
		}
	case SourceRedis:
		if c.Source.RedisKey == "" {
			errs = append(errs, errors.New("source.redis_key is required for redis sources"))
		}
	case SourceDatabase:
	default:
		errs = append(errs, fmt.Errorf("source.kind %q is not supported", c.Source.Kind))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid settings: %w", errors.Join(errs...))
	}
	return nil
}
