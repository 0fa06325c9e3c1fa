// Package config loads the backend configuration from an optional file,
// a .env file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ServerConfig holds the listen addresses and request handling knobs.
type ServerConfig struct {
	Addr           string `json:"addr"`
	MonitoringAddr string `json:"monitoringAddr"`
	Debug          bool   `json:"debug"`
	UserAgent      string `json:"userAgent"`
	// Coordinates assumed when a request carries none.
	DefaultLat float64 `json:"defaultLat"`
	DefaultLon float64 `json:"defaultLon"`
}

// KeysConfig holds the provider API keys. Any key may be empty; the
// matching provider then serves fallback payloads.
type KeysConfig struct {
	WeatherAPI  string `json:"weatherapi"`
	TomTom      string `json:"tomtom"`
	OpenWeather string `json:"openweather"`
	Transitland string `json:"transitland"`
	GoogleMaps  string `json:"googleMaps"`
	Gemini      string `json:"gemini"`
}

// RateLimitConfig is a per-provider token bucket setting.
type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

// CacheConfig holds per-provider cache TTLs in seconds.
type CacheConfig struct {
	WeatherTTL    int `json:"weatherTtl"`
	TrafficTTL    int `json:"trafficTtl"`
	AirQualityTTL int `json:"airQualityTtl"`
	TransitTTL    int `json:"transitTtl"`
}

// RegistryConfig configures optional registration with a service registry.
type RegistryConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	Name     string `json:"name"`
}

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig               `json:"server"`
	Keys       KeysConfig                 `json:"keys"`
	RateLimits map[string]RateLimitConfig `json:"rateLimits"`
	Cache      CacheConfig                `json:"cache"`
	Registry   RegistryConfig             `json:"registry"`
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.MonitoringAddr == "" {
		c.Server.MonitoringAddr = ":9090"
	}
	if c.Server.UserAgent == "" {
		c.Server.UserAgent = "ecoroute/1.0"
	}
	if c.Server.DefaultLat == 0 && c.Server.DefaultLon == 0 {
		c.Server.DefaultLat = 17.3850
		c.Server.DefaultLon = 78.4867
	}
	if c.Cache.WeatherTTL == 0 {
		c.Cache.WeatherTTL = 300
	}
	if c.Cache.TrafficTTL == 0 {
		c.Cache.TrafficTTL = 120
	}
	if c.Cache.AirQualityTTL == 0 {
		c.Cache.AirQualityTTL = 600
	}
	if c.Cache.TransitTTL == 0 {
		c.Cache.TransitTTL = 1800
	}
	if c.Registry.Name == "" {
		c.Registry.Name = "ecoroute"
	}
}

// Validate checks the loaded configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Addr == c.Server.MonitoringAddr {
		return fmt.Errorf("api and monitoring listeners share address %s", c.Server.Addr)
	}
	for service, rl := range c.RateLimits {
		if rl.RPS <= 0 || rl.Burst <= 0 {
			return fmt.Errorf("rate limit for %s must be positive, got %v/%d", service, rl.RPS, rl.Burst)
		}
	}
	return nil
}

// Load reads configuration from an optional config file, then applies
// environment overrides. path may be empty, in which case only defaults
// and the environment apply. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}

	// ECOROUTE_SERVER__ADDR overrides server.addr, and so on.
	if err := k.Load(env.Provider("ECOROUTE_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ecoroute_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}

	cfg.applyKeyEnv()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyKeyEnv honors the plain provider key variables most deployments
// already set, without requiring the prefixed form.
func (c *Config) applyKeyEnv() {
	overrides := []struct {
		envVar string
		target *string
	}{
		{"WEATHERAPI_KEY", &c.Keys.WeatherAPI},
		{"TOMTOM_API_KEY", &c.Keys.TomTom},
		{"OPENWEATHER_API_KEY", &c.Keys.OpenWeather},
		{"TRANSITLAND_API_KEY", &c.Keys.Transitland},
		{"GOOGLE_MAPS_API_KEY", &c.Keys.GoogleMaps},
		{"GEMINI_API_KEY", &c.Keys.Gemini},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.envVar); v != "" {
			*o.target = v
		}
	}
}
