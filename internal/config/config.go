// Package config loads service configuration. Environment variables win;
// an optional YAML file (CONFIG_FILE) supplies defaults, and a .env file
// in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Record store selection: Postgres DSN, remote record API base URL,
	// or neither (in-memory).
	DatabaseURL    string `yaml:"databaseUrl"`
	RecordStoreURL string `yaml:"recordStoreUrl"`

	RedisURL string `yaml:"redisUrl"`

	GeocoderURL    string `yaml:"geocoderUrl"`
	GeocoderAPIKey string `yaml:"geocoderApiKey"`

	DefaultZoneRadiusKm float64 `yaml:"defaultZoneRadiusKm"`
	GeocodeConcurrency  int     `yaml:"geocodeConcurrency"`
}

// Load reads the optional .env file, then the optional YAML file named by
// CONFIG_FILE, then overlays environment variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:                "8080",
		DefaultZoneRadiusKm: 2,
		GeocodeConcurrency:  8,
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	overlayString(&cfg.Port, "PORT")
	overlayString(&cfg.DatabaseURL, "DATABASE_URL")
	overlayString(&cfg.RecordStoreURL, "RECORD_STORE_URL")
	overlayString(&cfg.RedisURL, "REDIS_URL")
	overlayString(&cfg.GeocoderURL, "GEOCODER_URL")
	overlayString(&cfg.GeocoderAPIKey, "GEOCODER_API_KEY")
	if v := os.Getenv("DEFAULT_ZONE_RADIUS_KM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Config{}, fmt.Errorf("invalid DEFAULT_ZONE_RADIUS_KM %q", v)
		}
		cfg.DefaultZoneRadiusKm = f
	}
	if v := os.Getenv("GEOCODE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid GEOCODE_CONCURRENCY %q", v)
		}
		cfg.GeocodeConcurrency = n
	}
	return cfg, nil
}

// ListenAddr returns the http.Server listen address for the configured
// port, falling back to 8080 when unset.
func (c Config) ListenAddr() string {
	if c.Port == "" {
		return ":8080"
	}
	return ":" + c.Port
}

func overlayString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
