package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/cantonhealth/internal/dashboard"
	"github.com/gyeh/cantonhealth/internal/pipeline"
	"github.com/gyeh/cantonhealth/internal/source"
)

// Environment variables read by LoadEnv.
const (
	EnvPopulation = "CANTONMAP_POPULATION"
	EnvFacilities = "CANTONMAP_FACILITIES"
	EnvBoundaries = "CANTONMAP_BOUNDARIES"
	EnvDSN        = "DATABASE_URL"
	EnvPort       = "PORT"
)

const defaultListenAddr = ":8080"

// Config holds all runtime configuration for a cantonmap run.
// Precedence is flags, then environment, then the YAML file, then defaults.
type Config struct {
	DSN        string
	Population string
	Facilities string
	Boundaries string
	LogFormat  string // "text" or "json"
	LogLevel   string

	ListenAddr          string
	SaturationThreshold float64
	CacheTTL            time.Duration
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	Sources struct {
		Population string `yaml:"population"`
		Facilities string `yaml:"facilities"`
		Boundaries string `yaml:"boundaries"`
	} `yaml:"sources"`
	Serve struct {
		Addr string `yaml:"addr"`
	} `yaml:"serve"`
	SaturationThreshold float64 `yaml:"saturation_threshold"`
	CacheTTL            string  `yaml:"cache_ttl"`
}

// LoadFromFile reads a YAML config file and fills fields not already set.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setIfEmpty(&c.Population, yc.Sources.Population)
	setIfEmpty(&c.Facilities, yc.Sources.Facilities)
	setIfEmpty(&c.Boundaries, yc.Sources.Boundaries)
	setIfEmpty(&c.ListenAddr, yc.Serve.Addr)
	if c.SaturationThreshold == 0 {
		c.SaturationThreshold = yc.SaturationThreshold
	}
	if c.CacheTTL == 0 && yc.CacheTTL != "" {
		ttl, err := time.ParseDuration(yc.CacheTTL)
		if err != nil {
			return fmt.Errorf("parse cache_ttl: %w", err)
		}
		c.CacheTTL = ttl
	}
	return nil
}

// Load layers the environment and then the optional YAML file at path over
// values already set from flags, then applies defaults. Each layer only
// fills fields the layers above it left empty.
func (c *Config) Load(path string) error {
	c.LoadEnv()
	if path != "" {
		if err := c.LoadFromFile(path); err != nil {
			return err
		}
	}
	c.ApplyDefaults()
	return nil
}

// LoadEnv reads an optional .env file and fills fields not already set
// from the environment.
func (c *Config) LoadEnv() {
	_ = godotenv.Load() // ignore missing file

	setIfEmpty(&c.Population, os.Getenv(EnvPopulation))
	setIfEmpty(&c.Facilities, os.Getenv(EnvFacilities))
	setIfEmpty(&c.Boundaries, os.Getenv(EnvBoundaries))
	setIfEmpty(&c.DSN, os.Getenv(EnvDSN))
	if port := os.Getenv(EnvPort); port != "" {
		setIfEmpty(&c.ListenAddr, ":"+port)
	}
}

// ApplyDefaults fills remaining zero values.
func (c *Config) ApplyDefaults() {
	setIfEmpty(&c.ListenAddr, defaultListenAddr)
	setIfEmpty(&c.LogFormat, "text")
	setIfEmpty(&c.LogLevel, "info")
	if c.SaturationThreshold == 0 {
		c.SaturationThreshold = dashboard.DefaultThreshold
	}
}

func setIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// Sources returns the configured pipeline sources.
func (c *Config) Sources() pipeline.Sources {
	return pipeline.Sources{
		Population: c.Population,
		Facilities: c.Facilities,
		Boundaries: c.Boundaries,
	}
}

// NeedsDSN reports whether any source is a staged postgres layer.
func (c *Config) NeedsDSN() bool {
	for _, ref := range []string{c.Population, c.Facilities, c.Boundaries} {
		if strings.HasPrefix(ref, source.PostgresPrefix) {
			return true
		}
	}
	return false
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	for _, s := range []struct{ flag, ref string }{
		{"--population", c.Population},
		{"--facilities", c.Facilities},
		{"--boundaries", c.Boundaries},
	} {
		if s.ref == "" {
			return fmt.Errorf("%s is required", s.flag)
		}
		if _, err := source.DetectFormat(s.ref); err != nil {
			return err
		}
		if source.IsFile(s.ref) {
			if _, err := os.Stat(s.ref); err != nil {
				return fmt.Errorf("file not accessible: %w", err)
			}
		}
	}
	if c.NeedsDSN() && c.DSN == "" {
		return fmt.Errorf("--dsn or %s is required for postgres sources", EnvDSN)
	}
	if c.SaturationThreshold != 0 {
		if err := dashboard.ValidateThreshold(c.SaturationThreshold); err != nil {
			return err
		}
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	return nil
}

// ValidateDSN checks that a database connection string is set.
func (c *Config) ValidateDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or %s is required", EnvDSN)
	}
	return nil
}
