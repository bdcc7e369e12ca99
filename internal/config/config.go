// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quizzicalbeats/quizzicalbeats/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Sources     SourcesConfig     `yaml:"sources"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Genres      GenresConfig      `yaml:"genres"`
	Backup      BackupConfig      `yaml:"backup"`
	Logging     logging.Config    `yaml:"logging"`
}

// BackupConfig holds database snapshot settings. An empty Dir defaults to
// a "backups" directory next to the database file.
type BackupConfig struct {
	Dir        string `yaml:"dir"`
	Retention  int    `yaml:"retention"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourcesConfig holds catalog service credentials. Sources with missing
// credentials report ErrAuthRequired and are skipped per lookup.
type SourcesConfig struct {
	ACRCloud ACRCloudConfig `yaml:"acrcloud"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	LastFM   LastFMConfig   `yaml:"lastfm"`
	Oracle   OracleConfig   `yaml:"oracle"`
}

// ACRCloudConfig holds the ACRCloud metadata API token.
type ACRCloudConfig struct {
	Token string `yaml:"token"`
}

// SpotifyConfig holds Spotify client-credentials settings.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// LastFMConfig holds the Last.fm API key.
type LastFMConfig struct {
	APIKey string `yaml:"api_key"`
}

// OracleConfig holds settings for the LLM oracle source.
type OracleConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// AggregationConfig holds lookup timing settings.
type AggregationConfig struct {
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

// GenresConfig points at the external genre translation table.
type GenresConfig struct {
	TranslationPath string `yaml:"translation_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/quizzicalbeats.db",
		},
		Aggregation: AggregationConfig{
			SourceTimeout: 10 * time.Second,
		},
		Backup: BackupConfig{
			Retention:  7,
			MaxAgeDays: 30,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("QB_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("QB_ACRCLOUD_TOKEN"); v != "" {
		c.Sources.ACRCloud.Token = v
	}
	if v := os.Getenv("QB_SPOTIFY_CLIENT_ID"); v != "" {
		c.Sources.Spotify.ClientID = v
	}
	if v := os.Getenv("QB_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Sources.Spotify.ClientSecret = v
	}
	if v := os.Getenv("QB_LASTFM_API_KEY"); v != "" {
		c.Sources.LastFM.APIKey = v
	}
	if v := os.Getenv("QB_ORACLE_ENDPOINT"); v != "" {
		c.Sources.Oracle.Endpoint = v
	}
	if v := os.Getenv("QB_ORACLE_API_KEY"); v != "" {
		c.Sources.Oracle.APIKey = v
	}
	if v := os.Getenv("QB_ORACLE_MODEL"); v != "" {
		c.Sources.Oracle.Model = v
	}
	if v := os.Getenv("QB_GENRE_TRANSLATION_PATH"); v != "" {
		c.Genres.TranslationPath = v
	}
	if v := os.Getenv("QB_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
	if v := os.Getenv("QB_SOURCE_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Aggregation.SourceTimeout = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("QB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QB_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("QB_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Aggregation.SourceTimeout <= 0 {
		c.Aggregation.SourceTimeout = 10 * time.Second
	}
	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}
