package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Sync          SyncConfig          `mapstructure:"sync"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains relational store settings
type DatabaseConfig struct {
	Path    string `mapstructure:"path"`
	Timeout int    `mapstructure:"timeout"` // in seconds
}

// ElasticsearchConfig contains search cluster settings
type ElasticsearchConfig struct {
	URI           string `mapstructure:"uri"`
	Index         string `mapstructure:"index"`
	MetadataIndex string `mapstructure:"metadata_index"`
	Sniff         bool   `mapstructure:"sniff"`
}

// SyncConfig contains synchronizer settings
type SyncConfig struct {
	BatchSize         int    `mapstructure:"batch_size"`
	BatchPauseMs      int    `mapstructure:"batch_pause_ms"`
	LookbackHours     int    `mapstructure:"lookback_hours"`
	FailureSampleSize int    `mapstructure:"failure_sample_size"`
	IncrementalCron   string `mapstructure:"incremental_cron"`
	FullDailyCron     string `mapstructure:"full_daily_cron"`
	FullWeeklyCron    string `mapstructure:"full_weekly_cron"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/catalog-search-sync")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("CSS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.path", "./catalog.db")
	viper.SetDefault("database.timeout", 30)
	viper.SetDefault("elasticsearch.uri", "http://localhost:9200")
	viper.SetDefault("elasticsearch.index", "products")
	viper.SetDefault("elasticsearch.metadata_index", "sync_metadata")
	viper.SetDefault("elasticsearch.sniff", false)
	viper.SetDefault("sync.batch_size", 1000)
	viper.SetDefault("sync.batch_pause_ms", 100)
	viper.SetDefault("sync.lookback_hours", 24)
	viper.SetDefault("sync.failure_sample_size", 5)
	viper.SetDefault("sync.incremental_cron", "*/5 * * * *")
	viper.SetDefault("sync.full_daily_cron", "0 2 * * *")
	viper.SetDefault("sync.full_weekly_cron", "0 3 * * 0")
}

// BatchPause returns the pause applied between bulk batches
func (c *SyncConfig) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMs) * time.Millisecond
}

// Lookback returns the default watermark lookback window
func (c *SyncConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}
