package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// IMAPConfig holds the mailbox connection settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`

	// Password is optional here; when empty it is resolved from the
	// OS keyring or the PASSWORD environment variable. It is treated
	// as opaque and never logged.
	Password string `mapstructure:"password" yaml:"password"`

	// TimeoutSec bounds the dial and TLS handshake.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// VendorConfig holds per-retailer scrape settings.
type VendorConfig struct {
	// Folder is the mailbox folder/label searched for this vendor.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// Limit caps how many messages are fetched per scrape (most
	// recent first). Zero means no cap.
	Limit int `mapstructure:"limit" yaml:"limit"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// StoreConfig holds the scrape-history database settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP          IMAPConfig              `mapstructure:"imap" yaml:"imap"`
	Vendors       map[string]VendorConfig `mapstructure:"vendors" yaml:"vendors"`
	DefaultVendor string                  `mapstructure:"default_vendor" yaml:"default_vendor"`
	Server        ServerConfig            `mapstructure:"server" yaml:"server"`
	Store         StoreConfig             `mapstructure:"store" yaml:"store"`

	// SortBy selects the ordering of scrape results:
	// "first_seen" (mailbox order) or "order_number".
	SortBy string `mapstructure:"sort_by" yaml:"sort_by"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/orderwatch/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "orderwatch", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		IMAP: IMAPConfig{
			Host:       "imap.gmail.com",
			Port:       993,
			TimeoutSec: 30,
		},
		Vendors: map[string]VendorConfig{
			"costco": {Folder: "INBOX"},
			"topps":  {Folder: "INBOX"},
		},
		DefaultVendor: "costco",
		Server:        ServerConfig{Addr: ":5000"},
		Store:         StoreConfig{Path: defaultStorePath()},
		SortBy:        "first_seen",
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "orderwatch.db")
	}
	return filepath.Join(home, ".config", "orderwatch", "orderwatch.db")
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. Missing files resolve to the default configuration, and the
// EMAIL / PASSWORD / IMAP_HOST / IMAP_PORT environment variables
// override the corresponding mailbox settings.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.timeout_sec", 30)
	v.SetDefault("default_vendor", "costco")
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("store.path", defaultStorePath())
	v.SetDefault("sort_by", "first_seen")

	_ = v.BindEnv("imap.host", "IMAP_HOST")
	_ = v.BindEnv("imap.port", "IMAP_PORT")
	_ = v.BindEnv("imap.username", "EMAIL")
	_ = v.BindEnv("imap.password", "PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return configFromEnv(v), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return configFromEnv(v), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.Vendors) == 0 {
		cfg.Vendors = defaultAppConfig().Vendors
	}

	return cfg, nil
}

// configFromEnv builds a config from defaults plus any bound
// environment variables when no config file exists.
func configFromEnv(v *viper.Viper) *AppConfig {
	cfg := defaultAppConfig()
	cfg.IMAP.Host = v.GetString("imap.host")
	cfg.IMAP.Port = v.GetInt("imap.port")
	cfg.IMAP.Username = v.GetString("imap.username")
	cfg.IMAP.Password = v.GetString("imap.password")
	return cfg
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("imap", cfg.IMAP)
	v.Set("vendors", cfg.Vendors)
	v.Set("default_vendor", cfg.DefaultVendor)
	v.Set("server", cfg.Server)
	v.Set("store", cfg.Store)
	v.Set("sort_by", cfg.SortBy)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
