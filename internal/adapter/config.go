package adapter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StorageDriver selects the durable backend
type StorageDriver string

const (
	StorageBolt   StorageDriver = "bolt"
	StorageSQLite StorageDriver = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Drafts  DraftsConfig  `mapstructure:"drafts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig holds the durable store location
type StorageConfig struct {
	Driver StorageDriver `mapstructure:"driver"` // "bolt" or "sqlite"
	Path   string        `mapstructure:"path"`   // directory holding the database file
}

// CacheConfig holds the in-memory playlist cache settings
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	Capacity      int           `mapstructure:"capacity"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type SyncConfig struct {
	BatchSize int `mapstructure:"batch_size"` // concurrent syncs per batch
}

// DraftsConfig controls how long removed versions keep their notes
type DraftsConfig struct {
	PreservationWindow time.Duration `mapstructure:"preservation_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: StorageBolt,
			Path:   defaultDataPath(),
		},
		Cache: CacheConfig{
			TTL:           5 * time.Minute,
			Capacity:      50,
			SweepInterval: time.Minute,
		},
		Sync: SyncConfig{
			BatchSize: 3,
		},
		Drafts: DraftsConfig{
			PreservationWindow: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			File:       filepath.Join(defaultDataPath(), "reviewnotes.log"),
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// defaultDataPath returns the default data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reviewnotes")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "reviewnotes")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "reviewnotes")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "reviewnotes")
	}
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom loads configuration from file (or the default search path
// when file is empty) with REVIEWNOTES_* environment overrides.
func LoadConfigFrom(file string) (*Config, error) {
	cfg := DefaultConfig()
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. REVIEWNOTES_STORAGE_DRIVER
	v.SetEnvPrefix("REVIEWNOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys that
// are absent from the config file.
func bindDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.driver", string(cfg.Storage.Driver))
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.capacity", cfg.Cache.Capacity)
	v.SetDefault("cache.sweep_interval", cfg.Cache.SweepInterval)
	v.SetDefault("sync.batch_size", cfg.Sync.BatchSize)
	v.SetDefault("drafts.preservation_window", cfg.Drafts.PreservationWindow)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
}

// Validate rejects settings the store cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageBolt, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Path == "" {
		return errors.New("storage path is required")
	}
	if c.Cache.TTL <= 0 || c.Cache.Capacity <= 0 {
		return errors.New("cache ttl and capacity must be positive")
	}
	if c.Sync.BatchSize <= 0 {
		return errors.New("sync batch size must be positive")
	}
	return nil
}

// SaveConfig writes cfg to file, or to the default location when file is empty
func SaveConfig(cfg *Config, file string) error {
	if file == "" {
		file = filepath.Join(defaultConfigPath(), "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.Set("storage.driver", string(cfg.Storage.Driver))
	v.Set("storage.path", cfg.Storage.Path)
	v.Set("cache.ttl", cfg.Cache.TTL.String())
	v.Set("cache.capacity", cfg.Cache.Capacity)
	v.Set("cache.sweep_interval", cfg.Cache.SweepInterval.String())
	v.Set("sync.batch_size", cfg.Sync.BatchSize)
	v.Set("drafts.preservation_window", cfg.Drafts.PreservationWindow.String())
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.Set("logging.max_backups", cfg.Logging.MaxBackups)
	v.Set("logging.max_age_days", cfg.Logging.MaxAgeDays)

	if err := v.WriteConfigAs(file); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandHome replaces a leading ~ with the user's home directory
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// StoragePath returns the storage path with ~ expanded
func (c *Config) StoragePath() (string, error) {
	return expandHome(c.Storage.Path)
}
