package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Deployment mode: "server", "local", "demo"
	Mode string `yaml:"mode"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Redis configuration (optional, org-config caching)
	Redis RedisConfig `yaml:"redis"`

	// Local cache configuration
	Cache CacheConfig `yaml:"cache"`

	// HTTP server configuration
	Server ServerConfig `yaml:"server"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite", "memory"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
	SeedFile    string `yaml:"seed_file"` // YAML fixture for memory mode
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ServerConfig struct {
	Addr           string  `yaml:"addr"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	Burst          int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Directory string `yaml:"directory"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode: "local",
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".pipehealth", "local.db"),
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    filepath.Join(homeDir, ".pipehealth", "cache.db"),
		},
		Server: ServerConfig{
			Addr:           ":8087",
			RequestsPerSec: 20,
			Burst:          40,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("redis", cfg.Redis)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("server", cfg.Server)
	v.SetDefault("logging", cfg.Logging)

	// Load from environment variables
	v.SetEnvPrefix("PIPEHEALTH")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".pipehealth")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".pipehealth"))
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".pipehealth", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
// Precedence for the Postgres DSN: env var, then OS keychain, then file.
func applyEnvOverrides(cfg *Config) {
	if mode := os.Getenv("PIPEHEALTH_MODE"); mode != "" {
		cfg.Mode = mode
	}

	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	} else if cfg.Storage.PostgresDSN == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if dsn, err := km.GetPostgresDSN(); err == nil && dsn != "" {
				cfg.Storage.PostgresDSN = dsn
			}
		}
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}
	if seed := os.Getenv("SEED_FILE"); seed != "" {
		cfg.Storage.SeedFile = expandPath(seed)
	}

	// Redis configuration
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
		cfg.Redis.Enabled = true
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Redis.Port = p
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// Local cache configuration
	if path := os.Getenv("CACHE_PATH"); path != "" {
		cfg.Cache.Path = expandPath(path)
	}
	if enabled := os.Getenv("CACHE_ENABLED"); enabled != "" {
		cfg.Cache.Enabled = enabled == "true"
	}

	// Server configuration
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if rps := os.Getenv("SERVER_REQUESTS_PER_SEC"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.Server.RequestsPerSec = v
		}
	}
	if burst := os.Getenv("SERVER_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.Server.Burst = v
		}
	}

	// Logging configuration
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if dir := os.Getenv("LOG_DIRECTORY"); dir != "" {
		cfg.Logging.Directory = expandPath(dir)
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("mode", c.Mode)
	v.Set("storage", c.Storage)
	v.Set("redis", c.Redis)
	v.Set("cache", c.Cache)
	v.Set("server", c.Server)
	v.Set("logging", c.Logging)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
