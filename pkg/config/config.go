// Package config loads ecodash configuration from a YAML file, a .env file
// and ECODASH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort         = errors.New("invalid server port")
	ErrInvalidCacheSize    = errors.New("cache size must be positive")
	ErrInvalidCloneTimeout = errors.New("clone timeout must be positive")
	ErrInvalidRateLimit    = errors.New("github rate limit must be positive")
	ErrInvalidLogFormat    = errors.New("log format must be text or json")
)

// Default configuration values.
const (
	DefaultDataDir    = "data"
	DefaultExportPath = "projects.json"
	DefaultRepoDir    = "repos"
	DefaultDatasetURL = "https://github.com/electric-capital/crypto-ecosystems.git"
	DefaultFrequency  = "1 month"

	defaultPort      = 8080
	defaultHost      = "127.0.0.1"
	defaultCacheSize = 100
	defaultRateLimit = 10.0
	maxPort          = 65535
	envPrefix        = "ECODASH"
	dotEnvFile       = ".env"
)

// Config holds all configuration for ecodash.
type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Repository RepositoryConfig `mapstructure:"repository"`
	Stats      StatsConfig      `mapstructure:"stats"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Server     ServerConfig     `mapstructure:"server"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// PathsConfig holds on-disk locations.
type PathsConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	ExportPath string `mapstructure:"export_path"`
	RepoDir    string `mapstructure:"repo_dir"`
}

// DatasetConfig holds the ecosystem dataset source.
type DatasetConfig struct {
	URL string `mapstructure:"url"`
}

// CacheConfig holds memo cache capacities.
type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// RepositoryConfig holds clone and walk settings.
type RepositoryConfig struct {
	CloneTimeout time.Duration `mapstructure:"clone_timeout"`
	AllBranches  bool          `mapstructure:"all_branches"`
}

// StatsConfig holds aggregation defaults.
type StatsConfig struct {
	Frequency string `mapstructure:"frequency"`
}

// GitHubConfig holds API client settings.
type GitHubConfig struct {
	Token     string  `mapstructure:"token"`
	RateLimit float64 `mapstructure:"rate_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds dashboard server settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// legacyEnv are the unprefixed variables older deployments set.
var legacyEnv = map[string]string{
	"paths.data_dir":    "LOCAL_ECOSYSTEM_DIR",
	"paths.export_path": "EXPORT_PATH",
	"paths.repo_dir":    "REPO_PATH",
	"github.token":      "GITHUB_TOKEN",
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is applied first; it never
// overrides variables that are already set.
func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load(dotEnvFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", dotEnvFile, err)
	}

	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("ecodash")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("$HOME/.config/ecodash")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, legacy := range legacyEnv {
		bindErr := viperCfg.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
		if bindErr != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, bindErr)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("paths.data_dir", DefaultDataDir)
	viperCfg.SetDefault("paths.export_path", DefaultExportPath)
	viperCfg.SetDefault("paths.repo_dir", DefaultRepoDir)

	viperCfg.SetDefault("dataset.url", DefaultDatasetURL)

	viperCfg.SetDefault("cache.size", defaultCacheSize)

	viperCfg.SetDefault("repository.clone_timeout", "10m")
	viperCfg.SetDefault("repository.all_branches", false)

	viperCfg.SetDefault("stats.frequency", DefaultFrequency)

	viperCfg.SetDefault("github.token", "")
	viperCfg.SetDefault("github.rate_limit", defaultRateLimit)

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.port", defaultPort)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Cache.Size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, config.Cache.Size)
	}

	if config.Repository.CloneTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidCloneTimeout, config.Repository.CloneTimeout)
	}

	if config.GitHub.RateLimit <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRateLimit, config.GitHub.RateLimit)
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	return nil
}
