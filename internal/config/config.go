package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/box-simulator/internal/packer"
	"github.com/eugenenazirov/box-simulator/internal/sheet"
	"github.com/eugenenazirov/box-simulator/internal/storage"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultMaxUploadBytes = 32 << 20
	defaultRunRetention   = 50
	defaultSQLiteDSN      = "box-simulator.db?_journal_mode=WAL&_busy_timeout=5000"
)

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	LogLevel             string
	RateLimitRPS         float64
	RateLimitBurst       int

	// Limits are the default box limits used when a request omits them.
	Limits               packer.Limits
	IgnoreArm            bool
	ConvertPackageToUnit bool

	SheetName      string
	CSVEncoding    string
	MaxUploadBytes int64

	StorageDriver string
	SQLiteDSN     string
	RunRetention  int
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string         `yaml:"port"`
	ShutdownGracePeriod  string         `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string         `yaml:"read_header_timeout"`
	WriteTimeout         string         `yaml:"write_timeout"`
	IdleTimeout          string         `yaml:"idle_timeout"`
	EnableRequestLogging *bool          `yaml:"enable_request_logging"`
	LogLevel             string         `yaml:"log_level"`
	RateLimit            *yamlRateLimit `yaml:"rate_limit"`
	Box                  yamlBox        `yaml:"box"`
	Input                yamlInput      `yaml:"input"`
	Storage              yamlStorage    `yaml:"storage"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type yamlBox struct {
	VolumeMax            float64 `yaml:"volume_max"`
	WeightMax            float64 `yaml:"weight_max"`
	IgnoreArm            *bool   `yaml:"ignore_arm"`
	ConvertPackageToUnit *bool   `yaml:"convert_package_to_unit"`
}

type yamlInput struct {
	Sheet          string `yaml:"sheet"`
	CSVEncoding    string `yaml:"csv_encoding"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

type yamlStorage struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	RunRetention int    `yaml:"run_retention"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile           string
	Port                 *string
	LogLevel             *string
	RateLimitRPS         *float64
	RateLimitBurst       *int
	VolumeMax            *float64
	WeightMax            *float64
	IgnoreArm            *bool
	ConvertPackageToUnit *bool
	StorageDriver        *string
	SQLiteDSN            *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Load from YAML file if specified
	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		applyYAMLConfig(&cfg, yamlCfg)
	}

	// Apply environment variables (override YAML)
	applyEnvConfig(&cfg)

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         60 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		LogLevel:             "info",
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		Limits:               storage.DefaultLimits(),
		SheetName:            sheet.DefaultSheet,
		CSVEncoding:          "utf-8",
		MaxUploadBytes:       defaultMaxUploadBytes,
		StorageDriver:        StorageMemory,
		SQLiteDSN:            defaultSQLiteDSN,
		RunRetention:         defaultRunRetention,
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	setDuration(&cfg.ShutdownGracePeriod, yamlCfg.ShutdownGracePeriod)
	setDuration(&cfg.ReadHeaderTimeout, yamlCfg.ReadHeaderTimeout)
	setDuration(&cfg.WriteTimeout, yamlCfg.WriteTimeout)
	setDuration(&cfg.IdleTimeout, yamlCfg.IdleTimeout)

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}

	if rl := yamlCfg.RateLimit; rl != nil {
		if rl.RPS >= 0 {
			cfg.RateLimitRPS = rl.RPS
		}
		if rl.Burst >= 0 {
			cfg.RateLimitBurst = rl.Burst
		}
	}

	if yamlCfg.Box.VolumeMax != 0 {
		cfg.Limits.VolumeMax = yamlCfg.Box.VolumeMax
	}
	if yamlCfg.Box.WeightMax != 0 {
		cfg.Limits.WeightMax = yamlCfg.Box.WeightMax
	}
	if yamlCfg.Box.IgnoreArm != nil {
		cfg.IgnoreArm = *yamlCfg.Box.IgnoreArm
	}
	if yamlCfg.Box.ConvertPackageToUnit != nil {
		cfg.ConvertPackageToUnit = *yamlCfg.Box.ConvertPackageToUnit
	}

	if yamlCfg.Input.Sheet != "" {
		cfg.SheetName = yamlCfg.Input.Sheet
	}
	if yamlCfg.Input.CSVEncoding != "" {
		cfg.CSVEncoding = yamlCfg.Input.CSVEncoding
	}
	if yamlCfg.Input.MaxUploadBytes > 0 {
		cfg.MaxUploadBytes = yamlCfg.Input.MaxUploadBytes
	}

	if yamlCfg.Storage.Driver != "" {
		cfg.StorageDriver = yamlCfg.Storage.Driver
	}
	if yamlCfg.Storage.DSN != "" {
		cfg.SQLiteDSN = yamlCfg.Storage.DSN
	}
	if yamlCfg.Storage.RunRetention > 0 {
		cfg.RunRetention = yamlCfg.Storage.RunRetention
	}
}

func setDuration(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil {
		*dst = d
	}
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	if port := env("PORT"); port != "" {
		cfg.Port = port
	}
	if level := env("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}
	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if value, ok := envFloat("BOX_VOLUME_MAX"); ok {
		cfg.Limits.VolumeMax = value
	}
	if value, ok := envFloat("BOX_WEIGHT_MAX"); ok {
		cfg.Limits.WeightMax = value
	}
	if value, ok := envBool("IGNORE_ARM"); ok {
		cfg.IgnoreArm = value
	}
	if value, ok := envBool("CONVERT_PACKAGE_TO_UNIT"); ok {
		cfg.ConvertPackageToUnit = value
	}

	if name := env("SHEET_NAME"); name != "" {
		cfg.SheetName = name
	}
	if enc := env("CSV_ENCODING"); enc != "" {
		cfg.CSVEncoding = enc
	}
	if raw := env("MAX_UPLOAD_BYTES"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil && value > 0 {
			cfg.MaxUploadBytes = value
		}
	}

	if driver := env("STORAGE_DRIVER"); driver != "" {
		cfg.StorageDriver = driver
	}
	if dsn := env("SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if raw := env("RUN_RETENTION"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RunRetention = value
		}
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFloat(key string) (float64, bool) {
	raw := env(key)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func envBool(key string) (bool, bool) {
	raw := env(key)
	if raw == "" {
		return false, false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return value, true
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	if overrides.Port != nil && *overrides.Port != "" {
		cfg.Port = *overrides.Port
	}
	if overrides.LogLevel != nil && *overrides.LogLevel != "" {
		cfg.LogLevel = *overrides.LogLevel
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}
	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	if overrides.VolumeMax != nil && *overrides.VolumeMax != 0 {
		cfg.Limits.VolumeMax = *overrides.VolumeMax
	}
	if overrides.WeightMax != nil && *overrides.WeightMax != 0 {
		cfg.Limits.WeightMax = *overrides.WeightMax
	}
	if overrides.IgnoreArm != nil {
		cfg.IgnoreArm = *overrides.IgnoreArm
	}
	if overrides.ConvertPackageToUnit != nil {
		cfg.ConvertPackageToUnit = *overrides.ConvertPackageToUnit
	}

	if overrides.StorageDriver != nil && *overrides.StorageDriver != "" {
		cfg.StorageDriver = *overrides.StorageDriver
	}
	if overrides.SQLiteDSN != nil && *overrides.SQLiteDSN != "" {
		cfg.SQLiteDSN = *overrides.SQLiteDSN
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if err := cfg.Limits.Validate(); err != nil {
		return fmt.Errorf("default box limits %+v: %w", cfg.Limits, err)
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if !sheet.SupportedEncoding(cfg.CSVEncoding) {
		return fmt.Errorf("unsupported CSV encoding %q", cfg.CSVEncoding)
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	switch cfg.StorageDriver {
	case StorageMemory:
	case StorageSQLite:
		if cfg.SQLiteDSN == "" {
			return fmt.Errorf("sqlite storage requires a DSN")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	return nil
}
