package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"BOX_VOLUME_MAX", "BOX_WEIGHT_MAX", "IGNORE_ARM", "CONVERT_PACKAGE_TO_UNIT",
		"SHEET_NAME", "CSV_ENCODING", "MAX_UPLOAD_BYTES",
		"STORAGE_DRIVER", "SQLITE_DSN", "RUN_RETENTION",
	} {
		t.Setenv(key, "")
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.Limits.VolumeMax != 37 || cfg.Limits.WeightMax != 20 {
		t.Fatalf("unexpected default limits: %+v", cfg.Limits)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.SheetName != "Base" || cfg.StorageDriver != StorageMemory {
		t.Fatalf("unexpected input/storage defaults: %+v", cfg)
	}
	if cfg.IgnoreArm || cfg.ConvertPackageToUnit {
		t.Fatalf("expected packing flags off by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("BOX_VOLUME_MAX", "42.5")
	t.Setenv("BOX_WEIGHT_MAX", "not-a-number")
	t.Setenv("IGNORE_ARM", "true")
	t.Setenv("CSV_ENCODING", "windows-1252")
	t.Setenv("RUN_RETENTION", "5")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "9000" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if cfg.Limits.VolumeMax != 42.5 || cfg.Limits.WeightMax != 20 {
		t.Fatalf("unexpected limits: %+v", cfg.Limits)
	}
	if !cfg.IgnoreArm {
		t.Fatalf("expected IGNORE_ARM to apply")
	}
	if cfg.CSVEncoding != "windows-1252" || cfg.RunRetention != 5 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeYAML(t, `
port: "7000"
log_level: debug
enable_request_logging: false
rate_limit:
  rps: 5
  burst: 10
box:
  volume_max: 30
  weight_max: 15
  convert_package_to_unit: true
input:
  sheet: Pedidos
storage:
  driver: sqlite
  dsn: file.db
`)
	t.Setenv("PORT", "7100")
	t.Setenv("BOX_WEIGHT_MAX", "18")

	port := "7200"
	volume := 50.0
	cfg, err := Load(&CLIOverrides{ConfigFile: path, Port: &port, VolumeMax: &volume})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Port != "7200" {
		t.Fatalf("expected CLI port, got %s", cfg.Port)
	}
	if cfg.Limits.VolumeMax != 50 || cfg.Limits.WeightMax != 18 {
		t.Fatalf("unexpected limits: %+v", cfg.Limits)
	}
	if cfg.EnableRequestLogging || cfg.LogLevel != "debug" {
		t.Fatalf("expected YAML logging settings, got %+v", cfg)
	}
	if cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected rate limit: %v/%v", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if !cfg.ConvertPackageToUnit || cfg.SheetName != "Pedidos" {
		t.Fatalf("unexpected box/input settings: %+v", cfg)
	}
	if cfg.StorageDriver != StorageSQLite || cfg.SQLiteDSN != "file.db" {
		t.Fatalf("unexpected storage settings: %+v", cfg)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	testCases := map[string]func(t *testing.T){
		"limits":   func(t *testing.T) { t.Setenv("BOX_VOLUME_MAX", "-1") },
		"level":    func(t *testing.T) { t.Setenv("LOG_LEVEL", "loud") },
		"encoding": func(t *testing.T) { t.Setenv("CSV_ENCODING", "ebcdic") },
		"driver":   func(t *testing.T) { t.Setenv("STORAGE_DRIVER", "postgres") },
	}

	for name, setup := range testCases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			setup(t)
			if _, err := Load(nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(&CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil || !strings.Contains(err.Error(), "load YAML config") {
		t.Fatalf("expected YAML load error, got %v", err)
	}
}
