package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/box-simulator/internal/application"
	"github.com/eugenenazirov/box-simulator/internal/config"
	"github.com/eugenenazirov/box-simulator/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("box-simulator", "Box Simulator - packs store order lines into volume and weight limited boxes")
	overrides := registerFlags(kingpinApp)

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	cfg, err := config.Load(overrides.resolve())
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app, cfg.ShutdownGracePeriod, logger)
}

// flagValues holds raw flag values; sentinels mark flags left unset.
type flagValues struct {
	configFile           *string
	port                 *string
	logLevel             *string
	rateLimitRPS         *float64
	rateLimitBurst       *int
	volumeMax            *float64
	weightMax            *float64
	ignoreArm            *bool
	convertPackageToUnit *bool
	storageDriver        *string
	sqliteDSN            *string

	ignoreArmSet bool
	convertSet   bool
}

func registerFlags(app *kingpin.Application) *flagValues {
	f := &flagValues{}
	f.configFile = app.Flag("config", "Path to YAML configuration file").String()
	f.port = app.Flag("port", "HTTP port exposed by the service").String()
	f.logLevel = app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	f.rateLimitRPS = app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	f.rateLimitBurst = app.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	f.volumeMax = app.Flag("volume-max", "Default box volume limit in litres").Float64()
	f.weightMax = app.Flag("weight-max", "Default box weight limit in kilograms").Float64()
	f.ignoreArm = app.Flag("ignore-arm", "Group demand by store only by default").
		IsSetByUser(&f.ignoreArmSet).Bool()
	f.convertPackageToUnit = app.Flag("convert-package-to-unit", "Replace PAC quantities with units requested by default").
		IsSetByUser(&f.convertSet).Bool()
	f.storageDriver = app.Flag("storage", "Run storage driver").Enum(config.StorageMemory, config.StorageSQLite)
	f.sqliteDSN = app.Flag("sqlite-dsn", "SQLite database path or DSN").String()
	return f
}

func (f *flagValues) resolve() *config.CLIOverrides {
	overrides := &config.CLIOverrides{
		ConfigFile:    *f.configFile,
		Port:          f.port,
		LogLevel:      f.logLevel,
		VolumeMax:     f.volumeMax,
		WeightMax:     f.weightMax,
		StorageDriver: f.storageDriver,
		SQLiteDSN:     f.sqliteDSN,
	}

	if *f.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = f.rateLimitRPS
	}
	if *f.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = f.rateLimitBurst
	}
	if f.ignoreArmSet {
		overrides.IgnoreArm = f.ignoreArm
	}
	if f.convertSet {
		overrides.ConvertPackageToUnit = f.convertPackageToUnit
	}
	return overrides
}

// shutdown waits for a termination signal, drains the server, then releases
// the run store.
func shutdown(app *application.App, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	server := app.Server()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
	if err := app.Close(); err != nil {
		logger.Warn("failed to close storage", zap.Error(err))
	}
}
