// Package main is the entry point for the vclustersim simulator.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vclusterlab/vclustersim/internal/config"
	"github.com/vclusterlab/vclustersim/internal/report"
	"github.com/vclusterlab/vclustersim/internal/repository/memory"
	"github.com/vclusterlab/vclustersim/internal/repository/postgres"
	"github.com/vclusterlab/vclustersim/internal/sim"
	"github.com/vclusterlab/vclustersim/internal/workload"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		println("vclustersim")
		println("Version:", version)
		println("Commit:", commit)
		println("Build Date:", buildDate)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		println("Failed to load config:", err.Error())
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("Starting vclustersim",
		zap.String("version", version),
		zap.String("commit", commit),
	)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Simulation error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Pick the result store: PostgreSQL when persistence is enabled,
	// otherwise in-memory.
	var store sim.RunStore = memory.NewRunStore()
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		store = postgres.NewRunStore(db, logger)
	}

	templates, err := workload.LoadTemplates(cfg.Workload.VMsFile)
	if err != nil {
		return err
	}
	models, err := workload.LoadModels(cfg.Workload.ModelsFile)
	if err != nil {
		return err
	}
	logger.Info("workload loaded",
		zap.String("vms_file", cfg.Workload.VMsFile),
		zap.Int("templates", len(templates)),
		zap.Int("models", len(models)),
	)

	svc, err := sim.New(cfg, store, logger)
	if err != nil {
		return err
	}
	if err := svc.Submit(templates, models); err != nil {
		return err
	}

	result, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Print(report.Render(result))
	return nil
}

// setupLogger configures the zap logger based on configuration.
func setupLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapConfig zap.Config
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build()
	if err != nil {
		panic("Failed to create logger: " + err.Error())
	}

	return logger
}
