package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/social"
	"github.com/socialnet/network/pkg/config"
	"github.com/socialnet/network/pkg/logging"
	"github.com/socialnet/network/pkg/telemetry"
)

// graphcheck reports follow edges that are recorded in only one of the
// following and followers tables, and optionally repairs them. It exits 2
// when drift remains.
func main() {
	repair := flag.Bool("repair", false, "insert the missing mirror rows")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting follow graph check", zap.Bool("repair", *repair))

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := social.NewGraphMutator(db.NewRepository(database.DB)).Reconcile(ctx, *repair)
	if err != nil {
		logger.Fatal("Follow graph check failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}

	logger.Info("Follow graph check finished",
		zap.Int("drift", report.Drift()),
		zap.Bool("repaired", report.Repaired),
	)
	if report.Drift() > 0 && !report.Repaired {
		stop()
		telemetryShutdown()
		logging.GetLogger().Sync()
		os.Exit(2)
	}
}
