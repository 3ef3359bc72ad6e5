// Command fraud-detect performs a single detection run and exits. It is meant
// for cron jobs and post-import hooks; the exit code is non-zero when the run fails.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chargeguard/backend/libs/logging"
	"chargeguard/backend/services/fraud-service/internal/app"
	"chargeguard/backend/services/fraud-service/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to YAML config")
	verdicts := flag.Bool("verdicts", false, "print per-session verdicts with the report")
	flag.Parse()

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := logging.NewLogger("fraud-detect")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer logger.Sync()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init fraud detection", zap.Error(err))
		return 1
	}
	defer application.Close()

	report, runErr := application.Detection().Run(ctx)
	if report != nil {
		var out any = report
		if !*verdicts {
			out = report.Summary()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logger.Error("failed to write report", zap.Error(err))
		}
	}
	if runErr != nil {
		logger.Error("detection run failed", zap.Error(runErr))
		return 1
	}
	return 0
}
