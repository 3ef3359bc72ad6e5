// Command migrate applies the fraud-service schema with goose.
//
//	migrate [-dsn DSN] up|down|status|version|redo|reset [args]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	libdb "chargeguard/backend/libs/db"
	"chargeguard/backend/libs/logging"
	"chargeguard/backend/services/fraud-service/migrations"
)

func main() {
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("FRAUD_POSTGRES_DSN"), "postgres connection string")
	flag.Parse()

	command := "up"
	var args []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	logger, err := logging.NewLogger("fraud-migrate")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := libdb.NewPostgresDB(ctx, *dsn, libdb.PoolOptions{MaxOpenConns: 1})
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, command, args...); err != nil {
		logger.Fatal("migration failed", zap.String("command", command), zap.Error(err))
	}
	logger.Info("migration finished", zap.String("command", command))
}
