package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BradenHooton/resera/internal/config"
	"github.com/BradenHooton/resera/internal/database"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down|status]\n", os.Args[0])
	}
	flag.Parse()

	cmd := database.MigrateUp
	if flag.NArg() > 0 {
		cmd = database.MigrateCommand(flag.Arg(0))
	}

	if err := run(cmd, logger); err != nil {
		logger.Error("migration failed", slog.String("command", string(cmd)), slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("migration complete", slog.String("command", string(cmd)))
}

func run(cmd database.MigrateCommand, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return database.Migrate(ctx, db.Pool, cmd)
}
