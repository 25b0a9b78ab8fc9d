// cmd/historian/main.go moves scored rounds from the Redis queue into Postgres.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/keldurben/internal/cache"
	"github.com/jason-s-yu/keldurben/internal/config"
	"github.com/jason-s-yu/keldurben/internal/database"
	"github.com/jason-s-yu/keldurben/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "keldurben-historian",
		Usage:  "persist scored rounds from redis to postgres",
		Flags:  config.HistorianFlags(),
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("historian exited")
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.FromCommand(cmd)
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb, err := cache.Connect(ctx, addr, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	svc := historian.New(rdb, store, historian.Config{
		Queue:         cfg.Queue,
		BatchSize:     cfg.HistorianBatch,
		FlushInterval: cfg.HistorianFlush,
	}, logger)
	svc.Run(ctx)
	return nil
}
