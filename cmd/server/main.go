// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/keldurben/internal/auth"
	"github.com/jason-s-yu/keldurben/internal/cache"
	"github.com/jason-s-yu/keldurben/internal/config"
	"github.com/jason-s-yu/keldurben/internal/database"
	"github.com/jason-s-yu/keldurben/internal/handlers"
	"github.com/jason-s-yu/keldurben/internal/hub"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:   "keldurben",
		Usage:  "real-time color-cue party game server",
		Flags:  config.ServerFlags(),
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		logrus.WithError(err).Fatal("server exited")
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

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; tokens will not survive a restart")
	}
	tokens, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	var sink hub.RoundSink
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		pub := cache.NewRoundPublisher(rdb, cfg.Queue, 0, logger)
		pubCtx, stopPub := context.WithCancel(ctx)
		go pub.Run(pubCtx)
		defer func() {
			stopPub()
			<-pub.Done()
			rdb.Close()
		}()
		sink = pub
		logger.WithField("queue", cfg.Queue).Info("publishing round history to redis")
	}

	var accounts *handlers.Accounts
	if cfg.DatabaseURL != "" {
		store, err := database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		accounts = &handlers.Accounts{Users: store, Tokens: tokens, Params: auth.DefaultParams, Logger: logger}
	} else {
		logger.Warn("DATABASE_URL not set; account endpoints disabled")
	}

	if cfg.AdminSecret == "" {
		logger.Warn("ADMIN_SECRET not set; admin commands disabled")
	}
	h := hub.NewHub(hub.Config{Logger: logger, AdminSecret: cfg.AdminSecret, Sink: sink})

	router := handlers.NewRouter(handlers.Deps{
		Logger:   logger,
		Hub:      h,
		Tokens:   tokens,
		Accounts: accounts,
		WS: handlers.WSOptions{
			RequireAuth: cfg.RequireAuth,
			MsgRate:     cfg.MsgRate,
			MsgBurst:    cfg.MsgBurst,
			SendBuffer:  cfg.SendBuffer,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		StaticDir:      cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              cfg.Bind,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", cfg.Bind)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
