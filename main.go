package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forumdigest/internal/config"
	"forumdigest/internal/database"
	"forumdigest/internal/digest"
	"forumdigest/internal/fanout"
	"forumdigest/internal/forum"
	"forumdigest/internal/mailer"
	"forumdigest/internal/scheduler"
	"forumdigest/internal/server"
	"forumdigest/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	db, err := database.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize DB",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close DB",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	logger.InfoContext(ctx, "DB is initialized")

	mail, err := mailer.New(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, logger)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize mailer",
			"error", err)

		return
	}
	logger.InfoContext(ctx, "Mailer is initialized")

	forumClient := forum.NewClient(cfg.ForumAPIURL, cfg.ForumAPIToken)

	runner := tasks.NewQueueRunner(logger)
	defer runner.Stop()

	fan := fanout.New(db, forumClient, forumClient, runner, logger)
	cycle := digest.New(db, forumClient, mail, logger)

	sched := scheduler.New(ctx, cfg.DigestCronSpec, cycle, logger)
	if err := sched.Start(); err != nil {
		logger.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"cronSpec", cfg.DigestCronSpec)

		return
	}
	defer sched.Stop()
	logger.InfoContext(ctx, "Scheduler is started")

	srv := server.New(cfg.ListenAddr, cfg.JWTSecret, fan, cycle, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.ErrorContext(ctx, "HTTP server failed",
				"error", err,
				"addr", cfg.ListenAddr)
			cancel()
		}
	}()
	logger.InfoContext(ctx, "HTTP server is started",
		"addr", cfg.ListenAddr)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case <-c:
	case <-ctx.Done():
	}
	logger.InfoContext(ctx, "Exiting...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "Failed to stop HTTP server",
			"error", err)
	}
	logger.InfoContext(ctx, "HTTP server is stopped")
}
