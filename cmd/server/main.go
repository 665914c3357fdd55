// Package main is the entry point for the investment portfolio manager:
// a REST backend for funds, portfolios, transactions, dividends, and the
// IBKR broker-import inbox with percentage-based allocation.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndewijer/investment-portfolio-manager/internal/config"
	"github.com/ndewijer/investment-portfolio-manager/internal/di"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/logs"
	"github.com/ndewijer/investment-portfolio-manager/internal/modules/settings"
	"github.com/ndewijer/investment-portfolio-manager/internal/server"
	"github.com/ndewijer/investment-portfolio-manager/pkg/logger"
)

func main() {
	// Load configuration first to get the log level. Configuration comes from
	// an optional config.yaml, a .env file, and environment variables; flex
	// credentials can later be overridden from the settings database.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Warn-and-above events go to the logs page; the sink is wired into the
	// logger up front and gets its repository once the database is open, so
	// components built during wiring persist through it too.
	logSink := logs.NewStore()
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
		Sink:   logSink,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting investment portfolio manager")

	// Wire all dependencies: databases, repositories, services.
	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	logSink.Attach(container.LogRepo)

	// Trim old log entries per the retention setting.
	retention, err := container.SettingsRepo.GetInt(settings.KeyLogRetention, cfg.LogRetention)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read log retention setting")
	}
	if _, err := container.LogRepo.DeleteOlderThan(retention); err != nil {
		log.Warn().Err(err).Msg("Log retention cleanup failed")
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		Container: container,
	})

	// Start server in goroutine so the scheduler and signal handling run
	// on the main thread.
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Scheduled Flex imports. The schedule from the settings database wins
	// over env/file config.
	schedule := cfg.FlexSchedule
	if stored, err := container.SettingsRepo.Get(settings.KeyFlexSchedule); err == nil && stored != nil && *stored != "" {
		schedule = *stored
	}
	if err := container.FlexScheduler.Start(schedule); err != nil {
		log.Error().Err(err).Msg("Failed to start flex import scheduler")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	container.FlexScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
