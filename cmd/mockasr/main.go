package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/telinga/internal/config"
	"github.com/satriahrh/telinga/internal/mockasr"
)

func main() {
	godotenv.Load()

	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := newLogger(cfg.Environment)
	defer logger.Sync()

	srv := mockasr.New(mockasr.Options{
		AppKey:     cfg.Server.AppKey,
		AccessKey:  cfg.Server.AccessKey,
		Hypotheses: cfg.Server.Hypotheses,
		AckEvery:   cfg.Server.AckEvery,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := srv.Start(cfg.Server.Address()); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Mock recognition service started",
		zap.String("address", cfg.Server.Address()),
		zap.String("path", mockasr.RecognitionPath))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(environment string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
