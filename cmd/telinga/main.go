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

	"github.com/satriahrh/telinga/adapters/stt"
	"github.com/satriahrh/telinga/domain/entities"
	"github.com/satriahrh/telinga/domain/repositories"
	"github.com/satriahrh/telinga/internal/config"
	"github.com/satriahrh/telinga/usecase"
)

func main() {
	godotenv.Load()

	wavPath := flag.String("wav", "", "path to a 16 kHz 16-bit mono WAV recording")
	configPath := flag.String("config", "", "path to a YAML configuration file")
	realtime := flag.Bool("realtime", false, "pace audio at recording speed")
	useMock := flag.Bool("mock", false, "use the in-process mock recognizer instead of the hosted service")
	flag.Parse()

	if *wavPath == "" {
		fmt.Fprintln(os.Stderr, "usage: telinga -wav recording.wav [-config telinga.yaml] [-realtime] [-mock]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := newLogger(cfg.Environment)
	defer logger.Sync()

	var recognizer repositories.SpeechToText
	if *useMock {
		recognizer = stt.NewMockSpeechToText(logger)
	} else {
		recognizer, err = stt.NewVolcengineSpeechToText(stt.NewVolcengineConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to create recognizer", zap.Error(err))
		}
	}

	service := usecase.NewTranscriptionService(recognizer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	realtimeEnabled := *realtime || cfg.Recognition.Realtime

	logger.Info("Transcribing recording",
		zap.String("wav", *wavPath),
		zap.Bool("realtime", realtimeEnabled))

	transcript, err := service.TranscribeWAVFile(ctx, *wavPath, usecase.TranscribeOptions{
		Realtime: realtimeEnabled,
		OnUpdate: func(update entities.TranscriptUpdate) {
			if update.Final {
				return
			}
			fmt.Printf("  %s\n", update.Text)
		},
	})
	if err != nil {
		logger.Fatal("Transcription failed", zap.Error(err))
	}

	fmt.Printf("✅ %s\n", transcript)
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
