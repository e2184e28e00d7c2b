package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/telinga/domain/entities"
	"github.com/satriahrh/telinga/domain/repositories"
	"github.com/satriahrh/telinga/internal/audio"
)

// TranscriptionService orchestrates one transcription run: it slices an
// audio source into chunks, streams them into a recognizer, and collects
// the transcript that comes back.
type TranscriptionService struct {
	recognizer repositories.SpeechToText
	logger     *zap.Logger
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(recognizer repositories.SpeechToText, logger *zap.Logger) *TranscriptionService {
	return &TranscriptionService{
		recognizer: recognizer,
		logger:     logger,
	}
}

// TranscribeOptions tunes a single transcription run.
type TranscribeOptions struct {
	// Format describes the PCM layout of the source. The zero value means
	// 16 kHz 16-bit mono.
	Format repositories.AudioFormat

	// Realtime paces chunk sends at recording speed, the way a live
	// microphone would deliver them.
	Realtime bool

	// OnUpdate, when set, receives every hypothesis as it arrives. It is
	// called from a separate goroutine.
	OnUpdate func(entities.TranscriptUpdate)
}

// TranscribeStream reads raw PCM from r, streams it chunk by chunk, and
// returns the final transcript. The first error on either direction of
// the stream settles the run.
func (s *TranscriptionService) TranscribeStream(ctx context.Context, r io.Reader, opts TranscribeOptions) (string, error) {
	format := opts.Format
	if format == (repositories.AudioFormat{}) {
		format = repositories.DefaultAudioFormat()
	}

	stream, err := s.recognizer.StartRecognition(ctx, format)
	if err != nil {
		return "", fmt.Errorf("failed to start recognition: %w", err)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range stream.Updates() {
			if opts.OnUpdate != nil {
				opts.OnUpdate(update)
			}
		}
	}()
	defer func() {
		stream.Close()
		<-drained
	}()

	var ticker *time.Ticker
	if opts.Realtime {
		ticker = time.NewTicker(repositories.ChunkDuration)
		defer ticker.Stop()
	}

	chunker := audio.NewChunker(r, format.ChunkBytes())
	chunks := 0
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read audio: %w", err)
		}

		if err := stream.Stream(chunk); err != nil {
			return "", err
		}
		chunks++

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	transcript, err := stream.End()
	if err != nil {
		return "", err
	}

	s.logger.Info("Transcription completed",
		zap.Int("chunks", chunks),
		zap.Int("transcriptLength", len(transcript)))
	return transcript, nil
}

// TranscribeWAVFile loads a WAV recording from disk and transcribes it.
// The file must match the PCM layout in opts.Format.
func (s *TranscriptionService) TranscribeWAVFile(ctx context.Context, path string, opts TranscribeOptions) (string, error) {
	if opts.Format == (repositories.AudioFormat{}) {
		opts.Format = repositories.DefaultAudioFormat()
	}

	pcm, err := audio.ReadWAVFile(path, opts.Format)
	if err != nil {
		return "", err
	}

	s.logger.Info("Loaded WAV file",
		zap.String("path", path),
		zap.Int("pcmBytes", len(pcm)),
		zap.Duration("audioDuration", opts.Format.Duration(len(pcm))))

	return s.TranscribeStream(ctx, bytes.NewReader(pcm), opts)
}
