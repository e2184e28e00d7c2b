package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/telinga/adapters/stt"
	"github.com/satriahrh/telinga/domain/entities"
	"github.com/satriahrh/telinga/domain/repositories"
)

// fakeRecognizer hands out a canned stream or refuses to start.
type fakeRecognizer struct {
	startErr error
	stream   *fakeStream
}

func (f *fakeRecognizer) StartRecognition(ctx context.Context, format repositories.AudioFormat) (repositories.RecognitionStream, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.stream, nil
}

type fakeStream struct {
	streamErr error
	endErr    error
	updates   chan entities.TranscriptUpdate
}

func newFakeStream(streamErr, endErr error) *fakeStream {
	updates := make(chan entities.TranscriptUpdate)
	close(updates)
	return &fakeStream{
		streamErr: streamErr,
		endErr:    endErr,
		updates:   updates,
	}
}

func (f *fakeStream) Stream(data []byte) error { return f.streamErr }

func (f *fakeStream) End() (string, error) { return "", f.endErr }

func (f *fakeStream) Updates() <-chan entities.TranscriptUpdate { return f.updates }

func (f *fakeStream) Close() error { return nil }

func writeTestWAV(t *testing.T, samples []int, rate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create WAV file: %v", err)
	}

	encoder := wav.NewEncoder(f, rate, 16, 1, 1)
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buffer); err != nil {
		t.Fatalf("Failed to write WAV samples: %v", err)
	}
	if err := encoder.Close(); err != nil {
		t.Fatalf("Failed to close WAV encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close WAV file: %v", err)
	}
	return path
}

func TestTranscribeStream(t *testing.T) {
	logger := zaptest.NewLogger(t)
	script := []string{"satu", "satu dua", "satu dua tiga"}
	service := NewTranscriptionService(stt.NewScriptedSpeechToText(script, logger), logger)

	format := repositories.DefaultAudioFormat()
	source := bytes.NewReader(make([]byte, 3*format.ChunkBytes()))

	var updates []entities.TranscriptUpdate
	transcript, err := service.TranscribeStream(context.Background(), source, TranscribeOptions{
		Format:   format,
		OnUpdate: func(update entities.TranscriptUpdate) { updates = append(updates, update) },
	})
	if err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}

	if transcript != "satu dua tiga" {
		t.Errorf("Expected transcript %q, got %q", "satu dua tiga", transcript)
	}
	if len(updates) != 4 {
		t.Fatalf("Expected 4 updates, got %d: %v", len(updates), updates)
	}
	for i, want := range script {
		if updates[i].Text != want {
			t.Errorf("Expected update %d to be %q, got %q", i, want, updates[i].Text)
		}
		if updates[i].Final {
			t.Errorf("Expected update %d to be partial", i)
		}
	}
	last := updates[len(updates)-1]
	if !last.Final || last.Text != "satu dua tiga" {
		t.Errorf("Expected final update with full transcript, got %+v", last)
	}
}

func TestTranscribeStreamDefaultFormat(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service := NewTranscriptionService(stt.NewMockSpeechToText(logger), logger)

	source := bytes.NewReader(make([]byte, repositories.DefaultAudioFormat().ChunkBytes()))
	transcript, err := service.TranscribeStream(context.Background(), source, TranscribeOptions{})
	if err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}
	if transcript != "Halo" {
		t.Errorf("Expected transcript %q, got %q", "Halo", transcript)
	}
}

func TestTranscribeStreamStartError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	startErr := errors.New("dial refused")
	service := NewTranscriptionService(&fakeRecognizer{startErr: startErr}, logger)

	_, err := service.TranscribeStream(context.Background(), bytes.NewReader(nil), TranscribeOptions{})
	if !errors.Is(err, startErr) {
		t.Errorf("Expected start error, got %v", err)
	}
}

func TestTranscribeStreamStreamError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	streamErr := errors.New("connection reset")
	service := NewTranscriptionService(&fakeRecognizer{stream: newFakeStream(streamErr, nil)}, logger)

	source := bytes.NewReader(make([]byte, repositories.DefaultAudioFormat().ChunkBytes()))
	_, err := service.TranscribeStream(context.Background(), source, TranscribeOptions{})
	if !errors.Is(err, streamErr) {
		t.Errorf("Expected stream error, got %v", err)
	}
}

func TestTranscribeStreamEndError(t *testing.T) {
	logger := zaptest.NewLogger(t)
	endErr := errors.New("service unavailable")
	service := NewTranscriptionService(&fakeRecognizer{stream: newFakeStream(nil, endErr)}, logger)

	_, err := service.TranscribeStream(context.Background(), bytes.NewReader(nil), TranscribeOptions{})
	if !errors.Is(err, endErr) {
		t.Errorf("Expected end error, got %v", err)
	}
}

func TestTranscribeStreamRealtimePacing(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service := NewTranscriptionService(stt.NewScriptedSpeechToText([]string{"a", "b"}, logger), logger)

	format := repositories.DefaultAudioFormat()
	source := bytes.NewReader(make([]byte, 2*format.ChunkBytes()))

	started := time.Now()
	transcript, err := service.TranscribeStream(context.Background(), source, TranscribeOptions{Realtime: true})
	if err != nil {
		t.Fatalf("TranscribeStream failed: %v", err)
	}
	if transcript != "b" {
		t.Errorf("Expected transcript %q, got %q", "b", transcript)
	}

	// Two chunks paced at 200 ms each.
	if elapsed := time.Since(started); elapsed < 350*time.Millisecond {
		t.Errorf("Expected realtime pacing to take at least 350ms, took %v", elapsed)
	}
}

func TestTranscribeStreamCancelled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service := NewTranscriptionService(stt.NewMockSpeechToText(logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(50*time.Millisecond, cancel)
	defer timer.Stop()

	format := repositories.DefaultAudioFormat()
	source := bytes.NewReader(make([]byte, 10*format.ChunkBytes()))

	_, err := service.TranscribeStream(ctx, source, TranscribeOptions{Realtime: true})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestTranscribeWAVFile(t *testing.T) {
	logger := zaptest.NewLogger(t)
	script := []string{"satu", "satu dua", "satu dua tiga"}
	service := NewTranscriptionService(stt.NewScriptedSpeechToText(script, logger), logger)

	// Half a second of audio: two full chunks plus a trailing partial.
	path := writeTestWAV(t, make([]int, 8000), 16000)

	transcript, err := service.TranscribeWAVFile(context.Background(), path, TranscribeOptions{})
	if err != nil {
		t.Fatalf("TranscribeWAVFile failed: %v", err)
	}
	if transcript != "satu dua tiga" {
		t.Errorf("Expected transcript %q, got %q", "satu dua tiga", transcript)
	}
}

func TestTranscribeWAVFileMissing(t *testing.T) {
	logger := zaptest.NewLogger(t)
	service := NewTranscriptionService(stt.NewMockSpeechToText(logger), logger)

	_, err := service.TranscribeWAVFile(context.Background(), filepath.Join(t.TempDir(), "absent.wav"), TranscribeOptions{})
	if err == nil {
		t.Fatal("Expected error for missing WAV file")
	}
}
