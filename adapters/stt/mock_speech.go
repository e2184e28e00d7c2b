package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/telinga/domain/entities"
	"github.com/satriahrh/telinga/domain/repositories"
)

// defaultScript is the hypothesis progression played back when no script
// is given. Each entry is the full transcript so far, the way the hosted
// service reports it.
var defaultScript = []string{
	"Halo",
	"Halo, apa kabar?",
	"Halo, apa kabar? Saya sedang menguji pengenalan suara.",
}

// MockSpeechToText is an in-process recognizer that plays back a scripted
// hypothesis progression. It exercises the same session lifecycle as the
// real adapter without touching the network.
type MockSpeechToText struct {
	script []string
	logger *zap.Logger
}

// Ensure MockSpeechToText implements the SpeechToText interface
var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a mock recognizer with the default script.
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return NewScriptedSpeechToText(defaultScript, logger)
}

// NewScriptedSpeechToText creates a mock recognizer that walks the given
// hypotheses one audio chunk at a time, sticking at the last entry.
func NewScriptedSpeechToText(hypotheses []string, logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		script: hypotheses,
		logger: logger,
	}
}

// StartRecognition opens a scripted session. There is no handshake to
// fail, so the stream comes back already streaming.
func (m *MockSpeechToText) StartRecognition(ctx context.Context, format repositories.AudioFormat) (repositories.RecognitionStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if format == (repositories.AudioFormat{}) {
		format = repositories.DefaultAudioFormat()
	}

	session := entities.NewSession()
	if err := session.StartStreaming(); err != nil {
		return nil, err
	}

	m.logger.Info("Starting mock recognition session",
		zap.String("sessionId", session.ID()),
		zap.Int("scriptLength", len(m.script)))

	return &MockRecognitionStream{
		script:  m.script,
		format:  format,
		session: session,
		logger:  m.logger,
		updates: make(chan entities.TranscriptUpdate, updatesBuffer),
	}, nil
}

// MockRecognitionStream is one scripted recognition session.
type MockRecognitionStream struct {
	script  []string
	format  repositories.AudioFormat
	session *entities.Session
	logger  *zap.Logger
	updates chan entities.TranscriptUpdate

	mu       sync.Mutex
	index    int
	pcmBytes int
	closed   bool
}

// Ensure MockRecognitionStream implements the RecognitionStream interface
var _ repositories.RecognitionStream = (*MockRecognitionStream)(nil)

// Stream advances the script by one hypothesis per chunk. Chunks past the
// end of the script carry no new text and surface no update.
func (s *MockRecognitionStream) Stream(data []byte) error {
	if state := s.session.State(); state != entities.SessionStateStreaming {
		if err := s.session.Err(); err != nil {
			return err
		}
		return fmt.Errorf("cannot stream audio in state %s", state)
	}

	s.mu.Lock()
	s.pcmBytes += len(data)
	advanced := false
	if s.index < len(s.script) {
		s.index++
		advanced = true
	}
	text := s.currentTextLocked()
	durationMS := int(s.format.Duration(s.pcmBytes).Milliseconds())
	s.mu.Unlock()

	s.logger.Debug("Received mock audio chunk",
		zap.String("sessionId", s.session.ID()),
		zap.Int("bytes", len(data)))

	if !advanced {
		return nil
	}

	s.session.UpdateTranscript(text)
	s.emit(entities.TranscriptUpdate{
		Text:       text,
		DurationMS: durationMS,
	})
	return nil
}

// End settles the session with a final update carrying the furthest
// hypothesis the audio reached. Silence yields an empty transcript, not
// an error, matching the hosted service.
func (s *MockRecognitionStream) End() (string, error) {
	if err := s.session.BeginFinalizing(); err != nil {
		if terr := s.session.Err(); terr != nil {
			return "", terr
		}
		return "", err
	}

	s.mu.Lock()
	text := s.currentTextLocked()
	durationMS := int(s.format.Duration(s.pcmBytes).Milliseconds())
	s.mu.Unlock()

	s.session.UpdateTranscript(text)
	s.emit(entities.TranscriptUpdate{
		Text:       text,
		Final:      true,
		DurationMS: durationMS,
	})

	if err := s.session.Complete(); err != nil {
		s.session.Fail(err)
		return "", err
	}
	s.closeUpdates()

	s.logger.Info("Mock recognition completed",
		zap.String("sessionId", s.session.ID()),
		zap.Int("transcriptLength", len(text)))
	return s.session.Transcript(), nil
}

// Updates surfaces the scripted hypotheses. The channel is closed when
// the session reaches a terminal state.
func (s *MockRecognitionStream) Updates() <-chan entities.TranscriptUpdate {
	return s.updates
}

// Close aborts the session unless it already completed. It is safe to
// call from any goroutine and more than once.
func (s *MockRecognitionStream) Close() error {
	s.session.Fail(ErrRecognitionAborted)
	s.closeUpdates()
	return nil
}

func (s *MockRecognitionStream) currentTextLocked() string {
	if s.index == 0 {
		return ""
	}
	return s.script[s.index-1]
}

func (s *MockRecognitionStream) emit(update entities.TranscriptUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.updates <- update:
	default:
		s.logger.Warn("Dropping transcript update",
			zap.String("sessionId", s.session.ID()))
	}
}

func (s *MockRecognitionStream) closeUpdates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.updates)
}
