package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/telinga/domain/entities"
	"github.com/satriahrh/telinga/domain/repositories"
	"github.com/satriahrh/telinga/internal/protocol"
	"github.com/satriahrh/telinga/internal/websocket"
)

const (
	defaultEndpoint       = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel"
	defaultResourceID     = "volc.bigasr.sauc.duration"
	defaultModelName      = "bigmodel"
	defaultUID            = "telinga"
	defaultResultType     = "single"
	defaultConnectTimeout = 10 * time.Second
	defaultSendTimeout    = 10 * time.Second
	defaultReceiveTimeout = 30 * time.Second

	// updatesBuffer bounds the updates channel. A consumer that stops
	// draining loses intermediate hypotheses, never the final transcript.
	updatesBuffer = 10
)

// ErrRecognitionAborted is recorded when the caller closes a stream
// before the server delivered its final response.
var ErrRecognitionAborted = errors.New("recognition aborted before completion")

// VolcengineConfig holds configuration for the Volcengine speech-to-text adapter
// Required fields:
// - AppKey: application key from the Volcengine speech console
// - AccessKey: access key paired with the app key
// Optional fields with defaults:
// - Endpoint: streaming recognition endpoint (default: hosted bigmodel URL)
// - ResourceID: billing resource identifier (default: "volc.bigasr.sauc.duration")
// - ModelName: recognition model (default: "bigmodel")
// - UID: caller identity reported to the service (default: "telinga")
// - ResultType: transcript reporting mode (default: "single", full text every time)
// - DisablePunctuation: turn off automatic punctuation (default: false)
// - DisableITN: turn off inverse text normalization (default: false)
// - ConnectTimeout, SendTimeout, ReceiveTimeout: transport deadlines (defaults: 10s, 10s, 30s)
type VolcengineConfig struct {
	AppKey             string
	AccessKey          string
	Endpoint           string
	ResourceID         string
	ModelName          string
	UID                string
	ResultType         string
	DisablePunctuation bool
	DisableITN         bool
	ConnectTimeout     time.Duration
	SendTimeout        time.Duration
	ReceiveTimeout     time.Duration
}

// VolcengineSpeechToText implements the SpeechToText interface against the
// Volcengine streaming recognition service
type VolcengineSpeechToText struct {
	config VolcengineConfig
	logger *zap.Logger
}

// Ensure VolcengineSpeechToText implements the SpeechToText interface
var _ repositories.SpeechToText = (*VolcengineSpeechToText)(nil)

// ValidateVolcengineConfig validates the VolcengineConfig
func ValidateVolcengineConfig(config VolcengineConfig) error {
	if config.AppKey == "" {
		return fmt.Errorf("volcengine app key is required")
	}
	if config.AccessKey == "" {
		return fmt.Errorf("volcengine access key is required")
	}

	if config.Endpoint != "" && !strings.HasPrefix(config.Endpoint, "ws://") && !strings.HasPrefix(config.Endpoint, "wss://") {
		return fmt.Errorf("endpoint must use the ws or wss scheme, got %s", config.Endpoint)
	}

	if config.ConnectTimeout < 0 || config.SendTimeout < 0 || config.ReceiveTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	return nil
}

// NewVolcengineSpeechToText creates a new Volcengine speech-to-text instance
func NewVolcengineSpeechToText(config VolcengineConfig, logger *zap.Logger) (*VolcengineSpeechToText, error) {
	// Validate required configuration
	if err := ValidateVolcengineConfig(config); err != nil {
		return nil, err
	}

	// Apply defaults where needed
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
		logger.Info("Using default endpoint", zap.String("endpoint", config.Endpoint))
	}

	if config.ResourceID == "" {
		config.ResourceID = defaultResourceID
		logger.Info("Using default resource ID", zap.String("resourceID", config.ResourceID))
	}

	if config.ModelName == "" {
		config.ModelName = defaultModelName
		logger.Info("Using default model name", zap.String("modelName", config.ModelName))
	}

	if config.UID == "" {
		config.UID = defaultUID
		logger.Info("Using default UID", zap.String("uid", config.UID))
	}

	if config.ResultType == "" {
		config.ResultType = defaultResultType
		logger.Info("Using default result type", zap.String("resultType", config.ResultType))
	}

	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaultConnectTimeout
		logger.Info("Using default connect timeout", zap.Duration("connectTimeout", config.ConnectTimeout))
	}

	if config.SendTimeout == 0 {
		config.SendTimeout = defaultSendTimeout
		logger.Info("Using default send timeout", zap.Duration("sendTimeout", config.SendTimeout))
	}

	if config.ReceiveTimeout == 0 {
		config.ReceiveTimeout = defaultReceiveTimeout
		logger.Info("Using default receive timeout", zap.Duration("receiveTimeout", config.ReceiveTimeout))
	}

	return &VolcengineSpeechToText{
		config: config,
		logger: logger,
	}, nil
}

// NewVolcengineConfigFromEnv creates a new VolcengineConfig from environment variables
// This is a helper function to simplify the creation of a properly configured VolcengineConfig
func NewVolcengineConfigFromEnv() VolcengineConfig {
	config := VolcengineConfig{
		AppKey:     os.Getenv("VOLCENGINE_APP_KEY"),
		AccessKey:  os.Getenv("VOLCENGINE_ACCESS_KEY"),
		Endpoint:   os.Getenv("VOLCENGINE_ENDPOINT"),
		ResourceID: os.Getenv("VOLCENGINE_RESOURCE_ID"),
		ModelName:  os.Getenv("VOLCENGINE_MODEL_NAME"),
		UID:        os.Getenv("VOLCENGINE_UID"),
		ResultType: os.Getenv("VOLCENGINE_RESULT_TYPE"),
	}

	// Parse boolean and duration values from environment
	if v := os.Getenv("VOLCENGINE_DISABLE_PUNCTUATION"); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			config.DisablePunctuation = disabled
		}
	}

	if v := os.Getenv("VOLCENGINE_DISABLE_ITN"); v != "" {
		if disabled, err := strconv.ParseBool(v); err == nil {
			config.DisableITN = disabled
		}
	}

	if v := os.Getenv("VOLCENGINE_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.ConnectTimeout = d
		}
	}

	if v := os.Getenv("VOLCENGINE_SEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.SendTimeout = d
		}
	}

	if v := os.Getenv("VOLCENGINE_RECEIVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.ReceiveTimeout = d
		}
	}

	return config
}

// StartRecognition dials the service, performs the opening handshake, and
// hands back a live stream. The stream owns the connection and closes it
// on every exit path, success or failure.
func (v *VolcengineSpeechToText) StartRecognition(ctx context.Context, format repositories.AudioFormat) (repositories.RecognitionStream, error) {
	if format == (repositories.AudioFormat{}) {
		format = repositories.DefaultAudioFormat()
	}

	session := entities.NewSession()

	header := http.Header{}
	header.Set("X-Api-App-Key", v.config.AppKey)
	header.Set("X-Api-Access-Key", v.config.AccessKey)
	header.Set("X-Api-Resource-Id", v.config.ResourceID)
	header.Set("X-Api-Request-Id", session.ID())

	v.logger.Info("Starting recognition session",
		zap.String("sessionId", session.ID()),
		zap.String("endpoint", v.config.Endpoint))

	conn, err := websocket.Dial(ctx, v.config.Endpoint, websocket.Options{
		Header:           header,
		HandshakeTimeout: v.config.ConnectTimeout,
		WriteTimeout:     v.config.SendTimeout,
		ReceiveTimeout:   v.config.ReceiveTimeout,
	}, v.logger)
	if err != nil {
		v.logger.Error("Failed to connect to recognition service", zap.Error(err))
		return nil, err
	}

	stream := &VolcengineSpeechToTextStream{
		conn:    conn,
		session: session,
		logger:  v.logger,
		updates: make(chan entities.TranscriptUpdate, updatesBuffer),
		done:    make(chan struct{}),
	}

	if err := stream.handshake(format, v.config); err != nil {
		session.Fail(err)
		conn.Close()
		v.logger.Error("Recognition handshake failed",
			zap.String("sessionId", session.ID()),
			zap.Error(err))
		return nil, err
	}

	go stream.receiveResults()

	return stream, nil
}

// VolcengineSpeechToTextStream is one live recognition session over one
// connection
type VolcengineSpeechToTextStream struct {
	conn    *websocket.Conn
	session *entities.Session
	logger  *zap.Logger
	updates chan entities.TranscriptUpdate
	done    chan struct{}
}

// Ensure VolcengineSpeechToTextStream implements the RecognitionStream interface
var _ repositories.RecognitionStream = (*VolcengineSpeechToTextStream)(nil)

// handshake sends the initial request and consumes the server's answer.
// Only an error response aborts the session here; the answer itself is
// not surfaced as an update.
func (s *VolcengineSpeechToTextStream) handshake(format repositories.AudioFormat, config VolcengineConfig) error {
	request := protocol.InitialRequest{
		User: protocol.User{UID: config.UID},
		Audio: protocol.AudioRequest{
			Format:  format.Format,
			Codec:   format.Codec,
			Rate:    format.SampleRate,
			Bits:    format.Bits,
			Channel: format.Channels,
		},
		Request: protocol.RecognitionRequest{
			ModelName:  config.ModelName,
			EnablePunc: !config.DisablePunctuation,
			EnableITN:  !config.DisableITN,
			ResultType: config.ResultType,
		},
	}

	payload, err := protocol.PackJSON(request)
	if err != nil {
		return err
	}
	if err := s.sendFrame(protocol.Frame{
		Type:          protocol.MessageTypeClientFullRequest,
		Flags:         protocol.FlagHasSequence,
		Serialization: protocol.SerializationJSON,
		Compression:   protocol.CompressionGZIP,
		Sequence:      s.session.NextSequence(),
		Payload:       payload,
	}); err != nil {
		return err
	}

	raw, err := s.conn.Receive()
	if err != nil {
		return err
	}
	frame, err := protocol.DecodeFrame(raw)
	if err != nil {
		return err
	}
	if _, err := protocol.ParseServerFrame(frame); err != nil {
		return err
	}

	return s.session.StartStreaming()
}

// Stream pushes one chunk of raw PCM audio to the service.
func (s *VolcengineSpeechToTextStream) Stream(data []byte) error {
	if state := s.session.State(); state != entities.SessionStateStreaming {
		if err := s.session.Err(); err != nil {
			return err
		}
		return fmt.Errorf("cannot stream audio in state %s", state)
	}

	payload, err := protocol.PackRaw(data)
	if err != nil {
		s.abort(err)
		return err
	}

	// Audio frames keep the JSON serialization nibble even though the
	// payload is raw PCM; the service expects it that way.
	frame := protocol.Frame{
		Type:          protocol.MessageTypeClientAudioOnly,
		Flags:         protocol.FlagHasSequence,
		Serialization: protocol.SerializationJSON,
		Compression:   protocol.CompressionGZIP,
		Sequence:      s.session.NextSequence(),
		Payload:       payload,
	}
	if err := s.sendFrame(frame); err != nil {
		s.abort(err)
		return err
	}

	s.logger.Debug("Sent audio chunk",
		zap.Int32("sequence", frame.Sequence),
		zap.Int("bytes", len(data)))
	return nil
}

// End signals end of audio with the negative-sequence terminal frame and
// waits for the session to settle. It returns the final transcript or
// the terminal error.
func (s *VolcengineSpeechToTextStream) End() (string, error) {
	if err := s.session.BeginFinalizing(); err != nil {
		// The server may have delivered its final response already.
		if s.session.State() == entities.SessionStateClosed {
			return s.session.Transcript(), nil
		}
		if terr := s.session.Err(); terr != nil {
			return "", terr
		}
		return "", err
	}

	payload, err := protocol.PackRaw(nil)
	if err != nil {
		s.abort(err)
		return "", err
	}
	if err := s.sendFrame(protocol.Frame{
		Type:          protocol.MessageTypeClientAudioOnly,
		Flags:         protocol.FlagHasSequence | protocol.FlagIsLastPacket,
		Serialization: protocol.SerializationJSON,
		Compression:   protocol.CompressionGZIP,
		Sequence:      s.session.TerminalSequence(),
		Payload:       payload,
	}); err != nil {
		// A failed terminal send usually means the receive side settled
		// the session first; its outcome wins over the send failure.
		s.abort(err)
		if s.session.State() == entities.SessionStateClosed {
			return s.session.Transcript(), nil
		}
		if terr := s.session.Err(); terr != nil {
			return "", terr
		}
		return "", err
	}

	<-s.done

	if err := s.session.Err(); err != nil {
		return "", err
	}
	return s.session.Transcript(), nil
}

// Updates surfaces incremental hypotheses. The channel is closed when
// the session reaches a terminal state.
func (s *VolcengineSpeechToTextStream) Updates() <-chan entities.TranscriptUpdate {
	return s.updates
}

// Close aborts the session unless the final response already arrived. It
// is safe to call from any goroutine and more than once.
func (s *VolcengineSpeechToTextStream) Close() error {
	s.session.Fail(ErrRecognitionAborted)
	return s.conn.Close()
}

func (s *VolcengineSpeechToTextStream) sendFrame(frame protocol.Frame) error {
	wire, err := protocol.EncodeFrame(frame)
	if err != nil {
		return err
	}
	return s.conn.Send(wire)
}

// abort records the failure and tears the connection down, which also
// stops the receive goroutine.
func (s *VolcengineSpeechToTextStream) abort(err error) {
	s.session.Fail(err)
	s.conn.Close()
}

// receiveResults drains server frames until the final response, an
// error, or a transport failure. It owns the updates channel and the
// connection teardown.
func (s *VolcengineSpeechToTextStream) receiveResults() {
	defer close(s.done)
	defer close(s.updates)
	defer s.conn.Close()

	for {
		raw, err := s.conn.Receive()
		if err != nil {
			s.session.Fail(err)
			s.logger.Error("Receive failed",
				zap.String("sessionId", s.session.ID()),
				zap.Error(err))
			return
		}

		frame, err := protocol.DecodeFrame(raw)
		if err != nil {
			s.session.Fail(err)
			s.logger.Error("Undecodable server frame", zap.Error(err))
			return
		}

		result, err := protocol.ParseServerFrame(frame)
		if err != nil {
			s.session.Fail(err)
			s.logger.Error("Recognition failed",
				zap.String("sessionId", s.session.ID()),
				zap.Error(err))
			return
		}
		if result == nil {
			// Ack frames carry nothing to surface.
			continue
		}

		s.session.UpdateTranscript(result.Text)

		update := entities.TranscriptUpdate{
			Text:       result.Text,
			Final:      result.Final,
			DurationMS: result.DurationMS,
			Additions:  result.Additions,
		}
		select {
		case s.updates <- update:
		default:
			s.logger.Warn("Dropping transcript update",
				zap.String("sessionId", s.session.ID()))
		}

		if result.Final {
			if err := s.session.Complete(); err != nil {
				s.session.Fail(err)
				return
			}
			s.logger.Info("Recognition completed",
				zap.String("sessionId", s.session.ID()),
				zap.Int("transcriptLength", len(result.Text)))
			return
		}
	}
}
