// Package mockasr runs a protocol-faithful stand-in for the hosted
// recognition service. Tests script it to play back hypotheses, inject
// error frames, go silent, or reject credentials; a dev binary can run
// it standalone.
package mockasr

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/telinga/internal/metrics"
	"github.com/satriahrh/telinga/internal/protocol"
)

// RecognitionPath is the websocket route, matching the path the hosted
// service serves.
const RecognitionPath = "/api/v3/sauc/bigmodel"

var defaultHypotheses = []string{"halo", "halo apa", "halo apa kabar"}

// Options scripts the server's behavior for one test or dev run.
type Options struct {
	// AppKey and AccessKey, when set, are required from every client.
	// Mismatches are rejected before the upgrade with status 401.
	AppKey    string
	AccessKey string

	// Hypotheses are played back one per audio chunk, sticking at the
	// last entry, which also becomes the final transcript.
	Hypotheses []string

	// LegacyResultList emits results in the old list shape instead of
	// the current single object.
	LegacyResultList bool

	// AckEvery emits an acknowledgement frame before every Nth
	// hypothesis.
	AckEvery int

	// InitErrorCode and InitErrorMessage answer the handshake with an
	// error frame instead of a response.
	InitErrorCode    int32
	InitErrorMessage string

	// FailAfterChunks injects an error frame once that many audio
	// chunks have arrived. ErrorCode and ErrorMessage fill the frame.
	FailAfterChunks int
	ErrorCode       int32
	ErrorMessage    string

	// GarbageAfterChunks answers that many audio chunks with bytes that
	// are not a frame at all.
	GarbageAfterChunks int

	// MuteHandshake never answers the initial request. MuteStreaming
	// answers the handshake but nothing after it. Both force client
	// receive timeouts.
	MuteHandshake bool
	MuteStreaming bool
}

// Server is an in-process recognition service for tests and local
// development. Every decoded client frame is captured for assertions.
type Server struct {
	options  Options
	logger   *zap.Logger
	echo     *echo.Echo
	upgrader websocket.Upgrader
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	mu       sync.Mutex
	captured []protocol.Frame
}

// New builds a server with its own routes and metrics registry.
func New(options Options, logger *zap.Logger) *Server {
	if len(options.Hypotheses) == 0 {
		options.Hypotheses = defaultHypotheses
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		options: options,
		logger:  logger,
		echo:    echo.New(),
		upgrader: websocket.Upgrader{
			// Allow connections from any origin for development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		registry: registry,
		metrics:  metrics.New(registry),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true

	// Middleware
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.CORS())

	// Health check
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "mockasr",
		})
	})
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	s.echo.GET(RecognitionPath, s.handleRecognition)

	return s
}

// Handler exposes the routes for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// CapturedFrames returns a copy of every client frame decoded so far, in
// arrival order.
func (s *Server) CapturedFrames() []protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := make([]protocol.Frame, len(s.captured))
	copy(frames, s.captured)
	return frames
}

func (s *Server) record(frame protocol.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captured = append(s.captured, frame)
}

func (s *Server) handleRecognition(c echo.Context) error {
	if s.options.AppKey != "" || s.options.AccessKey != "" {
		appKey := c.Request().Header.Get("X-Api-App-Key")
		accessKey := c.Request().Header.Get("X-Api-Access-Key")
		if appKey != s.options.AppKey || accessKey != s.options.AccessKey {
			s.logger.Warn("Connection rejected: invalid credentials")
			s.metrics.RejectedUpgrades.Inc()
			return c.String(http.StatusUnauthorized, "invalid credentials")
		}
	}
	if c.Request().Header.Get("X-Api-Request-Id") == "" {
		s.metrics.RejectedUpgrades.Inc()
		return c.String(http.StatusBadRequest, "missing request id")
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	start := time.Now()
	s.metrics.RecordSessionStart()
	defer func() {
		s.metrics.RecordSessionEnd(time.Since(start).Seconds())
	}()

	s.logger.Info("Session opened",
		zap.String("requestId", c.Request().Header.Get("X-Api-Request-Id")))
	s.serveSession(ws)
	return nil
}

func (s *Server) serveSession(ws *websocket.Conn) {
	chunks := 0
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame, err := protocol.DecodeFrame(raw)
		if err != nil {
			s.metrics.FrameErrors.Inc()
			s.logger.Warn("Undecodable client frame", zap.Error(err))
			return
		}
		s.record(frame)
		s.metrics.FramesReceived.Inc()

		switch frame.Type {
		case protocol.MessageTypeClientFullRequest:
			if s.options.MuteHandshake {
				continue
			}
			if s.options.InitErrorMessage != "" {
				s.writeError(ws, frame.Sequence, s.options.InitErrorCode, s.options.InitErrorMessage)
				return
			}
			s.writeResult(ws, frame.Sequence, "", false, 0)

		case protocol.MessageTypeClientAudioOnly:
			if frame.IsLast() {
				if s.options.MuteStreaming {
					continue
				}
				s.writeResult(ws, frame.Sequence, s.finalText(), true, chunks*200)
				return
			}

			chunks++
			s.metrics.RecordAudioChunk(len(frame.Payload))
			if s.options.MuteStreaming {
				continue
			}
			if s.options.GarbageAfterChunks > 0 && chunks >= s.options.GarbageAfterChunks {
				s.writeRaw(ws, []byte{0xFF, 0xEE, 0xDD})
				return
			}
			if s.options.FailAfterChunks > 0 && chunks >= s.options.FailAfterChunks {
				s.writeError(ws, frame.Sequence, s.options.ErrorCode, s.options.ErrorMessage)
				return
			}
			if s.options.AckEvery > 0 && chunks%s.options.AckEvery == 0 {
				s.writeAck(ws, frame.Sequence)
			}
			s.writeResult(ws, frame.Sequence, s.hypothesis(chunks), false, chunks*200)

		default:
			s.logger.Warn("Unexpected client frame type", zap.Stringer("type", frame.Type))
			return
		}
	}
}

func (s *Server) writeResult(ws *websocket.Conn, seq int32, text string, final bool, durationMS int) {
	var result any = map[string]any{
		"text":      text,
		"additions": map[string]string{"source": "mockasr"},
	}
	if s.options.LegacyResultList {
		result = []map[string]string{{"text": text}}
	}

	payload, err := protocol.PackJSON(map[string]any{
		"audio_info": map[string]int{"duration": durationMS},
		"result":     result,
	})
	if err != nil {
		s.logger.Error("Failed to build response payload", zap.Error(err))
		return
	}

	flags := protocol.FlagHasSequence
	if final {
		flags |= protocol.FlagIsLastPacket
	}
	s.writeFrame(ws, protocol.Frame{
		Type:          protocol.MessageTypeServerFullResponse,
		Flags:         flags,
		Serialization: protocol.SerializationJSON,
		Compression:   protocol.CompressionGZIP,
		Sequence:      seq,
		Payload:       payload,
	})
}

func (s *Server) writeError(ws *websocket.Conn, seq int32, code int32, message string) {
	payload, err := protocol.PackRaw([]byte(message))
	if err != nil {
		s.logger.Error("Failed to build error payload", zap.Error(err))
		return
	}
	s.metrics.ErrorsInjected.Inc()
	s.writeFrame(ws, protocol.Frame{
		Type:          protocol.MessageTypeServerError,
		Flags:         protocol.FlagHasSequence,
		Serialization: protocol.SerializationJSON,
		Compression:   protocol.CompressionGZIP,
		Sequence:      seq,
		ErrorCode:     code,
		Payload:       payload,
	})
}

func (s *Server) writeAck(ws *websocket.Conn, seq int32) {
	s.writeFrame(ws, protocol.Frame{
		Type:          protocol.MessageTypeServerAck,
		Flags:         protocol.FlagHasSequence,
		Serialization: protocol.SerializationJSON,
		Compression:   protocol.CompressionNone,
		Sequence:      seq,
	})
}

func (s *Server) writeFrame(ws *websocket.Conn, frame protocol.Frame) {
	wire, err := protocol.EncodeFrame(frame)
	if err != nil {
		s.logger.Error("Failed to encode server frame", zap.Error(err))
		return
	}
	s.writeRaw(ws, wire)
}

func (s *Server) writeRaw(ws *websocket.Conn, data []byte) {
	if err := ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.logger.Warn("Failed to write frame", zap.Error(err))
		return
	}
	s.metrics.FramesSent.Inc()
}

func (s *Server) hypothesis(chunk int) string {
	if chunk > len(s.options.Hypotheses) {
		chunk = len(s.options.Hypotheses)
	}
	return s.options.Hypotheses[chunk-1]
}

func (s *Server) finalText() string {
	return s.options.Hypotheses[len(s.options.Hypotheses)-1]
}
