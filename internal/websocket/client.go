// Package websocket wraps a gorilla connection into the transport the
// recognition session runs on: binary frames in both directions, a write
// deadline on every send, a read deadline on every receive, and a close
// that is safe from any goroutine.
package websocket

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to complete the opening handshake.
	defaultHandshakeTimeout = 10 * time.Second

	// Time allowed to write a frame to the peer.
	defaultWriteTimeout = 10 * time.Second

	// Time allowed to wait for the next server frame.
	defaultReceiveTimeout = 30 * time.Second

	// Maximum frame size accepted from the peer.
	maxMessageSize = 512 * 1024
)

// Options tunes one dialed connection. Zero values fall back to the
// package defaults above.
type Options struct {
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReceiveTimeout   time.Duration
}

// Conn is one client connection carrying protocol frames. One goroutine
// may send while another receives. Close may be called from any
// goroutine, any number of times, and unblocks a pending Receive.
type Conn struct {
	ws     *websocket.Conn
	logger *zap.Logger

	writeTimeout   time.Duration
	receiveTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial opens a connection to the endpoint. Handshake rejections are
// returned as a ConnectError carrying the server's status and body
// verbatim; they are never retried here.
func Dial(ctx context.Context, endpoint string, opts Options, logger *zap.Logger) (*Conn, error) {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = defaultReceiveTimeout
	}

	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	ws, resp, err := dialer.DialContext(ctx, endpoint, opts.Header)
	if err != nil {
		connErr := &ConnectError{Endpoint: endpoint, Err: err}
		if resp != nil {
			connErr.StatusCode = resp.StatusCode
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			connErr.Body = strings.TrimSpace(string(body))
		}
		return nil, connErr
	}
	ws.SetReadLimit(maxMessageSize)

	logger.Debug("Connected to recognition endpoint", zap.String("endpoint", endpoint))

	return &Conn{
		ws:             ws,
		logger:         logger,
		writeTimeout:   opts.WriteTimeout,
		receiveTimeout: opts.ReceiveTimeout,
	}, nil
}

// Send writes one binary frame under the write deadline.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return &SendError{Err: err}
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return &SendError{Err: err}
	}
	return nil
}

// Receive reads one frame, waiting at most the configured receive
// timeout. Text messages are returned as raw bytes too; the service is
// loose about which kind it uses.
func (c *Conn) Receive() ([]byte, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(c.receiveTimeout)); err != nil {
		return nil, &ReceiveError{Err: err}
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, &ReceiveError{Err: err, Timeout: true}
		}
		return nil, &ReceiveError{Err: err}
	}
	return data, nil
}

// Close attempts the close handshake and releases the socket. Repeated
// calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(c.writeTimeout)
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := c.ws.WriteControl(websocket.CloseMessage, message, deadline); err != nil && err != websocket.ErrCloseSent {
			c.logger.Debug("Close handshake skipped", zap.Error(err))
		}
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
