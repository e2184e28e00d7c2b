package websocket

import "fmt"

// ConnectError reports a dial or handshake failure. When the server
// rejected the handshake outright, StatusCode and Body carry its answer
// verbatim.
type ConnectError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ConnectError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("connect %s: handshake rejected with status %d", e.Endpoint, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	return fmt.Sprintf("connect %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// SendError reports a failed frame write, usually because the connection
// is closed or the write deadline passed.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send frame: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// ReceiveError reports a failed frame read. Timeout distinguishes a
// silent server from an abrupt close.
type ReceiveError struct {
	Err     error
	Timeout bool
}

func (e *ReceiveError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("receive frame: timed out: %v", e.Err)
	}
	return fmt.Sprintf("receive frame: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error {
	return e.Err
}
