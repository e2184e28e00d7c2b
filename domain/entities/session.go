package entities

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState represents where a recognition session is in its lifecycle.
type SessionState string

const (
	SessionStateInitializing SessionState = "initializing"
	SessionStateStreaming    SessionState = "streaming"
	SessionStateFinalizing   SessionState = "finalizing"
	SessionStateClosed       SessionState = "closed"
	SessionStateFailed       SessionState = "failed"
)

// Session tracks one recognition stream: its lifecycle state, the
// client-side sequence counter, and the latest transcript. A session maps
// to exactly one connection and is never reused.
type Session struct {
	mu         sync.Mutex
	id         string
	state      SessionState
	sequence   int32
	transcript string
	err        error
	createdAt  time.Time
}

// NewSession creates a session in the initializing state with the
// sequence counter ready to hand out 1.
func NewSession() *Session {
	return &Session{
		id:        uuid.NewString(),
		state:     SessionStateInitializing,
		createdAt: time.Now(),
	}
}

// ID returns the identifier used to correlate requests with the service.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextSequence hands out the next positive sequence value. Every client
// frame consumes exactly one.
func (s *Session) NextSequence() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence
}

// TerminalSequence consumes the next sequence value and returns it
// negated, which is how the closing frame is numbered.
func (s *Session) TerminalSequence() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return -s.sequence
}

// StartStreaming moves the session out of initialization once the
// handshake response has arrived.
func (s *Session) StartStreaming() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionStateInitializing {
		return fmt.Errorf("cannot start streaming from state %s", s.state)
	}
	s.state = SessionStateStreaming
	return nil
}

// BeginFinalizing marks that the caller has no more audio to send.
func (s *Session) BeginFinalizing() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionStateStreaming {
		return fmt.Errorf("cannot finalize from state %s", s.state)
	}
	s.state = SessionStateFinalizing
	return nil
}

// Complete closes the session after the server's final response.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionStateStreaming && s.state != SessionStateFinalizing {
		return fmt.Errorf("cannot complete from state %s", s.state)
	}
	s.state = SessionStateClosed
	return nil
}

// Fail records the first terminal error. Once the session is closed or
// failed the outcome is settled and later failures are discarded.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionStateClosed || s.state == SessionStateFailed {
		return
	}
	s.state = SessionStateFailed
	s.err = err
}

// UpdateTranscript replaces the accumulated transcript. Every hypothesis
// carries the full text so far, so older text is overwritten, never
// appended to. Hypotheses arriving after a terminal state are discarded.
func (s *Session) UpdateTranscript(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionStateClosed || s.state == SessionStateFailed {
		return
	}
	s.transcript = text
}

// Transcript returns the latest accumulated transcript.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Err returns the terminal error of a failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// IsTerminal reports whether the session reached closed or failed.
func (s *Session) IsTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == SessionStateClosed || s.state == SessionStateFailed
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Validate validates the session data.
func (s *Session) Validate() error {
	if s.id == "" {
		return errors.New("session id is required")
	}

	switch s.State() {
	case SessionStateInitializing, SessionStateStreaming, SessionStateFinalizing, SessionStateClosed, SessionStateFailed:
		return nil
	default:
		return fmt.Errorf("invalid session state %q", s.State())
	}
}
