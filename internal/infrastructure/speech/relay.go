// Package speech bridges recognition events posted by a browser client into capture sessions.
// The platform recognizer runs client-side; the relay only forwards what it reports.
package speech

import (
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/aurano/domain"
	"github.com/fastygo/aurano/usecase/capture"
)

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionStarted
	sessionStopping
	sessionClosed
)

// Relay implements capture.Recognizer for a single user. At most one session is live;
// events arriving without a live session are dropped.
type Relay struct {
	enabled bool
	logger  *zap.Logger

	mu      sync.Mutex
	current *relaySession
}

// NewRelay returns a relay. A disabled relay reports domain.ErrRecognitionUnavailable on Open.
func NewRelay(enabled bool, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{enabled: enabled, logger: logger}
}

// Open starts tracking a new session, replacing any previous one.
func (r *Relay) Open(listener capture.Listener) (capture.Session, error) {
	if !r.enabled {
		return nil, domain.ErrRecognitionUnavailable
	}
	s := &relaySession{relay: r, listener: listener, state: sessionOpen}

	r.mu.Lock()
	if r.current != nil {
		r.current.state = sessionClosed
	}
	r.current = s
	r.mu.Unlock()
	return s, nil
}

// Deliver forwards a recognition result. It reports whether a live session received it.
func (r *Relay) Deliver(result capture.Result) bool {
	s := r.live(false)
	if s == nil || s.listener.OnResult == nil {
		r.logger.Debug("recognition result dropped", zap.Int("index", result.Index))
		return false
	}
	s.listener.OnResult(result)
	return true
}

// Finish reports the end of the client session and closes it.
func (r *Relay) Finish() bool {
	s := r.live(true)
	if s == nil {
		return false
	}
	if s.listener.OnEnd != nil {
		s.listener.OnEnd()
	}
	return true
}

// Fail reports a recognizer error such as "not-allowed" and closes the session.
func (r *Relay) Fail(code, message string) bool {
	s := r.live(true)
	if s == nil {
		return false
	}
	if s.listener.OnError != nil {
		s.listener.OnError(&capture.RecognitionError{Code: code, Message: message})
	}
	return true
}

// Stopping reports whether the client has been asked to finalize the live session.
func (r *Relay) Stopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil && r.current.state == sessionStopping
}

// live returns the started session, optionally detaching it. The listener is invoked by
// callers after the relay lock is released.
func (r *Relay) live(detach bool) *relaySession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.current
	if s == nil || (s.state != sessionStarted && s.state != sessionStopping) {
		return nil
	}
	if detach {
		s.state = sessionClosed
		r.current = nil
	}
	return s
}

type relaySession struct {
	relay    *Relay
	listener capture.Listener
	state    sessionState
}

func (s *relaySession) Start() error {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	if s.state != sessionOpen {
		return domain.ErrInvalidTransition
	}
	s.state = sessionStarted
	return nil
}

func (s *relaySession) Stop() error {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	if s.state != sessionStarted {
		return domain.ErrInvalidTransition
	}
	s.state = sessionStopping
	return nil
}

func (s *relaySession) Abort() {
	s.relay.mu.Lock()
	defer s.relay.mu.Unlock()
	s.state = sessionClosed
	if s.relay.current == s {
		s.relay.current = nil
	}
}

var _ capture.Recognizer = (*Relay)(nil)
