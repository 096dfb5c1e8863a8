package services

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/internal/infrastructure/speech"
	"github.com/fastygo/aurano/pkg/clock"
	"github.com/fastygo/aurano/usecase/capture"
	"github.com/fastygo/aurano/usecase/task"
)

// StoreOpener resolves the task store of a user. task.Registry satisfies it.
type StoreOpener interface {
	Open(ctx context.Context, userID string) (*task.Store, error)
}

// CaptureConfig tunes the capture session cache.
type CaptureConfig struct {
	SpeechEnabled bool
	TTL           time.Duration
	MaxSessions   int
	Clock         clock.Clock
}

// CaptureSession pairs a user's capture machine with the relay that feeds it.
type CaptureSession struct {
	Machine *capture.Machine
	Relay   *speech.Relay
}

// CaptureSessions keeps one capture session per user. Idle entries expire after the TTL;
// an expired or evicted session is aborted so no recognizer session outlives it.
type CaptureSessions struct {
	stores StoreOpener
	cfg    CaptureConfig
	logger *zap.Logger

	mu       sync.Mutex
	sessions *expirable.LRU[string, *CaptureSession]
}

func NewCaptureSessions(stores StoreOpener, cfg CaptureConfig, logger *zap.Logger) *CaptureSessions {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CaptureSessions{stores: stores, cfg: cfg, logger: logger}
	c.sessions = expirable.NewLRU[string, *CaptureSession](cfg.MaxSessions, c.evicted, cfg.TTL)
	return c
}

// Get returns the user's session, creating it on first use. Each access extends its TTL.
func (c *CaptureSessions) Get(userID string) *CaptureSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	session, ok := c.sessions.Get(userID)
	if !ok {
		// drops an expired entry that the background sweep has not collected yet
		c.sessions.Remove(userID)
		relay := speech.NewRelay(c.cfg.SpeechEnabled, c.logger)
		session = &CaptureSession{
			Relay: relay,
			Machine: capture.NewMachine(capture.Config{
				Recognizer: relay,
				Sink:       &storeSink{stores: c.stores, userID: userID},
				Clock:      c.cfg.Clock,
				Logger:     c.logger.With(zap.String("user_id", userID)),
				OnError: func(err error) {
					c.logger.Info("capture attempt failed", zap.String("user_id", userID), zap.Error(err))
				},
			}),
		}
	}
	c.sessions.Add(userID, session)
	return session
}

// Peek returns the user's session without creating it or extending its TTL.
func (c *CaptureSessions) Peek(userID string) (*CaptureSession, bool) {
	return c.sessions.Peek(userID)
}

// Len returns the number of live sessions.
func (c *CaptureSessions) Len() int {
	return c.sessions.Len()
}

// Close aborts every session.
func (c *CaptureSessions) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions.Purge()
}

func (c *CaptureSessions) evicted(userID string, session *CaptureSession) {
	if session == nil || session.Machine == nil {
		return
	}
	session.Machine.Abort()
	c.logger.Debug("capture session released", zap.String("user_id", userID))
}

// storeSink resolves the store at submit time so a machine never holds on to a store
// the registry has since evicted.
type storeSink struct {
	stores StoreOpener
	userID string
}

func (s *storeSink) AddTask(ctx context.Context, in task.AddTaskInput) (task.AddTaskOutput, error) {
	store, err := s.stores.Open(ctx, s.userID)
	if err != nil {
		return task.AddTaskOutput{}, err
	}
	return store.AddTask(ctx, in)
}
