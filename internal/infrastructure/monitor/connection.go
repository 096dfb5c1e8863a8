package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/aurano/internal/infrastructure/buffer"
)

// PingFunc checks that a backend answers.
type PingFunc func(ctx context.Context) error

// Monitor periodically pings the primary user data backend and inspects the buffer.
// The buffer processor only drains while IsOnline reports true.
type Monitor struct {
	backend string
	ping    PingFunc
	buffer  *buffer.Store

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(backend string, ping PingFunc, buf *buffer.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		backend:  backend,
		ping:     ping,
		buffer:   buf,
		status:   Status{Backend: backend},
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Check refreshes the status immediately and returns it.
func (m *Monitor) Check(ctx context.Context) Status {
	bufferOK, bufferSize := m.checkBuffer()
	status := Status{
		Backend:    m.backend,
		Online:     m.checkBackend(ctx),
		Buffer:     bufferOK,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.Online != status.Online {
		if status.Online {
			m.logger.Info("backend reachable again", zap.String("backend", m.backend), zap.Int("buffered", bufferSize))
		} else {
			m.logger.Warn("backend unreachable", zap.String("backend", m.backend))
		}
	}
	return status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Check(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) checkBackend(ctx context.Context) bool {
	if m.ping == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := m.ping(ctx); err != nil {
		m.logger.Debug("backend ping failed", zap.String("backend", m.backend), zap.Error(err))
		return false
	}
	return true
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.buffer == nil {
		return false, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
