package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-bridge/bridge-engine/internal/bridge/signing"
	"github.com/r3e-bridge/bridge-engine/internal/system"
	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

const signingTimeoutSweeperInterval = 30 * time.Second

// SigningTimeoutSweeper fails signing sessions that have sat Pending
// longer than the configured signing session timeout, on a 30s loop. A
// Pending session with a dead or slow signer would otherwise never
// transition out of Pending.
type SigningTimeoutSweeper struct {
	coordinator *signing.Coordinator
	timeout     time.Duration
	log         logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*SigningTimeoutSweeper)(nil)

// NewSigningTimeoutSweeper constructs a SigningTimeoutSweeper enforcing
// timeout against the given Coordinator's active sessions.
func NewSigningTimeoutSweeper(coordinator *signing.Coordinator, timeout time.Duration, log logger.Logger) *SigningTimeoutSweeper {
	return &SigningTimeoutSweeper{coordinator: coordinator, timeout: timeout, log: log}
}

func (s *SigningTimeoutSweeper) Name() string { return "signing-timeout-sweeper" }

func (s *SigningTimeoutSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(signingTimeoutSweeperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()

	s.log.Info("signing timeout sweeper started")
	return nil
}

func (s *SigningTimeoutSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *SigningTimeoutSweeper) tick(ctx context.Context) {
	failed, err := s.coordinator.FailStaleSessions(ctx, s.timeout)
	if err != nil {
		s.log.WithError(err).Warn("signing timeout sweeper: fail stale sessions failed")
		return
	}
	if len(failed) == 0 {
		return
	}
	s.log.WithField("count", len(failed)).Info("signing timeout sweeper: failed stale sessions")
}
