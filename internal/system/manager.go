package system

import (
	"context"
	"fmt"
	"sync"

	"github.com/r3e-bridge/bridge-engine/pkg/logger"
)

// Manager registers and supervises a set of Services, starting them in
// registration order and stopping them in reverse order. It is the
// composition root the HTTP server and the background drivers are started
// from.
type Manager struct {
	mu       sync.Mutex
	services []Service
	log      logger.Logger
}

// NewManager creates an empty Manager.
func NewManager(log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{log: log}
}

// Register adds a service to the managed set. Must be called before Start.
func (m *Manager) Register(s Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = append(m.services, s)
}

// Start starts every registered service in registration order. If a service
// fails to start, the services already started are stopped in reverse order
// before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	started := make([]Service, 0, len(services))
	for _, s := range services {
		m.log.WithField("service", s.Name()).Info("starting service")
		if err := s.Start(ctx); err != nil {
			m.log.WithField("service", s.Name()).WithError(err).Error("service failed to start")
			m.stopAll(ctx, started)
			return fmt.Errorf("start %s: %w", s.Name(), err)
		}
		started = append(started, s)
	}
	return nil
}

// Stop stops every registered service in reverse registration order,
// collecting (but not aborting on) individual stop errors.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	services := append([]Service(nil), m.services...)
	m.mu.Unlock()

	return m.stopAll(ctx, services)
}

func (m *Manager) stopAll(ctx context.Context, services []Service) error {
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		s := services[i]
		m.log.WithField("service", s.Name()).Info("stopping service")
		if err := s.Stop(ctx); err != nil {
			m.log.WithField("service", s.Name()).WithError(err).Error("service failed to stop")
			errs = append(errs, fmt.Errorf("stop %s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d service(s) failed to stop: %v", len(errs), errs)
	}
	return nil
}
