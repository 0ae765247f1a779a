package coordinator

import (
	"sync"
	"time"

	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/repository"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/logger"
	"go.uber.org/zap"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLocker adds a cross-process lock around every upsert.
func WithLocker(l Locker) Option {
	return func(m *Manager) {
		m.locker = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager hands out exactly one Coordinator per tenant.
type Manager struct {
	mu           sync.Mutex
	coordinators map[string]*Coordinator
	store        repository.MappingRepository
	locker       Locker
	now          func() time.Time
	logger       *zap.Logger
}

func NewManager(store repository.MappingRepository, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		coordinators: make(map[string]*Coordinator),
		store:        store,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// For returns the tenant's coordinator, creating it on first use. Its state is
// read through from the durable store.
func (m *Manager) For(tenantID string) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.coordinators[tenantID]; ok {
		return c
	}
	c := &Coordinator{
		tenantID: tenantID,
		store:    m.store,
		locker:   m.locker,
		now:      m.now,
		logger:   logger.ForTenant(m.logger, tenantID),
	}
	m.coordinators[tenantID] = c
	return c
}
