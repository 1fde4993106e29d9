package cache

import (
	"context"
	"fmt"
	"sync"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxTenants = 64

// Manager keeps one live TenantCache per recently used tenant. The least recently used
// cache is deactivated when capacity is exceeded.
type Manager struct {
	ctx    context.Context
	feed   dal.ChangeFeedInterface
	config *models.Config
	logger logger.Logger

	mu     sync.Mutex
	caches *lru.Cache[string, *TenantCache]
}

// NewManager creates a manager whose subscriptions live as long as ctx
func NewManager(ctx context.Context, feed dal.ChangeFeedInterface, cfg *models.Config, log logger.Logger) (*Manager, error) {
	size := cfg.CacheMaxTenants
	if size <= 0 {
		size = defaultMaxTenants
	}

	caches, err := lru.NewWithEvict(size, func(tenantID string, c *TenantCache) {
		log.Infof("Evicting contact cache for tenant %s", tenantID)
		c.Deactivate()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant cache pool: %w", err)
	}

	return &Manager{
		ctx:    ctx,
		feed:   feed,
		config: cfg,
		logger: log,
		caches: caches,
	}, nil
}

// Get returns the live cache of tenantID, activating it on first use. A cache whose
// activation failed is still returned so its status can be inspected.
func (m *Manager) Get(tenantID string) (*TenantCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.caches.Get(tenantID); ok {
		return c, nil
	}

	if tenantID == "" {
		return nil, models.NewValidationError("tenantId", "tenant ID is required")
	}

	c := NewTenantCache(m.feed, m.config, m.logger)
	err := c.Activate(m.ctx, tenantID)
	m.caches.Add(tenantID, c)
	return c, err
}

// Reactivate re-opens every subscription of tenantID, clearing a failed state
func (m *Manager) Reactivate(tenantID string) (*TenantCache, error) {
	if tenantID == "" {
		return nil, models.NewValidationError("tenantId", "tenant ID is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches.Get(tenantID)
	if !ok {
		c = NewTenantCache(m.feed, m.config, m.logger)
		m.caches.Add(tenantID, c)
	}
	m.logger.Infof("Reactivating contact cache for tenant %s", tenantID)
	return c, c.Activate(m.ctx, tenantID)
}

// Len returns the number of live tenant caches
func (m *Manager) Len() int {
	return m.caches.Len()
}

// Close deactivates every cache
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches.Purge()
}
