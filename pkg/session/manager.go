package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/aretw0/theatre/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates scene access, ensuring safe concurrent operations.
// Unused locks are garbage collected by reference counting.
type Manager struct {
	store ports.SceneStore

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new scene Manager over the given store.
func NewManager(store ports.SceneStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must lock entry.mu and call release(name) after unlocking.
func (m *Manager) acquire(name string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		entry = &lockEntry{}
		m.locks[name] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[name]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, name)
	}
}

// Load retrieves a scene from the store.
func (m *Manager) Load(ctx context.Context, name string) (*domain.SceneSpec, error) {
	var scene *domain.SceneSpec
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		scene, err = m.store.Load(ctx, name)
		return err
	})
	return scene, err
}

// LoadOrCreate loads a scene, persisting an empty one under name if it does not exist yet.
func (m *Manager) LoadOrCreate(ctx context.Context, name, situation string) (*domain.SceneSpec, error) {
	var scene *domain.SceneSpec
	err := m.WithLock(ctx, name, func(ctx context.Context) error {
		var err error
		scene, err = m.store.Load(ctx, name)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSceneNotFound) {
			return fmt.Errorf("failed to check scene existence: %w", err)
		}

		if situation == "" {
			situation = domain.DefaultSituation
		}
		scene = &domain.SceneSpec{Name: name, Situation: situation, Nodes: []domain.NodeSpec{}, Edges: []domain.EdgeSpec{}}
		if err := m.store.Save(ctx, name, scene); err != nil {
			return fmt.Errorf("failed to initialize scene: %w", err)
		}
		return nil
	})
	return scene, err
}

// Save persists the scene.
func (m *Manager) Save(ctx context.Context, name string, scene *domain.SceneSpec) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Save(ctx, name, scene)
	})
}

// Update loads a scene, applies fn and saves the result under one lock.
func (m *Manager) Update(ctx context.Context, name string, fn func(*domain.SceneSpec) error) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		scene, err := m.store.Load(ctx, name)
		if err != nil {
			return err
		}
		if err := fn(scene); err != nil {
			return err
		}
		return m.store.Save(ctx, name, scene)
	})
}

// Delete removes the scene from the store.
func (m *Manager) Delete(ctx context.Context, name string) error {
	return m.WithLock(ctx, name, func(ctx context.Context) error {
		return m.store.Delete(ctx, name)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying scene store.
func (m *Manager) Store() ports.SceneStore {
	return m.store
}

// WithLock executes fn while holding the lock for the scene.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(context.Context) error) error {
	entry := m.acquire(name)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(name)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, name, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"scene", name,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
