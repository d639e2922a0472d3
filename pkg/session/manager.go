package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/stategraph/internal/logging"
	"github.com/aretw0/stategraph/pkg/domain"
	"github.com/aretw0/stategraph/pkg/graph"
	"github.com/aretw0/stategraph/pkg/ports"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	store ports.RunStore

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

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new session Manager over store.
func NewManager(store ports.RunStore, opts ...Option) *Manager {
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
// The caller must lock entry.mu and call release after unlocking.
func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		entry = &lockEntry{}
		m.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[id]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, id)
	}
}

// Load retrieves a stored session snapshot.
func (m *Manager) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		var err error
		snap, err = m.store.Load(ctx, id)
		return err
	})
	return snap, err
}

// Save persists a snapshot under snap.ID.
func (m *Manager) Save(ctx context.Context, snap *domain.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return errors.New("snapshot ID is required")
	}
	return m.WithLock(ctx, snap.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, snap)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.WithLock(ctx, id, func(ctx context.Context) error {
		return m.store.Delete(ctx, id)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying store.
func (m *Manager) Store() ports.RunStore {
	return m.store
}

// Continue runs r once for session id. The stored state (if any) is restored,
// update is folded over it (message fields append, others replace) and the
// result becomes the new stored state. A failed run leaves the session untouched.
func (m *Manager) Continue(ctx context.Context, id string, r ports.Runner, update map[string]any) (*domain.Result, error) {
	if id == "" {
		return nil, errors.New("session ID is required")
	}
	g := r.Graph()

	var res *domain.Result
	err := m.WithLock(ctx, id, func(ctx context.Context) error {
		initial, err := m.restore(ctx, id, g)
		if err != nil {
			return err
		}
		for name, v := range update {
			initial[name] = fold(g.Schema(), name, initial[name], v)
		}

		var runErr error
		res, runErr = r.Run(ctx, initial)
		if runErr != nil {
			return runErr
		}
		if err := m.store.Save(ctx, domain.NewSnapshot(id, g.Name(), res.State)); err != nil {
			return fmt.Errorf("save session %q: %w", id, err)
		}
		m.logger.DebugContext(ctx, "session saved", "session_id", id, "run_id", res.RunID, "steps", res.Steps)
		return nil
	})
	return res, err
}

func (m *Manager) restore(ctx context.Context, id string, g *graph.Graph) (map[string]any, error) {
	snap, err := m.store.Load(ctx, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", id, err)
	}
	if snap.Graph != "" && g.Name() != "" && snap.Graph != g.Name() {
		return nil, fmt.Errorf("session %q belongs to graph %q, not %q", id, snap.Graph, g.Name())
	}
	s, err := snap.Restore(g.Schema())
	if err != nil {
		return nil, fmt.Errorf("restore session %q: %w", id, err)
	}
	return s.Values(), nil
}

// fold combines a stored value with an update for the next run's initial values.
func fold(schema *domain.Schema, name string, prev, next any) any {
	f, ok := schema.Field(name)
	if !ok || f.Kind != domain.KindMessages || f.Policy != domain.Append {
		return next
	}
	old, _ := prev.([]domain.Message)
	add, ok := next.([]domain.Message)
	if !ok {
		return next
	}
	return append(old[:len(old):len(old)], add...)
}

// WithLock executes fn while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := m.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(id)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, id, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock (will expire via TTL)",
					"session_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
