package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/models"
)

// ErrConflict indicates a data conflict in the store.
var (
	ErrConflict = errors.New("data conflict")
	ErrNotFound = errors.New("not found")
)

type Log interface {
	Info(string, ...zap.Field)
	Error(string, ...zap.Field)
}

// Keeper interface for database operations
type Keeper interface {
	LoadSessions(context.Context) ([]*models.Session, error)
	SaveSession(context.Context, *models.Session) error
	DeleteSession(context.Context, string) error
	DeleteExpired(context.Context, time.Time) (int64, error)
	Ping(context.Context) bool
	Close() bool
}

// MemoryStorage keeps sessions in memory and writes them through to the
// keeper when one is configured.
type MemoryStorage struct {
	mx       sync.RWMutex
	sessions map[string]*models.Session

	keeper Keeper
	log    Log
	now    func() time.Time
}

// NewMemoryStorage creates a new MemoryStorage instance
func NewMemoryStorage(ctx context.Context, keeper Keeper, log Log) *MemoryStorage {
	ms := &MemoryStorage{
		sessions: make(map[string]*models.Session),
		keeper:   keeper,
		log:      log,
		now:      time.Now,
	}

	if keeper != nil {
		// Load sessions
		sessions, err := keeper.LoadSessions(ctx)
		if err != nil {
			log.Error("cannot load sessions: ", zap.Error(err))
		}
		for _, s := range sessions {
			ms.sessions[s.ID] = s
		}
		log.Info("sessions loaded", zap.Int("count", len(sessions)))
	}

	return ms
}

// Get returns a copy of a live session.
func (ms *MemoryStorage) Get(_ context.Context, id string) (*models.Session, error) {
	ms.mx.RLock()
	defer ms.mx.RUnlock()

	s, ok := ms.sessions[id]
	if !ok || s.Expired(ms.now()) {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

// Create stores a new session; the id must be unused. Memory is the source
// of truth: a failed write-through is logged, not returned.
func (ms *MemoryStorage) Create(ctx context.Context, s *models.Session) error {
	ms.mx.Lock()
	if _, ok := ms.sessions[s.ID]; ok {
		ms.mx.Unlock()
		return ErrConflict
	}
	ms.sessions[s.ID] = s.Clone()
	ms.mx.Unlock()

	ms.persist(ctx, s)
	return nil
}

// Save replaces a session. Like Create, it never fails on the keeper.
func (ms *MemoryStorage) Save(ctx context.Context, s *models.Session) error {
	ms.mx.Lock()
	ms.sessions[s.ID] = s.Clone()
	ms.mx.Unlock()

	ms.persist(ctx, s)
	return nil
}

func (ms *MemoryStorage) Delete(ctx context.Context, id string) error {
	ms.mx.Lock()
	delete(ms.sessions, id)
	ms.mx.Unlock()

	if ms.keeper == nil {
		return nil
	}
	if err := ms.keeper.DeleteSession(ctx, id); err != nil {
		ms.log.Error("failed to delete persisted session", zap.String("id", id), zap.Error(err))
	}
	return nil
}

// PurgeExpired drops expired sessions and returns how many were removed
// from memory.
func (ms *MemoryStorage) PurgeExpired(ctx context.Context) int {
	now := ms.now()

	ms.mx.Lock()
	n := 0
	for id, s := range ms.sessions {
		if s.Expired(now) {
			delete(ms.sessions, id)
			n++
		}
	}
	ms.mx.Unlock()

	if ms.keeper != nil {
		if _, err := ms.keeper.DeleteExpired(ctx, now); err != nil {
			ms.log.Error("failed to purge expired sessions", zap.Error(err))
		}
	}
	return n
}

// RunJanitor purges expired sessions every interval until ctx is done.
func (ms *MemoryStorage) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ms.PurgeExpired(ctx); n > 0 {
				ms.log.Info("expired sessions purged", zap.Int("count", n))
			}
		}
	}
}

// Ping reports whether the backing database answers; false without one.
func (ms *MemoryStorage) Ping(ctx context.Context) bool {
	if ms.keeper == nil {
		return false
	}
	return ms.keeper.Ping(ctx)
}

func (ms *MemoryStorage) Close() {
	if ms.keeper != nil {
		ms.keeper.Close()
	}
}

// persist writes s through to the keeper, if any. Failures only degrade
// durability, so they are logged.
func (ms *MemoryStorage) persist(ctx context.Context, s *models.Session) {
	if ms.keeper == nil {
		return
	}
	if err := ms.keeper.SaveSession(ctx, s); err != nil {
		ms.log.Error("failed to persist session", zap.String("id", s.ID), zap.Error(err))
	}
}
