package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drstein77/hostfront/internal/models"
	"github.com/drstein77/hostfront/internal/storage"
)

const CookieName = "hf_session"

var ErrNoSession = errors.New("no session")

// Store persists sessions.
type Store interface {
	Get(context.Context, string) (*models.Session, error)
	Create(context.Context, *models.Session) error
	Save(context.Context, *models.Session) error
	Delete(context.Context, string) error
}

type Log interface {
	Debug(string, ...zap.Field)
	Warn(string, ...zap.Field)
}

type ctxKey struct{}

// holder lets Ensure publish a freshly issued id to later calls in the
// same request, and lets Update renew the cookie once per response.
type holder struct {
	id        string
	w         http.ResponseWriter
	refreshed bool
}

// Manager issues, loads and updates visitor sessions.
type Manager struct {
	codec *Codec
	store Store
	ttl   time.Duration
	log   Log
	locks *keyedMutex
	now   func() time.Time
}

func NewManager(codec *Codec, store Store, ttl time.Duration, log Log) *Manager {
	return &Manager{
		codec: codec,
		store: store,
		ttl:   ttl,
		log:   log,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

// Middleware resolves the session cookie. Tampered or unknown cookies are
// cleared; no session is created here.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := &holder{w: w}
		id, err := m.codec.Read(r)
		switch {
		case err == nil:
			if _, gerr := m.store.Get(r.Context(), id); gerr == nil {
				h.id = id
			} else {
				m.log.Debug("session cookie points to unknown session", zap.String("id", id))
				m.codec.Clear(w)
			}
		case errors.Is(err, ErrInvalid):
			m.log.Warn("rejected tampered session cookie", zap.String("remote", r.RemoteAddr))
			m.codec.Clear(w)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, h)))
	})
}

// ID returns the session id of the request, if it has one.
func ID(ctx context.Context) (string, bool) {
	h, ok := ctx.Value(ctxKey{}).(*holder)
	if !ok || h.id == "" {
		return "", false
	}
	return h.id, true
}

// Load returns the request's session or ErrNoSession.
func (m *Manager) Load(r *http.Request) (*models.Session, error) {
	id, ok := ID(r.Context())
	if !ok {
		return nil, ErrNoSession
	}
	s, err := m.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSession
	}
	return s, err
}

// Ensure returns the request's session, issuing a new one and its cookie
// when there is none.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (*models.Session, error) {
	s, err := m.Load(r)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNoSession) {
		return nil, err
	}

	now := m.now()
	s = &models.Session{
		ID:        uuid.NewString(),
		Items:     []models.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Create(r.Context(), s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	m.codec.Set(w, s.ID)
	if h, ok := r.Context().Value(ctxKey{}).(*holder); ok {
		h.id = s.ID
		h.refreshed = true
	}
	m.log.Debug("session issued", zap.String("id", s.ID))
	return s, nil
}

// Update runs fn on the latest copy of session id while holding the
// session's lock, then stores the result with a renewed expiry. Concurrent
// updates of one session run one after another. When ctx belongs to a
// request of that session, its cookie is renewed along with the expiry.
func (m *Manager) Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}

	now := m.now()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(m.ttl)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.renewCookie(ctx, id)
	return s, nil
}

func (m *Manager) renewCookie(ctx context.Context, id string) {
	h, ok := ctx.Value(ctxKey{}).(*holder)
	if !ok || h.w == nil || h.id != id || h.refreshed {
		return
	}
	m.codec.Set(h.w, id)
	h.refreshed = true
}

// Destroy deletes the session and clears its cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) error {
	id, ok := ID(r.Context())
	if !ok {
		return nil
	}
	m.codec.Clear(w)
	if h, ok := r.Context().Value(ctxKey{}).(*holder); ok {
		h.id = ""
	}
	return m.store.Delete(r.Context(), id)
}
