package v16

import (
	"sync"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/observability/telemetry"
)

// Registry is the process-wide charge-point-id to session map. At most one
// live session per id: binding a new session evicts and closes the old one
// first, which fails its pending calls with ErrConnectionLost.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Bind installs s for its charge-point id, closing any previous session
// before the new one becomes visible. Close blocks, so eviction happens
// outside the lock; the claim is retried until the slot was observed
// empty, which keeps a concurrent Bind from leaving an unbound live
// session behind.
func (r *Registry) Bind(s *Session) {
	id := s.ChargePointID()

	for {
		r.mu.Lock()
		prev := r.sessions[id]
		if prev == nil || prev == s {
			r.sessions[id] = s
			count := len(r.sessions)
			r.mu.Unlock()
			telemetry.ConnectedChargers.Set(float64(count))
			return
		}
		delete(r.sessions, id)
		r.mu.Unlock()

		r.log.Info("evicting previous session",
			zap.String("charge_point_id", id),
		)
		prev.Close()
	}
}

// Unbind removes the mapping only if it still points at s, so a session
// closing late cannot evict its replacement.
func (r *Registry) Unbind(s *Session) {
	id := s.ChargePointID()

	r.mu.Lock()
	if cur, ok := r.sessions[id]; ok && cur == s {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	telemetry.ConnectedChargers.Set(float64(count))
}

// Get returns the live session for id, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// IsConnected reports whether a non-closed session is bound for id.
func (r *Registry) IsConnected(id string) bool {
	s := r.Get(id)
	return s != nil && !s.Closed()
}

// ConnectedIDs snapshots the bound charge-point ids.
func (r *Registry) ConnectedIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of bound sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions observed closed and returns their ids. Bounded
// work; safe to run on the operator request path.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	var stale []string
	for id, s := range r.sessions {
		if s.Closed() {
			delete(r.sessions, id)
			stale = append(stale, id)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	telemetry.ConnectedChargers.Set(float64(count))
	for _, id := range stale {
		r.log.Info("swept stale session", zap.String("charge_point_id", id))
	}
	return stale
}

// CloseAll closes every session. Shutdown path.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	telemetry.ConnectedChargers.Set(0)
}
