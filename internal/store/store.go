package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
)

var (
	// ErrIDTagTooLong rejects tags above the OCPP 1.6 limit before they
	// reach storage or the wire.
	ErrIDTagTooLong = errors.New("id tag exceeds 20 characters")

	// ErrChargerNotFound is returned by read paths that require an
	// existing aggregate.
	ErrChargerNotFound = errors.New("charger not found")
)

const statusCacheTTL = 30 * time.Second

// Store is the domain façade: every charger mutation goes through
// ApplyMutation, which serializes writers per charger id, and the global
// id-tag table, template table and local-list version counter live behind
// it as well.
type Store struct {
	chargers  ports.ChargerRepository
	idTags    ports.IDTagRepository
	templates ports.TemplateRepository
	cache     ports.Cache
	log       *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	versionMu   sync.Mutex
	listVersion int
}

// New creates the façade. cache may be nil; snapshot caching is then
// skipped.
func New(chargers ports.ChargerRepository, idTags ports.IDTagRepository, templates ports.TemplateRepository, cache ports.Cache, log *zap.Logger) *Store {
	return &Store{
		chargers:  chargers,
		idTags:    idTags,
		templates: templates,
		cache:     cache,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *Store) chargerLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// GetCharger returns a deep copy of the aggregate, or (nil, nil) when the
// charger is unknown. Expired reservations are pruned from the returned
// snapshot.
func (s *Store) GetCharger(ctx context.Context, id string) (*domain.Charger, error) {
	c, err := s.chargers.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load charger %s: %w", id, err)
	}
	if c == nil {
		return nil, nil
	}
	c.EnsureMaps()
	snap := c.Clone()
	snap.PruneExpiredReservations(time.Now().UTC())
	return snap, nil
}

// ListChargers returns every known aggregate.
func (s *Store) ListChargers(ctx context.Context) ([]domain.Charger, error) {
	return s.chargers.FindAll(ctx)
}

// DeleteCharger removes an aggregate. Explicit operator action only.
func (s *Store) DeleteCharger(ctx context.Context, id string) error {
	l := s.chargerLock(id)
	l.Lock()
	defer l.Unlock()
	if err := s.chargers.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete charger %s: %w", id, err)
	}
	s.dropStatusSnapshot(ctx, id)
	return nil
}

// EnsureCharger loads the aggregate, creating it when absent.
func (s *Store) EnsureCharger(ctx context.Context, id string) (*domain.Charger, error) {
	var out *domain.Charger
	err := s.ApplyMutation(ctx, id, func(c *domain.Charger) error {
		out = c.Clone()
		return nil
	})
	return out, err
}

// ApplyMutation loads the aggregate (creating it when absent), runs fn on
// it, and saves. Writers for one charger are serialized; fn must not block
// on I/O to other chargers.
func (s *Store) ApplyMutation(ctx context.Context, id string, fn func(c *domain.Charger) error) error {
	l := s.chargerLock(id)
	l.Lock()
	defer l.Unlock()

	c, err := s.chargers.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load charger %s: %w", id, err)
	}
	if c == nil {
		c = domain.NewCharger(id)
	}
	c.EnsureMaps()

	if err := fn(c); err != nil {
		return err
	}

	c.UpdatedAt = time.Now().UTC()
	if err := s.chargers.Save(ctx, c); err != nil {
		return fmt.Errorf("save charger %s: %w", id, err)
	}

	s.putStatusSnapshot(ctx, id, c.Status)
	return nil
}

// TouchHeartbeat bumps last_heartbeat. Called for every inbound frame, not
// only OCPP Heartbeat.
func (s *Store) TouchHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.ApplyMutation(ctx, id, func(c *domain.Charger) error {
		c.LastHeartbeat = &now
		return nil
	})
}

// --- status snapshot cache ---

func statusKey(id string) string { return "charger:status:" + id }

func (s *Store) putStatusSnapshot(ctx context.Context, id, status string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, statusKey(id), status, statusCacheTTL); err != nil {
		s.log.Debug("status snapshot cache write failed", zap.String("charge_point_id", id), zap.Error(err))
	}
}

func (s *Store) dropStatusSnapshot(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statusKey(id)); err != nil {
		s.log.Debug("status snapshot cache delete failed", zap.String("charge_point_id", id), zap.Error(err))
	}
}

// CachedStatus returns the cached status snapshot, if present.
func (s *Store) CachedStatus(ctx context.Context, id string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	v, err := s.cache.Get(ctx, statusKey(id))
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

// --- id-tag table ---

// GetIDTag returns (nil, nil) for an unknown tag. Lookups never create
// tags.
func (s *Store) GetIDTag(ctx context.Context, tag string) (*domain.IDTag, error) {
	if len(tag) > domain.MaxIDTagLength {
		return nil, ErrIDTagTooLong
	}
	return s.idTags.FindByTag(ctx, tag)
}

// UpsertIDTag creates or updates a tag row.
func (s *Store) UpsertIDTag(ctx context.Context, tag, status string, expiry *time.Time, parent string) (*domain.IDTag, error) {
	if tag == "" || len(tag) > domain.MaxIDTagLength {
		return nil, ErrIDTagTooLong
	}
	existing, err := s.idTags.FindByTag(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("load id tag: %w", err)
	}
	now := time.Now().UTC()
	t := existing
	if t == nil {
		t = &domain.IDTag{Tag: tag, CreatedAt: now}
	}
	t.Status = status
	t.ExpiryDate = expiry
	t.ParentIDTag = parent
	t.UpdatedAt = now
	if err := s.idTags.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save id tag: %w", err)
	}
	return t, nil
}

// DeleteIDTag removes a tag row.
func (s *Store) DeleteIDTag(ctx context.Context, tag string) error {
	return s.idTags.Delete(ctx, tag)
}

// ListIDTags returns the whole authorization table.
func (s *Store) ListIDTags(ctx context.Context) ([]domain.IDTag, error) {
	return s.idTags.FindAll(ctx)
}

// --- data-transfer templates ---

func (s *Store) ListTemplates(ctx context.Context) ([]domain.DataTransferTemplate, error) {
	return s.templates.FindAll(ctx)
}

func (s *Store) GetTemplate(ctx context.Context, id int) (*domain.DataTransferTemplate, error) {
	return s.templates.FindByID(ctx, id)
}

func (s *Store) SaveTemplate(ctx context.Context, t *domain.DataTransferTemplate) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	return s.templates.Save(ctx, t)
}

func (s *Store) DeleteTemplate(ctx context.Context, id int) error {
	return s.templates.Delete(ctx, id)
}

// --- local authorization list version ---

// NextLocalListVersion increments the global counter and returns the new
// value. Exactly one increment per SendLocalList invocation; the counter is
// process-local, matching the reference behavior.
func (s *Store) NextLocalListVersion() int {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	s.listVersion++
	return s.listVersion
}

// LocalListVersion returns the counter without incrementing.
func (s *Store) LocalListVersion() int {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	return s.listVersion
}
