package v16

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

// memChargerRepository is an in-memory ChargerRepository
type memChargerRepository struct {
	mu       sync.Mutex
	chargers map[string]*domain.Charger
}

func newMemChargerRepository() *memChargerRepository {
	return &memChargerRepository{chargers: make(map[string]*domain.Charger)}
}

func (m *memChargerRepository) Save(ctx context.Context, c *domain.Charger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chargers[c.ID] = c.Clone()
	return nil
}

func (m *memChargerRepository) FindByID(ctx context.Context, id string) (*domain.Charger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chargers[id]; ok {
		return c.Clone(), nil
	}
	return nil, nil
}

func (m *memChargerRepository) FindAll(ctx context.Context) ([]domain.Charger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Charger
	for _, c := range m.chargers {
		out = append(out, *c.Clone())
	}
	return out, nil
}

func (m *memChargerRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chargers, id)
	return nil
}

// memIDTagRepository is an in-memory IDTagRepository
type memIDTagRepository struct {
	mu   sync.Mutex
	tags map[string]*domain.IDTag
}

func newMemIDTagRepository() *memIDTagRepository {
	return &memIDTagRepository{tags: make(map[string]*domain.IDTag)}
}

func (m *memIDTagRepository) Save(ctx context.Context, tag *domain.IDTag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tag
	m.tags[tag.Tag] = &cp
	return nil
}

func (m *memIDTagRepository) FindByTag(ctx context.Context, tag string) (*domain.IDTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tags[tag]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memIDTagRepository) FindAll(ctx context.Context) ([]domain.IDTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IDTag
	for _, t := range m.tags {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memIDTagRepository) Delete(ctx context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tags, tag)
	return nil
}

// memTemplateRepository is an in-memory TemplateRepository
type memTemplateRepository struct {
	mu        sync.Mutex
	templates map[int]*domain.DataTransferTemplate
	nextID    int
}

func newMemTemplateRepository() *memTemplateRepository {
	return &memTemplateRepository{templates: make(map[int]*domain.DataTransferTemplate)}
}

func (m *memTemplateRepository) Save(ctx context.Context, t *domain.DataTransferTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		m.nextID++
		t.ID = m.nextID
	}
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memTemplateRepository) FindByID(ctx context.Context, id int) (*domain.DataTransferTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.templates[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memTemplateRepository) FindAll(ctx context.Context) ([]domain.DataTransferTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DataTransferTemplate
	for _, t := range m.templates {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTemplateRepository) Delete(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

func newTestStore() (*store.Store, *memChargerRepository, *memIDTagRepository) {
	chargers := newMemChargerRepository()
	idTags := newMemIDTagRepository()
	templates := newMemTemplateRepository()
	return store.New(chargers, idTags, templates, nil, zap.NewNop()), chargers, idTags
}

// memQueue records published events
type memQueue struct {
	mu     sync.Mutex
	events map[string][][]byte
}

func newMemQueue() *memQueue {
	return &memQueue{events: make(map[string][][]byte)}
}

func (q *memQueue) Publish(subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events[subject] = append(q.events[subject], data)
	return nil
}

func (q *memQueue) published(subject string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.events[subject]
}

// fakeConn is an in-memory wireConn. Frames pushed into inbound come out of
// ReadMessage; frames the session writes land on outbound.
type fakeConn struct {
	inbound  chan []byte
	outbound chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound:  make(chan []byte, 16),
		outbound: make(chan []byte, 64),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.inbound:
		return 1, msg, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	select {
	case c.outbound <- data:
		return nil
	case <-c.closed:
		return errors.New("use of closed connection")
	}
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// nextWritten pops the next frame the session wrote, or fails after two
// seconds.
func (c *fakeConn) nextWritten() ([]byte, bool) {
	select {
	case data := <-c.outbound:
		return data, true
	case <-time.After(2 * time.Second):
		return nil, false
	}
}

// decodeParts splits a raw OCPP-J array for assertions.
func decodeParts(raw []byte) []json.RawMessage {
	var parts []json.RawMessage
	json.Unmarshal(raw, &parts)
	return parts
}

// respondWith runs a one-shot charger: it waits for the next outbound CALL
// and pushes the given payload back as a CALLRESULT.
func respondWith(conn *fakeConn, payload string) {
	go func() {
		raw, ok := conn.nextWritten()
		if !ok {
			return
		}
		parts := decodeParts(raw)
		if len(parts) < 4 {
			return
		}
		var uid string
		json.Unmarshal(parts[1], &uid)
		reply, _ := json.Marshal([]interface{}{MessageTypeCallResult, uid, json.RawMessage(payload)})
		conn.inbound <- reply
	}()
}

// respondWithError is like respondWith but answers with a CALLERROR.
func respondWithError(conn *fakeConn, code, description string) {
	go func() {
		raw, ok := conn.nextWritten()
		if !ok {
			return
		}
		parts := decodeParts(raw)
		if len(parts) < 4 {
			return
		}
		var uid string
		json.Unmarshal(parts[1], &uid)
		reply, _ := json.Marshal([]interface{}{MessageTypeCallError, uid, code, description, struct{}{}})
		conn.inbound <- reply
	}()
}
