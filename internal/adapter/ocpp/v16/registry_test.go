package v16

import (
	"sync"
	"testing"

	"go.uber.org/zap"
)

func newRegistrySession(id string) (*Session, *fakeConn) {
	conn := newFakeConn()
	sess := newSession(id, conn, nil, nil, zap.NewNop(), nil)
	return sess, conn
}

func TestRegistry_BindAndGet(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	sess, _ := newRegistrySession("CP001")

	r.Bind(sess)
	if got := r.Get("CP001"); got != sess {
		t.Error("Get did not return the bound session")
	}
	if !r.IsConnected("CP001") {
		t.Error("Expected IsConnected true")
	}
	if r.Count() != 1 {
		t.Errorf("Expected count 1, got %d", r.Count())
	}
}

func TestRegistry_BindEvictsPrevious(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	old, _ := newRegistrySession("CP001")
	r.Bind(old)

	replacement, _ := newRegistrySession("CP001")
	r.Bind(replacement)

	if !old.Closed() {
		t.Error("Expected previous session to be closed on rebind")
	}
	if got := r.Get("CP001"); got != replacement {
		t.Error("Expected replacement session bound")
	}
	if r.Count() != 1 {
		t.Errorf("Expected count 1, got %d", r.Count())
	}
}

func TestRegistry_ConcurrentBindsLeaveOneLiveSession(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	const binds = 50
	sessions := make([]*Session, binds)
	for i := range sessions {
		sessions[i], _ = newRegistrySession("CP001")
	}

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.Bind(s)
		}(sess)
	}
	wg.Wait()

	winner := r.Get("CP001")
	if winner == nil {
		t.Fatal("Expected a session bound after concurrent binds")
	}
	if winner.Closed() {
		t.Error("Bound session must not be closed")
	}
	for _, sess := range sessions {
		if sess != winner && !sess.Closed() {
			t.Error("Losing session left open and unbound")
		}
	}
	if r.Count() != 1 {
		t.Errorf("Expected a single binding, got %d", r.Count())
	}
}

func TestRegistry_UnbindOnlyRemovesSameSession(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	old, _ := newRegistrySession("CP001")
	r.Bind(old)

	replacement, _ := newRegistrySession("CP001")
	r.Bind(replacement)

	// The evicted session closing late must not evict its replacement.
	r.Unbind(old)
	if got := r.Get("CP001"); got != replacement {
		t.Error("Unbind of stale session removed the replacement")
	}

	r.Unbind(replacement)
	if r.Get("CP001") != nil {
		t.Error("Expected session removed")
	}
}

func TestRegistry_IsConnectedFalseForClosed(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	sess, _ := newRegistrySession("CP001")
	r.Bind(sess)

	sess.Close()
	if r.IsConnected("CP001") {
		t.Error("Expected IsConnected false for closed session")
	}
}

func TestRegistry_Sweep(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	live, _ := newRegistrySession("CP-live")
	dead, _ := newRegistrySession("CP-dead")
	r.Bind(live)
	r.Bind(dead)

	dead.Close()
	stale := r.Sweep()

	if len(stale) != 1 || stale[0] != "CP-dead" {
		t.Errorf("Expected [CP-dead] swept, got %v", stale)
	}
	if r.Get("CP-dead") != nil {
		t.Error("Swept session still bound")
	}
	if r.Get("CP-live") != live {
		t.Error("Live session was swept")
	}
}

func TestRegistry_ConnectedIDs(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a, _ := newRegistrySession("CP-a")
	b, _ := newRegistrySession("CP-b")
	r.Bind(a)
	r.Bind(b)

	ids := r.ConnectedIDs()
	if len(ids) != 2 {
		t.Fatalf("Expected 2 ids, got %v", ids)
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["CP-a"] || !seen["CP-b"] {
		t.Errorf("Missing ids in %v", ids)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a, _ := newRegistrySession("CP-a")
	b, _ := newRegistrySession("CP-b")
	r.Bind(a)
	r.Bind(b)

	r.CloseAll()

	if !a.Closed() || !b.Closed() {
		t.Error("Expected all sessions closed")
	}
	if r.Count() != 0 {
		t.Errorf("Expected empty registry, got %d", r.Count())
	}
}
