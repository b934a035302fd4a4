package v16

import (
	"encoding/json"
	"fmt"
	"sync"
)

// callOutcome is what a waiter receives: exactly one of payload, callErr
// or err is meaningful.
type callOutcome struct {
	payload json.RawMessage
	callErr *CallError
	err     error
}

// pendingCalls maps in-flight uids to their waiters. Owned by one session,
// never shared across sessions. Each waiter channel is buffered so the
// receive loop never blocks delivering an outcome.
type pendingCalls struct {
	mu      sync.Mutex
	waiters map[string]chan callOutcome
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{waiters: make(map[string]chan callOutcome)}
}

// insert registers a waiter for uid. A duplicate uid is a programming
// error since uids are freshly generated per call.
func (p *pendingCalls) insert(uid string) (chan callOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.waiters[uid]; exists {
		return nil, fmt.Errorf("duplicate pending call uid %q", uid)
	}
	ch := make(chan callOutcome, 1)
	p.waiters[uid] = ch
	return ch, nil
}

// pop removes and returns the waiter for uid, or nil when none exists
// (late reply, or a reply for a uid we never issued).
func (p *pendingCalls) pop(uid string) chan callOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.waiters[uid]
	if !ok {
		return nil
	}
	delete(p.waiters, uid)
	return ch
}

// cancelAll drains the table, failing every waiter with err. Called once
// on session close.
func (p *pendingCalls) cancelAll(err error) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = make(map[string]chan callOutcome)
	p.mu.Unlock()
	for _, ch := range waiters {
		ch <- callOutcome{err: err}
	}
}

func (p *pendingCalls) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}
