package checkpoint

import (
	"context"
	"sync"
	"time"
)

// InmemBackend is the in-process fallback Backend, modeled on the
// teacher's runtime/agent/engine/inmem/engine.go map-of-state pattern.
type InmemBackend struct {
	mu      sync.Mutex
	entries map[string]inmemEntry
}

type inmemEntry struct {
	doc     []byte
	expires time.Time
}

// NewInmemBackend constructs an empty in-memory Backend.
func NewInmemBackend() *InmemBackend {
	return &InmemBackend{entries: make(map[string]inmemEntry)}
}

func (b *InmemBackend) Put(_ context.Context, threadID string, doc []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	b.entries[threadID] = inmemEntry{doc: doc, expires: expires}
	return nil
}

func (b *InmemBackend) Get(_ context.Context, threadID string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[threadID]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(b.entries, threadID)
		return nil, false, nil
	}
	return e.doc, true, nil
}

func (b *InmemBackend) Ping(context.Context) error { return nil }

func (b *InmemBackend) Kind() string { return "inmem" }
