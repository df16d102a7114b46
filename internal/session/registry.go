package session

import (
	"context"
	"sync"
)

// DefaultID is the session key used when the transport does not supply one.
const DefaultID = "default"

// Registry records each session's active issue.
type Registry interface {
	Active(ctx context.Context, sessionID string) (string, bool, error)
	Select(ctx context.Context, sessionID, issue string) error
	Forget(ctx context.Context, sessionID string) error
	Close() error
}

// MemoryRegistry keeps selections in process memory. Selections are lost
// on restart.
type MemoryRegistry struct {
	mu     sync.RWMutex
	active map[string]string
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{active: make(map[string]string)}
}

func (r *MemoryRegistry) Active(_ context.Context, sessionID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.active[sessionID]
	return name, ok, nil
}

func (r *MemoryRegistry) Select(_ context.Context, sessionID, issue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[sessionID] = issue
	return nil
}

func (r *MemoryRegistry) Forget(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, sessionID)
	return nil
}

func (r *MemoryRegistry) Close() error { return nil }
