// Package dedup suppresses replayed webhook deliveries by provider event id.
package dedup

import (
	"context"
	"sync"
)

// Guard tracks externally supplied event identifiers. Implementations must be
// safe for concurrent use. Empty event ids are never seen and never recorded.
type Guard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string) error
}

const DefaultCapacity = 1000

// memoryGuard is a bounded in-memory set with insertion-order eviction.
// It does not survive restarts and is not shared across processes; use the
// redis guard for multi-instance deployments.
type memoryGuard struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
	capacity int
}

// NewMemoryGuard returns an in-memory Guard holding at most capacity ids.
func NewMemoryGuard(capacity int) Guard {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &memoryGuard{
		seen:     make(map[string]struct{}, capacity),
		capacity: capacity,
	}
}

func (g *memoryGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.seen[eventID]
	return ok, nil
}

func (g *memoryGuard) Record(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[eventID]; ok {
		return nil
	}
	g.seen[eventID] = struct{}{}
	g.order = append(g.order, eventID)
	for len(g.order) > g.capacity {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.seen, oldest)
	}
	return nil
}
