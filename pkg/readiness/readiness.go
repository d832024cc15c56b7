// Package readiness tracks which nodes accept requests and lets a caller
// block until all of them do.
package readiness

import (
	"context"
	"sync"
	"time"
)

// Predicate reports whether every peer is ready.
type Predicate func() bool

// Registry records ready flags by node index. It is safe for concurrent use.
type Registry struct {
	data sync.Map
	size int
}

func NewRegistry(size int) *Registry {
	return &Registry{size: size}
}

// MarkReady flags index as able to receive requests.
func (r *Registry) MarkReady(index int) {
	r.data.Store(index, true)
}

// MarkDown clears the flag, for example when a node's server shuts down.
func (r *Registry) MarkDown(index int) {
	r.data.Delete(index)
}

func (r *Registry) IsReady(index int) bool {
	v, ok := r.data.Load(index)
	return ok && v.(bool)
}

// Ready lists the indexes currently flagged.
func (r *Registry) Ready() []int {
	var out []int
	for i := 0; i < r.size; i++ {
		if r.IsReady(i) {
			out = append(out, i)
		}
	}
	return out
}

// AllReady is the Predicate form of the registry.
func (r *Registry) AllReady() bool {
	for i := 0; i < r.size; i++ {
		if !r.IsReady(i) {
			return false
		}
	}
	return true
}

// Wait polls ready every interval until it holds or ctx is done.
// A nil predicate counts as always ready.
func Wait(ctx context.Context, ready Predicate, interval time.Duration) error {
	if ready == nil || ready() {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ready() {
				return nil
			}
		}
	}
}
