// Package ratelimit serializes expensive backend calls per owner so one
// owner's jobs cannot saturate the text generation budget for everyone.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// OwnerGate grants at most one in-flight generation call per owner.
type OwnerGate struct {
	mu    sync.Mutex
	gates map[string]*semaphore.Weighted
}

// NewOwnerGate constructs an empty gate table.
func NewOwnerGate() *OwnerGate {
	return &OwnerGate{gates: make(map[string]*semaphore.Weighted)}
}

// Acquire blocks until the owner's slot is free or the context ends. The
// returned release function must be called exactly once.
func (g *OwnerGate) Acquire(ctx context.Context, ownerID string) (func(), error) {
	gate := g.gateFor(ownerID)
	if err := gate.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { gate.Release(1) })
	}, nil
}

func (g *OwnerGate) gateFor(ownerID string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate, ok := g.gates[ownerID]
	if !ok {
		gate = semaphore.NewWeighted(1)
		g.gates[ownerID] = gate
	}
	return gate
}
