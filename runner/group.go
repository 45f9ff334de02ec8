package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Runnable is anything a Group can run: a Session or a tool wrapping one.
type Runnable interface {
	Run(ctx context.Context, wait bool) error
	Close() error
}

// Group runs independent sessions in parallel. Sessions share nothing, so
// there is no ordering between them.
type Group struct {
	mu      sync.RWMutex
	members []Runnable
	limit   int
	closed  bool
}

// NewGroup creates a Group. limit caps how many members run at once;
// zero or less means no cap.
func NewGroup(limit int) *Group {
	return &Group{limit: limit}
}

// Add registers r with the group.
func (g *Group) Add(r Runnable) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return fmt.Errorf("group is closed")
	}
	g.members = append(g.members, r)
	return nil
}

// Len returns the number of members.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// Run runs every member with wait set and returns the joined errors,
// each labelled with the member's position.
func (g *Group) Run(ctx context.Context) error {
	g.mu.RLock()
	members := make([]Runnable, len(g.members))
	copy(members, g.members)
	g.mu.RUnlock()

	var sem chan struct{}
	if g.limit > 0 {
		sem = make(chan struct{}, g.limit)
	}

	errs := make([]error, len(members))
	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func(i int, m Runnable) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					errs[i] = fmt.Errorf("member %d: %w", i, ctx.Err())
					return
				}
			}
			if err := m.Run(ctx, true); err != nil {
				errs[i] = fmt.Errorf("member %d: %w", i, err)
			}
		}(i, m)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close closes every member and returns the joined errors.
func (g *Group) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	members := g.members
	g.members = nil
	g.mu.Unlock()

	var errs []error
	for _, m := range members {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
