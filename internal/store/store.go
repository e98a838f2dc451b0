// Package store holds the view stores: one per view, each owning an
// in-memory collection of its view-native records.
//
// Writes go straight to the database. The in-memory collection only changes
// on Fetch, so a store shows persisted state as of its last refresh.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/baiirun/viewlink/internal/model"
)

// ErrNoStore is returned when no store is registered for a view.
var ErrNoStore = errors.New("no store registered for view")

// Store is the capability set the link core needs from a view.
type Store interface {
	View() model.ViewType
	// Fetch refreshes the in-memory collection from persisted state.
	Fetch(ctx context.Context) error
	// Get reads one persisted record.
	Get(ctx context.Context, id string) (model.Record, error)
	Create(ctx context.Context, draft model.Draft) (model.Record, error)
	// Apply writes the fields a mirrored change carries. Placement such as
	// kanban lane or WBS position is never touched.
	Apply(ctx context.Context, id string, draft model.Draft) error
	Delete(ctx context.Context, id string) error
}

// Registry maps each view to its store.
type Registry struct {
	mu     sync.RWMutex
	stores map[model.ViewType]Store
}

func NewRegistry(stores ...Store) *Registry {
	r := &Registry{stores: make(map[model.ViewType]Store)}
	for _, s := range stores {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the store for s.View().
func (r *Registry) Register(s Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stores[s.View()] = s
}

// Store returns the store for view.
func (r *Registry) Store(view model.ViewType) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[view]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoStore, view)
	}
	return s, nil
}

// Views returns the registered views in canonical order.
func (r *Registry) Views() []model.ViewType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var views []model.ViewType
	for _, v := range model.AllViews {
		if _, ok := r.stores[v]; ok {
			views = append(views, v)
		}
	}
	return views
}

func wrongDraft(view model.ViewType, d model.Draft) error {
	return fmt.Errorf("%s store cannot accept a %T draft", view, d)
}

// collection is the lock-guarded in-memory slice every store keeps.
type collection[T any] struct {
	mu    sync.RWMutex
	items []T
}

func (c *collection[T]) set(items []T) {
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
}

func (c *collection[T]) snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}
