package service

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/storage"
	"github.com/gold-portfolio/internal/types"
	"github.com/gold-portfolio/internal/worker"
)

// Ledger is the ledger contract used by commands and read handlers
type Ledger interface {
	Add(in storage.AddEntryInput) (models.Entry, error)
	Update(id string, in storage.UpdateEntryInput) (models.Entry, error)
	Remove(id string) bool
	Get(id string) (models.Entry, bool)
	List() []models.Entry
	LastPersistError() error
}

// PriceProvider exposes a refresher's snapshot and point-in-time lookups
type PriceProvider interface {
	Current() (models.PriceSnapshot, bool)
	HistoricalPrice(ctx context.Context, date string) (float64, bool)
	State() types.RefreshState
}

// Instance is one configured data source with its own ledger
type Instance struct {
	ID     string
	Ledger Ledger
	Prices PriceProvider
	Health *worker.RefreshHealth
}

// Registry holds the configured instances, keyed by id
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	order     []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]*Instance),
	}
}

// Register adds an instance. Ids must be unique.
func (r *Registry) Register(inst *Instance) error {
	if inst == nil || inst.ID == "" {
		return fmt.Errorf("instance id cannot be empty")
	}
	if inst.Ledger == nil || inst.Prices == nil {
		return fmt.Errorf("instance %s: ledger and prices are required", inst.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[inst.ID]; exists {
		return fmt.Errorf("instance %s already registered", inst.ID)
	}
	r.instances[inst.ID] = inst
	r.order = append(r.order, inst.ID)
	return nil
}

// Get returns the instance with id or a not-found error
func (r *Registry) Get(id string) (*Instance, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("entry_id", "instance id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("instance", id)
	}
	return inst, nil
}

// All returns instances in registration order
func (r *Registry) All() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Instance, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.instances[id])
	}
	return out
}

// Len returns the number of registered instances
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
