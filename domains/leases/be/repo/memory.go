package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/zenGate-Global/palmyra-rentals/domains/leases/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and single-node development.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]service.LeaseContract
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]service.LeaseContract)}
}

func (r *MemoryRepository) Create(_ context.Context, c service.LeaseContract) (service.LeaseContract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID]; exists {
		return service.LeaseContract{}, domainerr.ErrConflict
	}
	c.Version = 1
	r.byID[c.ID] = c.Clone()
	return c, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (service.LeaseContract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return service.LeaseContract{}, domainerr.NotFound(service.Entity, id)
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) Update(_ context.Context, c service.LeaseContract) (service.LeaseContract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[c.ID]
	if !ok {
		return service.LeaseContract{}, domainerr.NotFound(service.Entity, c.ID)
	}
	if current.Version != c.Version {
		return service.LeaseContract{}, domainerr.ErrConflict
	}
	c.Version++
	r.byID[c.ID] = c.Clone()
	return c, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return domainerr.NotFound(service.Entity, id)
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.LeaseContract, 0, len(r.byID))
	for _, c := range r.byID {
		if !matches(c, opts) {
			continue
		}
		items = append(items, c.Clone())
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	page, pageSize := normalizePage(opts.Page, opts.PageSize)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	return service.ListResult{
		Contracts:  items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(items),
		TotalPages: (len(items) + pageSize - 1) / pageSize,
	}, nil
}

func matches(c service.LeaseContract, opts service.ListOptions) bool {
	if opts.Status != nil && c.Status != *opts.Status {
		return false
	}
	if opts.PropertyID != nil && c.PropertyID != *opts.PropertyID {
		return false
	}
	if opts.EndsBefore != nil && !c.EndDate.Before(*opts.EndsBefore) {
		return false
	}
	if opts.TenantID != nil {
		for _, id := range c.TenantIDs {
			if id == *opts.TenantID {
				return true
			}
		}
		return false
	}
	return true
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return page, size
}

var _ service.Repository = (*MemoryRepository)(nil)
