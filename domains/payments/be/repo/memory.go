package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zenGate-Global/palmyra-rentals/domains/payments/be/service"
	"github.com/zenGate-Global/palmyra-rentals/platform/go/domainerr"
)

// MemoryRepository keeps payments in memory with a contract/month index that
// enforces one obligation per contract per month.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]service.RentPayment
	byMonth map[string]string
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]service.RentPayment),
		byMonth: make(map[string]string),
	}
}

func monthKey(contractID string, year int, month time.Month) string {
	return fmt.Sprintf("%s|%04d-%02d", contractID, year, int(month))
}

func (r *MemoryRepository) CreateIfAbsent(_ context.Context, p service.RentPayment) (service.RentPayment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := monthKey(p.ContractID, p.DueDate.Year(), p.DueDate.Month())
	if id, exists := r.byMonth[key]; exists {
		return r.byID[id].Clone(), false, nil
	}
	if _, exists := r.byID[p.ID]; exists {
		return service.RentPayment{}, false, domainerr.ErrConflict
	}
	p.Version = 1
	r.byID[p.ID] = p.Clone()
	r.byMonth[key] = p.ID
	return p, true, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (service.RentPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return service.RentPayment{}, domainerr.NotFound(service.Entity, id)
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) FindByContractMonth(_ context.Context, contractID string, year int, month time.Month) (service.RentPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byMonth[monthKey(contractID, year, month)]
	if !ok {
		return service.RentPayment{}, domainerr.NotFound(service.Entity, fmt.Sprintf("%s@%04d-%02d", contractID, year, int(month)))
	}
	return r.byID[id].Clone(), nil
}

// Update replaces the stored row. The contract and due date are fixed at creation.
func (r *MemoryRepository) Update(_ context.Context, p service.RentPayment) (service.RentPayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[p.ID]
	if !ok {
		return service.RentPayment{}, domainerr.NotFound(service.Entity, p.ID)
	}
	if current.Version != p.Version {
		return service.RentPayment{}, domainerr.ErrConflict
	}
	p.ContractID = current.ContractID
	p.DueDate = current.DueDate
	p.CreatedAt = current.CreatedAt
	p.Version++
	r.byID[p.ID] = p.Clone()
	return p, nil
}

func (r *MemoryRepository) List(_ context.Context, f service.Filter) ([]service.RentPayment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]service.RentPayment, 0)
	for _, p := range r.byID {
		if f.Matches(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out, nil
}

var _ service.Repository = (*MemoryRepository)(nil)
