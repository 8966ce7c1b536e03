package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/tidewell/podwatch/internal/coverage/domain"
)

// InMemoryGapRepository implements domain.GapRepository with an in-memory
// map. Used for tests and local development. The mutex makes the duplicate
// check and the insert atomic, mirroring the database's partial unique index.
type InMemoryGapRepository struct {
	mu   sync.Mutex
	gaps map[string]*domain.Gap
}

// NewInMemoryGapRepository creates a new in-memory gap repository.
func NewInMemoryGapRepository() *InMemoryGapRepository {
	return &InMemoryGapRepository{
		gaps: make(map[string]*domain.Gap),
	}
}

// Create persists a new gap, rejecting it when an open gap exists for the shift.
func (r *InMemoryGapRepository) Create(_ context.Context, gap *domain.Gap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.gaps {
		if existing.ShiftID() == gap.ShiftID() && existing.IsOpen() {
			return domain.ErrDuplicateGap
		}
	}

	r.gaps[gap.ID()] = gap

	// A saved gap carries no uncommitted events, matching aggregates
	// rehydrated from the SQL repositories.
	gap.ClearDomainEvents()
	return nil
}

// Update persists workflow state changes to an existing gap.
func (r *InMemoryGapRepository) Update(_ context.Context, gap *domain.Gap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gaps[gap.ID()]; !ok {
		return domain.ErrGapNotFound
	}

	r.gaps[gap.ID()] = gap
	gap.ClearDomainEvents()
	return nil
}

// FindByID retrieves a gap by its ID.
func (r *InMemoryGapRepository) FindByID(_ context.Context, id string) (*domain.Gap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gap, ok := r.gaps[id]
	if !ok {
		return nil, nil
	}
	return gap, nil
}

// HasOpenGap reports whether a non-terminal gap exists for the shift.
func (r *InMemoryGapRepository) HasOpenGap(_ context.Context, shiftID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, gap := range r.gaps {
		if gap.ShiftID() == shiftID && gap.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

// ListByOrganization returns the organization's gaps, newest first.
func (r *InMemoryGapRepository) ListByOrganization(_ context.Context, organizationID string, filter domain.GapFilter) ([]*domain.Gap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gaps := make([]*domain.Gap, 0)
	for _, gap := range r.gaps {
		if gap.OrganizationID() != organizationID {
			continue
		}
		if filter.OpenOnly && !gap.IsOpen() {
			continue
		}
		gaps = append(gaps, gap)
	}

	sort.Slice(gaps, func(i, j int) bool {
		return gaps[i].DetectedAt().After(gaps[j].DetectedAt())
	})

	return gaps, nil
}
