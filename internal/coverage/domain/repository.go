package domain

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateGap signals that an open gap already exists for the shift.
	// Callers treat it as a no-op, not a failure.
	ErrDuplicateGap = errors.New("open gap already exists for shift")

	// ErrGapNotFound signals an update against a gap that does not exist.
	ErrGapNotFound = errors.New("gap not found")
)

// GapFilter narrows ListByOrganization results.
type GapFilter struct {
	// OpenOnly restricts results to non-terminal gaps.
	OpenOnly bool
}

// GapRepository is the durable registry of gaps. Implementations must make
// the open-gap-per-shift check and the insert effectively atomic so that
// overlapping sweeps cannot create duplicates.
type GapRepository interface {
	// Create persists a new gap. Returns ErrDuplicateGap when an open gap
	// already exists for the same shift.
	Create(ctx context.Context, gap *Gap) error

	// Update persists workflow state changes to an existing gap.
	Update(ctx context.Context, gap *Gap) error

	// FindByID retrieves a gap by its ID. Returns nil, nil when absent.
	FindByID(ctx context.Context, id string) (*Gap, error)

	// HasOpenGap reports whether a non-terminal gap exists for the shift.
	HasOpenGap(ctx context.Context, shiftID string) (bool, error)

	// ListByOrganization returns the organization's gaps, newest first.
	ListByOrganization(ctx context.Context, organizationID string, filter GapFilter) ([]*Gap, error)
}
