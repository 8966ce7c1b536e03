package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/application"
)

// FixtureShiftProvider serves shift snapshots from memory. Used in tests and
// local development where no scheduling database is available.
type FixtureShiftProvider struct {
	mu     sync.Mutex
	shifts map[string][]application.ShiftSnapshot
	err    error
}

// NewFixtureShiftProvider creates an empty fixture provider.
func NewFixtureShiftProvider() *FixtureShiftProvider {
	return &FixtureShiftProvider{
		shifts: make(map[string][]application.ShiftSnapshot),
	}
}

// SetShifts replaces the fixture shifts for an organization.
func (p *FixtureShiftProvider) SetShifts(organizationID string, shifts []application.ShiftSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shifts[organizationID] = shifts
}

// AddShift appends a fixture shift for an organization.
func (p *FixtureShiftProvider) AddShift(organizationID string, shift application.ShiftSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shifts[organizationID] = append(p.shifts[organizationID], shift)
}

// FailWith makes every subsequent call return the given error. Pass nil to
// restore normal behavior.
func (p *FixtureShiftProvider) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// MarkCheckedIn records a clock-in time on a fixture shift.
func (p *FixtureShiftProvider) MarkCheckedIn(organizationID, shiftID string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	shifts := p.shifts[organizationID]
	for i := range shifts {
		if shifts[i].ID == shiftID {
			shifts[i].CheckedInAt = &at
		}
	}
}

// UncoveredShifts returns fixture shifts that started by asOf with no clock-in.
func (p *FixtureShiftProvider) UncoveredShifts(_ context.Context, organizationID string, asOf time.Time) ([]application.ShiftSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	uncovered := make([]application.ShiftSnapshot, 0)
	for _, s := range p.shifts[organizationID] {
		if s.ScheduledStart.After(asOf) {
			continue
		}
		if s.CheckedInAt != nil {
			continue
		}
		uncovered = append(uncovered, s)
	}

	return uncovered, nil
}
