// Package application defines the ports and use cases of the coverage
// context: shift snapshot ingestion, gap detection, the escalation workflow
// commands, and the aggregation queries.
package application

import (
	"context"
	"errors"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/domain"
)

// ErrDataSourceUnavailable signals that shift data could not be fetched for
// an organization. The sweep for that organization is skipped and retried on
// the next cycle; other organizations are unaffected.
var ErrDataSourceUnavailable = errors.New("shift data source unavailable")

// ShiftSnapshot is a read-only view of a scheduled visit and its joined
// patient, caregiver and pod context, as supplied by the external shift
// store. Missing contact fields are carried through as empty values.
type ShiftSnapshot struct {
	ID             string
	OrganizationID string
	ScheduledStart time.Time
	ScheduledEnd   time.Time
	CheckedInAt    *time.Time
	Patient        domain.PatientContext
	Caregiver      domain.CaregiverContext
	Pod            domain.PodContext
}

// MinutesLate returns how many whole minutes past the scheduled start the
// shift is at the given instant, negative for future shifts.
func (s ShiftSnapshot) MinutesLate(asOf time.Time) int {
	return int(asOf.Sub(s.ScheduledStart).Minutes())
}

// ShiftSnapshotProvider supplies current shift records for an organization.
// The engine never writes to this store.
type ShiftSnapshotProvider interface {
	// UncoveredShifts returns the organization's shifts that were scheduled
	// to have started by asOf and have no recorded clock-in. Implementations
	// wrap fetch failures with ErrDataSourceUnavailable.
	UncoveredShifts(ctx context.Context, organizationID string, asOf time.Time) ([]ShiftSnapshot, error)
}
