package domain

import (
	"errors"
	"fmt"
	"time"

	sharedDomain "github.com/tidewell/podwatch/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrInvalidTransition = errors.New("invalid gap status transition")
	ErrWithinTolerance   = errors.New("shift is within the late tolerance")
)

// LateToleranceMinutes is how many minutes a caregiver may run late before an
// uncovered shift becomes a coverage gap. A shift exactly at the tolerance is
// not a gap.
const LateToleranceMinutes = 15

// GapType identifies the kind of coverage gap.
type GapType string

const (
	// GapTypeNoShow is a caregiver who failed to check in within tolerance.
	GapTypeNoShow GapType = "no_show"
)

// GapStatus is the escalation workflow state of a gap.
type GapStatus string

const (
	GapStatusDetected        GapStatus = "detected"
	GapStatusPodLeadNotified GapStatus = "pod_lead_notified"
	GapStatusDispatched      GapStatus = "dispatched"
	GapStatusCovered         GapStatus = "covered"
	GapStatusCanceled        GapStatus = "canceled"
)

// GapStatuses returns all workflow states in escalation order.
func GapStatuses() []GapStatus {
	return []GapStatus{
		GapStatusDetected,
		GapStatusPodLeadNotified,
		GapStatusDispatched,
		GapStatusCovered,
		GapStatusCanceled,
	}
}

// IsTerminal reports whether the status permits no further transitions.
func (s GapStatus) IsTerminal() bool {
	return s == GapStatusCovered || s == GapStatusCanceled
}

// PatientContext is the patient a gapped visit was scheduled for.
type PatientContext struct {
	ID        string
	Name      string
	Address   string
	Phone     string
	Latitude  float64
	Longitude float64
}

// CaregiverContext is the caregiver who failed to check in.
type CaregiverContext struct {
	ID    string
	Name  string
	Phone string
}

// PodContext routes escalation to the pod lead responsible for first-line
// response.
type PodContext struct {
	ID        string
	LeadID    string
	LeadName  string
	LeadPhone string
}

// NewGapID generates a unique identifier recognizable as a gap ID.
func NewGapID() string {
	return "gap_" + uuid.NewString()
}

// Gap is a detected instance of a scheduled visit not being covered on time.
// It is created by the detector, mutated only through workflow transitions,
// and becomes immutable once it reaches a terminal status.
type Gap struct {
	sharedDomain.BaseAggregateRoot
	organizationID string
	shiftID        string
	scheduledStart time.Time
	scheduledEnd   time.Time
	patient        PatientContext
	caregiver      CaregiverContext
	pod            PodContext
	gapType        GapType
	detectedAt     time.Time
	minutesLate    int
	severity       Severity
	status         GapStatus
	notifiedAt     *time.Time
	dispatchedAt   *time.Time
	coveredAt      *time.Time
	canceledAt     *time.Time
}

// DetectGap creates a gap for an uncovered shift. The severity is derived
// from minutesLate once, here, and never recomputed. Out-of-range patient
// coordinates are dropped rather than rejected: missing context must not
// block detection.
func DetectGap(
	organizationID string,
	shiftID string,
	scheduledStart, scheduledEnd time.Time,
	patient PatientContext,
	caregiver CaregiverContext,
	pod PodContext,
	detectedAt time.Time,
	minutesLate int,
) (*Gap, error) {
	if minutesLate <= LateToleranceMinutes {
		return nil, fmt.Errorf("%w: %d minutes late", ErrWithinTolerance, minutesLate)
	}

	if patient.Latitude < -90 || patient.Latitude > 90 ||
		patient.Longitude < -180 || patient.Longitude > 180 {
		patient.Latitude = 0
		patient.Longitude = 0
	}

	g := &Gap{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(NewGapID()),
		organizationID:    organizationID,
		shiftID:           shiftID,
		scheduledStart:    scheduledStart,
		scheduledEnd:      scheduledEnd,
		patient:           patient,
		caregiver:         caregiver,
		pod:               pod,
		gapType:           GapTypeNoShow,
		detectedAt:        detectedAt.UTC(),
		minutesLate:       minutesLate,
		severity:          ClassifySeverity(minutesLate),
		status:            GapStatusDetected,
	}

	g.AddDomainEvent(NewGapDetected(g))

	return g, nil
}

// Getters
func (g *Gap) OrganizationID() string     { return g.organizationID }
func (g *Gap) ShiftID() string            { return g.shiftID }
func (g *Gap) ScheduledStart() time.Time  { return g.scheduledStart }
func (g *Gap) ScheduledEnd() time.Time    { return g.scheduledEnd }
func (g *Gap) Patient() PatientContext    { return g.patient }
func (g *Gap) Caregiver() CaregiverContext { return g.caregiver }
func (g *Gap) Pod() PodContext            { return g.pod }
func (g *Gap) Type() GapType              { return g.gapType }
func (g *Gap) DetectedAt() time.Time      { return g.detectedAt }
func (g *Gap) MinutesLate() int           { return g.minutesLate }
func (g *Gap) Severity() Severity         { return g.severity }
func (g *Gap) Status() GapStatus          { return g.status }
func (g *Gap) NotifiedAt() *time.Time     { return g.notifiedAt }
func (g *Gap) DispatchedAt() *time.Time   { return g.dispatchedAt }
func (g *Gap) CoveredAt() *time.Time      { return g.coveredAt }
func (g *Gap) CanceledAt() *time.Time     { return g.canceledAt }

// IsOpen reports whether the gap is still in a non-terminal state.
func (g *Gap) IsOpen() bool {
	return !g.status.IsTerminal()
}

// Notify records that the pod lead has been notified.
func (g *Gap) Notify(at time.Time) error {
	if g.status != GapStatusDetected {
		return g.transitionError(GapStatusPodLeadNotified)
	}

	at = at.UTC()
	g.status = GapStatusPodLeadNotified
	g.notifiedAt = &at
	g.Touch()

	g.AddDomainEvent(NewGapNotified(g))

	return nil
}

// Dispatch records that a replacement caregiver has been assigned. The
// assignment decision itself is external.
func (g *Gap) Dispatch(at time.Time) error {
	if g.status != GapStatusPodLeadNotified {
		return g.transitionError(GapStatusDispatched)
	}

	at = at.UTC()
	g.status = GapStatusDispatched
	g.dispatchedAt = &at
	g.Touch()

	g.AddDomainEvent(NewGapDispatched(g))

	return nil
}

// Cover records that the visit is covered. Covering directly from detected
// or pod_lead_notified is an allowed fast-path for when the original
// caregiver simply arrives late.
func (g *Gap) Cover(at time.Time) error {
	if g.status.IsTerminal() {
		return g.transitionError(GapStatusCovered)
	}

	at = at.UTC()
	g.status = GapStatusCovered
	g.coveredAt = &at
	g.Touch()

	g.AddDomainEvent(NewGapCovered(g))

	return nil
}

// Cancel closes the gap because the underlying need disappeared, e.g. the
// visit was determined unnecessary or the shift record was corrected.
func (g *Gap) Cancel(at time.Time) error {
	if g.status.IsTerminal() {
		return g.transitionError(GapStatusCanceled)
	}

	at = at.UTC()
	g.status = GapStatusCanceled
	g.canceledAt = &at
	g.Touch()

	g.AddDomainEvent(NewGapCanceled(g))

	return nil
}

// ResponseTime returns the time from detection to coverage. The second
// return value is false until the gap is covered.
func (g *Gap) ResponseTime() (time.Duration, bool) {
	if g.coveredAt == nil {
		return 0, false
	}
	return g.coveredAt.Sub(g.detectedAt), true
}

func (g *Gap) transitionError(to GapStatus) error {
	return fmt.Errorf("%w: cannot move gap %s from %q to %q", ErrInvalidTransition, g.ID(), g.status, to)
}

// RehydrateGap recreates a gap from persisted state.
func RehydrateGap(
	id string,
	organizationID string,
	shiftID string,
	scheduledStart, scheduledEnd time.Time,
	patient PatientContext,
	caregiver CaregiverContext,
	pod PodContext,
	gapType GapType,
	detectedAt time.Time,
	minutesLate int,
	severity Severity,
	status GapStatus,
	notifiedAt, dispatchedAt, coveredAt, canceledAt *time.Time,
	createdAt, updatedAt time.Time,
) *Gap {
	baseEntity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)

	return &Gap{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(baseEntity, 0),
		organizationID:    organizationID,
		shiftID:           shiftID,
		scheduledStart:    scheduledStart,
		scheduledEnd:      scheduledEnd,
		patient:           patient,
		caregiver:         caregiver,
		pod:               pod,
		gapType:           gapType,
		detectedAt:        detectedAt,
		minutesLate:       minutesLate,
		severity:          severity,
		status:            status,
		notifiedAt:        notifiedAt,
		dispatchedAt:      dispatchedAt,
		coveredAt:         coveredAt,
		canceledAt:        canceledAt,
	}
}
