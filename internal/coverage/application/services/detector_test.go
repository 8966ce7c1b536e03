package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewell/podwatch/internal/coverage/application"
	"github.com/tidewell/podwatch/internal/coverage/domain"
	"github.com/tidewell/podwatch/internal/coverage/infrastructure/persistence"
	"github.com/tidewell/podwatch/internal/coverage/infrastructure/snapshot"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
)

type noopUnitOfWork struct{}

func (noopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUnitOfWork) Commit(context.Context) error                       { return nil }
func (noopUnitOfWork) Rollback(context.Context) error                     { return nil }

type detectorFixture struct {
	provider   *snapshot.FixtureShiftProvider
	gaps       *persistence.InMemoryGapRepository
	outboxRepo *outbox.InMemoryRepository
	detector   *Detector
}

func newDetectorFixture() *detectorFixture {
	provider := snapshot.NewFixtureShiftProvider()
	gaps := persistence.NewInMemoryGapRepository()
	outboxRepo := outbox.NewInMemoryRepository()
	return &detectorFixture{
		provider:   provider,
		gaps:       gaps,
		outboxRepo: outboxRepo,
		detector:   NewDetector(provider, gaps, outboxRepo, noopUnitOfWork{}, nil, nil),
	}
}

func fixtureShift(id string, start time.Time) application.ShiftSnapshot {
	return application.ShiftSnapshot{
		ID:             id,
		OrganizationID: "org_1",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(2 * time.Hour),
		Patient:        domain.PatientContext{ID: "pat_" + id, Name: "Edna Mabel", Address: "12 Juniper Ln"},
		Caregiver:      domain.CaregiverContext{ID: "cg_" + id, Name: "Sam Ortiz"},
		Pod:            domain.PodContext{ID: "pod_1", LeadID: "lead_1", LeadName: "Priya Nair"},
	}
}

func TestDetector_DetectGapsAt(t *testing.T) {
	f := newDetectorFixture()
	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	f.provider.SetShifts("org_1", []application.ShiftSnapshot{
		fixtureShift("shift_late", asOf.Add(-25*time.Minute)),
		fixtureShift("shift_on_time", asOf.Add(-10*time.Minute)),
		fixtureShift("shift_very_late", asOf.Add(-90*time.Minute)),
	})

	gaps, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	require.Len(t, gaps, 2)

	byShift := make(map[string]*domain.Gap, len(gaps))
	for _, g := range gaps {
		byShift[g.ShiftID()] = g
	}

	require.Contains(t, byShift, "shift_late")
	assert.Equal(t, 25, byShift["shift_late"].MinutesLate())
	assert.Equal(t, domain.SeverityMedium, byShift["shift_late"].Severity())

	require.Contains(t, byShift, "shift_very_late")
	assert.Equal(t, 90, byShift["shift_very_late"].MinutesLate())
	assert.Equal(t, domain.SeverityCritical, byShift["shift_very_late"].Severity())

	// Detection events land in the outbox inside the same unit of work.
	msgs := f.outboxRepo.Messages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, domain.RoutingKeyGapDetected, msg.RoutingKey)
	}
}

func TestDetector_ToleranceBoundary(t *testing.T) {
	f := newDetectorFixture()
	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Exactly at the tolerance is not yet a gap; one minute past is.
	f.provider.SetShifts("org_1", []application.ShiftSnapshot{
		fixtureShift("shift_at_tolerance", asOf.Add(-15*time.Minute)),
		fixtureShift("shift_past_tolerance", asOf.Add(-16*time.Minute)),
	})

	gaps, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, "shift_past_tolerance", gaps[0].ShiftID())
	assert.Equal(t, domain.SeverityLow, gaps[0].Severity())
}

func TestDetector_SkipsCheckedInShifts(t *testing.T) {
	f := newDetectorFixture()
	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	f.provider.SetShifts("org_1", []application.ShiftSnapshot{
		fixtureShift("shift_1", asOf.Add(-40*time.Minute)),
	})
	f.provider.MarkCheckedIn("org_1", "shift_1", asOf.Add(-5*time.Minute))

	gaps, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestDetector_DeduplicatesAcrossSweeps(t *testing.T) {
	f := newDetectorFixture()
	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	f.provider.SetShifts("org_1", []application.ShiftSnapshot{
		fixtureShift("shift_1", asOf.Add(-30*time.Minute)),
	})

	first, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The shift is even later now, but its gap is still open.
	second, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, second)

	// A closed gap frees the shift for re-detection.
	require.NoError(t, first[0].Cover(asOf.Add(15*time.Minute)))
	require.NoError(t, f.gaps.Update(context.Background(), first[0]))

	third, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf.Add(20*time.Minute))
	require.NoError(t, err)
	require.Len(t, third, 1)
	assert.NotEqual(t, first[0].ID(), third[0].ID())
}

func TestDetector_DataSourceFailure(t *testing.T) {
	f := newDetectorFixture()
	f.provider.FailWith(application.ErrDataSourceUnavailable)

	_, err := f.detector.DetectGapsAt(context.Background(), "org_1", time.Now().UTC())
	assert.ErrorIs(t, err, application.ErrDataSourceUnavailable)
}

func TestDetector_PersistFailureDoesNotAbortSweep(t *testing.T) {
	provider := snapshot.NewFixtureShiftProvider()
	gaps := persistence.NewInMemoryGapRepository()
	outboxRepo := outbox.NewInMemoryRepository()

	failing := &failingGapRepo{InMemoryGapRepository: gaps, failShiftID: "shift_bad"}
	detector := NewDetector(provider, failing, outboxRepo, noopUnitOfWork{}, nil, nil)

	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	provider.SetShifts("org_1", []application.ShiftSnapshot{
		fixtureShift("shift_bad", asOf.Add(-30*time.Minute)),
		fixtureShift("shift_good", asOf.Add(-30*time.Minute)),
	})

	created, err := detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "shift_good", created[0].ShiftID())
}

// failingGapRepo fails Create for one designated shift.
type failingGapRepo struct {
	*persistence.InMemoryGapRepository
	failShiftID string
}

func (r *failingGapRepo) Create(ctx context.Context, gap *domain.Gap) error {
	if gap.ShiftID() == r.failShiftID {
		return errors.New("storage write failed")
	}
	return r.InMemoryGapRepository.Create(ctx, gap)
}

// A no-show stays sweepable after the shift window has fully elapsed; only
// covering or canceling the gap stops it from mattering.
func TestDetector_ElapsedShiftWindowStillDetected(t *testing.T) {
	f := newDetectorFixture()
	asOf := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	// Scheduled 9:00-11:00, swept at 12:00.
	f.provider.SetShifts("org_1", []application.ShiftSnapshot{
		fixtureShift("shift_elapsed", asOf.Add(-3*time.Hour)),
	})

	gaps, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, "shift_elapsed", gaps[0].ShiftID())
	assert.Equal(t, 180, gaps[0].MinutesLate())
	assert.Equal(t, domain.SeverityCritical, gaps[0].Severity())
}

// Missing patient, caregiver, or pod context never aborts detection; the gap
// is created with the fields left empty.
func TestDetector_MissingContextFieldsCarriedEmpty(t *testing.T) {
	f := newDetectorFixture()
	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	f.provider.SetShifts("org_1", []application.ShiftSnapshot{
		{
			ID:             "shift_bare",
			OrganizationID: "org_1",
			ScheduledStart: asOf.Add(-25 * time.Minute),
			ScheduledEnd:   asOf.Add(95 * time.Minute),
		},
	})

	gaps, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Empty(t, gaps[0].Patient().Name)
	assert.Empty(t, gaps[0].Caregiver().ID)
	assert.Empty(t, gaps[0].Pod().LeadID)
	assert.Equal(t, domain.SeverityMedium, gaps[0].Severity())
}

// Gaps handed back from a sweep carry no uncommitted events; the detection
// event is already in the outbox.
func TestDetector_ReturnedGapsHaveNoPendingEvents(t *testing.T) {
	f := newDetectorFixture()
	asOf := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	f.provider.SetShifts("org_1", []application.ShiftSnapshot{
		fixtureShift("shift_late", asOf.Add(-25*time.Minute)),
	})

	gaps, err := f.detector.DetectGapsAt(context.Background(), "org_1", asOf)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Empty(t, gaps[0].DomainEvents())
	require.Len(t, f.outboxRepo.Messages(), 1)
}
