package queries

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewell/podwatch/internal/coverage/domain"
	"github.com/tidewell/podwatch/internal/coverage/infrastructure/persistence"
)

func seedGap(t *testing.T, repo *persistence.InMemoryGapRepository, shiftID string, minutesLate int, detectedAt time.Time) *domain.Gap {
	t.Helper()
	gap, err := domain.DetectGap(
		"org_1", shiftID,
		detectedAt.Add(-time.Duration(minutesLate)*time.Minute),
		detectedAt.Add(2*time.Hour),
		domain.PatientContext{ID: "pat_" + shiftID, Name: "Edna Mabel", Address: "12 Juniper Ln"},
		domain.CaregiverContext{ID: "cg_" + shiftID, Name: "Sam Ortiz"},
		domain.PodContext{ID: "pod_1", LeadID: "lead_1", LeadName: "Priya Nair"},
		detectedAt,
		minutesLate,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), gap))
	return gap
}

func TestGetActiveGapsHandler_Handle(t *testing.T) {
	repo := persistence.NewInMemoryGapRepository()
	handler := NewGetActiveGapsHandler(repo)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	seedGap(t, repo, "shift_low", 17, base)
	seedGap(t, repo, "shift_medium", 25, base.Add(time.Minute))
	notified := seedGap(t, repo, "shift_high", 45, base.Add(2*time.Minute))
	require.NoError(t, notified.Notify(base.Add(5*time.Minute)))
	require.NoError(t, repo.Update(context.Background(), notified))

	// Terminal gaps stay out of the active view.
	covered := seedGap(t, repo, "shift_covered", 70, base.Add(3*time.Minute))
	require.NoError(t, covered.Cover(base.Add(30*time.Minute)))
	require.NoError(t, repo.Update(context.Background(), covered))

	result, err := handler.Handle(context.Background(), GetActiveGapsQuery{OrganizationID: "org_1"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Gaps, 3)

	// Newest first.
	assert.Equal(t, "shift_high", result.Gaps[0].ShiftID)
	assert.Equal(t, "shift_low", result.Gaps[2].ShiftID)

	assert.Equal(t, 2, result.ByStatus[domain.GapStatusDetected])
	assert.Equal(t, 1, result.ByStatus[domain.GapStatusPodLeadNotified])
	assert.Equal(t, 1, result.BySeverity[domain.SeverityLow])
	assert.Equal(t, 1, result.BySeverity[domain.SeverityMedium])
	assert.Equal(t, 1, result.BySeverity[domain.SeverityHigh])

	// Count conservation across both breakdowns.
	statusSum := 0
	for _, n := range result.ByStatus {
		statusSum += n
	}
	severitySum := 0
	for _, n := range result.BySeverity {
		severitySum += n
	}
	assert.Equal(t, result.Total, statusSum)
	assert.Equal(t, result.Total, severitySum)
}

func TestGetActiveGapsHandler_ZeroFilledBreakdowns(t *testing.T) {
	repo := persistence.NewInMemoryGapRepository()
	handler := NewGetActiveGapsHandler(repo)

	result, err := handler.Handle(context.Background(), GetActiveGapsQuery{OrganizationID: "org_empty"})
	require.NoError(t, err)

	assert.Zero(t, result.Total)
	assert.Empty(t, result.Gaps)

	for _, status := range domain.GapStatuses() {
		count, ok := result.ByStatus[status]
		assert.True(t, ok, "missing status bucket %q", status)
		assert.Zero(t, count)
	}
	for _, severity := range domain.Severities() {
		count, ok := result.BySeverity[severity]
		assert.True(t, ok, "missing severity bucket %q", severity)
		assert.Zero(t, count)
	}
}

func TestGetActiveGapsHandler_DTOFields(t *testing.T) {
	repo := persistence.NewInMemoryGapRepository()
	handler := NewGetActiveGapsHandler(repo)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	gap := seedGap(t, repo, "shift_1", 25, base)
	require.NoError(t, gap.Notify(base.Add(4*time.Minute)))
	require.NoError(t, repo.Update(context.Background(), gap))

	result, err := handler.Handle(context.Background(), GetActiveGapsQuery{OrganizationID: "org_1"})
	require.NoError(t, err)
	require.Len(t, result.Gaps, 1)

	dto := result.Gaps[0]
	assert.Equal(t, gap.ID(), dto.ID)
	assert.Equal(t, domain.GapTypeNoShow, dto.Type)
	assert.Equal(t, domain.GapStatusPodLeadNotified, dto.Status)
	assert.Equal(t, domain.SeverityMedium, dto.Severity)
	assert.Equal(t, "Edna Mabel", dto.PatientName)
	assert.Equal(t, "Priya Nair", dto.PodLeadName)
	require.NotNil(t, dto.NotifiedAt)
	assert.Nil(t, dto.DispatchedAt)
	assert.Nil(t, dto.ResponseTimeMinutes)
}
