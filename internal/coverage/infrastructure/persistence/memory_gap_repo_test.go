package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewell/podwatch/internal/coverage/domain"
)

func newGap(t *testing.T, organizationID, shiftID string, detectedAt time.Time) *domain.Gap {
	t.Helper()
	gap, err := domain.DetectGap(
		organizationID, shiftID,
		detectedAt.Add(-25*time.Minute), detectedAt.Add(95*time.Minute),
		domain.PatientContext{ID: "pat_1", Name: "Edna Mabel"},
		domain.CaregiverContext{ID: "cg_1", Name: "Sam Ortiz"},
		domain.PodContext{ID: "pod_1", LeadID: "lead_1"},
		detectedAt,
		25,
	)
	require.NoError(t, err)
	return gap
}

func TestInMemoryGapRepository_DuplicateOpenGap(t *testing.T) {
	repo := NewInMemoryGapRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	first := newGap(t, "org_1", "shift_1", now)
	require.NoError(t, repo.Create(ctx, first))

	// A second open gap for the same shift is rejected.
	dup := newGap(t, "org_1", "shift_1", now.Add(time.Minute))
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicateGap)

	// Closing the first gap clears the way.
	require.NoError(t, first.Cancel(now))
	require.NoError(t, repo.Update(ctx, first))
	assert.NoError(t, repo.Create(ctx, dup))
}

func TestInMemoryGapRepository_HasOpenGap(t *testing.T) {
	repo := NewInMemoryGapRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	has, err := repo.HasOpenGap(ctx, "shift_1")
	require.NoError(t, err)
	assert.False(t, has)

	gap := newGap(t, "org_1", "shift_1", now)
	require.NoError(t, repo.Create(ctx, gap))

	has, err = repo.HasOpenGap(ctx, "shift_1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, gap.Cover(now))
	require.NoError(t, repo.Update(ctx, gap))

	has, err = repo.HasOpenGap(ctx, "shift_1")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestInMemoryGapRepository_FindByID(t *testing.T) {
	repo := NewInMemoryGapRepository()
	ctx := context.Background()

	found, err := repo.FindByID(ctx, "gap_missing")
	require.NoError(t, err)
	assert.Nil(t, found)

	gap := newGap(t, "org_1", "shift_1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, gap))

	found, err = repo.FindByID(ctx, gap.ID())
	require.NoError(t, err)
	assert.Equal(t, gap, found)
}

func TestInMemoryGapRepository_UpdateMissing(t *testing.T) {
	repo := NewInMemoryGapRepository()
	gap := newGap(t, "org_1", "shift_1", time.Now().UTC())

	assert.ErrorIs(t, repo.Update(context.Background(), gap), domain.ErrGapNotFound)
}

func TestInMemoryGapRepository_ListByOrganization(t *testing.T) {
	repo := NewInMemoryGapRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	older := newGap(t, "org_1", "shift_1", base)
	newer := newGap(t, "org_1", "shift_2", base.Add(time.Hour))
	other := newGap(t, "org_2", "shift_3", base)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))
	require.NoError(t, repo.Create(ctx, other))

	require.NoError(t, older.Cover(base.Add(2*time.Hour)))
	require.NoError(t, repo.Update(ctx, older))

	all, err := repo.ListByOrganization(ctx, "org_1", domain.GapFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID(), all[0].ID())
	assert.Equal(t, older.ID(), all[1].ID())

	open, err := repo.ListByOrganization(ctx, "org_1", domain.GapFilter{OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, newer.ID(), open[0].ID())
}
