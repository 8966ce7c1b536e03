// Package snapshot provides read-only access to the scheduling system's
// shift records.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewell/podwatch/internal/coverage/application"
)

// PostgresShiftProvider reads shift snapshots from the scheduling database.
// The engine only ever selects from these tables.
type PostgresShiftProvider struct {
	pool *pgxpool.Pool
}

// NewPostgresShiftProvider creates a new PostgreSQL shift provider.
func NewPostgresShiftProvider(pool *pgxpool.Pool) *PostgresShiftProvider {
	return &PostgresShiftProvider{pool: pool}
}

// UncoveredShifts returns shifts scheduled to start by asOf with no clock-in.
// A shift stays sweepable after its window has elapsed; the registry's
// open-gap check is what stops re-detection, not the query. Missing patient,
// caregiver, or pod rows yield empty context fields rather than dropping the
// shift from detection.
func (p *PostgresShiftProvider) UncoveredShifts(ctx context.Context, organizationID string, asOf time.Time) ([]application.ShiftSnapshot, error) {
	query := `
		SELECT s.id, s.organization_id, s.scheduled_start, s.scheduled_end, s.checked_in_at,
		       COALESCE(pt.id, ''), COALESCE(pt.name, ''), COALESCE(pt.address, ''), COALESCE(pt.phone, ''),
		       COALESCE(pt.latitude, 0), COALESCE(pt.longitude, 0),
		       COALESCE(cg.id, ''), COALESCE(cg.name, ''), COALESCE(cg.phone, ''),
		       COALESCE(pd.id, ''), COALESCE(pd.lead_id, ''), COALESCE(pd.lead_name, ''), COALESCE(pd.lead_phone, '')
		FROM shifts s
		LEFT JOIN patients pt ON pt.id = s.patient_id
		LEFT JOIN caregivers cg ON cg.id = s.caregiver_id
		LEFT JOIN pods pd ON pd.id = s.pod_id
		WHERE s.organization_id = $1
		  AND s.scheduled_start <= $2
		  AND s.checked_in_at IS NULL
		ORDER BY s.scheduled_start
	`

	rows, err := p.pool.Query(ctx, query, organizationID, asOf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", application.ErrDataSourceUnavailable, err)
	}
	defer rows.Close()

	shifts := make([]application.ShiftSnapshot, 0)
	for rows.Next() {
		var s application.ShiftSnapshot
		err := rows.Scan(
			&s.ID,
			&s.OrganizationID,
			&s.ScheduledStart,
			&s.ScheduledEnd,
			&s.CheckedInAt,
			&s.Patient.ID,
			&s.Patient.Name,
			&s.Patient.Address,
			&s.Patient.Phone,
			&s.Patient.Latitude,
			&s.Patient.Longitude,
			&s.Caregiver.ID,
			&s.Caregiver.Name,
			&s.Caregiver.Phone,
			&s.Pod.ID,
			&s.Pod.LeadID,
			&s.Pod.LeadName,
			&s.Pod.LeadPhone,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", application.ErrDataSourceUnavailable, err)
		}
		shifts = append(shifts, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", application.ErrDataSourceUnavailable, err)
	}

	return shifts, nil
}
