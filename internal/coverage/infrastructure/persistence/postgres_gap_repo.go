// Package persistence contains the gap registry implementations.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedPersistence "github.com/tidewell/podwatch/internal/shared/infrastructure/persistence"
)

// The coverage_gaps table carries a partial unique index,
//
//	CREATE UNIQUE INDEX coverage_gaps_open_shift_idx
//	    ON coverage_gaps (shift_id)
//	    WHERE status NOT IN ('covered', 'canceled'),
//
// which makes Create's duplicate check atomic across concurrent sweeps.
const openGapIndexName = "coverage_gaps_open_shift_idx"

const selectGapColumns = `
	SELECT id, organization_id, shift_id, scheduled_start, scheduled_end,
	       patient_id, patient_name, patient_address, patient_phone,
	       patient_latitude, patient_longitude,
	       caregiver_id, caregiver_name, caregiver_phone,
	       pod_id, pod_lead_id, pod_lead_name, pod_lead_phone,
	       gap_type, detected_at, minutes_late, severity, status,
	       notified_at, dispatched_at, covered_at, canceled_at,
	       created_at, updated_at
	FROM coverage_gaps
`

// PostgresGapRepository implements domain.GapRepository using PostgreSQL.
type PostgresGapRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresGapRepository creates a new PostgreSQL gap repository.
func NewPostgresGapRepository(pool *pgxpool.Pool) *PostgresGapRepository {
	return &PostgresGapRepository{pool: pool}
}

// gapRow represents a database row for coverage gaps.
type gapRow struct {
	ID               string
	OrganizationID   string
	ShiftID          string
	ScheduledStart   time.Time
	ScheduledEnd     time.Time
	PatientID        string
	PatientName      string
	PatientAddress   string
	PatientPhone     string
	PatientLatitude  float64
	PatientLongitude float64
	CaregiverID      string
	CaregiverName    string
	CaregiverPhone   string
	PodID            string
	PodLeadID        string
	PodLeadName      string
	PodLeadPhone     string
	GapType          string
	DetectedAt       time.Time
	MinutesLate      int
	Severity         string
	Status           string
	NotifiedAt       *time.Time
	DispatchedAt     *time.Time
	CoveredAt        *time.Time
	CanceledAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Create persists a new gap. The partial unique index rejects the insert
// when an open gap already exists for the shift.
func (r *PostgresGapRepository) Create(ctx context.Context, gap *domain.Gap) error {
	query := `
		INSERT INTO coverage_gaps (
			id, organization_id, shift_id, scheduled_start, scheduled_end,
			patient_id, patient_name, patient_address, patient_phone,
			patient_latitude, patient_longitude,
			caregiver_id, caregiver_name, caregiver_phone,
			pod_id, pod_lead_id, pod_lead_name, pod_lead_phone,
			gap_type, detected_at, minutes_late, severity, status,
			notified_at, dispatched_at, covered_at, canceled_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27,
			$28, $29
		)
	`

	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		gap.ID(),
		gap.OrganizationID(),
		gap.ShiftID(),
		gap.ScheduledStart(),
		gap.ScheduledEnd(),
		gap.Patient().ID,
		gap.Patient().Name,
		gap.Patient().Address,
		gap.Patient().Phone,
		gap.Patient().Latitude,
		gap.Patient().Longitude,
		gap.Caregiver().ID,
		gap.Caregiver().Name,
		gap.Caregiver().Phone,
		gap.Pod().ID,
		gap.Pod().LeadID,
		gap.Pod().LeadName,
		gap.Pod().LeadPhone,
		string(gap.Type()),
		gap.DetectedAt(),
		gap.MinutesLate(),
		string(gap.Severity()),
		string(gap.Status()),
		gap.NotifiedAt(),
		gap.DispatchedAt(),
		gap.CoveredAt(),
		gap.CanceledAt(),
		gap.CreatedAt(),
		gap.UpdatedAt(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == openGapIndexName {
			return domain.ErrDuplicateGap
		}
		return err
	}

	return nil
}

// Update persists workflow state changes to an existing gap.
func (r *PostgresGapRepository) Update(ctx context.Context, gap *domain.Gap) error {
	query := `
		UPDATE coverage_gaps SET
			status = $2,
			notified_at = $3,
			dispatched_at = $4,
			covered_at = $5,
			canceled_at = $6,
			updated_at = $7
		WHERE id = $1
	`

	result, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		gap.ID(),
		string(gap.Status()),
		gap.NotifiedAt(),
		gap.DispatchedAt(),
		gap.CoveredAt(),
		gap.CanceledAt(),
		gap.UpdatedAt(),
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrGapNotFound
	}

	return nil
}

// FindByID retrieves a gap by its ID.
func (r *PostgresGapRepository) FindByID(ctx context.Context, id string) (*domain.Gap, error) {
	query := selectGapColumns + ` WHERE id = $1`

	row := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, id)
	gap, err := scanGap(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Return nil, nil to match interface expectation
		}
		return nil, err
	}

	return gap, nil
}

// HasOpenGap reports whether a non-terminal gap exists for the shift.
func (r *PostgresGapRepository) HasOpenGap(ctx context.Context, shiftID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM coverage_gaps
			WHERE shift_id = $1 AND status NOT IN ('covered', 'canceled')
		)
	`

	var exists bool
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, shiftID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// ListByOrganization returns the organization's gaps, newest first.
func (r *PostgresGapRepository) ListByOrganization(ctx context.Context, organizationID string, filter domain.GapFilter) ([]*domain.Gap, error) {
	query := selectGapColumns + ` WHERE organization_id = $1`
	if filter.OpenOnly {
		query += ` AND status NOT IN ('covered', 'canceled')`
	}
	query += ` ORDER BY detected_at DESC`

	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gaps := make([]*domain.Gap, 0)
	for rows.Next() {
		gap, err := scanGap(rows)
		if err != nil {
			return nil, err
		}
		gaps = append(gaps, gap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return gaps, nil
}

func scanGap(row pgx.Row) (*domain.Gap, error) {
	var r gapRow
	err := row.Scan(
		&r.ID,
		&r.OrganizationID,
		&r.ShiftID,
		&r.ScheduledStart,
		&r.ScheduledEnd,
		&r.PatientID,
		&r.PatientName,
		&r.PatientAddress,
		&r.PatientPhone,
		&r.PatientLatitude,
		&r.PatientLongitude,
		&r.CaregiverID,
		&r.CaregiverName,
		&r.CaregiverPhone,
		&r.PodID,
		&r.PodLeadID,
		&r.PodLeadName,
		&r.PodLeadPhone,
		&r.GapType,
		&r.DetectedAt,
		&r.MinutesLate,
		&r.Severity,
		&r.Status,
		&r.NotifiedAt,
		&r.DispatchedAt,
		&r.CoveredAt,
		&r.CanceledAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return rowToGap(r), nil
}

func rowToGap(r gapRow) *domain.Gap {
	return domain.RehydrateGap(
		r.ID,
		r.OrganizationID,
		r.ShiftID,
		r.ScheduledStart,
		r.ScheduledEnd,
		domain.PatientContext{
			ID:        r.PatientID,
			Name:      r.PatientName,
			Address:   r.PatientAddress,
			Phone:     r.PatientPhone,
			Latitude:  r.PatientLatitude,
			Longitude: r.PatientLongitude,
		},
		domain.CaregiverContext{
			ID:    r.CaregiverID,
			Name:  r.CaregiverName,
			Phone: r.CaregiverPhone,
		},
		domain.PodContext{
			ID:        r.PodID,
			LeadID:    r.PodLeadID,
			LeadName:  r.PodLeadName,
			LeadPhone: r.PodLeadPhone,
		},
		domain.GapType(r.GapType),
		r.DetectedAt,
		r.MinutesLate,
		domain.Severity(r.Severity),
		domain.GapStatus(r.Status),
		r.NotifiedAt,
		r.DispatchedAt,
		r.CoveredAt,
		r.CanceledAt,
		r.CreatedAt,
		r.UpdatedAt,
	)
}
