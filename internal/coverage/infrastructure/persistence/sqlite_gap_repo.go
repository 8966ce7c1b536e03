package persistence

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/domain"
	sharedPersistence "github.com/tidewell/podwatch/internal/shared/infrastructure/persistence"
)

const selectGapColumnsSQLite = `
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

// SQLiteGapRepository implements domain.GapRepository using SQLite.
// The same partial unique index as the PostgreSQL schema guards the
// open-gap-per-shift invariant.
type SQLiteGapRepository struct {
	dbConn *sql.DB
}

// NewSQLiteGapRepository creates a new SQLite gap repository.
func NewSQLiteGapRepository(dbConn *sql.DB) *SQLiteGapRepository {
	return &SQLiteGapRepository{dbConn: dbConn}
}

// Create persists a new gap.
func (r *SQLiteGapRepository) Create(ctx context.Context, gap *domain.Gap) error {
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).ExecContext(ctx, query,
		gap.ID(),
		gap.OrganizationID(),
		gap.ShiftID(),
		gap.ScheduledStart().Format(time.RFC3339),
		gap.ScheduledEnd().Format(time.RFC3339),
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
		gap.DetectedAt().Format(time.RFC3339),
		gap.MinutesLate(),
		string(gap.Severity()),
		string(gap.Status()),
		toNullTime(gap.NotifiedAt()),
		toNullTime(gap.DispatchedAt()),
		toNullTime(gap.CoveredAt()),
		toNullTime(gap.CanceledAt()),
		gap.CreatedAt().Format(time.RFC3339),
		gap.UpdatedAt().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateGap
		}
		return err
	}

	return nil
}

// Update persists workflow state changes to an existing gap.
func (r *SQLiteGapRepository) Update(ctx context.Context, gap *domain.Gap) error {
	query := `
		UPDATE coverage_gaps SET
			status = ?,
			notified_at = ?,
			dispatched_at = ?,
			covered_at = ?,
			canceled_at = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).ExecContext(ctx, query,
		string(gap.Status()),
		toNullTime(gap.NotifiedAt()),
		toNullTime(gap.DispatchedAt()),
		toNullTime(gap.CoveredAt()),
		toNullTime(gap.CanceledAt()),
		gap.UpdatedAt().Format(time.RFC3339),
		gap.ID(),
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrGapNotFound
	}

	return nil
}

// FindByID retrieves a gap by its ID.
func (r *SQLiteGapRepository) FindByID(ctx context.Context, id string) (*domain.Gap, error) {
	query := selectGapColumnsSQLite + ` WHERE id = ?`

	row := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx, query, id)
	gap, err := scanGapSQLite(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return gap, nil
}

// HasOpenGap reports whether a non-terminal gap exists for the shift.
func (r *SQLiteGapRepository) HasOpenGap(ctx context.Context, shiftID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM coverage_gaps
			WHERE shift_id = ? AND status NOT IN ('covered', 'canceled')
		)
	`

	var exists bool
	err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryRowContext(ctx, query, shiftID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

// ListByOrganization returns the organization's gaps, newest first.
func (r *SQLiteGapRepository) ListByOrganization(ctx context.Context, organizationID string, filter domain.GapFilter) ([]*domain.Gap, error) {
	query := selectGapColumnsSQLite + ` WHERE organization_id = ?`
	if filter.OpenOnly {
		query += ` AND status NOT IN ('covered', 'canceled')`
	}
	query += ` ORDER BY detected_at DESC`

	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.dbConn).QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	gaps := make([]*domain.Gap, 0)
	for rows.Next() {
		gap, err := scanGapSQLite(rows)
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

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGapSQLite(row rowScanner) (*domain.Gap, error) {
	var (
		r              gapRow
		scheduledStart string
		scheduledEnd   string
		detectedAt     string
		createdAt      string
		updatedAt      string
		notifiedAt     sql.NullString
		dispatchedAt   sql.NullString
		coveredAt      sql.NullString
		canceledAt     sql.NullString
	)

	err := row.Scan(
		&r.ID,
		&r.OrganizationID,
		&r.ShiftID,
		&scheduledStart,
		&scheduledEnd,
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
		&detectedAt,
		&r.MinutesLate,
		&r.Severity,
		&r.Status,
		&notifiedAt,
		&dispatchedAt,
		&coveredAt,
		&canceledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.ScheduledStart, err = time.Parse(time.RFC3339, scheduledStart); err != nil {
		return nil, err
	}
	if r.ScheduledEnd, err = time.Parse(time.RFC3339, scheduledEnd); err != nil {
		return nil, err
	}
	if r.DetectedAt, err = time.Parse(time.RFC3339, detectedAt); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, err
	}
	if r.NotifiedAt, err = parseNullTime(notifiedAt); err != nil {
		return nil, err
	}
	if r.DispatchedAt, err = parseNullTime(dispatchedAt); err != nil {
		return nil, err
	}
	if r.CoveredAt, err = parseNullTime(coveredAt); err != nil {
		return nil, err
	}
	if r.CanceledAt, err = parseNullTime(canceledAt); err != nil {
		return nil, err
	}

	return rowToGap(r), nil
}

func toNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
