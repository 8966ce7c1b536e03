// Package queries contains query handlers for the coverage bounded context.
package queries

import (
	"context"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/domain"
)

// GetActiveGapsQuery requests all open gaps for an organization plus
// aggregate counts suitable for an operations dashboard.
type GetActiveGapsQuery struct {
	OrganizationID string
}

// GapDTO is a flattened read model of a gap.
type GapDTO struct {
	ID                  string
	OrganizationID      string
	ShiftID             string
	Type                domain.GapType
	Status              domain.GapStatus
	Severity            domain.Severity
	MinutesLate         int
	PatientName         string
	PatientAddress      string
	CaregiverName       string
	PodLeadName         string
	DetectedAt          time.Time
	NotifiedAt          *time.Time
	DispatchedAt        *time.Time
	CoveredAt           *time.Time
	CanceledAt          *time.Time
	ResponseTimeMinutes *int
}

// ActiveGapsResult carries the open gaps and their breakdowns. ByStatus
// and BySeverity always contain every known status and severity, with
// zero counts for absent buckets, so dashboard consumers never need to
// test for missing keys.
type ActiveGapsResult struct {
	Gaps       []GapDTO
	Total      int
	ByStatus   map[domain.GapStatus]int
	BySeverity map[domain.Severity]int
}

// GetActiveGapsHandler handles active gap queries.
type GetActiveGapsHandler struct {
	gaps domain.GapRepository
}

// NewGetActiveGapsHandler creates a new GetActiveGapsHandler.
func NewGetActiveGapsHandler(gaps domain.GapRepository) *GetActiveGapsHandler {
	return &GetActiveGapsHandler{gaps: gaps}
}

// Handle executes the get active gaps query.
func (h *GetActiveGapsHandler) Handle(ctx context.Context, query GetActiveGapsQuery) (*ActiveGapsResult, error) {
	gaps, err := h.gaps.ListByOrganization(ctx, query.OrganizationID, domain.GapFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}

	result := &ActiveGapsResult{
		Gaps:       make([]GapDTO, 0, len(gaps)),
		ByStatus:   make(map[domain.GapStatus]int, len(domain.GapStatuses())),
		BySeverity: make(map[domain.Severity]int, len(domain.Severities())),
	}
	for _, status := range domain.GapStatuses() {
		result.ByStatus[status] = 0
	}
	for _, severity := range domain.Severities() {
		result.BySeverity[severity] = 0
	}

	for _, g := range gaps {
		result.Gaps = append(result.Gaps, toGapDTO(g))
		result.Total++
		result.ByStatus[g.Status()]++
		result.BySeverity[g.Severity()]++
	}

	return result, nil
}

func toGapDTO(g *domain.Gap) GapDTO {
	dto := GapDTO{
		ID:             g.ID(),
		OrganizationID: g.OrganizationID(),
		ShiftID:        g.ShiftID(),
		Type:           g.Type(),
		Status:         g.Status(),
		Severity:       g.Severity(),
		MinutesLate:    g.MinutesLate(),
		PatientName:    g.Patient().Name,
		PatientAddress: g.Patient().Address,
		CaregiverName:  g.Caregiver().Name,
		PodLeadName:    g.Pod().LeadName,
		DetectedAt:     g.DetectedAt(),
		NotifiedAt:     g.NotifiedAt(),
		DispatchedAt:   g.DispatchedAt(),
		CoveredAt:      g.CoveredAt(),
		CanceledAt:     g.CanceledAt(),
	}
	if rt, ok := g.ResponseTime(); ok {
		minutes := int(rt / time.Minute)
		dto.ResponseTimeMinutes = &minutes
	}
	return dto
}
