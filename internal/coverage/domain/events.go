package domain

import (
	"time"

	sharedDomain "github.com/tidewell/podwatch/internal/shared/domain"
)

const (
	AggregateType = "Gap"

	RoutingKeyGapDetected   = "coverage.gap.detected"
	RoutingKeyGapNotified   = "coverage.gap.notified"
	RoutingKeyGapDispatched = "coverage.gap.dispatched"
	RoutingKeyGapCovered    = "coverage.gap.covered"
	RoutingKeyGapCanceled   = "coverage.gap.canceled"
)

// GapDetected is emitted when the detector materializes a new gap.
type GapDetected struct {
	sharedDomain.BaseEvent
	GapID          string    `json:"gap_id"`
	ShiftID        string    `json:"shift_id"`
	OrganizationID string    `json:"organization_id"`
	PodID          string    `json:"pod_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	MinutesLate    int       `json:"minutes_late"`
	Severity       string    `json:"severity"`
}

// NewGapDetected creates a GapDetected event.
func NewGapDetected(gap *Gap) *GapDetected {
	return &GapDetected{
		BaseEvent:      sharedDomain.NewBaseEvent(gap.ID(), AggregateType, RoutingKeyGapDetected),
		GapID:          gap.ID(),
		ShiftID:        gap.ShiftID(),
		OrganizationID: gap.OrganizationID(),
		PodID:          gap.Pod().ID,
		ScheduledStart: gap.ScheduledStart(),
		MinutesLate:    gap.MinutesLate(),
		Severity:       string(gap.Severity()),
	}
}

// GapNotified is emitted when the pod lead has been notified.
type GapNotified struct {
	sharedDomain.BaseEvent
	GapID     string `json:"gap_id"`
	ShiftID   string `json:"shift_id"`
	PodLeadID string `json:"pod_lead_id"`
	Severity  string `json:"severity"`
}

// NewGapNotified creates a GapNotified event.
func NewGapNotified(gap *Gap) *GapNotified {
	return &GapNotified{
		BaseEvent: sharedDomain.NewBaseEvent(gap.ID(), AggregateType, RoutingKeyGapNotified),
		GapID:     gap.ID(),
		ShiftID:   gap.ShiftID(),
		PodLeadID: gap.Pod().LeadID,
		Severity:  string(gap.Severity()),
	}
}

// GapDispatched is emitted when a replacement caregiver is assigned.
type GapDispatched struct {
	sharedDomain.BaseEvent
	GapID    string `json:"gap_id"`
	ShiftID  string `json:"shift_id"`
	PodID    string `json:"pod_id"`
	Severity string `json:"severity"`
}

// NewGapDispatched creates a GapDispatched event.
func NewGapDispatched(gap *Gap) *GapDispatched {
	return &GapDispatched{
		BaseEvent: sharedDomain.NewBaseEvent(gap.ID(), AggregateType, RoutingKeyGapDispatched),
		GapID:     gap.ID(),
		ShiftID:   gap.ShiftID(),
		PodID:     gap.Pod().ID,
		Severity:  string(gap.Severity()),
	}
}

// GapCovered is emitted when the visit is confirmed covered.
type GapCovered struct {
	sharedDomain.BaseEvent
	GapID               string `json:"gap_id"`
	ShiftID             string `json:"shift_id"`
	ResponseTimeMinutes int    `json:"response_time_minutes"`
}

// NewGapCovered creates a GapCovered event.
func NewGapCovered(gap *Gap) *GapCovered {
	responseMinutes := 0
	if rt, ok := gap.ResponseTime(); ok {
		responseMinutes = int(rt.Minutes())
	}
	return &GapCovered{
		BaseEvent:           sharedDomain.NewBaseEvent(gap.ID(), AggregateType, RoutingKeyGapCovered),
		GapID:               gap.ID(),
		ShiftID:             gap.ShiftID(),
		ResponseTimeMinutes: responseMinutes,
	}
}

// GapCanceled is emitted when the underlying need disappears.
type GapCanceled struct {
	sharedDomain.BaseEvent
	GapID   string `json:"gap_id"`
	ShiftID string `json:"shift_id"`
}

// NewGapCanceled creates a GapCanceled event.
func NewGapCanceled(gap *Gap) *GapCanceled {
	return &GapCanceled{
		BaseEvent: sharedDomain.NewBaseEvent(gap.ID(), AggregateType, RoutingKeyGapCanceled),
		GapID:     gap.ID(),
		ShiftID:   gap.ShiftID(),
	}
}
