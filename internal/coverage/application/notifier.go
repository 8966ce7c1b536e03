package application

import (
	"context"
	"errors"
	"time"

	"github.com/tidewell/podwatch/internal/coverage/domain"
)

// ErrNotificationDeliveryFailed signals that the notification collaborator
// could not deliver. It is logged, never rolled back: the notify transition
// stands and redelivery is the collaborator's concern.
var ErrNotificationDeliveryFailed = errors.New("notification delivery failed")

// Recipient is who a gap notification is addressed to.
type Recipient struct {
	ID    string
	Name  string
	Phone string
}

// GapSummary is the payload handed to the notification collaborator.
type GapSummary struct {
	GapID          string
	ShiftID        string
	PatientName    string
	PatientAddress string
	CaregiverName  string
	ScheduledStart time.Time
	MinutesLate    int
	Severity       domain.Severity
}

// SummarizeGap builds the notification payload for a gap.
func SummarizeGap(gap *domain.Gap) GapSummary {
	return GapSummary{
		GapID:          gap.ID(),
		ShiftID:        gap.ShiftID(),
		PatientName:    gap.Patient().Name,
		PatientAddress: gap.Patient().Address,
		CaregiverName:  gap.Caregiver().Name,
		ScheduledStart: gap.ScheduledStart(),
		MinutesLate:    gap.MinutesLate(),
		Severity:       gap.Severity(),
	}
}

// Notifier is the external notification collaborator. How a notification is
// physically delivered (SMS, push, email) is outside the engine.
type Notifier interface {
	Notify(ctx context.Context, recipient Recipient, summary GapSummary) error
}
