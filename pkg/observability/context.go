package observability

import (
	"context"

	"github.com/google/uuid"
)

// Context keys for observability data.
type contextKey string

const (
	correlationIDCtxKey  contextKey = "correlation_id"
	organizationIDCtxKey contextKey = "organization_id"
	sweepIDCtxKey        contextKey = "sweep_id"
)

// Standard attribute keys used in logs and metrics.
const (
	CorrelationIDKey  = "correlation_id"
	OrganizationIDKey = "organization_id"
	SweepIDKey        = "sweep_id"
	DurationKey       = "duration_ms"
	ErrorKey          = "error"
	StatusKey         = "status"
)

// WithCorrelationID adds a correlation ID to the context.
// If id is empty, a new UUID is generated.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext extracts the correlation ID from context.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithOrganizationID adds an organization ID to the context.
func WithOrganizationID(ctx context.Context, organizationID string) context.Context {
	return context.WithValue(ctx, organizationIDCtxKey, organizationID)
}

// OrganizationIDFromContext extracts the organization ID from context.
func OrganizationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(organizationIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithSweepID adds a sweep ID to the context.
// If id is empty, a new UUID is generated.
func WithSweepID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, sweepIDCtxKey, id)
}

// SweepIDFromContext extracts the sweep ID from context.
func SweepIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(sweepIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// NewSweepContext creates a context carrying fresh sweep and correlation IDs
// plus the swept organization, so every log line of one sweep is linkable.
func NewSweepContext(ctx context.Context, organizationID string) context.Context {
	ctx = WithSweepID(ctx, "")
	ctx = WithCorrelationID(ctx, "")
	return WithOrganizationID(ctx, organizationID)
}
