package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tidewell/podwatch/internal/coverage/application"
)

// DefaultCacheTTL bounds how stale a cached shift snapshot may be. It must
// stay well below the sweep interval so a caregiver's clock-in is observed
// within one cycle.
const DefaultCacheTTL = 30 * time.Second

// CachedShiftProvider decorates a ShiftSnapshotProvider with a short-lived
// Redis cache. Cache failures fall through to the underlying provider; a
// broken cache must never stop detection.
type CachedShiftProvider struct {
	inner  application.ShiftSnapshotProvider
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedShiftProvider creates a new cached shift provider.
func NewCachedShiftProvider(inner application.ShiftSnapshotProvider, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedShiftProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedShiftProvider{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Keyed per organization only. A hit serves shifts filtered against the
// instant the entry was written, so the TTL must stay below the sweep
// interval; wiring caps it there.
func cacheKey(organizationID string) string {
	return fmt.Sprintf("podwatch:shifts:%s", organizationID)
}

// UncoveredShifts serves from the cache when entries are fresh, otherwise
// fetches from the underlying provider and repopulates.
func (p *CachedShiftProvider) UncoveredShifts(ctx context.Context, organizationID string, asOf time.Time) ([]application.ShiftSnapshot, error) {
	key := cacheKey(organizationID)

	payload, err := p.client.Get(ctx, key).Bytes()
	if err == nil {
		var shifts []application.ShiftSnapshot
		if err := json.Unmarshal(payload, &shifts); err == nil {
			return shifts, nil
		}
		p.logger.Warn("discarding undecodable shift cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		p.logger.Warn("shift cache read failed", "key", key, "error", err)
	}

	shifts, err := p.inner.UncoveredShifts(ctx, organizationID, asOf)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(shifts); err == nil {
		if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
			p.logger.Warn("shift cache write failed", "key", key, "error", err)
		}
	}

	return shifts, nil
}

// Invalidate drops the cached snapshot for an organization.
func (p *CachedShiftProvider) Invalidate(ctx context.Context, organizationID string) error {
	return p.client.Del(ctx, cacheKey(organizationID)).Err()
}
