package observability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyChecker(ctx context.Context) HealthCheckResult {
	return HealthCheckResult{Status: HealthStatusHealthy, Message: "ok"}
}

func unhealthyChecker(ctx context.Context) HealthCheckResult {
	return HealthCheckResult{Status: HealthStatusUnhealthy, Message: "down"}
}

func degradedChecker(ctx context.Context) HealthCheckResult {
	return HealthCheckResult{Status: HealthStatusDegraded, Message: "slow"}
}

func TestHealthRegistry_Check(t *testing.T) {
	registry := NewHealthRegistry()
	registry.Register("database", healthyChecker)
	registry.Register("sweep_worker", healthyChecker)

	results := registry.Check(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, HealthStatusHealthy, results["database"].Status)
	assert.Equal(t, HealthStatusHealthy, results["sweep_worker"].Status)
	assert.False(t, results["database"].Timestamp.IsZero())
}

func TestHealthRegistry_OverallStatus(t *testing.T) {
	t.Run("empty registry is healthy", func(t *testing.T) {
		registry := NewHealthRegistry()
		registry.Check(context.Background())
		assert.Equal(t, HealthStatusHealthy, registry.OverallStatus())
	})

	t.Run("one unhealthy check makes overall unhealthy", func(t *testing.T) {
		registry := NewHealthRegistry()
		registry.Register("database", healthyChecker)
		registry.Register("sweep_worker", unhealthyChecker)
		registry.Check(context.Background())

		assert.Equal(t, HealthStatusUnhealthy, registry.OverallStatus())
	})

	t.Run("degraded without unhealthy is degraded", func(t *testing.T) {
		registry := NewHealthRegistry()
		registry.Register("database", healthyChecker)
		registry.Register("redis", degradedChecker)
		registry.Check(context.Background())

		assert.Equal(t, HealthStatusDegraded, registry.OverallStatus())
	})
}

func TestHealthRegistry_Unregister(t *testing.T) {
	registry := NewHealthRegistry()
	registry.Register("database", unhealthyChecker)
	registry.Check(context.Background())
	require.Equal(t, HealthStatusUnhealthy, registry.OverallStatus())

	registry.Unregister("database")
	registry.Check(context.Background())

	assert.Empty(t, registry.LastResults())
	assert.Equal(t, HealthStatusHealthy, registry.OverallStatus())
}

func TestGetOverallHealth(t *testing.T) {
	registry := NewHealthRegistry()
	registry.Register("database", healthyChecker)

	health := registry.GetOverallHealth(context.Background())

	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.False(t, health.Timestamp.IsZero())
	require.Contains(t, health.Checks, "database")

	data, err := health.ToJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "healthy", decoded["status"])
}

func TestDatabaseHealthChecker(t *testing.T) {
	t.Run("healthy on successful ping", func(t *testing.T) {
		checker := DatabaseHealthChecker(func(ctx context.Context) error { return nil })
		result := checker(context.Background())
		assert.Equal(t, HealthStatusHealthy, result.Status)
	})

	t.Run("unhealthy on ping failure", func(t *testing.T) {
		checker := DatabaseHealthChecker(func(ctx context.Context) error {
			return errors.New("connection refused")
		})
		result := checker(context.Background())
		assert.Equal(t, HealthStatusUnhealthy, result.Status)
		assert.Contains(t, result.Message, "connection refused")
	})
}

func TestRedisHealthChecker_DegradesOnly(t *testing.T) {
	checker := RedisHealthChecker(func(ctx context.Context) error {
		return errors.New("dial tcp: refused")
	})
	result := checker(context.Background())

	// The shift cache is optional, a broken Redis must not report unhealthy.
	assert.Equal(t, HealthStatusDegraded, result.Status)
}

func TestSweepWorkerHealthChecker(t *testing.T) {
	running := false
	checker := SweepWorkerHealthChecker(func() bool { return running })

	assert.Equal(t, HealthStatusUnhealthy, checker(context.Background()).Status)

	running = true
	assert.Equal(t, HealthStatusHealthy, checker(context.Background()).Status)
}
