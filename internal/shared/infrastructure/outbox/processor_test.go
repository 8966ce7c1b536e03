package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
)

// mockPublisher is a test double for eventbus.Publisher.
type mockPublisher struct {
	mu          sync.Mutex
	published   []publishedMessage
	failForKeys map[string]bool
}

type publishedMessage struct {
	RoutingKey string
	Payload    []byte
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{
		published:   make([]publishedMessage, 0),
		failForKeys: make(map[string]bool),
	}
}

func (p *mockPublisher) Publish(_ context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failForKeys[routingKey] {
		return errors.New("publish failed")
	}

	p.published = append(p.published, publishedMessage{
		RoutingKey: routingKey,
		Payload:    payload,
	})
	return nil
}

func (p *mockPublisher) Close() error { return nil }

func (p *mockPublisher) PublishedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func createTestMessage(routingKey string) *outbox.Message {
	payload, _ := json.Marshal(map[string]string{"test": "data"})
	return &outbox.Message{
		EventID:       uuid.New(),
		AggregateType: "Gap",
		AggregateID:   "gap_" + uuid.NewString(),
		EventType:     routingKey,
		RoutingKey:    routingKey,
		Payload:       payload,
		CreatedAt:     time.Now(),
	}
}

func TestProcessor_ProcessOnce(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

	require.NoError(t, repo.Save(context.Background(), createTestMessage("coverage.gap.detected")))
	require.NoError(t, repo.Save(context.Background(), createTestMessage("coverage.gap.notified")))

	err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, publisher.PublishedCount())

	for _, msg := range repo.Messages() {
		assert.NotNil(t, msg.PublishedAt)
	}

	stats := processor.GetStats()
	assert.Equal(t, uint64(2), stats.PublishedCount)
	assert.NotNil(t, stats.LastProcessedAt)
	assert.NotNil(t, stats.OldestMessageAt)
	assert.GreaterOrEqual(t, stats.LagSeconds, 0.0)
}

func TestProcessor_ProcessOnce_PublishFailure(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	publisher.failForKeys["coverage.gap.detected"] = true
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

	require.NoError(t, repo.Save(context.Background(), createTestMessage("coverage.gap.detected")))
	require.NoError(t, repo.Save(context.Background(), createTestMessage("coverage.gap.covered")))

	// The batch keeps going past the failed message.
	err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, publisher.PublishedCount())

	var failed *outbox.Message
	for _, msg := range repo.Messages() {
		if msg.RoutingKey == "coverage.gap.detected" {
			failed = msg
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, 1, failed.RetryCount)
	require.NotNil(t, failed.LastError)
	require.NotNil(t, failed.NextRetryAt)
	assert.True(t, failed.NextRetryAt.After(time.Now()))

	stats := processor.GetStats()
	assert.Equal(t, uint64(1), stats.PublishedCount)
	assert.Equal(t, uint64(1), stats.FailedCount)
	assert.NotNil(t, stats.LastErrorAt)
}

func TestProcessor_DeadLettersAfterMaxRetries(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	publisher.failForKeys["coverage.gap.detected"] = true
	config := outbox.DefaultProcessorConfig()
	config.MaxRetries = 1
	processor := outbox.NewProcessor(repo, publisher, config, nil, nil)

	require.NoError(t, repo.Save(context.Background(), createTestMessage("coverage.gap.detected")))

	err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, publisher.PublishedCount())

	msgs := repo.Messages()
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].DeadLetteredAt)
	require.NotNil(t, msgs[0].DeadLetterReason)

	stats := processor.GetStats()
	assert.Equal(t, uint64(1), stats.DeadCount)
}

func TestProcessor_StartStop(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	config := outbox.ProcessorConfig{
		PollInterval:     10 * time.Millisecond,
		BatchSize:        10,
		MaxRetries:       3,
		RetryBackoffBase: 1 * time.Millisecond,
		RetryBackoffMax:  10 * time.Millisecond,
	}
	processor := outbox.NewProcessor(repo, publisher, config, nil, nil)

	require.NoError(t, processor.Start(context.Background()))
	assert.True(t, processor.IsRunning())

	require.NoError(t, repo.Save(context.Background(), createTestMessage("coverage.gap.detected")))

	deadline := time.Now().Add(2 * time.Second)
	for publisher.PublishedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	processor.Stop()
	assert.False(t, processor.IsRunning())
	assert.GreaterOrEqual(t, publisher.PublishedCount(), 1)
}

func TestProcessor_DoubleStartIsIdempotent(t *testing.T) {
	repo := outbox.NewInMemoryRepository()
	publisher := newMockPublisher()
	processor := outbox.NewProcessor(repo, publisher, outbox.DefaultProcessorConfig(), nil, nil)

	require.NoError(t, processor.Start(context.Background()))
	require.NoError(t, processor.Start(context.Background()))

	processor.Stop()
	processor.Stop()
	assert.False(t, processor.IsRunning())
}
