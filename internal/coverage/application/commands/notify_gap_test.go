package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tidewell/podwatch/internal/coverage/application"
	"github.com/tidewell/podwatch/internal/coverage/domain"
	"github.com/tidewell/podwatch/internal/coverage/infrastructure/persistence"
	"github.com/tidewell/podwatch/internal/shared/infrastructure/outbox"
)

type passthroughUnitOfWork struct{}

func (passthroughUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (passthroughUnitOfWork) Commit(context.Context) error                       { return nil }
func (passthroughUnitOfWork) Rollback(context.Context) error                     { return nil }

type mockGapRepo struct {
	mock.Mock
}

func (m *mockGapRepo) Create(ctx context.Context, gap *domain.Gap) error {
	args := m.Called(ctx, gap)
	return args.Error(0)
}

func (m *mockGapRepo) Update(ctx context.Context, gap *domain.Gap) error {
	args := m.Called(ctx, gap)
	return args.Error(0)
}

func (m *mockGapRepo) FindByID(ctx context.Context, id string) (*domain.Gap, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Gap), args.Error(1)
}

func (m *mockGapRepo) HasOpenGap(ctx context.Context, shiftID string) (bool, error) {
	args := m.Called(ctx, shiftID)
	return args.Bool(0), args.Error(1)
}

func (m *mockGapRepo) ListByOrganization(ctx context.Context, organizationID string, filter domain.GapFilter) ([]*domain.Gap, error) {
	args := m.Called(ctx, organizationID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Gap), args.Error(1)
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextRetryAt)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type recordingNotifier struct {
	mu         sync.Mutex
	delivered  []application.GapSummary
	recipients []application.Recipient
	err        error
	done       chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 8)}
}

func (n *recordingNotifier) Notify(_ context.Context, recipient application.Recipient, summary application.GapSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer func() { n.done <- struct{}{} }()
	if n.err != nil {
		return n.err
	}
	n.recipients = append(n.recipients, recipient)
	n.delivered = append(n.delivered, summary)
	return nil
}

func (n *recordingNotifier) waitForDelivery(t *testing.T) {
	t.Helper()
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never attempted")
	}
}

type txKey struct{}

func createTestGap(t *testing.T, minutesLate int) *domain.Gap {
	t.Helper()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	gap, err := domain.DetectGap(
		"org_1", "shift_1",
		start, start.Add(2*time.Hour),
		domain.PatientContext{ID: "pat_1", Name: "Edna Mabel", Address: "12 Juniper Ln"},
		domain.CaregiverContext{ID: "cg_1", Name: "Sam Ortiz"},
		domain.PodContext{ID: "pod_1", LeadID: "lead_1", LeadName: "Priya Nair", LeadPhone: "+1-555-0103"},
		start.Add(time.Duration(minutesLate)*time.Minute),
		minutesLate,
	)
	require.NoError(t, err)
	gap.ClearDomainEvents()
	return gap
}

func TestNotifyGapHandler_Handle(t *testing.T) {
	t.Run("transitions the gap and delivers the notification", func(t *testing.T) {
		repo := new(mockGapRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := newRecordingNotifier()
		handler := NewNotifyGapHandler(repo, outboxRepo, uow, notifier, nil, nil)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "tx")
		gap := createTestGap(t, 25)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, gap.ID()).Return(gap, nil)
		repo.On("Update", txCtx, gap).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		updated, err := handler.Handle(ctx, NotifyGapCommand{GapID: gap.ID()})

		require.NoError(t, err)
		assert.Equal(t, domain.GapStatusPodLeadNotified, updated.Status())
		require.NotNil(t, updated.NotifiedAt())

		notifier.waitForDelivery(t)
		notifier.mu.Lock()
		require.Len(t, notifier.recipients, 1)
		assert.Equal(t, "lead_1", notifier.recipients[0].ID)
		assert.Equal(t, "Priya Nair", notifier.recipients[0].Name)
		require.Len(t, notifier.delivered, 1)
		assert.Equal(t, gap.ID(), notifier.delivered[0].GapID)
		assert.Equal(t, "Edna Mabel", notifier.delivered[0].PatientName)
		assert.Equal(t, 25, notifier.delivered[0].MinutesLate)
		notifier.mu.Unlock()

		repo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("delivery failure does not roll back the transition", func(t *testing.T) {
		repo := new(mockGapRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := newRecordingNotifier()
		notifier.err = application.ErrNotificationDeliveryFailed
		handler := NewNotifyGapHandler(repo, outboxRepo, uow, notifier, nil, nil)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "tx")
		gap := createTestGap(t, 25)

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, gap.ID()).Return(gap, nil)
		repo.On("Update", txCtx, gap).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		updated, err := handler.Handle(ctx, NotifyGapCommand{GapID: gap.ID()})

		require.NoError(t, err)
		assert.Equal(t, domain.GapStatusPodLeadNotified, updated.Status())
		notifier.waitForDelivery(t)
	})

	t.Run("returns ErrGapNotFound when the gap does not exist", func(t *testing.T) {
		repo := new(mockGapRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := newRecordingNotifier()
		handler := NewNotifyGapHandler(repo, outboxRepo, uow, notifier, nil, nil)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "tx")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, "gap_missing").Return(nil, nil)

		_, err := handler.Handle(ctx, NotifyGapCommand{GapID: "gap_missing"})

		assert.ErrorIs(t, err, domain.ErrGapNotFound)
		repo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("rejects notify on an already notified gap", func(t *testing.T) {
		repo := new(mockGapRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := newRecordingNotifier()
		handler := NewNotifyGapHandler(repo, outboxRepo, uow, notifier, nil, nil)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "tx")
		gap := createTestGap(t, 25)
		require.NoError(t, gap.Notify(time.Now().UTC()))
		gap.ClearDomainEvents()

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, gap.ID()).Return(gap, nil)

		_, err := handler.Handle(ctx, NotifyGapCommand{GapID: gap.ID()})

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		uow.AssertExpectations(t)
	})

	t.Run("update failure rolls back", func(t *testing.T) {
		repo := new(mockGapRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		notifier := newRecordingNotifier()
		handler := NewNotifyGapHandler(repo, outboxRepo, uow, notifier, nil, nil)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "tx")
		gap := createTestGap(t, 25)
		storageErr := errors.New("write failed")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, gap.ID()).Return(gap, nil)
		repo.On("Update", txCtx, gap).Return(storageErr)

		_, err := handler.Handle(ctx, NotifyGapCommand{GapID: gap.ID()})

		assert.ErrorIs(t, err, storageErr)
		uow.AssertExpectations(t)
	})
}

// Transitions against a repository that hands back the live aggregate must
// publish only the event produced by that transition, never a re-emitted
// detection event.
func TestNotifyGapHandler_PublishesOnlyTransitionEvent(t *testing.T) {
	repo := persistence.NewInMemoryGapRepository()
	outboxRepo := outbox.NewInMemoryRepository()
	notifier := newRecordingNotifier()
	notify := NewNotifyGapHandler(repo, outboxRepo, passthroughUnitOfWork{}, notifier, nil, nil)
	dispatch := NewDispatchGapHandler(repo, outboxRepo, passthroughUnitOfWork{}, nil)

	ctx := context.Background()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	gap, err := domain.DetectGap(
		"org_1", "shift_1",
		start, start.Add(2*time.Hour),
		domain.PatientContext{ID: "pat_1", Name: "Edna Mabel"},
		domain.CaregiverContext{ID: "cg_1", Name: "Sam Ortiz"},
		domain.PodContext{ID: "pod_1", LeadID: "lead_1", LeadName: "Priya Nair"},
		start.Add(25*time.Minute), 25,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, gap))
	assert.Empty(t, gap.DomainEvents())

	updated, err := notify.Handle(ctx, NotifyGapCommand{GapID: gap.ID()})
	require.NoError(t, err)
	assert.Empty(t, updated.DomainEvents())
	notifier.waitForDelivery(t)

	_, err = dispatch.Handle(ctx, DispatchGapCommand{GapID: gap.ID()})
	require.NoError(t, err)

	counts := make(map[string]int)
	for _, msg := range outboxRepo.Messages() {
		counts[msg.RoutingKey]++
	}
	assert.Equal(t, 0, counts[domain.RoutingKeyGapDetected])
	assert.Equal(t, 1, counts[domain.RoutingKeyGapNotified])
	assert.Equal(t, 1, counts[domain.RoutingKeyGapDispatched])
}
