package submissions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/events"
	"github.com/kirinyoku/seatflow/internal/repository"
	postgresrepo "github.com/kirinyoku/seatflow/internal/repository/postgres"
	"github.com/kirinyoku/seatflow/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepo struct{ mock.Mock }

func (m *MockRepo) Create(ctx context.Context, s *domain.Submission) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockRepo) UpdateResult(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus, bookingID, errMsg string) error {
	return m.Called(ctx, id, status, bookingID, errMsg).Error(0)
}

func (m *MockRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	args := m.Called(ctx, id)
	sub, _ := args.Get(0).(*domain.Submission)
	return sub, args.Error(1)
}

func (m *MockRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Submission, error) {
	args := m.Called(ctx, sessionID)
	subs, _ := args.Get(0).([]domain.Submission)
	return subs, args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) PublishSubmission(ctx context.Context, ev events.SubmissionEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockPublisher) Close() error { return nil }

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) PublishFlightChanged(ctx context.Context, flightID string) error {
	return m.Called(ctx, flightID).Error(0)
}

// fakeTx runs fn without a database and fires the hooks only on success.
type fakeTx struct {
	commits int
}

func (f *fakeTx) Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error {
	var hooks []uow.AfterCommit
	if err := fn(ctx, nil, func(h uow.AfterCommit) { hooks = append(hooks, h) }); err != nil {
		return err
	}
	f.commits++
	for _, h := range hooks {
		h(ctx)
	}
	return nil
}

type fixture struct {
	svc       *Service
	repo      *MockRepo
	publisher *MockPublisher
	notifier  *MockNotifier
	tx        *fakeTx
}

func newFixture() *fixture {
	f := &fixture{
		repo:      &MockRepo{},
		publisher: &MockPublisher{},
		notifier:  &MockNotifier{},
		tx:        &fakeTx{},
	}
	f.svc = NewWithRepo(
		f.repo,
		func(postgresrepo.DB) Repo { return f.repo },
		f.tx,
		f.publisher,
		f.notifier,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func TestService_OpenDuplicate(t *testing.T) {
	f := newFixture()
	sub := &domain.Submission{ID: uuid.New(), SessionID: uuid.New(), IdempotencyKey: "k1"}

	f.repo.On("Create", mock.Anything, sub).Return(repository.ErrConflict).Once()

	err := f.svc.Open(context.Background(), sub)
	assert.ErrorIs(t, err, ErrDuplicate)
	f.repo.AssertExpectations(t)
}

func TestService_SettleAccepted(t *testing.T) {
	f := newFixture()
	sub := &domain.Submission{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Status:    domain.SubmissionAccepted,
		BookingID: "BK-9",
		Total:     1100000,
	}

	f.repo.On("UpdateResult", mock.Anything, sub.ID, domain.SubmissionAccepted, "BK-9", "").Return(nil).Once()
	f.publisher.On("PublishSubmission", mock.Anything, mock.MatchedBy(func(ev events.SubmissionEvent) bool {
		return ev.Type == events.TypeBookingSubmitted &&
			ev.SubmissionID == sub.ID &&
			ev.BookingID == "BK-9" &&
			assert.ObjectsAreEqual([]string{"F1", "F2"}, ev.Flights)
	})).Return(nil).Once()
	f.notifier.On("PublishFlightChanged", mock.Anything, "F1").Return(nil).Once()
	f.notifier.On("PublishFlightChanged", mock.Anything, "F2").Return(errors.New("redis down")).Once()

	require.NoError(t, f.svc.Settle(context.Background(), sub, []string{"F1", "F2"}))

	assert.Equal(t, 1, f.tx.commits)
	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestService_SettleFailedDoesNotAnnounceFlights(t *testing.T) {
	f := newFixture()
	sub := &domain.Submission{
		ID:     uuid.New(),
		Status: domain.SubmissionTimedOut,
		Error:  "timeout",
	}

	f.repo.On("UpdateResult", mock.Anything, sub.ID, domain.SubmissionTimedOut, "", "timeout").Return(nil).Once()
	f.publisher.On("PublishSubmission", mock.Anything, mock.MatchedBy(func(ev events.SubmissionEvent) bool {
		return ev.Type == events.TypeBookingFailed && ev.Status == domain.SubmissionTimedOut
	})).Return(errors.New("kafka down")).Once()

	require.NoError(t, f.svc.Settle(context.Background(), sub, []string{"F1"}))

	f.publisher.AssertExpectations(t)
	f.notifier.AssertNotCalled(t, "PublishFlightChanged", mock.Anything, mock.Anything)
}

func TestService_SettleMissingRowSkipsHooks(t *testing.T) {
	f := newFixture()
	sub := &domain.Submission{ID: uuid.New(), Status: domain.SubmissionAccepted}

	f.repo.On("UpdateResult", mock.Anything, sub.ID, domain.SubmissionAccepted, "", "").Return(repository.ErrNotFound).Once()

	err := f.svc.Settle(context.Background(), sub, []string{"F1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.tx.commits)
	f.publisher.AssertNotCalled(t, "PublishSubmission", mock.Anything, mock.Anything)
}

func TestService_Get(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	f.repo.On("Get", mock.Anything, id).Return(nil, repository.ErrNotFound).Once()

	_, err := f.svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_ListBySession(t *testing.T) {
	f := newFixture()
	sessionID := uuid.New()
	want := []domain.Submission{{ID: uuid.New(), SessionID: sessionID, Status: domain.SubmissionRejected}}

	f.repo.On("ListBySession", mock.Anything, sessionID).Return(want, nil).Once()

	got, err := f.svc.ListBySession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
