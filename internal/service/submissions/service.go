package submissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/events"
	"github.com/kirinyoku/seatflow/internal/repository"
	postgresrepo "github.com/kirinyoku/seatflow/internal/repository/postgres"
	"github.com/kirinyoku/seatflow/internal/uow"
)

var (
	ErrNotFound  = errors.New("submission not found")
	ErrDuplicate = errors.New("idempotency key already used for this session")
)

// Repo is the persistence the ledger needs. *postgresrepo.SubmissionRepo
// satisfies it.
type Repo interface {
	Create(ctx context.Context, s *domain.Submission) error
	UpdateResult(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus, bookingID, errMsg string) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Submission, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Submission, error)
}

// TxRunner runs fn in a transaction and calls the registered hooks after the
// commit. *uow.UoW satisfies it.
type TxRunner interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error) error
}

// FlightNotifier tells other instances that a flight's seats changed.
type FlightNotifier interface {
	PublishFlightChanged(ctx context.Context, flightID string) error
}

type Service struct {
	repo      func(tx postgresrepo.DB) Repo
	base      Repo
	tx        TxRunner
	publisher events.Publisher
	flights   FlightNotifier
	logger    *slog.Logger
}

// New wires the ledger on top of the Postgres store.
func New(
	store *postgresrepo.Store,
	publisher events.Publisher,
	flights FlightNotifier,
	logger *slog.Logger,
) *Service {
	base := store.Submissions()
	return NewWithRepo(
		base,
		func(tx postgresrepo.DB) Repo { return base.With(tx) },
		uow.NewUoW(store),
		publisher,
		flights,
		logger,
	)
}

// NewWithRepo builds a Service from its parts. withTx returns a Repo bound to
// the given transaction.
func NewWithRepo(
	base Repo,
	withTx func(tx postgresrepo.DB) Repo,
	tx TxRunner,
	publisher events.Publisher,
	flights FlightNotifier,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:      withTx,
		base:      base,
		tx:        tx,
		publisher: publisher,
		flights:   flights,
		logger:    logger.With("component", "submissions"),
	}
}

// Open stores a pending submission before the booking-service is called.
//
// Returns:
//   - error: ErrDuplicate if the session already used the idempotency key.
func (s *Service) Open(ctx context.Context, sub *domain.Submission) error {
	const op = "service.submissions.Open"

	if err := s.base.Create(ctx, sub); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%s:%w", op, ErrDuplicate)
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Settle records the booking-service outcome. Once committed it publishes the
// outcome to Kafka and, for accepted bookings, announces that the flights'
// seats changed.
func (s *Service) Settle(ctx context.Context, sub *domain.Submission, flights []string) error {
	const op = "service.submissions.Settle"

	err := s.tx.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.repo(tx).UpdateResult(ctx, sub.ID, sub.Status, sub.BookingID, sub.Error); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrNotFound)
			}
			return fmt.Errorf("%s:%w", op, err)
		}

		ev := events.SubmissionEvent{
			Type:         events.TypeBookingSubmitted,
			SubmissionID: sub.ID,
			SessionID:    sub.SessionID,
			BookingID:    sub.BookingID,
			Status:       sub.Status,
			Total:        sub.Total,
			Flights:      flights,
			Error:        sub.Error,
		}
		if sub.Status != domain.SubmissionAccepted {
			ev.Type = events.TypeBookingFailed
		}

		after(func(ctx context.Context) {
			if err := s.publisher.PublishSubmission(ctx, ev); err != nil {
				s.logger.Warn("failed to publish submission event", "submission_id", sub.ID, "error", err)
			}
			if sub.Status != domain.SubmissionAccepted || s.flights == nil {
				return
			}
			for _, f := range flights {
				if err := s.flights.PublishFlightChanged(ctx, f); err != nil {
					s.logger.Warn("failed to publish flight change", "flight_id", f, "error", err)
				}
			}
		})

		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	const op = "service.submissions.Get"

	sub, err := s.base.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return sub, nil
}

func (s *Service) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Submission, error) {
	const op = "service.submissions.ListBySession"

	subs, err := s.base.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return subs, nil
}
