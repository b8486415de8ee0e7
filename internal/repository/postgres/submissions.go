package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/repository"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the submissions ledger if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgres.Store.Migrate"

	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// SubmissionRepo persists every booking submission and its outcome.
type SubmissionRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SubmissionRepo) With(db DB) *SubmissionRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SubmissionRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a pending submission.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - s: the submission; ID, SessionID and Payload must be set.
//
// Returns:
//   - error: repository.ErrConflict if the idempotency key was already used
//     for this session.
func (r *SubmissionRepo) Create(ctx context.Context, s *domain.Submission) error {
	const op = "postgres.SubmissionRepo.Create"

	if s.Status == "" {
		s.Status = domain.SubmissionPending
	}

	err := r.handle().QueryRow(ctx,
		`INSERT INTO booking_submissions (id, session_id, idempotency_key, status, total, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		s.ID, s.SessionID, s.IdempotencyKey, string(s.Status), s.Total, s.Payload,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// UpdateResult records the booking-service outcome of a pending submission.
//
// Returns:
//   - error: repository.ErrNotFound if no pending submission has this ID.
func (r *SubmissionRepo) UpdateResult(
	ctx context.Context,
	id uuid.UUID,
	status domain.SubmissionStatus,
	bookingID string,
	errMsg string,
) error {
	const op = "postgres.SubmissionRepo.UpdateResult"

	tag, err := r.handle().Exec(ctx,
		`UPDATE booking_submissions
		    SET status = $2, booking_id = $3, error = $4, updated_at = now()
		  WHERE id = $1 AND status = 'pending'`,
		id, string(status), bookingID, errMsg,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

const submissionColumns = `id, session_id, idempotency_key, status, total, payload, booking_id, error, created_at, updated_at`

func (r *SubmissionRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Submission, error) {
	const op = "postgres.SubmissionRepo.Get"

	rows, err := r.handle().Query(ctx,
		`SELECT `+submissionColumns+` FROM booking_submissions WHERE id = $1`, id)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSubmission)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return &s, nil
}

// ListBySession returns a session's submissions, newest first.
func (r *SubmissionRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Submission, error) {
	const op = "postgres.SubmissionRepo.ListBySession"

	rows, err := r.handle().Query(ctx,
		`SELECT `+submissionColumns+` FROM booking_submissions
		  WHERE session_id = $1
		  ORDER BY created_at DESC`, sessionID)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := pgx.CollectRows(rows, scanSubmission)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func scanSubmission(row pgx.CollectableRow) (domain.Submission, error) {
	var (
		s      domain.Submission
		status string
	)
	err := row.Scan(
		&s.ID, &s.SessionID, &s.IdempotencyKey, &status, &s.Total,
		&s.Payload, &s.BookingID, &s.Error, &s.CreatedAt, &s.UpdatedAt,
	)
	s.Status = domain.SubmissionStatus(status)
	return s, err
}
