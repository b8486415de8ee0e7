package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/domain"
)

var (
	ErrNotFound            = errors.New("session not found")
	ErrClosed              = errors.New("session closed")
	ErrInvalidInput        = errors.New("invalid session input")
	ErrUnknownSeat         = errors.New("seat is not part of this aircraft")
	ErrSeatOccupied        = fmt.Errorf("%w: seat is occupied", domain.ErrBusinessRule)
	ErrSeatUnavailable     = fmt.Errorf("%w: seat is no longer available", domain.ErrBusinessRule)
	ErrInvalidBaggage      = errors.New("invalid baggage selection")
	ErrInvalidVoucher      = errors.New("invalid voucher")
	ErrSelectionIncomplete = fmt.Errorf("%w: every passenger needs a seat on every flight", domain.ErrBusinessRule)
	ErrSeatsUnavailable    = fmt.Errorf("%w: some seats are no longer available", domain.ErrBusinessRule)
	ErrSubmitInProgress    = errors.New("submission already in progress")
	ErrAlreadySubmitted    = errors.New("booking already submitted")
	ErrSubmissionTimeout   = fmt.Errorf("%w: booking submission timed out; it may still complete, retry with the same idempotency key", domain.ErrTimeout)
	ErrRateLimited         = errors.New("too many availability checks")
)

// SeatsUnavailableError lists, per flight, the seats that failed the final
// re-validation. Named seats have already been removed from the selection; a
// flight with an empty list was reported as not fully available without
// naming seats.
type SeatsUnavailableError struct {
	SessionID uuid.UUID
	ByFlight  map[string][]string
}

func (e *SeatsUnavailableError) Error() string {
	flights := make([]string, 0, len(e.ByFlight))
	for f := range e.ByFlight {
		flights = append(flights, f)
	}
	sort.Strings(flights)

	parts := make([]string, 0, len(flights))
	for _, f := range flights {
		seats := e.ByFlight[f]
		if len(seats) == 0 {
			parts = append(parts, f+": not all seats available")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(seats, ", ")))
	}
	return fmt.Sprintf("seats no longer available (%s)", strings.Join(parts, "; "))
}

func (e *SeatsUnavailableError) Unwrap() error { return ErrSeatsUnavailable }

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many availability checks, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
