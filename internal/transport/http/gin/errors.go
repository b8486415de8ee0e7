package httpgin

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kirinyoku/seatflow/internal/availability"
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/selection"
	"github.com/kirinyoku/seatflow/internal/service/submissions"
	"github.com/kirinyoku/seatflow/internal/session"
	"github.com/kirinyoku/seatflow/internal/upstream/flights"
)

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var seatsErr *session.SeatsUnavailableError
	if errors.As(err, &seatsErr) {
		c.JSON(http.StatusConflict, SeatsUnavailableResponse{
			Error:            "some seats are no longer available",
			UnavailableSeats: seatsErr.ByFlight,
		})
		return
	}

	var rlErr *session.RateLimitedError
	if errors.As(err, &rlErr) {
		secs := int(math.Ceil(rlErr.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many availability checks"})
		return
	}

	switch {
	// not found
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
	case errors.Is(err, flights.ErrFlightNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "flight not found"})
	case errors.Is(err, submissions.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "submission not found"})
	case errors.Is(err, session.ErrClosed):
		c.JSON(http.StatusGone, ErrorResponse{Error: "session closed"})

	// bad input
	case errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, session.ErrUnknownSeat),
		errors.Is(err, session.ErrInvalidBaggage),
		errors.Is(err, session.ErrInvalidVoucher),
		errors.Is(err, selection.ErrSegmentOutOfRange),
		errors.Is(err, selection.ErrNoSegments),
		errors.Is(err, selection.ErrTooManySegments),
		errors.Is(err, selection.ErrNoSeatsRequired),
		errors.Is(err, selection.ErrNegativePassengers):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	// state conflicts
	case errors.Is(err, session.ErrSeatOccupied):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat is occupied"})
	case errors.Is(err, session.ErrSeatUnavailable):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "seat is no longer available"})
	case errors.Is(err, session.ErrSubmitInProgress):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "submission already in progress"})
	case errors.Is(err, session.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "booking already submitted"})
	case errors.Is(err, submissions.ErrDuplicate):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "idempotency key already used"})
	case errors.Is(err, availability.ErrCheckInFlight):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusConflict, ErrorResponse{Error: "availability check already in progress"})
	case errors.Is(err, session.ErrSelectionIncomplete):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "every passenger needs a seat on every flight"})

	// upstream
	case errors.Is(err, session.ErrSubmissionTimeout):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "booking submission timed out; it may still complete, retry with the same idempotency key"})
	case errors.Is(err, domain.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "upstream timeout"})
	case errors.Is(err, domain.ErrBusinessRule):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "booking rejected"})
	case errors.Is(err, domain.ErrNetworkFailure),
		errors.Is(err, domain.ErrDataShapeMismatch):
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream unavailable"})

	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
