package availability

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/seatflow/internal/domain"
)

var (
	ErrUnknownShape  = fmt.Errorf("unknown availability response: %w", domain.ErrDataShapeMismatch)
	ErrCheckInFlight = errors.New("availability check already in progress")
	ErrClosed        = errors.New("checker closed")
)
