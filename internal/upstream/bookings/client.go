package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/upstream"
)

// ErrRejected is returned when the booking-service refuses a payload.
var ErrRejected = errors.New("booking rejected")

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(hc *http.Client, baseURL string) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

type createResponse struct {
	ID        string `json:"id"`
	BookingID string `json:"bookingId"`
}

// Create posts a booking and returns the booking-service identifier.
//
// Errors wrap domain.ErrTimeout when the service did not answer in time,
// ErrRejected (and domain.ErrBusinessRule) for 4xx replies and
// domain.ErrNetworkFailure otherwise.
func (c *Client) Create(ctx context.Context, p domain.BookingPayload, requestID string) (string, error) {
	const op = "bookings.Client.Create"

	data, err := upstream.Do(ctx, c.hc, http.MethodPost, c.baseURL+"/bookings", p, requestID)
	if err != nil {
		var se *upstream.StatusError
		if errors.As(err, &se) {
			switch {
			case se.Code == http.StatusGatewayTimeout || se.Code == http.StatusRequestTimeout:
				return "", fmt.Errorf("%s: %w: %w", op, domain.ErrTimeout, err)
			case se.Code >= 400 && se.Code < 500:
				return "", fmt.Errorf("%s: %w: %w: %s", op, ErrRejected, domain.ErrBusinessRule, se.Body)
			default:
				return "", fmt.Errorf("%s: %w: %w", op, domain.ErrNetworkFailure, err)
			}
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var resp createResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, domain.ErrDataShapeMismatch, err)
	}

	id := resp.BookingID
	if id == "" {
		id = resp.ID
	}
	if id == "" {
		return "", fmt.Errorf("%s: %w: missing booking id", op, domain.ErrDataShapeMismatch)
	}

	return id, nil
}
