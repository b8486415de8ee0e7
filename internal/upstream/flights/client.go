package flights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/upstream"
)

var ErrFlightNotFound = errors.New("flight not found")

type Config struct {
	BaseURL    string
	MaxRetries int
}

// Client talks to the flight-service.
type Client struct {
	baseURL    string
	hc         *http.Client
	logger     *slog.Logger
	maxRetries int
}

func New(hc *http.Client, logger *slog.Logger, cfg Config) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		hc:         hc,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
	}
}

// GetDetails loads fares, occupied seats and aircraft data for a flight.
// Transient failures are retried with exponential backoff.
func (c *Client) GetDetails(ctx context.Context, flightID string) (domain.FlightDetails, error) {
	const op = "flights.Client.GetDetails"

	u := fmt.Sprintf("%s/flights/%s/details", c.baseURL, url.PathEscape(flightID))

	var (
		data []byte
		err  error
	)
	backoff := 80 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		data, err = upstream.Do(ctx, c.hc, http.MethodGet, u, nil, requestID(ctx))
		if err == nil || !retryable(err) || attempt == c.maxRetries {
			break
		}
		c.logger.Warn("flight details request failed, retrying",
			"flight_id", flightID,
			"attempt", attempt+1,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return domain.FlightDetails{}, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return domain.FlightDetails{}, fmt.Errorf("%s: %w: %s", op, ErrFlightNotFound, flightID)
		}
		return domain.FlightDetails{}, fmt.Errorf("%s: %w", op, err)
	}

	var d domain.FlightDetails
	if err := json.Unmarshal(data, &d); err != nil {
		return domain.FlightDetails{}, fmt.Errorf("%s: %w: %w", op, domain.ErrDataShapeMismatch, err)
	}
	if d.ID == "" {
		d.ID = flightID
	}
	if d.OccupiedSeats == nil {
		d.OccupiedSeats = []string{}
	}

	return d, nil
}

// CheckSeats returns the raw availability response so the caller can
// normalise whichever shape the service replies with.
func (c *Client) CheckSeats(ctx context.Context, flightID string, seatCodes []string) ([]byte, error) {
	const op = "flights.Client.CheckSeats"

	q := url.Values{}
	q.Set("seatCodes", strings.Join(seatCodes, ","))
	u := fmt.Sprintf("%s/flights/%s/seats/check-availability?%s", c.baseURL, url.PathEscape(flightID), q.Encode())

	data, err := upstream.Do(ctx, c.hc, http.MethodGet, u, nil, requestID(ctx))
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrFlightNotFound, flightID)
		}
		if upstream.IsServerError(err) {
			return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrNetworkFailure, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return data, nil
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrNetworkFailure) ||
		errors.Is(err, domain.ErrTimeout) ||
		upstream.IsServerError(err)
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that is forwarded to upstream calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
