package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/availability"
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/selection"
	"golang.org/x/sync/errgroup"
)

// FlightSource loads flight details and answers availability checks.
type FlightSource interface {
	availability.Client
	GetDetails(ctx context.Context, flightID string) (domain.FlightDetails, error)
}

// Invalidator is implemented by flight sources that cache details.
type Invalidator interface {
	Invalidate(ctx context.Context, flightID string) error
}

type BookingClient interface {
	Create(ctx context.Context, p domain.BookingPayload, requestID string) (string, error)
}

// Ledger persists submissions. Open stores a pending row before the
// booking-service is called; Settle records the outcome.
type Ledger interface {
	Open(ctx context.Context, sub *domain.Submission) error
	Settle(ctx context.Context, sub *domain.Submission, flights []string) error
}

type Limiter interface {
	Allow(ctx context.Context, id string) (bool, time.Duration, error)
}

type Deps struct {
	Flights  FlightSource
	Bookings BookingClient
	Ledger   Ledger
	// Limiter throttles manual availability checks. Optional.
	Limiter Limiter
}

type Config struct {
	IdleTTL       time.Duration
	CheckInterval time.Duration
	SubmitTimeout time.Duration
	Availability  availability.Options
}

type CreateInput struct {
	Passengers domain.Passengers `json:"passengers"`
	FlightIDs  []string          `json:"flightIds"`
}

// Manager owns every live booking session of this instance.
type Manager struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(deps Deps, cfg Config, logger *slog.Logger) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 30 * time.Second
	}

	return &Manager{
		deps:     deps,
		cfg:      cfg,
		logger:   logger.With("component", "sessions"),
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a booking session. Flight details for all segments are loaded
// concurrently and periodic availability checks start immediately.
//
// Parameters:
//   - ctx: request-scoped context.
//   - in: passengers and the flight of each segment, in travel order.
//
// Returns:
//   - *Session: the new session.
//   - error: ErrInvalidInput for bad passenger counts or segment lists.
//   - error: the flight source error if any flight could not be loaded.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*Session, error) {
	const op = "session.Manager.Create"

	if err := validateCreate(in); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	details := make([]domain.FlightDetails, len(in.FlightIDs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range in.FlightIDs {
		i, id := i, id
		g.Go(func() error {
			d, err := m.deps.Flights.GetDetails(gCtx, id)
			if err != nil {
				return err
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s, err := newSession(uuid.New(), in.Passengers, details, options{
		client:       m.deps.Flights,
		availability: m.cfg.Availability,
		logger:       m.logger,
		now:          m.now,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.startChecks(m.cfg.CheckInterval)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("session created",
		"session_id", s.ID(),
		"flights", in.FlightIDs,
		"seats_required", in.Passengers.RequiredSeats(),
	)

	return s, nil
}

func validateCreate(in CreateInput) error {
	p := in.Passengers
	switch {
	case len(in.FlightIDs) == 0:
		return fmt.Errorf("%w: %w", ErrInvalidInput, selection.ErrNoSegments)
	case len(in.FlightIDs) > selection.MaxSegments:
		return fmt.Errorf("%w: %w", ErrInvalidInput, selection.ErrTooManySegments)
	case p.Adults < 0 || p.Children < 0 || p.Infants < 0:
		return fmt.Errorf("%w: %w", ErrInvalidInput, selection.ErrNegativePassengers)
	case p.Total() == 0:
		return fmt.Errorf("%w: at least one passenger is required", ErrInvalidInput)
	case p.Infants > p.Adults:
		return fmt.Errorf("%w: each infant must travel with an adult", ErrInvalidInput)
	}
	for i, id := range in.FlightIDs {
		if id == "" {
			return fmt.Errorf("%w: empty flight id for segment %d", ErrInvalidInput, i)
		}
	}
	return nil
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("session.Manager.Get: %w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Close ends a session and releases its timers.
func (m *Manager) Close(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session.Manager.Close: %w: %s", ErrNotFound, id)
	}

	s.Close()
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// CloseAll closes every session. Used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CheckAvailability runs a manual check, subject to the per-session rate
// limit when one is configured.
func (m *Manager) CheckAvailability(ctx context.Context, id uuid.UUID, idx int) (domain.AvailabilityResult, error) {
	const op = "session.Manager.CheckAvailability"

	s, err := m.Get(id)
	if err != nil {
		return domain.AvailabilityResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if m.deps.Limiter != nil {
		ok, retry, err := m.deps.Limiter.Allow(ctx, id.String())
		if err != nil {
			m.logger.Warn("rate limiter unavailable", "session_id", id, "error", err)
		} else if !ok {
			return domain.AvailabilityResult{}, fmt.Errorf("%s: %w", op, &RateLimitedError{RetryAfter: retry})
		}
	}

	res, err := s.CheckAvailability(ctx, idx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Submit re-validates every segment and, when all seats are still free,
// posts the booking.
//
// Parameters:
//   - ctx: request-scoped context.
//   - id: the session.
//   - idemKey: client idempotency key, stored with the submission.
//   - requestID: forwarded to the booking-service.
//
// Returns:
//   - *domain.Submission: the recorded submission, for every outcome that
//     reached the booking-service.
//   - error: ErrSelectionIncomplete if a passenger lacks a seat.
//   - error: *SeatsUnavailableError if re-validation found taken seats; they
//     are removed from the selection.
//   - error: ErrSubmissionTimeout if the booking-service did not answer in
//     time; the booking may still complete.
func (m *Manager) Submit(ctx context.Context, id uuid.UUID, idemKey, requestID string) (*domain.Submission, error) {
	const op = "session.Manager.Submit"

	s, err := m.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.beginSubmit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var recorded *domain.Submission
	defer func() { s.endSubmit(recorded) }()

	if !s.isComplete() {
		return nil, fmt.Errorf("%s: %w", op, ErrSelectionIncomplete)
	}

	if err := m.revalidate(ctx, s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payload, err := s.submissionPayload()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sub := &domain.Submission{
		ID:             uuid.New(),
		SessionID:      id,
		IdempotencyKey: idemKey,
		Status:         domain.SubmissionPending,
		Total:          payload.PriceBreakdown.Total,
		Payload:        body,
	}
	if err := m.deps.Ledger.Open(ctx, sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.SubmitTimeout)
	bookingID, callErr := m.deps.Bookings.Create(callCtx, payload, requestID)
	timedOut := errors.Is(callErr, domain.ErrTimeout) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
	cancel()

	switch {
	case callErr == nil:
		sub.Status = domain.SubmissionAccepted
		sub.BookingID = bookingID
	case timedOut:
		sub.Status = domain.SubmissionTimedOut
		sub.Error = callErr.Error()
	case errors.Is(callErr, domain.ErrBusinessRule):
		sub.Status = domain.SubmissionRejected
		sub.Error = callErr.Error()
	default:
		sub.Status = domain.SubmissionFailed
		sub.Error = callErr.Error()
	}

	settleCtx, settleCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer settleCancel()
	if err := m.deps.Ledger.Settle(settleCtx, sub, s.Flights()); err != nil {
		m.logger.Error("failed to record submission outcome",
			"session_id", id,
			"submission_id", sub.ID,
			"status", sub.Status,
			"error", err,
		)
	}
	recorded = sub

	m.logger.Info("booking submitted",
		"session_id", id,
		"submission_id", sub.ID,
		"status", sub.Status,
		"booking_id", sub.BookingID,
		"total", sub.Total,
	)

	switch {
	case callErr == nil:
		return sub, nil
	case timedOut:
		return sub, fmt.Errorf("%s: %w", op, ErrSubmissionTimeout)
	default:
		return sub, fmt.Errorf("%s: %w", op, callErr)
	}
}

// revalidate checks every segment concurrently. A failed check or any
// segment not reported fully available blocks the submission; named seats
// are collected per flight.
func (m *Manager) revalidate(ctx context.Context, s *Session) error {
	n := s.segmentCount()
	results := make([]domain.AvailabilityResult, n)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			res, err := s.check(gCtx, i, availability.TriggerSubmit)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	flights := s.Flights()
	byFlight := make(map[string][]string)
	for i, res := range results {
		if res.AllAvailable && len(res.UnavailableSeats) == 0 {
			continue
		}
		byFlight[flights[i]] = append(byFlight[flights[i]], res.UnavailableSeats...)
		if byFlight[flights[i]] == nil {
			byFlight[flights[i]] = []string{}
		}
	}
	if len(byFlight) > 0 {
		return &SeatsUnavailableError{SessionID: s.ID(), ByFlight: byFlight}
	}

	return nil
}

// EvictIdle closes sessions that have been idle for longer than the
// configured TTL and returns how many were closed.
func (m *Manager) EvictIdle(ctx context.Context) int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		if ctx.Err() != nil {
			break
		}
		s.Close()
	}
	if len(idle) > 0 {
		m.logger.Info("evicted idle sessions", "count", len(idle))
	}

	return len(idle)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (m *Manager) RunJanitor(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.EvictIdle(ctx)
		}
	}
}

// OnFlightChanged reloads a flight that changed upstream and re-checks the
// selections of every session holding it.
func (m *Manager) OnFlightChanged(ctx context.Context, flightID string) {
	if inv, ok := m.deps.Flights.(Invalidator); ok {
		if err := inv.Invalidate(ctx, flightID); err != nil {
			m.logger.Warn("failed to invalidate flight cache", "flight_id", flightID, "error", err)
		}
	}

	m.mu.RLock()
	var affected []*Session
	for _, s := range m.sessions {
		for _, f := range s.Flights() {
			if f == flightID {
				affected = append(affected, s)
				break
			}
		}
	}
	m.mu.RUnlock()

	if len(affected) == 0 {
		return
	}

	d, err := m.deps.Flights.GetDetails(ctx, flightID)
	if err != nil {
		m.logger.Warn("failed to reload changed flight", "flight_id", flightID, "error", err)
		return
	}

	for _, s := range affected {
		for _, idx := range s.replaceFlight(d) {
			_, _ = s.check(ctx, idx, availability.TriggerPeriodic)
		}
	}

	m.logger.Info("flight change applied", "flight_id", flightID, "sessions", len(affected))
}
