package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/availability"
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeFlights struct {
	mu          sync.Mutex
	details     map[string]domain.FlightDetails
	responses   map[string]string
	checkErr    error
	checks      int
	invalidated []string
	// when set, CheckSeats signals entered and waits for gate to close
	gate    chan struct{}
	entered chan struct{}
}

func newFakeFlights(details ...domain.FlightDetails) *fakeFlights {
	f := &fakeFlights{details: make(map[string]domain.FlightDetails), responses: make(map[string]string)}
	for _, d := range details {
		f.details[d.ID] = d
	}
	return f
}

func (f *fakeFlights) GetDetails(_ context.Context, id string) (domain.FlightDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return domain.FlightDetails{}, errors.New("flight not found")
	}
	return d, nil
}

func (f *fakeFlights) CheckSeats(_ context.Context, id string, _ []string) ([]byte, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	if r, ok := f.responses[id]; ok {
		return []byte(r), nil
	}
	return []byte(`{"allRequestedSeatsAvailable":true}`), nil
}

func (f *fakeFlights) Invalidate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, id)
	return nil
}

func (f *fakeFlights) set(d domain.FlightDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details[d.ID] = d
}

func (f *fakeFlights) respond(id, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[id] = body
}

type MockBookings struct{ mock.Mock }

func (m *MockBookings) Create(ctx context.Context, p domain.BookingPayload, requestID string) (string, error) {
	args := m.Called(ctx, p, requestID)
	return args.String(0), args.Error(1)
}

type MockLedger struct{ mock.Mock }

func (m *MockLedger) Open(ctx context.Context, sub *domain.Submission) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockLedger) Settle(ctx context.Context, sub *domain.Submission, flights []string) error {
	return m.Called(ctx, sub, flights).Error(0)
}

type MockLimiter struct{ mock.Mock }

func (m *MockLimiter) Allow(ctx context.Context, id string) (bool, time.Duration, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

func flightF1() domain.FlightDetails {
	return domain.FlightDetails{
		ID:           "F1",
		FlightNumber: "SF101",
		AvailableFares: []domain.Fare{
			{ID: "fb", FareType: domain.FareBusiness, Price: 2000000, Seats: []string{"2A", "2B"}, Name: "Business Flex"},
			{ID: "fe", FareType: domain.FareEconomy, Price: 500000, Seats: []string{"12A", "12B", "12C", "12D"}, Name: "Economy Saver"},
		},
		OccupiedSeats: []string{"12D"},
		Aircraft:      domain.Aircraft{Model: "A320"},
	}
}

func flightF2() domain.FlightDetails {
	return domain.FlightDetails{
		ID:           "F2",
		FlightNumber: "SF202",
		AvailableFares: []domain.Fare{
			{ID: "fe2", FareType: domain.FareEconomy, Price: 300000, Seats: []string{"5A", "5B", "5C"}, Name: "Economy"},
		},
		OccupiedSeats: []string{},
		Aircraft:      domain.Aircraft{Model: "E190"},
	}
}

type harness struct {
	m        *Manager
	flights  *fakeFlights
	bookings *MockBookings
	ledger   *MockLedger
}

func newHarness(t *testing.T, limiter Limiter) *harness {
	t.Helper()

	h := &harness{
		flights:  newFakeFlights(flightF1(), flightF2()),
		bookings: &MockBookings{},
		ledger:   &MockLedger{},
	}
	h.m = NewManager(Deps{
		Flights:  h.flights,
		Bookings: h.bookings,
		Ledger:   h.ledger,
		Limiter:  limiter,
	}, Config{
		CheckInterval: time.Hour,
		SubmitTimeout: time.Second,
		Availability:  availability.Options{Debounce: time.Hour, Interval: time.Hour},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Cleanup(h.m.CloseAll)
	return h
}

func (h *harness) create(t *testing.T, p domain.Passengers, flights ...string) *Session {
	t.Helper()
	s, err := h.m.Create(context.Background(), CreateInput{Passengers: p, FlightIDs: flights})
	require.NoError(t, err)
	return s
}

func TestManager_CreateValidation(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name string
		in   CreateInput
	}{
		{name: "no flights", in: CreateInput{Passengers: domain.Passengers{Adults: 1}}},
		{name: "too many flights", in: CreateInput{Passengers: domain.Passengers{Adults: 1}, FlightIDs: []string{"a", "b", "c", "d", "e", "f"}}},
		{name: "negative passengers", in: CreateInput{Passengers: domain.Passengers{Adults: -1}, FlightIDs: []string{"F1"}}},
		{name: "no passengers", in: CreateInput{FlightIDs: []string{"F1"}}},
		{name: "infant without adult", in: CreateInput{Passengers: domain.Passengers{Children: 1, Infants: 1}, FlightIDs: []string{"F1"}}},
		{name: "empty flight id", in: CreateInput{Passengers: domain.Passengers{Adults: 1}, FlightIDs: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.m.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestManager_CreateUnknownFlight(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.m.Create(context.Background(), CreateInput{
		Passengers: domain.Passengers{Adults: 1},
		FlightIDs:  []string{"F1", "missing"},
	})
	require.Error(t, err)
	assert.Zero(t, h.m.Len())
}

func TestManager_CreateGetClose(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1", "F2")

	got, err := h.m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	st := s.State()
	require.Len(t, st.Segments, 2)
	assert.Equal(t, "SF101", st.Segments[0].FlightNumber)
	assert.Equal(t, "E190", st.Segments[1].Aircraft)
	assert.Equal(t, 2, st.RequiredSeats)
	assert.False(t, st.Complete)

	require.NoError(t, h.m.Close(s.ID()))
	_, err = h.m.Get(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, h.m.Close(s.ID()), ErrNotFound)

	_, err = s.SelectSeat(0, "12A")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestManager_CheckAvailabilityRemovesTakenSeats(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1")

	_, err := s.SetSeats(0, []string{"12A", "12B"})
	require.NoError(t, err)

	events, cancel := s.Subscribe()
	defer cancel()

	h.flights.respond("F1", `{"allRequestedSeatsAvailable":false,"unavailableSeats":["12A"]}`)
	res, err := h.m.CheckAvailability(context.Background(), s.ID(), 0)
	require.NoError(t, err)

	assert.False(t, res.AllAvailable)
	assert.Equal(t, []string{"12A"}, res.UnavailableSeats)
	assert.Equal(t, []string{"12B"}, s.State().Segments[0].Seats)

	notices := s.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeWarning, notices[0].Level)
	assert.Contains(t, notices[0].Message, "12A")

	var sawSelection bool
	for len(events) > 0 {
		ev := <-events
		if ev.Type == EventSelection && ev.Segment != nil && *ev.Segment == 0 {
			assert.Equal(t, []string{"12B"}, ev.Seats)
			sawSelection = true
		}
	}
	assert.True(t, sawSelection)

	_, err = s.SelectSeat(0, "12A")
	assert.ErrorIs(t, err, ErrSeatUnavailable)
}

func TestManager_CheckAvailabilityRateLimited(t *testing.T) {
	limiter := &MockLimiter{}
	h := newHarness(t, limiter)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")

	limiter.On("Allow", mock.Anything, s.ID().String()).Return(false, 3*time.Second, nil).Once()

	_, err := h.m.CheckAvailability(context.Background(), s.ID(), 0)

	var rl *RateLimitedError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Zero(t, h.flights.checks)
	limiter.AssertExpectations(t)
}

func TestManager_CheckAvailabilityLimiterDownFailsOpen(t *testing.T) {
	limiter := &MockLimiter{}
	h := newHarness(t, limiter)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	limiter.On("Allow", mock.Anything, mock.Anything).Return(false, time.Duration(0), errors.New("redis down"))

	res, err := h.m.CheckAvailability(context.Background(), s.ID(), 0)
	require.NoError(t, err)
	assert.True(t, res.AllAvailable)
	assert.Equal(t, 1, h.flights.checks)
}

func TestManager_SubmitIncomplete(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	_, err = h.m.Submit(context.Background(), s.ID(), "k1", "r1")

	assert.ErrorIs(t, err, ErrSelectionIncomplete)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
	h.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_SubmitAccepted(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1", "F2")
	_, err := s.SetSeats(0, []string{"12A", "12B"})
	require.NoError(t, err)
	_, err = s.SetSeats(1, []string{"5A", "5B"})
	require.NoError(t, err)

	h.ledger.On("Open", mock.Anything, mock.MatchedBy(func(sub *domain.Submission) bool {
		return sub.Status == domain.SubmissionPending && sub.IdempotencyKey == "k1" && sub.Total == 1760000
	})).Return(nil).Once()
	h.bookings.On("Create", mock.Anything, mock.MatchedBy(func(p domain.BookingPayload) bool {
		return p.SessionID == s.ID() && len(p.SeatSelections) == 4
	}), "r1").Return("BK-1", nil).Once()
	h.ledger.On("Settle", mock.Anything, mock.MatchedBy(func(sub *domain.Submission) bool {
		return sub.Status == domain.SubmissionAccepted && sub.BookingID == "BK-1"
	}), []string{"F1", "F2"}).Return(nil).Once()

	sub, err := h.m.Submit(context.Background(), s.ID(), "k1", "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionAccepted, sub.Status)
	assert.Equal(t, "BK-1", sub.BookingID)
	assert.Equal(t, 2, h.flights.checks)

	st := s.State()
	assert.True(t, st.Submitted)
	require.Len(t, st.Submissions, 1)

	_, err = s.SelectSeat(0, "12C")
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	h.ledger.AssertExpectations(t)
	h.bookings.AssertExpectations(t)
}

func TestManager_SubmitSeatsTaken(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1", "F2")
	_, err := s.SetSeats(0, []string{"12A", "12B"})
	require.NoError(t, err)
	_, err = s.SetSeats(1, []string{"5A", "5B"})
	require.NoError(t, err)

	h.flights.respond("F2", `{"seatStatuses":[{"seatCode":"5A","available":true},{"seatCode":"5B","available":false}]}`)

	_, err = h.m.Submit(context.Background(), s.ID(), "k1", "r1")

	var su *SeatsUnavailableError
	require.ErrorAs(t, err, &su)
	assert.Equal(t, map[string][]string{"F2": {"5B"}}, su.ByFlight)
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)

	assert.Equal(t, []string{"5A"}, s.State().Segments[1].Seats)
	h.ledger.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	h.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_SubmitNotAllAvailableWithoutSeatList(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	h.flights.respond("F1", `{"allRequestedSeatsAvailable":false}`)

	sub, err := h.m.Submit(context.Background(), s.ID(), "k1", "r1")
	assert.Nil(t, sub)

	var su *SeatsUnavailableError
	require.ErrorAs(t, err, &su)
	assert.Equal(t, map[string][]string{"F1": {}}, su.ByFlight)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
	assert.Contains(t, err.Error(), "F1: not all seats available")

	h.ledger.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	h.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_SubmitUnrequestedSeatReportedBlocks(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	h.flights.respond("F1", `{"seatStatuses":[{"seatCode":"12A","available":true},{"seatCode":"12C","available":false}]}`)

	_, err = h.m.Submit(context.Background(), s.ID(), "k1", "r1")
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	h.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

// holdChecks makes every availability call block until release is called.
func (h *harness) holdChecks() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	in := make(chan struct{}, 8)
	h.flights.mu.Lock()
	h.flights.gate, h.flights.entered = gate, in
	h.flights.mu.Unlock()

	var once sync.Once
	return in, func() { once.Do(func() { close(gate) }) }
}

func TestManager_SubmitBlocksChangesWhileRunning(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	h.ledger.On("Open", mock.Anything, mock.Anything).Return(nil).Once()
	h.bookings.On("Create", mock.Anything, mock.MatchedBy(func(p domain.BookingPayload) bool {
		return assert.ObjectsAreEqual([]string{"12A"}, p.SelectedSeatsByFlight["F1"])
	}), "r1").Return("BK-1", nil).Once()
	h.ledger.On("Settle", mock.Anything, mock.Anything, []string{"F1"}).Return(nil).Once()

	entered, release := h.holdChecks()
	defer release()

	type result struct {
		sub *domain.Submission
		err error
	}
	done := make(chan result, 1)
	go func() {
		sub, err := h.m.Submit(context.Background(), s.ID(), "k1", "r1")
		done <- result{sub, err}
	}()
	<-entered

	_, err = s.DeselectSeat(0, "12A")
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	_, err = s.SelectSeat(0, "12B")
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	_, err = s.SetSeats(0, []string{"12C"})
	assert.ErrorIs(t, err, ErrSubmitInProgress)
	assert.ErrorIs(t, s.SetBaggage(nil), ErrSubmitInProgress)
	assert.ErrorIs(t, s.RemoveVoucher(), ErrSubmitInProgress)

	_, err = h.m.Submit(context.Background(), s.ID(), "k2", "r2")
	assert.ErrorIs(t, err, ErrSubmitInProgress)

	release()
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, domain.SubmissionAccepted, res.sub.Status)

	h.bookings.AssertExpectations(t)
	h.ledger.AssertExpectations(t)
}

func TestManager_SubmitSelectionShrunkDuringCheck(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	entered, release := h.holdChecks()
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := h.m.Submit(context.Background(), s.ID(), "k1", "r1")
		done <- err
	}()
	<-entered

	// a background check dropping the seat is not a user change and still applies
	s.removeUnavailable(0, []string{"12A"})
	release()

	assert.ErrorIs(t, <-done, ErrSelectionIncomplete)
	h.ledger.AssertNotCalled(t, "Open", mock.Anything, mock.Anything)
	h.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_SubmitCheckFailureBlocks(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	h.flights.checkErr = errors.New("connection refused")

	_, err = h.m.Submit(context.Background(), s.ID(), "", "")
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
	h.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	notices := s.Notices()
	require.NotEmpty(t, notices)
	assert.Equal(t, domain.NoticeError, notices[0].Level)
}

func TestManager_SubmitTimeout(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "2A")
	require.NoError(t, err)

	h.ledger.On("Open", mock.Anything, mock.Anything).Return(nil)
	h.bookings.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return("", domain.ErrTimeout)
	h.ledger.On("Settle", mock.Anything, mock.MatchedBy(func(sub *domain.Submission) bool {
		return sub.Status == domain.SubmissionTimedOut
	}), mock.Anything).Return(nil)

	sub, err := h.m.Submit(context.Background(), s.ID(), "k", "")

	assert.ErrorIs(t, err, ErrSubmissionTimeout)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	require.NotNil(t, sub)
	assert.Equal(t, domain.SubmissionTimedOut, sub.Status)
	assert.False(t, s.State().Submitted)

	_, err = s.SelectSeat(0, "2B")
	assert.NoError(t, err)
}

func TestManager_SubmitRejected(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	rejected := errors.Join(domain.ErrBusinessRule, errors.New("fare expired"))
	h.ledger.On("Open", mock.Anything, mock.Anything).Return(nil)
	h.bookings.On("Create", mock.Anything, mock.Anything, mock.Anything).Return("", rejected)
	h.ledger.On("Settle", mock.Anything, mock.MatchedBy(func(sub *domain.Submission) bool {
		return sub.Status == domain.SubmissionRejected && sub.Error != ""
	}), mock.Anything).Return(nil)

	sub, err := h.m.Submit(context.Background(), s.ID(), "", "")
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
	assert.Equal(t, domain.SubmissionRejected, sub.Status)
	h.ledger.AssertExpectations(t)
}

func TestManager_EvictIdle(t *testing.T) {
	h := newHarness(t, nil)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	h.m.now = func() time.Time { return now }

	old := h.create(t, domain.Passengers{Adults: 1}, "F1")
	now = now.Add(20 * time.Minute)
	fresh := h.create(t, domain.Passengers{Adults: 1}, "F2")
	now = now.Add(15 * time.Minute)

	assert.Equal(t, 1, h.m.EvictIdle(context.Background()))

	_, err := h.m.Get(old.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.m.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestManager_OnFlightChangedDropsNewlyOccupied(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1")
	_, err := s.SetSeats(0, []string{"12A", "12B"})
	require.NoError(t, err)
	before := s.Price()

	changed := flightF1()
	changed.OccupiedSeats = []string{"12B", "12D"}
	h.flights.set(changed)

	h.m.OnFlightChanged(context.Background(), "F1")

	assert.Equal(t, []string{"F1"}, h.flights.invalidated)
	assert.Equal(t, []string{"12A"}, s.State().Segments[0].Seats)
	assert.Less(t, s.Price().Subtotal, before.Subtotal)

	notices := s.Notices()
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].Message, "12B")

	view, err := s.SeatMap(0)
	require.NoError(t, err)
	statuses := map[string]domain.SeatStatus{}
	for _, sec := range view.Sections {
		for _, r := range sec.Rows {
			for _, seat := range r.Seats {
				statuses[seat.Code] = seat.Status
			}
		}
	}
	assert.Equal(t, domain.SeatOccupied, statuses["12B"])
	assert.Equal(t, domain.SeatSelected, statuses["12A"])
}

func TestManager_OnFlightChangedAircraftSwapResets(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1", "F2")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)
	_, err = s.SelectSeat(1, "5A")
	require.NoError(t, err)

	swapped := flightF1()
	swapped.Aircraft.Model = "A321neo"
	h.flights.set(swapped)

	h.m.OnFlightChanged(context.Background(), "F1")

	st := s.State()
	assert.Empty(t, st.Segments[0].Seats)
	assert.Equal(t, []string{"5A"}, st.Segments[1].Seats)
	assert.Equal(t, "A321neo", st.Segments[0].Aircraft)

	notices := s.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeInfo, notices[0].Level)
}

func TestManager_OnFlightChangedUnrelatedFlight(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	h.m.OnFlightChanged(context.Background(), "F9")

	assert.Equal(t, []string{"F9"}, h.flights.invalidated)
	assert.Equal(t, []string{"12A"}, s.State().Segments[0].Seats)
	assert.Zero(t, h.flights.checks)
}

func TestManager_GetUnknown(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.m.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
