package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/seatflow/internal/availability"
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/pricing"
	"github.com/kirinyoku/seatflow/internal/seatmap"
	"github.com/kirinyoku/seatflow/internal/selection"
)

const maxNotices = 50

type segment struct {
	details domain.FlightDetails
	model   *seatmap.Model
	checker *availability.Checker
}

// Session is the state of one booking flow: passengers, the flights being
// booked, seat selections, baggage, voucher and the notices shown to the user.
// It is created when the flow starts and must be closed when it ends so the
// availability schedules stop.
//
// Lock order is session then checker. Checker callbacks take the session
// lock, so a checker must never be asked to check while the session lock is
// held.
type Session struct {
	id        uuid.UUID
	logger    *slog.Logger
	now       func() time.Time
	createdAt time.Time

	mu          sync.Mutex
	passengers  domain.Passengers
	segments    []*segment
	coord       *selection.Coordinator
	baggage     []domain.BaggageSelection
	voucher     *domain.Voucher
	notices     []domain.Notice
	memo        pricing.Memo
	lastActive  time.Time
	closed      bool
	submitting  bool
	submissions []domain.Submission
	submitted   bool

	subs    map[int]chan Event
	nextSub int
}

type options struct {
	client       availability.Client
	availability availability.Options
	logger       *slog.Logger
	now          func() time.Time
}

func newSession(id uuid.UUID, passengers domain.Passengers, flights []domain.FlightDetails, o options) (*Session, error) {
	const op = "session.newSession"

	if o.now == nil {
		o.now = time.Now
	}

	s := &Session{
		id:         id,
		logger:     o.logger.With("session_id", id.String()),
		now:        o.now,
		passengers: passengers,
		subs:       make(map[int]chan Event),
	}
	s.createdAt = s.now()
	s.lastActive = s.createdAt

	classifiers := make([]selection.Classifier, 0, len(flights))
	for i, d := range flights {
		i := i
		seg := &segment{details: d, model: seatmap.NewModel(d)}
		seg.checker = availability.New(availability.Config{
			FlightID:      d.ID,
			Client:        o.client,
			Logger:        s.logger,
			Notifier:      availability.NotifierFunc(s.addNotice),
			Options:       o.availability,
			Selection:     func() []string { return s.selected(i) },
			OnUnavailable: func(codes []string) { s.removeUnavailable(i, codes) },
		})
		s.segments = append(s.segments, seg)
		classifiers = append(classifiers, seg.model)
	}

	coord, err := selection.New(passengers, classifiers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidInput, err)
	}
	s.coord = coord

	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

// startChecks begins the periodic re-validation of every segment.
func (s *Session) startChecks(interval time.Duration) {
	s.mu.Lock()
	segs := append([]*segment(nil), s.segments...)
	s.mu.Unlock()

	for _, seg := range segs {
		seg.checker.StartPeriodic(interval)
	}
}

// Flights returns the flight IDs in segment order.
func (s *Session) Flights() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.segments))
	for i, seg := range s.segments {
		out[i] = seg.details.ID
	}
	return out
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() { s.lastActive = s.now() }

// mutable must be called with s.mu held.
func (s *Session) mutable() error {
	if s.closed {
		return ErrClosed
	}
	if s.submitted {
		return ErrAlreadySubmitted
	}
	if s.submitting {
		return ErrSubmitInProgress
	}
	return nil
}

func (s *Session) segment(idx int) (*segment, error) {
	if idx < 0 || idx >= len(s.segments) {
		return nil, fmt.Errorf("%w: %d", selection.ErrSegmentOutOfRange, idx)
	}
	return s.segments[idx], nil
}

// SelectSeat toggles a seat on a segment. Occupied seats and seats the last
// availability check reported as taken cannot be selected, but a selected
// seat can always be toggled off.
func (s *Session) SelectSeat(idx int, code string) ([]string, error) {
	const op = "session.Session.SelectSeat"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	seg, err := s.segment(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	selected := s.coord.Seats(idx)
	if !contains(selected, code) {
		if err := s.selectable(seg, code); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	seats, err := s.coord.Select(idx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.selectionChanged(idx, seg, seats)
	return seats, nil
}

// SetSeats replaces a segment's selection in passenger order.
func (s *Session) SetSeats(idx int, codes []string) ([]string, error) {
	const op = "session.Session.SetSeats"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	seg, err := s.segment(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current := s.coord.Seats(idx)
	for _, code := range codes {
		if contains(current, code) {
			continue
		}
		if err := s.selectable(seg, code); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, code, err)
		}
	}

	seats, err := s.coord.SetSelection(idx, codes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.selectionChanged(idx, seg, seats)
	return seats, nil
}

func (s *Session) DeselectSeat(idx int, code string) ([]string, error) {
	const op = "session.Session.DeselectSeat"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	seg, err := s.segment(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seats, err := s.coord.Deselect(idx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.selectionChanged(idx, seg, seats)
	return seats, nil
}

func (s *Session) selectable(seg *segment, code string) error {
	if !seg.model.Contains(code) {
		return ErrUnknownSeat
	}
	if seg.model.Occupied(code) {
		return ErrSeatOccupied
	}
	if contains(seg.checker.Snapshot().UnavailableSeats, code) {
		return ErrSeatUnavailable
	}
	return nil
}

// selectionChanged must be called with s.mu held.
func (s *Session) selectionChanged(idx int, seg *segment, seats []string) {
	s.touch()
	seg.checker.SelectionChanged(seats)
	s.publish(Event{Type: EventSelection, Segment: &idx, Seats: seats})
}

func (s *Session) selected(idx int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.coord.Seats(idx)
}

func (s *Session) removeUnavailable(idx int, codes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.submitted {
		return
	}

	seats, removed := s.coord.RemoveUnavailable(idx, codes)
	if !removed {
		return
	}

	s.logger.Info("removed unavailable seats from selection",
		"segment", idx,
		"seats", codes,
		"remaining", seats,
	)
	s.publish(Event{Type: EventSelection, Segment: &idx, Seats: seats})
}

// CheckAvailability runs a user-triggered check of a segment's selection.
// A second manual check while one is running fails with
// availability.ErrCheckInFlight.
func (s *Session) CheckAvailability(ctx context.Context, idx int) (domain.AvailabilityResult, error) {
	return s.check(ctx, idx, availability.TriggerManual)
}

func (s *Session) check(ctx context.Context, idx int, trigger availability.Trigger) (domain.AvailabilityResult, error) {
	const op = "session.Session.check"

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.AvailabilityResult{}, fmt.Errorf("%s: %w", op, ErrClosed)
	}
	seg, err := s.segment(idx)
	if err != nil {
		s.mu.Unlock()
		return domain.AvailabilityResult{}, fmt.Errorf("%s: %w", op, err)
	}
	seats := s.coord.Seats(idx)
	s.touch()
	s.mu.Unlock()

	res, err := seg.checker.CheckSeats(ctx, seats, trigger)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Availability returns the last availability snapshot of a segment.
func (s *Session) Availability(idx int) (domain.AvailabilitySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, err := s.segment(idx)
	if err != nil {
		return domain.AvailabilitySnapshot{}, fmt.Errorf("session.Session.Availability: %w", err)
	}
	return seg.checker.Snapshot(), nil
}

// SeatMap renders a segment's seat map with derived statuses and prices.
func (s *Session) SeatMap(idx int) (seatmap.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seg, err := s.segment(idx)
	if err != nil {
		return seatmap.View{}, fmt.Errorf("session.Session.SeatMap: %w", err)
	}
	s.touch()

	return seg.model.Render(s.coord.Seats(idx), seg.checker.Snapshot().UnavailableSeats), nil
}

// SetBaggage replaces all baggage selections.
func (s *Session) SetBaggage(items []domain.BaggageSelection) error {
	const op = "session.Session.SetBaggage"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[[2]int]struct{}, len(items))
	for _, b := range items {
		switch {
		case b.FlightIndex < 0 || b.FlightIndex >= len(s.segments):
			return fmt.Errorf("%s: %w: flight index %d", op, ErrInvalidBaggage, b.FlightIndex)
		case b.PassengerIndex < 0 || b.PassengerIndex >= s.passengers.Total():
			return fmt.Errorf("%s: %w: passenger index %d", op, ErrInvalidBaggage, b.PassengerIndex)
		case b.Weight <= 0 || b.Price < 0:
			return fmt.Errorf("%s: %w: weight and price must be positive", op, ErrInvalidBaggage)
		}
		k := [2]int{b.FlightIndex, b.PassengerIndex}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%s: %w: duplicate entry for flight %d passenger %d", op, ErrInvalidBaggage, b.FlightIndex, b.PassengerIndex)
		}
		seen[k] = struct{}{}
	}

	s.baggage = append([]domain.BaggageSelection{}, items...)
	s.touch()
	s.publish(Event{Type: EventPrice})
	return nil
}

// ApplyVoucher attaches a voucher resolved by the voucher service.
func (s *Session) ApplyVoucher(v domain.Voucher) error {
	const op = "session.Session.ApplyVoucher"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case v.Code == "":
		return fmt.Errorf("%s: %w: code is required", op, ErrInvalidVoucher)
	case v.DiscountAmount == nil && v.DiscountPercentage == nil:
		return fmt.Errorf("%s: %w: no discount", op, ErrInvalidVoucher)
	case v.DiscountPercentage != nil && (*v.DiscountPercentage <= 0 || *v.DiscountPercentage > 100):
		return fmt.Errorf("%s: %w: percentage out of range", op, ErrInvalidVoucher)
	case v.MinimumPurchaseAmount < 0:
		return fmt.Errorf("%s: %w: negative minimum purchase", op, ErrInvalidVoucher)
	case v.MaximumDiscountAmount != nil && *v.MaximumDiscountAmount < 0:
		return fmt.Errorf("%s: %w: negative maximum discount", op, ErrInvalidVoucher)
	}

	s.voucher = &v
	s.touch()
	s.publish(Event{Type: EventPrice})
	return nil
}

func (s *Session) RemoveVoucher() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return fmt.Errorf("session.Session.RemoveVoucher: %w", err)
	}

	s.voucher = nil
	s.touch()
	s.publish(Event{Type: EventPrice})
	return nil
}

// Price returns the current breakdown, recomputed only when an input changed.
func (s *Session) Price() domain.PriceBreakdown {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.price()
}

func (s *Session) price() domain.PriceBreakdown {
	in := pricing.Input{
		Baggage: s.baggage,
		Infants: s.passengers.Infants,
		Voucher: s.voucher,
	}
	for i, seg := range s.segments {
		in.Segments = append(in.Segments, pricing.Segment{
			FlightID: seg.details.ID,
			Seats:    s.coord.Seats(i),
			Resolver: seg.model,
		})
	}

	pb, _ := s.memo.Compute(in)
	return pb
}

// Notices returns the notices raised so far, oldest first.
func (s *Session) Notices() []domain.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notice{}, s.notices...)
}

// DismissNotice removes a notice. Dismissed keys may be raised again.
func (s *Session) DismissNotice(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notices {
		if n.Key == key {
			s.notices = append(s.notices[:i], s.notices[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Session) addNotice(n domain.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for _, existing := range s.notices {
		if existing.Key == n.Key {
			return
		}
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	s.notices = append(s.notices, n)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.publish(Event{Type: EventNotice, Notice: &n})
}

type SegmentState struct {
	Index        int                         `json:"index"`
	FlightID     string                      `json:"flightId"`
	FlightNumber string                      `json:"flightNumber"`
	Aircraft     string                      `json:"aircraft"`
	Seats        []string                    `json:"seats"`
	Complete     bool                        `json:"complete"`
	Availability domain.AvailabilitySnapshot `json:"availability"`
	Stale        bool                        `json:"stale"`
}

type State struct {
	ID            uuid.UUID                 `json:"id"`
	Passengers    domain.Passengers         `json:"passengers"`
	RequiredSeats int                       `json:"requiredSeats"`
	Segments      []SegmentState            `json:"segments"`
	Baggage       []domain.BaggageSelection `json:"baggage"`
	Voucher       *domain.Voucher           `json:"voucher,omitempty"`
	Price         domain.PriceBreakdown     `json:"price"`
	Complete      bool                      `json:"complete"`
	Submitted     bool                      `json:"submitted"`
	Submissions   []domain.Submission       `json:"submissions"`
	CreatedAt     time.Time                 `json:"createdAt"`
	LastActiveAt  time.Time                 `json:"lastActiveAt"`
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := State{
		ID:            s.id,
		Passengers:    s.passengers,
		RequiredSeats: s.coord.Required(),
		Baggage:       append([]domain.BaggageSelection{}, s.baggage...),
		Voucher:       s.voucher,
		Price:         s.price(),
		Complete:      s.coord.IsComplete(),
		Submitted:     s.submitted,
		Submissions:   append([]domain.Submission{}, s.submissions...),
		CreatedAt:     s.createdAt,
		LastActiveAt:  s.lastActive,
	}
	for i, seg := range s.segments {
		seats := s.coord.Seats(i)
		snap := seg.checker.Snapshot()
		st.Segments = append(st.Segments, SegmentState{
			Index:        i,
			FlightID:     seg.details.ID,
			FlightNumber: seg.details.FlightNumber,
			Aircraft:     seg.details.Aircraft.Model,
			Seats:        seats,
			Complete:     len(seats) == s.coord.Required(),
			Availability: snap,
			Stale:        snap.Stale(now),
		})
	}

	return st
}

// BuildPayload assembles the booking-service request from the current state.
// Passenger i holds seat i of every segment; infants follow the seated
// passengers with no seat and a zero price.
func (s *Session) BuildPayload() domain.BookingPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildPayload()
}

// submissionPayload builds the payload only if every passenger still has a
// seat. Background checks may shrink the selection while a submit runs.
func (s *Session) submissionPayload() (domain.BookingPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.coord.IsComplete() {
		return domain.BookingPayload{}, ErrSelectionIncomplete
	}
	return s.buildPayload(), nil
}

func (s *Session) buildPayload() domain.BookingPayload {
	p := domain.BookingPayload{
		SessionID:             s.id,
		Passengers:            s.passengers,
		SelectedSeatsByFlight: make(map[string][]string, len(s.segments)),
		SeatSelections:        []domain.SeatSelection{},
		SeatPricingByFlight:   make(map[string][]domain.SeatPricing, len(s.segments)),
		Baggage:               append([]domain.BaggageSelection{}, s.baggage...),
		PriceBreakdown:        s.price(),
	}
	if s.voucher != nil {
		p.VoucherCode = s.voucher.Code
	}

	total := s.passengers.Total()
	for i, seg := range s.segments {
		flightID := seg.details.ID
		seats := s.coord.Seats(i)
		p.SelectedSeatsByFlight[flightID] = seats

		pricingRows := make([]domain.SeatPricing, 0, total)
		for pi := 0; pi < total; pi++ {
			if pi >= len(seats) {
				pricingRows = append(pricingRows, domain.SeatPricing{
					FlightID:       flightID,
					PassengerIndex: pi,
					SeatClass:      domain.ClassEconomy,
				})
				continue
			}

			code := seats[pi]
			info, ok := seg.model.FareInfo(code)
			if !ok {
				info = seatmap.FareInfo{FareType: domain.FareEconomy, Class: domain.ClassEconomy}
			}
			fareName := info.FareName
			if fareName == "" {
				fareName = pricing.DisplayClass(info.FareType)
			}

			p.SeatSelections = append(p.SeatSelections, domain.SeatSelection{
				SeatCode:         code,
				PassengerIndex:   pi,
				SelectedFareName: fareName,
				FlightID:         flightID,
			})
			pricingRows = append(pricingRows, domain.SeatPricing{
				FlightID:       flightID,
				PassengerIndex: pi,
				SeatCode:       &code,
				SeatClass:      info.Class,
				FarePrice:      info.Price,
				FareID:         info.FareID,
			})
		}
		p.SeatPricingByFlight[flightID] = pricingRows
	}

	return p
}

// replaceFlight swaps in fresh flight details for every segment on flightID.
// A different aircraft resets the segment's selection; otherwise seats that
// became occupied are dropped. It returns the affected segment indexes.
func (s *Session) replaceFlight(d domain.FlightDetails) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.submitted {
		return nil
	}

	var touched []int
	for i, seg := range s.segments {
		i := i
		if seg.details.ID != d.ID {
			continue
		}
		touched = append(touched, i)

		model := seatmap.NewModel(d)
		aircraftChanged := seg.details.Aircraft.Model != d.Aircraft.Model
		seg.details = d
		seg.model = model

		if aircraftChanged {
			had := len(s.coord.Seats(i)) > 0
			_ = s.coord.Reset(i, model)
			if had {
				s.pushNotice(domain.Notice{
					Key:     fmt.Sprintf("aircraft-changed:%s:%s", d.ID, d.Aircraft.Model),
					Level:   domain.NoticeInfo,
					Message: fmt.Sprintf("The aircraft for flight %s changed. Please choose your seats again.", d.FlightNumber),
				})
			}
			s.publish(Event{Type: EventSelection, Segment: &i, Seats: []string{}})
			continue
		}

		var taken []string
		for _, code := range s.coord.Seats(i) {
			if model.Occupied(code) || !model.Contains(code) {
				taken = append(taken, code)
			}
		}
		// Re-seat the coordinator on the new model so classes follow it.
		kept, _ := s.coord.RemoveUnavailable(i, taken)
		_ = s.coord.Reset(i, model)
		_, _ = s.coord.SetSelection(i, kept)

		if len(taken) > 0 {
			s.pushNotice(domain.Notice{
				Key:     fmt.Sprintf("seats-taken:%s:%s", d.ID, strings.Join(taken, ",")),
				Level:   domain.NoticeWarning,
				Message: availability.UnavailableMessage(taken),
				Seats:   taken,
			})
			s.publish(Event{Type: EventSelection, Segment: &i, Seats: kept})
		}
	}

	if len(touched) > 0 {
		s.memo.Invalidate()
		s.publish(Event{Type: EventPrice})
	}
	return touched
}

// pushNotice is addNotice for callers already holding s.mu.
func (s *Session) pushNotice(n domain.Notice) {
	for _, existing := range s.notices {
		if existing.Key == n.Key {
			return
		}
	}
	n.CreatedAt = s.now()
	s.notices = append(s.notices, n)
	s.publish(Event{Type: EventNotice, Notice: &n})
}

func (s *Session) beginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutable(); err != nil {
		return err
	}
	s.submitting = true
	s.touch()
	return nil
}

func (s *Session) endSubmit(sub *domain.Submission) {
	s.mu.Lock()

	s.submitting = false
	if sub != nil {
		s.submissions = append(s.submissions, *sub)
		s.publish(Event{Type: EventSubmission, Submission: sub})
		if sub.Status == domain.SubmissionAccepted {
			s.submitted = true
		}
	}
	done := s.submitted
	segs := append([]*segment(nil), s.segments...)
	s.mu.Unlock()

	if done {
		for _, seg := range segs {
			seg.checker.Close()
		}
	}
}

func (s *Session) isComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord.IsComplete()
}

func (s *Session) segmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments)
}

// Close stops every availability schedule and disconnects subscribers.
// Calling it again is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	segs := append([]*segment(nil), s.segments...)
	s.publish(Event{Type: EventClosed})
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()

	for _, seg := range segs {
		seg.checker.Close()
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
