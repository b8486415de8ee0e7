package session

import (
	"testing"

	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestSession_SelectSeatRules(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1")

	_, err := s.SelectSeat(0, "99Z")
	assert.ErrorIs(t, err, ErrUnknownSeat)

	_, err = s.SelectSeat(0, "12D")
	assert.ErrorIs(t, err, ErrSeatOccupied)

	_, err = s.SelectSeat(3, "12A")
	assert.Error(t, err)

	seats, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)
	assert.Equal(t, []string{"12A"}, seats)

	seats, err = s.SelectSeat(0, "12B")
	require.NoError(t, err)
	assert.Equal(t, []string{"12A", "12B"}, seats)

	seats, err = s.SelectSeat(0, "12C")
	require.NoError(t, err)
	assert.Equal(t, []string{"12A", "12C"}, seats)

	seats, err = s.SelectSeat(0, "12A")
	require.NoError(t, err)
	assert.Equal(t, []string{"12C"}, seats)

	seats, err = s.DeselectSeat(0, "12C")
	require.NoError(t, err)
	assert.Empty(t, seats)
}

func TestSession_SetSeatsRejectsOccupied(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1")

	_, err := s.SetSeats(0, []string{"12A", "12D"})
	assert.ErrorIs(t, err, ErrSeatOccupied)
	assert.Empty(t, s.State().Segments[0].Seats)

	seats, err := s.SetSeats(0, []string{"12A", "12A", "12B", "12C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"12A", "12B"}, seats)
}

func TestSession_PriceTwoAdults(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 2}, "F1")
	_, err := s.SetSeats(0, []string{"12A", "12B"})
	require.NoError(t, err)

	pb := s.Price()
	assert.Equal(t, int64(1000000), pb.Subtotal)
	assert.Equal(t, int64(100000), pb.TaxesAndFees)
	assert.Equal(t, int64(1100000), pb.Total)

	require.NoError(t, s.ApplyVoucher(domain.Voucher{
		Code:                  "SAVE10",
		DiscountPercentage:    ptr(10.0),
		MaximumDiscountAmount: ptr(int64(50000)),
	}))
	pb = s.Price()
	assert.Equal(t, int64(50000), pb.Discount)
	assert.Equal(t, int64(1050000), pb.Total)

	require.NoError(t, s.RemoveVoucher())
	assert.Equal(t, int64(1100000), s.Price().Total)
}

func TestSession_ApplyVoucherValidation(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")

	tests := []struct {
		name string
		v    domain.Voucher
	}{
		{name: "missing code", v: domain.Voucher{DiscountAmount: ptr(int64(10))}},
		{name: "no discount", v: domain.Voucher{Code: "X"}},
		{name: "zero percent", v: domain.Voucher{Code: "X", DiscountPercentage: ptr(0.0)}},
		{name: "over 100 percent", v: domain.Voucher{Code: "X", DiscountPercentage: ptr(120.0)}},
		{name: "negative minimum", v: domain.Voucher{Code: "X", DiscountAmount: ptr(int64(1)), MinimumPurchaseAmount: -1}},
		{name: "negative cap", v: domain.Voucher{Code: "X", DiscountPercentage: ptr(5.0), MaximumDiscountAmount: ptr(int64(-1))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.ApplyVoucher(tt.v), ErrInvalidVoucher)
		})
	}
}

func TestSession_SetBaggage(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1, Infants: 1}, "F1", "F2")

	tests := []struct {
		name  string
		items []domain.BaggageSelection
		ok    bool
	}{
		{name: "valid", items: []domain.BaggageSelection{{FlightIndex: 0, PassengerIndex: 0, Weight: 20, Price: 150000}, {FlightIndex: 1, PassengerIndex: 1, Weight: 10, Price: 75000}}, ok: true},
		{name: "flight out of range", items: []domain.BaggageSelection{{FlightIndex: 2, Weight: 20}}},
		{name: "passenger out of range", items: []domain.BaggageSelection{{PassengerIndex: 2, Weight: 20}}},
		{name: "zero weight", items: []domain.BaggageSelection{{Weight: 0, Price: 10}}},
		{name: "negative price", items: []domain.BaggageSelection{{Weight: 10, Price: -1}}},
		{name: "duplicate", items: []domain.BaggageSelection{{Weight: 10}, {Weight: 20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SetBaggage(tt.items)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidBaggage)
		})
	}

	assert.Equal(t, int64(225000), s.Price().BaggageTotal)
}

func TestSession_BuildPayload(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1, Children: 1, Infants: 1}, "F1", "F2")

	_, err := s.SetSeats(0, []string{"2A", "12A"})
	require.NoError(t, err)
	_, err = s.SetSeats(1, []string{"5C", "5B"})
	require.NoError(t, err)
	require.NoError(t, s.ApplyVoucher(domain.Voucher{Code: "FLAT", DiscountAmount: ptr(int64(1000))}))

	p := s.BuildPayload()

	assert.Equal(t, s.ID(), p.SessionID)
	assert.Equal(t, "FLAT", p.VoucherCode)
	assert.Equal(t, map[string][]string{"F1": {"2A", "12A"}, "F2": {"5C", "5B"}}, p.SelectedSeatsByFlight)

	require.Len(t, p.SeatSelections, 4)
	assert.Equal(t, domain.SeatSelection{SeatCode: "2A", PassengerIndex: 0, SelectedFareName: "Business Flex", FlightID: "F1"}, p.SeatSelections[0])
	assert.Equal(t, domain.SeatSelection{SeatCode: "5B", PassengerIndex: 1, SelectedFareName: "Economy", FlightID: "F2"}, p.SeatSelections[3])

	f1 := p.SeatPricingByFlight["F1"]
	require.Len(t, f1, 3)
	require.NotNil(t, f1[0].SeatCode)
	assert.Equal(t, "2A", *f1[0].SeatCode)
	assert.Equal(t, domain.ClassBusiness, f1[0].SeatClass)
	assert.Equal(t, int64(2000000), f1[0].FarePrice)
	assert.Equal(t, "fb", f1[0].FareID)
	assert.Equal(t, "fe", f1[1].FareID)

	infant := f1[2]
	assert.Nil(t, infant.SeatCode)
	assert.Zero(t, infant.FarePrice)
	assert.Equal(t, 2, infant.PassengerIndex)

	require.Len(t, p.SeatPricingByFlight["F2"], 3)

	// 2000000 + 500000 + 300000 + 300000 seats, 2 * 100000 infant fee.
	assert.Equal(t, int64(3300000), p.PriceBreakdown.TotalBeforeTaxes)
	assert.Equal(t, int64(1000), p.PriceBreakdown.Discount)
	assert.Equal(t, s.Price(), p.PriceBreakdown)
}

func TestSession_InfantsOnlyNeedNoSeats(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1, Infants: 1}, "F1")

	assert.False(t, s.State().Complete)
	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)
	assert.True(t, s.State().Complete)
}

func TestSession_SubscribeAndClose(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")

	events, cancel := s.Subscribe()
	defer cancel()

	_, err := s.SelectSeat(0, "12A")
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, EventSelection, ev.Type)
	require.NotNil(t, ev.Segment)
	assert.Equal(t, 0, *ev.Segment)
	assert.Equal(t, []string{"12A"}, ev.Seats)
	assert.False(t, ev.At.IsZero())

	s.Close()

	ev = <-events
	assert.Equal(t, EventClosed, ev.Type)
	_, open := <-events
	assert.False(t, open)

	late, cancelLate := s.Subscribe()
	defer cancelLate()
	_, open = <-late
	assert.False(t, open)
}

func TestSession_DismissNotice(t *testing.T) {
	h := newHarness(t, nil)
	s := h.create(t, domain.Passengers{Adults: 1}, "F1")

	s.addNotice(domain.Notice{Key: "a", Level: domain.NoticeInfo, Message: "hello"})
	s.addNotice(domain.Notice{Key: "a", Level: domain.NoticeInfo, Message: "hello again"})
	require.Len(t, s.Notices(), 1)

	assert.True(t, s.DismissNotice("a"))
	assert.False(t, s.DismissNotice("a"))
	assert.Empty(t, s.Notices())
}
