package domain

import "github.com/google/uuid"

type SeatSelection struct {
	SeatCode         string `json:"seatCode"`
	PassengerIndex   int    `json:"passengerIndex"`
	SelectedFareName string `json:"selectedFareName"`
	FlightID         string `json:"flightId"`
}

// SeatPricing is one passenger's seat on one flight. Passengers without a seat
// (infants) carry a nil SeatCode and a zero price.
type SeatPricing struct {
	FlightID       string    `json:"flightId"`
	PassengerIndex int       `json:"passengerIndex"`
	SeatCode       *string   `json:"seatCode"`
	SeatClass      SeatClass `json:"seatClass"`
	FarePrice      int64     `json:"farePrice"`
	FareID         string    `json:"fareId"`
}

// BookingPayload is the body posted to the booking-service.
type BookingPayload struct {
	SessionID             uuid.UUID                `json:"sessionId"`
	Passengers            Passengers               `json:"passengers"`
	SelectedSeatsByFlight map[string][]string      `json:"selectedSeatsByFlight"`
	SeatSelections        []SeatSelection          `json:"seatSelections"`
	SeatPricingByFlight   map[string][]SeatPricing `json:"seatPricingByFlight"`
	Baggage               []BaggageSelection       `json:"baggage"`
	VoucherCode           string                   `json:"voucherCode,omitempty"`
	PriceBreakdown        PriceBreakdown           `json:"priceBreakdown"`
}
