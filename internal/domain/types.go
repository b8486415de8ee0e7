package domain

import (
	"time"

	"github.com/google/uuid"
)

type FareType string

const (
	FareFirstClass FareType = "FIRST_CLASS"
	FareBusiness   FareType = "BUSINESS"
	FareEconomy    FareType = "ECONOMY"
)

// Known reports whether f is one of the three cabin classes the backend defines.
func (f FareType) Known() bool {
	switch f {
	case FareFirstClass, FareBusiness, FareEconomy:
		return true
	}
	return false
}

// SeatClass is the frontend class key used by seat-map consumers.
type SeatClass string

const (
	ClassFirst    SeatClass = "first"
	ClassBusiness SeatClass = "business"
	ClassEconomy  SeatClass = "economy"
)

// FareType maps the class key to the backend enum. An empty key maps to
// ECONOMY; keys outside the three known classes pass through unchanged.
func (c SeatClass) FareType() FareType {
	switch c {
	case ClassFirst:
		return FareFirstClass
	case ClassBusiness:
		return FareBusiness
	case ClassEconomy, "":
		return FareEconomy
	default:
		return FareType(c)
	}
}

func ClassOf(f FareType) SeatClass {
	switch f {
	case FareFirstClass:
		return ClassFirst
	case FareBusiness:
		return ClassBusiness
	case FareEconomy:
		return ClassEconomy
	default:
		return SeatClass(f)
	}
}

type SeatStatus string

const (
	SeatAvailable   SeatStatus = "available"
	SeatSelected    SeatStatus = "selected"
	SeatOccupied    SeatStatus = "occupied"
	SeatUnavailable SeatStatus = "unavailable"
)

type Seat struct {
	Code   string `json:"seatCode"`
	Row    int    `json:"row"`
	Letter string `json:"letter"`
}

type Fare struct {
	ID       string   `json:"id"`
	FareType FareType `json:"fareType"`
	Price    int64    `json:"price"`
	Seats    []string `json:"seats"`
	Name     string   `json:"name"`
}

type Section struct {
	FareType      FareType `json:"fareType"`
	Seats         []string `json:"seats"`
	LayoutPattern string   `json:"layoutPattern"`
}

type Aircraft struct {
	Model string `json:"model"`
	// SeatClassMap is the authoritative seat to fare type map. It may be partial.
	SeatClassMap map[string]FareType `json:"seatClassMap,omitempty"`
}

type FlightDetails struct {
	ID             string   `json:"id"`
	FlightNumber   string   `json:"flightNumber"`
	AvailableFares []Fare   `json:"availableFares"`
	OccupiedSeats  []string `json:"occupiedSeats"`
	Aircraft       Aircraft `json:"aircraft"`
}

type AvailabilityResult struct {
	AllAvailable     bool     `json:"allAvailable"`
	UnavailableSeats []string `json:"unavailableSeats"`
}

const SnapshotStaleAfter = 60 * time.Second

type AvailabilitySnapshot struct {
	IsChecking       bool       `json:"isChecking"`
	LastCheckedAt    *time.Time `json:"lastCheckedAt"`
	UnavailableSeats []string   `json:"unavailableSeats"`
	AllAvailable     bool       `json:"allAvailable"`
	Error            string     `json:"error,omitempty"`
}

// Stale reports whether the snapshot was never taken or is older than
// SnapshotStaleAfter.
func (s AvailabilitySnapshot) Stale(now time.Time) bool {
	if s.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*s.LastCheckedAt) > SnapshotStaleAfter
}

type Voucher struct {
	Code                  string   `json:"code"`
	DiscountAmount        *int64   `json:"discountAmount,omitempty"`
	DiscountPercentage    *float64 `json:"discountPercentage,omitempty"`
	MinimumPurchaseAmount int64    `json:"minimumPurchaseAmount"`
	MaximumDiscountAmount *int64   `json:"maximumDiscountAmount,omitempty"`
}

type BaggageSelection struct {
	FlightIndex    int   `json:"flightIndex"`
	PassengerIndex int   `json:"passengerIndex"`
	Weight         int   `json:"weight"`
	Price          int64 `json:"price"`
}

type Passengers struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// RequiredSeats is the number of seats each segment needs. Infants never
// occupy a seat.
func (p Passengers) RequiredSeats() int {
	return p.Adults + p.Children
}

func (p Passengers) Total() int {
	return p.Adults + p.Children + p.Infants
}

type SeatGroup struct {
	Label      string `json:"label"`
	Count      int    `json:"count"`
	TotalPrice int64  `json:"totalPrice"`
}

type PriceBreakdown struct {
	Subtotal         int64       `json:"subtotal"`
	InfantTotal      int64       `json:"infantTotal"`
	BaggageTotal     int64       `json:"baggageTotal"`
	TotalBeforeTaxes int64       `json:"totalBeforeTaxes"`
	TaxesAndFees     int64       `json:"taxesAndFees"`
	TotalWithTaxes   int64       `json:"totalWithTaxes"`
	Discount         int64       `json:"discount"`
	Total            int64       `json:"total"`
	GroupedSeats     []SeatGroup `json:"groupedSeats"`
}

type NoticeLevel string

const (
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
	NoticeInfo    NoticeLevel = "info"
)

// Notice is a user-facing message (toast) produced by the session.
type Notice struct {
	Key       string      `json:"key"`
	Level     NoticeLevel `json:"level"`
	Message   string      `json:"message"`
	Seats     []string    `json:"seats,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionAccepted SubmissionStatus = "accepted"
	SubmissionRejected SubmissionStatus = "rejected"
	SubmissionTimedOut SubmissionStatus = "timed_out"
	SubmissionFailed   SubmissionStatus = "failed"
)

type Submission struct {
	ID             uuid.UUID        `json:"id"`
	SessionID      uuid.UUID        `json:"sessionId"`
	IdempotencyKey string           `json:"-"`
	BookingID      string           `json:"bookingId,omitempty"`
	Status         SubmissionStatus `json:"status"`
	Total          int64            `json:"total"`
	Payload        []byte           `json:"-"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}
