package httpgin

import (
	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/session"
)

type CreateSessionRequest struct {
	Passengers PassengersInput `json:"passengers"`
	FlightIDs  []string        `json:"flightIds" binding:"required,min=1,max=5,dive,required"`
}

type PassengersInput struct {
	Adults   int `json:"adults" binding:"gte=0"`
	Children int `json:"children" binding:"gte=0"`
	Infants  int `json:"infants" binding:"gte=0"`
}

type SelectSeatRequest struct {
	SeatCode string `json:"seatCode" binding:"required,seatcode"`
}

type SetSeatsRequest struct {
	SeatCodes []string `json:"seatCodes" binding:"omitempty,dive,required,seatcode"`
}

type SetBaggageRequest struct {
	Items []domain.BaggageSelection `json:"items"`
}

type ApplyVoucherRequest struct {
	Code                  string   `json:"code" binding:"required"`
	DiscountAmount        *int64   `json:"discountAmount"`
	DiscountPercentage    *float64 `json:"discountPercentage"`
	MinimumPurchaseAmount int64    `json:"minimumPurchaseAmount"`
	MaximumDiscountAmount *int64   `json:"maximumDiscountAmount"`
}

func (r ApplyVoucherRequest) voucher() domain.Voucher {
	return domain.Voucher{
		Code:                  r.Code,
		DiscountAmount:        r.DiscountAmount,
		DiscountPercentage:    r.DiscountPercentage,
		MinimumPurchaseAmount: r.MinimumPurchaseAmount,
		MaximumDiscountAmount: r.MaximumDiscountAmount,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// SeatsUnavailableResponse is returned when submit-time re-validation finds
// seats that were taken in the meantime.
type SeatsUnavailableResponse struct {
	Error            string              `json:"error"`
	UnavailableSeats map[string][]string `json:"unavailableSeats"`
}

type CreateSessionResponse struct {
	SessionID string        `json:"sessionId"`
	State     session.State `json:"state"`
}

type SeatsResponse struct {
	Segment int      `json:"segment"`
	Seats   []string `json:"seats"`
}

type SubmitResponse struct {
	Submission *domain.Submission `json:"submission"`
}

type NoticesResponse struct {
	Notices []domain.Notice `json:"notices"`
}

type SubmissionsResponse struct {
	Submissions []domain.Submission `json:"submissions"`
}
