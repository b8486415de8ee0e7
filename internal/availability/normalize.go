package availability

import (
	"encoding/json"
	"fmt"

	"github.com/kirinyoku/seatflow/internal/domain"
)

// Shape identifies which of the upstream response formats was received.
type Shape int

const (
	ShapeUnknown Shape = iota
	// {"seatStatuses":[{"seatCode":"12A","available":false}]}
	ShapeSeatStatuses
	// {"allRequestedSeatsAvailable":false,"unavailableSeats":["12A"]}
	ShapeDirect
	// {"data":{"allAvailable":false,"availableSeats":["12B"]}}
	ShapeLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeSeatStatuses:
		return "seat_statuses"
	case ShapeDirect:
		return "direct"
	case ShapeLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

type SeatStatus struct {
	SeatCode  string `json:"seatCode"`
	Available bool   `json:"available"`
}

type legacyData struct {
	AllAvailable   bool     `json:"allAvailable"`
	AvailableSeats []string `json:"availableSeats"`
}

// Response is a parsed availability response. Exactly one branch is
// populated, selected by Shape.
type Response struct {
	Shape Shape

	SeatStatuses []SeatStatus

	AllRequestedSeatsAvailable bool
	UnavailableSeats           []string

	Legacy legacyData
}

type probe struct {
	SeatStatuses               *[]SeatStatus `json:"seatStatuses"`
	AllRequestedSeatsAvailable *bool         `json:"allRequestedSeatsAvailable"`
	UnavailableSeats           []string      `json:"unavailableSeats"`
	Data                       *legacyData   `json:"data"`
}

// Parse decodes raw into one of the three documented shapes. Anything else is
// a data shape mismatch.
func Parse(raw []byte) (Response, error) {
	const op = "availability.Parse"

	var p probe
	if err := json.Unmarshal(raw, &p); err != nil {
		return Response{}, fmt.Errorf("%s: %w: %w", op, ErrUnknownShape, err)
	}

	switch {
	case p.SeatStatuses != nil:
		return Response{Shape: ShapeSeatStatuses, SeatStatuses: *p.SeatStatuses}, nil
	case p.AllRequestedSeatsAvailable != nil:
		return Response{
			Shape:                      ShapeDirect,
			AllRequestedSeatsAvailable: *p.AllRequestedSeatsAvailable,
			UnavailableSeats:           p.UnavailableSeats,
		}, nil
	case p.Data != nil:
		return Response{Shape: ShapeLegacy, Legacy: *p.Data}, nil
	}

	return Response{}, fmt.Errorf("%s: %w", op, ErrUnknownShape)
}

// Normalize converts the response into the canonical result for the seats
// that were requested.
func (r Response) Normalize(requested []string) domain.AvailabilityResult {
	unavailable := []string{}

	switch r.Shape {
	case ShapeSeatStatuses:
		for _, s := range r.SeatStatuses {
			if !s.Available {
				unavailable = append(unavailable, s.SeatCode)
			}
		}
		return domain.AvailabilityResult{AllAvailable: len(unavailable) == 0, UnavailableSeats: unavailable}

	case ShapeDirect:
		unavailable = append(unavailable, r.UnavailableSeats...)
		return domain.AvailabilityResult{AllAvailable: r.AllRequestedSeatsAvailable, UnavailableSeats: unavailable}

	case ShapeLegacy:
		if r.Legacy.AvailableSeats == nil && r.Legacy.AllAvailable {
			return domain.AvailabilityResult{AllAvailable: true, UnavailableSeats: unavailable}
		}
		available := make(map[string]struct{}, len(r.Legacy.AvailableSeats))
		for _, c := range r.Legacy.AvailableSeats {
			available[c] = struct{}{}
		}
		for _, c := range requested {
			if _, ok := available[c]; !ok {
				unavailable = append(unavailable, c)
			}
		}
		return domain.AvailabilityResult{AllAvailable: len(unavailable) == 0, UnavailableSeats: unavailable}
	}

	return domain.AvailabilityResult{AllAvailable: false, UnavailableSeats: unavailable}
}
