package seatmap

import (
	"github.com/kirinyoku/seatflow/internal/domain"
)

// FareInfo is the class and fare a seat resolves to on one flight.
type FareInfo struct {
	FareType domain.FareType  `json:"fareType"`
	Class    domain.SeatClass `json:"class"`
	Price    int64            `json:"price"`
	FareID   string           `json:"fareId,omitempty"`
	FareName string           `json:"fareName,omitempty"`
}

// Model answers per-seat questions for a single flight. It is immutable once
// built; selection and availability are passed in by the caller.
type Model struct {
	flightID string
	seatMap  SeatMap
	fares    []domain.Fare
	occupied map[string]struct{}
	classMap map[string]domain.FareType
	seats    map[string]domain.FareType
}

func NewModel(d domain.FlightDetails) *Model {
	return newModel(d.ID, SectionsFromFares(d.AvailableFares), d)
}

// NewModelFromSections builds a model from explicit sections instead of the
// fare list, for callers that already hold section data.
func NewModelFromSections(d domain.FlightDetails, sections []domain.Section) *Model {
	return newModel(d.ID, sections, d)
}

func newModel(flightID string, sections []domain.Section, d domain.FlightDetails) *Model {
	m := &Model{
		flightID: flightID,
		seatMap:  Build(sections),
		fares:    d.AvailableFares,
		occupied: toSet(d.OccupiedSeats),
		classMap: d.Aircraft.SeatClassMap,
		seats:    make(map[string]domain.FareType),
	}

	for _, sec := range m.seatMap.Sections {
		for _, r := range sec.Rows {
			for _, code := range r.Seats {
				if code == Aisle {
					continue
				}
				if _, ok := m.seats[code]; !ok {
					m.seats[code] = sec.FareType
				}
			}
		}
	}

	return m
}

func (m *Model) FlightID() string { return m.flightID }

func (m *Model) SeatMap() SeatMap { return m.seatMap }

// Contains reports whether the seat is part of the rendered map.
func (m *Model) Contains(code string) bool {
	_, ok := m.seats[code]
	return ok
}

func (m *Model) Occupied(code string) bool {
	_, ok := m.occupied[code]
	return ok
}

// Status derives the seat status. Precedence is fixed:
// occupied > unavailable > selected > available.
func (m *Model) Status(code string, selected, unavailable map[string]struct{}) domain.SeatStatus {
	if _, ok := m.occupied[code]; ok {
		return domain.SeatOccupied
	}
	if _, ok := unavailable[code]; ok {
		return domain.SeatUnavailable
	}
	if _, ok := selected[code]; ok {
		return domain.SeatSelected
	}
	return domain.SeatAvailable
}

// Price returns the fare price for the given class, or 0 if the flight has no
// fare of that type.
func (m *Model) Price(_ string, class domain.SeatClass) int64 {
	if f, ok := m.fareByType(class.FareType()); ok {
		return f.Price
	}
	return 0
}

// FareInfo resolves a seat's class and fare. The aircraft seat map is
// consulted first; seats missing there fall back to section membership.
func (m *Model) FareInfo(code string) (FareInfo, bool) {
	ft, ok := m.classMap[code]
	if !ok {
		ft, ok = m.seats[code]
	}
	if !ok {
		return FareInfo{}, false
	}

	info := FareInfo{FareType: ft, Class: domain.ClassOf(ft)}
	if f, ok := m.fareByType(ft); ok {
		info.Price = f.Price
		info.FareID = f.ID
		info.FareName = f.Name
	}

	return info, true
}

func (m *Model) fareByType(ft domain.FareType) (domain.Fare, bool) {
	for _, f := range m.fares {
		if f.FareType == ft {
			return f, true
		}
	}
	return domain.Fare{}, false
}

// SeatView is a seat with its derived status and price, ready for rendering.
type SeatView struct {
	Code   string            `json:"seatCode"`
	Status domain.SeatStatus `json:"status"`
	Class  domain.SeatClass  `json:"class"`
	Price  int64             `json:"price"`
}

type RowView struct {
	Number int        `json:"number"`
	Seats  []SeatView `json:"seats"`
}

type SectionView struct {
	Class  domain.SeatClass `json:"class"`
	Name   string           `json:"name"`
	Layout string           `json:"layout"`
	Color  string           `json:"color"`
	Rows   []RowView        `json:"rows"`
}

type View struct {
	FlightID string        `json:"flightId"`
	Sections []SectionView `json:"sections"`
}

// Render annotates every seat of the map with status and price. Aisle
// placeholders are kept as empty seat entries so indices line up with the
// underlying map.
func (m *Model) Render(selected, unavailable []string) View {
	sel := toSet(selected)
	unav := toSet(unavailable)

	v := View{FlightID: m.flightID, Sections: make([]SectionView, 0, len(m.seatMap.Sections))}
	for _, sec := range m.seatMap.Sections {
		sv := SectionView{
			Class:  sec.Class,
			Name:   sec.Name,
			Layout: sec.Layout,
			Color:  sec.Color,
			Rows:   make([]RowView, 0, len(sec.Rows)),
		}
		for _, r := range sec.Rows {
			rv := RowView{Number: r.Number, Seats: make([]SeatView, 0, len(r.Seats))}
			for _, code := range r.Seats {
				if code == Aisle {
					rv.Seats = append(rv.Seats, SeatView{})
					continue
				}
				rv.Seats = append(rv.Seats, SeatView{
					Code:   code,
					Status: m.Status(code, sel, unav),
					Class:  sec.Class,
					Price:  m.Price(code, sec.Class),
				})
			}
			sv.Rows = append(sv.Rows, rv)
		}
		v.Sections = append(v.Sections, sv)
	}

	return v
}

func toSet(codes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out
}
