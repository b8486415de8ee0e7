package seatmap

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kirinyoku/seatflow/internal/domain"
)

// Aisle is the placeholder inserted into a row where the aisle sits.
const Aisle = ""

const (
	layoutThreeThree = "3-3"
	layoutTwoTwo     = "2-2"
	neutralColor     = "#9CA3AF"
)

var (
	rowRe    = regexp.MustCompile(`^\d+`)
	letterRe = regexp.MustCompile(`[A-Za-z]+$`)
)

type Row struct {
	Number int      `json:"number"`
	Seats  []string `json:"seats"`
}

type Section struct {
	Class    domain.SeatClass `json:"class"`
	FareType domain.FareType  `json:"fareType"`
	Name     string           `json:"name"`
	Rows     []Row            `json:"rows"`
	Layout   string           `json:"layout"`
	Color    string           `json:"color"`
}

type SeatMap struct {
	Sections []Section `json:"sections"`
}

type sectionStyle struct {
	name   string
	layout string
	color  string
	rank   int
}

var knownStyles = map[domain.FareType]sectionStyle{
	domain.FareFirstClass: {name: "First Class", layout: layoutTwoTwo, color: "#7C3AED", rank: 0},
	domain.FareBusiness:   {name: "Business Class", layout: layoutTwoTwo, color: "#2563EB", rank: 1},
	domain.FareEconomy:    {name: "Economy Class", layout: layoutThreeThree, color: "#059669", rank: 2},
}

func styleFor(f domain.FareType) sectionStyle {
	if st, ok := knownStyles[f]; ok {
		return st
	}
	return sectionStyle{
		name:   nameFromKey(f),
		layout: layoutThreeThree,
		color:  neutralColor,
		rank:   len(knownStyles),
	}
}

// DisplayName is the label of a fare type's cabin, shared by the seat map
// legend and the price summary.
func DisplayName(f domain.FareType) string {
	if f == "" {
		f = domain.FareEconomy
	}
	return styleFor(f).name
}

// nameFromKey turns an enum-like key such as PREMIUM_PLUS into "Premium Plus".
func nameFromKey(f domain.FareType) string {
	parts := strings.FieldsFunc(string(f), func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, p := range parts {
		p = strings.ToLower(p)
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// ParseSeat splits a seat code into its numeric row and trailing letter.
// ok is false when either part is missing; the seat is still usable with a
// zero row or an empty letter.
func ParseSeat(code string) (domain.Seat, bool) {
	seat := domain.Seat{Code: code}
	ok := true

	if m := rowRe.FindString(code); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			ok = false
		}
		seat.Row = n
	} else {
		ok = false
	}

	if m := letterRe.FindString(code); m != "" {
		seat.Letter = strings.ToUpper(m)
	} else {
		ok = false
	}

	return seat, ok
}

// SectionsFromFares groups fare entries by fare type, one section per type in
// first-seen order. A seat listed under several fares of the same type is kept
// once.
func SectionsFromFares(fares []domain.Fare) []domain.Section {
	var out []domain.Section
	idx := make(map[domain.FareType]int)
	seen := make(map[string]struct{})

	for _, f := range fares {
		i, ok := idx[f.FareType]
		if !ok {
			i = len(out)
			idx[f.FareType] = i
			out = append(out, domain.Section{
				FareType:      f.FareType,
				LayoutPattern: styleFor(f.FareType).layout,
			})
		}
		for _, code := range f.Seats {
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			out[i].Seats = append(out[i].Seats, code)
		}
	}

	return out
}

// Build projects sections into a renderable grid. Rows are ordered by number,
// seats within a row by letter, and aisle placeholders are inserted according
// to the section layout.
func Build(sections []domain.Section) SeatMap {
	ordered := make([]domain.Section, len(sections))
	copy(ordered, sections)
	sort.SliceStable(ordered, func(i, j int) bool {
		return styleFor(ordered[i].FareType).rank < styleFor(ordered[j].FareType).rank
	})

	sm := SeatMap{Sections: make([]Section, 0, len(ordered))}
	for _, sec := range ordered {
		st := styleFor(sec.FareType)
		layout := sec.LayoutPattern
		if layout == "" {
			layout = st.layout
		}

		sm.Sections = append(sm.Sections, Section{
			Class:    domain.ClassOf(sec.FareType),
			FareType: sec.FareType,
			Name:     st.name,
			Rows:     buildRows(sec.Seats, layout),
			Layout:   layout,
			Color:    st.color,
		})
	}

	return sm
}

func buildRows(codes []string, layout string) []Row {
	byRow := make(map[int][]domain.Seat)
	var numbers []int

	for _, code := range codes {
		seat, _ := ParseSeat(code)
		if _, ok := byRow[seat.Row]; !ok {
			numbers = append(numbers, seat.Row)
		}
		byRow[seat.Row] = append(byRow[seat.Row], seat)
	}
	sort.Ints(numbers)

	rows := make([]Row, 0, len(numbers))
	for _, n := range numbers {
		seats := byRow[n]
		sort.SliceStable(seats, func(i, j int) bool {
			return seats[i].Letter < seats[j].Letter
		})

		codes := make([]string, 0, len(seats)+1)
		for _, s := range seats {
			codes = append(codes, s.Code)
		}

		rows = append(rows, Row{Number: n, Seats: insertAisle(codes, layout)})
	}

	return rows
}

func insertAisle(codes []string, layout string) []string {
	at := -1
	switch layout {
	case layoutThreeThree:
		if len(codes) >= 3 {
			at = 3
		}
	case layoutTwoTwo:
		if len(codes) >= 2 {
			at = 2
		}
	}
	if at < 0 {
		return codes
	}

	out := make([]string, 0, len(codes)+1)
	out = append(out, codes[:at]...)
	out = append(out, Aisle)
	out = append(out, codes[at:]...)
	return out
}

// Flatten returns the seat codes of every section with aisle placeholders
// removed, keyed by fare type.
func (sm SeatMap) Flatten() map[domain.FareType][]string {
	out := make(map[domain.FareType][]string, len(sm.Sections))
	for _, sec := range sm.Sections {
		for _, r := range sec.Rows {
			for _, code := range r.Seats {
				if code == Aisle {
					continue
				}
				out[sec.FareType] = append(out[sec.FareType], code)
			}
		}
	}
	return out
}
