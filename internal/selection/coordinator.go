package selection

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/seatflow/internal/domain"
	"github.com/kirinyoku/seatflow/internal/seatmap"
)

// MaxSegments is the largest number of connecting flights in one booking.
const MaxSegments = 5

var (
	ErrNoSegments         = errors.New("at least one flight segment is required")
	ErrTooManySegments    = fmt.Errorf("at most %d flight segments are supported", MaxSegments)
	ErrSegmentOutOfRange  = errors.New("flight segment out of range")
	ErrNoSeatsRequired    = errors.New("no seats required for this booking")
	ErrNegativePassengers = errors.New("passenger counts must not be negative")
)

// Classifier resolves a seat's fare class on one flight.
type Classifier interface {
	FareInfo(code string) (seatmap.FareInfo, bool)
}

type segment struct {
	classifier Classifier
	seats      []string
	classes    map[string]domain.SeatClass
}

// Coordinator keeps per-segment seat selections for one booking session.
// Index i of a segment's list is the seat of passenger i. It is not safe for
// concurrent use; the owning session serialises access.
type Coordinator struct {
	required int
	segments []*segment
}

func New(passengers domain.Passengers, classifiers []Classifier) (*Coordinator, error) {
	const op = "selection.New"

	if passengers.Adults < 0 || passengers.Children < 0 || passengers.Infants < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNegativePassengers)
	}
	if len(classifiers) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSegments)
	}
	if len(classifiers) > MaxSegments {
		return nil, fmt.Errorf("%s: %w", op, ErrTooManySegments)
	}

	c := &Coordinator{required: passengers.RequiredSeats()}
	for _, cl := range classifiers {
		c.segments = append(c.segments, &segment{
			classifier: cl,
			seats:      []string{},
			classes:    make(map[string]domain.SeatClass),
		})
	}

	return c, nil
}

// Required is the number of seats every segment needs (adults + children).
func (c *Coordinator) Required() int { return c.required }

func (c *Coordinator) Segments() int { return len(c.segments) }

func (c *Coordinator) segment(idx int) (*segment, error) {
	if idx < 0 || idx >= len(c.segments) {
		return nil, fmt.Errorf("%w: %d", ErrSegmentOutOfRange, idx)
	}
	return c.segments[idx], nil
}

// Select toggles a seat on a segment. A seat already selected is removed.
// Selecting beyond the required count replaces the most recently added seat.
func (c *Coordinator) Select(idx int, code string) ([]string, error) {
	const op = "selection.Coordinator.Select"

	seg, err := c.segment(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if pos := indexOf(seg.seats, code); pos >= 0 {
		seg.remove(pos)
		return c.Seats(idx), nil
	}

	if c.required == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoSeatsRequired)
	}

	if len(seg.seats) >= c.required {
		seg.remove(len(seg.seats) - 1)
	}
	seg.add(code)

	return c.Seats(idx), nil
}

// SetSelection replaces a segment's selection. Duplicates are dropped and the
// list is truncated to the required count.
func (c *Coordinator) SetSelection(idx int, codes []string) ([]string, error) {
	const op = "selection.Coordinator.SetSelection"

	seg, err := c.segment(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	seg.seats = []string{}
	seg.classes = make(map[string]domain.SeatClass)
	for _, code := range codes {
		if len(seg.seats) >= c.required {
			break
		}
		if indexOf(seg.seats, code) >= 0 {
			continue
		}
		seg.add(code)
	}

	return c.Seats(idx), nil
}

func (c *Coordinator) Deselect(idx int, code string) ([]string, error) {
	const op = "selection.Coordinator.Deselect"

	seg, err := c.segment(idx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pos := indexOf(seg.seats, code); pos >= 0 {
		seg.remove(pos)
	}

	return c.Seats(idx), nil
}

// RemoveUnavailable drops the given seats from a segment and returns the
// filtered selection and whether anything was removed.
func (c *Coordinator) RemoveUnavailable(idx int, codes []string) ([]string, bool) {
	seg, err := c.segment(idx)
	if err != nil || len(codes) == 0 {
		return c.Seats(idx), false
	}

	drop := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		drop[code] = struct{}{}
	}

	kept := make([]string, 0, len(seg.seats))
	removed := false
	for _, code := range seg.seats {
		if _, ok := drop[code]; ok {
			delete(seg.classes, code)
			removed = true
			continue
		}
		kept = append(kept, code)
	}
	seg.seats = kept

	return c.Seats(idx), removed
}

// Reset clears a segment, for example when its flight or aircraft changes.
func (c *Coordinator) Reset(idx int, classifier Classifier) error {
	seg, err := c.segment(idx)
	if err != nil {
		return fmt.Errorf("selection.Coordinator.Reset: %w", err)
	}
	seg.seats = []string{}
	seg.classes = make(map[string]domain.SeatClass)
	if classifier != nil {
		seg.classifier = classifier
	}
	return nil
}

// IsComplete reports whether every segment has exactly the required number of
// seats. With nothing required it is always true.
func (c *Coordinator) IsComplete() bool {
	for _, seg := range c.segments {
		if len(seg.seats) != c.required {
			return false
		}
	}
	return true
}

// Seats returns a copy of a segment's selection, or nil for an unknown index.
func (c *Coordinator) Seats(idx int) []string {
	if idx < 0 || idx >= len(c.segments) {
		return nil
	}
	return append([]string{}, c.segments[idx].seats...)
}

// Selections returns a copy of every segment's selection in segment order.
func (c *Coordinator) Selections() [][]string {
	out := make([][]string, len(c.segments))
	for i := range c.segments {
		out[i] = c.Seats(i)
	}
	return out
}

// AllSelectedSeats concatenates all segments in order. It is derived on each
// call and never stored.
func (c *Coordinator) AllSelectedSeats() []string {
	var out []string
	for _, seg := range c.segments {
		out = append(out, seg.seats...)
	}
	if out == nil {
		return []string{}
	}
	return out
}

// SeatClasses returns the class recorded for each selected seat of a segment.
func (c *Coordinator) SeatClasses(idx int) map[string]domain.SeatClass {
	out := make(map[string]domain.SeatClass)
	if idx < 0 || idx >= len(c.segments) {
		return out
	}
	for k, v := range c.segments[idx].classes {
		out[k] = v
	}
	return out
}

func (s *segment) add(code string) {
	s.seats = append(s.seats, code)
	class := domain.ClassEconomy
	if s.classifier != nil {
		if info, ok := s.classifier.FareInfo(code); ok {
			class = info.Class
		}
	}
	s.classes[code] = class
}

func (s *segment) remove(pos int) {
	code := s.seats[pos]
	s.seats = append(s.seats[:pos], s.seats[pos+1:]...)
	delete(s.classes, code)
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
