package session

import (
	"time"

	"github.com/kirinyoku/seatflow/internal/domain"
)

type EventType string

const (
	EventSelection  EventType = "selection"
	EventNotice     EventType = "notice"
	EventPrice      EventType = "price"
	EventSubmission EventType = "submission"
	EventClosed     EventType = "closed"
)

// Event is pushed to subscribers whenever session state changes.
type Event struct {
	Type       EventType          `json:"type"`
	Segment    *int               `json:"segment,omitempty"`
	Seats      []string           `json:"seats,omitempty"`
	Notice     *domain.Notice     `json:"notice,omitempty"`
	Submission *domain.Submission `json:"submission,omitempty"`
	At         time.Time          `json:"at"`
}

const subscriberBuffer = 32

// Subscribe returns a channel of state changes and a function that cancels
// the subscription. Slow subscribers miss events rather than block the
// session. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

// publish must be called with s.mu held.
func (s *Session) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
