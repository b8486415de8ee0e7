package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/kirinyoku/seatflow/internal/domain"
)

// Memo caches the last breakdown keyed by a fingerprint of its input.
// Resolvers are identified by flight ID, so Invalidate must be called when a
// segment's flight data is replaced.
type Memo struct {
	mu    sync.Mutex
	key   string
	value domain.PriceBreakdown
	ok    bool
}

type fingerprint struct {
	Flights []string                  `json:"f"`
	Seats   [][]string                `json:"s"`
	Baggage []domain.BaggageSelection `json:"b"`
	Infants int                       `json:"i"`
	Voucher *domain.Voucher           `json:"v"`
}

func key(in Input) string {
	fp := fingerprint{Baggage: in.Baggage, Infants: in.Infants, Voucher: in.Voucher}
	for _, s := range in.Segments {
		fp.Flights = append(fp.Flights, s.FlightID)
		fp.Seats = append(fp.Seats, s.Seats)
	}
	b, _ := json.Marshal(fp)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Compute returns the cached breakdown when the input is unchanged and
// recomputes otherwise. The second result reports a cache hit.
func (m *Memo) Compute(in Input) (domain.PriceBreakdown, bool) {
	k := key(in)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ok && m.key == k {
		return clone(m.value), true
	}

	m.value = Compute(in)
	m.key = k
	m.ok = true

	return clone(m.value), false
}

func clone(pb domain.PriceBreakdown) domain.PriceBreakdown {
	pb.GroupedSeats = append([]domain.SeatGroup{}, pb.GroupedSeats...)
	return pb
}

func (m *Memo) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ok = false
}
