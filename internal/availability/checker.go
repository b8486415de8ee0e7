package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirinyoku/seatflow/internal/domain"
)

// Client fetches the raw availability response for a set of seats.
type Client interface {
	CheckSeats(ctx context.Context, flightID string, seatCodes []string) ([]byte, error)
}

// Notifier receives user-facing notices produced by a checker.
type Notifier interface {
	Notify(n domain.Notice)
}

type NotifierFunc func(n domain.Notice)

func (f NotifierFunc) Notify(n domain.Notice) { f(n) }

type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerPeriodic  Trigger = "periodic"
	TriggerDebounced Trigger = "debounced"
	TriggerSubmit    Trigger = "submit"
)

// visible reports whether failures of this trigger are shown to the user on
// the first occurrence.
func (t Trigger) visible() bool {
	return t == TriggerManual || t == TriggerSubmit
}

type Options struct {
	Debounce      time.Duration
	Interval      time.Duration
	CheckTimeout  time.Duration
	EscalateAfter int
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 500 * time.Millisecond
	}
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.CheckTimeout <= 0 {
		o.CheckTimeout = 10 * time.Second
	}
	if o.EscalateAfter <= 0 {
		o.EscalateAfter = 3
	}
	return o
}

// Checker tracks seat availability for one flight. It owns at most one
// periodic schedule and one pending debounce timer.
type Checker struct {
	flightID string
	client   Client
	logger   *slog.Logger
	notifier Notifier
	opts     Options
	now      func() time.Time

	// selection returns the seats to re-check on each periodic tick.
	selection func() []string
	// onUnavailable is called after a successful check that found
	// unavailable seats.
	onUnavailable func(codes []string)

	mu               sync.Mutex
	snap             domain.AvailabilitySnapshot
	inFlight         int
	manualInFlight   bool
	backgroundErrors int
	warned           map[string]struct{}
	stopPeriodic     context.CancelFunc
	debounce         *time.Timer
	closed           bool
}

type Config struct {
	FlightID      string
	Client        Client
	Logger        *slog.Logger
	Notifier      Notifier
	Options       Options
	Selection     func() []string
	OnUnavailable func(codes []string)
}

func New(cfg Config) *Checker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Checker{
		flightID:      cfg.FlightID,
		client:        cfg.Client,
		logger:        logger.With("component", "availability", "flight_id", cfg.FlightID),
		notifier:      cfg.Notifier,
		opts:          cfg.Options.withDefaults(),
		now:           time.Now,
		selection:     cfg.Selection,
		onUnavailable: cfg.OnUnavailable,
		snap:          domain.AvailabilitySnapshot{AllAvailable: true, UnavailableSeats: []string{}},
		warned:        make(map[string]struct{}),
	}
}

func (c *Checker) FlightID() string { return c.flightID }

// Snapshot returns a copy of the last known availability state.
func (c *Checker) Snapshot() domain.AvailabilitySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snap
	s.UnavailableSeats = append([]string{}, c.snap.UnavailableSeats...)
	if c.snap.LastCheckedAt != nil {
		t := *c.snap.LastCheckedAt
		s.LastCheckedAt = &t
	}
	return s
}

// CheckSeats asks the flight service whether the given seats are still free.
//
// An empty seat list or a checker without a flight resolves immediately as
// all available. On failure the snapshot records the error and the result is
// AllAvailable=false with no unavailable seats; the returned error wraps
// domain.ErrNetworkFailure or domain.ErrDataShapeMismatch.
func (c *Checker) CheckSeats(ctx context.Context, seatCodes []string, trigger Trigger) (domain.AvailabilityResult, error) {
	const op = "availability.Checker.CheckSeats"

	if len(seatCodes) == 0 || c.flightID == "" {
		c.mu.Lock()
		c.snap.Error = ""
		c.snap.AllAvailable = true
		c.snap.UnavailableSeats = []string{}
		c.mu.Unlock()
		return domain.AvailabilityResult{AllAvailable: true, UnavailableSeats: []string{}}, nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.AvailabilityResult{UnavailableSeats: []string{}}, fmt.Errorf("%s: %w", op, ErrClosed)
	}
	if trigger == TriggerManual {
		if c.manualInFlight {
			c.mu.Unlock()
			return domain.AvailabilityResult{UnavailableSeats: []string{}}, fmt.Errorf("%s: %w", op, ErrCheckInFlight)
		}
		c.manualInFlight = true
	}
	c.inFlight++
	c.snap.IsChecking = true
	c.mu.Unlock()

	requested := append([]string(nil), seatCodes...)

	checkCtx, cancel := context.WithTimeout(ctx, c.opts.CheckTimeout)
	defer cancel()

	result, err := c.fetch(checkCtx, requested)

	c.mu.Lock()
	c.inFlight--
	c.snap.IsChecking = c.inFlight > 0
	if trigger == TriggerManual {
		c.manualInFlight = false
	}
	if c.closed {
		c.mu.Unlock()
		if err != nil {
			return domain.AvailabilityResult{UnavailableSeats: []string{}}, fmt.Errorf("%s: %w", op, err)
		}
		return result, nil
	}

	if err != nil {
		c.snap.Error = err.Error()
		escalate := trigger.visible()
		if !trigger.visible() {
			c.backgroundErrors++
			escalate = c.backgroundErrors >= c.opts.EscalateAfter
		}
		c.mu.Unlock()

		c.logger.Warn("availability check failed",
			"trigger", string(trigger),
			"seats", requested,
			"error", err,
		)
		if escalate {
			c.notify(domain.Notice{
				Key:     fmt.Sprintf("availability-error:%s", c.flightID),
				Level:   domain.NoticeError,
				Message: "Could not verify seat availability. Please try again.",
			})
		}

		return domain.AvailabilityResult{AllAvailable: false, UnavailableSeats: []string{}}, fmt.Errorf("%s: %w", op, err)
	}

	now := c.now()
	c.backgroundErrors = 0
	c.snap.Error = ""
	c.snap.LastCheckedAt = &now
	c.snap.AllAvailable = result.AllAvailable
	c.snap.UnavailableSeats = append([]string{}, result.UnavailableSeats...)

	var warn *domain.Notice
	if len(result.UnavailableSeats) > 0 {
		key := warningKey(c.flightID, result.UnavailableSeats)
		if _, seen := c.warned[key]; !seen {
			c.warned[key] = struct{}{}
			warn = &domain.Notice{
				Key:     key,
				Level:   domain.NoticeWarning,
				Message: UnavailableMessage(result.UnavailableSeats),
				Seats:   append([]string(nil), result.UnavailableSeats...),
			}
		}
	}
	onUnavailable := c.onUnavailable
	c.mu.Unlock()

	if len(result.UnavailableSeats) > 0 {
		c.logger.Info("seats no longer available",
			"trigger", string(trigger),
			"seats", result.UnavailableSeats,
		)
		if warn != nil {
			c.notify(*warn)
		}
		if onUnavailable != nil {
			onUnavailable(append([]string(nil), result.UnavailableSeats...))
		}
	}

	return result, nil
}

func (c *Checker) fetch(ctx context.Context, seatCodes []string) (domain.AvailabilityResult, error) {
	raw, err := c.client.CheckSeats(ctx, c.flightID, seatCodes)
	if err != nil {
		if errors.Is(err, domain.ErrNetworkFailure) || errors.Is(err, domain.ErrTimeout) {
			return domain.AvailabilityResult{}, err
		}
		return domain.AvailabilityResult{}, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}

	resp, err := Parse(raw)
	if err != nil {
		return domain.AvailabilityResult{}, err
	}

	return resp.Normalize(seatCodes), nil
}

func (c *Checker) notify(n domain.Notice) {
	if c.notifier == nil {
		return
	}
	n.CreatedAt = c.now()
	c.notifier.Notify(n)
}

// SelectionChanged schedules a debounced check of the given seats, replacing
// any pending one. An empty selection resets the snapshot to all available
// without calling the flight service.
func (c *Checker) SelectionChanged(seatCodes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}

	if len(seatCodes) == 0 {
		c.snap.AllAvailable = true
		c.snap.UnavailableSeats = []string{}
		c.snap.Error = ""
		return
	}

	codes := append([]string(nil), seatCodes...)
	var t *time.Timer
	t = time.AfterFunc(c.opts.Debounce, func() {
		c.mu.Lock()
		if c.debounce != t {
			c.mu.Unlock()
			return
		}
		c.debounce = nil
		c.mu.Unlock()

		_, _ = c.CheckSeats(context.Background(), codes, TriggerDebounced)
	})
	c.debounce = t
}

// StartPeriodic re-checks the current selection every interval. A previous
// schedule is cancelled first. A non-positive interval uses the configured
// default.
func (c *Checker) StartPeriodic(interval time.Duration) {
	if interval <= 0 {
		interval = c.opts.Interval
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.stopPeriodic != nil {
		c.stopPeriodic()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.stopPeriodic = cancel
	c.mu.Unlock()

	go c.runPeriodic(ctx, interval)
}

func (c *Checker) runPeriodic(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var codes []string
			if c.selection != nil {
				codes = c.selection()
			}
			if len(codes) == 0 {
				continue
			}
			_, _ = c.CheckSeats(ctx, codes, TriggerPeriodic)
		}
	}
}

func (c *Checker) StopPeriodic() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopPeriodic != nil {
		c.stopPeriodic()
		c.stopPeriodic = nil
	}
}

// Close cancels the periodic schedule and any pending debounce. Responses of
// checks still in flight are discarded.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.stopPeriodic != nil {
		c.stopPeriodic()
		c.stopPeriodic = nil
	}
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func warningKey(flightID string, seats []string) string {
	sorted := append([]string(nil), seats...)
	sort.Strings(sorted)
	return fmt.Sprintf("seats-unavailable:%s:%s", flightID, strings.Join(sorted, ","))
}

func UnavailableMessage(seats []string) string {
	if len(seats) == 1 {
		return fmt.Sprintf("Seat %s is no longer available and was removed from your selection.", seats[0])
	}
	return fmt.Sprintf("Seats %s are no longer available and were removed from your selection.", strings.Join(seats, ", "))
}
