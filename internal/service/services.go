package service

import (
	"log/slog"

	"github.com/kirinyoku/seatflow/internal/events"
	postgres "github.com/kirinyoku/seatflow/internal/repository/postgres"
	redis "github.com/kirinyoku/seatflow/internal/repository/redis"
	"github.com/kirinyoku/seatflow/internal/service/submissions"
	"github.com/kirinyoku/seatflow/internal/session"
	"github.com/kirinyoku/seatflow/internal/upstream/bookings"
	"github.com/kirinyoku/seatflow/internal/upstream/flights"
)

type Services struct {
	Sessions    *session.Manager
	Submissions *submissions.Service
}

type Config struct {
	Sessions session.Config
}

func NewServices(
	store *postgres.Store,
	flightsClient *flights.CachedClient,
	bookingsClient *bookings.Client,
	pubsub *redis.FlightsPubSub,
	limiter *redis.SlidingWindowLimiter,
	publisher events.Publisher,
	logger *slog.Logger,
	cfg Config,
) *Services {
	subs := submissions.New(store, publisher, pubsub, logger)

	deps := session.Deps{
		Flights:  flightsClient,
		Bookings: bookingsClient,
		Ledger:   subs,
	}
	if limiter != nil {
		deps.Limiter = limiter
	}

	return &Services{
		Sessions:    session.NewManager(deps, cfg.Sessions, logger),
		Submissions: subs,
	}
}
