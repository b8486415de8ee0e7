package flights

import (
	"context"
	"time"

	"github.com/kirinyoku/seatflow/internal/domain"
	redisrepo "github.com/kirinyoku/seatflow/internal/repository/redis"
)

// CachedClient serves flight details from Redis. Availability checks always
// go to the flight-service.
type CachedClient struct {
	*Client
	cache *redisrepo.Cache
	ttl   time.Duration
}

func NewCached(c *Client, cache *redisrepo.Cache, ttl time.Duration) *CachedClient {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedClient{Client: c, cache: cache, ttl: ttl}
}

func (c *CachedClient) GetDetails(ctx context.Context, flightID string) (domain.FlightDetails, error) {
	return redisrepo.GetOrSetJSON(ctx, c.cache, redisrepo.KeyFlightDetails(flightID), c.ttl,
		func(ctx context.Context) (domain.FlightDetails, error) {
			return c.Client.GetDetails(ctx, flightID)
		})
}

// Invalidate drops the cached details of a flight.
func (c *CachedClient) Invalidate(ctx context.Context, flightID string) error {
	return c.cache.InvalidateFlight(ctx, flightID)
}
