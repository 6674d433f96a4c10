package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
)

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	TTL          time.Duration
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// RouteCache is a read-through cache in front of a RouteStore. Routes are
// read on every location update but change rarely. Redis failures fall back
// to the backing store.
type RouteCache struct {
	client *redis.Client
	next   tracking.RouteStore
	ttl    time.Duration
}

func NewRouteCache(client *redis.Client, next tracking.RouteStore, ttl time.Duration) *RouteCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RouteCache{client: client, next: next, ttl: ttl}
}

func routeKey(id uint) string {
	return fmt.Sprintf("bus_tracker:route:%d", id)
}

func (c *RouteCache) GetRoute(ctx context.Context, id uint) (*models.Route, error) {
	key := routeKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var route models.Route
		if err := json.Unmarshal(data, &route); err == nil {
			return &route, nil
		}
		logrus.WithField("key", key).Warn("Discarding undecodable cached route.")
	case !errors.Is(err, redis.Nil):
		logrus.WithError(err).WithField("key", key).Warn("Route cache read failed, using database.")
	}

	route, err := c.next.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, route)
	return route, nil
}

// Invalidate drops a cached route after it was edited.
func (c *RouteCache) Invalidate(ctx context.Context, id uint) {
	if err := c.client.Del(ctx, routeKey(id)).Err(); err != nil {
		logrus.WithError(err).WithField("route_id", id).Warn("Failed to invalidate cached route.")
	}
}

func (c *RouteCache) store(ctx context.Context, key string, route *models.Route) {
	data, err := json.Marshal(cachedRoute(route))
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Debug("Failed to cache route.")
	}
}

// cachedRoute drops associations the tracker never reads.
func cachedRoute(r *models.Route) *models.Route {
	cp := *r
	cp.Buses = nil
	return &cp
}
