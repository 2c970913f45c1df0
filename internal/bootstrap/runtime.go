// Package bootstrap builds the process-wide dependencies shared by the
// server and the CLI: database, Redis and the realtime publisher.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"livemarket/internal/cache"
	"livemarket/internal/config"
	"livemarket/internal/database"
	"livemarket/internal/middleware"
	"livemarket/internal/realtime"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	ApplySchema bool
}

// InitRuntime connects to the database and Redis. Redis is only required
// when it carries realtime events; otherwise an unreachable Redis leaves the
// client nil and rate limiting fails open.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: opts.ApplySchema})
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		if cfg.RealtimeDriver == config.RealtimeRedis {
			return nil, nil, fmt.Errorf("redis is required for REALTIME_DRIVER=redis: %w", err)
		}
		middleware.Logger.Warn("Redis unavailable; continuing without it", slog.String("error", err.Error()))
		rdb = nil
	}

	return db, rdb, nil
}

// Realtime holds the publisher the fanout writes to and the hub that feeds
// local websocket subscribers.
type Realtime struct {
	Hub       *realtime.Hub
	Publisher realtime.Publisher

	// Redis is set when the hub must be fed from a Redis subscription.
	Redis *realtime.RedisPublisher
	Kafka *realtime.KafkaPublisher
}

// NewRealtime selects the publisher for cfg.RealtimeDriver. With Redis the
// hub receives events back through its subscription; with Kafka or none the
// hub is published to directly.
func NewRealtime(cfg *config.Config, rdb *redis.Client) (*Realtime, error) {
	rt := &Realtime{Hub: realtime.NewHub()}

	switch cfg.RealtimeDriver {
	case config.RealtimeRedis:
		if rdb == nil {
			return nil, errors.New("redis client is required for REALTIME_DRIVER=redis")
		}
		rt.Redis = realtime.NewRedisPublisher(rdb)
		rt.Publisher = rt.Redis
	case config.RealtimeKafka:
		kp, err := realtime.NewKafkaPublisher(realtime.KafkaConfig{
			Brokers:     cfg.KafkaBrokerList(),
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			return nil, err
		}
		rt.Kafka = kp
		rt.Publisher = realtime.Multi(kp, rt.Hub)
	case config.RealtimeNone, "":
		rt.Publisher = rt.Hub
	default:
		return nil, fmt.Errorf("unsupported REALTIME_DRIVER %q", cfg.RealtimeDriver)
	}
	return rt, nil
}

// Start connects the hub to the broker when events come back through one.
func (rt *Realtime) Start(ctx context.Context) error {
	if rt.Redis == nil {
		return nil
	}
	return rt.Hub.StartWiring(ctx, rt.Redis)
}

// Close disconnects subscribers and flushes the broker producer.
func (rt *Realtime) Close(ctx context.Context) error {
	var errs []error
	if err := rt.Hub.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if rt.Kafka != nil {
		if err := rt.Kafka.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
