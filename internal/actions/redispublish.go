package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"striem/internal/errs"
	"striem/internal/logger"
	"striem/internal/metrics"
	"striem/pkg/ocsf"
)

// RedisConfig configures the optional pub/sub fan-out used by an external
// action executor to pick up findings (SPEC_FULL.md DOMAIN STACK: the
// teacher's Redis client repurposed from a stream-consumer source into a
// publish-side sink).
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisPublisher publishes each finding as a JSON message on a configured
// channel. Grounded on the teacher's Redis usage (go-redis/v9 client
// construction in internal/input/redis/consumer.go), generalized from
// XREAD consumption to PUBLISH.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher validates cfg and constructs the publisher. It does not
// probe connectivity at construction time; PUBLISH failures surface per
// finding via ActionError.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	if cfg.Addr == "" {
		return nil, &errs.ActionError{Target: "redis", Err: fmt.Errorf("redis addr is empty")}
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "striem_findings"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisPublisher{client: client, channel: channel}, nil
}

// Handle publishes finding, logging (never retrying) on failure.
func (r *RedisPublisher) Handle(finding *ocsf.Finding) {
	payload, err := json.Marshal(finding.ToEvent().Native())
	if err != nil {
		logger.Errorf("Failed to marshal finding %s for redis publish: %v", finding.RuleUID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		metrics.ActionDispatched("redis:"+r.channel, false)
		logger.Errorf("Redis publish failed for finding %s: %v", finding.RuleUID, err)
		return
	}
	metrics.ActionDispatched("redis:"+r.channel, true)
}

// Close releases the underlying Redis client.
func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
