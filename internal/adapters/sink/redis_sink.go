package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ghalamif/mlatflow/internal/adapters/wire"
	"github.com/ghalamif/mlatflow/internal/domain"
	"github.com/ghalamif/mlatflow/internal/ports"
)

// RedisSink publishes every group on a pub/sub channel so solver workers can
// subscribe without touching the correlator.
type RedisSink struct {
	rdb     redis.UniversalClient
	channel string
	timeout time.Duration
}

func NewRedisSink(rdb redis.UniversalClient, channel string) *RedisSink {
	return &RedisSink{rdb: rdb, channel: channel, timeout: 2 * time.Second}
}

func (r *RedisSink) Name() string { return "redis" }

func (r *RedisSink) WriteGroups(groups []domain.EligibleGroup) error {
	if len(groups) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	pipe := r.rdb.Pipeline()
	for _, g := range groups {
		raw, err := wire.EncodeGroup(g)
		if err != nil {
			return fmt.Errorf("marshal group: %w", err)
		}
		pipe.Publish(ctx, r.channel, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

var _ ports.GroupSink = (*RedisSink)(nil)
