package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/coopquest/internal/session"
)

const relayPrefix = "coopquest:room:"

// RedisRelay fans room snapshots out across server instances. Publish goes
// to Redis only; Run feeds every snapshot, local ones included, back into
// the local broker so each subscriber sees each update once.
type RedisRelay struct {
	rdb    *redis.Client
	local  *Broker
	logger *slog.Logger
}

func NewRedisRelay(rdb *redis.Client, local *Broker, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{rdb: rdb, local: local, logger: logger}
}

func relayChannel(code string) string {
	return relayPrefix + code
}

func (r *RedisRelay) Publish(code string, state session.RoomState) {
	data, err := json.Marshal(state)
	if err != nil {
		r.logger.Warn("encoding room snapshot", "code", code, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Publish(ctx, relayChannel(code), data).Err(); err != nil {
		r.logger.Warn("relay publish failed, delivering locally", "code", code, "error", err)
		r.local.publishRaw(code, data)
	}
}

// Run forwards relayed snapshots to the local broker until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.rdb.PSubscribe(ctx, relayPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	r.logger.Info("redis relay subscribed", "pattern", relayPrefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			code := strings.TrimPrefix(msg.Channel, relayPrefix)
			r.local.publishRaw(code, []byte(msg.Payload))
		}
	}
}
