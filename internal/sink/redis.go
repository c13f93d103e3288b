package sink

import (
	"context"
	"math"
	"strconv"

	"arbview/internal/schema"

	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

const defaultRedisPrefix = "arb"

// Redis mirrors the latest record of each pair into a hash
// "<prefix>:market:<hePair>" and ranks pairs by spread in the sorted set
// "<prefix>:spreads".
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis builds a Redis sink. An empty prefix uses "arb".
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Name() string {
	return "redis"
}

// Write replaces the pair's hash as a whole so a side missing from m does
// not linger from an older record.
func (r *Redis) Write(ctx context.Context, m schema.ArbMarket) error {
	key := r.marketKey(m.HePair)
	rank := r.spreadsKey()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, marketFields(m))
		if math.IsNaN(m.Spread) {
			pipe.ZRem(ctx, rank, m.HePair)
		} else {
			pipe.ZAdd(ctx, rank, redis.Z{Score: m.Spread, Member: m.HePair})
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "mirror pair %q", m.HePair)
	}
	return nil
}

func (r *Redis) marketKey(hePair string) string {
	return r.prefix + ":market:" + hePair
}

func (r *Redis) spreadsKey() string {
	return r.prefix + ":spreads"
}

func marketFields(m schema.ArbMarket) map[string]any {
	fields := map[string]any{
		"he_pair": m.HePair,
		"spread":  strconv.FormatFloat(m.Spread, 'f', -1, 64),
	}
	addSide(fields, "low", m.Low)
	addSide(fields, "high", m.High)
	return fields
}

func addSide(fields map[string]any, side string, a *schema.ActiveMarket) {
	if a == nil {
		return
	}
	fields[side+"_exchange"] = a.Exchange
	fields[side+"_he_pair"] = a.HePair
	fields[side+"_ex_pair"] = a.ExPair
	fields[side+"_price"] = a.Price
}
