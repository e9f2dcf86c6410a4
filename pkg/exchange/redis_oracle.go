package exchange

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisOracle reads prices written to Redis hashes by an external feeder.
// Each oracle ref maps to a hash {price_lots, slot} under keyPrefix.
type RedisOracle struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisOracle(client *redis.Client, keyPrefix string) *RedisOracle {
	return &RedisOracle{client: client, keyPrefix: keyPrefix}
}

func (o *RedisOracle) ReadPrice(ctx context.Context, ref string) (OraclePrice, error) {
	vals, err := o.client.HGetAll(ctx, o.keyPrefix+ref).Result()
	if err != nil {
		return OraclePrice{}, err
	}
	if len(vals) == 0 {
		return OraclePrice{}, ErrOracleUnavailable
	}

	priceLots, err := strconv.ParseInt(vals["price_lots"], 10, 64)
	if err != nil {
		return OraclePrice{}, fmt.Errorf("oracle %s: bad price_lots: %w", ref, err)
	}
	slot, err := strconv.ParseUint(vals["slot"], 10, 64)
	if err != nil {
		return OraclePrice{}, fmt.Errorf("oracle %s: bad slot: %w", ref, err)
	}

	return OraclePrice{PriceLots: priceLots, LastUpdateSlot: slot}, nil
}
