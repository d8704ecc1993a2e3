package store

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to every key written by the Redis store.
const DefaultRedisPrefix = "tilecache"

// Redis keeps buckets in Redis. Each bucket uses three keys:
// a sequence counter, a sorted set of entry keys scored by sequence number,
// and a hash of entry values.
type Redis struct {
	client *redis.Client
	prefix string
}

type redisBucket struct {
	r                *Redis
	seq, order, data string
}

// NewRedis returns a new Redis store using the provided Redis client.
// If prefix is empty, DefaultRedisPrefix is used.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) bucket(namespace string) *redisBucket {
	base := r.prefix + ":" + namespace + ":"
	return &redisBucket{
		r:     r,
		seq:   base + "seq",
		order: base + "order",
		data:  base + "data",
	}
}

func (r *Redis) Open(ctx context.Context, namespace string) (Bucket, error) {
	b := r.bucket(namespace)
	// the sequence key marks the bucket as existing
	if err := r.client.SetNX(ctx, b.seq, 0, 0).Err(); err != nil {
		return nil, redisErr(err)
	}
	return b, nil
}

func (r *Redis) Delete(ctx context.Context, namespace string) (bool, error) {
	b := r.bucket(namespace)
	n, err := r.client.Del(ctx, b.seq, b.order, b.data).Result()
	if err != nil {
		return false, redisErr(err)
	}
	return n > 0, nil
}

// putScript takes the next sequence number and stores the entry under it.
// A bucket deleted in between cannot leave an entry scored from its old sequence.
//
// KEYS: seq, order, data
// ARGV: entry key, entry value
var putScript = redis.NewScript(`
local seq = redis.call("INCR", KEYS[1])
redis.call("ZADD", KEYS[2], seq, ARGV[1])
redis.call("HSET", KEYS[3], ARGV[1], ARGV[2])
return seq
`)

func (b *redisBucket) Put(ctx context.Context, key string, value []byte) error {
	err := putScript.Run(ctx, b.r.client, []string{b.seq, b.order, b.data}, key, value).Err()
	return redisErr(err)
}

func (b *redisBucket) Match(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.r.client.HGet(ctx, b.data, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, redisErr(err)
	}
	return data, true, nil
}

func (b *redisBucket) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.r.client.ZRange(ctx, b.order, 0, -1).Result()
	if err != nil {
		return nil, redisErr(err)
	}
	return keys, nil
}

func (b *redisBucket) Delete(ctx context.Context, key string) (bool, error) {
	var removed *redis.IntCmd
	_, err := b.r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, b.order, key)
		removed = pipe.HDel(ctx, b.data, key)
		return nil
	})
	if err != nil {
		return false, redisErr(err)
	}
	return removed.Val() > 0, nil
}

func redisErr(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}
