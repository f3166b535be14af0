package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kokoro-board/kokoro-board/api"
)

// Redis provides caching of currently valid posts in Redis.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings the server to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const postPrefix = "posts"

// ListValidPosts returns the cached posts whose expiry time is still in the
// future, newest first. Because every post lives for the same window, the
// expiry-scored sorted set also orders posts by creation time.
func (r *Redis) ListValidPosts(ctx context.Context, now time.Time) ([]api.Post, error) {
	keys, err := r.cli.ZRevRangeByScore(ctx, postPrefix, &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", now.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrevrangebyscore: %w", err)
	}

	out := make([]api.Post, 0, len(keys))
	for _, key := range keys {
		var p post
		if err := r.cli.HGetAll(ctx, key).Scan(&p); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		if p.ID == "" {
			// Hash already gone; the index entry will be pruned on the next
			// expiry pass.
			continue
		}
		out = append(out, p.APIPost())
	}

	return out, nil
}

// InsertPost adds the post to Redis with posts:POST_ID as the key and indexes
// the key in a sorted set scored by the post's expiry time.
func (r *Redis) InsertPost(ctx context.Context, in api.Post) error {
	p := newPost(in)

	err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			key := fmt.Sprintf("%s:%s", postPrefix, p.ID)
			pipe.HSet(ctx, key, p)
			pipe.ZAdd(ctx, postPrefix, redis.Z{
				Score:  float64(in.ExpiresAt.UnixNano()),
				Member: key,
			})

			return nil
		})
		return err
	}, p.ID)

	if err != nil {
		return fmt.Errorf("redis insert post: %w", err)
	}
	return nil
}

// IncrementEmpathy bumps the cached empathy counter for the post, if it is
// cached. A miss is not an error; the database holds the authoritative count.
func (r *Redis) IncrementEmpathy(ctx context.Context, postID string) error {
	key := fmt.Sprintf("%s:%s", postPrefix, postID)
	n, err := r.cli.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := r.cli.HIncrBy(ctx, key, "empathy_count", 1).Err(); err != nil {
		return fmt.Errorf("hincrby: %w", err)
	}
	return nil
}

// RemoveExpired drops every cached post whose expiry time has passed and
// reports how many were actually removed from the index; a key whose ZRem
// fails stays counted out and is retried on the next pass. Safe to run
// concurrently with itself; removing an already-removed key is a no-op.
func (r *Redis) RemoveExpired(ctx context.Context, now time.Time) (int, error) {
	keys, err := r.cli.ZRangeByScore(ctx, postPrefix, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixNano()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if err := r.cli.ZRem(ctx, postPrefix, key).Err(); err != nil {
			continue
		}
		_ = r.cli.Del(ctx, key).Err()
		removed++
	}

	return removed, nil
}
