package spacetraveling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPageStore shares rendered pages between instances through Redis.
type RedisPageStore struct {
	client *redis.Client
	prefix string
}

// NewRedisPageStore connects to the Redis server at rawURL and pings it.
// Keys are namespaced by site so several sites can share one server.
func NewRedisPageStore(ctx context.Context, rawURL, site string) (*RedisPageStore, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 5 * time.Second
	opt.MaxRetries = 3

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPageStore{client: client, prefix: site + ":page:"}, nil
}

func (s *RedisPageStore) key(path string) string {
	return s.prefix + path
}

// GetPage returns the page stored for path, or ErrPageNotFound.
func (s *RedisPageStore) GetPage(ctx context.Context, path string) (Page, error) {
	vals, err := s.client.HMGet(ctx, s.key(path), "html", "rendered_at").Result()
	if err != nil {
		return Page{}, err
	}
	html, ok := vals[0].(string)
	if !ok {
		return Page{}, ErrPageNotFound
	}
	at, _ := vals[1].(string)
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return Page{}, fmt.Errorf("page %s: %w", path, err)
	}
	return Page{HTML: []byte(html), RenderedAt: t}, nil
}

// PutPage stores the page for path.
func (s *RedisPageStore) PutPage(ctx context.Context, path string, p Page) error {
	return s.client.HSet(ctx, s.key(path),
		"html", p.HTML,
		"rendered_at", p.RenderedAt.UTC().Format(time.RFC3339Nano),
	).Err()
}

// Purge deletes every page of this site.
func (s *RedisPageStore) Purge(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Close closes the connection pool.
func (s *RedisPageStore) Close() error {
	return s.client.Close()
}
