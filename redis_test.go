package spacetraveling

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func setupRedisStore(t *testing.T) *RedisPageStore {
	t.Helper()
	rawURL := os.Getenv("REDIS_URL")
	if rawURL == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisPageStore(context.Background(), rawURL, "spacetraveling-test-"+t.Name())
	if err != nil {
		t.Fatalf("NewRedisPageStore: %v", err)
	}
	t.Cleanup(func() {
		s.Purge(context.Background())
		s.Close()
	})
	return s
}

func TestRedisPageStore(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()
	at := time.Date(2021, time.March, 15, 19, 25, 0, 0, time.UTC)

	if _, err := s.GetPage(ctx, "/"); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("err = %v, want ErrPageNotFound", err)
	}
	if err := s.PutPage(ctx, "/", Page{HTML: []byte("home"), RenderedAt: at}); err != nil {
		t.Fatalf("PutPage: %v", err)
	}
	got, err := s.GetPage(ctx, "/")
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if string(got.HTML) != "home" || !got.RenderedAt.Equal(at) {
		t.Errorf("got %+v", got)
	}
	if err := s.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := s.GetPage(ctx, "/"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("page survived purge: %v", err)
	}
}

func TestRedisPageStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisPageStore(context.Background(), "not a url", "x"); err == nil {
		t.Error("expected error for malformed url")
	}
}
