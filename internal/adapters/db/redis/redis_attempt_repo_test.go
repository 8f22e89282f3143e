package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
)

func newRepo(t *testing.T, max int, window time.Duration) (*RedisAttemptRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redisv9.NewClient(&redisv9.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAttemptRepo(client, max, window), mr
}

func TestRedisAttemptRepo_AllowedWhenAbsent(t *testing.T) {
	repo, _ := newRepo(t, 3, time.Minute)

	ok, err := repo.Allowed(context.Background(), "k")
	if err != nil {
		t.Fatalf("Allowed err: %v", err)
	}
	if !ok {
		t.Fatal("absent key must be allowed")
	}
}

func TestRedisAttemptRepo_BlocksAfterMax(t *testing.T) {
	repo, _ := newRepo(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := repo.Allowed(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("attempt %d should be allowed: ok=%v err=%v", i, ok, err)
		}
		if err := repo.Fail(ctx, "k"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}

	ok, err := repo.Allowed(ctx, "k")
	if err != nil {
		t.Fatalf("Allowed err: %v", err)
	}
	if ok {
		t.Fatal("fourth attempt must be blocked")
	}

	other, _ := repo.Allowed(ctx, "other")
	if !other {
		t.Fatal("keys must be independent")
	}
}

func TestRedisAttemptRepo_WindowExpires(t *testing.T) {
	repo, mr := newRepo(t, 1, time.Minute)
	ctx := context.Background()

	if err := repo.Fail(ctx, "k"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if ttl := mr.TTL(attemptKey("k")); ttl != time.Minute {
		t.Fatalf("ttl want 1m, got %v", ttl)
	}
	if ok, _ := repo.Allowed(ctx, "k"); ok {
		t.Fatal("should be blocked inside the window")
	}

	mr.FastForward(time.Minute + time.Second)
	if ok, _ := repo.Allowed(ctx, "k"); !ok {
		t.Fatal("should be allowed after the window")
	}
}

func TestRedisAttemptRepo_Reset(t *testing.T) {
	repo, _ := newRepo(t, 1, time.Minute)
	ctx := context.Background()

	_ = repo.Fail(ctx, "k")
	if err := repo.Reset(ctx, "k"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if ok, _ := repo.Allowed(ctx, "k"); !ok {
		t.Fatal("reset key must be allowed")
	}
}

func TestRedisAttemptRepo_FailsOpenOnError(t *testing.T) {
	repo, mr := newRepo(t, 1, time.Minute)
	mr.Close()

	ok, err := repo.Allowed(context.Background(), "k")
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if !ok {
		t.Fatal("limiter must fail open")
	}
}

func TestRedisAttemptRepo_LaterFailuresKeepWindow(t *testing.T) {
	repo, mr := newRepo(t, 5, time.Minute)
	ctx := context.Background()

	if err := repo.Fail(ctx, "k"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	mr.FastForward(20 * time.Second)
	if err := repo.Fail(ctx, "k"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	if got, _ := mr.Get(attemptKey("k")); got != "2" {
		t.Fatalf("count want 2, got %q", got)
	}
	if ttl := mr.TTL(attemptKey("k")); ttl != 40*time.Second {
		t.Fatalf("ttl want 40s, got %v", ttl)
	}
}

func TestRedisAttemptRepo_FailNeverLeavesCounterWithoutTTL(t *testing.T) {
	repo, mr := newRepo(t, 5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.Fail(ctx, "k"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		if ttl := mr.TTL(attemptKey("k")); ttl <= 0 {
			t.Fatalf("failure %d left key without ttl", i)
		}
	}

	mr.Close()
	if err := repo.Fail(ctx, "k"); err == nil {
		t.Fatal("expected error from closed server")
	}
}
