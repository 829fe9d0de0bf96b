package integration

import (
	"context"
	"os"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	rediscache "github.com/marketgrid/searchkit/internal/cache/redis"
)

var testCache *rediscache.Cache

func TestMain(m *testing.M) {
	if os.Getenv("SHORT_TESTS") == "1" {
		os.Exit(0)
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		panic(err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		panic(err)
	}

	testCache, err = rediscache.New(ctx, rediscache.Config{Addr: endpoint}, zap.NewNop())
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testCache.Close()
	container.Terminate(ctx)

	os.Exit(code)
}

func TestRedisCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	if err := testCache.Set(ctx, "search:abc", []byte(`{"results":[]}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	val, ok, err := testCache.Get(ctx, "search:abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want hit")
	}
	if string(val) != `{"results":[]}` {
		t.Errorf("Get() = %q, want stored payload", val)
	}

	_, ok, err = testCache.Get(ctx, "search:missing")
	if err != nil {
		t.Fatalf("Get() miss error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for missing key, want miss")
	}

	if err := testCache.Delete(ctx, "search:abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, ok, _ = testCache.Get(ctx, "search:abc")
	if ok {
		t.Error("Get() ok = true after Delete, want miss")
	}
}

func TestRedisCache_Integration_TTLExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	if err := testCache.Set(ctx, "extract:basic:https://example.com", []byte(`{}`), time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	_, ok, err := testCache.Get(ctx, "extract:basic:https://example.com")
	if err != nil || !ok {
		t.Fatalf("Get() before expiry = (%v, %v), want hit", ok, err)
	}

	time.Sleep(1500 * time.Millisecond)

	_, ok, err = testCache.Get(ctx, "extract:basic:https://example.com")
	if err != nil {
		t.Fatalf("Get() after expiry error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true after TTL expiry, want miss")
	}
}
