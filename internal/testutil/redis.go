package testutil

import (
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// GetTestRedisOptions returns Redis options for addr. An empty addr falls back
// to REDIS_TEST_ADDR and then to a local instance on DB 1.
func GetTestRedisOptions(addr string) *redis.Options {
	if addr == "" {
		addr = os.Getenv("REDIS_TEST_ADDR")
	}
	if addr == "" {
		addr = "localhost:6379" // fallback for local development
	}

	return &redis.Options{
		Addr: addr,
		DB:   1, // Use test database
	}
}

// NewMiniredis starts an in-memory Redis for the duration of the test and
// returns a client connected to it. Both are closed on cleanup.
func NewMiniredis(t testing.TB) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	opts := GetTestRedisOptions(s.Addr())
	opts.DB = 0
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client, s
}
