package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_TEST_ADDR", "")
	assert.Equal(t, "localhost:6379", GetTestRedisOptions("").Addr)
	assert.Equal(t, 1, GetTestRedisOptions("").DB)

	t.Setenv("REDIS_TEST_ADDR", "localhost:6380")
	assert.Equal(t, "localhost:6380", GetTestRedisOptions("").Addr)
	assert.Equal(t, "10.0.0.1:6379", GetTestRedisOptions("10.0.0.1:6379").Addr)
}

func TestNewMiniredis(t *testing.T) {
	client, s := NewMiniredis(t)

	require.NoError(t, client.Set(context.Background(), "ledger:probe", "1", 0).Err())
	got, err := s.Get("ledger:probe")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}
