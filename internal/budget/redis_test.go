package budget

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCounter(t *testing.T) {
	url := os.Getenv("JOBINTEL_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JOBINTEL_TEST_REDIS_URL is not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	counter := NewRedisCounter(client, "jobintel:test:"+uuid.NewString()+":")
	month := "2026-09"

	n, err := counter.Get(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	for i := 1; i <= 3; i++ {
		n, err = counter.Incr(ctx, month)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	require.NoError(t, counter.Reset(ctx, month))
	n, err = counter.Get(ctx, month)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
