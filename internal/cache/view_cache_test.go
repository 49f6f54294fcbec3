package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewViewCache(client)
	ctx := context.Background()
	project := uuid.New()

	first, err := c.MarkSeen(ctx, project, "device-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := c.MarkSeen(ctx, project, "device-a", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	other, err := c.MarkSeen(ctx, project, "device-b", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, c.Forget(ctx, project, "device-a"))
	afterForget, err := c.MarkSeen(ctx, project, "device-a", time.Hour)
	require.NoError(t, err)
	assert.True(t, afterForget)

	mr.FastForward(2 * time.Hour)
	expired, err := c.MarkSeen(ctx, project, "device-b", time.Hour)
	require.NoError(t, err)
	assert.True(t, expired)
}
