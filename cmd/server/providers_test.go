package main

import (
	"testing"
	"time"

	"github.com/Baaaki/devmarket/internal/broker"
	"github.com/Baaaki/devmarket/internal/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func testConfig(redisURL string) *config.Config {
	return &config.Config{
		RedisURL:             redisURL,
		RateLimitMaxRequests: 10,
		RateLimitWindow:      time.Minute,
	}
}

func TestProvideRedis_Unreachable(t *testing.T) {
	for _, url := range []string{"", "redis://127.0.0.1:1/0"} {
		lc := fxtest.NewLifecycle(t)
		cfg := testConfig(url)

		client, err := provideRedis(lc, cfg)
		require.NoError(t, err)
		assert.Nil(t, client)

		assert.IsType(t, &broker.LocalNotificationBroker{}, provideBroker(client))
		assert.Nil(t, provideRateLimiter(cfg, client))
	}
}

func TestProvideRedis_Connected(t *testing.T) {
	mr := miniredis.RunT(t)
	lc := fxtest.NewLifecycle(t)
	cfg := testConfig("redis://" + mr.Addr())

	client, err := provideRedis(lc, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.IsType(t, &broker.RedisNotificationBroker{}, provideBroker(client))
	assert.NotNil(t, provideRateLimiter(cfg, client))

	lc.RequireStart().RequireStop()
}
