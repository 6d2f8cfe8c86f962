package main

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisRepo "github.com/iho/bistroledger/internal/adapter/repository/redis"
	"github.com/iho/bistroledger/internal/infrastructure/config"
	"github.com/iho/bistroledger/internal/infrastructure/eventpublisher"
	"github.com/iho/bistroledger/internal/infrastructure/ratefeed"
)

func TestNewBackends_LogByDefault(t *testing.T) {
	cfg := &config.Config{NotifyBackend: config.NotifyLog}

	b, err := newBackends(context.Background(), cfg, nil, zerolog.Nop())
	require.NoError(t, err)
	defer b.close()

	assert.IsType(t, &eventpublisher.LogPublisher{}, b.notifier)
	assert.IsType(t, &eventpublisher.LogPublisher{}, b.publisher)
}

func TestNewBackends_RedisAlerts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := &config.Config{NotifyBackend: config.NotifyRedis, NotifyChannel: "alerts"}

	b, err := newBackends(context.Background(), cfg, client, zerolog.Nop())
	require.NoError(t, err)
	defer b.close()

	assert.IsType(t, &redisRepo.AlertPublisher{}, b.notifier)
	assert.IsType(t, &eventpublisher.LogPublisher{}, b.publisher)
}

func TestNewBackends_NATSUnreachable(t *testing.T) {
	cfg := &config.Config{NotifyBackend: config.NotifyNATS, NATSURL: "nats://127.0.0.1:1"}

	_, err := newBackends(context.Background(), cfg, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestRateSource(t *testing.T) {
	assert.Nil(t, rateSource(&config.Config{}))

	src := rateSource(&config.Config{RateFeedURL: "https://rates.example"})
	assert.IsType(t, &ratefeed.Client{}, src)
}

func TestIgnoreCanceled(t *testing.T) {
	assert.NoError(t, ignoreCanceled(context.Canceled))
	assert.NoError(t, ignoreCanceled(nil))

	boom := errors.New("boom")
	assert.ErrorIs(t, ignoreCanceled(boom), boom)
}
