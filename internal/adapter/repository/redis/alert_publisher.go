package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/iho/bistroledger/internal/domain"
)

// DefaultAlertChannel is the pub/sub channel advisory alerts go to.
const DefaultAlertChannel = "bistroledger:alerts"

// AlertPublisher implements usecase.Notifier over Redis pub/sub.
type AlertPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewAlertPublisher creates a new AlertPublisher. An empty channel uses
// DefaultAlertChannel.
func NewAlertPublisher(client redis.UniversalClient, channel string) *AlertPublisher {
	if channel == "" {
		channel = DefaultAlertChannel
	}
	return &AlertPublisher{client: client, channel: channel}
}

// Notify publishes the alert as JSON.
func (p *AlertPublisher) Notify(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
