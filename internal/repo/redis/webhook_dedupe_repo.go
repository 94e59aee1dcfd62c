package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const webhookEventPrefix = "webhook_events:"

// WebhookDedupeRepo remembers gateway event ids whose deliveries were fully
// handled, so repeated deliveries can be labeled as duplicates. It is an
// annotation only: the conditional status update stays correct without it.
type WebhookDedupeRepo struct {
	client *goredis.Client
}

func NewWebhookDedupeRepo(client *goredis.Client) *WebhookDedupeRepo {
	return &WebhookDedupeRepo{client: client}
}

// MarkEventSeen records eventID and reports whether this delivery is the
// first one observed.
func (r *WebhookDedupeRepo) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return true, fmt.Errorf("redis client is nil")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return true, fmt.Errorf("event id is required")
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}

	firstSeen, err := r.client.SetNX(ctx, webhookEventKey(eventID), 1, ttl).Result()
	if err != nil {
		return true, fmt.Errorf("mark webhook event seen: %w", err)
	}

	return firstSeen, nil
}

func webhookEventKey(eventID string) string {
	return webhookEventPrefix + eventID
}
