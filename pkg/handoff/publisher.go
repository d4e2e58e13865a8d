package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"support-assistant/pkg/metrics"
	"support-assistant/pkg/models"
)

// streamMaxLen bounds the stream; acknowledged events are not needed afterwards
const streamMaxLen = 10000

// Sink receives escalation hand-off events
type Sink interface {
	Publish(ctx context.Context, event models.HandoffEvent) error
}

// Noop drops events. It is used when no Redis is configured.
type Noop struct{}

func (Noop) Publish(context.Context, models.HandoffEvent) error { return nil }

// Publisher appends hand-off events to a Redis stream read by a consumer group
type Publisher struct {
	rdb     *redis.Client
	stream  string
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func NewPublisher(rdb *redis.Client, stream string, logger *logrus.Logger, m *metrics.Metrics) *Publisher {
	return &Publisher{
		rdb:     rdb,
		stream:  stream,
		logger:  logger,
		metrics: m,
	}
}

// ensureGroup creates the stream and its consumer group. Existing groups are left alone.
func ensureGroup(ctx context.Context, rdb *redis.Client, stream, group string, logger *logrus.Logger) error {
	// Start at 0 so events published before the group existed are still delivered
	err := rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"stream":         stream,
		"consumer_group": group,
	}).Info("Consumer group ready")
	return nil
}

func (p *Publisher) Publish(ctx context.Context, event models.HandoffEvent) error {
	if event.Attempt == 0 {
		event.Attempt = 1
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal hand-off event: %w", err)
	}

	messageID, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"escalation_id":   event.EscalationID,
			"conversation_id": event.ConversationID,
			"reason":          string(event.Reason),
			"created_at":      event.CreatedAt.UnixMilli(),
			"attempt":         event.Attempt,
			"event_data":      string(eventData),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to add message to stream: %w", err)
	}

	p.metrics.HandoffEventsPublished.Inc()
	p.logger.WithFields(logrus.Fields{
		"conversation_id": event.ConversationID,
		"escalation_id":   event.EscalationID,
		"reason":          event.Reason,
		"message_id":      messageID,
	}).Debug("Published hand-off event to stream")

	return nil
}
