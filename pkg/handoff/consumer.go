package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"support-assistant/pkg/metrics"
	"support-assistant/pkg/models"
)

const (
	readCount      = 10
	readBlock      = time.Second
	recoveryPeriod = 30 * time.Second
	claimMinIdle   = time.Minute
	maxAttempts    = 5
)

// Notifier delivers a hand-off to whoever picks up escalated conversations
type Notifier interface {
	Notify(ctx context.Context, event models.HandoffEvent) error
}

// LogNotifier records hand-offs in the service log
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n LogNotifier) Notify(_ context.Context, event models.HandoffEvent) error {
	n.Logger.WithFields(logrus.Fields{
		"conversation_id": event.ConversationID,
		"escalation_id":   event.EscalationID,
		"reason":          event.Reason,
		"attempt":         event.Attempt,
	}).Info("Conversation handed off to a human agent")
	return nil
}

// Consumer reads hand-off events as one member of a consumer group. Events
// are acknowledged only after the notifier succeeds; failures stay pending and
// are reclaimed by the recovery loop.
type Consumer struct {
	rdb          *redis.Client
	stream       string
	group        string
	consumerName string
	notifier     Notifier
	logger       *logrus.Logger
	metrics      *metrics.Metrics

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewConsumer(rdb *redis.Client, stream, group, podID string, notifier Notifier, logger *logrus.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		rdb:          rdb,
		stream:       stream,
		group:        group,
		consumerName: fmt.Sprintf("consumer-%s", podID),
		notifier:     notifier,
		logger:       logger,
		metrics:      m,
		stopCh:       make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := ensureGroup(ctx, c.rdb, c.stream, c.group, c.logger); err != nil {
		return err
	}

	c.logger.WithField("consumer_name", c.consumerName).Info("Starting hand-off consumer")

	c.wg.Add(2)
	go c.consumeLoop(ctx)
	go c.recoveryLoop(ctx)
	return nil
}

func (c *Consumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
			c.consumeBatch(ctx, readBlock)
		}
	}
}

// consumeBatch reads and processes new events. A negative block returns immediately.
func (c *Consumer) consumeBatch(ctx context.Context, block time.Duration) int {
	start := time.Now()

	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumerName,
		Streams:  []string{c.stream, ">"},
		Count:    readCount,
		Block:    block,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			c.logger.WithError(err).Error("Failed to read from stream")
			// Avoid a hot loop while Redis is unavailable
			select {
			case <-ctx.Done():
			case <-c.stopCh:
			case <-time.After(readBlock):
			}
		}
		return 0
	}

	processed := 0
	for _, stream := range streams {
		for _, message := range stream.Messages {
			c.processMessage(ctx, message)
			processed++
		}
	}

	if processed > 0 {
		c.metrics.HandoffProcessDuration.Observe(time.Since(start).Seconds())
	}
	return processed
}

func (c *Consumer) processMessage(ctx context.Context, message redis.XMessage) {
	event, err := parseEvent(message)
	if err != nil {
		c.logger.WithError(err).WithField("message_id", message.ID).Error("Failed to parse hand-off event")
		c.metrics.HandoffEventsProcessed.WithLabelValues("parse_error").Inc()
		// Acknowledge so a malformed event is not redelivered forever
		c.acknowledge(ctx, message.ID)
		return
	}

	if err := c.notifier.Notify(ctx, event); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": event.ConversationID,
			"escalation_id":   event.EscalationID,
			"message_id":      message.ID,
		}).Error("Failed to deliver hand-off")
		c.metrics.HandoffEventsProcessed.WithLabelValues("notify_error").Inc()
		return
	}

	if err := c.acknowledge(ctx, message.ID); err != nil {
		return
	}

	c.metrics.HandoffEventsProcessed.WithLabelValues("success").Inc()
	c.logger.WithFields(logrus.Fields{
		"conversation_id": event.ConversationID,
		"message_id":      message.ID,
	}).Debug("Processed hand-off event")
}

func (c *Consumer) acknowledge(ctx context.Context, messageID string) error {
	if err := c.rdb.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		c.logger.WithError(err).WithField("message_id", messageID).Error("Failed to acknowledge message")
		return err
	}
	return nil
}

func (c *Consumer) recoveryLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(recoveryPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.recoverPending(ctx, claimMinIdle)
		}
	}
}

// recoverPending claims events another consumer (or this one) left unacknowledged for minIdle
func (c *Consumer) recoverPending(ctx context.Context, minIdle time.Duration) int {
	pending, err := c.rdb.XPending(ctx, c.stream, c.group).Result()
	if err != nil {
		c.logger.WithError(err).Error("Failed to get pending messages")
		return 0
	}
	if pending.Count == 0 {
		return 0
	}

	c.logger.WithField("pending_count", pending.Count).Info("Processing pending hand-off events")

	messages, _, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Count:    readCount,
		Start:    "0-0",
	}).Result()
	if err != nil {
		c.logger.WithError(err).Error("Failed to auto-claim pending messages")
		return 0
	}

	for _, message := range messages {
		attempt := c.deliveryCount(ctx, message.ID)
		if attempt > maxAttempts {
			c.logger.WithFields(logrus.Fields{
				"message_id": message.ID,
				"attempt":    attempt,
			}).Error("Dropping hand-off event after repeated delivery failures")
			c.metrics.HandoffEventsProcessed.WithLabelValues("dropped").Inc()
			c.acknowledge(ctx, message.ID)
			continue
		}
		message.Values["attempt"] = strconv.FormatInt(attempt, 10)
		c.processMessage(ctx, message)
	}
	return len(messages)
}

// deliveryCount is how many times the group has delivered the message, including the current claim
func (c *Consumer) deliveryCount(ctx context.Context, messageID string) int64 {
	entries, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil || len(entries) == 0 {
		return 1
	}
	return entries[0].RetryCount
}

func parseEvent(message redis.XMessage) (models.HandoffEvent, error) {
	var event models.HandoffEvent

	raw, ok := message.Values["event_data"].(string)
	if !ok {
		return event, fmt.Errorf("missing event_data")
	}
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		return event, fmt.Errorf("invalid event_data: %w", err)
	}
	if event.ConversationID == "" {
		return event, fmt.Errorf("missing conversation_id")
	}

	if attemptStr, ok := message.Values["attempt"].(string); ok {
		if attempt, err := strconv.Atoi(attemptStr); err == nil {
			event.Attempt = attempt
		}
	}
	if event.Attempt == 0 {
		event.Attempt = 1
	}

	return event, nil
}
