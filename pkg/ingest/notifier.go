package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// PubsubNotifierConfig holds configuration for the Pub/Sub cycle notifier.
type PubsubNotifierConfig struct {
	TopicID string
	// TopicExistsTimeout bounds the existence check at construction time.
	TopicExistsTimeout time.Duration
	// PublishConfirmationTimeout bounds the wait for publish confirmation.
	PublishConfirmationTimeout time.Duration
}

// NewPubsubNotifierDefaults provides a config with sensible defaults.
func NewPubsubNotifierDefaults() PubsubNotifierConfig {
	return PubsubNotifierConfig{
		TopicExistsTimeout:         15 * time.Second,
		PublishConfirmationTimeout: 20 * time.Second,
	}
}

// PubsubNotifier publishes a JSON cycle summary to a Pub/Sub topic after
// every completed cycle. It lets operational tooling observe ingestion
// outcomes without reading the watermark document while a cycle runs.
type PubsubNotifier struct {
	topic                      *pubsub.Topic
	logger                     zerolog.Logger
	publishConfirmationTimeout time.Duration
}

// NewPubsubNotifier creates a notifier over an injected Pub/Sub client. It
// validates the topic's existence before returning.
func NewPubsubNotifier(
	ctx context.Context,
	cfg PubsubNotifierConfig,
	client *pubsub.Client,
	logger zerolog.Logger,
) (*PubsubNotifier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client cannot be nil")
	}
	if cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub topic id is required")
	}
	if cfg.TopicExistsTimeout <= 0 {
		cfg.TopicExistsTimeout = 15 * time.Second
	}
	if cfg.PublishConfirmationTimeout <= 0 {
		cfg.PublishConfirmationTimeout = 20 * time.Second
	}

	topic := client.Topic(cfg.TopicID)
	existsCtx, cancel := context.WithTimeout(ctx, cfg.TopicExistsTimeout)
	defer cancel()
	exists, err := topic.Exists(existsCtx)
	if err != nil {
		return nil, fmt.Errorf("check pubsub topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		return nil, fmt.Errorf("pubsub topic %s does not exist", cfg.TopicID)
	}

	return &PubsubNotifier{
		topic:                      topic,
		logger:                     logger.With().Str("component", "PubsubNotifier").Str("topic_id", cfg.TopicID).Logger(),
		publishConfirmationTimeout: cfg.PublishConfirmationTimeout,
	}, nil
}

// NotifyCycle publishes the summary and waits for server confirmation.
func (n *PubsubNotifier) NotifyCycle(ctx context.Context, result CycleResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cycle summary: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, n.publishConfirmationTimeout)
	defer cancel()
	res := n.topic.Publish(publishCtx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"cycle_id": result.CycleID,
			"success":  fmt.Sprintf("%t", result.Success),
		},
	})
	if _, err := res.Get(publishCtx); err != nil {
		return fmt.Errorf("publish cycle summary: %w", err)
	}

	n.logger.Debug().Str("cycle_id", result.CycleID).Msg("Published cycle summary.")
	return nil
}

// Stop flushes any pending publishes. Call it before discarding the notifier.
func (n *PubsubNotifier) Stop() {
	n.topic.Stop()
}
