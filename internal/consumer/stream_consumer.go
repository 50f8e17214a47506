package consumer

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/config"
	"github.com/tahahayali/type-int--disasterRecovery/internal/redis"
	"github.com/tahahayali/type-int--disasterRecovery/internal/service"
)

// StreamConsumer drains the Redis frame stream through the ingestion
// pipeline. Frames arrive from the MQTT gateway; each is processed as a
// single-element batch so the pipeline's per-message error reporting
// carries over, with errors logged instead of returned.
type StreamConsumer struct {
	cfg         *config.RedisConfig
	redisClient *goredis.Client
	pipeline    *service.IngestionPipeline
	logger      *zap.Logger
}

// NewStreamConsumer creates a consumer for the configured stream and group.
func NewStreamConsumer(cfg *config.RedisConfig, redisClient *goredis.Client, pipeline *service.IngestionPipeline, logger *zap.Logger) *StreamConsumer {
	return &StreamConsumer{
		cfg:         cfg,
		redisClient: redisClient,
		pipeline:    pipeline,
		logger:      logger,
	}
}

// Start runs the consume loop until ctx is cancelled, backing off
// exponentially (1s to 30s) when the stream read itself fails.
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := redis.CreateConsumerGroup(ctx, c.redisClient, c.cfg.Stream, c.cfg.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", c.cfg.Stream),
		zap.String("consumer_group", c.cfg.ConsumerGroup),
		zap.String("consumer_name", c.cfg.ConsumerName),
	)

	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stream consumer stopped")
			return nil
		default:
			if err := c.consumeOnce(ctx); err != nil {
				c.logger.Error("Failed to consume frame stream",
					zap.Error(err),
					zap.Duration("backoff", backoff),
				)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
					backoff *= 2
					if backoff > maxBackoff {
						backoff = maxBackoff
					}
				}
				continue
			}
			backoff = time.Second
		}
	}
}

// consumeOnce reads one batch from the stream and feeds each frame through
// the pipeline. Per-frame failures are logged and acked; only a stream
// read failure propagates to the backoff loop.
func (c *StreamConsumer) consumeOnce(ctx context.Context) error {
	messages, err := redis.ReadFromStream(
		ctx,
		c.redisClient,
		c.cfg.Stream,
		c.cfg.ConsumerGroup,
		c.cfg.ConsumerName,
		c.cfg.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream %s: %w", c.cfg.Stream, err)
	}

	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			// Store unavailability: leave the entry pending so a later
			// read retries it once the store is back.
			c.logger.Error("Failed to process frame",
				zap.String("entry_id", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if err := redis.AckMessage(ctx, c.redisClient, c.cfg.Stream, c.cfg.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack stream entry",
				zap.String("entry_id", msg.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (c *StreamConsumer) processMessage(ctx context.Context, msg redis.StreamMessage) error {
	frame, ok := msg.Values["frame"].(string)
	if !ok || frame == "" {
		// A stream entry without a frame is a gateway bug; ack side
		// handles it as processed so it does not loop forever.
		c.logger.Warn("Stream entry has no frame value", zap.String("entry_id", msg.ID))
		return nil
	}

	result, err := c.pipeline.Ingest(ctx, []string{frame})
	if err != nil {
		return err
	}
	for _, ingestErr := range result.Errors {
		c.logger.Warn("Rejected stream frame",
			zap.String("entry_id", msg.ID),
			zap.String("reason", ingestErr.Reason),
		)
	}
	return nil
}
