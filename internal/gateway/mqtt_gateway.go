package gateway

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/config"
	"github.com/tahahayali/type-int--disasterRecovery/internal/mqtt"
	"github.com/tahahayali/type-int--disasterRecovery/internal/redis"
	"github.com/tahahayali/type-int--disasterRecovery/internal/wire"
)

// Gateway bridges field gateways publishing encoded frames over MQTT onto
// the Redis frame stream. Frames are validated just enough to keep garbage
// off the stream; the full decode happens in the pipeline consumer.
type Gateway struct {
	mqttClient  *mqtt.Client
	redisClient *goredis.Client
	topic       string
	qos         byte
	stream      string
	logger      *zap.Logger
}

// NewGateway creates a gateway for the configured topic and stream.
func NewGateway(mqttClient *mqtt.Client, redisClient *goredis.Client, cfg *config.Config, logger *zap.Logger) *Gateway {
	return &Gateway{
		mqttClient:  mqttClient,
		redisClient: redisClient,
		topic:       cfg.MQTT.Topic,
		qos:         cfg.MQTT.QoS,
		stream:      cfg.Redis.Stream,
		logger:      logger,
	}
}

// Start subscribes to the gateway topic and blocks until ctx is cancelled.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.mqttClient.Subscribe(g.topic, g.qos, g.HandleFrame); err != nil {
		return fmt.Errorf("failed to subscribe to gateway topic: %w", err)
	}

	g.logger.Info("MQTT gateway started",
		zap.String("topic", g.topic),
		zap.String("stream", g.stream),
	)

	<-ctx.Done()
	g.logger.Info("MQTT gateway stopped")
	return nil
}

// HandleFrame processes one gateway publish: a single encoded frame or a
// JSON array of them. Valid-looking frames go onto the stream; malformed
// ones are logged and dropped so one bad gateway cannot stall intake.
func (g *Gateway) HandleFrame(topic string, payload []byte) error {
	frames, err := parseFrames(payload)
	if err != nil {
		return fmt.Errorf("failed to parse gateway payload: %w", err)
	}

	published := 0
	for _, frame := range frames {
		if !looksLikeFrame(frame) {
			g.logger.Warn("Dropped malformed frame",
				zap.String("topic", topic),
				zap.Int("length", len(frame)),
			)
			continue
		}

		_, err := redis.PublishToStream(context.Background(), g.redisClient, g.stream, map[string]interface{}{
			"frame":       frame,
			"topic":       topic,
			"received_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("failed to publish frame to stream: %w", err)
		}
		published++
	}

	if published > 0 {
		g.logger.Debug("Forwarded gateway frames",
			zap.String("topic", topic),
			zap.Int("count", published),
		)
	}
	return nil
}

// parseFrames accepts either one frame as plain text or a JSON array of
// frames.
func parseFrames(payload []byte) ([]string, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil, nil
	}

	if strings.HasPrefix(text, "[") {
		var frames []string
		if err := json.Unmarshal([]byte(text), &frames); err != nil {
			return nil, err
		}
		return frames, nil
	}
	return []string{text}, nil
}

// looksLikeFrame checks that the text decodes (hex or base64) to exactly
// one 20-byte envelope.
func looksLikeFrame(frame string) bool {
	if raw, err := hex.DecodeString(frame); err == nil {
		return len(raw) == wire.MessageLength
	}
	if raw, err := base64.StdEncoding.DecodeString(frame); err == nil {
		return len(raw) == wire.MessageLength
	}
	return false
}
