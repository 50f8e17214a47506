package service

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/buffer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
	"github.com/tahahayali/type-int--disasterRecovery/internal/wire"
)

// IngestResult summarizes one processed batch.
type IngestResult struct {
	Processed int           `json:"processed"`
	Total     int           `json:"total"`
	Errors    []IngestError `json:"errors"`
}

// IngestError records why one message in a batch was rejected.
type IngestError struct {
	Index  int    `json:"index"`
	Reason string `json:"error"`
}

// IngestionPipeline turns transport-encoded wire frames into device record
// mutations and buffered location samples.
type IngestionPipeline struct {
	store  repository.RecordStore
	buffer *buffer.LocationBuffer
	logger *zap.Logger
}

// NewIngestionPipeline creates a new ingestion pipeline.
func NewIngestionPipeline(store repository.RecordStore, buf *buffer.LocationBuffer, logger *zap.Logger) *IngestionPipeline {
	return &IngestionPipeline{
		store:  store,
		buffer: buf,
		logger: logger,
	}
}

// Ingest processes a batch of hex- or base64-encoded 20-byte frames.
// Failures are per-message: a bad frame is recorded under its index and
// processing continues with the next one. Only store unavailability aborts
// the batch.
func (p *IngestionPipeline) Ingest(ctx context.Context, frames []string) (*IngestResult, error) {
	result := &IngestResult{
		Total:  len(frames),
		Errors: []IngestError{},
	}

	for i, frame := range frames {
		reason, err := p.ingestOne(ctx, frame)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			result.Errors = append(result.Errors, IngestError{Index: i, Reason: reason})
			p.logger.Warn("Rejected wire message",
				zap.Int("index", i),
				zap.String("reason", reason),
			)
			continue
		}
		result.Processed++
	}

	return result, nil
}

// ingestOne processes a single frame. A non-empty reason rejects just this
// message; a non-nil error aborts the whole batch.
func (p *IngestionPipeline) ingestOne(ctx context.Context, frame string) (string, error) {
	raw, ok := decodeTransport(frame)
	if !ok {
		return "invalid encoding: not hex or base64", nil
	}

	msg, err := wire.Decode(raw)
	if err != nil {
		return fmt.Sprintf("decode error: %v", err), nil
	}

	deviceID := wire.ResolveSenderID(msg.SenderID)

	rec, err := p.store.FindByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return fmt.Sprintf("unknown device: %s", deviceID), nil
		}
		return "", fmt.Errorf("failed to load device %s: %w", deviceID, err)
	}

	msgTime := time.Unix(int64(msg.Timestamp), 0).UTC()
	now := time.Now().UTC()

	var applyErr error
	switch msg.PayloadType {
	case wire.PayloadTypeLocation:
		applyErr = p.applyLocation(ctx, rec, msg, msgTime, now)
	case wire.PayloadTypeQuestionnaire:
		applyErr = p.applyQuestionnaire(ctx, rec, msg, now)
	case wire.PayloadTypeBattery:
		applyErr = p.applyBattery(ctx, rec, msg, msgTime, now)
	case wire.PayloadTypeText:
		applyErr = p.applyText(ctx, rec, msg, msgTime)
	case wire.PayloadTypeHeartbeat:
		applyErr = p.applyHeartbeat(ctx, rec, now)
	default:
		return fmt.Sprintf("unknown payload type: %d", msg.PayloadType), nil
	}

	if applyErr != nil {
		// The record can disappear between the lookup and the mutation.
		if errors.Is(applyErr, repository.ErrDeviceNotFound) {
			return fmt.Sprintf("unknown device: %s", deviceID), nil
		}
		return "", applyErr
	}
	return "", nil
}

// decodeTransport tries hex first, then standard base64.
func decodeTransport(frame string) ([]byte, bool) {
	if raw, err := hex.DecodeString(frame); err == nil {
		return raw, true
	}
	if raw, err := base64.StdEncoding.DecodeString(frame); err == nil {
		return raw, true
	}
	return nil, false
}

// applyLocation overwrites the record's location and puts the sample on the
// fast-path buffer for the next flush.
func (p *IngestionPipeline) applyLocation(ctx context.Context, rec *models.DeviceRecord, msg wire.Message, msgTime, now time.Time) error {
	lat, lon := wire.DecodeLocation(msg.Payload)

	if err := p.store.SetFields(ctx, rec.DeviceID, map[string]any{
		"latitude":      lat,
		"longitude":     lon,
		"location_time": msgTime,
		"updated_at":    now,
	}); err != nil {
		return err
	}

	sample := models.LocationSample{
		DeviceID:   rec.DeviceID,
		Latitude:   lat,
		Longitude:  lon,
		Type:       rec.Profile.Type,
		SampleTime: msgTime,
	}
	if rec.Battery != nil {
		sample.BatteryPercentage = rec.Battery.Percentage
	}
	if rec.Questionnaire != nil {
		sample.QuestionnaireData = *rec.Questionnaire
	}
	p.buffer.Put(sample)

	p.logger.Debug("Stored location",
		zap.String("device_id", rec.DeviceID),
		zap.Float64("latitude", lat),
		zap.Float64("longitude", lon),
	)
	return nil
}

func (p *IngestionPipeline) applyQuestionnaire(ctx context.Context, rec *models.DeviceRecord, msg wire.Message, now time.Time) error {
	return p.store.SetFields(ctx, rec.DeviceID, map[string]any{
		"questionnaire": wire.DecodeQuestionnaire(msg.Payload),
		"updated_at":    now,
	})
}

func (p *IngestionPipeline) applyBattery(ctx context.Context, rec *models.DeviceRecord, msg wire.Message, msgTime, now time.Time) error {
	pct, secs := wire.DecodeBattery(msg.Payload)
	return p.store.SetFields(ctx, rec.DeviceID, map[string]any{
		"battery_pct":  pct,
		"battery_secs": secs,
		"battery_time": msgTime,
		"updated_at":   now,
	})
}

// applyText appends the text message unless its message_id was already
// delivered. A duplicate still counts as processed.
func (p *IngestionPipeline) applyText(ctx context.Context, rec *models.DeviceRecord, msg wire.Message, msgTime time.Time) error {
	entry := models.MessageEntry{
		MessageID: msg.MessageID,
		Time:      msgTime,
		Text:      wire.DecodeText(msg.Payload),
	}

	appended, err := p.store.AppendMessage(ctx, rec.DeviceID, entry)
	if err != nil {
		return err
	}
	if !appended {
		p.logger.Debug("Duplicate message id ignored",
			zap.String("device_id", rec.DeviceID),
			zap.Uint32("message_id", msg.MessageID),
		)
	}
	return nil
}

// applyHeartbeat touches updated_at without changing any field.
func (p *IngestionPipeline) applyHeartbeat(ctx context.Context, rec *models.DeviceRecord, now time.Time) error {
	return p.store.SetFields(ctx, rec.DeviceID, map[string]any{
		"updated_at": now,
	})
}
