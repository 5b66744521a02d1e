package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// CalibrationSample pairs a predicted confidence with the actual outcome
// reported later. Actual is negative until an outcome arrives.
type CalibrationSample struct {
	Predicted  float64   `json:"predicted"`
	Actual     float64   `json:"actual"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CalibrationSink receives flushed calibration samples for offline accuracy
// reporting.
type CalibrationSink interface {
	StoreSamples(ctx context.Context, category domain.QueryCategory, samples []CalibrationSample) error
}

// RedisCalibrationSink appends flushed samples to per-category Redis lists.
type RedisCalibrationSink struct {
	client *redis.Client
	prefix string
}

// NewRedisCalibrationSink creates a sink writing under the given key prefix.
func NewRedisCalibrationSink(client *redis.Client, prefix string) *RedisCalibrationSink {
	if prefix == "" {
		prefix = "calibration"
	}
	return &RedisCalibrationSink{client: client, prefix: prefix}
}

// StoreSamples pushes the samples, JSON-encoded, onto the category's list.
func (s *RedisCalibrationSink) StoreSamples(ctx context.Context, category domain.QueryCategory, samples []CalibrationSample) error {
	values := make([]interface{}, 0, len(samples))
	for _, sample := range samples {
		encoded, err := json.Marshal(sample)
		if err != nil {
			return fmt.Errorf("failed to encode calibration sample: %w", err)
		}
		values = append(values, encoded)
	}
	key := fmt.Sprintf("%s:%s", s.prefix, category)
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to push calibration samples: %w", err)
	}
	return nil
}

// CalibrationTracker accumulates predicted-vs-actual confidence samples per
// query category. The in-memory structure is append-only and unbounded, so
// deployments flush it periodically to the configured sink.
type CalibrationTracker struct {
	mu      sync.Mutex
	samples map[domain.QueryCategory][]CalibrationSample
	sink    CalibrationSink
	logger  *logrus.Logger
}

// NewCalibrationTracker creates a tracker. The sink may be nil, in which
// case Flush discards the accumulated samples.
func NewCalibrationTracker(sink CalibrationSink, logger *logrus.Logger) *CalibrationTracker {
	return &CalibrationTracker{
		samples: make(map[domain.QueryCategory][]CalibrationSample),
		sink:    sink,
		logger:  logger,
	}
}

// Record appends a predicted confidence for the category.
func (t *CalibrationTracker) Record(category domain.QueryCategory, predicted float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples[category] = append(t.samples[category], CalibrationSample{
		Predicted:  predicted,
		Actual:     -1,
		RecordedAt: time.Now().UTC(),
	})
}

// RecordOutcome attaches an actual outcome to the most recent sample of the
// category that has none yet.
func (t *CalibrationTracker) RecordOutcome(category domain.QueryCategory, actual float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	samples := t.samples[category]
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i].Actual < 0 {
			samples[i].Actual = actual
			return true
		}
	}
	return false
}

// Len returns the number of samples held for the category.
func (t *CalibrationTracker) Len(category domain.QueryCategory) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples[category])
}

// Flush hands the accumulated samples to the sink and clears memory. Samples
// are retained when the sink fails so that no calibration data is lost.
func (t *CalibrationTracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	pending := t.samples
	t.samples = make(map[domain.QueryCategory][]CalibrationSample)
	t.mu.Unlock()

	if t.sink == nil {
		return nil
	}

	for category, samples := range pending {
		if len(samples) == 0 {
			continue
		}
		if err := t.sink.StoreSamples(ctx, category, samples); err != nil {
			// Put the unsent samples back
			t.mu.Lock()
			t.samples[category] = append(samples, t.samples[category]...)
			t.mu.Unlock()
			return fmt.Errorf("calibration flush for %s failed: %w", category, err)
		}
		t.logger.WithFields(logrus.Fields{
			"category": category.String(),
			"samples":  len(samples),
		}).Debug("Calibration samples flushed")
	}
	return nil
}

// FlushLoop flushes on the given interval until the context is cancelled,
// then performs one final flush.
func (t *CalibrationTracker) FlushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := t.Flush(context.Background()); err != nil {
				t.logger.WithError(err).Warn("Final calibration flush failed")
			}
			return
		case <-ticker.C:
			if err := t.Flush(ctx); err != nil {
				t.logger.WithError(err).Warn("Calibration flush failed")
			}
		}
	}
}
