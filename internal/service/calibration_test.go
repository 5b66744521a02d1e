package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-safety-engine/internal/domain"
)

// memorySink collects flushed samples in memory.
type memorySink struct {
	mu      sync.Mutex
	stored  map[domain.QueryCategory][]CalibrationSample
	failing bool
}

func newMemorySink() *memorySink {
	return &memorySink{stored: make(map[domain.QueryCategory][]CalibrationSample)}
}

func (s *memorySink) StoreSamples(_ context.Context, category domain.QueryCategory, samples []CalibrationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("sink unavailable")
	}
	s.stored[category] = append(s.stored[category], samples...)
	return nil
}

func TestCalibrationTrackerRecordAndOutcome(t *testing.T) {
	tracker := NewCalibrationTracker(nil, testLogger())

	tracker.Record(domain.CATEGORY_DIAGNOSIS, 0.8)
	tracker.Record(domain.CATEGORY_DIAGNOSIS, 0.6)
	assert.Equal(t, 2, tracker.Len(domain.CATEGORY_DIAGNOSIS))
	assert.Equal(t, 0, tracker.Len(domain.CATEGORY_GENERAL))

	assert.True(t, tracker.RecordOutcome(domain.CATEGORY_DIAGNOSIS, 0.7))
	assert.True(t, tracker.RecordOutcome(domain.CATEGORY_DIAGNOSIS, 0.5))
	// Every sample already has an outcome
	assert.False(t, tracker.RecordOutcome(domain.CATEGORY_DIAGNOSIS, 0.9))
	assert.False(t, tracker.RecordOutcome(domain.CATEGORY_GENERAL, 0.9))
}

func TestCalibrationTrackerFlushMovesSamplesToSink(t *testing.T) {
	sink := newMemorySink()
	tracker := NewCalibrationTracker(sink, testLogger())

	tracker.Record(domain.CATEGORY_TREATMENT, 0.9)
	tracker.Record(domain.CATEGORY_MEDICATION, 0.4)

	require.NoError(t, tracker.Flush(context.Background()))
	assert.Equal(t, 0, tracker.Len(domain.CATEGORY_TREATMENT))
	assert.Equal(t, 0, tracker.Len(domain.CATEGORY_MEDICATION))
	assert.Len(t, sink.stored[domain.CATEGORY_TREATMENT], 1)
	assert.Len(t, sink.stored[domain.CATEGORY_MEDICATION], 1)
}

func TestCalibrationTrackerFlushFailureRetainsSamples(t *testing.T) {
	sink := newMemorySink()
	sink.failing = true
	tracker := NewCalibrationTracker(sink, testLogger())

	tracker.Record(domain.CATEGORY_GENERAL, 0.5)
	assert.Error(t, tracker.Flush(context.Background()))
	assert.Equal(t, 1, tracker.Len(domain.CATEGORY_GENERAL))

	// Once the sink recovers the retained samples flush through
	sink.mu.Lock()
	sink.failing = false
	sink.mu.Unlock()
	require.NoError(t, tracker.Flush(context.Background()))
	assert.Equal(t, 0, tracker.Len(domain.CATEGORY_GENERAL))
	assert.Len(t, sink.stored[domain.CATEGORY_GENERAL], 1)
}

func TestCalibrationTrackerFlushWithoutSinkDiscards(t *testing.T) {
	tracker := NewCalibrationTracker(nil, testLogger())
	tracker.Record(domain.CATEGORY_GENERAL, 0.5)

	require.NoError(t, tracker.Flush(context.Background()))
	assert.Equal(t, 0, tracker.Len(domain.CATEGORY_GENERAL))
}
