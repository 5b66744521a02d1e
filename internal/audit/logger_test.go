package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-safety-engine/internal/domain"
)

func newCapturingLogger(bufferSize int) (*Logger, *test.Hook) {
	sink, hook := test.NewNullLogger()
	sink.SetLevel(logrus.DebugLevel)
	return NewLogger(sink, bufferSize), hook
}

func TestLoggerWritesQueuedEntries(t *testing.T) {
	logger, hook := newCapturingLogger(16)

	logger.LogAssessmentStart(domain.AssessmentRecord{
		RequestID: "req-1",
		Operation: "safety_check",
		Timestamp: time.Now(),
	})
	logger.LogAssessmentComplete(domain.AssessmentRecord{
		RequestID: "req-1",
		Operation: "safety_check",
		Fields:    map[string]any{"passed": true},
	})
	logger.LogError("collaborator failed", errors.New("boom"))
	logger.LogPerformance("safety_check", 25*time.Millisecond, &domain.TokenUsage{Total: 100}, nil)

	logger.Close()

	entries := hook.AllEntries()
	require.Len(t, entries, 4)
	assert.Equal(t, "Assessment started", entries[0].Message)
	assert.Equal(t, "req-1", entries[0].Data["request_id"])
	assert.Equal(t, "Assessment complete", entries[1].Message)
	assert.Equal(t, true, entries[1].Data["passed"])
	assert.Equal(t, logrus.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].Data["error"])
	assert.Equal(t, int64(25), entries[3].Data["elapsed_ms"])
	assert.Equal(t, 100, entries[3].Data["tokens_total"])
}

func TestLoggerNeverBlocksWhenFull(t *testing.T) {
	// Sink that blocks until released, so the queue fills up
	release := make(chan struct{})
	sink := logrus.New()
	sink.SetOutput(blockingWriter{release: release})

	logger := NewLogger(sink, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			logger.LogError("entry", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("logging blocked on a full queue")
	}

	close(release)
	logger.Close()
	assert.Greater(t, logger.Dropped(), uint64(0))
}

func TestLoggerCloseIsIdempotentAndRejectsLateEntries(t *testing.T) {
	logger, hook := newCapturingLogger(16)

	logger.LogError("before close", nil)
	logger.Close()
	logger.Close()

	// Entries after close are discarded silently
	logger.LogError("after close", nil)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "before close", hook.LastEntry().Message)
}

// blockingWriter blocks every write until released.
type blockingWriter struct {
	release chan struct{}
}

func (w blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	return len(p), nil
}
