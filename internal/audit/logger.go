// Package audit provides the fire-and-forget assessment logger. Every
// evaluation emits start/complete/performance entries through it; a slow or
// failing sink never delays or fails the evaluation itself.
package audit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// entry is one queued audit emission.
type entry struct {
	level   logrus.Level
	message string
	fields  logrus.Fields
}

// Logger is an asynchronous AssessmentLogger over a logrus sink. Entries are
// queued on a bounded channel and written by a single background worker;
// when the queue is full the entry is dropped and counted rather than
// blocking the evaluation path.
type Logger struct {
	sink    *logrus.Logger
	queue   chan entry
	dropped uint64

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewLogger creates an audit logger with the given queue capacity and starts
// its worker.
func NewLogger(sink *logrus.Logger, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	l := &Logger{
		sink:  sink,
		queue: make(chan entry, bufferSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		l.sink.WithFields(e.fields).Log(e.level, e.message)
	}
}

// enqueue submits an entry without blocking. Full queue drops the entry.
func (l *Logger) enqueue(e entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- e:
	default:
		l.dropped++
	}
}

// LogAssessmentStart records the beginning of an evaluation.
func (l *Logger) LogAssessmentStart(record domain.AssessmentRecord) {
	l.enqueue(entry{
		level:   logrus.InfoLevel,
		message: "Assessment started",
		fields:  recordFields(record),
	})
}

// LogAssessmentComplete records the end of an evaluation.
func (l *Logger) LogAssessmentComplete(record domain.AssessmentRecord) {
	l.enqueue(entry{
		level:   logrus.InfoLevel,
		message: "Assessment complete",
		fields:  recordFields(record),
	})
}

// LogError records a non-fatal error observed during an evaluation.
func (l *Logger) LogError(message string, err error) {
	fields := logrus.Fields{}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.enqueue(entry{
		level:   logrus.ErrorLevel,
		message: message,
		fields:  fields,
	})
}

// LogPerformance records operation timing and token usage.
func (l *Logger) LogPerformance(operation string, elapsed time.Duration, tokens *domain.TokenUsage, metadata map[string]any) {
	fields := logrus.Fields{
		"operation":  operation,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	if tokens != nil {
		fields["tokens_prompt"] = tokens.Prompt
		fields["tokens_completion"] = tokens.Completion
		fields["tokens_total"] = tokens.Total
	}
	for k, v := range metadata {
		fields[k] = v
	}
	l.enqueue(entry{
		level:   logrus.InfoLevel,
		message: "Operation timing",
		fields:  fields,
	})
}

// Dropped returns the number of entries discarded because the queue was full.
func (l *Logger) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close stops accepting entries and waits for the queued ones to drain.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	<-l.done
}

func recordFields(record domain.AssessmentRecord) logrus.Fields {
	fields := logrus.Fields{
		"request_id": record.RequestID,
		"operation":  record.Operation,
	}
	if record.Category != "" {
		fields["category"] = record.Category
	}
	if !record.Timestamp.IsZero() {
		fields["timestamp"] = record.Timestamp.Format(time.RFC3339Nano)
	}
	for k, v := range record.Fields {
		fields[k] = v
	}
	return fields
}
