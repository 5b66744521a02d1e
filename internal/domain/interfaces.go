package domain

import (
	"context"
	"time"
)

// AssessmentRecord is the structured payload of an assessment audit entry.
type AssessmentRecord struct {
	RequestID string         `json:"request_id"`
	Operation string         `json:"operation"`
	Category  string         `json:"category,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// AssessmentLogger is the logging contract the engine consumes. All methods
// are asynchronous and best-effort: sink errors are swallowed and must never
// fail an evaluation.
type AssessmentLogger interface {
	LogAssessmentStart(record AssessmentRecord)
	LogAssessmentComplete(record AssessmentRecord)
	LogError(message string, err error)
	LogPerformance(operation string, elapsed time.Duration, tokens *TokenUsage, metadata map[string]any)
}

// EmergencyNotifier is the optional collaborator that receives emergency
// conditions when a safety check requires escalation. The safety verdict
// never depends on its return value.
type EmergencyNotifier interface {
	NotifyEmergency(ctx context.Context, condition EmergencyCondition) error
}

// SafetyValidator is the secondary safety-system validation pass applied to
// an assembled drug interaction analysis. It is a hard dependency: errors
// propagate, and the pass must be idempotent and only ever raise the
// computed risk level.
type SafetyValidator interface {
	ValidateAnalysis(ctx context.Context, analysis *DrugInteractionAnalysis) error
}

// EvidenceGatherer locates supporting material for an AI exchange. Gathering
// failures are soft: the scorer proceeds with zero evidence strength.
type EvidenceGatherer interface {
	GatherEvidence(ctx context.Context, req *AIRequest, resp *AIResponse, category QueryCategory) ([]EvidenceSource, error)
}
