package domain

import (
	"fmt"
	"time"
)

// Fixed weights combining the four confidence metrics into the overall
// score. They sum to 1.0; evidence strength dominates deliberately.
const (
	WeightEvidenceStrength = 0.40
	WeightContextRelevance = 0.25
	WeightModelCertainty   = 0.20
	WeightDataQuality      = 0.15
)

// ConfidenceMetrics holds the four independent 0-1 scores computed for an
// AI request/response pair plus the derived overall score.
type ConfidenceMetrics struct {
	EvidenceStrength float64 `json:"evidence_strength"`
	ContextRelevance float64 `json:"context_relevance"`
	ModelCertainty   float64 `json:"model_certainty"`
	DataQuality      float64 `json:"data_quality"`
	Overall          float64 `json:"overall"`
}

// Recompute derives Overall from the four components using the fixed
// weights. Overall is never set directly anywhere else.
func (m *ConfidenceMetrics) Recompute() {
	m.Overall = WeightEvidenceStrength*m.EvidenceStrength +
		WeightContextRelevance*m.ContextRelevance +
		WeightModelCertainty*m.ModelCertainty +
		WeightDataQuality*m.DataQuality
}

// Level classifies the overall score into a confidence band using the fixed
// cutoffs 0.9 / 0.7 / 0.5 / 0.3.
func (m *ConfidenceMetrics) Level() ConfidenceLevel {
	switch {
	case m.Overall >= 0.9:
		return CONFIDENCE_VERY_HIGH
	case m.Overall >= 0.7:
		return CONFIDENCE_HIGH
	case m.Overall >= 0.5:
		return CONFIDENCE_MODERATE
	case m.Overall >= 0.3:
		return CONFIDENCE_LOW
	default:
		return CONFIDENCE_VERY_LOW
	}
}

// ConfidenceThresholds holds the per-category cutoffs that gate an AI
// response. A single failing dimension forces consultation; thresholds are
// never averaged away.
type ConfidenceThresholds struct {
	MinimumOverall              float64 `json:"minimum_overall"`
	MinimumEvidence             float64 `json:"minimum_evidence"`
	MinimumContext              float64 `json:"minimum_context"`
	RequiresProfessionalConsult float64 `json:"requires_professional_consult"`
}

// DefaultThresholds returns the default per-category thresholds. Emergency
// is the strictest category across every cutoff.
func DefaultThresholds() map[QueryCategory]ConfidenceThresholds {
	return map[QueryCategory]ConfidenceThresholds{
		CATEGORY_DIAGNOSIS: {
			MinimumOverall:              0.70,
			MinimumEvidence:             0.60,
			MinimumContext:              0.50,
			RequiresProfessionalConsult: 0.75,
		},
		CATEGORY_TREATMENT: {
			MinimumOverall:              0.75,
			MinimumEvidence:             0.65,
			MinimumContext:              0.50,
			RequiresProfessionalConsult: 0.80,
		},
		CATEGORY_MEDICATION: {
			MinimumOverall:              0.80,
			MinimumEvidence:             0.70,
			MinimumContext:              0.60,
			RequiresProfessionalConsult: 0.85,
		},
		CATEGORY_EMERGENCY: {
			MinimumOverall:              0.90,
			MinimumEvidence:             0.90,
			MinimumContext:              0.80,
			RequiresProfessionalConsult: 0.95,
		},
		CATEGORY_GENERAL: {
			MinimumOverall:              0.50,
			MinimumEvidence:             0.40,
			MinimumContext:              0.30,
			RequiresProfessionalConsult: 0.60,
		},
	}
}

// EvidenceSourceType tags a unit of supporting material.
type EvidenceSourceType string

const (
	EVIDENCE_GUIDELINE  EvidenceSourceType = "guideline"
	EVIDENCE_LITERATURE EvidenceSourceType = "literature"
	EVIDENCE_CONSENSUS  EvidenceSourceType = "consensus"
)

// EvidenceTypeWeight returns the fixed weight applied to a source type when
// computing evidence strength.
func EvidenceTypeWeight(t EvidenceSourceType) float64 {
	switch t {
	case EVIDENCE_GUIDELINE:
		return 1.0
	case EVIDENCE_CONSENSUS:
		return 0.85
	case EVIDENCE_LITERATURE:
		return 0.70
	default:
		return 0.50
	}
}

// EvidenceSource is a unit of supporting material with independent
// confidence and relevance scores.
type EvidenceSource struct {
	ID         string             `json:"id"`
	Type       EvidenceSourceType `json:"type"`
	Title      string             `json:"title"`
	Confidence float64            `json:"confidence"`
	Relevance  float64            `json:"relevance"`
}

// ResultMetadata carries provenance strings the core treats as opaque.
type ResultMetadata struct {
	GeneratedAt  time.Time `json:"generated_at"`
	ModelVersion string    `json:"model_version,omitempty"`
	DataVersion  string    `json:"data_version,omitempty"`
}

// ConfidenceResult is the full confidence verdict for one AI response.
type ConfidenceResult struct {
	Score                ConfidenceMetrics `json:"score"`
	Level                ConfidenceLevel   `json:"level"`
	RequiresConsultation bool              `json:"requires_consultation"`
	Limitations          []string          `json:"limitations,omitempty"`
	Suggestions          []string          `json:"suggestions,omitempty"`
	EvidenceSources      []EvidenceSource  `json:"evidence_sources,omitempty"`
	Metadata             ResultMetadata    `json:"metadata"`
}

// LogFields returns structured logging fields for audit trails.
func (r *ConfidenceResult) LogFields() map[string]any {
	return map[string]any{
		"overall":               r.Score.Overall,
		"level":                 r.Level.String(),
		"requires_consultation": r.RequiresConsultation,
		"evidence_sources":      len(r.EvidenceSources),
	}
}

// TokenUsage is the token accounting an LLM provider reports.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// AIRequest is the prompt side of a provider exchange as consumed by the
// confidence scorer.
type AIRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// AIResponse is the only shape the engine needs from an LLM call: content
// plus token counts, with optional provider metadata. Provider selection,
// retries and rate limiting live outside this core.
type AIResponse struct {
	Content  string         `json:"content"`
	Tokens   TokenUsage     `json:"tokens"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SelfReportedConfidence extracts the model's own confidence estimate from
// response metadata, defaulting to 1 when absent.
func (r *AIResponse) SelfReportedConfidence() float64 {
	if r.Metadata == nil {
		return 1.0
	}
	if v, ok := toFloat(r.Metadata["confidence"]); ok && v >= 0 && v <= 1 {
		return v
	}
	return 1.0
}

// Validate checks the response is usable for scoring.
func (r *AIResponse) Validate() error {
	if r.Content == "" {
		return fmt.Errorf("ai response validation: content is required")
	}
	return nil
}
