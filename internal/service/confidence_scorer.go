package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// Context factors counted toward context relevance. The fraction of these
// present in the supplied contextual data is the relevance score.
var contextFactors = []string{
	"history",
	"medications",
	"labs",
	"imaging",
	"symptoms",
	"riskFactors",
	"comorbidities",
}

// Phrases whose presence in a response lowers model certainty.
var uncertaintyPhrases = []string{
	"uncertain",
	"may ",
	"might",
	"possibly",
	"unclear",
	"insufficient evidence",
	"cannot determine",
	"not enough information",
}

// ConfidenceScorer computes the four confidence metrics for an AI
// request/response pair and gates the result against per-category thresholds.
type ConfidenceScorer struct {
	gatherer    domain.EvidenceGatherer
	thresholds  map[domain.QueryCategory]domain.ConfidenceThresholds
	calibration *CalibrationTracker
	logger      *logrus.Logger
}

// NewConfidenceScorer creates a scorer with the default per-category
// thresholds. The calibration tracker may be nil when calibration reporting
// is not wanted.
func NewConfidenceScorer(gatherer domain.EvidenceGatherer, calibration *CalibrationTracker, logger *logrus.Logger) *ConfidenceScorer {
	return &ConfidenceScorer{
		gatherer:    gatherer,
		thresholds:  domain.DefaultThresholds(),
		calibration: calibration,
		logger:      logger,
	}
}

// CalculateConfidence scores one AI exchange for the given query category.
// Evidence gathering failures are soft: the score proceeds with zero evidence
// strength and a recorded limitation.
func (s *ConfidenceScorer) CalculateConfidence(ctx context.Context, req *domain.AIRequest, resp *domain.AIResponse, category domain.QueryCategory, contextual domain.ClinicalData) (*domain.ConfidenceResult, error) {
	if req == nil {
		return nil, domain.NewValidationError("aiRequest", "request is required", nil)
	}
	if resp == nil || resp.Validate() != nil {
		return nil, domain.NewValidationError("aiResponse", "response content is required", nil)
	}
	if !category.IsValid() {
		return nil, domain.NewValidationError("queryCategory", "unknown query category", category)
	}

	started := time.Now()

	var sources []domain.EvidenceSource
	if s.gatherer != nil {
		gathered, err := s.gatherer.GatherEvidence(ctx, req, resp, category)
		if err != nil {
			// Soft failure: score with zero evidence strength
			s.logger.WithError(err).Warn("Evidence gathering failed, scoring without sources")
		} else {
			sources = gathered
		}
	}

	metrics := domain.ConfidenceMetrics{
		EvidenceStrength: evidenceStrength(sources),
		ContextRelevance: contextRelevance(contextual),
		ModelCertainty:   modelCertainty(resp),
		DataQuality:      dataQuality(req, resp),
	}
	metrics.Recompute()

	thresholds := s.thresholds[category]
	requiresConsultation := metrics.Overall < thresholds.MinimumOverall ||
		metrics.EvidenceStrength < thresholds.MinimumEvidence ||
		metrics.ContextRelevance < thresholds.MinimumContext ||
		metrics.Overall < thresholds.RequiresProfessionalConsult

	limitations, suggestions := deriveGuidance(metrics, len(sources), requiresConsultation)

	result := &domain.ConfidenceResult{
		Score:                metrics,
		Level:                metrics.Level(),
		RequiresConsultation: requiresConsultation,
		Limitations:          limitations,
		Suggestions:          suggestions,
		EvidenceSources:      sources,
		Metadata: domain.ResultMetadata{
			GeneratedAt:  time.Now().UTC(),
			ModelVersion: req.Model,
		},
	}

	if s.calibration != nil {
		s.calibration.Record(category, metrics.Overall)
	}

	s.logger.WithFields(logrus.Fields(result.LogFields())).
		WithField("category", category.String()).
		WithField("elapsed_ms", time.Since(started).Milliseconds()).
		Info("Confidence calculated")

	return result, nil
}

// evidenceStrength averages confidence x relevance x type weight over the
// gathered sources. No sources means zero strength, not a neutral default.
func evidenceStrength(sources []domain.EvidenceSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, src := range sources {
		sum += src.Confidence * src.Relevance * domain.EvidenceTypeWeight(src.Type)
	}
	return clamp01(sum / float64(len(sources)))
}

// contextRelevance is the fraction of the fixed context factors present in
// the contextual data. Entirely absent context scores a neutral 0.5 so that
// "no context supplied" does not read as "context proven irrelevant".
func contextRelevance(contextual domain.ClinicalData) float64 {
	if len(contextual) == 0 {
		return 0.5
	}
	present := 0
	for _, factor := range contextFactors {
		if value, ok := contextual[factor]; ok && value != nil {
			present++
		}
	}
	return float64(present) / float64(len(contextFactors))
}

// modelCertainty scores the response language, scaled by the model's own
// confidence estimate when it reports one.
func modelCertainty(resp *domain.AIResponse) float64 {
	content := strings.ToLower(resp.Content)
	found := 0
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(content, phrase) {
			found++
		}
	}
	languageCertainty := 1 - float64(found)/float64(len(uncertaintyPhrases))
	return clamp01(languageCertainty * resp.SelfReportedConfidence())
}

// dataQuality averages completeness, prompt relevance and timeliness checks.
func dataQuality(req *domain.AIRequest, resp *domain.AIResponse) float64 {
	completeness := contentCompleteness(resp.Content)
	relevance := promptRelevance(req, resp)
	timeliness := dataTimeliness(resp.Metadata)
	return clamp01((completeness + relevance + timeliness) / 3)
}

// contentCompleteness treats very short responses as incomplete. Forty words
// of substantive content score full marks.
func contentCompleteness(content string) float64 {
	words := len(strings.Fields(content))
	if words >= 40 {
		return 1.0
	}
	return float64(words) / 40
}

// promptRelevance is the fraction of significant prompt terms the response
// addresses. A prompt with no significant terms scores neutral.
func promptRelevance(req *domain.AIRequest, resp *domain.AIResponse) float64 {
	if req == nil {
		return 0.5
	}
	content := strings.ToLower(resp.Content)
	total, matched := 0, 0
	for _, term := range strings.Fields(strings.ToLower(req.Prompt)) {
		term = strings.Trim(term, ".,;:?!()")
		if len(term) <= 3 {
			continue
		}
		total++
		if strings.Contains(content, term) {
			matched++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(matched) / float64(total)
}

// dataTimeliness inspects the provider-reported data timestamp. Fresh data
// scores full marks, stale data is penalized, unknown age scores 0.8.
func dataTimeliness(metadata map[string]any) float64 {
	raw, ok := metadata["data_timestamp"]
	if !ok {
		return 0.8
	}
	var ts time.Time
	switch v := raw.(type) {
	case time.Time:
		ts = v
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return 0.8
		}
		ts = parsed
	default:
		return 0.8
	}
	if time.Since(ts) <= 365*24*time.Hour {
		return 1.0
	}
	return 0.6
}

// deriveGuidance maps the computed metrics onto fixed limitation and
// suggestion texts.
func deriveGuidance(metrics domain.ConfidenceMetrics, sourceCount int, requiresConsultation bool) ([]string, []string) {
	var limitations, suggestions []string

	if sourceCount == 0 {
		limitations = append(limitations, "No supporting evidence sources were found")
	}
	if metrics.EvidenceStrength < 0.5 {
		limitations = append(limitations, "Limited evidence base for this assessment")
		suggestions = append(suggestions, "Consult additional clinical literature")
	}
	if metrics.ContextRelevance < 0.5 {
		limitations = append(limitations, "Patient context is incomplete")
		suggestions = append(suggestions, "Provide additional patient history and findings")
	}
	if metrics.ModelCertainty < 0.6 {
		limitations = append(limitations, "Response language indicates significant uncertainty")
	}
	if metrics.DataQuality < 0.5 {
		limitations = append(limitations, "Underlying data may be incomplete or outdated")
		suggestions = append(suggestions, "Verify the currency of the source data")
	}
	if requiresConsultation {
		suggestions = append(suggestions, "Obtain professional review before acting on this output")
	}

	return limitations, suggestions
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
