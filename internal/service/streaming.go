package service

import (
	"context"
	"strings"

	"github.com/clinical-safety-engine/internal/domain"
)

// AssessmentPhase identifies which stage of a streamed response an
// assessment covers.
type AssessmentPhase string

const (
	// PhasePartial covers only the text received when the first chunk
	// arrived. It is surfaced early so a weak-confidence warning reaches
	// the user before the full response has streamed.
	PhasePartial AssessmentPhase = "partial"
	// PhaseFinal covers the fully assembled response text.
	PhaseFinal AssessmentPhase = "final"
)

// StreamingAssessment is one emission of the two-phase streamed scoring.
type StreamingAssessment struct {
	Phase   AssessmentPhase
	Content string
	Result  *domain.ConfidenceResult
	Err     error
}

// ScoreStream consumes a streamed response and emits a partial assessment on
// the first chunk followed by a final assessment over the assembled text.
// Both assessments are always delivered; cancelling the context stops
// consumption and closes the output channel.
func (s *ConfidenceScorer) ScoreStream(ctx context.Context, req *domain.AIRequest, category domain.QueryCategory, contextual domain.ClinicalData, chunks <-chan string) <-chan StreamingAssessment {
	out := make(chan StreamingAssessment, 2)

	go func() {
		defer close(out)

		var assembled strings.Builder
		first := true

		for {
			select {
			case <-ctx.Done():
				return
			case chunk, open := <-chunks:
				if !open {
					if assembled.Len() == 0 {
						s.emit(ctx, out, StreamingAssessment{
							Phase: PhaseFinal,
							Err:   domain.NewValidationError("stream", "provider stream ended without content", nil),
						})
						return
					}
					content := assembled.String()
					result, err := s.scoreText(ctx, req, content, category, contextual)
					s.emit(ctx, out, StreamingAssessment{Phase: PhaseFinal, Content: content, Result: result, Err: err})
					return
				}

				assembled.WriteString(chunk)
				if first {
					first = false
					partial := assembled.String()
					result, err := s.scoreText(ctx, req, partial, category, contextual)
					s.emit(ctx, out, StreamingAssessment{Phase: PhasePartial, Content: partial, Result: result, Err: err})
				}
			}
		}
	}()

	return out
}

// scoreText scores a text snapshot as if it were a complete response.
func (s *ConfidenceScorer) scoreText(ctx context.Context, req *domain.AIRequest, content string, category domain.QueryCategory, contextual domain.ClinicalData) (*domain.ConfidenceResult, error) {
	resp := &domain.AIResponse{Content: content}
	return s.CalculateConfidence(ctx, req, resp, category, contextual)
}

func (s *ConfidenceScorer) emit(ctx context.Context, out chan<- StreamingAssessment, assessment StreamingAssessment) {
	select {
	case out <- assessment:
	case <-ctx.Done():
	}
}
