package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-safety-engine/internal/domain"
)

func collectAssessments(t *testing.T, out <-chan StreamingAssessment) []StreamingAssessment {
	t.Helper()
	var assessments []StreamingAssessment
	timeout := time.After(2 * time.Second)
	for {
		select {
		case assessment, open := <-out:
			if !open {
				return assessments
			}
			assessments = append(assessments, assessment)
		case <-timeout:
			t.Fatal("timed out waiting for streamed assessments")
		}
	}
}

func TestScoreStreamEmitsPartialThenFinal(t *testing.T) {
	scorer := NewConfidenceScorer(stubGatherer{sources: strongEvidence()}, nil, testLogger())
	req := &domain.AIRequest{Prompt: "treatment options"}

	chunks := make(chan string, 3)
	chunks <- "It is uncertain whether this treatment may help. "
	chunks <- "However, established guideline data supports the regimen "
	chunks <- "with strong evidence across multiple trials and clear dosing protocols for this treatment."
	close(chunks)

	assessments := collectAssessments(t, scorer.ScoreStream(context.Background(), req, domain.CATEGORY_TREATMENT, fullContext(), chunks))
	require.Len(t, assessments, 2)

	partial, final := assessments[0], assessments[1]
	assert.Equal(t, PhasePartial, partial.Phase)
	assert.Equal(t, PhaseFinal, final.Phase)
	require.NoError(t, partial.Err)
	require.NoError(t, final.Err)

	// The partial assessment covers only the first chunk
	assert.Equal(t, "It is uncertain whether this treatment may help. ", partial.Content)
	assert.Greater(t, len(final.Content), len(partial.Content))

	// The hedged opening scores lower certainty than the assembled text
	// diluted by confident continuation
	assert.LessOrEqual(t, partial.Result.Score.ModelCertainty, final.Result.Score.ModelCertainty)
}

func TestScoreStreamEmptyStreamYieldsError(t *testing.T) {
	scorer := NewConfidenceScorer(stubGatherer{}, nil, testLogger())

	chunks := make(chan string)
	close(chunks)

	assessments := collectAssessments(t, scorer.ScoreStream(context.Background(), nil, domain.CATEGORY_GENERAL, nil, chunks))
	require.Len(t, assessments, 1)
	assert.Equal(t, PhaseFinal, assessments[0].Phase)
	assert.True(t, domain.IsValidationError(assessments[0].Err))
}

func TestScoreStreamCancellationStopsConsumption(t *testing.T) {
	scorer := NewConfidenceScorer(stubGatherer{}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	chunks := make(chan string)

	out := scorer.ScoreStream(ctx, nil, domain.CATEGORY_GENERAL, nil, chunks)
	cancel()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-out:
			if !open {
				return
			}
		case <-timeout:
			t.Fatal("output channel not closed after cancellation")
		}
	}
}
