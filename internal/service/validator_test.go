package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-safety-engine/internal/domain"
)

func TestConsistencyValidatorRaisesUnderstatedRisk(t *testing.T) {
	validator := NewConsistencyValidator(testLogger())

	analysis := &domain.DrugInteractionAnalysis{
		Drugs: []string{"Warfarin", "Aspirin"},
		Interactions: []domain.DrugInteractionRecord{
			{DrugA: "Warfarin", DrugB: "Aspirin", Severity: domain.INTERACTION_MAJOR},
		},
		OverallRiskLevel: domain.INTERACTION_MINOR,
	}
	require.NoError(t, validator.ValidateAnalysis(context.Background(), analysis))
	assert.Equal(t, domain.INTERACTION_MAJOR, analysis.OverallRiskLevel)

	// Raising the level does not force consultation; only a consult-flagged
	// interaction does
	assert.False(t, analysis.ConsultationRequired)
}

func TestConsistencyValidatorConsultationFromFlaggedInteraction(t *testing.T) {
	validator := NewConsistencyValidator(testLogger())

	analysis := &domain.DrugInteractionAnalysis{
		Drugs: []string{"Tamoxifen", "Paroxetine"},
		Interactions: []domain.DrugInteractionRecord{
			{DrugA: "Tamoxifen", DrugB: "Paroxetine", Severity: domain.INTERACTION_MODERATE, RequiresConsult: true},
		},
		OverallRiskLevel: domain.INTERACTION_MODERATE,
	}
	require.NoError(t, validator.ValidateAnalysis(context.Background(), analysis))
	assert.True(t, analysis.ConsultationRequired)
}

func TestConsistencyValidatorNeverLowers(t *testing.T) {
	validator := NewConsistencyValidator(testLogger())

	analysis := &domain.DrugInteractionAnalysis{
		Drugs:            []string{"A", "B"},
		OverallRiskLevel: domain.INTERACTION_CONTRAINDICATED,
		Interactions: []domain.DrugInteractionRecord{
			{DrugA: "A", DrugB: "B", Severity: domain.INTERACTION_MINOR},
		},
		ConsultationRequired: true,
	}
	require.NoError(t, validator.ValidateAnalysis(context.Background(), analysis))
	assert.Equal(t, domain.INTERACTION_CONTRAINDICATED, analysis.OverallRiskLevel)
}

func TestConsistencyValidatorIsIdempotent(t *testing.T) {
	validator := NewConsistencyValidator(testLogger())

	analysis := &domain.DrugInteractionAnalysis{
		Drugs: []string{"Warfarin", "Aspirin"},
		Interactions: []domain.DrugInteractionRecord{
			{DrugA: "Warfarin", DrugB: "Aspirin", Severity: domain.INTERACTION_MODERATE, RequiresConsult: true},
		},
		OverallRiskLevel: domain.INTERACTION_MODERATE,
	}
	require.NoError(t, validator.ValidateAnalysis(context.Background(), analysis))
	first := *analysis
	require.NoError(t, validator.ValidateAnalysis(context.Background(), analysis))
	assert.Equal(t, first.OverallRiskLevel, analysis.OverallRiskLevel)
	assert.Equal(t, first.ConsultationRequired, analysis.ConsultationRequired)
}

func TestConsistencyValidatorRejectsInvalidSeverity(t *testing.T) {
	validator := NewConsistencyValidator(testLogger())

	analysis := &domain.DrugInteractionAnalysis{
		Drugs:            []string{"A", "B"},
		OverallRiskLevel: domain.InteractionSeverity("EXTREME"),
	}
	assert.Error(t, validator.ValidateAnalysis(context.Background(), analysis))
}
