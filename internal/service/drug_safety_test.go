package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinical-safety-engine/internal/domain"
	"github.com/clinical-safety-engine/internal/registry"
)

// noopValidator accepts every analysis unchanged.
type noopValidator struct{}

func (noopValidator) ValidateAnalysis(_ context.Context, _ *domain.DrugInteractionAnalysis) error {
	return nil
}

// failingValidator simulates an unreachable secondary safety system.
type failingValidator struct{ err error }

func (v failingValidator) ValidateAnalysis(_ context.Context, _ *domain.DrugInteractionAnalysis) error {
	return v.err
}

// raisingValidator bumps the risk level, the only mutation a validator may
// perform.
type raisingValidator struct{ to domain.InteractionSeverity }

func (v raisingValidator) ValidateAnalysis(_ context.Context, analysis *domain.DrugInteractionAnalysis) error {
	analysis.OverallRiskLevel = domain.MaxInteractionSeverity(analysis.OverallRiskLevel, v.to)
	return nil
}

func seededInteractions(t *testing.T) *registry.InteractionRegistry {
	t.Helper()
	reg := registry.NewInteractionRegistry(testLogger())
	for _, record := range registry.DefaultInteractions() {
		require.NoError(t, reg.Add(record))
	}
	return reg
}

func TestAnalyzeInteractionsShortListIsValidationError(t *testing.T) {
	analyzer := NewDrugSafetyAnalyzer(seededInteractions(t), noopValidator{}, testLogger())

	for _, drugs := range [][]string{nil, {}, {"Warfarin"}} {
		_, err := analyzer.AnalyzeInteractions(context.Background(), drugs, nil)
		require.Error(t, err)
		assert.True(t, domain.IsValidationError(err))
	}
}

func TestAnalyzeInteractionsPairCount(t *testing.T) {
	analyzer := NewDrugSafetyAnalyzer(seededInteractions(t), noopValidator{}, testLogger())

	analysis, err := analyzer.AnalyzeInteractions(context.Background(),
		[]string{"Paracetamol", "Lisinopril", "Metformin", "Atorvastatin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 6, analysis.PairsChecked)
	assert.Empty(t, analysis.Interactions)
	assert.Equal(t, domain.INTERACTION_MINOR, analysis.OverallRiskLevel)
	assert.False(t, analysis.ConsultationRequired)
}

func TestAnalyzeInteractionsDetectsKnownPairsCaseInsensitive(t *testing.T) {
	analyzer := NewDrugSafetyAnalyzer(seededInteractions(t), noopValidator{}, testLogger())

	analysis, err := analyzer.AnalyzeInteractions(context.Background(),
		[]string{"aspirin", "WARFARIN", "Tadalafil", "Nitroglycerin"}, nil)
	require.NoError(t, err)
	require.Len(t, analysis.Interactions, 2)
	assert.Equal(t, domain.INTERACTION_CONTRAINDICATED, analysis.OverallRiskLevel)
	assert.True(t, analysis.ConsultationRequired)
}

func TestAnalyzeInteractionsConsultationFollowsInteractionFlags(t *testing.T) {
	reg := registry.NewInteractionRegistry(testLogger())
	require.NoError(t, reg.Add(domain.DrugInteractionRecord{
		DrugA:    "DrugX",
		DrugB:    "DrugY",
		Effect:   "additive toxicity",
		Severity: domain.INTERACTION_MAJOR,
		// not consult-flagged
	}))
	require.NoError(t, reg.Add(domain.DrugInteractionRecord{
		DrugA:           "DrugX",
		DrugB:           "DrugZ",
		Effect:          "absorption interference",
		Severity:        domain.INTERACTION_MODERATE,
		RequiresConsult: true,
	}))
	analyzer := NewDrugSafetyAnalyzer(reg, noopValidator{}, testLogger())

	// A Major interaction alone does not require consultation unless the
	// record says so
	analysis, err := analyzer.AnalyzeInteractions(context.Background(), []string{"DrugX", "DrugY"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.INTERACTION_MAJOR, analysis.OverallRiskLevel)
	assert.False(t, analysis.ConsultationRequired)

	// A consult-flagged interaction requires it at any severity
	analysis, err = analyzer.AnalyzeInteractions(context.Background(), []string{"DrugX", "DrugZ"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.INTERACTION_MODERATE, analysis.OverallRiskLevel)
	assert.True(t, analysis.ConsultationRequired)
}

func TestAnalyzeInteractionsPatientFactors(t *testing.T) {
	analyzer := NewDrugSafetyAnalyzer(seededInteractions(t), noopValidator{}, testLogger())

	factors := &domain.PatientFactors{
		Age:               78,
		RenalImpairment:   true,
		HepaticImpairment: true,
	}
	analysis, err := analyzer.AnalyzeInteractions(context.Background(),
		[]string{"Methotrexate", "Doxorubicin"}, factors)
	require.NoError(t, err)

	assert.Len(t, analysis.PatientSpecificWarnings, 3)
	require.Len(t, analysis.DoseAdjustments, 2)
	assert.Equal(t, "Methotrexate", analysis.DoseAdjustments[0].Drug)
	assert.Equal(t, "Doxorubicin", analysis.DoseAdjustments[1].Drug)

	// Factor pass supplements only: interaction findings are untouched
	assert.Empty(t, analysis.Interactions)
	assert.Equal(t, domain.INTERACTION_MINOR, analysis.OverallRiskLevel)
}

func TestAnalyzeInteractionsLowCreatinineClearanceTriggersRenalPass(t *testing.T) {
	analyzer := NewDrugSafetyAnalyzer(seededInteractions(t), noopValidator{}, testLogger())

	analysis, err := analyzer.AnalyzeInteractions(context.Background(),
		[]string{"Carboplatin", "Paracetamol"}, &domain.PatientFactors{Age: 50, CreatinineClearance: 25})
	require.NoError(t, err)
	require.Len(t, analysis.DoseAdjustments, 1)
	assert.Equal(t, "Carboplatin", analysis.DoseAdjustments[0].Drug)
}

func TestAnalyzeInteractionsValidatorErrorPropagates(t *testing.T) {
	cause := errors.New("safety system unreachable")
	analyzer := NewDrugSafetyAnalyzer(seededInteractions(t), failingValidator{err: cause}, testLogger())

	_, err := analyzer.AnalyzeInteractions(context.Background(), []string{"Warfarin", "Aspirin"}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsDependencyError(err))
	assert.ErrorIs(t, err, cause)
}

func TestAnalyzeInteractionsValidatorMayOnlyRaiseRisk(t *testing.T) {
	analyzer := NewDrugSafetyAnalyzer(seededInteractions(t), raisingValidator{to: domain.INTERACTION_MAJOR}, testLogger())

	analysis, err := analyzer.AnalyzeInteractions(context.Background(), []string{"Paracetamol", "Metformin"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.INTERACTION_MAJOR, analysis.OverallRiskLevel)

	// Idempotence: running the raise through an already raised analysis
	// leaves the level unchanged
	require.NoError(t, raisingValidator{to: domain.INTERACTION_MAJOR}.ValidateAnalysis(context.Background(), analysis))
	assert.Equal(t, domain.INTERACTION_MAJOR, analysis.OverallRiskLevel)
}
