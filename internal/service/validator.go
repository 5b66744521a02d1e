package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// ConsistencyValidator is the built-in secondary validation pass over an
// assembled drug interaction analysis. It re-derives the floor risk level
// from the detected interactions and only ever raises the analysis: risk
// level up, and the consultation flag on when a consult-flagged interaction
// is present. Running it twice changes nothing.
type ConsistencyValidator struct {
	logger *logrus.Logger
}

// NewConsistencyValidator creates the validator.
func NewConsistencyValidator(logger *logrus.Logger) *ConsistencyValidator {
	return &ConsistencyValidator{logger: logger}
}

// ValidateAnalysis enforces the analysis invariants.
func (v *ConsistencyValidator) ValidateAnalysis(ctx context.Context, analysis *domain.DrugInteractionAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if analysis == nil {
		return fmt.Errorf("analysis is nil")
	}
	if !analysis.OverallRiskLevel.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidSeverity, analysis.OverallRiskLevel)
	}

	floor := domain.INTERACTION_MINOR
	consult := analysis.ConsultationRequired
	for _, interaction := range analysis.Interactions {
		if !interaction.Severity.IsValid() {
			return fmt.Errorf("interaction %s: %w: %q", interaction.PairKey(), domain.ErrInvalidSeverity, interaction.Severity)
		}
		floor = domain.MaxInteractionSeverity(floor, interaction.Severity)
		if interaction.RequiresConsult {
			consult = true
		}
	}

	raised := domain.MaxInteractionSeverity(analysis.OverallRiskLevel, floor)
	if raised != analysis.OverallRiskLevel {
		v.logger.WithFields(logrus.Fields{
			"from": analysis.OverallRiskLevel.String(),
			"to":   raised.String(),
		}).Warn("Secondary validation raised interaction risk level")
		analysis.OverallRiskLevel = raised
	}
	analysis.ConsultationRequired = consult

	return nil
}
