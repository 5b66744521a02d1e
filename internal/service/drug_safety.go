package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// InteractionLookup is the read side of the interaction registry the analyzer
// consumes.
type InteractionLookup interface {
	Lookup(drugA, drugB string) (domain.DrugInteractionRecord, bool)
}

// Drugs whose clearance depends heavily on renal function; flagged for dose
// review when the patient has impaired kidneys.
var renallyCleared = map[string]string{
	"methotrexate": "primarily renally excreted",
	"cisplatin":    "nephrotoxic and renally cleared",
	"carboplatin":  "dose is calculated from renal function (Calvert formula)",
	"gentamicin":   "renally cleared aminoglycoside",
	"capecitabine": "renal elimination of active metabolites",
}

// Drugs with significant hepatic metabolism; flagged for dose review when the
// patient has impaired liver function.
var hepaticallyMetabolized = map[string]string{
	"doxorubicin": "hepatically metabolized and biliary excreted",
	"paclitaxel":  "extensive hepatic CYP metabolism",
	"tamoxifen":   "requires hepatic CYP2D6 activation",
	"irinotecan":  "hepatic UGT1A1 glucuronidation",
}

// DrugSafetyAnalyzer checks a prescribed drug list against the interaction
// registry and the patient's clinical factors, then hands the assembled
// analysis to the secondary safety validator.
type DrugSafetyAnalyzer struct {
	interactions InteractionLookup
	validator    domain.SafetyValidator
	logger       *logrus.Logger
}

// NewDrugSafetyAnalyzer creates an analyzer. The validator is a required
// collaborator: its errors fail the whole analysis.
func NewDrugSafetyAnalyzer(interactions InteractionLookup, validator domain.SafetyValidator, logger *logrus.Logger) *DrugSafetyAnalyzer {
	return &DrugSafetyAnalyzer{
		interactions: interactions,
		validator:    validator,
		logger:       logger,
	}
}

// AnalyzeInteractions checks every unordered pair of the prescribed drugs,
// applies patient-factor supplements, and runs the secondary validation pass.
// Fewer than two drugs is a validation error detected before any work is
// done. ConsultationRequired holds exactly when a detected interaction is
// flagged as requiring consult, regardless of the overall risk level.
func (a *DrugSafetyAnalyzer) AnalyzeInteractions(ctx context.Context, drugs []string, factors *domain.PatientFactors) (*domain.DrugInteractionAnalysis, error) {
	if len(drugs) < 2 {
		return nil, domain.NewValidationError("drugs", "at least two drugs are required for interaction analysis", drugs)
	}

	analysis := &domain.DrugInteractionAnalysis{
		Drugs:            drugs,
		Interactions:     []domain.DrugInteractionRecord{},
		OverallRiskLevel: domain.INTERACTION_MINOR,
	}

	for i := 0; i < len(drugs); i++ {
		for j := i + 1; j < len(drugs); j++ {
			analysis.PairsChecked++
			record, found := a.interactions.Lookup(drugs[i], drugs[j])
			if !found {
				continue
			}
			analysis.Interactions = append(analysis.Interactions, record)
			analysis.OverallRiskLevel = domain.MaxInteractionSeverity(analysis.OverallRiskLevel, record.Severity)
			if record.RequiresConsult {
				analysis.ConsultationRequired = true
			}
		}
	}

	if factors != nil {
		a.applyPatientFactors(analysis, factors)
	}

	if err := a.validator.ValidateAnalysis(ctx, analysis); err != nil {
		return nil, domain.NewDependencyError("safety_validator", "secondary validation failed", err)
	}

	a.logger.WithFields(logrus.Fields(analysis.LogFields())).Info("Drug interaction analysis complete")

	return analysis, nil
}

// applyPatientFactors adds warnings and dose adjustments derived from the
// patient's age, renal and hepatic status. It only ever appends; detected
// interactions and the computed risk level are left untouched.
func (a *DrugSafetyAnalyzer) applyPatientFactors(analysis *domain.DrugInteractionAnalysis, factors *domain.PatientFactors) {
	renal := factors.RenalImpairment || (factors.CreatinineClearance > 0 && factors.CreatinineClearance < 30)

	if factors.Age >= 65 {
		analysis.PatientSpecificWarnings = append(analysis.PatientSpecificWarnings,
			fmt.Sprintf("Patient age %d: increased sensitivity to adverse effects, review polypharmacy", factors.Age))
	}
	if renal {
		analysis.PatientSpecificWarnings = append(analysis.PatientSpecificWarnings,
			"Impaired renal function: verify dosing of renally cleared agents")
	}
	if factors.HepaticImpairment {
		analysis.PatientSpecificWarnings = append(analysis.PatientSpecificWarnings,
			"Hepatic impairment: verify dosing of hepatically metabolized agents")
	}

	for _, drug := range analysis.Drugs {
		key := strings.ToLower(strings.TrimSpace(drug))
		if renal {
			if reason, ok := renallyCleared[key]; ok {
				analysis.DoseAdjustments = append(analysis.DoseAdjustments, domain.DoseAdjustment{
					Drug:       drug,
					Reason:     reason,
					Suggestion: "Reduce dose or extend interval per renal dosing guidance",
				})
			}
		}
		if factors.HepaticImpairment {
			if reason, ok := hepaticallyMetabolized[key]; ok {
				analysis.DoseAdjustments = append(analysis.DoseAdjustments, domain.DoseAdjustment{
					Drug:       drug,
					Reason:     reason,
					Suggestion: "Reduce dose per hepatic function guidance",
				})
			}
		}
	}
}
