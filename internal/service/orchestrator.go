package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// RuleSource supplies an immutable snapshot of the active clinical rules.
type RuleSource interface {
	Snapshot() []domain.ClinicalRule
}

// GuidelineSource supplies the guideline rule set for a diagnosis.
type GuidelineSource interface {
	ForDiagnosis(diagnosis string) []domain.ClinicalRule
}

// interactionSeverityToAlert bridges the interaction severity scale onto the
// alert severity scale when drug findings are merged into a safety verdict.
// The scales stay independent everywhere else.
var interactionSeverityToAlert = map[domain.InteractionSeverity]domain.Severity{
	domain.INTERACTION_MINOR:           domain.SEVERITY_LOW,
	domain.INTERACTION_MODERATE:        domain.SEVERITY_MEDIUM,
	domain.INTERACTION_MAJOR:           domain.SEVERITY_HIGH,
	domain.INTERACTION_CONTRAINDICATED: domain.SEVERITY_CRITICAL,
}

// SafetyOrchestrator composes the rule engine, the drug interaction analyzer
// and the guideline check into one safety verdict.
type SafetyOrchestrator struct {
	ruleEngine *RuleEngine
	analyzer   *DrugSafetyAnalyzer
	rules      RuleSource
	guidelines GuidelineSource
	notifier   domain.EmergencyNotifier
	audit      domain.AssessmentLogger
	logger     *logrus.Logger
}

// NewSafetyOrchestrator creates the orchestrator. The notifier and audit
// logger are optional collaborators.
func NewSafetyOrchestrator(
	ruleEngine *RuleEngine,
	analyzer *DrugSafetyAnalyzer,
	rules RuleSource,
	guidelines GuidelineSource,
	notifier domain.EmergencyNotifier,
	audit domain.AssessmentLogger,
	logger *logrus.Logger,
) *SafetyOrchestrator {
	return &SafetyOrchestrator{
		ruleEngine: ruleEngine,
		analyzer:   analyzer,
		rules:      rules,
		guidelines: guidelines,
		notifier:   notifier,
		audit:      audit,
		logger:     logger,
	}
}

// PerformSafetyCheck evaluates the clinical data against every applicable
// checker and merges the results. The rule engine always runs; the drug
// analyzer runs when at least two medications are listed; the guideline
// check runs when a diagnosis is present.
func (o *SafetyOrchestrator) PerformSafetyCheck(ctx context.Context, data domain.ClinicalData) (*domain.SafetyCheckResult, error) {
	requestID := uuid.NewString()
	started := time.Now()

	if o.audit != nil {
		o.audit.LogAssessmentStart(domain.AssessmentRecord{
			RequestID: requestID,
			Operation: "safety_check",
			Timestamp: started.UTC(),
		})
	}

	results := []*domain.SafetyCheckResult{
		o.ruleEngine.EvaluateRules(o.rules.Snapshot(), data),
	}

	medications := data.Medications()
	if len(medications) >= 2 {
		analysis, err := o.analyzer.AnalyzeInteractions(ctx, medications, patientFactorsFrom(data))
		if err != nil {
			if o.audit != nil {
				o.audit.LogError("drug interaction analysis failed during safety check", err)
			}
			return nil, err
		}
		results = append(results, drugAnalysisToSafetyResult(analysis))
	}

	if diagnosis := data.Diagnosis(); diagnosis != "" {
		guidelineRules := o.guidelines.ForDiagnosis(diagnosis)
		results = append(results, o.ruleEngine.EvaluateGuidelines(guidelineRules, data))
	}

	merged := mergeSafetyResults(results)

	if merged.RequiresEscalation {
		o.notifyEmergency(ctx, merged)
	}

	if o.audit != nil {
		o.audit.LogAssessmentComplete(domain.AssessmentRecord{
			RequestID: requestID,
			Operation: "safety_check",
			Timestamp: time.Now().UTC(),
			Fields:    merged.LogFields(),
		})
		o.audit.LogPerformance("safety_check", time.Since(started), nil, map[string]any{
			"checkers": len(results),
		})
	}

	o.logger.WithFields(logrus.Fields(merged.LogFields())).
		WithField("request_id", requestID).
		Info("Safety check complete")

	return merged, nil
}

// mergeSafetyResults folds the sub-checker verdicts into one. Alerts
// concatenate, severity takes the max, passed holds iff no Critical alert
// exists anywhere, and recommendations are deduplicated in order.
func mergeSafetyResults(results []*domain.SafetyCheckResult) *domain.SafetyCheckResult {
	merged := &domain.SafetyCheckResult{
		Passed:          true,
		Severity:        domain.SEVERITY_LOW,
		Alerts:          []domain.SafetyAlert{},
		Recommendations: []string{},
		BlockingIssues:  []string{},
	}

	for _, result := range results {
		merged.Alerts = append(merged.Alerts, result.Alerts...)
		merged.Severity = domain.MaxSeverity(merged.Severity, result.Severity)
		merged.Recommendations = appendUnique(merged.Recommendations, result.Recommendations...)
		merged.BlockingIssues = append(merged.BlockingIssues, result.BlockingIssues...)
		if !result.Passed {
			merged.Passed = false
		}
	}

	merged.RequiresEscalation = merged.Severity.AtLeast(domain.SEVERITY_HIGH)
	return merged
}

// drugAnalysisToSafetyResult expresses a drug interaction analysis as a
// safety check result so it can merge with the rule verdicts.
func drugAnalysisToSafetyResult(analysis *domain.DrugInteractionAnalysis) *domain.SafetyCheckResult {
	result := &domain.SafetyCheckResult{
		Passed:          true,
		Severity:        domain.SEVERITY_LOW,
		Alerts:          []domain.SafetyAlert{},
		Recommendations: []string{},
		BlockingIssues:  []string{},
	}

	for _, interaction := range analysis.Interactions {
		severity := interactionSeverityToAlert[interaction.Severity]
		alert := domain.SafetyAlert{
			ID:           uuid.NewString(),
			Severity:     severity,
			SourceModule: domain.SourceDrugInteractions,
			AlertType:    "drug_interaction",
			Message:      fmt.Sprintf("%s + %s: %s", interaction.DrugA, interaction.DrugB, interaction.Effect),
			Details: map[string]any{
				"drug_a":               interaction.DrugA,
				"drug_b":               interaction.DrugB,
				"interaction_severity": interaction.Severity.String(),
			},
			Recommendations:         interaction.Recommendations,
			AcknowledgementRequired: severity.AtLeast(domain.SEVERITY_HIGH),
		}
		result.Alerts = append(result.Alerts, alert)
		result.Severity = domain.MaxSeverity(result.Severity, severity)
		result.Recommendations = appendUnique(result.Recommendations, interaction.Recommendations...)
		if severity == domain.SEVERITY_CRITICAL {
			result.Passed = false
			result.BlockingIssues = append(result.BlockingIssues, alert.Message)
		}
	}

	result.Recommendations = appendUnique(result.Recommendations, analysis.PatientSpecificWarnings...)
	for _, adjustment := range analysis.DoseAdjustments {
		result.Recommendations = appendUnique(result.Recommendations,
			fmt.Sprintf("%s: %s (%s)", adjustment.Drug, adjustment.Suggestion, adjustment.Reason))
	}
	if analysis.ConsultationRequired {
		result.Recommendations = appendUnique(result.Recommendations,
			"Pharmacist or physician consultation required before dispensing")
	}

	result.RequiresEscalation = result.Severity.AtLeast(domain.SEVERITY_HIGH)
	return result
}

// notifyEmergency informs the emergency collaborator. Best-effort: the
// safety verdict never depends on the notifier.
func (o *SafetyOrchestrator) notifyEmergency(ctx context.Context, result *domain.SafetyCheckResult) {
	if o.notifier == nil {
		return
	}
	condition := domain.EmergencyCondition{
		Type:     "safety_check_escalation",
		Severity: result.Severity,
		Details: map[string]any{
			"alert_count":     len(result.Alerts),
			"blocking_issues": result.BlockingIssues,
		},
		DetectedAt: time.Now().UTC(),
	}
	if err := o.notifier.NotifyEmergency(ctx, condition); err != nil {
		o.logger.WithError(err).Warn("Emergency notification failed")
		if o.audit != nil {
			o.audit.LogError("emergency notification failed", err)
		}
	}
}

// patientFactorsFrom extracts the analyzer's patient factors from the
// clinical data record.
func patientFactorsFrom(data domain.ClinicalData) *domain.PatientFactors {
	factors := &domain.PatientFactors{}
	populated := false

	if age, ok := data.Age(); ok {
		factors.Age = int(age)
		populated = true
	}
	if value, ok := data.Resolve("renalImpairment"); ok {
		if flag, isBool := value.(bool); isBool {
			factors.RenalImpairment = flag
			populated = true
		}
	}
	if value, ok := data.Resolve("hepaticImpairment"); ok {
		if flag, isBool := value.(bool); isBool {
			factors.HepaticImpairment = flag
			populated = true
		}
	}
	if value, ok := data.Resolve("creatinineClearance"); ok {
		if clearance, isNum := toFloat(value); isNum {
			factors.CreatinineClearance = clearance
			populated = true
		}
	}

	if !populated {
		return nil
	}
	return factors
}
