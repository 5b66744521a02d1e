// Package domain contains core business entities and types for the clinical
// safety and confidence evaluation engine: declarative clinical rules, drug
// interaction records, safety check results, and AI confidence metrics.
//
// Three ordinal severity scales coexist here and are deliberately kept
// independent: rule severity (Low..Critical), drug interaction severity
// (Minor..Contraindicated), and confidence level (very_low..very_high).
// A "Major" interaction and a "High" rule alert are clinically distinct
// concepts that happen to share a position in an escalation ladder, so the
// type system never compares them directly.
package domain

import (
	"time"
)

// Severity represents the ordinal risk level of a clinical rule alert.
type Severity string

const (
	SEVERITY_LOW      Severity = "LOW"
	SEVERITY_MEDIUM   Severity = "MEDIUM"
	SEVERITY_HIGH     Severity = "HIGH"
	SEVERITY_CRITICAL Severity = "CRITICAL"
)

// InteractionSeverity represents the ordinal severity of a drug-drug
// interaction. This scale is independent from rule Severity.
type InteractionSeverity string

const (
	INTERACTION_MINOR           InteractionSeverity = "MINOR"
	INTERACTION_MODERATE        InteractionSeverity = "MODERATE"
	INTERACTION_MAJOR           InteractionSeverity = "MAJOR"
	INTERACTION_CONTRAINDICATED InteractionSeverity = "CONTRAINDICATED"
)

// ConfidenceLevel classifies an overall confidence score into a band.
type ConfidenceLevel string

const (
	CONFIDENCE_VERY_LOW  ConfidenceLevel = "very_low"
	CONFIDENCE_LOW       ConfidenceLevel = "low"
	CONFIDENCE_MODERATE  ConfidenceLevel = "moderate"
	CONFIDENCE_HIGH      ConfidenceLevel = "high"
	CONFIDENCE_VERY_HIGH ConfidenceLevel = "very_high"
)

// QueryCategory selects which confidence thresholds apply to an AI response.
type QueryCategory string

const (
	CATEGORY_DIAGNOSIS  QueryCategory = "diagnosis"
	CATEGORY_TREATMENT  QueryCategory = "treatment"
	CATEGORY_MEDICATION QueryCategory = "medication"
	CATEGORY_EMERGENCY  QueryCategory = "emergency"
	CATEGORY_GENERAL    QueryCategory = "general"
)

// severityRank defines the total order over rule severities.
var severityRank = map[Severity]int{
	SEVERITY_LOW:      0,
	SEVERITY_MEDIUM:   1,
	SEVERITY_HIGH:     2,
	SEVERITY_CRITICAL: 3,
}

// interactionRank defines the total order over interaction severities.
var interactionRank = map[InteractionSeverity]int{
	INTERACTION_MINOR:           0,
	INTERACTION_MODERATE:        1,
	INTERACTION_MAJOR:           2,
	INTERACTION_CONTRAINDICATED: 3,
}

// confidenceRank defines the total order over confidence levels.
var confidenceRank = map[ConfidenceLevel]int{
	CONFIDENCE_VERY_LOW:  0,
	CONFIDENCE_LOW:       1,
	CONFIDENCE_MODERATE:  2,
	CONFIDENCE_HIGH:      3,
	CONFIDENCE_VERY_HIGH: 4,
}

// MaxSeverity returns the higher of two rule severities.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[a] >= severityRank[b] {
		return a
	}
	return b
}

// MaxInteractionSeverity returns the higher of two interaction severities.
func MaxInteractionSeverity(a, b InteractionSeverity) InteractionSeverity {
	if interactionRank[a] >= interactionRank[b] {
		return a
	}
	return b
}

// MaxConfidenceLevel returns the higher of two confidence levels.
func MaxConfidenceLevel(a, b ConfidenceLevel) ConfidenceLevel {
	if confidenceRank[a] >= confidenceRank[b] {
		return a
	}
	return b
}

// AtLeast reports whether s is at or above the given severity.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// AtLeast reports whether s is at or above the given interaction severity.
func (s InteractionSeverity) AtLeast(other InteractionSeverity) bool {
	return interactionRank[s] >= interactionRank[other]
}

// IsValid validates the severity value. Only valid severities may enter
// clinical decision paths.
func (s Severity) IsValid() bool {
	_, ok := severityRank[s]
	return ok
}

// String returns the string representation for logging and audit trails.
func (s Severity) String() string {
	return string(s)
}

// IsValid validates the interaction severity value.
func (s InteractionSeverity) IsValid() bool {
	_, ok := interactionRank[s]
	return ok
}

// String returns the string representation for logging and audit trails.
func (s InteractionSeverity) String() string {
	return string(s)
}

// IsValid validates the confidence level value.
func (cl ConfidenceLevel) IsValid() bool {
	_, ok := confidenceRank[cl]
	return ok
}

// String returns the string representation for logging and audit trails.
func (cl ConfidenceLevel) String() string {
	return string(cl)
}

// IsValid validates the query category.
func (qc QueryCategory) IsValid() bool {
	switch qc {
	case CATEGORY_DIAGNOSIS, CATEGORY_TREATMENT, CATEGORY_MEDICATION,
		CATEGORY_EMERGENCY, CATEGORY_GENERAL:
		return true
	default:
		return false
	}
}

// String returns the string representation of the query category.
func (qc QueryCategory) String() string {
	return string(qc)
}

// SafetyAlert is a single finding produced by one of the sub-checkers.
// Alerts are generated per evaluation and not stored long-term by this core.
type SafetyAlert struct {
	ID                      string         `json:"id"`
	Severity                Severity       `json:"severity"`
	SourceModule            string         `json:"source_module"`
	AlertType               string         `json:"alert_type"`
	Message                 string         `json:"message"`
	Details                 map[string]any `json:"details,omitempty"`
	Recommendations         []string       `json:"recommendations,omitempty"`
	AcknowledgementRequired bool           `json:"acknowledgement_required"`
}

// Source module tags identifying which sub-checker produced an alert.
const (
	SourceClinicalRules    = "clinical_rules"
	SourceDrugInteractions = "drug_interactions"
	SourceGuidelines       = "guideline_compliance"
)

// SafetyCheckResult is the merged verdict of a safety evaluation.
// Passed is true iff no Critical alert exists; RequiresEscalation is set
// from severity High and above.
type SafetyCheckResult struct {
	Passed             bool          `json:"passed"`
	Severity           Severity      `json:"severity"`
	Alerts             []SafetyAlert `json:"alerts"`
	RequiresEscalation bool          `json:"requires_escalation"`
	Recommendations    []string      `json:"recommendations"`
	BlockingIssues     []string      `json:"blocking_issues"`
}

// LogFields returns structured logging fields for audit trails.
func (r *SafetyCheckResult) LogFields() map[string]any {
	return map[string]any{
		"passed":              r.Passed,
		"severity":            r.Severity.String(),
		"alert_count":         len(r.Alerts),
		"requires_escalation": r.RequiresEscalation,
		"blocking_issues":     len(r.BlockingIssues),
	}
}

// EmergencyCondition is the structured payload handed to the emergency
// notification collaborator when an evaluation requires escalation.
type EmergencyCondition struct {
	Type       string         `json:"type"`
	Severity   Severity       `json:"severity"`
	Details    map[string]any `json:"details,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
}
