package domain

import (
	"fmt"
	"strings"
)

// DrugInteractionRecord describes a known interaction between an unordered
// pair of drugs. Records live in the process-wide interaction registry,
// populated at startup or by admin operation.
type DrugInteractionRecord struct {
	DrugA           string              `json:"drug_a"`
	DrugB           string              `json:"drug_b"`
	Effect          string              `json:"effect"`
	Severity        InteractionSeverity `json:"severity"`
	Recommendations []string            `json:"recommendations,omitempty"`
	// RequiresConsult flags effects that mandate pharmacist or physician
	// review before the combination is dispensed.
	RequiresConsult bool `json:"requires_consult"`
}

// Validate ensures the record is usable for pair lookup.
func (r *DrugInteractionRecord) Validate() error {
	if r.DrugA == "" || r.DrugB == "" {
		return fmt.Errorf("interaction record validation: both drug names are required")
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("interaction record validation: %w: %q", ErrInvalidSeverity, r.Severity)
	}
	return nil
}

// PairKey returns the order-independent lookup key for the drug pair.
func (r *DrugInteractionRecord) PairKey() string {
	return InteractionPairKey(r.DrugA, r.DrugB)
}

// InteractionPairKey normalizes two drug names into one unordered,
// case-insensitive key.
func InteractionPairKey(a, b string) string {
	na := strings.ToLower(strings.TrimSpace(a))
	nb := strings.ToLower(strings.TrimSpace(b))
	if na > nb {
		na, nb = nb, na
	}
	return na + "|" + nb
}

// PatientFactors carries the patient-specific attributes that drive dose
// adjustments and supplementary warnings.
type PatientFactors struct {
	Age                 int     `json:"age"`
	CreatinineClearance float64 `json:"creatinine_clearance,omitempty"`
	RenalImpairment     bool    `json:"renal_impairment"`
	HepaticImpairment   bool    `json:"hepatic_impairment"`
}

// DoseAdjustment is a suggested dosing change derived from patient factors.
// Adjustments supplement the detected interactions and never alter them.
type DoseAdjustment struct {
	Drug       string `json:"drug"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

// DrugInteractionAnalysis is the result of analyzing a prescribed drug list.
type DrugInteractionAnalysis struct {
	Drugs                   []string                `json:"drugs"`
	Interactions            []DrugInteractionRecord `json:"interactions"`
	OverallRiskLevel        InteractionSeverity     `json:"overall_risk_level"`
	PatientSpecificWarnings []string                `json:"patient_specific_warnings,omitempty"`
	DoseAdjustments         []DoseAdjustment        `json:"dose_adjustments,omitempty"`
	ConsultationRequired    bool                    `json:"consultation_required"`
	PairsChecked            int                     `json:"pairs_checked"`
}

// LogFields returns structured logging fields for audit trails.
func (a *DrugInteractionAnalysis) LogFields() map[string]any {
	return map[string]any{
		"drug_count":            len(a.Drugs),
		"pairs_checked":         a.PairsChecked,
		"interactions_found":    len(a.Interactions),
		"overall_risk_level":    a.OverallRiskLevel.String(),
		"consultation_required": a.ConsultationRequired,
	}
}
