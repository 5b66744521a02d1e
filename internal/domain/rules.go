package domain

import (
	"fmt"
	"strings"
)

// ConditionType is the tagged variant selecting how a condition extracts its
// value from the clinical data record.
type ConditionType string

const (
	CONDITION_AGE        ConditionType = "age"
	CONDITION_ALLERGY    ConditionType = "allergy"
	CONDITION_DIAGNOSIS  ConditionType = "diagnosis"
	CONDITION_MEDICATION ConditionType = "medication"
	CONDITION_LAB        ConditionType = "lab"
	CONDITION_CUSTOM     ConditionType = "custom"
)

// ConditionOperator is the comparison applied to the extracted value.
type ConditionOperator string

const (
	OPERATOR_EQUALS       ConditionOperator = "equals"
	OPERATOR_NOT_EQUALS   ConditionOperator = "notEquals"
	OPERATOR_GREATER_THAN ConditionOperator = "greaterThan"
	OPERATOR_LESS_THAN    ConditionOperator = "lessThan"
	OPERATOR_CONTAINS     ConditionOperator = "contains"
	OPERATOR_NOT_CONTAINS ConditionOperator = "notContains"
)

// IsValid validates the condition type.
func (ct ConditionType) IsValid() bool {
	switch ct {
	case CONDITION_AGE, CONDITION_ALLERGY, CONDITION_DIAGNOSIS,
		CONDITION_MEDICATION, CONDITION_LAB, CONDITION_CUSTOM:
		return true
	default:
		return false
	}
}

// IsValid validates the condition operator.
func (op ConditionOperator) IsValid() bool {
	switch op {
	case OPERATOR_EQUALS, OPERATOR_NOT_EQUALS, OPERATOR_GREATER_THAN,
		OPERATOR_LESS_THAN, OPERATOR_CONTAINS, OPERATOR_NOT_CONTAINS:
		return true
	default:
		return false
	}
}

// RuleCondition is a single predicate over the clinical data record.
// All conditions of a rule must hold for the rule to fire.
type RuleCondition struct {
	Type       ConditionType     `json:"type"`
	Operator   ConditionOperator `json:"operator"`
	Value      any               `json:"value"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// Validate checks the structural invariants of a condition: lab conditions
// need a labName parameter, custom conditions need a dot-path.
func (c *RuleCondition) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("rule condition validation: %w: %q", ErrInvalidConditionType, c.Type)
	}
	if !c.Operator.IsValid() {
		return fmt.Errorf("rule condition validation: %w: %q", ErrInvalidOperator, c.Operator)
	}
	switch c.Type {
	case CONDITION_LAB:
		if c.Parameters["labName"] == "" {
			return fmt.Errorf("rule condition validation: lab condition requires parameters.labName")
		}
	case CONDITION_CUSTOM:
		if c.Parameters["path"] == "" {
			return fmt.Errorf("rule condition validation: custom condition requires parameters.path")
		}
	}
	return nil
}

// RuleAction describes one alert a firing rule produces. Each action of a
// firing rule fires independently.
type RuleAction struct {
	Severity        Severity       `json:"severity"`
	Message         string         `json:"message"`
	AdditionalData  map[string]any `json:"additional_data,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// Validate checks the action is well formed.
func (a *RuleAction) Validate() error {
	if !a.Severity.IsValid() {
		return fmt.Errorf("rule action validation: %w: %q", ErrInvalidSeverity, a.Severity)
	}
	if a.Message == "" {
		return fmt.Errorf("rule action validation: message is required")
	}
	return nil
}

// ClinicalRule is a declarative safety rule: a condition set (logical AND)
// mapped to one or more alert actions. Rules are created and updated only
// through the registry API and are read-only during evaluation.
type ClinicalRule struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Conditions []RuleCondition `json:"conditions"`
	Actions    []RuleAction    `json:"actions"`
	Enabled    bool            `json:"enabled"`
}

// Validate ensures the rule is usable by the engine. Invalid rules are
// rejected at registration time, never silently at evaluation time.
func (r *ClinicalRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("clinical rule validation: ID is required")
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("clinical rule validation: rule %s has no conditions", r.ID)
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("clinical rule validation: rule %s has no actions", r.ID)
	}
	for i := range r.Conditions {
		if err := r.Conditions[i].Validate(); err != nil {
			return fmt.Errorf("clinical rule %s condition %d: %w", r.ID, i, err)
		}
	}
	for i := range r.Actions {
		if err := r.Actions[i].Validate(); err != nil {
			return fmt.Errorf("clinical rule %s action %d: %w", r.ID, i, err)
		}
	}
	return nil
}

// ClinicalData is the arbitrary clinical-data record evaluations run against.
// Well-known keys ("age", "allergies", "diagnosis", "medications", "labs")
// have dedicated accessors; everything else is reachable via dot-path.
type ClinicalData map[string]any

// Age returns the patient age when present and numeric.
func (d ClinicalData) Age() (float64, bool) {
	return toFloat(d["age"])
}

// Diagnosis returns the primary diagnosis string, empty when absent.
func (d ClinicalData) Diagnosis() string {
	s, _ := d["diagnosis"].(string)
	return s
}

// Allergies returns the allergy list, defaulting to empty.
func (d ClinicalData) Allergies() []string {
	return toStringList(d["allergies"])
}

// Medications returns the medication list, defaulting to empty.
func (d ClinicalData) Medications() []string {
	return toStringList(d["medications"])
}

// Lab returns the named lab value, or nil when the labs map or the entry is
// missing.
func (d ClinicalData) Lab(name string) any {
	labs, ok := d["labs"].(map[string]any)
	if !ok {
		return nil
	}
	return labs[name]
}

// Resolve traverses a dot-path ("vitals.bp.systolic") through nested maps.
// A missing segment yields (nil, false); traversal never panics.
func (d ClinicalData) Resolve(path string) (any, bool) {
	var current any = map[string]any(d)
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// toFloat coerces the numeric types JSON decoding and callers produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toStringList accepts both []string and the []any JSON decoding produces.
func toStringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
