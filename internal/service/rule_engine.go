// Package service implements the deterministic gating logic of the engine:
// clinical rule evaluation, drug interaction analysis, AI confidence scoring
// and the safety orchestrator that composes them.
package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// RuleEngine evaluates declarative clinical rules against a clinical data
// record. Evaluation is pure: the engine holds no state beyond its logger
// and reads rules from caller-supplied snapshots.
type RuleEngine struct {
	logger *logrus.Logger
}

// NewRuleEngine creates a new rule engine.
func NewRuleEngine(logger *logrus.Logger) *RuleEngine {
	return &RuleEngine{logger: logger}
}

// EvaluateRules runs every enabled rule against the clinical data and merges
// the produced alerts into one SafetyCheckResult. A malformed rule or
// condition never aborts the batch: it evaluates false, is logged, and the
// remaining rules still run.
func (e *RuleEngine) EvaluateRules(rules []domain.ClinicalRule, data domain.ClinicalData) *domain.SafetyCheckResult {
	return e.evaluate(rules, data, domain.SourceClinicalRules)
}

// EvaluateGuidelines runs a guideline-compliance rule set. Same evaluator,
// different source tag on the produced alerts.
func (e *RuleEngine) EvaluateGuidelines(rules []domain.ClinicalRule, data domain.ClinicalData) *domain.SafetyCheckResult {
	return e.evaluate(rules, data, domain.SourceGuidelines)
}

func (e *RuleEngine) evaluate(rules []domain.ClinicalRule, data domain.ClinicalData, sourceModule string) *domain.SafetyCheckResult {
	result := &domain.SafetyCheckResult{
		Passed:          true,
		Severity:        domain.SEVERITY_LOW,
		Alerts:          []domain.SafetyAlert{},
		Recommendations: []string{},
		BlockingIssues:  []string{},
	}

	fired := 0
	for i := range rules {
		rule := &rules[i]
		if !rule.Enabled {
			continue
		}
		if !e.ruleMatches(rule, data) {
			continue
		}
		fired++

		for _, action := range rule.Actions {
			alert := domain.SafetyAlert{
				ID:                      uuid.NewString(),
				Severity:                action.Severity,
				SourceModule:            sourceModule,
				AlertType:               rule.Category,
				Message:                 action.Message,
				Details:                 action.AdditionalData,
				Recommendations:         action.Recommendations,
				AcknowledgementRequired: action.Severity.AtLeast(domain.SEVERITY_HIGH),
			}
			result.Alerts = append(result.Alerts, alert)
			result.Severity = domain.MaxSeverity(result.Severity, action.Severity)
			result.Recommendations = appendUnique(result.Recommendations, action.Recommendations...)

			if action.Severity == domain.SEVERITY_CRITICAL {
				result.Passed = false
				result.BlockingIssues = append(result.BlockingIssues, action.Message)
			}
		}
	}

	result.RequiresEscalation = result.Severity.AtLeast(domain.SEVERITY_HIGH)

	e.logger.WithFields(logrus.Fields{
		"source_module": sourceModule,
		"rules_total":   len(rules),
		"rules_fired":   fired,
		"severity":      result.Severity.String(),
		"passed":        result.Passed,
	}).Debug("Completed rule evaluation")

	return result
}

// ruleMatches reports whether every condition of the rule holds (logical
// AND). Conditions are evaluated independently, with no short-circuit side
// effects beyond skipping the remainder once one fails.
func (e *RuleEngine) ruleMatches(rule *domain.ClinicalRule, data domain.ClinicalData) bool {
	for i := range rule.Conditions {
		holds, err := e.evaluateCondition(&rule.Conditions[i], data)
		if err != nil {
			// Single bad condition: log and treat as non-matching.
			e.logger.WithError(err).WithField("rule_id", rule.ID).Warn("Skipping malformed rule condition")
			return false
		}
		if !holds {
			return false
		}
	}
	return true
}

// evaluateCondition extracts the condition's value from the record and
// applies its operator.
func (e *RuleEngine) evaluateCondition(cond *domain.RuleCondition, data domain.ClinicalData) (bool, error) {
	value, err := extractValue(cond, data)
	if err != nil {
		return false, err
	}
	return applyOperator(cond.Operator, value, cond.Value)
}

// extractValue resolves the condition's subject in the clinical data record.
func extractValue(cond *domain.RuleCondition, data domain.ClinicalData) (any, error) {
	switch cond.Type {
	case domain.CONDITION_AGE:
		if age, ok := data.Age(); ok {
			return age, nil
		}
		return nil, nil
	case domain.CONDITION_ALLERGY:
		return data.Allergies(), nil
	case domain.CONDITION_DIAGNOSIS:
		return data.Diagnosis(), nil
	case domain.CONDITION_MEDICATION:
		return data.Medications(), nil
	case domain.CONDITION_LAB:
		name := cond.Parameters["labName"]
		if name == "" {
			return nil, fmt.Errorf("lab condition missing labName parameter")
		}
		return data.Lab(name), nil
	case domain.CONDITION_CUSTOM:
		path := cond.Parameters["path"]
		if path == "" {
			return nil, fmt.Errorf("custom condition missing path parameter")
		}
		value, _ := data.Resolve(path)
		return value, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidConditionType, cond.Type)
	}
}

// applyOperator applies the comparison operator. Numeric operators on
// non-numeric operands make the condition false, not an error.
func applyOperator(op domain.ConditionOperator, value, operand any) (bool, error) {
	switch op {
	case domain.OPERATOR_EQUALS:
		return looseEquals(value, operand), nil
	case domain.OPERATOR_NOT_EQUALS:
		return !looseEquals(value, operand), nil
	case domain.OPERATOR_GREATER_THAN:
		a, okA := toFloat(value)
		b, okB := toFloat(operand)
		return okA && okB && a > b, nil
	case domain.OPERATOR_LESS_THAN:
		a, okA := toFloat(value)
		b, okB := toFloat(operand)
		return okA && okB && a < b, nil
	case domain.OPERATOR_CONTAINS:
		return containsValue(value, operand), nil
	case domain.OPERATOR_NOT_CONTAINS:
		return !containsValue(value, operand), nil
	default:
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidOperator, op)
	}
}

// looseEquals compares numerically when both sides are numbers, otherwise by
// exact value.
func looseEquals(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return a == b
}

// containsValue tests list membership when the extracted value is a list,
// else substring containment on its string form. Both comparisons fold case:
// rule authors write "penicillin" while charting systems record "Penicillin",
// and the same rule must match either.
func containsValue(value, operand any) bool {
	needle := strings.ToLower(fmt.Sprintf("%v", operand))

	switch list := value.(type) {
	case []string:
		for _, item := range list {
			if strings.ToLower(item) == needle {
				return true
			}
		}
		return false
	case []any:
		for _, item := range list {
			if strings.ToLower(fmt.Sprintf("%v", item)) == needle {
				return true
			}
		}
		return false
	case nil:
		return false
	default:
		return strings.Contains(strings.ToLower(fmt.Sprintf("%v", value)), needle)
	}
}

// toFloat coerces the numeric types JSON decoding and rule authors produce.
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

// appendUnique appends items not already present, preserving order.
func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		seen := false
		for _, existing := range dst {
			if existing == item {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, item)
		}
	}
	return dst
}
