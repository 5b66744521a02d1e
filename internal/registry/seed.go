package registry

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// DefaultClinicalRules returns the built-in oncology safety rule set used to
// seed an empty registry store.
func DefaultClinicalRules() []domain.ClinicalRule {
	return []domain.ClinicalRule{
		{
			ID:       "onc-neutropenia",
			Name:     "Neutropenia risk",
			Category: "hematology",
			Conditions: []domain.RuleCondition{
				{
					Type:       domain.CONDITION_LAB,
					Operator:   domain.OPERATOR_LESS_THAN,
					Value:      500,
					Parameters: map[string]string{"labName": "neutrophils"},
				},
			},
			Actions: []domain.RuleAction{
				{
					Severity: domain.SEVERITY_HIGH,
					Message:  "Neutropenia risk: absolute neutrophil count below 500/µL",
					Recommendations: []string{
						"Hold myelosuppressive therapy pending hematology review",
						"Monitor for fever and signs of infection",
					},
				},
			},
			Enabled: true,
		},
		{
			ID:       "onc-renal-function",
			Name:     "Impaired renal function",
			Category: "nephrology",
			Conditions: []domain.RuleCondition{
				{
					Type:       domain.CONDITION_LAB,
					Operator:   domain.OPERATOR_GREATER_THAN,
					Value:      2.0,
					Parameters: map[string]string{"labName": "creatinine"},
				},
			},
			Actions: []domain.RuleAction{
				{
					Severity: domain.SEVERITY_HIGH,
					Message:  "Elevated serum creatinine: avoid nephrotoxic combinations",
					Recommendations: []string{
						"Prefer conservative dosing of renally cleared agents",
					},
				},
			},
			Enabled: true,
		},
		{
			ID:       "onc-anthracycline-cardiac",
			Name:     "Anthracycline with cardiac history",
			Category: "cardio-oncology",
			Conditions: []domain.RuleCondition{
				{
					Type:     domain.CONDITION_MEDICATION,
					Operator: domain.OPERATOR_CONTAINS,
					Value:    "Doxorubicin",
				},
				{
					Type:       domain.CONDITION_CUSTOM,
					Operator:   domain.OPERATOR_EQUALS,
					Value:      true,
					Parameters: map[string]string{"path": "history.cardiacDisease"},
				},
			},
			Actions: []domain.RuleAction{
				{
					Severity: domain.SEVERITY_CRITICAL,
					Message:  "Anthracycline prescribed with documented cardiac disease",
					Recommendations: []string{
						"Obtain cardiology clearance and baseline echocardiogram",
						"Track cumulative anthracycline dose",
					},
				},
			},
			Enabled: true,
		},
		{
			ID:       "onc-penicillin-allergy",
			Name:     "Penicillin allergy cross-reactivity",
			Category: "allergy",
			Conditions: []domain.RuleCondition{
				{
					Type:     domain.CONDITION_ALLERGY,
					Operator: domain.OPERATOR_CONTAINS,
					Value:    "penicillin",
				},
				{
					Type:     domain.CONDITION_MEDICATION,
					Operator: domain.OPERATOR_CONTAINS,
					Value:    "Amoxicillin",
				},
			},
			Actions: []domain.RuleAction{
				{
					Severity: domain.SEVERITY_CRITICAL,
					Message:  "Prescribed beta-lactam to patient with documented penicillin allergy",
					Recommendations: []string{
						"Select a non-beta-lactam alternative",
					},
				},
			},
			Enabled: true,
		},
		{
			ID:       "onc-elderly-review",
			Name:     "Elderly patient dosing review",
			Category: "geriatrics",
			Conditions: []domain.RuleCondition{
				{
					Type:     domain.CONDITION_AGE,
					Operator: domain.OPERATOR_GREATER_THAN,
					Value:    75,
				},
			},
			Actions: []domain.RuleAction{
				{
					Severity: domain.SEVERITY_MEDIUM,
					Message:  "Patient over 75: review dosing and cumulative toxicity risk",
					Recommendations: []string{
						"Start low, titrate slowly; reassess renal and hepatic function",
					},
				},
			},
			Enabled: true,
		},
	}
}

// DefaultGuidelines returns the built-in guideline-compliance rule sets
// keyed by diagnosis.
func DefaultGuidelines() map[string][]domain.ClinicalRule {
	return map[string][]domain.ClinicalRule{
		"breast_cancer": {
			{
				ID:       "gl-bc-her2-cardiac",
				Name:     "HER2 therapy cardiac monitoring",
				Category: "guideline",
				Conditions: []domain.RuleCondition{
					{
						Type:     domain.CONDITION_MEDICATION,
						Operator: domain.OPERATOR_CONTAINS,
						Value:    "Trastuzumab",
					},
				},
				Actions: []domain.RuleAction{
					{
						Severity: domain.SEVERITY_MEDIUM,
						Message:  "HER2-targeted therapy: cardiac function monitoring required every 3 months",
						Recommendations: []string{
							"Schedule LVEF assessment",
						},
					},
				},
				Enabled: true,
			},
		},
		"colorectal_cancer": {
			{
				ID:       "gl-crc-dpd",
				Name:     "Fluoropyrimidine DPD screening",
				Category: "guideline",
				Conditions: []domain.RuleCondition{
					{
						Type:     domain.CONDITION_MEDICATION,
						Operator: domain.OPERATOR_CONTAINS,
						Value:    "Fluorouracil",
					},
					{
						Type:       domain.CONDITION_CUSTOM,
						Operator:   domain.OPERATOR_NOT_EQUALS,
						Value:      true,
						Parameters: map[string]string{"path": "screening.dpdTested"},
					},
				},
				Actions: []domain.RuleAction{
					{
						Severity: domain.SEVERITY_HIGH,
						Message:  "Fluoropyrimidine prescribed without documented DPD deficiency screening",
						Recommendations: []string{
							"Order DPYD genotyping before first cycle",
						},
					},
				},
				Enabled: true,
			},
		},
	}
}

// DefaultInteractions returns the built-in drug interaction records.
func DefaultInteractions() []domain.DrugInteractionRecord {
	return []domain.DrugInteractionRecord{
		{
			DrugA:    "Warfarin",
			DrugB:    "Aspirin",
			Effect:   "Additive anticoagulation markedly increases bleeding risk",
			Severity: domain.INTERACTION_MAJOR,
			Recommendations: []string{
				"Monitor INR closely",
				"Consider gastroprotection",
			},
			RequiresConsult: true,
		},
		{
			DrugA:    "Methotrexate",
			DrugB:    "Ibuprofen",
			Effect:   "NSAIDs reduce methotrexate clearance and raise toxicity risk",
			Severity: domain.INTERACTION_MAJOR,
			Recommendations: []string{
				"Avoid NSAIDs around high-dose methotrexate",
			},
			RequiresConsult: true,
		},
		{
			DrugA:    "Tadalafil",
			DrugB:    "Nitroglycerin",
			Effect:   "PDE5 inhibitors with nitrates cause refractory hypotension",
			Severity: domain.INTERACTION_CONTRAINDICATED,
			Recommendations: []string{
				"Do not co-administer; coordinate cardiology care",
			},
			RequiresConsult: true,
		},
		{
			DrugA:    "Sildenafil",
			DrugB:    "Amlodipine",
			Effect:   "PDE5 inhibitor may enhance the hypotensive effect of amlodipine",
			Severity: domain.INTERACTION_MODERATE,
			Recommendations: []string{
				"Monitor blood pressure during initiation",
			},
		},
		{
			DrugA:    "Cisplatin",
			DrugB:    "Gentamicin",
			Effect:   "Additive nephrotoxicity and ototoxicity",
			Severity: domain.INTERACTION_MAJOR,
			Recommendations: []string{
				"Avoid combination; monitor renal function and hearing if unavoidable",
			},
			RequiresConsult: true,
		},
		{
			DrugA:    "Tamoxifen",
			DrugB:    "Paroxetine",
			Effect:   "Strong CYP2D6 inhibition reduces tamoxifen activation",
			Severity: domain.INTERACTION_MODERATE,
			Recommendations: []string{
				"Prefer an antidepressant with weak CYP2D6 inhibition",
			},
		},
	}
}

// LoadOrSeed populates the three registries from the store, seeding the
// store with the built-in defaults when it is empty and seeding is enabled.
func LoadOrSeed(ctx context.Context, store *SQLiteStore, seed bool, logger *logrus.Logger) (*RuleRegistry, *GuidelineRegistry, *InteractionRegistry, error) {
	rules, err := store.LoadRules(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	guidelines, err := store.LoadGuidelines(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load guidelines: %w", err)
	}
	interactions, err := store.LoadInteractions(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	if seed && len(rules) == 0 && len(interactions) == 0 && len(guidelines) == 0 {
		logger.Info("Registry store empty, seeding built-in rule and interaction sets")
		rules = DefaultClinicalRules()
		guidelines = DefaultGuidelines()
		interactions = DefaultInteractions()

		for _, rule := range rules {
			if err := store.SaveRule(ctx, rule); err != nil {
				return nil, nil, nil, err
			}
		}
		for diagnosis, set := range guidelines {
			for _, rule := range set {
				if err := store.SaveGuidelineRule(ctx, diagnosis, rule); err != nil {
					return nil, nil, nil, err
				}
			}
		}
		for _, record := range interactions {
			if err := store.SaveInteraction(ctx, record); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	ruleRegistry := NewRuleRegistry(logger)
	for _, rule := range rules {
		if err := ruleRegistry.Add(rule); err != nil {
			return nil, nil, nil, err
		}
	}

	guidelineRegistry := NewGuidelineRegistry(logger)
	for diagnosis, set := range guidelines {
		if err := guidelineRegistry.SetGuidelines(diagnosis, set); err != nil {
			return nil, nil, nil, err
		}
	}

	interactionRegistry := NewInteractionRegistry(logger)
	for _, record := range interactions {
		if err := interactionRegistry.Add(record); err != nil {
			return nil, nil, nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"rules":        ruleRegistry.Len(),
		"guidelines":   len(guidelineRegistry.Diagnoses()),
		"interactions": interactionRegistry.Len(),
	}).Info("Registries loaded")

	return ruleRegistry, guidelineRegistry, interactionRegistry, nil
}
