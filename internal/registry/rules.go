// Package registry holds the process-wide, read-mostly registries of
// clinical rules, diagnosis guidelines and drug interactions. Mutation goes
// through an explicit add/update API guarded by a single writer; every
// evaluation reads an immutable snapshot.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// RuleRegistry stores clinical rules. Snapshot returns a copy-on-write view
// so concurrent evaluations never observe a partial update.
type RuleRegistry struct {
	logger *logrus.Logger

	mu       sync.RWMutex
	rules    map[string]domain.ClinicalRule
	snapshot []domain.ClinicalRule
}

// NewRuleRegistry creates an empty rule registry.
func NewRuleRegistry(logger *logrus.Logger) *RuleRegistry {
	return &RuleRegistry{
		logger: logger,
		rules:  make(map[string]domain.ClinicalRule),
	}
}

// Add registers a new rule. Adding an existing ID is an error; use Update.
func (r *RuleRegistry) Add(rule domain.ClinicalRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s already registered", rule.ID)
	}
	r.rules[rule.ID] = rule
	r.rebuildLocked()

	r.logger.WithFields(logrus.Fields{
		"rule_id":  rule.ID,
		"category": rule.Category,
	}).Info("Registered clinical rule")
	return nil
}

// Update replaces an existing rule.
func (r *RuleRegistry) Update(rule domain.ClinicalRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[rule.ID]; !exists {
		return fmt.Errorf("rule %s: %w", rule.ID, domain.ErrNotFound)
	}
	r.rules[rule.ID] = rule
	r.rebuildLocked()

	r.logger.WithField("rule_id", rule.ID).Info("Updated clinical rule")
	return nil
}

// Remove deletes a rule by ID.
func (r *RuleRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[id]; !exists {
		return fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	delete(r.rules, id)
	r.rebuildLocked()

	r.logger.WithField("rule_id", id).Info("Removed clinical rule")
	return nil
}

// Get returns a rule by ID.
func (r *RuleRegistry) Get(id string) (domain.ClinicalRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, exists := r.rules[id]
	if !exists {
		return domain.ClinicalRule{}, fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	return rule, nil
}

// Snapshot returns the current immutable rule set. Callers must not mutate
// the returned slice.
func (r *RuleRegistry) Snapshot() []domain.ClinicalRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Len returns the number of registered rules.
func (r *RuleRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// rebuildLocked regenerates the snapshot, ordered by rule ID so that
// evaluation order is stable across mutations. Caller holds the write lock.
func (r *RuleRegistry) rebuildLocked() {
	snapshot := make([]domain.ClinicalRule, 0, len(r.rules))
	for _, rule := range r.rules {
		snapshot = append(snapshot, rule)
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })
	r.snapshot = snapshot
}

// GuidelineRegistry stores guideline-compliance rule sets keyed by
// diagnosis. The orchestrator evaluates the set matching the record's
// diagnosis with the same rule engine used for clinical rules.
type GuidelineRegistry struct {
	logger *logrus.Logger

	mu         sync.RWMutex
	guidelines map[string][]domain.ClinicalRule
}

// NewGuidelineRegistry creates an empty guideline registry.
func NewGuidelineRegistry(logger *logrus.Logger) *GuidelineRegistry {
	return &GuidelineRegistry{
		logger:     logger,
		guidelines: make(map[string][]domain.ClinicalRule),
	}
}

// SetGuidelines replaces the guideline rule set for a diagnosis.
func (g *GuidelineRegistry) SetGuidelines(diagnosis string, rules []domain.ClinicalRule) error {
	for i := range rules {
		if err := rules[i].Validate(); err != nil {
			return fmt.Errorf("guideline set %s: %w", diagnosis, err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	copied := make([]domain.ClinicalRule, len(rules))
	copy(copied, rules)
	g.guidelines[diagnosis] = copied

	g.logger.WithFields(logrus.Fields{
		"diagnosis":  diagnosis,
		"rule_count": len(rules),
	}).Info("Updated guideline rule set")
	return nil
}

// ForDiagnosis returns the guideline rule set for a diagnosis, or an empty
// slice when none is registered.
func (g *GuidelineRegistry) ForDiagnosis(diagnosis string) []domain.ClinicalRule {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.guidelines[diagnosis]
}

// Diagnoses returns the diagnoses with registered guideline sets.
func (g *GuidelineRegistry) Diagnoses() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.guidelines))
	for d := range g.guidelines {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
