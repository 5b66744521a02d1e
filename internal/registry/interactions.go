package registry

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/clinical-safety-engine/internal/domain"
)

// InteractionRegistry stores known drug-drug interactions keyed by an
// unordered, case-insensitive drug pair.
type InteractionRegistry struct {
	logger *logrus.Logger

	mu           sync.RWMutex
	interactions map[string]domain.DrugInteractionRecord
}

// NewInteractionRegistry creates an empty interaction registry.
func NewInteractionRegistry(logger *logrus.Logger) *InteractionRegistry {
	return &InteractionRegistry{
		logger:       logger,
		interactions: make(map[string]domain.DrugInteractionRecord),
	}
}

// Add registers a new interaction record. Re-registering a pair replaces the
// previous record; interaction knowledge updates are routine admin work.
func (r *InteractionRegistry) Add(record domain.DrugInteractionRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := record.PairKey()
	_, replacing := r.interactions[key]
	r.interactions[key] = record

	r.logger.WithFields(logrus.Fields{
		"drug_a":    record.DrugA,
		"drug_b":    record.DrugB,
		"severity":  record.Severity.String(),
		"replacing": replacing,
	}).Info("Registered drug interaction")
	return nil
}

// Lookup finds the interaction record for a drug pair, order-independently.
func (r *InteractionRegistry) Lookup(drugA, drugB string) (domain.DrugInteractionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, found := r.interactions[domain.InteractionPairKey(drugA, drugB)]
	return record, found
}

// Snapshot returns all registered interaction records.
func (r *InteractionRegistry) Snapshot() []domain.DrugInteractionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.DrugInteractionRecord, 0, len(r.interactions))
	for _, record := range r.interactions {
		out = append(out, record)
	}
	return out
}

// Len returns the number of registered interaction records.
func (r *InteractionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.interactions)
}

// Remove deletes the record for a drug pair.
func (r *InteractionRegistry) Remove(drugA, drugB string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.InteractionPairKey(drugA, drugB)
	if _, found := r.interactions[key]; !found {
		return fmt.Errorf("interaction %s/%s: %w", drugA, drugB, domain.ErrNotFound)
	}
	delete(r.interactions, key)
	return nil
}
