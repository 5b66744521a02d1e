package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/clinical-safety-engine/internal/domain"
)

// SQLiteStore persists the rule, guideline and interaction registries.
// Only registry content lives here; evaluation results are never stored.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the registry database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency between admin writes and reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// NewStoreWithDB wraps an existing database handle. Used by tests.
func NewStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// createSchema creates the registry tables.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clinical_rules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		conditions TEXT NOT NULL,
		actions TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS guideline_rules (
		diagnosis TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		conditions TEXT NOT NULL,
		actions TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (diagnosis, rule_id)
	);

	CREATE TABLE IF NOT EXISTS drug_interactions (
		pair_key TEXT PRIMARY KEY,
		drug_a TEXT NOT NULL,
		drug_b TEXT NOT NULL,
		effect TEXT NOT NULL DEFAULT '',
		severity TEXT NOT NULL,
		recommendations TEXT NOT NULL DEFAULT '[]',
		requires_consult INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_guideline_diagnosis ON guideline_rules(diagnosis);
	`
	_, err := db.Exec(schema)
	return err
}

// scanner is an interface over sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRule scans a row into a ClinicalRule, decoding the JSON columns.
func scanRule(s scanner) (*domain.ClinicalRule, error) {
	rule := &domain.ClinicalRule{}
	var conditions, actions string
	var enabled int

	if err := s.Scan(&rule.ID, &rule.Name, &rule.Category, &conditions, &actions, &enabled); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode conditions for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions for rule %s: %w", rule.ID, err)
	}
	rule.Enabled = enabled != 0
	return rule, nil
}

// SaveRule inserts or replaces a clinical rule.
func (s *SQLiteStore) SaveRule(ctx context.Context, rule domain.ClinicalRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO clinical_rules (id, name, category, conditions, actions, enabled)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.Category, string(conditions), string(actions), boolToInt(rule.Enabled))
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}
	return nil
}

// LoadRules returns all persisted clinical rules.
func (s *SQLiteStore) LoadRules(ctx context.Context) ([]domain.ClinicalRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, conditions, actions, enabled FROM clinical_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.ClinicalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

// SaveGuidelineRule inserts or replaces one rule of a diagnosis guideline set.
func (s *SQLiteStore) SaveGuidelineRule(ctx context.Context, diagnosis string, rule domain.ClinicalRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO guideline_rules (diagnosis, rule_id, name, category, conditions, actions, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		diagnosis, rule.ID, rule.Name, rule.Category, string(conditions), string(actions), boolToInt(rule.Enabled))
	if err != nil {
		return fmt.Errorf("failed to save guideline rule %s/%s: %w", diagnosis, rule.ID, err)
	}
	return nil
}

// LoadGuidelines returns all persisted guideline sets keyed by diagnosis.
func (s *SQLiteStore) LoadGuidelines(ctx context.Context) (map[string][]domain.ClinicalRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT diagnosis, rule_id, name, category, conditions, actions, enabled
		 FROM guideline_rules ORDER BY diagnosis, rule_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guidelines: %w", err)
	}
	defer rows.Close()

	guidelines := make(map[string][]domain.ClinicalRule)
	for rows.Next() {
		var diagnosis, conditions, actions string
		var enabled int
		rule := domain.ClinicalRule{}
		if err := rows.Scan(&diagnosis, &rule.ID, &rule.Name, &rule.Category, &conditions, &actions, &enabled); err != nil {
			return nil, fmt.Errorf("failed to scan guideline rule: %w", err)
		}
		if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("failed to decode guideline conditions: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
			return nil, fmt.Errorf("failed to decode guideline actions: %w", err)
		}
		rule.Enabled = enabled != 0
		guidelines[diagnosis] = append(guidelines[diagnosis], rule)
	}
	return guidelines, rows.Err()
}

// SaveInteraction inserts or replaces a drug interaction record.
func (s *SQLiteStore) SaveInteraction(ctx context.Context, record domain.DrugInteractionRecord) error {
	recommendations, err := json.Marshal(record.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO drug_interactions (pair_key, drug_a, drug_b, effect, severity, recommendations, requires_consult)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.PairKey(), record.DrugA, record.DrugB, record.Effect,
		string(record.Severity), string(recommendations), boolToInt(record.RequiresConsult))
	if err != nil {
		return fmt.Errorf("failed to save interaction %s: %w", record.PairKey(), err)
	}
	return nil
}

// DeleteInteraction removes the persisted record for a drug pair. Deleting a
// pair that was never stored is not an error.
func (s *SQLiteStore) DeleteInteraction(ctx context.Context, drugA, drugB string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM drug_interactions WHERE pair_key = ?`,
		domain.InteractionPairKey(drugA, drugB))
	if err != nil {
		return fmt.Errorf("failed to delete interaction %s: %w", domain.InteractionPairKey(drugA, drugB), err)
	}
	return nil
}

// LoadInteractions returns all persisted interaction records.
func (s *SQLiteStore) LoadInteractions(ctx context.Context) ([]domain.DrugInteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT drug_a, drug_b, effect, severity, recommendations, requires_consult
		 FROM drug_interactions ORDER BY pair_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var records []domain.DrugInteractionRecord
	for rows.Next() {
		var record domain.DrugInteractionRecord
		var severity, recommendations string
		var requiresConsult int
		if err := rows.Scan(&record.DrugA, &record.DrugB, &record.Effect, &severity, &recommendations, &requiresConsult); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		if err := json.Unmarshal([]byte(recommendations), &record.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations: %w", err)
		}
		record.Severity = domain.InteractionSeverity(severity)
		record.RequiresConsult = requiresConsult != 0
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
