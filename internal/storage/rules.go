package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/marbec/linkmesh/internal/rule"
)

// PutRule stores a platform's rule. Creating a second rule for a platform is
// a conflict unless replace is set.
func (d *DB) PutRule(s rule.Stored, replace bool) error {
	if s.Platform == "" {
		return fmt.Errorf("rule has no platform")
	}
	if violations := rule.Merge(s).Validate(); len(violations) > 0 {
		return fmt.Errorf("invalid rule for %s: %s", s.Platform, violations[0])
	}

	if !replace {
		var exists int
		err := d.db.QueryRow(`SELECT COUNT(*) FROM rules WHERE platform = ?`, s.Platform).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking rule for %s: %w", s.Platform, err)
		}
		if exists > 0 {
			return fmt.Errorf("rule for %s: %w", s.Platform, ErrRuleExists)
		}
	}

	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling rule for %s: %w", s.Platform, err)
	}

	_, err = d.db.Exec(`
		INSERT OR REPLACE INTO rules (platform, rule_json) VALUES (?, ?)
	`, s.Platform, string(b))
	if err != nil {
		return fmt.Errorf("storing rule for %s: %w", s.Platform, err)
	}
	return nil
}

// GetRule returns the fully resolved rule for a platform. A platform without
// a stored rule gets the default rule, never an error.
func (d *DB) GetRule(platform string) (rule.Rule, error) {
	var ruleJSON string
	err := d.db.QueryRow(`SELECT rule_json FROM rules WHERE platform = ?`, platform).Scan(&ruleJSON)
	if err == sql.ErrNoRows {
		r := rule.Default()
		r.Platform = platform
		return r, nil
	}
	if err != nil {
		return rule.Rule{}, fmt.Errorf("reading rule for %s: %w", platform, err)
	}

	var s rule.Stored
	if err := json.Unmarshal([]byte(ruleJSON), &s); err != nil {
		return rule.Rule{}, fmt.Errorf("parsing rule for %s: %w", platform, err)
	}
	return rule.Merge(s), nil
}

// HasRule reports whether a platform has a stored rule of its own.
func (d *DB) HasRule(platform string) (bool, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM rules WHERE platform = ?`, platform).Scan(&count)
	return count > 0, err
}

// DeleteRule removes a platform's stored rule, reverting it to the default.
func (d *DB) DeleteRule(platform string) error {
	res, err := d.db.Exec(`DELETE FROM rules WHERE platform = ?`, platform)
	if err != nil {
		return fmt.Errorf("deleting rule for %s: %w", platform, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule for %s: %w", platform, ErrNotFound)
	}
	return nil
}
