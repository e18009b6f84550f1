package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/marbec/linkmesh/internal/link"
)

// maxDomainFailures is the consecutive-failure count after which a domain is
// deactivated by RecordDomainCheck.
const maxDomainFailures = 3

// PutDomain inserts or replaces an authority-domain catalog entry.
func (d *DB) PutDomain(dom *link.AuthorityDomain) error {
	if err := dom.ValidateForCreate(); err != nil {
		return err
	}

	countriesJSON, err := marshalList(dom.Countries)
	if err != nil {
		return fmt.Errorf("marshaling countries for %s: %w", dom.Domain, err)
	}
	topicsJSON, err := marshalList(dom.Topics)
	if err != nil {
		return fmt.Errorf("marshaling topics for %s: %w", dom.Domain, err)
	}

	_, err = d.db.Exec(`
		INSERT OR REPLACE INTO domains (
			domain, type, countries_json, topics_json, authority, active, failures
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, dom.Domain, string(dom.Type), nullableString(countriesJSON),
		nullableString(topicsJSON), dom.Authority, boolToInt(dom.Active), dom.Failures)
	if err != nil {
		return fmt.Errorf("inserting domain %s: %w", dom.Domain, err)
	}
	return nil
}

// GetDomain retrieves one catalog entry. Returns ErrNotFound if absent.
func (d *DB) GetDomain(domain string) (*link.AuthorityDomain, error) {
	row := d.db.QueryRow(`
		SELECT domain, type, countries_json, topics_json, authority, active, failures
		FROM domains WHERE domain = ?
	`, domain)
	dom, err := scanDomain(row)
	if err != nil {
		return nil, err
	}
	if dom == nil {
		return nil, fmt.Errorf("domain %s: %w", domain, ErrNotFound)
	}
	return dom, nil
}

// ListDomains returns catalog entries, optionally only active ones.
func (d *DB) ListDomains(activeOnly bool) ([]link.AuthorityDomain, error) {
	query := `SELECT domain, type, countries_json, topics_json, authority, active, failures FROM domains`
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY domain"

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	defer rows.Close()

	var domains []link.AuthorityDomain
	for rows.Next() {
		dom, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		if dom != nil {
			domains = append(domains, *dom)
		}
	}
	return domains, rows.Err()
}

// RecordDomainCheck records a verification outcome. A success resets the
// failure counter; a failure increments it and deactivates the domain once
// it reaches maxDomainFailures.
func (d *DB) RecordDomainCheck(domain string, ok bool) error {
	var res sql.Result
	var err error
	if ok {
		res, err = d.db.Exec(`UPDATE domains SET failures = 0, active = 1 WHERE domain = ?`, domain)
	} else {
		res, err = d.db.Exec(`
			UPDATE domains SET failures = failures + 1,
				active = CASE WHEN failures + 1 >= ? THEN 0 ELSE active END
			WHERE domain = ?
		`, maxDomainFailures, domain)
	}
	if err != nil {
		return fmt.Errorf("recording check for %s: %w", domain, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("domain %s: %w", domain, ErrNotFound)
	}
	return nil
}

func scanDomain(s scanner) (*link.AuthorityDomain, error) {
	var dom link.AuthorityDomain
	var typ string
	var countriesJSON, topicsJSON sql.NullString
	var active int

	err := s.Scan(&dom.Domain, &typ, &countriesJSON, &topicsJSON,
		&dom.Authority, &active, &dom.Failures)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	dom.Type = link.SourceType(typ)
	dom.Active = active == 1

	if err := unmarshalList(countriesJSON, &dom.Countries); err != nil {
		return nil, fmt.Errorf("parsing countries for %s: %w", dom.Domain, err)
	}
	if err := unmarshalList(topicsJSON, &dom.Topics); err != nil {
		return nil, fmt.Errorf("parsing topics for %s: %w", dom.Domain, err)
	}

	return &dom, nil
}

func marshalList(list []string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList(s sql.NullString, dst *[]string) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}
