package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/marbec/linkmesh/internal/node"
)

const selectNodeFields = `id, platform, country, language, themes_json,
	type, status, content, pillar_id, processed_at, content_hash`

// PutNode inserts or replaces a content node.
func (d *DB) PutNode(n *node.Node) error {
	if err := n.ValidateForCreate(); err != nil {
		return err
	}

	var themesJSON []byte
	if len(n.Themes) > 0 {
		var err error
		themesJSON, err = json.Marshal(n.Themes)
		if err != nil {
			return fmt.Errorf("marshaling themes for %s: %w", n.ID, err)
		}
	}

	_, err := d.db.Exec(`
		INSERT OR REPLACE INTO nodes (
			id, platform, country, language, themes_json,
			type, status, content, pillar_id, processed_at, content_hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Platform, nullableString(n.Country), n.Language,
		nullableString(string(themesJSON)), string(n.Type), string(n.Status),
		nullableString(n.Content), nullableString(n.PillarID),
		nullableString(n.ProcessedAt), nullableString(n.ContentHash))
	if err != nil {
		return fmt.Errorf("inserting node %s: %w", n.ID, err)
	}
	return nil
}

// GetNode retrieves a node by ID. Returns ErrNotFound if absent.
func (d *DB) GetNode(id string) (*node.Node, error) {
	row := d.db.QueryRow(`SELECT `+selectNodeFields+` FROM nodes WHERE id = ?`, id)
	n, err := scanNode(row)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return n, nil
}

// ListNodes returns the nodes of a platform, optionally filtered by language.
func (d *DB) ListNodes(platform, language string) ([]node.Node, error) {
	query := `SELECT ` + selectNodeFields + ` FROM nodes WHERE platform = ?`
	args := []interface{}{platform}
	if language != "" {
		query += " AND language = ?"
		args = append(args, language)
	}
	query += " ORDER BY id"

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	defer rows.Close()

	return scanNodes(rows)
}

// ListNodeIDs returns the node ids of a platform, optionally filtered by
// language.
func (d *DB) ListNodeIDs(platform, language string) ([]string, error) {
	query := `SELECT id FROM nodes WHERE platform = ?`
	args := []interface{}{platform}
	if language != "" {
		query += " AND language = ?"
		args = append(args, language)
	}
	query += " ORDER BY id"

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing node ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateNodeContent stores an updated content body plus processing marker.
func (d *DB) UpdateNodeContent(id, content, processedAt, contentHash string) error {
	res, err := d.db.Exec(`
		UPDATE nodes SET content = ?, processed_at = ?, content_hash = ?
		WHERE id = ?
	`, content, nullableString(processedAt), nullableString(contentHash), id)
	if err != nil {
		return fmt.Errorf("updating node %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("node %s: %w", id, ErrNotFound)
	}
	return nil
}

// Platforms returns the distinct platforms that have nodes.
func (d *DB) Platforms() ([]string, error) {
	rows, err := d.db.Query(`SELECT DISTINCT platform FROM nodes ORDER BY platform`)
	if err != nil {
		return nil, fmt.Errorf("listing platforms: %w", err)
	}
	defer rows.Close()

	var platforms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

// CountNodes returns the number of nodes on a platform.
func (d *DB) CountNodes(platform string) (int, error) {
	var count int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM nodes WHERE platform = ?`, platform).Scan(&count)
	return count, err
}

func scanNode(s scanner) (*node.Node, error) {
	var n node.Node
	var country, themesJSON, content, pillarID, processedAt, contentHash sql.NullString
	var typ, status string

	err := s.Scan(&n.ID, &n.Platform, &country, &n.Language, &themesJSON,
		&typ, &status, &content, &pillarID, &processedAt, &contentHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	n.Country = country.String
	n.Type = node.Type(typ)
	n.Status = node.Status(status)
	n.Content = content.String
	n.PillarID = pillarID.String
	n.ProcessedAt = processedAt.String
	n.ContentHash = contentHash.String

	if themesJSON.Valid && themesJSON.String != "" {
		if err := json.Unmarshal([]byte(themesJSON.String), &n.Themes); err != nil {
			return nil, fmt.Errorf("parsing themes JSON for %s: %w", n.ID, err)
		}
	}

	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]node.Node, error) {
	var nodes []node.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, *n)
		}
	}
	return nodes, rows.Err()
}
