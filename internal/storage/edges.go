package storage

import (
	"database/sql"
	"fmt"

	"github.com/marbec/linkmesh/internal/link"
)

const selectInternalFields = `id, source_id, target_id, anchor, category,
	paragraph, origin, active, created_at`

const selectExternalFields = `id, source_id, domain, authority, type,
	status, verified_at, created_at`

// InsertInternalEdge persists one internal edge.
func (d *DB) InsertInternalEdge(e *link.InternalEdge) error {
	if err := e.ValidateForCreate(); err != nil {
		return err
	}
	e.Stamp()

	_, err := d.db.Exec(`
		INSERT INTO internal_edges (
			id, source_id, target_id, anchor, category,
			paragraph, origin, active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SourceID, e.TargetID, e.Anchor, string(e.Category),
		e.Paragraph, string(e.Origin), boolToInt(e.Active), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting internal edge %s->%s: %w", e.SourceID, e.TargetID, err)
	}
	return nil
}

// OutboundEdges returns the active internal edges leaving a node.
func (d *DB) OutboundEdges(sourceID string) ([]link.InternalEdge, error) {
	rows, err := d.db.Query(`
		SELECT `+selectInternalFields+` FROM internal_edges
		WHERE source_id = ? AND active = 1
		ORDER BY paragraph, created_at
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("listing outbound edges for %s: %w", sourceID, err)
	}
	defer rows.Close()
	return scanInternalEdges(rows)
}

// InboundCount returns the number of active internal edges pointing at a node.
func (d *DB) InboundCount(targetID string) (int, error) {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM internal_edges WHERE target_id = ? AND active = 1
	`, targetID).Scan(&count)
	return count, err
}

// OutboundCount returns the number of active internal edges leaving a node.
func (d *DB) OutboundCount(sourceID string) (int, error) {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM internal_edges WHERE source_id = ? AND active = 1
	`, sourceID).Scan(&count)
	return count, err
}

// ParagraphLinkCount returns the active links already placed in one paragraph
// of a node, counting both internal and external edges sharing the position.
func (d *DB) ParagraphLinkCount(sourceID string, paragraph int) (int, error) {
	var count int
	err := d.db.QueryRow(`
		SELECT COUNT(*) FROM internal_edges
		WHERE source_id = ? AND paragraph = ? AND active = 1
	`, sourceID, paragraph).Scan(&count)
	return count, err
}

// PlatformInternalEdges returns every active internal edge whose source node
// belongs to the platform.
func (d *DB) PlatformInternalEdges(platform string) ([]link.InternalEdge, error) {
	rows, err := d.db.Query(`
		SELECT e.id, e.source_id, e.target_id, e.anchor, e.category,
			e.paragraph, e.origin, e.active, e.created_at
		FROM internal_edges e
		JOIN nodes n ON n.id = e.source_id
		WHERE n.platform = ? AND e.active = 1
	`, platform)
	if err != nil {
		return nil, fmt.Errorf("listing platform edges: %w", err)
	}
	defer rows.Close()
	return scanInternalEdges(rows)
}

// DeactivateInternalEdge soft-deletes an automatic edge. Manual edges are
// left untouched and the call reports ErrNotFound for them.
func (d *DB) DeactivateInternalEdge(id string) error {
	res, err := d.db.Exec(`
		UPDATE internal_edges SET active = 0
		WHERE id = ? AND origin = 'automatic'
	`, id)
	if err != nil {
		return fmt.Errorf("deactivating edge %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("automatic edge %s: %w", id, ErrNotFound)
	}
	return nil
}

// InsertExternalEdge persists one external edge.
func (d *DB) InsertExternalEdge(e *link.ExternalEdge) error {
	if err := e.ValidateForCreate(); err != nil {
		return err
	}
	e.Stamp()

	_, err := d.db.Exec(`
		INSERT INTO external_edges (
			id, source_id, domain, authority, type, status, verified_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SourceID, e.Domain, e.Authority, string(e.Type),
		string(e.Status), nullableString(e.Verified), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting external edge %s->%s: %w", e.SourceID, e.Domain, err)
	}
	return nil
}

// ExternalEdges returns the external edges leaving a node.
func (d *DB) ExternalEdges(sourceID string) ([]link.ExternalEdge, error) {
	rows, err := d.db.Query(`
		SELECT `+selectExternalFields+` FROM external_edges
		WHERE source_id = ? ORDER BY created_at
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("listing external edges for %s: %w", sourceID, err)
	}
	defer rows.Close()
	return scanExternalEdges(rows)
}

// PlatformExternalEdges returns every external edge whose source node belongs
// to the platform.
func (d *DB) PlatformExternalEdges(platform string) ([]link.ExternalEdge, error) {
	rows, err := d.db.Query(`
		SELECT e.id, e.source_id, e.domain, e.authority, e.type,
			e.status, e.verified_at, e.created_at
		FROM external_edges e
		JOIN nodes n ON n.id = e.source_id
		WHERE n.platform = ?
	`, platform)
	if err != nil {
		return nil, fmt.Errorf("listing platform external edges: %w", err)
	}
	defer rows.Close()
	return scanExternalEdges(rows)
}

// MarkExternalEdge updates the verification status of every external edge
// pointing at a domain.
func (d *DB) MarkExternalEdge(domain string, status link.VerifyStatus, verifiedAt string) error {
	_, err := d.db.Exec(`
		UPDATE external_edges SET status = ?, verified_at = ? WHERE domain = ?
	`, string(status), verifiedAt, domain)
	if err != nil {
		return fmt.Errorf("marking external edges for %s: %w", domain, err)
	}
	return nil
}

// Orphans returns platform nodes with zero active inbound internal edges,
// paged by limit/offset. A zero limit means no cap.
func (d *DB) Orphans(platform, language string, limit, offset int) ([]string, error) {
	return d.unlinkedNodes(platform, language, "target_id", limit, offset)
}

// DeadEnds returns platform nodes with zero active outbound internal edges.
func (d *DB) DeadEnds(platform, language string, limit, offset int) ([]string, error) {
	return d.unlinkedNodes(platform, language, "source_id", limit, offset)
}

func (d *DB) unlinkedNodes(platform, language, edgeCol string, limit, offset int) ([]string, error) {
	query := `
		SELECT n.id FROM nodes n
		WHERE n.platform = ?
		AND n.id NOT IN (
			SELECT ` + edgeCol + ` FROM internal_edges WHERE active = 1
		)`
	args := []interface{}{platform}
	if language != "" {
		query += " AND n.language = ?"
		args = append(args, language)
	}
	query += " ORDER BY n.id"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing unlinked nodes: %w", err)
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

func scanInternalEdge(s scanner) (*link.InternalEdge, error) {
	var e link.InternalEdge
	var category, origin string
	var active int

	err := s.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Anchor, &category,
		&e.Paragraph, &origin, &active, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	e.Category = link.AnchorCategory(category)
	e.Origin = link.Origin(origin)
	e.Active = active == 1
	return &e, nil
}

func scanInternalEdges(rows *sql.Rows) ([]link.InternalEdge, error) {
	var edges []link.InternalEdge
	for rows.Next() {
		e, err := scanInternalEdge(rows)
		if err != nil {
			return nil, err
		}
		if e != nil {
			edges = append(edges, *e)
		}
	}
	return edges, rows.Err()
}

func scanExternalEdges(rows *sql.Rows) ([]link.ExternalEdge, error) {
	var edges []link.ExternalEdge
	for rows.Next() {
		var e link.ExternalEdge
		var typ, status string
		var verified sql.NullString
		err := rows.Scan(&e.ID, &e.SourceID, &e.Domain, &e.Authority, &typ,
			&status, &verified, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		e.Type = link.SourceType(typ)
		e.Status = link.VerifyStatus(status)
		e.Verified = verified.String
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
