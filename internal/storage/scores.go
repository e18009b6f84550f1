package storage

import (
	"fmt"
	"time"
)

// Score is one stored PageRank result.
type Score struct {
	Platform   string  `json:"platform"`
	NodeID     string  `json:"node_id"`
	Score      float64 `json:"score"`
	Iterations int     `json:"iterations"`
	ComputedAt string  `json:"computed_at"`
}

// ReplaceScores swaps a platform's score snapshot in one transaction, so the
// old scores stay readable until the new ones are committed.
func (d *DB) ReplaceScores(platform string, scores map[string]float64, iterations int) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning score replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM scores WHERE platform = ?`, platform); err != nil {
		return fmt.Errorf("clearing scores for %s: %w", platform, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO scores (platform, node_id, score, iterations, computed_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing score insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for nodeID, score := range scores {
		if _, err := stmt.Exec(platform, nodeID, score, iterations, now); err != nil {
			return fmt.Errorf("inserting score for %s: %w", nodeID, err)
		}
	}

	return tx.Commit()
}

// GetScores returns the stored score vector for a platform.
func (d *DB) GetScores(platform string) (map[string]float64, error) {
	rows, err := d.db.Query(`SELECT node_id, score FROM scores WHERE platform = ?`, platform)
	if err != nil {
		return nil, fmt.Errorf("reading scores for %s: %w", platform, err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var nodeID string
		var score float64
		if err := rows.Scan(&nodeID, &score); err != nil {
			return nil, err
		}
		scores[nodeID] = score
	}
	return scores, rows.Err()
}

// TopScores returns the n highest-scored nodes of a platform.
func (d *DB) TopScores(platform string, n int) ([]Score, error) {
	return d.rankedScores(platform, n, "DESC")
}

// BottomScores returns the n lowest-scored nodes of a platform.
func (d *DB) BottomScores(platform string, n int) ([]Score, error) {
	return d.rankedScores(platform, n, "ASC")
}

func (d *DB) rankedScores(platform string, n int, order string) ([]Score, error) {
	rows, err := d.db.Query(`
		SELECT platform, node_id, score, iterations, computed_at
		FROM scores WHERE platform = ?
		ORDER BY score `+order+`, node_id LIMIT ?
	`, platform, n)
	if err != nil {
		return nil, fmt.Errorf("ranking scores for %s: %w", platform, err)
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var s Score
		if err := rows.Scan(&s.Platform, &s.NodeID, &s.Score, &s.Iterations, &s.ComputedAt); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
