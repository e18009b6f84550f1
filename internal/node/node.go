// Package node defines the content-node domain types for the link graph.
package node

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Type classifies a content node.
type Type string

const (
	TypeStandard    Type = "standard"
	TypePillar      Type = "pillar"
	TypeLanding     Type = "landing"
	TypeComparative Type = "comparative"
)

// ValidTypes lists the accepted node types.
var ValidTypes = []Type{TypeStandard, TypePillar, TypeLanding, TypeComparative}

// Status is the publication status of a node.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Node represents one piece of content in the corpus.
type Node struct {
	ID       string   `json:"id"`
	Platform string   `json:"platform"`
	Country  string   `json:"country"`
	Language string   `json:"language"`
	Themes   []string `json:"themes,omitempty"`
	Type     Type     `json:"type"`
	Status   Status   `json:"status"`
	Content  string   `json:"content,omitempty"`

	// PillarID is the designated pillar for standard nodes, empty otherwise.
	PillarID string `json:"pillar_id,omitempty"`

	// ProcessedAt is set once the injector has run on this node.
	// ContentHash is the content fingerprint at that time.
	ProcessedAt string `json:"processed_at,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

// Validation errors.
var (
	ErrEmptyID       = errors.New("id is required")
	ErrEmptyPlatform = errors.New("platform is required")
	ErrEmptyLanguage = errors.New("language is required")
	ErrInvalidType   = errors.New("invalid node type")
)

// ValidateForCreate validates a node for creation.
func (n *Node) ValidateForCreate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.Platform == "" {
		return ErrEmptyPlatform
	}
	if n.Language == "" {
		return ErrEmptyLanguage
	}
	switch n.Type {
	case TypeStandard, TypePillar, TypeLanding, TypeComparative:
	default:
		return ErrInvalidType
	}
	return nil
}

// Paragraphs splits the content body on blank lines.
// Leading/trailing whitespace per paragraph is trimmed; empty paragraphs
// are dropped.
func (n *Node) Paragraphs() []string {
	var paras []string
	for _, p := range strings.Split(n.Content, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// EmbedAnchor appends a markdown link to the paragraph at index idx and
// returns the updated content. Paragraph indices follow Paragraphs().
func (n *Node) EmbedAnchor(idx int, anchor, target string) (string, error) {
	paras := n.Paragraphs()
	if idx < 0 || idx >= len(paras) {
		return "", errors.New("paragraph index out of range")
	}
	paras[idx] = paras[idx] + " [" + anchor + "](" + target + ")"
	return strings.Join(paras, "\n\n"), nil
}

// MarkProcessed stamps the node with the current time and content hash.
func (n *Node) MarkProcessed() {
	n.ProcessedAt = time.Now().UTC().Format(time.RFC3339)
	n.ContentHash = HashContent(n.Content)
}

// Processed reports whether the node has been through injection already.
func (n *Node) Processed() bool {
	return n.ProcessedAt != ""
}

// HashContent returns the hex SHA-256 of a content body.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
