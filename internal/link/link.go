// Package link defines the edge and authority-domain types of the link graph.
package link

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AnchorCategory is the editorial classification of anchor text.
type AnchorCategory string

const (
	AnchorExactMatch AnchorCategory = "exact_match"
	AnchorLongTail   AnchorCategory = "long_tail"
	AnchorGeneric    AnchorCategory = "generic"
	AnchorCTA        AnchorCategory = "cta"
	AnchorQuestion   AnchorCategory = "question"
)

// Categories lists the anchor categories in their fixed priority order.
// The order doubles as the tie-break when two categories have equal deficit
// during distribution balancing.
var Categories = []AnchorCategory{
	AnchorExactMatch,
	AnchorLongTail,
	AnchorGeneric,
	AnchorCTA,
	AnchorQuestion,
}

// Origin records whether an edge was placed by hand or by the injector.
type Origin string

const (
	OriginManual    Origin = "manual"
	OriginAutomatic Origin = "automatic"
)

// InternalEdge is a directed article-to-article link.
type InternalEdge struct {
	ID        string         `json:"id"`
	SourceID  string         `json:"source_id"`
	TargetID  string         `json:"target_id"`
	Anchor    string         `json:"anchor"`
	Category  AnchorCategory `json:"category"`
	Paragraph int            `json:"paragraph"`
	Origin    Origin         `json:"origin"`
	Active    bool           `json:"active"`
	CreatedAt string         `json:"created_at,omitempty"`
}

// Validation errors.
var (
	ErrEmptySourceID   = errors.New("source_id is required")
	ErrEmptyTargetID   = errors.New("target_id is required")
	ErrEmptyAnchor     = errors.New("anchor is required")
	ErrInvalidCategory = errors.New("invalid anchor category")
	ErrSelfEdge        = errors.New("source_id and target_id cannot be the same")
	ErrEmptyDomain     = errors.New("domain is required")
	ErrInvalidSource   = errors.New("invalid source type")
	ErrAuthorityRange  = errors.New("authority score must be between 0 and 100")
)

// ValidateForCreate validates an internal edge for creation.
func (e *InternalEdge) ValidateForCreate() error {
	if e.SourceID == "" {
		return ErrEmptySourceID
	}
	if e.TargetID == "" {
		return ErrEmptyTargetID
	}
	if e.Anchor == "" {
		return ErrEmptyAnchor
	}
	if !ValidCategory(e.Category) {
		return ErrInvalidCategory
	}
	if e.SourceID == e.TargetID {
		return ErrSelfEdge
	}
	return nil
}

// Stamp fills in the generated fields if unset.
func (e *InternalEdge) Stamp() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
}

// ValidCategory reports whether c is one of the five anchor categories.
func ValidCategory(c AnchorCategory) bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// SourceType classifies an external authority domain.
type SourceType string

const (
	SourceGovernment   SourceType = "government"
	SourceOrganization SourceType = "organization"
	SourceReference    SourceType = "reference"
	SourceNews         SourceType = "news"
	SourceAuthority    SourceType = "authority"
)

// SourceTypes lists the source types; a rule's source_priority is an
// ordering over this set.
var SourceTypes = []SourceType{
	SourceGovernment,
	SourceOrganization,
	SourceReference,
	SourceNews,
	SourceAuthority,
}

// ValidSourceType reports whether s is a known source type.
func ValidSourceType(s SourceType) bool {
	for _, v := range SourceTypes {
		if s == v {
			return true
		}
	}
	return false
}

// VerifyStatus is the liveness state of an external edge.
type VerifyStatus string

const (
	VerifyUnverified VerifyStatus = "unverified"
	VerifyActive     VerifyStatus = "active"
	VerifyBroken     VerifyStatus = "broken"
)

// ExternalEdge is a directed article-to-domain link.
type ExternalEdge struct {
	ID        string       `json:"id"`
	SourceID  string       `json:"source_id"`
	Domain    string       `json:"domain"`
	Authority int          `json:"authority"`
	Type      SourceType   `json:"type"`
	Status    VerifyStatus `json:"status"`
	Verified  string       `json:"verified_at,omitempty"`
	CreatedAt string       `json:"created_at,omitempty"`
}

// ValidateForCreate validates an external edge for creation.
func (e *ExternalEdge) ValidateForCreate() error {
	if e.SourceID == "" {
		return ErrEmptySourceID
	}
	if e.Domain == "" {
		return ErrEmptyDomain
	}
	if !ValidSourceType(e.Type) {
		return ErrInvalidSource
	}
	if e.Authority < 0 || e.Authority > 100 {
		return ErrAuthorityRange
	}
	return nil
}

// Stamp fills in the generated fields if unset.
func (e *ExternalEdge) Stamp() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if e.Status == "" {
		e.Status = VerifyUnverified
	}
}

// AuthorityDomain is a catalog entry for an external linking target.
type AuthorityDomain struct {
	Domain    string     `json:"domain"`
	Type      SourceType `json:"type"`
	Countries []string   `json:"countries,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	Authority int        `json:"authority"`
	Active    bool       `json:"active"`
	Failures  int        `json:"failures,omitempty"`
}

// ValidateForCreate validates a domain catalog entry.
func (d *AuthorityDomain) ValidateForCreate() error {
	if d.Domain == "" {
		return ErrEmptyDomain
	}
	if !ValidSourceType(d.Type) {
		return ErrInvalidSource
	}
	if d.Authority < 0 || d.Authority > 100 {
		return ErrAuthorityRange
	}
	return nil
}

// AppliesTo reports whether the domain is usable for a given country and
// theme set. Empty applicability lists mean "everywhere".
func (d *AuthorityDomain) AppliesTo(country string, themes []string) bool {
	if len(d.Countries) > 0 && !contains(d.Countries, country) {
		return false
	}
	if len(d.Topics) > 0 {
		for _, t := range themes {
			if contains(d.Topics, t) {
				return true
			}
		}
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// EdgeKey is the identity tuple of an edge: (source, target) for internal
// edges, (source, domain) for external ones.
type EdgeKey struct {
	SourceID string
	TargetID string
}

// FindDuplicateEdges returns (source, target) pairs that appear more than
// once among active edges, with their counts.
func FindDuplicateEdges(edges []InternalEdge) map[EdgeKey]int {
	counts := make(map[EdgeKey]int)
	for _, e := range edges {
		if !e.Active {
			continue
		}
		counts[EdgeKey{e.SourceID, e.TargetID}]++
	}
	return keepDuplicates(counts)
}

// FindDuplicateExternalEdges returns (source, domain) pairs that appear more
// than once, with their counts. Broken edges still count; a node should not
// link the same domain twice regardless of liveness.
func FindDuplicateExternalEdges(edges []ExternalEdge) map[EdgeKey]int {
	counts := make(map[EdgeKey]int)
	for _, e := range edges {
		counts[EdgeKey{e.SourceID, e.Domain}]++
	}
	return keepDuplicates(counts)
}

func keepDuplicates(counts map[EdgeKey]int) map[EdgeKey]int {
	duplicates := make(map[EdgeKey]int)
	for key, count := range counts {
		if count > 1 {
			duplicates[key] = count
		}
	}
	return duplicates
}
