// Package rule defines per-platform linking rules and their validation.
package rule

import (
	"fmt"

	"github.com/marbec/linkmesh/internal/link"
)

// Distribution holds the anchor-category targets as percentages.
// A valid distribution sums to exactly 100.
type Distribution struct {
	ExactMatch int `json:"exact_match" yaml:"exact_match"`
	LongTail   int `json:"long_tail" yaml:"long_tail"`
	Generic    int `json:"generic" yaml:"generic"`
	CTA        int `json:"cta" yaml:"cta"`
	Question   int `json:"question" yaml:"question"`
}

// Sum returns the total of the five percentages.
func (d Distribution) Sum() int {
	return d.ExactMatch + d.LongTail + d.Generic + d.CTA + d.Question
}

// Target returns the percentage for a category.
func (d Distribution) Target(c link.AnchorCategory) int {
	switch c {
	case link.AnchorExactMatch:
		return d.ExactMatch
	case link.AnchorLongTail:
		return d.LongTail
	case link.AnchorGeneric:
		return d.Generic
	case link.AnchorCTA:
		return d.CTA
	case link.AnchorQuestion:
		return d.Question
	}
	return 0
}

// Rule is a fully resolved linking rule for one platform. Storage may hold a
// partial rule; Merge resolves it over Default() before any consumer sees it.
type Rule struct {
	Platform string `json:"platform" yaml:"platform"`

	MinInternal  int `json:"min_internal_links" yaml:"min_internal_links"`
	MaxInternal  int `json:"max_internal_links" yaml:"max_internal_links"`
	MinRelevance int `json:"min_relevance_score" yaml:"min_relevance_score"`

	MinExternal       int  `json:"min_external_links" yaml:"min_external_links"`
	MaxExternal       int  `json:"max_external_links" yaml:"max_external_links"`
	MinAuthority      int  `json:"min_external_authority" yaml:"min_external_authority"`
	RequireGovernment bool `json:"require_government_source" yaml:"require_government_source"`
	MaxAffiliate      int  `json:"max_affiliate_links" yaml:"max_affiliate_links"`

	Distribution Distribution `json:"distribution" yaml:"distribution"`

	ExcludeIntro      bool `json:"exclude_intro" yaml:"exclude_intro"`
	ExcludeConclusion bool `json:"exclude_conclusion" yaml:"exclude_conclusion"`
	MaxPerParagraph   int  `json:"max_links_per_paragraph" yaml:"max_links_per_paragraph"`

	SourcePriority []link.SourceType `json:"source_priority" yaml:"source_priority"`

	MaxPillarChildren  int  `json:"max_pillar_children" yaml:"max_pillar_children"`
	RequirePillarLink  bool `json:"require_pillar_link" yaml:"require_pillar_link"`
	AllowCrossLanguage bool `json:"allow_cross_language" yaml:"allow_cross_language"`
}

// Default returns the global default linking rule applied when a platform has
// no rule of its own.
func Default() Rule {
	return Rule{
		MinInternal:  2,
		MaxInternal:  5,
		MinRelevance: 30,
		MinExternal:  1,
		MaxExternal:  3,
		MinAuthority: 50,
		MaxAffiliate: 2,
		Distribution: Distribution{
			ExactMatch: 30,
			LongTail:   30,
			Generic:    25,
			CTA:        10,
			Question:   5,
		},
		ExcludeIntro:      true,
		ExcludeConclusion: true,
		MaxPerParagraph:   2,
		SourcePriority: []link.SourceType{
			link.SourceGovernment,
			link.SourceOrganization,
			link.SourceReference,
			link.SourceNews,
			link.SourceAuthority,
		},
		MaxPillarChildren: 20,
		RequirePillarLink: true,
	}
}

// Violation describes one failed rule invariant.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Validate checks rule invariants and returns every violation found.
// It is a pure function; an empty result means the rule is acceptable.
func (r Rule) Validate() []Violation {
	var violations []Violation

	check := func(field, message string, bad bool) {
		if bad {
			violations = append(violations, Violation{Field: field, Message: message})
		}
	}

	check("min_internal_links", "must not be negative", r.MinInternal < 0)
	check("max_internal_links",
		fmt.Sprintf("must be >= min_internal_links (%d)", r.MinInternal),
		r.MaxInternal < r.MinInternal)
	check("min_external_links", "must not be negative", r.MinExternal < 0)
	check("max_external_links",
		fmt.Sprintf("must be >= min_external_links (%d)", r.MinExternal),
		r.MaxExternal < r.MinExternal)
	check("min_relevance_score", "must be between 0 and 100",
		r.MinRelevance < 0 || r.MinRelevance > 100)
	check("min_external_authority", "must be between 0 and 100",
		r.MinAuthority < 0 || r.MinAuthority > 100)
	check("max_affiliate_links", "must not be negative", r.MaxAffiliate < 0)
	check("max_links_per_paragraph", "must be at least 1", r.MaxPerParagraph < 1)
	check("max_pillar_children", "must not be negative", r.MaxPillarChildren < 0)
	check("distribution",
		fmt.Sprintf("percentages must sum to 100, got %d", r.Distribution.Sum()),
		r.Distribution.Sum() != 100)

	for _, s := range r.SourcePriority {
		if !link.ValidSourceType(s) {
			violations = append(violations, Violation{
				Field:   "source_priority",
				Message: fmt.Sprintf("unknown source type %q", s),
			})
		}
	}

	return violations
}

// Stored is the partial, storage-level form of a rule. Nil fields fall back
// to the default rule on Merge.
type Stored struct {
	Platform string `json:"platform" yaml:"platform"`

	MinInternal  *int `json:"min_internal_links,omitempty" yaml:"min_internal_links,omitempty"`
	MaxInternal  *int `json:"max_internal_links,omitempty" yaml:"max_internal_links,omitempty"`
	MinRelevance *int `json:"min_relevance_score,omitempty" yaml:"min_relevance_score,omitempty"`

	MinExternal       *int  `json:"min_external_links,omitempty" yaml:"min_external_links,omitempty"`
	MaxExternal       *int  `json:"max_external_links,omitempty" yaml:"max_external_links,omitempty"`
	MinAuthority      *int  `json:"min_external_authority,omitempty" yaml:"min_external_authority,omitempty"`
	RequireGovernment *bool `json:"require_government_source,omitempty" yaml:"require_government_source,omitempty"`
	MaxAffiliate      *int  `json:"max_affiliate_links,omitempty" yaml:"max_affiliate_links,omitempty"`

	Distribution *Distribution `json:"distribution,omitempty" yaml:"distribution,omitempty"`

	ExcludeIntro      *bool `json:"exclude_intro,omitempty" yaml:"exclude_intro,omitempty"`
	ExcludeConclusion *bool `json:"exclude_conclusion,omitempty" yaml:"exclude_conclusion,omitempty"`
	MaxPerParagraph   *int  `json:"max_links_per_paragraph,omitempty" yaml:"max_links_per_paragraph,omitempty"`

	SourcePriority []link.SourceType `json:"source_priority,omitempty" yaml:"source_priority,omitempty"`

	MaxPillarChildren  *int  `json:"max_pillar_children,omitempty" yaml:"max_pillar_children,omitempty"`
	RequirePillarLink  *bool `json:"require_pillar_link,omitempty" yaml:"require_pillar_link,omitempty"`
	AllowCrossLanguage *bool `json:"allow_cross_language,omitempty" yaml:"allow_cross_language,omitempty"`
}

// Merge resolves a stored partial rule over the default rule. The result is
// always fully populated.
func Merge(s Stored) Rule {
	r := Default()
	r.Platform = s.Platform

	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}

	setInt(&r.MinInternal, s.MinInternal)
	setInt(&r.MaxInternal, s.MaxInternal)
	setInt(&r.MinRelevance, s.MinRelevance)
	setInt(&r.MinExternal, s.MinExternal)
	setInt(&r.MaxExternal, s.MaxExternal)
	setInt(&r.MinAuthority, s.MinAuthority)
	setBool(&r.RequireGovernment, s.RequireGovernment)
	setInt(&r.MaxAffiliate, s.MaxAffiliate)
	if s.Distribution != nil {
		r.Distribution = *s.Distribution
	}
	setBool(&r.ExcludeIntro, s.ExcludeIntro)
	setBool(&r.ExcludeConclusion, s.ExcludeConclusion)
	setInt(&r.MaxPerParagraph, s.MaxPerParagraph)
	if len(s.SourcePriority) > 0 {
		r.SourcePriority = s.SourcePriority
	}
	setInt(&r.MaxPillarChildren, s.MaxPillarChildren)
	setBool(&r.RequirePillarLink, s.RequirePillarLink)
	setBool(&r.AllowCrossLanguage, s.AllowCrossLanguage)

	return r
}
