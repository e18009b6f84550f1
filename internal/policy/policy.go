// Package policy validates proposed link sets against platform rules and
// balances anchor-category distribution across an injection session.
package policy

import (
	"fmt"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/rule"
)

// Violation describes one way a link set breaks a rule.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Code + ": " + v.Message
}

// Proposal is the prospective link state of one node, existing edges plus
// any edges about to be added.
type Proposal struct {
	Node       node.Node
	Paragraphs int
	Internal   []link.InternalEdge
	External   []link.ExternalEdge

	// Affiliate is the affiliate-link count of the node, tracked by the
	// content layer; the policy engine only bounds it.
	Affiliate int
}

// Validate checks a proposal against a resolved rule and returns every
// violation found. Inactive internal edges and broken external edges do not
// count toward any bound. It never mutates its inputs.
func Validate(r rule.Rule, p Proposal) []Violation {
	var violations []Violation

	add := func(code, format string, args ...interface{}) {
		violations = append(violations, Violation{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	internal := activeInternal(p.Internal)
	external := liveExternal(p.External)
	if len(internal) < r.MinInternal {
		add("internal_count", "%d internal links, rule requires at least %d", len(internal), r.MinInternal)
	}
	if len(internal) > r.MaxInternal {
		add("internal_count", "%d internal links, rule allows at most %d", len(internal), r.MaxInternal)
	}
	if len(external) < r.MinExternal {
		add("external_count", "%d external links, rule requires at least %d", len(external), r.MinExternal)
	}
	if len(external) > r.MaxExternal {
		add("external_count", "%d external links, rule allows at most %d", len(external), r.MaxExternal)
	}
	if p.Affiliate > r.MaxAffiliate {
		add("affiliate_count", "%d affiliate links, rule allows at most %d", p.Affiliate, r.MaxAffiliate)
	}

	for _, e := range external {
		if e.Authority < r.MinAuthority {
			add("authority", "domain %s authority %d below threshold %d", e.Domain, e.Authority, r.MinAuthority)
		}
	}
	if r.RequireGovernment && len(external) > 0 {
		found := false
		for _, e := range external {
			if e.Type == link.SourceGovernment {
				found = true
				break
			}
		}
		if !found {
			add("government_source", "no government source among %d external links", len(external))
		}
	}

	perParagraph := make(map[int]int)
	for _, e := range internal {
		if !PositionAllowed(r, e.Paragraph, p.Paragraphs) {
			add("exclusion_zone", "link in excluded paragraph %d", e.Paragraph)
		}
		perParagraph[e.Paragraph]++
	}
	for idx, count := range perParagraph {
		if count > r.MaxPerParagraph {
			add("paragraph_cap", "%d links in paragraph %d, cap is %d", count, idx, r.MaxPerParagraph)
		}
	}

	if r.RequirePillarLink && p.Node.Type != node.TypePillar && p.Node.PillarID != "" {
		found := false
		for _, e := range internal {
			if e.TargetID == p.Node.PillarID {
				found = true
				break
			}
		}
		if !found {
			add("pillar_link", "no link to designated pillar %s", p.Node.PillarID)
		}
	}

	return violations
}

// PositionAllowed reports whether a paragraph index is outside the rule's
// exclusion zones. The first paragraph is the intro, the last the conclusion.
// A position inside a flagged zone is rejected, never relocated.
func PositionAllowed(r rule.Rule, paragraph, total int) bool {
	if paragraph < 0 || paragraph >= total {
		return false
	}
	if r.ExcludeIntro && paragraph == 0 {
		return false
	}
	if r.ExcludeConclusion && paragraph == total-1 {
		return false
	}
	return true
}

// liveExternal drops broken edges; unverified ones still count, since
// verification is a periodic job and must never fail a fresh injection.
func liveExternal(edges []link.ExternalEdge) []link.ExternalEdge {
	var live []link.ExternalEdge
	for _, e := range edges {
		if e.Status != link.VerifyBroken {
			live = append(live, e)
		}
	}
	return live
}

func activeInternal(edges []link.InternalEdge) []link.InternalEdge {
	var active []link.InternalEdge
	for _, e := range edges {
		if e.Active {
			active = append(active, e)
		}
	}
	return active
}

// Session tracks the anchor categories assigned so far in one injection
// batch and steers selection toward the category with the largest deficit
// relative to its target percentage.
type Session struct {
	targets rule.Distribution
	counts  map[link.AnchorCategory]int
	total   int
}

// NewSession starts a balancing session against a distribution target.
func NewSession(targets rule.Distribution) *Session {
	return &Session{
		targets: targets,
		counts:  make(map[link.AnchorCategory]int),
	}
}

// Take picks the largest-deficit category and records the assignment in one
// step. Callers sharing a session across goroutines must serialize Take.
func (s *Session) Take() link.AnchorCategory {
	c := s.NextCategory()
	s.Record(c)
	return c
}

// Record notes that a link with the given category was assigned.
func (s *Session) Record(c link.AnchorCategory) {
	s.counts[c]++
	s.total++
}

// NextCategory returns the category with the largest deficit against its
// target share. Equal deficits break on the fixed order of link.Categories
// (exact_match first), which keeps the choice deterministic.
func (s *Session) NextCategory() link.AnchorCategory {
	best := link.Categories[0]
	bestDeficit := s.deficit(best)
	for _, c := range link.Categories[1:] {
		if d := s.deficit(c); d > bestDeficit {
			best, bestDeficit = c, d
		}
	}
	return best
}

// deficit is the target share minus the actual share, in percentage points.
// With nothing recorded yet, the deficit is simply the target.
func (s *Session) deficit(c link.AnchorCategory) float64 {
	target := float64(s.targets.Target(c))
	if s.total == 0 {
		return target
	}
	actual := 100 * float64(s.counts[c]) / float64(s.total)
	return target - actual
}

// Tally returns the per-category counts recorded so far.
func (s *Session) Tally() map[link.AnchorCategory]int {
	out := make(map[link.AnchorCategory]int, len(s.counts))
	for c, n := range s.counts {
		out[c] = n
	}
	return out
}
