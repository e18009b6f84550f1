package policy

import (
	"testing"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/rule"
)

func internalEdge(target string, paragraph int) link.InternalEdge {
	return link.InternalEdge{
		SourceID: "src", TargetID: target, Anchor: "anchor",
		Category: link.AnchorGeneric, Paragraph: paragraph,
		Origin: link.OriginAutomatic, Active: true,
	}
}

func TestValidate(t *testing.T) {
	r := rule.Default()
	r.MinInternal, r.MaxInternal = 1, 2
	r.MinExternal, r.MaxExternal = 0, 1
	r.RequirePillarLink = false

	base := node.Node{ID: "src", Platform: "cyclado", Language: "fr", Type: node.TypeStandard}

	tests := []struct {
		name     string
		proposal Proposal
		wantCode string
	}{
		{
			name: "compliant",
			proposal: Proposal{Node: base, Paragraphs: 4,
				Internal: []link.InternalEdge{internalEdge("b", 1)}},
			wantCode: "",
		},
		{
			name:     "too few internal",
			proposal: Proposal{Node: base, Paragraphs: 4},
			wantCode: "internal_count",
		},
		{
			name: "too many internal",
			proposal: Proposal{Node: base, Paragraphs: 5, Internal: []link.InternalEdge{
				internalEdge("b", 1), internalEdge("c", 2), internalEdge("d", 3)}},
			wantCode: "internal_count",
		},
		{
			name: "intro zone",
			proposal: Proposal{Node: base, Paragraphs: 4,
				Internal: []link.InternalEdge{internalEdge("b", 0)}},
			wantCode: "exclusion_zone",
		},
		{
			name: "conclusion zone",
			proposal: Proposal{Node: base, Paragraphs: 4,
				Internal: []link.InternalEdge{internalEdge("b", 3)}},
			wantCode: "exclusion_zone",
		},
		{
			name: "two links within paragraph cap",
			proposal: Proposal{Node: base, Paragraphs: 5, Internal: []link.InternalEdge{
				internalEdge("b", 1), internalEdge("c", 1)}},
			wantCode: "",
		},
		{
			name: "authority below threshold",
			proposal: Proposal{Node: base, Paragraphs: 4,
				Internal: []link.InternalEdge{internalEdge("b", 1)},
				External: []link.ExternalEdge{{SourceID: "src", Domain: "weak.example",
					Type: link.SourceNews, Authority: 10}}},
			wantCode: "authority",
		},
		{
			name: "affiliate over cap",
			proposal: Proposal{Node: base, Paragraphs: 4,
				Internal:  []link.InternalEdge{internalEdge("b", 1)},
				Affiliate: 5},
			wantCode: "affiliate_count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := Validate(r, tt.proposal)
			if tt.wantCode == "" {
				if len(violations) != 0 {
					t.Errorf("Validate() = %v, want none", violations)
				}
				return
			}
			for _, v := range violations {
				if v.Code == tt.wantCode {
					return
				}
			}
			t.Errorf("Validate() = %v, want code %q", violations, tt.wantCode)
		})
	}
}

func TestValidate_ParagraphCap(t *testing.T) {
	r := rule.Default()
	r.MinInternal = 0
	r.MaxInternal = 10
	r.MaxPerParagraph = 1
	r.RequirePillarLink = false

	p := Proposal{
		Node: node.Node{ID: "src", Platform: "p", Language: "fr", Type: node.TypeStandard},
		Paragraphs: 5,
		Internal:   []link.InternalEdge{internalEdge("b", 2), internalEdge("c", 2)},
	}
	violations := Validate(r, p)
	found := false
	for _, v := range violations {
		if v.Code == "paragraph_cap" {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want paragraph_cap violation", violations)
	}
}

func TestValidate_PillarRequirement(t *testing.T) {
	r := rule.Default()
	r.MinInternal = 0
	r.RequirePillarLink = true

	n := node.Node{ID: "src", Platform: "p", Language: "fr",
		Type: node.TypeStandard, PillarID: "pillar-1"}

	missing := Proposal{Node: n, Paragraphs: 4,
		Internal: []link.InternalEdge{internalEdge("other", 1)}}
	violations := Validate(r, missing)
	found := false
	for _, v := range violations {
		if v.Code == "pillar_link" {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want pillar_link violation", violations)
	}

	satisfied := Proposal{Node: n, Paragraphs: 4,
		Internal: []link.InternalEdge{internalEdge("pillar-1", 1)}}
	for _, v := range Validate(r, satisfied) {
		if v.Code == "pillar_link" {
			t.Errorf("Validate() flagged pillar_link despite pillar edge")
		}
	}

	// Pillar nodes are exempt from the requirement.
	pillar := Proposal{Node: node.Node{ID: "p1", Platform: "p", Language: "fr",
		Type: node.TypePillar}, Paragraphs: 4}
	for _, v := range Validate(r, pillar) {
		if v.Code == "pillar_link" {
			t.Error("pillar node should not require a pillar link")
		}
	}
}

func TestValidate_GovernmentSource(t *testing.T) {
	r := rule.Default()
	r.MinInternal = 0
	r.RequirePillarLink = false
	r.RequireGovernment = true
	r.MinExternal = 1

	p := Proposal{
		Node:       node.Node{ID: "src", Platform: "p", Language: "fr", Type: node.TypeStandard},
		Paragraphs: 4,
		External: []link.ExternalEdge{{SourceID: "src", Domain: "uci.org",
			Type: link.SourceOrganization, Authority: 80}},
	}
	violations := Validate(r, p)
	found := false
	for _, v := range violations {
		if v.Code == "government_source" {
			found = true
		}
	}
	if !found {
		t.Errorf("Validate() = %v, want government_source violation", violations)
	}
}

func TestPositionAllowed(t *testing.T) {
	r := rule.Default() // excludes intro and conclusion

	tests := []struct {
		paragraph int
		total     int
		want      bool
	}{
		{0, 5, false},
		{4, 5, false},
		{2, 5, true},
		{1, 2, false},
		{-1, 5, false},
		{5, 5, false},
	}
	for _, tt := range tests {
		if got := PositionAllowed(r, tt.paragraph, tt.total); got != tt.want {
			t.Errorf("PositionAllowed(%d of %d) = %v, want %v", tt.paragraph, tt.total, got, tt.want)
		}
	}

	open := rule.Default()
	open.ExcludeIntro = false
	open.ExcludeConclusion = false
	if !PositionAllowed(open, 0, 5) || !PositionAllowed(open, 4, 5) {
		t.Error("PositionAllowed() should admit zone paragraphs when zones are open")
	}
}

func TestSession_DeficitBalancing(t *testing.T) {
	targets := rule.Distribution{ExactMatch: 40, LongTail: 30, Generic: 20, CTA: 5, Question: 5}
	s := NewSession(targets)

	// Empty session: largest target wins.
	if got := s.NextCategory(); got != link.AnchorExactMatch {
		t.Errorf("NextCategory() = %v, want exact_match", got)
	}

	// Following the balancer for a large batch converges to the targets.
	for i := 0; i < 100; i++ {
		s.Record(s.NextCategory())
	}
	tally := s.Tally()
	wants := map[link.AnchorCategory]int{
		link.AnchorExactMatch: 40,
		link.AnchorLongTail:   30,
		link.AnchorGeneric:    20,
		link.AnchorCTA:        5,
		link.AnchorQuestion:   5,
	}
	for c, want := range wants {
		got := tally[c]
		if got < want-2 || got > want+2 {
			t.Errorf("tally[%s] = %d, want %d±2", c, got, want)
		}
	}
}

func TestSession_EqualDeficitTieBreak(t *testing.T) {
	// cta and question share the same target; the fixed category order makes
	// cta win the tie deterministically.
	targets := rule.Distribution{ExactMatch: 0, LongTail: 0, Generic: 90, CTA: 5, Question: 5}
	s := NewSession(targets)
	for i := 0; i < 18; i++ {
		s.Record(link.AnchorGeneric)
	}

	first := s.NextCategory()
	if first != link.AnchorCTA {
		t.Errorf("NextCategory() = %v, want cta on equal deficit", first)
	}
	s.Record(first)
	if got := s.NextCategory(); got != link.AnchorQuestion {
		t.Errorf("NextCategory() after cta = %v, want question", got)
	}
}

func TestSession_TakeCombinesPickAndRecord(t *testing.T) {
	s := NewSession(rule.Distribution{ExactMatch: 50, LongTail: 50})

	first := s.Take()
	if first != link.AnchorExactMatch {
		t.Fatalf("Take() = %v, want exact_match", first)
	}
	if got := s.Tally()[first]; got != 1 {
		t.Errorf("Tally()[%s] = %d, want 1 directly after Take", first, got)
	}

	// The pick is recorded before anyone can observe the session again, so
	// the same deficit is never handed out twice.
	if second := s.Take(); second != link.AnchorLongTail {
		t.Errorf("Take() = %v, want long_tail once exact_match is consumed", second)
	}
}

func TestValidate_BrokenExternalEdgesIgnored(t *testing.T) {
	r := rule.Default()
	r.MinInternal = 0
	r.MinExternal, r.MaxExternal = 1, 1
	r.RequirePillarLink = false

	base := node.Node{ID: "src", Platform: "cyclado", Language: "fr", Type: node.TypeStandard}
	broken := link.ExternalEdge{SourceID: "src", Domain: "gone.example",
		Type: link.SourceGovernment, Authority: 10, Status: link.VerifyBroken}

	// A broken edge satisfies no minimum and is never scored for authority.
	violations := Validate(r, Proposal{Node: base, Paragraphs: 4,
		External: []link.ExternalEdge{broken}})
	codes := make(map[string]bool)
	for _, v := range violations {
		codes[v.Code] = true
	}
	if !codes["external_count"] {
		t.Errorf("Validate() = %v, want external_count shortfall", violations)
	}
	if codes["authority"] {
		t.Errorf("Validate() = %v, broken edges must not be authority-checked", violations)
	}

	// Nor does it count against the cap once a live edge sits next to it.
	alive := link.ExternalEdge{SourceID: "src", Domain: "ok.example",
		Type: link.SourceNews, Authority: 90, Status: link.VerifyActive}
	violations = Validate(r, Proposal{Node: base, Paragraphs: 4,
		External: []link.ExternalEdge{alive, broken}})
	if len(violations) != 0 {
		t.Errorf("Validate() = %v, want none with one live edge in bounds", violations)
	}
}
