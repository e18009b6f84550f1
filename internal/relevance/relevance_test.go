package relevance

import (
	"testing"

	"github.com/marbec/linkmesh/internal/node"
)

func stdNode(id string, themes ...string) node.Node {
	return node.Node{
		ID: id, Platform: "cyclado", Country: "FR", Language: "fr",
		Themes: themes, Type: node.TypeStandard,
	}
}

func TestScore_Components(t *testing.T) {
	source := stdNode("src", "cycling", "gear")

	tests := []struct {
		name   string
		target node.Node
		want   int
	}{
		{
			name: "full overlap same country and language",
			// themes 40 + country 20 + language 20 + same type 10
			target: stdNode("t", "cycling", "gear"),
			want:   90,
		},
		{
			name: "half theme overlap",
			// themes 20 + country 20 + language 20 + same type 10
			target: stdNode("t", "cycling"),
			want:   70,
		},
		{
			name: "different country and language",
			target: node.Node{
				ID: "t", Platform: "cyclado", Country: "DE", Language: "de",
				Themes: []string{"cycling", "gear"}, Type: node.TypeStandard,
			},
			want: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(source, tt.target, false); got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScore_OwnPillarBeatsOtherPillar(t *testing.T) {
	source := stdNode("src", "cycling")
	source.PillarID = "pillar-own"

	own := node.Node{ID: "pillar-own", Platform: "cyclado", Country: "FR",
		Language: "fr", Themes: []string{"cycling"}, Type: node.TypePillar}
	other := node.Node{ID: "pillar-other", Platform: "cyclado", Country: "FR",
		Language: "fr", Themes: []string{"cycling"}, Type: node.TypePillar}

	if Score(source, own, false) <= Score(source, other, false) {
		t.Error("designated pillar should outscore another pillar")
	}
}

func TestRank_DropsBelowMinRelevance(t *testing.T) {
	source := stdNode("src", "cycling", "gear", "racing", "maintenance")

	pool := []Candidate{
		{Node: stdNode("good", "cycling", "gear", "racing", "maintenance")},
		{Node: node.Node{ID: "bad", Platform: "cyclado", Country: "IT",
			Language: "fr", Type: node.TypeLanding}},
	}

	ranked := Rank(source, pool, Options{MinRelevance: 60, Needed: 5})
	if len(ranked) != 1 || ranked[0].Node.ID != "good" {
		t.Errorf("Rank() = %v, want only the qualifying candidate", ids(ranked))
	}
}

func TestRank_TieBreaks(t *testing.T) {
	source := stdNode("src", "cycling")

	// Identical relevance; the ordering must come from PageRank then inbound.
	a := Candidate{Node: stdNode("a", "cycling"), PageRank: 0.1, Inbound: 5}
	b := Candidate{Node: stdNode("b", "cycling"), PageRank: 0.4, Inbound: 5}
	c := Candidate{Node: stdNode("c", "cycling"), PageRank: 0.1, Inbound: 2}

	ranked := Rank(source, []Candidate{a, b, c}, Options{Needed: 3})
	got := ids(ranked)
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Rank() order = %v, want %v", got, want)
		}
	}
}

func TestRank_CrossLanguageFallback(t *testing.T) {
	source := stdNode("src", "cycling")

	frCA := node.Node{ID: "fr-ca", Platform: "cyclado", Country: "CA",
		Language: "fr-CA", Themes: []string{"cycling"}, Type: node.TypeStandard}
	pool := []Candidate{{Node: frCA}}

	// Without the fallback, a fr-CA candidate is invisible to a fr source.
	if got := Rank(source, pool, Options{Needed: 1}); len(got) != 0 {
		t.Errorf("Rank() without fallback = %v, want none", ids(got))
	}

	got := Rank(source, pool, Options{Needed: 1, CrossLanguage: true})
	if len(got) != 1 || got[0].Node.ID != "fr-ca" {
		t.Errorf("Rank() with fallback = %v, want fr-ca", ids(got))
	}
	// Close-language credit is partial, not full.
	full := Score(source, stdNode("same", "cycling"), false)
	if got[0].Relevance >= full {
		t.Errorf("cross-language relevance %d should be below same-language %d", got[0].Relevance, full)
	}
}

func TestRank_SkipsSelfAndOtherPlatforms(t *testing.T) {
	source := stdNode("src", "cycling")
	pool := []Candidate{
		{Node: source},
		{Node: node.Node{ID: "foreign", Platform: "other", Country: "FR",
			Language: "fr", Themes: []string{"cycling"}, Type: node.TypeStandard}},
	}
	if got := Rank(source, pool, Options{Needed: 2}); len(got) != 0 {
		t.Errorf("Rank() = %v, want empty", ids(got))
	}
}

func ids(cands []Candidate) []string {
	var out []string
	for _, c := range cands {
		out = append(out, c.Node.ID)
	}
	return out
}
