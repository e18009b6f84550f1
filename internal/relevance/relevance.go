// Package relevance ranks candidate link targets for a source node.
package relevance

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/marbec/linkmesh/internal/node"
)

// Component weights of the composite relevance score. They sum to 100.
const (
	themeWeight    = 40
	countryWeight  = 20
	languageWeight = 20
	typeWeight     = 20
)

// Candidate pairs a node with the snapshot data used for ranking.
type Candidate struct {
	Node node.Node

	// PageRank is the stored authority score at ranking time; stale values
	// are acceptable (scores are eventually consistent).
	PageRank float64

	// Inbound is the current active inbound-link count.
	Inbound int

	// Relevance is filled in by Rank.
	Relevance int
}

// Options control one ranking pass.
type Options struct {
	// MinRelevance drops candidates scoring below it. Dropped candidates are
	// discarded, never just de-prioritized.
	MinRelevance int

	// CrossLanguage admits candidates in other languages when the
	// same-language pool is too small to satisfy Needed.
	CrossLanguage bool

	// Needed is the number of candidates the caller wants; used only to
	// decide whether the cross-language fallback kicks in.
	Needed int
}

// Rank scores a pool of same-platform candidates against a source node and
// returns them ordered best-first. Ties break on higher PageRank, then lower
// inbound count, then node id.
func Rank(source node.Node, pool []Candidate, opts Options) []Candidate {
	sameLang := rankSubset(source, pool, opts.MinRelevance, false)
	if !opts.CrossLanguage || len(sameLang) >= opts.Needed {
		return sameLang
	}

	// Not enough same-language candidates: rescore the whole pool with
	// cross-language credit and merge in the foreign-language results.
	ranked := rankSubset(source, pool, opts.MinRelevance, true)
	return ranked
}

func rankSubset(source node.Node, pool []Candidate, minRelevance int, crossLanguage bool) []Candidate {
	var ranked []Candidate
	for _, c := range pool {
		if c.Node.ID == source.ID || c.Node.Platform != source.Platform {
			continue
		}
		if !crossLanguage && c.Node.Language != source.Language {
			continue
		}
		c.Relevance = Score(source, c.Node, crossLanguage)
		if c.Relevance < minRelevance {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		if a.PageRank != b.PageRank {
			return a.PageRank > b.PageRank
		}
		if a.Inbound != b.Inbound {
			return a.Inbound < b.Inbound
		}
		return a.Node.ID < b.Node.ID
	})

	return ranked
}

// Score computes the composite relevance of target for source, 0-100.
func Score(source, target node.Node, crossLanguage bool) int {
	score := themePoints(source.Themes, target.Themes)
	if source.Country != "" && source.Country == target.Country {
		score += countryWeight
	}
	score += languagePoints(source.Language, target.Language, crossLanguage)
	score += typePoints(source, target)
	return score
}

// themePoints scales with the fraction of source themes shared by the target.
func themePoints(sourceThemes, targetThemes []string) int {
	if len(sourceThemes) == 0 {
		return 0
	}
	targetSet := make(map[string]bool, len(targetThemes))
	for _, t := range targetThemes {
		targetSet[t] = true
	}
	shared := 0
	for _, t := range sourceThemes {
		if targetSet[t] {
			shared++
		}
	}
	return themeWeight * shared / len(sourceThemes)
}

// languagePoints gives full credit for an exact match and partial credit for
// close BCP 47 matches (fr vs fr-CA) when cross-language linking is allowed.
func languagePoints(src, target string, crossLanguage bool) int {
	if src == target {
		return languageWeight
	}
	if !crossLanguage {
		return 0
	}

	srcTag, err := language.Parse(src)
	if err != nil {
		return 0
	}
	targetTag, err := language.Parse(target)
	if err != nil {
		return 0
	}

	_, _, conf := language.NewMatcher([]language.Tag{srcTag}).Match(targetTag)
	switch conf {
	case language.Exact:
		return languageWeight
	case language.High:
		return languageWeight / 2
	case language.Low:
		return languageWeight / 4
	default:
		return 0
	}
}

// typePoints scores node-type compatibility. A standard article prefers its
// own pillar above everything else.
func typePoints(source, target node.Node) int {
	if source.Type == node.TypeStandard && source.PillarID != "" && target.ID == source.PillarID {
		return typeWeight
	}
	switch {
	case target.Type == node.TypePillar:
		return typeWeight * 3 / 5
	case source.Type == target.Type:
		return typeWeight / 2
	case target.Type == node.TypeStandard:
		return typeWeight * 2 / 5
	default:
		return typeWeight / 5
	}
}
