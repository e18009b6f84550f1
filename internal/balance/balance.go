// Package balance diagnoses platform-wide link health and repairs drift.
package balance

import (
	"fmt"

	"github.com/marbec/linkmesh/internal/injector"
	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/storage"
)

// Analyzer reads the link store and score snapshots to build reports and
// repair plans. The injector is its only write path.
type Analyzer struct {
	db  *storage.DB
	inj *injector.Injector
}

// New creates an analyzer.
func New(db *storage.DB, inj *injector.Injector) *Analyzer {
	return &Analyzer{db: db, inj: inj}
}

// Orphans lists nodes with zero active inbound internal edges.
func (a *Analyzer) Orphans(platform, language string, limit, offset int) ([]string, error) {
	return a.db.Orphans(platform, language, limit, offset)
}

// DeadEnds lists nodes with zero active outbound internal edges.
func (a *Analyzer) DeadEnds(platform, language string, limit, offset int) ([]string, error) {
	return a.db.DeadEnds(platform, language, limit, offset)
}

// CategoryStat compares one anchor category against its target share.
type CategoryStat struct {
	Count  int `json:"count"`
	Share  int `json:"share"`
	Target int `json:"target"`
}

// Report is the platform-wide link-health summary.
type Report struct {
	Platform           string                               `json:"platform"`
	Language           string                               `json:"language,omitempty"`
	Nodes              int                                  `json:"nodes"`
	Orphans            int                                  `json:"orphans"`
	DeadEnds           int                                  `json:"dead_ends"`
	AvgInDegree        float64                              `json:"avg_in_degree"`
	AvgOutDegree       float64                              `json:"avg_out_degree"`
	DuplicateInternal  int                                  `json:"duplicate_internal"`
	DuplicateExternal  int                                  `json:"duplicate_external"`
	Distribution       map[link.AnchorCategory]CategoryStat `json:"distribution"`
	AuthorityHistogram map[string]int                       `json:"authority_histogram"`
}

// authorityBuckets are the 20-point histogram buckets over external-edge
// authority snapshots.
var authorityBuckets = []string{"0-19", "20-39", "40-59", "60-79", "80-100"}

// PlatformReport aggregates orphan/dead-end counts, degree averages, the
// anchor-category distribution against its target, and the authority
// histogram of external edges.
func (a *Analyzer) PlatformReport(platform, language string) (Report, error) {
	report := Report{Platform: platform, Language: language}

	nodes, err := a.db.ListNodes(platform, language)
	if err != nil {
		return report, err
	}
	report.Nodes = len(nodes)

	orphans, err := a.db.Orphans(platform, language, 0, 0)
	if err != nil {
		return report, err
	}
	report.Orphans = len(orphans)

	deadEnds, err := a.db.DeadEnds(platform, language, 0, 0)
	if err != nil {
		return report, err
	}
	report.DeadEnds = len(deadEnds)

	edges, err := a.db.PlatformInternalEdges(platform)
	if err != nil {
		return report, err
	}

	inPlatform := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		inPlatform[n.ID] = true
	}
	inbound := 0
	counts := make(map[link.AnchorCategory]int)
	total := 0
	for _, e := range edges {
		if language != "" && !inPlatform[e.SourceID] {
			continue
		}
		counts[e.Category]++
		total++
		if inPlatform[e.TargetID] {
			inbound++
		}
	}
	if report.Nodes > 0 {
		report.AvgOutDegree = float64(total) / float64(report.Nodes)
		report.AvgInDegree = float64(inbound) / float64(report.Nodes)
	}
	report.DuplicateInternal = len(link.FindDuplicateEdges(edges))

	r, err := a.db.GetRule(platform)
	if err != nil {
		return report, err
	}
	report.Distribution = make(map[link.AnchorCategory]CategoryStat, len(link.Categories))
	for _, c := range link.Categories {
		stat := CategoryStat{Count: counts[c], Target: r.Distribution.Target(c)}
		if total > 0 {
			stat.Share = 100 * counts[c] / total
		}
		report.Distribution[c] = stat
	}

	external, err := a.db.PlatformExternalEdges(platform)
	if err != nil {
		return report, err
	}
	report.DuplicateExternal = len(link.FindDuplicateExternalEdges(external))
	report.AuthorityHistogram = make(map[string]int, len(authorityBuckets))
	for _, b := range authorityBuckets {
		report.AuthorityHistogram[b] = 0
	}
	for _, e := range external {
		report.AuthorityHistogram[authorityBucket(e.Authority)]++
	}

	return report, nil
}

func authorityBucket(authority int) string {
	switch {
	case authority < 20:
		return authorityBuckets[0]
	case authority < 40:
		return authorityBuckets[1]
	case authority < 60:
		return authorityBuckets[2]
	case authority < 80:
		return authorityBuckets[3]
	default:
		return authorityBuckets[4]
	}
}

// Suggest proposes, without persisting, the edges that would improve a
// node's compliance. It is a dry-run pass through the injector.
func (a *Analyzer) Suggest(nodeID string) (injector.Result, error) {
	opts := injector.DefaultOptions()
	opts.DryRun = true
	opts.ImproveOnly = true
	return a.inj.ProcessArticle(nodeID, opts)
}

// RepairReport is the outcome of one auto-repair run.
type RepairReport struct {
	Platform string            `json:"platform"`
	DryRun   bool              `json:"dry_run"`
	Orphans  []string          `json:"orphans,omitempty"`
	DeadEnds []string          `json:"dead_ends,omitempty"`
	Plan     []injector.Result `json:"plan"`
	Edges    int               `json:"edges"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// AutoRepair walks the platform's orphans and dead-ends and runs the
// injector's internal-link pass on each in improve-only mode: links are
// added only up to the max caps, manual edges are never removed, and
// already-compliant nodes are never rewritten. A repair never stamps a node
// processed, so the full pipeline still picks it up later. With dryRun the
// plan is collected without a single store write; without it the same plan
// is committed.
func (a *Analyzer) AutoRepair(platform, language string, dryRun bool) (RepairReport, error) {
	report := RepairReport{Platform: platform, DryRun: dryRun, Failed: make(map[string]string)}

	orphans, err := a.db.Orphans(platform, language, 0, 0)
	if err != nil {
		return report, fmt.Errorf("listing orphans: %w", err)
	}
	deadEnds, err := a.db.DeadEnds(platform, language, 0, 0)
	if err != nil {
		return report, fmt.Errorf("listing dead ends: %w", err)
	}
	report.Orphans = orphans
	report.DeadEnds = deadEnds

	seen := make(map[string]bool)
	var targets []string
	for _, id := range append(append([]string{}, orphans...), deadEnds...) {
		if !seen[id] {
			seen[id] = true
			targets = append(targets, id)
		}
	}

	opts := injector.Options{Internal: true, ImproveOnly: true, DryRun: dryRun}
	for _, id := range targets {
		result, err := a.inj.ProcessArticle(id, opts)
		if err != nil {
			report.Failed[id] = err.Error()
			continue
		}
		report.Plan = append(report.Plan, result)
		if dryRun {
			report.Edges += len(result.PlannedInternal)
		} else {
			report.Edges += result.AddedInternal
		}
	}

	if len(report.Failed) == 0 {
		report.Failed = nil
	}
	return report, nil
}
