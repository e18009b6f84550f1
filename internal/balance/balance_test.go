package balance

import (
	"path/filepath"
	"testing"

	"github.com/marbec/linkmesh/internal/injector"
	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/rule"
	"github.com/marbec/linkmesh/internal/storage"
)

const body = "Intro.\n\nFirst body.\n\nSecond body.\n\nThird body.\n\nConclusion."

func testAnalyzer(t *testing.T) (*Analyzer, *storage.DB) {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "balance.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	no := false
	if err := db.PutRule(rule.Stored{Platform: "cyclado", RequirePillarLink: &no}, true); err != nil {
		t.Fatalf("PutRule() error = %v", err)
	}

	inj := injector.New(db, 1, nil)
	return New(db, inj), db
}

func seed(t *testing.T, db *storage.DB, id string) {
	t.Helper()
	err := db.PutNode(&node.Node{
		ID: id, Platform: "cyclado", Country: "FR", Language: "fr",
		Themes: []string{"cycling"}, Type: node.TypeStandard,
		Status: node.StatusPublished, Content: body,
	})
	if err != nil {
		t.Fatalf("PutNode(%s) error = %v", id, err)
	}
}

func edge(t *testing.T, db *storage.DB, source, target string, category link.AnchorCategory) {
	t.Helper()
	err := db.InsertInternalEdge(&link.InternalEdge{
		SourceID: source, TargetID: target, Anchor: "x", Category: category,
		Paragraph: 1, Origin: link.OriginAutomatic, Active: true,
	})
	if err != nil {
		t.Fatalf("edge %s->%s error = %v", source, target, err)
	}
}

func TestPlatformReport(t *testing.T) {
	a, db := testAnalyzer(t)
	for _, id := range []string{"a", "b", "c", "isolated"} {
		seed(t, db, id)
	}
	edge(t, db, "a", "b", link.AnchorExactMatch)
	edge(t, db, "b", "c", link.AnchorExactMatch)
	edge(t, db, "a", "c", link.AnchorGeneric)

	err := db.InsertExternalEdge(&link.ExternalEdge{
		SourceID: "a", Domain: "uci.org", Authority: 85,
		Type: link.SourceOrganization, Status: link.VerifyActive,
	})
	if err != nil {
		t.Fatalf("InsertExternalEdge() error = %v", err)
	}
	err = db.InsertExternalEdge(&link.ExternalEdge{
		SourceID: "b", Domain: "weak.example", Authority: 35,
		Type: link.SourceNews, Status: link.VerifyActive,
	})
	if err != nil {
		t.Fatalf("InsertExternalEdge() error = %v", err)
	}

	report, err := a.PlatformReport("cyclado", "")
	if err != nil {
		t.Fatalf("PlatformReport() error = %v", err)
	}

	if report.Nodes != 4 {
		t.Errorf("Nodes = %d, want 4", report.Nodes)
	}
	if report.Orphans != 2 { // a and isolated
		t.Errorf("Orphans = %d, want 2", report.Orphans)
	}
	if report.DeadEnds != 2 { // c and isolated
		t.Errorf("DeadEnds = %d, want 2", report.DeadEnds)
	}
	if report.AvgOutDegree != 0.75 {
		t.Errorf("AvgOutDegree = %f, want 0.75", report.AvgOutDegree)
	}
	if report.AvgInDegree != 0.75 {
		t.Errorf("AvgInDegree = %f, want 0.75", report.AvgInDegree)
	}

	exact := report.Distribution[link.AnchorExactMatch]
	if exact.Count != 2 || exact.Share != 66 {
		t.Errorf("exact_match stat = %+v, want count 2 share 66", exact)
	}
	if report.AuthorityHistogram["80-100"] != 1 || report.AuthorityHistogram["20-39"] != 1 {
		t.Errorf("AuthorityHistogram = %v", report.AuthorityHistogram)
	}
}

func TestOrphansAndDeadEnds_IsolatedInBoth(t *testing.T) {
	a, db := testAnalyzer(t)
	seed(t, db, "a")
	seed(t, db, "b")
	seed(t, db, "isolated")
	edge(t, db, "a", "b", link.AnchorGeneric)

	orphans, err := a.Orphans("cyclado", "", 0, 0)
	if err != nil {
		t.Fatalf("Orphans() error = %v", err)
	}
	deadEnds, err := a.DeadEnds("cyclado", "", 0, 0)
	if err != nil {
		t.Fatalf("DeadEnds() error = %v", err)
	}

	if !containsID(orphans, "isolated") || !containsID(deadEnds, "isolated") {
		t.Errorf("isolated node missing: orphans=%v deadEnds=%v", orphans, deadEnds)
	}
}

func TestSuggest_ReadOnly(t *testing.T) {
	a, db := testAnalyzer(t)
	seed(t, db, "a")
	seed(t, db, "b")

	result, err := a.Suggest("a")
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if len(result.PlannedInternal) == 0 {
		t.Error("Suggest() should propose edges for an unlinked node")
	}
	count, _ := db.OutboundCount("a")
	if count != 0 {
		t.Errorf("Suggest() persisted %d edges", count)
	}
}

func TestAutoRepair_DryRunThenCommit(t *testing.T) {
	a, db := testAnalyzer(t)
	for _, id := range []string{"a", "b", "c", "isolated"} {
		seed(t, db, id)
	}
	edge(t, db, "a", "b", link.AnchorGeneric)
	edge(t, db, "b", "c", link.AnchorGeneric)

	plan, err := a.AutoRepair("cyclado", "", true)
	if err != nil {
		t.Fatalf("AutoRepair(dry) error = %v", err)
	}
	if !plan.DryRun || plan.Edges == 0 {
		t.Fatalf("dry-run plan = %+v, want planned edges", plan)
	}

	// Dry run leaves the store unchanged.
	for _, id := range []string{"a", "b", "c", "isolated"} {
		n, _ := db.GetNode(id)
		if n.Processed() {
			t.Errorf("dry run marked %s processed", id)
		}
	}
	before, _ := db.PlatformInternalEdges("cyclado")
	if len(before) != 2 {
		t.Fatalf("dry run changed the edge set: %d edges", len(before))
	}

	committed, err := a.AutoRepair("cyclado", "", false)
	if err != nil {
		t.Fatalf("AutoRepair(commit) error = %v", err)
	}
	if committed.Edges != plan.Edges {
		t.Errorf("committed %d edges, plan had %d", committed.Edges, plan.Edges)
	}
	after, _ := db.PlatformInternalEdges("cyclado")
	if len(after) != len(before)+committed.Edges {
		t.Errorf("edge count after commit = %d, want %d", len(after), len(before)+committed.Edges)
	}
}

func TestAutoRepair_ThenFullProcessStillRuns(t *testing.T) {
	a, db := testAnalyzer(t)
	for _, id := range []string{"a", "b", "c", "isolated"} {
		seed(t, db, id)
	}
	edge(t, db, "a", "b", link.AnchorGeneric)
	edge(t, db, "b", "c", link.AnchorGeneric)

	dom := link.AuthorityDomain{Domain: "service-public.fr", Type: link.SourceGovernment, Authority: 80, Active: true}
	if err := db.PutDomain(&dom); err != nil {
		t.Fatalf("PutDomain() error = %v", err)
	}

	if _, err := a.AutoRepair("cyclado", "", false); err != nil {
		t.Fatalf("AutoRepair() error = %v", err)
	}

	// A repair only tops up internal links; the node must stay eligible for
	// the regular pipeline so it still picks up its external edges.
	n, _ := db.GetNode("isolated")
	if n.Processed() {
		t.Fatal("repair marked the node processed")
	}

	result, err := injector.New(db, 1, nil).ProcessArticle("isolated", injector.DefaultOptions())
	if err != nil {
		t.Fatalf("ProcessArticle() error = %v", err)
	}
	if result.Skipped {
		t.Fatal("repaired node must not be skipped by a plain process run")
	}
	if result.AddedExternal == 0 {
		t.Error("process run after repair should add external edges")
	}
}

func TestAutoRepair_NeverTouchesManualEdges(t *testing.T) {
	a, db := testAnalyzer(t)
	seed(t, db, "a")
	seed(t, db, "b")

	manual := link.InternalEdge{
		SourceID: "a", TargetID: "b", Anchor: "hand placed",
		Category: link.AnchorExactMatch, Paragraph: 1,
		Origin: link.OriginManual, Active: true,
	}
	if err := db.InsertInternalEdge(&manual); err != nil {
		t.Fatalf("InsertInternalEdge() error = %v", err)
	}

	if _, err := a.AutoRepair("cyclado", "", false); err != nil {
		t.Fatalf("AutoRepair() error = %v", err)
	}

	edges, _ := db.OutboundEdges("a")
	found := false
	for _, e := range edges {
		if e.ID == manual.ID && e.Active && e.Origin == link.OriginManual {
			found = true
		}
	}
	if !found {
		t.Error("manual edge was removed or altered by auto-repair")
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
