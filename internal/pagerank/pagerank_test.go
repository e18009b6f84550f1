package pagerank

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/storage"
)

func TestCompute_MassConservation(t *testing.T) {
	// Closed ring: a -> b -> c -> a, no dangling nodes.
	nodes := []string{"a", "b", "c"}
	edges := []Edge{{"a", "b"}, {"b", "c"}, {"c", "a"}}

	result := Compute(nodes, edges, DefaultOptions())
	if !result.Converged {
		t.Fatalf("ring did not converge in %d iterations", result.Iterations)
	}

	sum := 0.0
	for _, s := range result.Scores {
		sum += s
	}
	if math.Abs(sum-1.0) > 1e-4 {
		t.Errorf("score mass = %f, want 1.0", sum)
	}

	// Symmetric ring: every node ends up equal.
	for id, s := range result.Scores {
		if math.Abs(s-1.0/3.0) > 1e-4 {
			t.Errorf("score[%s] = %f, want 1/3", id, s)
		}
	}
}

func TestCompute_ChainConcentratesAuthority(t *testing.T) {
	// a -> b -> c: the sink accumulates authority.
	nodes := []string{"a", "b", "c"}
	edges := []Edge{{"a", "b"}, {"b", "c"}}

	result := Compute(nodes, edges, DefaultOptions())
	if result.Scores["c"] < result.Scores["a"] {
		t.Errorf("PR(c) = %f < PR(a) = %f, sink should rank at least as high",
			result.Scores["c"], result.Scores["a"])
	}
	if result.Scores["b"] <= result.Scores["a"] {
		t.Errorf("PR(b) = %f should exceed PR(a) = %f", result.Scores["b"], result.Scores["a"])
	}
}

func TestCompute_DanglingMassConserved(t *testing.T) {
	// c is a dead end; its mass must be redistributed, not lost.
	nodes := []string{"a", "b", "c"}
	edges := []Edge{{"a", "c"}, {"b", "c"}}

	result := Compute(nodes, edges, DefaultOptions())
	sum := 0.0
	for _, s := range result.Scores {
		sum += s
	}
	if math.Abs(sum-1.0) > 1e-4 {
		t.Errorf("score mass with dangling node = %f, want 1.0", sum)
	}
}

func TestCompute_EdgeFiltering(t *testing.T) {
	nodes := []string{"a", "b"}
	edges := []Edge{
		{"a", "b"},
		{"a", "a"},       // self edge ignored
		{"a", "ghost"},   // unknown target ignored
		{"phantom", "b"}, // unknown source ignored
	}

	result := Compute(nodes, edges, DefaultOptions())
	if result.Scores["b"] <= result.Scores["a"] {
		t.Errorf("PR(b) = %f should exceed PR(a) = %f", result.Scores["b"], result.Scores["a"])
	}
}

func TestCompute_IterationCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIterations = 2
	opts.Tolerance = 0 // unreachable, force the cap

	nodes := []string{"a", "b"}
	result := Compute(nodes, []Edge{{"a", "b"}}, opts)
	if result.Converged {
		t.Error("Converged should be false when the cap terminates the loop")
	}
	if result.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", result.Iterations)
	}
	if len(result.Scores) != 2 {
		t.Error("partially converged scores must still be returned")
	}
}

func TestCompute_Empty(t *testing.T) {
	result := Compute(nil, nil, DefaultOptions())
	if !result.Converged || len(result.Scores) != 0 {
		t.Errorf("Compute(empty) = %+v", result)
	}
}

func TestEngine_CalculateForPlatform(t *testing.T) {
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "pr.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	defer db.Close()

	for _, id := range []string{"a", "b", "c"} {
		err := db.PutNode(&node.Node{ID: id, Platform: "cyclado", Language: "fr",
			Type: node.TypeStandard, Status: node.StatusPublished})
		if err != nil {
			t.Fatalf("PutNode(%s) error = %v", id, err)
		}
	}
	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}} {
		err := db.InsertInternalEdge(&link.InternalEdge{
			SourceID: pair[0], TargetID: pair[1], Anchor: "x",
			Category: link.AnchorGeneric, Origin: link.OriginAutomatic, Active: true,
		})
		if err != nil {
			t.Fatalf("InsertInternalEdge() error = %v", err)
		}
	}

	// An inactive edge must not influence the graph.
	inactive := link.InternalEdge{SourceID: "c", TargetID: "a", Anchor: "x",
		Category: link.AnchorGeneric, Origin: link.OriginAutomatic, Active: true}
	if err := db.InsertInternalEdge(&inactive); err != nil {
		t.Fatalf("InsertInternalEdge() error = %v", err)
	}
	if err := db.DeactivateInternalEdge(inactive.ID); err != nil {
		t.Fatalf("DeactivateInternalEdge() error = %v", err)
	}

	engine := NewEngine(db, DefaultOptions())
	summary, err := engine.CalculateForPlatform("cyclado")
	if err != nil {
		t.Fatalf("CalculateForPlatform() error = %v", err)
	}
	if summary.ScoresWritten != 3 {
		t.Errorf("ScoresWritten = %d, want 3", summary.ScoresWritten)
	}
	if !summary.Converged {
		t.Error("3-node chain should converge")
	}

	top, err := engine.TopK("cyclado", 1)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if len(top) != 1 || top[0].NodeID != "c" {
		t.Errorf("TopK() = %v, want c first", top)
	}

	bottom, err := engine.BottomK("cyclado", 1)
	if err != nil {
		t.Fatalf("BottomK() error = %v", err)
	}
	if len(bottom) != 1 || bottom[0].NodeID != "a" {
		t.Errorf("BottomK() = %v, want a last", bottom)
	}
}
