// Package pagerank computes authority scores over the internal-link graph
// with the damped power method.
package pagerank

import (
	"fmt"
	"math"
	"sync"

	"github.com/marbec/linkmesh/internal/storage"
)

// Options tune one computation.
type Options struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64
}

// DefaultOptions returns the standard damping and convergence settings.
func DefaultOptions() Options {
	return Options{
		Damping:       0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// Edge is one directed link in the adjacency input.
type Edge struct {
	Source string
	Target string
}

// Result is the outcome of one computation.
type Result struct {
	Scores     map[string]float64 `json:"scores"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
}

// Compute runs the power method over the given node set and edges. Edges
// touching unknown nodes are ignored. Dangling-node mass is redistributed
// uniformly so the total stays 1.
func Compute(nodes []string, edges []Edge, opts Options) Result {
	n := len(nodes)
	if n == 0 {
		return Result{Scores: map[string]float64{}, Converged: true}
	}

	known := make(map[string]bool, n)
	for _, id := range nodes {
		known[id] = true
	}

	outgoing := make(map[string][]string, n)
	for _, e := range edges {
		if !known[e.Source] || !known[e.Target] || e.Source == e.Target {
			continue
		}
		outgoing[e.Source] = append(outgoing[e.Source], e.Target)
	}

	scores := make(map[string]float64, n)
	for _, id := range nodes {
		scores[id] = 1.0 / float64(n)
	}

	base := (1 - opts.Damping) / float64(n)
	iterations := 0
	converged := false

	for iterations < opts.MaxIterations {
		iterations++

		// Mass of dead ends is spread uniformly across all nodes.
		dangling := 0.0
		for _, id := range nodes {
			if len(outgoing[id]) == 0 {
				dangling += scores[id]
			}
		}

		next := make(map[string]float64, n)
		uniform := base + opts.Damping*dangling/float64(n)
		for _, id := range nodes {
			next[id] = uniform
		}
		for source, targets := range outgoing {
			share := opts.Damping * scores[source] / float64(len(targets))
			for _, target := range targets {
				next[target] += share
			}
		}

		diff := 0.0
		for _, id := range nodes {
			diff += math.Abs(next[id] - scores[id])
		}
		scores = next

		if diff < opts.Tolerance {
			converged = true
			break
		}
	}

	return Result{Scores: scores, Iterations: iterations, Converged: converged}
}

// Summary reports one persisted platform computation.
type Summary struct {
	Platform      string `json:"platform"`
	ScoresWritten int    `json:"scores_written"`
	Iterations    int    `json:"iterations"`
	Converged     bool   `json:"converged"`
}

// Engine computes and persists platform score snapshots.
type Engine struct {
	db   *storage.DB
	opts Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an engine over a store.
func NewEngine(db *storage.DB, opts Options) *Engine {
	return &Engine{
		db:    db,
		opts:  opts,
		locks: make(map[string]*sync.Mutex),
	}
}

// platformLock returns the advisory mutex for a platform, creating it on
// first use. Only one recomputation may run per platform at a time; edge
// writes from concurrent injector jobs are tolerated as a snapshot read.
func (e *Engine) platformLock(platform string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[platform]
	if !ok {
		l = &sync.Mutex{}
		e.locks[platform] = l
	}
	return l
}

// CalculateForPlatform recomputes and stores the score snapshot for one
// platform. Non-convergence is not an error: the best available scores are
// persisted and Converged reports false.
func (e *Engine) CalculateForPlatform(platform string) (Summary, error) {
	l := e.platformLock(platform)
	l.Lock()
	defer l.Unlock()

	ids, err := e.db.ListNodeIDs(platform, "")
	if err != nil {
		return Summary{}, fmt.Errorf("loading nodes for %s: %w", platform, err)
	}
	stored, err := e.db.PlatformInternalEdges(platform)
	if err != nil {
		return Summary{}, fmt.Errorf("loading edges for %s: %w", platform, err)
	}

	edges := make([]Edge, 0, len(stored))
	for _, s := range stored {
		edges = append(edges, Edge{Source: s.SourceID, Target: s.TargetID})
	}

	result := Compute(ids, edges, e.opts)
	if err := e.db.ReplaceScores(platform, result.Scores, result.Iterations); err != nil {
		return Summary{}, fmt.Errorf("storing scores for %s: %w", platform, err)
	}

	return Summary{
		Platform:      platform,
		ScoresWritten: len(result.Scores),
		Iterations:    result.Iterations,
		Converged:     result.Converged,
	}, nil
}

// TopK returns the n highest-authority nodes of a platform from the stored
// snapshot.
func (e *Engine) TopK(platform string, n int) ([]storage.Score, error) {
	return e.db.TopScores(platform, n)
}

// BottomK returns the n lowest-authority nodes of a platform.
func (e *Engine) BottomK(platform string, n int) ([]storage.Score, error) {
	return e.db.BottomScores(platform, n)
}
