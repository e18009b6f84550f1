// Package injector drives candidate discovery, policy filtering and link
// insertion for articles.
package injector

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/policy"
	"github.com/marbec/linkmesh/internal/relevance"
	"github.com/marbec/linkmesh/internal/rule"
	"github.com/marbec/linkmesh/internal/storage"
)

// Injector orchestrates link injection for one platform corpus.
type Injector struct {
	db      *storage.DB
	workers int
	log     *zap.Logger

	sessMu sync.Mutex
}

// New creates an injector. workers bounds batch concurrency; a nil logger
// disables logging.
func New(db *storage.DB, workers int, log *zap.Logger) *Injector {
	if workers < 1 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Injector{db: db, workers: workers, log: log}
}

// Options control one ProcessArticle call.
type Options struct {
	// Force bypasses the already-processed short-circuit.
	Force bool

	// Internal / External / Pillar toggle the individual passes. Zero-value
	// Options runs nothing; use DefaultOptions for the full pipeline.
	Internal bool
	External bool
	Pillar   bool

	// ImproveOnly adds links only up to the max caps and never reports
	// minimum-shortfall warnings. Used by auto-repair.
	ImproveOnly bool

	// DryRun plans edges without persisting anything.
	DryRun bool

	// Session shares an anchor-category tally across a batch. A nil session
	// balances within the single call.
	Session *policy.Session
}

// DefaultOptions enables all three passes.
func DefaultOptions() Options {
	return Options{Internal: true, External: true, Pillar: true}
}

// Result summarizes one processed article.
type Result struct {
	NodeID        string   `json:"node_id"`
	AddedInternal int      `json:"added_internal"`
	AddedExternal int      `json:"added_external"`
	Skipped       bool     `json:"skipped,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`

	// Planned edges, populated instead of writes when DryRun is set.
	PlannedInternal []link.InternalEdge `json:"planned_internal,omitempty"`
	PlannedExternal []link.ExternalEdge `json:"planned_external,omitempty"`
}

// ProcessArticle runs the injection pipeline for one node: internal links
// first, then external links, then the pillar check, so each step sees the
// effect of the previous one. Policy shortfalls surface as warnings; the
// call fails only on infrastructure or not-found errors.
func (i *Injector) ProcessArticle(nodeID string, opts Options) (Result, error) {
	result := Result{NodeID: nodeID}

	n, err := i.db.GetNode(nodeID)
	if err != nil {
		return result, err
	}

	if n.Processed() && !opts.Force && !opts.ImproveOnly {
		result.Skipped = true
		return result, nil
	}

	r, err := i.db.GetRule(n.Platform)
	if err != nil {
		return result, err
	}

	session := opts.Session
	if session == nil {
		session = policy.NewSession(r.Distribution)
	}

	state, err := i.loadState(n)
	if err != nil {
		return result, err
	}

	if opts.Internal {
		if err := i.internalPass(n, r, state, session, opts, &result); err != nil {
			return result, err
		}
	}
	if opts.External {
		if err := i.externalPass(n, r, state, opts, &result); err != nil {
			return result, err
		}
	}
	if opts.Pillar {
		if err := i.pillarPass(n, r, state, session, opts, &result); err != nil {
			return result, err
		}
	}

	// The minimum-internal check waits until here: the pillar pass may have
	// added one more internal edge after the internal pass finished.
	if opts.Internal && !opts.ImproveOnly && len(state.internal) < r.MinInternal {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"only %d internal links placed, rule requires %d", len(state.internal), r.MinInternal))
	}

	if !opts.DryRun {
		// An improve-only call is a partial pipeline; the processed stamp
		// stays off so a later full run is not short-circuited.
		if !opts.ImproveOnly {
			n.MarkProcessed()
		}
		if err := i.db.UpdateNodeContent(n.ID, n.Content, n.ProcessedAt, n.ContentHash); err != nil {
			return result, err
		}
	}

	return result, nil
}

// nodeState is the mutable per-call view of a node's links and positions.
type nodeState struct {
	internal     []link.InternalEdge
	external     []link.ExternalEdge
	targets      map[string]bool
	domains      map[string]bool
	perParagraph map[int]int
	paragraphs   int
}

func (i *Injector) loadState(n *node.Node) (*nodeState, error) {
	internal, err := i.db.OutboundEdges(n.ID)
	if err != nil {
		return nil, err
	}
	external, err := i.db.ExternalEdges(n.ID)
	if err != nil {
		return nil, err
	}

	state := &nodeState{
		internal:     internal,
		external:     external,
		targets:      make(map[string]bool),
		domains:      make(map[string]bool),
		perParagraph: make(map[int]int),
		paragraphs:   len(n.Paragraphs()),
	}
	for _, e := range internal {
		state.targets[e.TargetID] = true
		state.perParagraph[e.Paragraph]++
	}
	for _, e := range external {
		state.domains[e.Domain] = true
	}
	return state, nil
}

// pickPosition returns the first paragraph outside the exclusion zones with
// capacity left, or -1 when the article is full.
func (s *nodeState) pickPosition(r rule.Rule) int {
	for idx := 0; idx < s.paragraphs; idx++ {
		if !policy.PositionAllowed(r, idx, s.paragraphs) {
			continue
		}
		if s.perParagraph[idx] >= r.MaxPerParagraph {
			continue
		}
		return idx
	}
	return -1
}

// internalPass tops the node up toward max_internal_links with ranked,
// policy-filtered candidates.
func (i *Injector) internalPass(n *node.Node, r rule.Rule, state *nodeState, session *policy.Session, opts Options, result *Result) error {
	if len(state.internal) >= r.MaxInternal {
		return nil
	}

	pool, err := i.candidatePool(n)
	if err != nil {
		return err
	}

	needed := r.MaxInternal - len(state.internal)
	ranked := relevance.Rank(*n, pool, relevance.Options{
		MinRelevance:  r.MinRelevance,
		CrossLanguage: r.AllowCrossLanguage,
		Needed:        needed,
	})

	for _, cand := range ranked {
		if len(state.internal) >= r.MaxInternal {
			break
		}
		if state.targets[cand.Node.ID] {
			continue
		}
		position := state.pickPosition(r)
		if position < 0 {
			result.Warnings = append(result.Warnings, "no insertion position left outside exclusion zones")
			break
		}

		category := i.takeCategory(session)
		edge := link.InternalEdge{
			SourceID:  n.ID,
			TargetID:  cand.Node.ID,
			Anchor:    anchorText(cand.Node, category),
			Category:  category,
			Paragraph: position,
			Origin:    link.OriginAutomatic,
			Active:    true,
		}

		if err := i.placeInternal(n, &edge, state, opts, result); err != nil {
			return err
		}
	}
	return nil
}

// placeInternal persists (or plans) one internal edge and embeds its anchor.
func (i *Injector) placeInternal(n *node.Node, edge *link.InternalEdge, state *nodeState, opts Options, result *Result) error {
	edge.Stamp()
	if opts.DryRun {
		result.PlannedInternal = append(result.PlannedInternal, *edge)
	} else {
		if err := i.db.InsertInternalEdge(edge); err != nil {
			return err
		}
		content, err := n.EmbedAnchor(edge.Paragraph, edge.Anchor, edge.TargetID)
		if err != nil {
			return fmt.Errorf("embedding anchor in %s: %w", n.ID, err)
		}
		n.Content = content
	}

	state.internal = append(state.internal, *edge)
	state.targets[edge.TargetID] = true
	state.perParagraph[edge.Paragraph]++
	result.AddedInternal++
	return nil
}

// candidatePool loads all platform nodes with their snapshot scores and
// inbound counts.
func (i *Injector) candidatePool(n *node.Node) ([]relevance.Candidate, error) {
	nodes, err := i.db.ListNodes(n.Platform, "")
	if err != nil {
		return nil, err
	}
	scores, err := i.db.GetScores(n.Platform)
	if err != nil {
		return nil, err
	}

	pool := make([]relevance.Candidate, 0, len(nodes))
	for _, cand := range nodes {
		if cand.ID == n.ID || cand.Status != node.StatusPublished {
			continue
		}
		inbound, err := i.db.InboundCount(cand.ID)
		if err != nil {
			return nil, err
		}
		pool = append(pool, relevance.Candidate{
			Node:     cand,
			PageRank: scores[cand.ID],
			Inbound:  inbound,
		})
	}
	return pool, nil
}

// pillarPass verifies the designated-pillar edge exists, injecting it when
// the caps leave room.
func (i *Injector) pillarPass(n *node.Node, r rule.Rule, state *nodeState, session *policy.Session, opts Options, result *Result) error {
	if !r.RequirePillarLink || n.Type == node.TypePillar {
		return nil
	}
	if n.PillarID == "" {
		result.Warnings = append(result.Warnings, "pillar link required but node has no designated pillar")
		return nil
	}
	if state.targets[n.PillarID] {
		return nil
	}

	if len(state.internal) >= r.MaxInternal {
		result.Warnings = append(result.Warnings, "pillar link required but max_internal_links is reached")
		return nil
	}
	if _, err := i.db.GetNode(n.PillarID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("designated pillar %s does not exist", n.PillarID))
			return nil
		}
		return err
	}
	position := state.pickPosition(r)
	if position < 0 {
		result.Warnings = append(result.Warnings, "pillar link required but no insertion position left")
		return nil
	}

	category := i.takeCategory(session)
	edge := link.InternalEdge{
		SourceID:  n.ID,
		TargetID:  n.PillarID,
		Anchor:    anchorText(node.Node{ID: n.PillarID, Themes: n.Themes}, category),
		Category:  category,
		Paragraph: position,
		Origin:    link.OriginAutomatic,
		Active:    true,
	}
	if err := i.placeInternal(n, &edge, state, opts, result); err != nil {
		return err
	}
	return nil
}

// takeCategory picks and records a category under one lock, so concurrent
// batch workers sharing a session never both claim the same deficit.
func (i *Injector) takeCategory(session *policy.Session) link.AnchorCategory {
	i.sessMu.Lock()
	defer i.sessMu.Unlock()
	return session.Take()
}

// anchorText derives deterministic anchor wording for a target and category.
func anchorText(target node.Node, category link.AnchorCategory) string {
	topic := strings.ReplaceAll(target.ID, "-", " ")
	if len(target.Themes) > 0 {
		topic = target.Themes[0]
	}

	switch category {
	case link.AnchorExactMatch:
		return topic
	case link.AnchorLongTail:
		return "complete guide to " + topic
	case link.AnchorGeneric:
		return "read more"
	case link.AnchorCTA:
		return "discover " + topic + " now"
	case link.AnchorQuestion:
		return "what should you know about " + topic + "?"
	}
	return topic
}
