package injector

import (
	"sync"

	"go.uber.org/zap"

	"github.com/marbec/linkmesh/internal/policy"
)

// BatchSummary aggregates per-node outcomes of a batch run. Per-node order
// never affects the aggregate.
type BatchSummary struct {
	Processed int               `json:"processed"`
	Skipped   int               `json:"skipped"`
	Failed    int               `json:"failed"`
	Results   []Result          `json:"results"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ProcessBatch runs ProcessArticle for each node id on a bounded worker
// pool. Nodes are independent units of work; a failing node is recorded in
// the summary and does not stop the batch, because per-node processing is
// idempotent and safely retryable.
func (i *Injector) ProcessBatch(nodeIDs []string, opts Options) BatchSummary {
	summary := BatchSummary{Errors: make(map[string]string)}
	if len(nodeIDs) == 0 {
		return summary
	}

	// One shared session so the anchor-category distribution converges over
	// the whole batch rather than per article.
	if opts.Session == nil {
		if r, err := i.db.GetRule(i.platformOf(nodeIDs[0])); err == nil {
			opts.Session = policy.NewSession(r.Distribution)
		}
	}

	results := make([]Result, len(nodeIDs))
	errs := make([]error, len(nodeIDs))

	sem := make(chan struct{}, i.workers)
	var wg sync.WaitGroup

	for idx, id := range nodeIDs {
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()
			sem <- struct{}{}        // acquire semaphore
			defer func() { <-sem }() // release semaphore
			results[idx], errs[idx] = i.ProcessArticle(id, opts)
		}(idx, id)
	}
	wg.Wait()

	for idx, id := range nodeIDs {
		switch {
		case errs[idx] != nil:
			summary.Failed++
			summary.Errors[id] = errs[idx].Error()
			i.log.Warn("article processing failed",
				zap.String("node", id), zap.Error(errs[idx]))
		case results[idx].Skipped:
			summary.Skipped++
			summary.Results = append(summary.Results, results[idx])
		default:
			summary.Processed++
			summary.Results = append(summary.Results, results[idx])
		}
	}

	i.log.Info("batch complete",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	if len(summary.Errors) == 0 {
		summary.Errors = nil
	}
	return summary
}

// platformOf resolves the platform of a node for session setup; an unknown
// node just defers rule resolution to the per-node calls.
func (i *Injector) platformOf(nodeID string) string {
	n, err := i.db.GetNode(nodeID)
	if err != nil {
		return ""
	}
	return n.Platform
}
