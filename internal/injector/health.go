package injector

import (
	"github.com/marbec/linkmesh/internal/policy"
)

// HealthReport is the outcome of a read-only compliance check.
type HealthReport struct {
	NodeID     string             `json:"node_id"`
	Compliant  bool               `json:"compliant"`
	Violations []policy.Violation `json:"violations,omitempty"`
}

// CheckHealth re-evaluates a node's existing edges against the platform's
// current rules. Rules may have changed since injection; nothing is mutated.
func (i *Injector) CheckHealth(nodeID string) (HealthReport, error) {
	report := HealthReport{NodeID: nodeID}

	n, err := i.db.GetNode(nodeID)
	if err != nil {
		return report, err
	}
	r, err := i.db.GetRule(n.Platform)
	if err != nil {
		return report, err
	}
	state, err := i.loadState(n)
	if err != nil {
		return report, err
	}

	report.Violations = policy.Validate(r, policy.Proposal{
		Node:       *n,
		Paragraphs: state.paragraphs,
		Internal:   state.internal,
		External:   state.external,
	})
	report.Compliant = len(report.Violations) == 0
	return report, nil
}
