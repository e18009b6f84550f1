package injector

import (
	"fmt"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/rule"
)

// externalPass tops the node up toward max_external_links from the
// authority-domain catalog, walking the rule's source-type priority order
// and falling through to the next type only when the current one cannot
// supply enough qualifying domains.
func (i *Injector) externalPass(n *node.Node, r rule.Rule, state *nodeState, opts Options, result *Result) error {
	if len(state.external) >= r.MaxExternal {
		return nil
	}

	catalog, err := i.db.ListDomains(true)
	if err != nil {
		return err
	}

	// Qualifying domains grouped by source type. Unverified domains are a
	// soft shortfall, same as an authority miss: verification is a separate
	// periodic job and must never block injection.
	byType := make(map[link.SourceType][]link.AuthorityDomain)
	for _, d := range catalog {
		if d.Authority < r.MinAuthority {
			continue
		}
		if !d.AppliesTo(n.Country, n.Themes) {
			continue
		}
		byType[d.Type] = append(byType[d.Type], d)
	}

	for _, sourceType := range r.SourcePriority {
		if len(state.external) >= r.MaxExternal {
			break
		}
		for _, d := range byType[sourceType] {
			if len(state.external) >= r.MaxExternal {
				break
			}
			if state.domains[d.Domain] {
				continue
			}
			edge := link.ExternalEdge{
				SourceID:  n.ID,
				Domain:    d.Domain,
				Authority: d.Authority,
				Type:      d.Type,
				Status:    link.VerifyUnverified,
			}
			edge.Stamp()

			if opts.DryRun {
				result.PlannedExternal = append(result.PlannedExternal, edge)
			} else if err := i.db.InsertExternalEdge(&edge); err != nil {
				return err
			}
			state.external = append(state.external, edge)
			state.domains[d.Domain] = true
			result.AddedExternal++
		}
	}

	if !opts.ImproveOnly && len(state.external) < r.MinExternal {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"only %d external links placed, rule requires %d", len(state.external), r.MinExternal))
	}
	if r.RequireGovernment {
		found := false
		for _, e := range state.external {
			if e.Type == link.SourceGovernment {
				found = true
				break
			}
		}
		if !found {
			result.Warnings = append(result.Warnings, "no external domain met the government-source requirement")
		}
	}
	return nil
}
