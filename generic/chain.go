/*
chain.go - Approver chain resolution

PURPOSE:
  Computes the ordered chain of approvers a request must pass through,
  before any step is materialized. Two strategies live here:

  AssignmentChain (leave/WFH):
    1. Active Assignment rows for the requester/type, ordered by level.
       If any exist they define the chain.
    2. Otherwise fall back: the requester's direct manager at level 1,
       then an org admin at the next free level (skipped if it is the
       manager already chosen).
    3. An org policy flag can force admin-only routing (WFH), bypassing
       both assignments and the manager.

  The timeslip strategy (workflow template expansion) lives in workflow.go.

CHAIN CONTRACT:
  Every strategy returns entries with contiguous levels 1..N, or
  ConfigurationError when no approver can be resolved at all. Stored
  assignment levels may have gaps (an approver was deactivated); entries
  keep the stored order but are renumbered so materialized steps always
  satisfy the contiguity invariant.

SEE ALSO:
  - workflow.go:  template-based strategy for timeslip
  - lifecycle.go: materializes entries into steps
*/
package generic

import (
	"context"
	"sort"
)

// =============================================================================
// STRATEGY INTERFACE
// =============================================================================

// ChainStrategy resolves the approver chain for a requester in an org.
type ChainStrategy interface {
	ResolveChain(ctx context.Context, requester UserID, orgID OrgID) ([]ChainEntry, error)
}

// =============================================================================
// ASSIGNMENT CHAIN - Explicit rows first, manager/admin fallback
// =============================================================================

// PolicyFunc returns the approver routing mode for an org. A nil PolicyFunc
// means manager-first routing always applies.
type PolicyFunc func(ctx context.Context, orgID OrgID) (ApproverMode, error)

// AssignmentChain is the strategy for leave and WFH requests.
type AssignmentChain struct {
	Type        RequestType
	Assignments AssignmentStore
	Directory   Directory

	// AdminRoles is the fixed set of role names that qualify as org
	// admins for fallback resolution.
	AdminRoles []string

	// Policy, when set, can force admin-only resolution for an org even
	// when a manager or explicit assignment exists (WFH flag).
	Policy PolicyFunc
}

func (c *AssignmentChain) ResolveChain(ctx context.Context, requester UserID, orgID OrgID) ([]ChainEntry, error) {
	mode := ApproverManager
	if c.Policy != nil {
		m, err := c.Policy(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if m != "" {
			mode = m
		}
	}

	if mode == ApproverAdmin {
		return c.adminOnly(ctx, requester, orgID)
	}

	// 1. Explicit assignments win.
	rows, err := c.Assignments.ActiveAssignments(ctx, requester, c.Type)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Level < rows[j].Level })
		entries := make([]ChainEntry, len(rows))
		for i, row := range rows {
			entries[i] = ChainEntry{ApproverID: row.ApproverID, Level: i + 1}
		}
		return entries, nil
	}

	// 2. Manager first, org admin next.
	var entries []ChainEntry
	manager, hasManager, err := c.Directory.ResolveManager(ctx, requester)
	if err != nil {
		return nil, err
	}
	if hasManager {
		entries = append(entries, ChainEntry{ApproverID: manager, Level: 1})
	}

	admin, hasAdmin, err := c.Directory.FirstWithRole(ctx, orgID, c.AdminRoles)
	if err != nil {
		return nil, err
	}
	if hasAdmin && (!hasManager || admin != manager) {
		entries = append(entries, ChainEntry{ApproverID: admin, Level: len(entries) + 1})
	}

	if len(entries) == 0 {
		return nil, &ConfigurationError{RequesterID: requester, Type: c.Type}
	}
	return entries, nil
}

func (c *AssignmentChain) adminOnly(ctx context.Context, requester UserID, orgID OrgID) ([]ChainEntry, error) {
	admin, ok, err := c.Directory.FirstWithRole(ctx, orgID, c.AdminRoles)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ConfigurationError{RequesterID: requester, Type: c.Type}
	}
	return []ChainEntry{{ApproverID: admin, Level: 1}}, nil
}
