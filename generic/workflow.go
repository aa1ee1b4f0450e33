/*
workflow.go - Workflow definition templates and their chain strategy

PURPOSE:
  Timeslip requests do not use per-requester assignments. Instead each org
  registers a reusable WorkflowDefinition: a named, ordered template of
  steps, each with one or more assignments (a specific approver, or a
  role-based fallback). At request creation the active template expands
  into one concrete chain entry per (workflow step x assignment),
  preserving the template's step order.

EXPANSION RULES:
  - Steps expand in Order.
  - Within a step, non-fallback assignments expand in Priority order.
  - Fallback assignments are used only when the step has no non-fallback
    assignment, again in Priority order.
  - An assignment may name a role instead of a user; the resulting step
    accepts any actor holding that role in the org.

SEE ALSO:
  - chain.go:          the strategy interface and leave/WFH strategy
  - factory/workflow.go: parses JSON templates into WorkflowDefinition
*/
package generic

import (
	"context"
	"sort"
)

// =============================================================================
// WORKFLOW DEFINITION - Org-scoped template of ordered steps
// =============================================================================

type WorkflowDefinition struct {
	ID         string
	OrgID      OrgID
	Department string
	Name       string
	Active     bool
	Steps      []WorkflowStep
}

type WorkflowStep struct {
	ID          string
	Order       int
	Name        string
	Assignments []WorkflowAssignment
}

// WorkflowAssignment binds a workflow step to an approver or a role.
// Exactly one of ApproverID / RoleRef is set.
type WorkflowAssignment struct {
	ApproverID UserID
	RoleRef    string
	Fallback   bool
	Priority   int
}

// Validate checks structural soundness of a definition.
func (d *WorkflowDefinition) Validate() error {
	if d.Name == "" {
		return &ValidationError{Field: "name", Message: "required"}
	}
	if d.OrgID == "" {
		return &ValidationError{Field: "organizationId", Message: "required"}
	}
	if len(d.Steps) == 0 {
		return &ValidationError{Field: "steps", Message: "at least one step required"}
	}
	for _, step := range d.Steps {
		if len(step.Assignments) == 0 {
			return &ValidationError{Field: "steps", Message: "step " + step.Name + " has no assignments"}
		}
		for _, a := range step.Assignments {
			if a.ApproverID == "" && a.RoleRef == "" {
				return &ValidationError{Field: "assignments", Message: "approver or role required"}
			}
		}
	}
	return nil
}

// Expand flattens the template into chain entries with contiguous levels.
func (d *WorkflowDefinition) Expand() []ChainEntry {
	steps := make([]WorkflowStep, len(d.Steps))
	copy(steps, d.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	var entries []ChainEntry
	for _, step := range steps {
		for _, a := range step.pick() {
			entries = append(entries, ChainEntry{
				ApproverID: a.ApproverID,
				RoleRef:    a.RoleRef,
				Level:      len(entries) + 1,
			})
		}
	}
	return entries
}

// pick selects the assignments a step contributes: non-fallback rows when
// any exist, fallback rows otherwise, always in priority order.
func (s WorkflowStep) pick() []WorkflowAssignment {
	primary := make([]WorkflowAssignment, 0, len(s.Assignments))
	fallback := make([]WorkflowAssignment, 0, len(s.Assignments))
	for _, a := range s.Assignments {
		if a.Fallback {
			fallback = append(fallback, a)
		} else {
			primary = append(primary, a)
		}
	}
	chosen := primary
	if len(chosen) == 0 {
		chosen = fallback
	}
	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].Priority < chosen[j].Priority })
	return chosen
}

// =============================================================================
// WORKFLOW CHAIN - Strategy expanding the org's active template
// =============================================================================

// WorkflowChain is the chain strategy for timeslip requests.
type WorkflowChain struct {
	Workflows WorkflowStore
}

func (c *WorkflowChain) ResolveChain(ctx context.Context, requester UserID, orgID OrgID) ([]ChainEntry, error) {
	def, err := c.Workflows.ActiveDefinition(ctx, orgID)
	if err != nil {
		if IsNotFound(err) {
			return nil, &ConfigurationError{RequesterID: requester, Type: TypeTimeslip}
		}
		return nil, err
	}

	entries := def.Expand()
	if len(entries) == 0 {
		return nil, &ConfigurationError{RequesterID: requester, Type: TypeTimeslip}
	}
	return entries, nil
}
