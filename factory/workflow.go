/*
Package factory provides JSON to Go workflow-definition conversion.

PURPOSE:
  Converts JSON workflow templates into generic.WorkflowDefinition
  objects. This enables approval chain configuration without code
  changes - HR can define an org's timeslip approval template in JSON,
  register it through the admin API, and the engine expands it into
  concrete steps at request creation.

JSON SCHEMA:
  {
    "id": "wf-eng",
    "organization_id": "org-1",
    "department": "engineering",
    "name": "Engineering timeslip approvals",
    "active": true,
    "steps": [
      {
        "order": 1,
        "name": "Team lead",
        "assignments": [
          {"approver_id": "u-lead", "priority": 1}
        ]
      },
      {
        "order": 2,
        "name": "HR sign-off",
        "assignments": [
          {"approver_id": "u-hr", "priority": 1},
          {"role": "hr_admin", "fallback": true, "priority": 2}
        ]
      }
    ]
  }

KEY FEATURES:
  - Validates structure (every step needs at least one assignment,
    every assignment an approver or a role)
  - Sets sensible defaults (order from array position, priority from
    array position)

SEE ALSO:
  - generic/workflow.go: WorkflowDefinition type and expansion rules
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/approval-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// DefinitionJSON is the JSON representation of a workflow definition.
type DefinitionJSON struct {
	ID             string     `json:"id,omitempty"`
	OrganizationID string     `json:"organization_id"`
	Department     string     `json:"department,omitempty"`
	Name           string     `json:"name"`
	Active         *bool      `json:"active,omitempty"` // default true
	Steps          []StepJSON `json:"steps"`
}

// StepJSON represents one ordered template step.
type StepJSON struct {
	ID          string           `json:"id,omitempty"`
	Order       int              `json:"order,omitempty"` // default: array position
	Name        string           `json:"name"`
	Assignments []AssignmentJSON `json:"assignments"`
}

// AssignmentJSON binds a step to an approver or a role.
type AssignmentJSON struct {
	ApproverID string `json:"approver_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Fallback   bool   `json:"fallback,omitempty"`
	Priority   int    `json:"priority,omitempty"` // default: array position
}

// =============================================================================
// WORKFLOW FACTORY
// =============================================================================

// WorkflowFactory converts JSON templates to definitions.
type WorkflowFactory struct{}

func NewWorkflowFactory() *WorkflowFactory {
	return &WorkflowFactory{}
}

// ParseDefinition parses a JSON string into a validated definition.
func (f *WorkflowFactory) ParseDefinition(jsonStr string) (*generic.WorkflowDefinition, error) {
	var dj DefinitionJSON
	if err := json.Unmarshal([]byte(jsonStr), &dj); err != nil {
		return nil, fmt.Errorf("failed to parse workflow JSON: %w", err)
	}
	return f.FromJSON(dj)
}

// FromJSON builds a definition from the decoded schema, applying defaults.
func (f *WorkflowFactory) FromJSON(dj DefinitionJSON) (*generic.WorkflowDefinition, error) {
	def := &generic.WorkflowDefinition{
		ID:         dj.ID,
		OrgID:      generic.OrgID(dj.OrganizationID),
		Department: dj.Department,
		Name:       dj.Name,
		Active:     true,
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if dj.Active != nil {
		def.Active = *dj.Active
	}

	for i, sj := range dj.Steps {
		step := generic.WorkflowStep{
			ID:    sj.ID,
			Order: sj.Order,
			Name:  sj.Name,
		}
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		if step.Order == 0 {
			step.Order = i + 1
		}
		for j, aj := range sj.Assignments {
			priority := aj.Priority
			if priority == 0 {
				priority = j + 1
			}
			step.Assignments = append(step.Assignments, generic.WorkflowAssignment{
				ApproverID: generic.UserID(aj.ApproverID),
				RoleRef:    aj.Role,
				Fallback:   aj.Fallback,
				Priority:   priority,
			})
		}
		def.Steps = append(def.Steps, step)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
