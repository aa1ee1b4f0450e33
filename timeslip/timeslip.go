/*
Package timeslip implements the timesheet-correction request type.

Timeslip requests consume no balance. Their chain comes from the org's
active workflow definition: a reusable template of ordered steps, each
with explicit-approver or role-based assignments, expanded into concrete
steps at request creation (see generic/workflow.go).
*/
package timeslip

import (
	"github.com/shopspring/decimal"

	"github.com/warp/approval-engine/generic"
)

// Deps are the collaborators the timeslip profile needs.
type Deps struct {
	Workflows generic.WorkflowStore
}

// Profile returns the engine profile for TIMESLIP requests.
func Profile(d Deps) generic.Profile {
	return generic.Profile{
		Type:  generic.TypeTimeslip,
		Chain: &generic.WorkflowChain{Workflows: d.Workflows},
		// No balance binding: approving a correction deducts nothing.
		Balance: func(*generic.Request) (string, bool) {
			return "", false
		},
		Quantity: func(p generic.Period, _ generic.OrgID) decimal.Decimal {
			return generic.DaysInt(p.WeekdayCount())
		},
	}
}
