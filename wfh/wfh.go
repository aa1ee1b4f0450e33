/*
Package wfh implements the work-from-home request type.

WFH requests consume the fixed "wfh" balance and route through the same
assignment chain as leave, with one twist: an org-level policy flag can
force admin-only routing, bypassing both explicit assignments and the
manager fallback. Single-day WFH requests always count as at least one
day, even on a weekend.
*/
package wfh

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/approval-engine/generic"
)

// Resource is the balance consumed by every WFH request.
const Resource = "wfh"

// Deps are the collaborators the WFH profile needs.
type Deps struct {
	Assignments generic.AssignmentStore
	Directory   generic.Directory
	AdminRoles  []string
	Policies    generic.OrgPolicyStore
	Calendar    generic.HolidayCalendar
}

// Profile returns the engine profile for WFH requests.
func Profile(d Deps) generic.Profile {
	cal := d.Calendar
	if cal == nil {
		cal = generic.NoHolidays{}
	}
	return generic.Profile{
		Type: generic.TypeWFH,
		Chain: &generic.AssignmentChain{
			Type:        generic.TypeWFH,
			Assignments: d.Assignments,
			Directory:   d.Directory,
			AdminRoles:  d.AdminRoles,
			Policy: func(ctx context.Context, orgID generic.OrgID) (generic.ApproverMode, error) {
				return d.Policies.WFHApproverMode(ctx, orgID)
			},
		},
		Balance: func(*generic.Request) (string, bool) {
			return Resource, true
		},
		Quantity: func(p generic.Period, orgID generic.OrgID) decimal.Decimal {
			qty := p.WorkdayCount(cal, orgID)
			// A single-day request is always at least one day, even
			// when the day is a weekend.
			if p.SingleDay() && qty < 1 {
				qty = 1
			}
			return generic.DaysInt(qty)
		},
	}
}
