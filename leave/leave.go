/*
Package leave implements the leave request type.

Leave requests consume a per-leave-type balance (the request's resource
type is the leave-type id, e.g. "annual" or "sick") and route through the
pre-configured assignment chain, falling back to the requester's manager
and an org admin when no assignments exist.

The package is deliberately thin: it only binds the generic engine's
pluggable points. All state machine, batching, and ledger behavior lives
in the generic package.
*/
package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/approval-engine/generic"
)

// Common leave-type ids. Orgs may define more; any non-empty id with a
// seeded balance row works.
const (
	TypeAnnual   = "annual"
	TypeSick     = "sick"
	TypeCasual   = "casual"
	TypeMaternal = "maternal"
)

// Deps are the collaborators the leave profile needs.
type Deps struct {
	Assignments generic.AssignmentStore
	Directory   generic.Directory
	AdminRoles  []string
	Calendar    generic.HolidayCalendar
}

// Profile returns the engine profile for LEAVE requests.
func Profile(d Deps) generic.Profile {
	cal := d.Calendar
	if cal == nil {
		cal = generic.NoHolidays{}
	}
	return generic.Profile{
		Type: generic.TypeLeave,
		Chain: &generic.AssignmentChain{
			Type:        generic.TypeLeave,
			Assignments: d.Assignments,
			Directory:   d.Directory,
			AdminRoles:  d.AdminRoles,
		},
		// The leave-type id arrives on the request payload; a request
		// with no leave type fails validation upstream.
		Balance: func(req *generic.Request) (string, bool) {
			return req.ResourceType, true
		},
		// Weekday days only; weekends and holidays never consume leave.
		Quantity: func(p generic.Period, orgID generic.OrgID) decimal.Decimal {
			return generic.DaysInt(p.WorkdayCount(cal, orgID))
		},
	}
}
