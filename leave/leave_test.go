package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/approval-engine/generic"
	"github.com/warp/approval-engine/generic/store"
	"github.com/warp/approval-engine/leave"
)

const (
	org = generic.OrgID("org-1")
	emp = generic.UserID("u-emp")
	mgr = generic.UserID("u-mgr")
)

var adminRoles = []string{"hr_admin"}

func newLeaveEngine(t *testing.T) (*store.TxMemory, *generic.LifecycleManager, *generic.Machine) {
	t.Helper()
	m := store.NewTxMemory()
	d := generic.NewStaticDirectory(adminRoles,
		generic.Member{ID: emp, OrgID: org, ManagerID: mgr},
		generic.Member{ID: mgr, OrgID: org},
		generic.Member{ID: "u-admin", OrgID: org, Roles: []string{"hr_admin"}},
	)

	registry := generic.NewRegistry(leave.Profile(leave.Deps{
		Assignments: m,
		Directory:   d,
		AdminRoles:  adminRoles,
	}))

	logger := zap.NewNop()
	lifecycle := &generic.LifecycleManager{Store: m, Registry: registry, Logger: logger}
	machine := &generic.Machine{Store: m, Registry: registry, Directory: d, Logger: logger}
	return m, lifecycle, machine
}

func seed(t *testing.T, m *store.TxMemory, resource string, opening int) {
	t.Helper()
	_, err := generic.NewLedger(m).Seed(context.Background(), generic.Balance{
		UserID:       emp,
		ResourceType: resource,
		Opening:      generic.DaysInt(opening),
	})
	require.NoError(t, err)
}

func TestLeaveQuantityCountsWeekdaysOnly(t *testing.T) {
	m, lifecycle, _ := newLeaveEngine(t)
	seed(t, m, leave.TypeAnnual, 20)

	// Friday through Monday: the weekend contributes nothing.
	result, err := lifecycle.Create(context.Background(), generic.CreateInput{
		RequesterID:  emp,
		OrgID:        org,
		Type:         generic.TypeLeave,
		ResourceType: leave.TypeAnnual,
		Period: generic.NewPeriod(
			generic.NewDate(2026, time.March, 6),
			generic.NewDate(2026, time.March, 9),
		),
	})
	require.NoError(t, err)
	assert.True(t, result.Request.Quantity.Equal(generic.DaysInt(2)),
		"Fri-Mon should count 2 days, got %s", result.Request.Quantity)
}

func TestLeaveConsumesRequestedLeaveType(t *testing.T) {
	m, lifecycle, machine := newLeaveEngine(t)
	seed(t, m, leave.TypeSick, 10)
	seed(t, m, leave.TypeAnnual, 10)
	ctx := context.Background()

	result, err := lifecycle.Create(ctx, generic.CreateInput{
		RequesterID:  emp,
		OrgID:        org,
		Type:         generic.TypeLeave,
		ResourceType: leave.TypeSick,
		Period: generic.NewPeriod(
			generic.NewDate(2026, time.March, 2),
			generic.NewDate(2026, time.March, 3),
		),
	})
	require.NoError(t, err)

	// Manager then admin approve.
	_, err = machine.Act(ctx, mgr, result.Request.ID, generic.DecisionApprove, "")
	require.NoError(t, err)
	_, err = machine.Act(ctx, "u-admin", result.Request.ID, generic.DecisionApprove, "")
	require.NoError(t, err)

	sick, err := m.GetBalance(ctx, emp, leave.TypeSick)
	require.NoError(t, err)
	assert.True(t, sick.Closing.Equal(generic.DaysInt(8)), "sick closing %s", sick.Closing)

	annual, err := m.GetBalance(ctx, emp, leave.TypeAnnual)
	require.NoError(t, err)
	assert.True(t, annual.Closing.Equal(generic.DaysInt(10)), "annual must be untouched, got %s", annual.Closing)
}

func TestLeaveRequiresResourceType(t *testing.T) {
	m, lifecycle, _ := newLeaveEngine(t)
	seed(t, m, leave.TypeAnnual, 20)

	_, err := lifecycle.Create(context.Background(), generic.CreateInput{
		RequesterID: emp,
		OrgID:       org,
		Type:        generic.TypeLeave,
		Period: generic.NewPeriod(
			generic.NewDate(2026, time.March, 2),
			generic.NewDate(2026, time.March, 3),
		),
	})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestLeaveHolidayCalendarReducesQuantity(t *testing.T) {
	m := store.NewTxMemory()
	d := generic.NewStaticDirectory(adminRoles,
		generic.Member{ID: emp, OrgID: org, ManagerID: mgr},
		generic.Member{ID: mgr, OrgID: org},
	)
	registry := generic.NewRegistry(leave.Profile(leave.Deps{
		Assignments: m,
		Directory:   d,
		AdminRoles:  adminRoles,
		Calendar:    fixedHoliday{generic.NewDate(2026, time.March, 4)},
	}))
	lifecycle := &generic.LifecycleManager{Store: m, Registry: registry, Logger: zap.NewNop()}
	seed(t, m, leave.TypeAnnual, 20)

	result, err := lifecycle.Create(context.Background(), generic.CreateInput{
		RequesterID:  emp,
		OrgID:        org,
		Type:         generic.TypeLeave,
		ResourceType: leave.TypeAnnual,
		Period: generic.NewPeriod(
			generic.NewDate(2026, time.March, 2),
			generic.NewDate(2026, time.March, 6),
		),
	})
	require.NoError(t, err)
	assert.True(t, result.Request.Quantity.Equal(generic.DaysInt(4)),
		"holiday Wednesday should be excluded, got %s", result.Request.Quantity)
}

type fixedHoliday struct {
	day generic.Date
}

func (f fixedHoliday) IsHoliday(_ generic.OrgID, d generic.Date) bool {
	return d.Equal(f.day)
}
