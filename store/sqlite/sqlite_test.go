package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/approval-engine/generic"
	"github.com/warp/approval-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRequest(id string) *generic.Request {
	now := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	return &generic.Request{
		ID:           generic.RequestID(id),
		RequesterID:  "u-emp",
		OrgID:        "org-1",
		Type:         generic.TypeLeave,
		ResourceType: "annual",
		Period: generic.NewPeriod(
			generic.NewDate(2026, time.March, 2),
			generic.NewDate(2026, time.March, 6),
		),
		Quantity:  generic.DaysInt(5),
		Status:    generic.RequestPending,
		Reason:    "family trip",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRequestRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	req := sampleRequest("r-1")
	require.NoError(t, s.SaveRequest(ctx, req))

	got, err := s.GetRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, req.RequesterID, got.RequesterID)
	assert.Equal(t, req.Type, got.Type)
	assert.True(t, got.Quantity.Equal(generic.DaysInt(5)))
	assert.Equal(t, "2026-03-02", got.Period.Start.String())
	assert.Nil(t, got.FinalizedAt)

	// Update the status and finalization.
	now := time.Now().UTC()
	got.Status = generic.RequestApproved
	got.FinalizedAt = &now
	got.UpdatedAt = now
	require.NoError(t, s.UpdateRequest(ctx, got))

	got2, err := s.GetRequest(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, generic.RequestApproved, got2.Status)
	require.NotNil(t, got2.FinalizedAt)
}

func TestGetRequestNotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetRequest(context.Background(), "missing")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestStepsOwnedByRequest(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveRequest(ctx, sampleRequest("r-1")))

	steps := []*generic.Step{
		{ID: "s-2", RequestID: "r-1", Level: 2, ApproverID: "u-l2", Status: generic.StepWaiting},
		{ID: "s-1", RequestID: "r-1", Level: 1, ApproverID: "u-l1", Status: generic.StepPending},
	}
	require.NoError(t, s.SaveSteps(ctx, steps))

	got, err := s.StepsByRequest(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Level, "steps ordered by level")
	assert.Equal(t, generic.UserID("u-l1"), got[0].ApproverID)

	// Update one step.
	now := time.Now().UTC()
	got[0].Status = generic.StepApproved
	got[0].ActedBy = "u-l1"
	got[0].ActedAt = &now
	got[0].Remarks = "ok"
	require.NoError(t, s.UpdateStep(ctx, got[0]))

	one, err := s.GetStep(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, generic.StepApproved, one.Status)
	assert.Equal(t, "ok", one.Remarks)
	require.NotNil(t, one.ActedAt)
}

func TestListPendingForApprover(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRequest(ctx, sampleRequest("r-1")))
	require.NoError(t, s.SaveSteps(ctx, []*generic.Step{
		{ID: "s-1", RequestID: "r-1", Level: 1, ApproverID: "u-l1", Status: generic.StepPending},
	}))

	done := sampleRequest("r-2")
	done.Status = generic.RequestApproved
	require.NoError(t, s.SaveRequest(ctx, done))
	require.NoError(t, s.SaveSteps(ctx, []*generic.Step{
		{ID: "s-2", RequestID: "r-2", Level: 1, ApproverID: "u-l1", Status: generic.StepApproved},
	}))

	pending, err := s.ListPendingForApprover(ctx, "u-l1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, generic.RequestID("r-1"), pending[0].ID)

	none, err := s.ListPendingForApprover(ctx, "u-other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAssignmentsFilteredAndOrdered(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, a := range []generic.Assignment{
		{ID: "a-2", RequesterID: "u-emp", ApproverID: "u-l2", OrgID: "org-1", Type: generic.TypeLeave, Level: 5, Active: true, CreatedAt: now},
		{ID: "a-1", RequesterID: "u-emp", ApproverID: "u-l1", OrgID: "org-1", Type: generic.TypeLeave, Level: 2, Active: true, CreatedAt: now},
		{ID: "a-3", RequesterID: "u-emp", ApproverID: "u-l3", OrgID: "org-1", Type: generic.TypeLeave, Level: 3, Active: false, CreatedAt: now},
		{ID: "a-4", RequesterID: "u-emp", ApproverID: "u-l4", OrgID: "org-1", Type: generic.TypeWFH, Level: 1, Active: true, CreatedAt: now},
	} {
		require.NoError(t, s.SaveAssignment(ctx, a))
	}

	rows, err := s.ActiveAssignments(ctx, "u-emp", generic.TypeLeave)
	require.NoError(t, err)
	require.Len(t, rows, 2, "inactive and other-type rows excluded")
	assert.Equal(t, generic.UserID("u-l1"), rows[0].ApproverID)
	assert.Equal(t, generic.UserID("u-l2"), rows[1].ApproverID)
}

func TestWorkflowDefinitionRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	def := generic.WorkflowDefinition{
		ID:     "wf-1",
		OrgID:  "org-1",
		Name:   "corrections",
		Active: true,
		Steps: []generic.WorkflowStep{
			{ID: "st-1", Order: 1, Name: "lead", Assignments: []generic.WorkflowAssignment{
				{ApproverID: "u-lead", Priority: 1},
				{RoleRef: "hr_admin", Fallback: true, Priority: 2},
			}},
		},
	}
	require.NoError(t, s.SaveDefinition(ctx, def))

	got, err := s.ActiveDefinition(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, def.Name, got.Name)
	require.Len(t, got.Steps, 1)
	require.Len(t, got.Steps[0].Assignments, 2)
	assert.True(t, got.Steps[0].Assignments[1].Fallback)

	// Deactivate via upsert; ActiveDefinition no longer finds it.
	def.Active = false
	require.NoError(t, s.SaveDefinition(ctx, def))
	_, err = s.ActiveDefinition(ctx, "org-1")
	assert.ErrorIs(t, err, generic.ErrNotFound)

	all, err := s.ListDefinitions(ctx, "org-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBalanceRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ledger := generic.NewLedger(s)
	_, err := ledger.Seed(ctx, generic.Balance{
		UserID:       "u-emp",
		ResourceType: "annual",
		Opening:      generic.DaysInt(10),
		Accrued:      generic.DaysInt(2),
	})
	require.NoError(t, err)

	b, err := s.GetBalance(ctx, "u-emp", "annual")
	require.NoError(t, err)
	assert.True(t, b.Closing.Equal(generic.DaysInt(12)))
	assert.True(t, b.Consistent())

	require.NoError(t, ledger.Deduct(ctx, "u-emp", "annual", generic.DaysInt(3)))
	b, err = s.GetBalance(ctx, "u-emp", "annual")
	require.NoError(t, err)
	assert.True(t, b.Closing.Equal(generic.DaysInt(9)))

	list, err := s.ListBalances(ctx, "u-emp")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOrgPolicyDefaultsToManager(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	mode, err := s.WFHApproverMode(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, generic.ApproverManager, mode)

	require.NoError(t, s.SetWFHApproverMode(ctx, "org-1", generic.ApproverAdmin))
	mode, err = s.WFHApproverMode(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, generic.ApproverAdmin, mode)
}

func TestAuditAppendAndQuery(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	entries := []generic.AuditEntry{
		{ID: "e-1", At: generic.NewDate(2026, time.March, 2), ActorID: "u-emp", Action: generic.AuditRequestCreated, RequestID: "r-1"},
		{ID: "e-2", At: generic.NewDate(2026, time.March, 3), ActorID: "u-mgr", Action: generic.AuditStepApproved, RequestID: "r-1"},
		{ID: "e-3", At: generic.NewDate(2026, time.March, 3), ActorID: "u-mgr", Action: generic.AuditStepApproved, RequestID: "r-2"},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendAudit(ctx, e))
	}

	id := generic.RequestID("r-1")
	got, err := s.QueryAudit(ctx, generic.AuditFilter{RequestID: &id})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	actor := generic.UserID("u-mgr")
	got, err = s.QueryAudit(ctx, generic.AuditFilter{
		ActorID: &actor,
		Actions: []generic.AuditAction{generic.AuditStepApproved},
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := s.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.SaveRequest(ctx, sampleRequest("r-tx")); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = s.GetRequest(ctx, "r-tx")
	assert.ErrorIs(t, err, generic.ErrNotFound, "rolled-back write must not be visible")
}

func TestWithTxCommits(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx generic.Store) error {
		if err := tx.SaveRequest(ctx, sampleRequest("r-tx")); err != nil {
			return err
		}
		return tx.SaveSteps(ctx, []*generic.Step{
			{ID: "s-tx", RequestID: "r-tx", Level: 1, ApproverID: "u-l1", Status: generic.StepPending},
		})
	})
	require.NoError(t, err)

	req, err := s.GetRequest(ctx, "r-tx")
	require.NoError(t, err)
	assert.Equal(t, generic.RequestPending, req.Status)

	steps, err := s.StepsByRequest(ctx, "r-tx")
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestDirectoryFromUsersTable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, sqlite.User{ID: "u-emp", OrgID: "org-1", ManagerID: "u-mgr"}))
	require.NoError(t, s.SaveUser(ctx, sqlite.User{ID: "u-mgr", OrgID: "org-1"}))
	require.NoError(t, s.SaveUser(ctx, sqlite.User{ID: "u-admin", OrgID: "org-1", Roles: []string{"hr_admin"}}))

	d := s.Directory([]string{"hr_admin"})

	isAdmin, err := d.IsOrgAdmin(ctx, "u-admin", "org-1")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = d.IsOrgAdmin(ctx, "u-mgr", "org-1")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	mgr, ok, err := d.ResolveManager(ctx, "u-emp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, generic.UserID("u-mgr"), mgr)

	_, ok, err = d.ResolveManager(ctx, "u-mgr")
	require.NoError(t, err)
	assert.False(t, ok)

	hasRole, err := d.HasRole(ctx, "u-admin", "org-1", "hr_admin")
	require.NoError(t, err)
	assert.True(t, hasRole)

	first, ok, err := d.FirstWithRole(ctx, "org-1", []string{"hr_admin"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, generic.UserID("u-admin"), first)
}
