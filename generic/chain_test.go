package generic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/approval-engine/generic"
	"github.com/warp/approval-engine/generic/store"
)

func newAssignmentChain(m *store.Memory, d generic.Directory, policy generic.PolicyFunc) *generic.AssignmentChain {
	return &generic.AssignmentChain{
		Type:        generic.TypeWFH,
		Assignments: m,
		Directory:   d,
		AdminRoles:  testAdminRoles,
		Policy:      policy,
	}
}

func TestAdminOnlyPolicyBypassesAssignments(t *testing.T) {
	// GIVEN explicit assignments AND an admin-only org policy
	m := store.NewMemory()
	ctx := context.Background()
	m.SaveAssignment(ctx, generic.Assignment{
		ID: "a-1", RequesterID: testEmp, ApproverID: testMgr,
		OrgID: testOrg, Type: generic.TypeWFH, Level: 1, Active: true,
		CreatedAt: time.Now().UTC(),
	})
	d := generic.NewStaticDirectory(testAdminRoles,
		generic.Member{ID: testEmp, OrgID: testOrg, ManagerID: testMgr},
		generic.Member{ID: testMgr, OrgID: testOrg},
		generic.Member{ID: testAdmin, OrgID: testOrg, Roles: []string{"hr_admin"}},
	)
	m.SetWFHApproverMode(ctx, testOrg, generic.ApproverAdmin)

	chain := newAssignmentChain(m, d, m.WFHApproverMode)

	// WHEN the chain resolves
	entries, err := chain.ResolveChain(ctx, testEmp, testOrg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// THEN the chain is the single org admin, not the assignment
	if len(entries) != 1 {
		t.Fatalf("admin-only policy should produce 1 entry, got %d", len(entries))
	}
	if entries[0].ApproverID != testAdmin {
		t.Errorf("expected the org admin, got %s", entries[0].ApproverID)
	}
}

func TestManagerModeUsesAssignmentsFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	m.SaveAssignment(ctx, generic.Assignment{
		ID: "a-1", RequesterID: testEmp, ApproverID: "u-custom",
		OrgID: testOrg, Type: generic.TypeWFH, Level: 1, Active: true,
		CreatedAt: time.Now().UTC(),
	})
	d := generic.NewStaticDirectory(testAdminRoles,
		generic.Member{ID: testEmp, OrgID: testOrg, ManagerID: testMgr},
		generic.Member{ID: testMgr, OrgID: testOrg},
	)

	chain := newAssignmentChain(m, d, m.WFHApproverMode) // default MANAGER mode

	entries, err := chain.ResolveChain(ctx, testEmp, testOrg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(entries) != 1 || entries[0].ApproverID != "u-custom" {
		t.Fatalf("explicit assignment should define the chain, got %+v", entries)
	}
}

func TestFallbackSkipsAdminEqualToManager(t *testing.T) {
	// The manager also holds the admin role; the fallback must not add a
	// duplicate level for the same person.
	m := store.NewMemory()
	d := generic.NewStaticDirectory(testAdminRoles,
		generic.Member{ID: testEmp, OrgID: testOrg, ManagerID: testMgr},
		generic.Member{ID: testMgr, OrgID: testOrg, Roles: []string{"hr_admin"}},
	)

	chain := newAssignmentChain(m, d, nil)

	entries, err := chain.ResolveChain(context.Background(), testEmp, testOrg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(entries) != 1 || entries[0].ApproverID != testMgr {
		t.Fatalf("expected single manager entry, got %+v", entries)
	}
}

func TestAdminOnlyPolicyWithoutAdmin(t *testing.T) {
	m := store.NewMemory()
	m.SetWFHApproverMode(context.Background(), testOrg, generic.ApproverAdmin)
	d := generic.NewStaticDirectory(testAdminRoles,
		generic.Member{ID: testEmp, OrgID: testOrg, ManagerID: testMgr},
		generic.Member{ID: testMgr, OrgID: testOrg},
	)

	chain := newAssignmentChain(m, d, m.WFHApproverMode)

	_, err := chain.ResolveChain(context.Background(), testEmp, testOrg)
	if !errors.Is(err, generic.ErrConfiguration) {
		t.Fatalf("no admin under admin-only policy should be a configuration error, got %v", err)
	}
}
