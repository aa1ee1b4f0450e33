package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/approval-engine/api"
	"github.com/warp/approval-engine/generic"
	"github.com/warp/approval-engine/generic/store"
	"github.com/warp/approval-engine/leave"
	"github.com/warp/approval-engine/timeslip"
	"github.com/warp/approval-engine/wfh"
)

const (
	org   = "org-1"
	emp   = "u-emp"
	mgr   = "u-mgr"
	admin = "u-admin"
)

var adminRoles = []string{"hr_admin"}

type testServer struct {
	store  *store.TxMemory
	server *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := store.NewTxMemory()
	d := generic.NewStaticDirectory(adminRoles,
		generic.Member{ID: emp, OrgID: org, ManagerID: mgr},
		generic.Member{ID: mgr, OrgID: org},
		generic.Member{ID: admin, OrgID: org, Roles: []string{"hr_admin"}},
	)

	registry := generic.NewRegistry(
		leave.Profile(leave.Deps{Assignments: m, Directory: d, AdminRoles: adminRoles}),
		wfh.Profile(wfh.Deps{Assignments: m, Directory: d, AdminRoles: adminRoles, Policies: m}),
		timeslip.Profile(timeslip.Deps{Workflows: m}),
	)

	logger := zap.NewNop()
	lifecycle := &generic.LifecycleManager{Store: m, Registry: registry, Logger: logger}
	machine := &generic.Machine{Store: m, Registry: registry, Directory: d, Logger: logger}
	batch := &generic.BatchCoordinator{Machine: machine, Logger: logger}

	handler := api.NewHandler(m, lifecycle, machine, batch, logger)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)

	return &testServer{store: m, server: srv}
}

func (ts *testServer) seed(t *testing.T, user, resource string, opening int) {
	t.Helper()
	_, err := generic.NewLedger(ts.store).Seed(context.Background(), generic.Balance{
		UserID:       generic.UserID(user),
		ResourceType: resource,
		Opening:      generic.DaysInt(opening),
	})
	require.NoError(t, err)
}

func (ts *testServer) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (ts *testServer) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.server.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (ts *testServer) createLeave(t *testing.T) api.RequestDetailDTO {
	t.Helper()
	resp := ts.post(t, "/api/requests", api.CreateRequestRequest{
		RequesterID:    emp,
		OrganizationID: org,
		Type:           "LEAVE",
		ResourceType:   "annual",
		StartDate:      "2026-03-02",
		EndDate:        "2026-03-06",
		Reason:         "family trip",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[api.RequestDetailDTO](t, resp)
}

// =============================================================================
// REQUEST LIFECYCLE OVER HTTP
// =============================================================================

func TestCreateAndFetchRequest(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 20)

	created := ts.createLeave(t)
	assert.Equal(t, "PENDING", created.Request.Status)
	assert.Equal(t, "5", created.Request.Quantity)
	require.Len(t, created.Steps, 2, "manager + admin fallback chain")
	assert.Equal(t, "PENDING", created.Steps[0].Status)
	assert.Equal(t, "WAITING", created.Steps[1].Status)

	resp := ts.get(t, "/api/requests/"+created.Request.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[api.RequestDetailDTO](t, resp)
	assert.Equal(t, created.Request.ID, fetched.Request.ID)
}

func TestFullApprovalFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 20)
	created := ts.createLeave(t)

	// Manager approves level 1.
	resp := ts.post(t, "/api/requests/"+created.Request.ID+"/act", api.ActRequest{
		ActorID: mgr, Decision: "APPROVE", Remarks: "ok",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[api.RequestDetailDTO](t, resp)
	assert.Equal(t, "PENDING", detail.Request.Status)
	assert.Equal(t, "PENDING", detail.Steps[1].Status)

	// Admin approves level 2; the request finalizes.
	resp = ts.post(t, "/api/requests/"+created.Request.ID+"/act", api.ActRequest{
		ActorID: admin, Decision: "APPROVE",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail = decode[api.RequestDetailDTO](t, resp)
	assert.Equal(t, "APPROVED", detail.Request.Status)
	require.NotNil(t, detail.Request.FinalizedAt)

	// Balance dropped by 5, visible over the API.
	resp = ts.get(t, "/api/users/"+emp+"/balances")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	balances := decode[[]api.BalanceDTO](t, resp)
	require.Len(t, balances, 1)
	assert.Equal(t, "15", balances[0].Closing)
}

func TestPendingQueueOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 20)
	created := ts.createLeave(t)

	resp := ts.get(t, "/api/requests/pending?approver="+mgr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queue := decode[[]api.RequestDTO](t, resp)
	require.Len(t, queue, 1)
	assert.Equal(t, created.Request.ID, queue[0].ID)

	// The level-2 approver has nothing pending yet.
	resp = ts.get(t, "/api/requests/pending?approver=" + admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	queue = decode[[]api.RequestDTO](t, resp)
	assert.Empty(t, queue)
}

func TestCancelOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 20)
	created := ts.createLeave(t)

	resp := ts.post(t, "/api/requests/"+created.Request.ID+"/cancel", api.CancelRequest{RequesterID: emp})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[api.RequestDetailDTO](t, resp)
	assert.Equal(t, "CANCELLED", detail.Request.Status)
}

func TestOverrideOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 20)
	created := ts.createLeave(t)

	// A non-admin is refused.
	resp := ts.post(t, "/api/requests/"+created.Request.ID+"/override", api.OverrideRequest{
		AdminID: mgr, Decision: "APPROVE",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// The org admin collapses the chain.
	resp = ts.post(t, "/api/requests/"+created.Request.ID+"/override", api.OverrideRequest{
		AdminID: admin, Decision: "APPROVE", Remarks: "expedited",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := decode[api.RequestDetailDTO](t, resp)
	assert.Equal(t, "APPROVED", detail.Request.Status)
	for _, s := range detail.Steps {
		assert.Equal(t, "APPROVED", s.Status)
	}
}

func TestBatchOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 100)

	var items []api.BatchItemRequest
	for i := 0; i < 3; i++ {
		created := ts.createLeave(t)
		items = append(items, api.BatchItemRequest{
			StepID: created.Steps[0].ID, Decision: "APPROVE", Remarks: "bulk",
		})
	}
	items = append(items, api.BatchItemRequest{StepID: "missing", Decision: "APPROVE"})

	resp := ts.post(t, "/api/requests/batch", api.BatchRequest{ActorID: mgr, Items: items})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[api.BatchResponse](t, resp)

	assert.Equal(t, 3, result.UpdatedCount)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, fmt.Sprintf("%d of %d steps updated", 3, 4), result.Message)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestErrorStatusMapping(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 2)

	// Insufficient balance -> 422
	resp := ts.post(t, "/api/requests", api.CreateRequestRequest{
		RequesterID: emp, OrganizationID: org, Type: "LEAVE", ResourceType: "annual",
		StartDate: "2026-03-02", EndDate: "2026-03-06",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Bad date range -> 400
	resp = ts.post(t, "/api/requests", api.CreateRequestRequest{
		RequesterID: emp, OrganizationID: org, Type: "LEAVE", ResourceType: "annual",
		StartDate: "2026-03-06", EndDate: "2026-03-02",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown request -> 404
	resp = ts.get(t, "/api/requests/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Timeslip without a template -> 409
	resp = ts.post(t, "/api/requests", api.CreateRequestRequest{
		RequesterID: emp, OrganizationID: org, Type: "TIMESLIP",
		StartDate: "2026-03-02", EndDate: "2026-03-02",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// ADMIN CONFIGURATION
// =============================================================================

func TestSeedBalanceEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.post(t, "/api/admin/balances", api.SeedBalanceRequest{
		UserID: emp, ResourceType: "annual", Opening: "12", Accrued: "3",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, "15", b.Closing, "closing recomputed server-side")
}

func TestAssignmentAndWorkflowEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 20)

	// Configure an explicit chain over the API.
	resp := ts.post(t, "/api/admin/assignments", api.CreateAssignmentRequest{
		RequesterID: emp, ApproverID: "u-custom", OrganizationID: org,
		Type: "LEAVE", Level: 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	created := ts.createLeave(t)
	require.Len(t, created.Steps, 1)
	assert.Equal(t, "u-custom", created.Steps[0].ApproverID)

	// Register a workflow template and list it back.
	resp = ts.post(t, "/api/admin/workflows", map[string]any{
		"organization_id": org,
		"name":            "corrections",
		"steps": []map[string]any{
			{"name": "lead", "assignments": []map[string]any{{"approver_id": "u-lead"}}},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = ts.get(t, "/api/admin/workflows?organization_id=" + org)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defs := decode[[]generic.WorkflowDefinition](t, resp)
	require.Len(t, defs, 1)
	assert.Equal(t, "corrections", defs[0].Name)

	// Rejected template -> 400
	resp = ts.post(t, "/api/admin/workflows", map[string]any{
		"organization_id": org,
		"name":            "broken",
		"steps":           []map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAuditEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, emp, "annual", 20)
	created := ts.createLeave(t)

	resp := ts.post(t, "/api/requests/"+created.Request.ID+"/act", api.ActRequest{
		ActorID: mgr, Decision: "REJECT", Remarks: "no coverage",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = ts.get(t, "/api/audit?request=" + created.Request.ID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]api.AuditEntryDTO](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, "request_created", entries[0].Action)
	assert.Equal(t, "step_rejected", entries[1].Action)
}
