/*
handlers.go - HTTP API handlers for the approval workflow engine

PURPOSE:
  Exposes the approval engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Requests:
    POST   /api/requests                create request (any type)
    GET    /api/requests/{id}           request + steps
    GET    /api/requests/pending        pending queue for ?approver=
    POST   /api/requests/{id}/act       approve/reject current step
    POST   /api/requests/{id}/override  admin override
    POST   /api/requests/{id}/cancel    requester cancellation
    POST   /api/requests/batch          bulk transitions

  Users:
    GET    /api/users/{id}/requests     a user's request history
    GET    /api/users/{id}/balances     balance rows

  Admin:
    POST   /api/admin/balances          seed/adjust balance
    POST   /api/admin/assignments       create chain assignment
    POST   /api/admin/workflows         register workflow template (JSON)
    GET    /api/admin/workflows         list templates for ?organization_id=

  Audit:
    GET    /api/audit                   audit log, ?actor= ?request=

ERROR HANDLING:
  Domain errors map to HTTP status via sentinels:
  - 400: validation errors
  - 403: not authorized / already acted
  - 404: unknown request/step/balance/workflow
  - 409: no approver chain configured
  - 422: insufficient balance
  - 500: everything else

SECURITY NOTE:
  Actor identity arrives in request bodies; there is no authentication
  middleware. Deploy behind a gateway that injects verified identities.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/approval-engine/factory"
	"github.com/warp/approval-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     generic.TxStore
	Lifecycle *generic.LifecycleManager
	Machine   *generic.Machine
	Batch     *generic.BatchCoordinator
	Workflows *factory.WorkflowFactory
	Logger    *zap.Logger
}

// NewHandler creates a handler wired to the engine components.
func NewHandler(store generic.TxStore, lifecycle *generic.LifecycleManager, machine *generic.Machine, batch *generic.BatchCoordinator, logger *zap.Logger) *Handler {
	return &Handler{
		Store:     store,
		Lifecycle: lifecycle,
		Machine:   machine,
		Batch:     batch,
		Workflows: factory.NewWorkflowFactory(),
		Logger:    logger,
	}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// CreateRequest submits a new approval request.
// POST /api/requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := generic.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date, want YYYY-MM-DD", err)
		return
	}
	end, err := generic.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date, want YYYY-MM-DD", err)
		return
	}

	result, err := h.Lifecycle.Create(r.Context(), generic.CreateInput{
		RequesterID:  generic.UserID(body.RequesterID),
		OrgID:        generic.OrgID(body.OrganizationID),
		Type:         generic.RequestType(body.Type),
		ResourceType: body.ResourceType,
		Period:       generic.NewPeriod(start, end),
		Reason:       body.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RequestDetailDTO{
		Request: toRequestDTO(result.Request),
		Steps:   toStepDTOs(result.Steps),
	})
}

// GetRequest returns a request with its full step chain.
// GET /api/requests/{id}
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))

	req, err := h.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	steps, err := h.Store.StepsByRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RequestDetailDTO{
		Request: toRequestDTO(req),
		Steps:   toStepDTOs(steps),
	})
}

// ListPending returns the pending queue for an approver.
// GET /api/requests/pending?approver=
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	approver := r.URL.Query().Get("approver")
	if approver == "" {
		writeError(w, http.StatusBadRequest, "approver query parameter required", nil)
		return
	}

	requests, err := h.Store.ListPendingForApprover(r.Context(), generic.UserID(approver))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListUserRequests returns a user's request history, newest first.
// GET /api/users/{id}/requests
func (h *Handler) ListUserRequests(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))

	requests, err := h.Store.ListByRequester(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSITION HANDLERS
// =============================================================================

// Act applies the actor's decision to the request's current pending step.
// POST /api/requests/{id}/act
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))

	var body ActRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Machine.Act(r.Context(), generic.UserID(body.ActorID), id,
		generic.Decision(body.Decision), body.Remarks)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.writeRequestDetail(w, r, req)
}

// Override collapses the whole chain under an admin decision.
// POST /api/requests/{id}/override
func (h *Handler) Override(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))

	var body OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Machine.Override(r.Context(), generic.UserID(body.AdminID), id,
		generic.Decision(body.Decision), body.Remarks)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.writeRequestDetail(w, r, req)
}

// Cancel is the requester's own terminal transition.
// POST /api/requests/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := generic.RequestID(chi.URLParam(r, "id"))

	var body CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req, err := h.Lifecycle.Cancel(r.Context(), generic.UserID(body.RequesterID), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.writeRequestDetail(w, r, req)
}

// ProcessBatch applies bulk transitions with per-item error isolation.
// POST /api/requests/batch
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty", nil)
		return
	}

	items := make([]generic.BatchItem, len(body.Items))
	for i, it := range body.Items {
		items[i] = generic.BatchItem{
			StepID:   generic.StepID(it.StepID),
			Decision: generic.Decision(it.Decision),
			Remarks:  it.Remarks,
		}
	}

	result, err := h.Batch.Process(r.Context(), generic.BatchInput{
		ActorID:     generic.UserID(body.ActorID),
		Items:       items,
		AdminBypass: body.AdminBypass,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := BatchResponse{
		UpdatedCount:        result.UpdatedCount,
		CompletedRequestIDs: make([]string, len(result.CompletedRequestIDs)),
		Message:             result.Message,
		Errors:              result.Errors,
	}
	for i, id := range result.CompletedRequestIDs {
		resp.CompletedRequestIDs[i] = string(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeRequestDetail re-reads the step chain so transition responses show
// the post-transition state.
func (h *Handler) writeRequestDetail(w http.ResponseWriter, r *http.Request, req *generic.Request) {
	steps, err := h.Store.StepsByRequest(r.Context(), req.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RequestDetailDTO{
		Request: toRequestDTO(req),
		Steps:   toStepDTOs(steps),
	})
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// ListBalances returns a user's balance rows.
// GET /api/users/{id}/balances
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	userID := generic.UserID(chi.URLParam(r, "id"))

	balances, err := h.Store.ListBalances(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SeedBalance installs or replaces a balance row. Closing is recomputed
// from the identity server-side.
// POST /api/admin/balances
func (h *Handler) SeedBalance(w http.ResponseWriter, r *http.Request) {
	var body SeedBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.UserID == "" || body.ResourceType == "" {
		writeError(w, http.StatusBadRequest, "user_id and resource_type required", nil)
		return
	}

	b := generic.Balance{
		UserID:       generic.UserID(body.UserID),
		ResourceType: body.ResourceType,
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&b.Opening, body.Opening}, {&b.Accrued, body.Accrued},
		{&b.Consumed, body.Consumed}, {&b.CarriedForward, body.CarriedForward},
		{&b.Encashed, body.Encashed},
	} {
		if f.src == "" {
			*f.dst = decimal.Zero
			continue
		}
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid decimal amount", err)
			return
		}
		*f.dst = v
	}

	var seeded generic.Balance
	err := h.Store.WithTx(r.Context(), func(s generic.Store) error {
		var err error
		seeded, err = generic.NewLedger(s).Seed(r.Context(), b)
		if err != nil {
			return err
		}
		return s.AppendAudit(r.Context(), generic.AuditEntry{
			ID:      uuid.NewString(),
			At:      generic.Today(),
			ActorID: b.UserID,
			Action:  generic.AuditBalanceSeeded,
			Remarks: b.ResourceType,
		})
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(seeded))
}

// =============================================================================
// ADMIN CONFIGURATION HANDLERS
// =============================================================================

// CreateAssignment pre-configures one approver chain position.
// POST /api/admin/assignments
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var body CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.RequesterID == "" || body.ApproverID == "" || body.Level < 1 {
		writeError(w, http.StatusBadRequest, "requester_id, approver_id and level >= 1 required", nil)
		return
	}
	switch generic.RequestType(body.Type) {
	case generic.TypeLeave, generic.TypeWFH:
	default:
		writeError(w, http.StatusBadRequest, "type must be LEAVE or WFH", nil)
		return
	}

	a := generic.Assignment{
		ID:          uuid.NewString(),
		RequesterID: generic.UserID(body.RequesterID),
		ApproverID:  generic.UserID(body.ApproverID),
		OrgID:       generic.OrgID(body.OrganizationID),
		Type:        generic.RequestType(body.Type),
		Level:       body.Level,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if body.Active != nil {
		a.Active = *body.Active
	}

	if err := h.Store.SaveAssignment(r.Context(), a); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AssignmentDTO{
		ID:             a.ID,
		RequesterID:    string(a.RequesterID),
		ApproverID:     string(a.ApproverID),
		OrganizationID: string(a.OrgID),
		Type:           string(a.Type),
		Level:          a.Level,
		Active:         a.Active,
	})
}

// RegisterWorkflow stores a workflow definition from its JSON template.
// POST /api/admin/workflows
func (h *Handler) RegisterWorkflow(w http.ResponseWriter, r *http.Request) {
	var body factory.DefinitionJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	def, err := h.Workflows.FromJSON(body)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Store.SaveDefinition(r.Context(), *def); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, def)
}

// ListWorkflows lists an org's workflow definitions.
// GET /api/admin/workflows?organization_id=
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		writeError(w, http.StatusBadRequest, "organization_id query parameter required", nil)
		return
	}

	defs, err := h.Store.ListDefinitions(r.Context(), generic.OrgID(orgID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// QueryAudit returns audit log entries, optionally filtered.
// GET /api/audit?actor=&request=
func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	var filter generic.AuditFilter
	if actor := r.URL.Query().Get("actor"); actor != "" {
		id := generic.UserID(actor)
		filter.ActorID = &id
	}
	if req := r.URL.Query().Get("request"); req != "" {
		id := generic.RequestID(req)
		filter.RequestID = &id
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:        e.ID,
			At:        e.At.String(),
			ActorID:   string(e.ActorID),
			Action:    string(e.Action),
			RequestID: string(e.RequestID),
			Remarks:   e.Remarks,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generic.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, generic.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not authorized or already acted", err)
	case errors.Is(err, generic.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, generic.ErrConfiguration):
		writeError(w, http.StatusConflict, "No approver chain configured", err)
	case errors.Is(err, generic.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, "Insufficient balance", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
