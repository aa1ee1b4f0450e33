/*
store.go - Persistence interfaces for requests, steps, chains, and balances

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  RequestStore:   Requests and their steps (a request owns its steps)
  AssignmentStore: Pre-configured approver chains (leave/WFH)
  WorkflowStore:  Workflow definition templates (timeslip)
  BalanceStore:   Per-user, per-resource balance rows
  OrgPolicyStore: Org-level approval policy flags
  AuditStore:     Append-only audit trail
  TxStore:        Transactional scope for atomic transitions

OWNERSHIP:
  A request exclusively owns its steps: steps are created atomically with
  the request and archived only with it, never independently. Stores expose
  steps only through their owning request.

ATOMICITY:
  Every single-step transition executes inside WithTx: read the current
  step, verify its status still matches the expected pre-condition, write
  the new statuses, and perform the balance deduction, all in one unit.
  This prevents two concurrent approvals from double-finalizing.

IMPLEMENTATIONS:
  - store/sqlite:       Production SQLite
  - generic/store:      In-memory for testing/dev

SEE ALSO:
  - machine.go: the transition logic running inside WithTx
*/
package generic

import "context"

// =============================================================================
// REQUESTS AND STEPS
// =============================================================================

type RequestStore interface {
	// SaveRequest persists a new request.
	SaveRequest(ctx context.Context, req *Request) error

	// GetRequest loads a request by ID. Returns NotFoundError if missing.
	GetRequest(ctx context.Context, id RequestID) (*Request, error)

	// UpdateRequest writes status/finalization changes.
	UpdateRequest(ctx context.Context, req *Request) error

	// SaveSteps persists the full step chain for a request, atomically
	// with the surrounding transaction.
	SaveSteps(ctx context.Context, steps []*Step) error

	// StepsByRequest returns a request's steps ordered by level.
	StepsByRequest(ctx context.Context, id RequestID) ([]*Step, error)

	// GetStep loads a step by ID. Returns NotFoundError if missing.
	GetStep(ctx context.Context, id StepID) (*Step, error)

	// UpdateStep writes a step's status/remarks/actor fields.
	UpdateStep(ctx context.Context, step *Step) error

	// ListByRequester returns a user's requests, newest first.
	ListByRequester(ctx context.Context, requester UserID) ([]*Request, error)

	// ListPendingForApprover returns requests whose current PENDING step
	// names the given approver.
	ListPendingForApprover(ctx context.Context, approver UserID) ([]*Request, error)
}

// =============================================================================
// CHAIN CONFIGURATION
// =============================================================================

type AssignmentStore interface {
	SaveAssignment(ctx context.Context, a Assignment) error

	// ActiveAssignments returns active rows for a requester and request
	// type, ordered by level.
	ActiveAssignments(ctx context.Context, requester UserID, t RequestType) ([]Assignment, error)
}

type WorkflowStore interface {
	SaveDefinition(ctx context.Context, def WorkflowDefinition) error

	// ActiveDefinition returns the active template for an org, or
	// NotFoundError if none is registered.
	ActiveDefinition(ctx context.Context, orgID OrgID) (*WorkflowDefinition, error)

	ListDefinitions(ctx context.Context, orgID OrgID) ([]WorkflowDefinition, error)
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceStore interface {
	// SaveBalance inserts or replaces a balance row.
	SaveBalance(ctx context.Context, b Balance) error

	// GetBalance loads the row for user+resource. NotFoundError if missing.
	GetBalance(ctx context.Context, userID UserID, resourceType string) (*Balance, error)

	ListBalances(ctx context.Context, userID UserID) ([]Balance, error)
}

// =============================================================================
// ORG POLICY
// =============================================================================

// ApproverMode selects who approves WFH requests for an org.
type ApproverMode string

const (
	ApproverManager ApproverMode = "MANAGER"
	ApproverAdmin   ApproverMode = "ADMIN"
)

type OrgPolicyStore interface {
	// WFHApproverMode returns the org's WFH routing flag.
	// Defaults to ApproverManager when unset.
	WFHApproverMode(ctx context.Context, orgID OrgID) (ApproverMode, error)

	SetWFHApproverMode(ctx context.Context, orgID OrgID, mode ApproverMode) error
}

// =============================================================================
// AUDIT LOG - Append-only, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditRequestCreated   AuditAction = "request_created"
	AuditStepApproved     AuditAction = "step_approved"
	AuditStepRejected     AuditAction = "step_rejected"
	AuditRequestCancelled AuditAction = "request_cancelled"
	AuditAdminOverride    AuditAction = "admin_override"
	AuditBatchProcessed   AuditAction = "batch_processed"
	AuditBalanceSeeded    AuditAction = "balance_seeded"
)

type AuditEntry struct {
	ID        string
	At        Date
	ActorID   UserID
	Action    AuditAction
	RequestID RequestID
	Remarks   string
}

type AuditFilter struct {
	ActorID   *UserID
	RequestID *RequestID
	Actions   []AuditAction
}

type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// AGGREGATE + TRANSACTIONAL STORE
// =============================================================================

// Store aggregates all persistence capabilities the engine needs.
type Store interface {
	RequestStore
	AssignmentStore
	WorkflowStore
	BalanceStore
	OrgPolicyStore
	AuditStore
}

// TxStore wraps Store with transaction support. All state transitions run
// through WithTx; if fn returns an error the transaction is rolled back.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
