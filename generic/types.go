/*
Package generic provides the core approval workflow engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for routing
  requests through multi-level approval chains. Whether the request is for
  leave, remote work, or a timesheet correction, the same engine handles
  chain resolution, step sequencing, balance accounting, and batch
  transitions. Domain packages (leave/, wfh/, timeslip/) only supply the
  chain strategy and balance binding for their request type.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request:     A request travelling through an approval chain
  - Step:        One approver's slot in the chain (1-based level)
  - ChainEntry:  Resolved (approver|role, level) pair before materialization
  - Decision:    What an approver does (approve/reject)
  - IDs:         Type-safe identifiers for users, orgs, requests, steps

STATUS VOCABULARIES:
  These are wire-compatible with the upstream HR system and must not change:
    step status    WAITING | PENDING | APPROVED | REJECTED
    request status PENDING | APPROVED | REJECTED | CANCELLED

DESIGN PRINCIPLES:
  1. One state machine: three request types share the same transitions
  2. Audit trail: requests and steps are never physically deleted
  3. Type safety: strong typing for IDs prevents mixing user/org/request IDs
  4. Precision: decimal.Decimal for balances (integral leave, fractional WFH)

SEE ALSO:
  - chain.go:     Chain resolution strategies
  - lifecycle.go: Request creation and cancellation
  - machine.go:   Step/request state transitions
*/
package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type OrgID string
type RequestID string
type StepID string

// =============================================================================
// REQUEST TYPE - Which approval flow a request follows
// =============================================================================

// RequestType identifies the kind of request. The generic package has no
// knowledge of what each type means; domain packages register a Profile
// (chain strategy + balance binding) per type.
type RequestType string

const (
	TypeLeave    RequestType = "LEAVE"
	TypeWFH      RequestType = "WFH"
	TypeTimeslip RequestType = "TIMESLIP"
)

// =============================================================================
// STATUSES - Preserved bit-exact for upstream compatibility
// =============================================================================

type RequestStatus string

const (
	RequestPending   RequestStatus = "PENDING"
	RequestApproved  RequestStatus = "APPROVED"
	RequestRejected  RequestStatus = "REJECTED"
	RequestCancelled RequestStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are possible.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestApproved || s == RequestRejected || s == RequestCancelled
}

type StepStatus string

const (
	StepWaiting  StepStatus = "WAITING"
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
)

// IsLive reports whether the step can still transition (not yet acted on).
func (s StepStatus) IsLive() bool {
	return s == StepWaiting || s == StepPending
}

// =============================================================================
// DECISION - An approver's verdict on a step
// =============================================================================

type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// StepStatus maps a decision to the step status it produces.
func (d Decision) StepStatus() StepStatus {
	if d == DecisionApprove {
		return StepApproved
	}
	return StepRejected
}

// RequestStatus maps a decision to the terminal request status it produces.
func (d Decision) RequestStatus() RequestStatus {
	if d == DecisionApprove {
		return RequestApproved
	}
	return RequestRejected
}

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// =============================================================================
// REQUEST - A request travelling through an approval chain
// =============================================================================

// Request is the parent record of an approval flow. It is created by the
// LifecycleManager, mutated only by the Machine, and never physically
// deleted (audit trail).
type Request struct {
	ID          RequestID
	RequesterID UserID
	OrgID       OrgID
	Type        RequestType

	// ResourceType names the balance consumed on final approval
	// (e.g. a leave-type id, or "wfh"). Empty = no balance binding.
	ResourceType string

	// The date range the request covers, inclusive.
	Period Period

	// Quantity is the number of weekday calendar days in Period,
	// computed at creation time (WFH single-day requests floor at 1).
	Quantity decimal.Decimal

	Status RequestStatus
	Reason string

	// FinalizedAt is set exactly once, at the terminal transition.
	FinalizedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// STEP - One approver slot in the chain
// =============================================================================

// Step is one position in a request's approval chain. Steps are created
// atomically with the request and mutated only by the Machine. Exactly one
// step is PENDING while the request is PENDING (the "current" step).
type Step struct {
	ID        StepID
	RequestID RequestID

	// Level is the 1-based position in the chain. Levels for a request
	// are always the contiguous integers 1..N.
	Level int

	// ApproverID is the specific user expected to act. Empty when the
	// step is role-based, in which case RoleRef names the required role.
	ApproverID UserID
	RoleRef    string

	Status  StepStatus
	Remarks string

	ActedBy UserID
	ActedAt *time.Time
}

// Authorized reports whether actor may act on this step, given the result
// of a role check for the step's RoleRef.
func (s *Step) Authorized(actor UserID, hasRole bool) bool {
	if s.ApproverID != "" {
		return s.ApproverID == actor
	}
	return s.RoleRef != "" && hasRole
}

// =============================================================================
// CHAIN ENTRY - Resolved chain position before steps are materialized
// =============================================================================

// ChainEntry is what a ChainStrategy produces: either a concrete approver
// or a role reference, at a 1-based level.
type ChainEntry struct {
	ApproverID UserID
	RoleRef    string
	Level      int
}

// =============================================================================
// ASSIGNMENT - Pre-configured chain row (leave/WFH)
// =============================================================================

// Assignment is a static, admin-configured chain position for a requester
// and request type. When active assignments exist they define the chain
// verbatim; otherwise the manager/admin fallback applies (see chain.go).
type Assignment struct {
	ID          string
	RequesterID UserID
	ApproverID  UserID
	OrgID       OrgID
	Type        RequestType
	Level       int
	Active      bool
	CreatedAt   time.Time
}

// =============================================================================
// AMOUNT HELPERS
// =============================================================================

// Days builds a day-count decimal. Balances track whole days for leave and
// fractional days for WFH, so everything runs on decimal.Decimal.
func Days(n float64) decimal.Decimal { return decimal.NewFromFloat(n) }

// DaysInt builds a day-count decimal from an integer.
func DaysInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }
