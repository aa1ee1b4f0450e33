/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE COMPATIBILITY:
  BatchResponse keeps the upstream shape verbatim:
  {updatedCount, completedRequestIds, message, errors?}.

VALIDATION:
  Validation is done in handlers and domain logic, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/workflow.go: DefinitionJSON used for workflow registration
*/
package api

import (
	"time"

	"github.com/warp/approval-engine/generic"
)

// =============================================================================
// REQUEST / STEP TYPES
// =============================================================================

// CreateRequestRequest is the body for submitting a new approval request.
type CreateRequestRequest struct {
	RequesterID    string `json:"requester_id"`
	OrganizationID string `json:"organization_id"`
	Type           string `json:"type"`          // LEAVE | WFH | TIMESLIP
	ResourceType   string `json:"resource_type"` // leave-type id for LEAVE
	StartDate      string `json:"start_date"`    // YYYY-MM-DD
	EndDate        string `json:"end_date"`
	Reason         string `json:"reason"`
}

// RequestDTO represents a request in API responses.
type RequestDTO struct {
	ID             string  `json:"id"`
	RequesterID    string  `json:"requester_id"`
	OrganizationID string  `json:"organization_id"`
	Type           string  `json:"type"`
	ResourceType   string  `json:"resource_type,omitempty"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	Quantity       string  `json:"quantity"`
	Status         string  `json:"status"`
	Reason         string  `json:"reason,omitempty"`
	FinalizedAt    *string `json:"finalized_at,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// StepDTO represents one chain level in API responses.
type StepDTO struct {
	ID         string  `json:"id"`
	RequestID  string  `json:"request_id"`
	Level      int     `json:"level"`
	ApproverID string  `json:"approver_id,omitempty"`
	Role       string  `json:"role,omitempty"`
	Status     string  `json:"status"`
	Remarks    string  `json:"remarks,omitempty"`
	ActedBy    string  `json:"acted_by,omitempty"`
	ActedAt    *string `json:"acted_at,omitempty"`
}

// RequestDetailDTO is a request together with its full step chain.
type RequestDetailDTO struct {
	Request RequestDTO `json:"request"`
	Steps   []StepDTO  `json:"steps"`
}

// =============================================================================
// TRANSITION TYPES
// =============================================================================

// ActRequest is the body for approving/rejecting the current step.
type ActRequest struct {
	ActorID  string `json:"actor_id"`
	Decision string `json:"decision"` // APPROVE | REJECT
	Remarks  string `json:"remarks"`
}

// OverrideRequest is the body for an admin override.
type OverrideRequest struct {
	AdminID  string `json:"admin_id"`
	Decision string `json:"decision"`
	Remarks  string `json:"remarks"`
}

// CancelRequest is the body for requester cancellation.
type CancelRequest struct {
	RequesterID string `json:"requester_id"`
}

// BatchItemRequest targets one step in a batch call.
type BatchItemRequest struct {
	StepID   string `json:"step_id"`
	Decision string `json:"decision"`
	Remarks  string `json:"remarks"`
}

// BatchRequest is the body for bulk transitions.
type BatchRequest struct {
	ActorID     string             `json:"actor_id"`
	AdminBypass bool               `json:"admin_bypass"`
	Items       []BatchItemRequest `json:"items"`
}

// BatchResponse keeps the upstream wire shape.
type BatchResponse struct {
	UpdatedCount        int      `json:"updatedCount"`
	CompletedRequestIDs []string `json:"completedRequestIds"`
	Message             string   `json:"message"`
	Errors              []string `json:"errors,omitempty"`
}

// =============================================================================
// BALANCE TYPES
// =============================================================================

// BalanceDTO represents one balance row.
type BalanceDTO struct {
	UserID         string `json:"user_id"`
	ResourceType   string `json:"resource_type"`
	Opening        string `json:"opening"`
	Accrued        string `json:"accrued"`
	Consumed       string `json:"consumed"`
	CarriedForward string `json:"carried_forward"`
	Encashed       string `json:"encashed"`
	Closing        string `json:"closing"`
	UpdatedAt      string `json:"updated_at"`
}

// SeedBalanceRequest installs or replaces a balance row. Closing is always
// recomputed server-side from the identity.
type SeedBalanceRequest struct {
	UserID         string `json:"user_id"`
	ResourceType   string `json:"resource_type"`
	Opening        string `json:"opening"`
	Accrued        string `json:"accrued"`
	Consumed       string `json:"consumed"`
	CarriedForward string `json:"carried_forward"`
	Encashed       string `json:"encashed"`
}

// =============================================================================
// ADMIN CONFIGURATION TYPES
// =============================================================================

// CreateAssignmentRequest pre-configures one approver chain position.
type CreateAssignmentRequest struct {
	RequesterID    string `json:"requester_id"`
	ApproverID     string `json:"approver_id"`
	OrganizationID string `json:"organization_id"`
	Type           string `json:"type"`
	Level          int    `json:"level"`
	Active         *bool  `json:"active,omitempty"` // default true
}

// AssignmentDTO represents an assignment row.
type AssignmentDTO struct {
	ID             string `json:"id"`
	RequesterID    string `json:"requester_id"`
	ApproverID     string `json:"approver_id"`
	OrganizationID string `json:"organization_id"`
	Type           string `json:"type"`
	Level          int    `json:"level"`
	Active         bool   `json:"active"`
}

// AuditEntryDTO represents one audit log row.
type AuditEntryDTO struct {
	ID        string `json:"id"`
	At        string `json:"at"`
	ActorID   string `json:"actor_id"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
	Remarks   string `json:"remarks,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRequestDTO(req *generic.Request) RequestDTO {
	dto := RequestDTO{
		ID:             string(req.ID),
		RequesterID:    string(req.RequesterID),
		OrganizationID: string(req.OrgID),
		Type:           string(req.Type),
		ResourceType:   req.ResourceType,
		StartDate:      req.Period.Start.String(),
		EndDate:        req.Period.End.String(),
		Quantity:       req.Quantity.String(),
		Status:         string(req.Status),
		Reason:         req.Reason,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      req.UpdatedAt.Format(time.RFC3339),
	}
	if req.FinalizedAt != nil {
		s := req.FinalizedAt.Format(time.RFC3339)
		dto.FinalizedAt = &s
	}
	return dto
}

func toStepDTO(step *generic.Step) StepDTO {
	dto := StepDTO{
		ID:         string(step.ID),
		RequestID:  string(step.RequestID),
		Level:      step.Level,
		ApproverID: string(step.ApproverID),
		Role:       step.RoleRef,
		Status:     string(step.Status),
		Remarks:    step.Remarks,
		ActedBy:    string(step.ActedBy),
	}
	if step.ActedAt != nil {
		s := step.ActedAt.Format(time.RFC3339)
		dto.ActedAt = &s
	}
	return dto
}

func toStepDTOs(steps []*generic.Step) []StepDTO {
	dtos := make([]StepDTO, len(steps))
	for i, s := range steps {
		dtos[i] = toStepDTO(s)
	}
	return dtos
}

func toBalanceDTO(b generic.Balance) BalanceDTO {
	return BalanceDTO{
		UserID:         string(b.UserID),
		ResourceType:   b.ResourceType,
		Opening:        b.Opening.String(),
		Accrued:        b.Accrued.String(),
		Consumed:       b.Consumed.String(),
		CarriedForward: b.CarriedForward.String(),
		Encashed:       b.Encashed.String(),
		Closing:        b.Closing.String(),
		UpdatedAt:      b.UpdatedAt.Format(time.RFC3339),
	}
}
