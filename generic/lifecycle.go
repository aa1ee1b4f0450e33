/*
lifecycle.go - Request creation, validation, and cancellation

PURPOSE:
  Handles the front of the request lifecycle:
  1. Creation: validate the date range, compute the weekday quantity,
     pre-check balance, resolve the approver chain, and materialize the
     request with its full step chain in one transaction.
  2. Cancellation: the requester's own terminal transition, allowed only
     before any approver has acted.

CREATION FLOW:
  validate -> quantity -> balance pre-check -> resolve chain ->
  persist request + steps (level 1 PENDING, rest WAITING) ->
  notify level-1 approver

  Creation-time failures block the request entirely: nothing is persisted.

PROFILES:
  Each request type registers a Profile: its chain strategy, its balance
  binding (nil for timeslip), and its quantity rule. The lifecycle manager
  and state machine are type-agnostic beyond the registry lookup.

SEE ALSO:
  - machine.go: transitions after creation
  - chain.go / workflow.go: the strategies profiles plug in
*/
package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// =============================================================================
// PROFILES - Per-request-type behavior
// =============================================================================

// BalanceResolver maps a request to the resource type whose balance it
// consumes. ok=false means the request type consumes no balance.
type BalanceResolver func(req *Request) (resourceType string, ok bool)

// QuantityFunc computes the day quantity for a request's period. The org
// is passed through so holiday calendars can apply org-specific holidays.
type QuantityFunc func(p Period, orgID OrgID) decimal.Decimal

// Profile bundles everything the engine needs to know about one request
// type. Domain packages construct these; see leave/, wfh/, timeslip/.
type Profile struct {
	Type     RequestType
	Chain    ChainStrategy
	Balance  BalanceResolver
	Quantity QuantityFunc
}

// Registry holds the registered profiles.
type Registry struct {
	profiles map[RequestType]Profile
}

func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{profiles: make(map[RequestType]Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.Type] = p
	}
	return r
}

func (r *Registry) Profile(t RequestType) (Profile, bool) {
	p, ok := r.profiles[t]
	return p, ok
}

// =============================================================================
// LIFECYCLE MANAGER
// =============================================================================

type LifecycleManager struct {
	Store      TxStore
	Registry   *Registry
	Dispatcher Dispatcher
	Logger     *zap.Logger
}

// CreateInput is the payload for a new request of any type.
type CreateInput struct {
	RequesterID  UserID
	OrgID        OrgID
	Type         RequestType
	ResourceType string // leave-type id for LEAVE; ignored otherwise
	Period       Period
	Reason       string
}

// CreateResult is the created request together with its materialized steps.
type CreateResult struct {
	Request *Request
	Steps   []*Step
}

// Create validates, resolves the chain, and persists the request with its
// steps. On any failure nothing is persisted.
func (lm *LifecycleManager) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if in.RequesterID == "" {
		return nil, &ValidationError{Field: "requesterId", Message: "required"}
	}
	if in.OrgID == "" {
		return nil, &ValidationError{Field: "organizationId", Message: "required"}
	}
	if !in.Period.Valid() {
		return nil, &ValidationError{Field: "dateRange", Message: "end date before start date"}
	}

	profile, ok := lm.Registry.Profile(in.Type)
	if !ok {
		return nil, &ValidationError{Field: "type", Message: "unknown request type " + string(in.Type)}
	}

	now := time.Now().UTC()
	req := &Request{
		ID:           RequestID(uuid.NewString()),
		RequesterID:  in.RequesterID,
		OrgID:        in.OrgID,
		Type:         in.Type,
		ResourceType: in.ResourceType,
		Period:       in.Period,
		Quantity:     profile.Quantity(in.Period, in.OrgID),
		Status:       RequestPending,
		Reason:       in.Reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Balance pre-check. The deduction itself happens once, at final
	// approval, inside that transition's transaction.
	if profile.Balance != nil {
		resource, bound := profile.Balance(req)
		if bound {
			if resource == "" {
				return nil, &ValidationError{Field: "resourceType", Message: "required"}
			}
			req.ResourceType = resource
			ledger := NewLedger(lm.Store)
			if err := ledger.PreCheck(ctx, req.RequesterID, resource, req.Quantity); err != nil {
				return nil, err
			}
		} else {
			req.ResourceType = ""
		}
	} else {
		req.ResourceType = ""
	}

	entries, err := profile.Chain.ResolveChain(ctx, in.RequesterID, in.OrgID)
	if err != nil {
		return nil, err
	}

	steps := materializeSteps(req.ID, entries)

	err = lm.Store.WithTx(ctx, func(s Store) error {
		if err := s.SaveRequest(ctx, req); err != nil {
			return err
		}
		if err := s.SaveSteps(ctx, steps); err != nil {
			return err
		}
		return s.AppendAudit(ctx, AuditEntry{
			ID:        uuid.NewString(),
			At:        Today(),
			ActorID:   in.RequesterID,
			Action:    AuditRequestCreated,
			RequestID: req.ID,
			Remarks:   in.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	n := newNotifier(lm.Dispatcher, lm.Logger)
	n.queue(steps[0].ApproverID, Event{
		Kind:      EventStepPending,
		RequestID: req.ID,
		Type:      req.Type,
		Level:     1,
		ActorID:   in.RequesterID,
		Remarks:   in.Reason,
	})
	n.flush(ctx)

	return &CreateResult{Request: req, Steps: steps}, nil
}

// materializeSteps turns chain entries into step rows: level 1 PENDING,
// all others WAITING. Entries arrive ordered; levels are renumbered to
// the contiguous range 1..N.
func materializeSteps(reqID RequestID, entries []ChainEntry) []*Step {
	steps := make([]*Step, len(entries))
	for i, e := range entries {
		status := StepWaiting
		if i == 0 {
			status = StepPending
		}
		steps[i] = &Step{
			ID:         StepID(uuid.NewString()),
			RequestID:  reqID,
			Level:      i + 1,
			ApproverID: e.ApproverID,
			RoleRef:    e.RoleRef,
			Status:     status,
		}
	}
	return steps
}

// Cancel is the requester's terminal transition. It is allowed only while
// no approver has acted: every step still WAITING except the untouched
// level-1 PENDING step.
func (lm *LifecycleManager) Cancel(ctx context.Context, requester UserID, id RequestID) (*Request, error) {
	var req *Request

	err := lm.Store.WithTx(ctx, func(s Store) error {
		var err error
		req, err = s.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.RequesterID != requester {
			return &ForbiddenError{ActorID: requester, RequestID: id}
		}
		if req.Status != RequestPending {
			return &ForbiddenError{ActorID: requester, RequestID: id, Message: "not authorized or already acted"}
		}

		steps, err := s.StepsByRequest(ctx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, step := range steps {
			if step.Status == StepApproved || step.Status == StepRejected {
				return &ForbiddenError{ActorID: requester, RequestID: id, Message: "approval already in progress"}
			}
			if step.Status == StepPending {
				step.Status = StepRejected
				step.Remarks = "request cancelled by requester"
				step.ActedBy = requester
				step.ActedAt = &now
				if err := s.UpdateStep(ctx, step); err != nil {
					return err
				}
			}
		}

		req.Status = RequestCancelled
		req.FinalizedAt = &now
		req.UpdatedAt = now
		if err := s.UpdateRequest(ctx, req); err != nil {
			return err
		}

		return s.AppendAudit(ctx, AuditEntry{
			ID:        uuid.NewString(),
			At:        Today(),
			ActorID:   requester,
			Action:    AuditRequestCancelled,
			RequestID: id,
		})
	})
	if err != nil {
		return nil, err
	}

	n := newNotifier(lm.Dispatcher, lm.Logger)
	n.queue(req.RequesterID, Event{
		Kind:      EventRequestCancelled,
		RequestID: req.ID,
		Type:      req.Type,
		ActorID:   requester,
	})
	n.flush(ctx)

	return req, nil
}
