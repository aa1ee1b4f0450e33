/*
machine.go - Step and request state transitions

PURPOSE:
  Advances individual approval steps and the parent request through their
  states. This is the only code that mutates requests and steps after
  creation.

STATES:
  step:    WAITING -> PENDING -> {APPROVED, REJECTED}   (terminal per step)
  request: PENDING -> {APPROVED, REJECTED, CANCELLED}   (terminal)

TRANSITIONS:
  Act (non-admin):
    The actor must own the request's current PENDING step (or hold the
    role it requires). Reject short-circuits the whole request: later
    steps stay WAITING forever. Approve either activates the next level
    or, at the last level, finalizes the request and deducts the balance.

  Override (admin):
    An org admin - who need not appear anywhere in the chain - collapses
    every live step to the given decision and finalizes the request in
    one operation.

ATOMICITY:
  Every transition runs inside TxStore.WithTx: the step's status is
  re-read and verified under the transaction, so two concurrent approvals
  cannot both observe "no more pending steps" and double-finalize (and
  double-deduct). Balance deduction joins the terminal-state write.

NOTIFICATIONS:
  Queued during the transaction, flushed after commit. Delivery failure
  is logged and never rolls back approval state.

SEE ALSO:
  - lifecycle.go: creation and cancellation
  - batch.go:     the same transitions applied across many steps
*/
package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Machine applies approval decisions to steps and requests.
type Machine struct {
	Store      TxStore
	Registry   *Registry
	Directory  Directory
	Dispatcher Dispatcher
	Logger     *zap.Logger
}

// =============================================================================
// NON-ADMIN TRANSITION
// =============================================================================

// Act applies the actor's decision to the request's current PENDING step.
func (m *Machine) Act(ctx context.Context, actor UserID, id RequestID, decision Decision, remarks string) (*Request, error) {
	if !decision.Valid() {
		return nil, &ValidationError{Field: "decision", Message: "must be APPROVE or REJECT"}
	}

	var req *Request
	n := newNotifier(m.Dispatcher, m.Logger)

	err := m.Store.WithTx(ctx, func(s Store) error {
		var err error
		req, err = s.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return &ForbiddenError{ActorID: actor, RequestID: id, Message: "not authorized or already acted"}
		}

		steps, err := s.StepsByRequest(ctx, id)
		if err != nil {
			return err
		}
		current := currentStep(steps)
		if current == nil {
			return &ForbiddenError{ActorID: actor, RequestID: id, Message: "not authorized or already acted"}
		}

		hasRole := false
		if current.ApproverID == "" && current.RoleRef != "" {
			hasRole, err = m.Directory.HasRole(ctx, actor, req.OrgID, current.RoleRef)
			if err != nil {
				return err
			}
		}
		if !current.Authorized(actor, hasRole) {
			return &ForbiddenError{ActorID: actor, RequestID: id, Message: "not authorized or already acted"}
		}

		return m.applyDecision(ctx, s, req, steps, current, actor, decision, remarks, n)
	})
	if err != nil {
		return nil, err
	}

	n.flush(ctx)
	return req, nil
}

// applyDecision advances the chain after authorization has passed. Shared
// by Act and the batch coordinator.
func (m *Machine) applyDecision(ctx context.Context, s Store, req *Request, steps []*Step, current *Step, actor UserID, decision Decision, remarks string, n *notifier) error {
	now := time.Now().UTC()

	current.Status = decision.StepStatus()
	current.Remarks = remarks
	current.ActedBy = actor
	current.ActedAt = &now
	if err := s.UpdateStep(ctx, current); err != nil {
		return err
	}

	auditAction := AuditStepApproved
	if decision == DecisionReject {
		auditAction = AuditStepRejected
	}
	if err := s.AppendAudit(ctx, AuditEntry{
		ID:        uuid.NewString(),
		At:        Today(),
		ActorID:   actor,
		Action:    auditAction,
		RequestID: req.ID,
		Remarks:   remarks,
	}); err != nil {
		return err
	}

	if decision == DecisionReject {
		// Short-circuit: later levels stay WAITING forever.
		return m.finalize(ctx, s, req, RequestRejected, now, n)
	}

	// Approve: activate the next level if one exists.
	if next := stepAtLevel(steps, current.Level+1); next != nil {
		next.Status = StepPending
		if err := s.UpdateStep(ctx, next); err != nil {
			return err
		}
		req.UpdatedAt = now
		if err := s.UpdateRequest(ctx, req); err != nil {
			return err
		}
		n.queue(next.ApproverID, Event{
			Kind:      EventStepPending,
			RequestID: req.ID,
			Type:      req.Type,
			Level:     next.Level,
			ActorID:   actor,
		})
		return nil
	}

	// No next level: this was the finalizing approval.
	return m.finalize(ctx, s, req, RequestApproved, now, n)
}

// finalize writes the terminal request status and, on approval, performs
// the single balance deduction - all inside the caller's transaction.
func (m *Machine) finalize(ctx context.Context, s Store, req *Request, status RequestStatus, now time.Time, n *notifier) error {
	req.Status = status
	req.FinalizedAt = &now
	req.UpdatedAt = now
	if err := s.UpdateRequest(ctx, req); err != nil {
		return err
	}

	if status == RequestApproved {
		if err := m.deductIfBound(ctx, s, req); err != nil {
			return err
		}
	}

	kind := EventRequestApproved
	if status == RequestRejected {
		kind = EventRequestRejected
	}
	n.queue(req.RequesterID, Event{
		Kind:      kind,
		RequestID: req.ID,
		Type:      req.Type,
	})
	return nil
}

// deductIfBound consumes the requester's balance when the request type has
// a balance binding. Invoked at most once per request: only the finalizing
// transition reaches here, and it runs under the request's transaction.
func (m *Machine) deductIfBound(ctx context.Context, s Store, req *Request) error {
	profile, ok := m.Registry.Profile(req.Type)
	if !ok || profile.Balance == nil {
		return nil
	}
	resource, bound := profile.Balance(req)
	if !bound {
		return nil
	}
	ledger := NewLedger(s)
	return ledger.Deduct(ctx, req.RequesterID, resource, req.Quantity)
}

// =============================================================================
// ADMIN OVERRIDE
// =============================================================================

// Override collapses the whole chain in one call. The admin must hold an
// admin role for the request's org but need not appear in the chain.
func (m *Machine) Override(ctx context.Context, admin UserID, id RequestID, decision Decision, remarks string) (*Request, error) {
	if !decision.Valid() {
		return nil, &ValidationError{Field: "decision", Message: "must be APPROVE or REJECT"}
	}

	var req *Request
	n := newNotifier(m.Dispatcher, m.Logger)

	err := m.Store.WithTx(ctx, func(s Store) error {
		var err error
		req, err = s.GetRequest(ctx, id)
		if err != nil {
			return err
		}

		isAdmin, err := m.Directory.IsOrgAdmin(ctx, admin, req.OrgID)
		if err != nil {
			return err
		}
		if !isAdmin {
			return &ForbiddenError{ActorID: admin, RequestID: id, Message: "admin role required"}
		}
		if req.Status != RequestPending {
			// A second override is an error, not a second deduction.
			return &ForbiddenError{ActorID: admin, RequestID: id, Message: "not authorized or already acted"}
		}

		steps, err := s.StepsByRequest(ctx, id)
		if err != nil {
			return err
		}

		// Steps arrive ordered by level; live ones collapse in strict
		// level order.
		now := time.Now().UTC()
		for _, step := range steps {
			if !step.Status.IsLive() {
				continue
			}
			step.Status = decision.StepStatus()
			step.Remarks = remarks
			step.ActedBy = admin
			step.ActedAt = &now
			if err := s.UpdateStep(ctx, step); err != nil {
				return err
			}
		}

		if err := s.AppendAudit(ctx, AuditEntry{
			ID:        uuid.NewString(),
			At:        Today(),
			ActorID:   admin,
			Action:    AuditAdminOverride,
			RequestID: id,
			Remarks:   remarks,
		}); err != nil {
			return err
		}

		return m.finalize(ctx, s, req, decision.RequestStatus(), now, n)
	})
	if err != nil {
		return nil, err
	}

	n.flush(ctx)
	return req, nil
}

// =============================================================================
// STEP HELPERS
// =============================================================================

// currentStep returns the single PENDING step, the request's current level.
func currentStep(steps []*Step) *Step {
	for _, s := range steps {
		if s.Status == StepPending {
			return s
		}
	}
	return nil
}

func stepAtLevel(steps []*Step, level int) *Step {
	for _, s := range steps {
		if s.Level == level {
			return s
		}
	}
	return nil
}
