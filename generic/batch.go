/*
batch.go - Bulk approval transitions with per-item error isolation

PURPOSE:
  Applies state machine transitions across many steps in one call.
  Each item is processed in its own transaction; one bad item never
  aborts the rest. The caller gets back how many transitioned, which
  requests reached a terminal state, and an error string per failed item.

ISOLATION RULES (per item):
  - target step missing                      -> error entry, continue
  - step not PENDING / parent request done   -> error entry, continue
  - actor not authorized for the step        -> error entry, continue
  - otherwise: the same transition + cascade logic as machine.Act

ADMIN BYPASS:
  With AdminBypass set, per-step approver matching is skipped for steps
  that do not require a specific approver (role-based steps). Used by
  admin bulk actions.

ORDERING:
  Within one request's cascade, transitions apply in strict level order
  (guaranteed by the per-item transaction). Unrelated requests have no
  ordering relationship; items are processed sequentially.

SEE ALSO:
  - machine.go: the per-step transition this fans out
*/
package generic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// BATCH INPUT / RESULT
// =============================================================================

// BatchItem targets one step with a decision.
type BatchItem struct {
	StepID   StepID
	Decision Decision
	Remarks  string
}

// BatchInput is one bulk call.
type BatchInput struct {
	ActorID UserID
	Items   []BatchItem

	// AdminBypass skips approver matching on steps without a specific
	// approver requirement.
	AdminBypass bool
}

// BatchResult reports the outcome. Shape is wire-compatible with the
// upstream system: {updatedCount, completedRequestIds, message, errors?}.
type BatchResult struct {
	UpdatedCount        int
	CompletedRequestIDs []RequestID
	Message             string
	Errors              []string
}

// =============================================================================
// BATCH COORDINATOR
// =============================================================================

type BatchCoordinator struct {
	Machine *Machine
	Logger  *zap.Logger
}

// Process applies every item independently and never aborts the call for
// a single bad item.
func (bc *BatchCoordinator) Process(ctx context.Context, in BatchInput) (*BatchResult, error) {
	result := &BatchResult{}

	for _, item := range in.Items {
		completed, err := bc.processItem(ctx, in.ActorID, item, in.AdminBypass)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("step %s: %v", item.StepID, err))
			bc.Logger.Debug("batch item skipped",
				zap.String("step", string(item.StepID)),
				zap.Error(err),
			)
			continue
		}
		result.UpdatedCount++
		if completed != "" {
			result.CompletedRequestIDs = append(result.CompletedRequestIDs, completed)
		}
	}

	result.Message = fmt.Sprintf("%d of %d steps updated", result.UpdatedCount, len(in.Items))
	return result, nil
}

// processItem runs one transition in its own transaction. Returns the
// request ID when this item finalized its request.
func (bc *BatchCoordinator) processItem(ctx context.Context, actor UserID, item BatchItem, adminBypass bool) (RequestID, error) {
	if !item.Decision.Valid() {
		return "", &ValidationError{Field: "decision", Message: "must be APPROVE or REJECT"}
	}

	m := bc.Machine
	var completed RequestID
	n := newNotifier(m.Dispatcher, m.Logger)

	err := m.Store.WithTx(ctx, func(s Store) error {
		step, err := s.GetStep(ctx, item.StepID)
		if err != nil {
			return err
		}
		if step.Status != StepPending {
			return &ValidationError{Field: "step", Message: "not in an actionable state"}
		}

		req, err := s.GetRequest(ctx, step.RequestID)
		if err != nil {
			return err
		}
		if req.Status != RequestPending {
			return &ValidationError{Field: "request", Message: "already finalized"}
		}

		if !adminBypass || step.ApproverID != "" {
			hasRole := false
			if step.ApproverID == "" && step.RoleRef != "" && actor != "" {
				hasRole, err = m.Directory.HasRole(ctx, actor, req.OrgID, step.RoleRef)
				if err != nil {
					return err
				}
			}
			if !step.Authorized(actor, hasRole) {
				return &ForbiddenError{ActorID: actor, RequestID: req.ID, Message: "not authorized or already acted"}
			}
		}

		steps, err := s.StepsByRequest(ctx, req.ID)
		if err != nil {
			return err
		}
		// Re-point at the transaction's view of the step.
		current := stepAtLevel(steps, step.Level)
		if current == nil || current.Status != StepPending {
			return &ValidationError{Field: "step", Message: "not in an actionable state"}
		}

		if err := m.applyDecision(ctx, s, req, steps, current, actor, item.Decision, item.Remarks, n); err != nil {
			return err
		}
		if req.Status.IsTerminal() {
			completed = req.ID
		}

		return s.AppendAudit(ctx, AuditEntry{
			ID:        uuid.NewString(),
			At:        Today(),
			ActorID:   actor,
			Action:    AuditBatchProcessed,
			RequestID: req.ID,
			Remarks:   item.Remarks,
		})
	})
	if err != nil {
		return "", err
	}

	n.flush(ctx)
	return completed, nil
}
