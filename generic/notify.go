/*
notify.go - Fire-and-forget notification dispatch

PURPOSE:
  Every step transition tells someone something: the next approver that a
  step is waiting on them, the requester that their request reached a
  terminal state. Delivery transport (websocket, queue, email) is a
  swappable collaborator behind the Dispatcher interface; the engine only
  guarantees that delivery failure never rolls back committed state.

DELIVERY CONTRACT:
  Notifications are dispatched AFTER the transaction commits. A failed
  Notify call is logged and dropped. The engine therefore collects events
  during a transition and flushes them post-commit (see machine.go).

SEE ALSO:
  - machine.go:   collects events during transitions
  - lifecycle.go: notifies the level-1 approver on creation
*/
package generic

import (
	"context"

	"go.uber.org/zap"
)

// =============================================================================
// EVENTS
// =============================================================================

type EventKind string

const (
	EventStepPending      EventKind = "step_pending"
	EventRequestApproved  EventKind = "request_approved"
	EventRequestRejected  EventKind = "request_rejected"
	EventRequestCancelled EventKind = "request_cancelled"
)

// Event is the payload delivered to a user. Content formatting is the
// transport's concern; the engine only supplies the facts.
type Event struct {
	Kind      EventKind
	RequestID RequestID
	Type      RequestType
	Level     int
	ActorID   UserID
	Remarks   string
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher delivers an event to a user, best-effort.
type Dispatcher interface {
	Notify(ctx context.Context, userID UserID, event Event) error
}

// LogDispatcher is the default Dispatcher: it only logs. Production wiring
// replaces it with a real transport.
type LogDispatcher struct {
	Logger *zap.Logger
}

func (d *LogDispatcher) Notify(_ context.Context, userID UserID, event Event) error {
	d.Logger.Info("notify",
		zap.String("user", string(userID)),
		zap.String("kind", string(event.Kind)),
		zap.String("request", string(event.RequestID)),
		zap.Int("level", event.Level),
	)
	return nil
}

// =============================================================================
// PENDING NOTIFICATIONS - Collected during a transaction, flushed after
// =============================================================================

type pendingNotification struct {
	userID UserID
	event  Event
}

// notifier buffers notifications until the surrounding transaction commits.
type notifier struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	pending    []pendingNotification
}

func newNotifier(d Dispatcher, logger *zap.Logger) *notifier {
	return &notifier{dispatcher: d, logger: logger}
}

func (n *notifier) queue(userID UserID, event Event) {
	if userID == "" {
		// Role-based step with no concrete approver resolved yet;
		// nothing to deliver.
		return
	}
	n.pending = append(n.pending, pendingNotification{userID: userID, event: event})
}

// flush delivers all queued notifications. Failures are logged, never
// returned: the approval state is already committed.
func (n *notifier) flush(ctx context.Context) {
	for _, p := range n.pending {
		if n.dispatcher == nil {
			continue
		}
		if err := n.dispatcher.Notify(ctx, p.userID, p.event); err != nil {
			n.logger.Warn("notification delivery failed",
				zap.String("user", string(p.userID)),
				zap.String("kind", string(p.event.Kind)),
				zap.String("request", string(p.event.RequestID)),
				zap.Error(err),
			)
		}
	}
	n.pending = nil
}
