// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/approval-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type balanceKey struct {
	UserID       generic.UserID
	ResourceType string
}

type Memory struct {
	mu          sync.RWMutex
	requests    map[generic.RequestID]generic.Request
	steps       map[generic.StepID]generic.Step
	assignments []generic.Assignment
	workflows   []generic.WorkflowDefinition
	balances    map[balanceKey]generic.Balance
	policies    map[generic.OrgID]generic.ApproverMode
	audit       []generic.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[generic.RequestID]generic.Request),
		steps:    make(map[generic.StepID]generic.Step),
		balances: make(map[balanceKey]generic.Balance),
		policies: make(map[generic.OrgID]generic.ApproverMode),
	}
}

// =============================================================================
// REQUESTS AND STEPS
// =============================================================================

func (m *Memory) SaveRequest(_ context.Context, req *generic.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = *req
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id generic.RequestID) (*generic.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "request", ID: string(id)}
	}
	out := req
	return &out, nil
}

func (m *Memory) UpdateRequest(_ context.Context, req *generic.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[req.ID]; !ok {
		return &generic.NotFoundError{Kind: "request", ID: string(req.ID)}
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *Memory) SaveSteps(_ context.Context, steps []*generic.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range steps {
		m.steps[s.ID] = *s
	}
	return nil
}

func (m *Memory) StepsByRequest(_ context.Context, id generic.RequestID) ([]*generic.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*generic.Step
	for _, s := range m.steps {
		if s.RequestID == id {
			out := s
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Level < result[j].Level })
	return result, nil
}

func (m *Memory) GetStep(_ context.Context, id generic.StepID) (*generic.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.steps[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "step", ID: string(id)}
	}
	out := s
	return &out, nil
}

func (m *Memory) UpdateStep(_ context.Context, step *generic.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[step.ID]; !ok {
		return &generic.NotFoundError{Kind: "step", ID: string(step.ID)}
	}
	m.steps[step.ID] = *step
	return nil
}

func (m *Memory) ListByRequester(_ context.Context, requester generic.UserID) ([]*generic.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*generic.Request
	for _, r := range m.requests {
		if r.RequesterID == requester {
			out := r
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) ListPendingForApprover(ctx context.Context, approver generic.UserID) ([]*generic.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*generic.Request
	for _, s := range m.steps {
		if s.Status != generic.StepPending || s.ApproverID != approver {
			continue
		}
		if r, ok := m.requests[s.RequestID]; ok && r.Status == generic.RequestPending {
			out := r
			result = append(result, &out)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// =============================================================================
// CHAIN CONFIGURATION
// =============================================================================

func (m *Memory) SaveAssignment(_ context.Context, a generic.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *Memory) ActiveAssignments(_ context.Context, requester generic.UserID, t generic.RequestType) ([]generic.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.Assignment
	for _, a := range m.assignments {
		if a.Active && a.RequesterID == requester && a.Type == t {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Level < result[j].Level })
	return result, nil
}

func (m *Memory) SaveDefinition(_ context.Context, def generic.WorkflowDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.workflows {
		if existing.ID == def.ID {
			m.workflows[i] = def
			return nil
		}
	}
	m.workflows = append(m.workflows, def)
	return nil
}

func (m *Memory) ActiveDefinition(_ context.Context, orgID generic.OrgID) (*generic.WorkflowDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, def := range m.workflows {
		if def.OrgID == orgID && def.Active {
			out := def
			return &out, nil
		}
	}
	return nil, &generic.NotFoundError{Kind: "workflow", ID: string(orgID)}
}

func (m *Memory) ListDefinitions(_ context.Context, orgID generic.OrgID) ([]generic.WorkflowDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.WorkflowDefinition
	for _, def := range m.workflows {
		if def.OrgID == orgID {
			result = append(result, def)
		}
	}
	return result, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (m *Memory) SaveBalance(_ context.Context, b generic.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey{UserID: b.UserID, ResourceType: b.ResourceType}] = b
	return nil
}

func (m *Memory) GetBalance(_ context.Context, userID generic.UserID, resourceType string) (*generic.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.balances[balanceKey{UserID: userID, ResourceType: resourceType}]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "balance", ID: string(userID) + "/" + resourceType}
	}
	out := b
	return &out, nil
}

func (m *Memory) ListBalances(_ context.Context, userID generic.UserID) ([]generic.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.Balance
	for k, b := range m.balances {
		if k.UserID == userID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ResourceType < result[j].ResourceType })
	return result, nil
}

// =============================================================================
// ORG POLICY
// =============================================================================

func (m *Memory) WFHApproverMode(_ context.Context, orgID generic.OrgID) (generic.ApproverMode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mode, ok := m.policies[orgID]; ok {
		return mode, nil
	}
	return generic.ApproverManager, nil
}

func (m *Memory) SetWFHApproverMode(_ context.Context, orgID generic.OrgID, mode generic.ApproverMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[orgID] = mode
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, entry generic.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []generic.AuditEntry
	for _, e := range m.audit {
		if filter.ActorID != nil && e.ActorID != *filter.ActorID {
			continue
		}
		if filter.RequestID != nil && e.RequestID != *filter.RequestID {
			continue
		}
		if len(filter.Actions) > 0 && !containsAction(filter.Actions, e.Action) {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

func containsAction(actions []generic.AuditAction, a generic.AuditAction) bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot + rollback on error.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	requests    map[generic.RequestID]generic.Request
	steps       map[generic.StepID]generic.Step
	assignments []generic.Assignment
	workflows   []generic.WorkflowDefinition
	balances    map[balanceKey]generic.Balance
	policies    map[generic.OrgID]generic.ApproverMode
	audit       []generic.AuditEntry
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		requests:    make(map[generic.RequestID]generic.Request, len(tm.requests)),
		steps:       make(map[generic.StepID]generic.Step, len(tm.steps)),
		balances:    make(map[balanceKey]generic.Balance, len(tm.balances)),
		policies:    make(map[generic.OrgID]generic.ApproverMode, len(tm.policies)),
		assignments: append([]generic.Assignment{}, tm.assignments...),
		workflows:   append([]generic.WorkflowDefinition{}, tm.workflows...),
		audit:       append([]generic.AuditEntry{}, tm.audit...),
	}
	for k, v := range tm.requests {
		s.requests[k] = v
	}
	for k, v := range tm.steps {
		s.steps[k] = v
	}
	for k, v := range tm.balances {
		s.balances[k] = v
	}
	for k, v := range tm.policies {
		s.policies[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.requests = s.requests
	tm.steps = s.steps
	tm.assignments = s.assignments
	tm.workflows = s.workflows
	tm.balances = s.balances
	tm.policies = s.policies
	tm.audit = s.audit
}
