/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.TxStore (requests, steps, assignments, workflow
  definitions, balances, org policies, audit log) plus a users table that
  backs the production generic.Directory. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  requests:             Parent approval records
  steps:                One row per chain level, owned by a request
  assignments:          Pre-configured approver chains (leave/WFH)
  workflow_definitions: Timeslip chain templates (steps as JSON)
  balances:             Per-user, per-resource balance rows
  org_policies:         Org-level routing flags
  audit_log:            Append-only action trail
  users:                Directory source (manager links, roles)

ATOMICITY:
  Every state transition runs through WithTx. The same statements execute
  against *sql.DB outside a transaction and *sql.Tx inside one; the
  session type carries whichever is active.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/approvals.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/approval-engine/generic"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session implements generic.Store against whichever handle is active.
type session struct {
	q dbtx
}

// Store implements generic.TxStore using SQLite.
type Store struct {
	session
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{session: session{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		type TEXT NOT NULL,
		resource_type TEXT NOT NULL DEFAULT '',
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		quantity TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		finalized_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_requests_requester
		ON requests(requester_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);

	-- Steps are owned by their request: created with it, never deleted.
	CREATE TABLE IF NOT EXISTS steps (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL REFERENCES requests(id),
		level INTEGER NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		role_ref TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		remarks TEXT NOT NULL DEFAULT '',
		acted_by TEXT NOT NULL DEFAULT '',
		acted_at TEXT,
		UNIQUE(request_id, level)
	);
	CREATE INDEX IF NOT EXISTS idx_steps_approver_status
		ON steps(approver_id, status);

	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		approver_id TEXT NOT NULL,
		org_id TEXT NOT NULL,
		type TEXT NOT NULL,
		level INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_requester_type
		ON assignments(requester_id, type, active);

	CREATE TABLE IF NOT EXISTS workflow_definitions (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		steps_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workflows_org
		ON workflow_definitions(org_id, active);

	CREATE TABLE IF NOT EXISTS balances (
		user_id TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		opening TEXT NOT NULL,
		accrued TEXT NOT NULL,
		consumed TEXT NOT NULL,
		carried_forward TEXT NOT NULL,
		encashed TEXT NOT NULL,
		closing TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, resource_type)
	);

	CREATE TABLE IF NOT EXISTS org_policies (
		org_id TEXT PRIMARY KEY,
		wfh_approver_mode TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT NOT NULL DEFAULT '',
		remarks TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_audit_request
		ON audit_log(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_actor
		ON audit_log(actor_id);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL,
		manager_id TEXT NOT NULL DEFAULT '',
		roles_json TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_users_org
		ON users(org_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction. fn's store view shares
// the transaction; any error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&session{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// REQUESTS
// =============================================================================

func (s *session) SaveRequest(ctx context.Context, req *generic.Request) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO requests (
			id, requester_id, org_id, type, resource_type,
			period_start, period_end, quantity, status, reason,
			finalized_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(req.ID), string(req.RequesterID), string(req.OrgID),
		string(req.Type), req.ResourceType,
		req.Period.Start.String(), req.Period.End.String(),
		req.Quantity.String(), string(req.Status), req.Reason,
		nullTime(req.FinalizedAt),
		req.CreatedAt.UTC().Format(time.RFC3339Nano),
		req.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

func (s *session) GetRequest(ctx context.Context, id generic.RequestID) (*generic.Request, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, requester_id, org_id, type, resource_type,
		       period_start, period_end, quantity, status, reason,
		       finalized_at, created_at, updated_at
		FROM requests WHERE id = ?`, string(id))

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "request", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	return req, nil
}

func (s *session) UpdateRequest(ctx context.Context, req *generic.Request) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE requests
		SET status = ?, reason = ?, finalized_at = ?, updated_at = ?
		WHERE id = ?`,
		string(req.Status), req.Reason, nullTime(req.FinalizedAt),
		req.UpdatedAt.UTC().Format(time.RFC3339Nano), string(req.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	return nil
}

func (s *session) ListByRequester(ctx context.Context, requester generic.UserID) ([]*generic.Request, error) {
	return s.queryRequests(ctx, `
		SELECT id, requester_id, org_id, type, resource_type,
		       period_start, period_end, quantity, status, reason,
		       finalized_at, created_at, updated_at
		FROM requests WHERE requester_id = ?
		ORDER BY created_at DESC, id`, string(requester))
}

func (s *session) ListPendingForApprover(ctx context.Context, approver generic.UserID) ([]*generic.Request, error) {
	return s.queryRequests(ctx, `
		SELECT r.id, r.requester_id, r.org_id, r.type, r.resource_type,
		       r.period_start, r.period_end, r.quantity, r.status, r.reason,
		       r.finalized_at, r.created_at, r.updated_at
		FROM requests r
		JOIN steps st ON st.request_id = r.id
		WHERE r.status = 'PENDING'
		  AND st.status = 'PENDING'
		  AND st.approver_id = ?
		ORDER BY r.created_at DESC, r.id`, string(approver))
}

func (s *session) queryRequests(ctx context.Context, query string, args ...any) ([]*generic.Request, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var out []*generic.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*generic.Request, error) {
	var (
		req                   generic.Request
		id, requester, org    string
		typ, status           string
		start, end, qty       string
		finalized             sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(&id, &requester, &org, &typ, &req.ResourceType,
		&start, &end, &qty, &status, &req.Reason,
		&finalized, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	req.ID = generic.RequestID(id)
	req.RequesterID = generic.UserID(requester)
	req.OrgID = generic.OrgID(org)
	req.Type = generic.RequestType(typ)
	req.Status = generic.RequestStatus(status)

	if req.Period.Start, err = generic.ParseDate(start); err != nil {
		return nil, err
	}
	if req.Period.End, err = generic.ParseDate(end); err != nil {
		return nil, err
	}
	if req.Quantity, err = decimal.NewFromString(qty); err != nil {
		return nil, err
	}
	if req.FinalizedAt, err = parseNullTime(finalized); err != nil {
		return nil, err
	}
	if req.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if req.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &req, nil
}

// =============================================================================
// STEPS
// =============================================================================

func (s *session) SaveSteps(ctx context.Context, steps []*generic.Step) error {
	for _, step := range steps {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO steps (
				id, request_id, level, approver_id, role_ref,
				status, remarks, acted_by, acted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(step.ID), string(step.RequestID), step.Level,
			string(step.ApproverID), step.RoleRef,
			string(step.Status), step.Remarks, string(step.ActedBy),
			nullTime(step.ActedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save step: %w", err)
		}
	}
	return nil
}

func (s *session) StepsByRequest(ctx context.Context, id generic.RequestID) ([]*generic.Step, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, request_id, level, approver_id, role_ref,
		       status, remarks, acted_by, acted_at
		FROM steps WHERE request_id = ?
		ORDER BY level`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var out []*generic.Step
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func (s *session) GetStep(ctx context.Context, id generic.StepID) (*generic.Step, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, request_id, level, approver_id, role_ref,
		       status, remarks, acted_by, acted_at
		FROM steps WHERE id = ?`, string(id))

	step, err := scanStep(row)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "step", ID: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load step: %w", err)
	}
	return step, nil
}

func (s *session) UpdateStep(ctx context.Context, step *generic.Step) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE steps
		SET status = ?, remarks = ?, acted_by = ?, acted_at = ?
		WHERE id = ?`,
		string(step.Status), step.Remarks, string(step.ActedBy),
		nullTime(step.ActedAt), string(step.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}
	return nil
}

func scanStep(row rowScanner) (*generic.Step, error) {
	var (
		step               generic.Step
		id, reqID          string
		approver, actedBy  string
		status             string
		actedAt            sql.NullString
	)
	err := row.Scan(&id, &reqID, &step.Level, &approver, &step.RoleRef,
		&status, &step.Remarks, &actedBy, &actedAt)
	if err != nil {
		return nil, err
	}

	step.ID = generic.StepID(id)
	step.RequestID = generic.RequestID(reqID)
	step.ApproverID = generic.UserID(approver)
	step.ActedBy = generic.UserID(actedBy)
	step.Status = generic.StepStatus(status)
	if step.ActedAt, err = parseNullTime(actedAt); err != nil {
		return nil, err
	}
	return &step, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *session) SaveAssignment(ctx context.Context, a generic.Assignment) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO assignments (
			id, requester_id, approver_id, org_id, type, level, active, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			approver_id = excluded.approver_id,
			level = excluded.level,
			active = excluded.active`,
		a.ID, string(a.RequesterID), string(a.ApproverID), string(a.OrgID),
		string(a.Type), a.Level, boolInt(a.Active),
		a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *session) ActiveAssignments(ctx context.Context, requester generic.UserID, t generic.RequestType) ([]generic.Assignment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, requester_id, approver_id, org_id, type, level, active, created_at
		FROM assignments
		WHERE requester_id = ? AND type = ? AND active = 1
		ORDER BY level`, string(requester), string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var out []generic.Assignment
	for rows.Next() {
		var (
			a                         generic.Assignment
			requesterID, approver, org string
			typ, createdAt            string
			active                    int
		)
		if err := rows.Scan(&a.ID, &requesterID, &approver, &org, &typ, &a.Level, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.RequesterID = generic.UserID(requesterID)
		a.ApproverID = generic.UserID(approver)
		a.OrgID = generic.OrgID(org)
		a.Type = generic.RequestType(typ)
		a.Active = active != 0
		if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// WORKFLOW DEFINITIONS
// =============================================================================

func (s *session) SaveDefinition(ctx context.Context, def generic.WorkflowDefinition) error {
	stepsJSON, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow steps: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO workflow_definitions (id, org_id, department, name, active, steps_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			department = excluded.department,
			name = excluded.name,
			active = excluded.active,
			steps_json = excluded.steps_json`,
		def.ID, string(def.OrgID), def.Department, def.Name,
		boolInt(def.Active), string(stepsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow definition: %w", err)
	}
	return nil
}

func (s *session) ActiveDefinition(ctx context.Context, orgID generic.OrgID) (*generic.WorkflowDefinition, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, org_id, department, name, active, steps_json
		FROM workflow_definitions
		WHERE org_id = ? AND active = 1
		ORDER BY id LIMIT 1`, string(orgID))

	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "workflow", ID: string(orgID)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow definition: %w", err)
	}
	return def, nil
}

func (s *session) ListDefinitions(ctx context.Context, orgID generic.OrgID) ([]generic.WorkflowDefinition, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, org_id, department, name, active, steps_json
		FROM workflow_definitions
		WHERE org_id = ?
		ORDER BY id`, string(orgID))
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow definitions: %w", err)
	}
	defer rows.Close()

	var out []generic.WorkflowDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}
		out = append(out, *def)
	}
	return out, rows.Err()
}

func scanDefinition(row rowScanner) (*generic.WorkflowDefinition, error) {
	var (
		def       generic.WorkflowDefinition
		org       string
		active    int
		stepsJSON string
	)
	err := row.Scan(&def.ID, &org, &def.Department, &def.Name, &active, &stepsJSON)
	if err != nil {
		return nil, err
	}
	def.OrgID = generic.OrgID(org)
	def.Active = active != 0
	if err := json.Unmarshal([]byte(stepsJSON), &def.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow steps: %w", err)
	}
	return &def, nil
}

// =============================================================================
// BALANCES
// =============================================================================

func (s *session) SaveBalance(ctx context.Context, b generic.Balance) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO balances (
			user_id, resource_type, opening, accrued, consumed,
			carried_forward, encashed, closing, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, resource_type) DO UPDATE SET
			opening = excluded.opening,
			accrued = excluded.accrued,
			consumed = excluded.consumed,
			carried_forward = excluded.carried_forward,
			encashed = excluded.encashed,
			closing = excluded.closing,
			updated_at = excluded.updated_at`,
		string(b.UserID), b.ResourceType,
		b.Opening.String(), b.Accrued.String(), b.Consumed.String(),
		b.CarriedForward.String(), b.Encashed.String(), b.Closing.String(),
		b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

func (s *session) GetBalance(ctx context.Context, userID generic.UserID, resourceType string) (*generic.Balance, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT user_id, resource_type, opening, accrued, consumed,
		       carried_forward, encashed, closing, updated_at
		FROM balances WHERE user_id = ? AND resource_type = ?`,
		string(userID), resourceType)

	b, err := scanBalance(row)
	if err == sql.ErrNoRows {
		return nil, &generic.NotFoundError{Kind: "balance", ID: string(userID) + "/" + resourceType}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	return b, nil
}

func (s *session) ListBalances(ctx context.Context, userID generic.UserID) ([]generic.Balance, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT user_id, resource_type, opening, accrued, consumed,
		       carried_forward, encashed, closing, updated_at
		FROM balances WHERE user_id = ?
		ORDER BY resource_type`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var out []generic.Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func scanBalance(row rowScanner) (*generic.Balance, error) {
	var (
		b                                      generic.Balance
		user                                   string
		opening, accrued, consumed             string
		carried, encashed, closing, updatedAt string
	)
	err := row.Scan(&user, &b.ResourceType, &opening, &accrued, &consumed,
		&carried, &encashed, &closing, &updatedAt)
	if err != nil {
		return nil, err
	}

	b.UserID = generic.UserID(user)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&b.Opening, opening}, {&b.Accrued, accrued}, {&b.Consumed, consumed},
		{&b.CarriedForward, carried}, {&b.Encashed, encashed}, {&b.Closing, closing},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, err
		}
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// =============================================================================
// ORG POLICY
// =============================================================================

func (s *session) WFHApproverMode(ctx context.Context, orgID generic.OrgID) (generic.ApproverMode, error) {
	var mode string
	err := s.q.QueryRowContext(ctx,
		`SELECT wfh_approver_mode FROM org_policies WHERE org_id = ?`,
		string(orgID)).Scan(&mode)
	if err == sql.ErrNoRows {
		return generic.ApproverManager, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load org policy: %w", err)
	}
	return generic.ApproverMode(mode), nil
}

func (s *session) SetWFHApproverMode(ctx context.Context, orgID generic.OrgID, mode generic.ApproverMode) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO org_policies (org_id, wfh_approver_mode)
		VALUES (?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			wfh_approver_mode = excluded.wfh_approver_mode`,
		string(orgID), string(mode))
	if err != nil {
		return fmt.Errorf("failed to save org policy: %w", err)
	}
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *session) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, at, actor_id, action, request_id, remarks)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.At.String(), string(entry.ActorID),
		string(entry.Action), string(entry.RequestID), entry.Remarks)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *session) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	query := `SELECT id, at, actor_id, action, request_id, remarks FROM audit_log WHERE 1=1`
	var args []any
	if filter.ActorID != nil {
		query += ` AND actor_id = ?`
		args = append(args, string(*filter.ActorID))
	}
	if filter.RequestID != nil {
		query += ` AND request_id = ?`
		args = append(args, string(*filter.RequestID))
	}
	if len(filter.Actions) > 0 {
		query += ` AND action IN (?` + strings.Repeat(",?", len(filter.Actions)-1) + `)`
		for _, a := range filter.Actions {
			args = append(args, string(a))
		}
	}
	query += ` ORDER BY at, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e              generic.AuditEntry
			at, actor      string
			action, reqID  string
		)
		if err := rows.Scan(&e.ID, &at, &actor, &action, &reqID, &e.Remarks); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.At, err = generic.ParseDate(at); err != nil {
			return nil, err
		}
		e.ActorID = generic.UserID(actor)
		e.Action = generic.AuditAction(action)
		e.RequestID = generic.RequestID(reqID)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// USERS / DIRECTORY
// =============================================================================

// User is one directory row.
type User struct {
	ID        generic.UserID
	OrgID     generic.OrgID
	ManagerID generic.UserID
	Roles     []string
}

// SaveUser inserts or replaces a directory row.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	rolesJSON, err := json.Marshal(u.Roles)
	if err != nil {
		return fmt.Errorf("failed to marshal roles: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, org_id, manager_id, roles_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			manager_id = excluded.manager_id,
			roles_json = excluded.roles_json`,
		string(u.ID), string(u.OrgID), string(u.ManagerID), string(rolesJSON))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Directory returns a generic.Directory backed by the users table.
func (s *Store) Directory(adminRoles []string) generic.Directory {
	return &directory{store: s, adminRoles: adminRoles}
}

type directory struct {
	store      *Store
	adminRoles []string
}

func (d *directory) getUser(ctx context.Context, userID generic.UserID) (*User, error) {
	var (
		id, org, manager, rolesJSON string
	)
	err := d.store.db.QueryRowContext(ctx,
		`SELECT id, org_id, manager_id, roles_json FROM users WHERE id = ?`,
		string(userID)).Scan(&id, &org, &manager, &rolesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	u := &User{
		ID:        generic.UserID(id),
		OrgID:     generic.OrgID(org),
		ManagerID: generic.UserID(manager),
	}
	if err := json.Unmarshal([]byte(rolesJSON), &u.Roles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal roles: %w", err)
	}
	return u, nil
}

func (d *directory) IsOrgAdmin(ctx context.Context, userID generic.UserID, orgID generic.OrgID) (bool, error) {
	u, err := d.getUser(ctx, userID)
	if err != nil || u == nil || u.OrgID != orgID {
		return false, err
	}
	for _, role := range u.Roles {
		for _, admin := range d.adminRoles {
			if role == admin {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *directory) ResolveManager(ctx context.Context, userID generic.UserID) (generic.UserID, bool, error) {
	u, err := d.getUser(ctx, userID)
	if err != nil || u == nil || u.ManagerID == "" {
		return "", false, err
	}
	return u.ManagerID, true, nil
}

func (d *directory) HasRole(ctx context.Context, userID generic.UserID, orgID generic.OrgID, role string) (bool, error) {
	u, err := d.getUser(ctx, userID)
	if err != nil || u == nil || u.OrgID != orgID {
		return false, err
	}
	for _, r := range u.Roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (d *directory) FirstWithRole(ctx context.Context, orgID generic.OrgID, roles []string) (generic.UserID, bool, error) {
	// Scan roles in priority order; ties break on smallest user id so
	// fallback chains resolve deterministically.
	for _, role := range roles {
		rows, err := d.store.db.QueryContext(ctx,
			`SELECT id, roles_json FROM users WHERE org_id = ? ORDER BY id`,
			string(orgID))
		if err != nil {
			return "", false, fmt.Errorf("failed to query users: %w", err)
		}
		for rows.Next() {
			var id, rolesJSON string
			if err := rows.Scan(&id, &rolesJSON); err != nil {
				rows.Close()
				return "", false, err
			}
			var userRoles []string
			if err := json.Unmarshal([]byte(rolesJSON), &userRoles); err != nil {
				rows.Close()
				return "", false, err
			}
			for _, r := range userRoles {
				if r == role {
					rows.Close()
					return generic.UserID(id), true, nil
				}
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return "", false, err
		}
		rows.Close()
	}
	return "", false, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
