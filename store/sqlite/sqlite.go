/*
Package sqlite provides a SQLite-backed implementation of sales.TxStore.

PURPOSE:
  Persists reports, plans and the audit log. Every service mutation runs
  inside one database transaction, so a report status change, the plan
  total it implies and the audit entry are committed together or not at all.

DRIVERS:
  Two drivers are registered and selected by name:
  - "sqlite3": github.com/mattn/go-sqlite3 (cgo)
  - "sqlite":  modernc.org/sqlite (pure Go, no cgo toolchain needed)

KEY TABLES:
  reports:   One row per report; category amounts as a JSON object
  plans:     One row per agent; distribution as a JSON object
  audit_log: Append-only; seq gives insertion order

AMOUNTS:
  Decimals are stored as TEXT and parsed back with shopspring/decimal, so
  no precision is lost to REAL.

INDEXES:
  - idx_reports_agent_date: ListReports for one agent (hot path)
  - idx_reports_status:     Pending queue
  - idx_audit_agent:        Audit queries per agent

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single open connection, which
  also keeps ":memory:" databases shared across calls.

USAGE:
  store, err := sqlite.New("./data/sales.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := sales.NewService(store)

MIGRATION:
  Schema is auto-migrated on New()/Open(). Wrap() leaves an existing
  handle untouched.

SEE ALSO:
  - sales/store.go: Interface definitions
  - sales/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/gigo/sales-engine/sales"
)

const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// Store implements sales.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens dbPath with the mattn driver.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverMattn, dbPath)
}

// Open opens dbPath with the named driver and migrates the schema.
func Open(driver, dbPath string) (*Store, error) {
	dsn, err := buildDSN(driver, dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Wrap uses an already-open handle without migrating it.
func Wrap(db *sql.DB) *Store {
	return &Store{db: db}
}

func buildDSN(driver, dbPath string) (string, error) {
	switch driver {
	case DriverMattn:
		return dbPath + "?_foreign_keys=on&_journal_mode=WAL", nil
	case DriverModernc:
		return dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", nil
	}
	return "", fmt.Errorf("unsupported sqlite driver %q", driver)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. Safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.migrate(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		report_date TEXT NOT NULL,
		category_amounts_json TEXT NOT NULL,
		debt_amount TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED')),
		last_edited_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_agent_date
		ON reports(agent_id, report_date);
	CREATE INDEX IF NOT EXISTS idx_reports_status
		ON reports(status);

	CREATE TABLE IF NOT EXISTS plans (
		agent_id TEXT PRIMARY KEY,
		total_target TEXT NOT NULL,
		current_total TEXT NOT NULL,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		debt_limit_percent TEXT NOT NULL,
		distribution_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		ts TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		actor_name TEXT,
		action TEXT NOT NULL,
		agent_id TEXT,
		report_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_agent
		ON audit_log(agent_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// REPORTS
// =============================================================================

const reportColumns = `id, agent_id, report_date, category_amounts_json, debt_amount,
	total_amount, status, last_edited_by, created_at, updated_at`

func (s *Store) GetReport(ctx context.Context, id sales.ReportID) (*sales.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getReport(ctx, s.db, id)
}

func (s *Store) PutReport(ctx context.Context, r sales.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putReport(ctx, s.db, r)
}

func (s *Store) DeleteReport(ctx context.Context, id sales.ReportID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteReport(ctx, s.db, id)
}

func (s *Store) ListReports(ctx context.Context, filter sales.ReportFilter) ([]sales.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listReports(ctx, s.db, filter)
}

func getReport(ctx context.Context, q querier, id sales.ReportID) (*sales.Report, error) {
	row := q.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, string(id))
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &r, nil
}

func putReport(ctx context.Context, q querier, r sales.Report) error {
	amountsJSON, err := json.Marshal(r.CategoryAmounts)
	if err != nil {
		return fmt.Errorf("failed to encode category amounts: %w", err)
	}

	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category_amounts_json = excluded.category_amounts_json,
			debt_amount = excluded.debt_amount,
			total_amount = excluded.total_amount,
			status = excluded.status,
			last_edited_by = excluded.last_edited_by,
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		string(r.ID),
		string(r.AgentID),
		r.Date.Format(sales.DateLayout),
		string(amountsJSON),
		r.DebtAmount.String(),
		r.TotalAmount.String(),
		string(r.Status),
		nullString(r.LastEditedBy),
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func deleteReport(ctx context.Context, q querier, id sales.ReportID) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

func listReports(ctx context.Context, q querier, filter sales.ReportFilter) ([]sales.Report, error) {
	var (
		where []string
		args  []any
	)
	if filter.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, string(filter.AgentID))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.From.IsZero() {
		where = append(where, "report_date >= ?")
		args = append(args, filter.From.Format(sales.DateLayout))
	}
	if !filter.To.IsZero() {
		where = append(where, "report_date <= ?")
		args = append(args, filter.To.Format(sales.DateLayout))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY report_date, created_at, id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var result []sales.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (sales.Report, error) {
	var (
		r                              sales.Report
		id, agentID, date, amountsJSON string
		debt, total, status            string
		lastEditedBy                   sql.NullString
		createdAt, updatedAt           string
	)
	if err := row.Scan(&id, &agentID, &date, &amountsJSON, &debt, &total, &status, &lastEditedBy, &createdAt, &updatedAt); err != nil {
		return r, err
	}

	r.ID = sales.ReportID(id)
	r.AgentID = sales.AgentID(agentID)
	r.Status = sales.Status(status)
	r.LastEditedBy = lastEditedBy.String

	var err error
	if r.DebtAmount, err = decimal.NewFromString(debt); err != nil {
		return r, fmt.Errorf("report %s: bad debt amount %q: %w", id, debt, err)
	}
	if r.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return r, fmt.Errorf("report %s: bad total amount %q: %w", id, total, err)
	}
	if r.Date, err = sales.ParseDate(date); err != nil {
		return r, fmt.Errorf("report %s: bad date %q: %w", id, date, err)
	}
	if err := json.Unmarshal([]byte(amountsJSON), &r.CategoryAmounts); err != nil {
		return r, fmt.Errorf("report %s: bad category amounts: %w", id, err)
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// PLANS
// =============================================================================

const planColumns = `agent_id, total_target, current_total, window_start, window_end,
	debt_limit_percent, distribution_json, created_at, updated_at`

func (s *Store) GetPlan(ctx context.Context, agentID sales.AgentID) (*sales.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPlan(ctx, s.db, agentID)
}

func (s *Store) PutPlan(ctx context.Context, p sales.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return putPlan(ctx, s.db, p)
}

func (s *Store) ListPlans(ctx context.Context) ([]sales.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPlans(ctx, s.db)
}

func getPlan(ctx context.Context, q querier, agentID sales.AgentID) (*sales.Plan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE agent_id = ?`, string(agentID))
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &p, nil
}

func putPlan(ctx context.Context, q querier, p sales.Plan) error {
	distJSON, err := json.Marshal(p.CategoryDistribution)
	if err != nil {
		return fmt.Errorf("failed to encode distribution: %w", err)
	}

	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			total_target = excluded.total_target,
			current_total = excluded.current_total,
			window_start = excluded.window_start,
			window_end = excluded.window_end,
			debt_limit_percent = excluded.debt_limit_percent,
			distribution_json = excluded.distribution_json,
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		string(p.AgentID),
		p.TotalTarget.String(),
		p.CurrentTotal.String(),
		p.Window.Start.Format(sales.DateLayout),
		p.Window.End.Format(sales.DateLayout),
		p.DebtLimitPercent.String(),
		string(distJSON),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func listPlans(ctx context.Context, q querier) ([]sales.Plan, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var result []sales.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanPlan(row rowScanner) (sales.Plan, error) {
	var (
		p                           sales.Plan
		agentID, target, current    string
		start, end, debtLimit, dist string
		createdAt, updatedAt        string
	)
	if err := row.Scan(&agentID, &target, &current, &start, &end, &debtLimit, &dist, &createdAt, &updatedAt); err != nil {
		return p, err
	}

	p.AgentID = sales.AgentID(agentID)

	var err error
	if p.TotalTarget, err = decimal.NewFromString(target); err != nil {
		return p, fmt.Errorf("plan %s: bad total target %q: %w", agentID, target, err)
	}
	if p.CurrentTotal, err = decimal.NewFromString(current); err != nil {
		return p, fmt.Errorf("plan %s: bad current total %q: %w", agentID, current, err)
	}
	if p.DebtLimitPercent, err = decimal.NewFromString(debtLimit); err != nil {
		return p, fmt.Errorf("plan %s: bad debt limit %q: %w", agentID, debtLimit, err)
	}
	if p.Window.Start, err = sales.ParseDate(start); err != nil {
		return p, fmt.Errorf("plan %s: bad window start %q: %w", agentID, start, err)
	}
	if p.Window.End, err = sales.ParseDate(end); err != nil {
		return p, fmt.Errorf("plan %s: bad window end %q: %w", agentID, end, err)
	}
	p.CategoryDistribution = make(map[sales.Category]decimal.Decimal)
	if err := json.Unmarshal([]byte(dist), &p.CategoryDistribution); err != nil {
		return p, fmt.Errorf("plan %s: bad distribution: %w", agentID, err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit records an entry. Append-only: there is no update or delete.
func (s *Store) AppendAudit(ctx context.Context, e sales.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, e)
}

func (s *Store) QueryAudit(ctx context.Context, filter sales.AuditFilter) ([]sales.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAudit(ctx, s.db, filter)
}

func appendAudit(ctx context.Context, q querier, e sales.AuditEntry) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, ts, actor_id, actor_name, action, agent_id, report_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		e.ID,
		formatTime(e.Timestamp),
		e.ActorID,
		nullString(e.ActorName),
		string(e.Action),
		nullString(string(e.AgentID)),
		nullString(string(e.ReportID)),
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func queryAudit(ctx context.Context, q querier, filter sales.AuditFilter) ([]sales.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.AgentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, string(filter.AgentID))
	}
	if filter.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, "action IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT id, ts, actor_id, actor_name, action, agent_id, report_id, payload_json FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var result []sales.AuditEntry
	for rows.Next() {
		var (
			e                                         sales.AuditEntry
			ts, action                                string
			actorName, agentID, reportID, payloadJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &actorName, &action, &agentID, &reportID, &payloadJSON); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		e.ActorName = actorName.String
		e.Action = sales.AuditAction(action)
		e.AgentID = sales.AgentID(agentID.String)
		e.ReportID = sales.ReportID(reportID.String)
		if payloadJSON.Valid && payloadJSON.String != "null" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("audit %s: bad payload: %w", e.ID, err)
			}
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (sales.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store sales.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore routes reads as well as writes through the transaction, so a
// callback sees its own uncommitted changes.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetReport(ctx context.Context, id sales.ReportID) (*sales.Report, error) {
	return getReport(ctx, ts.tx, id)
}

func (ts *txStore) PutReport(ctx context.Context, r sales.Report) error {
	return putReport(ctx, ts.tx, r)
}

func (ts *txStore) DeleteReport(ctx context.Context, id sales.ReportID) error {
	return deleteReport(ctx, ts.tx, id)
}

func (ts *txStore) ListReports(ctx context.Context, filter sales.ReportFilter) ([]sales.Report, error) {
	return listReports(ctx, ts.tx, filter)
}

func (ts *txStore) GetPlan(ctx context.Context, agentID sales.AgentID) (*sales.Plan, error) {
	return getPlan(ctx, ts.tx, agentID)
}

func (ts *txStore) PutPlan(ctx context.Context, p sales.Plan) error {
	return putPlan(ctx, ts.tx, p)
}

func (ts *txStore) ListPlans(ctx context.Context) ([]sales.Plan, error) {
	return listPlans(ctx, ts.tx)
}

func (ts *txStore) AppendAudit(ctx context.Context, e sales.AuditEntry) error {
	return appendAudit(ctx, ts.tx, e)
}

func (ts *txStore) QueryAudit(ctx context.Context, filter sales.AuditFilter) ([]sales.AuditEntry, error) {
	return queryAudit(ctx, ts.tx, filter)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"reports", "plans", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
