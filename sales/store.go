/*
store.go - Persistence interface for reports, plans and the audit log

PURPOSE:
  Defines the boundary between the engine and storage. The engine only
  needs to read/write single report and plan records; everything it
  computes is handed back to the store inside one transaction.

KEY INTERFACES:
  Store:   Report/plan CRUD plus audit append/query
  TxStore: Store + WithTx for atomic multi-record updates

ABSENT RECORDS:
  GetReport and GetPlan return (nil, nil) when the record does not exist.
  The service turns that into a NotFoundError where it matters; a missing
  plan is a normal state (no active plan yet).

ATOMICITY:
  Every mutating service operation runs inside WithTx. If the function
  returns an error the report, plan and audit writes are all rolled back,
  so a report can never change status without its plan being reconciled.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite (mattn or modernc driver)
  - sales/store/memory.go:  In-memory for tests and demos
*/
package sales

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for report, plan and audit persistence
// =============================================================================

type Store interface {
	// GetReport returns the report or (nil, nil) if absent.
	GetReport(ctx context.Context, id ReportID) (*Report, error)

	// PutReport inserts or replaces a report.
	PutReport(ctx context.Context, r Report) error

	// DeleteReport removes a report. Deleting an absent report is not an error.
	DeleteReport(ctx context.Context, id ReportID) error

	// ListReports returns reports matching the filter, ordered by date then creation.
	ListReports(ctx context.Context, filter ReportFilter) ([]Report, error)

	// GetPlan returns the agent's plan or (nil, nil) if absent.
	GetPlan(ctx context.Context, agentID AgentID) (*Plan, error)

	// PutPlan inserts or replaces the agent's plan.
	PutPlan(ctx context.Context, p Plan) error

	// ListPlans returns all plans ordered by agent.
	ListPlans(ctx context.Context) ([]Plan, error)

	// AppendAudit records an audit entry. Append-only.
	AppendAudit(ctx context.Context, e AuditEntry) error

	// QueryAudit returns entries matching the filter, oldest first.
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store it was given is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// ReportFilter narrows ListReports. Zero fields match everything.
type ReportFilter struct {
	AgentID AgentID
	Status  Status
	From    time.Time
	To      time.Time
}

// Matches reports whether r passes the filter.
func (f ReportFilter) Matches(r Report) bool {
	if f.AgentID != "" && r.AgentID != f.AgentID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && Date(r.Date).Before(Date(f.From)) {
		return false
	}
	if !f.To.IsZero() && Date(r.Date).After(Date(f.To)) {
		return false
	}
	return true
}

// =============================================================================
// AUDIT LOG - Who did what when
// =============================================================================

type AuditAction string

const (
	AuditReportSubmitted AuditAction = "report_submitted"
	AuditReportApproved  AuditAction = "report_approved"
	AuditReportRejected  AuditAction = "report_rejected"
	AuditReportEdited    AuditAction = "report_edited"
	AuditReportDeleted   AuditAction = "report_deleted"
	AuditPlanUpdated     AuditAction = "plan_updated"
	AuditPlanReconciled  AuditAction = "plan_reconciled"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID        string
	Timestamp time.Time
	ActorID   string
	ActorName string
	Action    AuditAction
	AgentID   AgentID
	ReportID  ReportID
	Payload   map[string]string
}

type AuditFilter struct {
	AgentID AgentID
	ActorID string
	Actions []AuditAction
	Limit   int
}

// Matches reports whether e passes the filter (Limit is applied by the store).
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.AgentID != "" && e.AgentID != f.AgentID {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		for _, a := range f.Actions {
			if a == e.Action {
				return true
			}
		}
		return false
	}
	return true
}
