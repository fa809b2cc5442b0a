// Package store persists ingested rows, the explicit execution
// schedule, saved plan-execution percentages and the collaborator
// records the scorer counts.
package store

import (
	"context"
	"time"

	"github.com/limpurb/fiscal-cli/internal/model"
)

// Store is the persistence boundary of the reconciliation engine.
type Store interface {
	// Ingested spreadsheet rows, upserted one by one keyed on
	// (file_type, record_key). The returned flag reports whether the
	// write created a fresh row.
	UpsertRow(ctx context.Context, row model.Row) (inserted bool, err error)
	ListRows(ctx context.Context, ft model.FileType) ([]model.Row, error)

	// Explicit schedule, keyed on (service, setor, expected_date).
	UpsertScheduleEntries(ctx context.Context, entries []model.ScheduleEntry) (int64, error)
	ListSchedule(ctx context.Context) ([]model.ScheduleEntry, error)

	// Saved plan-execution percentages, keyed on the period.
	SavePlanExecution(ctx context.Context, start, end time.Time, percent float64) error
	GetPlanExecution(ctx context.Context, start, end time.Time) (*float64, error)

	// Collaborator records feeding the indicator counts.
	UpsertTickets(ctx context.Context, tickets []model.Ticket) (int64, error)
	UpsertInspections(ctx context.Context, inspections []model.Inspection) (int64, error)
	UpsertComplaints(ctx context.Context, complaints []model.Complaint) (int64, error)
	CountPeriod(ctx context.Context, start, end time.Time) (model.PeriodCounts, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
