package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/limpurb/fiscal-cli/internal/model"
)

// MemoryStore is a map-backed Store. It backs the "memory" driver for
// local evaluation runs and the packages that test against the Store
// boundary without a database.
type MemoryStore struct {
	mu         sync.RWMutex
	rows       map[model.FileType]map[string]model.Row
	schedule   map[scheduleKey]model.ScheduleEntry
	executions map[periodKey]float64

	tickets     map[string]model.Ticket
	inspections map[string]model.Inspection
	complaints  map[string]model.Complaint
}

type scheduleKey struct {
	service string
	setor   string
	date    string
}

type periodKey struct {
	start string
	end   string
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		rows:        make(map[model.FileType]map[string]model.Row),
		schedule:    make(map[scheduleKey]model.ScheduleEntry),
		executions:  make(map[periodKey]float64),
		tickets:     make(map[string]model.Ticket),
		inspections: make(map[string]model.Inspection),
		complaints:  make(map[string]model.Complaint),
	}
}

func (s *MemoryStore) UpsertRow(_ context.Context, row model.Row) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKey, ok := s.rows[row.FileType]
	if !ok {
		byKey = make(map[string]model.Row)
		s.rows[row.FileType] = byKey
	}
	_, existed := byKey[row.RecordKey]
	byKey[row.RecordKey] = row
	return !existed, nil
}

func (s *MemoryStore) ListRows(_ context.Context, ft model.FileType) ([]model.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byKey := s.rows[ft]
	out := make([]model.Row, 0, len(byKey))
	for _, row := range byKey {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordKey < out[j].RecordKey })
	return out, nil
}

func (s *MemoryStore) UpsertScheduleEntries(_ context.Context, entries []model.ScheduleEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		k := scheduleKey{e.Service, e.Setor, e.ExpectedDate.Format("2006-01-02")}
		s.schedule[k] = e
	}
	return int64(len(entries)), nil
}

func (s *MemoryStore) ListSchedule(_ context.Context) ([]model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ScheduleEntry, 0, len(s.schedule))
	for _, e := range s.schedule {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpectedDate.Before(out[j].ExpectedDate) })
	return out, nil
}

func (s *MemoryStore) SavePlanExecution(_ context.Context, start, end time.Time, percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[newPeriodKey(start, end)] = percent
	return nil
}

func (s *MemoryStore) GetPlanExecution(_ context.Context, start, end time.Time) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pct, ok := s.executions[newPeriodKey(start, end)]
	if !ok {
		return nil, nil
	}
	return &pct, nil
}

func (s *MemoryStore) UpsertTickets(_ context.Context, tickets []model.Ticket) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tk := range tickets {
		s.tickets[tk.Protocol] = tk
	}
	return int64(len(tickets)), nil
}

func (s *MemoryStore) UpsertInspections(_ context.Context, inspections []model.Inspection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range inspections {
		s.inspections[in.Bulletin] = in
	}
	return int64(len(inspections)), nil
}

func (s *MemoryStore) UpsertComplaints(_ context.Context, complaints []model.Complaint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range complaints {
		s.complaints[c.Protocol] = c
	}
	return int64(len(complaints)), nil
}

func (s *MemoryStore) CountPeriod(_ context.Context, start, end time.Time) (model.PeriodCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	endExclusive := end.AddDate(0, 0, 1)
	in := func(t time.Time) bool { return !t.Before(start) && t.Before(endExclusive) }

	var c model.PeriodCounts
	for _, tk := range s.tickets {
		if !in(tk.OpenedAt) {
			continue
		}
		c.TicketsTotal++
		if tk.ResolvedAt != nil && (tk.Deadline == nil || !tk.ResolvedAt.After(*tk.Deadline)) {
			c.TicketsOnTime++
		}
	}
	for _, insp := range s.inspections {
		if !in(insp.InspectedAt) {
			continue
		}
		c.InspectionsTotal++
		if insp.Conform {
			c.InspectionsOK++
		}
	}
	for _, row := range s.rows[model.FileTypeSELIMP] {
		if row.RefDate != nil && in(*row.RefDate) {
			c.ServicesRendered++
		}
	}
	for _, comp := range s.complaints {
		if in(comp.RegisteredAt) {
			c.ComplaintsTotal++
		}
	}
	return c, nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Ping(context.Context) error    { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func newPeriodKey(start, end time.Time) periodKey {
	return periodKey{start.Format("2006-01-02"), end.Format("2006-01-02")}
}
