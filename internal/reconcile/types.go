// Package reconcile merges the SELIMP execution report and the
// internal tracking sheet into per-plan, per-day buckets and rolls
// them up into the percentages the contract indicator consumes.
package reconcile

import (
	"time"

	"github.com/limpurb/fiscal-cli/internal/model"
)

// ScopeKind selects which observed days are in view for a query.
type ScopeKind string

const (
	// ScopePreviousDay keeps only yesterday.
	ScopePreviousDay ScopeKind = "previous-day"
	// ScopePeriod keeps days inside an inclusive date range.
	ScopePeriod ScopeKind = "period"
	// ScopeAll keeps every day ever observed.
	ScopeAll ScopeKind = "all"
)

// Scope is the requested time window. Today anchors the
// "previous-day" computation and the inference default; callers pass
// the current date, tests pass a fixed one.
type Scope struct {
	Kind  ScopeKind
	Start time.Time
	End   time.Time
	Today time.Time
}

// Reference is the date inference and next-expected searches anchor
// on: the period end when one is given, otherwise yesterday.
func (s Scope) Reference() time.Time {
	if s.Kind == ScopePeriod && !s.End.IsZero() {
		return day(s.End)
	}
	return day(s.Today).AddDate(0, 0, -1)
}

func (s Scope) yesterday() time.Time {
	return day(s.Today).AddDate(0, 0, -1)
}

// DefaultScheduledServices lists the service codes whose expectation
// comes from the maintained one-off schedule instead of the frequency
// calendar.
var DefaultScheduledServices = map[string]bool{
	"LV": true, // lavagem de vias e logradouros
	"FR": true, // feiras livres
	"PV": true, // pontos viciados
	"CT": true, // cata-treco
	"DG": true, // desobstrução de galerias
}

// Options tunes one aggregation pass.
type Options struct {
	Scope Scope

	// ScheduledServices overrides DefaultScheduledServices when
	// non-nil. Keys are the two-letter service codes of the setor
	// grammar.
	ScheduledServices map[string]bool

	// CrossRefToleranceDays bounds the nearest-date cross-reference
	// against the internal source. Zero means the default of 3.
	CrossRefToleranceDays int
}

func (o Options) scheduled() map[string]bool {
	if o.ScheduledServices != nil {
		return o.ScheduledServices
	}
	return DefaultScheduledServices
}

func (o Options) tolerance() int {
	if o.CrossRefToleranceDays > 0 {
		return o.CrossRefToleranceDays
	}
	return 3
}

// Input is the single pass's worth of source data.
type Input struct {
	Selimp   []model.Row
	Internal []model.Row
	Schedule []model.ScheduleEntry
}

// DailyBucket accumulates one plan's contributions for one calendar
// day. Buckets are created lazily on first contribution; a bucket
// with zero dispatches from both sources never exists.
type DailyBucket struct {
	Day time.Time

	SelimpSum        float64
	SelimpCount      int
	SelimpDispatches int

	InternalSum        float64
	InternalCount      int
	InternalDispatches int

	// Estimated counts contributions whose reference date was
	// inferred rather than read from the row.
	Estimated int
}

// Origin classifies which sources contributed to a plan.
type Origin string

const (
	OriginBoth         Origin = "both"
	OriginOnlySelimp   Origin = "only-selimp"
	OriginOnlyInternal Origin = "only-internal"
	// OriginNone marks plans seeded from the schedule with no
	// dispatch from either source; they stay out of the comparison.
	OriginNone Origin = "none"
)

// DayReport is one in-scope day of a plan, with per-source means.
type DayReport struct {
	Day                time.Time `json:"day"`
	SelimpMean         *float64  `json:"selimp_mean,omitempty"`
	InternalMean       *float64  `json:"internal_mean,omitempty"`
	SelimpDispatches   int       `json:"selimp_dispatches"`
	InternalDispatches int       `json:"internal_dispatches"`
	Estimated          int       `json:"estimated"`
}

// CalendarDay is one cell of the five-point expectation preview.
type CalendarDay struct {
	Day      time.Time `json:"day"`
	Expected bool      `json:"expected"`
}

// PlanReport is the per-plan output block.
type PlanReport struct {
	Setor         string   `json:"setor"`
	Region        string   `json:"region"`
	Service       string   `json:"service"`
	Shift         string   `json:"shift,omitempty"`
	FrequencyCode string   `json:"frequency_code,omitempty"`
	MapNumber     string   `json:"map_number,omitempty"`
	Equipment     []string `json:"equipment,omitempty"`

	Days []DayReport `json:"days"`

	SelimpPercent      *float64 `json:"selimp_percent,omitempty"`
	InternalPercent    *float64 `json:"internal_percent,omitempty"`
	SelimpDispatches   int      `json:"selimp_dispatches"`
	InternalDispatches int      `json:"internal_dispatches"`
	EstimatedDates     int      `json:"estimated_dates"`

	Origin          Origin        `json:"origin"`
	NextExpected    *time.Time    `json:"next_expected,omitempty"`
	CalendarPreview []CalendarDay `json:"calendar_preview"`
}

// RegionRollup aggregates visible plans by subprefeitura.
type RegionRollup struct {
	Region        string   `json:"region"`
	Plans         int      `json:"plans"`
	SelimpPercent *float64 `json:"selimp_percent,omitempty"`
}

// ServiceRollup aggregates visible plans by service label.
type ServiceRollup struct {
	Service       string   `json:"service"`
	Plans         int      `json:"plans"`
	SelimpPercent *float64 `json:"selimp_percent,omitempty"`
}

// Comparison summarizes the two-source agreement over visible plans.
// Divergent counts plans where both sources reported and the
// percentages differ by at least DivergenceThreshold points.
type Comparison struct {
	Total        int `json:"total"`
	Divergent    int `json:"divergent"`
	OnlySelimp   int `json:"only_selimp"`
	OnlyInternal int `json:"only_internal"`
}

// DivergenceThreshold is the |Δ| in percentage points above which the
// two sources are considered to disagree about a plan.
const DivergenceThreshold = 5.0

// Result is the full reconciliation output for one query.
type Result struct {
	Plans      []PlanReport    `json:"plans"`
	Regions    []RegionRollup  `json:"regions"`
	Services   []ServiceRollup `json:"services"`
	Comparison Comparison      `json:"comparison"`
}

// OverallSelimpPercent is the dispatch-weighted plan execution
// percentage across every plan in the result, nil when no plan carries
// a SELIMP dispatch.
func (r *Result) OverallSelimpPercent() *float64 {
	var sum float64
	var dispatches int
	for _, p := range r.Plans {
		if p.SelimpPercent == nil || p.SelimpDispatches == 0 {
			continue
		}
		sum += *p.SelimpPercent * float64(p.SelimpDispatches)
		dispatches += p.SelimpDispatches
	}
	if dispatches == 0 {
		return nil
	}
	pct := sum / float64(dispatches)
	return &pct
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
